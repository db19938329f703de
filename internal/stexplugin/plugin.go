// Package stexplugin is the smallest possible plugin initializer for the
// "stex" source format: it fulfils the registry contract (spec §4.H) so
// cmd/flams has a real format/target pair to enqueue and run against. The
// actual sTeX/FTML extraction and OMDoc construction this format's "check"
// target would ultimately perform is a named-interface collaborator out of
// scope for this engine; Run here reads the source file and wraps it in a
// minimal OMDocResult/Artifact so the rest of the pipeline — queueing,
// scheduling, artifact persistence, migration — has something concrete to
// move end to end.
package stexplugin

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/FlexiFormal/FLAMS-sub003/internal/artifact"
	"github.com/FlexiFormal/FLAMS-sub003/internal/backend"
	"github.com/FlexiFormal/FLAMS-sub003/internal/omdoc"
	"github.com/FlexiFormal/FLAMS-sub003/internal/registry"
	"github.com/FlexiFormal/FLAMS-sub003/internal/task"
)

// descriptorYAML is this plugin's declarative registry contribution,
// shaped per registry.PluginDescriptor and validated against its JSON
// Schema at Initialize time.
const descriptorYAML = `
artifact_types:
  - name: html
    description: a fully rendered FTML document
targets:
  - name: check
    description: validates and renders one source file
    yields: [html]
source_formats:
  - name: stex
    description: sTeX/FTML source
    file_exts: [".tex", ".ftml"]
    targets: ["check"]
`

// Initialize parses this plugin's descriptor and registers its format,
// target, and artifact type into the process-global registry. It is safe
// to call at most once per process; a second call fails the same way any
// duplicate registration does.
func Initialize() error {
	pd, err := registry.ParsePluginDescriptor([]byte(descriptorYAML))
	if err != nil {
		return err
	}
	if err := registry.RegisterArtifactTypesFrom(pd); err != nil {
		return err
	}
	if err := registry.RegisterTargetsFrom(pd, map[string]registry.RunFunc{"check": runCheck}); err != nil {
		return err
	}
	return registry.RegisterFormatsFrom(pd, nil)
}

// runCheck implements the "check" target's RunFunc. backend and t arrive
// as `any` per registry.RunFunc; both are narrowed here the same way
// internal/scheduler narrows them back out.
func runCheck(be any, t any) (any, error) {
	bk, ok := be.(backend.Backend)
	if !ok {
		return nil, fmt.Errorf("stexplugin: unexpected backend type %T", be)
	}
	bt, ok := t.(*task.BuildTask)
	if !ok {
		return nil, fmt.Errorf("stexplugin: unexpected task type %T", t)
	}

	a, ok := bk.FindArchive(bt.Archive)
	if !ok {
		return nil, fmt.Errorf("stexplugin: archive %s not found", bt.Archive)
	}
	srcPath := filepath.Join(a.Path(), "source", bt.RelPath)
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return &omdoc.BuildResult{Log: err.Error(), Err: err}, nil
	}

	html := fmt.Sprintf("<html><body><pre>%s</pre></body></html>", data)

	return &omdoc.BuildResult{
		Log: fmt.Sprintf("checked %s (%d bytes)", bt.RelPath, len(data)),
		Artifact: &artifact.Artifact{
			HTML: html,
		},
		NewDeps: nil,
	}, nil
}
