package registry

import (
	"testing"

	"github.com/FlexiFormal/FLAMS-sub003/internal/intern"
)

const testDescriptor = `
artifact_types:
  - name: html
    description: rendered document
targets:
  - name: check
    description: type-checks a module
    yields: [html]
source_formats:
  - name: stex
    file_exts: [".tex"]
    targets: ["check"]
`

func TestParsePluginDescriptorValidatesAndParses(t *testing.T) {
	pd, err := ParsePluginDescriptor([]byte(testDescriptor))
	if err != nil {
		t.Fatalf("ParsePluginDescriptor: %v", err)
	}
	if len(pd.Targets) != 1 || pd.Targets[0].Name != "check" {
		t.Fatalf("Targets = %+v", pd.Targets)
	}
	if len(pd.Formats) != 1 || pd.Formats[0].Name != "stex" {
		t.Fatalf("Formats = %+v", pd.Formats)
	}
}

func TestParsePluginDescriptorRejectsMissingRequiredField(t *testing.T) {
	bad := `
source_formats:
  - description: missing name and file_exts
`
	if _, err := ParsePluginDescriptor([]byte(bad)); err == nil {
		t.Fatalf("expected schema validation to reject a format with no name")
	}
}

func TestRegisterTargetsFromRequiresRunImplementation(t *testing.T) {
	reset()
	defer reset()
	pd, err := ParsePluginDescriptor([]byte(testDescriptor))
	if err != nil {
		t.Fatalf("ParsePluginDescriptor: %v", err)
	}
	if err := RegisterTargetsFrom(pd, nil); err == nil {
		t.Fatalf("expected an error when no Run implementation is supplied for target %q", pd.Targets[0].Name)
	}
}

func TestRegisterFromDescriptorEndToEnd(t *testing.T) {
	reset()
	defer reset()
	pd, err := ParsePluginDescriptor([]byte(testDescriptor))
	if err != nil {
		t.Fatalf("ParsePluginDescriptor: %v", err)
	}
	if err := RegisterArtifactTypesFrom(pd); err != nil {
		t.Fatalf("RegisterArtifactTypesFrom: %v", err)
	}
	if err := RegisterTargetsFrom(pd, map[string]RunFunc{
		"check": func(be any, task any) (any, error) { return nil, nil },
	}); err != nil {
		t.Fatalf("RegisterTargetsFrom: %v", err)
	}
	if err := RegisterFormatsFrom(pd, nil); err != nil {
		t.Fatalf("RegisterFormatsFrom: %v", err)
	}

	if _, ok := TargetByName("check"); !ok {
		t.Fatalf("expected target %q to be registered", "check")
	}
	f, ok := FormatByName("stex")
	if !ok || len(f.Targets) != 1 || f.Targets[0].String() != "check" {
		t.Fatalf("FormatByName(stex) = %+v, %v", f, ok)
	}
	if _, ok := ArtifactTypeByID(intern.Intern("html")); !ok {
		t.Fatalf("expected artifact type %q to be registered", "html")
	}
}
