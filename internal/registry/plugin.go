package registry

import (
	"encoding/json"
	"fmt"

	"github.com/FlexiFormal/FLAMS-sub003/internal/intern"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// pluginSchemaJSON is the JSON Schema every plugin descriptor YAML document
// is validated against before its declared formats/targets/artifact types
// are registered (spec §4.H: "built at startup by plugin initializers").
// Only the declarative shape is schema-checked; a descriptor's behavioral
// half (SourceFormat.Dependencies, BuildTarget.Run) is Go code supplied
// separately by the plugin, the same way gangplank's YAML JobSpec carries
// only data while its RenderData supplies execution.
const pluginSchemaJSON = `{
  "type": "object",
  "properties": {
    "artifact_types": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name"],
        "properties": {
          "name": {"type": "string"},
          "description": {"type": "string"}
        }
      }
    },
    "targets": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name"],
        "properties": {
          "name": {"type": "string"},
          "description": {"type": "string"},
          "depends_on": {"type": "array", "items": {"type": "string"}},
          "yields": {"type": "array", "items": {"type": "string"}}
        }
      }
    },
    "source_formats": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "file_exts", "targets"],
        "properties": {
          "name": {"type": "string"},
          "description": {"type": "string"},
          "file_exts": {"type": "array", "items": {"type": "string"}},
          "targets": {"type": "array", "items": {"type": "string"}}
        }
      }
    }
  }
}`

var pluginSchema = gojsonschema.NewStringLoader(pluginSchemaJSON)

// ArtifactTypeDescriptor is the YAML shape of one BuildArtifactType.
type ArtifactTypeDescriptor struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// TargetDescriptor is the YAML shape of one BuildTarget, minus its Run
// function.
type TargetDescriptor struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	DependsOn   []string `yaml:"depends_on"`
	Yields      []string `yaml:"yields"`
}

// FormatDescriptor is the YAML shape of one SourceFormat, minus its
// Dependencies function.
type FormatDescriptor struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	FileExts    []string `yaml:"file_exts"`
	Targets     []string `yaml:"targets"`
}

// PluginDescriptor is one plugin's declarative contribution to the
// registry, as loaded from a single YAML document.
type PluginDescriptor struct {
	ArtifactTypes []ArtifactTypeDescriptor `yaml:"artifact_types"`
	Targets       []TargetDescriptor       `yaml:"targets"`
	Formats       []FormatDescriptor       `yaml:"source_formats"`
}

// ParsePluginDescriptor parses and JSON-Schema-validates raw as a plugin
// descriptor. It registers nothing; callers combine the returned
// descriptor with their Go-side Run/Dependencies implementations via
// RegisterArtifactTypesFrom/RegisterTargetsFrom/RegisterFormatsFrom.
func ParsePluginDescriptor(raw []byte) (*PluginDescriptor, error) {
	var generic any
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("registry: parsing plugin descriptor: %w", err)
	}

	asJSON, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("registry: converting plugin descriptor to JSON for validation: %w", err)
	}
	result, err := gojsonschema.Validate(pluginSchema, gojsonschema.NewBytesLoader(asJSON))
	if err != nil {
		return nil, fmt.Errorf("registry: validating plugin descriptor: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("registry: plugin descriptor failed schema validation: %v", msgs)
	}

	var pd PluginDescriptor
	if err := yaml.Unmarshal(raw, &pd); err != nil {
		return nil, fmt.Errorf("registry: decoding plugin descriptor: %w", err)
	}
	return &pd, nil
}

func internSymbols(names []string) []intern.Symbol {
	out := make([]intern.Symbol, len(names))
	for i, n := range names {
		out[i] = intern.Intern(n)
	}
	return out
}

// RegisterArtifactTypesFrom registers every artifact type pd declares.
func RegisterArtifactTypesFrom(pd *PluginDescriptor) error {
	for _, at := range pd.ArtifactTypes {
		if err := RegisterArtifactType(BuildArtifactType{Name: at.Name, Description: at.Description}); err != nil {
			return err
		}
	}
	return nil
}

// RegisterTargetsFrom registers every target pd declares, pairing each
// with its Run implementation from runFor by name. A declared target with
// no matching Go implementation is an error: the descriptor is a contract
// the plugin's own code must fulfill.
func RegisterTargetsFrom(pd *PluginDescriptor, runFor map[string]RunFunc) error {
	for _, td := range pd.Targets {
		run, ok := runFor[td.Name]
		if !ok {
			return fmt.Errorf("registry: plugin descriptor declares target %q with no Run implementation", td.Name)
		}
		t := BuildTarget{
			Name:        td.Name,
			Description: td.Description,
			Dependson:   internSymbols(td.DependsOn),
			Yields:      internSymbols(td.Yields),
			Run:         run,
		}
		if err := RegisterTarget(t); err != nil {
			return err
		}
	}
	return nil
}

// RegisterFormatsFrom registers every format pd declares. depsFor supplies
// each format's Dependencies callback by name; a format with no entry in
// depsFor gets a nil Dependencies (spec §4.H allows a format with no
// cross-file dependency rule at all).
func RegisterFormatsFrom(pd *PluginDescriptor, depsFor map[string]DependencyFunc) error {
	for _, fd := range pd.Formats {
		targets := make([]TargetId, len(fd.Targets))
		for i, name := range fd.Targets {
			targets[i] = intern.Intern(name)
		}
		f := SourceFormat{
			Name:         fd.Name,
			Description:  fd.Description,
			FileExts:     fd.FileExts,
			Targets:      targets,
			Dependencies: depsFor[fd.Name],
		}
		if err := RegisterFormat(f); err != nil {
			return err
		}
	}
	return nil
}
