// Package manifest loads version gates declared outside Go source.
//
// Not everything a release needs to retire is an annotated declaration:
// generated code, templates, fixtures and build scripts can carry gates in
// a YAML manifest instead:
//
//	gates:
//	  - subject: templates/report.tmpl
//	    version: ">= 1.0.x"
//	    reason: "template still renders the v0 layout"
//
// Manifest gates behave exactly like scanned ones; only the declaration
// site differs. The same gates key is also honored inside the project
// config file, so small projects need no separate manifest.
package manifest

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/allowuntil/pkg/gate"
)

// Entry is one gate declaration in a manifest file.
// Unknown keys cause parse errors.
type Entry struct {
	Subject string `yaml:"subject"`
	Version string `yaml:"version"`
	Reason  string `yaml:"reason"`
}

// Manifest is a parsed manifest file.
type Manifest struct {
	Path  string
	Gates []gate.Gate
}

// ParseError represents a manifest parsing or validation error.
type ParseError struct {
	File    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.File != "" {
		if e.Line > 0 {
			return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Message)
		}
		return fmt.Sprintf("%s: %s", e.File, e.Message)
	}
	return e.Message
}

// Load reads and parses the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from project configuration
	if err != nil {
		return nil, &ParseError{File: path, Message: err.Error()}
	}
	return Parse(path, data)
}

// Parse parses manifest content. The file fails as a whole on the first
// invalid entry; a manifest that half-loads would silently drop gates.
func Parse(path string, data []byte) (*Manifest, error) {
	root, err := parseRoot(path, data)
	if err != nil {
		return nil, err
	}

	m := &Manifest{Path: path}
	if root == nil {
		// Empty file, nothing declared.
		return m, nil
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		key := root.Content[i]
		if key.Value != "gates" {
			return nil, &ParseError{File: path, Line: key.Line, Message: fmt.Sprintf("unknown key %q", key.Value)}
		}
		gates, err := parseEntries(path, root.Content[i+1])
		if err != nil {
			return nil, err
		}
		m.Gates = gates
	}
	return m, nil
}

// LoadConfigGates reads gates declared under the gates key of the project
// config file. Every other top-level key belongs to the tool configuration
// and is skipped; the entries themselves are validated as strictly as in a
// standalone manifest.
func LoadConfigGates(path string) (*Manifest, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from project configuration
	if err != nil {
		return nil, &ParseError{File: path, Message: err.Error()}
	}

	root, err := parseRoot(path, data)
	if err != nil {
		return nil, err
	}

	m := &Manifest{Path: path}
	if root == nil {
		return m, nil
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value != "gates" {
			continue
		}
		gates, err := parseEntries(path, root.Content[i+1])
		if err != nil {
			return nil, err
		}
		m.Gates = gates
		break
	}
	return m, nil
}

// parseRoot returns the top-level mapping of a YAML document, or nil when
// the document is empty.
func parseRoot(path string, data []byte) (*yaml.Node, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, &ParseError{File: path, Message: fmt.Sprintf("invalid YAML: %v", err)}
	}

	doc := &root
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		doc = doc.Content[0]
	}
	if doc.Kind == 0 || (doc.Kind == yaml.ScalarNode && doc.Tag == "!!null") {
		return nil, nil
	}
	if doc.Kind != yaml.MappingNode {
		return nil, &ParseError{File: path, Line: doc.Line, Message: "top level must be a mapping"}
	}
	return doc, nil
}

// parseEntries converts the items of a gates sequence into gates anchored
// at their source lines.
func parseEntries(path string, seq *yaml.Node) ([]gate.Gate, error) {
	if seq.Kind == yaml.ScalarNode && seq.Tag == "!!null" {
		return nil, nil
	}
	if seq.Kind != yaml.SequenceNode {
		return nil, &ParseError{File: path, Line: seq.Line, Message: `"gates" must be a list`}
	}

	var gates []gate.Gate
	for i, item := range seq.Content {
		if item.Kind != yaml.MappingNode {
			return nil, &ParseError{File: path, Line: item.Line, Message: fmt.Sprintf("gates[%d]: entry must be a mapping", i)}
		}

		var e Entry
		for k := 0; k+1 < len(item.Content); k += 2 {
			key, val := item.Content[k], item.Content[k+1]
			switch key.Value {
			case "subject":
				e.Subject = val.Value
			case "version":
				e.Version = val.Value
			case "reason":
				e.Reason = val.Value
			default:
				return nil, &ParseError{File: path, Line: key.Line, Message: fmt.Sprintf("gates[%d]: unknown key %q", i, key.Value)}
			}
			if val.Kind != yaml.ScalarNode {
				return nil, &ParseError{File: path, Line: val.Line, Message: fmt.Sprintf("gates[%d]: %q must be a string", i, key.Value)}
			}
		}

		if e.Subject == "" {
			return nil, &ParseError{File: path, Line: item.Line, Message: fmt.Sprintf("gates[%d]: missing required \"subject\" key", i)}
		}
		if e.Version == "" {
			return nil, &ParseError{File: path, Line: item.Line, Message: fmt.Sprintf("gates[%d]: missing required \"version\" key", i)}
		}
		if _, err := gate.ParsePredicate(e.Version); err != nil {
			return nil, &ParseError{File: path, Line: item.Line, Message: fmt.Sprintf("gates[%d]: %v", i, err)}
		}

		gates = append(gates, gate.Gate{
			Subject:   e.Subject,
			Predicate: e.Version,
			Reason:    e.Reason,
			Pos:       gate.Position{File: path, Line: item.Line},
		})
	}
	return gates, nil
}
