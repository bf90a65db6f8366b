package schema

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Override carries per-field serialization options that win over inferred
// ones. Nil pointers leave the inferred value untouched.
type Override struct {
	Required   *bool    `json:"required,omitempty" yaml:"required,omitempty"`
	AllowNull  *bool    `json:"allowNull,omitempty" yaml:"allowNull,omitempty"`
	AllowBlank *bool    `json:"allowBlank,omitempty" yaml:"allowBlank,omitempty"`
	ReadOnly   *bool    `json:"readOnly,omitempty" yaml:"readOnly,omitempty"`
	Source     string   `json:"source,omitempty" yaml:"source,omitempty"`
	Validators []string `json:"validators,omitempty" yaml:"validators,omitempty"`
	MaxLength  *int     `json:"maxLength,omitempty" yaml:"maxLength,omitempty"`
}

// MethodSpec declares a remote-callable method on a model type.
type MethodSpec struct {
	Name        string   `json:"name" yaml:"name"`
	Path        string   `json:"path,omitempty" yaml:"path,omitempty"`
	Static      bool     `json:"static,omitempty" yaml:"static,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Args        []*Field `json:"args,omitempty" yaml:"args,omitempty"`
}

// ModelSpec is a manifest entry: the model itself plus the marshaller and
// endpoint configuration declared next to it.
type ModelSpec struct {
	Model     `yaml:",inline"`
	BasePath  string              `json:"basePath,omitempty" yaml:"basePath,omitempty"`
	Overrides map[string]Override `json:"overrides,omitempty" yaml:"overrides,omitempty"`
	Proxies   Proxies             `json:"proxies,omitempty" yaml:"proxies,omitempty"`
	Computed  []string            `json:"computed,omitempty" yaml:"computed,omitempty"`
	Methods   []MethodSpec        `json:"methods,omitempty" yaml:"methods,omitempty"`
	// Prefetch declares named nested shapes, each a list of prefetch entries.
	Prefetch Shapes `json:"prefetch,omitempty" yaml:"prefetch,omitempty"`
}

// Manifest is the parsed set of model specs with a linked catalog.
type Manifest struct {
	Specs   []*ModelSpec
	Catalog *Catalog
}

// Spec returns the spec declared for the named model.
func (m *Manifest) Spec(name string) (*ModelSpec, bool) {
	if m == nil {
		return nil, false
	}
	for _, spec := range m.Specs {
		if spec.Name == name {
			return spec, true
		}
	}
	return nil, false
}

type manifestFile struct {
	Models []*ModelSpec `json:"models" yaml:"models"`
}

// LoadFS walks the filesystem and parses every JSON/YAML manifest into one
// linked Manifest. Files are visited in lexical order.
func LoadFS(fsys fs.FS) (*Manifest, error) {
	manifest := &Manifest{Catalog: &Catalog{}}
	if fsys == nil {
		return manifest, nil
	}

	err := fs.WalkDir(fsys, ".", func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() || !isManifestFile(path) {
			return nil
		}
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("schema: read %s: %w", path, err)
		}
		doc, err := NewDocument(SourceFromFS(path), data)
		if err != nil {
			return fmt.Errorf("schema: %s: %w", path, err)
		}
		return manifest.add(doc)
	})
	if err != nil {
		return nil, err
	}
	if err := manifest.Catalog.Link(); err != nil {
		return nil, err
	}
	return manifest, nil
}

// Parse reads a single manifest document and links its catalog.
func Parse(doc Document) (*Manifest, error) {
	manifest := &Manifest{Catalog: &Catalog{}}
	if err := manifest.add(doc); err != nil {
		return nil, err
	}
	if err := manifest.Catalog.Link(); err != nil {
		return nil, err
	}
	return manifest, nil
}

func (m *Manifest) add(doc Document) error {
	file, err := parseManifest(doc.Raw(), doc.Location())
	if err != nil {
		return err
	}
	for _, spec := range file.Models {
		if spec == nil {
			continue
		}
		if err := m.Catalog.Add(&spec.Model); err != nil {
			return fmt.Errorf("schema: %s: %w", doc.Location(), err)
		}
		m.Specs = append(m.Specs, spec)
	}
	return nil
}

func parseManifest(data []byte, source string) (manifestFile, error) {
	var file manifestFile
	if len(strings.TrimSpace(string(data))) == 0 {
		return manifestFile{}, fmt.Errorf("schema: file %s is empty", source)
	}

	if err := json.Unmarshal(data, &file); err == nil {
		return file, nil
	}

	file = manifestFile{}
	if err := yaml.Unmarshal(data, &file); err == nil {
		return file, nil
	}

	return manifestFile{}, fmt.Errorf("schema: parse %s: invalid JSON or YAML", source)
}

func isManifestFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return true
	default:
		return false
	}
}
