package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/sdejongh/assurance/pkg/models"
)

// definitionsFile is the YAML document holding every definition
type definitionsFile struct {
	Definitions []*models.ScanDefinition `yaml:"definitions"`
}

// DefinitionStore keeps scan definitions in <root>/definitions.yaml, keyed by name
type DefinitionStore struct {
	path string
	mu   sync.Mutex
}

// NewDefinitionStore creates a store rooted at root
func NewDefinitionStore(root string) *DefinitionStore {
	return &DefinitionStore{path: filepath.Join(root, "definitions.yaml")}
}

// Path returns the YAML file location
func (s *DefinitionStore) Path() string {
	return s.path
}

func (s *DefinitionStore) load() ([]*models.ScanDefinition, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read definitions: %w", err)
	}

	var file definitionsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse definitions: %w", err)
	}

	for _, d := range file.Definitions {
		for _, m := range d.Mappings {
			m.Source.Refresh()
			m.Target.Refresh()
			for _, ex := range m.Exclusions {
				ex.MappingID = m.ID
			}
		}
	}
	return file.Definitions, nil
}

func (s *DefinitionStore) save(defs []*models.ScanDefinition) error {
	data, err := yaml.Marshal(definitionsFile{Definitions: defs})
	if err != nil {
		return fmt.Errorf("failed to marshal definitions: %w", err)
	}
	return writeFileAtomic(s.path, data)
}

// List returns every definition sorted by name
func (s *DefinitionStore) List() ([]*models.ScanDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	defs, err := s.load()
	if err != nil {
		return nil, err
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs, nil
}

// Get returns the definition called name
func (s *DefinitionStore) Get(name string) (*models.ScanDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	defs, err := s.load()
	if err != nil {
		return nil, err
	}
	for _, d := range defs {
		if d.Name == name {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", models.ErrDefinitionNotFound, name)
}

// Put adds def, replacing any definition with the same name
func (s *DefinitionStore) Put(def *models.ScanDefinition) error {
	if def == nil || def.Name == "" {
		return &models.ValidationError{Field: "name", Message: "definition name cannot be empty"}
	}
	if err := def.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	defs, err := s.load()
	if err != nil {
		return err
	}
	replaced := false
	for i, d := range defs {
		if d.Name == def.Name {
			defs[i] = def
			replaced = true
			break
		}
	}
	if !replaced {
		defs = append(defs, def)
	}
	return s.save(defs)
}

// Delete removes the definition called name
func (s *DefinitionStore) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	defs, err := s.load()
	if err != nil {
		return err
	}
	for i, d := range defs {
		if d.Name == name {
			return s.save(append(defs[:i], defs[i+1:]...))
		}
	}
	return fmt.Errorf("%w: %s", models.ErrDefinitionNotFound, name)
}
