package models

import (
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
)

// ScanMappingDefinition pairs one source root with one target root.
// Exclusions are paths skipped entirely while comparing this mapping.
type ScanMappingDefinition struct {
	ID         string           `json:"id" yaml:"id"`
	Source     *FileReference   `json:"source" yaml:"source"`
	Target     *FileReference   `json:"target" yaml:"target"`
	Exclusions []*FileReference `json:"exclusions,omitempty" yaml:"exclusions,omitempty"`
}

// NewScanMapping creates a mapping between two roots
func NewScanMapping(source, target string) *ScanMappingDefinition {
	return &ScanMappingDefinition{
		ID:     uuid.New().String(),
		Source: NewFileReference(source),
		Target: NewFileReference(target),
	}
}

// AddExclusion excludes path from this mapping
func (m *ScanMappingDefinition) AddExclusion(path string) *FileReference {
	ref := NewFileReference(path)
	if ref == nil {
		return nil
	}
	for _, existing := range m.Exclusions {
		if existing.Path == ref.Path {
			return existing
		}
	}
	ref.MappingID = m.ID
	m.Exclusions = append(m.Exclusions, ref)
	return ref
}

// RemoveExclusion drops path from the exclusion set
func (m *ScanMappingDefinition) RemoveExclusion(path string) bool {
	clean := filepath.Clean(path)
	for i, existing := range m.Exclusions {
		if existing.Path == clean {
			m.Exclusions = append(m.Exclusions[:i], m.Exclusions[i+1:]...)
			return true
		}
	}
	return false
}

// ExclusionPaths returns the excluded paths
func (m *ScanMappingDefinition) ExclusionPaths() []string {
	paths := make([]string, 0, len(m.Exclusions))
	for _, ex := range m.Exclusions {
		if !ex.IsNull() {
			paths = append(paths, ex.Path)
		}
	}
	return paths
}

func (m *ScanMappingDefinition) String() string {
	return fmt.Sprintf("%s -> %s", m.Source, m.Target)
}

// ScanDefinition is a named, reusable set of mappings plus comparison options
type ScanDefinition struct {
	ID                           string                   `json:"id" yaml:"id"`
	Name                         string                   `json:"name" yaml:"name"`
	Mappings                     []*ScanMappingDefinition `json:"mappings" yaml:"mappings"`
	MergeStrategy                MergeStrategy            `json:"merge_strategy" yaml:"merge_strategy"`
	AutoResolveConflicts         bool                     `json:"auto_resolve_conflicts" yaml:"auto_resolve_conflicts"`
	IncludeNonCreationTimestamps bool                     `json:"include_non_creation_timestamps" yaml:"include_non_creation_timestamps"`
	IncludeAdvancedAttributes    bool                     `json:"include_advanced_attributes" yaml:"include_advanced_attributes"`
}

// NewScanDefinition creates an empty definition using the source-wins strategy
func NewScanDefinition(name string) *ScanDefinition {
	return &ScanDefinition{
		ID:            uuid.New().String(),
		Name:          name,
		MergeStrategy: StrategySource,
	}
}

// AddMapping appends a mapping and returns it
func (d *ScanDefinition) AddMapping(source, target string) *ScanMappingDefinition {
	m := NewScanMapping(source, target)
	d.Mappings = append(d.Mappings, m)
	return m
}

// Mapping looks a mapping up by id
func (d *ScanDefinition) Mapping(id string) *ScanMappingDefinition {
	for _, m := range d.Mappings {
		if m.ID == id {
			return m
		}
	}
	return nil
}

// Validate checks that the definition can be scanned
func (d *ScanDefinition) Validate() error {
	if d == nil {
		return fmt.Errorf("%w: no scan definition provided", ErrIncompleteScanDefinition)
	}
	if len(d.Mappings) == 0 {
		return fmt.Errorf("%w: %q has no mappings", ErrIncompleteScanDefinition, d.Name)
	}
	for i, m := range d.Mappings {
		if m == nil {
			return fmt.Errorf("%w: mapping %d is empty", ErrIncompleteScanDefinition, i)
		}
		if m.Source.IsNull() || m.Target.IsNull() {
			return fmt.Errorf("%w: mapping %d has a null source or target", ErrNullFileReference, i)
		}
	}
	if d.MergeStrategy != "" {
		if _, err := ParseMergeStrategy(string(d.MergeStrategy)); err != nil {
			return err
		}
	}
	return nil
}

// Depth returns the comparison flags configured on the definition
func (d *ScanDefinition) Depth() Depth {
	return Depth{
		IncludeTimestamps:         d.IncludeNonCreationTimestamps,
		IncludeAdvancedAttributes: d.IncludeAdvancedAttributes,
	}
}

// Depth holds the two comparison flags applied to regular files
type Depth struct {
	IncludeTimestamps         bool
	IncludeAdvancedAttributes bool
}

// FullDepth is used when a scan has no definition
var FullDepth = Depth{IncludeTimestamps: true, IncludeAdvancedAttributes: true}
