package models

import (
	"encoding/json"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
)

// deletedItemsTimeLayout names per-scan deleted items directories
const deletedItemsTimeLayout = "01_02_2006_15_04_05"

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Scan is one execution of a comparison. Results are appended concurrently
// while comparing and mutated in place while merging.
type Scan struct {
	ID          string
	Definition  *ScanDefinition
	StartedAt   time.Time
	CompletedAt time.Time

	mu      sync.Mutex
	results []*ComparisonResult
}

// NewScan starts a scan, optionally tied to a definition
func NewScan(definition *ScanDefinition) *Scan {
	return &Scan{
		ID:         uuid.New().String(),
		Definition: definition,
		StartedAt:  time.Now(),
	}
}

// AddResult appends result and claims it for this scan
func (s *Scan) AddResult(result *ComparisonResult) {
	if result == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	result.ScanID = s.ID
	s.results = append(s.results, result)
}

// Results returns a snapshot of the results slice
func (s *Scan) Results() []*ComparisonResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*ComparisonResult, len(s.results))
	copy(out, s.results)
	return out
}

// Result finds a result by id
func (s *Scan) Result(id string) (*ComparisonResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.results {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, ErrResultNotFound
}

// Len returns the number of results recorded so far
func (s *Scan) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.results)
}

// Complete stamps the completion time
func (s *Scan) Complete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CompletedAt = time.Now()
}

// IsComplete reports whether Complete was called
func (s *Scan) IsComplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.CompletedAt.IsZero()
}

// Duration returns the processing time, or zero while running
func (s *Scan) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CompletedAt.IsZero() {
		return 0
	}
	return s.CompletedAt.Sub(s.StartedAt)
}

// Depth returns the effective comparison flags
func (s *Scan) Depth() Depth {
	if s.Definition == nil {
		return FullDepth
	}
	return s.Definition.Depth()
}

// Name returns the definition name or a placeholder for ad hoc scans
func (s *Scan) Name() string {
	if s.Definition == nil || s.Definition.Name == "" {
		return "anonymous_scan"
	}
	return s.Definition.Name
}

// DeletedItemsDir returns the directory holding items deleted by merges of this scan
func (s *Scan) DeletedItemsDir(root string) string {
	if root == "" {
		return ""
	}
	name := unsafeNameChars.ReplaceAllString(s.Name(), "_")
	return filepath.Join(root, name+"_"+s.StartedAt.Format(deletedItemsTimeLayout))
}

// scanJSON is the persisted form of a Scan
type scanJSON struct {
	ID          string              `json:"id"`
	Definition  *ScanDefinition     `json:"definition,omitempty"`
	StartedAt   time.Time           `json:"started_at"`
	CompletedAt time.Time           `json:"completed_at"`
	Results     []*ComparisonResult `json:"results"`
}

// MarshalJSON implements json.Marshaler
func (s *Scan) MarshalJSON() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	results := s.results
	if results == nil {
		results = []*ComparisonResult{}
	}
	return json.Marshal(scanJSON{
		ID:          s.ID,
		Definition:  s.Definition,
		StartedAt:   s.StartedAt,
		CompletedAt: s.CompletedAt,
		Results:     results,
	})
}

// UnmarshalJSON implements json.Unmarshaler
func (s *Scan) UnmarshalJSON(data []byte) error {
	var raw scanJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ID = raw.ID
	s.Definition = raw.Definition
	s.StartedAt = raw.StartedAt
	s.CompletedAt = raw.CompletedAt
	s.results = raw.Results
	return nil
}
