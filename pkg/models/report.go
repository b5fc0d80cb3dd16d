package models

import "time"

// ScanStatus represents the overall outcome of a scan or merge
type ScanStatus string

const (
	// StatusIdentical indicates no differences were recorded
	StatusIdentical ScanStatus = "identical"
	// StatusDifferent indicates differences were recorded
	StatusDifferent ScanStatus = "different"
	// StatusErrors indicates at least one processing error was recorded
	StatusErrors ScanStatus = "errors"
)

// ExitCode returns the process exit code for the status
func (s ScanStatus) ExitCode() int {
	switch s {
	case StatusIdentical:
		return 0
	case StatusDifferent, StatusErrors:
		return 1
	default:
		return 2
	}
}

// Summary aggregates a scan's results
type Summary struct {
	ScanID       string
	Name         string
	StartedAt    time.Time
	Duration     time.Duration
	Total        int
	ByReason     map[Reason]int
	ByResolution map[Resolution]int
	Status       ScanStatus
}

// Summary counts the scan's results by reason and resolution
func (s *Scan) Summary() Summary {
	results := s.Results()
	sum := Summary{
		ScanID:       s.ID,
		Name:         s.Name(),
		StartedAt:    s.StartedAt,
		Duration:     s.Duration(),
		Total:        len(results),
		ByReason:     make(map[Reason]int),
		ByResolution: make(map[Resolution]int),
		Status:       StatusIdentical,
	}
	for _, r := range results {
		sum.ByReason[r.Reason]++
		sum.ByResolution[r.Resolution]++
	}
	switch {
	case sum.ByResolution[ResolutionProcessingError] > 0:
		sum.Status = StatusErrors
	case sum.Total > 0:
		sum.Status = StatusDifferent
	}
	return sum
}
