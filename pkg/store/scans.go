package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sdejongh/assurance/pkg/models"
)

// ScanStore keeps one JSON document per scan in <root>/scans
type ScanStore struct {
	dir string
	mu  sync.Mutex
}

// ScanEntry is the listing view of a stored scan
type ScanEntry struct {
	ID        string
	Name      string
	StartedAt time.Time
	Results   int
	Status    models.ScanStatus
}

// NewScanStore creates a store rooted at root
func NewScanStore(root string) *ScanStore {
	return &ScanStore{dir: filepath.Join(root, "scans")}
}

// Dir returns the directory holding scan files
func (s *ScanStore) Dir() string {
	return s.dir
}

func (s *ScanStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Save writes scan, replacing any previous version
func (s *ScanStore) Save(scan *models.Scan) error {
	if scan == nil || scan.ID == "" {
		return &models.ValidationError{Field: "scan", Message: "scan has no id"}
	}
	data, err := json.MarshalIndent(scan, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal scan: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return writeFileAtomic(s.path(scan.ID), data)
}

// Load reads the scan whose id is, or uniquely starts with, ref
func (s *ScanStore) Load(ref string) (*models.Scan, error) {
	id, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}
	return s.read(id)
}

func (s *ScanStore) read(id string) (*models.Scan, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", models.ErrScanNotFound, id)
		}
		return nil, fmt.Errorf("failed to read scan: %w", err)
	}

	scan := &models.Scan{}
	if err := json.Unmarshal(data, scan); err != nil {
		return nil, fmt.Errorf("failed to parse scan %s: %w", id, err)
	}
	return scan, nil
}

// resolve expands an id prefix to a stored id
func (s *ScanStore) resolve(ref string) (string, error) {
	if ref == "" || strings.ContainsAny(ref, `/\`) {
		return "", fmt.Errorf("%w: %q", models.ErrScanNotFound, ref)
	}
	if _, err := os.Stat(s.path(ref)); err == nil {
		return ref, nil
	}

	ids, err := s.ids()
	if err != nil {
		return "", err
	}
	var matches []string
	for _, id := range ids {
		if strings.HasPrefix(id, ref) {
			matches = append(matches, id)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s", models.ErrScanNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("scan id %q is ambiguous (%d matches)", ref, len(matches))
	}
}

func (s *ScanStore) ids() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list scans: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), ".json"))
	}
	return ids, nil
}

// List returns every stored scan, most recent first.
// Unreadable files are skipped.
func (s *ScanStore) List() ([]ScanEntry, error) {
	ids, err := s.ids()
	if err != nil {
		return nil, err
	}

	entries := make([]ScanEntry, 0, len(ids))
	for _, id := range ids {
		scan, err := s.read(id)
		if err != nil {
			continue
		}
		sum := scan.Summary()
		entries = append(entries, ScanEntry{
			ID:        scan.ID,
			Name:      sum.Name,
			StartedAt: scan.StartedAt,
			Results:   sum.Total,
			Status:    sum.Status,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].StartedAt.After(entries[j].StartedAt)
	})
	return entries, nil
}

// Delete removes a stored scan
func (s *ScanStore) Delete(ref string) error {
	id, err := s.resolve(ref)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path(id)); err != nil {
		return fmt.Errorf("failed to delete scan: %w", err)
	}
	return nil
}
