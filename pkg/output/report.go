package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/sdejongh/assurance/pkg/models"
)

// Report renders a scan and its results
type Report interface {
	Write(w io.Writer, scan *models.Scan) error
	Name() string
}

// NewReport returns the report for format ("human" or "json")
func NewReport(format string, verbose bool) (Report, error) {
	switch format {
	case "", "human":
		return &HumanReport{Verbose: verbose}, nil
	case "json":
		return &JSONReport{}, nil
	default:
		return nil, &models.ValidationError{
			Field:   "output.format",
			Message: fmt.Sprintf("unknown format %q (use: human, json)", format),
		}
	}
}

// WriteReportFile writes the report of scan to path.
// Nothing is written when the scan recorded no results.
func WriteReportFile(scan *models.Scan, path string, format string) error {
	if scan.Len() == 0 {
		return nil
	}
	report, err := NewReport(format, true)
	if err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	if err := report.Write(file, scan); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// sortedResults orders results by source then target path
func sortedResults(scan *models.Scan) []*models.ComparisonResult {
	results := scan.Results()
	sort.Slice(results, func(i, j int) bool {
		a, b := results[i].Key(), results[j].Key()
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		return a.Target < b.Target
	})
	return results
}

var (
	reasonColor     = color.New(color.FgYellow)
	resolvedColor   = color.New(color.FgGreen)
	errorColor      = color.New(color.FgRed)
	unresolvedColor = color.New(color.Faint)
	titleColor      = color.New(color.Bold, color.FgCyan)
)

// HumanReport prints a summary and, when verbose, every result grouped by reason
type HumanReport struct {
	Verbose bool
}

// Name returns the report name
func (r *HumanReport) Name() string {
	return "human"
}

// Write renders scan to w
func (r *HumanReport) Write(w io.Writer, scan *models.Scan) error {
	sum := scan.Summary()

	fmt.Fprintf(w, "%s %s\n", titleColor.Sprint("Scan"), sum.Name)
	fmt.Fprintf(w, "  ID:        %s\n", sum.ScanID)
	fmt.Fprintf(w, "  Started:   %s (%s)\n", sum.StartedAt.Format(time.RFC3339), humanize.Time(sum.StartedAt))
	fmt.Fprintf(w, "  Duration:  %s\n", sum.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "  Results:   %s\n", humanize.Comma(int64(sum.Total)))

	if sum.Total > 0 {
		fmt.Fprintf(w, "\nBy reason:\n")
		for _, reason := range models.Reasons {
			if n := sum.ByReason[reason]; n > 0 {
				fmt.Fprintf(w, "  %-26s %s\n", reasonColor.Sprint(reason), humanize.Comma(int64(n)))
			}
		}
		fmt.Fprintf(w, "\nBy resolution:\n")
		for _, resolution := range models.Resolutions {
			if n := sum.ByResolution[resolution]; n > 0 {
				fmt.Fprintf(w, "  %-28s %s\n", resolutionColor(resolution).Sprint(resolution), humanize.Comma(int64(n)))
			}
		}
	}

	if r.Verbose && sum.Total > 0 {
		byReason := make(map[models.Reason][]*models.ComparisonResult)
		for _, result := range sortedResults(scan) {
			byReason[result.Reason] = append(byReason[result.Reason], result)
		}
		for _, reason := range models.Reasons {
			results := byReason[reason]
			if len(results) == 0 {
				continue
			}
			fmt.Fprintf(w, "\n%s (%d)\n", reasonColor.Sprint(reason), len(results))
			for _, result := range results {
				fmt.Fprintf(w, "  %s  %s -> %s  %s\n",
					result.ID,
					orDash(result.Source.PathOrEmpty()),
					orDash(result.Target.PathOrEmpty()),
					resolutionColor(result.Resolution).Sprint(result.Resolution))
				if result.ResolutionError != "" {
					fmt.Fprintf(w, "      %s\n", errorColor.Sprint(result.ResolutionError))
				}
			}
		}
	}

	fmt.Fprintf(w, "\nStatus: %s\n", sum.Status)
	return nil
}

func resolutionColor(resolution models.Resolution) *color.Color {
	switch resolution {
	case models.ResolutionUnresolved:
		return unresolvedColor
	case models.ResolutionProcessingError:
		return errorColor
	default:
		return resolvedColor
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// JSONReport encodes the summary and every result as one JSON document
type JSONReport struct{}

// JSONReportData is the top-level JSON document
type JSONReportData struct {
	ScanID       string           `json:"scan_id"`
	Name         string           `json:"name"`
	StartedAt    time.Time        `json:"started_at"`
	Duration     string           `json:"duration"`
	DurationMs   int64            `json:"duration_ms"`
	Total        int              `json:"total"`
	ByReason     map[string]int   `json:"by_reason"`
	ByResolution map[string]int   `json:"by_resolution"`
	Status       string           `json:"status"`
	Results      []JSONResultData `json:"results"`
}

// JSONResultData is one comparison result
type JSONResultData struct {
	ID         string `json:"id"`
	Source     string `json:"source,omitempty"`
	Target     string `json:"target,omitempty"`
	Reason     string `json:"reason"`
	Resolution string `json:"resolution"`
	Error      string `json:"error,omitempty"`
}

// Name returns the report name
func (r *JSONReport) Name() string {
	return "json"
}

// Write renders scan to w
func (r *JSONReport) Write(w io.Writer, scan *models.Scan) error {
	sum := scan.Summary()
	data := JSONReportData{
		ScanID:       sum.ScanID,
		Name:         sum.Name,
		StartedAt:    sum.StartedAt,
		Duration:     sum.Duration.Round(time.Millisecond).String(),
		DurationMs:   sum.Duration.Milliseconds(),
		Total:        sum.Total,
		ByReason:     make(map[string]int, len(sum.ByReason)),
		ByResolution: make(map[string]int, len(sum.ByResolution)),
		Status:       string(sum.Status),
		Results:      []JSONResultData{},
	}
	for reason, n := range sum.ByReason {
		data.ByReason[string(reason)] = n
	}
	for resolution, n := range sum.ByResolution {
		data.ByResolution[string(resolution)] = n
	}
	for _, result := range sortedResults(scan) {
		data.Results = append(data.Results, JSONResultData{
			ID:         result.ID,
			Source:     result.Source.PathOrEmpty(),
			Target:     result.Target.PathOrEmpty(),
			Reason:     string(result.Reason),
			Resolution: string(result.Resolution),
			Error:      result.ResolutionError,
		})
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
