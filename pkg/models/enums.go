package models

import (
	"fmt"
	"strings"
)

// Reason explains why a comparison result was recorded
type Reason string

const (
	// ReasonFileDirectoryMismatch means one side is a directory and the other a file
	ReasonFileDirectoryMismatch Reason = "FILE_DIRECTORY_MISMATCH"
	// ReasonSymbolicLinkMismatch means link status or link targets differ
	ReasonSymbolicLinkMismatch Reason = "SYMBOLIC_LINK_MISMATCH"
	// ReasonCompareFailed means the comparator found the files unequal
	ReasonCompareFailed Reason = "COMPARE_FAILED"
	// ReasonSourceDoesNotExist means only the target side exists
	ReasonSourceDoesNotExist Reason = "SOURCE_DOES_NOT_EXIST"
	// ReasonTargetDoesNotExist means only the source side exists
	ReasonTargetDoesNotExist Reason = "TARGET_DOES_NOT_EXIST"
	// ReasonFileNull means one side of the pair was missing entirely
	ReasonFileNull Reason = "FILE_NULL"
	// ReasonUndetermined means the pair could not be compared
	ReasonUndetermined Reason = "UNDETERMINED"
)

// Reasons lists every reason in report order
var Reasons = []Reason{
	ReasonUndetermined,
	ReasonFileNull,
	ReasonFileDirectoryMismatch,
	ReasonSymbolicLinkMismatch,
	ReasonTargetDoesNotExist,
	ReasonSourceDoesNotExist,
	ReasonCompareFailed,
}

// Resolution records how a comparison result was handled
type Resolution string

const (
	// ResolutionUnresolved is the initial state of every result
	ResolutionUnresolved Resolution = "UNRESOLVED"
	// ResolutionReplaceSource means the source was overwritten or created from the target
	ResolutionReplaceSource Resolution = "REPLACE_SOURCE"
	// ResolutionReplaceTarget means the target was overwritten or created from the source
	ResolutionReplaceTarget Resolution = "REPLACE_TARGET"
	// ResolutionDeleteSource means the source was moved to the deleted items location
	ResolutionDeleteSource Resolution = "DELETE_SOURCE"
	// ResolutionDeleteTarget means the target was moved to the deleted items location
	ResolutionDeleteTarget Resolution = "DELETE_TARGET"
	// ResolutionKeepBoth means both variants were preserved under distinct names
	ResolutionKeepBoth Resolution = "KEEP_BOTH"
	// ResolutionProcessingError means the merge or comparison failed; see ResolutionError
	ResolutionProcessingError Resolution = "PROCESSING_ERROR_ENCOUNTERED"
)

// Resolutions lists every resolution in report order
var Resolutions = []Resolution{
	ResolutionUnresolved,
	ResolutionReplaceTarget,
	ResolutionReplaceSource,
	ResolutionDeleteTarget,
	ResolutionDeleteSource,
	ResolutionKeepBoth,
	ResolutionProcessingError,
}

// IsDelete reports whether the resolution can be reversed by a restore
func (r Resolution) IsDelete() bool {
	return r == ResolutionDeleteSource || r == ResolutionDeleteTarget
}

// MergeStrategy selects the merge engine variant
type MergeStrategy string

const (
	// StrategySource makes the target match the source
	StrategySource MergeStrategy = "source"
	// StrategyTarget makes the source match the target
	StrategyTarget MergeStrategy = "target"
	// StrategyBoth fills gaps on either side and keeps both variants of conflicts
	StrategyBoth MergeStrategy = "both"
)

// ParseMergeStrategy parses a strategy name, case-insensitively
func ParseMergeStrategy(s string) (MergeStrategy, error) {
	switch MergeStrategy(strings.ToLower(strings.TrimSpace(s))) {
	case StrategySource:
		return StrategySource, nil
	case StrategyTarget:
		return StrategyTarget, nil
	case StrategyBoth, "bidirectional":
		return StrategyBoth, nil
	default:
		return "", &ValidationError{
			Field:   "strategy",
			Message: fmt.Sprintf("unknown merge strategy %q (use: source, target, both)", s),
		}
	}
}

// ComparisonDepth selects the comparator variant
type ComparisonDepth string

const (
	// DepthDeep compares all attributes and the content digest
	DepthDeep ComparisonDepth = "deep"
	// DepthQuick gates the digest behind a cheap attribute check
	DepthQuick ComparisonDepth = "quick"
)

// DepthFor maps the deep-scan flag to a comparison depth
func DepthFor(deepScan bool) ComparisonDepth {
	if deepScan {
		return DepthDeep
	}
	return DepthQuick
}
