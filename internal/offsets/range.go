// Package offsets decides which message offsets to show for a partition.
package offsets

import (
	"strconv"
	"strings"

	"kafkaviz/internal/domain"
)

// DefaultWindow is how far back from the newest message the default range reaches
const DefaultWindow = 5

// Resolve computes the range to display for a partition holding
// partitionLength messages. An empty requested string selects the default
// window ending at the newest offset; anything else must be "<start>-<end>".
func Resolve(requested string, partitionLength int64) (domain.MessageRange, error) {
	return ResolveWindow(requested, partitionLength, DefaultWindow)
}

// ResolveWindow is Resolve with a configurable default window.
func ResolveWindow(requested string, partitionLength int64, window int64) (domain.MessageRange, error) {
	if partitionLength <= 0 {
		return domain.MessageRange{}, nil
	}
	if strings.TrimSpace(requested) == "" {
		if window < 0 {
			window = 0
		}
		end := partitionLength - 1
		start := end - window
		if start < 0 {
			start = 0
		}
		return domain.MessageRange{Start: start, End: end}, nil
	}
	return Parse(requested)
}

// Parse reads "<start>-<end>" where both bounds are non-negative decimal
// integers and start <= end. The values are returned as given, without
// clamping to the partition length.
func Parse(text string) (domain.MessageRange, error) {
	trimmed := strings.TrimSpace(text)
	startText, endText, ok := strings.Cut(trimmed, "-")
	if !ok {
		return domain.MessageRange{}, &domain.InvalidRangeFormatError{Input: text, Reason: "missing '-'"}
	}
	start, err := parseOffset(startText)
	if err != nil {
		return domain.MessageRange{}, &domain.InvalidRangeFormatError{Input: text, Reason: "bad start offset"}
	}
	end, err := parseOffset(endText)
	if err != nil {
		return domain.MessageRange{}, &domain.InvalidRangeFormatError{Input: text, Reason: "bad end offset"}
	}
	if start > end {
		return domain.MessageRange{}, &domain.InvalidRangeFormatError{Input: text, Reason: "start is after end"}
	}
	return domain.MessageRange{Start: start, End: end}, nil
}

func parseOffset(s string) (int64, error) {
	s = strings.TrimSpace(s)
	// ParseInt accepts a leading sign; offsets never carry one
	if s == "" || s[0] == '+' || s[0] == '-' {
		return 0, strconv.ErrSyntax
	}
	return strconv.ParseInt(s, 10, 64)
}
