package diag

import (
	"slices"
	"strconv"
	"strings"

	"squiggle/internal/source"
)

type (
	// ID is the stable identity of one diagnostic record.
	ID string
	// OwnerID names the analysis run that produced a diagnostic.
	OwnerID string
)

// Location is an offset range on a document, expressed against whichever
// snapshot the producer analysed.
type Location struct {
	Document source.DocumentID
	Span     source.Span
}

// Custom classification tags.
const (
	TagUnnecessary = "unnecessary"
	TagBuildError  = "build-error"
)

// PropUnnecessaryIndices holds a comma separated list of indices into
// Additional naming the locations to fade instead of the primary one.
const PropUnnecessaryIndices = "unnecessary-indices"

// Diagnostic is an immutable analysis finding. Builders and With* helpers
// return modified copies and never share slices with their input.
type Diagnostic struct {
	ID         ID
	Code       Code
	Severity   Severity
	Message    string
	Tags       []string
	Location   Location
	Additional []Location
	Suppressed bool
	Owner      OwnerID
	Properties map[string]string
}

// HasTag reports whether tag is attached.
func (d *Diagnostic) HasTag(tag string) bool {
	return slices.Contains(d.Tags, tag)
}

// UnnecessaryIndices decodes PropUnnecessaryIndices. ok is false when the
// property is absent or malformed.
func (d *Diagnostic) UnnecessaryIndices() (indices []int, ok bool) {
	raw, present := d.Properties[PropUnnecessaryIndices]
	if !present {
		return nil, false
	}
	raw = strings.Trim(raw, "[] ")
	if raw == "" {
		return nil, true
	}
	for _, part := range strings.Split(raw, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 {
			return nil, false
		}
		indices = append(indices, n)
	}
	return indices, true
}

func encodeIndices(indices []int) string {
	parts := make([]string, len(indices))
	for i, n := range indices {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}
