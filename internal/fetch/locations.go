package fetch

import "squiggle/internal/diag"

// LocationsToTag picks the locations a diagnostic decorates. By default it is
// the primary location. A diagnostic carrying unnecessary-code indices tags
// those additional locations instead; invalid indices are ignored, and if none
// remain the primary location is used.
func LocationsToTag(d *diag.Diagnostic) []diag.Location {
	indices, ok := d.UnnecessaryIndices()
	if !ok || len(indices) == 0 {
		return []diag.Location{d.Location}
	}
	out := make([]diag.Location, 0, len(indices))
	for _, i := range indices {
		if i < len(d.Additional) {
			out = append(out, d.Additional[i])
		}
	}
	if len(out) == 0 {
		return []diag.Location{d.Location}
	}
	return out
}
