// Package render decides how diagnostics look as decorations and prints
// published decoration sets.
package render

import (
	"squiggle/internal/decor"
	"squiggle/internal/diag"
)

// Classify is the default decor.Classifier. The unnecessary tag fades,
// build-error forces an error squiggle, otherwise the severity decides.
// Hidden diagnostics without tags produce nothing.
func Classify(sev diag.Severity, tags []string) (decor.RenderKind, bool) {
	for _, tag := range tags {
		if tag == diag.TagUnnecessary {
			return decor.RenderFade, true
		}
	}
	for _, tag := range tags {
		if tag == diag.TagBuildError {
			return decor.RenderError, true
		}
	}
	switch sev {
	case diag.SevError:
		return decor.RenderError, true
	case diag.SevWarning:
		return decor.RenderWarning, true
	case diag.SevInfo:
		return decor.RenderInfo, true
	}
	return decor.RenderNone, false
}

var _ decor.Classifier = Classify
