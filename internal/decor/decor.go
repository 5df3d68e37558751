// Package decor holds decoration candidates: a span on one snapshot plus a
// payload derived from a diagnostic.
package decor

import (
	"fmt"

	"squiggle/internal/diag"
	"squiggle/internal/source"
)

// RenderKind is the visual class of a decoration.
type RenderKind uint8

const (
	RenderNone RenderKind = iota
	RenderError
	RenderWarning
	RenderInfo
	RenderFade
)

func (k RenderKind) String() string {
	switch k {
	case RenderNone:
		return "none"
	case RenderError:
		return "error"
	case RenderWarning:
		return "warning"
	case RenderInfo:
		return "info"
	case RenderFade:
		return "fade"
	}
	return fmt.Sprintf("render(%d)", uint8(k))
}

// Classifier maps severity and custom tags to a render kind. ok=false means
// the diagnostic produces no decoration.
type Classifier func(sev diag.Severity, tags []string) (RenderKind, bool)

// Payload is the rendered content of a decoration. Two payloads compare equal
// with == when they would render identically, whatever their span.
type Payload struct {
	Render     RenderKind
	Severity   diag.Severity
	Code       diag.Code
	Message    string
	Suppressed bool
}

// Decoration is a candidate anchored on a specific snapshot, which the
// surrounding Set records.
type Decoration struct {
	Span       source.Span
	Kind       diag.Kind
	Diagnostic diag.ID
	Payload    Payload
}

func (d Decoration) String() string {
	return fmt.Sprintf("%s %s %s %s", d.Span, d.Kind, d.Payload.Render, d.Payload.Code.ID())
}

// Build makes the payload for d, or reports false when classify rejects it.
func Build(d *diag.Diagnostic, classify Classifier) (Payload, bool) {
	render, ok := classify(d.Severity, d.Tags)
	if !ok || render == RenderNone {
		return Payload{}, false
	}
	return Payload{
		Render:     render,
		Severity:   d.Severity,
		Code:       d.Code,
		Message:    d.Message,
		Suppressed: d.Suppressed,
	}, true
}

// Set is a decoration list together with the snapshot its spans refer to.
type Set struct {
	Snapshot *source.Snapshot
	Items    []Decoration
}

func (s Set) Len() int { return len(s.Items) }
