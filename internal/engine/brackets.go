package engine

import (
	"context"
	"fmt"

	"squiggle/internal/diag"
	"squiggle/internal/source"
)

var closerOf = map[byte]byte{'(': ')', '[': ']', '{': '}'}

// Brackets reports unbalanced (), [] and {} outside strings and comments.
type Brackets struct{}

func (Brackets) Name() string    { return "brackets" }
func (Brackets) Kind() diag.Kind { return diag.KindSyntax }

func (Brackets) Analyze(ctx context.Context, snap *source.Snapshot, r diag.Reporter) error {
	content := snap.Content()
	classes := classify(content)
	var stack []int
	for i, b := range content {
		if classes[i] != classCode {
			continue
		}
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		switch b {
		case '(', '[', '{':
			stack = append(stack, i)
		case ')', ']', '}':
			if len(stack) == 0 {
				diag.ReportError(r, diag.SynUnmatchedClose, location(snap, i, i+1),
					fmt.Sprintf("unmatched '%c'", b)).Emit()
				continue
			}
			open := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if want := closerOf[content[open]]; want != b {
				diag.ReportError(r, diag.SynMismatchedPair, location(snap, i, i+1),
					fmt.Sprintf("expected '%c' to close '%c', found '%c'", want, content[open], b)).
					WithAdditional(location(snap, open, open+1)).
					Emit()
			}
		}
	}
	for _, open := range stack {
		diag.ReportError(r, diag.SynUnclosedOpen, location(snap, open, open+1),
			fmt.Sprintf("'%c' is never closed", content[open])).Emit()
	}
	return nil
}
