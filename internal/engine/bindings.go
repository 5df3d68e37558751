package engine

import (
	"context"
	"fmt"

	"squiggle/internal/diag"
	"squiggle/internal/source"
)

type binding struct {
	name      string
	decl      [2]int // ключевое слово .. конец оператора
	nameStart int
	nameEnd   int
}

// Bindings reports let/var bindings that are never referenced and names
// declared twice in the same block.
//
// An unused binding is reported as hidden with the whole declaration as its
// primary location and the name as the only additional location, which is
// also the one marked unnecessary. Names starting with '_' are exempt.
type Bindings struct{}

func (Bindings) Name() string    { return "bindings" }
func (Bindings) Kind() diag.Kind { return diag.KindSemantic }

func (Bindings) Analyze(ctx context.Context, snap *source.Snapshot, r diag.Reporter) error {
	content := snap.Content()
	classes := classify(content)
	tokens := codeTokens(content, classes)
	if err := ctx.Err(); err != nil {
		return err
	}

	scopes := []map[string]binding{{}}
	var decls []binding
	declNames := make(map[int]bool)
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		switch tok.kind {
		case tokOpen:
			scopes = append(scopes, map[string]binding{})
			continue
		case tokClose:
			if len(scopes) > 1 {
				scopes = scopes[:len(scopes)-1]
			}
			continue
		}
		if (tok.text != "let" && tok.text != "var") || i+1 >= len(tokens) || tokens[i+1].kind != tokIdent {
			continue
		}
		name := tokens[i+1]
		b := binding{
			name:      name.text,
			decl:      [2]int{tok.start, statementEnd(content, classes, name.end)},
			nameStart: name.start,
			nameEnd:   name.end,
		}
		declNames[name.start] = true
		top := scopes[len(scopes)-1]
		if prev, ok := top[b.name]; ok {
			diag.ReportError(r, diag.SemRedeclared, location(snap, b.nameStart, b.nameEnd),
				fmt.Sprintf("'%s' is already declared in this block", b.name)).
				WithTag(diag.TagBuildError).
				WithAdditional(location(snap, prev.nameStart, prev.nameEnd)).
				Emit()
		}
		top[b.name] = b
		decls = append(decls, b)
		i++
	}

	uses := make(map[string]int)
	for _, tok := range tokens {
		if tok.kind == tokIdent && !declNames[tok.start] {
			uses[tok.text]++
		}
	}
	for _, b := range decls {
		if uses[b.name] > 0 || b.name[0] == '_' {
			continue
		}
		diag.ReportHidden(r, diag.SemUnusedBinding, location(snap, b.decl[0], b.decl[1]),
			fmt.Sprintf("'%s' is declared but never used", b.name)).
			WithTag(diag.TagUnnecessary).
			WithAdditional(location(snap, b.nameStart, b.nameEnd)).
			WithUnnecessary(0).
			Emit()
	}
	return nil
}

// statementEnd returns the end of the statement starting before from: the
// first ';' in code, a comment or the end of the line, without trailing
// blanks.
func statementEnd(content []byte, classes []byteClass, from int) int {
	end := from
	for end < len(content) && content[end] != '\n' && classes[end] != classComment {
		if classes[end] == classCode && content[end] == ';' {
			return end + 1
		}
		end++
	}
	for end > from && (content[end-1] == ' ' || content[end-1] == '\t') {
		end--
	}
	return end
}
