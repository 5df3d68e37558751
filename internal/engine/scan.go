package engine

// byteClass marks what a byte of source belongs to.
type byteClass uint8

const (
	classCode byteClass = iota
	classString
	classComment
)

// classify labels every byte as code, string or comment. Line comments start
// with "//"; strings are double-quoted, support backslash escapes and end at
// a newline when unterminated.
func classify(content []byte) []byteClass {
	out := make([]byteClass, len(content))
	for i := 0; i < len(content); i++ {
		switch {
		case content[i] == '/' && i+1 < len(content) && content[i+1] == '/':
			for i < len(content) && content[i] != '\n' {
				out[i] = classComment
				i++
			}
			i-- // перевод строки остаётся кодом
		case content[i] == '"':
			out[i] = classString
			i++
			for i < len(content) && content[i] != '\n' {
				out[i] = classString
				if content[i] == '\\' && i+1 < len(content) && content[i+1] != '\n' {
					i++
					out[i] = classString
				} else if content[i] == '"' {
					break
				}
				i++
			}
			if i < len(content) && content[i] == '\n' {
				i--
			}
		}
	}
	return out
}

func isIdentStart(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isIdentPart(b byte) bool {
	return isIdentStart(b) || (b >= '0' && b <= '9')
}

type tokenKind uint8

const (
	tokIdent tokenKind = iota
	tokOpen
	tokClose
)

type token struct {
	kind  tokenKind
	start int
	end   int
	text  string
}

// codeTokens returns identifiers and curly braces found in code bytes.
func codeTokens(content []byte, classes []byteClass) []token {
	var out []token
	for i := 0; i < len(content); i++ {
		if classes[i] != classCode {
			continue
		}
		b := content[i]
		switch {
		case b == '{':
			out = append(out, token{kind: tokOpen, start: i, end: i + 1})
		case b == '}':
			out = append(out, token{kind: tokClose, start: i, end: i + 1})
		case isIdentStart(b) && (i == 0 || !isIdentPart(content[i-1])):
			j := i + 1
			for j < len(content) && classes[j] == classCode && isIdentPart(content[j]) {
				j++
			}
			out = append(out, token{kind: tokIdent, start: i, end: j, text: string(content[i:j])})
			i = j - 1
		}
	}
	return out
}
