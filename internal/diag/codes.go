package diag

import "fmt"

type Code uint16

const (
	UnknownCode Code = 0

	// Синтаксические (встроенные)
	SynInfo           Code = 1000
	SynUnclosedOpen   Code = 1001
	SynUnmatchedClose Code = 1002
	SynMismatchedPair Code = 1003

	// Стиль (плагины синтаксиса)
	StyInfo               Code = 2000
	StyTrailingWhitespace Code = 2001
	StyLongLine           Code = 2002

	// Семантические (встроенные)
	SemInfo          Code = 3000
	SemUnusedBinding Code = 3001
	SemRedeclared    Code = 3002

	// Маркеры (плагины семантики)
	MrkInfo  Code = 4000
	MrkTodo  Code = 4001
	MrkFixme Code = 4002
)

var codeDescription = map[Code]string{
	UnknownCode:           "Unknown error",
	SynInfo:               "Syntax information",
	SynUnclosedOpen:       "Unclosed bracket",
	SynUnmatchedClose:     "Unmatched closing bracket",
	SynMismatchedPair:     "Mismatched bracket pair",
	StyInfo:               "Style information",
	StyTrailingWhitespace: "Trailing whitespace",
	StyLongLine:           "Line too long",
	SemInfo:               "Semantic information",
	SemUnusedBinding:      "Unused binding",
	SemRedeclared:         "Binding redeclared in the same scope",
	MrkInfo:               "Marker information",
	MrkTodo:               "TODO marker",
	MrkFixme:              "FIXME marker",
}

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 2000:
		return fmt.Sprintf("SYN%04d", ic)
	case ic >= 2000 && ic < 3000:
		return fmt.Sprintf("STY%04d", ic)
	case ic >= 3000 && ic < 4000:
		return fmt.Sprintf("SEM%04d", ic)
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("MRK%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[UnknownCode]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
