package diag

import (
	"fmt"
	"math/bits"
	"strings"
)

// Kind is one of the four independently computed diagnostic axes:
// {syntax, semantic} x {built-in, plugin}.
type Kind uint8

const (
	KindSyntax Kind = iota
	KindSyntaxPlugin
	KindSemantic
	KindSemanticPlugin

	kindCount
)

var kindNames = [kindCount]string{
	KindSyntax:         "syntax",
	KindSyntaxPlugin:   "syntax-plugin",
	KindSemantic:       "semantic",
	KindSemanticPlugin: "semantic-plugin",
}

func (k Kind) String() string {
	if k < kindCount {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Valid reports whether k names one of the known kinds.
func (k Kind) Valid() bool { return k < kindCount }

// ParseKind accepts the names printed by Kind.String.
func ParseKind(name string) (Kind, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for k, n := range kindNames {
		if n == name {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("unknown diagnostic kind %q", name)
}

// KindSet is a bitmask of kinds.
type KindSet uint8

// AllKinds contains every kind.
const AllKinds KindSet = 1<<kindCount - 1

// KindsOf builds a set from individual kinds.
func KindsOf(kinds ...Kind) KindSet {
	var s KindSet
	for _, k := range kinds {
		s = s.With(k)
	}
	return s
}

func (s KindSet) With(k Kind) KindSet {
	if !k.Valid() {
		return s
	}
	return s | 1<<k
}

func (s KindSet) Has(k Kind) bool {
	return k.Valid() && s&(1<<k) != 0
}

func (s KindSet) Empty() bool { return s == 0 }

func (s KindSet) Len() int { return bits.OnesCount8(uint8(s)) }

func (s KindSet) Union(other KindSet) KindSet { return s | other }

func (s KindSet) Intersect(other KindSet) KindSet { return s & other }

func (s KindSet) Without(other KindSet) KindSet { return s &^ other }

// Kinds lists members in ascending order.
func (s KindSet) Kinds() []Kind {
	out := make([]Kind, 0, s.Len())
	for k := Kind(0); k < kindCount; k++ {
		if s.Has(k) {
			out = append(out, k)
		}
	}
	return out
}

func (s KindSet) String() string {
	if s.Empty() {
		return "none"
	}
	names := make([]string, 0, s.Len())
	for _, k := range s.Kinds() {
		names = append(names, k.String())
	}
	return strings.Join(names, ",")
}

// ParseKindSet parses a comma separated list. "all" and an empty string select
// every kind.
func ParseKindSet(list string) (KindSet, error) {
	list = strings.TrimSpace(list)
	if list == "" || list == "all" {
		return AllKinds, nil
	}
	var s KindSet
	for _, part := range strings.Split(list, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		k, err := ParseKind(part)
		if err != nil {
			return 0, err
		}
		s = s.With(k)
	}
	return s, nil
}
