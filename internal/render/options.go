package render

import (
	"fmt"
	"strings"
)

// Format selects an output encoding.
type Format uint8

const (
	FormatPretty Format = iota
	FormatJSON
	FormatMsgpack
	FormatShort
)

func (f Format) String() string {
	switch f {
	case FormatPretty:
		return "pretty"
	case FormatJSON:
		return "json"
	case FormatMsgpack:
		return "msgpack"
	case FormatShort:
		return "short"
	}
	return fmt.Sprintf("format(%d)", uint8(f))
}

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pretty", "":
		return FormatPretty, nil
	case "json":
		return FormatJSON, nil
	case "msgpack":
		return FormatMsgpack, nil
	case "short":
		return FormatShort, nil
	}
	return 0, fmt.Errorf("unknown format %q (want pretty, json, msgpack or short)", s)
}

// PathMode specifies how document paths are displayed.
type PathMode uint8

const (
	// PathModeAuto shows paths relative to BaseDir when they are below it.
	PathModeAuto PathMode = iota
	PathModeAbsolute
	PathModeRelative
	PathModeBasename
)

// PrettyOpts configures pretty-printing of decorations.
type PrettyOpts struct {
	Color    bool
	PathMode PathMode
	BaseDir  string
	// TabWidth expands tabs in source lines; 0 means 4.
	TabWidth int
	// Width truncates source lines to this many columns; 0 means unlimited.
	Width int
}

// ReportOpts configures structured (JSON / msgpack) output.
type ReportOpts struct {
	PathMode PathMode
	BaseDir  string
	// Max truncates the decoration list; 0 means no limit.
	Max int
}
