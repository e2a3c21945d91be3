// Package conf parses and edits INI-like configuration documents (such as wg-quick
// files) while keeping every line it is not asked to touch as it was.
//
// A document is a chain of lines stored in an arena owned by a File. Lines are
// addressed by LineID; sections are views over runs of that chain.
package conf

import (
	"regexp"
	"strings"
)

// LineID addresses a line in the arena of a File.
// IDs stay valid for the lifetime of the File, including after the line is removed.
type LineID int

// Head is the ID of the default section head, which is always the first line of a File.
const Head LineID = 0

const none LineID = -1

type LineKind uint8

const (
	Blank LineKind = iota
	Comment
	Option
	SectionHead
	DefaultSectionHead
)

func (k LineKind) String() string {
	switch k {
	case Blank:
		return "blank"
	case Comment:
		return "comment"
	case Option:
		return "option"
	case SectionHead:
		return "section head"
	case DefaultSectionHead:
		return "default section head"
	default:
		return "unknown"
	}
}

// Line is one physical line of a document.
type Line struct {
	Kind LineKind
	// Name is the option name. Only set for Option lines.
	Name string
	// Value is the comment text, the option value or the section name.
	Value string

	// raw is the text the line was parsed from. Empty once the line is modified.
	raw string
}

var (
	blankRE       = regexp.MustCompile(`^\s*$`)
	commentRE     = regexp.MustCompile(`^# ?(.*)$`)
	sectionHeadRE = regexp.MustCompile(`^\[([A-Za-z]+)\]\s*$`)
	optionRE      = regexp.MustCompile(`^([A-Za-z]+)\s*=\s*(.+)$`)
)

func NewBlank() Line { return Line{Kind: Blank} }

func NewComment(text string) Line { return Line{Kind: Comment, Value: text} }

func NewOption(name, value string) Line { return Line{Kind: Option, Name: name, Value: value} }

func NewSectionHead(name string) Line { return Line{Kind: SectionHead, Value: name} }

// ParseLine matches s against the line grammar in priority order
// (blank, comment, section head, option). ok is false if nothing matches.
func ParseLine(s string) (l Line, ok bool) {
	switch {
	case blankRE.MatchString(s):
		return Line{Kind: Blank, raw: s}, true
	case commentRE.MatchString(s):
		m := commentRE.FindStringSubmatch(s)
		return Line{Kind: Comment, Value: m[1], raw: s}, true
	case sectionHeadRE.MatchString(s):
		m := sectionHeadRE.FindStringSubmatch(s)
		return Line{Kind: SectionHead, Value: m[1], raw: s}, true
	case optionRE.MatchString(s):
		m := optionRE.FindStringSubmatch(s)
		return Line{Kind: Option, Name: m[1], Value: strings.TrimRight(m[2], " \t\r\n\v\f"), raw: s}, true
	}
	return Line{}, false
}

// String returns the text of the line without a trailing newline.
// Parsed lines that were never modified render exactly as they were read.
func (l Line) String() string {
	if l.raw != "" {
		return l.raw
	}
	switch l.Kind {
	case Comment:
		return "# " + l.Value
	case Option:
		return l.Name + " = " + l.Value
	case SectionHead:
		return "[" + l.Value + "]"
	default:
		return ""
	}
}

// Equal reports whether l and o are structurally equal, ignoring how they were formatted.
func (l Line) Equal(o Line) bool {
	return l.Kind == o.Kind && l.Name == o.Name && l.Value == o.Value
}

// Meta is a key/value pair stored in a comment line of the form "# Key = Value".
type Meta struct {
	Line  LineID
	Name  string
	Value string
}

// metaFor parses the text of a comment as a meta pair.
func metaFor(comment string) (name, value string, ok bool) {
	m := optionRE.FindStringSubmatch(comment)
	if m == nil {
		return "", "", false
	}
	return m[1], strings.TrimRight(m[2], " \t\r\n\v\f"), true
}
