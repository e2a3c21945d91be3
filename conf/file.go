package conf

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
)

var (
	ErrParse = errors.New("parse error")
	ErrType  = errors.New("type error")
	// ErrHead is returned when an operation would move or remove the default section head.
	ErrHead = errors.New("default section head cannot be moved or removed")
)

// ParseError reports a line that matches none of the line grammars.
type ParseError struct {
	Path string
	// Line is 1-based.
	Line int
	Text string
}

func (e *ParseError) Error() string {
	path := e.Path
	if path == "" {
		path = "<input>"
	}
	return fmt.Sprintf("%s:%d: unparsable line %q", path, e.Line, e.Text)
}

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// Dup is the policy for options that appear more than once in a section.
type Dup uint8

const (
	// DupFirst only ever sees the first option of a name.
	DupFirst Dup = iota
	// DupList treats repeated options of a name as a list of values.
	DupList
)

func (d Dup) String() string {
	if d == DupList {
		return "list"
	}
	return "first"
}

func ParseDup(s string) (Dup, error) {
	switch s {
	case "first", "":
		return DupFirst, nil
	case "list":
		return DupList, nil
	}
	return DupFirst, fmt.Errorf("unknown duplicate option policy %q", s)
}

type node struct {
	line   Line
	prev   LineID
	next   LineID
	linked bool
}

// File is a parsed document. The zero value is not usable; use NewFile or Parse.
type File struct {
	// Path is where the document was loaded from, if anywhere.
	Path  string
	dup   Dup
	nodes []node
}

func NewFile(dup Dup) *File {
	return &File{
		dup:   dup,
		nodes: []node{{line: Line{Kind: DefaultSectionHead}, prev: none, next: none, linked: true}},
	}
}

// NewSection returns a section with the given kind in a new file of its own.
// It is meant to be filled and then copied into a document with AppendSection.
func NewSection(kind string, dup Dup) *Section {
	f := NewFile(dup)
	head := f.InsertNext(Head, NewSectionHead(kind))
	return &Section{f: f, head: head}
}

func ParseString(s string, dup Dup) (*File, error) {
	return Parse("", strings.NewReader(s), dup)
}

// Parse reads a whole document from r. path is only used in errors.
func Parse(path string, r io.Reader, dup Dup) (*File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	f := NewFile(dup)
	f.Path = path
	at := Head
	for i, text := range splitLines(string(data)) {
		l, ok := ParseLine(text)
		if !ok {
			return nil, &ParseError{Path: path, Line: i + 1, Text: text}
		}
		at = f.InsertNext(at, l)
	}
	return f, nil
}

// Load parses the document at path. A missing file yields an empty document.
func Load(path string, dup Dup) (*File, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		f := NewFile(dup)
		f.Path = path
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	return Parse(path, bytes.NewReader(data), dup)
}

func splitLines(s string) []string {
	lines := strings.Split(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

func (f *File) Dup() Dup { return f.dup }

// Line returns the line with the given ID.
func (f *File) Line(id LineID) Line { return f.nodes[id].line }

// SetValue replaces the value of a line, dropping its original formatting.
func (f *File) SetValue(id LineID, value string) {
	n := &f.nodes[id]
	n.line.Value = value
	n.line.raw = ""
}

// Next returns the line after id, if any.
func (f *File) Next(id LineID) (LineID, bool) {
	next := f.nodes[id].next
	return next, next != none
}

// Prev returns the line before id, if any.
func (f *File) Prev(id LineID) (LineID, bool) {
	prev := f.nodes[id].prev
	return prev, prev != none
}

// InsertNext links l directly after at and returns its ID.
func (f *File) InsertNext(at LineID, l Line) LineID {
	id := LineID(len(f.nodes))
	next := f.nodes[at].next
	f.nodes = append(f.nodes, node{line: l, prev: at, next: next, linked: true})
	f.nodes[at].next = id
	if next != none {
		f.nodes[next].prev = id
	}
	return id
}

// InsertPrev links l directly before at and returns its ID.
func (f *File) InsertPrev(at LineID, l Line) (LineID, error) {
	if at == Head {
		return none, ErrHead
	}
	return f.InsertNext(f.nodes[at].prev, l), nil
}

// Remove unlinks a line. Removing a line twice is a no-op.
func (f *File) Remove(id LineID) error {
	if id == Head {
		return ErrHead
	}
	n := &f.nodes[id]
	if !n.linked {
		return nil
	}
	f.nodes[n.prev].next = n.next
	if n.next != none {
		f.nodes[n.next].prev = n.prev
	}
	n.prev, n.next, n.linked = none, none, false
	return nil
}

// Last returns the last line of the document, which is Head for an empty one.
func (f *File) Last() LineID {
	at := Head
	for f.nodes[at].next != none {
		at = f.nodes[at].next
	}
	return at
}

func (f *File) IsEmpty() bool { return f.nodes[Head].next == none }

// LineIDs returns the IDs of all lines after the default section head, in order.
func (f *File) LineIDs() []LineID {
	var ids []LineID
	for id := f.nodes[Head].next; id != none; id = f.nodes[id].next {
		ids = append(ids, id)
	}
	return ids
}

// Lines returns all lines after the default section head, in order.
func (f *File) Lines() []Line {
	ids := f.LineIDs()
	lines := make([]Line, len(ids))
	for i, id := range ids {
		lines[i] = f.nodes[id].line
	}
	return lines
}

func (f *File) String() string {
	var b strings.Builder
	for id := f.nodes[Head].next; id != none; id = f.nodes[id].next {
		b.WriteString(f.nodes[id].line.String())
		b.WriteByte('\n')
	}
	return b.String()
}

// DefaultSection returns the section of lines before the first section head.
func (f *File) DefaultSection() *Section { return &Section{f: f, head: Head} }

// Sections returns the default section followed by every headed section in order.
func (f *File) Sections() []*Section {
	sections := []*Section{f.DefaultSection()}
	for _, id := range f.LineIDs() {
		if f.nodes[id].line.Kind == SectionHead {
			sections = append(sections, &Section{f: f, head: id})
		}
	}
	return sections
}

// SectionsOf returns the sections with the given kind in order.
func (f *File) SectionsOf(kind string) []*Section {
	var sections []*Section
	for _, s := range f.Sections()[1:] {
		if s.Kind() == kind {
			sections = append(sections, s)
		}
	}
	return sections
}

// Section returns the first section with the given kind, or nil.
func (f *File) Section(kind string) *Section {
	for _, s := range f.Sections()[1:] {
		if s.Kind() == kind {
			return s
		}
	}
	return nil
}

// AppendSection copies src, which usually comes from NewSection, to the end of the
// document. With newline set, a blank line is ensured before and after the copy,
// reusing blank lines already there.
func (f *File) AppendSection(src *Section, newline bool) (*Section, error) {
	if src.IsDefault() {
		return nil, errors.New("cannot append a default section")
	}
	at := f.Last()
	if newline && !f.IsEmpty() && f.nodes[at].line.Kind != Blank {
		at = f.InsertNext(at, NewBlank())
	}
	head := none
	for _, id := range src.lineIDs(true) {
		at = f.InsertNext(at, src.f.nodes[id].line)
		if head == none {
			head = at
		}
	}
	if newline && f.nodes[at].line.Kind != Blank {
		f.InsertNext(at, NewBlank())
	}
	return &Section{f: f, head: head}, nil
}
