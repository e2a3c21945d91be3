package conf

import (
	"fmt"
	"strings"

	"golang.org/x/exp/slices"
)

// Section is a view over the lines from a section head up to the next one.
// It holds no lines itself, so it stays current as the document changes.
type Section struct {
	f    *File
	head LineID
}

func (s *Section) File() *File { return s.f }

func (s *Section) Head() LineID { return s.head }

// Kind is the section name, e.g. "Peer". It is empty for the default section.
func (s *Section) Kind() string {
	if s.IsDefault() {
		return ""
	}
	return s.f.nodes[s.head].line.Value
}

func (s *Section) IsDefault() bool { return s.head == Head }

// lineIDs returns the lines of the section, with or without its head.
func (s *Section) lineIDs(withHead bool) []LineID {
	var ids []LineID
	if withHead {
		ids = append(ids, s.head)
	}
	for id := s.f.nodes[s.head].next; id != none; id = s.f.nodes[id].next {
		if s.f.nodes[id].line.Kind == SectionHead {
			break
		}
		ids = append(ids, id)
	}
	return ids
}

// Lines returns the lines of the section after its head.
func (s *Section) Lines() []Line {
	ids := s.lineIDs(false)
	lines := make([]Line, len(ids))
	for i, id := range ids {
		lines[i] = s.f.nodes[id].line
	}
	return lines
}

func (s *Section) String() string {
	var b strings.Builder
	for _, id := range s.lineIDs(!s.IsDefault()) {
		b.WriteString(s.f.nodes[id].line.String())
		b.WriteByte('\n')
	}
	return b.String()
}

func (s *Section) options(name string) []LineID {
	var ids []LineID
	for _, id := range s.lineIDs(false) {
		l := s.f.nodes[id].line
		if l.Kind == Option && l.Name == name {
			ids = append(ids, id)
		}
	}
	return ids
}

// lastContent returns the last line of the section that is not blank, or the head.
func (s *Section) lastContent() LineID {
	at := s.head
	for _, id := range s.lineIDs(false) {
		if s.f.nodes[id].line.Kind != Blank {
			at = id
		}
	}
	return at
}

// Get returns the value of an option.
//
// Under DupFirst it is the string value of the first option with the name, or nil.
// Under DupList it is nil for no options, a string for one and a []string for more.
// Prefer GetAll or First where the caller does not need this shape.
func (s *Section) Get(name string) any {
	values := s.GetAll(name)
	switch {
	case len(values) == 0:
		return nil
	case len(values) == 1 || s.f.dup == DupFirst:
		return values[0]
	default:
		return values
	}
}

// GetAll returns the values of every option with the name, in order.
func (s *Section) GetAll(name string) []string {
	var values []string
	for _, id := range s.options(name) {
		values = append(values, s.f.nodes[id].line.Value)
	}
	return values
}

// First returns the value of the first option with the name.
func (s *Section) First(name string) (string, bool) {
	ids := s.options(name)
	if len(ids) == 0 {
		return "", false
	}
	return s.f.nodes[ids[0]].line.Value, true
}

func (s *Section) Has(name string) bool { return len(s.options(name)) > 0 }

// Set writes an option. Encoded values are compared first and an equal value leaves the
// document untouched. An absent value (see Encode) deletes the option.
// Under DupList the value replaces all options of the name, one line per item.
func (s *Section) Set(name string, value any) {
	if s.f.dup == DupList {
		s.SetAll(name, EncodeItems(value))
		return
	}
	enc, ok := Encode(value)
	if !ok {
		s.Delete(name)
		return
	}
	ids := s.options(name)
	if len(ids) == 0 {
		s.f.InsertNext(s.lastContent(), NewOption(name, enc))
		return
	}
	if s.f.nodes[ids[0]].line.Value != enc {
		s.f.SetValue(ids[0], enc)
	}
}

// SetAll replaces every option with the name by one option per value, at the position
// of the first one replaced, or after the last non-blank line if there was none.
// Nothing changes if the values are already there in the same order.
func (s *Section) SetAll(name string, values []string) {
	if len(values) == 0 {
		s.Delete(name)
		return
	}
	if slices.Equal(s.GetAll(name), values) {
		return
	}
	ids := s.options(name)
	var at LineID
	if len(ids) == 0 {
		at = s.lastContent()
	} else {
		at = s.f.nodes[ids[0]].prev
	}
	for _, id := range ids {
		_ = s.f.Remove(id)
	}
	for _, v := range values {
		at = s.f.InsertNext(at, NewOption(name, v))
	}
}

// Delete removes every option with the name.
func (s *Section) Delete(name string) {
	for _, id := range s.options(name) {
		_ = s.f.Remove(id)
	}
}

// Options returns the option lines of the section.
func (s *Section) Options() []Line {
	var lines []Line
	for _, l := range s.Lines() {
		if l.Kind == Option {
			lines = append(lines, l)
		}
	}
	return lines
}

// Comments returns the comment lines of the section, metas included.
func (s *Section) Comments() []Line {
	var lines []Line
	for _, l := range s.Lines() {
		if l.Kind == Comment {
			lines = append(lines, l)
		}
	}
	return lines
}

// Metas returns the comments of the section that carry a "Name = Value" pair.
func (s *Section) Metas() []Meta {
	var metas []Meta
	for _, id := range s.lineIDs(false) {
		l := s.f.nodes[id].line
		if l.Kind != Comment {
			continue
		}
		if name, value, ok := metaFor(l.Value); ok {
			metas = append(metas, Meta{Line: id, Name: name, Value: value})
		}
	}
	return metas
}

func (s *Section) meta(name string) (Meta, bool) {
	for _, m := range s.Metas() {
		if m.Name == name {
			return m, true
		}
	}
	return Meta{}, false
}

func (s *Section) GetMeta(name string) (string, bool) {
	m, ok := s.meta(name)
	return m.Value, ok
}

func (s *Section) HasMeta(name string) bool {
	_, ok := s.meta(name)
	return ok
}

// SetMeta writes a meta comment in place, or after the last meta comment of the section,
// or right after the head. An absent value deletes the meta.
func (s *Section) SetMeta(name string, value any) {
	enc, ok := Encode(value)
	if !ok {
		s.DeleteMeta(name)
		return
	}
	text := name + " = " + enc
	if m, ok := s.meta(name); ok {
		if m.Value != enc {
			s.f.SetValue(m.Line, text)
		}
		return
	}
	at := s.head
	if metas := s.Metas(); len(metas) > 0 {
		at = metas[len(metas)-1].Line
	}
	s.f.InsertNext(at, NewComment(text))
}

func (s *Section) DeleteMeta(name string) {
	for _, m := range s.Metas() {
		if m.Name == name {
			_ = s.f.Remove(m.Line)
		}
	}
}

// Item is a name/value pair of a section.
type Item struct {
	Name  string
	Value string
}

// Items returns the options of the section, or its metas if meta is set, in order.
func (s *Section) Items(meta bool) []Item {
	var items []Item
	if meta {
		for _, m := range s.Metas() {
			items = append(items, Item{Name: m.Name, Value: m.Value})
		}
		return items
	}
	for _, l := range s.Options() {
		items = append(items, Item{Name: l.Name, Value: l.Value})
	}
	return items
}

// Remove unlinks the section head and every line of the section.
func (s *Section) Remove() error {
	if s.IsDefault() {
		return fmt.Errorf("remove section: %w", ErrHead)
	}
	for _, id := range s.lineIDs(true) {
		if err := s.f.Remove(id); err != nil {
			return err
		}
	}
	return nil
}
