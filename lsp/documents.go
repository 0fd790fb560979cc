package lsp

import (
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// Document is an open editor buffer.
type Document struct {
	URI        protocol.DocumentUri
	LanguageID string
	Version    protocol.Integer
	Text       string
}

// DocumentStore holds the buffers the client has opened. It is safe for
// concurrent use.
type DocumentStore struct {
	mu   sync.RWMutex
	docs map[protocol.DocumentUri]*Document
}

func NewDocumentStore() *DocumentStore {
	return &DocumentStore{docs: make(map[protocol.DocumentUri]*Document)}
}

// Get returns a copy of the document for uri.
func (s *DocumentStore) Get(uri protocol.DocumentUri) (Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[uri]
	if !ok {
		return Document{}, false
	}
	return *doc, true
}

func (s *DocumentStore) Set(doc Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.URI] = &doc
}

func (s *DocumentStore) Delete(uri protocol.DocumentUri) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, uri)
}

// Len reports how many documents are open.
func (s *DocumentStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Update applies a didChange batch to the stored text in order and records
// the new version. Changes for a document that is not open are an error.
func (s *DocumentStore) Update(uri protocol.DocumentUri, version protocol.Integer, changes []any) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[uri]
	if !ok {
		return Document{}, fmt.Errorf("document not open: %s", uri)
	}
	text := doc.Text
	for _, change := range changes {
		var err error
		text, err = ApplyContentChange(text, change)
		if err != nil {
			return Document{}, err
		}
	}
	doc.Text = text
	doc.Version = version
	return *doc, nil
}

// ApplyContentChange applies one incremental or full-text change event.
func ApplyContentChange(text string, change any) (string, error) {
	switch c := change.(type) {
	case protocol.TextDocumentContentChangeEventWhole:
		return c.Text, nil
	case protocol.TextDocumentContentChangeEvent:
		if c.Range == nil {
			return c.Text, nil
		}
		start, err := byteOffset(text, c.Range.Start)
		if err != nil {
			return "", fmt.Errorf("invalid start position: %w", err)
		}
		end, err := byteOffset(text, c.Range.End)
		if err != nil {
			return "", fmt.Errorf("invalid end position: %w", err)
		}
		if start > end {
			return "", fmt.Errorf("range start %d after end %d", start, end)
		}
		return text[:start] + c.Text + text[end:], nil
	}
	return "", fmt.Errorf("unsupported content change %T", change)
}

// byteOffset converts a line and UTF-16 character position to a byte
// offset into text. A character past the end of its line clamps to the
// line end.
func byteOffset(text string, pos protocol.Position) (int, error) {
	offset := 0
	for range pos.Line {
		i := strings.IndexAny(text[offset:], "\r\n")
		if i < 0 {
			return 0, fmt.Errorf("line %d out of range", pos.Line)
		}
		offset += i + 1
		if text[offset-1] == '\r' && offset < len(text) && text[offset] == '\n' {
			offset++
		}
	}

	line := text[offset:]
	if i := strings.IndexAny(line, "\r\n"); i >= 0 {
		line = line[:i]
	}
	var units protocol.UInteger
	for i, r := range line {
		if units >= pos.Character {
			return offset + i, nil
		}
		units += protocol.UInteger(utf16Len(r))
	}
	return offset + len(line), nil
}

// utf16Column returns the number of UTF-16 code units in the first runes
// characters of line.
func utf16Column(line string, runes int) int {
	units := 0
	for _, r := range line {
		if runes <= 0 {
			break
		}
		units += utf16Len(r)
		runes--
	}
	return units + max(runes, 0)
}

func utf16Len(r rune) int {
	if r >= 0x10000 && r <= utf8.MaxRune {
		return 2
	}
	return 1
}
