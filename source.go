package aspcheck

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/spf13/afero"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// StdinOrigin names the unit read from standard input.
const StdinOrigin = "<stdin>"

// UnitKind selects the guards and grammar entry point for a unit.
type UnitKind uint8

const (
	// KindPage is markup with embedded server blocks (.asp, .inc, ...).
	KindPage UnitKind = iota
	// KindGlobal is an application file (global.asa) where
	// <script runat="server"> also counts as server code.
	KindGlobal
	// KindScript is plain VBScript without delimiters (.vbs).
	KindScript
)

func (k UnitKind) String() string {
	switch k {
	case KindGlobal:
		return "global"
	case KindScript:
		return "script"
	default:
		return "page"
	}
}

// KindForPath picks the unit kind from a file extension.
func KindForPath(path string) UnitKind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".asa":
		return KindGlobal
	case ".vbs":
		return KindScript
	default:
		return KindPage
	}
}

// SourceUnit is one file or stdin buffer, fully read and decoded.
type SourceUnit struct {
	Origin   string
	Kind     UnitKind
	Encoding string
	// Raw holds the bytes as read; the cache key hashes these.
	Raw []byte
	// Text is Raw decoded to UTF-8 without a byte order mark.
	Text string
}

var (
	errBinary = errors.New("file contains NUL bytes and looks binary")

	utf8BOM    = []byte{0xEF, 0xBB, 0xBF}
	utf16LEBOM = []byte{0xFF, 0xFE}
	utf16BEBOM = []byte{0xFE, 0xFF}
)

// LoadSource reads and decodes path. Read failures are filesystem
// AppErrors and undecodable content is an encoding AppError; both carry
// the path.
func LoadSource(fs afero.Fs, path string) (SourceUnit, error) {
	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		return SourceUnit{}, NewFSError("failed to read source file", err).WithFile(path)
	}
	return NewSource(path, KindForPath(path), raw)
}

// NewStdinSource reads a page from r.
func NewStdinSource(r io.Reader) (SourceUnit, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return SourceUnit{}, NewFSError("failed to read standard input", err).WithFile(StdinOrigin)
	}
	return NewSource(StdinOrigin, KindPage, raw)
}

// NewSource decodes raw bytes that were obtained elsewhere, e.g. from an
// editor buffer.
func NewSource(origin string, kind UnitKind, raw []byte) (SourceUnit, error) {
	text, enc, err := decode(raw)
	if err != nil {
		return SourceUnit{}, NewEncodingError(fmt.Sprintf("cannot decode source as %s", enc), err).WithFile(origin)
	}
	return SourceUnit{Origin: origin, Kind: kind, Encoding: enc, Raw: raw, Text: text}, nil
}

func decode(raw []byte) (string, string, error) {
	var (
		text []byte
		name string
		err  error
	)
	switch {
	case bytes.HasPrefix(raw, utf8BOM):
		text, name = raw[len(utf8BOM):], "utf-8-bom"
		if !utf8.Valid(text) {
			return "", name, errors.New("invalid UTF-8 after byte order mark")
		}
	case bytes.HasPrefix(raw, utf16LEBOM):
		name = "utf-16le"
		text, err = transcode(unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM), raw)
	case bytes.HasPrefix(raw, utf16BEBOM):
		name = "utf-16be"
		text, err = transcode(unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM), raw)
	case utf8.Valid(raw):
		text, name = raw, "utf-8"
	default:
		name = "windows-1252"
		text, err = transcode(charmap.Windows1252, raw)
	}
	if err != nil {
		return "", name, err
	}
	if bytes.IndexByte(text, 0) >= 0 {
		return "", name, errBinary
	}
	return string(text), name, nil
}

func transcode(enc encoding.Encoding, raw []byte) ([]byte, error) {
	out, _, err := transform.Bytes(enc.NewDecoder(), raw)
	return out, err
}
