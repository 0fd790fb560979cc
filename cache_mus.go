package aspcheck

import (
	"fmt"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

// entryFormat is the first field of every encoded entry.
const entryFormat uint64 = 1

// CacheEntry is a stored ParseResult and the time it was written.
type CacheEntry struct {
	Result   ParseResult
	StoredAt time.Time
}

// marshalEntry serializes an entry using MUS format with varint encoding
func marshalEntry(e CacheEntry) []byte {
	buf := make([]byte, entrySize(e))
	n := varint.Uint64.Marshal(entryFormat, buf)
	n += varint.Uint64.Marshal(uint64(e.StoredAt.UnixNano()), buf[n:])
	n += marshalResultTo(e.Result, buf[n:])
	return buf[:n]
}

// unmarshalEntry deserializes an entry. Any failure wraps ErrCorruptEntry.
func unmarshalEntry(data []byte) (CacheEntry, error) {
	var e CacheEntry
	storedAt, n, err := unmarshalEntryHeader(data)
	if err != nil {
		return e, err
	}
	e.StoredAt = storedAt

	result, m, err := unmarshalResultFrom(data[n:])
	if err != nil {
		return e, fmt.Errorf("%w: %v", ErrCorruptEntry, err)
	}
	if n+m != len(data) {
		return e, fmt.Errorf("%w: %d trailing bytes", ErrCorruptEntry, len(data)-n-m)
	}
	if !result.Valid() {
		return e, fmt.Errorf("%w: result violates its status", ErrCorruptEntry)
	}
	e.Result = result
	return e, nil
}

// unmarshalEntryHeader reads only the format and timestamp, which is all a
// sweep needs.
func unmarshalEntryHeader(data []byte) (time.Time, int, error) {
	format, n, err := varint.Uint64.Unmarshal(data)
	if err != nil {
		return time.Time{}, n, fmt.Errorf("%w: failed to unmarshal format: %v", ErrCorruptEntry, err)
	}
	if format != entryFormat {
		return time.Time{}, n, fmt.Errorf("%w: unknown format %d", ErrCorruptEntry, format)
	}
	nanos, m, err := varint.Uint64.Unmarshal(data[n:])
	if err != nil {
		return time.Time{}, n, fmt.Errorf("%w: failed to unmarshal timestamp: %v", ErrCorruptEntry, err)
	}
	return time.Unix(0, int64(nanos)), n + m, nil
}

func entrySize(e CacheEntry) int {
	size := varint.Uint64.Size(entryFormat)
	size += varint.Uint64.Size(uint64(e.StoredAt.UnixNano()))
	return size + resultSize(e.Result)
}

func resultSize(r ParseResult) int {
	size := varint.PositiveInt.Size(int(r.Status))
	size += varint.PositiveInt.Size(len(r.Diagnostics))
	for _, d := range r.Diagnostics {
		size += diagnosticSize(d)
	}
	return size
}

func diagnosticSize(d Diagnostic) int {
	size := ord.SizeString(d.Code, varint.PositiveInt)
	size += ord.SizeString(string(d.Severity), varint.PositiveInt)
	size += ord.SizeString(d.Message, varint.PositiveInt)
	size += ord.SizeString(d.Expected, varint.PositiveInt)
	size += ord.Bool.Size(d.Position != nil)
	if d.Position != nil {
		size += varint.PositiveInt.Size(d.Position.Line)
		size += varint.PositiveInt.Size(d.Position.Column)
		size += varint.PositiveInt.Size(d.Position.Offset)
	}
	size += ord.Bool.Size(d.Context != nil)
	if d.Context != nil {
		size += varint.PositiveInt.Size(d.Context.FocusLine)
		size += varint.PositiveInt.Size(d.Context.Column)
		size += varint.PositiveInt.Size(len(d.Context.Lines))
		for _, l := range d.Context.Lines {
			size += varint.PositiveInt.Size(l.Number)
			size += ord.SizeString(l.Content, varint.PositiveInt)
			size += ord.Bool.Size(l.Focus)
		}
	}
	return size
}

func marshalResultTo(r ParseResult, buf []byte) int {
	n := varint.PositiveInt.Marshal(int(r.Status), buf)
	n += varint.PositiveInt.Marshal(len(r.Diagnostics), buf[n:])
	for _, d := range r.Diagnostics {
		n += marshalDiagnosticTo(d, buf[n:])
	}
	return n
}

func marshalDiagnosticTo(d Diagnostic, buf []byte) int {
	n := ord.MarshalString(d.Code, varint.PositiveInt, buf)
	n += ord.MarshalString(string(d.Severity), varint.PositiveInt, buf[n:])
	n += ord.MarshalString(d.Message, varint.PositiveInt, buf[n:])
	n += ord.MarshalString(d.Expected, varint.PositiveInt, buf[n:])
	n += ord.Bool.Marshal(d.Position != nil, buf[n:])
	if d.Position != nil {
		n += varint.PositiveInt.Marshal(d.Position.Line, buf[n:])
		n += varint.PositiveInt.Marshal(d.Position.Column, buf[n:])
		n += varint.PositiveInt.Marshal(d.Position.Offset, buf[n:])
	}
	n += ord.Bool.Marshal(d.Context != nil, buf[n:])
	if d.Context != nil {
		n += varint.PositiveInt.Marshal(d.Context.FocusLine, buf[n:])
		n += varint.PositiveInt.Marshal(d.Context.Column, buf[n:])
		n += varint.PositiveInt.Marshal(len(d.Context.Lines), buf[n:])
		for _, l := range d.Context.Lines {
			n += varint.PositiveInt.Marshal(l.Number, buf[n:])
			n += ord.MarshalString(l.Content, varint.PositiveInt, buf[n:])
			n += ord.Bool.Marshal(l.Focus, buf[n:])
		}
	}
	return n
}

// reader walks a buffer and keeps the first error, so decoding a record
// reads as a flat list of fields.
type reader struct {
	buf []byte
	n   int
	err error
}

func (r *reader) readInt(field string) int {
	if r.err != nil {
		return 0
	}
	v, m, err := varint.PositiveInt.Unmarshal(r.buf[r.n:])
	if err != nil {
		r.err = fmt.Errorf("failed to unmarshal %s: %w", field, err)
		return 0
	}
	r.n += m
	return v
}

// readLength reads a count and rejects values the remaining buffer cannot hold.
func (r *reader) readLength(field string) int {
	v := r.readInt(field)
	if r.err == nil && (v < 0 || v > len(r.buf)-r.n) {
		r.err = fmt.Errorf("invalid %s %d", field, v)
		return 0
	}
	return v
}

func (r *reader) readString(field string) string {
	length := r.readLength(field + " length")
	if r.err != nil {
		return ""
	}
	s := string(r.buf[r.n : r.n+length])
	r.n += length
	return s
}

func (r *reader) readBool(field string) bool {
	if r.err != nil {
		return false
	}
	v, m, err := ord.Bool.Unmarshal(r.buf[r.n:])
	if err != nil {
		r.err = fmt.Errorf("failed to unmarshal %s: %w", field, err)
		return false
	}
	r.n += m
	return v
}

func unmarshalResultFrom(buf []byte) (ParseResult, int, error) {
	r := &reader{buf: buf}
	var result ParseResult
	status := r.readInt("status")
	if r.err == nil && status > int(StatusSkipped) {
		r.err = fmt.Errorf("unknown status %d", status)
	}
	result.Status = Status(status)

	count := r.readLength("diagnostics length")
	if count > 0 {
		result.Diagnostics = make([]Diagnostic, count)
	}
	for i := 0; i < count && r.err == nil; i++ {
		result.Diagnostics[i] = unmarshalDiagnostic(r)
	}
	if r.err != nil {
		return ParseResult{}, r.n, r.err
	}
	return result, r.n, nil
}

func unmarshalDiagnostic(r *reader) Diagnostic {
	d := Diagnostic{
		Code:     r.readString("code"),
		Severity: Severity(r.readString("severity")),
		Message:  r.readString("message"),
		Expected: r.readString("expected"),
	}
	if r.readBool("position flag") {
		d.Position = &Position{
			Line:   r.readInt("line"),
			Column: r.readInt("column"),
			Offset: r.readInt("offset"),
		}
	}
	if r.readBool("context flag") {
		ctx := &CodeContext{
			FocusLine: r.readInt("focus line"),
			Column:    r.readInt("context column"),
		}
		count := r.readLength("context length")
		if count > 0 {
			ctx.Lines = make([]CodeLine, count)
		}
		for i := 0; i < count && r.err == nil; i++ {
			ctx.Lines[i] = CodeLine{
				Number:  r.readInt("line number"),
				Content: r.readString("line content"),
				Focus:   r.readBool("line focus"),
			}
		}
		d.Context = ctx
	}
	return d
}
