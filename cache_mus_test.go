package aspcheck

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleFailure() ParseResult {
	return Failure(Diagnostic{
		Code:     CodeParseError,
		Severity: SeverityError,
		Position: &Position{Line: 4, Column: 5, Offset: 17},
		Message:  "expected expression, found '='",
		Expected: "expression",
		Context: &CodeContext{
			FocusLine: 4,
			Column:    5,
			Lines: []CodeLine{
				{Number: 3, Content: "Dim a"},
				{Number: 4, Content: "x = = 1", Focus: true},
				{Number: 5, Content: "Dim b"},
			},
		},
	})
}

func TestEntryCodec(t *testing.T) {
	storedAt := time.Date(2026, 3, 1, 12, 30, 0, 42, time.UTC)

	tests := []struct {
		name   string
		result ParseResult
	}{
		{"success", Success()},
		{"failure with context", sampleFailure()},
		{"skipped warning", Skipped(Diagnostic{Code: CodeNoASPTags, Severity: SeverityWarning, Message: msgNoASPTags})},
		{"skipped notice", Skipped(Diagnostic{Code: CodeEmptyFile, Severity: SeverityNotice, Message: msgEmptyFile})},
		{"io failure without position", Failure(Diagnostic{Code: CodeIOError, Severity: SeverityError, Message: "permission denied"})},
		{"unicode message", Failure(Diagnostic{Code: CodeParseError, Severity: SeverityError, Message: "expected ')', found 'ü'"})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := marshalEntry(CacheEntry{Result: tt.result, StoredAt: storedAt})

			entry, err := unmarshalEntry(data)
			require.NoError(t, err)
			assert.Equal(t, tt.result, entry.Result)
			assert.True(t, storedAt.Equal(entry.StoredAt))
		})
	}
}

func TestEntryCodecRejectsCorruptData(t *testing.T) {
	valid := marshalEntry(CacheEntry{Result: sampleFailure(), StoredAt: time.Now()})

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"unknown format", append([]byte{0x7f}, valid[1:]...)},
		{"truncated", valid[:len(valid)/2]},
		{"trailing bytes", append(append([]byte{}, valid...), 0x01)},
		{"header only", valid[:2]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := unmarshalEntry(tt.data)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrCorruptEntry))
		})
	}
}

func TestEntryCodecRejectsInvalidResult(t *testing.T) {
	// A failure without any error diagnostic cannot come from the checker.
	bad := ParseResult{Status: StatusFailure}
	data := marshalEntry(CacheEntry{Result: bad, StoredAt: time.Now()})

	_, err := unmarshalEntry(data)
	assert.ErrorIs(t, err, ErrCorruptEntry)
}

func TestEntryHeader(t *testing.T) {
	storedAt := time.Unix(1_700_000_000, 0)
	data := marshalEntry(CacheEntry{Result: Success(), StoredAt: storedAt})

	got, n, err := unmarshalEntryHeader(data)
	require.NoError(t, err)
	assert.True(t, storedAt.Equal(got))
	assert.Less(t, n, len(data))
}
