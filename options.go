package aspcheck

import (
	"crypto/sha256"
	"fmt"
	"runtime"
	"slices"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// fingerprintSchema is bumped whenever the fingerprinted fields or the
// cached payload layout change, so stale entries stop matching.
const fingerprintSchema uint16 = 1

// DefaultContextLines is the number of lines shown around a diagnostic.
const DefaultContextLines = 2

// DefaultExclusions are applied unless ReplaceExclude is set.
var DefaultExclusions = []string{
	".git/**",
	".svn/**",
	"node_modules/**",
	"vendor/**",
	"bower_components/**",
	"*.min.*",
}

// OptionsSpec carries the raw option values a ParseOptions is built from.
type OptionsSpec struct {
	Strict         bool
	IgnoreWarnings []string
	Exclude        []string
	ReplaceExclude bool
	ContextLines   int
	NoCache        bool
	Threads        int
}

// ParseOptions is the resolved configuration of one run. It is built once
// by NewParseOptions and never mutated afterwards, so workers share it
// without locking.
type ParseOptions struct {
	strict         bool
	ignoreWarnings []string
	exclusions     []string
	replaceExclude bool
	contextLines   int
	cacheEnabled   bool
	threads        int
}

// NewParseOptions normalizes spec into an immutable ParseOptions.
func NewParseOptions(spec OptionsSpec) ParseOptions {
	opts := ParseOptions{
		strict:         spec.Strict,
		replaceExclude: spec.ReplaceExclude,
		contextLines:   spec.ContextLines,
		cacheEnabled:   !spec.NoCache,
		threads:        spec.Threads,
	}
	if opts.contextLines < 0 {
		opts.contextLines = 0
	}
	if opts.threads < 1 {
		opts.threads = runtime.NumCPU()
	}

	for _, w := range spec.IgnoreWarnings {
		if code := NormalizeCode(w); code != "" {
			opts.ignoreWarnings = append(opts.ignoreWarnings, code)
		}
	}
	slices.Sort(opts.ignoreWarnings)
	opts.ignoreWarnings = slices.Compact(opts.ignoreWarnings)

	if !spec.ReplaceExclude {
		opts.exclusions = append(opts.exclusions, DefaultExclusions...)
	}
	for _, p := range spec.Exclude {
		if p = strings.TrimSpace(p); p != "" {
			opts.exclusions = append(opts.exclusions, NormalizePath(p))
		}
	}
	slices.Sort(opts.exclusions)
	opts.exclusions = slices.Compact(opts.exclusions)

	return opts
}

// DefaultParseOptions returns the options of a run without configuration.
func DefaultParseOptions() ParseOptions {
	return NewParseOptions(OptionsSpec{ContextLines: DefaultContextLines})
}

// NormalizeCode lowercases a diagnostic code and accepts the dashed
// spelling used on the command line (no-asp-tags).
func NormalizeCode(code string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(code)), "-", "_")
}

func (o ParseOptions) Strict() bool       { return o.strict }
func (o ParseOptions) CacheEnabled() bool { return o.cacheEnabled }
func (o ParseOptions) Threads() int       { return o.threads }
func (o ParseOptions) ContextLines() int  { return o.contextLines }

// Exclusions returns the effective exclusion patterns, sorted.
func (o ParseOptions) Exclusions() []string {
	return slices.Clone(o.exclusions)
}

// IgnoredWarnings returns the normalized ignored codes, sorted.
func (o ParseOptions) IgnoredWarnings() []string {
	return slices.Clone(o.ignoreWarnings)
}

// IsIgnored reports whether warnings with code are silenced.
func (o ParseOptions) IsIgnored(code string) bool {
	_, found := slices.BinarySearch(o.ignoreWarnings, NormalizeCode(code))
	return found
}

// fingerprint lists every option that can change a unit's diagnostics.
// Thread count, cache settings and output format are deliberately absent.
type fingerprint struct {
	Schema         uint16   `msgpack:"schema"`
	Strict         bool     `msgpack:"strict"`
	IgnoreWarnings []string `msgpack:"ignore_warnings"`
	Exclusions     []string `msgpack:"exclusions"`
	ReplaceExclude bool     `msgpack:"replace_exclude"`
	ContextLines   int      `msgpack:"context_lines"`
	Kind           UnitKind `msgpack:"kind"`
}

// Fingerprint hashes the options that affect the result for a unit of the
// given kind.
func (o ParseOptions) Fingerprint(kind UnitKind) ([32]byte, error) {
	data, err := msgpack.Marshal(fingerprint{
		Schema:         fingerprintSchema,
		Strict:         o.strict,
		IgnoreWarnings: o.ignoreWarnings,
		Exclusions:     o.exclusions,
		ReplaceExclude: o.replaceExclude,
		ContextLines:   o.contextLines,
		Kind:           kind,
	})
	if err != nil {
		return [32]byte{}, fmt.Errorf("failed to encode options fingerprint: %w", err)
	}
	return sha256.Sum256(data), nil
}

// Promote applies the severity policy to a pre-parse warning. Ignored
// codes become notices and are never promoted; in strict mode the
// remaining warnings become errors.
func Promote(d Diagnostic, opts ParseOptions) Diagnostic {
	if d.Severity != SeverityWarning {
		return d
	}
	switch {
	case opts.IsIgnored(d.Code):
		d.Severity = SeverityNotice
	case opts.strict:
		d.Severity = SeverityError
	}
	return d
}
