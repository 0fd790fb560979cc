package aspcheck

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// ConfigFileNames are looked up in the start directory and every parent.
var ConfigFileNames = []string{".asp-parser.toml", "asp-parser.toml"}

// Output formats accepted in config and on the command line.
var Formats = []string{"auto", "ascii", "ci", "json", "sarif", "checkstyle", "junit"}

type Config struct {
	Format         string   `toml:"format" mapstructure:"format"`
	Color          bool     `toml:"color" mapstructure:"color"`
	Verbose        bool     `toml:"verbose" mapstructure:"verbose"`
	QuietSuccess   bool     `toml:"quiet_success" mapstructure:"quiet_success"`
	Strict         bool     `toml:"strict" mapstructure:"strict"`
	IgnoreWarnings []string `toml:"ignore_warnings" mapstructure:"ignore_warnings"`
	Exclude        []string `toml:"exclude" mapstructure:"exclude"`
	ReplaceExclude bool     `toml:"replace_exclude" mapstructure:"replace_exclude"`
	ContextLines   int      `toml:"context_lines" mapstructure:"context_lines"`
	Threads        int      `toml:"threads" mapstructure:"threads"`
	NoCache        bool     `toml:"no_cache" mapstructure:"no_cache"`
	CacheDir       string   `toml:"cache_dir" mapstructure:"cache_dir"`
	CacheBackend   string   `toml:"cache_backend" mapstructure:"cache_backend"`

	// Sources lists the files merged into this config, farthest first.
	Sources []string `toml:"-" mapstructure:"-"`
}

// DefaultConfig returns the settings used when no file sets a value.
func DefaultConfig() Config {
	return Config{
		Format:       "auto",
		Color:        true,
		ContextLines: DefaultContextLines,
		CacheBackend: BackendFile,
	}
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("format", d.Format)
	v.SetDefault("color", d.Color)
	v.SetDefault("verbose", d.Verbose)
	v.SetDefault("quiet_success", d.QuietSuccess)
	v.SetDefault("strict", d.Strict)
	v.SetDefault("ignore_warnings", []string{})
	v.SetDefault("exclude", []string{})
	v.SetDefault("replace_exclude", d.ReplaceExclude)
	v.SetDefault("context_lines", d.ContextLines)
	v.SetDefault("threads", d.Threads)
	v.SetDefault("no_cache", d.NoCache)
	v.SetDefault("cache_dir", d.CacheDir)
	v.SetDefault("cache_backend", d.CacheBackend)
}

// FindConfigFiles returns the config files in start and its parents,
// farthest first, so that merging them in order lets closer files win.
func FindConfigFiles(fs afero.Fs, start string) []string {
	dir := start
	if info, err := fs.Stat(start); err == nil && !info.IsDir() {
		dir = filepath.Dir(start)
	}
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}

	var found []string
	for {
		// Collected nearest first; after the reverse below the hidden file
		// in a directory is merged last and wins.
		for _, name := range ConfigFileNames {
			path := filepath.Join(dir, name)
			if info, err := fs.Stat(path); err == nil && !info.IsDir() {
				found = append(found, path)
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	slices.Reverse(found)
	return found
}

// LoadConfig builds the effective configuration. With cfgFile set only
// that file is read and any failure is an error. Otherwise the files found
// from start upwards are merged; a discovered file that cannot be parsed
// is logged and skipped. Ignored warnings accumulate across files.
func LoadConfig(fs afero.Fs, start, cfgFile string, logger *slog.Logger) (Config, error) {
	logger = ensureLogger(logger)
	v := viper.New()
	v.SetFs(fs)
	v.SetConfigType("toml")
	setDefaults(v)

	files := []string{cfgFile}
	if cfgFile == "" {
		files = FindConfigFiles(fs, start)
	}

	var (
		sources []string
		ignored []string
	)
	for _, file := range files {
		if err := mergeConfigFile(v, fs, file); err != nil {
			if cfgFile != "" {
				return Config{}, err
			}
			logger.Warn("Skipping invalid config file", slog.String("file", file), slog.String("error", err.Error()))
			continue
		}
		sources = append(sources, file)
		ignored = append(ignored, v.GetStringSlice("ignore_warnings")...)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, NewConfigError("failed unmarshaling config file", err)
	}
	slices.Sort(ignored)
	cfg.IgnoreWarnings = slices.Compact(ignored)
	cfg.Sources = sources

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	logger.Debug("Configuration loaded", slog.Any("sources", sources))
	return cfg, nil
}

// mergeConfigFile parses file on its own first, so a broken file leaves
// the merged state untouched.
func mergeConfigFile(v *viper.Viper, fs afero.Fs, file string) error {
	data, err := afero.ReadFile(fs, file)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewConfigError("config file not found", err).WithFile(file)
		}
		return NewConfigError("failed reading config file", err).WithFile(file)
	}

	probe := viper.New()
	probe.SetConfigType("toml")
	if err := probe.ReadConfig(bytes.NewReader(data)); err != nil {
		return NewConfigError("failed parsing config file", err).WithFile(file)
	}
	if err := v.MergeConfigMap(probe.AllSettings()); err != nil {
		return NewConfigError("failed merging config file", err).WithFile(file)
	}
	return nil
}

// Validate checks enumerated and numeric fields.
func (c Config) Validate() error {
	if !slices.Contains(Formats, c.Format) {
		return NewConfigError(fmt.Sprintf("unknown format %q", c.Format), nil).
			WithDetails("valid formats: " + strings.Join(Formats, ", "))
	}
	if c.CacheBackend != BackendFile && c.CacheBackend != BackendSQLite {
		return NewConfigError(fmt.Sprintf("unknown cache backend %q", c.CacheBackend), nil).
			WithDetails("valid backends: file, sqlite")
	}
	if c.Threads < 0 {
		return NewConfigError(fmt.Sprintf("threads must not be negative, got %d", c.Threads), nil)
	}
	if c.ContextLines < 0 {
		return NewConfigError(fmt.Sprintf("context_lines must not be negative, got %d", c.ContextLines), nil)
	}
	return nil
}

// ParseOptions resolves the settings that reach the checker.
func (c Config) ParseOptions() ParseOptions {
	return NewParseOptions(OptionsSpec{
		Strict:         c.Strict,
		IgnoreWarnings: c.IgnoreWarnings,
		Exclude:        c.Exclude,
		ReplaceExclude: c.ReplaceExclude,
		ContextLines:   c.ContextLines,
		NoCache:        c.NoCache,
		Threads:        c.Threads,
	})
}

var templateDocs = map[string]string{
	"format":          `Output format: "auto", "ascii" (human-readable), "ci" (GitHub Actions), "json", "sarif", "checkstyle", "junit"`,
	"color":           "Enable or disable colored output in terminal",
	"verbose":         "Enable verbose output with detailed parsing information",
	"quiet_success":   "Hide success messages for successful files (only show errors and warnings)",
	"strict":          "Treat warnings as errors (e.g., files with no ASP tags)",
	"ignore_warnings": `List of warnings to ignore (e.g., ["no-asp-tags"])`,
	"exclude":         `Glob patterns to exclude, extending the default exclusions (e.g., ["backup/**", "*.tmp"])`,
	"replace_exclude": "Replace default exclusions instead of extending them",
	"context_lines":   "Lines of source shown around each error",
	"threads":         "Worker count, 0 uses every CPU",
	"no_cache":        "Disable the result cache",
	"cache_dir":       "Cache location, empty uses $" + CacheDirEnv + " or the user cache directory",
	"cache_backend":   `Cache storage: "file" or "sqlite"`,
}

// ConfigTemplate renders the default configuration as a commented file.
func ConfigTemplate() (string, error) {
	defaults := DefaultConfig()
	// nil slices are not encoded
	defaults.IgnoreWarnings, defaults.Exclude = []string{}, []string{}

	var encoded bytes.Buffer
	if err := toml.NewEncoder(&encoded).Encode(defaults); err != nil {
		return "", fmt.Errorf("failed to encode default config: %w", err)
	}

	var out strings.Builder
	out.WriteString("# ASP Classic Parser Configuration\n")
	out.WriteString("# Place this file in your project as asp-parser.toml or .asp-parser.toml.\n")
	out.WriteString("# Files in parent directories are merged too, with closer files taking precedence.\n")

	scanner := bufio.NewScanner(&encoded)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		key, _, _ := strings.Cut(line, " =")
		if doc, ok := templateDocs[key]; ok {
			out.WriteString("\n# " + doc + "\n")
		}
		out.WriteString("# " + line + "\n")
	}
	return out.String(), scanner.Err()
}

// WriteConfigTemplate writes ConfigTemplate to path. An existing file is
// kept unless force is set.
func WriteConfigTemplate(fs afero.Fs, path string, force bool) error {
	if exists, err := afero.Exists(fs, path); err != nil {
		return NewFSError("failed to check config file", err).WithFile(path)
	} else if exists && !force {
		return NewConfigError("config file already exists", os.ErrExist).
			WithFile(path).
			WithDetails("use --force to overwrite it")
	}

	content, err := ConfigTemplate()
	if err != nil {
		return NewConfigError("failed to render config template", err)
	}
	if err := afero.WriteFile(fs, path, []byte(content), 0o644); err != nil {
		return NewFSError("failed to write config file", err).WithFile(path)
	}
	return nil
}
