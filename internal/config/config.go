package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"regexp"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/joho/godotenv"

	"github.com/roach88/placement/internal/scheduler"
	"github.com/roach88/placement/internal/search"
)

//go:embed schema.cue
var schemaCUE string

// Environment variables that override file values.
const (
	EnvDatabase        = "PLACEMENT_DB"
	EnvTimeZone        = "PLACEMENT_TZ"
	EnvPublishSchedule = "PLACEMENT_PUBLISH_CRON"
	EnvLogLevel        = "PLACEMENT_LOG_LEVEL"
)

var envFields = []struct{ env, field string }{
	{EnvDatabase, "database"},
	{EnvTimeZone, "time_zone"},
	{EnvPublishSchedule, "publish_schedule"},
	{EnvLogLevel, "log_level"},
}

// Config is the validated configuration. It is a value; nothing mutates it
// after Load returns.
type Config struct {
	Database             string   `json:"database"`
	TimeZone             string   `json:"time_zone"`
	StopWords            []string `json:"stop_words"`
	CandidateCodePattern string   `json:"candidate_code_pattern"`
	RequestCodePattern   string   `json:"request_code_pattern"`
	PublishSchedule      string   `json:"publish_schedule"`
	LogLevel             string   `json:"log_level"`

	location      *time.Location
	candidateCode *regexp.Regexp
	requestCode   *regexp.Regexp
}

// Default returns the configuration defined by the schema defaults alone.
func Default() (Config, error) {
	return load(nil, "", nil)
}

// Load reads the CUE file at path (skipped when path is empty), applies
// environment overrides and validates the result.
func Load(path string) (Config, error) {
	var src []byte
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		src = data
	}
	return load(src, path, envOverrides())
}

// Parse validates CUE source without consulting the environment.
func Parse(src []byte) (Config, error) {
	return load(src, "config.cue", nil)
}

// LoadDotEnv loads KEY=value pairs from path into the process environment
// without overwriting variables that are already set. A missing file is not
// an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func envOverrides() map[string]string {
	overrides := map[string]string{}
	for _, ef := range envFields {
		if v, ok := os.LookupEnv(ef.env); ok && v != "" {
			overrides[ef.field] = v
		}
	}
	return overrides
}

func load(src []byte, filename string, overrides map[string]string) (Config, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Config{}, fmt.Errorf("compile schema: %w", err)
	}
	v := schema.LookupPath(cue.ParsePath("#Config"))

	if len(src) > 0 {
		file := ctx.CompileBytes(src, cue.Filename(filename))
		if err := file.Err(); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
		file, err := withoutFields(ctx, file, overrides)
		if err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
		v = v.Unify(file)
	}
	if len(overrides) > 0 {
		v = v.Unify(ctx.Encode(overrides))
	}
	if err := v.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	var c Config
	if err := v.Decode(&c); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := c.compile(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// withoutFields rebuilds file without the top-level fields named in drop.
// Unification never replaces a concrete value, so a field set by the
// environment must not also reach the schema from the file.
func withoutFields(ctx *cue.Context, file cue.Value, drop map[string]string) (cue.Value, error) {
	if len(drop) == 0 {
		return file, nil
	}
	it, err := file.Fields()
	if err != nil {
		return cue.Value{}, err
	}
	out := ctx.CompileString("{}")
	for it.Next() {
		sel := it.Selector()
		if _, ok := drop[sel.String()]; ok {
			continue
		}
		out = out.FillPath(cue.MakePath(sel), it.Value())
	}
	return out, out.Err()
}

func (c *Config) compile() error {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return fmt.Errorf("invalid config: time_zone %q: %w", c.TimeZone, err)
	}
	candidateCode, err := regexp.Compile(c.CandidateCodePattern)
	if err != nil {
		return fmt.Errorf("invalid config: candidate_code_pattern: %w", err)
	}
	requestCode, err := regexp.Compile(c.RequestCodePattern)
	if err != nil {
		return fmt.Errorf("invalid config: request_code_pattern: %w", err)
	}
	if _, err := scheduler.Parser.Parse(c.PublishSchedule); err != nil {
		return fmt.Errorf("invalid config: publish_schedule %q: %w", c.PublishSchedule, err)
	}
	c.location = loc
	c.candidateCode = candidateCode
	c.requestCode = requestCode
	return nil
}

// Location returns the configured time zone.
func (c Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// Level returns the configured slog level.
func (c Config) Level() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Normalizer builds the text normalizer for the configured stop-words.
func (c Config) Normalizer() *search.Normalizer {
	return search.NewNormalizer(c.StopWords)
}

// CandidateMatcher builds the matcher for candidate lookups.
func (c Config) CandidateMatcher() *search.Matcher {
	var opts []search.MatcherOption
	if c.candidateCode != nil {
		opts = append(opts, search.WithExactCode(c.candidateCode))
	}
	return search.NewMatcher(c.Normalizer(), opts...)
}

// RequestMatcher builds the matcher for request lookups.
func (c Config) RequestMatcher() *search.Matcher {
	var opts []search.MatcherOption
	if c.requestCode != nil {
		opts = append(opts, search.WithProbeCode(c.requestCode))
	}
	return search.NewMatcher(c.Normalizer(), opts...)
}
