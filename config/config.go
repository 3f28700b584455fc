// Package config loads projection settings from a YAML file.
//
// A file has a defaults block and per-session overrides. Session keys may
// be exact keys or path.Match patterns ("chat:*"); exact keys win over
// patterns, and longer patterns win over shorter ones. Anything not set
// falls back to projection.DefaultConfig.
//
//	defaults:
//	  meta_mode: minimal
//	  delivery_mode: live
//	sessions:
//	  "chat:*":
//	    delivery_mode: final_only
//	    tag_visibility:
//	      plan: true
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bazelment/yoloswe/acprelay/projection"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Settings is a partial projection configuration. Nil fields inherit.
type Settings struct {
	MetaMode             *string         `yaml:"meta_mode,omitempty" json:"meta_mode,omitempty" jsonschema:"enum=off,enum=minimal,enum=verbose,description=How much tool and status activity is shown"`
	ShowUsage            *bool           `yaml:"show_usage,omitempty" json:"show_usage,omitempty" jsonschema:"description=Show context window usage updates"`
	DeliveryMode         *string         `yaml:"delivery_mode,omitempty" json:"delivery_mode,omitempty" jsonschema:"enum=live,enum=final_only,description=Stream text as it arrives or send it once at the end"`
	MaxTurnChars         *int            `yaml:"max_turn_chars,omitempty" json:"max_turn_chars,omitempty" jsonschema:"minimum=1,description=Assistant text characters per turn"`
	MaxToolSummaryChars  *int            `yaml:"max_tool_summary_chars,omitempty" json:"max_tool_summary_chars,omitempty" jsonschema:"minimum=1"`
	MaxStatusChars       *int            `yaml:"max_status_chars,omitempty" json:"max_status_chars,omitempty" jsonschema:"minimum=1"`
	MaxMetaEventsPerTurn *int            `yaml:"max_meta_events_per_turn,omitempty" json:"max_meta_events_per_turn,omitempty" jsonschema:"minimum=0,description=Meta events per turn; 0 shows none"`
	TagVisibility        map[string]bool `yaml:"tag_visibility,omitempty" json:"tag_visibility,omitempty" jsonschema:"description=Per-category visibility overrides keyed by category name or ACP tag"`
	TypingTrigger        *string         `yaml:"typing_trigger,omitempty" json:"typing_trigger,omitempty" jsonschema:"enum=any,enum=text,enum=never"`
	TypingInterval       *string         `yaml:"typing_interval,omitempty" json:"typing_interval,omitempty" jsonschema:"description=Go duration between typing refreshes,example=6s"`
	TruncationNotice     *string         `yaml:"truncation_notice,omitempty" json:"truncation_notice,omitempty"`
}

// File is the on-disk configuration.
type File struct {
	Sessions map[string]Settings `yaml:"sessions,omitempty" json:"sessions,omitempty" jsonschema:"description=Overrides keyed by session key or glob pattern"`
	Defaults Settings            `yaml:"defaults,omitempty" json:"defaults,omitempty"`
}

// Parse decodes and validates YAML. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Load reads the file at p. A missing file yields an empty File, which
// resolves to the defaults.
func Load(p string) (*File, error) {
	data, err := os.ReadFile(p)
	if os.IsNotExist(err) {
		return &File{}, nil
	}
	if err != nil {
		return nil, err
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	return f, nil
}

// Validate reports every problem in the file at once.
func (f *File) Validate() error {
	var errs []error
	errs = append(errs, f.Defaults.validate("defaults")...)
	for _, key := range sortedKeys(f.Sessions) {
		if _, err := path.Match(key, ""); err != nil {
			errs = append(errs, fmt.Errorf("sessions.%s: bad pattern: %v", key, err))
		}
		s := f.Sessions[key]
		errs = append(errs, s.validate("sessions."+key)...)
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

func (s *Settings) validate(where string) []error {
	var errs []error
	oneOf := func(field string, v *string, allowed ...string) {
		if v == nil {
			return
		}
		for _, a := range allowed {
			if *v == a {
				return
			}
		}
		errs = append(errs, fmt.Errorf("%s.%s: %q is not one of %v", where, field, *v, allowed))
	}
	positive := func(field string, v *int) {
		if v != nil && *v <= 0 {
			errs = append(errs, fmt.Errorf("%s.%s: must be positive, got %d", where, field, *v))
		}
	}

	oneOf("meta_mode", s.MetaMode, "off", "minimal", "verbose")
	oneOf("delivery_mode", s.DeliveryMode, "live", "final_only")
	oneOf("typing_trigger", s.TypingTrigger, "any", "text", "never")
	positive("max_turn_chars", s.MaxTurnChars)
	positive("max_tool_summary_chars", s.MaxToolSummaryChars)
	positive("max_status_chars", s.MaxStatusChars)
	if v := s.MaxMetaEventsPerTurn; v != nil && *v < 0 {
		errs = append(errs, fmt.Errorf("%s.max_meta_events_per_turn: must not be negative, got %d", where, *v))
	}
	if s.TypingInterval != nil {
		if d, err := time.ParseDuration(*s.TypingInterval); err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("%s.typing_interval: %q is not a positive duration", where, *s.TypingInterval))
		}
	}
	for _, tag := range sortedKeys(s.TagVisibility) {
		if _, ok := projection.ParseCategory(tag); !ok {
			errs = append(errs, fmt.Errorf("%s.tag_visibility: unknown category %q", where, tag))
		}
	}
	return errs
}

// apply overlays the set fields of s onto cfg.
func (s *Settings) apply(cfg *projection.Config) {
	if s.MetaMode != nil {
		cfg.MetaMode = projection.MetaMode(*s.MetaMode)
	}
	if s.ShowUsage != nil {
		cfg.ShowUsage = *s.ShowUsage
	}
	if s.DeliveryMode != nil {
		cfg.DeliveryMode = projection.DeliveryMode(*s.DeliveryMode)
	}
	if s.MaxTurnChars != nil {
		cfg.MaxTurnChars = *s.MaxTurnChars
	}
	if s.MaxToolSummaryChars != nil {
		cfg.MaxToolSummaryChars = *s.MaxToolSummaryChars
	}
	if s.MaxStatusChars != nil {
		cfg.MaxStatusChars = *s.MaxStatusChars
	}
	if s.MaxMetaEventsPerTurn != nil {
		cfg.MaxMetaEventsPerTurn = *s.MaxMetaEventsPerTurn
		if cfg.MaxMetaEventsPerTurn == 0 {
			cfg.MaxMetaEventsPerTurn = projection.NoMetaEvents
		}
	}
	if s.TypingTrigger != nil {
		cfg.TypingTrigger = projection.TypingTrigger(*s.TypingTrigger)
	}
	if s.TypingInterval != nil {
		if d, err := time.ParseDuration(*s.TypingInterval); err == nil {
			cfg.TypingInterval = d
		}
	}
	if s.TruncationNotice != nil {
		cfg.TruncationNotice = *s.TruncationNotice
	}
	for tag, visible := range s.TagVisibility {
		cat, ok := projection.ParseCategory(tag)
		if !ok {
			continue
		}
		if cfg.TagVisibility == nil {
			cfg.TagVisibility = make(map[projection.Category]bool)
		}
		cfg.TagVisibility[cat] = visible
	}
}

// Resolve builds the configuration for sessionKey: defaults, then matching
// patterns from least to most specific, then an exact entry.
func (f *File) Resolve(sessionKey string) projection.Config {
	cfg := projection.DefaultConfig()
	f.Defaults.apply(&cfg)

	var patterns []string
	for key := range f.Sessions {
		if key == sessionKey {
			continue
		}
		if ok, _ := path.Match(key, sessionKey); ok {
			patterns = append(patterns, key)
		}
	}
	sort.Slice(patterns, func(i, j int) bool {
		if len(patterns[i]) != len(patterns[j]) {
			return len(patterns[i]) < len(patterns[j])
		}
		return patterns[i] < patterns[j]
	})
	for _, key := range patterns {
		s := f.Sessions[key]
		s.apply(&cfg)
	}
	if s, ok := f.Sessions[sessionKey]; ok {
		s.apply(&cfg)
	}
	return cfg.WithDefaults()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
