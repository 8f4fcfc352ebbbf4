package config

import (
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration with human-friendly YAML encoding ("30s").
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Settings is the runtime-adjustable slideshow configuration. The render
// loop reads it as an immutable snapshot once per frame; updates replace
// the whole value atomically through the Store.
type Settings struct {
	// DisplayDuration is the minimum time a photo stays on screen. On slow
	// networks photos stay longer, until the next one is ready.
	DisplayDuration Duration `yaml:"display_duration"`

	// TransitionDuration is the crossfade length between two photos.
	TransitionDuration Duration `yaml:"transition_duration"`

	// Background fills the free space around the photo: "blur" or "black".
	Background string `yaml:"background"`

	Blur    BlurSettings    `yaml:"blur"`
	Caption CaptionSettings `yaml:"caption"`

	// Rotation is the display orientation in degrees: 0, 90, 180 or 270.
	Rotation int `yaml:"rotation"`

	// Filter selects the downscaling filter for oversized photos:
	// "nearest", "approx-bilinear", "bilinear" or "catmull-rom".
	Filter string `yaml:"filter"`
}

// BlurSettings parameterizes the background blur compositor.
type BlurSettings struct {
	Radius float64 `yaml:"radius"`
	Passes int     `yaml:"passes"`
}

// CaptionSettings parameterizes the caption overlay.
type CaptionSettings struct {
	Enabled bool `yaml:"enabled"`
	// DateFormat is a Go time layout for the capture date.
	DateFormat string  `yaml:"date_format"`
	FontSize   float64 `yaml:"font_size"`
}

// DefaultSettings returns the settings used when the config file does not
// override them.
func DefaultSettings() Settings {
	return Settings{
		DisplayDuration:    Duration(30 * time.Second),
		TransitionDuration: Duration(500 * time.Millisecond),
		Background:         "blur",
		Blur:               BlurSettings{Radius: 6, Passes: 3},
		Caption:            CaptionSettings{Enabled: true, DateFormat: "Monday, 2 January 2006", FontSize: 28},
		Rotation:           0,
		Filter:             "catmull-rom",
	}
}

// ValidateSettings checks a settings value and fills defaults in place.
func ValidateSettings(s *Settings) error {
	if s.DisplayDuration <= 0 {
		s.DisplayDuration = Duration(30 * time.Second)
	}
	if s.TransitionDuration <= 0 {
		s.TransitionDuration = Duration(500 * time.Millisecond)
	}
	switch s.Background {
	case "":
		s.Background = "blur"
	case "black", "blur":
	default:
		return fmt.Errorf("background must be blur or black, got %q", s.Background)
	}
	if s.Blur.Radius <= 0 {
		s.Blur.Radius = 6
	}
	if s.Blur.Passes <= 0 {
		s.Blur.Passes = 3
	}
	if s.Blur.Passes > 16 {
		return fmt.Errorf("blur.passes must be <= 16, got %d", s.Blur.Passes)
	}
	switch s.Rotation {
	case 0, 90, 180, 270:
	default:
		return fmt.Errorf("rotation must be 0, 90, 180 or 270, got %d", s.Rotation)
	}
	switch s.Filter {
	case "":
		s.Filter = "catmull-rom"
	case "nearest", "approx-bilinear", "bilinear", "catmull-rom":
	default:
		return fmt.Errorf("unknown filter %q", s.Filter)
	}
	if s.Caption.DateFormat == "" {
		s.Caption.DateFormat = "Monday, 2 January 2006"
	}
	if s.Caption.FontSize <= 0 {
		s.Caption.FontSize = 28
	}
	return nil
}

// Patch returns a copy of s with the field at path replaced by value.
// Paths use dotted lowercase names matching the YAML keys, e.g.
// "display_duration", "blur.passes", "caption.enabled". Unknown paths and
// unconvertible values return an error; s is never modified.
func (s Settings) Patch(path string, value any) (Settings, error) {
	out := s
	var err error
	switch path {
	case "display_duration":
		out.DisplayDuration, err = toDuration(value)
	case "transition_duration":
		out.TransitionDuration, err = toDuration(value)
	case "background":
		out.Background, err = toString(value)
	case "blur.radius":
		out.Blur.Radius, err = toFloat(value)
	case "blur.passes":
		var n float64
		n, err = toFloat(value)
		out.Blur.Passes = int(n)
	case "caption.enabled":
		out.Caption.Enabled, err = toBool(value)
	case "caption.date_format":
		out.Caption.DateFormat, err = toString(value)
	case "caption.font_size":
		out.Caption.FontSize, err = toFloat(value)
	case "rotation":
		var n float64
		n, err = toFloat(value)
		out.Rotation = int(n)
	case "filter":
		out.Filter, err = toString(value)
	default:
		return s, fmt.Errorf("unknown option %q", path)
	}
	if err != nil {
		return s, fmt.Errorf("option %q: %w", path, err)
	}
	if err := ValidateSettings(&out); err != nil {
		return s, err
	}
	return out, nil
}

func toDuration(v any) (Duration, error) {
	switch t := v.(type) {
	case string:
		d, err := time.ParseDuration(t)
		return Duration(d), err
	case float64:
		return Duration(time.Duration(t * float64(time.Second))), nil
	case int:
		return Duration(time.Duration(t) * time.Second), nil
	default:
		return 0, fmt.Errorf("cannot interpret %T as duration", v)
	}
}

func toString(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("expected string, got %T", v)
	}
	return strings.TrimSpace(s), nil
}

func toFloat(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case string:
		return strconv.ParseFloat(t, 64)
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
}

func toBool(v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		return strconv.ParseBool(t)
	default:
		return false, fmt.Errorf("expected bool, got %T", v)
	}
}

// Store holds the current settings snapshot. Reads are lock-free; Replace
// swaps the whole value so the render loop never observes a half-applied
// update.
type Store struct {
	current atomic.Pointer[Settings]
}

// NewStore creates a store seeded with the given snapshot.
func NewStore(s Settings) *Store {
	st := &Store{}
	st.current.Store(&s)
	return st
}

// Load returns the current snapshot. The returned value must be treated as
// immutable.
func (st *Store) Load() Settings {
	return *st.current.Load()
}

// Replace swaps in a new snapshot.
func (st *Store) Replace(s Settings) {
	st.current.Store(&s)
}
