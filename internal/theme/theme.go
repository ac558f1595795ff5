// Package theme switches the page between the light and dark colour
// schemes and remembers the choice in a preference store.
package theme

import (
	"context"
	"fmt"
	"log/slog"

	"devguru-client/internal/storage"
)

type Theme string

const (
	Light Theme = "light"
	Dark  Theme = "dark"
)

// StorageKey is the preference key holding the selected theme.
const StorageKey = "theme"

func (t Theme) IsValid() bool {
	switch t {
	case Light, Dark:
		return true
	}
	return false
}

// Opposite returns the theme a toggle switches to.
func (t Theme) Opposite() Theme {
	if t == Dark {
		return Light
	}
	return Dark
}

// Parse maps a stored value to a theme. Anything unknown is Light.
func Parse(s string) Theme {
	t := Theme(s)
	if !t.IsValid() {
		return Light
	}
	return t
}

// Button returns the toggle glyph and title shown while t is active.
func (t Theme) Button() (glyph, title string) {
	if t == Dark {
		return "☀️", "Включить светлую тему"
	}
	return "🌙", "Включить темную тему"
}

// Document is the page: the data-theme attribute and the toggle button.
type Document interface {
	SetThemeAttribute(value string)
	SetToggleButton(glyph, title string)
}

type Switcher struct {
	store   storage.KV
	doc     Document
	logger  *slog.Logger
	current Theme
}

func NewSwitcher(store storage.KV, doc Document, logger *slog.Logger) *Switcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Switcher{store: store, doc: doc, logger: logger, current: Light}
}

func (s *Switcher) Current() Theme {
	return s.current
}

// Load reads the stored theme and applies it. A store failure applies the
// default theme and is returned.
func (s *Switcher) Load(ctx context.Context) (Theme, error) {
	v, ok, err := s.store.Get(ctx, StorageKey)
	if err != nil {
		s.apply(Light)
		return Light, fmt.Errorf("load theme: %w", err)
	}
	t := Light
	if ok {
		t = Parse(v)
		if string(t) != v {
			s.logger.Debug("Unknown stored theme, using default", "value", v)
		}
	}
	s.apply(t)
	return t, nil
}

// Toggle flips the theme, applies it and persists it.
func (s *Switcher) Toggle(ctx context.Context) (Theme, error) {
	next := s.current.Opposite()
	s.apply(next)
	if err := s.store.Set(ctx, StorageKey, string(next)); err != nil {
		s.logger.Warn("Failed to persist theme", "theme", next, "error", err)
		return next, fmt.Errorf("save theme: %w", err)
	}
	return next, nil
}

func (s *Switcher) apply(t Theme) {
	s.current = t
	s.doc.SetThemeAttribute(string(t))
	glyph, title := t.Button()
	s.doc.SetToggleButton(glyph, title)
}
