// Package tags filters the tag choices of the ask form and tracks which
// tags were picked.
package tags

import (
	"strings"
	"sync"
)

// Filter reports for each label whether it contains query, ignoring case.
// An empty query matches every label.
func Filter(labels []string, query string) []bool {
	q := strings.ToLower(query)
	visible := make([]bool, len(labels))
	for i, label := range labels {
		visible[i] = strings.Contains(strings.ToLower(label), q)
	}
	return visible
}

// Visibility shows or hides a tag choice.
type Visibility interface {
	SetVisible(tag string, visible bool)
}

type Picker struct {
	mu       sync.Mutex
	tags     []string
	selected []string
	view     Visibility
}

func NewPicker(tags []string, view Visibility) *Picker {
	return &Picker{tags: append([]string(nil), tags...), view: view}
}

// Search applies Filter to the choices and returns the visible tags.
func (p *Picker) Search(query string) []string {
	p.mu.Lock()
	tags := append([]string(nil), p.tags...)
	p.mu.Unlock()

	visible := Filter(tags, query)
	var shown []string
	for i, tag := range tags {
		if p.view != nil {
			p.view.SetVisible(tag, visible[i])
		}
		if visible[i] {
			shown = append(shown, tag)
		}
	}
	return shown
}

// Toggle selects an unselected tag or deselects a selected one and
// returns whether it is selected afterwards. Unknown tags are ignored.
func (p *Picker) Toggle(tag string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	known := false
	for _, t := range p.tags {
		if t == tag {
			known = true
			break
		}
	}
	if !known {
		return false
	}

	for i, t := range p.selected {
		if t == tag {
			p.selected = append(p.selected[:i], p.selected[i+1:]...)
			return false
		}
	}
	p.selected = append(p.selected, tag)
	return true
}

// Selected returns picked tags in pick order.
func (p *Picker) Selected() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.selected...)
}
