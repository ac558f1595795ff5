package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Terminal renditions of the page elements the handlers drive.

type ratingPrinter struct {
	w      io.Writer
	rating string
	liked  bool
}

func (p *ratingPrinter) SetRating(text string) { p.rating = text }
func (p *ratingPrinter) SetLiked(liked bool)   { p.liked = liked }

func (p *ratingPrinter) print() {
	fmt.Fprintf(p.w, "rating %s liked=%t\n", p.rating, p.liked)
}

type alertPrinter struct {
	w io.Writer
}

func (p *alertPrinter) Alert(message string) {
	fmt.Fprintf(p.w, "alert: %s\n", message)
}

type reloadPrinter struct{ w io.Writer }

func (p reloadPrinter) Reload() {
	fmt.Fprintln(p.w, "reloading page")
}

type orderPrinter struct{ w io.Writer }

func (p orderPrinter) Render(ids []int) {
	fmt.Fprintln(p.w, joinInts(ids))
}

type themePrinter struct{ w io.Writer }

func (p themePrinter) SetThemeAttribute(value string) {
	fmt.Fprintf(p.w, "data-theme=%s\n", value)
}

func (p themePrinter) SetToggleButton(glyph, title string) {
	fmt.Fprintf(p.w, "button %s %q\n", glyph, title)
}

func joinInts(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, " ")
}
