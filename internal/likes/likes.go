// Package likes toggles likes on questions and answers and marks accepted
// answers. View state changes only after a successful server response.
package likes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"devguru-client/internal/api"
)

// User-facing alert texts.
const (
	AlertNetwork = "Ошибка сети. Попробуйте ещё раз позже."
	AlertUnknown = "Не удалось выполнить действие."
)

// Liker is the subset of api.Client used by Toggler.
type Liker interface {
	Like(ctx context.Context, kind api.Kind, id int, isLike bool) (*api.LikeResponse, error)
}

type MarkCorrecter interface {
	MarkCorrect(ctx context.Context, answerID int) (*api.MarkCorrectResponse, error)
}

// RatingView is the rendered like control: the rating counter and the
// liked flag mirrored on the button.
type RatingView interface {
	SetRating(text string)
	SetLiked(liked bool)
}

// Alerter shows a blocking message to the user.
type Alerter interface {
	Alert(message string)
}

// Reloader reloads the current page.
type Reloader interface {
	Reload()
}

// Button is one like control bound to a question or an answer.
type Button struct {
	Kind api.Kind
	ID   int

	mu     sync.Mutex
	liked  bool
	rating string
	view   RatingView
}

func NewButton(kind api.Kind, id int, liked bool, rating string, view RatingView) *Button {
	return &Button{Kind: kind, ID: id, liked: liked, rating: rating, view: view}
}

func (b *Button) Liked() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.liked
}

func (b *Button) Rating() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rating
}

func (b *Button) apply(rating int, liked bool) {
	b.mu.Lock()
	b.rating = strconv.Itoa(rating)
	b.liked = liked
	text := b.rating
	b.mu.Unlock()

	if b.view != nil {
		b.view.SetRating(text)
		b.view.SetLiked(liked)
	}
}

type Toggler struct {
	api    Liker
	alerts Alerter
	logger *slog.Logger
}

func NewToggler(liker Liker, alerts Alerter, logger *slog.Logger) *Toggler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Toggler{api: liker, alerts: alerts, logger: logger}
}

// Toggle asks the server to flip b's like. On failure b is unchanged and
// the user is alerted; the error is returned as well.
func (t *Toggler) Toggle(ctx context.Context, b *Button) error {
	want := !b.Liked()

	resp, err := t.api.Like(ctx, b.Kind, b.ID, want)
	if err == nil && (resp == nil || resp.Rating == nil) {
		err = fmt.Errorf("%w: rating missing", api.ErrBadResponse)
	}
	if err != nil {
		t.logger.Error("like error", "kind", b.Kind, "id", b.ID, "error", err)
		alertFor(t.alerts, err)
		return err
	}

	b.apply(*resp.Rating, want)
	t.logger.Debug("Like toggled", "kind", b.Kind, "id", b.ID, "liked", want, "rating", *resp.Rating)
	return nil
}

// alertFor shows the server message for application errors and a generic
// text otherwise.
func alertFor(alerts Alerter, err error) {
	if alerts == nil {
		return
	}
	var apiErr *api.APIError
	switch {
	case errors.As(err, &apiErr) && apiErr.Message != "":
		alerts.Alert(apiErr.Message)
	case errors.As(err, &apiErr), errors.Is(err, api.ErrBadResponse):
		alerts.Alert(AlertUnknown)
	default:
		alerts.Alert(AlertNetwork)
	}
}

// CorrectMarker marks an answer as accepted and reloads the page.
type CorrectMarker struct {
	api      MarkCorrecter
	alerts   Alerter
	reloader Reloader
	logger   *slog.Logger
}

func NewCorrectMarker(m MarkCorrecter, alerts Alerter, reloader Reloader, logger *slog.Logger) *CorrectMarker {
	if logger == nil {
		logger = slog.Default()
	}
	return &CorrectMarker{api: m, alerts: alerts, reloader: reloader, logger: logger}
}

func (m *CorrectMarker) Mark(ctx context.Context, answerID int) error {
	if _, err := m.api.MarkCorrect(ctx, answerID); err != nil {
		m.logger.Error("mark correct error", "answerID", answerID, "error", err)
		alertFor(m.alerts, err)
		return err
	}
	if m.reloader != nil {
		m.reloader.Reload()
	}
	return nil
}
