// Package api is a client for the DevGuru JSON endpoints used by page
// scripts: likes, marking the correct answer and search ordering.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
)

const (
	csrfCookie = "csrftoken"
	csrfHeader = "X-CSRFToken"

	// Responses larger than this are treated as malformed
	maxBodySize = 1 << 20
)

var (
	ErrBadResponse = errors.New("api: bad response")
	ErrNoCSRFToken = errors.New("api: csrf cookie not set")
)

// Kind selects which like endpoint is used.
type Kind string

const (
	KindQuestion Kind = "question"
	KindAnswer   Kind = "answer"
)

type Client struct {
	base   *url.URL
	http   *http.Client
	logger *slog.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the underlying client. Its Jar must be set for
// CSRF protected calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithSessionCookies seeds the jar with cookies from an existing browser
// session, e.g. sessionid and csrftoken.
func WithSessionCookies(cookies map[string]string) Option {
	return func(c *Client) {
		if c.http.Jar == nil {
			return
		}
		list := make([]*http.Cookie, 0, len(cookies))
		for name, value := range cookies {
			list = append(list, &http.Cookie{Name: name, Value: value, Path: "/"})
		}
		c.http.Jar.SetCookies(c.base, list)
	}
}

func New(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	c := &Client{
		base:   base,
		http:   &http.Client{Jar: jar},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// LikeQuestion sets or clears the caller's like on a question.
func (c *Client) LikeQuestion(ctx context.Context, id int, isLike bool) (*LikeResponse, error) {
	return c.like(ctx, KindQuestion, id, isLike)
}

// LikeAnswer sets or clears the caller's like on an answer.
func (c *Client) LikeAnswer(ctx context.Context, id int, isLike bool) (*LikeResponse, error) {
	return c.like(ctx, KindAnswer, id, isLike)
}

// Like dispatches on kind.
func (c *Client) Like(ctx context.Context, kind Kind, id int, isLike bool) (*LikeResponse, error) {
	return c.like(ctx, kind, id, isLike)
}

func (c *Client) like(ctx context.Context, kind Kind, id int, isLike bool) (*LikeResponse, error) {
	form := url.Values{}
	form.Set("pk", strconv.Itoa(id))
	form.Set("is_like", strconv.FormatBool(isLike))

	var resp LikeResponse
	status, err := c.postForm(ctx, fmt.Sprintf("api/%s/%d/like/", kind, id), form, &resp)
	if err != nil {
		return nil, err
	}
	if !resp.Success || resp.Error != "" {
		return &resp, &APIError{Status: status, Message: resp.Error}
	}
	if resp.Rating == nil {
		return &resp, fmt.Errorf("%w: rating missing", ErrBadResponse)
	}
	return &resp, nil
}

// MarkCorrect marks answerID as the accepted answer of its question.
func (c *Client) MarkCorrect(ctx context.Context, answerID int) (*MarkCorrectResponse, error) {
	form := url.Values{}
	form.Set("pk", strconv.Itoa(answerID))

	var resp MarkCorrectResponse
	status, err := c.postForm(ctx, "api/answer/mark-correct/", form, &resp)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return &resp, &APIError{Status: status, Message: resp.Error}
	}
	return &resp, nil
}

// SearchOrder returns question ids matching q, best first.
func (c *Client) SearchOrder(ctx context.Context, q string) ([]int, error) {
	u := c.base.ResolveReference(&url.URL{Path: "api/search-order/", RawQuery: url.Values{"q": {q}}.Encode()})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}

	var resp SearchOrderResponse
	if _, err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return resp.Order, nil
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values, out any) (int, error) {
	token, err := c.csrfToken(ctx)
	if err != nil {
		return 0, err
	}

	u := c.base.ResolveReference(&url.URL{Path: path})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), strings.NewReader(form.Encode()))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(csrfHeader, token)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	return c.do(req, out)
}

// csrfToken reads the csrftoken cookie, loading the site root once when
// the jar does not hold it yet.
func (c *Client) csrfToken(ctx context.Context) (string, error) {
	if v := c.cookie(csrfCookie); v != "" {
		return v, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base.String(), nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("load csrf cookie: %w", err)
	}
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
	resp.Body.Close()

	if v := c.cookie(csrfCookie); v != "" {
		return v, nil
	}
	return "", ErrNoCSRFToken
}

func (c *Client) cookie(name string) string {
	if c.http.Jar == nil {
		return ""
	}
	for _, ck := range c.http.Jar.Cookies(c.base) {
		if ck.Name == name {
			v, err := url.QueryUnescape(ck.Value)
			if err != nil {
				return ck.Value
			}
			return v
		}
	}
	return ""
}

// do sends req and decodes a JSON body into out. Non-2xx responses whose
// body carries an error message become *APIError.
func (c *Client) do(req *http.Request, out any) (int, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("API request failed", "method", req.Method, "url", req.URL.Path, "error", err)
		return 0, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("%w: read body: %v", ErrBadResponse, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var body struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(payload, &body) == nil && body.Error != "" {
			c.logger.Warn("API returned error", "url", req.URL.Path, "status", resp.StatusCode, "error", body.Error)
			return resp.StatusCode, &APIError{Status: resp.StatusCode, Message: body.Error}
		}
		c.logger.Error("API returned unexpected status", "url", req.URL.Path, "status", resp.StatusCode)
		return resp.StatusCode, fmt.Errorf("%w: status %d", ErrBadResponse, resp.StatusCode)
	}

	if err := json.Unmarshal(payload, out); err != nil {
		c.logger.Error("API returned malformed JSON", "url", req.URL.Path, "error", err)
		return resp.StatusCode, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	return resp.StatusCode, nil
}
