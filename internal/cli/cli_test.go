package cli

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"devguru-client/internal/config"
	"devguru-client/internal/testutil"
	"devguru-client/internal/token"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "devguru_secret_key_123"

// syncBuffer is written to from the realtime read loop in listen tests.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testConfig() *config.Config {
	return &config.Config{
		Site:     config.SiteConfig{BaseURL: "http://127.0.0.1:1"},
		Realtime: config.RealtimeConfig{TokenExpire: 30 * time.Minute, ReplyTimeout: 2 * time.Second},
		Search:   config.SearchConfig{Debounce: 20 * time.Millisecond},
		Store:    config.StoreConfig{Backend: "sqlite"},
		LogLevel: slog.LevelError,
	}
}

type result struct {
	stdout *syncBuffer
	stderr *syncBuffer
	err    error
}

func run(ctx context.Context, cfg *config.Config, stdin string, args ...string) result {
	a := &app{loadConfig: func() (*config.Config, error) { return cfg, nil }}
	cmd := newRootCmd(a)
	res := result{stdout: &syncBuffer{}, stderr: &syncBuffer{}}
	cmd.SetOut(res.stdout)
	cmd.SetErr(res.stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	res.err = cmd.ExecuteContext(ctx)
	return res
}

func TestVersion(t *testing.T) {
	res := run(context.Background(), testConfig(), "", "version")
	require.NoError(t, res.err)
	assert.Equal(t, "devguru dev\n", res.stdout.String())
}

func TestLike(t *testing.T) {
	srv := testutil.NewAPIServer(t)
	srv.Like = func(kind string, id int, isLike bool) (int, any) {
		return http.StatusOK, gin.H{"success": true, "rating": 5}
	}
	cfg := testConfig()
	cfg.Site.BaseURL = srv.URL

	res := run(context.Background(), cfg, "", "like", "question", "12")
	require.NoError(t, res.err)
	assert.Equal(t, "rating 5 liked=true\n", res.stdout.String())

	calls := srv.Calls("/api/question/12/like/")
	require.Len(t, calls, 1)
	assert.Equal(t, "12", calls[0].Form["pk"])
	assert.Equal(t, "true", calls[0].Form["is_like"])

	res = run(context.Background(), cfg, "", "like", "answer", "4", "--unlike")
	require.NoError(t, res.err)
	assert.Equal(t, "rating 5 liked=false\n", res.stdout.String())
	calls = srv.Calls("/api/answer/4/like/")
	require.Len(t, calls, 1)
	assert.Equal(t, "false", calls[0].Form["is_like"])
}

func TestLikeErrorAlerts(t *testing.T) {
	srv := testutil.NewAPIServer(t)
	srv.Like = func(kind string, id int, isLike bool) (int, any) {
		return http.StatusOK, gin.H{"success": false, "error": "Нельзя лайкать свой вопрос"}
	}
	cfg := testConfig()
	cfg.Site.BaseURL = srv.URL

	res := run(context.Background(), cfg, "", "like", "question", "3")
	assert.Error(t, res.err)
	assert.Empty(t, res.stdout.String())
	assert.Contains(t, res.stderr.String(), "alert: Нельзя лайкать свой вопрос")
}

func TestLikeNetworkErrorAlerts(t *testing.T) {
	res := run(context.Background(), testConfig(), "", "like", "question", "3")
	assert.Error(t, res.err)
	assert.Contains(t, res.stderr.String(), "alert: Ошибка сети")
}

func TestLikeRejectsBadArgs(t *testing.T) {
	assert.Error(t, run(context.Background(), testConfig(), "", "like", "comment", "3").err)
	assert.Error(t, run(context.Background(), testConfig(), "", "like", "question", "x").err)
}

func TestMarkCorrect(t *testing.T) {
	srv := testutil.NewAPIServer(t)
	cfg := testConfig()
	cfg.Site.BaseURL = srv.URL

	res := run(context.Background(), cfg, "", "mark-correct", "9")
	require.NoError(t, res.err)
	assert.Equal(t, "reloading page\n", res.stdout.String())

	calls := srv.Calls("/api/answer/mark-correct/")
	require.Len(t, calls, 1)
	assert.Equal(t, "9", calls[0].Form["pk"])
}

func TestSearchOneShot(t *testing.T) {
	srv := testutil.NewAPIServer(t)
	srv.SearchOrder = func(q string) (int, any) {
		return http.StatusOK, gin.H{"order": []int{3, 1}}
	}
	cfg := testConfig()
	cfg.Site.BaseURL = srv.URL

	res := run(context.Background(), cfg, "", "search", "golang", "--ids", "1,2,3")
	require.NoError(t, res.err)
	assert.Equal(t, "3 1 2\n", res.stdout.String())

	calls := srv.Calls("/api/search-order/")
	require.Len(t, calls, 1)
	assert.Equal(t, "q=golang", calls[0].Query)
}

func TestSearchEmptyQueryPrintsOriginal(t *testing.T) {
	srv := testutil.NewAPIServer(t)
	cfg := testConfig()
	cfg.Site.BaseURL = srv.URL

	res := run(context.Background(), cfg, "", "search", "   ", "--ids", "1,2,3")
	require.NoError(t, res.err)
	assert.Equal(t, "1 2 3\n", res.stdout.String())
	assert.Empty(t, srv.Calls("/api/search-order/"))
}

func TestSearchFromStdin(t *testing.T) {
	srv := testutil.NewAPIServer(t)
	srv.SearchOrder = func(q string) (int, any) {
		return http.StatusOK, gin.H{"order": []int{2}}
	}
	cfg := testConfig()
	cfg.Site.BaseURL = srv.URL
	cfg.Search.Debounce = 50 * time.Millisecond

	// "ab" is cleared before its window ends, so only "go" reaches the server
	res := run(context.Background(), cfg, "ab\n\ngo\n", "search", "--ids", "1,2,3")
	require.NoError(t, res.err)
	assert.Equal(t, "1 2 3\n2 1 3\n", res.stdout.String())

	calls := srv.Calls("/api/search-order/")
	require.Len(t, calls, 1)
	assert.Equal(t, "q=go", calls[0].Query)
}

func TestTags(t *testing.T) {
	res := run(context.Background(), testConfig(), "", "tags", "py",
		"--tag", "Go", "--tag", "Python", "--tag", "PyTest", "--pick", "Go", "--pick", "Python")
	require.NoError(t, res.err)
	assert.Equal(t, "Python\nPyTest\nselected: Go, Python\n", res.stdout.String())
}

func TestTheme(t *testing.T) {
	cfg := testConfig()
	cfg.Store.Path = filepath.Join(t.TempDir(), "preferences.db")

	res := run(context.Background(), cfg, "", "theme")
	require.NoError(t, res.err)
	assert.Equal(t, "data-theme=light\nbutton 🌙 \"Включить темную тему\"\n", res.stdout.String())

	assert.Error(t, run(context.Background(), cfg, "", "theme", "sepia").err)
}

func TestThemeToggleSurvivesRuns(t *testing.T) {
	cfg := testConfig()
	cfg.Store.Path = filepath.Join(t.TempDir(), "preferences.db")

	res := run(context.Background(), cfg, "", "theme", "toggle")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout.String(), "data-theme=dark\n")

	res = run(context.Background(), cfg, "", "theme", "show")
	require.NoError(t, res.err)
	assert.Equal(t, "data-theme=dark\nbutton ☀️ \"Включить светлую тему\"\n", res.stdout.String())

	res = run(context.Background(), cfg, "", "theme", "toggle")
	require.NoError(t, res.err)
	res = run(context.Background(), cfg, "", "theme")
	require.NoError(t, res.err)
	assert.Equal(t, "data-theme=light\nbutton 🌙 \"Включить темную тему\"\n", res.stdout.String())
}

func TestToken(t *testing.T) {
	cfg := testConfig()
	cfg.Realtime.Secret = testSecret
	iss, err := token.NewIssuer(testSecret, 0)
	require.NoError(t, err)

	res := run(context.Background(), cfg, "", "token", "connection", "--user", "7")
	require.NoError(t, res.err)
	claims, err := iss.Parse(strings.TrimSpace(res.stdout.String()))
	require.NoError(t, err)
	assert.Equal(t, "7", claims.Subject)
	assert.Empty(t, claims.Channel)

	res = run(context.Background(), cfg, "", "token", "channel", "question_5", "--user", "7")
	require.NoError(t, res.err)
	claims, err = iss.Parse(strings.TrimSpace(res.stdout.String()))
	require.NoError(t, err)
	assert.Equal(t, "question_5", claims.Channel)
}

func TestTokenWithoutSecret(t *testing.T) {
	res := run(context.Background(), testConfig(), "", "token", "connection")
	assert.ErrorIs(t, res.err, errNoSecret)
}

func TestListen(t *testing.T) {
	srv := testutil.NewRealtimeServer(t, testSecret)
	cfg := testConfig()
	cfg.Realtime.URL = srv.URL
	cfg.Realtime.Secret = testSecret

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := &app{loadConfig: func() (*config.Config, error) { return cfg, nil }}
	cmd := newRootCmd(a)
	stdout := &syncBuffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(&syncBuffer{})
	cmd.SetArgs([]string{"listen", "-c", "question_1", "-c", "question_2"})

	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	assert.Eventually(t, func() bool {
		return srv.Subscribers("question_1") == 1 && srv.Subscribers("question_2") == 1
	}, 2*time.Second, 10*time.Millisecond)

	srv.Publish("question_2", map[string]int{"rating": 3})
	assert.Eventually(t, func() bool {
		return strings.Contains(stdout.String(), `question_2 {"rating":3}`)
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("listen did not stop")
	}
	assert.Eventually(t, func() bool { return srv.Subscribers("question_1") == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestListenStopsWhenServerDisconnects(t *testing.T) {
	srv := testutil.NewRealtimeServer(t, "")
	cfg := testConfig()
	cfg.Realtime.URL = srv.URL

	a := &app{loadConfig: func() (*config.Config, error) { return cfg, nil }}
	cmd := newRootCmd(a)
	cmd.SetOut(&syncBuffer{})
	cmd.SetErr(&syncBuffer{})
	cmd.SetArgs([]string{"listen", "-c", "news"})

	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(context.Background()) }()

	assert.Eventually(t, func() bool { return srv.Subscribers("news") == 1 }, 2*time.Second, 10*time.Millisecond)
	srv.DisconnectAll(3001, "shutdown")

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("listen did not stop")
	}
}

func TestListenConnectFailure(t *testing.T) {
	cfg := testConfig()
	cfg.Realtime.URL = "ws://127.0.0.1:1/connection/websocket"

	res := run(context.Background(), cfg, "", "listen", "-c", "news")
	assert.ErrorIs(t, res.err, errConnectFailed)
}

func TestListenRequiresChannel(t *testing.T) {
	assert.Error(t, run(context.Background(), testConfig(), "", "listen").err)
	assert.Error(t, run(context.Background(), testConfig(), "", "listen", "-c", ":tok").err)
}

func TestParseIDs(t *testing.T) {
	ids, err := parseIDs(" 1, 2,,3 ")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, ids)

	_, err = parseIDs("1,x")
	assert.Error(t, err)
}
