package testutil

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
)

// CSRFToken is the cookie value handed out by APIServer.
const CSRFToken = "test-csrf-token"

// Call is one request seen by APIServer.
type Call struct {
	Method string
	Path   string
	Form   map[string]string
	Query  string
}

// LikeFunc answers a like request for kind ("question" or "answer").
type LikeFunc func(kind string, id int, isLike bool) (int, any)

// APIServer imitates the DevGuru JSON endpoints, including the CSRF check.
type APIServer struct {
	URL string

	Like        LikeFunc
	MarkCorrect func(pk int) (int, any)
	SearchOrder func(q string) (int, any)

	srv   *httptest.Server
	mu    sync.Mutex
	calls []Call
}

func NewAPIServer(t testing.TB) *APIServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &APIServer{
		Like: func(kind string, id int, isLike bool) (int, any) {
			return http.StatusOK, gin.H{"success": true, "rating": 1}
		},
		MarkCorrect: func(pk int) (int, any) {
			return http.StatusOK, gin.H{"success": true}
		},
		SearchOrder: func(q string) (int, any) {
			return http.StatusOK, gin.H{"order": []int{}}
		},
	}

	r := gin.New()
	r.GET("/", func(c *gin.Context) {
		c.SetCookie("csrftoken", CSRFToken, 3600, "/", "", false, false)
		c.String(http.StatusOK, "<html></html>")
	})

	api := r.Group("/api")
	api.Use(s.recordCall)
	{
		api.GET("/search-order/", s.handleSearch)

		posts := api.Group("/")
		posts.Use(requireCSRF)
		posts.POST("/question/:id/like/", s.handleLike("question"))
		posts.POST("/answer/:id/like/", s.handleLike("answer"))
		posts.POST("/answer/mark-correct/", s.handleMarkCorrect)
	}

	s.srv = httptest.NewServer(r)
	s.URL = s.srv.URL
	t.Cleanup(s.srv.Close)
	return s
}

// Calls returns recorded API calls whose path equals path, or all when
// path is empty.
func (s *APIServer) Calls(path string) []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Call
	for _, c := range s.calls {
		if path == "" || c.Path == path {
			out = append(out, c)
		}
	}
	return out
}

func (s *APIServer) recordCall(c *gin.Context) {
	call := Call{Method: c.Request.Method, Path: c.Request.URL.Path, Query: c.Request.URL.RawQuery}
	if c.Request.Method == http.MethodPost {
		if err := c.Request.ParseForm(); err == nil {
			call.Form = make(map[string]string, len(c.Request.PostForm))
			for k := range c.Request.PostForm {
				call.Form[k] = c.Request.PostForm.Get(k)
			}
		}
	}
	s.mu.Lock()
	s.calls = append(s.calls, call)
	s.mu.Unlock()
	c.Next()
}

func requireCSRF(c *gin.Context) {
	cookie, err := c.Cookie("csrftoken")
	if err != nil || cookie == "" || c.GetHeader("X-CSRFToken") != cookie {
		c.Data(http.StatusForbidden, "text/html", []byte("<h1>403 Forbidden</h1>"))
		c.Abort()
		return
	}
	c.Next()
}

func (s *APIServer) handleLike(kind string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "not found"})
			return
		}
		isLike := c.DefaultPostForm("is_like", "true") == "true"
		status, body := s.Like(kind, id, isLike)
		c.JSON(status, body)
	}
}

func (s *APIServer) handleMarkCorrect(c *gin.Context) {
	pk, err := strconv.Atoi(c.PostForm("pk"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "not found"})
		return
	}
	status, body := s.MarkCorrect(pk)
	c.JSON(status, body)
}

func (s *APIServer) handleSearch(c *gin.Context) {
	status, body := s.SearchOrder(c.Query("q"))
	c.JSON(status, body)
}
