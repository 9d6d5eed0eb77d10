package middleware

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestSecurityHeadersOnErrorsToo(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(SecurityHeaders())
	r.GET("/api/posts", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.NoRoute(NotFoundHandler)

	for _, path := range []string{"/api/posts", "/missing"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		for _, kv := range securityHeaders {
			require.Equal(t, kv[1], w.Header().Get(kv[0]), "%s on %s", kv[0], path)
		}
	}
}

func TestBodyLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(BodyLimit(4))
	r.POST("/upload", func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.String(http.StatusRequestEntityTooLarge, "limit %d", tooLarge.Limit)
			return
		}
		c.String(http.StatusOK, string(body))
	})

	cases := map[string]int{
		"":         http.StatusOK,
		"abcd":     http.StatusOK,
		"abcde":    http.StatusRequestEntityTooLarge,
		"abcdefgh": http.StatusRequestEntityTooLarge,
	}
	for body, want := range cases {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(body)))
		require.Equal(t, want, w.Code, "body %q", body)
	}
}
