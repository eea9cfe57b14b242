package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestUpgradeLimiter(t *testing.T) {
	newServer := func(perMinute int) *echo.Echo {
		e := echo.New()
		e.GET("/", func(c echo.Context) error {
			return c.String(http.StatusOK, "OK")
		}, UpgradeLimiter(perMinute))
		return e
	}

	hit := func(e *echo.Echo, addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec.Code
	}

	t.Run("allows the burst then blocks", func(t *testing.T) {
		e := newServer(3)
		for i := 0; i < 3; i++ {
			assert.Equal(t, http.StatusOK, hit(e, "192.0.2.1:1234"), "request %d", i+1)
		}
		assert.Equal(t, http.StatusTooManyRequests, hit(e, "192.0.2.1:1234"))
	})

	t.Run("tracks clients independently", func(t *testing.T) {
		e := newServer(1)
		assert.Equal(t, http.StatusOK, hit(e, "192.0.2.2:1234"))
		assert.Equal(t, http.StatusTooManyRequests, hit(e, "192.0.2.2:1234"))
		assert.Equal(t, http.StatusOK, hit(e, "192.0.2.3:1234"))
	})

	t.Run("disabled when limit is zero", func(t *testing.T) {
		e := newServer(0)
		for i := 0; i < 20; i++ {
			assert.Equal(t, http.StatusOK, hit(e, "192.0.2.4:1234"))
		}
	})
}
