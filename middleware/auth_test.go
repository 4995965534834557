package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func sweepRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/internal/sweeps/test", SweepAuth(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return router
}

func postSweep(router *gin.Engine, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/internal/sweeps/test", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSweepAuth_FailsClosedWhenUnset(t *testing.T) {
	t.Setenv("SWEEP_TOKEN", "")
	if w := postSweep(sweepRouter(), "anything"); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status %d with no configured token, got %d", http.StatusUnauthorized, w.Code)
	}
}

func TestSweepAuth_RejectsWrongToken(t *testing.T) {
	t.Setenv("SWEEP_TOKEN", "scheduler-secret")
	if w := postSweep(sweepRouter(), "not-it"); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}
}

func TestSweepAuth_AcceptsSharedSecret(t *testing.T) {
	t.Setenv("SWEEP_TOKEN", "scheduler-secret")
	if w := postSweep(sweepRouter(), "scheduler-secret"); w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
}

func TestAdminAuth_RejectsMissingToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/admin/ping", AdminAuth(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}
}

func TestAdminAuth_AcceptsGeneratedToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/admin/ping", AdminAuth(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"email": c.GetString("admin_email")})
	})

	token, err := GenerateAdminToken("admin@example.com")
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
}
