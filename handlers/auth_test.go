package handlers

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"fulfillment-svc/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
)

const selectAdminSQL = "SELECT id, email, password_hash FROM admins WHERE email = $1"

func setupAuthTest(t *testing.T) (sqlmock.Sqlmock, *gin.Engine, func()) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}

	handler := NewAuthHandler(db, zaptest.NewLogger(t))

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/auth/login", handler.Login)

	return mock, router, func() { db.Close() }
}

func postLogin(router *gin.Engine, email, password string) *httptest.ResponseRecorder {
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestLogin_Success(t *testing.T) {
	mock, router, cleanup := setupAuthTest(t)
	defer cleanup()

	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}

	mock.ExpectQuery(regexp.QuoteMeta(selectAdminSQL)).
		WithArgs("admin@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash"}).
			AddRow(1, "admin@example.com", string(hash)))

	w := postLogin(router, "admin@example.com", "correct-horse")

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	var resp models.LoginResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Token == "" {
		t.Error("Expected a token in the response")
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	mock, router, cleanup := setupAuthTest(t)
	defer cleanup()

	hash, _ := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	mock.ExpectQuery(regexp.QuoteMeta(selectAdminSQL)).
		WithArgs("admin@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash"}).
			AddRow(1, "admin@example.com", string(hash)))

	w := postLogin(router, "admin@example.com", "wrong")

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}
}

func TestLogin_UnknownEmail(t *testing.T) {
	mock, router, cleanup := setupAuthTest(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(selectAdminSQL)).
		WithArgs("nobody@example.com").
		WillReturnError(sql.ErrNoRows)

	w := postLogin(router, "nobody@example.com", "whatever")

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}
}
