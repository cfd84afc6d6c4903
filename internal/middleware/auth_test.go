package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/econsulaire/portal/internal/models"
	"github.com/econsulaire/portal/internal/utils"
)

const testSecret = "middleware-test-secret"

func setupAuthTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, role models.Role, active bool) *models.User {
	t.Helper()
	user := models.User{
		Username: fmt.Sprintf("u-%s-%v", role, active), Email: fmt.Sprintf("%s-%v@example.com", role, active),
		PasswordHash: "x", FirstName: "Test", LastName: "User",
		Role: role, Active: active,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return &user
}

func TestAuthLoadsUser(t *testing.T) {
	db := setupAuthTestDB(t)
	user := createTestUser(t, db, models.RoleCitizen, true)

	token, _, err := utils.GenerateTokens(user, testSecret)
	if err != nil {
		t.Fatalf("tokens: %v", err)
	}

	var got *models.User
	handler := Auth(db, testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = CurrentUser(r)
	}))

	req := httptest.NewRequest("GET", "/api/citizen/applications", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if got == nil || got.ID != user.ID {
		t.Error("current user not loaded into context")
	}
}

func TestAuthRejectsBadTokens(t *testing.T) {
	db := setupAuthTestDB(t)
	handler := Auth(db, testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not run")
	}))

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"malformed header", "Token abc", http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		req := httptest.NewRequest("GET", "/", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != tc.want {
			t.Errorf("%s: status = %d, want %d", tc.name, rr.Code, tc.want)
		}
	}
}

func TestAuthRejectsDisabledAccount(t *testing.T) {
	db := setupAuthTestDB(t)
	user := createTestUser(t, db, models.RoleAgent, false)
	token, _, err := utils.GenerateTokens(user, testSecret)
	if err != nil {
		t.Fatalf("tokens: %v", err)
	}

	handler := Auth(db, testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not run")
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rr.Code)
	}
}

func TestRequireRole(t *testing.T) {
	db := setupAuthTestDB(t)
	agent := createTestUser(t, db, models.RoleAgent, true)
	citizen := createTestUser(t, db, models.RoleCitizen, true)

	inner := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }
	protected := Auth(db, testSecret)(RequireRole(models.RoleAgent, models.RoleAdmin)(inner))

	run := func(u *models.User) int {
		token, _, err := utils.GenerateTokens(u, testSecret)
		if err != nil {
			t.Fatalf("tokens: %v", err)
		}
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		protected.ServeHTTP(rr, req)
		return rr.Code
	}

	if code := run(agent); code != http.StatusNoContent {
		t.Errorf("agent: status = %d, want 204", code)
	}
	if code := run(citizen); code != http.StatusForbidden {
		t.Errorf("citizen: status = %d, want 403", code)
	}
}

func TestRoleComesFromDatabaseNotToken(t *testing.T) {
	db := setupAuthTestDB(t)
	user := createTestUser(t, db, models.RoleAgent, true)
	token, _, err := utils.GenerateTokens(user, testSecret)
	if err != nil {
		t.Fatalf("tokens: %v", err)
	}

	// Demote after the token was issued.
	if err := db.Model(user).Update("role", models.RoleCitizen).Error; err != nil {
		t.Fatalf("update: %v", err)
	}

	inner := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }
	protected := Auth(db, testSecret)(RequireRole(models.RoleAgent)(inner))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	protected.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403 after demotion", rr.Code)
	}
}
