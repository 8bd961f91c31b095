package integration

import (
	"net/http"
	"testing"

	"assetmanager/internal/valuation"
)

func TestAuthFlow_RegisterLoginAndRoles(t *testing.T) {
	app := setupApp(t, valuation.ModePreviousValue)

	token, role := app.registerUser(t, "auth@test.com", "password123")
	if token == "" {
		t.Fatal("expected non-empty token from registration")
	}
	if role != "submitter" {
		t.Errorf("expected submitter role, got %s", role)
	}

	_, role = app.registerUser(t, "APPROVER@test.com", "password123")
	if role != "approver" {
		t.Errorf("expected listed email to be an approver regardless of case, got %s", role)
	}

	loginToken := app.loginUser(t, "auth@test.com", "password123")
	rec := app.request("GET", "/api/v1/assets/next-id", "", loginToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with login token, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAuthFlow_Failures(t *testing.T) {
	app := setupApp(t, valuation.ModePreviousValue)
	app.registerUser(t, "auth@test.com", "password123")

	t.Run("duplicate email", func(t *testing.T) {
		rec := app.request("POST", "/api/v1/auth/register", `{"email":"auth@test.com","password":"password123"}`, "")
		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		if code := errorCode(t, rec); code != "DUPLICATE_EMAIL" {
			t.Errorf("expected DUPLICATE_EMAIL, got %s", code)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		rec := app.request("POST", "/api/v1/auth/login", `{"email":"auth@test.com","password":"wrongpass1"}`, "")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("missing token", func(t *testing.T) {
		rec := app.request("GET", "/api/v1/assets/0", "", "")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("garbage token", func(t *testing.T) {
		rec := app.request("GET", "/api/v1/assets/0", "", "not-a-jwt")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})
}

func TestHealthCheck(t *testing.T) {
	app := setupApp(t, valuation.ModePreviousValue)

	rec := app.request("GET", "/api/health", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if parseJSON(t, rec)["status"] != "ok" {
		t.Errorf("expected status ok, got %s", rec.Body.String())
	}
}
