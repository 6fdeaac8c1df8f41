package identity

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/claimtrack/claimtrack/internal/platform/apperr"
)

func newTestServer() *echo.Echo {
	svc, _ := newTestService()
	e := echo.New()
	e.HTTPErrorHandler = apperr.HTTPErrorHandler(zerolog.Nop())
	NewHandler(svc).RegisterRoutes(e.Group(""))
	return e
}

func postJSON(e *echo.Echo, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var out map[string]interface{}
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func TestHandler_LoginFlow(t *testing.T) {
	e := newTestServer()

	rec, body := postJSON(e, "/auth/login", `{"email":"nurse@h1.com","password":"secret1","role":"Staff"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if body["message"] != "New user registered and logged in successfully" {
		t.Errorf("unexpected message %v", body["message"])
	}
	data := body["data"].(map[string]interface{})
	user := data["user"].(map[string]interface{})
	if user["email"] != "nurse@h1.com" {
		t.Errorf("unexpected user %v", user)
	}
	if _, leaked := user["password"]; leaked {
		t.Error("password must not be returned")
	}
	refresh, _ := data["refreshToken"].(string)

	rec, body = postJSON(e, "/auth/login", `{"email":"nurse@h1.com","password":"secret1"}`)
	if rec.Code != http.StatusOK || body["message"] != "Login successful" {
		t.Errorf("expected 200 Login successful, got %d %v", rec.Code, body["message"])
	}

	rec, body = postJSON(e, "/auth/login", `{"email":"nurse@h1.com","password":"nope123"}`)
	if rec.Code != http.StatusUnauthorized || body["message"] != "Invalid Password!" {
		t.Errorf("expected 401 Invalid Password!, got %d %v", rec.Code, body["message"])
	}

	rec, body = postJSON(e, "/auth/refresh", `{"refreshToken":"`+refresh+`"}`)
	if rec.Code != http.StatusOK || body["success"] != true {
		t.Errorf("expected refresh to succeed, got %d %v", rec.Code, body)
	}
}

func TestHandler_Login_MissingRole(t *testing.T) {
	e := newTestServer()
	rec, body := postJSON(e, "/auth/login", `{"email":"new@h1.com","password":"secret1"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
	if body["success"] != false || body["message"] != "A 'role' is required to register a new user." {
		t.Errorf("unexpected body %v", body)
	}
}

func TestHandler_Login_MalformedBody(t *testing.T) {
	e := newTestServer()
	rec, _ := postJSON(e, "/auth/login", `{"email":`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}
