package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"marginalia/api/internal/admission"
	"marginalia/api/internal/realtime"
)

func newTestHTTPServer(t *testing.T) (*HTTPServer, *Service) {
	t.Helper()
	svc, _, _, _ := newTestService(t)
	limiter := admission.NewLimiter(3, time.Hour)
	t.Cleanup(limiter.Close)
	return NewHTTPServer(svc, realtime.NewHub(), limiter, "*"), svc
}

func signUpActor(t *testing.T, handler http.Handler, email, name string) (token string) {
	t.Helper()
	body := fmt.Sprintf(`{"email":%q,"password":"correct horse","name":%q}`, email, name)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/signup", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup status = %d body = %s", rec.Code, rec.Body.String())
	}
	var payload struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode signup response: %v", err)
	}
	if payload.Token == "" {
		t.Fatal("signup returned no access token")
	}
	return payload.Token
}

func doJSON(t *testing.T, handler http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := newTestHTTPServer(t)
	rec := doJSON(t, server.Handler(), http.MethodGet, "/api/health", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestCommentsRequireAuth(t *testing.T) {
	server, _ := newTestHTTPServer(t)
	handler := server.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/comments", "", `{"content":"hi","itemId":"item_1"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/comments", "not-a-token", `{"content":"hi","itemId":"item_1"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 for a garbage token", rec.Code)
	}
}

func TestCommentLifecycleOverHTTP(t *testing.T) {
	server, _ := newTestHTTPServer(t)
	handler := server.Handler()
	aliceToken := signUpActor(t, handler, "alice@example.com", "Alice")
	bobToken := signUpActor(t, handler, "bob@example.com", "Bob")

	rec := doJSON(t, handler, http.MethodPost, "/api/comments", aliceToken,
		`{"content":"needs a citation","itemId":"item_1","annotationId":"ann_1"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d body = %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/comments", bobToken,
		`{"content":"added one","isReply":true,"parentAnnotationId":"ann_1"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("reply status = %d body = %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/threads/ann_1", aliceToken, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get thread status = %d", rec.Code)
	}
	var thread struct {
		Comments []json.RawMessage `json:"comments"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &thread); err != nil {
		t.Fatalf("decode thread: %v", err)
	}
	if len(thread.Comments) != 2 {
		t.Fatalf("thread comments = %d, want 2", len(thread.Comments))
	}

	// Bob cannot edit Alice's comment.
	rec = doJSON(t, handler, http.MethodPut, "/api/comments/"+created.ID, bobToken, `{"content":"hijacked"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("foreign edit status = %d, want 403", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPut, "/api/comments/"+created.ID, aliceToken, `{"content":"needs two citations"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("edit status = %d body = %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/comments/"+created.ID+"/reaction", bobToken, `{"type":"like"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("reaction status = %d body = %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodPut, "/api/threads/ann_1/status", bobToken, `{"status":"resolved"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status update = %d body = %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodDelete, "/api/comments/"+created.ID, aliceToken, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d body = %s", rec.Code, rec.Body.String())
	}

	// The whole thread cascaded away.
	rec = doJSON(t, handler, http.MethodGet, "/api/threads/ann_1", aliceToken, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("thread after delete = %d, want 404", rec.Code)
	}
}

func TestNotificationsOverHTTP(t *testing.T) {
	server, _ := newTestHTTPServer(t)
	handler := server.Handler()
	aliceToken := signUpActor(t, handler, "alice@example.com", "Alice")
	bobToken := signUpActor(t, handler, "bob@example.com", "Bob")

	rec := doJSON(t, handler, http.MethodPost, "/api/comments", aliceToken,
		`{"content":"root","itemId":"item_1","annotationId":"ann_1"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodPost, "/api/comments", bobToken,
		`{"content":"reply","isReply":true,"parentAnnotationId":"ann_1"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("reply status = %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/notifications", aliceToken, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var listing struct {
		Notifications []struct {
			ID string `json:"id"`
		} `json:"notifications"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listing); err != nil {
		t.Fatalf("decode notifications: %v", err)
	}
	if len(listing.Notifications) != 1 {
		t.Fatalf("notifications = %d, want 1", len(listing.Notifications))
	}
	notificationID := listing.Notifications[0].ID

	// Only the recipient can mark it read.
	rec = doJSON(t, handler, http.MethodPost, "/api/notifications/"+notificationID+"/read", bobToken, "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("foreign mark-read = %d, want 403", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodPost, "/api/notifications/"+notificationID+"/read", aliceToken, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("mark-read = %d body = %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/notifications", aliceToken, "")
	if err := json.Unmarshal(rec.Body.Bytes(), &listing); err != nil {
		t.Fatalf("decode notifications: %v", err)
	}
	if len(listing.Notifications) != 0 {
		t.Fatalf("unread after mark-read = %d, want 0", len(listing.Notifications))
	}
}

func TestCreateCommentRateLimit(t *testing.T) {
	server, _ := newTestHTTPServer(t)
	handler := server.Handler()
	token := signUpActor(t, handler, "alice@example.com", "Alice")

	// The test limiter grants 3 points per hour per session.
	for i := 0; i < 3; i++ {
		rec := doJSON(t, handler, http.MethodPost, "/api/comments", token,
			fmt.Sprintf(`{"content":"comment %d","itemId":"item_1"}`, i))
		if rec.Code != http.StatusCreated {
			t.Fatalf("create %d status = %d body = %s", i, rec.Code, rec.Body.String())
		}
	}
	rec := doJSON(t, handler, http.MethodPost, "/api/comments", token,
		`{"content":"one too many","itemId":"item_1"}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	var payload struct {
		Code    string `json:"code"`
		Details struct {
			RetryAfterMs int64 `json:"retryAfterMs"`
		} `json:"details"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode 429 payload: %v", err)
	}
	if payload.Code != "RATE_LIMITED" {
		t.Fatalf("code = %q, want RATE_LIMITED", payload.Code)
	}
	if payload.Details.RetryAfterMs <= 0 {
		t.Fatal("expected a retry-after hint")
	}
}

func TestValidationErrorsOverHTTP(t *testing.T) {
	server, _ := newTestHTTPServer(t)
	handler := server.Handler()
	token := signUpActor(t, handler, "alice@example.com", "Alice")

	rec := doJSON(t, handler, http.MethodPost, "/api/comments", token, `{"content":"","itemId":"item_1"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/comments", token, `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestListCommentsByAnchorOverHTTP(t *testing.T) {
	server, _ := newTestHTTPServer(t)
	handler := server.Handler()
	token := signUpActor(t, handler, "alice@example.com", "Alice")

	rec := doJSON(t, handler, http.MethodPost, "/api/comments", token,
		`{"content":"question about scope","threadType":"question","threadId":"th_1"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d body = %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/comments?threadType=question&threadId=th_1", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var listing struct {
		Comments []json.RawMessage `json:"comments"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listing); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(listing.Comments) != 1 {
		t.Fatalf("comments = %d, want 1", len(listing.Comments))
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/comments", token, "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("anchorless list status = %d, want 422", rec.Code)
	}
}
