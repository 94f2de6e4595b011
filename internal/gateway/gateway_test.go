package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/playerhub/internal/model"
)

// fakeAuthServer は検証エンドポイントを模したサーバーを返す。
func fakeAuthServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

// protectedEcho はゲートウェイ通過後のユーザーIDを返すハンドラー。
func protectedEcho(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := UserFromContext(r.Context())
		if err != nil {
			t.Errorf("UserFromContext() error = %v", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(user.ID))
	})
}

func TestGateway_RequireClient_Success(t *testing.T) {
	var gotPath, gotAuthz string
	server := fakeAuthServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuthz = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(model.User{ID: "u1", Email: "u@example.com", Role: model.RoleClient})
	})

	g := New(server.URL)
	handler := g.RequireClient(protectedEcho(t))

	req := httptest.NewRequest(http.MethodGet, "/skins/user", nil)
	req.Header.Set("Authorization", "Bearer some-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "u1" {
		t.Errorf("handler saw user %q, want %q", rec.Body.String(), "u1")
	}
	if gotPath != "/validate/check-cliente" {
		t.Errorf("check path = %q, want %q", gotPath, "/validate/check-cliente")
	}
	// Authorizationヘッダーがそのまま転送されること
	if gotAuthz != "Bearer some-token" {
		t.Errorf("forwarded Authorization = %q, want %q", gotAuthz, "Bearer some-token")
	}
}

func TestGateway_RequireAdmin_UsesAdminPath(t *testing.T) {
	var gotPath string
	server := fakeAuthServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(model.User{ID: "a1", Role: model.RoleAdmin})
	})

	g := New(server.URL)
	handler := g.RequireAdmin(protectedEcho(t))

	req := httptest.NewRequest(http.MethodDelete, "/users/u2", nil)
	req.Header.Set("Authorization", "Bearer admin-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if gotPath != "/validate/check-admin" {
		t.Errorf("check path = %q, want %q", gotPath, "/validate/check-admin")
	}
}

func TestGateway_MissingAuthorizationHeader(t *testing.T) {
	called := false
	server := fakeAuthServer(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	g := New(server.URL)
	handler := g.RequireClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run without Authorization header")
	}))

	req := httptest.NewRequest(http.MethodGet, "/skins/user", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	// ヘッダー不在なら認証サービスを呼ばないこと
	if called {
		t.Error("auth service should not be called without Authorization header")
	}
}

func TestGateway_RejectedToken(t *testing.T) {
	tests := []struct {
		name       string
		authStatus int
		wantStatus int
		wantCode   string
	}{
		{"invalid token", http.StatusUnauthorized, http.StatusUnauthorized, model.ErrCodeUnauthorized},
		{"insufficient role", http.StatusForbidden, http.StatusForbidden, model.ErrCodeForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := fakeAuthServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.authStatus)
			})

			g := New(server.URL)
			handler := g.RequireClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Error("handler must not run for rejected token")
			}))

			req := httptest.NewRequest(http.MethodGet, "/skins/user", nil)
			req.Header.Set("Authorization", "Bearer bad-token")
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var body struct {
				Code string `json:"code"`
			}
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode error body: %v", err)
			}
			if body.Code != tt.wantCode {
				t.Errorf("error code = %q, want %q", body.Code, tt.wantCode)
			}
		})
	}
}

func TestGateway_RequireAdmin_RejectsMismatchedRole(t *testing.T) {
	tests := []struct {
		name string
		role model.Role
	}{
		{"client role", model.RoleClient},
		{"empty role", model.Role("")},
		{"unknown role", model.Role("moderator")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// 検証エンドポイントが200を返しても、本文のロールが
			// admin以外なら通過させないこと
			server := fakeAuthServer(t, func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(model.User{ID: "u1", Role: tt.role})
			})

			g := New(server.URL)
			handler := g.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Error("handler must not run for mismatched role")
			}))

			req := httptest.NewRequest(http.MethodDelete, "/users/u2", nil)
			req.Header.Set("Authorization", "Bearer some-token")
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusForbidden {
				t.Fatalf("status = %d, want 403", rec.Code)
			}
			var body struct {
				Code string `json:"code"`
			}
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode error body: %v", err)
			}
			if body.Code != model.ErrCodeForbidden {
				t.Errorf("error code = %q, want %q", body.Code, model.ErrCodeForbidden)
			}
		})
	}
}

func TestGateway_RequireClient_RejectsUndefinedRole(t *testing.T) {
	server := fakeAuthServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(model.User{ID: "u1", Role: model.Role("")})
	})

	g := New(server.URL)
	handler := g.RequireClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run for undefined role")
	}))

	req := httptest.NewRequest(http.MethodGet, "/skins/user", nil)
	req.Header.Set("Authorization", "Bearer some-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestGateway_RequireClient_AdminPasses(t *testing.T) {
	server := fakeAuthServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(model.User{ID: "a1", Role: model.RoleAdmin})
	})

	g := New(server.URL)
	handler := g.RequireClient(protectedEcho(t))

	req := httptest.NewRequest(http.MethodGet, "/skins/user", nil)
	req.Header.Set("Authorization", "Bearer admin-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestGateway_AuthServiceUnreachable_NeverFailsOpen(t *testing.T) {
	// 存在しないアドレスを指す
	g := New("http://127.0.0.1:1")
	handler := g.RequireClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run when auth service is unreachable")
	}))

	req := httptest.NewRequest(http.MethodGet, "/skins/user", nil)
	req.Header.Set("Authorization", "Bearer some-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestGateway_UnexpectedUpstreamStatus(t *testing.T) {
	server := fakeAuthServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	g := New(server.URL)
	handler := g.RequireClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run for unexpected upstream status")
	}))

	req := httptest.NewRequest(http.MethodGet, "/skins/user", nil)
	req.Header.Set("Authorization", "Bearer some-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestUserFromContext_Missing(t *testing.T) {
	if _, err := UserFromContext(context.Background()); err == nil {
		t.Fatal("expected error for context without user")
	}
}
