package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/oddsrow/oddsrow/internal/server/middleware"
	"github.com/oddsrow/oddsrow/internal/store/memory"
)

func TestAuthResolvesBearerToken(t *testing.T) {
	sessions := memory.NewSessionStore()
	token, err := sessions.Create(context.Background(), "user-1", time.Hour)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	var got string
	h := middleware.Auth(sessions)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = middleware.CallerID(r.Context())
	}))

	cases := []struct {
		name   string
		header map[string]string
		want   string
	}{
		{"bearer token", map[string]string{"Authorization": "Bearer " + token}, "user-1"},
		{"session header", map[string]string{"X-Session-Token": token}, "user-1"},
		{"no token", nil, ""},
		{"bogus token", map[string]string{"Authorization": "Bearer nope"}, ""},
		{"wrong scheme", map[string]string{"Authorization": "Basic " + token}, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got = "unset"
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tc.header {
				r.Header.Set(k, v)
			}
			h.ServeHTTP(httptest.NewRecorder(), r)
			if got != tc.want {
				t.Errorf("caller = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestAuthExpiredSession(t *testing.T) {
	sessions := memory.NewSessionStore()
	token, err := sessions.Create(context.Background(), "user-1", -time.Second)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	var got string
	h := middleware.Auth(sessions)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = middleware.CallerID(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	h.ServeHTTP(httptest.NewRecorder(), r)

	if got != "" {
		t.Errorf("caller = %q, want unauthenticated", got)
	}
}
