package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/oddsrow/oddsrow/internal/domain"
	"github.com/oddsrow/oddsrow/internal/server"
	"github.com/oddsrow/oddsrow/internal/server/handler"
	"github.com/oddsrow/oddsrow/internal/server/middleware"
	"github.com/oddsrow/oddsrow/internal/service"
	"github.com/oddsrow/oddsrow/internal/store/memory"
)

// nopBus satisfies domain.SignalBus without a broker.
type nopBus struct{}

func (nopBus) Publish(ctx context.Context, channel string, payload []byte) error { return nil }
func (nopBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte)
	close(ch)
	return ch, nil
}
func (nopBus) StreamAppend(ctx context.Context, stream string, payload []byte) error { return nil }

// mapLeaderboard is an in-memory domain.LeaderboardCache.
type mapLeaderboard struct{ scores map[string]int64 }

func (l *mapLeaderboard) SetScore(ctx context.Context, userID string, balance int64) error {
	l.scores[userID] = balance
	return nil
}

func (l *mapLeaderboard) Top(ctx context.Context, n int) ([]domain.LeaderboardEntry, error) {
	out := make([]domain.LeaderboardEntry, 0, len(l.scores))
	for id, bal := range l.scores {
		out = append(out, domain.LeaderboardEntry{UserID: id, Balance: bal})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Balance > out[j].Balance })
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// testEnv is a full API stack over the in-memory store.
type testEnv struct {
	store    *memory.Store
	sessions *memory.SessionStore
	srv      *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewStore()
	sessions := memory.NewSessionStore()
	lb := &mapLeaderboard{scores: make(map[string]int64)}
	bus := nopBus{}

	stakeSvc := service.NewStakeService(store, bus, store.Audit(), lb, 0, logger)
	settleSvc := service.NewSettlementService(store, store, bus, store.Audit(), lb, nil, logger)
	predSvc := service.NewPredictionService(store.Predictions(), store, store.Audit(), logger)
	userSvc := service.NewUserService(store, store, sessions, lb, 1000, time.Hour, logger)

	handlers := server.Handlers{
		Health:      handler.NewHealthHandler(logger),
		Predictions: handler.NewPredictionHandler(predSvc, settleSvc, logger),
		Stakes:      handler.NewStakeHandler(stakeSvc, logger),
		Users:       handler.NewUserHandler(userSvc, logger),
		Leaderboard: handler.NewLeaderboardHandler(userSvc, logger),
		Audit:       handler.NewAuditHandler(store.Audit(), logger),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.HandleFunc("POST /api/users/register", handlers.Users.Register)
	mux.HandleFunc("POST /api/users/login", handlers.Users.Login)
	mux.HandleFunc("GET /api/users/me", handlers.Users.Me)
	mux.HandleFunc("GET /api/users/{id}", handlers.Users.GetProfile)
	mux.HandleFunc("GET /api/predictions", handlers.Predictions.List)
	mux.HandleFunc("POST /api/predictions", handlers.Predictions.Create)
	mux.HandleFunc("GET /api/predictions/{id}", handlers.Predictions.Get)
	mux.HandleFunc("POST /api/predictions/{id}/stake", handlers.Stakes.Place)
	mux.HandleFunc("POST /api/predictions/{id}/resolve", handlers.Predictions.Resolve)
	mux.HandleFunc("GET /api/leaderboard", handlers.Leaderboard.Top)
	var h http.Handler = mux
	h = middleware.Auth(sessions)(h)

	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)

	return &testEnv{store: store, sessions: sessions, srv: ts}
}

// do issues a JSON request against the test server, with an optional session
// token.
func (e *testEnv) do(t *testing.T, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, data
}

// register creates an account and returns a live session token.
func (e *testEnv) register(t *testing.T, username string) string {
	t.Helper()

	resp, data := e.do(t, http.MethodPost, "/api/users/register", "", map[string]string{
		"username": username,
		"password": "correct-horse",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register %s: status %d: %s", username, resp.StatusCode, data)
	}

	resp, data = e.do(t, http.MethodPost, "/api/users/login", "", map[string]string{
		"username": username,
		"password": "correct-horse",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login %s: status %d: %s", username, resp.StatusCode, data)
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(data, &out); err != nil || out.Token == "" {
		t.Fatalf("login %s: bad response %s", username, data)
	}
	return out.Token
}

func TestRegisterLoginMe(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "alice")

	resp, data := env.do(t, http.MethodGet, "/api/users/me", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me: status %d: %s", resp.StatusCode, data)
	}

	var profile domain.Profile
	if err := json.Unmarshal(data, &profile); err != nil {
		t.Fatalf("unmarshal profile: %v", err)
	}
	if profile.Username != "alice" || profile.Balance != 1000 {
		t.Errorf("profile = %+v, want alice with 1000 points", profile)
	}

	// Wrong password must not leak whether the account exists.
	resp, _ = env.do(t, http.MethodPost, "/api/users/login", "", map[string]string{
		"username": "alice",
		"password": "wrong-password",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("bad login status = %d, want 401", resp.StatusCode)
	}

	// No token means no identity.
	resp, _ = env.do(t, http.MethodGet, "/api/users/me", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("anonymous me status = %d, want 401", resp.StatusCode)
	}
}

func TestRegister_Rejections(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice")

	cases := []struct {
		name       string
		username   string
		password   string
		wantStatus int
	}{
		{"duplicate username", "alice", "correct-horse", http.StatusConflict},
		{"short password", "bob", "short", http.StatusBadRequest},
		{"invalid username", "a!", "correct-horse", http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, data := env.do(t, http.MethodPost, "/api/users/register", "", map[string]string{
				"username": tc.username,
				"password": tc.password,
			})
			if resp.StatusCode != tc.wantStatus {
				t.Errorf("status = %d, want %d: %s", resp.StatusCode, tc.wantStatus, data)
			}
			if strings.Contains(string(data), "user_service") {
				t.Errorf("response leaks internal error detail: %s", data)
			}
		})
	}
}

func TestStakeAndResolveFlow(t *testing.T) {
	env := newTestEnv(t)
	ownerTok := env.register(t, "owner")
	winnerTok := env.register(t, "winner")
	loserTok := env.register(t, "loser")

	// Owner opens a prediction closing shortly.
	resp, data := env.do(t, http.MethodPost, "/api/predictions", ownerTok, map[string]any{
		"title":    "it will rain tomorrow",
		"category": "Weather",
		"deadline": time.Now().Add(50 * time.Millisecond).Format(time.RFC3339Nano),
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create prediction: status %d: %s", resp.StatusCode, data)
	}
	var pred domain.Prediction
	if err := json.Unmarshal(data, &pred); err != nil {
		t.Fatalf("unmarshal prediction: %v", err)
	}
	if pred.Category != "weather" {
		t.Errorf("category = %q, want normalized %q", pred.Category, "weather")
	}

	stakePath := fmt.Sprintf("/api/predictions/%s/stake", pred.ID)

	resp, data = env.do(t, http.MethodPost, stakePath, winnerTok, map[string]any{
		"stance": true, "points": 300,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("winner stake: status %d: %s", resp.StatusCode, data)
	}
	var stakeRes domain.StakeResult
	if err := json.Unmarshal(data, &stakeRes); err != nil {
		t.Fatalf("unmarshal stake result: %v", err)
	}
	if stakeRes.Balance != 700 {
		t.Errorf("winner balance after stake = %d, want 700", stakeRes.Balance)
	}

	resp, _ = env.do(t, http.MethodPost, stakePath, loserTok, map[string]any{
		"stance": false, "points": 200,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("loser stake: status %d", resp.StatusCode)
	}

	// Staking twice conflicts.
	resp, _ = env.do(t, http.MethodPost, stakePath, winnerTok, map[string]any{
		"stance": true, "points": 10,
	})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("double stake status = %d, want 409", resp.StatusCode)
	}

	// Anonymous staking is rejected.
	resp, _ = env.do(t, http.MethodPost, stakePath, "", map[string]any{
		"stance": true, "points": 10,
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("anonymous stake status = %d, want 401", resp.StatusCode)
	}

	resolvePath := fmt.Sprintf("/api/predictions/%s/resolve", pred.ID)

	// Resolving before the deadline conflicts.
	resp, _ = env.do(t, http.MethodPost, resolvePath, ownerTok, map[string]any{"outcome": true})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("early resolve status = %d, want 409", resp.StatusCode)
	}

	time.Sleep(60 * time.Millisecond)

	// A non-owner may not resolve.
	resp, _ = env.do(t, http.MethodPost, resolvePath, winnerTok, map[string]any{"outcome": true})
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("stranger resolve status = %d, want 403", resp.StatusCode)
	}

	resp, data = env.do(t, http.MethodPost, resolvePath, ownerTok, map[string]any{"outcome": true})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("resolve: status %d: %s", resp.StatusCode, data)
	}
	var settle domain.SettlementResult
	if err := json.Unmarshal(data, &settle); err != nil {
		t.Fatalf("unmarshal settlement: %v", err)
	}
	// Winner staked 300 against a 200-point loser pool: 300 + 300*200/300.
	if settle.Totals.Distributed != 500 {
		t.Errorf("distributed = %d, want 500", settle.Totals.Distributed)
	}

	// Second resolve conflicts and the balances are final.
	resp, _ = env.do(t, http.MethodPost, resolvePath, ownerTok, map[string]any{"outcome": false})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("second resolve status = %d, want 409", resp.StatusCode)
	}

	resp, data = env.do(t, http.MethodGet, "/api/users/me", winnerTok, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("winner me: status %d", resp.StatusCode)
	}
	var winner domain.Profile
	if err := json.Unmarshal(data, &winner); err != nil {
		t.Fatalf("unmarshal winner: %v", err)
	}
	if winner.Balance != 1200 {
		t.Errorf("winner final balance = %d, want 1200", winner.Balance)
	}
	if winner.Made != 1 || winner.Correct != 1 {
		t.Errorf("winner record = %d/%d, want 1/1", winner.Correct, winner.Made)
	}
}

func TestFeedFiltering(t *testing.T) {
	env := newTestEnv(t)
	tok := env.register(t, "owner")

	for i, cat := range []string{"sports", "sports", "tech"} {
		resp, data := env.do(t, http.MethodPost, "/api/predictions", tok, map[string]any{
			"title":    fmt.Sprintf("prediction %d", i),
			"category": cat,
			"deadline": time.Now().Add(time.Hour).Format(time.RFC3339),
		})
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("create %d: status %d: %s", i, resp.StatusCode, data)
		}
	}

	resp, data := env.do(t, http.MethodGet, "/api/predictions?category=sports&status=open", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: status %d: %s", resp.StatusCode, data)
	}

	var out struct {
		Predictions []domain.Prediction `json:"predictions"`
		Total       int64               `json:"total"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if len(out.Predictions) != 2 {
		t.Errorf("got %d sports predictions, want 2", len(out.Predictions))
	}
	if out.Total != 3 {
		t.Errorf("total = %d, want 3", out.Total)
	}
}

func TestLeaderboard(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice")
	env.register(t, "bob")

	resp, data := env.do(t, http.MethodGet, "/api/leaderboard?limit=5", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("leaderboard: status %d: %s", resp.StatusCode, data)
	}

	var out struct {
		Leaderboard []service.LeaderboardRow `json:"leaderboard"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal leaderboard: %v", err)
	}
	if len(out.Leaderboard) != 2 {
		t.Errorf("got %d rows, want 2", len(out.Leaderboard))
	}
	for _, row := range out.Leaderboard {
		if row.Balance != 1000 {
			t.Errorf("row %+v, want starting balance 1000", row)
		}
	}
}
