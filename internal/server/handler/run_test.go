package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/protocolsim/idlarena/internal/domain"
)

type memRunStore struct {
	runs map[string]domain.RunRecord
}

func (m *memRunStore) Create(_ context.Context, run domain.RunRecord) error {
	m.runs[run.ID] = run
	return nil
}

func (m *memRunStore) Finish(_ context.Context, id, status, winner string, winnerPnL domain.PnL, finishedAt time.Time) error {
	r, ok := m.runs[id]
	if !ok {
		return domain.ErrNotFound
	}
	r.Status, r.Winner, r.WinnerPnL, r.FinishedAt = status, winner, winnerPnL, finishedAt
	m.runs[id] = r
	return nil
}

func (m *memRunStore) GetByID(_ context.Context, id string) (domain.RunRecord, error) {
	r, ok := m.runs[id]
	if !ok {
		return domain.RunRecord{}, domain.ErrNotFound
	}
	return r, nil
}

func (m *memRunStore) ListRecent(_ context.Context, _ domain.ListOpts) ([]domain.RunRecord, error) {
	var out []domain.RunRecord
	for _, r := range m.runs {
		out = append(out, r)
	}
	return out, nil
}

type memRoundStore struct {
	rounds map[string][]domain.RoundResult
}

func (m *memRoundStore) Insert(_ context.Context, runID string, rr domain.RoundResult) error {
	m.rounds[runID] = append(m.rounds[runID], rr)
	return nil
}

func (m *memRoundStore) ListByRun(_ context.Context, runID string, opts domain.ListOpts) ([]domain.RoundResult, error) {
	all := m.rounds[runID]
	if opts.Offset >= len(all) {
		return nil, nil
	}
	all = all[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(all) {
		all = all[:opts.Limit]
	}
	return all, nil
}

func (m *memRoundStore) GetRound(_ context.Context, runID string, round int) (domain.RoundResult, error) {
	for _, rr := range m.rounds[runID] {
		if rr.Round == round {
			return rr, nil
		}
	}
	return domain.RoundResult{}, domain.ErrNotFound
}

func newTestHandler() (*RunHandler, *memRunStore, *memRoundStore) {
	runs := &memRunStore{runs: make(map[string]domain.RunRecord)}
	rounds := &memRoundStore{rounds: make(map[string][]domain.RoundResult)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRunHandler(runs, rounds, nil, logger), runs, rounds
}

func newTestMux(h *RunHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/runs/{id}", h.GetRun)
	mux.HandleFunc("GET /api/runs/{id}/rounds/{round}", h.GetRound)
	mux.HandleFunc("GET /api/runs/{id}/leaderboard", h.Leaderboard)
	mux.HandleFunc("GET /api/runs/{id}/markets", h.Markets)
	return mux
}

func TestGetRunNotFound(t *testing.T) {
	h, _, _ := newTestHandler()
	mux := newTestMux(h)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/missing", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestGetRound(t *testing.T) {
	h, runs, rounds := newTestHandler()
	mux := newTestMux(h)

	runs.runs["r1"] = domain.RunRecord{ID: "r1", Rounds: 2, Status: domain.RunStatusComplete}
	rounds.rounds["r1"] = []domain.RoundResult{
		{Round: 1, Leaderboard: []domain.LeaderboardEntry{{Rank: 1, Agent: "alice"}}},
		{Round: 2, Leaderboard: []domain.LeaderboardEntry{{Rank: 1, Agent: "bob"}}},
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/r1/rounds/2", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var rr domain.RoundResult
	if err := json.Unmarshal(rec.Body.Bytes(), &rr); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if rr.Round != 2 {
		t.Errorf("round = %d, want 2", rr.Round)
	}
}

func TestGetRoundRejectsBadNumber(t *testing.T) {
	h, _, _ := newTestHandler()
	mux := newTestMux(h)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/r1/rounds/zero", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestLeaderboardFallsBackToLatestRound(t *testing.T) {
	h, runs, rounds := newTestHandler()
	mux := newTestMux(h)

	runs.runs["r1"] = domain.RunRecord{ID: "r1", Rounds: 2, Status: domain.RunStatusComplete}
	rounds.rounds["r1"] = []domain.RoundResult{
		{Round: 1, Leaderboard: []domain.LeaderboardEntry{{Rank: 1, Agent: "alice"}}},
		{Round: 2, Leaderboard: []domain.LeaderboardEntry{{Rank: 1, Agent: "bob"}, {Rank: 2, Agent: "alice"}}},
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/r1/leaderboard", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var entries []domain.LeaderboardEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(entries) != 2 || entries[0].Agent != "bob" {
		t.Errorf("entries = %+v, want bob leading", entries)
	}
}

func TestMarketsReturnsLatestSnapshot(t *testing.T) {
	h, runs, rounds := newTestHandler()
	mux := newTestMux(h)

	runs.runs["r1"] = domain.RunRecord{ID: "r1", Rounds: 2, Status: domain.RunStatusComplete}
	rounds.rounds["r1"] = []domain.RoundResult{
		{Round: 1, Markets: []domain.MarketInfo{{ID: "m1"}}},
		{Round: 2, Markets: []domain.MarketInfo{{ID: "m2"}, {ID: "m3"}}},
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/r1/markets", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var markets []domain.MarketInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &markets); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(markets) != 2 || markets[0].ID != "m2" {
		t.Errorf("markets = %+v, want snapshot from round 2", markets)
	}
}

func TestMarketsNoRounds(t *testing.T) {
	h, runs, _ := newTestHandler()
	mux := newTestMux(h)

	runs.runs["r1"] = domain.RunRecord{ID: "r1", Rounds: 0, Status: domain.RunStatusRunning}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/r1/markets", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}
