package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/protocolsim/idlarena/internal/domain"
)

// RunHandler serves persisted run metadata and round results.
type RunHandler struct {
	runs        domain.RunStore
	rounds      domain.RoundStore
	leaderboard domain.LeaderboardCache
	logger      *slog.Logger
}

// NewRunHandler creates a RunHandler. leaderboard may be nil, in which case
// standings are reconstructed from the latest persisted round.
func NewRunHandler(runs domain.RunStore, rounds domain.RoundStore, leaderboard domain.LeaderboardCache, logger *slog.Logger) *RunHandler {
	return &RunHandler{
		runs:        runs,
		rounds:      rounds,
		leaderboard: leaderboard,
		logger:      logHandler(logger, "runs"),
	}
}

// ListRuns responds with recent runs, newest first.
// GET /api/runs
func (h *RunHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.runs.ListRecent(r.Context(), parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list runs failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []domain.RunRecord{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// GetRun responds with a single run record.
// GET /api/runs/{id}
func (h *RunHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	run, err := h.runs.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "get run failed", slog.String("run_id", id), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to get run")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// ListRounds responds with the persisted round results for a run.
// GET /api/runs/{id}/rounds
func (h *RunHandler) ListRounds(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	rounds, err := h.rounds.ListByRun(r.Context(), id, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list rounds failed", slog.String("run_id", id), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list rounds")
		return
	}
	if rounds == nil {
		rounds = []domain.RoundResult{}
	}
	writeJSON(w, http.StatusOK, rounds)
}

// GetRound responds with one round result.
// GET /api/runs/{id}/rounds/{round}
func (h *RunHandler) GetRound(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	round, err := strconv.Atoi(pathParam(r, "round"))
	if err != nil || round < 1 {
		writeError(w, http.StatusBadRequest, "invalid round number")
		return
	}

	rr, err := h.rounds.GetRound(r.Context(), id, round)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "round not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "get round failed", slog.String("run_id", id), slog.Int("round", round), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to get round")
		return
	}
	writeJSON(w, http.StatusOK, rr)
}

// Leaderboard responds with the current standings for a run. It prefers the
// cache and falls back to the newest persisted round.
// GET /api/runs/{id}/leaderboard
func (h *RunHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	limit := parseListOpts(r).Limit

	if h.leaderboard != nil {
		entries, err := h.leaderboard.Top(r.Context(), id, limit)
		if err == nil {
			writeJSON(w, http.StatusOK, entries)
			return
		}
		if !errors.Is(err, domain.ErrNotFound) {
			h.logger.WarnContext(r.Context(), "leaderboard cache read failed", slog.String("run_id", id), slog.String("error", err.Error()))
		}
	}

	entries, err := h.latestStandings(r, id, limit)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no standings for run")
			return
		}
		h.logger.ErrorContext(r.Context(), "leaderboard fallback failed", slog.String("run_id", id), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to get leaderboard")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// Markets responds with the open markets as of the latest persisted round.
// GET /api/runs/{id}/markets
func (h *RunHandler) Markets(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	rr, err := h.latestRound(r, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no rounds for run")
			return
		}
		h.logger.ErrorContext(r.Context(), "get markets failed", slog.String("run_id", id), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to get markets")
		return
	}

	markets := rr.Markets
	if markets == nil {
		markets = []domain.MarketInfo{}
	}
	writeJSON(w, http.StatusOK, markets)
}

// latestStandings reads the newest persisted leaderboard.
func (h *RunHandler) latestStandings(r *http.Request, runID string, limit int) ([]domain.LeaderboardEntry, error) {
	rr, err := h.latestRound(r, runID)
	if err != nil {
		return nil, err
	}

	entries := rr.Leaderboard
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	return entries, nil
}

// latestRound walks persisted rounds to find the newest one.
func (h *RunHandler) latestRound(r *http.Request, runID string) (domain.RoundResult, error) {
	run, err := h.runs.GetByID(r.Context(), runID)
	if err != nil {
		return domain.RoundResult{}, err
	}

	// Rounds are inserted in order; the last one is the freshest.
	rounds, err := h.rounds.ListByRun(r.Context(), runID, domain.ListOpts{Limit: 1, Offset: max(run.Rounds-1, 0)})
	if err != nil {
		return domain.RoundResult{}, err
	}
	if len(rounds) == 0 {
		// Run may have fewer completed rounds than planned.
		rounds, err = h.rounds.ListByRun(r.Context(), runID, domain.ListOpts{Limit: run.Rounds})
		if err != nil {
			return domain.RoundResult{}, err
		}
		if len(rounds) == 0 {
			return domain.RoundResult{}, domain.ErrNotFound
		}
		rounds = rounds[len(rounds)-1:]
	}
	return rounds[0], nil
}
