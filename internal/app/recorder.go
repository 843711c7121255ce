package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/protocolsim/idlarena/internal/domain"
	"github.com/protocolsim/idlarena/internal/engine"
)

// runRecorder fans completed rounds out to every configured sink: a local
// JSONL artifact, the round store, the leaderboard cache, and the signal
// bus. Per the engine.Recorder contract it never returns errors; persistence
// failures are logged and the in-memory run continues.
type runRecorder struct {
	runsDir     string
	rounds      domain.RoundStore
	leaderboard domain.LeaderboardCache
	bus         domain.SignalBus
	archiver    domain.Archiver
	logger      *slog.Logger
}

func newRunRecorder(runsDir string, deps *Dependencies, logger *slog.Logger) *runRecorder {
	return &runRecorder{
		runsDir:     runsDir,
		rounds:      deps.Rounds,
		leaderboard: deps.Leaderboard,
		bus:         deps.SignalBus,
		archiver:    deps.Archiver,
		logger:      logger.With(slog.String("component", "recorder")),
	}
}

// roundsPath is the append-only local artifact; resultPath holds the final
// aggregated run.
func (r *runRecorder) roundsPath(runID string) string {
	return filepath.Join(r.runsDir, runID+".rounds.jsonl")
}

func (r *runRecorder) resultPath(runID string) string {
	return filepath.Join(r.runsDir, runID+".json")
}

// RecordRound persists one completed round everywhere it is wanted.
func (r *runRecorder) RecordRound(ctx context.Context, runID string, rr domain.RoundResult) {
	if err := r.appendLocal(runID, rr); err != nil {
		r.logger.WarnContext(ctx, "local round append failed",
			slog.String("run_id", runID), slog.Int("round", rr.Round), slog.String("error", err.Error()))
	}

	if r.rounds != nil {
		if err := r.rounds.Insert(ctx, runID, rr); err != nil {
			r.logger.WarnContext(ctx, "round insert failed",
				slog.String("run_id", runID), slog.Int("round", rr.Round), slog.String("error", err.Error()))
		}
	}

	if r.leaderboard != nil {
		if err := r.leaderboard.Update(ctx, runID, rr.Leaderboard); err != nil {
			r.logger.WarnContext(ctx, "leaderboard update failed",
				slog.String("run_id", runID), slog.String("error", err.Error()))
		}
	}

	r.publish(ctx, runID, domain.Signal{
		Type:      domain.SignalRoundComplete,
		RunID:     runID,
		Round:     rr.Round,
		Payload:   rr.Leaderboard,
		Timestamp: time.Now().UTC(),
	})
	for _, res := range rr.Resolutions {
		r.publish(ctx, runID, domain.Signal{
			Type:      domain.SignalMarketResolved,
			RunID:     runID,
			Round:     rr.Round,
			Payload:   res,
			Timestamp: time.Now().UTC(),
		})
	}
}

// RecordFinal writes the aggregated result locally, archives it, and
// announces completion on the bus.
func (r *runRecorder) RecordFinal(ctx context.Context, result domain.SimulationResult) {
	if err := r.writeResult(result); err != nil {
		r.logger.WarnContext(ctx, "local result write failed",
			slog.String("run_id", result.RunID), slog.String("error", err.Error()))
	}

	if r.archiver != nil {
		key, err := r.archiver.ArchiveRun(ctx, result)
		if err != nil {
			r.logger.WarnContext(ctx, "run archive failed",
				slog.String("run_id", result.RunID), slog.String("error", err.Error()))
		} else {
			r.logger.InfoContext(ctx, "run archived",
				slog.String("run_id", result.RunID), slog.String("key", key))
		}
	}

	var payload any
	if len(result.Summary) > 0 {
		payload = result.Summary[0]
	}
	r.publish(ctx, result.RunID, domain.Signal{
		Type:      domain.SignalRunComplete,
		RunID:     result.RunID,
		Round:     len(result.Rounds),
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	})
}

// RecordError announces a failed run on the bus.
func (r *runRecorder) RecordError(ctx context.Context, runID string, runErr error) {
	r.publish(ctx, runID, domain.Signal{
		Type:      domain.SignalError,
		RunID:     runID,
		Payload:   map[string]string{"error": runErr.Error()},
		Timestamp: time.Now().UTC(),
	})
}

func (r *runRecorder) publish(ctx context.Context, runID string, sig domain.Signal) {
	if r.bus == nil {
		return
	}
	if err := r.bus.Publish(ctx, domain.RunChannel(runID), sig); err != nil {
		r.logger.WarnContext(ctx, "signal publish failed",
			slog.String("run_id", runID), slog.String("type", sig.Type), slog.String("error", err.Error()))
	}
}

func (r *runRecorder) appendLocal(runID string, rr domain.RoundResult) error {
	if r.runsDir == "" {
		return nil
	}
	if err := os.MkdirAll(r.runsDir, 0o755); err != nil {
		return fmt.Errorf("create runs dir: %w", err)
	}

	f, err := os.OpenFile(r.roundsPath(runID), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	return enc.Encode(rr)
}

func (r *runRecorder) writeResult(result domain.SimulationResult) error {
	if r.runsDir == "" {
		return nil
	}
	if err := os.MkdirAll(r.runsDir, 0o755); err != nil {
		return fmt.Errorf("create runs dir: %w", err)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(r.resultPath(result.RunID), data, 0o644)
}

// loadResult reads a previously recorded run from the local runs directory,
// falling back to blob storage when the file is gone.
func (r *runRecorder) loadResult(ctx context.Context, runID string, reader domain.BlobReader) (domain.SimulationResult, error) {
	var result domain.SimulationResult

	data, err := os.ReadFile(r.resultPath(runID))
	if err != nil {
		if !os.IsNotExist(err) || reader == nil {
			return result, fmt.Errorf("read run artifact: %w", err)
		}
		data, err = r.loadArchived(ctx, runID, reader)
		if err != nil {
			return result, err
		}
	}

	if err := json.Unmarshal(data, &result); err != nil {
		return result, fmt.Errorf("decode run artifact: %w", err)
	}
	return result, nil
}

func (r *runRecorder) loadArchived(ctx context.Context, runID string, reader domain.BlobReader) ([]byte, error) {
	infos, err := reader.List(ctx, "runs/")
	if err != nil {
		return nil, fmt.Errorf("list archived runs: %w", err)
	}
	for _, info := range infos {
		if filepath.Base(info.Path) == runID+".json" {
			rc, err := reader.Get(ctx, info.Path)
			if err != nil {
				return nil, err
			}
			defer rc.Close()
			return io.ReadAll(rc)
		}
	}
	return nil, fmt.Errorf("run %s: %w", runID, domain.ErrNotFound)
}

// Compile-time interface check.
var _ engine.Recorder = (*runRecorder)(nil)
