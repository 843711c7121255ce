package domain

import (
	"context"
	"io"
	"time"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// RunStore persists simulation run metadata.
type RunStore interface {
	Create(ctx context.Context, run RunRecord) error
	Finish(ctx context.Context, id, status, winner string, winnerPnL PnL, finishedAt time.Time) error
	GetByID(ctx context.Context, id string) (RunRecord, error)
	ListRecent(ctx context.Context, opts ListOpts) ([]RunRecord, error)
}

// RoundStore persists per-round results for a run.
type RoundStore interface {
	Insert(ctx context.Context, runID string, result RoundResult) error
	ListByRun(ctx context.Context, runID string, opts ListOpts) ([]RoundResult, error)
	GetRound(ctx context.Context, runID string, round int) (RoundResult, error)
}

// LeaderboardCache caches live standings for cheap reads.
type LeaderboardCache interface {
	Update(ctx context.Context, runID string, entries []LeaderboardEntry) error
	Top(ctx context.Context, runID string, n int) ([]LeaderboardEntry, error)
}

// RateLimiter throttles outbound decision-service calls.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Wait(ctx context.Context, key string) error
}

// LockManager guarantees a single live simulation per run key.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// Signal is one event published on the bus during a run.
type Signal struct {
	Type      string    `json:"type"`
	RunID     string    `json:"run_id"`
	Round     int       `json:"round,omitempty"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Signal types emitted by the orchestrator.
const (
	SignalRoundComplete  = "round_complete"
	SignalMarketResolved = "market_resolved"
	SignalRunComplete    = "run_complete"
	SignalError          = "error"
)

// RunChannel names the bus channel carrying signals for one run.
// RunChannelPattern matches all of them.
func RunChannel(runID string) string { return "run:" + runID }

// RunChannelPattern is the glob subscription covering every run channel.
const RunChannelPattern = "run:*"

// SignalBus fans simulation events out to the ws hub and notifiers.
type SignalBus interface {
	Publish(ctx context.Context, channel string, sig Signal) error
	Subscribe(ctx context.Context, pattern string) (<-chan Signal, func(), error)
}

// BlobWriter persists opaque objects to blob storage. Put returns the key
// the object was stored under.
type BlobWriter interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// BlobInfo describes one stored object.
type BlobInfo struct {
	Path         string
	Size         int64
	LastModified time.Time
}

// BlobReader retrieves archived objects from blob storage.
type BlobReader interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
}

// Archiver uploads completed run artifacts.
type Archiver interface {
	ArchiveRun(ctx context.Context, result SimulationResult) (string, error)
}
