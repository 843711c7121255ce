package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/protocolsim/idlarena/internal/domain"
)

// multipartThreshold is the payload size above which ArchiveRun switches to
// multipart upload. Long runs with verbose action logs can exceed it.
const multipartThreshold = 8 * 1024 * 1024

// Archiver implements domain.Archiver by serializing a completed run to JSON
// and uploading it to the configured bucket.
type Archiver struct {
	writer *Writer
}

// NewArchiver creates a new Archiver using the given writer.
func NewArchiver(w *Writer) *Archiver {
	return &Archiver{writer: w}
}

// archiveKey places run artifacts under runs/YYYY/MM/<run-id>.json so a
// bucket listing by month stays cheap.
func archiveKey(result domain.SimulationResult) string {
	return fmt.Sprintf("runs/%s/%s.json", result.StartedAt.UTC().Format("2006/01"), result.RunID)
}

// ArchiveRun uploads the full simulation result and returns the object key.
func (a *Archiver) ArchiveRun(ctx context.Context, result domain.SimulationResult) (string, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("s3blob: marshal run %s: %w", result.RunID, err)
	}

	key := archiveKey(result)
	if len(data) > multipartThreshold {
		if err := a.writer.PutMultipart(ctx, key, bytes.NewReader(data), "application/json", minPartSize); err != nil {
			return "", fmt.Errorf("s3blob: archive run %s: %w", result.RunID, err)
		}
		return key, nil
	}

	if _, err := a.writer.Put(ctx, key, data, "application/json"); err != nil {
		return "", fmt.Errorf("s3blob: archive run %s: %w", result.RunID, err)
	}
	return key, nil
}

// Compile-time interface check.
var _ domain.Archiver = (*Archiver)(nil)
