package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/chainarb/internal/domain"
)

// Archiver sweeps closed execution and feedback records out of the primary
// store into JSONL objects in blob storage, and snapshots the engine state
// for later analysis.
//
// Deletion of the archived rows from the primary store is intentionally NOT
// performed here; that is a separate, explicit step to run after the archive
// has been verified.
type Archiver struct {
	writer     domain.BlobWriter
	executions domain.ExecutionStore
	feedback   domain.FeedbackStore
}

// NewArchiver creates a new Archiver.
func NewArchiver(writer domain.BlobWriter, executions domain.ExecutionStore, feedback domain.FeedbackStore) *Archiver {
	return &Archiver{
		writer:     writer,
		executions: executions,
		feedback:   feedback,
	}
}

// ArchiveExecutions uploads all executions started before the cutoff as
// JSONL at archive/executions/YYYY-MM.jsonl and returns the record count.
func (a *Archiver) ArchiveExecutions(ctx context.Context, before time.Time) (int64, error) {
	recs, err := a.executions.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive executions query: %w", err)
	}
	if len(recs) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(recs)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive executions marshal: %w", err)
	}

	path := archivePath("executions", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive executions upload: %w", err)
	}

	return int64(len(recs)), nil
}

// ArchiveFeedback uploads all feedback created before the cutoff as JSONL at
// archive/feedback/YYYY-MM.jsonl and returns the record count.
func (a *Archiver) ArchiveFeedback(ctx context.Context, before time.Time) (int64, error) {
	fbs, err := a.feedback.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive feedback query: %w", err)
	}
	if len(fbs) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(fbs)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive feedback marshal: %w", err)
	}

	path := archivePath("feedback", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive feedback upload: %w", err)
	}

	return int64(len(fbs)), nil
}

// SnapshotStatus uploads one engine status snapshot as JSON at
// snapshots/status/YYYY-MM-DDTHH-MM-SS.json, so state evolution can be
// replayed without the engine running.
func (a *Archiver) SnapshotStatus(ctx context.Context, status domain.PipelineStatus, at time.Time) error {
	buf, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("s3blob: snapshot marshal: %w", err)
	}

	path := fmt.Sprintf("snapshots/status/%s.json", at.UTC().Format("2006-01-02T15-04-05"))
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/json"); err != nil {
		return fmt.Errorf("s3blob: snapshot upload: %w", err)
	}
	return nil
}

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff time.
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON. Each
// element is marshalled as a single compact JSON line followed by '\n'.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
