package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/quote-compare/constants"
	"github.com/joseph-ayodele/quote-compare/internal/common"
)

// ExtractJob is one journaled document run. Timestamps are stored as unix
// milliseconds so both dialects agree on the column type.
type ExtractJob struct {
	ID            uuid.UUID           `json:"id"`
	SessionID     string              `json:"session_id"`
	FileName      string              `json:"file_name"`
	ContentHash   string              `json:"content_hash"`
	Method        string              `json:"method,omitempty"`
	Pages         int                 `json:"pages"`
	Status        constants.JobStatus `json:"status"`
	Stage         string              `json:"stage,omitempty"`
	ErrorMessage  string              `json:"error_message,omitempty"`
	RawResponse   string              `json:"raw_response,omitempty"`
	ExtractedJSON string              `json:"extracted_json,omitempty"`
	ModelName     string              `json:"model_name,omitempty"`
	StartedAt     time.Time           `json:"started_at"`
	FinishedAt    *time.Time          `json:"finished_at,omitempty"`
}

type ExtractJobRepository interface {
	Start(ctx context.Context, sessionID, fileName, contentHash string) (*ExtractJob, error)
	Advance(ctx context.Context, jobID uuid.UUID, status constants.JobStatus, method string, pages int) error
	FinishSuccess(ctx context.Context, jobID uuid.UUID, raw, extractedJSON, model string) error
	FinishFailure(ctx context.Context, jobID uuid.UUID, stage, message, raw string) error
	Get(ctx context.Context, jobID uuid.UUID) (*ExtractJob, error)
	ListBySession(ctx context.Context, sessionID string, limit int) ([]ExtractJob, error)
}

type extractJobRepo struct {
	db  *DB
	log *slog.Logger
	now func() time.Time
}

func NewExtractJobRepository(db *DB, log *slog.Logger) ExtractJobRepository {
	if log == nil {
		log = slog.Default()
	}
	return &extractJobRepo{db: db, log: log, now: time.Now}
}

func (r *extractJobRepo) Start(ctx context.Context, sessionID, fileName, contentHash string) (*ExtractJob, error) {
	job := &ExtractJob{
		ID:          uuid.New(),
		SessionID:   sessionID,
		FileName:    fileName,
		ContentHash: contentHash,
		Status:      constants.JobStatusRunning,
		StartedAt:   r.now().UTC().Truncate(time.Millisecond),
	}
	_, err := r.db.SQL.ExecContext(ctx, r.db.Rebind(
		`INSERT INTO extract_job (id, session_id, file_name, content_hash, status, started_at) VALUES (?, ?, ?, ?, ?, ?)`),
		job.ID.String(), job.SessionID, job.FileName, job.ContentHash, string(job.Status), job.StartedAt.UnixMilli(),
	)
	if err != nil {
		r.log.Error("extract_job start failed", "file", fileName, "err", err)
		return nil, fmt.Errorf("insert extract_job: %w", err)
	}
	r.log.Info("extract_job started", "job_id", job.ID, "file", fileName, "session_id", sessionID)
	return job, nil
}

func (r *extractJobRepo) Advance(ctx context.Context, jobID uuid.UUID, status constants.JobStatus, method string, pages int) error {
	_, err := r.db.SQL.ExecContext(ctx, r.db.Rebind(
		`UPDATE extract_job SET status = ?, method = ?, pages = ? WHERE id = ?`),
		string(status), method, pages, jobID.String(),
	)
	if err != nil {
		r.log.Error("extract_job advance failed", "job_id", jobID, "status", status, "err", err)
		return fmt.Errorf("update extract_job: %w", err)
	}
	r.log.Debug("extract_job advanced", "job_id", jobID, "status", status, "method", method, "pages", pages)
	return nil
}

func (r *extractJobRepo) FinishSuccess(ctx context.Context, jobID uuid.UUID, raw, extractedJSON, model string) error {
	_, err := r.db.SQL.ExecContext(ctx, r.db.Rebind(
		`UPDATE extract_job SET status = ?, raw_response = ?, extracted_json = ?, model_name = ?, finished_at = ? WHERE id = ?`),
		string(constants.JobStatusNormalized), raw, extractedJSON, model, r.now().UTC().UnixMilli(), jobID.String(),
	)
	if err != nil {
		r.log.Error("extract_job finish(OK) failed", "job_id", jobID, "err", err)
		return fmt.Errorf("update extract_job: %w", err)
	}
	r.log.Info("extract_job finished (NORMALIZED)", "job_id", jobID, "model", model)
	return nil
}

func (r *extractJobRepo) FinishFailure(ctx context.Context, jobID uuid.UUID, stage, message, raw string) error {
	_, err := r.db.SQL.ExecContext(ctx, r.db.Rebind(
		`UPDATE extract_job SET status = ?, stage = ?, error_message = ?, raw_response = ?, finished_at = ? WHERE id = ?`),
		string(constants.JobStatusFailed), stage, message, raw, r.now().UTC().UnixMilli(), jobID.String(),
	)
	if err != nil {
		r.log.Error("extract_job finish(FAILED) failed", "job_id", jobID, "err", err)
		return fmt.Errorf("update extract_job: %w", err)
	}
	r.log.Warn("extract_job finished (FAILED)", "job_id", jobID, "stage", stage, "error", message)
	return nil
}

const jobColumns = `id, session_id, file_name, content_hash, method, pages, status, stage,
	error_message, raw_response, extracted_json, model_name, started_at, finished_at`

func (r *extractJobRepo) Get(ctx context.Context, jobID uuid.UUID) (*ExtractJob, error) {
	row := r.db.SQL.QueryRowContext(ctx, r.db.Rebind(`SELECT `+jobColumns+` FROM extract_job WHERE id = ?`), jobID.String())
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("extract_job %s: %w", jobID, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select extract_job: %w", err)
	}
	return job, nil
}

// ListBySession returns the newest jobs first. limit <= 0 means 100.
func (r *extractJobRepo) ListBySession(ctx context.Context, sessionID string, limit int) ([]ExtractJob, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.SQL.QueryContext(ctx, r.db.Rebind(
		`SELECT `+jobColumns+` FROM extract_job WHERE session_id = ? ORDER BY started_at DESC, id LIMIT ?`),
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list extract_job: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []ExtractJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan extract_job: %w", err)
		}
		out = append(out, *job)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(s scanner) (*ExtractJob, error) {
	var (
		job      ExtractJob
		id       string
		status   string
		started  int64
		finished sql.NullInt64
	)
	err := s.Scan(&id, &job.SessionID, &job.FileName, &job.ContentHash, &job.Method, &job.Pages, &status, &job.Stage,
		&job.ErrorMessage, &job.RawResponse, &job.ExtractedJSON, &job.ModelName, &started, &finished)
	if err != nil {
		return nil, err
	}
	if job.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse id: %w", err)
	}
	job.Status = constants.JobStatus(status)
	job.StartedAt = time.UnixMilli(started).UTC()
	if finished.Valid {
		t := time.UnixMilli(finished.Int64).UTC()
		job.FinishedAt = &t
	}
	return &job, nil
}
