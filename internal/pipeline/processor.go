package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/quote-compare/constants"
	"github.com/joseph-ayodele/quote-compare/internal/common"
	"github.com/joseph-ayodele/quote-compare/internal/llm"
	"github.com/joseph-ayodele/quote-compare/internal/ocr"
	"github.com/joseph-ayodele/quote-compare/internal/repository"
)

// Processor coordinates payload selection (text or page images), the single
// extraction request and normalization for each document of a batch.
type Processor struct {
	Logger *slog.Logger
	OCR    *OCRStage
	Parse  *ParseStage
	// Jobs journals each document run; nil disables the journal.
	Jobs repository.ExtractJobRepository
}

func NewProcessor(logger *slog.Logger, reader DocumentReader, fe llm.FieldExtractor, jobs repository.ExtractJobRepository) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		Logger: logger,
		OCR:    NewOCRStage(reader, logger),
		Parse:  NewParseStage(fe, logger),
		Jobs:   jobs,
	}
}

// ProcessDocument runs one document end to end. It never returns an error;
// failures are reported in Outcome.Err as *common.DocumentError.
func (p *Processor) ProcessDocument(ctx context.Context, fields []string, doc Document) Outcome {
	start := time.Now()
	out := Outcome{FileName: doc.FileName, Status: constants.JobStatusRunning}
	jobID := p.startJob(ctx, doc)
	out.JobID = jobID

	fail := func(err error) Outcome {
		out.Status = constants.JobStatusFailed
		out.Err = err
		var de *common.DocumentError
		stage := ""
		if errors.As(err, &de) {
			stage = string(de.Stage)
			if de.Raw != "" {
				out.Raw = de.Raw
			}
		}
		out.Elapsed = time.Since(start)
		p.Logger.Error("processor.document.failed",
			"file", doc.FileName,
			"job_id", jobID,
			"stage", stage,
			"error", err,
			"elapsed_ms", out.Elapsed.Milliseconds(),
		)
		p.finishFailure(ctx, jobID, stage, err, out.Raw)
		return out
	}

	// 1) payload: text layer or rendered pages
	pl, err := p.OCR.Run(ctx, doc)
	out.Method = pl.Method
	out.Pages = pl.Pages
	out.Warnings = pl.Warnings
	if err != nil {
		return fail(err)
	}
	p.advance(ctx, jobID, pl.Status, pl.Method, pl.Pages)
	p.Logger.Info("processor.payload.ok",
		"file", doc.FileName,
		"job_id", jobID,
		"method", pl.Method,
		"pages", pl.Pages,
		"text_chars", len([]rune(pl.Text)),
		"images", len(pl.Images),
	)

	// 2) one extraction request
	p.advance(ctx, jobID, constants.JobStatusRequestSent, pl.Method, pl.Pages)
	resp, err := p.Parse.Request(ctx, doc.FileName, fields, pl)
	if err != nil {
		return fail(err)
	}

	// 3) normalize into a row
	res, err := p.Parse.Normalize(resp, fields, doc.FileName)
	out.Raw = res.Raw
	if err != nil {
		return fail(err)
	}
	out.Row = res.Row
	out.Report = res.Report
	out.Status = constants.JobStatusNormalized
	out.Elapsed = time.Since(start)

	p.finishSuccess(ctx, jobID, res)
	p.Logger.Info("processor.document.ok",
		"file", doc.FileName,
		"job_id", jobID,
		"method", out.Method,
		"source", res.Report.Source,
		"dropped", len(res.Report.Dropped),
		"missing", len(res.Report.Missing),
		"elapsed_ms", out.Elapsed.Milliseconds(),
	)
	return out
}

// RunBatch processes docs sequentially in input order. progress, when not
// nil, is called after each document. One document's failure never stops the
// batch; a cancelled context does, returning the outcomes so far and ctx.Err().
func (p *Processor) RunBatch(ctx context.Context, fields []string, docs []Document, progress func(Progress)) (Report, error) {
	start := time.Now()
	rep := Report{Outcomes: make([]Outcome, 0, len(docs))}
	p.Logger.Info("processor.batch.start", "documents", len(docs), "fields", len(fields))

	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			rep.Elapsed = time.Since(start)
			p.Logger.Warn("processor.batch.cancelled", "done", i, "total", len(docs), "error", err)
			return rep, err
		}
		o := p.ProcessDocument(ctx, fields, doc)
		rep.Outcomes = append(rep.Outcomes, o)
		if progress != nil {
			progress(Progress{Index: i + 1, Total: len(docs), Outcome: o})
		}
	}

	rep.Elapsed = time.Since(start)
	p.Logger.Info("processor.batch.done",
		"documents", len(docs),
		"succeeded", rep.Succeeded(),
		"failed", rep.Failed(),
		"elapsed_ms", rep.Elapsed.Milliseconds(),
	)
	return rep, nil
}

func (p *Processor) startJob(ctx context.Context, doc Document) uuid.UUID {
	if p.Jobs == nil {
		return uuid.Nil
	}
	job, err := p.Jobs.Start(ctx, common.SessionIDFromContext(ctx), doc.FileName, ocr.ContentHash(doc.Data))
	if err != nil {
		p.Logger.Warn("processor.journal.start_failed", "file", doc.FileName, "error", err)
		return uuid.Nil
	}
	return job.ID
}

func (p *Processor) advance(ctx context.Context, id uuid.UUID, status constants.JobStatus, method string, pages int) {
	if p.Jobs == nil || id == uuid.Nil {
		return
	}
	if err := p.Jobs.Advance(ctx, id, status, method, pages); err != nil {
		p.Logger.Warn("processor.journal.advance_failed", "job_id", id, "status", status, "error", err)
	}
}

func (p *Processor) finishSuccess(ctx context.Context, id uuid.UUID, res parsed) {
	if p.Jobs == nil || id == uuid.Nil {
		return
	}
	b, err := json.Marshal(res.Row)
	if err != nil {
		p.Logger.Warn("processor.journal.marshal_failed", "job_id", id, "error", err)
		return
	}
	if err := p.Jobs.FinishSuccess(ctx, id, res.Raw, string(b), res.Model); err != nil {
		p.Logger.Warn("processor.journal.finish_failed", "job_id", id, "error", err)
	}
}

func (p *Processor) finishFailure(ctx context.Context, id uuid.UUID, stage string, cause error, raw string) {
	if p.Jobs == nil || id == uuid.Nil {
		return
	}
	// the request context may already be done; the journal entry should still land
	ctx = context.WithoutCancel(ctx)
	if err := p.Jobs.FinishFailure(ctx, id, stage, cause.Error(), raw); err != nil {
		p.Logger.Warn("processor.journal.finish_failed", "job_id", id, "error", err)
	}
}
