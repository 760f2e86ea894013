package server

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/quote-compare/constants"
	"github.com/joseph-ayodele/quote-compare/internal/common"
	"github.com/joseph-ayodele/quote-compare/internal/compare"
	"github.com/joseph-ayodele/quote-compare/internal/export"
	"github.com/joseph-ayodele/quote-compare/internal/pipeline"
	"github.com/joseph-ayodele/quote-compare/internal/session"
)

// outcomeView is the client shape of a pipeline.Outcome.
type outcomeView struct {
	FileName string              `json:"file_name"`
	Status   constants.JobStatus `json:"status"`
	Method   string              `json:"method,omitempty"`
	Pages    int                 `json:"pages"`
	Stage    string              `json:"stage,omitempty"`
	Error    string              `json:"error,omitempty"`
	Hint     string              `json:"hint,omitempty"`
	Raw      string              `json:"raw,omitempty"`
	Warnings []string            `json:"warnings,omitempty"`
	JobID    *uuid.UUID          `json:"job_id,omitempty"`
	Elapsed  int64               `json:"elapsed_ms"`
}

func viewOutcome(o pipeline.Outcome) outcomeView {
	v := outcomeView{
		FileName: o.FileName,
		Status:   o.Status,
		Method:   o.Method,
		Pages:    o.Pages,
		Stage:    string(o.Stage()),
		Warnings: o.Warnings,
		Elapsed:  o.Elapsed.Milliseconds(),
	}
	if o.JobID != uuid.Nil {
		id := o.JobID
		v.JobID = &id
	}
	if o.Err != nil {
		n := o.Notice()
		v.Error = n.Message
		v.Hint = n.Hint
		v.Raw = o.RawExcerpt(pipeline.RawExcerptRunes)
	}
	return v
}

type tableView struct {
	Columns []string      `json:"columns"`
	Rows    []compare.Row `json:"rows"`
}

func viewTable(t *compare.Table, fields []string) tableView {
	rows := t.Rows
	if rows == nil {
		rows = []compare.Row{}
	}
	return tableView{Columns: export.ColumnOrder(t, fields), Rows: rows}
}

type extractResponse struct {
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
	Outcomes  []outcomeView   `json:"outcomes"`
	Table     tableView       `json:"table"`
	Notices   []common.Notice `json:"notices"`
	ElapsedMS int64           `json:"elapsed_ms"`
}

type progressView struct {
	Index   int         `json:"index"`
	Total   int         `json:"total"`
	Outcome outcomeView `json:"outcome"`
}

// extract runs one batch over the uploaded PDFs. With stream=1 the reply is
// an SSE stream of "progress" events followed by one "done" event.
func (s *Server) extract(c *gin.Context) {
	st := currentSession(c)

	mode := c.DefaultPostForm("mode", session.ModeAppend)
	if v := common.NewValidator().Field("mode", mode, common.OneOf(session.ModeAppend, session.ModeReplace)); v.HasErrors() {
		respondError(c, v.Error(), "mode は append か replace を指定してください")
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		respondError(c, fmt.Errorf("%w: %v", common.ErrInvalidInput, err), "PDFファイルを選択してください")
		return
	}
	docs, skipped, err := readDocuments(form.File["files"], s.MaxUploadBytes)
	if err != nil {
		respondError(c, err, "アップロードファイルを読み込めませんでした")
		return
	}
	if len(docs) == 0 {
		respondError(c, fmt.Errorf("%w: no pdf files", common.ErrInvalidInput), "PDFファイルを選択してください")
		return
	}

	if !st.Begin() {
		abortWithError(c, http.StatusConflict, "BATCH_RUNNING", "処理中のバッチがあります。完了までお待ちください", nil)
		return
	}
	defer st.End()

	fields := st.Fields()
	ctx := c.Request.Context()
	stream := c.Query("stream") == "1" || c.PostForm("stream") == "1"

	var progress func(pipeline.Progress)
	if stream {
		c.Header("Cache-Control", "no-cache")
		c.Header("X-Accel-Buffering", "no")
		progress = func(p pipeline.Progress) {
			c.SSEvent("progress", progressView{Index: p.Index, Total: p.Total, Outcome: viewOutcome(p.Outcome)})
			c.Writer.Flush()
		}
	}

	rep, runErr := s.Processor.RunBatch(ctx, fields, docs, progress)
	if runErr != nil {
		s.Logger.Warn("extract.batch.cancelled", "error", runErr, "done", len(rep.Outcomes), "total", len(docs))
	}
	table := st.ApplyBatch(rep, mode == session.ModeReplace)

	notices := rep.Notices()
	for _, name := range skipped {
		n := common.Warning(name + ": PDF以外のファイルはスキップしました")
		n.FileName = name
		notices = append(notices, n)
	}
	resp := extractResponse{
		Succeeded: rep.Succeeded(),
		Failed:    rep.Failed(),
		Table:     viewTable(table, fields),
		Notices:   notices,
		ElapsedMS: rep.Elapsed.Milliseconds(),
	}
	for _, o := range rep.Outcomes {
		resp.Outcomes = append(resp.Outcomes, viewOutcome(o))
	}

	if stream {
		c.SSEvent("done", resp)
		c.Writer.Flush()
		return
	}
	c.JSON(http.StatusOK, resp)
}

// readDocuments loads the PDF parts in upload order; other files are skipped by name.
func readDocuments(files []*multipart.FileHeader, maxBytes int64) ([]pipeline.Document, []string, error) {
	var (
		docs    []pipeline.Document
		skipped []string
	)
	for _, fh := range files {
		if !constants.IsAllowedExt(filepath.Ext(fh.Filename)) {
			skipped = append(skipped, fh.Filename)
			continue
		}
		if fh.Size > maxBytes {
			return nil, nil, fmt.Errorf("%w: %s exceeds %d bytes", common.ErrInvalidInput, fh.Filename, maxBytes)
		}
		f, err := fh.Open()
		if err != nil {
			return nil, nil, fmt.Errorf("open %s: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return nil, nil, fmt.Errorf("read %s: %w", fh.Filename, err)
		}
		docs = append(docs, pipeline.Document{FileName: fh.Filename, Data: data})
	}
	return docs, skipped, nil
}
