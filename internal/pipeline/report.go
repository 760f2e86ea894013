package pipeline

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/quote-compare/constants"
	"github.com/joseph-ayodele/quote-compare/internal/common"
	"github.com/joseph-ayodele/quote-compare/internal/compare"
	"github.com/joseph-ayodele/quote-compare/internal/llm"
)

// Document is one uploaded PDF.
type Document struct {
	FileName string
	Data     []byte
}

// Outcome is the per-document result: a row on success, an error otherwise.
type Outcome struct {
	FileName string              `json:"file_name"`
	Status   constants.JobStatus `json:"status"`
	Method   string              `json:"method,omitempty"`
	Pages    int                 `json:"pages"`
	Row      compare.Row         `json:"row,omitempty"`
	Report   llm.NormalizeReport `json:"normalize,omitempty"`
	Warnings []string            `json:"warnings,omitempty"`
	Err      error               `json:"-"`
	Raw      string              `json:"raw,omitempty"`
	JobID    uuid.UUID           `json:"job_id"`
	Elapsed  time.Duration       `json:"elapsed"`
}

// OK reports whether the document produced a row.
func (o Outcome) OK() bool {
	return o.Status == constants.JobStatusNormalized && o.Err == nil
}

// Stage is the pipeline stage a failed document stopped at.
func (o Outcome) Stage() common.Stage {
	var de *common.DocumentError
	if errors.As(o.Err, &de) {
		return de.Stage
	}
	return ""
}

// Notice renders a failed outcome for the user.
func (o Outcome) Notice() common.Notice {
	if o.OK() {
		return common.Notice{Level: common.NoticeSuccess, Message: o.FileName + " 抽出成功", FileName: o.FileName}
	}
	n := common.Notice{
		Level:    common.NoticeError,
		Message:  fmt.Sprintf("%s 抽出失敗: %v", o.FileName, unwrapDocument(o.Err)),
		FileName: o.FileName,
	}
	var de *common.DocumentError
	if errors.As(o.Err, &de) {
		n.Hint = de.Hint()
	}
	if o.Stage() == common.StageNormalize {
		n.Raw = o.RawExcerpt(RawExcerptRunes)
	}
	return n
}

// RawExcerptRunes bounds the model reply shown next to a failure.
const RawExcerptRunes = 400

// RawExcerpt returns at most limit runes of the raw model reply, marking a cut with "…".
func (o Outcome) RawExcerpt(limit int) string {
	raw := strings.TrimSpace(o.Raw)
	if limit <= 0 || utf8.RuneCountInString(raw) <= limit {
		return raw
	}
	return string([]rune(raw)[:limit]) + "…"
}

func unwrapDocument(err error) error {
	var de *common.DocumentError
	if errors.As(err, &de) && de.Err != nil {
		return de.Err
	}
	return err
}

// Progress is reported after each document of a batch.
type Progress struct {
	Index   int     `json:"index"` // 1-based
	Total   int     `json:"total"`
	Outcome Outcome `json:"outcome"`
}

// Report collects the outcomes of one batch in input order.
type Report struct {
	Outcomes []Outcome     `json:"outcomes"`
	Elapsed  time.Duration `json:"elapsed"`
}

func (r Report) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.OK() {
			n++
		}
	}
	return n
}

func (r Report) Failed() int {
	return len(r.Outcomes) - r.Succeeded()
}

// Rows returns the rows of successful documents in input order.
func (r Report) Rows() []compare.Row {
	var rows []compare.Row
	for _, o := range r.Outcomes {
		if o.OK() {
			rows = append(rows, o.Row)
		}
	}
	return rows
}

// Notices summarizes the batch: one success line, then warnings, then one
// error per failed document.
func (r Report) Notices() []common.Notice {
	if len(r.Outcomes) == 0 {
		return []common.Notice{common.Info("処理対象のPDFがありません")}
	}
	var out []common.Notice
	if n := r.Succeeded(); n > 0 {
		out = append(out, common.Success(fmt.Sprintf("%d件の見積書から情報を抽出しました", n)))
	}
	for _, o := range r.Outcomes {
		for _, w := range o.Warnings {
			n := common.Warning(o.FileName + ": " + w)
			n.FileName = o.FileName
			out = append(out, n)
		}
	}
	for _, o := range r.Outcomes {
		if !o.OK() {
			out = append(out, o.Notice())
		}
	}
	return out
}
