package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/quote-compare/constants"
	"github.com/joseph-ayodele/quote-compare/internal/common"
	"github.com/joseph-ayodele/quote-compare/internal/compare"
	"github.com/joseph-ayodele/quote-compare/internal/llm"
	"github.com/joseph-ayodele/quote-compare/internal/ocr"
	"github.com/joseph-ayodele/quote-compare/internal/repository"
)

// fakeReader maps document bytes to a text layer and a page count.
type fakeReader struct {
	texts     map[string]string
	pages     map[string]int
	renderErr error
	maxPages  int
	minChars  int
	renders   int
}

func (f *fakeReader) ExtractText(data []byte) string { return f.texts[string(data)] }

func (f *fakeReader) NeedsImages(text string) bool { return len([]rune(text)) < f.minChars }

func (f *fakeReader) MaxImagePages() int { return f.maxPages }

func (f *fakeReader) PageCount(data []byte) int { return f.pages[string(data)] }

func (f *fakeReader) RenderPages(_ context.Context, data []byte, maxPages int) ([]ocr.PageImage, error) {
	f.renders++
	if f.renderErr != nil {
		return nil, f.renderErr
	}
	n := f.pages[string(data)]
	if n > maxPages {
		n = maxPages
	}
	out := make([]ocr.PageImage, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, ocr.PageImage{Page: i, MIMEType: constants.MIMEJPEG, Data: []byte(fmt.Sprintf("jpg-%d", i))})
	}
	return out, nil
}

// fakeExtractor answers by file name.
type fakeExtractor struct {
	replies  map[string]string
	failures map[string]error
	requests []llm.Request
}

func (f *fakeExtractor) Extract(_ context.Context, req llm.Request) (llm.Response, error) {
	f.requests = append(f.requests, req)
	if err := f.failures[req.FileName]; err != nil {
		return llm.Response{}, err
	}
	return llm.Response{Text: f.replies[req.FileName], Model: "fake-model"}, nil
}

const longText = "山田太郎 / 架空保険 自動車保険 見積書 保険期間 2025年4月1日から2026年4月1日 補償内容 対人賠償 無制限 対物賠償 無制限"

func newTestProcessor(r *fakeReader, fe *fakeExtractor, jobs repository.ExtractJobRepository) *Processor {
	if r.maxPages == 0 {
		r.maxPages = 3
	}
	if r.minChars == 0 {
		r.minChars = 20
	}
	return NewProcessor(nil, r, fe, jobs)
}

func TestScenarioA_TextLayerExtraDropped(t *testing.T) {
	r := &fakeReader{texts: map[string]string{"a": longText}, pages: map[string]int{"a": 1}}
	fe := &fakeExtractor{replies: map[string]string{
		"quote.pdf": `{"氏名":"山田太郎","保険会社名":"架空保険","extra":"x"}`,
	}}
	p := newTestProcessor(r, fe, nil)

	out := p.ProcessDocument(context.Background(), []string{"氏名", "保険会社名"}, Document{FileName: "quote.pdf", Data: []byte("a")})

	require.True(t, out.OK(), "err: %v", out.Err)
	assert.Equal(t, compare.Row{"氏名": "山田太郎", "保険会社名": "架空保険", "ファイル名": "quote.pdf"}, out.Row)
	assert.Equal(t, constants.MethodText, out.Method)
	assert.Equal(t, []string{"extra"}, out.Report.Dropped)
	assert.Equal(t, 0, r.renders)

	require.Len(t, fe.requests, 1)
	assert.Equal(t, longText, fe.requests[0].Text)
	assert.Empty(t, fe.requests[0].Images)
}

func TestScenarioB_ImageFallbackCapsPages(t *testing.T) {
	r := &fakeReader{texts: map[string]string{}, pages: map[string]int{"scan": 7}}
	fe := &fakeExtractor{replies: map[string]string{"scan.pdf": `{"氏名":"佐藤"}`}}
	p := newTestProcessor(r, fe, nil)

	out := p.ProcessDocument(context.Background(), []string{"氏名"}, Document{FileName: "scan.pdf", Data: []byte("scan")})

	require.True(t, out.OK(), "err: %v", out.Err)
	assert.Equal(t, constants.MethodImage, out.Method)
	assert.Equal(t, 3, out.Pages)
	require.Len(t, fe.requests, 1)
	assert.Empty(t, fe.requests[0].Text)
	assert.Len(t, fe.requests[0].Images, 3)
	assert.Equal(t, constants.MIMEJPEG, fe.requests[0].Images[0].MIMEType)
}

func TestScenarioC_EmptyValuesPreserved(t *testing.T) {
	r := &fakeReader{texts: map[string]string{"c": longText}}
	fe := &fakeExtractor{replies: map[string]string{"c.pdf": `{"氏名":"","保険会社名":""}`}}
	p := newTestProcessor(r, fe, nil)

	out := p.ProcessDocument(context.Background(), []string{"氏名", "保険会社名"}, Document{FileName: "c.pdf", Data: []byte("c")})

	require.True(t, out.OK())
	assert.False(t, out.Report.Fenced)
	assert.Equal(t, compare.Row{"氏名": "", "保険会社名": "", "ファイル名": "c.pdf"}, out.Row)
}

func TestScenarioD_BatchSurvivesNetworkError(t *testing.T) {
	r := &fakeReader{texts: map[string]string{"1": longText, "2": longText, "3": longText}}
	fe := &fakeExtractor{
		replies: map[string]string{
			"1.pdf": `{"氏名":"一郎"}`,
			"3.pdf": "```json\n{\"氏名\":\"三郎\"}\n```",
		},
		failures: map[string]error{"2.pdf": errors.New("connection reset by peer")},
	}
	p := newTestProcessor(r, fe, nil)

	var seen []Progress
	rep, err := p.RunBatch(context.Background(), []string{"氏名"}, []Document{
		{FileName: "1.pdf", Data: []byte("1")},
		{FileName: "2.pdf", Data: []byte("2")},
		{FileName: "3.pdf", Data: []byte("3")},
	}, func(pr Progress) { seen = append(seen, pr) })
	require.NoError(t, err)

	assert.Equal(t, 2, rep.Succeeded())
	assert.Equal(t, 1, rep.Failed())
	rows := rep.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, "一郎", rows[0]["氏名"])
	assert.Equal(t, "三郎", rows[1]["氏名"])

	failed := rep.Outcomes[1]
	assert.ErrorIs(t, failed.Err, common.ErrExtractionRequest)
	assert.Equal(t, common.StageRequest, failed.Stage())

	var errs []common.Notice
	for _, n := range rep.Notices() {
		if n.Level == common.NoticeError {
			errs = append(errs, n)
		}
	}
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "2.pdf")
	assert.Contains(t, errs[0].Message, "connection reset by peer")
	assert.Equal(t, "2件の見積書から情報を抽出しました", rep.Notices()[0].Message)

	require.Len(t, seen, 3)
	assert.Equal(t, 2, seen[1].Index)
	assert.Equal(t, 3, seen[1].Total)
}

func TestMalformedReplyIsPerDocumentFailure(t *testing.T) {
	r := &fakeReader{texts: map[string]string{"ok": longText, "bad": longText}}
	fe := &fakeExtractor{replies: map[string]string{
		"ok.pdf":  `{"氏名":"山田"}`,
		"bad.pdf": "申し訳ありませんが、抽出できませんでした。",
	}}
	p := newTestProcessor(r, fe, nil)

	rep, err := p.RunBatch(context.Background(), []string{"氏名"}, []Document{
		{FileName: "ok.pdf", Data: []byte("ok")},
		{FileName: "bad.pdf", Data: []byte("bad")},
	}, nil)
	require.NoError(t, err)

	assert.Len(t, rep.Rows(), rep.Succeeded())
	bad := rep.Outcomes[1]
	assert.ErrorIs(t, bad.Err, common.ErrNormalization)
	assert.Equal(t, common.StageNormalize, bad.Stage())
	assert.Contains(t, bad.Raw, "申し訳ありません")
	assert.NotEmpty(t, bad.Notice().Hint)
	assert.Equal(t, "申し訳ありませんが、抽出できませんでした。", bad.Notice().Raw)

	var shown bool
	for _, n := range rep.Notices() {
		if n.Level == common.NoticeError && n.FileName == "bad.pdf" {
			shown = n.Raw == bad.Raw
		}
	}
	assert.True(t, shown, "batch notice carries the unparseable reply")
}

func TestRawExcerpt(t *testing.T) {
	o := Outcome{Raw: "  SENTINEL_RAW not json \n"}
	assert.Equal(t, "SENTINEL_RAW not json", o.RawExcerpt(100))
	assert.Equal(t, "SENTI…", o.RawExcerpt(5))
	assert.Equal(t, "SENTINEL_RAW not json", o.RawExcerpt(0))

	long := Outcome{Raw: strings.Repeat("あ", RawExcerptRunes+10)}
	assert.Equal(t, RawExcerptRunes+1, len([]rune(long.RawExcerpt(RawExcerptRunes))))
}

func TestRawOnlyShownForNormalizeFailures(t *testing.T) {
	req := Outcome{
		FileName: "x.pdf",
		Status:   constants.JobStatusFailed,
		Raw:      "partial",
		Err:      common.NewDocumentError("x.pdf", common.StageRequest, "partial", common.ErrExtractionRequest),
	}
	assert.Empty(t, req.Notice().Raw)

	norm := req
	norm.Err = common.NewDocumentError("x.pdf", common.StageNormalize, "partial", common.ErrNormalization)
	assert.Equal(t, "partial", norm.Notice().Raw)
}

func TestRendererUnavailableWithoutText(t *testing.T) {
	r := &fakeReader{
		texts:     map[string]string{},
		pages:     map[string]int{"scan": 2},
		renderErr: fmt.Errorf("%w: pdftoppm: not found", common.ErrRendererUnavailable),
	}
	fe := &fakeExtractor{}
	p := newTestProcessor(r, fe, nil)

	out := p.ProcessDocument(context.Background(), []string{"氏名"}, Document{FileName: "scan.pdf", Data: []byte("scan")})

	assert.False(t, out.OK())
	assert.ErrorIs(t, out.Err, common.ErrRendererUnavailable)
	assert.Equal(t, common.StageRender, out.Stage())
	assert.Contains(t, out.Notice().Hint, "pdftoppm")
	assert.Empty(t, fe.requests, "no request is sent when there is nothing to send")
}

func TestRenderFailureFallsBackToShortText(t *testing.T) {
	r := &fakeReader{
		texts:     map[string]string{"short": "山田 架空保険"},
		renderErr: fmt.Errorf("%w: exit status 1", common.ErrRender),
	}
	fe := &fakeExtractor{replies: map[string]string{"short.pdf": `{"氏名":"山田"}`}}
	p := newTestProcessor(r, fe, nil)

	rep, err := p.RunBatch(context.Background(), []string{"氏名"}, []Document{{FileName: "short.pdf", Data: []byte("short")}}, nil)
	require.NoError(t, err)

	out := rep.Outcomes[0]
	require.True(t, out.OK())
	assert.Equal(t, constants.MethodText, out.Method)
	require.Len(t, out.Warnings, 1)
	assert.Equal(t, "山田 架空保険", fe.requests[0].Text)

	var warned bool
	for _, n := range rep.Notices() {
		if n.Level == common.NoticeWarning && strings.HasPrefix(n.Message, "short.pdf") {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestRunBatchStopsOnCancel(t *testing.T) {
	r := &fakeReader{texts: map[string]string{"1": longText}}
	fe := &fakeExtractor{replies: map[string]string{"1.pdf": `{"氏名":"a"}`}}
	p := newTestProcessor(r, fe, nil)

	ctx, cancel := context.WithCancel(context.Background())
	rep, err := p.RunBatch(ctx, []string{"氏名"}, []Document{
		{FileName: "1.pdf", Data: []byte("1")},
		{FileName: "2.pdf", Data: []byte("1")},
	}, func(Progress) { cancel() })

	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, rep.Outcomes, 1)
}

func TestEmptyBatchNotice(t *testing.T) {
	var rep Report
	n := rep.Notices()
	require.Len(t, n, 1)
	assert.Equal(t, common.NoticeInfo, n[0].Level)
}

func TestJournalRecordsEachDocument(t *testing.T) {
	ctx := common.WithSessionID(context.Background(), "sess-1")
	db, err := repository.Open(ctx, repository.Config{}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(nil) })
	jobs := repository.NewExtractJobRepository(db, nil)

	r := &fakeReader{texts: map[string]string{"ok": longText, "bad": longText}}
	fe := &fakeExtractor{replies: map[string]string{
		"ok.pdf":  `{"氏名":"山田"}`,
		"bad.pdf": "not json",
	}}
	p := newTestProcessor(r, fe, jobs)

	rep, err := p.RunBatch(ctx, []string{"氏名"}, []Document{
		{FileName: "ok.pdf", Data: []byte("ok")},
		{FileName: "bad.pdf", Data: []byte("bad")},
	}, nil)
	require.NoError(t, err)

	okJob, err := jobs.Get(ctx, rep.Outcomes[0].JobID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusNormalized, okJob.Status)
	assert.Equal(t, "sess-1", okJob.SessionID)
	assert.Equal(t, "fake-model", okJob.ModelName)
	assert.JSONEq(t, `{"氏名":"山田","ファイル名":"ok.pdf"}`, okJob.ExtractedJSON)

	badJob, err := jobs.Get(ctx, rep.Outcomes[1].JobID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusFailed, badJob.Status)
	assert.Equal(t, string(common.StageNormalize), badJob.Stage)
	assert.Equal(t, "not json", badJob.RawResponse)

	listed, err := jobs.ListBySession(ctx, "sess-1", 0)
	require.NoError(t, err)
	assert.Len(t, listed, 2)
}
