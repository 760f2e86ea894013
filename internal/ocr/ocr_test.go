package ocr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/quote-compare/constants"
	"github.com/joseph-ayodele/quote-compare/internal/common"
)

// fakeRunner mimics pdftoppm by writing <prefix>-N.jpg for pages first..last.
type fakeRunner struct {
	mu     sync.Mutex
	calls  [][]string
	pages  int // pages in the "document"
	pad    bool
	err    error
	stderr string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string{name}, args...))
	f.mu.Unlock()
	if f.err != nil {
		return nil, []byte(f.stderr), f.err
	}
	last := f.pages
	for i, a := range args {
		if a == "-l" {
			n, _ := strconv.Atoi(args[i+1])
			last = min(n, f.pages)
		}
	}
	prefix := args[len(args)-1]
	for p := 1; p <= last; p++ {
		name := fmt.Sprintf("%s-%d.jpg", prefix, p)
		if f.pad {
			name = fmt.Sprintf("%s-%02d.jpg", prefix, p)
		}
		if err := os.WriteFile(name, []byte("jpeg-"+strconv.Itoa(p)), 0o600); err != nil {
			return nil, nil, err
		}
	}
	return nil, nil, nil
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestExtractor(t *testing.T, r Runner) *Extractor {
	t.Helper()
	return NewExtractor(Config{TempDir: t.TempDir(), MinTextChars: 100, MaxImagePages: 3}, nil).WithRunner(r)
}

func TestRenderPagesCapsPageCount(t *testing.T) {
	r := &fakeRunner{pages: 8}
	e := newTestExtractor(t, r)

	pages, err := e.RenderPages(context.Background(), []byte("scanned quote"), 0)
	require.NoError(t, err)
	require.Len(t, pages, 3)
	for i, p := range pages {
		assert.Equal(t, i+1, p.Page)
		assert.Equal(t, constants.MIMEJPEG, p.MIMEType)
		assert.Equal(t, "jpeg-"+strconv.Itoa(i+1), string(p.Data))
	}

	require.Equal(t, 1, r.callCount())
	args := strings.Join(r.calls[0], " ")
	assert.Contains(t, args, "pdftoppm -jpeg -r 150 -f 1 -l 3")
}

func TestRenderPagesSortsPaddedNames(t *testing.T) {
	r := &fakeRunner{pages: 12, pad: true}
	e := newTestExtractor(t, r)

	pages, err := e.RenderPages(context.Background(), []byte("long scan"), 12)
	require.NoError(t, err)
	require.Len(t, pages, 12)
	assert.Equal(t, 10, pages[9].Page)
}

func TestRenderPagesMemoized(t *testing.T) {
	r := &fakeRunner{pages: 2}
	e := newTestExtractor(t, r)
	doc := []byte("same bytes")

	first, err := e.RenderPages(context.Background(), doc, 3)
	require.NoError(t, err)
	second, err := e.RenderPages(context.Background(), doc, 3)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, r.callCount())

	_, err = e.RenderPages(context.Background(), doc, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, r.callCount(), "a different cap is a different key")
}

func TestRenderPagesMissingBinary(t *testing.T) {
	r := &fakeRunner{err: &exec.Error{Name: "pdftoppm", Err: exec.ErrNotFound}}
	e := newTestExtractor(t, r)

	_, err := e.RenderPages(context.Background(), []byte("scan"), 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrRendererUnavailable)
	assert.False(t, errors.Is(err, common.ErrRender))

	_, err = e.RenderPages(context.Background(), []byte("scan"), 0)
	require.Error(t, err)
	assert.Equal(t, 2, r.callCount(), "failures are not cached")
}

func TestRenderPagesOtherFailure(t *testing.T) {
	r := &fakeRunner{err: errors.New("exit status 1"), stderr: "Syntax Error: Couldn't read xref table"}
	e := newTestExtractor(t, r)

	_, err := e.RenderPages(context.Background(), []byte("broken"), 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrRender)
	assert.False(t, errors.Is(err, common.ErrRendererUnavailable))
	assert.Contains(t, err.Error(), "xref")
}

func TestRenderPagesNoOutput(t *testing.T) {
	r := &fakeRunner{pages: 0}
	e := newTestExtractor(t, r)

	_, err := e.RenderPages(context.Background(), []byte("empty"), 0)
	assert.ErrorIs(t, err, common.ErrRender)
}

func TestExtractTextSoftFails(t *testing.T) {
	e := newTestExtractor(t, &fakeRunner{})
	assert.Equal(t, "", e.ExtractText(nil))
	assert.Equal(t, "", e.ExtractText([]byte("%PDF-1.4 garbage")))
	assert.Equal(t, "", e.ExtractText([]byte("%PDF-1.4 garbage")))
}

func TestExtractTextJoinsPagesAndMemoizes(t *testing.T) {
	e := newTestExtractor(t, &fakeRunner{})
	calls := 0
	e.readText = func([]byte) ([]string, error) {
		calls++
		return []string{"  山田太郎\r\n", "", "架空保険\t\t株式会社  "}, nil
	}

	doc := []byte("text pdf")
	first := e.ExtractText(doc)
	second := e.ExtractText(doc)

	assert.Equal(t, "山田太郎\n\n架空保険 株式会社", first)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)
}

func TestExtractTextReaderError(t *testing.T) {
	e := newTestExtractor(t, &fakeRunner{})
	e.readText = func([]byte) ([]string, error) { return nil, errors.New("no xref") }
	assert.Equal(t, "", e.ExtractText([]byte("x")))
}

// onePagePDF builds a minimal single-page PDF with one line of Helvetica text
// and a byte-exact xref table.
func onePagePDF(text string) []byte {
	content := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 5 0 R >> >> /Contents 4 0 R >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}

	var b strings.Builder
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return []byte(b.String())
}

func TestExtractTextFromRealPDF(t *testing.T) {
	data := onePagePDF("Yamada Taro Kaku Hoken")

	first := newTestExtractor(t, &fakeRunner{}).ExtractText(data)
	assert.Contains(t, first, "Yamada Taro Kaku Hoken")

	second := newTestExtractor(t, &fakeRunner{}).ExtractText(data)
	assert.Equal(t, first, second, "fresh extractors read the same text")
}

func TestPageCountFromRealPDF(t *testing.T) {
	data := onePagePDF("Yamada Taro Kaku Hoken")

	n, err := PageCount(data)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, newTestExtractor(t, &fakeRunner{}).PageCount(data))

	_, err = PageCount([]byte("not a pdf"))
	assert.Error(t, err)
}

func TestNeedsImages(t *testing.T) {
	e := newTestExtractor(t, &fakeRunner{})
	assert.True(t, e.NeedsImages(""))
	assert.True(t, e.NeedsImages(strings.Repeat("保", 99)))
	assert.False(t, e.NeedsImages(strings.Repeat("保", 100)))
}

func TestMemoEvicts(t *testing.T) {
	m := newMemo[int](2)
	for i := 0; i < 3; i++ {
		_, _, err := m.do(strconv.Itoa(i), func() (int, error) { return i, nil })
		require.NoError(t, err)
	}
	assert.Equal(t, 2, m.len())
	_, hit, _ := m.do("0", func() (int, error) { return 0, nil })
	assert.False(t, hit)
	_, hit, _ = m.do("2", func() (int, error) { return 2, nil })
	assert.True(t, hit)
}
