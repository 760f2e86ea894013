package fieldschema

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/quote-compare/constants"
	"github.com/joseph-ayodele/quote-compare/internal/common"
)

func workbook(t *testing.T, sheets map[string][][]any, order ...string) *bytes.Reader {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	for i, name := range order {
		if i == 0 {
			require.NoError(t, f.SetSheetName("Sheet1", name))
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for r, row := range sheets[name] {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetSheetRow(name, cell, &row))
		}
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return bytes.NewReader(buf.Bytes())
}

func TestResolveNilReaderUsesDefault(t *testing.T) {
	res, err := NewResolver(nil).Resolve(nil)
	require.NoError(t, err)
	assert.Equal(t, constants.DefaultFields(), res.Fields)
	assert.Equal(t, SourceDefault, res.Source)
}

func TestResolveFirstRowHeaders(t *testing.T) {
	r := workbook(t, map[string][][]any{
		"見積": {
			{"氏名", "", "保険会社名", "Unnamed: 3", "氏名", "保険金額"},
			{"山田太郎", "x", "架空保険", "", "", "1000万円"},
			{"", "", "", "", "", ""},
			{"", "", "別保険", "", "", ""},
		},
	}, "見積")

	res, err := NewResolver(nil).Resolve(r)
	require.NoError(t, err)
	assert.Equal(t, []string{"氏名", "保険会社名", "保険金額"}, res.Fields)
	assert.Equal(t, SourceSpreadsheet, res.Source)
	assert.Equal(t, 1, res.HeaderRow)
	require.Len(t, res.Seed, 2)
	assert.Equal(t, "山田太郎", res.Seed[0]["氏名"])
	assert.Equal(t, "1000万円", res.Seed[0]["保険金額"])
	assert.Equal(t, "別保険", res.Seed[1]["保険会社名"])
}

func TestResolveScansForHeaderRow(t *testing.T) {
	r := workbook(t, map[string][][]any{
		"Sheet": {
			{"Unnamed: 0", "Unnamed: 1", "Unnamed: 2"},
			{"見積比較", "", ""},
			{"氏名", "生年月日", "補償内容"},
			{"鈴木", "1980/01/01", "入院"},
		},
	}, "Sheet")

	res, err := NewResolver(nil).Resolve(r)
	require.NoError(t, err)
	assert.Equal(t, 3, res.HeaderRow)
	assert.Equal(t, []string{"氏名", "生年月日", "補償内容"}, res.Fields)
	require.Len(t, res.Seed, 1)
	assert.Equal(t, "入院", res.Seed[0]["補償内容"])
}

func TestResolveSkipsEmptySheets(t *testing.T) {
	r := workbook(t, map[string][][]any{
		"Blank": {},
		"Data":  {{"保険期間", "保険金額"}},
	}, "Blank", "Data")

	res, err := NewResolver(nil).Resolve(r)
	require.NoError(t, err)
	assert.Equal(t, "Data", res.Sheet)
	assert.Equal(t, []string{"保険期間", "保険金額"}, res.Fields)
}

func TestResolveMalformedFallsBack(t *testing.T) {
	res, err := NewResolver(nil).Resolve(strings.NewReader("not a workbook"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrSchemaSource))
	assert.Equal(t, constants.DefaultFields(), res.Fields)
	assert.Equal(t, SourceDefault, res.Source)
}

func TestResolveOnlyPlaceholdersFallsBack(t *testing.T) {
	r := workbook(t, map[string][][]any{
		"Sheet1": {{"Column1", "列2", 3}},
	}, "Sheet1")

	res, err := NewResolver(nil).Resolve(r)
	require.ErrorIs(t, err, common.ErrSchemaSource)
	assert.NotEmpty(t, res.Fields)
}

func TestResolveReusedExport(t *testing.T) {
	r := workbook(t, map[string][][]any{
		constants.ExportSheetName: {
			{"氏名", "保険会社名", constants.FileNameField},
			{"山田太郎", "架空保険", "a.pdf"},
		},
	}, constants.ExportSheetName)

	res, err := NewResolver(nil).Resolve(r)
	require.NoError(t, err)
	assert.Equal(t, []string{"氏名", "保険会社名"}, res.Fields)
	require.Len(t, res.Seed, 1)
	assert.Equal(t, "a.pdf", res.Seed[0][constants.FileNameField])
}

func TestIsPlaceholder(t *testing.T) {
	for _, h := range []string{"", "  ", "Unnamed: 0", "unnamed:12", "Column3", "列4", "42", "3.5"} {
		assert.Truef(t, IsPlaceholder(h), "%q", h)
	}
	for _, h := range []string{"氏名", "保険金額", "Column", "2024年度"} {
		assert.Falsef(t, IsPlaceholder(h), "%q", h)
	}
}
