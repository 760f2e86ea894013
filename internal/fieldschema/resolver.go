package fieldschema

import (
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/quote-compare/constants"
	"github.com/joseph-ayodele/quote-compare/internal/common"
	"github.com/joseph-ayodele/quote-compare/internal/compare"
)

// HeaderScanRows bounds the search for a header row when row 1 is unusable.
const HeaderScanRows = 5

// Where the active fields came from.
const (
	SourceDefault     = "default"
	SourceSpreadsheet = "spreadsheet"
)

// Resolution is the outcome of resolving a field schema.
type Resolution struct {
	Fields    []string      `json:"fields"`
	Seed      []compare.Row `json:"-"`
	Source    string        `json:"source"`
	Sheet     string        `json:"sheet,omitempty"`
	HeaderRow int           `json:"header_row,omitempty"` // 1-based
}

// Default returns the built-in field list.
func Default() Resolution {
	return Resolution{Fields: constants.DefaultFields(), Source: SourceDefault}
}

var placeholderHeader = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^unnamed:?\s*\d+(_level_\d+)?$`),
	regexp.MustCompile(`(?i)^column\s*\d+$`),
	regexp.MustCompile(`^列\s*\d+$`),
	regexp.MustCompile(`^[+-]?\d+([.,]\d+)?$`),
}

// IsPlaceholder reports whether a header cell is empty or auto-generated.
func IsPlaceholder(h string) bool {
	h = strings.TrimSpace(h)
	if h == "" {
		return true
	}
	for _, re := range placeholderHeader {
		if re.MatchString(h) {
			return true
		}
	}
	return false
}

// Resolver derives field schemas from spreadsheet templates.
type Resolver struct {
	logger *slog.Logger
}

func NewResolver(logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{logger: logger}
}

// Resolve reads the header row of the first non-empty sheet in r.
// A nil reader yields the default list. On a malformed spreadsheet the
// default list is returned together with an error wrapping ErrSchemaSource,
// so the caller can warn and carry on.
func (s *Resolver) Resolve(r io.Reader) (Resolution, error) {
	if r == nil {
		return Default(), nil
	}
	res, err := s.resolve(r)
	if err != nil {
		s.logger.Warn("fieldschema.resolve.fallback", "error", err)
		return Default(), fmt.Errorf("%w: %v", common.ErrSchemaSource, err)
	}
	s.logger.Info("fieldschema.resolve.ok",
		"sheet", res.Sheet,
		"header_row", res.HeaderRow,
		"fields", len(res.Fields),
		"seed_rows", len(res.Seed),
	)
	return res, nil
}

func (s *Resolver) resolve(r io.Reader) (Resolution, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return Resolution{}, fmt.Errorf("open workbook: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			s.logger.Warn("fieldschema.workbook.close_error", "error", cerr)
		}
	}()

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return Resolution{}, fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		if !hasContent(rows) {
			continue
		}
		idx, cols := pickHeaderRow(rows)
		fields := fieldNames(cols)
		if idx < 0 || len(fields) == 0 {
			return Resolution{}, fmt.Errorf("sheet %q has no usable header row", sheet)
		}
		return Resolution{
			Fields:    fields,
			Seed:      seedRows(rows[idx+1:], cols),
			Source:    SourceSpreadsheet,
			Sheet:     sheet,
			HeaderRow: idx + 1,
		}, nil
	}
	return Resolution{}, fmt.Errorf("workbook has no data")
}

type headerCol struct {
	index int
	name  string
}

// pickHeaderRow uses row 1 when it has usable headers, otherwise the row among
// the first HeaderScanRows with the most usable cells. Ties go to the earlier row.
func pickHeaderRow(rows [][]string) (int, []headerCol) {
	if cols := usableHeaders(rows[0]); len(cols) > 0 {
		return 0, cols
	}
	best, bestCols := -1, []headerCol(nil)
	for i := 1; i < len(rows) && i < HeaderScanRows; i++ {
		cols := usableHeaders(rows[i])
		if len(cols) > len(bestCols) {
			best, bestCols = i, cols
		}
	}
	return best, bestCols
}

func usableHeaders(row []string) []headerCol {
	seen := make(map[string]struct{}, len(row))
	var out []headerCol
	for i, cell := range row {
		name := strings.TrimSpace(cell)
		if IsPlaceholder(name) {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, headerCol{index: i, name: name})
	}
	return out
}

// fieldNames lists the columns to extract. The file-name column of a
// previously exported table is kept in the seed rows but never requested.
func fieldNames(cols []headerCol) []string {
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		if constants.IsFileNameField(c.name) {
			continue
		}
		out = append(out, c.name)
	}
	return out
}

func seedRows(rows [][]string, cols []headerCol) []compare.Row {
	var out []compare.Row
	for _, r := range rows {
		row := make(compare.Row, len(cols))
		empty := true
		for _, c := range cols {
			v := ""
			if c.index < len(r) {
				v = strings.TrimSpace(r[c.index])
			}
			if v != "" {
				empty = false
			}
			row[c.name] = v
		}
		if !empty {
			out = append(out, row)
		}
	}
	return out
}

func hasContent(rows [][]string) bool {
	for _, r := range rows {
		for _, c := range r {
			if strings.TrimSpace(c) != "" {
				return true
			}
		}
	}
	return false
}
