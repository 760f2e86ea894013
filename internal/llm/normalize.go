package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/quote-compare/constants"
	"github.com/joseph-ayodele/quote-compare/internal/common"
	"github.com/joseph-ayodele/quote-compare/internal/compare"
)

// NormalizeReport describes what normalization did to a reply.
type NormalizeReport struct {
	Source    TextSource `json:"source"`
	Fenced    bool       `json:"fenced"`
	Flattened []string   `json:"flattened,omitempty"`
	Dropped   []string   `json:"dropped,omitempty"`
	Missing   []string   `json:"missing,omitempty"`
}

// Normalizer turns raw model replies into table rows.
type Normalizer struct {
	logger *slog.Logger
}

func NewNormalizer(logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{logger: logger}
}

// Normalize extracts the reply text, strips a code fence, parses a JSON
// object and reconciles it against fields. The returned row has exactly the
// schema fields plus the file-name column. Failures are *common.DocumentError
// values wrapping common.ErrNormalization with the offending text in Raw.
func (n *Normalizer) Normalize(resp Response, fields []string, fileName string) (compare.Row, NormalizeReport, error) {
	var rep NormalizeReport

	text, src, err := ResponseText(resp)
	if err != nil {
		n.logger.Warn("llm.normalize.no_text", "file", fileName, "envelope_bytes", len(resp.Envelope))
		return nil, rep, common.NewDocumentError(fileName, common.StageNormalize, string(resp.Envelope),
			fmt.Errorf("%w: %w", common.ErrNormalization, err))
	}
	rep.Source = src

	body, fenced := StripCodeFence(text)
	rep.Fenced = fenced

	obj, err := ParseObject(body)
	if err != nil {
		n.logger.Warn("llm.normalize.parse_failed", "file", fileName, "error", err, "raw_len", len(text))
		return nil, rep, common.NewDocumentError(fileName, common.StageNormalize, text,
			fmt.Errorf("%w: %w", common.ErrNormalization, err))
	}

	schema := BuildFieldsJSONSchema(fields)
	if err := validateObject(schema, obj); err != nil {
		rep.Flattened = flattenNested(obj, fields)
		if vErr := validateObject(schema, obj); vErr != nil {
			n.logger.Error("llm.normalize.schema_validation_failed", "file", fileName, "error", vErr)
			return nil, rep, common.NewDocumentError(fileName, common.StageNormalize, text,
				fmt.Errorf("%w: %w", common.ErrNormalization, vErr))
		}
		n.logger.Warn("llm.normalize.lenient_flatten_applied", "file", fileName, "flattened", rep.Flattened)
	}

	row, dropped, missing := Reconcile(obj, fields, fileName)
	rep.Dropped, rep.Missing = dropped, missing
	if len(dropped) > 0 {
		n.logger.Info("llm.normalize.dropped_keys", "file", fileName, "dropped", dropped)
	}
	return row, rep, nil
}

// StripCodeFence removes a leading ``` or ```json line and a trailing ```.
// Text that does not start with a fence is returned trimmed and unchanged.
func StripCodeFence(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s, false
	}
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		// single line: ```json {...}```
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimLeft(s, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s), true
}

// ParseObject parses text as exactly one JSON object. Numbers keep their
// literal form.
func ParseObject(text string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty response")
		}
		return nil, fmt.Errorf("parse json: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("parse json: trailing data after value")
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected a JSON object, got %s", kindOf(v))
	}
	return obj, nil
}

// Reconcile restricts obj to fields, fills missing fields with "" and sets
// the file-name column. It returns the sorted dropped and missing keys.
func Reconcile(obj map[string]any, fields []string, fileName string) (compare.Row, []string, []string) {
	row := make(compare.Row, len(fields)+1)
	want := make(map[string]struct{}, len(fields))
	var missing []string
	for _, f := range fields {
		if constants.IsFileNameField(f) {
			continue
		}
		want[f] = struct{}{}
		v, ok := obj[f]
		if !ok {
			missing = append(missing, f)
		}
		row[f] = Stringify(v)
	}
	var dropped []string
	for k := range obj {
		if _, ok := want[k]; !ok {
			dropped = append(dropped, k)
		}
	}
	sort.Strings(dropped)
	row[constants.FileNameField] = fileName
	return row, dropped, missing
}

// Stringify renders a decoded JSON value as a cell. null becomes "".
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

func validateObject(schema map[string]any, obj map[string]any) error {
	data, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("encode object: %w", err)
	}
	return ValidateJSONAgainstSchema(schema, data)
}

// flattenNested replaces array and object values of schema fields with their
// compact JSON text.
func flattenNested(obj map[string]any, fields []string) []string {
	var out []string
	for _, f := range fields {
		switch obj[f].(type) {
		case map[string]any, []any:
			obj[f] = Stringify(obj[f])
			out = append(out, f)
		}
	}
	return out
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "array"
	case string:
		return "string"
	case json.Number, float64:
		return "number"
	case bool:
		return "boolean"
	default:
		return fmt.Sprintf("%T", v)
	}
}
