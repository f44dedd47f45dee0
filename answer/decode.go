package answer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/vnkhanh/tracer-study/models"
)

var errMalformed = errors.New("malformed answer data")

// IsSkipped is true for answers that must stay out of statistics denominators.
func IsSkipped(a *models.AnswerDetail) bool {
	v := strings.TrimSpace(a.AnswerValue)
	if v != "" && v != NullSentinel {
		return false
	}
	d := bytes.TrimSpace(a.AnswerData)
	return len(d) == 0 || bytes.Equal(d, []byte("null"))
}

func hasData(a *models.AnswerDetail) bool {
	d := bytes.TrimSpace(a.AnswerData)
	return len(d) > 0 && !bytes.Equal(d, []byte("null"))
}

// Choice returns the single selected value and, for "other", the typed text.
func Choice(a *models.AnswerDetail) (string, string, error) {
	if hasData(a) {
		var p choicePayload
		if err := json.Unmarshal(a.AnswerData, &p); err != nil {
			return "", "", fmt.Errorf("%w: %v", errMalformed, err)
		}
		if p.Value != "" {
			return p.Value, p.OtherText, nil
		}
	}
	return strings.TrimSpace(a.AnswerValue), "", nil
}

// Choices returns the selected values of a checkbox answer. Older rows that
// only carry a JSON list in AnswerValue are read as well.
func Choices(a *models.AnswerDetail) ([]string, string, error) {
	if IsSkipped(a) {
		return nil, "", nil
	}
	if hasData(a) {
		d := bytes.TrimSpace(a.AnswerData)
		if d[0] == '[' {
			var vals []string
			if err := json.Unmarshal(d, &vals); err != nil {
				return nil, "", fmt.Errorf("%w: %v", errMalformed, err)
			}
			return vals, "", nil
		}
		var p multiChoicePayload
		if err := json.Unmarshal(d, &p); err != nil {
			return nil, "", fmt.Errorf("%w: %v", errMalformed, err)
		}
		return p.Values, p.OtherText, nil
	}
	v := strings.TrimSpace(a.AnswerValue)
	if strings.HasPrefix(v, "[") {
		var vals []string
		if err := json.Unmarshal([]byte(v), &vals); err != nil {
			return nil, "", fmt.Errorf("%w: %v", errMalformed, err)
		}
		return vals, "", nil
	}
	return []string{v}, "", nil
}

// Number parses a numeric answer; ok is false for skipped or non-numeric values.
func Number(a *models.AnswerDetail) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(a.AnswerValue), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Matrix returns row -> selected columns. Radio matrices yield one column per row.
func Matrix(a *models.AnswerDetail) (map[string][]string, error) {
	if !hasData(a) {
		return nil, nil
	}
	var in map[string]any
	if err := json.Unmarshal(a.AnswerData, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformed, err)
	}
	out := make(map[string][]string, len(in))
	for row, v := range in {
		switch x := v.(type) {
		case string:
			out[row] = []string{x}
		case []any:
			cols := make([]string, 0, len(x))
			for _, c := range x {
				s, ok := c.(string)
				if !ok {
					return nil, fmt.Errorf("%w: row %q has a non-text column", errMalformed, row)
				}
				cols = append(cols, s)
			}
			out[row] = cols
		case nil:
		default:
			return nil, fmt.Errorf("%w: row %q", errMalformed, row)
		}
	}
	return out, nil
}

// Ranking returns items in ranked order, first place first.
func Ranking(a *models.AnswerDetail) ([]string, error) {
	src := a.AnswerData
	if !hasData(a) {
		src = []byte(strings.TrimSpace(a.AnswerValue))
	}
	if len(src) == 0 {
		return nil, nil
	}
	var items []string
	if err := json.Unmarshal(src, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformed, err)
	}
	return items, nil
}

func Files(a *models.AnswerDetail) ([]FileRef, error) {
	if !hasData(a) {
		return nil, nil
	}
	var files []FileRef
	if err := json.Unmarshal(a.AnswerData, &files); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformed, err)
	}
	return files, nil
}

// RawText is the last-resort rendering of an answer: a formatted or
// humanReadable field on the payload, else the stored value, else the JSON.
func RawText(a *models.AnswerDetail) string {
	if hasData(a) {
		var obj map[string]any
		if err := json.Unmarshal(a.AnswerData, &obj); err == nil {
			for _, key := range []string{"formatted", "humanReadable"} {
				if s, ok := obj[key].(string); ok && s != "" {
					return s
				}
			}
		}
	}
	if v := strings.TrimSpace(a.AnswerValue); v != "" && v != NullSentinel {
		return v
	}
	if !hasData(a) {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, a.AnswerData); err != nil {
		return string(a.AnswerData)
	}
	return buf.String()
}

// OrderedRows lists answered rows in the configured order, then any others sorted.
func OrderedRows(configured []string, rows map[string][]string) []string {
	out := make([]string, 0, len(rows))
	seen := make(map[string]bool, len(rows))
	for _, r := range configured {
		if _, ok := rows[r]; ok {
			out = append(out, r)
			seen[r] = true
		}
	}
	var extra []string
	for r := range rows {
		if !seen[r] {
			extra = append(extra, r)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}

// MatrixText renders "{row}: {col1, col2}" pairs joined by "; ".
func MatrixText(order []string, rows map[string][]string) string {
	parts := make([]string, 0, len(order))
	for _, r := range order {
		parts = append(parts, fmt.Sprintf("%s: %s", r, strings.Join(rows[r], ", ")))
	}
	return strings.Join(parts, "; ")
}
