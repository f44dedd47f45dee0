package answer

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/vnkhanh/tracer-study/models"
)

type (
	choicePayload struct {
		Value     string `json:"value"`
		OtherText string `json:"otherText"`
	}

	multiChoicePayload struct {
		Values    []string `json:"values"`
		OtherText string   `json:"otherText,omitempty"`
	}

	// FileRef is one uploaded file attached to a file answer.
	FileRef struct {
		Name string `json:"name"`
		Type string `json:"type"`
		Size int64  `json:"size"`
		URL  string `json:"url,omitempty"`
	}
)

func isNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

// scalar reads a JSON string, number or bool as text.
func scalar(raw json.RawMessage) (string, error) {
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return "", invalid("malformed JSON")
	}
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x), nil
	case json.Number:
		return x.String(), nil
	case bool:
		return strconv.FormatBool(x), nil
	case nil:
		return "", nil
	}
	return "", invalid("expected a single value")
}

// Normalize validates raw against the question and returns the stored form.
func (s *Spec) Normalize(raw json.RawMessage) (Stored, error) {
	q := s.Question
	if !q.Type.Answerable() {
		if isNull(raw) {
			return Stored{}, nil
		}
		return Stored{}, ErrNotAnswerable
	}

	if isNull(raw) {
		return s.skipped()
	}

	var (
		out Stored
		err error
	)
	switch q.Type {
	case models.TypeText, models.TypeTextarea:
		out, err = s.normalizeText(raw)
	case models.TypeDate:
		out, err = s.normalizeDate(raw)
	case models.TypeRadio, models.TypeDropdown:
		out, err = s.normalizeChoice(raw)
	case models.TypeCheckbox:
		out, err = s.normalizeCheckbox(raw)
	case models.TypeRating, models.TypeSlider:
		out, err = s.normalizeNumber(raw)
	case models.TypeLikert:
		out, err = s.normalizeLikert(raw)
	case models.TypeYesNo:
		out, err = s.normalizeYesNo(raw)
	case models.TypeMatrix:
		out, err = s.normalizeMatrix(raw)
	case models.TypeRanking:
		out, err = s.normalizeRanking(raw)
	case models.TypeFile:
		out, err = s.normalizeFiles(raw)
	default:
		return Stored{}, invalid("unsupported question type %q", q.Type)
	}
	if err != nil {
		return Stored{}, err
	}
	if out.Value == "" && len(out.Data) == 0 {
		return s.skipped()
	}
	return out, nil
}

func (s *Spec) skipped() (Stored, error) {
	if s.Question.Required {
		return Stored{}, ErrRequired
	}
	if s.Question.Type == models.TypeCheckbox {
		return Stored{Value: NullSentinel}, nil
	}
	return Stored{}, nil
}

func (s *Spec) normalizeText(raw json.RawMessage) (Stored, error) {
	v, err := scalar(raw)
	if err != nil {
		return Stored{}, err
	}
	if t := s.Settings.Text; t != nil && t.MaxLength > 0 && utf8.RuneCountInString(v) > t.MaxLength {
		return Stored{}, invalid("answer is longer than %d characters", t.MaxLength)
	}
	return Stored{Value: v}, nil
}

func (s *Spec) normalizeDate(raw json.RawMessage) (Stored, error) {
	v, err := scalar(raw)
	if err != nil || v == "" {
		return Stored{}, err
	}
	if d, err := time.Parse("2006-01-02", v); err == nil {
		return Stored{Value: d.Format("2006-01-02")}, nil
	}
	if d, err := time.Parse(time.RFC3339, v); err == nil {
		return Stored{Value: d.Format("2006-01-02")}, nil
	}
	return Stored{}, invalid("date must be formatted as YYYY-MM-DD")
}

func (s *Spec) checkChoice(v string) error {
	if v == models.OtherValue {
		if !s.allowsOther() {
			return invalid("option %q is not allowed", v)
		}
		return nil
	}
	if len(s.values) > 0 && !s.HasOption(v) {
		return invalid("option %q is not listed", v)
	}
	return nil
}

func (s *Spec) normalizeChoice(raw json.RawMessage) (Stored, error) {
	var p choicePayload
	if bytes.HasPrefix(bytes.TrimSpace(raw), []byte("{")) {
		if err := json.Unmarshal(raw, &p); err != nil {
			return Stored{}, invalid("malformed choice payload")
		}
		p.Value = strings.TrimSpace(p.Value)
	} else {
		v, err := scalar(raw)
		if err != nil {
			return Stored{}, err
		}
		p.Value = v
	}
	if p.Value == "" {
		return Stored{}, nil
	}
	if err := s.checkChoice(p.Value); err != nil {
		return Stored{}, err
	}
	if p.Value != models.OtherValue {
		return Stored{Value: p.Value}, nil
	}

	p.OtherText = strings.TrimSpace(p.OtherText)
	if p.OtherText == "" {
		return Stored{}, invalid("please describe the other option")
	}
	data, _ := json.Marshal(p)
	return Stored{Value: p.Value, Data: data}, nil
}

func (s *Spec) normalizeCheckbox(raw json.RawMessage) (Stored, error) {
	var p multiChoicePayload
	switch bytes.TrimSpace(raw)[0] {
	case '{':
		if err := json.Unmarshal(raw, &p); err != nil {
			return Stored{}, invalid("malformed checkbox payload")
		}
	case '[':
		if err := json.Unmarshal(raw, &p.Values); err != nil {
			return Stored{}, invalid("checkbox answer must be a list of option values")
		}
	default:
		return Stored{}, invalid("checkbox answer must be a list of option values")
	}

	seen := make(map[string]bool, len(p.Values))
	values := make([]string, 0, len(p.Values))
	for _, v := range p.Values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		if err := s.checkChoice(v); err != nil {
			return Stored{}, err
		}
		seen[v] = true
		values = append(values, v)
	}
	if len(values) == 0 {
		return Stored{}, nil
	}

	if c := s.Settings.Choice; c != nil {
		if c.MinSelect > 0 && len(values) < c.MinSelect {
			return Stored{}, invalid("select at least %d options", c.MinSelect)
		}
		if c.MaxSelect > 0 && len(values) > c.MaxSelect {
			return Stored{}, invalid("select at most %d options", c.MaxSelect)
		}
	}

	p.Values = values
	p.OtherText = strings.TrimSpace(p.OtherText)
	if seen[models.OtherValue] && p.OtherText == "" {
		return Stored{}, invalid("please describe the other option")
	}
	if !seen[models.OtherValue] {
		p.OtherText = ""
	}

	value, _ := json.Marshal(values)
	data, _ := json.Marshal(p)
	return Stored{Value: string(value), Data: data}, nil
}

func parseNumber(raw json.RawMessage) (float64, bool, error) {
	v, err := scalar(raw)
	if err != nil {
		return 0, false, err
	}
	if v == "" {
		return 0, false, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false, invalid("%q is not a number", v)
	}
	return f, true, nil
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func (s *Spec) normalizeNumber(raw json.RawMessage) (Stored, error) {
	f, ok, err := parseNumber(raw)
	if err != nil || !ok {
		return Stored{}, err
	}
	if n := s.Settings.Numeric; n != nil {
		if n.Min != nil && f < *n.Min {
			return Stored{}, invalid("value must be at least %s", formatNumber(*n.Min))
		}
		if n.Max != nil && f > *n.Max {
			return Stored{}, invalid("value must be at most %s", formatNumber(*n.Max))
		}
	}
	return Stored{Value: formatNumber(f)}, nil
}

func (s *Spec) normalizeLikert(raw json.RawMessage) (Stored, error) {
	f, ok, err := parseNumber(raw)
	if err != nil || !ok {
		return Stored{}, err
	}
	points := s.Settings.Likert.ScalePoints()
	if f != math.Trunc(f) || f < 1 || int(f) > points {
		return Stored{}, invalid("scale value must be a whole number between 1 and %d", points)
	}
	return Stored{Value: strconv.Itoa(int(f))}, nil
}

var yesNoWords = map[string]bool{
	"yes": true, "y": true, "true": true, "1": true, "ya": true,
	"no": false, "n": false, "false": false, "0": false, "tidak": false,
}

// ParseYesNo maps the accepted spellings of yes/no to a bool.
func ParseYesNo(v string) (bool, bool) {
	b, ok := yesNoWords[strings.ToLower(strings.TrimSpace(v))]
	return b, ok
}

func (s *Spec) normalizeYesNo(raw json.RawMessage) (Stored, error) {
	v, err := scalar(raw)
	if err != nil || v == "" {
		return Stored{}, err
	}
	b, ok := ParseYesNo(v)
	if !ok {
		return Stored{}, invalid("answer must be yes or no")
	}
	if b {
		return Stored{Value: "yes"}, nil
	}
	return Stored{Value: "no"}, nil
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func (s *Spec) normalizeMatrix(raw json.RawMessage) (Stored, error) {
	var in map[string]json.RawMessage
	if err := json.Unmarshal(raw, &in); err != nil {
		return Stored{}, invalid("matrix answer must be an object of row to column")
	}
	m := s.Settings.Matrix
	if m == nil {
		m = &models.MatrixSettings{}
	}

	rows := make(map[string][]string, len(in))
	for row, cell := range in {
		if len(m.Rows) > 0 && !contains(m.Rows, row) {
			return Stored{}, invalid("row %q is not part of the matrix", row)
		}
		var cols []string
		if isNull(cell) {
			continue
		}
		if bytes.HasPrefix(bytes.TrimSpace(cell), []byte("[")) {
			if err := json.Unmarshal(cell, &cols); err != nil {
				return Stored{}, invalid("row %q has a malformed column list", row)
			}
		} else {
			c, err := scalar(cell)
			if err != nil {
				return Stored{}, err
			}
			cols = []string{c}
		}

		kept := cols[:0]
		for _, c := range cols {
			c = strings.TrimSpace(c)
			if c == "" {
				continue
			}
			if len(m.Columns) > 0 && !contains(m.Columns, c) {
				return Stored{}, invalid("column %q is not part of the matrix", c)
			}
			kept = append(kept, c)
		}
		if len(kept) == 0 {
			continue
		}
		if !m.IsCheckbox() && len(kept) > 1 {
			return Stored{}, invalid("row %q accepts a single column", row)
		}
		rows[row] = kept
	}

	if len(rows) == 0 {
		return Stored{}, nil
	}
	if s.Question.Required {
		for _, r := range m.Rows {
			if _, ok := rows[r]; !ok {
				return Stored{}, invalid("row %q must be answered", r)
			}
		}
	}

	var data []byte
	if m.IsCheckbox() {
		data, _ = json.Marshal(rows)
	} else {
		single := make(map[string]string, len(rows))
		for r, cols := range rows {
			single[r] = cols[0]
		}
		data, _ = json.Marshal(single)
	}
	return Stored{Value: MatrixText(OrderedRows(m.Rows, rows), rows), Data: data}, nil
}

func (s *Spec) normalizeRanking(raw json.RawMessage) (Stored, error) {
	var items []string
	if err := json.Unmarshal(raw, &items); err != nil {
		return Stored{}, invalid("ranking answer must be an ordered list")
	}
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" {
			continue
		}
		if seen[it] {
			return Stored{}, invalid("item %q is ranked twice", it)
		}
		if len(s.values) > 0 && !s.HasOption(it) {
			return Stored{}, invalid("item %q is not listed", it)
		}
		seen[it] = true
		out = append(out, it)
	}
	if len(out) == 0 {
		return Stored{}, nil
	}
	data, _ := json.Marshal(out)
	return Stored{Value: string(data), Data: data}, nil
}

func (s *Spec) normalizeFiles(raw json.RawMessage) (Stored, error) {
	var files []FileRef
	if bytes.HasPrefix(bytes.TrimSpace(raw), []byte("{")) {
		var one FileRef
		if err := json.Unmarshal(raw, &one); err != nil {
			return Stored{}, invalid("malformed file payload")
		}
		files = []FileRef{one}
	} else if err := json.Unmarshal(raw, &files); err != nil {
		return Stored{}, invalid("file answer must be a list of files")
	}

	names := make([]string, 0, len(files))
	for i, f := range files {
		if strings.TrimSpace(f.Name) == "" {
			return Stored{}, invalid("file %d has no name", i+1)
		}
		if f.Size < 0 {
			return Stored{}, invalid("file %q has a negative size", f.Name)
		}
		names = append(names, f.Name)
	}
	if len(files) == 0 {
		return Stored{}, nil
	}
	if fs := s.Settings.File; fs != nil && fs.MaxFiles > 0 && len(files) > fs.MaxFiles {
		return Stored{}, invalid("at most %d files are allowed", fs.MaxFiles)
	}
	data, _ := json.Marshal(files)
	return Stored{Value: strings.Join(names, ", "), Data: data}, nil
}
