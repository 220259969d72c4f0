package feedback

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	minScore = 0
	maxScore = 100
)

var validate = validator.New()

// TotalScore is the arithmetic mean of the category scores rounded half up.
func TotalScore(scores []CategoryScore) int {
	if len(scores) == 0 {
		return 0
	}
	sum := 0
	for _, s := range scores {
		sum += s.Score
	}
	n := len(scores)
	return (2*sum + n) / (2 * n)
}

// ParseResponse parses a raw model response and checks it against the rubric.
// A nil payload is returned together with the list of violated constraints
// when the response is not acceptable.
func ParseResponse(raw string, rubric Rubric) (*Payload, []string) {
	payload, violations, _ := parseResponse(raw, rubric)
	return payload, violations
}

// parseResponse is ParseResponse that also lists every lenient reading it
// applied, so callers can surface them.
func parseResponse(raw string, rubric Rubric) (*Payload, []string, []string) {
	cleaned := extractJSON(raw)
	if cleaned == "" {
		return nil, []string{"response is empty; a JSON object is required"}, nil
	}

	var coerced []string
	if cleaned != strings.TrimSpace(raw) {
		coerced = append(coerced, "text around the JSON object was dropped")
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(cleaned)))
	dec.UseNumber()

	var data map[string]any
	if err := dec.Decode(&data); err != nil {
		return nil, []string{fmt.Sprintf("response is not a valid JSON object: %v", err)}, coerced
	}

	var violations []string
	payload := &Payload{}

	scores, problems, notes := parseCategories(data["categoryScores"], rubric)
	violations = append(violations, problems...)
	coerced = append(coerced, notes...)
	payload.CategoryScores = scores

	for _, list := range []struct {
		key string
		dst *[]string
	}{
		{"strengths", &payload.Strengths},
		{"areasForImprovement", &payload.AreasForImprovement},
	} {
		items, single, err := coerceStrings(data[list.key])
		if err != nil {
			violations = append(violations, list.key+": "+err.Error())
		}
		if single {
			coerced = append(coerced, list.key+": single string read as a list")
		}
		*list.dst = items
	}

	payload.FinalAssessment = coerceString(data["finalAssessment"])
	if payload.FinalAssessment == "" {
		violations = append(violations, "finalAssessment must be a non-empty string")
	}

	if len(violations) > 0 {
		return nil, violations, coerced
	}

	if err := validate.Struct(payload); err != nil {
		return nil, describeValidation(err), coerced
	}

	payload.TotalScore = TotalScore(payload.CategoryScores)
	return payload, nil, coerced
}

func parseCategories(v any, rubric Rubric) ([]CategoryScore, []string, []string) {
	entries, err := categoryEntries(v)
	if err != nil {
		return nil, []string{"categoryScores: " + err.Error()}, nil
	}

	var violations, coerced []string
	found := make(map[string]CategoryScore, len(rubric.Categories))
	for i, entry := range entries {
		rawName := coerceString(entry["name"])
		name, ok := rubric.Canonical(rawName)
		if !ok {
			violations = append(violations, fmt.Sprintf("categoryScores[%d]: unknown category %q; allowed categories are %s",
				i, rawName, strings.Join(rubric.Names(), ", ")))
			continue
		}
		if _, dup := found[name]; dup {
			violations = append(violations, fmt.Sprintf("categoryScores: category %q appears more than once", name))
			continue
		}

		if rawName != name {
			coerced = append(coerced, fmt.Sprintf("category %q read as %q", rawName, name))
		}

		score, fromString, err := coerceScore(entry["score"])
		if err != nil {
			violations = append(violations, fmt.Sprintf("categoryScores[%q].score: %v", name, err))
			continue
		}
		if fromString {
			coerced = append(coerced, fmt.Sprintf("categoryScores[%q].score: string %q read as a number", name, entry["score"]))
		}

		found[name] = CategoryScore{
			Name:    name,
			Score:   score,
			Comment: coerceString(entry["comment"]),
		}
	}

	scores := make([]CategoryScore, 0, len(rubric.Categories))
	for _, c := range rubric.Categories {
		s, ok := found[c.Name]
		if !ok {
			if !hasViolationFor(violations, c.Name) {
				violations = append(violations, fmt.Sprintf("categoryScores: missing category %q", c.Name))
			}
			continue
		}
		scores = append(scores, s)
	}

	return scores, violations, coerced
}

// categoryEntries accepts either a list of {name, score, comment} objects or
// an object keyed by category name.
func categoryEntries(v any) ([]map[string]any, error) {
	switch val := v.(type) {
	case []any:
		entries := make([]map[string]any, 0, len(val))
		for i, item := range val {
			obj, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("item %d must be an object with name, score and comment", i)
			}
			entries = append(entries, obj)
		}
		return entries, nil
	case map[string]any:
		entries := make([]map[string]any, 0, len(val))
		for name, item := range val {
			obj, ok := item.(map[string]any)
			if !ok {
				obj = map[string]any{"score": item}
			}
			entry := map[string]any{"name": name}
			for k, v := range obj {
				if k != "name" {
					entry[k] = v
				}
			}
			entries = append(entries, entry)
		}
		return entries, nil
	case nil:
		return nil, errors.New("field is required")
	default:
		return nil, errors.New("must be an array of category objects")
	}
}

func hasViolationFor(violations []string, name string) bool {
	quoted := strconv.Quote(name)
	for _, v := range violations {
		if strings.Contains(v, quoted) {
			return true
		}
	}
	return false
}

func describeValidation(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}

	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "len":
			out = append(out, fmt.Sprintf("%s must contain exactly %s items", fe.Namespace(), fe.Param()))
		case "min", "max":
			out = append(out, fmt.Sprintf("%s must be between %d and %d", fe.Namespace(), minScore, maxScore))
		default:
			out = append(out, fmt.Sprintf("%s failed the %q rule", fe.Namespace(), fe.Tag()))
		}
	}
	return out
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start != -1 && end > start {
		raw = raw[start : end+1]
	}

	return strings.TrimSpace(raw)
}

// coerceScore reads an integer score. fromString reports that the model sent
// the number as a string.
func coerceScore(v any) (score int, fromString bool, err error) {
	var f float64
	switch val := v.(type) {
	case json.Number:
		parsed, err := val.Float64()
		if err != nil {
			return 0, false, fmt.Errorf("%q is not a number", val.String())
		}
		f = parsed
	case float64:
		f = val
	case int:
		f = float64(val)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, false, fmt.Errorf("%q is not a number", val)
		}
		f = parsed
		fromString = true
	case nil:
		return 0, false, errors.New("score is required")
	default:
		return 0, false, fmt.Errorf("score must be a number, got %T", v)
	}

	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false, fmt.Errorf("score must be an integer, got %v", f)
	}
	if f < minScore || f > maxScore {
		return 0, false, fmt.Errorf("score must be between %d and %d, got %v", minScore, maxScore, f)
	}
	return int(f), fromString, nil
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case json.Number:
		return val.String()
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		return ""
	}
}

func coerceStrings(v any) (items []string, single bool, err error) {
	switch val := v.(type) {
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s := coerceString(item); s != "" {
				out = append(out, s)
			}
		}
		return out, false, nil
	case string:
		if s := strings.TrimSpace(val); s != "" {
			return []string{s}, true, nil
		}
		return []string{}, true, nil
	case nil:
		return nil, false, errors.New("field is required")
	default:
		return nil, false, fmt.Errorf("must be an array of strings, got %T", v)
	}
}
