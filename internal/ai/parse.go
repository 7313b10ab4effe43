package ai

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// ParseVerdicts turns a raw classifier reply into verdicts. The reply may be
// wrapped in a markdown code fence and may be either a bare list or a
// {"Vacancies": [...]} object. Items that are not well-formed verdict objects
// become VerdictUnrecognized instead of failing the whole reply.
func ParseVerdicts(raw string) ([]Verdict, error) {
	cleaned := extractJSON(raw)

	var top any
	if err := json.Unmarshal([]byte(cleaned), &top); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}

	var items []any
	switch v := top.(type) {
	case []any:
		items = v
	case map[string]any:
		wrapped, ok := v["Vacancies"].([]any)
		if !ok {
			return nil, fmt.Errorf("%w: object without a Vacancies list", ErrMalformedOutput)
		}
		items = wrapped
	default:
		return nil, fmt.Errorf("%w: unexpected top-level value %T", ErrMalformedOutput, top)
	}

	verdicts := make([]Verdict, 0, len(items))
	for _, item := range items {
		verdicts = append(verdicts, parseItem(item))
	}
	return verdicts, nil
}

func parseItem(item any) Verdict {
	m, ok := item.(map[string]any)
	if !ok {
		return Verdict{Kind: VerdictUnrecognized}
	}

	id, ok := coerceID(m["id"])
	if !ok {
		return Verdict{Kind: VerdictUnrecognized}
	}

	if coerceBool(m["not_a_vacancy"]) {
		return Verdict{Kind: VerdictNotAVacancy, ID: id}
	}

	var fields Fields
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &fields,
	})
	if err != nil || decoder.Decode(m) != nil {
		return Verdict{Kind: VerdictUnrecognized, ID: id}
	}

	normalize(&fields)
	return Verdict{Kind: VerdictClassified, ID: id, Fields: fields}
}

// normalize trims every field and substitutes the placeholder markers:
// Unknown for absent optional fields, NoLocation for a missing or
// "Не указано" location. A missing category falls back to "Other" and an
// absent subcategory stays empty (no taxonomy node is created for it).
func normalize(f *Fields) {
	f.Category = strings.TrimSpace(f.Category)
	if f.Category == "" {
		f.Category = "Other"
	}
	f.Subcategory = strings.TrimSpace(f.Subcategory)

	f.Location = strings.TrimSpace(f.Location)
	if f.Location == "" || f.Location == "Не указано" {
		f.Location = NoLocation
	}

	for _, field := range []*string{
		&f.Company, &f.EmploymentType, &f.WorkFormat,
		&f.SalaryMin, &f.SalaryMax, &f.SalaryCurrency, &f.Experience,
	} {
		*field = strings.TrimSpace(*field)
		if *field == "" {
			*field = Unknown
		}
	}

	reqs := f.Requirements[:0]
	for _, req := range f.Requirements {
		if req = strings.TrimSpace(req); req != "" {
			reqs = append(reqs, req)
		}
	}
	f.Requirements = reqs
}

// extractJSON strips a surrounding markdown code fence, with or without a
// language tag, from the model output.
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
	return strings.TrimSpace(raw)
}

func coerceID(v any) (int64, bool) {
	switch val := v.(type) {
	case float64:
		return int64(val), true
	case json.Number:
		id, err := val.Int64()
		return id, err == nil
	case string:
		id, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		return id, err == nil
	default:
		return 0, false
	}
}

func coerceBool(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		lower := strings.ToLower(strings.TrimSpace(val))
		return lower == "true" || lower == "yes"
	case float64:
		return val != 0
	default:
		return false
	}
}
