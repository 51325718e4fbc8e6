package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/sells-group/client-enricher/internal/model"
)

var fencePattern = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)\\s*```")

// sentinels are placeholder values models emit for unknown fields. They
// decode to absence.
var sentinels = map[string]bool{
	"":              true,
	"unknown":       true,
	"n/a":           true,
	"na":            true,
	"none":          true,
	"null":          true,
	"not available": true,
	"not found":     true,
}

// DecodeEnrichedData decodes an extraction reply.
//
// The first non-empty text part is used. It may be wrapped in markdown code
// fences and surrounded by prose; the payload must be a single JSON object
// whose keys are a subset of the EnrichedData keys. Scalar fields accept JSON
// strings or numbers. null and placeholder strings ("unknown", "n/a", ...)
// decode to an omitted field, for list and object fields as well as scalars. Anything else is a *model.MalformedOutputError.
func DecodeEnrichedData(resp *Response) (*model.EnrichedData, error) {
	text := resp.Text()
	if text == "" {
		return nil, &model.MalformedOutputError{Reason: "response has no text part"}
	}

	payload, ok := extractObject(text)
	if !ok {
		return nil, &model.MalformedOutputError{Raw: text, Reason: "no JSON object found"}
	}

	var fields map[string]json.RawMessage
	dec := json.NewDecoder(strings.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return nil, &model.MalformedOutputError{Raw: text, Reason: "invalid JSON", Cause: err}
	}

	data := &model.EnrichedData{}
	for key, raw := range fields {
		var err error
		switch key {
		case "employeeCount":
			data.EmployeeCount, err = decodeScalar(raw)
		case "revenue":
			data.Revenue, err = decodeScalar(raw)
		case "founded":
			data.Founded, err = decodeScalar(raw)
		case "description":
			data.Description, err = decodeScalar(raw)
		case "socialMedia":
			data.SocialMedia, err = decodeSocialMedia(raw)
		case "competitors":
			data.Competitors, err = decodeList(raw)
		case "technologies":
			data.Technologies, err = decodeList(raw)
		case "locations":
			data.Locations, err = decodeList(raw)
		default:
			return nil, &model.MalformedOutputError{Raw: text, Reason: fmt.Sprintf("unexpected key %q", key)}
		}
		if err != nil {
			return nil, &model.MalformedOutputError{Raw: text, Reason: fmt.Sprintf("field %s", key), Cause: err}
		}
	}

	return data, nil
}

// extractObject strips code fences and returns the outermost {...} span.
func extractObject(text string) (string, bool) {
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		text = m[1]
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return "", false
	}
	return text[start : end+1], true
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// isPlaceholder reports whether raw is null or a placeholder string standing
// in for a list or object.
func isPlaceholder(raw json.RawMessage) bool {
	if isNull(raw) {
		return true
	}
	var s string
	return json.Unmarshal(raw, &s) == nil && normalise(s) == ""
}

func normalise(s string) string {
	s = strings.TrimSpace(s)
	if sentinels[strings.ToLower(s)] {
		return ""
	}
	return s
}

func decodeScalar(raw json.RawMessage) (string, error) {
	if isNull(raw) {
		return "", nil
	}
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return "", err
	}
	switch t := v.(type) {
	case string:
		return normalise(t), nil
	case json.Number:
		return t.String(), nil
	default:
		return "", fmt.Errorf("expected string, got %T", v)
	}
}

func decodeList(raw json.RawMessage) ([]string, error) {
	if isPlaceholder(raw) {
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("expected array: %w", err)
	}
	var out []string
	for _, item := range items {
		s, err := decodeScalar(item)
		if err != nil {
			return nil, err
		}
		if s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

func decodeSocialMedia(raw json.RawMessage) (*model.SocialMedia, error) {
	if isPlaceholder(raw) {
		return nil, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("expected object: %w", err)
	}

	sm := &model.SocialMedia{}
	for key, v := range fields {
		s, err := decodeScalar(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		switch key {
		case "linkedin":
			sm.LinkedIn = s
		case "twitter":
			sm.Twitter = s
		default:
			return nil, fmt.Errorf("unexpected key %q", key)
		}
	}
	if sm.LinkedIn == "" && sm.Twitter == "" {
		return nil, nil
	}
	return sm, nil
}
