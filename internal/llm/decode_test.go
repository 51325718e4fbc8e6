package llm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/client-enricher/internal/model"
)

func textResponse(s string) *Response {
	return &Response{Parts: []Part{{Type: PartText, Text: s}}}
}

func TestDecodeEnrichedData_StripsFences(t *testing.T) {
	t.Parallel()

	got, err := DecodeEnrichedData(textResponse("```json\n{\"founded\":\"2010\"}\n```"))
	require.NoError(t, err)
	assert.Equal(t, &model.EnrichedData{Founded: "2010"}, got)
}

func TestDecodeEnrichedData_Shapes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		resp *Response
		want *model.EnrichedData
	}{
		{
			name: "bare object",
			resp: textResponse(`{"employeeCount":"50-100","founded":"2015"}`),
			want: &model.EnrichedData{EmployeeCount: "50-100", Founded: "2015"},
		},
		{
			name: "plain fence without language",
			resp: textResponse("```\n{\"revenue\":\"$1M\"}\n```"),
			want: &model.EnrichedData{Revenue: "$1M"},
		},
		{
			name: "surrounding prose",
			resp: textResponse("Here is the profile:\n{\"description\":\"Makes widgets.\"}\nHope that helps."),
			want: &model.EnrichedData{Description: "Makes widgets."},
		},
		{
			name: "number as string",
			resp: textResponse(`{"founded":2015,"employeeCount":120}`),
			want: &model.EnrichedData{Founded: "2015", EmployeeCount: "120"},
		},
		{
			name: "sentinels omitted",
			resp: textResponse(`{"revenue":"Unknown","founded":null,"description":"N/A","competitors":["unknown",""],"socialMedia":{"linkedin":"none","twitter":null}}`),
			want: &model.EnrichedData{},
		},
		{
			name: "placeholder in place of list or object",
			resp: textResponse(`{"competitors":"unknown","technologies":"N/A","locations":"","socialMedia":"N/A","founded":"2015"}`),
			want: &model.EnrichedData{Founded: "2015"},
		},
		{
			name: "every field unknown",
			resp: textResponse(`{"employeeCount":"unknown","revenue":"unknown","founded":"unknown","description":"unknown","socialMedia":"unknown","competitors":"unknown","technologies":"unknown","locations":"unknown"}`),
			want: &model.EnrichedData{},
		},
		{
			name: "lists and social media",
			resp: textResponse(`{"competitors":["Globex"," Initech "],"technologies":["Go"],"locations":["Austin, TX"],"socialMedia":{"linkedin":"https://linkedin.com/company/acme"}}`),
			want: &model.EnrichedData{
				Competitors:  []string{"Globex", "Initech"},
				Technologies: []string{"Go"},
				Locations:    []string{"Austin, TX"},
				SocialMedia:  &model.SocialMedia{LinkedIn: "https://linkedin.com/company/acme"},
			},
		},
		{
			name: "multi-part uses first text part",
			resp: &Response{Parts: []Part{
				{Type: PartThought, Text: "thinking about it"},
				{Type: PartOther},
				{Type: PartText, Text: "  "},
				{Type: PartText, Text: `{"founded":"1999"}`},
				{Type: PartText, Text: `{"founded":"2000"}`},
			}},
			want: &model.EnrichedData{Founded: "1999"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeEnrichedData(tt.resp)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeEnrichedData_Malformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		resp   *Response
		reason string
	}{
		{name: "nil response", resp: nil, reason: "no text part"},
		{name: "no text parts", resp: &Response{Parts: []Part{{Type: PartOther}}}, reason: "no text part"},
		{name: "prose only", resp: textResponse("I could not find anything."), reason: "no JSON object"},
		{name: "broken json", resp: textResponse(`{"founded": "2015"`), reason: "no JSON object"},
		{name: "invalid json", resp: textResponse(`{"founded": 2015,}`), reason: "invalid JSON"},
		{name: "extraneous key", resp: textResponse(`{"founded":"2015","ceo":"Jane"}`), reason: `unexpected key "ceo"`},
		{name: "wrong list type", resp: textResponse(`{"competitors":"Globex"}`), reason: "field competitors"},
		{name: "object scalar", resp: textResponse(`{"revenue":{"min":1}}`), reason: "field revenue"},
		{name: "unknown social key", resp: textResponse(`{"socialMedia":{"facebook":"x"}}`), reason: "field socialMedia"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeEnrichedData(tt.resp)
			require.Error(t, err)

			var malformed *model.MalformedOutputError
			require.True(t, errors.As(err, &malformed))
			assert.Contains(t, malformed.Reason, tt.reason)
		})
	}
}

func TestDecodeEnrichedData_KeepsRawText(t *testing.T) {
	t.Parallel()

	raw := `{"founded":"2015","extra":true}`
	_, err := DecodeEnrichedData(textResponse(raw))

	var malformed *model.MalformedOutputError
	require.True(t, errors.As(err, &malformed))
	assert.Equal(t, raw, malformed.Raw)
}

func TestDecodeEnrichedData_KeysAreSubset(t *testing.T) {
	t.Parallel()

	got, err := DecodeEnrichedData(textResponse(`{"employeeCount":"10","revenue":"$1M","founded":"2001","description":"d","socialMedia":{"twitter":"@acme"},"competitors":["a"],"technologies":["b"],"locations":["c"]}`))
	require.NoError(t, err)

	allowed := make(map[string]bool)
	for _, k := range model.EnrichedDataKeys {
		allowed[k] = true
	}
	for _, k := range got.Keys() {
		assert.True(t, allowed[k], "unexpected key %s", k)
	}
	assert.Len(t, got.Keys(), 8)
}
