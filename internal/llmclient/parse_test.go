package llmclient

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestParseJSONResponse(t *testing.T) {
	t.Run("plain object", func(t *testing.T) {
		got := ParseJSONResponse(`{"summary": "fine", "score": 7, "tags": ["a", "b"]}`)
		want := map[string]any{"summary": "fine", "score": 7.0, "tags": []any{"a", "b"}}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Parsed object mismatch. Diff:\n%s", diff)
		}
	})

	t.Run("json fence", func(t *testing.T) {
		got := ParseJSONResponse("Here you go:\n```json\n{\"summary\": \"fenced\"}\n```\nLet me know!")
		assert.Equal(t, "fenced", got["summary"])
	})

	t.Run("bare fence", func(t *testing.T) {
		got := ParseJSONResponse("```\n{\"summary\": \"bare\"}\n```")
		assert.Equal(t, "bare", got["summary"])
	})

	t.Run("prose wrapped object", func(t *testing.T) {
		got := ParseJSONResponse(`The analysis is as follows: {"summary": "embedded"} hope that helps.`)
		assert.Equal(t, "embedded", got["summary"])
	})

	t.Run("garbage yields empty map", func(t *testing.T) {
		got := ParseJSONResponse("I could not produce the requested output.")
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("null yields empty map", func(t *testing.T) {
		got := ParseJSONResponse("null")
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})
}

func TestValidateResponse(t *testing.T) {
	response := map[string]any{
		"summary": "present",
		"blank":   "   ",
		"items":   []any{},
		"scores":  map[string]any{},
		"nothing": nil,
	}
	missing := ValidateResponse(response, []string{"summary", "blank", "items", "scores", "nothing", "absent"})
	assert.Equal(t, []string{"blank", "items", "scores", "nothing", "absent"}, missing)

	assert.Nil(t, ValidateResponse(map[string]any{"ok": "yes"}, []string{"ok"}))
}

func TestAccessors(t *testing.T) {
	m := map[string]any{
		"name":  "Acme",
		"score": 7.5,
		"count": 3,
		"obj":   map[string]any{"nested": true},
		"list":  []any{"a", 1, "b"},
	}

	assert.Equal(t, "Acme", Str(m, "name"))
	assert.Equal(t, "", Str(m, "score"), "mistyped access returns zero value")
	assert.Equal(t, "", Str(m, "missing"))

	assert.Equal(t, 7.5, Num(m, "score"))
	assert.Equal(t, 3.0, Num(m, "count"))
	assert.Equal(t, 0.0, Num(m, "name"))

	assert.Equal(t, map[string]any{"nested": true}, Obj(m, "obj"))
	assert.Empty(t, Obj(m, "missing"))

	assert.Equal(t, []any{"a", 1, "b"}, List(m, "list"))
	assert.Nil(t, List(m, "missing"))

	assert.Equal(t, []string{"a", "b"}, StrList(m, "list"))
	assert.Nil(t, StrList(m, "missing"))
}
