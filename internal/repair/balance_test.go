package repair

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBalance(t *testing.T) {
	cases := map[string]string{
		`{"a": 1`:                   `{"a": 1}`,
		`{"a": [1, 2`:               `{"a": [1, 2]}`,
		`{"a": "unterminated`:       `{"a": "unterminated"}`,
		`{"a": 1,`:                  `{"a": 1}`,
		`{"a":`:                     `{"a": null}`,
		`{"a": 1, "b"`:              `{"a": 1}`,
		`{"a": 1, "b":`:             `{"a": 1, "b": null}`,
		`{"a": tr`:                  `{"a": true}`,
		`{"a": 1.`:                  `{"a": 1}`,
		`{"a": "x\`:                 `{"a": "x"}`,
		`{"a": "} not a closer`:     `{"a": "} not a closer"}`,
		`[{"a": 1}, {"b": [2}`:      `[{"a": 1}, {"b": [2]}]`,
		`{"a": 1}}`:                 `{"a": 1}`,
		`{"a": 1} // trailing note`: `{"a": 1} // trailing note`,
	}
	for in, want := range cases {
		got := balance(in)
		assert.Equal(t, want, got, in)
	}
}

func TestBalance_ProducesValidJSON(t *testing.T) {
	inputs := []string{
		`{"groups": [{"bill_id": 1, "donors": [{"name": "A"`,
		`{"groups": [{"bill_id": 1, "donors": [`,
		`{"summary": {"high": 2, "medium"`,
		`[[[`,
	}
	for _, in := range inputs {
		assert.True(t, json.Valid([]byte(balance(in))), in)
	}
}

func TestTransforms(t *testing.T) {
	assert.Equal(t, `{"a": 1  }`, stripComments(`{"a": 1 /* x */}`))
	assert.Equal(t, `{"u": "http://x"}`, stripComments(`{"u": "http://x"}`))
	assert.Equal(t, `[1, 2]`, removeTrailingCommas(`[1, 2,]`))
	assert.Equal(t, `[ 1, 2]`, removeTrailingCommas(`[, 1,, 2]`))
	assert.Equal(t, `{"a": "x, }"}`, removeTrailingCommas(`{"a": "x, }"}`))
	assert.Equal(t, `[1, 2,{}]`, insertMissingCommas(`[1 2{}]`))
	assert.Equal(t, `{"a": 1, "b": 2}`, quoteBareKeys(`{a: 1, b: 2}`))
	assert.Equal(t, `{"a": "b: c"}`, quoteBareKeys(`{"a": "b: c"}`))
	assert.Equal(t, `{"a": "it's"}`, normalizeLiterals(`{"a": 'it\'s'}`))
	assert.Equal(t, `["say \"hi\""]`, normalizeLiterals(`['say "hi"']`))
	assert.Equal(t, `{"a": 1}`, extractFenced("```json\n{\"a\": 1}\n```"))
	assert.Equal(t, `{"a": [1`, extractFenced("```json\n{\"a\": [1"))
}
