package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestID_UnmarshalJSON(t *testing.T) {
	cases := map[string]ID{
		`500`:     500,
		`"500"`:   500,
		`" 42 "`:  42,
		`null`:    0,
		`""`:      0,
		`"12.0"`:  12,
		`1234567`: 1234567,
	}
	for in, want := range cases {
		var got ID
		require.NoError(t, json.Unmarshal([]byte(in), &got), in)
		assert.Equal(t, want, got, in)
	}

	var bad ID
	assert.Error(t, json.Unmarshal([]byte(`"HB 12"`), &bad))
}

func TestNumber_UnmarshalJSON(t *testing.T) {
	cases := map[string]float64{
		`0.8`:         0.8,
		`"0.8"`:       0.8,
		`"$1,200.50"`: 1200.50,
		`"80%"`:       0.8,
		`null`:        0,
		`""`:          0,
	}
	for in, want := range cases {
		var got Number
		require.NoError(t, json.Unmarshal([]byte(in), &got), in)
		assert.InDelta(t, want, got.Float(), 1e-9, in)
	}

	var bad Number
	assert.Error(t, json.Unmarshal([]byte(`"high"`), &bad))
}

func TestScore_UnmarshalJSON(t *testing.T) {
	set := map[string]float64{
		`0.8`:   0.8,
		`"0.8"`: 0.8,
		`"85%"`: 0.85,
		`1`:     1,
	}
	for in, want := range set {
		var got Score
		require.NoError(t, json.Unmarshal([]byte(in), &got), in)
		assert.True(t, got.Set, in)
		assert.InDelta(t, want, got.Value, 1e-9, in)
	}

	for _, in := range []string{`"high"`, `null`, `""`, `" "`, `{}`, `[0.5]`, `true`} {
		var got Score
		require.NoError(t, json.Unmarshal([]byte(in), &got), in)
		assert.False(t, got.Set, in)
		assert.Equal(t, 0.4, got.Or(0.4), in)
	}

	var wrapped struct {
		Decision   string `json:"decision"`
		Confidence Score  `json:"confidence"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"decision":"confirmed","confidence":"high"}`), &wrapped))
	assert.Equal(t, "confirmed", wrapped.Decision)
}

func TestFlexString_UnmarshalJSON(t *testing.T) {
	var s FlexString
	require.NoError(t, json.Unmarshal([]byte(`17`), &s))
	assert.Equal(t, FlexString("17"), s)

	require.NoError(t, json.Unmarshal([]byte(`" a1 "`), &s))
	assert.Equal(t, FlexString("a1"), s)

	require.NoError(t, json.Unmarshal([]byte(`null`), &s))
	assert.Equal(t, FlexString(""), s)
}

func TestDate_RoundTrip(t *testing.T) {
	var d Date
	require.NoError(t, json.Unmarshal([]byte(`"2021-01-11T00:00:00Z"`), &d))
	assert.Equal(t, "2021-01-11", d.String())

	out, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"2021-01-11"`, string(out))

	var garbage Date
	require.NoError(t, json.Unmarshal([]byte(`"last spring"`), &garbage))
	assert.True(t, garbage.IsZero())

	out, err = json.Marshal(garbage)
	require.NoError(t, err)
	assert.Equal(t, "null", string(out))
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, Clamp01(-0.5))
	assert.Equal(t, 1.0, Clamp01(1.7))
	assert.Equal(t, 0.42, Clamp01(0.42))
}
