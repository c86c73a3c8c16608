package draft

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", "hello", `"hello"`},
		{"empty string", "", `""`},
		{"int", 42, "42"},
		{"negative int", -100, "-100"},
		{"bool true", true, "true"},
		{"bool false", false, "false"},
		{"null", nil, "null"},
		{"float", 1.5, "1.5"},
		{"whole float collapses to int", 3.0, "3"},
		{"empty array", []any{}, "[]"},
		{"empty object", map[string]any{}, "{}"},
		{"array", []any{1, "two", true}, `[1,"two",true]`},
		{"simple object", map[string]any{"a": 1}, `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalSortedKeys(t *testing.T) {
	obj := map[string]any{
		"zebra": 1,
		"alpha": 2,
		"beta":  3,
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"beta":3,"zebra":1}`, string(result))
}

func TestMarshalCanonicalNoHTMLEscaping(t *testing.T) {
	result, err := MarshalCanonical("a <b> & c")
	require.NoError(t, err)
	assert.Equal(t, `"a <b> & c"`, string(result))
}

func TestMarshalCanonicalNFCNormalization(t *testing.T) {
	// "é" composed vs decomposed must serialize identically.
	composed := "café"
	decomposed := "café"

	a, err := MarshalCanonical(composed)
	require.NoError(t, err)
	b, err := MarshalCanonical(decomposed)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestMarshalCanonicalUnsupportedType(t *testing.T) {
	_, err := MarshalCanonical(struct{}{})
	assert.Error(t, err)
}

func TestHashValueContentAddressing(t *testing.T) {
	// Structurally equal values built independently hash identically.
	a := map[string]any{"next_steps": []any{"q1", "q2"}, "weight": 3}
	b := map[string]any{"weight": 3, "next_steps": []any{"q1", "q2"}}

	ha, err := HashValue(a)
	require.NoError(t, err)
	hb, err := HashValue(b)
	require.NoError(t, err)
	assert.Equal(t, ha, hb)

	// Different values hash differently.
	hc := MustHashValue(map[string]any{"next_steps": []any{"q2", "q1"}, "weight": 3})
	assert.NotEqual(t, ha, hc)
}

func TestHashValueDistinctDomains(t *testing.T) {
	// A value hash and a quote id of the same text never collide.
	assert.NotEqual(t, MustHashValue("patience"), QuoteID("patience"))
}

func TestQuoteIDStableAcrossNormalizationForms(t *testing.T) {
	assert.Equal(t, QuoteID("café"), QuoteID("café"))
}
