package jsoncomplete

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/structflow/types"
)

func completeString(t *testing.T, text string, opts Options) string {
	t.Helper()
	r, err := CompleteString(text, opts)
	require.NoError(t, err, "input %q", text)
	return r.ApplyString(text)
}

func TestComplete_Conservative(t *testing.T) {
	opts := DefaultOptions()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"open string value", `{"name": "Ali`, `{"name": "Ali"}`},
		{"dangling comma in array", `[1, 2,`, `[1, 2]`},
		{"partial literal", `{"a": tru`, `{"a": true}`},
		{"partial false", `[f`, `[false]`},
		{"partial null", `{"a":nu`, `{"a":null}`},
		{"empty object", `{`, `{}`},
		{"empty array", `[`, `[]`},
		{"array with whitespace", "[ \n", "[]"},
		{"partial key", `{"na`, `{"na": null}`},
		{"empty partial key", `{"`, `{"": null}`},
		{"missing colon", `{"name"`, `{"name": null}`},
		{"missing value", `{"name":`, `{"name":null}`},
		{"missing value after space", `{"name": `, `{"name":null}`},
		{"complete pair", `{"a":1`, `{"a":1}`},
		{"pair then comma", `{"a":1,`, `{"a":1}`},
		{"pair then comma and space", `{"a":1, `, `{"a":1}`},
		{"bare minus", `[-`, `[-0]`},
		{"trailing dot", `{"x": 1.`, `{"x": 1.0}`},
		{"exponent marker", `[1e`, `[1e0]`},
		{"signed exponent marker", `[2.5E-`, `[2.5E-0]`},
		{"complete number in array", `[12`, `[12]`},
		{"nested", `{"a":[1,{"b":"c`, `{"a":[1,{"b":"c"}]}`},
		{"nested closes innermost first", `[[[`, `[[[]]]`},
		{"nested object after comma", `{"a":{"b":1},`, `{"a":{"b":1}}`},
		{"dangling backslash", `["ab\`, `["ab"]`},
		{"escaped quote kept", `["a\"b`, `["a\"b"]`},
		{"partial unicode escape", `["x\u00`, `["x"]`},
		{"complete unicode escape", `["x\u00e9`, `["x\u00e9"]`},
		{"bare string", `"hello`, `"hello"`},
		{"top level minus", `-`, `-0`},
		{"top level literal", `tr`, `true`},
		{"key with partial escape", `{"a\`, `{"a": null}`},
		{"array of objects", `[{"a":1},{"b":`, `[{"a":1},{"b":null}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := completeString(t, tt.input, opts)
			assert.Equal(t, tt.want, got)
			assert.True(t, json.Valid([]byte(got)), "completion %q is not valid JSON", got)
		})
	}
}

func TestComplete_Repair(t *testing.T) {
	opts := Options{Policy: Repair}

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty input", ``, `{}`},
		{"whitespace input", "  \n", `{}`},
		{"partial key dropped", `{"a":1,"b`, `{"a":1}`},
		{"only partial key", `{"na`, `{}`},
		{"key without colon dropped", `{"a":1,"b"`, `{"a":1}`},
		{"key without value dropped", `{"a":1,"b":`, `{"a":1}`},
		{"partial value kept", `{"a":"x`, `{"a":"x"}`},
		{"partial literal kept", `{"a":tr`, `{"a":true}`},
		{"trailing comma", `[1, 2,`, `[1, 2]`},
		{"partial unicode escape in key dropped", `{"a":1,"b\u0`, `{"a":1}`},
		{"nested dangling member", `{"a":{"b":1,"c":`, `{"a":{"b":1}}`},
		{"uncompletable element dropped", `[1, tx`, `[1]`},
		{"uncompletable member dropped", `{"a":1,"b":nx`, `{"a":1}`},
		{"trailing comma before brace", `{"a":1,}`, `{"a":1}`},
		{"trailing comma before bracket", `[1,2,]`, `[1,2]`},
		{"trailing comma with space", `{"a":1, }`, `{"a":1 }`},
		{"nested trailing comma", `{"a":[1,],"b":2}`, `{"a":[1],"b":2}`},
		{"trailing comma in prefix", `{"a":[1,],"b":"x`, `{"a":[1],"b":"x"}`},
		{"several trailing commas", `[[1,],[2,],]`, `[[1],[2]]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := completeString(t, tt.input, opts)
			assert.Equal(t, tt.want, got)
			assert.True(t, json.Valid([]byte(got)), "repair %q is not valid JSON", got)
		})
	}
}

func TestComplete_EmptyInputConservative(t *testing.T) {
	for _, input := range []string{"", " ", "\n\t"} {
		_, err := CompleteString(input, DefaultOptions())
		assert.ErrorIs(t, err, ErrNotCompletable)
		assert.True(t, types.IsRetryable(err))
	}
}

func TestComplete_AlreadyValid(t *testing.T) {
	docs := []string{
		`{}`, `[]`, `null`, `true`, `false`, `0`, `-1.5e10`, `"x"`,
		`{"a":[1,2,{"b":null}],"c":"d"}`,
		"  {\"a\" : 1 }  \n",
		`[[[[["deep"]]]]]`,
	}
	for _, policy := range []Policy{Conservative, Repair} {
		for _, doc := range docs {
			r, err := CompleteString(doc, Options{Policy: policy})
			require.NoError(t, err, "doc %q", doc)
			assert.True(t, r.Valid, "doc %q policy %s", doc, policy)
			assert.Equal(t, doc, r.ApplyString(doc))
		}
	}
}

func TestComplete_LiteralMismatch(t *testing.T) {
	_, err := CompleteString(`{"a": tx`, DefaultOptions())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotCompletable)

	e, ok := types.AsError(err)
	require.True(t, ok)
	assert.Equal(t, 7, e.Offset)
}

func TestComplete_Malformed(t *testing.T) {
	for _, input := range []string{`]`, `{"a":1}}`, `[1 2`, `{"a" 1`, `{1:2}`, `x`, `{"a":1} trailing`} {
		_, err := CompleteString(input, DefaultOptions())
		assert.ErrorIs(t, err, ErrMalformed, "input %q", input)
	}
}

func TestComplete_NonFinite(t *testing.T) {
	opts := Options{AllowNonFinite: true}

	tests := map[string]string{
		`[Na`:       `[NaN]`,
		`[Inf`:      `[Infinity]`,
		`{"x": -In`: `{"x": -Infinity}`,
		`[NaN, 1`:   `[NaN, 1]`,
		`[-`:        `[-0]`,
	}
	for input, want := range tests {
		assert.Equal(t, want, completeString(t, input, opts), "input %q", input)
	}

	_, err := CompleteString(`[Na`, DefaultOptions())
	assert.ErrorIs(t, err, ErrMalformed, "non-finite literals are rejected unless enabled")
}

func TestComplete_DepthBound(t *testing.T) {
	nested := func(d int) string { return strings.Repeat("[", d) + strings.Repeat("]", d) }

	t.Run("default limit", func(t *testing.T) {
		r, err := CompleteString(nested(DefaultMaxDepth), Options{})
		require.NoError(t, err)
		assert.True(t, r.Valid)

		_, err = CompleteString(nested(DefaultMaxDepth+1), Options{})
		assert.ErrorIs(t, err, ErrDepthExceeded)
		assert.True(t, types.IsErrorCode(err, types.ErrDepthExceeded))
	})

	t.Run("custom limit on prefixes", func(t *testing.T) {
		opts := Options{MaxDepth: 3}
		got := completeString(t, `{"a":[{"b`, opts)
		assert.Equal(t, `{"a":[{"b": null}]}`, got)

		_, err := CompleteString(`{"a":[{"b":[`, opts)
		assert.ErrorIs(t, err, ErrDepthExceeded)
	})

	t.Run("idempotent for every depth up to the limit", func(t *testing.T) {
		for d := 1; d <= DefaultMaxDepth; d++ {
			r, err := CompleteString(nested(d), DefaultOptions())
			require.NoError(t, err, "depth %d", d)
			require.True(t, r.Valid, "depth %d", d)
		}
	})
}

func TestComplete_SplitMultiByteRune(t *testing.T) {
	doc := []byte(`{"city":"Zürich 東京"}`)
	for i := 1; i < len(doc); i++ {
		out, err := Completed(doc[:i], DefaultOptions())
		require.NoError(t, err, "prefix %q", doc[:i])
		require.True(t, json.Valid(out), "completion %q of %q", out, doc[:i])

		var v map[string]any
		require.NoError(t, json.Unmarshal(out, &v))
		if s, ok := v["city"].(string); ok {
			assert.NotContains(t, s, "\uFFFD", "prefix %d produced a replacement rune", i)
		}
	}
}

func TestComplete_TrailingCommaPolicies(t *testing.T) {
	for _, input := range []string{`{"a":1,}`, `[1,2,]`, `[1, ]`} {
		_, err := CompleteString(input, DefaultOptions())
		assert.ErrorIs(t, err, ErrMalformed, "conservative input %q", input)

		r, err := CompleteString(input, Options{Policy: Repair})
		require.NoError(t, err, "repair input %q", input)
		assert.False(t, r.Valid)
		require.Len(t, r.Drop, 1)

		again, err := CompleteString(r.ApplyString(input), Options{Policy: Repair})
		require.NoError(t, err)
		assert.True(t, again.Valid, "repaired %q is not a fixed point", r.ApplyString(input))
	}
}

func TestResult_ApplyDrops(t *testing.T) {
	text := `[1,[2,],"abc`
	r := Result{TruncateAt: len(text), Suffix: `"]`, Drop: []int{5}}
	assert.Equal(t, `[1,[2],"abc"]`, r.ApplyString(text))
	assert.Equal(t, `[1,[2],"abc"]`, string(r.Apply([]byte(text))))

	// drops past the cut are ignored
	r = Result{TruncateAt: 2, Suffix: "]", Drop: []int{5}}
	assert.Equal(t, `[1]`, r.ApplyString(text))
}

func TestResult_ApplyDoesNotAliasInput(t *testing.T) {
	text := []byte(`[1,`)
	r, err := Complete(text, DefaultOptions())
	require.NoError(t, err)

	out := r.Apply(text)
	out[0] = '{'
	assert.Equal(t, `[1,`, string(text))
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("Repair")
	require.NoError(t, err)
	assert.Equal(t, Repair, p)

	p, err = ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, Conservative, p)

	_, err = ParsePolicy("lenient")
	assert.Error(t, err)
	assert.Equal(t, "policy(7)", Policy(7).String())
}

func TestErrorsAreDistinct(t *testing.T) {
	assert.False(t, errors.Is(ErrDepthExceeded, ErrMalformed))
	assert.False(t, errors.Is(ErrNotCompletable, ErrDepthExceeded))
}
