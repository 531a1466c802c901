package metadata

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/virtplan/internal/plan"
)

var testCodec = Codec{
	Namespace: "urn:virtplan:plan:1.0",
	Key:       "virtplan",
}

func TestEncode_Golden(t *testing.T) {
	g := goldie.New(t)

	cases := []struct {
		name      string
		plan      string
		constants plan.Plan
	}{
		{"plan_only", "gold", nil},
		{"with_constants", "gold", plan.Plan{
			"cpu_shares": "2048",
			"mem_limit":  "4096",
		}},
		{"escaped_value", "gold", plan.Plan{
			"note": "2 & 3 < 4",
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fragment, err := testCodec.Encode(tc.plan, tc.constants)
			require.NoError(t, err)
			g.Assert(t, tc.name, []byte(fragment))
		})
	}
}

func TestEncode_RejectsBadConstantKey(t *testing.T) {
	for _, key := range []string{"", "1leading-digit", "has space", "a:b", "<tag>"} {
		_, err := testCodec.Encode("gold", plan.Plan{key: "v"})
		require.ErrorIs(t, err, ErrBadConstantKey, "key %q", key)
	}
}

func TestEncode_RejectsEmptyPlanName(t *testing.T) {
	_, err := testCodec.Encode("", nil)
	require.Error(t, err)
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	for _, name := range []string{"gold", "plan-with-dash", "x", "tuned.v2"} {
		fragment, err := testCodec.Encode(name, plan.Plan{"cpu_shares": "512"})
		require.NoError(t, err)

		got, ok := testCodec.Decode(fragment)
		require.True(t, ok, "fragment: %s", fragment)
		assert.Equal(t, name, got)
	}
}

func TestDecode_NoPlanCases(t *testing.T) {
	cases := map[string]string{
		"empty":              "",
		"whitespace":         "  \n ",
		"junk":               "not xml at all <<<",
		"truncated":          "<constants><plan>go",
		"missing_plan":       "<constants><cpu_shares>1</cpu_shares></constants>",
		"empty_plan_element": "<constants><plan></plan></constants>",
		"self_closing_plan":  "<constants><plan/></constants>",
	}

	for label, fragment := range cases {
		t.Run(label, func(t *testing.T) {
			name, ok := testCodec.Decode(fragment)
			assert.False(t, ok)
			assert.Empty(t, name)
		})
	}
}

func TestDecode_IgnoresSurroundingElements(t *testing.T) {
	fragment := "<constants>\n  <cpu_shares>2048</cpu_shares>\n  <plan>gold</plan>\n</constants>"

	name, ok := testCodec.Decode(fragment)
	require.True(t, ok)
	assert.Equal(t, "gold", name)
}

func TestDecode_StaleReferenceStillDecodes(t *testing.T) {
	// A domain keeps its fragment after the plan is deleted from the
	// store; the name must still come back so callers can report it.
	fragment, err := testCodec.Encode("retired", nil)
	require.NoError(t, err)

	name, ok := testCodec.Decode(fragment)
	require.True(t, ok)
	assert.Equal(t, "retired", name)
}

func TestClear_IsEmptyPayload(t *testing.T) {
	assert.Empty(t, testCodec.Clear())
}
