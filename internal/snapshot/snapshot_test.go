package snapshot

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshot_Float(t *testing.T) {
	s := Snapshot{
		"f":      12.5,
		"i":      7,
		"num":    json.Number("1e3"),
		"str":    "2,500.75",
		"bad":    "n/a",
		"nan":    math.NaN(),
		"nested": map[string]any{"x": 1},
		"nil":    nil,
	}

	assert.Equal(t, 12.5, s.Float("f", 0))
	assert.Equal(t, 7.0, s.Float("i", 0))
	assert.Equal(t, 1000.0, s.Float("num", 0))
	assert.Equal(t, 2500.75, s.Float("str", 0))
	assert.Equal(t, -1.0, s.Float("bad", -1))
	assert.Equal(t, -1.0, s.Float("nan", -1))
	assert.Equal(t, -1.0, s.Float("nested", -1))
	assert.Equal(t, -1.0, s.Float("nil", -1))
	assert.Equal(t, -1.0, s.Float("missing", -1))
}

func TestSnapshot_NonNegFloat(t *testing.T) {
	s := Snapshot{"liq": -500.0, "ok": 10.0}
	assert.Equal(t, 0.0, s.NonNegFloat("liq"))
	assert.Equal(t, 10.0, s.NonNegFloat("ok"))
	assert.Equal(t, 0.0, s.NonNegFloat("missing"))
}

func TestSnapshot_Bool(t *testing.T) {
	s := Snapshot{
		"t":     true,
		"yes":   "Yes",
		"zero":  0,
		"one":   json.Number("1"),
		"weird": "maybe",
	}
	assert.True(t, s.Bool("t", false))
	assert.True(t, s.Bool("yes", false))
	assert.False(t, s.Bool("zero", true))
	assert.True(t, s.Bool("one", false))
	assert.True(t, s.Bool("weird", true))
	assert.False(t, s.Bool("missing", false))
}

func TestSnapshot_StringAndInt(t *testing.T) {
	s := Snapshot{"name": "PEPE", "n": json.Number("42"), "holders": "310", "list": []any{1}}
	assert.Equal(t, "PEPE", s.String("name", ""))
	assert.Equal(t, "42", s.String("n", ""))
	assert.Equal(t, "def", s.String("list", "def"))
	assert.Equal(t, 310, s.Int("holders", 0))
	assert.Equal(t, 42, s.Int("n", 0))
}

func TestSnapshot_FloatsAndRecords(t *testing.T) {
	s := Snapshot{
		"vols": []any{1.0, "2", "x", json.Number("3")},
		"txs": []any{
			map[string]any{"wallet": "a"},
			"garbage",
			map[string]any{"wallet": "b"},
		},
	}
	assert.Equal(t, []float64{1, 2, 3}, s.Floats("vols"))
	recs := s.Records("txs")
	require.Len(t, recs, 2)
	assert.Equal(t, "b", recs[1].String("wallet", ""))
	assert.Nil(t, s.Floats("missing"))
	assert.Nil(t, s.Records("missing"))
}

func TestSnapshot_MergeDoesNotMutate(t *testing.T) {
	base := Snapshot{"a": 1}
	merged := base.Merge(map[string]any{"b": 2, "a": 3})

	assert.Equal(t, 1, base["a"])
	assert.NotContains(t, base, "b")
	assert.Equal(t, 3, merged["a"])
	assert.Equal(t, 2, merged["b"])
}

func TestDecode(t *testing.T) {
	s, err := Decode(strings.NewReader(`{"liquidity_usd": 12000, "honeypot": false}`))
	require.NoError(t, err)
	assert.Equal(t, 12000.0, s.Float(FieldLiquidityUSD, 0))

	empty, err := Decode(strings.NewReader(`null`))
	require.NoError(t, err)
	assert.NotNil(t, empty)

	_, err = Decode(strings.NewReader(`[1,2]`))
	assert.Error(t, err)
}

func TestDecodeAll(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{"array", `[{"symbol":"A"}, {"symbol":"B"}, null]`, 3},
		{"lines", "{\"symbol\":\"A\"}\n{\"symbol\":\"B\"}\n", 2},
		{"leading whitespace", "\n\t [ {\"symbol\":\"A\"} ]", 1},
		{"empty", "  \n", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeAll(strings.NewReader(tt.input))
			require.NoError(t, err)
			require.Len(t, got, tt.want)
			for _, s := range got {
				assert.NotNil(t, s)
			}
		})
	}

	got, err := DecodeAll(strings.NewReader(`[{"liquidity_usd": 18446744073709551615}]`))
	require.NoError(t, err)
	assert.IsType(t, json.Number(""), got[0]["liquidity_usd"])

	_, err = DecodeAll(strings.NewReader("{\"a\":1}\n{broken"))
	assert.Error(t, err)
}

func TestSnapshot_ChainAndReputation(t *testing.T) {
	assert.Equal(t, DefaultChain, Snapshot{}.Chain())
	assert.Equal(t, "ETH", Snapshot{"chain": " eth "}.Chain())
	assert.Equal(t, "SERIAL_RUGGER", Snapshot{"dev_reputation": "serial rugger"}.DevReputation())
	assert.Equal(t, "SERIAL_RUGGER", Snapshot{"dev_reputation": "Serial-Rugger"}.DevReputation())
}

func TestSnapshot_Profile(t *testing.T) {
	tests := []struct {
		name string
		snap Snapshot
		want Profile
	}{
		{"explicit wins", Snapshot{"profile": "graduated", "platform": "pump.fun"}, ProfileGraduated},
		{"curve not graduated", Snapshot{"platform": "pump.fun"}, ProfilePreBonding},
		{"curve pct implies curve", Snapshot{"bonding_curve_pct": 40}, ProfilePreBonding},
		{"graduated", Snapshot{"platform": "pump.fun", "graduated": true, "token_age_minutes": 300}, ProfileGraduated},
		{"old token", Snapshot{"graduated": true, "token_age_minutes": 20000}, ProfileEstablished},
		{"fresh listing", Snapshot{"token_age_minutes": 30}, ProfileNewListing},
		{"empty", Snapshot{}, ProfileNewListing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.snap.Profile())
		})
	}

	assert.Equal(t, ProfileDefault, ParseProfile("whatever"))
	assert.Equal(t, ProfilePreBonding, ParseProfile("Pre-Bonding"))
}
