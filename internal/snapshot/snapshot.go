package snapshot

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Token Snapshot — point-in-time flat record of observed token attributes
// Every reader tolerates missing keys: missing → default, malformed → default.
// ---------------------------------------------------------------------------

// Snapshot maps observed attribute names to loosely typed values.
// A snapshot is treated as immutable for the duration of an evaluation pass.
type Snapshot map[string]any

// Decode reads a JSON object into a Snapshot. Numbers are kept as json.Number
// so large integers survive intact.
func Decode(r io.Reader) (Snapshot, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var s Snapshot
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("snapshot: decode: %w", err)
	}
	if s == nil {
		s = Snapshot{}
	}
	return s, nil
}

// DecodeAll reads either a JSON array of objects or a stream of objects
// (one per line or concatenated).
func DecodeAll(r io.Reader) ([]Snapshot, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if errors.Is(err, io.EOF) {
		return []Snapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot: decode: %w", err)
	}

	dec := json.NewDecoder(br)
	dec.UseNumber()

	var out []Snapshot
	if first == '[' {
		if err := dec.Decode(&out); err != nil {
			return nil, fmt.Errorf("snapshot: decode array: %w", err)
		}
	} else {
		for {
			var s Snapshot
			err := dec.Decode(&s)
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return nil, fmt.Errorf("snapshot: decode #%d: %w", len(out), err)
			}
			out = append(out, s)
		}
	}

	for i := range out {
		if out[i] == nil {
			out[i] = Snapshot{}
		}
	}
	if out == nil {
		out = []Snapshot{}
	}
	return out, nil
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, br.UnreadByte()
	}
}

// Has reports whether key is present with a non-nil value.
func (s Snapshot) Has(key string) bool {
	v, ok := s[key]
	return ok && v != nil
}

// Float returns key as float64, or def when missing or malformed.
func (s Snapshot) Float(key string, def float64) float64 {
	v, ok := s[key]
	if !ok || v == nil {
		return def
	}
	f, ok := toFloat(v)
	if !ok {
		return def
	}
	return f
}

// NonNegFloat returns key as float64, coercing missing, malformed and
// negative values to zero.
func (s Snapshot) NonNegFloat(key string) float64 {
	f := s.Float(key, 0)
	if f < 0 {
		return 0
	}
	return f
}

// Int returns key truncated to int, or def when missing or malformed.
func (s Snapshot) Int(key string, def int) int {
	v, ok := s[key]
	if !ok || v == nil {
		return def
	}
	f, ok := toFloat(v)
	if !ok || f > math.MaxInt32 || f < math.MinInt32 {
		return def
	}
	return int(f)
}

// Bool returns key as bool, or def when missing or malformed.
func (s Snapshot) Bool(key string, def bool) bool {
	v, ok := s[key]
	if !ok || v == nil {
		return def
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "yes", "y", "1":
			return true
		case "false", "no", "n", "0":
			return false
		}
		return def
	}
	if f, ok := toFloat(v); ok {
		return f != 0
	}
	return def
}

// String returns key as a string, or def when missing or not a scalar.
func (s Snapshot) String(key string, def string) string {
	v, ok := s[key]
	if !ok || v == nil {
		return def
	}
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case fmt.Stringer:
		return t.String()
	case bool, int, int64, float64:
		return fmt.Sprint(t)
	}
	return def
}

// Floats returns key as a slice of float64. Malformed elements are skipped.
func (s Snapshot) Floats(key string) []float64 {
	v, ok := s[key]
	if !ok || v == nil {
		return nil
	}
	switch t := v.(type) {
	case []float64:
		out := make([]float64, len(t))
		copy(out, t)
		return out
	case []any:
		out := make([]float64, 0, len(t))
		for _, e := range t {
			if f, ok := toFloat(e); ok {
				out = append(out, f)
			}
		}
		return out
	}
	return nil
}

// Records returns key as a list of nested snapshots. Elements that are not
// objects are skipped.
func (s Snapshot) Records(key string) []Snapshot {
	v, ok := s[key]
	if !ok || v == nil {
		return nil
	}
	switch t := v.(type) {
	case []Snapshot:
		return t
	case []map[string]any:
		out := make([]Snapshot, 0, len(t))
		for _, m := range t {
			out = append(out, Snapshot(m))
		}
		return out
	case []any:
		out := make([]Snapshot, 0, len(t))
		for _, e := range t {
			switch m := e.(type) {
			case map[string]any:
				out = append(out, Snapshot(m))
			case Snapshot:
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}

// Merge returns a new snapshot holding s overlaid with extra. s is not modified.
func (s Snapshot) Merge(extra map[string]any) Snapshot {
	out := make(Snapshot, len(s)+len(extra))
	for k, v := range s {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		p, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = p
	case string:
		p, err := strconv.ParseFloat(strings.TrimSpace(strings.ReplaceAll(n, ",", "")), 64)
		if err != nil {
			return 0, false
		}
		f = p
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
