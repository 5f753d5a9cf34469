package domain

import (
	"math"
	"strconv"
	"time"
)

// TimeLayout is the rendering used for timestamps in output files.
const TimeLayout = "2006-01-02 15:04:05.000000"

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	KindMissing Kind = iota
	KindFloat
	KindString
	KindTime
)

func (k Kind) String() string {
	switch k {
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindTime:
		return "time"
	default:
		return "missing"
	}
}

// Value is a single table cell. The zero Value is missing.
type Value struct {
	kind Kind
	f    float64
	s    string
	t    time.Time
}

// Missing returns the missing value.
func Missing() Value { return Value{} }

// Float wraps f. NaN and ±Inf are stored as missing so that a non-finite
// number can never leak into a converted column.
func Float(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}
	}
	return Value{kind: KindFloat, f: f}
}

// String wraps s. The empty string is missing.
func String(s string) Value {
	if s == "" {
		return Value{}
	}
	return Value{kind: KindString, s: s}
}

// Time wraps t, normalized to UTC. The zero time is missing.
func Time(t time.Time) Value {
	if t.IsZero() {
		return Value{}
	}
	return Value{kind: KindTime, t: t.UTC()}
}

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsMissing() bool { return v.kind == KindMissing }
func (v Value) IsFloat() bool { return v.kind == KindFloat }
func (v Value) IsTime() bool { return v.kind == KindTime }
func (v Value) IsString() bool { return v.kind == KindString }
func (v Value) Str() (string, bool) {
	return v.s, v.kind == KindString
}

// Float64 returns the numeric payload and whether the value is a float.
func (v Value) Float64() (float64, bool) {
	return v.f, v.kind == KindFloat
}

// TimeValue returns the timestamp payload and whether the value is a time.
func (v Value) TimeValue() (time.Time, bool) {
	return v.t, v.kind == KindTime
}

// Text renders the value for delimited output. Floats use the shortest
// decimal form that round-trips; missing renders as the empty string.
func (v Value) Text() string {
	switch v.kind {
	case KindFloat:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case KindString:
		return v.s
	case KindTime:
		return v.t.Format(TimeLayout)
	default:
		return ""
	}
}

// Equal reports whether two values hold the same variant and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindFloat:
		return v.f == o.f
	case KindString:
		return v.s == o.s
	case KindTime:
		return v.t.Equal(o.t)
	default:
		return true
	}
}
