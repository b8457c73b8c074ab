// Package dive holds the per-dive record model produced by upstream glider
// log parsers: the dive header, tagged scalar values, compound parameters in
// their three legal encodings, and the variable-row event tables.
//
// Records are treated as immutable once built. Consumers that need to
// overlay or reshape a record work on a Clone.
package dive

import (
	"math"
	"strconv"
)

// Kind tags the representation of a Value.
type Kind int

const (
	// KindNumber values carry a float64. NaN is the numeric sentinel.
	KindNumber Kind = iota
	// KindText values carry a string. The empty string is the text sentinel.
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is a single parameter value: either a number or a string.
type Value struct {
	Kind Kind
	Num  float64
	Text string
}

// Number returns a numeric Value.
func Number(v float64) Value { return Value{Kind: KindNumber, Num: v} }

// Text returns a text Value.
func Text(s string) Value { return Value{Kind: KindText, Text: s} }

// Sentinel returns the fill value for the given kind: NaN or "".
func Sentinel(k Kind) Value {
	if k == KindText {
		return Text("")
	}
	return Number(math.NaN())
}

// IsNumber reports whether v holds a number.
func (v Value) IsNumber() bool { return v.Kind == KindNumber }

// IsSentinel reports whether v is the fill value of its own kind.
func (v Value) IsSentinel() bool {
	if v.Kind == KindText {
		return v.Text == ""
	}
	return math.IsNaN(v.Num)
}

// As converts v to kind k. Numbers become their shortest decimal form;
// text that does not parse as a float becomes NaN.
func (v Value) As(k Kind) Value {
	if v.Kind == k {
		return v
	}
	if k == KindText {
		if math.IsNaN(v.Num) {
			return Text("")
		}
		return Text(strconv.FormatFloat(v.Num, 'g', -1, 64))
	}
	f, err := strconv.ParseFloat(v.Text, 64)
	if err != nil {
		return Number(math.NaN())
	}
	return Number(f)
}

// Equal compares two values, treating NaN as equal to NaN.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	if v.Kind == KindText {
		return v.Text == o.Text
	}
	if math.IsNaN(v.Num) && math.IsNaN(o.Num) {
		return true
	}
	return v.Num == o.Num
}

func (v Value) String() string {
	if v.Kind == KindText {
		return strconv.Quote(v.Text)
	}
	return strconv.FormatFloat(v.Num, 'g', -1, 64)
}
