package table

import (
	"strconv"
	"time"
)

// Kind is the semantic type tag of a Cell.
type Kind int

const (
	KindEmpty Kind = iota
	KindText
	KindNumber
	KindDate
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	case KindDate:
		return "date"
	case KindBool:
		return "boolean"
	default:
		return "unknown"
	}
}

// Cell is a tagged cell value. The zero value is an empty cell.
type Cell struct {
	kind Kind
	text string
	num  float64
	date time.Time
	b    bool
}

// Empty is the empty cell.
var Empty = Cell{}

// Text returns a text cell.
func Text(s string) Cell { return Cell{kind: KindText, text: s} }

// Number returns a numeric cell.
func Number(f float64) Cell { return Cell{kind: KindNumber, num: f} }

// Date returns a date cell.
func Date(t time.Time) Cell { return Cell{kind: KindDate, date: t} }

// Bool returns a boolean cell.
func Bool(b bool) Cell { return Cell{kind: KindBool, b: b} }

// Kind returns the cell's type tag.
func (c Cell) Kind() Kind { return c.kind }

// IsEmpty reports whether the cell holds no value.
func (c Cell) IsEmpty() bool { return c.kind == KindEmpty }

// Float returns the value of a number cell, or 0.
func (c Cell) Float() float64 { return c.num }

// Time returns the value of a date cell, or the zero time.
func (c Cell) Time() time.Time { return c.date }

// Boolean returns the value of a boolean cell, or false.
func (c Cell) Boolean() bool { return c.b }

// Value returns the Go value the cell holds: string, float64, time.Time,
// bool, or nil for an empty cell.
func (c Cell) Value() any {
	switch c.kind {
	case KindText:
		return c.text
	case KindNumber:
		return c.num
	case KindDate:
		return c.date
	case KindBool:
		return c.b
	default:
		return nil
	}
}

// Text renders the cell as text. Dates without a clock component render as
// YYYY-MM-DD, booleans as TRUE/FALSE, numbers in their shortest form.
func (c Cell) Text() string {
	switch c.kind {
	case KindText:
		return c.text
	case KindNumber:
		return strconv.FormatFloat(c.num, 'f', -1, 64)
	case KindDate:
		if c.date.Hour() == 0 && c.date.Minute() == 0 && c.date.Second() == 0 && c.date.Nanosecond() == 0 {
			return c.date.Format(time.DateOnly)
		}
		return c.date.Format(time.DateTime)
	case KindBool:
		if c.b {
			return "TRUE"
		}
		return "FALSE"
	default:
		return ""
	}
}

// AsText returns the cell re-tagged as text. Empty cells stay empty.
func (c Cell) AsText() Cell {
	if c.kind == KindEmpty || c.kind == KindText {
		return c
	}
	return Text(c.Text())
}

// Equal reports whether two cells carry the same tag and value.
func (c Cell) Equal(o Cell) bool {
	if c.kind != o.kind {
		return false
	}
	switch c.kind {
	case KindText:
		return c.text == o.text
	case KindNumber:
		return c.num == o.num
	case KindDate:
		return c.date.Equal(o.date)
	case KindBool:
		return c.b == o.b
	default:
		return true
	}
}

func (c Cell) String() string {
	return c.Text()
}
