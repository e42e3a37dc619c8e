package table

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCellText(t *testing.T) {
	tests := []struct {
		name string
		cell Cell
		want string
	}{
		{"text", Text("abc"), "abc"},
		{"integer", Number(42), "42"},
		{"fraction", Number(0.1), "0.1"},
		{"large", Number(1234567890123), "1234567890123"},
		{"date", Date(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)), "2024-01-02"},
		{"datetime", Date(time.Date(2024, 1, 2, 13, 4, 5, 0, time.UTC)), "2024-01-02 13:04:05"},
		{"true", Bool(true), "TRUE"},
		{"false", Bool(false), "FALSE"},
		{"empty", Empty, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cell.Text())
		})
	}
}

func TestCellAsText(t *testing.T) {
	assert.Equal(t, Text("7"), Number(7).AsText())
	assert.Equal(t, Text("TRUE"), Bool(true).AsText())
	assert.True(t, Empty.AsText().IsEmpty())
	assert.Equal(t, KindText, Text("x").AsText().Kind())
}

func TestCellEqual(t *testing.T) {
	day := time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)

	assert.True(t, Number(1).Equal(Number(1)))
	assert.False(t, Number(1).Equal(Text("1")))
	assert.True(t, Date(day).Equal(Date(day.In(time.FixedZone("x", 0)))))
	assert.False(t, Bool(true).Equal(Bool(false)))
	assert.True(t, Empty.Equal(Cell{}))
}

func TestCellValue(t *testing.T) {
	assert.Nil(t, Empty.Value())
	assert.Equal(t, 2.5, Number(2.5).Value())
	assert.Equal(t, "s", Text("s").Value())
	assert.Equal(t, true, Bool(true).Value())
	assert.Equal(t, "boolean", KindBool.String())
}

func TestTable(t *testing.T) {
	cols := []string{"Name", "Amount"}
	tbl := New("a.xlsx", cols)
	cols[0] = "changed"
	tbl.Rows = []Row{
		{"Name": Text("x"), "Amount": Number(1)},
		{"Name": Text("y")},
	}

	assert.Equal(t, []string{"Name", "Amount"}, tbl.Columns)
	assert.Equal(t, 2, tbl.Len())
	assert.Equal(t, []Cell{Text("y"), Empty}, tbl.Values(1))
	assert.Equal(t, map[Kind]struct{}{KindNumber: {}}, tbl.ColumnKinds("Amount"))
	assert.Empty(t, tbl.ColumnKinds("Region"))
}
