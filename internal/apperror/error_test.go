package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindString(t *testing.T) {
	tests := map[Kind]string{
		KindValidation:     "ValidationError",
		KindRead:           "ReadError",
		KindSchemaConflict: "SchemaConflictError",
		KindWrite:          "WriteError",
		KindCancelled:      "Cancelled",
		KindUnknown:        "UnknownError",
		Kind(42):           "UnknownError",
	}
	for kind, want := range tests {
		assert.Equal(t, want, kind.String())
	}
}

func TestError(t *testing.T) {
	cause := errors.New("permission denied")

	err := NewWrite("cannot write out.xlsx", cause)
	assert.Equal(t, "cannot write out.xlsx: permission denied", err.Error())
	assert.Equal(t, KindWrite, KindOf(err))
	assert.Equal(t, "cannot write out.xlsx", Message(err))
	assert.ErrorIs(t, err, cause)

	assert.Equal(t, "a.xlsx has no data rows", NewRead("a.xlsx has no data rows", nil).Error())
}

func TestKindOf_WrappedChain(t *testing.T) {
	err := fmt.Errorf("load: %w", NewSchemaConflict("column clash"))

	assert.Equal(t, KindSchemaConflict, KindOf(err))
	e, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, "column clash", e.Msg())
}

func TestUnclassified(t *testing.T) {
	err := errors.New("boom")

	assert.Equal(t, KindUnknown, KindOf(err))
	assert.Equal(t, "unexpected error", Message(err))
	_, ok := As(err)
	assert.False(t, ok)
}

func TestFieldValidation(t *testing.T) {
	fields := []string{"analyst: empty", "version: too long"}
	err := NewFieldValidation("invalid metadata", fields)

	e, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, fields, e.Fields())

	// callers get a copy
	e.Fields()[0] = "changed"
	assert.Equal(t, "analyst: empty", e.Fields()[0])
	assert.Contains(t, e.String(), "Kind: ValidationError")
}

func TestCancelled(t *testing.T) {
	err := NewCancelled(errors.New("context canceled"))
	assert.Equal(t, KindCancelled, KindOf(err))
	assert.Equal(t, "run cancelled", Message(err))
}

func TestMsgFallsBackToKind(t *testing.T) {
	err := NewUnknown("", errors.New("x"))
	e, _ := As(err)
	assert.Equal(t, "UnknownError", e.Msg())
}
