package models

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMatchesSentinel(t *testing.T) {
	err := DegenerateMask("bounding_box", "leaf.jpg", map[string]interface{}{"foreground": 0})

	assert.True(t, errors.Is(err, ErrDegenerateMask))
	assert.False(t, errors.Is(err, ErrEmptyClass))
	assert.Equal(t, KindDegenerateMask, KindOf(fmt.Errorf("wrapped: %w", err)))
}

func TestErrorMessageCarriesDiagnostics(t *testing.T) {
	err := EmptyClass("plan", "/data/rot", "rot", map[string]interface{}{"target": 120})

	msg := err.Error()
	assert.Contains(t, msg, "EmptyClass")
	assert.Contains(t, msg, "/data/rot")
	assert.Contains(t, msg, "class=rot")
	assert.Contains(t, msg, "target=120")
}

func TestErrorUnwrapsCause(t *testing.T) {
	err := WriteFailure("save", "/ro/out.jpg", os.ErrPermission)

	assert.True(t, errors.Is(err, os.ErrPermission))
	assert.True(t, errors.Is(err, ErrWriteFailure))

	fields := err.LogFields()
	assert.Equal(t, "WriteFailure", fields["kind"])
	assert.Equal(t, "/ro/out.jpg", fields["path"])
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, ErrorKind(0), KindOf(errors.New("plain")))
}

func TestWithPathFillsMissingPath(t *testing.T) {
	err := fmt.Errorf("analysis: %w", DegenerateMask("Histogram", "", nil))

	filled := WithPath(err, "leaf.jpg")
	assert.Equal(t, "leaf.jpg", PathOf(filled))
	assert.True(t, errors.Is(filled, ErrDegenerateMask))

	kept := WithPath(InvalidPath("Scan", "root", nil), "other")
	assert.Equal(t, "root", PathOf(kept))

	plain := errors.New("plain")
	assert.Equal(t, plain, WithPath(plain, "x"))
	assert.Equal(t, "", PathOf(plain))
}

func TestWithFieldsMergesWithoutOverwriting(t *testing.T) {
	base := EmptyClass("NewPlan", "/data/rot", "rot", map[string]interface{}{"class": "rot"})

	merged := WithFields(fmt.Errorf("plan: %w", base), map[string]interface{}{
		"class":   "ignored",
		"deficit": 3,
	})

	var e *Error
	require.True(t, errors.As(merged, &e))
	assert.Equal(t, "rot", e.Fields["class"])
	assert.Equal(t, 3, e.Fields["deficit"])
	assert.NotContains(t, base.Fields, "deficit", "original is not mutated")

	plain := errors.New("plain")
	assert.Equal(t, plain, WithFields(plain, map[string]interface{}{"k": 1}))
}
