package errors

import (
	stderrors "errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapAndUnwrap(t *testing.T) {
	err := FileSystemErrorf(io.ErrUnexpectedEOF, "failed to read %s", "a.h")
	assert.Equal(t, "failed to read a.h: unexpected EOF", err.Error())
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, SeverityHigh, err.Severity)

	assert.Nil(t, Wrap(nil, ErrorTypeDatabase, SeverityLow, "nothing"))
}

func TestTypeThroughWrapping(t *testing.T) {
	inner := ConfigErrorf("storage.type must be sqlite or postgres")
	outer := fmt.Errorf("open store: %w", inner)

	assert.Equal(t, ErrorTypeConfig, GetType(outer))
	assert.Equal(t, SeverityCritical, GetSeverity(outer))
	assert.True(t, IsFatal(outer))
	assert.True(t, stderrors.Is(outer, &Error{Type: ErrorTypeConfig}))
	assert.False(t, stderrors.Is(outer, &Error{Type: ErrorTypeDatabase}))

	plain := stderrors.New("plain")
	assert.Equal(t, ErrorTypeInternal, GetType(plain))
	assert.Equal(t, SeverityMedium, GetSeverity(plain))
	assert.False(t, IsFatal(plain))
	assert.Equal(t, SeverityLow, GetSeverity(nil))
}

func TestDetailedString(t *testing.T) {
	err := ValidationErrorf("invalid rule").
		WithContext("index", 2).
		WithContext("file", "rules.yaml")

	detail := err.DetailedString()
	assert.Contains(t, detail, "[HIGH] [VALIDATION] invalid rule")
	assert.Contains(t, detail, "Context:\n  file: rules.yaml\n  index: 2\n")
	assert.Contains(t, detail, "TestDetailedString")
}

func TestStrings(t *testing.T) {
	assert.Equal(t, "GENERATION", ErrorTypeGeneration.String())
	assert.Equal(t, "UNKNOWN", ErrorType(99).String())
	assert.Equal(t, "LOW", SeverityLow.String())
	assert.Equal(t, "UNKNOWN", Severity(-1).String())
}

func TestAs(t *testing.T) {
	_, ok := As(stderrors.New("x"))
	assert.False(t, ok)

	e, ok := As(fmt.Errorf("ctx: %w", ParseErrorf("bad")))
	require.True(t, ok)
	assert.Equal(t, ErrorTypeParse, e.Type)
	assert.False(t, e.IsFatal())
}
