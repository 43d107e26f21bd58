package dmerr

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"avulto/internal/source"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotFoundMessage(t *testing.T) {
	err := NotFound("path", "/missing_type")
	assert.Equal(t, "cannot find path /missing_type", err.Error())

	wrapped := fmt.Errorf("lookup: %w", err)
	assert.ErrorIs(t, wrapped, ErrNotFound)

	var nf *NotFoundError
	require.ErrorAs(t, wrapped, &nf)
	assert.Equal(t, "/missing_type", nf.Name)
}

func TestParseErrorCarriesLocation(t *testing.T) {
	err := Parse(source.At("code/a.dm", 4, 2), "unexpected %q", "}")
	assert.Equal(t, `code/a.dm:4:2: parse error: unexpected "}"`, err.Error())
	assert.ErrorIs(t, err, ErrParse)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestIOErrorUnwraps(t *testing.T) {
	assert.NoError(t, IO("open", "x", nil))

	err := IO("open", "missing.dmm", fs.ErrNotExist)
	assert.ErrorIs(t, err, ErrIO)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestOutOfRange(t *testing.T) {
	err := OutOfRange("coordinate", "(%d, %d, %d)", 11, 1, 1)
	assert.Equal(t, "coordinate (11, 1, 1) out of range", err.Error())
	assert.ErrorIs(t, err, ErrOutOfRange)
}
