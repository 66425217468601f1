package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapKeepsCauseAndCode(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(cause, CodeInternal, "save diagram failed")

	assert.True(t, errors.Is(err, cause))
	assert.True(t, IsCode(err, CodeInternal))
	assert.Equal(t, "internal: save diagram failed: disk full", err.Error())
}

func TestIsCodeThroughFmtWrapping(t *testing.T) {
	err := fmt.Errorf("guard: %w", New(CodeForbidden, "not yours"))

	assert.True(t, IsCode(err, CodeForbidden))
	assert.False(t, IsCode(err, CodeNotFound))
	assert.Equal(t, CodeForbidden, CodeOf(err))
	assert.Equal(t, CodeUnknown, CodeOf(errors.New("plain")))
}

func TestWrapNilBecomesNew(t *testing.T) {
	err := Wrap(nil, CodeNotFound, "project not found")
	assert.Nil(t, err.Unwrap())
	assert.Equal(t, "not_found: project not found", err.Error())
}

func TestWithMeta(t *testing.T) {
	err := New(CodeValidation, "invalid body").WithMeta("fields", map[string]string{"name": "is required"})
	assert.Equal(t, map[string]string{"name": "is required"}, err.Meta["fields"])
}
