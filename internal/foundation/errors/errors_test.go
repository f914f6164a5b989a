package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifiedError(t *testing.T) {
	t.Run("Basic error creation", func(t *testing.T) {
		err := NewError(CategoryConfig, "invalid configuration").
			WithSeverity(SeverityFatal).
			WithContext("file", "config.yaml").
			Build()

		assert.Equal(t, CategoryConfig, err.Category())
		assert.Equal(t, SeverityFatal, err.Severity())
		assert.Equal(t, "invalid configuration", err.Message())

		file, exists := err.Context().GetString("file")
		require.True(t, exists)
		assert.Equal(t, "config.yaml", file)
	})

	t.Run("Error detection through wrapping", func(t *testing.T) {
		base := ConfigError("test error").Build()
		wrapped := fmt.Errorf("load: %w", base)

		assert.True(t, IsClassified(wrapped))
		assert.True(t, HasCategory(wrapped, CategoryConfig))
		assert.True(t, base.IsFatal())
		assert.Equal(t, CategoryConfig, GetCategory(wrapped))
		assert.Equal(t, CategoryInternal, GetCategory(errors.New("plain")))
	})

	t.Run("Cause is preserved", func(t *testing.T) {
		cause := errors.New("disk full")
		err := WrapError(cause, CategoryPackage, "write archive").Build()

		assert.ErrorIs(t, err, cause)
		assert.Equal(t, "[package:error] write archive: disk full", err.Error())
	})

	t.Run("WithContext does not mutate the original", func(t *testing.T) {
		orig := NotFoundError("no artifact").Build()
		derived := orig.WithContext("path", "/tmp/a.zip")

		_, ok := orig.Context().Get("path")
		assert.False(t, ok)
		p, ok := derived.Context().GetString("path")
		require.True(t, ok)
		assert.Equal(t, "/tmp/a.zip", p)
	})
}

func TestClassifiedError_Is(t *testing.T) {
	a := ConflictError("pipeline busy").Build()
	b := ConflictError("pipeline busy").Build()
	c := ConflictError("other").Build()

	assert.ErrorIs(t, a, b)
	assert.NotErrorIs(t, a, c)
}

func TestCLIErrorAdapter_ExitCodeFor(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, nil)

	assert.Equal(t, 0, adapter.ExitCodeFor(nil))
	assert.Equal(t, 1, adapter.ExitCodeFor(errors.New("x")))
	assert.Equal(t, 7, adapter.ExitCodeFor(ConfigError("bad").Build()))
	assert.Equal(t, 8, adapter.ExitCodeFor(NewError(CategoryFetch, "clone").Build()))
	assert.Equal(t, 11, adapter.ExitCodeFor(NewError(CategoryBuild, "make").Build()))
	assert.Equal(t, 9, adapter.ExitCodeFor(ConflictError("busy").Build()))
}

func TestCLIErrorAdapter_FormatError(t *testing.T) {
	err := WrapError(errors.New("exit status 2"), CategoryBuild, "build failed").Build()

	assert.Equal(t, "Error: build failed", NewCLIErrorAdapter(false, nil).FormatError(err))
	assert.Equal(t, "Error: [build:error] build failed: exit status 2", NewCLIErrorAdapter(true, nil).FormatError(err))
}
