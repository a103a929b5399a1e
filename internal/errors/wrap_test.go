package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorWrapper(t *testing.T) {
	t.Parallel()

	wrapper := NewWrapper("faq", "load_corpus")

	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, wrapper.Wrap(nil, "ignored"))
		assert.NoError(t, wrapper.Wrapf(nil, "ignored %d", 1))
	})

	t.Run("wrap keeps cause", func(t *testing.T) {
		base := errors.New("disk gone")
		err := wrapper.Wrap(base, "read dataset")

		var wrapped *WrappedError
		require.ErrorAs(t, err, &wrapped)
		assert.Equal(t, "faq", wrapped.Module)
		assert.Equal(t, "load_corpus", wrapped.Operation)
		assert.Equal(t, "read dataset", wrapped.Message)
		assert.ErrorIs(t, err, base)
		assert.Equal(t, "[faq:load_corpus] read dataset: disk gone", err.Error())
	})

	t.Run("wrapf formats", func(t *testing.T) {
		err := wrapper.Wrapf(ErrNotFound, "open %s", "faq.db")
		assert.Contains(t, err.Error(), "open faq.db")
		assert.True(t, IsNotFound(err))
	})
}

func TestOperation(t *testing.T) {
	t.Parallel()

	err := NewWrapper("corpussync", "download").Wrap(errors.New("x"), "get object")
	assert.Equal(t, "corpussync:download", Operation(err))
	assert.Empty(t, Operation(errors.New("plain")))
	assert.Empty(t, Operation(nil))
}
