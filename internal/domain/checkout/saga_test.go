package checkout

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaga_CompensatesInReverseOrder(t *testing.T) {
	s := newSaga()
	var undone []string
	for _, name := range []string{"first", "second", "third"} {
		name := name
		s.committed(name, func(context.Context) error {
			undone = append(undone, name)
			return nil
		})
	}

	cerr := s.compensate(context.Background(), errors.New("boom"))

	require.Nil(t, cerr)
	assert.Equal(t, []string{"third", "second", "first"}, undone)
	assert.Equal(t, StateFailed, s.state)
	assert.Empty(t, s.stack)
}

func TestSaga_ContinuesPastFailedUndo(t *testing.T) {
	s := newSaga()
	var undone []string
	s.committed("release-a", func(context.Context) error {
		undone = append(undone, "release-a")
		return nil
	})
	s.committed("delete-order", func(context.Context) error {
		return errors.New("delete blocked")
	})

	cause := errors.New("line insert failed")
	cerr := s.compensate(context.Background(), cause)

	// The failed delete must not stop the stock release behind it.
	require.NotNil(t, cerr)
	assert.Equal(t, []string{"release-a"}, undone)
	require.Contains(t, cerr.Failures, "delete-order")
	assert.ErrorIs(t, cerr, cause)
}

func TestSaga_EmptyStackCompensatesClean(t *testing.T) {
	s := newSaga()
	assert.Nil(t, s.compensate(context.Background(), errors.New("early failure")))
	assert.Equal(t, StateFailed, s.state)
}
