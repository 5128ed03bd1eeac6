package sizing

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errOverflow = errors.New("overflow")

func TestToInt(t *testing.T) {
	t.Parallel()

	n, err := ToInt(42, errOverflow)
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	_, err = ToInt(math.MaxUint64, errOverflow)
	require.ErrorIs(t, err, errOverflow)
}

func TestWithin(t *testing.T) {
	t.Parallel()

	assert.True(t, Within(10, 0))
	assert.True(t, Within(10, 10))
	assert.False(t, Within(11, 10))
}
