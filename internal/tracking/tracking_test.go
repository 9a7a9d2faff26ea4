package tracking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithoutDSNIsNoop(t *testing.T) {
	tr, err := New("", "test")
	require.NoError(t, err)
	assert.IsType(t, Noop{}, tr)

	tr.CaptureError(context.Background(), errors.New("boom"), map[string]string{"agent": "financial"})
	tr.Flush(time.Millisecond)
}

func TestNewRejectsBadDSN(t *testing.T) {
	_, err := New("not a dsn", "test")
	assert.Error(t, err)
}
