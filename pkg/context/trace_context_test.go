package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithUserIDIgnoresNonPositive(t *testing.T) {
	ctx := WithUserID(context.Background(), 0)
	assert.Equal(t, int64(0), GetUserID(ctx))

	ctx = WithUserID(ctx, 42)
	assert.Equal(t, int64(42), GetUserID(ctx))
}

func TestWithRequestIDGeneratesWhenEmpty(t *testing.T) {
	ctx := WithRequestID(context.Background(), "")
	assert.NotEmpty(t, GetRequestID(ctx))

	ctx = WithRequestID(context.Background(), "req-1")
	assert.Equal(t, "req-1", GetRequestID(ctx))
}

func TestDetachKeepsValuesAfterCancel(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	parent = WithUserID(parent, 7)
	parent = WithConnID(parent, "c1")

	detached := Detach(parent)
	cancel()

	assert.Error(t, parent.Err())
	assert.NoError(t, detached.Err())
	tc := ExtractTraceContext(detached)
	assert.Equal(t, int64(7), tc.UserID)
	assert.Equal(t, "c1", tc.ConnID)
}
