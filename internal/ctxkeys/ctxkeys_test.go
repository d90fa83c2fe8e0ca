package ctxkeys

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTraceID(t *testing.T) {
	ctx := context.Background()

	_, ok := TraceID(ctx)
	assert.False(t, ok)

	ctx = WithTraceID(ctx, "trace-123")
	v, ok := TraceID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "trace-123", v)
}

func TestTraceID_EmptyValue(t *testing.T) {
	ctx := WithTraceID(context.Background(), "")
	_, ok := TraceID(ctx)
	assert.False(t, ok, "空字符串视为未设置")
}

func TestSessionID(t *testing.T) {
	ctx := WithSessionID(context.Background(), "sess-42")
	v, ok := SessionID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "sess-42", v)
}

func TestTenantID(t *testing.T) {
	ctx := WithTenantID(context.Background(), "acme")
	v, ok := TenantID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "acme", v)
}

func TestKeysDoNotCollide(t *testing.T) {
	ctx := context.Background()
	ctx = WithTraceID(ctx, "t")
	ctx = WithSessionID(ctx, "s")
	ctx = WithTenantID(ctx, "x")

	tr, _ := TraceID(ctx)
	se, _ := SessionID(ctx)
	te, _ := TenantID(ctx)
	assert.Equal(t, "t", tr)
	assert.Equal(t, "s", se)
	assert.Equal(t, "x", te)
}
