package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"telecall/internal/infrastructure/repositories/memory"

	"github.com/stretchr/testify/assert"
)

func TestHealthCheckerAllHealthy(t *testing.T) {
	h := NewHealthChecker()
	h.AddCheck("always-ok", func(ctx context.Context) error { return nil }, time.Second)
	h.AddRoomStoreCheck(memory.NewMemoryRoomRepository(), time.Second)

	status := h.CheckAll(context.Background())
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "healthy", status.Checks["always-ok"])
	assert.Equal(t, "healthy", status.Checks["room_store"])
	assert.True(t, h.IsReady(context.Background()))
}

func TestHealthCheckerReportsFailure(t *testing.T) {
	h := NewHealthChecker()
	h.AddCheck("broken", func(ctx context.Context) error {
		return errors.New("backend down")
	}, time.Second)

	status := h.CheckAll(context.Background())
	assert.Equal(t, "unhealthy", status.Status)
	assert.Equal(t, "backend down", status.Checks["broken"])
	assert.False(t, h.IsReady(context.Background()))
}

func TestHealthCheckerHonorsTimeout(t *testing.T) {
	h := NewHealthChecker()
	h.AddCheck("slow", func(ctx context.Context) error {
		select {
		case <-time.After(time.Second):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}, 10*time.Millisecond)

	status := h.CheckAll(context.Background())
	assert.Equal(t, "unhealthy", status.Status)
}
