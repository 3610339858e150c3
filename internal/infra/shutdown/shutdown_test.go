package shutdown

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestHandler_TriggerRunsHooksInReverse(t *testing.T) {
	h := NewHandler(time.Second)

	var order []int
	h.OnShutdown(func(context.Context) error {
		order = append(order, 1)
		return nil
	})
	h.OnShutdown(func(context.Context) error {
		order = append(order, 2)
		return nil
	})

	h.Trigger()
	if err := h.Wait(); err != nil {
		t.Fatalf("Wait() = %v, want nil", err)
	}

	if len(order) != 2 || order[0] != 2 || order[1] != 1 {
		t.Fatalf("hook order = %v, want [2 1]", order)
	}

	select {
	case <-h.Done():
	default:
		t.Fatal("Done() not closed after Wait")
	}
}

func TestHandler_ReturnsHookError(t *testing.T) {
	h := NewHandler(time.Second)

	want := errors.New("hook failed")
	h.OnShutdown(func(context.Context) error { return want })
	h.OnShutdown(func(context.Context) error { return nil })

	h.Trigger()
	if err := h.Wait(); !errors.Is(err, want) {
		t.Fatalf("Wait() = %v, want %v", err, want)
	}
}

func TestHandler_TriggerIdempotent(t *testing.T) {
	h := NewHandler(time.Second)
	h.Trigger()
	h.Trigger()

	if err := h.Wait(); err != nil {
		t.Fatalf("Wait() = %v, want nil", err)
	}
}

func TestHandler_HookSeesTimeout(t *testing.T) {
	h := NewHandler(50 * time.Millisecond)

	h.OnShutdown(func(ctx context.Context) error {
		deadline, ok := ctx.Deadline()
		if !ok {
			t.Error("hook context has no deadline")
		}
		if time.Until(deadline) > 100*time.Millisecond {
			t.Errorf("deadline too far out: %v", time.Until(deadline))
		}
		return nil
	})

	h.Trigger()
	if err := h.Wait(); err != nil {
		t.Fatalf("Wait() = %v, want nil", err)
	}
}
