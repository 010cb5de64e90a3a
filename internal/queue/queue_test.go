package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQueue_FIFOOrder(t *testing.T) {
	t.Parallel()

	q := New[string](4)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, "a"))
	require.NoError(t, q.Enqueue(ctx, "b"))
	require.NoError(t, q.Enqueue(ctx, "c"))

	for _, want := range []string{"a", "b", "c"} {
		got, err := q.Dequeue(ctx)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestQueue_EnqueueBlocksWhenFull(t *testing.T) {
	t.Parallel()

	q := New[int](1)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, 1))

	unblocked := make(chan struct{})
	go func() {
		_ = q.Enqueue(ctx, 2)
		close(unblocked)
	}()

	select {
	case <-unblocked:
		t.Fatal("enqueue should block while the queue is full")
	case <-time.After(50 * time.Millisecond):
	}

	got, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, got)

	select {
	case <-unblocked:
	case <-time.After(time.Second):
		t.Fatal("enqueue should proceed once a slot frees")
	}
}

func TestQueue_EnqueueRespectsContext(t *testing.T) {
	t.Parallel()

	q := New[int](1)
	require.NoError(t, q.Enqueue(context.Background(), 1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := q.Enqueue(ctx, 2)
	require.ErrorIs(t, err, context.Canceled)
}

func TestQueue_DequeueAfterCloseDrains(t *testing.T) {
	t.Parallel()

	q := New[int](2)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, 1))
	require.NoError(t, q.Enqueue(ctx, 2))
	q.Close()
	q.Close() // idempotent

	got, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, got)
	got, err = q.Dequeue(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, got)

	_, err = q.Dequeue(ctx)
	require.ErrorIs(t, err, ErrClosed)
}

func TestQueue_DequeueRespectsContext(t *testing.T) {
	t.Parallel()

	q := New[int](1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Dequeue(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
