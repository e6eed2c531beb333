package tracker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestShipmentLocks_mutualExclusion(t *testing.T) {
	l := newShipmentLocks()
	ctx := context.Background()

	var counter, max, cur int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.acquire(ctx, 1)
			require.NoError(t, err)
			mu.Lock()
			cur++
			if cur > max {
				max = cur
			}
			counter++
			cur--
			mu.Unlock()
			release()
		}()
	}
	wg.Wait()

	require.Equal(t, 50, counter)
	require.Equal(t, 1, max)
}

func TestShipmentLocks_reclaimedWhenIdle(t *testing.T) {
	l := newShipmentLocks()
	ctx := context.Background()

	release, err := l.acquire(ctx, 42)
	require.NoError(t, err)
	require.Equal(t, 1, l.size())
	release()
	require.Zero(t, l.size())
}

func TestShipmentLocks_timeoutWhileWaiting(t *testing.T) {
	l := newShipmentLocks()

	release, err := l.acquire(context.Background(), 7)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.acquire(ctx, 7)
	require.ErrorIs(t, err, ErrTimeout)

	// Таймаут ожидающего не трогает держателя.
	release()
	require.Zero(t, l.size())

	release2, err := l.acquire(context.Background(), 7)
	require.NoError(t, err)
	release2()
}

func TestShipmentLocks_independentShipments(t *testing.T) {
	l := newShipmentLocks()
	ctx := context.Background()

	release1, err := l.acquire(ctx, 1)
	require.NoError(t, err)
	defer release1()

	// Другое отправление не контендит.
	done := make(chan struct{})
	go func() {
		release2, err := l.acquire(ctx, 2)
		require.NoError(t, err)
		release2()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock for another shipment blocked")
	}
}
