package tracker

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"testing"

	"github.com/BearBump/ColdTrack/internal/audit"
	"github.com/BearBump/ColdTrack/internal/models"
	"github.com/stretchr/testify/require"
)

// 100 конкурентных записей в одно отправление: журнал получает ровно 100
// событий с непрерывными seq 1..100.
func TestConcurrentStatusChanges_gaplessSequences(t *testing.T) {
	tr, st, _, id := newTestTracker(t)
	ctx := context.Background()

	const n = 100
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tr.RecordStatusChange(ctx, id, models.StatusInTransit, staff(), StatusChangeInput{})
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	evs := st.events[id]
	require.Len(t, evs, n)

	seqs := make([]uint64, 0, n)
	for _, e := range evs {
		seqs = append(seqs, e.Seq)
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })
	for i, s := range seqs {
		require.Equal(t, uint64(i+1), s)
	}

	// Первый переход реален, остальные 99 — no-op самоподтверждения.
	require.Len(t, st.auditTrail[id], 1)

	status, err := tr.CurrentStatus(ctx, id)
	require.NoError(t, err)
	require.Equal(t, models.StatusInTransit, status)
}

func TestConcurrentMixedWriters(t *testing.T) {
	tr, st, _, id := newTestTracker(t)
	ctx := context.Background()
	sensor := audit.Actor{ID: 5, Role: models.RoleSensor}

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tr.RecordStatusChange(ctx, id, models.StatusInTransit, staff(), StatusChangeInput{})
			require.NoError(t, err)
		}()
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			_, err := tr.RecordTemperature(ctx, id, float64(v), sensor, TemperatureInput{})
			require.NoError(t, err)
		}(i)
	}
	wg.Wait()

	require.Len(t, st.events[id], n)
	require.Len(t, st.readings[id], n)

	seqs := make([]uint64, 0, n)
	for _, e := range st.events[id] {
		seqs = append(seqs, e.Seq)
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })
	for i, s := range seqs {
		require.Equal(t, uint64(i+1), s)
	}

	stats, err := tr.Stats(ctx, id)
	require.NoError(t, err)
	require.Equal(t, int64(n), stats.Count)
}

// Две конкурентные отмены: обе успешны, но реальный переход ровно один,
// второй наблюдает уже применённую отмену и проходит как no-op.
func TestConcurrentCancel_exactlyOneRealTransition(t *testing.T) {
	tr, st, _, id := newTestTracker(t)
	ctx := context.Background()

	_, err := tr.RecordStatusChange(ctx, id, models.StatusInTransit, staff(), StatusChangeInput{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tr.RecordStatusChange(ctx, id, models.StatusCancelled, customer(), StatusChangeInput{})
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Len(t, st.events[id], 3)

	var cancelAudits []audit.StatusDetails
	for _, e := range st.auditTrail[id] {
		if e.Action != audit.ActionStatusUpdate {
			continue
		}
		var d audit.StatusDetails
		require.NoError(t, json.Unmarshal([]byte(e.Details), &d))
		if d.NewStatus == models.StatusCancelled {
			cancelAudits = append(cancelAudits, d)
		}
	}
	require.Len(t, cancelAudits, 1)
	require.Equal(t, models.StatusInTransit, cancelAudits[0].OldStatus)
}
