package token

import (
	"io"
	"log/slog"
	"testing"
	"time"
)

// mockSweepObserver はSweepObserverのモック実装。
type mockSweepObserver struct {
	counts []int
}

func (m *mockSweepObserver) RecordTokensSwept(count int) {
	m.counts = append(m.counts, count)
}

var _ SweepObserver = (*mockSweepObserver)(nil)

func TestSweeper_RunOnce_ReportsRemovedCount(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	store := NewStore(WithClock(clock.Now))

	for i := 0; i < 3; i++ {
		if _, err := store.Issue(PurposeRegistration, Payload{Email: "a@example.com"}); err != nil {
			t.Fatalf("Issue() error = %v", err)
		}
	}

	clock.Advance(11 * time.Minute)

	obs := &mockSweepObserver{}
	sweeper := NewSweeper(store, slog.New(slog.NewTextHandler(io.Discard, nil)), obs)
	sweeper.runOnce()

	if len(obs.counts) != 1 || obs.counts[0] != 3 {
		t.Errorf("observer counts = %v, want [3]", obs.counts)
	}
	if store.Len() != 0 {
		t.Errorf("store.Len() = %d, want 0", store.Len())
	}
}

func TestSweeper_NilObserver_DoesNotPanic(t *testing.T) {
	store := NewStore()
	sweeper := NewSweeper(store, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	sweeper.runOnce()
}
