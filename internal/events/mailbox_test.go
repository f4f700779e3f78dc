package events_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"time-tracker/internal/dto"
	"time-tracker/internal/events"
)

func TestMailboxDrainOrder(t *testing.T) {
	mb := events.NewMailbox()
	now := time.Now().UTC()
	for i := int64(1); i <= 3; i++ {
		if err := mb.Publish(events.EntryCreated(dto.EntryView{ID: i}, now)); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}

	got := mb.Drain()
	if len(got) != 3 {
		t.Fatalf("Drain = %d events, want 3", len(got))
	}
	for i, ev := range got {
		if ev.Seq != uint64(i+1) {
			t.Errorf("event %d Seq = %d, want %d", i, ev.Seq, i+1)
		}
		if ev.EntityID() != int64(i+1) {
			t.Errorf("event %d entity = %d, want %d", i, ev.EntityID(), i+1)
		}
	}
	if again := mb.Drain(); again != nil {
		t.Errorf("second Drain = %d events, want none", len(again))
	}
}

func TestMailboxPublishAfterClose(t *testing.T) {
	mb := events.NewMailbox()
	_ = mb.Publish(events.EntryCreated(dto.EntryView{ID: 1}, time.Now()))
	mb.Close()

	err := mb.Publish(events.EntryCreated(dto.EntryView{ID: 2}, time.Now()))
	if !errors.Is(err, events.ErrClosed) {
		t.Fatalf("Publish after Close err = %v, want ErrClosed", err)
	}
	if got := mb.Drain(); len(got) != 1 {
		t.Errorf("Drain after Close = %d events, want 1", len(got))
	}
}

func TestMailboxConcurrentPublish(t *testing.T) {
	mb := events.NewMailbox()
	const producers, perProducer = 8, 50

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				_ = mb.Publish(events.LineCreated(dto.LineView{ID: int64(p*perProducer + i)}, time.Now()))
			}
		}(p)
	}
	wg.Wait()

	got := mb.Drain()
	if len(got) != producers*perProducer {
		t.Fatalf("Drain = %d events, want %d", len(got), producers*perProducer)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Seq <= got[i-1].Seq {
			t.Fatalf("sequence not increasing at %d: %d after %d", i, got[i].Seq, got[i-1].Seq)
		}
	}
}
