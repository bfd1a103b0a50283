package bus

import (
	"sync"
	"testing"
)

func TestPublish_SpecificThenWildcard(t *testing.T) {
	b := New(10)
	var order []string
	b.SubscribeAll(func(msg Message) { order = append(order, "all:"+string(msg.Type)) })
	b.Subscribe(MsgToolStarted, func(msg Message) { order = append(order, "tool:"+msg.Tool) })

	b.Publish(Message{Type: MsgToolStarted, QueryID: "q1", Tool: "web_scraper"})
	b.Publish(Message{Type: MsgQueryCompleted, QueryID: "q1"})

	want := []string{"tool:web_scraper", "all:tool.started", "all:query.completed"}
	if len(order) != len(want) {
		t.Fatalf("got %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want[i])
		}
	}
}

func TestPublish_StampsTime(t *testing.T) {
	b := New(10)
	b.Publish(Message{Type: MsgQueryStarted})
	h := b.History(1)
	if len(h) != 1 || h[0].Time.IsZero() {
		t.Fatalf("expected stamped message, got %+v", h)
	}
}

func TestHistory_Bounded(t *testing.T) {
	b := New(3)
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		b.Publish(Message{Type: MsgQueryStarted, QueryID: id})
	}

	all := b.History(0)
	if len(all) != 3 {
		t.Fatalf("History(0) len = %d, want 3", len(all))
	}
	if all[0].QueryID != "c" || all[2].QueryID != "e" {
		t.Errorf("unexpected retained window: %+v", all)
	}

	last := b.History(2)
	if len(last) != 2 || last[0].QueryID != "d" {
		t.Errorf("History(2) = %+v", last)
	}
}

func TestForQuery(t *testing.T) {
	b := New(0)
	b.Publish(Message{Type: MsgQueryStarted, QueryID: "q1"})
	b.Publish(Message{Type: MsgQueryStarted, QueryID: "q2"})
	b.Publish(Message{Type: MsgQueryCompleted, QueryID: "q1"})

	got := b.ForQuery("q1")
	if len(got) != 2 {
		t.Fatalf("ForQuery len = %d, want 2", len(got))
	}
	if got[0].Type != MsgQueryStarted || got[1].Type != MsgQueryCompleted {
		t.Errorf("unexpected messages: %+v", got)
	}
	if len(b.ForQuery("missing")) != 0 {
		t.Error("expected no messages for unknown query")
	}
}

func TestPublish_Concurrent(t *testing.T) {
	b := New(0)
	var mu sync.Mutex
	count := 0
	b.SubscribeAll(func(Message) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Publish(Message{Type: MsgToolCompleted})
		}()
	}
	wg.Wait()

	if count != 20 {
		t.Errorf("handler called %d times, want 20", count)
	}
	if len(b.History(0)) != 20 {
		t.Errorf("history len = %d, want 20", len(b.History(0)))
	}
}
