package calls

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestBeginTurnMutualExclusion(t *testing.T) {
	r := NewRegistry(time.Minute)

	if !r.BeginTurn("CA1") {
		t.Fatalf("first BeginTurn failed")
	}
	if r.BeginTurn("CA1") {
		t.Fatalf("second BeginTurn succeeded while processing")
	}

	if err := r.FailTurn("CA1", "err.mp3"); err != nil {
		t.Fatalf("FailTurn error = %v", err)
	}
	c, ok := r.Get("CA1")
	if !ok {
		t.Fatalf("call missing")
	}
	if c.Processing {
		t.Fatalf("processing still true after finish")
	}
	if !c.Ready {
		t.Fatalf("ready not set after finish")
	}
	if !r.BeginTurn("CA1") {
		t.Fatalf("BeginTurn failed after turn finished")
	}
}

func TestBeginTurnConcurrentSingleWinner(t *testing.T) {
	r := NewRegistry(time.Minute)

	const attempts = 32
	var wg sync.WaitGroup
	wins := make(chan struct{}, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.BeginTurn("CA2") {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	count := 0
	for range wins {
		count++
	}
	if count != 1 {
		t.Fatalf("BeginTurn winners = %d, want 1", count)
	}
}

func TestReadyAndProcessingNeverBothTrue(t *testing.T) {
	r := NewRegistry(time.Minute)
	r.BeginTurn("CA3")

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.CompleteTurn("CA3", "a.mp3", Turn{Role: RoleUser, Content: "hi"}, Turn{Role: RoleAssistant, Content: "hello"})
	}()

	deadline := time.After(time.Second)
	for {
		c, ok := r.Get("CA3")
		if !ok {
			t.Fatalf("call missing")
		}
		if c.Ready && c.Processing {
			t.Fatalf("ready and processing observed simultaneously true")
		}
		if c.Ready {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("turn never became ready")
		default:
		}
	}
	<-done
}

func TestCompleteTurnAppendsExactlyTwo(t *testing.T) {
	r := NewRegistry(time.Minute)
	r.BeginTurn("CA4")

	err := r.CompleteTurn("CA4", "resp.mp3",
		Turn{Role: RoleUser, Content: "book a table"},
		Turn{Role: RoleAssistant, Content: "done"},
	)
	if err != nil {
		t.Fatalf("CompleteTurn error = %v", err)
	}

	c, _ := r.Get("CA4")
	if len(c.History) != 2 {
		t.Fatalf("history length = %d, want 2", len(c.History))
	}
	if c.History[0].Role != RoleUser || c.History[1].Role != RoleAssistant {
		t.Fatalf("history roles unexpected: %+v", c.History)
	}
	if c.ResponseAudioURL != "resp.mp3" {
		t.Fatalf("ResponseAudioURL = %q", c.ResponseAudioURL)
	}
}

func TestExitTurnLeavesHistoryUnchanged(t *testing.T) {
	r := NewRegistry(time.Minute)
	r.BeginTurn("CA5")
	if err := r.ExitTurn("CA5", "goodbye.mp3"); err != nil {
		t.Fatalf("ExitTurn error = %v", err)
	}

	c, _ := r.Get("CA5")
	if len(c.History) != 0 {
		t.Fatalf("history length = %d, want 0 on exit turn", len(c.History))
	}
	if !c.ShouldHangup {
		t.Fatalf("ShouldHangup not set")
	}
	if !c.Ready {
		t.Fatalf("Ready not set")
	}
}

func TestConsumeReadyOnlyOnce(t *testing.T) {
	r := NewRegistry(time.Minute)
	r.BeginTurn("CA6")
	_ = r.FailTurn("CA6", "err.mp3")

	if _, ok := r.ConsumeReady("CA6"); !ok {
		t.Fatalf("first ConsumeReady = false, want true")
	}
	if _, ok := r.ConsumeReady("CA6"); ok {
		t.Fatalf("second ConsumeReady = true, want false")
	}
}

func TestSetLanguageDetectOnce(t *testing.T) {
	r := NewRegistry(time.Minute)
	r.Ensure("CA7")

	if got := r.SetLanguage("CA7", "fr"); got != "fr" {
		t.Fatalf("SetLanguage = %q, want fr", got)
	}
	if got := r.SetLanguage("CA7", "es"); got != "fr" {
		t.Fatalf("language re-detected: got %q, want fr", got)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	r := NewRegistry(time.Minute)
	r.BeginTurn("CA8")
	_ = r.CompleteTurn("CA8", "a.mp3", Turn{Role: RoleUser, Content: "x"}, Turn{Role: RoleAssistant, Content: "y"})

	c, _ := r.Get("CA8")
	c.History[0].Content = "mutated"
	c.ShouldHangup = true

	fresh, _ := r.Get("CA8")
	if fresh.History[0].Content != "x" {
		t.Fatalf("registry state mutated through returned copy")
	}
	if fresh.ShouldHangup {
		t.Fatalf("flag mutated through returned copy")
	}
}

func TestRecordPoll(t *testing.T) {
	r := NewRegistry(time.Minute)
	r.BeginTurn("CA9")

	for want := 1; want <= 3; want++ {
		polls, started, ok := r.RecordPoll("CA9")
		if !ok {
			t.Fatalf("RecordPoll not ok")
		}
		if polls != want {
			t.Fatalf("polls = %d, want %d", polls, want)
		}
		if started.IsZero() {
			t.Fatalf("turn start time missing")
		}
	}
	if _, _, ok := r.RecordPoll("missing"); ok {
		t.Fatalf("RecordPoll ok for unknown call")
	}
}

func TestJanitorEvictsIdleEntries(t *testing.T) {
	r := NewRegistry(10 * time.Millisecond)
	r.Ensure("CA10")

	expired := make(chan *Call, 1)
	r.SetExpireHook(func(c *Call) { expired <- c })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.StartJanitor(ctx, 5*time.Millisecond)

	select {
	case c := <-expired:
		if c.ID != "CA10" {
			t.Fatalf("expired id = %q", c.ID)
		}
	case <-time.After(time.Second):
		t.Fatalf("janitor did not evict idle entry")
	}
	if _, ok := r.Get("CA10"); ok {
		t.Fatalf("entry still present after eviction")
	}
}

func TestClearAndSnapshot(t *testing.T) {
	r := NewRegistry(time.Minute)
	r.Ensure("a")
	r.Ensure("b")

	if got := len(r.Snapshot()); got != 2 {
		t.Fatalf("snapshot length = %d, want 2", got)
	}
	if got := r.Clear(); got != 2 {
		t.Fatalf("Clear() = %d, want 2", got)
	}
	if r.ActiveCount() != 0 {
		t.Fatalf("ActiveCount = %d after clear", r.ActiveCount())
	}
}
