package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type captureSink struct {
	mu     sync.Mutex
	events []Event
	closed bool
}

func (s *captureSink) Consume(_ context.Context, batch []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, batch...)
	return nil
}

func (s *captureSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *captureSink) snapshot() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func validEvent(stage Stage) Event {
	return Event{
		RunID:  UUIDToBytes(uuid.New()),
		TS:     time.Now().UTC(),
		Stage:  stage,
		Source: "archinect",
		URL:    "https://example.com/job/1",
	}
}

func TestHubDeliversEventsToSinks(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	hub := NewHub(Config{MaxBatchWait: 10 * time.Millisecond}, sink)

	hub.Emit(validEvent(StageRunStart))
	hub.Emit(validEvent(StageSourceFetch))

	require.Eventually(t, func() bool {
		return len(sink.snapshot()) == 2
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Close(context.Background()))
	require.True(t, sink.closed)
}

func TestHubCloseFlushesPendingEvents(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	hub := NewHub(Config{MaxBatchWait: time.Hour}, sink)

	for range 5 {
		hub.Emit(validEvent(StageSourceFetch))
	}
	require.NoError(t, hub.Close(context.Background()))
	require.Len(t, sink.snapshot(), 5)
}

func TestHubDiscardsInvalidEvents(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	hub := NewHub(Config{MaxBatchWait: 10 * time.Millisecond}, sink)

	hub.Emit(Event{Stage: StageRunStart}) // missing run id and timestamp
	require.NoError(t, hub.Close(context.Background()))
	require.Empty(t, sink.snapshot())
}

func TestHubEmitAfterCloseIsNoop(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	hub := NewHub(Config{}, sink)
	require.NoError(t, hub.Close(context.Background()))

	hub.Emit(validEvent(StageRunStart)) // must not panic on a closed channel
}

func TestHubEmitDuringCloseDoesNotPanic(t *testing.T) {
	t.Parallel()

	// Emitters racing a concurrent Close must never hit a closed channel;
	// shutdown is signalled out of band and the events channel stays open.
	for range 200 {
		sink := &captureSink{}
		hub := NewHub(Config{BufferSize: 4}, sink)

		var wg sync.WaitGroup
		start := make(chan struct{})
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				for range 50 {
					hub.Emit(validEvent(StageSourceFetch))
				}
			}()
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			require.NoError(t, hub.Close(context.Background()))
		}()
		close(start)
		wg.Wait()
	}
}

func TestHubDropsOnBackpressure(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	sink := &blockingSink{unblock: block}
	hub := NewHub(Config{BufferSize: 1, MaxBatchEvents: 1, MaxBatchWait: time.Hour}, sink)

	// First event occupies the run loop inside the blocked sink, the second
	// fills the buffer, everything after that is dropped without blocking.
	for range 10 {
		hub.Emit(validEvent(StageSourceFetch))
	}
	require.Positive(t, hub.dropped.Load())

	close(block)
	require.NoError(t, hub.Close(context.Background()))
}

type blockingSink struct {
	unblock chan struct{}
}

func (s *blockingSink) Consume(context.Context, []Event) error {
	<-s.unblock
	return nil
}

func (s *blockingSink) Close(context.Context) error { return nil }

func TestDropLimiterThrottles(t *testing.T) {
	t.Parallel()

	l := dropLimiter{interval: time.Minute}
	now := time.Now()
	require.True(t, l.Allow(now))
	require.False(t, l.Allow(now.Add(time.Second)))
	require.True(t, l.Allow(now.Add(2*time.Minute)))
}

func TestNilHubIsSafe(t *testing.T) {
	t.Parallel()

	var hub *Hub
	hub.Emit(validEvent(StageRunStart))
	require.NoError(t, hub.Close(context.Background()))
}

func TestEventValidate(t *testing.T) {
	t.Parallel()

	base := validEvent(StageSourceFetch)
	require.NoError(t, base.Validate())

	missingSource := base
	missingSource.Source = ""
	require.Error(t, missingSource.Validate())

	unknown := base
	unknown.Stage = Stage("WAT")
	require.Error(t, unknown.Validate())

	negative := base
	negative.Dur = -time.Second
	require.Error(t, negative.Validate())
}
