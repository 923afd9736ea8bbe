package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/musalce/musalce-server/internal/daw"
)

type published struct {
	topic   string
	payload []byte
}

type fakePublisher struct {
	mu    sync.Mutex
	msgs  []published
	err   error
	block chan struct{}
}

func (p *fakePublisher) PublishRetained(topic string, payload []byte) error {
	if p.block != nil {
		<-p.block
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, published{topic: topic, payload: payload})
	return p.err
}

func (p *fakePublisher) messages() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.msgs...)
}

var _ daw.RoutingObserver = (*Announcer)(nil)

func TestAnnouncer_PublishesRetainedRouting(t *testing.T) {
	pub := &fakePublisher{}
	a := NewAnnouncer(pub, Topics{Prefix: "musalce"}, 8)
	a.Start(context.Background())
	defer a.Stop()

	a.RoutingChanged(daw.RoutingEvent{
		Flavor:  daw.FlavorBitwig,
		Key:     "Bass/Sub",
		Name:    "Bass/Sub",
		Device:  "IAC Driver Bass",
		Channel: 2,
		Bound:   true,
		Time:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	})

	require.Eventually(t, func() bool { return len(pub.messages()) == 1 }, time.Second, 5*time.Millisecond)
	msg := pub.messages()[0]
	assert.Equal(t, "musalce/routing/bitwig/Bass_Sub", msg.topic)

	var got map[string]any
	require.NoError(t, json.Unmarshal(msg.payload, &got))
	assert.Equal(t, "bitwig", got["flavor"])
	assert.Equal(t, "IAC Driver Bass", got["device"])
	assert.Equal(t, 2.0, got["channel"])
	assert.Equal(t, true, got["bound"])
	assert.Equal(t, "2026-03-01T12:00:00Z", got["timestamp"])

	sent, dropped := a.Stats()
	assert.Equal(t, uint64(1), sent)
	assert.Zero(t, dropped)
}

func TestAnnouncer_DropsWhenQueueFull(t *testing.T) {
	pub := &fakePublisher{block: make(chan struct{})}
	a := NewAnnouncer(pub, Topics{}, 1)

	// Not started: the queue fills after one event.
	a.RoutingChanged(daw.RoutingEvent{Flavor: daw.FlavorLive, Key: "1"})
	a.RoutingChanged(daw.RoutingEvent{Flavor: daw.FlavorLive, Key: "2"})
	a.RoutingChanged(daw.RoutingEvent{Flavor: daw.FlavorLive, Key: "3"})

	_, dropped := a.Stats()
	assert.Equal(t, uint64(2), dropped)
	close(pub.block)
}

func TestAnnouncer_FailedPublishIsLogged(t *testing.T) {
	pub := &fakePublisher{err: ErrNotConnected}
	logger := &recordingLogger{}
	a := NewAnnouncer(pub, Topics{}, 4)
	a.SetLogger(logger)
	a.Start(context.Background())

	a.RoutingChanged(daw.RoutingEvent{Flavor: daw.FlavorLive, Key: "7"})
	require.Eventually(t, func() bool { return len(logger.messages()) == 1 }, time.Second, 5*time.Millisecond)
	a.Stop()

	assert.Equal(t, "routing announcement failed", logger.messages()[0])
	sent, _ := a.Stats()
	assert.Zero(t, sent)
}

func TestAnnouncer_StopsWithContext(t *testing.T) {
	a := NewAnnouncer(&fakePublisher{}, Topics{}, 0)
	ctx, cancel := context.WithCancel(context.Background())
	a.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		a.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after context cancellation")
	}
	// Stop is idempotent.
	a.Stop()
}

func TestAnnouncer_AnnounceError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	a := NewAnnouncer(pub, Topics{}, 0)

	err := a.Announce(daw.RoutingEvent{Flavor: daw.FlavorLive, Key: "1"})
	assert.EqualError(t, err, "broker down")
	assert.Equal(t, "musalce/routing/live/1", pub.messages()[0].topic)
}
