package mqtt

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/musalce/musalce-server/internal/daw"
)

// DefaultAnnounceQueue is the number of routing events buffered ahead of
// the publisher.
const DefaultAnnounceQueue = 256

// Publisher is satisfied by *Client.
type Publisher interface {
	PublishRetained(topic string, payload []byte) error
}

// routingPayload is the retained JSON document on a routing topic.
type routingPayload struct {
	Flavor    string `json:"flavor"`
	Key       string `json:"key"`
	Name      string `json:"name"`
	Device    string `json:"device,omitempty"`
	Channel   int    `json:"channel,omitempty"`
	Bound     bool   `json:"bound"`
	Timestamp string `json:"timestamp"`
}

// Announcer publishes routing changes as retained messages. It implements
// daw.RoutingObserver; RoutingChanged only enqueues, a single goroutine
// publishes. Events that do not fit the queue are dropped.
type Announcer struct {
	pub    Publisher
	topics Topics
	queue  chan daw.RoutingEvent
	logger Logger

	dropped   atomic.Uint64
	published atomic.Uint64

	stopOnce sync.Once
	done     chan struct{}
	wg       sync.WaitGroup
}

// NewAnnouncer creates an announcer. queueSize < 1 uses DefaultAnnounceQueue.
func NewAnnouncer(pub Publisher, topics Topics, queueSize int) *Announcer {
	if queueSize < 1 {
		queueSize = DefaultAnnounceQueue
	}
	return &Announcer{
		pub:    pub,
		topics: topics,
		queue:  make(chan daw.RoutingEvent, queueSize),
		done:   make(chan struct{}),
	}
}

// SetLogger sets a logger for publish failures and drops.
func (a *Announcer) SetLogger(logger Logger) {
	a.logger = logger
}

// RoutingChanged implements daw.RoutingObserver.
func (a *Announcer) RoutingChanged(ev daw.RoutingEvent) {
	select {
	case a.queue <- ev:
	default:
		a.dropped.Add(1)
		if a.logger != nil {
			a.logger.Warn("routing announcement dropped, queue full", "track", ev.Key)
		}
	}
}

// Start runs the publishing goroutine until ctx is done or Stop is called.
func (a *Announcer) Start(ctx context.Context) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-a.done:
				return
			case ev := <-a.queue:
				a.publish(ev)
			}
		}
	}()
}

// Stop halts publishing and waits for the goroutine. Queued events are
// discarded; the broker keeps the last retained state.
func (a *Announcer) Stop() {
	a.stopOnce.Do(func() {
		close(a.done)
	})
	a.wg.Wait()
}

// Announce publishes one event synchronously.
func (a *Announcer) Announce(ev daw.RoutingEvent) error {
	payload, err := json.Marshal(routingPayload{
		Flavor:    string(ev.Flavor),
		Key:       ev.Key,
		Name:      ev.Name,
		Device:    ev.Device,
		Channel:   ev.Channel,
		Bound:     ev.Bound,
		Timestamp: ev.Time.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}
	return a.pub.PublishRetained(a.topics.Routing(string(ev.Flavor), ev.Key), payload)
}

func (a *Announcer) publish(ev daw.RoutingEvent) {
	if err := a.Announce(ev); err != nil {
		if a.logger != nil {
			a.logger.Warn("routing announcement failed", "track", ev.Key, "error", err)
		}
		return
	}
	a.published.Add(1)
}

// Stats returns how many events were published and dropped.
func (a *Announcer) Stats() (published, dropped uint64) {
	return a.published.Load(), a.dropped.Load()
}
