package mqtt

import (
	"encoding/json"
	"fmt"
)

// Transport is the DAW command surface driven by remote messages.
// *daw.Commands implements it.
type Transport interface {
	Sync() error
	Play() error
	Stop() error
	Continue() error
	Record() error
	Goto(bar int) error
	Reload() error
	Panic() error
}

// Subscriber is satisfied by *Client.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler MessageHandler) error
	Unsubscribe(topic string) error
}

// gotoPayload is the body of a goto command.
type gotoPayload struct {
	Bar int `json:"bar"`
}

// Remote maps messages on {prefix}/command/{action} to transport commands.
//
// Actions: sync, play, stop, continue, record, reload, panic and goto
// (payload {"bar": n}). Other payloads are ignored.
type Remote struct {
	sub       Subscriber
	topics    Topics
	qos       byte
	transport Transport
}

// NewRemote creates a command listener. Call Start to subscribe.
func NewRemote(sub Subscriber, topics Topics, qos byte, transport Transport) *Remote {
	return &Remote{sub: sub, topics: topics, qos: qos, transport: transport}
}

// Start subscribes to the command topics.
func (r *Remote) Start() error {
	return r.sub.Subscribe(r.topics.AllCommands(), r.qos, r.Handle)
}

// Stop unsubscribes from the command topics.
func (r *Remote) Stop() error {
	return r.sub.Unsubscribe(r.topics.AllCommands())
}

// Handle executes the command addressed by topic.
func (r *Remote) Handle(topic string, payload []byte) error {
	action, ok := r.topics.CommandAction(topic)
	if !ok {
		return fmt.Errorf("%w: topic %q", ErrUnknownCommand, topic)
	}

	switch action {
	case "sync":
		return r.transport.Sync()
	case "play":
		return r.transport.Play()
	case "stop":
		return r.transport.Stop()
	case "continue":
		return r.transport.Continue()
	case "record":
		return r.transport.Record()
	case "reload":
		return r.transport.Reload()
	case "panic":
		return r.transport.Panic()
	case "goto":
		var p gotoPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("decoding goto payload: %w", err)
		}
		return r.transport.Goto(p.Bar)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, action)
	}
}
