package mqtt

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	calls []string
	bar   int
	err   error
}

func (f *fakeTransport) record(name string) error {
	f.calls = append(f.calls, name)
	return f.err
}

func (f *fakeTransport) Sync() error     { return f.record("sync") }
func (f *fakeTransport) Play() error     { return f.record("play") }
func (f *fakeTransport) Stop() error     { return f.record("stop") }
func (f *fakeTransport) Continue() error { return f.record("continue") }
func (f *fakeTransport) Record() error   { return f.record("record") }
func (f *fakeTransport) Reload() error   { return f.record("reload") }
func (f *fakeTransport) Panic() error    { return f.record("panic") }
func (f *fakeTransport) Goto(bar int) error {
	f.bar = bar
	return f.record("goto")
}

type fakeSubscriber struct {
	topic    string
	qos      byte
	handler  MessageHandler
	unsubbed string
}

func (s *fakeSubscriber) Subscribe(topic string, qos byte, h MessageHandler) error {
	s.topic, s.qos, s.handler = topic, qos, h
	return nil
}

func (s *fakeSubscriber) Unsubscribe(topic string) error {
	s.unsubbed = topic
	return nil
}

func TestRemote_SubscribesToCommands(t *testing.T) {
	sub := &fakeSubscriber{}
	r := NewRemote(sub, Topics{Prefix: "studio"}, 1, &fakeTransport{})

	require.NoError(t, r.Start())
	assert.Equal(t, "studio/command/+", sub.topic)
	assert.Equal(t, byte(1), sub.qos)
	require.NotNil(t, sub.handler)

	require.NoError(t, r.Stop())
	assert.Equal(t, "studio/command/+", sub.unsubbed)
}

func TestRemote_Handle(t *testing.T) {
	tr := &fakeTransport{}
	r := NewRemote(&fakeSubscriber{}, Topics{}, 1, tr)
	topics := Topics{}

	for _, action := range []string{"sync", "play", "stop", "continue", "record", "reload", "panic"} {
		require.NoError(t, r.Handle(topics.Command(action), nil), action)
	}
	require.NoError(t, r.Handle(topics.Command("goto"), []byte(`{"bar": 9}`)))

	assert.Equal(t, []string{"sync", "play", "stop", "continue", "record", "reload", "panic", "goto"}, tr.calls)
	assert.Equal(t, 9, tr.bar)
}

func TestRemote_HandleErrors(t *testing.T) {
	tr := &fakeTransport{}
	r := NewRemote(&fakeSubscriber{}, Topics{}, 1, tr)

	assert.ErrorIs(t, r.Handle("musalce/command/rewind", nil), ErrUnknownCommand)
	assert.ErrorIs(t, r.Handle("elsewhere/command/play", nil), ErrUnknownCommand)
	assert.Error(t, r.Handle("musalce/command/goto", []byte("nine")))
	assert.Empty(t, tr.calls)

	tr.err = errors.New("send failed")
	assert.EqualError(t, r.Handle("musalce/command/play", nil), "send failed")
}
