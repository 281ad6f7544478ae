package eventbus

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_PreBindsErrorTopic(t *testing.T) {
	b := New()
	require.Equal(t, 1, b.HandlerCount("error"))
	require.NotPanics(t, func() { b.Emit("error", "anything") })
}

func TestOn_DispatchesInRegistrationOrder(t *testing.T) {
	b := New()
	var order []int
	b.On("topic", func(Event) { order = append(order, 1) })
	b.On("topic", func(Event) { order = append(order, 2) })
	b.On("topic", func(Event) { order = append(order, 3) })

	b.Emit("topic", nil)
	require.Equal(t, []int{1, 2, 3}, order)
}

func TestEmit_PayloadDelivered(t *testing.T) {
	b := New()
	var got Event
	b.On("match", func(e Event) { got = e })
	b.Emit("match", map[string]interface{}{"route": "foo"})

	require.Equal(t, "match", got.Topic)
	require.Equal(t, "foo", got.Payload.(map[string]interface{})["route"])
}

func TestEmit_UnsubscribedTopicIsNoop(t *testing.T) {
	b := New()
	require.NotPanics(t, func() { b.Emit("nobody-listens", nil) })
}

func TestEmit_HandlerPanicIsolated(t *testing.T) {
	b := New()
	var secondRan bool
	b.On("topic", func(Event) { panic("boom") })
	b.On("topic", func(Event) { secondRan = true })

	require.NotPanics(t, func() { b.Emit("topic", nil) })
	require.True(t, secondRan, "a panicking handler must not prevent later handlers from running")
}
