package bus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/domain"
)

func TestPublishDeliversInOrder(t *testing.T) {
	b := New(8)
	sub := b.Subscribe()
	defer sub.Close()

	b.Publish(domain.NewTyping("room-1", "alice", time.Now()))
	b.Publish(domain.NewMessageDeleted("room-1", "m1", 5))

	ev := <-sub.Events()
	assert.Equal(t, domain.EventTyping, ev.Kind)
	ev = <-sub.Events()
	assert.Equal(t, domain.EventMessageDeleted, ev.Kind)
	assert.Equal(t, int64(5), ev.Seq)
}

func TestMultipleSubscribersEachReceive(t *testing.T) {
	b := New(8)
	a := b.Subscribe()
	c := b.Subscribe()
	defer a.Close()
	defer c.Close()

	assert.Equal(t, 2, b.Subscribers())

	b.Publish(domain.NewTyping("room-1", "alice", time.Now()))
	assert.Equal(t, domain.EventTyping, (<-a.Events()).Kind)
	assert.Equal(t, domain.EventTyping, (<-c.Events()).Kind)
}

func TestSlowSubscriberLossIsAccounted(t *testing.T) {
	b := New(2)
	sub := b.Subscribe()
	defer sub.Close()

	const published = 6
	for i := 0; i < published; i++ {
		b.Publish(domain.NewTyping("room-1", "alice", time.Now()))
	}

	// Drain the buffer: every published event is either delivered or covered
	// by a lagged marker's miss count.
	var delivered, missed int64
	var sawLag bool
drain:
	for {
		select {
		case ev := <-sub.Events():
			if ev.Kind == domain.EventLagged {
				lag, ok := ev.Payload.(domain.Lag)
				require.True(t, ok)
				missed += lag.Missed
				sawLag = true
			} else {
				delivered++
			}
		default:
			break drain
		}
	}

	assert.True(t, sawLag, "overflow must surface a lagged marker")
	assert.Equal(t, int64(published), delivered+missed)
}

func TestCloseIsIdempotent(t *testing.T) {
	b := New(2)
	sub := b.Subscribe()
	sub.Close()
	sub.Close()
	assert.Equal(t, 0, b.Subscribers())

	_, open := <-sub.Events()
	assert.False(t, open)

	// Publishing after close must not panic.
	b.Publish(domain.NewTyping("room-1", "alice", time.Now()))
}
