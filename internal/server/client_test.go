package server

import (
	"testing"

	"github.com/mfortier/go-groupchat/internal/database"
	"github.com/mfortier/go-groupchat/internal/stats"
	"github.com/mfortier/go-groupchat/internal/testutil"
	"github.com/mfortier/go-groupchat/internal/types"
	"github.com/stretchr/testify/assert"
)

func newDispatchClient(t *testing.T, cs *ChatServer, id int, username string) *Client {
	return &Client{
		chatServer: cs,
		log:        testutil.TestLogger(t),
		user:       types.User{Id: id, Username: username},
		send:       make(chan *ServerMessage, sendBufferSize),
		stop:       make(chan struct{}),
	}
}

func TestQueueMessage(t *testing.T) {
	c := newTestClient(1, "alice")

	for i := 0; i < sendBufferSize; i++ {
		assert.True(t, c.queueMessage(&ServerMessage{}), "expected message to be queued")
	}
	assert.False(t, c.queueMessage(&ServerMessage{}), "expected queue to refuse when full")
}

func TestDispatch(t *testing.T) {
	t.Run("stamps the connection's verified identity", func(t *testing.T) {
		cs := newTestChatServer(t, &database.MockChatRepository{}, &stats.MockStatsUpdater{})
		c := newDispatchClient(t, cs, 7, "alice")

		// a spoofed sender id on the wire must not survive dispatch
		msg := &ClientMessage{
			BaseMessage: BaseMessage{Id: 1},
			Publish:     &Publish{ChatId: "c1", Kind: types.MessageKindText, Text: "hi"},
			UserId:      99,
		}
		c.dispatch(msg)

		routed := <-cs.eventChan
		assert.Equal(t, 7, routed.UserId, "expected the session identity, not the payload's")
		assert.Equal(t, c, routed.client, "expected the connection to be attached")
		assert.False(t, routed.Timestamp.IsZero(), "expected a server-side timestamp")
	})

	t.Run("rejects an event with no payload", func(t *testing.T) {
		cs := newTestChatServer(t, &database.MockChatRepository{}, &stats.MockStatsUpdater{})
		c := newDispatchClient(t, cs, 1, "alice")

		c.dispatch(&ClientMessage{BaseMessage: BaseMessage{Id: 2}})

		assert.Len(t, cs.eventChan, 0, "expected nothing to be routed")
		reply := <-c.send
		assert.NotNil(t, reply.Response, "expected an error response")
		assert.Equal(t, 400, reply.Response.ResponseCode, "expected a bad request response")
	})

	t.Run("saturated broker fails joins and drops events", func(t *testing.T) {
		cs := newTestChatServer(t, &database.MockChatRepository{}, &stats.MockStatsUpdater{})
		for len(cs.eventChan) < cap(cs.eventChan) {
			cs.eventChan <- &ClientMessage{Leave: &Leave{ChatId: "c1"}}
		}

		c := newDispatchClient(t, cs, 1, "alice")

		c.dispatch(&ClientMessage{
			BaseMessage: BaseMessage{Id: 3},
			Join:        &Join{ChatId: "c1"},
		})
		reply := <-c.send
		assert.NotNil(t, reply.Response, "expected an error response for the join")
		assert.Equal(t, 503, reply.Response.ResponseCode, "expected service unavailable")

		c.dispatch(&ClientMessage{
			Publish: &Publish{ChatId: "c1", Kind: types.MessageKindText, Text: "hi"},
		})
		assert.Len(t, c.send, 0, "expected no reply for a dropped event-style send")
	})
}

func TestStopClient(t *testing.T) {
	c := newTestClient(1, "alice")

	c.stopClient()
	select {
	case <-c.stop:
	default:
		t.Error("expected stop channel to be closed")
	}

	// stopping twice must not panic
	c.stopClient()
}
