package server

import (
	"log"
	"time"

	"github.com/mfortier/go-groupchat/internal/database"
	"github.com/mfortier/go-groupchat/internal/stats"
	"github.com/mfortier/go-groupchat/internal/types"
)

const idleRoomTimeout = time.Second * 30

type exitReq struct {
	done chan struct{}
}

// Room is the live fan-out group for one chat. All joins, leaves and
// publishes for the chat flow through its single goroutine, which makes
// the persist-then-broadcast step atomic with respect to other sends on
// the same chat.
type Room struct {
	id         int
	externalId string
	// participants is the chat's fixed membership set, account id to
	// username. Loaded once; membership is immutable post-creation.
	participants map[int]string
	seqId        int
	cs           *ChatServer
	registry     *RoomRegistry
	eventChan    chan *ClientMessage
	log          *log.Logger
	// killTimer unloads the room once it has had no subscribers for a while
	killTimer *time.Timer
	exit      chan exitReq
	done      chan struct{}
}

func (r *Room) start() {
	r.log.Printf("starting room %q", r.externalId)
	r.killTimer = time.NewTimer(idleRoomTimeout)

	for {
		select {
		case msg := <-r.eventChan:
			switch {
			case msg.Join != nil:
				r.handleJoin(msg)
			case msg.Leave != nil:
				r.handleLeave(msg)
			case msg.Publish != nil:
				r.handlePublish(msg)
			}
		case <-r.killTimer.C:
			r.handleRoomTimeout()
		case e := <-r.exit:
			r.handleRoomExit(e)
			return
		}
	}
}

func (r *Room) handleRoomTimeout() {
	if r.registry.NumSubscribers(r.externalId) > 0 {
		// subscribers raced the timer, stay up
		r.killTimer.Reset(idleRoomTimeout)
		return
	}

	r.log.Printf("room %q timed out", r.externalId)
	select {
	case r.cs.unloadRoomChan <- r.externalId:
	default:
		r.killTimer.Reset(idleRoomTimeout)
	}
}

func (r *Room) handleRoomExit(e exitReq) {
	r.log.Printf("room %q is exiting", r.externalId)
	close(r.done)
	if e.done != nil {
		close(e.done)
	}
}

// handleJoin authorizes the connection against the chat's participant set,
// registers it and replies with the full message history, to the caller
// only. A failed authorization leaves the registry untouched.
func (r *Room) handleJoin(msg *ClientMessage) {
	r.killTimer.Stop()

	c := msg.client
	if _, ok := r.participants[msg.UserId]; !ok {
		r.log.Printf("user %d is not a participant of chat %q", msg.UserId, r.externalId)
		c.queueMessage(ErrForbidden(msg.Id))
		r.resetTimerIfIdle()
		return
	}

	history, err := r.loadHistory()
	if err != nil {
		r.log.Println("load history:", err)
		c.queueMessage(ErrInternalError(msg.Id))
		r.resetTimerIfIdle()
		return
	}

	r.registry.Join(r.externalId, c)
	c.queueMessage(NewHistoryMessage(msg.Id, r.externalId, history))
}

func (r *Room) handleLeave(msg *ClientMessage) {
	r.registry.Leave(r.externalId, msg.client)
	r.resetTimerIfIdle()
}

// handlePublish validates, persists and broadcasts a send_message event.
// Failures are logged and dropped: event-style sends have no reply
// channel, so the caller is never notified.
func (r *Room) handlePublish(msg *ClientMessage) {
	p := msg.Publish
	if err := p.Validate(); err != nil {
		r.log.Printf("dropping invalid message from user %d in chat %q: %v", msg.UserId, r.externalId, err)
		return
	}

	if _, ok := r.participants[msg.UserId]; !ok {
		r.log.Printf("dropping message from non-participant %d in chat %q", msg.UserId, r.externalId)
		return
	}

	dbMsg := database.Message{
		SeqId:     r.seqId + 1,
		ChatId:    r.id,
		SenderId:  msg.UserId,
		Kind:      string(p.Kind),
		CreatedAt: msg.Timestamp,
	}
	if p.Kind == types.MessageKindText {
		dbMsg.Text = &p.Text
	} else {
		dbMsg.MediaUrl = &p.Url
		if p.OriginalFilename != "" {
			dbMsg.OriginalFilename = &p.OriginalFilename
		}
	}

	committed, err := r.cs.db.CreateMessage(dbMsg)
	if err != nil {
		r.log.Println("error saving message:", err)
		return
	}

	// the message is durable, advance the sequence and fan out
	r.seqId = committed.SeqId
	r.cs.stats.Incr(stats.MessagesPersisted)

	r.registry.Broadcast(r.externalId, &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        msg.Id,
			Timestamp: committed.CreatedAt,
		},
		Message: r.toWireMessage(committed),
	})
	r.cs.stats.Incr(stats.MessagesBroadcast)
}

func (r *Room) resetTimerIfIdle() {
	if r.registry.NumSubscribers(r.externalId) == 0 {
		r.killTimer.Reset(idleRoomTimeout)
	}
}

func (r *Room) loadHistory() ([]types.Message, error) {
	dbMsgs, err := r.cs.db.ListMessagesByChat(r.id)
	if err != nil {
		return nil, err
	}

	messages := make([]types.Message, len(dbMsgs))
	for i, m := range dbMsgs {
		messages[i] = *r.toWireMessage(m)
	}
	return messages, nil
}

func (r *Room) toWireMessage(m database.Message) *types.Message {
	return &types.Message{
		Id:               m.Id,
		SeqId:            m.SeqId,
		ChatId:           r.externalId,
		SenderId:         m.SenderId,
		Kind:             types.MessageKind(m.Kind),
		Text:             m.Text,
		Url:              m.MediaUrl,
		OriginalFilename: m.OriginalFilename,
		Timestamp:        m.CreatedAt,
	}
}
