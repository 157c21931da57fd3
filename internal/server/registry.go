package server

import (
	"log"
	"sync"

	"github.com/mfortier/go-groupchat/internal/stats"
)

// RoomRegistry maps a chat id to the set of currently subscribed live
// connections. It is independent of persistence: membership exists only
// while both sides are live and is rebuilt on every connect.
type RoomRegistry struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
	log   *log.Logger
	stats stats.StatsProvider
}

func NewRoomRegistry(logger *log.Logger, sp stats.StatsProvider) *RoomRegistry {
	return &RoomRegistry{
		rooms: make(map[string]map[*Client]struct{}),
		log:   logger,
		stats: sp,
	}
}

// Join adds the connection to the chat's subscriber set. Re-joining is a
// no-op beyond ensuring membership.
func (rr *RoomRegistry) Join(chatId string, c *Client) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	subs, ok := rr.rooms[chatId]
	if !ok {
		subs = make(map[*Client]struct{})
		rr.rooms[chatId] = subs
	}
	subs[c] = struct{}{}
}

// Leave removes the connection from the chat's subscriber set. No-op if
// the connection is not subscribed.
func (rr *RoomRegistry) Leave(chatId string, c *Client) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	if subs, ok := rr.rooms[chatId]; ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(rr.rooms, chatId)
		}
	}
}

// Broadcast delivers the message to every currently subscribed connection
// of the chat. Delivery is a buffered enqueue per connection; a connection
// whose send buffer is full is dropped rather than allowed to stall
// delivery to the others.
func (rr *RoomRegistry) Broadcast(chatId string, msg *ServerMessage) {
	rr.mu.RLock()
	defer rr.mu.RUnlock()

	for c := range rr.rooms[chatId] {
		if !c.queueMessage(msg) {
			rr.log.Printf("dropping slow connection for %q in chat %q", c.user.Username, chatId)
			rr.stats.Incr(stats.DroppedConnections)
			c.stopClient()
		}
	}
}

// DropConnection removes the connection from every chat it subscribed to
// and returns the chat ids it was removed from. Invoked on disconnect.
func (rr *RoomRegistry) DropConnection(c *Client) []string {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	var dropped []string
	for chatId, subs := range rr.rooms {
		if _, ok := subs[c]; ok {
			delete(subs, c)
			dropped = append(dropped, chatId)
			if len(subs) == 0 {
				delete(rr.rooms, chatId)
			}
		}
	}

	return dropped
}

// IsSubscribed reports whether the connection currently subscribes to the chat.
func (rr *RoomRegistry) IsSubscribed(chatId string, c *Client) bool {
	rr.mu.RLock()
	defer rr.mu.RUnlock()

	_, ok := rr.rooms[chatId][c]
	return ok
}

// NumSubscribers returns the current subscriber count for the chat.
func (rr *RoomRegistry) NumSubscribers(chatId string) int {
	rr.mu.RLock()
	defer rr.mu.RUnlock()

	return len(rr.rooms[chatId])
}
