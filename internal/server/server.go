package server

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/mfortier/go-groupchat/internal/database"
	"github.com/mfortier/go-groupchat/internal/stats"
)

type stopReq struct {
	done chan struct{}
}

// ChatServer is the broker. It owns the connection set, the live room
// actors and the room registry, and routes every channel event to the
// room actor serializing its chat.
type ChatServer struct {
	log            *log.Logger
	db             database.ChatRepository
	stats          stats.StatsProvider
	registry       *RoomRegistry
	clients        map[*Client]struct{}
	clientsLock    sync.Mutex
	eventChan      chan *ClientMessage
	registerChan   chan *Client
	deRegisterChan chan *Client
	unloadRoomChan chan string
	rooms          map[string]*Room
	stop           chan stopReq
}

func NewChatServer(logger *log.Logger, db database.ChatRepository, sp stats.StatsProvider) (*ChatServer, error) {
	if db == nil {
		return nil, fmt.Errorf("nil repository")
	}

	for _, metric := range []string{
		stats.ActiveConnections,
		stats.ActiveChats,
		stats.MessagesPersisted,
		stats.MessagesBroadcast,
		stats.DroppedConnections,
	} {
		sp.RegisterMetric(metric)
	}

	return &ChatServer{
		log:            logger,
		db:             db,
		stats:          sp,
		registry:       NewRoomRegistry(logger, sp),
		clients:        make(map[*Client]struct{}),
		eventChan:      make(chan *ClientMessage, 256),
		registerChan:   make(chan *Client, 64),
		deRegisterChan: make(chan *Client, 64),
		unloadRoomChan: make(chan string, 16),
		rooms:          make(map[string]*Room),
		stop:           make(chan stopReq),
	}, nil
}

func (cs *ChatServer) Run() {
	for {
		select {
		case msg := <-cs.eventChan:
			cs.routeToRoom(msg)
		case client := <-cs.registerChan:
			cs.log.Printf("adding connection from %q", client.user.Username)
			cs.addClient(client)
			cs.stats.Incr(stats.ActiveConnections)
		case client := <-cs.deRegisterChan:
			cs.log.Printf("removing connection from %q", client.user.Username)
			cs.removeClient(client)
			cs.stats.Decr(stats.ActiveConnections)

			// a disconnect is an implicit leave for every joined room
			for _, chatId := range cs.registry.DropConnection(client) {
				if room, ok := cs.rooms[chatId]; ok {
					select {
					case room.eventChan <- &ClientMessage{
						Leave:  &Leave{ChatId: chatId},
						UserId: client.user.Id,
						client: client,
					}:
					default:
						cs.log.Printf("event channel full on room %q during disconnect", chatId)
					}
				}
			}
		case id := <-cs.unloadRoomChan:
			cs.unloadRoom(id)
		case req := <-cs.stop:
			cs.log.Println("shutting down rooms")
			for _, r := range cs.rooms {
				done := make(chan struct{})
				r.exit <- exitReq{done: done}
				<-done
			}
			cs.rooms = make(map[string]*Room)

			close(req.done)
			return
		}
	}
}

// routeToRoom forwards a channel event to the actor owning its chat,
// loading the room first if needed. Joins are request-style and get an
// error reply on failure; leaves and publishes are fire-and-forget.
func (cs *ChatServer) routeToRoom(msg *ClientMessage) {
	chatId := msg.ChatId()
	if chatId == "" {
		cs.log.Println("dropping event without chat id")
		if msg.Join != nil {
			msg.client.queueMessage(ErrInvalidMessage(msg.Id))
		}
		return
	}

	room, ok := cs.rooms[chatId]
	if !ok {
		if msg.Leave != nil {
			// nothing to leave
			return
		}

		var err error
		room, err = cs.loadRoom(chatId)
		if err != nil {
			cs.log.Printf("load room %q: %v", chatId, err)
			if msg.Join != nil {
				msg.client.queueMessage(ErrChatNotFound(msg.Id))
			}
			return
		}
	}

	select {
	case room.eventChan <- msg:
	default:
		cs.log.Printf("event channel full on room %q", chatId)
		if msg.Join != nil {
			msg.client.queueMessage(ErrServiceUnavailable(msg.Id))
		}
	}
}

func (cs *ChatServer) loadRoom(externalId string) (*Room, error) {
	dbChat, err := cs.db.GetChatByExternalId(externalId)
	if err != nil {
		return nil, err
	}

	chat, err := cs.db.GetChatWithParticipants(dbChat.Id)
	if err != nil {
		return nil, err
	}

	participants := make(map[int]string, len(chat.Participants))
	for _, p := range chat.Participants {
		participants[p.AccountId] = p.Username
	}

	room := &Room{
		id:           chat.Id,
		externalId:   chat.ExternalId,
		participants: participants,
		seqId:        chat.SeqId,
		cs:           cs,
		registry:     cs.registry,
		eventChan:    make(chan *ClientMessage, 256),
		log:          cs.log,
		exit:         make(chan exitReq),
		done:         make(chan struct{}),
	}

	cs.rooms[room.externalId] = room
	cs.stats.Incr(stats.ActiveChats)
	go room.start()

	return room, nil
}

func (cs *ChatServer) unloadRoom(chatId string) {
	r, ok := cs.rooms[chatId]
	if !ok {
		return
	}

	cs.log.Printf("unloading room %q", chatId)
	delete(cs.rooms, chatId)
	cs.stats.Decr(stats.ActiveChats)

	done := make(chan struct{})
	r.exit <- exitReq{done: done}
	<-done
}

// RouteEvent hands an inbound channel event to the broker loop. Reports
// false if the broker is saturated.
func (cs *ChatServer) RouteEvent(msg *ClientMessage) bool {
	select {
	case cs.eventChan <- msg:
		return true
	default:
		return false
	}
}

func (cs *ChatServer) RegisterClient(c *Client) {
	cs.registerChan <- c
}

func (cs *ChatServer) addClient(c *Client) {
	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()
	cs.clients[c] = struct{}{}
}

func (cs *ChatServer) removeClient(c *Client) {
	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()
	delete(cs.clients, c)
}

func (cs *ChatServer) Shutdown(ctx context.Context) error {
	cs.log.Println("received shutdown signal")

	cs.clientsLock.Lock()
	for c := range cs.clients {
		c.stopClient()
	}
	cs.clientsLock.Unlock()

	req := stopReq{done: make(chan struct{})}
	select {
	case cs.stop <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
