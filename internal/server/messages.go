package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/mfortier/go-groupchat/internal/types"
)

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ClientMessage is the envelope for all inbound channel events. Exactly
// one of Join, Leave or Publish is set.
type ClientMessage struct {
	BaseMessage
	Join    *Join    `json:"join,omitempty"`
	Leave   *Leave   `json:"leave,omitempty"`
	Publish *Publish `json:"publish,omitempty"`
	UserId  int      `json:"-"`
	client  *Client  `json:"-"`
}

// ChatId returns the chat the event addresses, regardless of its kind.
func (m *ClientMessage) ChatId() string {
	switch {
	case m.Join != nil:
		return m.Join.ChatId
	case m.Leave != nil:
		return m.Leave.ChatId
	case m.Publish != nil:
		return m.Publish.ChatId
	}
	return ""
}

type Join struct {
	ChatId string `json:"chat_id"`
}

type Leave struct {
	ChatId string `json:"chat_id"`
}

// Publish is the send_message event. Text messages carry Text, image and
// video messages carry the Url reference handed out by the upload gateway.
type Publish struct {
	ChatId           string            `json:"chat_id"`
	Kind             types.MessageKind `json:"type"`
	Text             string            `json:"text,omitempty"`
	Url              string            `json:"url,omitempty"`
	OriginalFilename string            `json:"original_filename,omitempty"`
}

// Validate checks the fields required for the declared kind.
func (p *Publish) Validate() error {
	if p.ChatId == "" {
		return fmt.Errorf("missing chat id")
	}
	if !p.Kind.Valid() {
		return fmt.Errorf("unknown message type %q", p.Kind)
	}
	if p.Kind == types.MessageKindText && p.Text == "" {
		return fmt.Errorf("text message with empty text")
	}
	if p.Kind != types.MessageKindText && p.Url == "" {
		return fmt.Errorf("%s message without media reference", p.Kind)
	}
	return nil
}

type ServerMessage struct {
	BaseMessage
	Response *Response      `json:"response,omitempty"`
	History  *History       `json:"history,omitempty"`
	Message  *types.Message `json:"message,omitempty"`
}

type Response struct {
	ResponseCode int    `json:"response_code"`
	Error        string `json:"error,omitempty"`
}

// History is the load_messages reply sent to a joining connection only.
type History struct {
	ChatId   string          `json:"chat_id"`
	Messages []types.Message `json:"messages"`
}

func NewHistoryMessage(id int, chatId string, messages []types.Message) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		History: &History{
			ChatId:   chatId,
			Messages: messages,
		},
	}
}

func ErrChatNotFound(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusNotFound,
			Error:        "chat not found",
		},
	}
}

func ErrForbidden(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusForbidden,
			Error:        "not a participant",
		},
	}
}

func ErrInternalError(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusInternalServerError,
			Error:        "internal server error",
		},
	}
}

func ErrServiceUnavailable(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusServiceUnavailable,
			Error:        "service unavailable",
		},
	}
}

func ErrInvalidMessage(id int) *ServerMessage {
	msg := &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusBadRequest,
			Error:        "invalid message format",
		},
	}

	if id > 0 {
		msg.Id = id
	}
	return msg
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
