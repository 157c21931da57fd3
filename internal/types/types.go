package types

import (
	"time"
)

type User struct {
	Id           int       `json:"id"`
	Username     string    `json:"username"`
	EmailAddress string    `json:"email_address,omitempty"`
	Password     string    `json:"-"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
}

type Chat struct {
	Id           int       `json:"id"`
	ExternalId   string    `json:"external_id"`
	Name         string    `json:"name"`
	CreatorId    int       `json:"creator_id"`
	SeqId        int       `json:"seq_id"`
	Participants []User    `json:"participants,omitempty"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
}

// MessageKind is the declared kind of a chat message. Text messages carry
// their content inline, image and video messages carry a media reference
// produced by the upload gateway.
type MessageKind string

const (
	MessageKindText  MessageKind = "text"
	MessageKindImage MessageKind = "image"
	MessageKindVideo MessageKind = "video"
)

func (k MessageKind) Valid() bool {
	switch k {
	case MessageKindText, MessageKindImage, MessageKindVideo:
		return true
	}
	return false
}

type Message struct {
	Id               int         `json:"id"`
	SeqId            int         `json:"seq_id"`
	ChatId           string      `json:"chat_id"`
	SenderId         int         `json:"sender_id"`
	Kind             MessageKind `json:"type"`
	Text             *string     `json:"text"`
	Url              *string     `json:"url"`
	OriginalFilename *string     `json:"original_filename,omitempty"`
	Timestamp        time.Time   `json:"timestamp"`
}
