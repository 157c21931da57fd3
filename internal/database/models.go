package database

import "time"

type User struct {
	Id           int
	Username     string
	EmailAddress string
	PasswordHash string
	CreatedAt    time.Time
}

type Chat struct {
	Id           int
	ExternalId   string
	Name         string
	CreatorId    int
	SeqId        int
	CreatedAt    time.Time
	Participants []Participant
}

type Participant struct {
	Id        int
	ChatId    int
	AccountId int
	Username  string
}

type Message struct {
	Id               int
	SeqId            int
	ChatId           int
	SenderId         int
	Kind             string
	Text             *string
	MediaUrl         *string
	OriginalFilename *string
	CreatedAt        time.Time
}

type CreateAccountParams struct {
	Username     string
	EmailAddress string
	PasswordHash string
}

type CreateChatParams struct {
	Name           string
	ExternalId     string
	CreatorId      int
	ParticipantIds []int
}
