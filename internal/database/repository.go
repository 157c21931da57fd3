package database

type ChatRepository interface {
	CreateAccount(params CreateAccountParams) (User, error)
	GetAccountById(accountId int) (User, error)
	GetAccountByEmail(email string) (User, error)
	GetAccountByUsername(username string) (User, error)
	CreateChat(params CreateChatParams) (Chat, error)
	GetChatByExternalId(externalId string) (Chat, error)
	GetChatWithParticipants(chatId int) (*Chat, error)
	ListChatsForAccount(accountId int) ([]Chat, error)
	IsParticipant(chatId, accountId int) bool
	CreateMessage(msg Message) (Message, error)
	ListMessagesByChat(chatId int) ([]Message, error)
}
