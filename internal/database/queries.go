package database

import (
	"database/sql"
	"fmt"
	"time"
)

func (db *PgChatRepository) CreateAccount(params CreateAccountParams) (User, error) {
	res := db.conn.QueryRow(
		"INSERT INTO accounts (username, email, password_hash, created_at) "+
			"VALUES ($1, $2, $3, $4) RETURNING id, username, email, created_at",
		params.Username,
		params.EmailAddress,
		params.PasswordHash,
		time.Now().UTC(),
	)

	var u User
	err := res.Scan(
		&u.Id,
		&u.Username,
		&u.EmailAddress,
		&u.CreatedAt,
	)

	return u, err
}

func (db *PgChatRepository) GetAccountById(id int) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, created_at FROM accounts WHERE id = $1 LIMIT 1",
		id,
	)

	var user User
	err := row.Scan(
		&user.Id,
		&user.Username,
		&user.EmailAddress,
		&user.CreatedAt,
	)

	return user, err
}

func (db *PgChatRepository) GetAccountByEmail(email string) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, password_hash, created_at FROM accounts "+
			"WHERE email = $1 LIMIT 1",
		email,
	)

	var user User
	err := row.Scan(
		&user.Id,
		&user.Username,
		&user.EmailAddress,
		&user.PasswordHash,
		&user.CreatedAt,
	)

	return user, err
}

func (db *PgChatRepository) GetAccountByUsername(username string) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, created_at FROM accounts "+
			"WHERE username = $1 LIMIT 1",
		username,
	)

	var user User
	err := row.Scan(
		&user.Id,
		&user.Username,
		&user.EmailAddress,
		&user.CreatedAt,
	)

	return user, err
}

// CreateChat inserts the chat row and its fixed participant set in a
// single transaction. Membership is immutable after creation.
func (db *PgChatRepository) CreateChat(params CreateChatParams) (Chat, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return Chat{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res := tx.QueryRow(
		"INSERT INTO chats (external_id, name, creator_id, seq_id, created_at) "+
			"VALUES ($1, $2, $3, 0, $4) RETURNING id, external_id, name, creator_id, seq_id, created_at",
		params.ExternalId,
		params.Name,
		params.CreatorId,
		time.Now().UTC(),
	)

	var chat Chat
	err = res.Scan(
		&chat.Id,
		&chat.ExternalId,
		&chat.Name,
		&chat.CreatorId,
		&chat.SeqId,
		&chat.CreatedAt,
	)
	if err != nil {
		return Chat{}, err
	}

	for _, accountId := range params.ParticipantIds {
		_, err = tx.Exec(
			"INSERT INTO chat_participants (chat_id, account_id) VALUES ($1, $2)",
			chat.Id,
			accountId,
		)
		if err != nil {
			return Chat{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return Chat{}, err
	}

	return chat, nil
}

func (db *PgChatRepository) GetChatByExternalId(externalId string) (Chat, error) {
	row := db.conn.QueryRow(
		"SELECT id, external_id, name, creator_id, seq_id, created_at FROM chats "+
			"WHERE external_id = $1 LIMIT 1",
		externalId,
	)

	var chat Chat
	err := row.Scan(
		&chat.Id,
		&chat.ExternalId,
		&chat.Name,
		&chat.CreatorId,
		&chat.SeqId,
		&chat.CreatedAt,
	)

	return chat, err
}

func (db *PgChatRepository) GetChatWithParticipants(chatId int) (*Chat, error) {
	query := `
		SELECT
				c.id,
				c.external_id,
				c.name,
				c.creator_id,
				c.seq_id,
				c.created_at,
				p.id,
				p.account_id,
				a.username
		FROM chats c
		LEFT JOIN chat_participants p ON c.id = p.chat_id
		LEFT JOIN accounts a ON p.account_id = a.id
		WHERE c.id = $1;
`

	rows, err := db.conn.Query(query, chatId)
	if err != nil {
		return nil, fmt.Errorf("fetch chat with participants: %w", err)
	}
	defer rows.Close()

	var chat *Chat
	for rows.Next() {
		var (
			id            int
			externalId    string
			name          string
			creatorId     int
			seqId         int
			createdAt     time.Time
			participantId sql.NullInt64
			accountId     sql.NullInt64
			username      sql.NullString
		)

		err := rows.Scan(
			&id,
			&externalId,
			&name,
			&creatorId,
			&seqId,
			&createdAt,
			&participantId,
			&accountId,
			&username,
		)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		if chat == nil {
			chat = &Chat{
				Id:           id,
				ExternalId:   externalId,
				Name:         name,
				CreatorId:    creatorId,
				SeqId:        seqId,
				CreatedAt:    createdAt,
				Participants: make([]Participant, 0),
			}
		}

		if accountId.Valid && username.Valid {
			chat.Participants = append(chat.Participants, Participant{
				Id:        int(participantId.Int64),
				ChatId:    id,
				AccountId: int(accountId.Int64),
				Username:  username.String,
			})
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if chat == nil {
		return nil, fmt.Errorf("chat with id %d not found", chatId)
	}

	return chat, nil
}

func (db *PgChatRepository) ListChatsForAccount(accountId int) ([]Chat, error) {
	rows, err := db.conn.Query(
		"SELECT c.id, c.external_id, c.name, c.creator_id, c.seq_id, c.created_at "+
			"FROM chat_participants p JOIN chats c ON c.id = p.chat_id "+
			"WHERE p.account_id = $1 ORDER BY c.created_at",
		accountId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chats []Chat
	for rows.Next() {
		var chat Chat
		if err = rows.Scan(&chat.Id, &chat.ExternalId, &chat.Name, &chat.CreatorId, &chat.SeqId, &chat.CreatedAt); err != nil {
			break
		}

		chats = append(chats, chat)
	}

	return chats, err
}

func (db *PgChatRepository) IsParticipant(chatId, accountId int) bool {
	res := db.conn.QueryRow(
		"SELECT id FROM chat_participants WHERE chat_id = $1 AND account_id = $2 LIMIT 1",
		chatId,
		accountId,
	)

	var id int
	err := res.Scan(&id)

	return err == nil
}

// CreateMessage appends the message and advances the chat's sequence in
// one transaction, so the persisted record set is always a consistent
// prefix of the appended messages.
func (db *PgChatRepository) CreateMessage(msg Message) (Message, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return Message{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res := tx.QueryRow(
		"INSERT INTO messages (seq_id, chat_id, sender_id, kind, text, media_url, original_filename, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, $8) "+
			"RETURNING id, seq_id, chat_id, sender_id, kind, text, media_url, original_filename, created_at",
		msg.SeqId,
		msg.ChatId,
		msg.SenderId,
		msg.Kind,
		msg.Text,
		msg.MediaUrl,
		msg.OriginalFilename,
		msg.CreatedAt,
	)

	var committed Message
	err = res.Scan(
		&committed.Id,
		&committed.SeqId,
		&committed.ChatId,
		&committed.SenderId,
		&committed.Kind,
		&committed.Text,
		&committed.MediaUrl,
		&committed.OriginalFilename,
		&committed.CreatedAt,
	)
	if err != nil {
		return Message{}, err
	}

	_, err = tx.Exec("UPDATE chats SET seq_id = $1 WHERE id = $2", msg.SeqId, msg.ChatId)
	if err != nil {
		return Message{}, err
	}

	if err = tx.Commit(); err != nil {
		return Message{}, err
	}

	return committed, nil
}

func (db *PgChatRepository) ListMessagesByChat(chatId int) ([]Message, error) {
	rows, err := db.conn.Query(
		"SELECT id, seq_id, chat_id, sender_id, kind, text, media_url, original_filename, created_at "+
			"FROM messages WHERE chat_id = $1 ORDER BY seq_id",
		chatId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages = make([]Message, 0)
	for rows.Next() {
		var msg Message
		if err = rows.Scan(&msg.Id, &msg.SeqId, &msg.ChatId, &msg.SenderId, &msg.Kind, &msg.Text, &msg.MediaUrl, &msg.OriginalFilename, &msg.CreatedAt); err != nil {
			break
		}

		messages = append(messages, msg)
	}

	return messages, err
}
