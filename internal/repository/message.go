package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/markethub/internal/logger"
	"github.com/markethub/internal/model"
)

type MessageRepository struct {
	pool *pgxpool.Pool
}

func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

const messageColumns = `m.id, m.sender_id, m.receiver_id, m.content, m.msg_type, m.read,
	        m.attachments, m.reply_to_id, m.reply_content, m.reply_sender_name,
	        m.reactions, m.related_job_id, m.created_at,
	        u.id, u.name, u.role, u.avatar_url`

func scanMessage(row pgx.Row) (*model.Message, error) {
	m := &model.Message{}
	sender := &model.UserPublic{}
	var attachments []byte
	var replyToID, replyContent, replySenderName *string
	err := row.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Content, &m.Type, &m.Read,
		&attachments, &replyToID, &replyContent, &replySenderName,
		&m.Reactions, &m.RelatedJobID, &m.CreatedAt,
		&sender.ID, &sender.Name, &sender.Role, &sender.AvatarURL)
	if err != nil {
		return nil, err
	}
	if len(attachments) > 0 {
		if err := json.Unmarshal(attachments, &m.Attachments); err != nil {
			return nil, fmt.Errorf("attachments decode: %w", err)
		}
	}
	if replyToID != nil {
		m.ReplyTo = &model.ReplyRef{MessageID: *replyToID}
		if replyContent != nil {
			m.ReplyTo.Content = *replyContent
		}
		if replySenderName != nil {
			m.ReplyTo.SenderName = *replySenderName
		}
	}
	m.Sender = sender
	return m, nil
}

func (r *MessageRepository) Create(ctx context.Context, m *model.Message) error {
	defer logger.DeferLogDuration("msg.Create", time.Now())()
	attachments, err := json.Marshal(m.Attachments)
	if err != nil {
		return fmt.Errorf("msgRepo.Create attachments: %w", err)
	}
	var replyToID, replyContent, replySenderName *string
	if m.ReplyTo != nil {
		replyToID = &m.ReplyTo.MessageID
		replyContent = &m.ReplyTo.Content
		replySenderName = &m.ReplyTo.SenderName
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO messages (id, sender_id, receiver_id, content, msg_type, read, attachments,
		                       reply_to_id, reply_content, reply_sender_name, related_job_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		m.ID, m.SenderID, m.ReceiverID, m.Content, m.Type, m.Read, attachments,
		replyToID, replyContent, replySenderName, m.RelatedJobID, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("msgRepo.Create: %w", err)
	}
	return nil
}

func (r *MessageRepository) GetByID(ctx context.Context, id string) (*model.Message, error) {
	defer logger.DeferLogDuration("msg.GetByID", time.Now())()
	m, err := scanMessage(r.pool.QueryRow(ctx,
		`SELECT `+messageColumns+`
		 FROM messages m
		 JOIN users u ON u.id = m.sender_id
		 WHERE m.id = $1`, id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("msgRepo.GetByID: %w", err)
	}
	return m, nil
}

// Thread returns the full message sequence between two users for a type tag,
// oldest first. The server list is canonical: clients take it in full and only
// append their own unconfirmed sends.
func (r *MessageRepository) Thread(ctx context.Context, userID, peerID string, msgType model.MessageType) ([]model.Message, error) {
	defer logger.DeferLogDuration("msg.Thread", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT `+messageColumns+`
		 FROM messages m
		 JOIN users u ON u.id = m.sender_id
		 WHERE m.msg_type = $3
		   AND ((m.sender_id = $1 AND m.receiver_id = $2) OR (m.sender_id = $2 AND m.receiver_id = $1))
		 ORDER BY m.created_at, m.id`, userID, peerID, msgType,
	)
	if err != nil {
		return nil, fmt.Errorf("msgRepo.Thread query: %w", err)
	}
	defer rows.Close()

	messages := make([]model.Message, 0, 64)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("msgRepo.Thread scan: %w", err)
		}
		messages = append(messages, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("msgRepo.Thread rows: %w", err)
	}
	return messages, nil
}

// MarkThreadRead marks all messages from peer to user as read (unread reset on open).
func (r *MessageRepository) MarkThreadRead(ctx context.Context, userID, peerID string, msgType model.MessageType) error {
	defer logger.DeferLogDuration("msg.MarkThreadRead", time.Now())()
	_, err := r.pool.Exec(ctx,
		`UPDATE messages SET read = true
		 WHERE receiver_id = $1 AND sender_id = $2 AND msg_type = $3 AND read = false`,
		userID, peerID, msgType,
	)
	if err != nil {
		return fmt.Errorf("msgRepo.MarkThreadRead: %w", err)
	}
	return nil
}

// AddReaction appends an emoji to the message's reaction list and returns the
// canonical list. Reactions are a flat append-only list with no per-user dedup.
func (r *MessageRepository) AddReaction(ctx context.Context, messageID, emoji string) ([]string, error) {
	defer logger.DeferLogDuration("msg.AddReaction", time.Now())()
	var reactions []string
	err := r.pool.QueryRow(ctx,
		`UPDATE messages SET reactions = array_append(reactions, $2)
		 WHERE id = $1
		 RETURNING reactions`, messageID, emoji,
	).Scan(&reactions)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("msgRepo.AddReaction: %w", err)
	}
	return reactions, nil
}

// Delete removes a message permanently, scoped to the conversation between
// userID and peerID. No tombstone is kept.
func (r *MessageRepository) Delete(ctx context.Context, messageID, userID, peerID string) error {
	defer logger.DeferLogDuration("msg.Delete", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM messages
		 WHERE id = $1
		   AND ((sender_id = $2 AND receiver_id = $3) OR (sender_id = $3 AND receiver_id = $2))`,
		messageID, userID, peerID,
	)
	if err != nil {
		return fmt.Errorf("msgRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
