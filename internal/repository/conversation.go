package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/markethub/internal/logger"
	"github.com/markethub/internal/model"
)

// ConversationRepository derives per-counterparty conversation views from the
// messages table. Conversations are never stored.
type ConversationRepository struct {
	pool *pgxpool.Pool
}

func NewConversationRepository(pool *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{pool: pool}
}

// ListForUser returns the user's conversations for a type tag: one row per
// peer, carrying the last-message summary and unread count, most recent first.
func (r *ConversationRepository) ListForUser(ctx context.Context, userID string, msgType model.MessageType) ([]model.Conversation, error) {
	defer logger.DeferLogDuration("conv.ListForUser", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT t.peer_id, u.name, u.role, u.avatar_url,
		        t.content, COALESCE(jsonb_array_length(NULLIF(t.attachments, 'null'::jsonb)), 0) > 0,
		        t.created_at, t.sender_id = $1,
		        COALESCE(un.cnt, 0), t.related_job_id
		 FROM (
		     SELECT DISTINCT ON (CASE WHEN sender_id = $1 THEN receiver_id ELSE sender_id END)
		            CASE WHEN sender_id = $1 THEN receiver_id ELSE sender_id END AS peer_id,
		            content, attachments, created_at, sender_id, related_job_id
		     FROM messages
		     WHERE msg_type = $2 AND (sender_id = $1 OR receiver_id = $1)
		     ORDER BY CASE WHEN sender_id = $1 THEN receiver_id ELSE sender_id END, created_at DESC
		 ) t
		 JOIN users u ON u.id = t.peer_id
		 LEFT JOIN (
		     SELECT sender_id AS peer_id, COUNT(*) AS cnt
		     FROM messages
		     WHERE receiver_id = $1 AND msg_type = $2 AND read = false
		     GROUP BY sender_id
		 ) un ON un.peer_id = t.peer_id
		 ORDER BY t.created_at DESC`, userID, msgType,
	)
	if err != nil {
		return nil, fmt.Errorf("convRepo.ListForUser query: %w", err)
	}
	defer rows.Close()

	conversations := make([]model.Conversation, 0, 16)
	for rows.Next() {
		c := model.Conversation{Type: msgType}
		if err := rows.Scan(&c.Peer.ID, &c.Peer.Name, &c.Peer.Role, &c.Peer.AvatarURL,
			&c.LastMessage.Content, &c.LastMessage.HasAttachment,
			&c.LastMessage.CreatedAt, &c.LastMessage.FromMe,
			&c.UnreadCount, &c.RelatedJobID); err != nil {
			return nil, fmt.Errorf("convRepo.ListForUser scan: %w", err)
		}
		conversations = append(conversations, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("convRepo.ListForUser rows: %w", err)
	}
	return conversations, nil
}

// UnreadTotal counts all unread incoming messages for the badge in the header.
func (r *ConversationRepository) UnreadTotal(ctx context.Context, userID string) (int, error) {
	defer logger.DeferLogDuration("conv.UnreadTotal", time.Now())()
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages WHERE receiver_id = $1 AND read = false`, userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("convRepo.UnreadTotal: %w", err)
	}
	return count, nil
}
