package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sandevgo/companion/internal/core"
)

type ChatLogRepo struct {
	db *sql.DB
}

func NewChatLogRepo(db *sql.DB) *ChatLogRepo {
	return &ChatLogRepo{db: db}
}

func (r *ChatLogRepo) AddRecord(ctx context.Context, rec core.ChatRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	query := `INSERT INTO chat_messages (sender_id, sender_name, message, reply, created_at) VALUES (?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, rec.SenderID, rec.SenderName, rec.Message, rec.Reply, rec.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert chat record: %w", err)
	}
	return nil
}

// GetRecords returns the last limit records of a sender in chronological order.
func (r *ChatLogRepo) GetRecords(ctx context.Context, senderID string, limit int) ([]core.ChatRecord, error) {
	query := `SELECT id, sender_id, sender_name, message, reply, created_at
		FROM chat_messages WHERE sender_id = ? ORDER BY id DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, senderID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat records: %w", err)
	}
	defer rows.Close()

	var records []core.ChatRecord
	for rows.Next() {
		var rec core.ChatRecord
		var reply sql.NullString
		if err := rows.Scan(&rec.ID, &rec.SenderID, &rec.SenderName, &rec.Message, &reply, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat record: %w", err)
		}
		rec.Reply = reply.String
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to chronological order
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}
