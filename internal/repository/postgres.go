package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/draftwing/convoscribe/internal/domain"
)

// ConversationRepository persists exchanges to Postgres. Duplicate
// detection is keyed on the assistant-derived message id, so a page reload
// re-offering the same conversation upserts into a no-op.
type ConversationRepository struct {
	db *pgxpool.Pool
}

func NewConversationRepository(db *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) Save(ctx context.Context, rec *domain.ConversationRecord) (domain.SaveResult, error) {
	dedupKey := rec.Context["assistant_message_id"]
	if dedupKey == "" {
		dedupKey = rec.ID
	}

	tag, err := r.db.Exec(ctx, `
		INSERT INTO conversations (id, dedup_key, project_id, user_text, assistant_text, captured_at, categories, context)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (dedup_key) DO NOTHING
	`, rec.ID, dedupKey, rec.ProjectID, rec.UserText, rec.AssistantText, rec.Timestamp, rec.Categories, rec.Context)
	if err != nil {
		return domain.SaveResult{}, fmt.Errorf("insert conversation: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return domain.SaveResult{Success: true, Skipped: true}, nil
	}
	return domain.SaveResult{Success: true}, nil
}
