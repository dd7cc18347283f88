package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/draftwing/convoscribe/internal/domain"
	"github.com/draftwing/convoscribe/internal/repository"
)

func record(id, assistantID string) *domain.ConversationRecord {
	return &domain.ConversationRecord{
		ID:            id,
		ProjectID:     "proj-1",
		UserText:      "Add a login button",
		AssistantText: "done",
		Timestamp:     time.Now(),
		Context:       map[string]string{"assistant_message_id": assistantID},
	}
}

func TestMemoryStoreSaveAndSkip(t *testing.T) {
	s := repository.NewMemoryConversationStore()
	ctx := context.Background()

	res, err := s.Save(ctx, record("rec-1", "assistant-message-a"))
	require.NoError(t, err)
	require.True(t, res.Success)
	require.False(t, res.Skipped)

	// Same assistant-derived key under a different record id is the
	// store-level duplicate case.
	res, err = s.Save(ctx, record("rec-2", "assistant-message-a"))
	require.NoError(t, err)
	require.True(t, res.Success)
	require.True(t, res.Skipped)

	require.Len(t, s.All(), 1)
}

func TestMemoryStoreFallsBackToRecordID(t *testing.T) {
	s := repository.NewMemoryConversationStore()
	ctx := context.Background()

	rec := record("rec-1", "")
	rec.Context = nil
	res, err := s.Save(ctx, rec)
	require.NoError(t, err)
	require.False(t, res.Skipped)

	res, err = s.Save(ctx, rec)
	require.NoError(t, err)
	require.True(t, res.Skipped)
}
