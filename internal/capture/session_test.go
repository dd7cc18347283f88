package capture_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/draftwing/convoscribe/internal/capture"
	"github.com/draftwing/convoscribe/internal/domain"
)

func captured(id, content string, speaker domain.Speaker) *domain.CapturedMessage {
	return &domain.CapturedMessage{
		ID:        id,
		Speaker:   speaker,
		Content:   content,
		Timestamp: time.Now(),
	}
}

func TestSessionDedupByID(t *testing.T) {
	s := capture.NewSession()

	msg := captured("user-message-a", "Add a login button", domain.SpeakerUser)
	require.False(t, s.IsDuplicate(msg))
	s.Accept(msg)

	require.True(t, s.Seen("user-message-a"))
	require.True(t, s.IsDuplicate(captured("user-message-a", "different content", domain.SpeakerUser)))
	require.Len(t, s.Captured(), 1)
}

func TestSessionFuzzyDedupByFingerprint(t *testing.T) {
	s := capture.NewSession()
	s.Accept(captured("user-message-a", "Add a login button", domain.SpeakerUser))

	// Identical content and speaker under a fresh DOM id within the
	// tolerance window is the host re-rendering, not a new message.
	rerendered := captured("user-message-b", "Add a login button", domain.SpeakerUser)
	require.True(t, s.IsDuplicate(rerendered))

	// Same content from the other speaker is not a duplicate.
	echoed := captured("assistant-message-c", "Add a login button", domain.SpeakerAssistant)
	require.False(t, s.IsDuplicate(echoed))
}

func TestSessionProcessedSetIsMonotonic(t *testing.T) {
	s := capture.NewSession()

	s.MarkProcessed("user-message-a")
	s.MarkIgnored("user-message-b", capture.IgnoreScriptedPrompt)
	s.Accept(captured("user-message-c", "hello there", domain.SpeakerUser))

	for _, id := range []string{"user-message-a", "user-message-b", "user-message-c"} {
		require.True(t, s.Seen(id))
	}

	rule, ok := s.IgnoredRule("user-message-b")
	require.True(t, ok)
	require.Equal(t, capture.IgnoreScriptedPrompt, rule)
	_, ok = s.IgnoredRule("user-message-a")
	require.False(t, ok)
}

func TestSessionReset(t *testing.T) {
	s := capture.NewSession()
	s.Accept(captured("user-message-a", "hello there", domain.SpeakerUser))
	s.SetPendingGroup(&domain.MessageGroup{ID: "pending"})
	s.MarkScanned(time.Now())

	s.Reset()

	require.False(t, s.Seen("user-message-a"))
	require.Empty(t, s.Captured())
	require.Nil(t, s.PendingGroup())
	require.True(t, s.LastScan().IsZero())
	require.False(t, s.IsDuplicate(captured("user-message-a", "hello there", domain.SpeakerUser)))
}

func TestSessionGroupEmittedOnce(t *testing.T) {
	s := capture.NewSession()

	require.False(t, s.GroupEmitted("assistant-message-x"))
	require.True(t, s.GroupEmitted("assistant-message-x"))
}
