package capture_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/draftwing/convoscribe/internal/capture"
	"github.com/draftwing/convoscribe/internal/domain"
)

func nodeFrom(t *testing.T, html, id string, pos float64) *domain.MessageNode {
	t.Helper()
	sel := parseDoc(t, html).Find(`[data-message-id="` + id + `"]`).First()
	require.Equal(t, 1, sel.Length())
	return &domain.MessageNode{RawIdentifier: id, DOMPosition: pos, Root: sel}
}

func TestExtractUserMessage(t *testing.T) {
	e := capture.NewExtractor()
	html := conversation(userNode("user-message-abc1", "Add a login button"))

	msg := e.Extract(nodeFrom(t, html, "user-message-abc1", 100))
	require.NotNil(t, msg)
	require.Equal(t, domain.SpeakerUser, msg.Speaker)
	require.Equal(t, "Add a login button", msg.Content, "button text must be stripped")
	require.Equal(t, 100.0, msg.DOMPosition)
	require.False(t, msg.UUIDFallback)
	require.False(t, msg.Timestamp.IsZero())
}

func TestExtractAssistantMessage(t *testing.T) {
	e := capture.NewExtractor()
	html := conversation(assistantNode("assistant-message-def2", completeReply))

	msg := e.Extract(nodeFrom(t, html, "assistant-message-def2", 200))
	require.NotNil(t, msg)
	require.Equal(t, domain.SpeakerAssistant, msg.Speaker)
	require.Equal(t, completeReply, msg.Content)

	// Header timestamp is parsed to an absolute time.
	want := time.Date(2025, time.May, 12, 15, 45, 0, 0, time.Local)
	require.Equal(t, want, msg.Timestamp)
}

func TestExtractAssistantConcatenatesProseBlocks(t *testing.T) {
	e := capture.NewExtractor()
	html := conversation(
		`<div data-message-id="assistant-message-x9">` +
			`<div class="prose">First block.</div>` +
			`<button><div class="prose">inside a button</div></button>` +
			`<div class="prose" aria-hidden="true">invisible</div>` +
			`<div class="prose">Second block.</div>` +
			`</div>`,
	)

	msg := e.Extract(nodeFrom(t, html, "assistant-message-x9", 0))
	require.NotNil(t, msg)
	require.Equal(t, "First block.\n\nSecond block.", msg.Content)
}

func TestExtractUUIDFallbackIsUser(t *testing.T) {
	e := capture.NewExtractor()
	html := conversation(userNode("7c9e6679-7425-40de-944b-e07fc1f90ae7", "fasfasfas"))

	msg := e.Extract(nodeFrom(t, html, "7c9e6679-7425-40de-944b-e07fc1f90ae7", 0))
	require.NotNil(t, msg)
	require.Equal(t, domain.SpeakerUser, msg.Speaker)
	require.Equal(t, "fasfasfas", msg.Content)
	require.True(t, msg.UUIDFallback)
}

func TestExtractRestorationNotice(t *testing.T) {
	e := capture.NewExtractor()
	html := conversation(
		`<div data-message-id="7c9e6679-7425-40de-944b-e07fc1f90ae7">` +
			`<div data-restored-checkpoint="Checkpoint 3">Restored</div>` +
			`</div>`,
	)

	// The restoration marker wins over the UUID-as-user convention.
	msg := e.Extract(nodeFrom(t, html, "7c9e6679-7425-40de-944b-e07fc1f90ae7", 0))
	require.NotNil(t, msg)
	require.Equal(t, domain.SpeakerSystem, msg.Speaker)
	require.Equal(t, "Restored checkpoint: Checkpoint 3", msg.Content)
}

func TestExtractUnknownSpeakerReturnsNil(t *testing.T) {
	e := capture.NewExtractor()
	html := conversation(`<div data-message-id="toolbar-widget">chrome</div>`)

	require.Nil(t, e.Extract(nodeFrom(t, html, "toolbar-widget", 0)))
}

func TestExtractEmptyContentReturnsNil(t *testing.T) {
	e := capture.NewExtractor()
	html := conversation(
		`<div data-message-id="user-message-empty"><button>Copy</button>   </div>`,
	)

	require.Nil(t, e.Extract(nodeFrom(t, html, "user-message-empty", 0)))
}

func TestExtractIsStableOnUnchangedDOM(t *testing.T) {
	e := capture.NewExtractor()
	html := conversation(assistantNode("assistant-message-def2", completeReply))

	first := e.Extract(nodeFrom(t, html, "assistant-message-def2", 0))
	second := e.Extract(nodeFrom(t, html, "assistant-message-def2", 0))
	require.NotNil(t, first)
	require.NotNil(t, second)
	require.Equal(t, first.Content, second.Content, "extraction must be deterministic over a settled DOM")
}
