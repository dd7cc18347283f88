package capture_test

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

// completeReply satisfies the completeness gate: an acknowledgement near
// the start, a concluding phrase, and well over the minimum length.
const completeReply = `I'll add a login button to the navigation bar for you. ` +
	`The component renders a styled button wired to the existing auth flow, and the ` +
	`navigation layout keeps its spacing on small screens. The changes are in place ` +
	`and the button should now appear in the header. Let me know if you want different styling.`

func parseDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func container(t *testing.T, html string) *goquery.Selection {
	t.Helper()
	sel := parseDoc(t, html).Find("div.conversation-container").First()
	require.Equal(t, 1, sel.Length(), "fixture must contain a conversation container")
	return sel
}

func userNode(id, text string) string {
	return `<div data-message-id="` + id + `">` +
		`<div class="whitespace-pre-wrap">` + text + `</div>` +
		`<button>Copy</button>` +
		`</div>`
}

func assistantNode(id, body string) string {
	return `<div data-message-id="` + id + `">` +
		`<div class="message-header"><span>3:45 PM on May 12, 2025</span></div>` +
		`<div class="prose">` + body + `</div>` +
		`</div>`
}

func conversation(nodes ...string) string {
	return `<html><body><div class="conversation-container">` +
		strings.Join(nodes, "") +
		`</div></body></html>`
}
