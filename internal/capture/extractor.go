package capture

import (
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"github.com/draftwing/convoscribe/internal/config"
	"github.com/draftwing/convoscribe/internal/domain"
)

// Matcher is one strategy for pulling content out of a message subtree.
// It returns "" when the strategy does not apply to this node.
type Matcher interface {
	TryExtract(sel *goquery.Selection) string
}

// MatcherFunc adapts a function to the Matcher interface.
type MatcherFunc func(sel *goquery.Selection) string

func (f MatcherFunc) TryExtract(sel *goquery.Selection) string { return f(sel) }

// Extractor maps one MessageNode to a CapturedMessage. It is defensively
// total: malformed nodes yield nil, never an error, so one bad node cannot
// halt a scan over the rest of the document.
type Extractor struct {
	userMatchers      []Matcher
	assistantMatchers []Matcher
	now               func() time.Time
}

func NewExtractor() *Extractor {
	e := &Extractor{now: time.Now}
	for _, sel := range config.UserContentSelectors {
		e.userMatchers = append(e.userMatchers, selectorMatcher(sel, false))
	}
	e.userMatchers = append(e.userMatchers, MatcherFunc(strippedText))
	for _, sel := range config.AssistantContentSelectors {
		e.assistantMatchers = append(e.assistantMatchers, selectorMatcher(sel, true))
	}
	e.assistantMatchers = append(e.assistantMatchers, MatcherFunc(strippedText))
	return e
}

// Extract reads one message node. Nil return means the node is not (yet)
// extractable — unknown speaker or empty content — and may be retried on a
// later scan; it is a filter outcome, not a failure.
func (e *Extractor) Extract(node *domain.MessageNode) *domain.CapturedMessage {
	if node == nil || node.Root == nil {
		return nil
	}

	speaker, fromUUID := ClassifySpeaker(node)
	if speaker == domain.SpeakerUnknown {
		return nil
	}

	var content string
	var ts time.Time
	switch speaker {
	case domain.SpeakerUser:
		content = firstMatch(e.userMatchers, node.Root)
	case domain.SpeakerAssistant:
		content = firstMatch(e.assistantMatchers, node.Root)
		ts = extractHeaderTimestamp(node.Root)
	case domain.SpeakerSystem:
		content = restorationContent(node.Root)
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	if ts.IsZero() {
		ts = e.now()
	}

	return &domain.CapturedMessage{
		ID:           node.RawIdentifier,
		Speaker:      speaker,
		Content:      content,
		Timestamp:    ts,
		DOMPosition:  node.DOMPosition,
		UUIDFallback: fromUUID,
	}
}

// ClassifySpeaker resolves the speaker with ordered precedence: the
// role-prefixed identifier convention is definitive; a bare UUID is treated
// as a user message by convention; a restoration marker forces system
// regardless of identifier shape; anything else is unknown and skipped.
func ClassifySpeaker(node *domain.MessageNode) (speaker domain.Speaker, fromUUID bool) {
	id := node.RawIdentifier
	switch {
	case strings.HasPrefix(id, config.UserIDPrefix):
		return domain.SpeakerUser, false
	case strings.HasPrefix(id, config.AssistantIDPrefix):
		return domain.SpeakerAssistant, false
	}
	if hasRestorationMarker(node.Root) || strings.Contains(id, config.RestorationIDMarker) {
		return domain.SpeakerSystem, false
	}
	if _, err := uuid.Parse(id); err == nil {
		return domain.SpeakerUser, true
	}
	return domain.SpeakerUnknown, false
}

// selectorMatcher builds a Matcher over one structural selector. In concat
// mode every matching block's text is joined in document order (assistant
// prose blocks); otherwise the first non-empty match wins (user content
// wrappers).
func selectorMatcher(selector string, concat bool) Matcher {
	return MatcherFunc(func(sel *goquery.Selection) string {
		var parts []string
		sel.Find(selector).Each(func(_ int, block *goquery.Selection) {
			if insideButton(block) || isInvisible(block) {
				return
			}
			text := strings.TrimSpace(cleanText(block))
			if text == "" {
				return
			}
			if concat {
				parts = append(parts, text)
			} else if len(parts) == 0 {
				parts = append(parts, text)
			}
		})
		return strings.Join(parts, "\n\n")
	})
}

// strippedText is the full-subtree fallback: read all text after removing
// interactive/UI sub-elements.
func strippedText(sel *goquery.Selection) string {
	return strings.TrimSpace(cleanText(sel))
}

// cleanText reads text from a clone of the selection with UI elements
// removed, so the host DOM itself is never mutated.
func cleanText(sel *goquery.Selection) string {
	clone := sel.Clone()
	for _, strip := range config.StripSelectors {
		clone.Find(strip).Remove()
	}
	return clone.Text()
}

func insideButton(sel *goquery.Selection) bool {
	return sel.ParentsFiltered("button").Length() > 0
}

func isInvisible(sel *goquery.Selection) bool {
	if _, ok := sel.Attr("hidden"); ok {
		return true
	}
	if v, ok := sel.Attr("aria-hidden"); ok && v == "true" {
		return true
	}
	style, _ := sel.Attr("style")
	return strings.Contains(style, "display:none") || strings.Contains(style, "display: none")
}

func hasRestorationMarker(sel *goquery.Selection) bool {
	if sel == nil {
		return false
	}
	for _, marker := range config.RestorationMarkerSelectors {
		if sel.Find(marker).Length() > 0 || sel.Is(marker) {
			return true
		}
	}
	return false
}

// restorationContent synthesizes a fixed message for checkpoint
// restoration banners, carrying the checkpoint label when present.
func restorationContent(sel *goquery.Selection) string {
	label := ""
	for _, marker := range config.RestorationMarkerSelectors {
		node := sel.Find(marker).First()
		if node.Length() == 0 && sel.Is(marker) {
			node = sel
		}
		if node.Length() == 0 {
			continue
		}
		if v, ok := node.Attr("data-restored-checkpoint"); ok && strings.TrimSpace(v) != "" {
			label = strings.TrimSpace(v)
			break
		}
		if text := strings.TrimSpace(node.Text()); text != "" {
			label = text
			break
		}
	}
	if label == "" {
		return "Restored checkpoint"
	}
	return fmt.Sprintf("Restored checkpoint: %s", label)
}

// extractHeaderTimestamp looks for a "<time> on <date>" header label and
// parses it. Zero time means no parseable label; the caller defaults to
// capture time.
func extractHeaderTimestamp(sel *goquery.Selection) time.Time {
	for _, headerSel := range config.TimestampHeaderSelectors {
		var found time.Time
		sel.Find(headerSel).EachWithBreak(func(_ int, h *goquery.Selection) bool {
			text := strings.TrimSpace(h.Text())
			if !strings.Contains(text, " on ") {
				return true
			}
			for _, layout := range config.TimestampLayouts {
				if ts, err := time.ParseInLocation(layout, text, time.Local); err == nil {
					found = ts
					return false
				}
			}
			return true
		})
		if !found.IsZero() {
			return found
		}
	}
	return time.Time{}
}

func firstMatch(matchers []Matcher, sel *goquery.Selection) string {
	for _, m := range matchers {
		if content := m.TryExtract(sel); strings.TrimSpace(content) != "" {
			return content
		}
	}
	return ""
}
