package capture

import (
	"strings"

	"github.com/draftwing/convoscribe/internal/config"
	"github.com/draftwing/convoscribe/internal/domain"
)

// Evaluator decides whether an assistant message has finished rendering.
// The host page streams replies incrementally; capturing on the first
// mutation would persist a truncated answer, so capture trades latency for
// never truncating.
type Evaluator struct {
	thinking  []string
	summary   []string
	work      []string
	minLength int
}

func NewEvaluator() *Evaluator {
	return &Evaluator{
		thinking:  config.ThinkingPhrases,
		summary:   config.SummaryPhrases,
		work:      config.WorkMarkers,
		minLength: config.MinCompleteLength,
	}
}

// IsComplete gates assistant messages. User and system messages are always
// complete. An assistant message is complete iff the opening acknowledgement
// signal and the concluding summary signal both hold and the content exceeds
// the minimum length. The work signal (code blocks) is informative only —
// short valid replies may have none.
func (e *Evaluator) IsComplete(msg *domain.CapturedMessage) bool {
	if msg.Speaker != domain.SpeakerAssistant {
		return true
	}
	content := msg.Content
	if len(content) <= e.minLength {
		return false
	}
	return e.hasThinkingSignal(content) && e.hasSummarySignal(content)
}

// HasWorkSignal reports whether the reply contains code blocks or similar
// work artifacts. Informative only; never required for completeness.
func (e *Evaluator) HasWorkSignal(content string) bool {
	lower := strings.ToLower(content)
	for _, marker := range e.work {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// hasThinkingSignal checks for explanatory/acknowledgement phrasing near
// the start of the reply.
func (e *Evaluator) hasThinkingSignal(content string) bool {
	head := strings.ToLower(content)
	if len(head) > 160 {
		head = head[:160]
	}
	for _, phrase := range e.thinking {
		if strings.Contains(head, phrase) {
			return true
		}
	}
	return false
}

// hasSummarySignal checks for concluding phrasing in the tail, or accepts
// a sufficiently long reply that ends with terminal punctuation.
func (e *Evaluator) hasSummarySignal(content string) bool {
	tail := strings.ToLower(content)
	if len(tail) > 400 {
		tail = tail[len(tail)-400:]
	}
	for _, phrase := range e.summary {
		if strings.Contains(tail, phrase) {
			return true
		}
	}
	trimmed := strings.TrimSpace(content)
	if len(trimmed) < e.minLength {
		return false
	}
	switch trimmed[len(trimmed)-1] {
	case '.', '!', '?':
		return true
	}
	return false
}
