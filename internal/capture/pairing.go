package capture

import (
	"sort"

	"github.com/draftwing/convoscribe/internal/config"
	"github.com/draftwing/convoscribe/internal/domain"
)

// Pairer links user prompts to the assistant replies that answer them and
// reconciles the derived fields of each exchange.
type Pairer struct {
	classifier *Classifier
	proximity  float64
}

func NewPairer(classifier *Classifier) *Pairer {
	return &Pairer{classifier: classifier, proximity: config.PairProximityPx}
}

// Pair walks the session's captured messages and returns the exchanges not
// yet emitted this session. Messages are ordered by vertical DOM position,
// not capture order: asynchronous completion means an assistant reply can
// be accepted long after prompts that sit below it on the page.
//
// For each adjacent user→assistant pair the assistant inherits the user
// message's categories (replies are never classified independently), and a
// parsed assistant timestamp overwrites the user's capture-time default. A
// trailing unpaired user message is held as the single pending half-open
// exchange; it displaces any previous pending one and is not emitted until
// its reply arrives.
func (p *Pairer) Pair(session *Session, projectID string) []*domain.MessageGroup {
	msgs := make([]*domain.CapturedMessage, 0, len(session.Captured()))
	for _, m := range session.Captured() {
		if m.Speaker == domain.SpeakerSystem {
			continue
		}
		msgs = append(msgs, m)
	}
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].DOMPosition < msgs[j].DOMPosition
	})

	p.repairUUIDFallbacks(msgs)

	var groups []*domain.MessageGroup
	var pendingUser *domain.CapturedMessage
	for i := 0; i < len(msgs); i++ {
		msg := msgs[i]
		if msg.Speaker == domain.SpeakerUser {
			pendingUser = msg
			continue
		}
		if msg.Speaker != domain.SpeakerAssistant || pendingUser == nil {
			continue
		}

		user, assistant := pendingUser, msg
		pendingUser = nil

		assistant.Categories = user.Categories.Clone()
		// The assistant's render-time header timestamp is more reliable
		// than the user side's capture-time default.
		if !assistant.Timestamp.IsZero() && !assistant.Timestamp.Equal(user.Timestamp) {
			user.Timestamp = assistant.Timestamp
		}

		group := &domain.MessageGroup{
			ID:               assistant.ID,
			UserID:           user.ID,
			AssistantID:      assistant.ID,
			UserContent:      user.Content,
			AssistantContent: assistant.Content,
			Timestamp:        assistant.Timestamp,
			Categories:       user.Categories.Clone(),
			ProjectID:        projectID,
		}
		if session.GroupEmitted(group.ID) {
			continue
		}
		// A completed pair displaces whatever half-open exchange was held.
		session.SetPendingGroup(nil)
		groups = append(groups, group)
	}

	if pendingUser != nil {
		session.SetPendingGroup(&domain.MessageGroup{
			ID:          pendingUser.ID,
			UserID:      pendingUser.ID,
			UserContent: pendingUser.Content,
			Timestamp:   pendingUser.Timestamp,
			Categories:  pendingUser.Categories.Clone(),
			ProjectID:   projectID,
		})
	}
	return groups
}

// repairUUIDFallbacks revisits user messages that were only recognized via
// the bare-UUID convention and still carry the placeholder category. When
// such a message sits within the proximity threshold of a following
// assistant reply, classification is re-run so the later propagation pass
// carries real tags instead of the placeholder.
func (p *Pairer) repairUUIDFallbacks(msgs []*domain.CapturedMessage) {
	for i, msg := range msgs {
		if msg.Speaker != domain.SpeakerUser || !msg.UUIDFallback {
			continue
		}
		if !p.classifier.IsPlaceholder(msg.Categories) {
			continue
		}
		for j := i + 1; j < len(msgs); j++ {
			if msgs[j].Speaker != domain.SpeakerAssistant {
				continue
			}
			if msgs[j].DOMPosition-msg.DOMPosition > p.proximity {
				break
			}
			msg.Categories = p.classifier.Classify(msg.Content)
			break
		}
	}
}
