package capture

import (
	"strings"

	"github.com/draftwing/convoscribe/internal/config"
	"github.com/draftwing/convoscribe/internal/domain"
)

// IgnoreVerdict says whether a message is noise and under which rule.
type IgnoreVerdict struct {
	Ignored bool
	Rule    IgnoreRule
}

type IgnoreRule int

const (
	IgnoreNone IgnoreRule = iota
	IgnoreSystemSpeaker
	IgnoreRestorationBanner
	IgnoreScriptedPrompt
	IgnoreRefactorAck
	IgnoreReplyToIgnored
)

// ShouldIgnore is a stateless predicate over the current message and the
// previous message in scan order (with the verdict that message received).
// Rules run in order; the first match wins. Messages that are real DOM
// content but not meaningful conversation — restoration banners, automated
// error-report templates, refactor-command echoes and their acknowledgement
// replies — are suppressed here rather than persisted.
func ShouldIgnore(msg *domain.CapturedMessage, prev *domain.CapturedMessage, prevVerdict IgnoreVerdict) IgnoreVerdict {
	content := strings.TrimSpace(msg.Content)

	if msg.Speaker == domain.SpeakerSystem {
		return IgnoreVerdict{Ignored: true, Rule: IgnoreSystemSpeaker}
	}
	// Defense in depth when a restoration banner escaped speaker
	// classification.
	if strings.HasPrefix(content, config.RestorationBannerPrefix) {
		return IgnoreVerdict{Ignored: true, Rule: IgnoreRestorationBanner}
	}
	if msg.Speaker == domain.SpeakerUser {
		if strings.HasPrefix(content, config.RefactorCommandPrefix) ||
			strings.HasPrefix(content, config.ErrorReportPrefix) {
			return IgnoreVerdict{Ignored: true, Rule: IgnoreScriptedPrompt}
		}
	}
	if msg.Speaker == domain.SpeakerAssistant {
		if strings.HasPrefix(content, config.RefactorAckPrefix) {
			return IgnoreVerdict{Ignored: true, Rule: IgnoreRefactorAck}
		}
		// The reply to a suppressed scripted prompt is itself noise.
		if prev != nil && prevVerdict.Ignored && prevVerdict.Rule == IgnoreScriptedPrompt {
			return IgnoreVerdict{Ignored: true, Rule: IgnoreReplyToIgnored}
		}
	}
	return IgnoreVerdict{}
}
