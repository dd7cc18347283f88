package config

import "time"

const (
	// Scan scheduling
	DebounceWindow    = 1 * time.Second
	CooldownRegular   = 4 * time.Second
	CooldownFast      = 1500 * time.Millisecond
	DiscoveryInterval = 4 * time.Second

	// Completeness gate
	MinCompleteLength = 200

	// Dedup
	FingerprintWindow = 2 * time.Second
	FingerprintPurge  = 30 * time.Second

	// Pairing
	PairProximityPx = 500.0

	// Flush
	DefaultFlushBatch = 5

	// Synthetic vertical spacing assigned when real layout offsets are
	// unavailable (snapshot-only scans).
	SyntheticRowHeight = 100.0
)

// Identifier conventions on the host page.
const (
	UserIDPrefix        = "user-message-"
	AssistantIDPrefix   = "assistant-message-"
	RestorationIDMarker = "restoration"
)

// MessageNodeSelector matches any element carrying a message identifier.
const MessageNodeSelector = "[data-message-id]"

// ContainerSelectors is the discovery fallback chain for the chat
// container. Each entry is tried only after the previous yields nothing.
var ContainerSelectors = []string{
	"div.conversation-container",
	"main [class*='chat-panel']",
	"body > div > main > div > div",
}

// UserContentSelectors locate the narrowest content-bearing element of a
// user message, in priority order.
var UserContentSelectors = []string{
	".whitespace-pre-wrap",
	"[class*='justify-end'] [class*='bg-secondary']",
	"[class*='user-content']",
}

// AssistantContentSelectors locate assistant rich-content blocks.
var AssistantContentSelectors = []string{
	".prose",
	"[class*='prose']",
	"[class*='markdown-body']",
}

// StripSelectors are interactive/UI sub-elements removed before reading
// text out of a message subtree.
var StripSelectors = []string{
	"button",
	"svg",
	".sr-only",
	"[hidden]",
	"[aria-hidden='true']",
	"[class*='tooltip']",
}

// RestorationMarkerSelectors identify system/restoration notices.
var RestorationMarkerSelectors = []string{
	"[class*='restoration']",
	"[data-restored-checkpoint]",
}

// TimestampHeaderSelectors are header-label elements that may carry an
// absolute "<time> on <date>" label for assistant messages.
var TimestampHeaderSelectors = []string{
	"[class*='message-header'] span",
	"h5",
}

// TimestampLayouts accepted for the "<time> on <date>" label.
var TimestampLayouts = []string{
	"3:04 PM on January 2, 2006",
	"15:04 on January 2, 2006",
	"3:04 PM on Jan 2, 2006",
}

// Completeness phrase sets. These track one host application's current
// output style and are data, not logic; deployments override them as the
// phrasing drifts.
var (
	ThinkingPhrases = []string{
		"i'll",
		"i will",
		"let me",
		"looking at",
		"sure,",
		"certainly",
		"to do this",
		"first,",
	}
	SummaryPhrases = []string{
		"in summary",
		"to summarize",
		"this completes",
		"the changes",
		"should now",
		"let me know",
		"you can now",
		"that's it",
	}
	WorkMarkers = []string{
		"```",
		"<pre",
		"<code",
	}
)

// Ignore-rule literals, matched as prefixes on normalized content.
var (
	RestorationBannerPrefix = "Restored checkpoint"
	ErrorReportPrefix       = "For the code present, I get the error below"
	RefactorCommandPrefix   = "Refactor the selected code"
	RefactorAckPrefix       = "I'll refactor"
)

// DefaultPrimaryCategory is the placeholder assigned when no keyword
// matches; the pairing repair pass treats it as "not yet classified".
const DefaultPrimaryCategory = "General"

// PrimaryKeywords maps primary categories to the keywords that select them.
var PrimaryKeywords = map[string][]string{
	"Functioning":   {"add", "implement", "create", "build", "make", "feature", "button", "support"},
	"Bug Fix":       {"fix", "bug", "broken", "error", "crash", "wrong", "doesn't work"},
	"Styling":       {"style", "css", "color", "layout", "font", "design", "align"},
	"Refactoring":   {"refactor", "clean up", "rename", "restructure", "simplify"},
	"Documentation": {"document", "readme", "comment", "explain"},
	"Testing":       {"test", "coverage", "assert", "mock"},
	"Performance":   {"slow", "performance", "optimize", "speed", "memory"},
	"Security":      {"security", "auth", "password", "vulnerab", "sanitize"},
}

// SecondaryKeywords maps secondary categories to their keywords.
var SecondaryKeywords = map[string][]string{
	"Frontend": {"button", "page", "screen", "ui", "component", "css", "render"},
	"Backend":  {"api", "endpoint", "server", "database", "query", "migration"},
	"Infra":    {"deploy", "docker", "ci", "pipeline", "config"},
}
