package capture

import (
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/draftwing/convoscribe/internal/config"
	"github.com/draftwing/convoscribe/internal/domain"
)

// Session holds all per-page-visit capture state. It lives for one tab
// visit, is owned by the scheduler, and is injected into the scan pass so
// tests get fresh state per case. It is destroyed on navigation/unload and
// never persisted — after a full reload the remote store deduplicates
// re-offered messages by its own content-derived key.
type Session struct {
	processedIDs map[string]struct{}
	captured     []*domain.CapturedMessage

	// fingerprints guards against the host page re-rendering identical
	// content under a fresh DOM id. Entries expire on their own so the
	// check stays a short time window, not a content-forever set.
	fingerprints *gocache.Cache

	pendingGroup  *domain.MessageGroup
	emittedGroups map[string]struct{}
	ignored       map[string]IgnoreRule

	lastScan time.Time
}

func NewSession() *Session {
	return &Session{
		processedIDs:  make(map[string]struct{}),
		emittedGroups: make(map[string]struct{}),
		ignored:       make(map[string]IgnoreRule),
		fingerprints:  gocache.New(config.FingerprintWindow, config.FingerprintPurge),
	}
}

// Seen reports whether this id was already accepted.
func (s *Session) Seen(id string) bool {
	_, ok := s.processedIDs[id]
	return ok
}

// IsDuplicate applies both dedup checks: the primary id check and the
// fuzzy fingerprint check (identical content and speaker captured within
// the tolerance window under a different id).
func (s *Session) IsDuplicate(msg *domain.CapturedMessage) bool {
	if s.Seen(msg.ID) {
		return true
	}
	_, found := s.fingerprints.Get(fingerprint(msg))
	return found
}

// Accept records the message as processed and appends it to the ordered
// capture list. The processed-id set only grows for the session lifetime.
func (s *Session) Accept(msg *domain.CapturedMessage) {
	s.processedIDs[msg.ID] = struct{}{}
	s.fingerprints.Set(fingerprint(msg), struct{}{}, gocache.DefaultExpiration)
	s.captured = append(s.captured, msg)
}

// Captured returns the session's messages in acceptance order. The slice
// is shared; callers must not reorder it.
func (s *Session) Captured() []*domain.CapturedMessage {
	return s.captured
}

// PendingGroup returns the single half-open exchange, if any.
func (s *Session) PendingGroup() *domain.MessageGroup {
	return s.pendingGroup
}

// SetPendingGroup replaces the held half-open exchange. At most one exists;
// a newly completed pair displaces any previous pending one.
func (s *Session) SetPendingGroup(g *domain.MessageGroup) {
	s.pendingGroup = g
}

// MarkProcessed records an id without capturing content, used for silently
// dropped duplicates.
func (s *Session) MarkProcessed(id string) {
	s.processedIDs[id] = struct{}{}
}

// MarkIgnored records an id as processed under an ignore rule, so later
// scans neither re-extract it nor forget which rule suppressed it.
func (s *Session) MarkIgnored(id string, rule IgnoreRule) {
	s.processedIDs[id] = struct{}{}
	s.ignored[id] = rule
}

// IgnoredRule returns the rule a processed id was suppressed under, if any.
func (s *Session) IgnoredRule(id string) (IgnoreRule, bool) {
	rule, ok := s.ignored[id]
	return rule, ok
}

// GroupEmitted reports whether an exchange with this id was already handed
// downstream, and records it otherwise.
func (s *Session) GroupEmitted(id string) bool {
	if _, ok := s.emittedGroups[id]; ok {
		return true
	}
	s.emittedGroups[id] = struct{}{}
	return false
}

// MarkScanned records when the last scan ran, for cooldown enforcement.
func (s *Session) MarkScanned(at time.Time) {
	s.lastScan = at
}

// LastScan returns the previous scan time, zero if none ran yet.
func (s *Session) LastScan() time.Time {
	return s.lastScan
}

// Reset drops all state, as on tab navigation. Explicit only.
func (s *Session) Reset() {
	s.processedIDs = make(map[string]struct{})
	s.emittedGroups = make(map[string]struct{})
	s.ignored = make(map[string]IgnoreRule)
	s.captured = nil
	s.pendingGroup = nil
	s.fingerprints.Flush()
	s.lastScan = time.Time{}
}

func fingerprint(msg *domain.CapturedMessage) string {
	return fmt.Sprintf("%s|%s", msg.Speaker, msg.Content)
}
