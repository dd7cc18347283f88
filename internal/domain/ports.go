package domain

import "context"

// SaveResult reports the outcome of persisting one conversation record.
// Skipped means the store already held an equivalent record and treated the
// call as a no-op; callers must treat it as success.
type SaveResult struct {
	Success bool
	Skipped bool
}

// ConversationStore persists completed exchanges. Implementations own their
// retry and duplicate-detection policy.
type ConversationStore interface {
	Save(ctx context.Context, rec *ConversationRecord) (SaveResult, error)
}

// Authenticator reports whether capture is allowed to run. Monitoring must
// not start, and records must not be flushed, while unauthenticated; capture
// resumes without losing in-memory state once authentication returns.
type Authenticator interface {
	IsAuthenticated(ctx context.Context) bool
	CurrentUserID(ctx context.Context) (string, bool)
}

// ProjectResolver supplies the confirmed project correlation id. Capture
// must not guess one or start before it is available.
type ProjectResolver interface {
	ProjectID(ctx context.Context) (string, bool)
}
