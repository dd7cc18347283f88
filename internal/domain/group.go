package domain

import "time"

// MessageGroup is one logical exchange: a user prompt paired with the
// assistant reply that answers it. It is only constructed once both sides
// are captured and the assistant side is judged complete.
type MessageGroup struct {
	ID               string
	UserID           string
	AssistantID      string
	UserContent      string
	AssistantContent string
	Timestamp        time.Time
	Categories       Categories
	ProjectID        string
}

// Record flattens the group into the wire form the conversation store
// consumes. The context map carries the assistant-derived key the store
// uses for its own duplicate detection.
func (g *MessageGroup) Record() *ConversationRecord {
	tags := append([]string(nil), g.Categories.Primary...)
	tags = append(tags, g.Categories.Secondary...)
	return &ConversationRecord{
		ID:            g.ID,
		ProjectID:     g.ProjectID,
		UserText:      g.UserContent,
		AssistantText: g.AssistantContent,
		Timestamp:     g.Timestamp,
		Categories:    tags,
		Context: map[string]string{
			"assistant_message_id": g.AssistantID,
			"user_message_id":      g.UserID,
		},
	}
}

// ConversationRecord is the unit handed to the persistence collaborator.
type ConversationRecord struct {
	ID            string
	ProjectID     string
	UserText      string
	AssistantText string
	Timestamp     time.Time
	Categories    []string
	Context       map[string]string
}
