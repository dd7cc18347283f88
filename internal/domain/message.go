package domain

import (
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Speaker identifies who produced a chat turn.
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
	SpeakerSystem    Speaker = "system"
	SpeakerUnknown   Speaker = "unknown"
)

// MessageNode is a read-only view of one message element in the host page.
// The host page owns the markup; this system only observes it.
type MessageNode struct {
	// RawIdentifier is the DOM-provided message id. It may be role-prefixed,
	// a bare UUID, or a restoration/system marker.
	RawIdentifier string

	// DOMPosition is the vertical offset of the element in pixels, used for
	// ordering when DOM insertion order is unreliable.
	DOMPosition float64

	// Root is the subtree containing this message's markup.
	Root *goquery.Selection
}

// Categories holds topic tags assigned by the classifier.
type Categories struct {
	Primary   []string
	Secondary []string
}

// Clone returns an independent copy so pairing can propagate tags without
// aliasing the source message's slices.
func (c Categories) Clone() Categories {
	out := Categories{}
	if len(c.Primary) > 0 {
		out.Primary = append([]string(nil), c.Primary...)
	}
	if len(c.Secondary) > 0 {
		out.Secondary = append([]string(nil), c.Secondary...)
	}
	return out
}

// CapturedMessage is one extracted chat turn. It is immutable after
// extraction except for Categories and Timestamp, which the pairing step
// may overwrite exactly once.
type CapturedMessage struct {
	ID          string
	Speaker     Speaker
	Content     string
	Timestamp   time.Time
	Categories  Categories
	DOMPosition float64

	// UUIDFallback marks messages whose speaker was assigned "user" purely
	// because the identifier was a bare UUID. The pairing repair pass uses
	// this to revisit their classification.
	UUIDFallback bool
}
