package capture

import (
	"log/slog"
	"runtime/debug"

	"github.com/PuerkitoBio/goquery"

	"github.com/draftwing/convoscribe/internal/config"
	"github.com/draftwing/convoscribe/internal/domain"
)

// Snapshot is one observed state of the chat container. Positions carries
// real vertical offsets per message id when the page source can compute
// them; absent entries fall back to synthetic document-order spacing.
type Snapshot struct {
	Container *goquery.Selection
	Positions map[string]float64
}

// Scanner runs one full scan pass: walk every message node in document
// order, extract, gate, filter, dedup, classify, then pair. It decides what
// a scan finds, never when one runs — scheduling lives elsewhere.
type Scanner struct {
	extractor  *Extractor
	evaluator  *Evaluator
	classifier *Classifier
	pairer     *Pairer
}

func NewScanner() *Scanner {
	classifier := NewClassifier()
	return &Scanner{
		extractor:  NewExtractor(),
		evaluator:  NewEvaluator(),
		classifier: classifier,
		pairer:     NewPairer(classifier),
	}
}

// Scan processes the snapshot against the session and returns the newly
// completed exchanges, in acceptance order. Running it again on an
// unchanged snapshot returns nothing: every accepted id is remembered, and
// incomplete assistant nodes stay unprocessed until they finish rendering.
func (sc *Scanner) Scan(session *Session, snap Snapshot, projectID string) []*domain.MessageGroup {
	if snap.Container == nil {
		return nil
	}

	var prev *domain.CapturedMessage
	var prevVerdict IgnoreVerdict

	snap.Container.Find(config.MessageNodeSelector).Each(func(i int, sel *goquery.Selection) {
		id, ok := sel.Attr("data-message-id")
		if !ok || id == "" {
			return
		}

		if session.Seen(id) {
			// Keep the running previous-message verdict coherent for
			// ignore rule evaluation across scans.
			if rule, ignored := session.IgnoredRule(id); ignored {
				prev = &domain.CapturedMessage{ID: id}
				prevVerdict = IgnoreVerdict{Ignored: true, Rule: rule}
			} else {
				prev = &domain.CapturedMessage{ID: id}
				prevVerdict = IgnoreVerdict{}
			}
			return
		}

		msg := sc.processNode(session, snap, id, i, sel, prev, prevVerdict)
		if msg != nil {
			prev = msg
			prevVerdict, _ = verdictOf(session, msg.ID)
		}
	})

	groups := sc.pairer.Pair(session, projectID)
	return groups
}

// processNode handles a single unprocessed node. It is defensively total: a
// panic from malformed markup is logged and the node skipped, so one bad
// node cannot halt the scan over the rest of the document.
func (sc *Scanner) processNode(session *Session, snap Snapshot, id string, index int, sel *goquery.Selection, prev *domain.CapturedMessage, prevVerdict IgnoreVerdict) (result *domain.CapturedMessage) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic processing message node",
				"message_id", id,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			result = nil
		}
	}()

	node := &domain.MessageNode{
		RawIdentifier: id,
		DOMPosition:   positionOf(snap, id, index),
		Root:          sel,
	}

	msg := sc.extractor.Extract(node)
	if msg == nil {
		// Not extractable yet; the node may become so on a later scan.
		return nil
	}

	if !sc.evaluator.IsComplete(msg) {
		// Still rendering. Never marked processed, never dropped; it is
		// re-evaluated on every scan until it stabilizes. The work signal
		// is informative only and never gates completeness.
		slog.Debug("assistant reply still rendering",
			"message_id", msg.ID,
			"length", len(msg.Content),
			"has_work", sc.evaluator.HasWorkSignal(msg.Content),
		)
		return nil
	}

	verdict := ShouldIgnore(msg, prev, prevVerdict)
	if verdict.Ignored {
		session.MarkIgnored(msg.ID, verdict.Rule)
		slog.Debug("message suppressed", "message_id", msg.ID, "rule", int(verdict.Rule))
		return msg
	}

	if session.IsDuplicate(msg) {
		session.MarkProcessed(msg.ID)
		return nil
	}

	if msg.Speaker == domain.SpeakerUser {
		msg.Categories = sc.classifier.Classify(msg.Content)
	}

	session.Accept(msg)
	slog.Debug("message captured",
		"message_id", msg.ID,
		"speaker", string(msg.Speaker),
		"length", len(msg.Content),
	)
	return msg
}

func verdictOf(session *Session, id string) (IgnoreVerdict, bool) {
	if rule, ok := session.IgnoredRule(id); ok {
		return IgnoreVerdict{Ignored: true, Rule: rule}, true
	}
	return IgnoreVerdict{}, false
}

func positionOf(snap Snapshot, id string, index int) float64 {
	if pos, ok := snap.Positions[id]; ok {
		return pos
	}
	return float64(index) * config.SyntheticRowHeight
}
