package browser

import (
	"github.com/PuerkitoBio/goquery"

	"github.com/draftwing/convoscribe/internal/config"
)

// FindContainer locates the chat container in a parsed document using the
// discovery fallback chain: configured CSS patterns in order, then the
// deepest element holding at least two message nodes, then the document
// root. Each fallback is tried only after the previous one yields zero
// candidates. Nil means the page layout is not ready yet — a transient
// condition the caller retries, not an error.
func FindContainer(doc *goquery.Document) *goquery.Selection {
	for _, selector := range config.ContainerSelectors {
		if sel := doc.Find(selector).First(); sel.Length() > 0 {
			return sel
		}
	}
	if sel := deepestMessageHolder(doc); sel != nil {
		return sel
	}
	if body := doc.Find("body").First(); body.Length() > 0 && body.Find(config.MessageNodeSelector).Length() > 0 {
		return body
	}
	return nil
}

// deepestMessageHolder finds the most specific element still containing at
// least two message nodes, so observation covers the conversation without
// watching the whole page.
func deepestMessageHolder(doc *goquery.Document) *goquery.Selection {
	var best *goquery.Selection
	bestDepth := -1
	doc.Find("div, main, section").Each(func(_ int, sel *goquery.Selection) {
		if sel.Find(config.MessageNodeSelector).Length() < 2 {
			return
		}
		depth := sel.Parents().Length()
		if depth > bestDepth {
			best = sel
			bestDepth = depth
		}
	})
	return best
}
