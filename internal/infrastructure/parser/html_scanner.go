package parser

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"HotlistTracker/internal/domain"
	"HotlistTracker/internal/scanner"
)

// HTMLScanner scrapes hot lists rendered as HTML. The item_selector option picks
// one node per entry; request selectors map raw field names to CSS selectors
// relative to that node, with an optional @attr suffix ("a@href").
// The optional next_selector option marks the presence of a next page.
type HTMLScanner struct {
	fetcher *Fetcher
	now     func() time.Time
}

var _ scanner.Scanner = (*HTMLScanner)(nil)

// NewHTMLScanner builds the strategy on top of a shared fetcher.
func NewHTMLScanner(fetcher *Fetcher) *HTMLScanner {
	return &HTMLScanner{fetcher: fetcher, now: time.Now}
}

// Name identifies the strategy inside the registry.
func (s *HTMLScanner) Name() string {
	return "html"
}

// FetchPage downloads one page and extracts an item per matched node, in document order.
func (s *HTMLScanner) FetchPage(ctx context.Context, req scanner.PageRequest) (scanner.Page, error) {
	body, err := s.fetcher.Get(ctx, req.Endpoint, pageQuery(req, s.now()), "text/html,application/xhtml+xml")
	if err != nil {
		return scanner.Page{}, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return scanner.Page{}, fmt.Errorf("parse document: %w", err)
	}
	return extractItems(doc, req)
}

func extractItems(doc *goquery.Document, req scanner.PageRequest) (scanner.Page, error) {
	itemSelector := req.Option("item_selector", "")
	if itemSelector == "" {
		return scanner.Page{}, fmt.Errorf("%s: item_selector option is required", req.Platform)
	}
	if len(req.Selectors) == 0 {
		return scanner.Page{}, fmt.Errorf("%s: no field selectors configured", req.Platform)
	}

	var items []domain.RawItem
	doc.Find(itemSelector).Each(func(_ int, node *goquery.Selection) {
		items = append(items, parseEntry(node, req.Selectors))
	})

	page := scanner.Page{Items: items}
	if next := req.Option("next_selector", ""); next != "" {
		page.HasMore = doc.Find(next).Length() > 0
	} else {
		page.HasMore = req.PageSize > 0 && len(items) >= req.PageSize
	}
	return page, nil
}

func parseEntry(node *goquery.Selection, selectors map[string]string) domain.RawItem {
	item := domain.RawItem{}
	for field, spec := range selectors {
		selector, attr, _ := strings.Cut(spec, "@")
		selector = strings.TrimSpace(selector)

		target := node
		if selector != "" && selector != "." {
			target = node.Find(selector).First()
		}

		if attr != "" {
			if v, ok := target.Attr(attr); ok {
				item[field] = strings.TrimSpace(v)
			}
			continue
		}
		item[field] = strings.Join(strings.Fields(target.Text()), " ")
	}
	return item
}
