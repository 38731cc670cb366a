package parser

import (
	"context"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"HotlistTracker/internal/domain"
	"HotlistTracker/internal/scanner"
)

// JSONScanner reads hot lists from JSON APIs. Options:
//
//	data_path      gjson path of the list inside the response
//	list_type      "string" when the list is itself a JSON-encoded string
//	has_more_path  gjson path of a boolean "more pages" flag
type JSONScanner struct {
	fetcher *Fetcher
	now     func() time.Time
}

var _ scanner.Scanner = (*JSONScanner)(nil)

// NewJSONScanner builds the strategy on top of a shared fetcher.
func NewJSONScanner(fetcher *Fetcher) *JSONScanner {
	return &JSONScanner{fetcher: fetcher, now: time.Now}
}

// Name identifies the strategy inside the registry.
func (s *JSONScanner) Name() string {
	return "json"
}

// FetchPage downloads and flattens one page of list entries.
func (s *JSONScanner) FetchPage(ctx context.Context, req scanner.PageRequest) (scanner.Page, error) {
	body, err := s.fetcher.Get(ctx, req.Endpoint, pageQuery(req, s.now()), "application/json, text/plain, */*")
	if err != nil {
		return scanner.Page{}, err
	}
	return decodeJSONPage(body, req)
}

func decodeJSONPage(body []byte, req scanner.PageRequest) (scanner.Page, error) {
	if !gjson.ValidBytes(body) {
		return scanner.Page{}, fmt.Errorf("%s/%s: response is not valid json", req.Platform, req.Category)
	}
	root := gjson.ParseBytes(body)

	list := root
	if path := req.Option("data_path", ""); path != "" {
		list = root.Get(path)
		if !list.Exists() {
			return scanner.Page{}, fmt.Errorf("%s/%s: data path %q not found", req.Platform, req.Category, path)
		}
	}
	if req.Option("list_type", "") == "string" {
		if !gjson.Valid(list.String()) {
			return scanner.Page{}, fmt.Errorf("%s/%s: embedded list is not valid json", req.Platform, req.Category)
		}
		list = gjson.Parse(list.String())
	}
	if !list.IsArray() {
		return scanner.Page{}, fmt.Errorf("%s/%s: expected a list, got %s", req.Platform, req.Category, list.Type)
	}

	var items []domain.RawItem
	list.ForEach(func(_, value gjson.Result) bool {
		items = append(items, flatten(value))
		return true
	})

	page := scanner.Page{Items: items}
	if path := req.Option("has_more_path", ""); path != "" {
		page.HasMore = root.Get(path).Bool()
	} else {
		page.HasMore = req.PageSize > 0 && len(items) >= req.PageSize
	}
	return page, nil
}

// flatten turns a list element into a RawItem; nested objects become dotted keys
// and arrays keep their raw JSON text.
func flatten(value gjson.Result) domain.RawItem {
	item := domain.RawItem{}
	if !value.IsObject() {
		item["value"] = value.String()
		return item
	}
	flattenInto(item, "", value)
	return item
}

func flattenInto(item domain.RawItem, prefix string, obj gjson.Result) {
	obj.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		if prefix != "" {
			name = prefix + "." + name
		}
		switch {
		case value.IsObject():
			flattenInto(item, name, value)
		case value.IsArray():
			item[name] = value.Raw
		default:
			item[name] = value.String()
		}
		return true
	})
}
