package scanner

import (
	"context"
	"fmt"
	"sort"

	"HotlistTracker/internal/domain"
)

// PageRequest carries everything a strategy needs to fetch one page of a hot list.
type PageRequest struct {
	Platform string
	Category string
	// Endpoint is the category URL (or file path for replay scanners).
	Endpoint string
	// Page is the platform's own page number; StartPage is the number of its first page.
	Page      int
	StartPage int
	PageSize  int
	// Params are extra query parameters sent with every request.
	Params map[string]string
	// Options are strategy specific knobs such as data paths or selectors.
	Options map[string]string
	// Selectors map raw field names to CSS selectors for HTML strategies.
	Selectors map[string]string
}

// Option returns a strategy option or fallback when unset.
func (r PageRequest) Option(key, fallback string) string {
	if v, ok := r.Options[key]; ok && v != "" {
		return v
	}
	return fallback
}

// Page is one fetched page of raw list entries in platform order.
type Page struct {
	Items []domain.RawItem
	// HasMore is true when the platform signalled a further page.
	HasMore bool
}

// Scanner captures a single fetch strategy (JSON API, HTML list, recorded file).
type Scanner interface {
	Name() string
	FetchPage(ctx context.Context, req PageRequest) (Page, error)
}

// Registry keeps a mapping from scanner names to their implementations.
type Registry struct {
	scanners map[string]Scanner
}

// NewRegistry builds a registry holding the given scanners.
func NewRegistry(scanners ...Scanner) *Registry {
	r := &Registry{scanners: map[string]Scanner{}}
	for _, s := range scanners {
		r.Register(s)
	}
	return r
}

// Register adds or replaces a scanner implementation.
func (r *Registry) Register(scanner Scanner) {
	if r.scanners == nil {
		r.scanners = map[string]Scanner{}
	}
	r.scanners[scanner.Name()] = scanner
}

// Resolve returns a scanner by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Scanner, error) {
	if scanner, ok := r.scanners[name]; ok {
		return scanner, nil
	}
	return nil, fmt.Errorf("scanner %s is not registered", name)
}

// Names lists registered scanners in lexical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.scanners))
	for name := range r.scanners {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
