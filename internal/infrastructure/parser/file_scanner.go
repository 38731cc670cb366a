package parser

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"HotlistTracker/internal/domain"
	"HotlistTracker/internal/scanner"
)

// snapshotFile is the on-disk format of recorded hot lists.
type snapshotFile struct {
	Pages []snapshotPage `yaml:"pages"`
}

type snapshotPage struct {
	Platform string              `yaml:"platform"`
	Category string              `yaml:"category"`
	Page     int                 `yaml:"page"`
	HasMore  bool                `yaml:"has_more"`
	Items    []map[string]string `yaml:"items"`
}

// FileScanner replays hot lists recorded in a YAML file named by the request endpoint
// (or the path option). Pages without an explicit number count as page 1.
type FileScanner struct{}

var _ scanner.Scanner = (*FileScanner)(nil)

// NewFileScanner builds the replay strategy.
func NewFileScanner() *FileScanner {
	return &FileScanner{}
}

// Name identifies the strategy inside the registry.
func (s *FileScanner) Name() string {
	return "file"
}

// FetchPage returns the recorded page, or an empty page when none was recorded.
func (s *FileScanner) FetchPage(ctx context.Context, req scanner.PageRequest) (scanner.Page, error) {
	if err := ctx.Err(); err != nil {
		return scanner.Page{}, err
	}

	path := req.Option("path", req.Endpoint)
	if path == "" {
		return scanner.Page{}, fmt.Errorf("%s: snapshot path is not configured", req.Platform)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return scanner.Page{}, fmt.Errorf("read snapshot %s: %w", path, err)
	}

	var file snapshotFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return scanner.Page{}, fmt.Errorf("parse snapshot %s: %w", path, err)
	}

	for _, p := range file.Pages {
		number := p.Page
		if number == 0 {
			number = 1
		}
		if p.Platform != req.Platform || p.Category != req.Category || number != req.Page {
			continue
		}

		items := make([]domain.RawItem, 0, len(p.Items))
		for _, it := range p.Items {
			items = append(items, domain.RawItem(it))
		}
		return scanner.Page{Items: items, HasMore: p.HasMore}, nil
	}
	return scanner.Page{}, nil
}
