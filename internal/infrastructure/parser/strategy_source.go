package parser

import (
	"context"
	"fmt"
	"maps"
	"time"

	"go.uber.org/zap"

	"HotlistTracker/internal/config"
	"HotlistTracker/internal/domain"
	"HotlistTracker/internal/ports"
	"HotlistTracker/internal/scanner"
)

// Limits caps mapped candidate fields.
type Limits struct {
	MaxTitleLength int
	MaxTags        int
}

// StrategySource implements SnapshotSource via registered scanner strategies.
type StrategySource struct {
	registry  *scanner.Registry
	platforms map[string]config.PlatformConfig
	limits    Limits
	logger    *zap.Logger
	now       func() time.Time
}

var _ ports.SnapshotSource = (*StrategySource)(nil)

// NewStrategySource wires scanner registry with config-defined platforms.
func NewStrategySource(reg *scanner.Registry, platforms []config.PlatformConfig, limits Limits, log *zap.Logger) *StrategySource {
	if log == nil {
		log = zap.NewNop()
	}
	byName := make(map[string]config.PlatformConfig, len(platforms))
	for _, p := range platforms {
		byName[p.Name] = p
	}
	return &StrategySource{
		registry:  reg,
		platforms: byName,
		limits:    limits,
		logger:    log.With(zap.String("component", "strategy_source")),
		now:       time.Now,
	}
}

// FetchCandidates fetches one page through the platform's scanner and maps it to candidates
// with page-local ranks.
func (s *StrategySource) FetchCandidates(ctx context.Context, req ports.SnapshotRequest) ([]domain.Candidate, bool, error) {
	if s.registry == nil {
		return nil, false, fmt.Errorf("scanner registry is not configured")
	}

	platform, ok := s.platforms[req.Platform]
	if !ok {
		return nil, false, fmt.Errorf("platform %s is not configured", req.Platform)
	}
	category, ok := findCategory(platform, req.Category)
	if !ok {
		return nil, false, fmt.Errorf("platform %s: category %s is not configured", req.Platform, req.Category)
	}

	strategy, err := s.registry.Resolve(platform.Scanner)
	if err != nil {
		return nil, false, fmt.Errorf("platform %s: %w", platform.Name, err)
	}

	endpoint := platform.Endpoint
	if category.URL != "" {
		endpoint = category.URL
	}
	params := maps.Clone(platform.Params)
	if params == nil {
		params = map[string]string{}
	}
	maps.Copy(params, category.Params)

	pageReq := scanner.PageRequest{
		Platform:  platform.Name,
		Category:  category.Name,
		Endpoint:  endpoint,
		Page:      req.Page,
		StartPage: platform.StartPage,
		PageSize:  platform.PageSize,
		Params:    params,
		Options:   platform.Options,
		Selectors: platform.Selectors,
	}

	s.logger.Debug("fetch page",
		zap.String("platform", platform.Name),
		zap.String("category", category.Name),
		zap.String("scanner", strategy.Name()),
		zap.Int("page", req.Page),
	)

	page, err := strategy.FetchPage(ctx, pageReq)
	if err != nil {
		return nil, false, fmt.Errorf("scan %s/%s page %d: %w", platform.Name, category.Name, req.Page, err)
	}

	mapping := FieldMapping{
		Title:          platform.Fields.Title,
		Heat:           platform.Fields.Heat,
		URL:            platform.Fields.URL,
		URLTemplate:    platform.Fields.URLTemplate,
		Tags:           platform.Fields.Tags,
		TagSeparator:   platform.Fields.TagSeparator,
		MaxTitleLength: s.limits.MaxTitleLength,
		MaxTags:        s.limits.MaxTags,
	}
	candidates := mapping.Candidates(platform.Name, category.Name, page.Items, s.now().UTC())

	s.logger.Debug("page mapped",
		zap.String("platform", platform.Name),
		zap.String("category", category.Name),
		zap.Int("raw", len(page.Items)),
		zap.Int("candidates", len(candidates)),
		zap.Bool("has_more", page.HasMore),
	)
	return candidates, page.HasMore, nil
}

func findCategory(p config.PlatformConfig, name string) (config.CategoryConfig, bool) {
	for _, c := range p.Categories {
		if c.Name == name {
			return c, true
		}
	}
	return config.CategoryConfig{}, false
}
