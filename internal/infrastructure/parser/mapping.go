package parser

import (
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"HotlistTracker/internal/domain"
	"HotlistTracker/internal/textclean"
)

const urlPlaceholder = "{value}"

// FieldMapping converts raw platform items into candidates.
type FieldMapping struct {
	Title        string
	Heat         string
	URL          string
	URLTemplate  string
	Tags         string
	TagSeparator string

	MaxTitleLength int
	MaxTags        int
}

// Candidates maps items in order. Rank is the 1-based position in items, so an
// entry dropped for an empty title still occupies its slot.
func (m FieldMapping) Candidates(platform, category string, items []domain.RawItem, observedAt time.Time) []domain.Candidate {
	titleKey := m.Title
	if titleKey == "" {
		titleKey = "title"
	}

	out := make([]domain.Candidate, 0, len(items))
	for i, item := range items {
		title := textclean.CleanTitle(item[titleKey], m.MaxTitleLength)
		if title == "" {
			continue
		}

		c := domain.Candidate{
			Platform:   platform,
			Category:   category,
			Title:      title,
			Rank:       i + 1,
			URL:        m.buildURL(item),
			Tags:       m.tags(item),
			ObservedAt: observedAt,
		}
		if m.Heat != "" {
			c.HeatValue = textclean.ParseHeat(item[m.Heat])
		}
		out = append(out, c)
	}
	return out
}

func (m FieldMapping) buildURL(item domain.RawItem) string {
	if m.URL == "" {
		return ""
	}
	value := strings.TrimSpace(item[m.URL])
	if value == "" {
		return ""
	}
	if m.URLTemplate == "" || strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://") {
		return value
	}
	return strings.ReplaceAll(m.URLTemplate, urlPlaceholder, value)
}

func (m FieldMapping) tags(item domain.RawItem) []string {
	if m.Tags == "" {
		return nil
	}
	raw := strings.TrimSpace(item[m.Tags])

	var labels []string
	if strings.HasPrefix(raw, "[") && gjson.Valid(raw) {
		for _, v := range gjson.Parse(raw).Array() {
			labels = append(labels, v.String())
		}
	} else {
		labels = textclean.SplitTags(raw, m.TagSeparator)
	}

	cleaned := make([]string, 0, len(labels))
	for _, l := range labels {
		cleaned = append(cleaned, textclean.CleanTitle(l, 0))
	}
	tags := textclean.ProcessTags(cleaned, textclean.DefaultMaxTagLength, m.MaxTags)
	if len(tags) == 0 {
		return nil
	}
	return tags
}
