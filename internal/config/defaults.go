package config

import "time"

const rebangEndpoint = "https://api.rebang.today/v1/items"

// applyDefaults fills every unset value.
func applyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.Driver == "postgresql" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.DSN == "" && cfg.Database.Driver == "sqlite" {
		cfg.Database.DSN = "hotlist.db"
	}

	if cfg.Scheduler.CronExpression == "" {
		cfg.Scheduler.CronExpression = "@every 2m"
	}

	if cfg.Reconcile.DedupWindow == 0 {
		cfg.Reconcile.DedupWindow = 30 * time.Minute
	}
	if cfg.Reconcile.TitleSimilarityThreshold == 0 {
		cfg.Reconcile.TitleSimilarityThreshold = 0.85
	}
	if cfg.Reconcile.MaxTitleLength == 0 {
		cfg.Reconcile.MaxTitleLength = 500
	}
	if cfg.Reconcile.MaxTagsCount == 0 {
		cfg.Reconcile.MaxTagsCount = 10
	}

	if cfg.Collector.MaxParallel == 0 {
		cfg.Collector.MaxParallel = 4
	}
	if cfg.Collector.CycleTimeout == 0 {
		cfg.Collector.CycleTimeout = 90 * time.Second
	}

	if cfg.HTTP.Timeout == 0 {
		cfg.HTTP.Timeout = 10 * time.Second
	}
	if cfg.HTTP.UserAgent == "" {
		cfg.HTTP.UserAgent = "HotlistTracker/1.0"
	}
	if cfg.HTTP.RateLimit == 0 {
		cfg.HTTP.RateLimit = 2
	}
	if cfg.HTTP.Burst == 0 {
		cfg.HTTP.Burst = 1
	}
	if cfg.HTTP.MaxRetries == 0 {
		cfg.HTTP.MaxRetries = 3
	}

	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9108"
	}

	if cfg.Notifications.Telegram.APIBase == "" {
		cfg.Notifications.Telegram.APIBase = "https://api.telegram.org"
	}

	if len(cfg.Platforms) == 0 {
		cfg.Platforms = defaultPlatforms()
	}
	for i := range cfg.Platforms {
		p := &cfg.Platforms[i]
		if p.Scanner == "" {
			p.Scanner = "json"
		}
		if p.StartPage == 0 {
			p.StartPage = 1
		}
		if p.MaxPages == 0 {
			p.MaxPages = 1
		}
		if p.Fields.Title == "" {
			p.Fields.Title = "title"
		}
	}
}

func rebangPlatform(name string, categories ...string) PlatformConfig {
	cats := make([]CategoryConfig, 0, len(categories))
	for _, c := range categories {
		cats = append(cats, CategoryConfig{Name: c, Params: map[string]string{"sub_tab": c}})
	}
	return PlatformConfig{
		Name:       name,
		Scanner:    "json",
		Endpoint:   rebangEndpoint,
		Categories: cats,
		StartPage:  1,
		MaxPages:   1,
		Params:     map[string]string{"tab": name},
		Options: map[string]string{
			"data_path":    "data.list",
			"list_type":    "string",
			"cache_buster": "t",
		},
		Fields: FieldConfig{
			Title:       "title",
			Heat:        "heat_num",
			URL:         "id",
			URLTemplate: "https://rebang.today/item/{value}",
			Tags:        "label_str",
		},
	}
}

func defaultPlatforms() []PlatformConfig {
	return []PlatformConfig{
		rebangPlatform("weibo", "search"),
		rebangPlatform("zhihu", "hot"),
		rebangPlatform("baidu", "realtime"),
		rebangPlatform("toutiao", "hot"),
		rebangPlatform("douyin", "hot"),
		rebangPlatform("bilibili", "popular"),
		rebangPlatform("xiaohongshu", "hot-search"),
		rebangPlatform("xueqiu", "topic"),
	}
}
