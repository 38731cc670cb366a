package main

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"HotlistTracker/internal/app"
	"HotlistTracker/internal/config"
	"HotlistTracker/internal/domain"
	"HotlistTracker/internal/logging"
	"HotlistTracker/internal/usecase"
)

type cli struct {
	configPath string
	logLevel   string

	cfg    config.Config
	logger *zap.Logger
}

func newRootCommand() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "hotlisttracker",
		Short: "Track trending topics across hot-list platforms",
		Long: `hotlisttracker polls platform hot lists, matches every entry to a
tracked topic, records rank movement and retires topics that fell off.`,
		PersistentPreRunE: c.setup,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default $HOTLIST_CONFIG)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		c.runCommand(),
		c.onceCommand(),
		c.migrateCommand(),
		c.topicsCommand(),
		c.changesCommand(),
		c.logsCommand(),
	)
	return root
}

func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		cfg.Logging.Level = c.logLevel
	}
	c.cfg = cfg
	c.logger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	return nil
}

func (c *cli) runCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run collection passes on the configured schedule until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer c.logger.Sync() //nolint:errcheck
			application, err := app.New(cmd.Context(), c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer application.Close()
			return application.Run(cmd.Context())
		},
	}
}

func (c *cli) onceCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Run a single collection pass and print its summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer c.logger.Sync() //nolint:errcheck
			application, err := app.New(cmd.Context(), c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer application.Close()

			summary, err := application.RunOnce(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), usecase.Digest(summary))
			return err
		},
	}
}

func (c *cli) migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := app.OpenStore(cmd.Context(), c.cfg.Database)
			if err != nil {
				return err
			}
			defer store.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "schema applied (%s)\n", c.cfg.Database.Driver)
			return nil
		},
	}
}

func (c *cli) topicsCommand() *cobra.Command {
	var (
		category string
		keyword  string
		limit    int
	)
	cmd := &cobra.Command{
		Use:   "topics [platform]",
		Short: "List active topics of a platform, or search titles with --search",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.OpenStore(cmd.Context(), c.cfg.Database)
			if err != nil {
				return err
			}
			defer store.Close()

			var topics []domain.TrackedTopic
			switch {
			case keyword != "":
				topics, err = store.SearchTopics(cmd.Context(), keyword, limit)
			case len(args) == 1:
				topics, err = store.ActiveTopics(cmd.Context(), args[0], category, limit)
			default:
				return fmt.Errorf("platform argument or --search is required")
			}
			if err != nil {
				return err
			}
			return printTopics(cmd.OutOrStdout(), topics)
		},
	}
	cmd.Flags().StringVarP(&category, "category", "c", "", "restrict to one category")
	cmd.Flags().StringVarP(&keyword, "search", "s", "", "search titles by keyword")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum rows")
	return cmd
}

func (c *cli) changesCommand() *cobra.Command {
	var (
		since time.Duration
		limit int
	)
	cmd := &cobra.Command{
		Use:   "changes <platform>",
		Short: "List the largest rank movements of a platform",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.OpenStore(cmd.Context(), c.cfg.Database)
			if err != nil {
				return err
			}
			defer store.Close()

			topics, err := store.RankChanges(cmd.Context(), args[0], time.Now().Add(-since), limit)
			if err != nil {
				return err
			}
			return printTopics(cmd.OutOrStdout(), topics)
		},
	}
	cmd.Flags().DurationVar(&since, "since", 24*time.Hour, "look-back period")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum rows")
	return cmd
}

func (c *cli) logsCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "logs [platform]",
		Short: "Show recent collection logs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.OpenStore(cmd.Context(), c.cfg.Database)
			if err != nil {
				return err
			}
			defer store.Close()

			platform := ""
			if len(args) == 1 {
				platform = args[0]
			}
			logs, err := store.RecentCollectionLogs(cmd.Context(), platform, limit)
			if err != nil {
				return err
			}
			return printLogs(cmd.OutOrStdout(), logs)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum rows")
	return cmd
}

func printTopics(out io.Writer, topics []domain.TrackedTopic) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tDELTA\tHEAT\tPLATFORM\tCATEGORY\tTITLE\tLAST SEEN")
	for _, t := range topics {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			t.CurrentRank,
			formatDelta(t.RankDelta),
			formatHeat(t.HeatValue),
			t.Platform,
			t.Category,
			t.Title,
			t.LastSeenAt.Local().Format(time.DateTime),
		)
	}
	return w.Flush()
}

func printLogs(out io.Writer, logs []domain.CollectionLog) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tPLATFORM\tCATEGORY\tSTATUS\tTOTAL\tOK\tDUP\tERR\tRETIRED\tMESSAGE")
	for _, l := range logs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\n",
			l.StartedAt.Local().Format(time.DateTime),
			l.Platform,
			l.Category,
			l.Status,
			l.Total,
			l.Success,
			l.Duplicates,
			l.Errors,
			l.Retired,
			l.ErrorMessage,
		)
	}
	return w.Flush()
}

func formatDelta(d int) string {
	if d > 0 {
		return "+" + strconv.Itoa(d)
	}
	return strconv.Itoa(d)
}

func formatHeat(v *int64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatInt(*v, 10)
}
