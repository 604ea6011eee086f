// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/poiesic/pulse/config"
	"github.com/poiesic/pulse/insight"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "pulse",
		Usage: "Collect Reddit posts about a product and turn them into searchable insights",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
				EnvVars: []string{config.EnvLogLevel},
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML config file",
				EnvVars: []string{"PULSE_CONFIG"},
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Run the ingestion pipeline once",
				Action: runCommand,
				Flags:  runFlags(),
			},
			{
				Name:   "schedule",
				Usage:  "Run the ingestion pipeline on a cron schedule until interrupted",
				Action: scheduleCommand,
				Flags: append(runFlags(),
					&cli.StringFlag{
						Name:  "cron",
						Usage: "Standard five-field cron spec or descriptor such as @hourly (defaults to pipeline.schedule)",
					},
					&cli.StringFlag{
						Name:  "metrics-addr",
						Usage: "Serve Prometheus metrics on this address, e.g. :9090",
					},
				),
			},
			{
				Name:      "search",
				Usage:     "Find indexed posts similar to a query",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of results",
						Value: 10,
					},
					&cli.Float64Flag{
						Name:  "threshold",
						Usage: "Minimum cosine similarity",
						Value: 0,
					},
				},
			},
			{
				Name:   "themes",
				Usage:  "Cluster a product's posts into keyword themes",
				Action: themesCommand,
				Flags: append(scopeFlags(),
					&cli.IntFlag{
						Name:  "min-size",
						Usage: "Minimum posts per theme",
						Value: 3,
					},
				),
			},
			{
				Name:   "insights",
				Usage:  "Generate and store insights for a product",
				Action: insightsCommand,
				Flags:  scopeFlags(),
			},
			{
				Name:   "reindex",
				Usage:  "Re-embed every stored post into the vector index",
				Action: reindexCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "product",
						Usage: "Only reindex posts of this product",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of posts to process in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N posts",
						Value: 100,
					},
					&cli.BoolFlag{
						Name:  "resume",
						Usage: "Continue from the last checkpoint",
					},
				},
			},
		},
	}
}

func runFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "product",
			Usage: "Product id the posts are stored under (defaults to pipeline.product_id)",
		},
		&cli.StringFlag{
			Name:  "subreddit",
			Usage: "Subreddit to search (defaults to pipeline.subreddit)",
		},
		&cli.StringSliceFlag{
			Name:  "term",
			Usage: "Search term, repeatable (defaults to pipeline.terms)",
		},
		&cli.IntFlag{
			Name:  "limit",
			Usage: "Posts per term, at most 100",
		},
		&cli.StringFlag{
			Name:  "window",
			Usage: "Time window: hour, day, week, month, year or all",
		},
		&cli.StringFlag{
			Name:  "sort",
			Usage: "Sort order: relevance, hot, top, new or comments",
		},
	}
}

func scopeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "product",
			Usage: "Product id (defaults to pipeline.product_id)",
		},
		&cli.StringFlag{
			Name:  "platform",
			Usage: "Platform filter (defaults to pipeline.platform)",
		},
		&cli.StringFlag{
			Name:  "timeframe",
			Usage: "Timeframe: 24h, 7d, 30d, 90d, 1y, all or a Go duration",
			Value: insight.Timeframe30Days,
		},
	}
}

func setupLogger(c *cli.Context) error {
	level, err := parseLevel(c.String("log-level"))
	if err != nil {
		return err
	}
	setDefaultLogger(level)
	return nil
}

func parseLevel(levelStr string) (slog.Level, error) {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
}

func setDefaultLogger(level slog.Level) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
}
