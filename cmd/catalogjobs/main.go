package main

import (
	"fmt"
	"os"

	"github.com/openbookcatalog/catalog/pkg/config"
	"github.com/openbookcatalog/catalog/pkg/database"
	"github.com/openbookcatalog/catalog/pkg/models"
	"github.com/openbookcatalog/catalog/pkg/server"
	"github.com/openbookcatalog/catalog/pkg/worker"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/robinjoseph08/golib/pointerutil"
	"github.com/urfave/cli/v2"
)

func main() {
	log := logger.New()

	cfg, err := config.New()
	if err != nil {
		log.Err(err).Fatal("config error")
	}

	db, err := database.New(cfg)
	if err != nil {
		log.Err(err).Fatal("database error")
	}
	defer db.Close()

	wrkr := worker.New(cfg, db, server.NewBookService(cfg, db))

	dataFlags := []cli.Flag{
		&cli.StringFlag{Name: "field", Usage: "field to backfill (default_backfill)"},
		&cli.StringFlag{Name: "value", Usage: "JSON encoded default value (default_backfill)"},
		&cli.BoolFlag{Name: "dry-run", Usage: "report without saving (artifact_lang_tags, assign_tag)"},
		&cli.StringFlag{Name: "tag", Usage: "tag to add (assign_tag)"},
		&cli.StringFlag{Name: "filter-tag", Usage: "only books carrying this tag (assign_tag)"},
		&cli.StringFlag{Name: "search", Usage: "only books whose search text contains this (assign_tag)"},
	}

	app := &cli.App{
		Name:        "catalogjobs",
		Usage:       "CLI to run catalog maintenance jobs",
		Description: "Job types: language_usage, tag_prune, default_backfill, analytics_sync, resave_books, artifact_lang_tags, assign_tag",
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "run a job in the foreground",
				ArgsUsage: "<type>",
				Flags:     dataFlags,
				Action: func(c *cli.Context) error {
					job, err := wrkr.Enqueue(c.Context, c.Args().First(), jobData(c))
					if err != nil {
						return err
					}

					runErr := wrkr.RunNow(c.Context, job)
					if job.Message != nil {
						fmt.Printf("Job %d %s: %s\n", job.ID, job.Status, *job.Message)
					}
					return runErr
				},
			},
			{
				Name:      "enqueue",
				Usage:     "store a pending job for the API worker",
				ArgsUsage: "<type>",
				Flags:     dataFlags,
				Action: func(c *cli.Context) error {
					job, err := wrkr.Enqueue(c.Context, c.Args().First(), jobData(c))
					if err != nil {
						return err
					}
					fmt.Printf("Enqueued job %d (%s)\n", job.ID, job.Type)
					return nil
				},
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Err(errors.WithStack(err)).Fatal("app run error")
	}
}

func jobData(c *cli.Context) any {
	switch c.Args().First() {
	case models.JobTypeDefaultBackfill:
		data := &models.JobDefaultBackfillData{Field: c.String("field")}
		if v := c.String("value"); v != "" {
			data.Value = []byte(v)
		}
		return data
	case models.JobTypeArtifactLangTags:
		return &models.JobArtifactLangTagsData{DryRun: c.Bool("dry-run")}
	case models.JobTypeAssignTag:
		data := &models.JobAssignTagData{Tag: c.String("tag"), DryRun: c.Bool("dry-run")}
		if c.IsSet("filter-tag") {
			data.Filter.Tag = pointerutil.String(c.String("filter-tag"))
		}
		if c.IsSet("search") {
			data.Filter.Search = pointerutil.String(c.String("search"))
		}
		return data
	default:
		return nil
	}
}
