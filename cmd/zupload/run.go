package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"zupload/logger"
	"zupload/metrics"
	"zupload/ncread"
	"zupload/portal"
	"zupload/uploader"
)

func runPipeline(cmd *cobra.Command, opts *options, args []string) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	bits := cfg.Stages
	if len(args) == 1 {
		bits = args[0]
	}
	stages, err := uploader.ParseStages(bits)
	if err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	strategy, err := cfg.ResolveStrategy()
	if err != nil {
		return err
	}

	journal, err := uploader.OpenJournal(cfg.JournalPath)
	if err != nil {
		log.Warn("journal disabled", logger.Error(err))
	}

	var m uploader.Metrics
	if cfg.Metrics.PushgatewayURL != "" {
		p, err := metrics.NewPusher(cfg.Metrics.PushgatewayURL, cfg.Metrics.Job, cfg.Reason)
		if err != nil {
			return err
		}
		m = p
	}

	client := portal.New(cfg.HTTP, cfg.Endpoints, cfg.UploadToProduction)

	var (
		prompt        uploader.Prompter
		sessionPrompt portal.Prompter
	)
	if cfg.IsInteractive() {
		tp := uploader.NewTermPrompter()
		prompt, sessionPrompt = tp, tp
	}
	session := portal.SessionConfig{
		CookieFile: cfg.CookieFile,
		Credentials: portal.Credentials{
			Email:    os.Getenv("PORTAL_EMAIL"),
			Password: os.Getenv("PORTAL_PASSWORD"),
		},
		Prompt: sessionPrompt,
		Log:    log,
	}

	runner, err := uploader.NewRunner(uploader.RunnerConfig{
		Reason:         cfg.Reason,
		Stages:         stages,
		DataDir:        cfg.DataDir,
		Pattern:        cfg.Pattern,
		ArchivePath:    cfg.ArchivePath,
		JSONDir:        cfg.JSONStandaloneFiles,
		TryIngestURL:   client.Endpoints().TryIngest,
		TryIngestBatch: cfg.TryIngestBatch,
		Force:          cfg.OverwriteArchive,
		Interactive:    cfg.IsInteractive(),
		SkipUnmatched:  cfg.SkipUnmatched,
		Show:           cfg.Show,
		Strategy:       strategy,
		Opener:         ncread.Opener{},
		Portal:         client,
		Authenticate: func(ctx context.Context) error {
			return client.Authenticate(ctx, session)
		},
		Prompt:  prompt,
		Journal: journal,
		Metrics: m,
		Log:     log,
		Out:     cmd.OutOrStdout(),
	})
	if err != nil {
		return err
	}
	defer func() { _ = runner.Close() }()

	_, err = runner.Run(cmd.Context())
	return err
}
