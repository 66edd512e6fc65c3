package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"zupload/logger"
	"zupload/uploader"
)

// defaultConfigFile is read when --config is not given and the file exists.
const defaultConfigFile = "zupload.yaml"

type options struct {
	configPath     string
	reason         string
	dataDir        string
	pattern        string
	archivePath    string
	logLevel       string
	force          bool
	nonInteractive bool
	production     bool
	batch          int
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "zupload [stages]",
		Short: "Upload NetCDF model results to the ICOS carbon portal",
		Long: `zupload archives NetCDF files, validates them against the portal's
try-ingest service, builds their metadata and uploads metadata and data.

The optional stages argument holds one 0/1 bit per stage, in order:
archive_files fill_handlers try_ingest archive_json upload_metadata
upload_data store_archive. The default is 1111111.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, opts, args)
		},
	}

	f := root.PersistentFlags()
	f.StringVarP(&opts.configPath, "config", "c", "", "YAML config file (default ./"+defaultConfigFile+" when present)")
	f.StringVarP(&opts.reason, "reason", "r", "", "upload reason, selects the dataset profile (cte-hr, lpj-guess, gcp-inversions, ...)")
	f.StringVar(&opts.dataDir, "data-dir", "", "directory holding the input files")
	f.StringVar(&opts.pattern, "pattern", "", "file pattern inside data-dir; ** matches recursively")
	f.StringVar(&opts.archivePath, "archive", "", "archive JSON path")
	f.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	f.BoolVarP(&opts.force, "force", "f", false, "overwrite the archive without asking")
	f.BoolVar(&opts.nonInteractive, "non-interactive", false, "never prompt; failed data uploads are skipped")
	f.BoolVar(&opts.production, "production", false, "upload metadata to production instead of staging")
	f.IntVar(&opts.batch, "batch", 0, "try-ingest batch size")

	root.AddCommand(
		newRunCmd(opts),
		newClassifyCmd(opts),
		newUploadsCmd(opts),
		newHashCmd(),
		newHistoryCmd(opts),
	)
	return root
}

func newRunCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run [stages]",
		Short: "Run the upload pipeline",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, opts, args)
		},
	}
}

// loadConfig reads the config file and applies the flags the operator set.
func loadConfig(cmd *cobra.Command, opts *options) (*uploader.FileConfig, error) {
	cfg := &uploader.FileConfig{}
	path := opts.configPath
	if path == "" {
		if _, err := os.Stat(defaultConfigFile); err == nil {
			path = defaultConfigFile
		}
	}
	if path != "" {
		loaded, err := uploader.LoadConfig(path)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("reason") {
		cfg.Reason = opts.reason
	}
	if flags.Changed("data-dir") {
		cfg.DataDir = opts.dataDir
	}
	if flags.Changed("pattern") {
		cfg.Pattern = opts.pattern
	}
	if flags.Changed("archive") {
		cfg.ArchivePath = opts.archivePath
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}
	if flags.Changed("force") {
		cfg.OverwriteArchive = opts.force
	}
	if flags.Changed("non-interactive") {
		on := !opts.nonInteractive
		cfg.Interactive = &on
	}
	if flags.Changed("production") {
		cfg.UploadToProduction = opts.production
	}
	if flags.Changed("batch") {
		cfg.TryIngestBatch = opts.batch
	}

	if cfg.Reason == "" {
		return nil, errors.New("reason is required: set it in the config file or pass --reason")
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

func newLogger(cfg *uploader.FileConfig) (logger.Logger, error) {
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return log, nil
}
