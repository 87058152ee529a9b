package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/allureops/uploadoor/pkg/config"
	"github.com/allureops/uploadoor/pkg/mirror"
	"github.com/allureops/uploadoor/pkg/uploader"
)

var (
	mirrorProject    string
	mirrorResultsDir string
	mirrorPreflight  bool
)

var mirrorCmd = &cobra.Command{
	Use:   "mirror",
	Short: "Mirror a results directory to S3-compatible storage",
	Long: `Upload a local results directory, its zip archive, and the run
metadata document to S3-compatible storage using the config file settings.`,
	RunE: runMirror,
}

func init() {
	rootCmd.AddCommand(mirrorCmd)

	mirrorCmd.Flags().StringVar(&mirrorProject, "project", "",
		"project id used in the storage prefix")
	mirrorCmd.Flags().StringVar(&mirrorResultsDir, "results-dir", "",
		"path to the results directory to mirror")
	mirrorCmd.Flags().BoolVar(&mirrorPreflight, "preflight", false,
		"verify storage connectivity with a test write before mirroring")
}

func runMirror(cmd *cobra.Command, args []string) error {
	if cfgFile == "" {
		return fmt.Errorf("config file is required (use --config)")
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if mirrorProject != "" {
		cfg.Upload.Project = mirrorProject
	}

	if mirrorResultsDir != "" {
		cfg.Upload.ResultsDir = mirrorResultsDir
	}

	if cfg.Upload.Project == "" {
		return fmt.Errorf("project is required (use --project)")
	}

	if err := cfg.ValidateMirror(); err != nil {
		return err
	}

	uploaderImpl, err := mirror.NewS3Uploader(log, cfg.Mirror)
	if err != nil {
		return fmt.Errorf("creating S3 uploader: %w", err)
	}

	ctx := cmd.Context()

	if mirrorPreflight {
		if err := uploaderImpl.Preflight(ctx); err != nil {
			return fmt.Errorf("storage preflight: %w", err)
		}
	}

	archive, err := uploader.ZipDirectory(cfg.Upload.ResultsDir)
	if err != nil {
		return fmt.Errorf("archiving results: %w", err)
	}

	metaJSON, err := json.Marshal(uploader.DefaultMeta(uploader.OSEnv{}))
	if err != nil {
		return fmt.Errorf("serializing metadata: %w", err)
	}

	log.WithField("dir", cfg.Upload.ResultsDir).
		WithField("bucket", cfg.Mirror.Bucket).
		Info("Mirroring results")

	if err := uploaderImpl.MirrorRun(
		ctx, cfg.Upload.Project, cfg.Upload.ResultsDir, archive, metaJSON,
	); err != nil {
		return fmt.Errorf("mirroring results: %w", err)
	}

	log.Info("Mirror completed successfully")

	return nil
}
