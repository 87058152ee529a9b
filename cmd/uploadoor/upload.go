package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/allureops/uploadoor/pkg/config"
	"github.com/allureops/uploadoor/pkg/uploader"
)

var (
	uploadURL        string
	uploadProject    string
	uploadResultsDir string
	uploadTimeout    float64
	uploadInsecure   bool
	uploadHeaders    map[string]string
	uploadMetaPairs  map[string]string
	uploadStatsFile  string
	uploadCfgFile    string
	uploadCfgInline  string
	uploadStrict     bool
)

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload a results directory to the report service",
	Long: `Archive the results directory and submit it as one run. Metadata is
built from CI environment variables and can be extended with --meta pairs
and a runner stats file.

Upload failures are reported but exit zero by default: the upload is a
best-effort side channel and must never fail the test run it reports on.
Use --strict to propagate failures.`,
	RunE: runUpload,
}

func init() {
	rootCmd.AddCommand(uploadCmd)

	uploadCmd.Flags().StringVar(&uploadURL, "url", "",
		"base URL of the report service")
	uploadCmd.Flags().StringVar(&uploadProject, "project", "",
		"project id on the report service")
	uploadCmd.Flags().StringVar(&uploadResultsDir, "results-dir", "",
		"path to the results directory (default \""+config.DefaultResultsDir+"\")")
	uploadCmd.Flags().Float64Var(&uploadTimeout, "timeout", 0,
		"request timeout in seconds")
	uploadCmd.Flags().BoolVar(&uploadInsecure, "insecure", false,
		"skip TLS certificate verification")
	uploadCmd.Flags().StringToStringVar(&uploadHeaders, "header", nil,
		"extra request header (repeatable, key=value)")
	uploadCmd.Flags().StringToStringVar(&uploadMetaPairs, "meta", nil,
		"extra metadata field (repeatable, key=value)")
	uploadCmd.Flags().StringVar(&uploadStatsFile, "stats-file", "",
		"JSON file with runner statistics, attached as metadata \"stats\"")
	uploadCmd.Flags().StringVar(&uploadCfgFile, "report-config", "",
		"report config file to attach")
	uploadCmd.Flags().StringVar(&uploadCfgInline, "report-config-inline", "",
		"report config text to attach")
	uploadCmd.Flags().BoolVar(&uploadStrict, "strict", false,
		"exit non-zero when the upload fails")
}

func runUpload(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	applyUploadFlags(cmd, cfg)

	if err := cfg.ValidateUpload(); err != nil {
		return err
	}

	meta := uploader.DefaultMeta(uploader.OSEnv{})

	for k, v := range uploadMetaPairs {
		meta[k] = v
	}

	if uploadStatsFile != "" {
		stats, err := readStatsFile(uploadStatsFile)
		if err != nil {
			log.WithError(err).Warn("Ignoring unreadable stats file")
		} else {
			meta["stats"] = stats
		}
	}

	client := uploader.New(uploader.Options{
		BaseURL:            cfg.Upload.URL,
		Timeout:            time.Duration(cfg.Upload.TimeoutSeconds * float64(time.Second)),
		InsecureSkipVerify: cfg.Upload.Insecure,
		Headers:            cfg.Upload.Headers,
	})

	log.WithField("project", cfg.Upload.Project).
		WithField("dir", cfg.Upload.ResultsDir).
		Info("Uploading results")

	res, err := client.Upload(
		cmd.Context(),
		cfg.Upload.Project,
		cfg.Upload.ResultsDir,
		meta,
		configSource(cfg),
	)
	if err != nil {
		printUploadFailure(err)

		if uploadStrict {
			return err
		}

		// Best-effort side channel: a failed upload must never fail the
		// test run it reports on.
		return nil
	}

	printUploadSummary(cfg.Upload.URL, res)

	return nil
}

// applyUploadFlags lets command-line flags override file and environment
// configuration.
func applyUploadFlags(cmd *cobra.Command, cfg *config.Config) {
	if uploadURL != "" {
		cfg.Upload.URL = uploadURL
	}

	if uploadProject != "" {
		cfg.Upload.Project = uploadProject
	}

	if uploadResultsDir != "" {
		cfg.Upload.ResultsDir = uploadResultsDir
	}

	if cmd.Flags().Changed("timeout") {
		cfg.Upload.TimeoutSeconds = uploadTimeout
	}

	if cmd.Flags().Changed("insecure") {
		cfg.Upload.Insecure = uploadInsecure
	}

	if len(uploadHeaders) > 0 {
		if cfg.Upload.Headers == nil {
			cfg.Upload.Headers = map[string]string{}
		}

		for k, v := range uploadHeaders {
			cfg.Upload.Headers[k] = v
		}
	}

	if uploadCfgInline != "" {
		cfg.Upload.Config = config.ConfigPart{Inline: uploadCfgInline}
	} else if uploadCfgFile != "" {
		cfg.Upload.Config = config.ConfigPart{File: uploadCfgFile}
	}
}

// configSource maps the configured report config attachment to the client's
// tagged variant.
func configSource(cfg *config.Config) uploader.ConfigSource {
	switch {
	case cfg.Upload.Config.Inline != "":
		return uploader.InlineConfig(cfg.Upload.Config.Inline)
	case cfg.Upload.Config.File != "":
		return uploader.ConfigFile(cfg.Upload.Config.File)
	default:
		return uploader.ConfigSource{}
	}
}

// readStatsFile parses a runner statistics JSON document.
func readStatsFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var stats map[string]any
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	return stats, nil
}

func printUploadSummary(baseURL string, res *uploader.UploadResult) {
	color.New(color.Bold).Println("=== Allure upload ===")
	fmt.Printf("project: %s\n", res.Project)
	fmt.Printf("run_id:  %d\n", res.RunID)

	statusColor := color.New(color.FgGreen)
	if res.Status == "failed" {
		statusColor = color.New(color.FgRed)
	}

	fmt.Printf("status:  %s\n", statusColor.Sprint(res.Status))

	if res.Error != "" {
		fmt.Printf("error:   %s\n", color.New(color.FgRed).Sprint(res.Error))
	}

	fmt.Printf("ui:      %s\n", joinURL(baseURL, res.UIURL))
	fmt.Printf("latest:  %s\n", joinURL(baseURL, res.LatestURL))
}

func printUploadFailure(err error) {
	color.New(color.Bold, color.FgRed).Println("=== Allure upload FAILED ===")
	fmt.Println(err.Error())
}

// joinURL resolves a possibly-relative service URL against the base URL.
func joinURL(baseURL, u string) string {
	if u == "" || strings.Contains(u, "://") {
		return u
	}

	return strings.TrimRight(baseURL, "/") + u
}
