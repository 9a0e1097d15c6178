package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ditare/internal/app"
	"github.com/ternarybob/ditare/internal/common"
	"github.com/ternarybob/ditare/internal/services/enrich"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	configFiles  configPaths
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")

	// One-shot mode: run a single enrichment instead of the scheduler
	enrichName   = flag.String("enrich", "", "Enrich a single service by name and exit")
	enrichFields = flag.String("fields", "", "Comma-separated field selection for -enrich (empty = all)")
	aiProvider   = flag.String("provider", "", "AI provider override for -enrich (gemini or claude)")
	allowTags    = flag.Bool("allow-new-tags", false, "Allow -enrich to create proposed tags")
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("Ditare version %s\n", common.GetVersion())
		os.Exit(0)
	}

	// Optional .env for local credentials; absence is not an error
	_ = godotenv.Load()

	if len(configFiles) == 0 {
		if _, err := os.Stat("ditare.toml"); err == nil {
			configFiles = append(configFiles, "ditare.toml")
		} else if _, err := os.Stat("deployments/local/ditare.toml"); err == nil {
			configFiles = append(configFiles, "deployments/local/ditare.toml")
		}
	}

	config, err := common.LoadConfig(configFiles...)
	if err != nil {
		tempLogger := arbor.NewLogger()
		tempLogger.Fatal().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}

	logger := common.InitLogger(config)
	common.PrintBanner(common.GetFullVersion())

	logger.Info().
		Strs("config_files", configFiles).
		Str("environment", config.Environment).
		Str("locale", config.Catalog.Locale).
		Msg("Application configuration loaded")

	application, err := app.New(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer application.Close()

	if *enrichName != "" {
		runOnce(application, logger)
		return
	}

	if !config.Scheduler.Enabled {
		logger.Fatal().Msg("Scheduler disabled and no -enrich given, nothing to do")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := application.Scheduler.Start(ctx, config.Scheduler.Schedule, config.Scheduler.IngestSchedule); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start scheduler")
	}

	logger.Info().Msg("Scheduler running - Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("Interrupt signal received, shutting down")
	cancel()
	application.Scheduler.Stop()
	logger.Info().Msg("Scheduler stopped")
}

// runOnce executes a single enrichment from the command line.
func runOnce(application *app.App, logger arbor.ILogger) {
	var fields []string
	for _, field := range strings.Split(*enrichFields, ",") {
		if trimmed := strings.TrimSpace(field); trimmed != "" {
			fields = append(fields, trimmed)
		}
	}

	result, err := application.EnrichOnce(context.Background(), enrich.Input{
		Name:         *enrichName,
		Fields:       fields,
		AllowNewTags: *allowTags,
		Provider:     *aiProvider,
	})
	if err != nil {
		logger.Fatal().Err(err).Str("name", *enrichName).Msg("Enrichment failed")
	}

	logger.Info().
		Str("name", *enrichName).
		Str("service_id", result.ServiceID).
		Msg("Enrichment completed")
}
