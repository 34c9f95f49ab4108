package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/smsbackup/internal/app"
)

func main() {
	// Logging setup
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	var (
		backupType string
		inputPath  string
		outputDir  string
		configPath string
		envFiles   string
		noImages   bool
		noVideos   bool
		noAudio    bool
		noPDFs     bool
		smsText    bool
		strict     bool
		callsDedup bool
		callsPDF   bool
		manifest   bool
		verbose    bool
		version    bool
	)

	flag.StringVar(&backupType, "type", "", "Backup type: sms, calls, vcf or all")
	flag.StringVar(&backupType, "t", "", "Shorthand for -type")
	flag.StringVar(&inputPath, "input", "", "Backup file, or directory of backup files")
	flag.StringVar(&inputPath, "i", "", "Shorthand for -input")
	flag.StringVar(&outputDir, "output", "", "Output directory (created if missing)")
	flag.StringVar(&outputDir, "o", "", "Shorthand for -output")
	flag.StringVar(&configPath, "config", os.Getenv("SMSBACKUP_CONFIG"), "Optional YAML or JSON config file")
	flag.StringVar(&envFiles, "env", ".env", "Comma-separated dotenv files to load")
	flag.BoolVar(&noImages, "no-images", false, "Skip image attachments")
	flag.BoolVar(&noVideos, "no-videos", false, "Skip video attachments")
	flag.BoolVar(&noAudio, "no-audio", false, "Skip audio attachments")
	flag.BoolVar(&noPDFs, "no-pdfs", false, "Skip PDF attachments")
	flag.BoolVar(&smsText, "sms.text", false, "Also export SMS bodies and MMS text to sms_messages.csv")
	flag.BoolVar(&strict, "strict", false, "Abort on the first undecodable payload instead of skipping it")
	flag.BoolVar(&callsDedup, "calls.dedup", false, "Drop calls with a timestamp already seen in this run")
	flag.BoolVar(&callsPDF, "calls.pdf", false, "Also render the call log as call_log.pdf")
	flag.BoolVar(&manifest, "manifest", false, "Write manifest.json and SHA256SUMS covering every output file, including ones kept from earlier runs")
	flag.BoolVar(&verbose, "v", false, "Verbose logging")
	flag.BoolVar(&version, "version", false, "Print version and exit")
	flag.Parse()

	if version {
		fmt.Println(app.VersionString())
		return
	}

	cfg := app.Config{
		Type:       strings.ToLower(strings.TrimSpace(backupType)),
		InputPath:  inputPath,
		OutputDir:  outputDir,
		NoImages:   noImages,
		NoVideos:   noVideos,
		NoAudio:    noAudio,
		NoPDFs:     noPDFs,
		SMSText:    smsText,
		Strict:     strict,
		CallsDedup: callsDedup,
		CallsPDF:   callsPDF,
		Manifest:   manifest,
		Verbose:    verbose,
	}
	if err := loadConfig(&cfg, splitList(envFiles), configPath); err != nil {
		log.Error().Err(err).Msg("config")
		os.Exit(exitCode(err))
	}

	if cfg.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, cfg); err != nil {
		log.Error().Err(err).Msg("run failed")
		// Exit code policy: 1 for configuration and usage errors, 2 when a
		// pipeline fails or finds no input.
		stop()
		os.Exit(exitCode(err))
	}
}

// loadConfig layers dotenv files, environment and the optional config file
// under the values already taken from flags. Validation happens in app.New.
func loadConfig(cfg *app.Config, envFiles []string, configPath string) error {
	if err := app.LoadEnvFiles(envFiles...); err != nil {
		return fmt.Errorf("%w: %v", app.ErrInvalidConfig, err)
	}
	app.ApplyEnvToConfig(cfg)
	if strings.TrimSpace(configPath) != "" {
		fc, err := app.LoadConfigFile(configPath)
		if err != nil {
			return fmt.Errorf("%w: config file: %v", app.ErrInvalidConfig, err)
		}
		app.ApplyFileConfig(cfg, fc)
	}
	return nil
}

func run(ctx context.Context, cfg app.Config) error {
	a, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	return a.Run(ctx)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, app.ErrInvalidConfig):
		return 1
	}
	return 2
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
