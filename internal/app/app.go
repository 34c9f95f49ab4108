package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/hyperifyio/smsbackup/internal/calls"
	"github.com/hyperifyio/smsbackup/internal/media"
	"github.com/hyperifyio/smsbackup/internal/messages"
	"github.com/hyperifyio/smsbackup/internal/mms"
	"github.com/hyperifyio/smsbackup/internal/vcard"
)

type App struct {
	cfg    Config
	writer *media.Writer
}

// New validates cfg and resolves its paths.
func New(cfg Config) (*App, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	in, err := NormalizePath(cfg.InputPath)
	if err != nil {
		return nil, err
	}
	out, err := NormalizePath(cfg.OutputDir)
	if err != nil {
		return nil, err
	}
	cfg.InputPath, cfg.OutputDir = in, out
	if cfg.Type == TypeAll {
		st, err := os.Stat(in)
		if err != nil {
			return nil, fmt.Errorf("input: %w", err)
		}
		if !st.IsDir() {
			return nil, fmt.Errorf("%w: type all needs an input directory", ErrInvalidConfig)
		}
	}
	return &App{cfg: cfg, writer: &media.Writer{}}, nil
}

// Config returns the resolved configuration.
func (a *App) Config() Config { return a.cfg }

// Artifacts lists the files written so far.
func (a *App) Artifacts() []media.Artifact { return a.writer.Artifacts() }

// Run executes the configured pipeline. Output files written before an error
// are left in place.
func (a *App) Run(ctx context.Context) error {
	if err := os.MkdirAll(a.cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	var err error
	if a.cfg.Type == TypeAll {
		err = a.runAll(ctx)
	} else {
		err = a.runType(ctx, a.cfg.Type, a.cfg.OutputDir)
	}
	if err != nil {
		return err
	}
	if a.cfg.Manifest {
		if err := writeManifest(a.cfg, a.cfg.OutputDir, a.writer); err != nil {
			return fmt.Errorf("manifest: %w", err)
		}
	}
	return nil
}

// runAll runs the three pipelines concurrently, each into its own
// subdirectory. Types without input files are skipped; the run fails with
// ErrNoInputs only when none had any.
func (a *App) runAll(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	var ran atomic.Int32
	for _, typ := range []string{TypeSMS, TypeCalls, TypeVCF} {
		typ := typ
		dir := filepath.Join(a.cfg.OutputDir, typ)
		g.Go(func() error {
			if _, err := DiscoverInputs(a.cfg.InputPath, typ); errors.Is(err, ErrNoInputs) {
				log.Info().Str("type", typ).Msg("no input files, skipping")
				return nil
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create %s dir: %w", typ, err)
			}
			ran.Add(1)
			return a.runType(gctx, typ, dir)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if ran.Load() == 0 {
		return fmt.Errorf("%w in %s", ErrNoInputs, a.cfg.InputPath)
	}
	return nil
}

func (a *App) runType(ctx context.Context, typ, outDir string) error {
	inputs, err := DiscoverInputs(a.cfg.InputPath, typ)
	if err != nil {
		return err
	}
	switch typ {
	case TypeSMS:
		return a.runSMS(ctx, inputs, outDir)
	case TypeCalls:
		return a.runCalls(ctx, inputs, outDir)
	case TypeVCF:
		return a.runVCF(ctx, inputs, outDir)
	}
	return fmt.Errorf("%w: unknown backup type %q", ErrInvalidConfig, typ)
}

func (a *App) mediaFilter() mms.Filter {
	f := mms.AllMedia
	f.Images = !a.cfg.NoImages
	f.Videos = !a.cfg.NoVideos
	f.Audio = !a.cfg.NoAudio
	f.PDFs = !a.cfg.NoPDFs
	return f
}

func (a *App) runSMS(ctx context.Context, inputs []string, outDir string) error {
	ex := mms.New(mms.Options{Filter: a.mediaFilter(), Strict: a.cfg.Strict}, a.writer)
	for _, p := range inputs {
		log.Info().Str("path", p).Msg("extracting mms media")
		if _, err := ex.Extract(ctx, p, outDir); err != nil {
			return fmt.Errorf("sms: %w", err)
		}
	}
	res := ex.Result()
	log.Info().
		Int("messages", res.Messages).
		Int("media", res.MediaParts).
		Int("written", len(res.Written)).
		Int("skipped", res.Skipped).
		Str("dir", outDir).
		Msg("sms done")
	if !a.cfg.SMSText {
		return nil
	}
	return a.runSMSText(ctx, inputs, outDir)
}

func (a *App) runSMSText(ctx context.Context, inputs []string, outDir string) error {
	res, err := messages.New(a.writer).Export(ctx, inputs, outDir)
	if err != nil {
		return fmt.Errorf("sms text: %w", err)
	}
	ev := log.Info().
		Int("sms", res.SMS).
		Int("mms", res.MMS).
		Int("empty", res.Empty)
	if res.CSVPath != "" {
		ev = ev.Str("csv", res.CSVPath)
	}
	ev.Msg("message text exported")
	return nil
}

func (a *App) runCalls(ctx context.Context, inputs []string, outDir string) error {
	g := calls.New(calls.Options{Dedup: a.cfg.CallsDedup, PDF: a.cfg.CallsPDF}, a.writer)
	res, err := g.Generate(ctx, inputs, outDir)
	if err != nil {
		return fmt.Errorf("calls: %w", err)
	}
	ev := log.Info().
		Int("calls", res.Calls).
		Int("omitted", res.Omitted).
		Str("csv", res.CSVPath)
	if a.cfg.CallsDedup {
		ev = ev.Int("duplicates", res.Dupes)
	}
	if res.PDFPath != "" {
		ev = ev.Str("pdf", res.PDFPath)
	}
	ev.Msg("call log written")
	return nil
}

func (a *App) runVCF(ctx context.Context, inputs []string, outDir string) error {
	ex := vcard.New(vcard.Options{Strict: a.cfg.Strict}, a.writer)
	for _, p := range inputs {
		log.Info().Str("path", p).Msg("extracting contact media")
		if _, err := ex.Extract(ctx, p, outDir); err != nil {
			return fmt.Errorf("vcf: %w", err)
		}
	}
	res := ex.Result()
	log.Info().
		Int("contacts", res.Contacts).
		Int("media", res.MediaFields).
		Int("written", len(res.Written)).
		Int("skipped", res.Skipped).
		Str("dir", outDir).
		Msg("vcf done")
	return nil
}
