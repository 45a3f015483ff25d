package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/chrissnell/changepoint/internal/detect"
	"github.com/chrissnell/changepoint/internal/history"
	"github.com/chrissnell/changepoint/internal/log"
	"github.com/chrissnell/changepoint/internal/output"
	"github.com/chrissnell/changepoint/internal/source"
	"github.com/chrissnell/changepoint/pkg/config"
)

const version = "1.0-" + runtime.GOOS + "/" + runtime.GOARCH

func main() {
	cfgFile := flag.String("config", "changepoint.yaml", "Path to configuration source:\n\t\t\t  YAML: changepoint.yaml\n\t\t\t  SQLite profile store: profiles.db\n\t\t\t  Use 'changepoint-profile' to import YAML into a profile store")
	profile := flag.String("profile", config.DefaultProfile, "Profile name when -config is a SQLite profile store")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	showVersion := flag.Bool("version", false, "Show version and exit")
	penalty := flag.Float64("penalty", -1, "Override the configured PELT penalty (ignored when negative)")
	format := flag.String("format", "", "Override the output format: json or msgpack")
	flag.Parse()

	if *showVersion {
		fmt.Printf("changepoint %s\n", version)
		os.Exit(0)
	}

	// Set up logging
	if err := log.Init(*debug); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg, err := loadConfig(*cfgFile, *profile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *penalty >= 0 {
		cfg.Detection.Penalty = *penalty
	}
	if *format != "" {
		cfg.Output.Format = *format
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("Detection failed: %v", err)
	}
}

func run(ctx context.Context, cfg *config.ConfigData) error {
	enc, err := output.ParseFormat(cfg.Output.Format)
	if err != nil {
		return err
	}

	src, err := source.New(cfg.Source)
	if err != nil {
		return err
	}

	report, err := detect.NewDetector(cfg, src, log.GetSugaredLogger()).Run(ctx)
	if err != nil {
		return err
	}

	if h := cfg.History; h != nil {
		store, err := history.Open(ctx, h.Driver, h.DSN, log.GetSugaredLogger())
		if err != nil {
			return err
		}
		defer store.Close()

		label := h.Label
		if label == "" {
			label = cfg.Source.Type
		}
		if err := store.Save(ctx, label, report); err != nil {
			return err
		}
		log.Infof("Stored run %s in history as %q", report.RunID, label)
	}

	var w io.Writer = os.Stdout
	if cfg.Output.Path != "" {
		f, err := os.Create(cfg.Output.Path)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		w = f
	}
	return output.NewFormatter(enc, cfg.Output.Pretty).Write(w, report)
}

func loadConfig(cfgFile, profile string) (*config.ConfigData, error) {
	filename, _ := filepath.Abs(cfgFile)

	provider, err := config.Open(filename, profile)
	if err != nil {
		return nil, fmt.Errorf("error opening configuration: %w", err)
	}
	defer provider.Close()

	cfgData, err := provider.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error reading config file. Did you pass the -config flag? Run with -h for help: %w", err)
	}
	return cfgData, nil
}
