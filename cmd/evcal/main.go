package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"evcal/internal/app"
	"evcal/internal/config"
	"evcal/internal/ics"
	appLog "evcal/internal/log"
	"evcal/internal/notify"
	"evcal/internal/store"
	"evcal/internal/web"
)

const version = "0.1.0"

// flagConfig holds CLI flag values; non-empty values override config.
type flagConfig struct {
	configPath string
	listen     string
	dataDir    string
	importCSV  string
	importICS  string
	exportCSV  string
	exportICS  string
	query      string
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.dataDir != "" {
		conf.DataDir = flags.dataDir
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	loc, err := conf.Location()
	if err != nil {
		appLog.Error("invalid timezone; using local", err)
	}

	appLog.Info("evcal starting",
		"version", version,
		"listen", conf.Listen,
		"timezone", loc.String(),
		"week_start", conf.WeekStart,
		"data_dir", conf.DataDir,
		"reminders", conf.Reminders.Enabled,
	)

	kv, err := store.NewFileKV(conf.DataDir)
	if err != nil {
		appLog.Error("failed to open data dir", err, "data_dir", conf.DataDir)
		os.Exit(1)
	}
	fetcher := ics.NewFetcher(nil, filepath.Join(conf.DataDir, "ics-cache"))

	if flags.oneShot() {
		a := app.New(store.NewRepository(kv), app.Options{Location: loc, WeekStart: conf.WeekStartDay()})
		if err := runOneShot(a, fetcher, flags, conf); err != nil {
			appLog.Error("command failed", err)
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := app.Options{
		Location:  loc,
		WeekStart: conf.WeekStartDay(),
		Lead:      conf.Reminders.Lead(),
	}
	closeNotifier := func() error { return nil }
	if conf.Reminders.Enabled {
		opts.Notifier, closeNotifier = notify.NewNotifier("evcal")
	}
	a := app.New(store.NewRepository(kv), opts)
	if err := a.StartReminderScan(conf.Reminders.Scan); err != nil {
		appLog.Error("reminder scan disabled", err)
	}

	srv := web.NewServer(conf, a, fetcher)
	if err := srv.Serve(ctx); err != nil {
		appLog.Error("HTTP server failed", err)
	}

	a.Close()
	_ = closeNotifier()
	appLog.Info("evcal exiting")
}

func (f flagConfig) oneShot() bool {
	return f.importCSV != "" || f.importICS != "" || f.exportCSV != "" || f.exportICS != ""
}

// runOneShot performs the import/export flags in that order and exits.
// "-" means stdin/stdout.
func runOneShot(a *app.App, fetcher *ics.Fetcher, flags flagConfig, conf *config.Config) error {
	if flags.importCSV != "" {
		err := withInput(flags.importCSV, func(r io.Reader) error {
			res, err := a.ImportCSV(r)
			if err != nil {
				return err
			}
			appLog.Info("imported csv", "accepted", res.Accepted, "rejected", res.Rejected)
			return nil
		})
		if err != nil {
			return fmt.Errorf("import csv: %w", err)
		}
	}

	if flags.importICS != "" {
		var (
			res app.ImportResult
			err error
		)
		if isURL(flags.importICS) {
			res, err = a.ImportICSURL(context.Background(), fetcher, flags.importICS)
		} else {
			err = withInput(flags.importICS, func(r io.Reader) error {
				var ierr error
				res, ierr = a.ImportICS(r)
				return ierr
			})
		}
		if err != nil {
			return fmt.Errorf("import ics: %w", err)
		}
		appLog.Info("imported ics", "created", len(res.Created), "rejected", res.Rejected)
	}

	if flags.exportCSV != "" {
		err := withOutput(flags.exportCSV, func(w io.Writer) error {
			return a.ExportCSV(w, flags.query, conf.CSV.ExportIDs)
		})
		if err != nil {
			return fmt.Errorf("export csv: %w", err)
		}
	}

	if flags.exportICS != "" {
		err := withOutput(flags.exportICS, func(w io.Writer) error {
			return a.ExportICS(w, flags.query)
		})
		if err != nil {
			return fmt.Errorf("export ics: %w", err)
		}
	}
	return nil
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func withInput(path string, fn func(io.Reader) error) error {
	if path == "-" {
		return fn(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return fn(f)
}

func withOutput(path string, fn func(io.Writer) error) error {
	if path == "-" {
		return fn(os.Stdout)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", config.DefaultPath(), "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.StringVar(&cfg.dataDir, "data-dir", "", "Data directory (overrides config if set)")
	flag.StringVar(&cfg.importCSV, "import", "", "Import events from a CSV file (\"-\" for stdin) and exit")
	flag.StringVar(&cfg.importICS, "import-ics", "", "Import events from an iCalendar file or http(s) URL and exit")
	flag.StringVar(&cfg.exportCSV, "export", "", "Export events to a CSV file (\"-\" for stdout) and exit")
	flag.StringVar(&cfg.exportICS, "export-ics", "", "Export events to an iCalendar file (\"-\" for stdout) and exit")
	flag.StringVar(&cfg.query, "query", "", "Search text limiting -export/-export-ics")

	flag.Parse()

	return cfg
}
