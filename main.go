package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/pterm/pterm"

	"github.com/plumber-cd/ez-netwatch/internal/api"
	"github.com/plumber-cd/ez-netwatch/internal/config"
	"github.com/plumber-cd/ez-netwatch/internal/domain"
	"github.com/plumber-cd/ez-netwatch/internal/journal"
	"github.com/plumber-cd/ez-netwatch/internal/logging"
	"github.com/plumber-cd/ez-netwatch/internal/tracing"
	"github.com/plumber-cd/ez-netwatch/internal/ui"
	"github.com/plumber-cd/ez-netwatch/internal/vendors"
)

const appName = "ez-netwatch"

var version = "dev"

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	flags := flag.NewFlagSet(appName, flag.ContinueOnError)
	configPath := flags.String("config", appName+".toml", "configuration file (.toml, .yaml, .json or .ini)")
	apiBase := flags.String("api", "", "backend base URL, overrides api_base")
	dataDir := flags.String("dir", "", "directory for snapshots, journal and logs, overrides data_dir")
	list := flags.Bool("list", false, "print the inventory and exit")
	showVersion := flags.Bool("version", false, "print the version and exit")
	if err := flags.Parse(args); err != nil {
		return err
	}

	if *showVersion {
		_, err := fmt.Fprintln(stdout, appName, version)
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *apiBase != "" {
		cfg.APIBase = *apiBase
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	timeout, err := cfg.HTTPTimeout()
	if err != nil {
		return err
	}

	logger, logCloser, err := logging.New(cfg.ResolvePath(cfg.LogFile), cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = logCloser.Close() }()

	shutdownTracing, err := tracing.Init(appName, version, cfg.ResolvePath(cfg.TraceFile))
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	opts := []api.Option{api.WithTimeout(timeout), api.WithLogger(logger)}
	if cfg.Token != "" {
		opts = append(opts, api.WithToken(cfg.Token))
	}
	if cfg.Username != "" {
		opts = append(opts, api.WithBasicAuth(cfg.Username, cfg.Password))
	}
	client, err := api.New(cfg.APIBase, opts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ouiDB, err := vendors.Open(cfg.ResolvePath(cfg.OUIFile), logger)
	if err != nil {
		return err
	}

	if *list {
		inv, err := client.Inventory(ctx)
		if err != nil {
			return err
		}
		return printInventory(stdout, inv, ouiDB)
	}

	go func() {
		if err := ouiDB.Watch(ctx); err != nil {
			logger.Warn("OUI database watcher stopped", logger.Args("error", err))
		}
	}()

	var submissions *journal.Journal
	if cfg.JournalFile != "" {
		submissions, err = journal.Open(cfg.ResolvePath(cfg.JournalFile))
		if err != nil {
			return err
		}
		defer func() { _ = submissions.Close() }()
	}

	logger.Info("starting", logger.Args("version", version, "api", client.BaseURL(), "dir", cfg.DataDir))
	app, err := ui.New(ctx, ui.Deps{
		Client:  client,
		Journal: submissions,
		Vendors: ouiDB,
		Logger:  logger,
		WorkDir: cfg.DataDir,
	})
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		app.TviewApp.QueueUpdate(app.Stop)
	}()
	return app.Run()
}

// printInventory writes both collections as tables followed by a bar chart
// of the collection sizes.
func printInventory(w io.Writer, inv *domain.Inventory, ouiDB *vendors.Database) error {
	bars := make([]pterm.Bar, 0, len(domain.Sources))
	for _, source := range domain.Sources {
		entries := inv.Entries(source)
		bars = append(bars, pterm.Bar{Label: source.Folder(), Value: len(entries)})

		rows := pterm.TableData{{"IP Address", "MAC Address", "Vendor", "Description", "Last Seen"}}
		for i := range entries {
			entry := &entries[i]
			vendor := entry.VendorText()
			if vendor == "" {
				if guess := ouiDB.Company(entry.MACAddress); guess != "" {
					vendor = "~" + guess
				}
			}
			rows = append(rows, []string{entry.IPAddress, entry.MACAddress, vendor, entry.DescriptionText(), entry.LastSeen})
		}

		header := pterm.DefaultSection.Sprint(source.Folder() + " (" + strconv.Itoa(len(entries)) + ")")
		table, err := pterm.DefaultTable.WithHasHeader().WithData(rows).Srender()
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w, header+table); err != nil {
			return err
		}
	}

	chart, err := pterm.DefaultBarChart.WithBars(bars).WithHorizontal().WithShowValue().Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, chart)
	return err
}
