// Package main provides the billtrack binary: the HTTP API, the reminder
// worker, the event watcher and a handful of one-shot bill commands.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"billtrack/internal/cli"
	"billtrack/internal/config"
	"billtrack/internal/log"
	"billtrack/internal/notify"
	"billtrack/internal/ports"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "billtrack"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globals holds the persistent flags.
type globals struct {
	logLevel string

	backend string
	conn    ports.ConnectionConfig
}

func rootCmd() *cobra.Command {
	g := &globals{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Household bill tracker",
		Long: `billtrack keeps track of household bills.

Bills live in Google Sheets or Airtable once a backend is connected, and in a
local fallback store until then. Free text such as a bill e-mail can be
parsed into a bill draft, and due bills produce reminders.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides LOG_LEVEL")
	cmd.PersistentFlags().StringVar(&g.backend, "backend", "", "Connect this backend before running (google-sheets, airtable)")
	cmd.PersistentFlags().StringVar(&g.conn.SheetID, "sheet-id", "", "Google Sheet ID for the google-sheets backend")
	cmd.PersistentFlags().StringVar(&g.conn.APIKey, "api-key", "", "API key for the airtable backend")
	cmd.PersistentFlags().StringVar(&g.conn.BaseID, "base-id", "", "Base ID for the airtable backend")

	cmd.AddCommand(
		serveCmd(g),
		addCmd(g),
		listCmd(g),
		updateCmd(g),
		paidCmd(g),
		deleteCmd(g),
		exportCmd(g),
		summaryCmd(g),
		parseCmd(g),
		categoriesCmd(),
		remindCmd(g),
		workerCmd(g),
		watchCmd(g),
		sheetsAuthCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
			},
		},
	)
	return cmd
}

// setup loads .env, the configuration and the logger.
func (g *globals) setup() (*config.Config, *log.Logger, error) {
	cli.LoadEnvFile()
	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		return nil, nil, err
	}
	return cfg, cli.SetupLogger(cfg, g.logLevel), nil
}

// app builds the wired application and connects the backend named by
// --backend. Notices are printed to errOut.
func (g *globals) app(ctx context.Context, errOut io.Writer, withAMQP bool) (context.Context, *cli.App, error) {
	cfg, logger, err := g.setup()
	if err != nil {
		return ctx, nil, err
	}
	return g.build(ctx, cfg, logger, errOut, withAMQP)
}

func (g *globals) build(ctx context.Context, cfg *config.Config, logger *log.Logger, errOut io.Writer, withAMQP bool) (context.Context, *cli.App, error) {
	app, err := cli.NewApp(ctx, cfg, logger, withAMQP)
	if err != nil {
		return ctx, nil, err
	}
	if errOut != nil {
		ctx = notify.WithNotifier(ctx, console{w: errOut})
	}
	if g.backend != "" && !app.Service.Connect(ctx, g.backend, g.conn) {
		_ = app.Close()
		return ctx, nil, fmt.Errorf("could not connect to %s", g.backend)
	}
	return ctx, app, nil
}

// console prints notices for a terminal user.
type console struct {
	w io.Writer
}

func (c console) Success(_ context.Context, msg string) { fmt.Fprintln(c.w, "✓", msg) }
func (c console) Error(_ context.Context, msg string)   { fmt.Fprintln(c.w, "✗", msg) }
