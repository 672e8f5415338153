package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"billtrack/internal/amqp"
	"billtrack/internal/cli"
	"billtrack/internal/services"
	"billtrack/internal/worker"
)

func remindCmd(g *globals) *cobra.Command {
	var kinds []string
	var publish, asJSON bool

	cmd := &cobra.Command{
		Use:   "remind",
		Short: "Show the reminders due today",
		Long: `Evaluate the reminder rules against the current bills. With --publish the
reminders are also sent to the AMQP exchange.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, app, err := g.app(cmd.Context(), cmd.ErrOrStderr(), publish)
			if err != nil {
				return err
			}
			defer app.Close()

			settings := app.Reminders
			if len(kinds) > 0 {
				settings = services.SettingsFromNames(kinds)
				if len(settings.Kinds()) == 0 {
					return fmt.Errorf("no known reminder kind in %s", strings.Join(kinds, ","))
				}
			}

			reminders := app.Service.Reminders(ctx, settings)
			out := cmd.OutOrStdout()
			if asJSON {
				if reminders == nil {
					reminders = []services.Reminder{}
				}
				if err := printJSON(out, reminders); err != nil {
					return err
				}
			} else {
				if len(reminders) == 0 {
					fmt.Fprintln(out, "No reminders")
				}
				for _, r := range reminders {
					fmt.Fprintf(out, "[%s] %s\n", r.Kind, r.Message)
				}
			}

			if publish {
				if app.Publisher == nil {
					return errors.New("--publish needs AMQP_URL")
				}
				sent := app.Service.PublishReminders(ctx, reminders)
				fmt.Fprintf(cmd.ErrOrStderr(), "%d of %d reminders published\n", len(sent), len(reminders))
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&kinds, "kinds", nil, "Reminder kinds (before3Days, before1Day, onDueDate, overdue); defaults to REMINDERS")
	cmd.Flags().BoolVar(&publish, "publish", false, "Publish the reminders to AMQP")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func workerCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Publish due reminders on an interval",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.setup()
			if err != nil {
				return err
			}
			if cfg.AMQPURL == "" {
				return errors.New("the reminder worker needs AMQP_URL")
			}

			ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, nil)
			ctx, app, err := g.build(ctx, cfg, logger, nil, true)
			if err != nil {
				return err
			}
			defer app.Close()

			if cfg.ListCacheTTL > 0 {
				app.Caches.StartCleanup(cfg.ListCacheTTL)
			}
			w := worker.NewReminderWorker(app.Service, app.Reminders, cfg.ReminderInterval, logger)
			if err := w.Run(ctx); err != nil {
				return err
			}
			cli.WaitForShutdown(ctx, done)
			return nil
		},
	}
}

func watchCmd(g *globals) *cobra.Command {
	var queue string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print bill events and reminders from the AMQP exchange",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.setup()
			if err != nil {
				return err
			}
			if cfg.AMQPURL == "" {
				return errors.New("watch needs AMQP_URL")
			}
			if queue == "" {
				queue = cfg.AMQPQueue
			}

			ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, nil)
			client, err := cli.ConnectAMQP(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer client.Close()

			out := cmd.OutOrStdout()
			handler := worker.NewEventHandler(logger)
			handler.OnBillEvent = func(ev *amqp.BillEvent) {
				name := ev.BillID
				if ev.Bill != nil {
					name = ev.Bill.Name
				}
				fmt.Fprintf(out, "%s %-10s %s (%s)\n", ev.Timestamp.Format("15:04:05"), ev.Type, name, ev.Backend)
			}
			handler.OnReminder = func(r *amqp.ReminderMessage) {
				fmt.Fprintf(out, "%s %-10s %s\n", r.Timestamp.Format("15:04:05"), r.Kind, r.Message)
			}

			err = client.Consume(ctx, queue, "bill.#", handler.Handle)
			if errors.Is(err, context.Canceled) {
				cli.WaitForShutdown(ctx, done)
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&queue, "queue", "", "Queue to bind; defaults to AMQP_QUEUE")
	return cmd
}
