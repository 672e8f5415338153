package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"billtrack/internal/core"
	"billtrack/internal/parser"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printBills(w io.Writer, bills []core.Bill) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tAMOUNT\tDUE\tCATEGORY\tSTATUS")
	for _, b := range bills {
		info := core.LookupCategory(b.Category)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s %s\t%s\n",
			b.ID, b.Name, core.FormatAmount(b.Amount), b.DueDate, info.Icon, info.DisplayName, b.Status)
	}
	return tw.Flush()
}

func addCmd(g *globals) *cobra.Command {
	var form core.Form
	var text string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a bill",
		Long: `Add a bill from flags. With --text the text is parsed first and the
extracted fields fill in whatever the flags left empty.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, app, err := g.app(cmd.Context(), cmd.ErrOrStderr(), true)
			if err != nil {
				return err
			}
			defer app.Close()

			if text != "" {
				res, err := app.Service.Parse(ctx, text)
				if err != nil {
					return err
				}
				form = fillEmpty(form, res)
			}
			b, err := app.Service.Add(ctx, form)
			if err != nil {
				return err
			}
			return printBills(cmd.OutOrStdout(), []core.Bill{b})
		},
	}
	cmd.Flags().StringVar(&form.Name, "name", "", "Bill name")
	cmd.Flags().StringVar(&form.Amount, "amount", "", "Amount, e.g. 1,250.00")
	cmd.Flags().StringVar(&form.DueDate, "due", "", "Due date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&form.Category, "category", string(core.CategoryOther), "Category id, see the categories command")
	cmd.Flags().StringVar(&form.Description, "description", "", "Free-form note")
	cmd.Flags().StringVar(&text, "text", "", "Free text to parse, e.g. a pasted bill e-mail")
	return cmd
}

// fillEmpty merges res into the fields of f that the user left empty. The
// category flag defaults to "other", which counts as empty.
func fillEmpty(f core.Form, res parser.Result) core.Form {
	merged := res.MergeInto(core.Form{})
	if f.Name == "" {
		f.Name = merged.Name
	}
	if f.Amount == "" {
		f.Amount = merged.Amount
	}
	if f.DueDate == "" {
		f.DueDate = merged.DueDate
	}
	if (f.Category == "" || f.Category == string(core.CategoryOther)) && merged.Category != "" {
		f.Category = merged.Category
	}
	return f
}

func listCmd(g *globals) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List bills",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, app, err := g.app(cmd.Context(), cmd.ErrOrStderr(), false)
			if err != nil {
				return err
			}
			defer app.Close()

			bills := app.Service.List(ctx)
			if asJSON {
				return printJSON(cmd.OutOrStdout(), bills)
			}
			return printBills(cmd.OutOrStdout(), bills)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func updateCmd(g *globals) *cobra.Command {
	var name, amount, due, category, status, description string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of a bill",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var p core.Patch
			flags := cmd.Flags()
			if flags.Changed("name") {
				p.Name = &name
			}
			if flags.Changed("amount") {
				d, err := core.ParseAmount(amount)
				if err != nil {
					return fmt.Errorf("amount %q: %w", amount, err)
				}
				p.Amount = &d
			}
			if flags.Changed("due") {
				d, err := core.ParseDate(due)
				if err != nil {
					return err
				}
				p.DueDate = &d
			}
			if flags.Changed("category") {
				c := core.Category(category)
				p.Category = &c
			}
			if flags.Changed("status") {
				s := core.Status(status)
				p.Status = &s
			}
			if flags.Changed("description") {
				p.Description = &description
			}
			if p.IsEmpty() {
				return fmt.Errorf("nothing to update")
			}

			ctx, app, err := g.app(cmd.Context(), cmd.ErrOrStderr(), true)
			if err != nil {
				return err
			}
			defer app.Close()

			b, err := app.Service.Update(ctx, args[0], p)
			if err != nil {
				return err
			}
			return printBills(cmd.OutOrStdout(), []core.Bill{b})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Bill name")
	cmd.Flags().StringVar(&amount, "amount", "", "Amount")
	cmd.Flags().StringVar(&due, "due", "", "Due date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&category, "category", "", "Category id")
	cmd.Flags().StringVar(&status, "status", "", "pending, paid or overdue")
	cmd.Flags().StringVar(&description, "description", "", "Free-form note")
	return cmd
}

func paidCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "paid <id>",
		Short: "Mark a bill as paid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, app, err := g.app(cmd.Context(), cmd.ErrOrStderr(), true)
			if err != nil {
				return err
			}
			defer app.Close()

			b, err := app.Service.MarkPaid(ctx, args[0])
			if err != nil {
				return err
			}
			return printBills(cmd.OutOrStdout(), []core.Bill{b})
		},
	}
}

func deleteCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a bill",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, app, err := g.app(cmd.Context(), cmd.ErrOrStderr(), true)
			if err != nil {
				return err
			}
			defer app.Close()

			ok, err := app.Service.Delete(ctx, args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("bill %s was not deleted", args[0])
			}
			return nil
		},
	}
}

func exportCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Copy the locally stored bills into the backend named by --backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if g.backend == "" {
				return fmt.Errorf("export needs --backend")
			}
			ctx, app, err := g.app(cmd.Context(), cmd.ErrOrStderr(), true)
			if err != nil {
				return err
			}
			defer app.Close()

			n, ok, err := app.Service.Export(ctx)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("export to %s failed", g.backend)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d bills exported\n", n)
			return nil
		},
	}
}

func summaryCmd(g *globals) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show pending total, next due bill and status counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, app, err := g.app(cmd.Context(), cmd.ErrOrStderr(), false)
			if err != nil {
				return err
			}
			defer app.Close()

			s := app.Service.Summary(ctx)
			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, s)
			}
			fmt.Fprintf(out, "Pending total: %s\n", s.Display)
			fmt.Fprintf(out, "Pending: %d  Paid: %d  Overdue: %d\n", s.Pending, s.Paid, s.Overdue)
			if s.NextDue != nil {
				fmt.Fprintf(out, "Next due: %s (%s) on %s\n", s.NextDue.Name, core.FormatAmount(s.NextDue.Amount), s.NextDue.DueDate)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func parseCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "parse <text>...",
		Short: "Extract bill fields from free text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, app, err := g.app(cmd.Context(), cmd.ErrOrStderr(), false)
			if err != nil {
				return err
			}
			defer app.Close()

			res, err := app.Service.Parse(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
}

func categoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List bill categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME")
			for _, c := range core.Categories() {
				fmt.Fprintf(tw, "%s\t%s %s\n", c.Code, c.Icon, c.DisplayName)
			}
			return tw.Flush()
		},
	}
}
