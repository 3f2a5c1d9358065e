package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pricewatch/internal/checker"
	"pricewatch/internal/extract"
	"pricewatch/internal/money"
	"pricewatch/internal/render"
	"pricewatch/pkg/utils"
)

// addCheckCommands adds price checking commands.
func addCheckCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newCheckCmd(app))
	rootCmd.AddCommand(newProbeCmd(app))
}

func newCheckCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "check [product-id]",
		Short: "Refresh prices and send alerts",
		Long: `Refresh the price of every tracked retailer and alert on products whose
best price reached the target.

Retailers are checked one at a time with a pause after every successful
read. A failing retailer is reported and the pass continues.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.openChecker(cmd); err != nil {
				return err
			}

			var report checker.Report
			var runErr error
			if len(args) == 1 {
				pr, err := app.Checker.CheckProduct(cmd.Context(), args[0])
				if err != nil && pr.ProductID == "" {
					return err
				}
				report.Products = []checker.ProductReport{pr}
				runErr = err
			} else {
				if !output.IsJSON() {
					output.Info("Checking prices...")
				}
				report, runErr = app.Checker.Run(cmd.Context())
			}

			if output.IsJSON() {
				if err := output.JSON(report); err != nil {
					return err
				}
				return runErr
			}

			if len(report.Products) == 0 && runErr == nil {
				output.Info("No products tracked yet. Add one with 'pricewatch add'.")
				return nil
			}
			for _, pr := range report.Products {
				output.Println()
				printProductReport(output, pr)
			}
			output.Println()
			summary := fmt.Sprintf("Checked %d retailer(s), %d failed, %d alert(s)",
				report.Checked(), report.Failed(), report.Alerts())
			if report.Failed() > 0 {
				output.Warning("%s", summary)
			} else {
				output.Success("%s", summary)
			}
			return runErr
		},
	}
}

func printProductReport(output *Output, pr checker.ProductReport) {
	output.Printf("%s %s\n", output.BoldText(pr.Name), output.DimText("("+pr.ProductID+")"))

	for _, o := range pr.Retailers {
		if !o.OK() {
			output.Printf("  %s %s: %s\n", output.Red("✗"), o.Retailer, o.Error)
			continue
		}
		output.Printf("  %s %s %s %s\n",
			output.Green("✓"),
			utils.PadRight(o.Retailer+":", 14),
			money.FormatUSD(o.PriceCents),
			output.DimText(FormatChange(o.PreviousCents, o.PriceCents)))
	}

	ev := pr.Evaluation
	if !ev.HasBest {
		output.Warning("  No price could be read")
		return
	}
	output.Printf("  Best: %s at %s (target %s)\n",
		money.FormatUSD(ev.Best.PriceCents), output.Cyan(ev.Best.Retailer), money.FormatUSD(pr.TargetCents))
	switch {
	case pr.Alerted:
		output.Success("  ALERT: at or below target, you save %s", money.FormatUSD(ev.SavingsCents))
	case ev.BelowTarget:
		output.Success("  At or below target, you save %s (already alerted)", money.FormatUSD(ev.SavingsCents))
	default:
		output.Dim("  Waiting for a %s price drop", money.FormatUSD(ev.DeficitCents))
	}
	if pr.NotifyError != "" {
		output.Warning("  Notification failed: %s", pr.NotifyError)
	}
}

func newProbeCmd(app *App) *cobra.Command {
	var htmlFile string

	cmd := &cobra.Command{
		Use:   "probe <url>",
		Short: "Extract a price from a URL without tracking it",
		Long: `Extract a price from a URL without tracking it.

With --html the page is read from a saved file instead of the network,
which helps when a retailer's markup changes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			var engine *extract.Engine
			if htmlFile != "" {
				data, err := os.ReadFile(htmlFile)
				if err != nil {
					return fmt.Errorf("reading %s: %w", htmlFile, err)
				}
				static := render.NewStaticRenderer(nil)
				static.SetFallback(string(data))
				engine = extract.NewEngine(app.Registry, static, extract.Config{MaxAttempts: 1}, app.Logger)
			} else {
				app.openEngine()
				engine = app.Engine
			}

			res, err := engine.ExtractWithRetry(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(res)
			}
			output.Printf("Retailer: %s\n", res.Retailer)
			output.Printf("Title:    %s\n", res.Title)
			output.Printf("Price:    %s\n", output.Green(money.Format(res.PriceCents, res.Currency)))
			output.Dim("Selector: %s", res.Selector)
			return nil
		},
	}

	cmd.Flags().StringVar(&htmlFile, "html", "", "read the page from a saved HTML file")
	return cmd
}
