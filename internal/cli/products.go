package cli

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pricewatch/internal/alert"
	"pricewatch/internal/errors"
	"pricewatch/internal/logging"
	"pricewatch/internal/models"
	"pricewatch/internal/money"
	"pricewatch/pkg/utils"
)

// addProductCommands adds product management commands.
func addProductCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newAddCmd(app))
	rootCmd.AddCommand(newAppendCmd(app))
	rootCmd.AddCommand(newListCmd(app))
	rootCmd.AddCommand(newRemoveCmd(app))
	rootCmd.AddCommand(newRemoveRetailerCmd(app))
	rootCmd.AddCommand(newTargetCmd(app))
}

// addedURL is the per-URL result of add and append.
type addedURL struct {
	URL        string `json:"url"`
	Retailer   string `json:"retailer,omitempty"`
	Title      string `json:"title,omitempty"`
	PriceCents int64  `json:"priceCents,omitempty"`
	Error      string `json:"error,omitempty"`
}

type addResult struct {
	Product *models.Product `json:"product,omitempty"`
	URLs    []addedURL      `json:"urls"`
}

func newAddCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "add <name> <target-price> <url>...",
		Short: "Track a product at one or more retailers",
		Long: `Track a product at one or more retailers.

Every URL is checked once before it is stored; URLs whose price cannot be
read are reported and skipped. Adding a URL to an existing product name
(case-insensitive) joins that product and overwrites its target price.`,
		Example: `  pricewatch add "Sony WH-1000XM5" 299.99 https://www.amazon.com/dp/B09XS7JWHH
  pricewatch add Widget 50 https://www.target.com/p/widget/-/A-1 https://www.walmart.com/ip/123`,
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			name := strings.TrimSpace(args[0])
			if name == "" {
				return errors.NewValidationError("name", args[0], "must not be empty")
			}
			target, err := parseTarget(args[1])
			if err != nil {
				return err
			}

			if err := app.openChecker(cmd); err != nil {
				return err
			}

			res := addURLs(cmd, app, output, args[2:], func(u, retailerName string) (models.Product, error) {
				return app.Store.UpsertRetailer(cmd.Context(), name, u, retailerName, target)
			})
			return finishAdd(output, res, app.clock())
		},
	}
}

func newAppendCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "append <product-id> <url>...",
		Short: "Add retailer URLs to a tracked product",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.openChecker(cmd); err != nil {
				return err
			}

			p, err := app.Store.FindProduct(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			var urls []string
			var res addResult
			for _, u := range args[1:] {
				if p.Retailer(u) != nil {
					res.URLs = append(res.URLs, addedURL{URL: u, Error: "already tracked for this product"})
					if !output.IsJSON() {
						output.Warning("! %s is already tracked for %s", u, p.Name)
					}
					continue
				}
				urls = append(urls, u)
			}

			more := addURLs(cmd, app, output, urls, func(u, retailerName string) (models.Product, error) {
				return app.Store.UpsertRetailer(cmd.Context(), p.Name, u, retailerName, p.TargetPriceCents)
			})
			res.Product = more.Product
			res.URLs = append(res.URLs, more.URLs...)
			return finishAdd(output, res, app.clock())
		},
	}
}

// addURLs validates and checks each URL, persisting the ones that read.
// A failing URL is reported and does not stop the others.
func addURLs(cmd *cobra.Command, app *App, output *Output, urls []string,
	persist func(u, retailerName string) (models.Product, error)) addResult {
	var res addResult
	for _, u := range urls {
		entry := addedURL{URL: u}

		if err := validateURL(u); err != nil {
			entry.Error = err.Error()
			res.URLs = append(res.URLs, entry)
			if !output.IsJSON() {
				output.Error("✗ %s: %v", u, err)
			}
			continue
		}

		if !output.IsJSON() {
			output.Dim("Checking %s ...", u)
		}
		result, err := app.Checker.CheckURL(cmd.Context(), u)
		if err != nil {
			entry.Error = err.Error()
			res.URLs = append(res.URLs, entry)
			if !output.IsJSON() {
				output.Error("✗ %v", err)
			}
			continue
		}
		entry.Retailer = result.Retailer
		entry.Title = result.Title
		entry.PriceCents = result.PriceCents

		p, err := persist(u, result.Retailer)
		if err != nil {
			entry.Error = err.Error()
			res.URLs = append(res.URLs, entry)
			if !output.IsJSON() {
				output.Error("✗ %s: %v", u, err)
			}
			continue
		}
		res.Product = &p
		res.URLs = append(res.URLs, entry)

		if !output.IsJSON() {
			output.Success("✓ %s: %s (%s)", result.Retailer, money.FormatUSD(result.PriceCents), utils.Truncate(result.Title, 50))
		}
	}
	return res
}

func finishAdd(output *Output, res addResult, now time.Time) error {
	if output.IsJSON() {
		if err := output.JSON(res); err != nil {
			return err
		}
	} else if res.Product != nil {
		output.Println()
		printProduct(output, *res.Product, now)
	}
	if res.Product == nil {
		return fmt.Errorf("no retailer URL could be added")
	}
	return nil
}

func newListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List tracked products",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.openStore(); err != nil {
				return err
			}

			products, err := app.Store.LoadAll(cmd.Context())
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(products)
			}
			if len(products) == 0 {
				output.Info("No products tracked yet. Add one with 'pricewatch add'.")
				return nil
			}

			for i, p := range products {
				if i > 0 {
					output.Println()
				}
				printProduct(output, p, app.clock())
			}
			return nil
		},
	}
}

// printProduct renders a product with its retailers cheapest first.
func printProduct(output *Output, p models.Product, now time.Time) {
	status := ""
	if p.Triggered {
		status = " " + output.Green("[alerted]")
	}
	output.Printf("%s%s\n", output.BoldText(p.Name), status)
	output.Printf("  ID:     %s\n", output.DimText(p.ID))
	output.Printf("  Target: %s\n", money.FormatUSD(p.TargetPriceCents))

	table := NewTable(output, "  RETAILER", "PRICE", "CHECKED", "URL")
	for _, r := range SortedByPrice(p) {
		price := FormatPrice(r.CurrentPriceCents)
		if r.CurrentPriceCents != nil && *r.CurrentPriceCents <= p.TargetPriceCents {
			price = output.Green(price)
		}
		table.AddRow("  "+r.Retailer, price, FormatChecked(r.LastChecked, now), utils.Truncate(r.URL, 60))
	}
	table.Render()

	ev := alert.Evaluate(p, alert.FromProduct(p))
	if !ev.HasBest {
		return
	}
	line := fmt.Sprintf("  Best: %s at %s", money.FormatUSD(ev.Best.PriceCents), ev.Best.Retailer)
	if ev.BelowTarget {
		output.Success("%s (%s under target)", line, money.FormatUSD(ev.SavingsCents))
	} else {
		output.Println(output.Yellow(fmt.Sprintf("%s (%s above target)", line, money.FormatUSD(ev.DeficitCents))))
	}
}

func newRemoveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <product-id>",
		Aliases: []string{"rm"},
		Short:   "Stop tracking a product",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.openStore(); err != nil {
				return err
			}

			removed, err := app.Store.RemoveProduct(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !removed {
				return errors.Wrapf(errors.ErrProductNotFound, "product %s", args[0])
			}

			var archived int64
			if app.Archive != nil {
				archived, err = app.Archive.DeleteProduct(cmd.Context(), args[0])
				if err != nil {
					log := logging.FromContext(cmd.Context(), app.Logger)
					log.Warn().Err(err).Str("product_id", args[0]).Msg("Failed to delete archived observations")
				}
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"removed":              true,
					"productId":            args[0],
					"archivedObservations": archived,
				})
			}
			output.Success("✓ Removed product %s", args[0])
			return nil
		},
	}
}

func newRemoveRetailerCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "remove-retailer <product-id> <url>",
		Short: "Stop tracking one retailer of a product",
		Long: `Stop tracking one retailer of a product.

Removing the last retailer removes the product.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.openStore(); err != nil {
				return err
			}

			p, err := app.Store.FindProduct(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if p.Retailer(args[1]) == nil {
				return errors.Wrapf(errors.ErrRetailerNotFound, "%s on product %s", args[1], args[0])
			}
			if _, err := app.Store.RemoveRetailer(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"removed":   true,
					"productId": args[0],
					"url":       args[1],
				})
			}
			output.Success("✓ Removed %s", args[1])
			return nil
		},
	}
}

func newTargetCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "target <product-id> <price>",
		Short: "Change a product's target price",
		Long: `Change a product's target price.

A new target re-arms the alert, so a product that already alerted will
alert again once a price reaches the new target.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			target, err := parseTarget(args[1])
			if err != nil {
				return err
			}
			if err := app.openStore(); err != nil {
				return err
			}

			p, err := app.Store.UpdateProduct(cmd.Context(), args[0], models.ProductPatch{
				TargetPriceCents: models.Int64(target),
				Triggered:        models.Bool(false),
			})
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(p)
			}
			output.Success("✓ Target for %s set to %s", p.Name, money.FormatUSD(target))
			return nil
		},
	}
}

// parseTarget accepts "50", "49.99" or "$49.99" and requires a positive amount.
func parseTarget(s string) (int64, error) {
	cents, err := money.FromString(strings.TrimPrefix(strings.TrimSpace(s), "$"))
	if err != nil {
		return 0, errors.NewValidationError("target", s, "is not a price")
	}
	if cents <= 0 {
		return 0, errors.NewValidationError("target", s, "must be greater than zero")
	}
	return cents, nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return errors.NewValidationError("url", raw, "must be an http(s) URL")
	}
	return nil
}
