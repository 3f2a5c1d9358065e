package cli

import (
	"sort"
	"time"

	"github.com/spf13/cobra"

	"pricewatch/internal/logging"
	"pricewatch/internal/models"
	"pricewatch/internal/money"
	"pricewatch/internal/store"
	"pricewatch/pkg/utils"
)

// addHistoryCommands adds price history commands.
func addHistoryCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newHistoryCmd(app))
}

type historyEntry struct {
	CheckedAt  time.Time `json:"checkedAt"`
	Retailer   string    `json:"retailer"`
	URL        string    `json:"url"`
	PriceCents int64     `json:"priceCents"`
	Title      string    `json:"title,omitempty"`
}

func newHistoryCmd(app *App) *cobra.Command {
	var (
		urlFilter string
		limit     int
		since     time.Duration
		csvOut    bool
	)

	cmd := &cobra.Command{
		Use:   "history <product-id>",
		Short: "Show recorded prices of a product",
		Long: `Show recorded prices of a product, oldest first.

Observations come from the archive when it is enabled, otherwise from the
per-retailer history kept in the data file.`,
		Example: `  pricewatch history 3f1c... --limit 20
  pricewatch history 3f1c... --since 168h --csv > widget.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.openStore(); err != nil {
				return err
			}

			p, err := app.Store.FindProduct(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			filter := store.HistoryFilter{ProductID: p.ID, URL: urlFilter, Limit: limit}
			if since > 0 {
				filter.Since = app.clock().Add(-since)
			}

			log := logging.FromContext(cmd.Context(), app.Logger)
			log.Debug().
				Str("product_id", p.ID).
				Str("url", urlFilter).
				Time("since", filter.Since).
				Int("limit", limit).
				Bool("archive", app.Archive != nil).
				Msg("Querying price history")

			var observations []store.Observation
			if app.Archive != nil {
				observations, err = app.Archive.History(cmd.Context(), filter)
				if err != nil {
					return err
				}
			} else {
				observations = historyFromProduct(p, filter)
			}

			if csvOut {
				return store.WriteCSV(output.Writer(), observations)
			}

			entries := make([]historyEntry, 0, len(observations))
			for _, o := range observations {
				entries = append(entries, historyEntry{
					CheckedAt:  o.CheckedAt,
					Retailer:   o.Retailer,
					URL:        o.URL,
					PriceCents: o.PriceCents,
					Title:      o.Title,
				})
			}
			if output.IsJSON() {
				return output.JSON(entries)
			}

			output.Bold("%s (target %s)", p.Name, money.FormatUSD(p.TargetPriceCents))
			if len(entries) == 0 {
				output.Dim("No prices recorded yet. Run 'pricewatch check'.")
				return nil
			}

			table := NewTable(output, "CHECKED", "RETAILER", "PRICE", "CHANGE")
			last := map[string]int64{}
			for _, e := range entries {
				var prev *int64
				if v, ok := last[e.URL]; ok {
					prev = &v
				}
				price := money.FormatUSD(e.PriceCents)
				if e.PriceCents <= p.TargetPriceCents {
					price = output.Green(price)
				}
				table.AddRow(
					e.CheckedAt.Local().Format("2006-01-02 15:04"),
					utils.Truncate(e.Retailer, 16),
					price,
					FormatChange(prev, e.PriceCents))
				last[e.URL] = e.PriceCents
			}
			table.Render()
			output.Dim("%d observation(s)", len(entries))
			return nil
		},
	}

	cmd.Flags().StringVar(&urlFilter, "url", "", "only this retailer URL")
	cmd.Flags().IntVar(&limit, "limit", 0, "keep only the most recent N observations")
	cmd.Flags().DurationVar(&since, "since", 0, "only observations newer than this (e.g. 72h)")
	cmd.Flags().BoolVar(&csvOut, "csv", false, "write CSV instead of a table")
	return cmd
}

// historyFromProduct flattens the data file's per-retailer history into
// observations, oldest first, applying the same filter as the archive.
func historyFromProduct(p models.Product, filter store.HistoryFilter) []store.Observation {
	var out []store.Observation
	for _, r := range p.Retailers {
		if filter.URL != "" && r.URL != filter.URL {
			continue
		}
		for _, h := range r.PriceHistory {
			if !filter.Since.IsZero() && h.Timestamp.Before(filter.Since) {
				continue
			}
			out = append(out, store.Observation{
				ProductID:   p.ID,
				ProductName: p.Name,
				URL:         r.URL,
				Retailer:    r.Retailer,
				PriceCents:  h.PriceCents,
				CheckedAt:   h.Timestamp,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CheckedAt.Before(out[j].CheckedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[len(out)-filter.Limit:]
	}
	return out
}
