package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mamadbah2/toolstock/internal/bootstrap"
	"github.com/mamadbah2/toolstock/internal/domain/models"
	"github.com/mamadbah2/toolstock/internal/service/catalog"
)

// instrumentView is the JSON shape of an instrument.
type instrumentView struct {
	Number          int     `json:"number"`
	Name            string  `json:"name"`
	Model           string  `json:"model,omitempty"`
	Manufacturer    string  `json:"manufacturer,omitempty"`
	Characteristics string  `json:"characteristics,omitempty"`
	Quantity        float64 `json:"quantity"`
	Unit            string  `json:"unit,omitempty"`
	ImageURL        string  `json:"image_url,omitempty"`
	Location        string  `json:"location,omitempty"`
}

func view(rec models.Instrument) instrumentView {
	return instrumentView{
		Number:          rec.Number,
		Name:            rec.Name,
		Model:           rec.Model,
		Manufacturer:    rec.Manufacturer,
		Characteristics: rec.Characteristics,
		Quantity:        rec.Quantity,
		Unit:            rec.Unit,
		ImageURL:        rec.ImageURL,
		Location:        rec.Location,
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newListCommand(opts *RootOptions, open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "list [term]",
		Short: "List instruments, optionally filtered by a name fragment",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStack(cmd, opts, open, func(stack *bootstrap.Stack) error {
				stack.Store.Load()

				items := stack.Store.Table().Visible()
				if len(args) == 1 {
					cat := catalog.New(stack.Store.Table(), catalog.DefaultPageSize)
					items = resolveAll(cat, cat.Search(args[0]))
				}
				return printList(cmd.OutOrStdout(), opts.Format, items)
			})
		},
	}
}

func resolveAll(cat *catalog.Catalog, numbers []int) []models.Instrument {
	out := make([]models.Instrument, 0, len(numbers))
	for _, n := range numbers {
		if rec, err := cat.Get(n); err == nil && rec.Visible() {
			out = append(out, rec)
		}
	}
	return out
}

func printList(w io.Writer, format string, items []models.Instrument) error {
	if format == "json" {
		views := make([]instrumentView, 0, len(items))
		for _, rec := range items {
			views = append(views, view(rec))
		}
		return writeJSON(w, views)
	}

	if len(items) == 0 {
		warnColor.Fprintln(w, "No instruments found")
		return nil
	}

	titleColor.Fprintf(w, "%-6s %-40s %-20s %10s\n", "№", "NAME", "MODEL", "QUANTITY")
	fmt.Fprintln(w, strings.Repeat("-", 79))
	for _, rec := range items {
		fmt.Fprintf(w, "%-6d %-40s %-20s %10s\n", rec.Number, rec.Name, rec.Model, rec.QuantityText())
	}
	return nil
}

func newShowCommand(opts *RootOptions, open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "show <number>",
		Short: "Show one instrument",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			number, err := strconv.Atoi(args[0])
			if err != nil || number <= 0 {
				return fmt.Errorf("invalid instrument number %q", args[0])
			}

			return withStack(cmd, opts, open, func(stack *bootstrap.Stack) error {
				stack.Store.Load()
				rec, err := stack.Store.Table().Get(number)
				if err != nil {
					return err
				}

				w := cmd.OutOrStdout()
				if opts.Format == "json" {
					return writeJSON(w, view(rec))
				}

				photo := "-"
				if path, ok := stack.Images.Find(number); ok {
					photo = path
				}
				fields := []struct{ label, value string }{
					{"Number", strconv.Itoa(rec.Number)},
					{"Name", rec.Name},
					{"Model", orDash(rec.Model)},
					{"Manufacturer", orDash(rec.Manufacturer)},
					{"Characteristics", orDash(rec.Characteristics)},
					{"Quantity", strings.TrimSpace(rec.QuantityText() + " " + rec.Unit)},
					{"Image URL", orDash(rec.ImageURL)},
					{"Photo", photo},
					{"Location", orDash(rec.Location)},
				}
				for _, f := range fields {
					fieldColor.Fprintf(w, "%-17s", f.label+":")
					fmt.Fprintln(w, f.value)
				}
				return nil
			})
		},
	}
}

func orDash(v string) string {
	if strings.TrimSpace(v) == "" {
		return "-"
	}
	return v
}
