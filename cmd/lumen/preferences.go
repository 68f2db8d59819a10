package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/lumen/internal/predictor"
)

type preferencesOptions struct {
	output    string
	overrides int
}

func newPreferencesCommand() *cobra.Command {
	opts := &preferencesOptions{}

	cmd := &cobra.Command{
		Use:   "preferences",
		Short: "Show learned brightness preferences",
		Long: `Print the learned preference table from the database.

With --overrides N the N most recent manual overrides are printed as well.
The daemon may keep running while this command reads the database.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return showPreferences(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "table", "output format: table, json")
	cmd.Flags().IntVar(&opts.overrides, "overrides", 0, "also print the N most recent overrides")
	return cmd
}

type preferenceRow struct {
	Key        string    `json:"key"`
	Brightness uint8     `json:"brightness"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type overrideRow struct {
	Key        string    `json:"key"`
	Brightness uint8     `json:"brightness"`
	Previous   *uint8    `json:"previous,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func showPreferences(cmd *cobra.Command, opts *preferencesOptions) error {
	if opts.output != "table" && opts.output != "json" {
		return fmt.Errorf("unknown output format %q (supported: table, json)", opts.output)
	}
	if opts.overrides < 0 {
		return fmt.Errorf("--overrides must not be negative")
	}

	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	db, err := openDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	store := predictor.NewSQLiteStore(db.DB)

	prefs, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("listing preferences: %w", err)
	}
	var overrides []predictor.Override
	if opts.overrides > 0 {
		if overrides, err = store.Overrides(ctx, opts.overrides); err != nil {
			return fmt.Errorf("listing overrides: %w", err)
		}
	}

	out := cmd.OutOrStdout()
	if opts.output == "json" {
		return writePreferencesJSON(out, prefs, overrides, opts.overrides > 0)
	}
	return writePreferencesTable(out, prefs, overrides, opts.overrides > 0)
}

func writePreferencesJSON(w io.Writer, prefs []predictor.Preference, overrides []predictor.Override, withOverrides bool) error {
	doc := struct {
		Preferences []preferenceRow `json:"preferences"`
		Overrides   []overrideRow   `json:"overrides,omitempty"`
	}{
		Preferences: make([]preferenceRow, 0, len(prefs)),
	}
	for _, p := range prefs {
		doc.Preferences = append(doc.Preferences, preferenceRow{
			Key:        p.Key.String(),
			Brightness: p.Brightness,
			UpdatedAt:  p.UpdatedAt,
		})
	}
	if withOverrides {
		doc.Overrides = make([]overrideRow, 0, len(overrides))
		for _, o := range overrides {
			doc.Overrides = append(doc.Overrides, overrideRow{
				Key:        o.Key.String(),
				Brightness: o.Brightness,
				Previous:   o.Previous,
				CreatedAt:  o.CreatedAt,
			})
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func writePreferencesTable(w io.Writer, prefs []predictor.Preference, overrides []predictor.Override, withOverrides bool) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintln(tw, "AMBIENT\tLUMA\tBRIGHTNESS\tUPDATED")
	for _, p := range prefs {
		fmt.Fprintf(tw, "%s\t%s\t%d%%\t%s\n",
			p.Key.Lux, lumaLabel(p.Key), p.Brightness, p.UpdatedAt.Local().Format(time.DateTime))
	}
	if len(prefs) == 0 {
		fmt.Fprintln(tw, "(none learned yet)\t\t\t")
	}

	if withOverrides {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "AMBIENT\tLUMA\tBRIGHTNESS\tPREVIOUS\tAT")
		for _, o := range overrides {
			previous := "-"
			if o.Previous != nil {
				previous = fmt.Sprintf("%d%%", *o.Previous)
			}
			fmt.Fprintf(tw, "%s\t%s\t%d%%\t%s\t%s\n",
				o.Key.Lux, lumaLabel(o.Key), o.Brightness, previous, o.CreatedAt.Local().Format(time.DateTime))
		}
	}

	return tw.Flush()
}

func lumaLabel(k predictor.Key) string {
	if k.Luma == predictor.NoLuma {
		return "-"
	}
	return fmt.Sprintf("%d", k.Luma)
}
