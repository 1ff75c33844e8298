package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/hitster/internal/formatter"
	"github.com/desertthunder/hitster/internal/models"
	"github.com/desertthunder/hitster/internal/repositories"
	"github.com/desertthunder/hitster/internal/shared"
	"github.com/urfave/cli/v3"
)

// catalogRow is the JSON shape of one listed entry.
type catalogRow struct {
	Number int                  `json:"number"`
	URI    models.TrackRef      `json:"uri"`
	Entry  *models.CatalogEntry `json:"entry"`
}

// CatalogList prints the catalog in card order.
func (r *Runner) CatalogList(ctx context.Context, cmd *cli.Command) error {
	entries := r.resolver().Entries(ctx)
	r.logger.Debug("catalog loaded", "source", r.config.Catalog.Source, "entries", len(entries))

	if cmd.Bool("json") {
		rows := make([]catalogRow, len(entries))
		for i, e := range entries {
			rows[i] = catalogRow{Number: i + 1, URI: e.URI}
			if e.HasMetadata {
				meta := e.Metadata
				rows[i].Entry = &meta
			}
		}
		return r.writeJSON(rows, cmd.Bool("pretty"))
	}

	cards, err := formatter.Cards(entries, r.config.Server.BaseURL())
	if err != nil {
		return err
	}
	data, err := formatter.ExportToText(cards)
	if err != nil {
		return err
	}
	_, err = r.output.Write(data)
	return err
}

// CatalogResolve shows what a scanned or typed input selects.
func (r *Runner) CatalogResolve(ctx context.Context, cmd *cli.Command) error {
	input := cmd.StringArg("input")
	if input == "" {
		return fmt.Errorf("%w: input", shared.ErrMissingArgument)
	}

	resolver := r.resolver()
	ref, ok := resolver.Resolve(ctx, input)
	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrTrackNotFound, input)
	}

	r.writePlain("URI: %s\n", ref)
	if entry, ok := resolver.Lookup(ctx, ref); ok {
		r.writePlain("Title: %s\n", entry.DisplayTitle())
		if year := entry.Year.String(); year != "" {
			r.writePlain("Year: %s\n", year)
		}
	} else {
		r.writePlain("Title: %s\n", models.UnknownTrack)
	}
	return nil
}

// CatalogExport writes printable cards with their QR links.
func (r *Runner) CatalogExport(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	base := cmd.String("base-url")
	if base == "" {
		base = r.config.Server.BaseURL()
	}

	entries := r.resolver().Entries(ctx)
	if len(entries) == 0 {
		return fmt.Errorf("%w: no entries in %s", shared.ErrCatalogInvalid, r.config.Catalog.Source)
	}

	cards, err := formatter.Cards(entries, base)
	if err != nil {
		return err
	}

	title := cmd.String("title")
	if cmd.Bool("stdout") {
		data, err := formatter.Export(format, title, cards)
		if err != nil {
			return err
		}
		_, err = r.output.Write(data)
		return err
	}

	path, err := formatter.WriteExport(format, cards, title, cmd.String("output"))
	if err != nil {
		return err
	}

	r.logger.Infof("exported %d cards to %v", len(cards), path)
	r.writePlain("✓ Cards exported to %s\n", path)
	r.writePlain("  Cards: %d\n", len(cards))
	return nil
}

// History lists recorded plays, newest first.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	db, err := r.database(ctx)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	criteria := map[string]any{"limit": cmd.Int("limit")}
	if uri := cmd.String("uri"); uri != "" {
		criteria["uri"] = uri
	}

	plays, err := repositories.NewPlayRepository(db).List(criteria)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		rows := make([]map[string]any, len(plays))
		for i, p := range plays {
			rows[i] = map[string]any{
				"id":        p.ID(),
				"uri":       p.URI(),
				"device_id": p.DeviceID(),
				"mode":      p.Mode().String(),
				"played_at": p.CreatedAt(),
			}
		}
		return r.writeJSON(rows, true)
	}

	resolver := r.resolver()
	lookup := func(ref models.TrackRef) (models.CatalogEntry, bool) {
		return resolver.Lookup(ctx, ref)
	}
	_, err = r.output.Write(formatter.HistoryToText(plays, lookup))
	return err
}
