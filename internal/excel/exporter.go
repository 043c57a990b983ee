package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// exportHeader is the shared column layout; the first three columns match
// DefaultImportConfig so exports can be re-imported as-is.
var exportHeader = []string{"Front", "Back", "Deck", "State", "Due", "Reps", "Lapses"}

// Exporter writes a user's cards to a spreadsheet file.
type Exporter struct {
	cards CardStore
	decks DeckStore
}

func NewExporter(cards CardStore, decks DeckStore) *Exporter {
	return &Exporter{cards: cards, decks: decks}
}

// ExportCards writes the user's cards to the given path, scoped to one deck
// or, with deckID zero, to every deck. The extension picks the format. It
// returns how many cards were written.
func (ex *Exporter) ExportCards(ctx context.Context, userID, deckID int64, path string) (int, error) {
	rows, err := ex.collectRows(ctx, userID, deckID)
	if err != nil {
		return 0, err
	}
	if strings.ToLower(filepath.Ext(path)) == ".csv" {
		return len(rows), writeCSV(path, rows)
	}
	return len(rows), writeExcel(path, rows)
}

func (ex *Exporter) collectRows(ctx context.Context, userID, deckID int64) ([][]string, error) {
	decks, err := ex.decks.DecksByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get decks: %w", err)
	}
	deckNames := make(map[int64]string, len(decks))
	for _, d := range decks {
		deckNames[d.ID] = d.Name
	}

	cards, err := ex.cards.CardsByDeck(ctx, deckID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cards: %w", err)
	}

	rows := make([][]string, 0, len(cards))
	for _, c := range cards {
		due := ""
		if c.Due != nil {
			due = c.Due.UTC().Format(time.RFC3339)
		}
		rows = append(rows, []string{
			c.Front,
			c.Back,
			deckNames[c.DeckID],
			c.State.String(),
			due,
			fmt.Sprintf("%d", c.Reps),
			fmt.Sprintf("%d", c.Lapses),
		})
	}
	return rows, nil
}

func writeExcel(path string, rows [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Sheet1"
	for col, name := range exportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("failed to build header cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, name); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}
	for r, row := range rows {
		for col, value := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, r+2)
			if err != nil {
				return fmt.Errorf("failed to build cell: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return fmt.Errorf("failed to write row %d: %w", r+2, err)
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save Excel file: %w", err)
	}
	return nil
}

func writeCSV(path string, rows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(exportHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return nil
}
