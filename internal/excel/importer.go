// Package excel moves card collections in and out of spreadsheet files.
// Both .xlsx and .csv are supported, sharing one column layout so an
// exported file can be imported back unchanged.
package excel

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/example/flashdeck/pkg/models"
)

// CardStore is the card access the import/export flows need.
type CardStore interface {
	CardsByDeck(ctx context.Context, deckID, userID int64) ([]models.Card, error)
	CreateCard(ctx context.Context, card *models.Card) error
	UpdateCard(ctx context.Context, card *models.Card) error
}

// DeckStore resolves and creates the decks named in an import file.
type DeckStore interface {
	DecksByUser(ctx context.Context, userID int64) ([]models.Deck, error)
	CreateDeck(ctx context.Context, deck *models.Deck) error
}

// ImportConfig defines where the card fields live in the file.
type ImportConfig struct {
	FilePath    string // path to the .xlsx or .csv file
	FrontColumn string // column with the card front
	BackColumn  string // column with the card back
	DeckColumn  string // column with the deck name
	SheetName   string // sheet to read (.xlsx only)
	StartRow    int    // first data row, 1-based
	DefaultDeck string // deck used when the deck column is empty
}

// DefaultImportConfig returns the layout ExportCards writes: front, back and
// deck in columns A..C with a header row.
func DefaultImportConfig(path string) ImportConfig {
	return ImportConfig{
		FilePath:    path,
		FrontColumn: "A",
		BackColumn:  "B",
		DeckColumn:  "C",
		SheetName:   "Sheet1",
		StartRow:    2,
		DefaultDeck: "Imported",
	}
}

// ImportResult holds the outcome of an import operation.
type ImportResult struct {
	TotalProcessed int
	DecksCreated   int
	Created        int
	Updated        int
	Skipped        int
	Errors         []string
}

// Importer loads cards from spreadsheet files into a user's collection.
type Importer struct {
	cards CardStore
	decks DeckStore
}

func NewImporter(cards CardStore, decks DeckStore) *Importer {
	return &Importer{cards: cards, decks: decks}
}

// importState caches deck ids and per-deck card indexes across rows, so a
// thousand-row file does not re-query per row.
type importState struct {
	userID    int64
	deckIDs   map[string]int64
	deckCards map[int64]map[string]models.Card
	result    *ImportResult
}

// ImportCards reads the file and creates or updates cards row by row. Rows
// that cannot be applied are reported in the result, not fatal to the rest
// of the file. A card matches an existing one by its front within the deck.
func (im *Importer) ImportCards(ctx context.Context, userID int64, cfg ImportConfig) (*ImportResult, error) {
	if strings.ToLower(filepath.Ext(cfg.FilePath)) == ".csv" {
		return im.importFromCSV(ctx, userID, cfg)
	}
	return im.importFromExcel(ctx, userID, cfg)
}

func (im *Importer) importFromExcel(ctx context.Context, userID int64, cfg ImportConfig) (*ImportResult, error) {
	f, err := excelize.OpenFile(cfg.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	st, err := im.newImportState(ctx, userID)
	if err != nil {
		return nil, err
	}

	rows, err := f.GetRows(cfg.SheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}
	for i, row := range rows {
		if i < cfg.StartRow-1 {
			continue
		}
		deckName := cellValue(row, cfg.DeckColumn)
		if deckName == "" {
			deckName = cfg.DefaultDeck
		}
		st.result.TotalProcessed++
		if err := im.upsertCard(ctx, st, cellValue(row, cfg.FrontColumn), cellValue(row, cfg.BackColumn), deckName); err != nil {
			st.result.Errors = append(st.result.Errors, fmt.Sprintf("row %d: %v", i+1, err))
		}
	}
	return st.result, nil
}

func (im *Importer) importFromCSV(ctx context.Context, userID int64, cfg ImportConfig) (*ImportResult, error) {
	file, err := os.Open(cfg.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	st, err := im.newImportState(ctx, userID)
	if err != nil {
		return nil, err
	}

	currentDeck := cfg.DefaultDeck
	rowNum := 0
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading CSV: %w", err)
		}
		rowNum++
		if rowNum < cfg.StartRow {
			continue
		}

		// A row with only the first field filled switches the deck for the
		// rows that follow, e.g. `Spanish Verbs,,`.
		if len(row) >= 2 && strings.TrimSpace(row[0]) != "" && strings.TrimSpace(row[1]) == "" {
			currentDeck = strings.Trim(strings.TrimSpace(row[0]), "\"")
			continue
		}

		deckName := currentDeck
		if name := cellValue(row, cfg.DeckColumn); name != "" {
			deckName = name
		}
		st.result.TotalProcessed++
		if err := im.upsertCard(ctx, st, cellValue(row, cfg.FrontColumn), cellValue(row, cfg.BackColumn), deckName); err != nil {
			st.result.Errors = append(st.result.Errors, fmt.Sprintf("row %d: %v", rowNum, err))
		}
	}
	return st.result, nil
}

func (im *Importer) newImportState(ctx context.Context, userID int64) (*importState, error) {
	decks, err := im.decks.DecksByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get existing decks: %w", err)
	}
	st := &importState{
		userID:    userID,
		deckIDs:   make(map[string]int64, len(decks)),
		deckCards: make(map[int64]map[string]models.Card),
		result:    &ImportResult{Errors: make([]string, 0)},
	}
	for _, d := range decks {
		st.deckIDs[strings.ToLower(d.Name)] = d.ID
	}
	return st, nil
}

func (im *Importer) upsertCard(ctx context.Context, st *importState, front, back, deckName string) error {
	front = strings.TrimSpace(front)
	back = strings.TrimSpace(back)
	if front == "" {
		return fmt.Errorf("front cannot be empty")
	}
	if back == "" {
		return fmt.Errorf("back cannot be empty")
	}

	deckID, err := im.deckID(ctx, st, deckName)
	if err != nil {
		return err
	}
	index, err := im.deckIndex(ctx, st, deckID)
	if err != nil {
		return err
	}

	key := strings.ToLower(front)
	if existing, ok := index[key]; ok {
		if existing.Back == back {
			st.result.Skipped++
			return nil
		}
		existing.Back = back
		if err := im.cards.UpdateCard(ctx, &existing); err != nil {
			return fmt.Errorf("failed to update card: %w", err)
		}
		index[key] = existing
		st.result.Updated++
		return nil
	}

	card := models.Card{
		DeckID: deckID,
		UserID: st.userID,
		Front:  front,
		Back:   back,
		State:  models.StateNew,
	}
	if err := im.cards.CreateCard(ctx, &card); err != nil {
		return fmt.Errorf("failed to create card: %w", err)
	}
	index[key] = card
	st.result.Created++
	return nil
}

// deckID resolves a deck name to an id, creating the deck on first sight.
func (im *Importer) deckID(ctx context.Context, st *importState, name string) (int64, error) {
	name = strings.TrimSpace(name)
	key := strings.ToLower(name)
	if id, ok := st.deckIDs[key]; ok {
		return id, nil
	}
	deck := models.Deck{UserID: st.userID, Name: name}
	if err := im.decks.CreateDeck(ctx, &deck); err != nil {
		return 0, fmt.Errorf("failed to create deck: %w", err)
	}
	st.deckIDs[key] = deck.ID
	st.result.DecksCreated++
	return deck.ID, nil
}

// deckIndex lazily loads a deck's cards keyed by lower-cased front.
func (im *Importer) deckIndex(ctx context.Context, st *importState, deckID int64) (map[string]models.Card, error) {
	if index, ok := st.deckCards[deckID]; ok {
		return index, nil
	}
	cards, err := im.cards.CardsByDeck(ctx, deckID, st.userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get deck cards: %w", err)
	}
	index := make(map[string]models.Card, len(cards))
	for _, c := range cards {
		index[strings.ToLower(c.Front)] = c
	}
	st.deckCards[deckID] = index
	return index, nil
}

// cellValue reads the named spreadsheet column out of a row, tolerating
// short rows.
func cellValue(row []string, column string) string {
	if column == "" {
		return ""
	}
	if idx := columnToIndex(column); idx >= 0 && idx < len(row) {
		return strings.TrimSpace(row[idx])
	}
	return ""
}

// columnToIndex converts an Excel column letter like "A" or "AB" to a
// zero-based index.
func columnToIndex(column string) int {
	column = strings.ToUpper(column)
	index := 0
	for i := 0; i < len(column); i++ {
		index = index*26 + int(column[i]-'A'+1)
	}
	return index - 1
}
