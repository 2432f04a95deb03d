// Package store provides data persistence for trading state.
//
// Durable trading state lives in one human-inspectable file per concern:
// an append-only JSON Lines trade log, and replace-on-write JSON snapshots
// for the wash-sale list, pending settlements, and the portfolio.
package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"etrade-trader/internal/models"
)

const (
	tradesFile      = "trades.jsonl"
	washSalesFile   = "wash_sales.json"
	settlementsFile = "settlements.json"
	portfolioFile   = "portfolio.json"
)

// StateStore persists trading state under a single data directory. All writes
// are synchronous: a write returns only after the data has been flushed, so a
// crash after a trade cannot lose state that affects correctness.
type StateStore struct {
	dir string
}

// NewStateStore creates the data directory if needed and returns a store.
func NewStateStore(dir string) (*StateStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	return &StateStore{dir: dir}, nil
}

// AppendTrade appends one record to the trade log and syncs it to disk.
// The log is append-only; records are never rewritten.
func (s *StateStore) AppendTrade(record *models.TradeRecord) error {
	path := filepath.Join(s.dir, tradesFile)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("opening trade log: %w", err)
	}
	defer f.Close()

	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encoding trade record: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("appending trade record: %w", err)
	}
	return f.Sync()
}

// LoadTrades reads the full trade log in append order. A missing log is an
// empty history, not an error.
func (s *StateStore) LoadTrades() ([]models.TradeRecord, error) {
	path := filepath.Join(s.dir, tradesFile)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening trade log: %w", err)
	}
	defer f.Close()

	var trades []models.TradeRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var record models.TradeRecord
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			return nil, fmt.Errorf("decoding trade record: %w", err)
		}
		trades = append(trades, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading trade log: %w", err)
	}
	return trades, nil
}

// SaveWashSales replaces the persisted wash-sale list.
func (s *StateStore) SaveWashSales(entries map[string]models.WashSaleEntry) error {
	return s.writeJSON(washSalesFile, entries)
}

// LoadWashSales loads the persisted wash-sale list.
func (s *StateStore) LoadWashSales() (map[string]models.WashSaleEntry, error) {
	entries := make(map[string]models.WashSaleEntry)
	if err := s.readJSON(washSalesFile, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// SaveSettlements replaces the persisted pending-settlement list.
func (s *StateStore) SaveSettlements(entries []models.SettlementEntry) error {
	return s.writeJSON(settlementsFile, entries)
}

// LoadSettlements loads the persisted pending-settlement list.
func (s *StateStore) LoadSettlements() ([]models.SettlementEntry, error) {
	var entries []models.SettlementEntry
	if err := s.readJSON(settlementsFile, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// SavePortfolio replaces the persisted portfolio snapshot.
func (s *StateStore) SavePortfolio(snapshot *models.PortfolioSnapshot) error {
	return s.writeJSON(portfolioFile, snapshot)
}

// LoadPortfolio loads the persisted portfolio snapshot, or nil if none has
// been written yet.
func (s *StateStore) LoadPortfolio() (*models.PortfolioSnapshot, error) {
	snapshot := &models.PortfolioSnapshot{}
	path := filepath.Join(s.dir, portfolioFile)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	if err := s.readJSON(portfolioFile, snapshot); err != nil {
		return nil, err
	}
	return snapshot, nil
}

// writeJSON writes to a temp file then renames, so a crash mid-write never
// leaves a truncated snapshot.
func (s *StateStore) writeJSON(name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}

	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating %s: %w", tmp, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("syncing %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmp, err)
	}
	return os.Rename(tmp, path)
}

func (s *StateStore) readJSON(name string, v interface{}) error {
	path := filepath.Join(s.dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading %s: %w", name, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding %s: %w", name, err)
	}
	return nil
}
