package manager

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/marketdata/internal/data/schema"
	"github.com/sawpanic/marketdata/internal/infrastructure/db"
	"github.com/sawpanic/marketdata/internal/persistence"
)

// PITEntry is one point-in-time record as returned by PITStore.List.
type PITEntry struct {
	Entity    string
	Timestamp time.Time
	Source    string
	Payload   interface{}
}

// PITStore persists a point-in-time snapshot of every bar/funding
// observation a Manager returns, so a caller can later reconstruct
// exactly what was served at a given moment.
type PITStore interface {
	Snapshot(entity string, timestamp time.Time, payload interface{}, source string) error
	List(entity string, from, to time.Time) ([]PITEntry, error)
}

// PITReader provides typed point-in-time queries backed by the optional
// PostgreSQL repository, for calibration/backtesting consumers.
type PITReader interface {
	Bars(ctx context.Context, venue, symbol, interval string, from, to time.Time, limit int) ([]schema.Bar, error)
	Funding(ctx context.Context, venue, symbol string, from, to time.Time, limit int) ([]schema.FundingBar, error)
}

type pitReader struct {
	repository *persistence.Repository
}

func (r *pitReader) Bars(ctx context.Context, venue, symbol, interval string, from, to time.Time, limit int) ([]schema.Bar, error) {
	if r.repository == nil || r.repository.Bars == nil {
		return nil, fmt.Errorf("manager: database not enabled, PIT bar reads unavailable")
	}
	tr := persistence.TimeRange{FromMicros: microsFromTime(from), ToMicros: microsFromTime(to)}
	return r.repository.Bars.ListBySymbol(ctx, venue, symbol, interval, tr, limit)
}

func (r *pitReader) Funding(ctx context.Context, venue, symbol string, from, to time.Time, limit int) ([]schema.FundingBar, error) {
	if r.repository == nil || r.repository.Funding == nil {
		return nil, fmt.Errorf("manager: database not enabled, PIT funding reads unavailable")
	}
	tr := persistence.TimeRange{FromMicros: microsFromTime(from), ToMicros: microsFromTime(to)}
	return r.repository.Funding.ListBySymbol(ctx, venue, symbol, tr, limit)
}

func microsFromTime(t time.Time) int64 { return t.UnixMicro() }

// FilePITStore is a file-backed PITStore, optionally dual-writing to a
// PostgreSQL-backed db.Manager when one is enabled. Grounded on the
// teacher's internal/infrastructure/db/pit_store.go PITStore: same
// file-then-database write path and date-sharded directory layout,
// retargeted from trades/regime/premove entities onto bars and funding
// observations.
type FilePITStore struct {
	dbManager *db.Manager
	fileBase  string
	dbEnabled bool
}

// NewFilePITStore builds a PITStore rooted at fileBase, dual-writing to
// dbManager's Repository when dbManager is non-nil and enabled.
func NewFilePITStore(dbManager *db.Manager, fileBase string) *FilePITStore {
	return &FilePITStore{
		dbManager: dbManager,
		fileBase:  fileBase,
		dbEnabled: dbManager != nil && dbManager.IsEnabled(),
	}
}

func (s *FilePITStore) Snapshot(entity string, timestamp time.Time, payload interface{}, source string) error {
	if err := s.storeToFile(entity, timestamp, payload, source); err != nil {
		log.Warn().Err(err).Str("entity", entity).Str("source", source).Msg("failed to store PIT snapshot to file")
	}
	if s.dbEnabled {
		if err := s.storeToDatabase(entity, payload); err != nil {
			log.Warn().Err(err).Str("entity", entity).Str("source", source).Msg("failed to store PIT snapshot to database")
		}
	}
	return nil
}

func (s *FilePITStore) List(entity string, from, to time.Time) ([]PITEntry, error) {
	if s.fileBase == "" {
		return nil, fmt.Errorf("manager: file PIT storage not configured")
	}
	var entries []PITEntry
	baseDir := filepath.Join(s.fileBase, entity)
	err := filepath.Walk(baseDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}
		// The snapshot timestamp is encoded in the path storeToFile builds:
		// YYYY/MM/DD/HH-MM-SS.ffffff-<source>.json under baseDir.
		rel, relErr := filepath.Rel(baseDir, path)
		if relErr != nil {
			return relErr
		}
		const layout = "2006/01/02/15-04-05.000000"
		rel = filepath.ToSlash(rel)
		if len(rel) < len(layout) {
			return nil
		}
		ts, parseErr := time.Parse(layout, rel[:len(layout)])
		if parseErr != nil || ts.Before(from) || ts.After(to) {
			return nil
		}
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return readErr
		}
		var payload interface{}
		if unmarshalErr := json.Unmarshal(data, &payload); unmarshalErr != nil {
			return unmarshalErr
		}
		entries = append(entries, PITEntry{Entity: entity, Timestamp: ts, Payload: payload, Source: "file"})
		return nil
	})
	return entries, err
}

func (s *FilePITStore) storeToFile(entity string, timestamp time.Time, payload interface{}, source string) error {
	if s.fileBase == "" {
		return nil
	}
	timestamp = timestamp.UTC()
	dir := filepath.Join(s.fileBase, entity, timestamp.Format("2006"), timestamp.Format("01"), timestamp.Format("02"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create pit directory: %w", err)
	}
	name := fmt.Sprintf("%s-%s.json", timestamp.Format("15-04-05.000000"), source)
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal pit payload: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, name), data, 0o644)
}

func (s *FilePITStore) storeToDatabase(entity string, payload interface{}) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo := s.dbManager.Repository()
	if repo == nil {
		return fmt.Errorf("repository not available")
	}

	switch entity {
	case "bars":
		if b, ok := payload.(schema.Bar); ok && repo.Bars != nil {
			return repo.Bars.Insert(ctx, b)
		}
	case "funding":
		if f, ok := payload.(schema.FundingBar); ok && repo.Funding != nil {
			return repo.Funding.Insert(ctx, f)
		}
	}
	return nil
}
