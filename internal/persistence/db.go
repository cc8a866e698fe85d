// Package persistence provides SQLite-based save slots for farm snapshots.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/mini-farm/internal/engine"
)

// Slot numbers. Slot 0 is written by autosave; 1 to 3 are manual saves.
const (
	AutosaveSlot = 0
	MaxSlot      = 3
)

var (
	// ErrEmptySlot is returned when loading a slot that holds no save.
	ErrEmptySlot = errors.New("save slot is empty")
	// ErrBadSlot is returned for slot numbers outside 0..MaxSlot.
	ErrBadSlot = errors.New("no such save slot")
)

// DB wraps a SQLite connection for farm persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS saves (
		id TEXT PRIMARY KEY,
		slot INTEGER NOT NULL UNIQUE,
		name TEXT NOT NULL,
		saved_at TEXT NOT NULL,
		version INTEGER NOT NULL,
		sim_time INTEGER NOT NULL,
		cash REAL NOT NULL,
		seed TEXT NOT NULL,
		rng BLOB NOT NULL,
		last_daily INTEGER NOT NULL,
		weather_json TEXT NOT NULL,
		crops_json TEXT NOT NULL,
		livestock_json TEXT NOT NULL,
		machinery_json TEXT NOT NULL,
		processing_json TEXT NOT NULL,
		market_json TEXT NOT NULL,
		finance_json TEXT NOT NULL,
		events_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		at INTEGER NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS farm_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_at ON events(at);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveInfo describes one occupied slot.
type SaveInfo struct {
	ID      string        `db:"id" json:"id"`
	Slot    int           `db:"slot" json:"slot"`
	Name    string        `db:"name" json:"name"`
	SavedAt string        `db:"saved_at" json:"saved_at"`
	SimTime time.Duration `db:"sim_time" json:"sim_time"`
	Cash    float64       `db:"cash" json:"cash"`
}

type saveRow struct {
	SaveInfo
	Version    int           `db:"version"`
	Seed       string        `db:"seed"`
	RNG        []byte        `db:"rng"`
	LastDaily  time.Duration `db:"last_daily"`
	Weather    string        `db:"weather_json"`
	Crops      string        `db:"crops_json"`
	Livestock  string        `db:"livestock_json"`
	Machinery  string        `db:"machinery_json"`
	Processing string        `db:"processing_json"`
	Market     string        `db:"market_json"`
	Finance    string        `db:"finance_json"`
	Events     string        `db:"events_json"`
}

func checkSlot(slot int) error {
	if slot < 0 || slot > MaxSlot {
		return fmt.Errorf("slot %d: %w", slot, ErrBadSlot)
	}
	return nil
}

// Save writes snap into slot, replacing whatever was there, and returns the
// new save id.
func (db *DB) Save(slot int, name string, snap engine.Snapshot) (string, error) {
	if err := checkSlot(slot); err != nil {
		return "", err
	}
	row, err := encode(snap)
	if err != nil {
		return "", err
	}
	row.ID = uuid.NewString()
	row.Slot = slot
	row.Name = name
	row.SavedAt = time.Now().UTC().Format(time.RFC3339)

	tx, err := db.conn.Beginx()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM saves WHERE slot = ?", slot); err != nil {
		return "", fmt.Errorf("clear slot %d: %w", slot, err)
	}
	_, err = tx.NamedExec(`INSERT INTO saves
		(id, slot, name, saved_at, version, sim_time, cash, seed, rng, last_daily,
		 weather_json, crops_json, livestock_json, machinery_json, processing_json,
		 market_json, finance_json, events_json)
		VALUES (:id, :slot, :name, :saved_at, :version, :sim_time, :cash, :seed, :rng, :last_daily,
		 :weather_json, :crops_json, :livestock_json, :machinery_json, :processing_json,
		 :market_json, :finance_json, :events_json)`, row)
	if err != nil {
		return "", fmt.Errorf("insert save: %w", err)
	}
	if _, err := tx.Exec("INSERT OR REPLACE INTO farm_meta (key, value) VALUES ('last_slot', ?)", strconv.Itoa(slot)); err != nil {
		return "", fmt.Errorf("save meta: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}

	slog.Info("farm saved", "slot", slot, "id", row.ID, "time", engine.SimTime(snap.Now))
	return row.ID, nil
}

// Load reads the snapshot stored in slot.
func (db *DB) Load(slot int) (engine.Snapshot, error) {
	if err := checkSlot(slot); err != nil {
		return engine.Snapshot{}, err
	}
	var row saveRow
	err := db.conn.Get(&row, "SELECT * FROM saves WHERE slot = ?", slot)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.Snapshot{}, fmt.Errorf("load slot %d: %w", slot, ErrEmptySlot)
	}
	if err != nil {
		return engine.Snapshot{}, fmt.Errorf("load slot %d: %w", slot, err)
	}
	return decode(row)
}

// Slots lists the occupied save slots in slot order.
func (db *DB) Slots() ([]SaveInfo, error) {
	var infos []SaveInfo
	err := db.conn.Select(&infos,
		"SELECT id, slot, name, saved_at, sim_time, cash FROM saves ORDER BY slot")
	return infos, err
}

// Delete empties slot.
func (db *DB) Delete(slot int) error {
	if err := checkSlot(slot); err != nil {
		return err
	}
	_, err := db.conn.Exec("DELETE FROM saves WHERE slot = ?", slot)
	return err
}

// SaveMeta stores a key-value pair in farm metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO farm_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM farm_meta WHERE key = ?", key)
	return value, err
}

// LastSlot returns the slot most recently written, or AutosaveSlot when
// nothing was saved yet.
func (db *DB) LastSlot() int {
	v, err := db.GetMeta("last_slot")
	if err != nil {
		return AutosaveSlot
	}
	slot, err := strconv.Atoi(v)
	if err != nil || checkSlot(slot) != nil {
		return AutosaveSlot
	}
	return slot
}

// ArchiveEvents appends events newer than the last archived one.
func (db *DB) ArchiveEvents(events []engine.Event) error {
	var since time.Duration = -1
	if v, err := db.GetMeta("events_archived_at"); err == nil {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			since = time.Duration(n)
		}
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	last := since
	for _, e := range events {
		if e.At <= since {
			continue
		}
		_, err := tx.Exec(
			"INSERT INTO events (at, description, category) VALUES (?, ?, ?)",
			int64(e.At), e.Description, e.Category,
		)
		if err != nil {
			return fmt.Errorf("archive event: %w", err)
		}
		if e.At > last {
			last = e.At
		}
	}
	if last > since {
		if _, err := tx.Exec("INSERT OR REPLACE INTO farm_meta (key, value) VALUES ('events_archived_at', ?)",
			strconv.FormatInt(int64(last), 10)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// RecentEvents returns the most recent archived events, newest first.
func (db *DB) RecentEvents(limit int) ([]engine.Event, error) {
	var events []engine.Event
	err := db.conn.Select(&events,
		"SELECT at, description, category FROM events ORDER BY id DESC LIMIT ?",
		limit,
	)
	return events, err
}

func encode(snap engine.Snapshot) (saveRow, error) {
	row := saveRow{
		SaveInfo:  SaveInfo{SimTime: snap.Now, Cash: snap.Cash},
		Version:   snap.Version,
		Seed:      strconv.FormatUint(snap.Seed, 10),
		RNG:       snap.Rand,
		LastDaily: snap.LastDaily,
	}
	cols := []struct {
		dst *string
		v   any
		col string
	}{
		{&row.Weather, snap.Weather, "weather"},
		{&row.Crops, snap.Crops, "crops"},
		{&row.Livestock, snap.Livestock, "livestock"},
		{&row.Machinery, snap.Machinery, "machinery"},
		{&row.Processing, snap.Processing, "processing"},
		{&row.Market, snap.Market, "market"},
		{&row.Finance, snap.Finance, "finance"},
		{&row.Events, snap.Events, "events"},
	}
	for _, c := range cols {
		b, err := json.Marshal(c.v)
		if err != nil {
			return saveRow{}, fmt.Errorf("encode %s: %w", c.col, err)
		}
		*c.dst = string(b)
	}
	return row, nil
}

func decode(row saveRow) (engine.Snapshot, error) {
	seed, err := strconv.ParseUint(row.Seed, 10, 64)
	if err != nil {
		return engine.Snapshot{}, fmt.Errorf("decode seed: %w", err)
	}
	snap := engine.Snapshot{
		Version:   row.Version,
		Now:       row.SimTime,
		Cash:      row.Cash,
		Seed:      seed,
		Rand:      row.RNG,
		LastDaily: row.LastDaily,
	}
	cols := []struct {
		src string
		dst any
		col string
	}{
		{row.Weather, &snap.Weather, "weather"},
		{row.Crops, &snap.Crops, "crops"},
		{row.Livestock, &snap.Livestock, "livestock"},
		{row.Machinery, &snap.Machinery, "machinery"},
		{row.Processing, &snap.Processing, "processing"},
		{row.Market, &snap.Market, "market"},
		{row.Finance, &snap.Finance, "finance"},
		{row.Events, &snap.Events, "events"},
	}
	for _, c := range cols {
		if err := json.Unmarshal([]byte(c.src), c.dst); err != nil {
			return engine.Snapshot{}, fmt.Errorf("decode %s: %w", c.col, err)
		}
	}
	return snap, nil
}
