// Package storage provides the SQLite-backed snapshot store for the marketplace
// views and the ledger of activity already announced to Telegram.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rewired-gh/carmarket/internal/models"
	_ "modernc.org/sqlite"
)

// MemoryDSN keeps the database in process memory; views vanish on shutdown.
const MemoryDSN = ":memory:"

// Storage wraps a SQLite database for all view snapshots.
type Storage struct {
	db          *sql.DB
	maxNotified int
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to an in-memory database.
func New(maxNotified int, dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = MemoryDSN
	}
	if dbPath != MemoryDSN {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: an in-memory database exists per connection, and replace
	// transactions are serialized against readers.
	db.SetMaxOpenConns(1)
	if dbPath != MemoryDSN {
		if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
			return nil, fmt.Errorf("failed to set WAL mode: %w", err)
		}
	}
	s := &Storage{db: db, maxNotified: maxNotified}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS listings (
			position    INTEGER NOT NULL,
			listing_id  TEXT PRIMARY KEY,
			car_id      TEXT NOT NULL,
			name        TEXT NOT NULL,
			image_url   TEXT NOT NULL,
			speed       INTEGER NOT NULL,
			price       TEXT NOT NULL,
			seller      TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS activity (
			position    INTEGER NOT NULL,
			id          TEXT PRIMARY KEY,
			kind        TEXT NOT NULL,
			car_id      TEXT NOT NULL,
			price       TEXT NOT NULL,
			address     TEXT NOT NULL,
			timestamp   INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS stats (
			id              INTEGER PRIMARY KEY CHECK (id = 1),
			total_minted    INTEGER NOT NULL,
			active_listings INTEGER NOT NULL,
			user_cars       INTEGER NOT NULL,
			total_volume    TEXT NOT NULL,
			updated_at      INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS notified_activity (
			id          TEXT PRIMARY KEY,
			notified_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notified_at ON notified_activity(notified_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// ReplaceListings swaps the active-listing snapshot in a single transaction.
// Order is preserved; readers see either the old or the new set, never a mix.
func (s *Storage) ReplaceListings(listings []models.Listing) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`DELETE FROM listings`); err != nil {
		return fmt.Errorf("failed to clear listings: %w", err)
	}
	for i := range listings {
		l := &listings[i]
		if err := l.Validate(); err != nil {
			return fmt.Errorf("invalid listing: %w", err)
		}
		// u64 prices are stored as text; SQLite integers are signed.
		_, err := tx.Exec(`
			INSERT INTO listings (position, listing_id, car_id, name, image_url, speed, price, seller)
			VALUES (?,?,?,?,?,?,?,?)`,
			i, l.ListingID, l.CarID, l.Name, l.ImageURL, int64(l.Speed), fmt.Sprint(l.Price), l.Seller,
		)
		if err != nil {
			return fmt.Errorf("failed to insert listing %s: %w", l.ListingID, err)
		}
	}
	return tx.Commit()
}

// GetListings returns the current active-listing snapshot, most recent first.
func (s *Storage) GetListings() ([]models.Listing, error) {
	rows, err := s.db.Query(`
		SELECT listing_id, car_id, name, image_url, speed, price, seller
		FROM listings ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query listings: %w", err)
	}
	defer rows.Close()

	listings := []models.Listing{}
	for rows.Next() {
		var l models.Listing
		var speed int64
		var price string
		if err := rows.Scan(&l.ListingID, &l.CarID, &l.Name, &l.ImageURL, &speed, &price, &l.Seller); err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}
		l.Speed = uint64(speed)
		if l.Price, err = parseUint(price); err != nil {
			return nil, fmt.Errorf("listing %s: %w", l.ListingID, err)
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

// GetListing returns one listing from the snapshot, or nil when it is not active.
func (s *Storage) GetListing(id string) (*models.Listing, error) {
	row := s.db.QueryRow(`
		SELECT listing_id, car_id, name, image_url, speed, price, seller
		FROM listings WHERE listing_id = ?`, id)
	var l models.Listing
	var speed int64
	var price string
	err := row.Scan(&l.ListingID, &l.CarID, &l.Name, &l.ImageURL, &speed, &price, &l.Seller)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}
	l.Speed = uint64(speed)
	if l.Price, err = parseUint(price); err != nil {
		return nil, fmt.Errorf("listing %s: %w", id, err)
	}
	return &l, nil
}

// ReplaceActivity swaps the activity feed snapshot in a single transaction.
func (s *Storage) ReplaceActivity(items []models.ActivityItem) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`DELETE FROM activity`); err != nil {
		return fmt.Errorf("failed to clear activity: %w", err)
	}
	for i, item := range items {
		// INSERT OR REPLACE: a node can repeat an event across pages.
		_, err := tx.Exec(`
			INSERT OR REPLACE INTO activity (position, id, kind, car_id, price, address, timestamp)
			VALUES (?,?,?,?,?,?,?)`,
			i, item.ID, string(item.Kind), item.CarID, fmt.Sprint(item.Price), item.Address,
			item.Timestamp.UnixMilli(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert activity %s: %w", item.ID, err)
		}
	}
	return tx.Commit()
}

// GetActivity returns the current feed snapshot, newest first.
func (s *Storage) GetActivity() ([]models.ActivityItem, error) {
	rows, err := s.db.Query(`
		SELECT id, kind, car_id, price, address, timestamp
		FROM activity ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity: %w", err)
	}
	defer rows.Close()

	items := []models.ActivityItem{}
	for rows.Next() {
		var item models.ActivityItem
		var kind, price string
		var tsMillis int64
		if err := rows.Scan(&item.ID, &kind, &item.CarID, &price, &item.Address, &tsMillis); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		item.Kind = models.EventKind(kind)
		item.Timestamp = time.UnixMilli(tsMillis)
		if item.Price, err = parseUint(price); err != nil {
			return nil, fmt.Errorf("activity %s: %w", item.ID, err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// SaveStats replaces the stored statistics.
func (s *Storage) SaveStats(stats models.MarketStats) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO stats (id, total_minted, active_listings, user_cars, total_volume, updated_at)
		VALUES (1,?,?,?,?,?)`,
		stats.TotalMinted, stats.ActiveListings, stats.UserCars, stats.TotalVolume,
		stats.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to save stats: %w", err)
	}
	return nil
}

// GetStats returns the stored statistics, or models.EmptyStats before the first save.
func (s *Storage) GetStats() (models.MarketStats, error) {
	row := s.db.QueryRow(`
		SELECT total_minted, active_listings, user_cars, total_volume, updated_at
		FROM stats WHERE id = 1`)
	var st models.MarketStats
	var updatedAtNano int64
	err := row.Scan(&st.TotalMinted, &st.ActiveListings, &st.UserCars, &st.TotalVolume, &updatedAtNano)
	if err == sql.ErrNoRows {
		return models.EmptyStats(), nil
	}
	if err != nil {
		return models.MarketStats{}, fmt.Errorf("failed to get stats: %w", err)
	}
	st.UpdatedAt = time.Unix(0, updatedAtNano)
	return st, nil
}

// FilterUnnotified returns the items whose IDs have not been marked notified, in input order.
func (s *Storage) FilterUnnotified(items []models.ActivityItem) ([]models.ActivityItem, error) {
	var out []models.ActivityItem
	for _, item := range items {
		var one int
		err := s.db.QueryRow(`SELECT 1 FROM notified_activity WHERE id = ?`, item.ID).Scan(&one)
		if err == sql.ErrNoRows {
			out = append(out, item)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to check notified activity: %w", err)
		}
	}
	return out, nil
}

// MarkNotified records items as announced and enforces the ledger cap.
func (s *Storage) MarkNotified(items []models.ActivityItem) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UnixNano()
	for _, item := range items {
		if _, err := tx.Exec(`INSERT OR REPLACE INTO notified_activity (id, notified_at) VALUES (?,?)`, item.ID, now); err != nil {
			return fmt.Errorf("failed to mark %s notified: %w", item.ID, err)
		}
	}
	if err := rotateNotified(tx, s.maxNotified); err != nil {
		return err
	}
	return tx.Commit()
}

// RotateNotified keeps at most maxNotified newest ledger entries.
func (s *Storage) RotateNotified() error {
	return rotateNotified(s.db, s.maxNotified)
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func rotateNotified(e execer, limit int) error {
	_, err := e.Exec(`
		DELETE FROM notified_activity WHERE id NOT IN (
			SELECT id FROM notified_activity ORDER BY notified_at DESC LIMIT ?
		)`, limit)
	if err != nil {
		return fmt.Errorf("failed to rotate notified activity: %w", err)
	}
	return nil
}

// CountNotified returns the number of ledger entries.
func (s *Storage) CountNotified() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM notified_activity`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count notified activity: %w", err)
	}
	return n, nil
}

func parseUint(s string) (uint64, error) {
	var v uint64
	if _, err := fmt.Sscan(s, &v); err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return v, nil
}
