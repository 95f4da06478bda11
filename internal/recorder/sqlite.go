package recorder

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"WatchSentinel/internal/logger"
	"WatchSentinel/internal/model"
)

// SQLiteRecorder persists history to a SQLite database.
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	log *logrus.Entry
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL so dashboards can read while the poller writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, log: logger.Get().WithComponent("recorder")}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	r.log.WithField("path", dbPath).Info("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS quote_ticks (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp      INTEGER NOT NULL,
			code           TEXT NOT NULL,
			name           TEXT,
			price          REAL,
			prev_close     REAL,
			change         REAL,
			change_percent REAL,
			volume         REAL,
			amount         REAL,
			quote_time     INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ticks_code_ts ON quote_ticks(code, timestamp)`,

		`CREATE TABLE IF NOT EXISTS alert_fired (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp  INTEGER NOT NULL,
			alert_id   TEXT NOT NULL,
			code       TEXT,
			alert_type TEXT,
			condition  TEXT,
			target     REAL,
			value      REAL,
			price      REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_fired_alert ON alert_fired(alert_id)`,

		`CREATE TABLE IF NOT EXISTS notifications (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp INTEGER NOT NULL,
			alert_id  TEXT,
			channel   TEXT,
			code      TEXT,
			message   TEXT,
			ok        INTEGER,
			error     TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_ts ON notifications(timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// RecordQuotes stores one row per quote in a single transaction.
func (r *SQLiteRecorder) RecordQuotes(quotes []model.Quote, at time.Time) error {
	if len(quotes) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO quote_ticks
		(timestamp, code, name, price, prev_close, change, change_percent, volume, amount, quote_time)
		VALUES (?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	ts := at.Unix()
	for _, q := range quotes {
		var quoteTime int64
		if !q.Timestamp.IsZero() {
			quoteTime = q.Timestamp.Unix()
		}
		if _, err := stmt.Exec(ts, q.Code, q.Name, q.Price, q.PrevClose,
			q.Change, q.ChangePercent, q.Volume, q.Amount, quoteTime); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert %s: %w", q.Code, err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteRecorder) RecordAlertFired(evt *FiredEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO alert_fired
		(timestamp, alert_id, code, alert_type, condition, target, value, price)
		VALUES (?,?,?,?,?,?,?,?)`,
		evt.FiredAt.Unix(), evt.AlertID, evt.Code, string(evt.Type), string(evt.Condition),
		evt.Target, evt.Value, evt.Price,
	)
	return err
}

func (r *SQLiteRecorder) RecordNotification(evt *DeliveryEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ok, errText := 1, ""
	if evt.Err != nil {
		ok, errText = 0, evt.Err.Error()
	}
	_, err := r.db.Exec(`INSERT INTO notifications
		(timestamp, alert_id, channel, code, message, ok, error)
		VALUES (?,?,?,?,?,?,?)`,
		evt.SentAt.Unix(), evt.AlertID, string(evt.Channel), evt.Code, evt.Message, ok, errText,
	)
	return err
}

// Prune deletes quote ticks older than cutoff and returns the number removed.
func (r *SQLiteRecorder) Prune(cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.Exec(`DELETE FROM quote_ticks WHERE timestamp < ?`, cutoff.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *SQLiteRecorder) Close() error {
	r.log.Info("closing sqlite recorder")
	return r.db.Close()
}
