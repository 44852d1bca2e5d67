package history

import (
	"context"
	"database/sql"
	"encoding/json"

	_ "github.com/lib/pq"

	"github.com/example/naijago/internal/models"
)

// PostgresLedger persists history entries keyed by session. Ordering comes
// from an insertion sequence rather than timestamps so two completions in
// the same instant still list most-recent-first.
type PostgresLedger struct {
	db  *sql.DB
	key string
}

func OpenPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return db, nil
}

func NewPostgresLedger(db *sql.DB, sessionKey string) *PostgresLedger {
	return &PostgresLedger{db: db, key: sessionKey}
}

func (p *PostgresLedger) Append(ctx context.Context, e models.HistoryEntry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO history_entries(entry_id, session_key, service, entry) VALUES($1,$2,$3,$4)`,
		e.ID, p.key, string(e.Service), b)
	return err
}

func (p *PostgresLedger) List(ctx context.Context) ([]models.HistoryEntry, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT entry FROM history_entries WHERE session_key=$1 ORDER BY seq DESC`, p.key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.HistoryEntry
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var e models.HistoryEntry
		if err := json.Unmarshal(raw, &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (p *PostgresLedger) Clear(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM history_entries WHERE session_key=$1`, p.key)
	return err
}
