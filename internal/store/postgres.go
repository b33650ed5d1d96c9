package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

var ErrUnknownMatch = errors.New("no such match")

// OpenPostgres opens and pings the database behind dsn.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Migrate applies the embedded goose migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Postgres keeps one row per match in the matches table.
type Postgres struct {
	DB *sql.DB
}

func (p Postgres) MatchOpened(ctx context.Context, o Opened) error {
	_, err := p.DB.ExecContext(ctx,
		`INSERT INTO matches (id, queue_kind, left_player, right_player, begin_date)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO NOTHING`,
		o.MatchID, o.QueueKind, o.Players[0], o.Players[1], o.BeginDate)
	if err != nil {
		return fmt.Errorf("insert match %s: %w", o.MatchID, err)
	}
	return nil
}

func (p Postgres) MatchClosed(ctx context.Context, c Closed) error {
	res, err := p.DB.ExecContext(ctx,
		`UPDATE matches
		 SET end_date = $2, winner_id = NULLIF($3, ''), reason = $4, left_score = $5, right_score = $6
		 WHERE id = $1`,
		c.MatchID, c.EndDate, c.WinnerID, c.Reason, c.Score[0], c.Score[1])
	if err != nil {
		return fmt.Errorf("close match %s: %w", c.MatchID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("close match %s: %w", c.MatchID, ErrUnknownMatch)
	}
	return nil
}

// Summary is a finished or running match as stored.
type Summary struct {
	MatchID   string     `json:"match_id"`
	QueueKind string     `json:"queue_kind"`
	Players   [2]string  `json:"players"`
	BeginDate time.Time  `json:"begin_date"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	WinnerID  string     `json:"winner_id,omitempty"`
	Reason    string     `json:"reason,omitempty"`
	Score     [2]int     `json:"score"`
}

// Recent returns the latest matches, newest first.
func (p Postgres) Recent(ctx context.Context, limit int) ([]Summary, error) {
	rows, err := p.DB.QueryContext(ctx,
		`SELECT id, queue_kind, left_player, right_player, begin_date, end_date,
		        COALESCE(winner_id, ''), COALESCE(reason, ''), left_score, right_score
		 FROM matches
		 ORDER BY begin_date DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query matches: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var s Summary
		var end sql.NullTime
		if err := rows.Scan(&s.MatchID, &s.QueueKind, &s.Players[0], &s.Players[1], &s.BeginDate, &end,
			&s.WinnerID, &s.Reason, &s.Score[0], &s.Score[1]); err != nil {
			return nil, err
		}
		if end.Valid {
			t := end.Time
			s.EndDate = &t
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
