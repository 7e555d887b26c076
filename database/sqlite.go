package database

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/truemediaorg/mentionbot/database/db"
	"github.com/truemediaorg/mentionbot/model"

	_ "modernc.org/sqlite"
)

//go:embed schema_sqlite.sql
var sqliteSchema string

// SQLite is the embedded Store used when no Postgres database is configured.
// Timestamps are stored as unix milliseconds.
type SQLite struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows one writer at a time
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	if _, err := conn.Exec(sqliteSchema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &SQLite{db: conn}, nil
}

func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLite) InsertMention(ctx context.Context, mention model.Mention) (bool, error) {
	mention, err := prepareInsert(mention, time.Now().UTC())
	if err != nil {
		return false, err
	}
	row, err := mention.ToRow()
	if err != nil {
		return false, err
	}
	result, err := s.db.ExecContext(ctx, `
	INSERT INTO mentions (`+mentionColumns+`)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO NOTHING`,
		row.ID,
		row.Kind,
		row.SubjectID,
		row.RootID,
		row.ParentID,
		row.AuthorID,
		row.AuthorName,
		row.Text,
		row.SubjectTitle,
		row.SubjectDesc,
		row.CreatedEpoch,
		row.Status,
		nullString(row.ReplyText),
		nullBytes(row.MentionedUsers),
		row.InsertedAt.UnixMilli(),
		row.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (s *SQLite) ClaimOnePending(ctx context.Context, order model.ClaimOrder) (*model.Mention, error) {
	direction := order.SQLDirection()
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`
	SELECT `+mentionColumns+`
	FROM mentions
	WHERE status = ?
	ORDER BY created_epoch %s, id %s
	LIMIT 1`, direction, direction),
		string(model.StatusPending),
	)
	return scanOne(row)
}

func (s *SQLite) UpdateStatus(ctx context.Context, id int64, status model.Status, replyText *string) error {
	if err := checkReplyText(status, replyText); err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, `
	UPDATE mentions
	SET status = ?, reply_text = ?, updated_at = ?
	WHERE id = ?`,
		string(status),
		nullString(replyText),
		time.Now().UTC().UnixMilli(),
		id,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return nil
}

func (s *SQLite) GetMention(ctx context.Context, id int64) (*model.Mention, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+mentionColumns+` FROM mentions WHERE id = ?`, id)
	return scanOne(row)
}

func (s *SQLite) ListStale(ctx context.Context, status model.Status, olderThan time.Time) ([]model.Mention, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT `+mentionColumns+`
	FROM mentions
	WHERE status = ?
	  AND updated_at < ?
	ORDER BY updated_at ASC`,
		string(status),
		olderThan.UTC().UnixMilli(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var mentions []model.Mention
	for rows.Next() {
		mention, err := scanMention(rows)
		if err != nil {
			return nil, err
		}
		mentions = append(mentions, *mention)
	}
	return mentions, rows.Err()
}

func (s *SQLite) Stats(ctx context.Context) (model.Stats, error) {
	stats := emptyStats()
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM mentions GROUP BY status`)
	if err != nil {
		return stats, err
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return stats, err
		}
		stats.ByStatus[model.Status(status)] = count
		stats.Total += count
	}
	return stats, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOne(row *sql.Row) (*model.Mention, error) {
	mention, err := scanMention(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return mention, err
}

func scanMention(scanner rowScanner) (*model.Mention, error) {
	var (
		raw        db.Mention
		replyText  sql.NullString
		users      []byte
		insertedAt int64
		updatedAt  int64
	)
	err := scanner.Scan(
		&raw.ID,
		&raw.Kind,
		&raw.SubjectID,
		&raw.RootID,
		&raw.ParentID,
		&raw.AuthorID,
		&raw.AuthorName,
		&raw.Text,
		&raw.SubjectTitle,
		&raw.SubjectDesc,
		&raw.CreatedEpoch,
		&raw.Status,
		&replyText,
		&users,
		&insertedAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}
	if replyText.Valid {
		raw.ReplyText = &replyText.String
	}
	raw.MentionedUsers = users
	raw.InsertedAt = time.UnixMilli(insertedAt).UTC()
	raw.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return model.MentionFromRow(raw)
}

func nullString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

func nullBytes(value []byte) any {
	if len(value) == 0 {
		return nil
	}
	return string(value)
}
