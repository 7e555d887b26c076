package database

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/truemediaorg/mentionbot/database/db"
	"github.com/truemediaorg/mentionbot/model"
)

//go:embed schema_postgres.sql
var postgresSchema string

const mentionColumns = `id, kind, subject_id, root_id, parent_id, author_id, author_name, text,
	subject_title, subject_desc, created_epoch, status, reply_text, mentioned_users, inserted_at, updated_at`

// Postgres is the Store used for deployed instances.
type Postgres struct {
	connString string
	pool       *pgxpool.Pool
}

func NewPostgres(connString string) *Postgres {
	return &Postgres{
		connString: connString,
	}
}

func (d *Postgres) Connect(ctx context.Context) error {
	var err error
	d.pool, err = pgxpool.New(ctx, d.connString)
	if err != nil {
		return err
	}
	if _, err = d.pool.Exec(ctx, postgresSchema); err != nil {
		d.pool.Close()
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}

func (d *Postgres) Close() error {
	d.pool.Close()
	return nil
}

func (d *Postgres) InsertMention(ctx context.Context, mention model.Mention) (bool, error) {
	mention, err := prepareInsert(mention, time.Now().UTC()) // the DB stores timezones and assumes UTC
	if err != nil {
		return false, err
	}
	row, err := mention.ToRow()
	if err != nil {
		return false, err
	}
	tag, err := d.pool.Exec(ctx, `
	INSERT INTO mentions (`+mentionColumns+`)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
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
		row.ReplyText,
		row.MentionedUsers,
		row.InsertedAt,
		row.UpdatedAt,
	)
	if err != nil {
		return false, err
	}
	// zero rows means the id was already known
	return tag.RowsAffected() == 1, nil
}

func (d *Postgres) ClaimOnePending(ctx context.Context, order model.ClaimOrder) (*model.Mention, error) {
	direction := order.SQLDirection()
	rows, err := d.pool.Query(ctx, fmt.Sprintf(`
	SELECT `+mentionColumns+`
	FROM mentions
	WHERE status = $1
	ORDER BY created_epoch %s, id %s
	LIMIT 1`, direction, direction),
		model.StatusPending,
	)
	if err != nil {
		return nil, err
	}
	return collectOne(rows)
}

func (d *Postgres) UpdateStatus(ctx context.Context, id int64, status model.Status, replyText *string) error {
	if err := checkReplyText(status, replyText); err != nil {
		return err
	}
	tag, err := d.pool.Exec(ctx, `
	UPDATE mentions
	SET status = $1, reply_text = $2, updated_at = $3
	WHERE id = $4`,
		status,
		replyText,
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return nil
}

func (d *Postgres) GetMention(ctx context.Context, id int64) (*model.Mention, error) {
	rows, err := d.pool.Query(ctx, `SELECT `+mentionColumns+` FROM mentions WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	return collectOne(rows)
}

func (d *Postgres) ListStale(ctx context.Context, status model.Status, olderThan time.Time) ([]model.Mention, error) {
	rows, err := d.pool.Query(ctx, `
	SELECT `+mentionColumns+`
	FROM mentions
	WHERE status = $1
	  AND updated_at < $2
	ORDER BY updated_at ASC`,
		status,
		olderThan.UTC(),
	)
	if err != nil {
		return nil, err
	}

	raws, err := pgx.CollectRows(rows, pgx.RowToStructByName[db.Mention])
	if err != nil {
		return nil, err
	}

	var mentions []model.Mention
	for _, raw := range raws {
		mention, err := model.MentionFromRow(raw)
		if err != nil {
			return nil, err
		}
		mentions = append(mentions, *mention)
	}
	return mentions, nil
}

func (d *Postgres) Stats(ctx context.Context) (model.Stats, error) {
	stats := emptyStats()
	rows, err := d.pool.Query(ctx, `SELECT status, COUNT(*) FROM mentions GROUP BY status`)
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

func collectOne(rows pgx.Rows) (*model.Mention, error) {
	raw, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[db.Mention])
	if err != nil {
		// An empty result is not an error for lookups
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return model.MentionFromRow(raw)
}
