package db

import "time"

type Mention struct {
	ID             int64     `db:"id"`
	Kind           string    `db:"kind"`
	SubjectID      int64     `db:"subject_id"`
	RootID         int64     `db:"root_id"`
	ParentID       int64     `db:"parent_id"`
	AuthorID       int64     `db:"author_id"`
	AuthorName     string    `db:"author_name"`
	Text           string    `db:"text"`
	SubjectTitle   string    `db:"subject_title"`
	SubjectDesc    string    `db:"subject_desc"`
	CreatedEpoch   int64     `db:"created_epoch"`
	Status         string    `db:"status"`
	ReplyText      *string   `db:"reply_text"`
	MentionedUsers []byte    `db:"mentioned_users"`
	InsertedAt     time.Time `db:"inserted_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}
