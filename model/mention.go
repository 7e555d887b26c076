package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/truemediaorg/mentionbot/database/db"
)

type MentionedUser struct {
	UserID      int64  `json:"mid"`
	DisplayName string `json:"nickname"`
}

type Mention struct {
	ID        int64
	Kind      Kind
	SubjectID int64
	// RootID of 0 means this mention is itself the root of its thread
	RootID         int64
	ParentID       int64
	AuthorID       int64
	AuthorName     string
	Text           string
	SubjectTitle   string
	SubjectDesc    string
	CreatedEpoch   int64
	Status         Status
	ReplyText      *string
	MentionedUsers []MentionedUser
	InsertedAt     time.Time
	UpdatedAt      time.Time
}

// ReplyContext is optional background handed to the reply producer.
type ReplyContext struct {
	SubjectTitle       string
	SubjectDescription string
	ParentText         string
	RootText           string
}

func (c ReplyContext) IsEmpty() bool {
	return c == ReplyContext{}
}

type GenerationRequest struct {
	MentionID  int64
	AuthorName string
	Text       string
	Context    ReplyContext
}

type Stats struct {
	Total    int            `json:"total"`
	ByStatus map[Status]int `json:"by_status"`
}

func MentionFromRow(row db.Mention) (*Mention, error) {
	kind, err := ParseKind(row.Kind)
	if err != nil {
		return nil, err
	}
	status, err := ParseStatus(row.Status)
	if err != nil {
		return nil, err
	}
	var users []MentionedUser
	if len(row.MentionedUsers) > 0 {
		if err := json.Unmarshal(row.MentionedUsers, &users); err != nil {
			return nil, fmt.Errorf("decoding mentioned users for %d: %w", row.ID, err)
		}
	}
	return &Mention{
		ID:             row.ID,
		Kind:           kind,
		SubjectID:      row.SubjectID,
		RootID:         row.RootID,
		ParentID:       row.ParentID,
		AuthorID:       row.AuthorID,
		AuthorName:     row.AuthorName,
		Text:           row.Text,
		SubjectTitle:   row.SubjectTitle,
		SubjectDesc:    row.SubjectDesc,
		CreatedEpoch:   row.CreatedEpoch,
		Status:         status,
		ReplyText:      row.ReplyText,
		MentionedUsers: users,
		InsertedAt:     row.InsertedAt,
		UpdatedAt:      row.UpdatedAt,
	}, nil
}

// ToRow encodes the mention for storage. The mentioned users keep their order.
func (m Mention) ToRow() (db.Mention, error) {
	var users []byte
	if len(m.MentionedUsers) > 0 {
		encoded, err := json.Marshal(m.MentionedUsers)
		if err != nil {
			return db.Mention{}, err
		}
		users = encoded
	}
	return db.Mention{
		ID:             m.ID,
		Kind:           string(m.Kind),
		SubjectID:      m.SubjectID,
		RootID:         m.RootID,
		ParentID:       m.ParentID,
		AuthorID:       m.AuthorID,
		AuthorName:     m.AuthorName,
		Text:           m.Text,
		SubjectTitle:   m.SubjectTitle,
		SubjectDesc:    m.SubjectDesc,
		CreatedEpoch:   m.CreatedEpoch,
		Status:         string(m.Status),
		ReplyText:      m.ReplyText,
		MentionedUsers: users,
		InsertedAt:     m.InsertedAt,
		UpdatedAt:      m.UpdatedAt,
	}, nil
}
