package bilibili

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Credentials are the session cookies of the bot account.
type Credentials struct {
	SESSDATA   string
	BiliJct    string
	Buvid3     string
	DedeUserID string
	// Zero means the expiry is unknown
	ExpiresAt time.Time
}

func LoadCredentialsFile(path string) (Credentials, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Credentials{}, err
	}
	return ParseCredentials(raw)
}

func ParseCredentials(raw []byte) (Credentials, error) {
	var creds credentialsJSON
	if err := json.Unmarshal(raw, &creds); err != nil {
		return Credentials{}, fmt.Errorf("credentials read error: %w", err)
	}
	expiresAt, err := parseExpiry(creds.ExpiresAt)
	if err != nil {
		return Credentials{}, err
	}
	if creds.SESSDATA == "" || creds.BiliJct == "" {
		return Credentials{}, fmt.Errorf("credentials missing sessdata or bili_jct")
	}
	return Credentials{
		SESSDATA:   creds.SESSDATA,
		BiliJct:    creds.BiliJct,
		Buvid3:     creds.Buvid3,
		DedeUserID: creds.DedeUserID,
		ExpiresAt:  expiresAt,
	}, nil
}

// Older credentials files carry expires_at without a zone, read as local time.
type credentialsJSON struct {
	SESSDATA   string `json:"sessdata"`
	BiliJct    string `json:"bili_jct"`
	Buvid3     string `json:"buvid3"`
	DedeUserID string `json:"dedeuserid"`
	ExpiresAt  string `json:"expires_at"`
}

// SaveCredentialsFile writes the credentials in the format LoadCredentialsFile
// reads, readable only by the owner.
func SaveCredentialsFile(path string, c Credentials) error {
	creds := credentialsJSON{
		SESSDATA:   c.SESSDATA,
		BiliJct:    c.BiliJct,
		Buvid3:     c.Buvid3,
		DedeUserID: c.DedeUserID,
	}
	if !c.ExpiresAt.IsZero() {
		creds.ExpiresAt = c.ExpiresAt.Format(time.RFC3339)
	}
	raw, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return os.WriteFile(path, raw, 0600)
}

func parseExpiry(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02T15:04:05"} {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable expires_at: %s", raw)
}

func (c Credentials) IsExpired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// UserID is the numeric id of the bot account, 0 if unknown.
func (c Credentials) UserID() int64 {
	id, err := strconv.ParseInt(c.DedeUserID, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// Cookies returns the session cookies that are set. Logged out clients have none.
func (c Credentials) Cookies() []*http.Cookie {
	var cookies []*http.Cookie
	for _, cookie := range []*http.Cookie{
		{Name: "SESSDATA", Value: c.SESSDATA},
		{Name: "bili_jct", Value: c.BiliJct},
		{Name: "buvid3", Value: c.Buvid3},
		{Name: "DedeUserID", Value: c.DedeUserID},
	} {
		if cookie.Value != "" {
			cookies = append(cookies, cookie)
		}
	}
	return cookies
}
