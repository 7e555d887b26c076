package bilibili

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	qrGeneratePath = "/x/passport-login/web/qrcode/generate"
	qrPollPath     = "/x/passport-login/web/qrcode/poll"
	loginSource    = "main-fe-header"

	// The passport does not report the lifetime of a web session
	sessionLifetime = 30 * 24 * time.Hour
)

// Login states reported in the data of a QR poll.
const (
	QRCodeConfirmed = 0
	QRCodeExpired   = -1
	QRCodeWaiting   = 86101
	QRCodeScanned   = 86202
	// The passport also reports expiry with its own code
	qrCodeTimedOut = 86038
)

var ErrQRCodeExpired = errors.New("QR code expired or cancelled")

type QRCode struct {
	URL string `json:"url"`
	Key string `json:"qrcode_key"`
}

type QRPoll struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	// Set once confirmed, carries the session cookies as query parameters
	URL string `json:"url"`
}

// GenerateQRCode starts a QR login. The URL is what the mobile app must scan.
// The client must point at the passport host.
func (c *Client) GenerateQRCode(ctx context.Context) (*QRCode, error) {
	query := url.Values{}
	query.Set("source", loginSource)
	return getJSON[QRCode](ctx, c, qrGeneratePath, query)
}

func (c *Client) PollQRCode(ctx context.Context, key string) (*QRPoll, error) {
	query := url.Values{}
	query.Set("qrcode_key", key)
	query.Set("source", loginSource)
	return getJSON[QRPoll](ctx, c, qrPollPath, query)
}

// WaitForLogin polls the QR code every interval until it is confirmed, expires,
// or ctx is done. onStatus, if set, sees every change of state.
func (c *Client) WaitForLogin(ctx context.Context, key string, interval time.Duration, onStatus func(poll QRPoll)) (Credentials, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lastCode, polled := 0, false
	for {
		poll, err := c.PollQRCode(ctx, key)
		if err != nil {
			return Credentials{}, err
		}
		if onStatus != nil && (!polled || poll.Code != lastCode) {
			onStatus(*poll)
		}
		lastCode, polled = poll.Code, true

		switch poll.Code {
		case QRCodeConfirmed:
			return CredentialsFromLoginURL(poll.URL, time.Now())
		case QRCodeExpired, qrCodeTimedOut:
			return Credentials{}, ErrQRCodeExpired
		}

		select {
		case <-ctx.Done():
			return Credentials{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

// CredentialsFromLoginURL reads the session cookies from the URL of a confirmed
// QR login. Values are kept URL encoded, the form the cookies are sent in.
func CredentialsFromLoginURL(rawURL string, now time.Time) (Credentials, error) {
	if rawURL == "" {
		return Credentials{}, errors.New("login confirmed without a URL")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return Credentials{}, fmt.Errorf("parsing login URL: %w", err)
	}

	params := map[string]string{}
	for _, pair := range strings.Split(u.RawQuery, "&") {
		name, value, ok := strings.Cut(pair, "=")
		if ok && value != "" {
			params[name] = value
		}
	}

	credentials := Credentials{
		SESSDATA:   params["SESSDATA"],
		BiliJct:    params["bili_jct"],
		Buvid3:     params["buvid3"],
		DedeUserID: params["DedeUserID"],
		ExpiresAt:  now.Add(sessionLifetime),
	}
	if credentials.SESSDATA == "" || credentials.BiliJct == "" {
		return Credentials{}, errors.New("login URL is missing SESSDATA or bili_jct")
	}
	return credentials, nil
}
