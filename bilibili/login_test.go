package bilibili

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const confirmedURL = "https://passport.biligame.com/x/passport-login/web/crossDomain?DedeUserID=6794023&DedeUserID__ckMd5=abc&Expires=15551000&SESSDATA=9f1c%2C1735689600%2Cb2a1*c1&bili_jct=csrf-token&gourl=https%3A%2F%2Fwww.bilibili.com"

// pollHandler answers each poll with the next of codes, repeating the last.
func pollHandler(t *testing.T, codes ...int) (http.HandlerFunc, func() int) {
	var mu sync.Mutex
	polls := 0
	handler := func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, qrPollPath, r.URL.Path)
		assert.Equal(t, "key-1", r.URL.Query().Get("qrcode_key"))
		assert.Equal(t, loginSource, r.URL.Query().Get("source"))
		_, err := r.Cookie("SESSDATA")
		assert.ErrorIs(t, err, http.ErrNoCookie, "a logged out client sends no session")

		mu.Lock()
		code := codes[min(polls, len(codes)-1)]
		polls++
		mu.Unlock()

		loginURL := ""
		if code == QRCodeConfirmed {
			loginURL = confirmedURL
		}
		fmt.Fprintf(w, `{"code":0,"message":"0","data":{"url":%q,"refresh_token":"","timestamp":1700000000000,"code":%d,"message":""}}`, loginURL, code)
	}
	count := func() int {
		mu.Lock()
		defer mu.Unlock()
		return polls
	}
	return handler, count
}

func newLoginClient(t *testing.T, handler http.HandlerFunc) *Client {
	client := newTestClient(t, handler)
	client.credentials = Credentials{}
	return client
}

func TestGenerateQRCode(t *testing.T) {
	client := newLoginClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, qrGeneratePath, r.URL.Path)
		assert.Equal(t, "main-fe-header", r.URL.Query().Get("source"))
		fmt.Fprint(w, `{"code":0,"message":"0","data":{"url":"https://account.bilibili.com/h5/account-h5/auth/scan-web?qrcode_key=key-1","qrcode_key":"key-1"}}`)
	})

	qrCode, err := client.GenerateQRCode(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "key-1", qrCode.Key)
	assert.Contains(t, qrCode.URL, "scan-web")
}

func TestWaitForLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("reports each state once and returns the session of a confirmed login", func(t *testing.T) {
		handler, polls := pollHandler(t, QRCodeWaiting, QRCodeWaiting, QRCodeScanned, QRCodeConfirmed)
		client := newLoginClient(t, handler)

		var seen []int
		before := time.Now()
		credentials, err := client.WaitForLogin(ctx, "key-1", time.Millisecond, func(poll QRPoll) {
			seen = append(seen, poll.Code)
		})
		require.NoError(t, err)
		assert.Equal(t, []int{QRCodeWaiting, QRCodeScanned, QRCodeConfirmed}, seen)
		assert.Equal(t, 4, polls())

		assert.Equal(t, "9f1c%2C1735689600%2Cb2a1*c1", credentials.SESSDATA)
		assert.Equal(t, "csrf-token", credentials.BiliJct)
		assert.Equal(t, int64(6794023), credentials.UserID())
		assert.WithinDuration(t, before.Add(30*24*time.Hour), credentials.ExpiresAt, time.Minute)
		assert.False(t, credentials.IsExpired(time.Now()))
	})

	t.Run("stops when the code expires", func(t *testing.T) {
		handler, polls := pollHandler(t, QRCodeWaiting, QRCodeExpired)
		client := newLoginClient(t, handler)

		_, err := client.WaitForLogin(ctx, "key-1", time.Millisecond, nil)
		assert.ErrorIs(t, err, ErrQRCodeExpired)
		assert.Equal(t, 2, polls())
	})

	t.Run("the passport timeout code also counts as expired", func(t *testing.T) {
		handler, _ := pollHandler(t, qrCodeTimedOut)
		client := newLoginClient(t, handler)

		_, err := client.WaitForLogin(ctx, "key-1", time.Millisecond, nil)
		assert.ErrorIs(t, err, ErrQRCodeExpired)
	})

	t.Run("gives up when the context ends", func(t *testing.T) {
		handler, polls := pollHandler(t, QRCodeWaiting)
		client := newLoginClient(t, handler)

		timeoutCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()
		_, err := client.WaitForLogin(timeoutCtx, "key-1", 10*time.Millisecond, nil)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.GreaterOrEqual(t, polls(), 1)
	})

	t.Run("an error envelope aborts the login", func(t *testing.T) {
		client := newLoginClient(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"code":-400,"message":"请求错误"}`)
		})

		_, err := client.WaitForLogin(ctx, "key-1", time.Millisecond, nil)
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, -400, apiErr.Code)
	})
}

func TestCredentialsFromLoginURL(t *testing.T) {
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	t.Run("missing session cookies are rejected", func(t *testing.T) {
		_, err := CredentialsFromLoginURL("https://passport.biligame.com/crossDomain?DedeUserID=1&bili_jct=x", now)
		assert.ErrorContains(t, err, "SESSDATA")
		_, err = CredentialsFromLoginURL("", now)
		assert.Error(t, err)
	})

	t.Run("saved credentials load back", func(t *testing.T) {
		credentials, err := CredentialsFromLoginURL(confirmedURL, now)
		require.NoError(t, err)

		path := filepath.Join(t.TempDir(), "data", "credentials.json")
		require.NoError(t, SaveCredentialsFile(path, credentials))

		loaded, err := LoadCredentialsFile(path)
		require.NoError(t, err)
		assert.Equal(t, credentials.SESSDATA, loaded.SESSDATA)
		assert.Equal(t, credentials.BiliJct, loaded.BiliJct)
		assert.Equal(t, credentials.DedeUserID, loaded.DedeUserID)
		assert.True(t, now.Add(30*24*time.Hour).Equal(loaded.ExpiresAt))
	})
}
