package cmd

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/truemediaorg/mentionbot/bilibili"
)

func newPassportClient(t *testing.T, handler http.HandlerFunc) *bilibili.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	baseURL, err := url.Parse(server.URL)
	require.NoError(t, err)
	return bilibili.NewClient(*baseURL, bilibili.Credentials{})
}

func TestLogin(t *testing.T) {
	t.Run("generates a code and polls it until confirmed", func(t *testing.T) {
		var polls atomic.Int32
		client := newPassportClient(t, func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/x/passport-login/web/qrcode/generate":
				fmt.Fprint(w, `{"code":0,"data":{"url":"https://account.bilibili.com/scan-web?qrcode_key=abc","qrcode_key":"abc"}}`)
			case "/x/passport-login/web/qrcode/poll":
				assert.Equal(t, "abc", r.URL.Query().Get("qrcode_key"))
				if polls.Add(1) < 3 {
					fmt.Fprint(w, `{"code":0,"data":{"code":86101,"url":""}}`)
					return
				}
				fmt.Fprint(w, `{"code":0,"data":{"code":0,"url":"https://passport.biligame.com/crossDomain?DedeUserID=42&SESSDATA=s%2C1&bili_jct=j"}}`)
			default:
				http.NotFound(w, r)
			}
		})

		credentials, err := login(context.Background(), client, time.Millisecond)
		require.NoError(t, err)
		assert.Equal(t, int32(3), polls.Load())
		assert.Equal(t, "s%2C1", credentials.SESSDATA)
		assert.Equal(t, int64(42), credentials.UserID())
	})

	t.Run("fails when no code can be generated", func(t *testing.T) {
		client := newPassportClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusPreconditionFailed)
		})

		_, err := login(context.Background(), client, time.Millisecond)
		assert.ErrorContains(t, err, "generating QR code")
	})
}

func TestCheckCredentials(t *testing.T) {
	now := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
	expired := bilibili.Credentials{SESSDATA: "s", BiliJct: "j", ExpiresAt: now.Add(-time.Hour)}

	for _, testCase := range []struct {
		description string
		credentials bilibili.Credentials
		testMode    bool
		wantErr     bool
	}{
		{"valid session", bilibili.Credentials{SESSDATA: "s", BiliJct: "j", ExpiresAt: now.Add(time.Hour)}, false, false},
		{"unknown expiry", bilibili.Credentials{SESSDATA: "s", BiliJct: "j"}, false, false},
		{"expired session", expired, false, true},
		{"expired session in test mode", expired, true, false},
	} {
		t.Run(testCase.description, func(t *testing.T) {
			err := checkCredentials(testCase.credentials, now, testCase.testMode)
			if testCase.wantErr {
				assert.ErrorContains(t, err, "mentionbot login")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
