package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/truemediaorg/mentionbot/bilibili"
	"github.com/truemediaorg/mentionbot/config"

	log "github.com/sirupsen/logrus"
)

const loginPollInterval = 2 * time.Second

var loginTimeout time.Duration

func init() {
	rootCmd.AddCommand(loginCmd)
	loginCmd.Flags().DurationVar(&loginTimeout, "timeout", 120*time.Second, "how long to wait for the QR code to be confirmed")
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Logs the bot account in with a QR code",
	Long: `Prints a QR login URL for the Bilibili mobile app, waits for the login to be
confirmed and saves the session cookies to the credentials file`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromEnvfile()
		config.SetupLogging(cfg)

		ctx, done := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer done()
		ctx, cancel := context.WithTimeout(ctx, loginTimeout)
		defer cancel()

		client := bilibili.NewClient(cfg.Bilibili.PassportURL, bilibili.Credentials{})
		credentials, err := login(ctx, client, loginPollInterval)
		if err != nil {
			return fmt.Errorf("login failed: %w", err)
		}

		if err := bilibili.SaveCredentialsFile(cfg.Bilibili.CredentialPath, credentials); err != nil {
			return fmt.Errorf("saving credentials: %w", err)
		}
		log.WithField("path", cfg.Bilibili.CredentialPath).WithField("userId", credentials.UserID()).Info("saved bilibili credentials")

		fmt.Printf("Logged in, credentials valid until %s\n", credentials.ExpiresAt.Format(time.DateOnly))
		if cfg.Bilibili.SecretPath != "" {
			fmt.Printf("Note: %s is set, copy %s into that secret for the server to use it\n",
				config.EnvfileKeyBilibiliSecretsPath, cfg.Bilibili.CredentialPath)
		}
		return nil
	},
}

// login runs one QR login against the passport client and returns the new session.
func login(ctx context.Context, client *bilibili.Client, interval time.Duration) (bilibili.Credentials, error) {
	qrCode, err := client.GenerateQRCode(ctx)
	if err != nil {
		return bilibili.Credentials{}, fmt.Errorf("generating QR code: %w", err)
	}
	fmt.Printf("Scan this URL as a QR code with the Bilibili app:\n%s\n", qrCode.URL)

	return client.WaitForLogin(ctx, qrCode.Key, interval, func(poll bilibili.QRPoll) {
		switch poll.Code {
		case bilibili.QRCodeWaiting:
			fmt.Println("Waiting for scan...")
		case bilibili.QRCodeScanned:
			fmt.Println("Scanned, waiting for confirmation...")
		}
	})
}
