package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/truemediaorg/mentionbot/bilibili"
	"github.com/truemediaorg/mentionbot/config"
	"github.com/truemediaorg/mentionbot/dispatcher"
	"github.com/truemediaorg/mentionbot/pipeline"
	"github.com/truemediaorg/mentionbot/responder"
	"github.com/truemediaorg/mentionbot/service"
	"github.com/truemediaorg/mentionbot/watcher"
	"golang.org/x/sync/errgroup"

	log "github.com/sirupsen/logrus"
)

func init() {
	rootCmd.AddCommand(serverCmd)
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Runs the mentionbot server",
	Long:  `Runs the mentionbot server: syncs mentions, generates replies and posts them`,
	RunE: func(cmd *cobra.Command, args []string) error {

		cfg := config.FromEnvfile()
		config.SetupLogging(cfg)
		if err := cfg.CheckGenAI(); err != nil {
			return err
		}

		if cfg.TestModeEnabled {
			log.Info("TEST MODE ENABLED")
		}

		/*
			Graceful shutdown is possible with errgroup + signal.NotifyContext
			NotifyContext returns a context that will close on OS signals to terminate the process
			errgroup uses that context, and also closes it in case a goroutine errors out
		*/
		ctx, done := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer done()

		secretsManagerClient := newSecretsManagerClient(ctx)

		store, err := openStore(ctx, cfg, secretsManagerClient)
		if err != nil {
			return err
		}
		defer store.Close()

		credentials, err := service.LoadCredentials(ctx, cfg.Bilibili, secretsManagerClient)
		if err != nil {
			return err
		}
		if err := checkCredentials(credentials, time.Now(), cfg.TestModeEnabled); err != nil {
			return err
		}
		bilibiliService := service.NewBilibiliService(bilibili.NewClient(cfg.Bilibili.ApiURL, credentials))
		botID, botNickname := bilibiliService.BotIdentity(ctx, cfg.Bilibili.BotNickname)
		log.WithField("botId", botID).WithField("nickname", botNickname).Info("running as bot")

		producer, err := newReplyProducer(ctx, cfg, secretsManagerClient)
		if err != nil {
			return err
		}

		watcher := watcher.NewWatcher(bilibiliService, store, cfg.Bilibili.FeedPageSize)
		dispatcher := dispatcher.NewDispatcher(bilibiliService, cfg.Pipeline.ReplyRateLimit, cfg.TestModeEnabled)
		responder := responder.NewResponder(store, producer, bilibiliService, dispatcher,
			responder.Identity{UserID: botID, Nickname: botNickname},
			responder.Options{
				Order:           cfg.Pipeline.ClaimOrder,
				GenerateTimeout: cfg.Pipeline.GenerateTimeout,
				StaleAfter:      cfg.Pipeline.ProcessingTimeout,
			})
		pipeline := pipeline.NewPipeline(watcher, responder, cfg.Pipeline.PollInterval, cfg.Pipeline.BatchSize)

		g, gCtx := errgroup.WithContext(ctx)

		g.Go(func() error {
			defer log.Info("exiting pipeline")
			return pipeline.Run(gCtx)
		})
		g.Go(func() error {
			<-gCtx.Done()
			pipeline.Stop()
			return nil
		})

		if cfg.Health.Enabled {
			healthchecker := service.NewHealthchecker(cfg.Health.Port, map[string]service.HealthCheck{
				"database":   service.StoreCheck(store),
				"credential": service.CredentialCheck(bilibiliService),
			})

			// For deployed instances, provide a basic healthcheck endpoint to show it's online
			g.Go(func() error {
				if err := healthchecker.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					return err
				}
				return nil
			})
			// ...and shut down the server if the bot needs to terminate
			g.Go(func() error {
				<-gCtx.Done()
				defer log.Info("exiting healthchecker")
				return healthchecker.Server.Shutdown(context.Background())
			})
		}

		err = g.Wait()
		if err != nil {
			log.Errorf("caught error: %v", err)
		}
		return err
	},
}

func newReplyProducer(ctx context.Context, cfg config.Config, secrets service.SecretGetter) (responder.ReplyProducer, error) {
	if cfg.TestModeEnabled && cfg.GenAI.APIKey == "" && cfg.GenAI.SecretPath == "" {
		log.Info("no GenAI key configured, using canned replies")
		return service.CannedReplyProducer{}, nil
	}
	return service.NewGenAIService(ctx, cfg, secrets)
}

// checkCredentials refuses an expired session. Test mode never posts, so there
// it only warns.
func checkCredentials(credentials bilibili.Credentials, now time.Time, testMode bool) error {
	if !credentials.IsExpired(now) {
		return nil
	}
	if testMode {
		log.WithField("expiresAt", credentials.ExpiresAt).Warn("bilibili credentials have expired")
		return nil
	}
	return fmt.Errorf("bilibili credentials expired at %s, run `mentionbot login` to refresh them",
		credentials.ExpiresAt.Format(time.RFC3339))
}
