package commands

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"listing-chat/config"
	"listing-chat/controllers"
	"listing-chat/crypto"
	"listing-chat/models"
	"listing-chat/routes"
	"listing-chat/services"
	"listing-chat/workers"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	gin.SetMode(cfg.Server.Mode)

	// 初始化数据库
	db, err := config.InitDB(cfg.Database)
	if err != nil {
		return err
	}
	// 自动迁移
	if err := models.Migrate(db); err != nil {
		return errors.Wrap(err, "migrate")
	}

	dispatcher := workers.NewDispatcher(cfg.Messages.DecryptWorkers, cfg.Messages.QueueSize, crypto.Decrypt)
	dispatcher.Start()
	defer dispatcher.Stop()

	keys := crypto.NewKeyManager()
	hub := services.NewHub(cfg.Messages.QueueSize, log)
	directory := services.NewConversationDirectory(db, keys, services.NewGormListingCatalog(db), log)
	messages := services.NewMessageService(db, directory, keys, dispatcher, hub, cfg.Messages.MaxLength, log)

	// 注册路由
	r := routes.RegisterRoutes(controllers.New(directory, messages, hub, log), cfg.Server, []byte(cfg.Auth.JWTSecret), log)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", cfg.Server.Addr).
			Str("driver", cfg.Database.Driver).
			Int("decrypt_workers", cfg.Messages.DecryptWorkers).
			Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "listen")
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	return nil
}
