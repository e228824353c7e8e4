package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/abricot-app/abricot/db"
	"github.com/abricot-app/abricot/internal/assignment"
	"github.com/abricot-app/abricot/internal/auth"
	"github.com/abricot-app/abricot/internal/handlers"
	"github.com/abricot-app/abricot/internal/logger"
	"github.com/abricot-app/abricot/internal/middleware"
	"github.com/abricot-app/abricot/internal/permissions"
	"github.com/abricot-app/abricot/internal/realtime"
	"github.com/abricot-app/abricot/internal/router"
	"github.com/abricot-app/abricot/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var serveMigrate bool

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE:  runServe,
	}

	cmd.Flags().BoolVar(&serveMigrate, "migrate", true, "apply schema migrations before serving")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, conn, err := bootstrap()
	if err != nil {
		return err
	}
	log := logger.Component("server")

	if serveMigrate {
		if err := db.MigrateDatabase(conn); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
	}

	policy, err := assignment.ParseRemovalPolicy(cfg.Assignment.RemovalPolicy)
	if err != nil {
		return err
	}

	locker, lockCloser, err := newLocker(cfg.Assignment)
	if err != nil {
		return err
	}
	generator, aiCloser, err := newGenerator(ctx, cfg.AI)
	if err != nil {
		return err
	}
	for _, c := range []io.Closer{lockCloser, aiCloser} {
		if c != nil {
			defer c.Close()
		}
	}

	issuer, err := auth.NewIssuer(cfg.JWT.Secret, cfg.JWT.TTL)
	if err != nil {
		return err
	}

	perms := permissions.NewChecker(conn)
	reconciler := assignment.NewReconciler(conn, locker, policy)
	users := services.NewUserService(conn, issuer)
	hub := realtime.NewHub(cfg.App.AllowedOrigins)

	h := handlers.New(handlers.Deps{
		Users:     users,
		Projects:  services.NewProjectService(conn, perms),
		Tasks:     services.NewTaskService(conn, perms, reconciler),
		Comments:  services.NewCommentService(conn, perms),
		Generator: services.NewTaskGenerator(conn, perms, generator, services.NewSystemIdentity(conn), reconciler),
		Perms:     perms,
		Hub:       hub,
		Cookie:    cfg.Cookie,
		TokenTTL:  cfg.JWT.TTL,
	})

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := router.NewRouter(h, middleware.AuthMiddleware(issuer, users, cfg.Cookie.Name), cfg.App.AllowedOrigins)

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Server listening", "port", cfg.App.Port, "removal_policy", policy, "lock", cfg.Assignment.Lock)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
