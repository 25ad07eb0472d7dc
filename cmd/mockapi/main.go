package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alexedwards/scs/v2"
	"github.com/ardanlabs/conf/v3"
	"github.com/irsalhamdi/lms-client/config"
	"github.com/irsalhamdi/lms-client/core/claims"
	"github.com/irsalhamdi/lms-client/mockapi"
	"github.com/irsalhamdi/lms-client/rate"
	"github.com/sirupsen/logrus"
)

var build = "develop"

func main() {
	cfg := config.Server{Version: conf.Version{Build: build, Desc: "in-memory LMS backend"}}

	help, err := config.Parse(config.ServerPrefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := config.Logger(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := Run(logger, cfg); err != nil {
		logger.Error(err)
		os.Exit(1)
	}
}

func Run(logger *logrus.Logger, cfg config.Server) error {
	logger.Infof("starting server")
	defer logger.Info("shutdown complete")

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("rendering config: %w", err)
	}
	logger.Debugf("config:\n%s", out)

	lw := logger.Writer()
	defer lw.Close()
	errLog := log.New(lw, "", 0)

	sessionManager := scs.New()
	sessionManager.Lifetime = cfg.Auth.SessionLifetime

	limiter := rate.NewLimiter(cfg.RateLimit.Burst, cfg.RateLimit.Expiry, cfg.RateLimit.RPS)
	defer limiter.Stop()

	store := mockapi.NewStore()
	seed := cfg.Seed
	err = mockapi.Seed(store, []mockapi.SeedUser{
		{Name: "Instructor", Email: seed.InstructorEmail, Password: seed.InstructorPassword, Role: claims.RoleInstructor},
		{Name: "Student", Email: seed.StudentEmail, Password: seed.StudentPassword, Role: claims.RoleStudent},
		{Name: "Admin", Email: seed.AdminEmail, Password: seed.AdminPassword, Role: claims.RoleAdmin},
	})
	if err != nil {
		return fmt.Errorf("seeding store: %w", err)
	}

	mux := mockapi.APIMux(mockapi.APIConfig{
		CorsOrigin: cfg.Cors.Origin,
		Log:        logger,
		Store:      store,
		Session:    sessionManager,
		Secret:     []byte(cfg.Auth.Secret),
		TokenTTL:   cfg.Auth.TokenTTL,
		Limiter:    limiter,
		MediaURL:   cfg.Media.URL,
		MaxUpload:  cfg.Media.MaxUpload,
	})

	var handler http.Handler = mux
	if prefix := strings.TrimRight(cfg.Web.Prefix, "/"); prefix != "" {
		handler = http.StripPrefix(prefix, mux)
	}

	api := http.Server{
		Handler:      handler,
		Addr:         cfg.Web.Address,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     errLog,
	}

	serverErrors := make(chan error, 1)

	go func() {
		logger.Infof("starting api router at %s%s", api.Addr, cfg.Web.Prefix)
		serverErrors <- api.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Infof("shutting down: signal %s", sig)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := api.Shutdown(ctx); err != nil {
			api.Close()
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
	}
	return nil
}
