package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"beluz.app/internal/auth"
	"beluz.app/internal/config"
	"beluz.app/internal/httpapi"
	"beluz.app/internal/obs"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var (
		db    *sql.DB
		store auth.Store
	)
	if cfg.PGDSN != "" {
		db, err = sql.Open("pgx", cfg.PGDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
		store = auth.NewPGStore(db)
	} else {
		log.Print("BELUZ_PG_DSN not set, using in-memory store")
		store = auth.NewMemoryStore()
	}

	codec, err := auth.NewCodec(
		auth.TokenContext{Secret: []byte(cfg.AccessSecret), TTL: cfg.AccessTTL},
		auth.TokenContext{Secret: []byte(cfg.RefreshSecret), TTL: cfg.RefreshTTL},
		auth.WithIssuer(cfg.Issuer),
	)
	if err != nil {
		log.Fatalf("token codec: %v", err)
	}
	service, err := auth.NewService(store, codec, auth.NewHasher(cfg.BcryptRounds))
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	if err := service.Catalog().EnsureBuiltins(startCtx); err != nil {
		log.Fatalf("ensure builtin roles: %v", err)
	}
	if err := bootstrapAdmin(startCtx, service); err != nil {
		log.Fatalf("bootstrap admin: %v", err)
	}
	cancelStart()

	api := httpapi.New(service, httpapi.ReadyProbe{DB: db}, version)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting beluz-identity %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}

// bootstrapAdmin provisions a super admin account from BELUZ_BOOTSTRAP_EMAIL
// and BELUZ_BOOTSTRAP_PASSWORD so a fresh deployment has a way in. An already
// existing account is left untouched.
func bootstrapAdmin(ctx context.Context, service *auth.Service) error {
	email := os.Getenv("BELUZ_BOOTSTRAP_EMAIL")
	password := os.Getenv("BELUZ_BOOTSTRAP_PASSWORD")
	if email == "" || password == "" {
		return nil
	}
	session, err := service.Register(ctx, email, password)
	if err != nil {
		if errors.Is(err, auth.ErrConflict) {
			return nil
		}
		return err
	}
	role, err := service.Catalog().FindByName(ctx, auth.RoleSuperAdmin)
	if err != nil {
		return err
	}
	if err := service.Catalog().AssignRoles(ctx, session.User.ID, []string{role.ID}); err != nil {
		return err
	}
	log.Printf("bootstrapped super admin %s", email)
	return nil
}
