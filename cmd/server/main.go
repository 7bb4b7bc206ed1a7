package main

import (
	"context"
	"log"
	"time"

	"chatroom-auth-service/internal/auth"
	"chatroom-auth-service/internal/chatroom"
	"chatroom-auth-service/internal/server"
	"chatroom-auth-service/internal/session"
	"chatroom-auth-service/internal/storage"

	"github.com/caarlos0/env/v6"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type appConfig struct {
	Env        string `env:"APP_ENV" envDefault:"production"`
	BcryptCost int    `env:"BCRYPT_COST" envDefault:"10"`
}

func newLogger(appEnv string) (*zap.Logger, error) {
	if appEnv == "dev" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func main() {
	app := appConfig{}
	if err := env.Parse(&app); err != nil {
		log.Fatalf("Cannot parse env config: %v", err)
	}

	logger, err := newLogger(app.Env)
	if err != nil {
		log.Fatalf("zap logger: %v", err)
	}
	defer logger.Sync()

	sugar := logger.Sugar()
	sugar.Infow("Application is starting", "env", app.Env, "time", time.Now())

	srvCfg := server.EnvConfig{}
	if err := env.Parse(&srvCfg); err != nil {
		sugar.Fatalf("Cannot parse server env config: %v", err)
	}

	dbCfg := storage.Config{}
	if err := env.Parse(&dbCfg); err != nil {
		sugar.Fatalf("Cannot parse storage env config: %v", err)
	}

	if app.BcryptCost < bcrypt.MinCost || app.BcryptCost > bcrypt.MaxCost {
		sugar.Fatalf("BCRYPT_COST must be within [%d, %d], got %d", bcrypt.MinCost, bcrypt.MaxCost, app.BcryptCost)
	}

	ctx := context.Background()

	store, err := storage.New(ctx, sugar, dbCfg,
		storage.ConnectionTimeout(30*time.Second),
		storage.MaxConnLifetime(time.Hour),
	)
	if err != nil {
		sugar.Fatalf("Cannot create Store instance: %v", err)
	}

	if err := store.Migrate(ctx); err != nil {
		sugar.Fatalf("Cannot apply schema: %v", err)
	}

	sessions := session.NewManager(sugar.Named("session"), store)

	facade, err := auth.NewFacade(sugar.Named("auth"), store, sessions, auth.WithHashCost(app.BcryptCost))
	if err != nil {
		sugar.Fatalf("Cannot create auth facade: %v", err)
	}

	rooms := chatroom.NewController(sugar.Named("chatroom"), store, sessions, chatroom.WithHashCost(app.BcryptCost))

	serverOpts := []server.Option{
		server.WithEnvConfig(srvCfg),
		server.ReadTimeout(5 * time.Second),
		server.RegisterAfterShutdown(func() {
			sugar.Info("Closing store")
			store.Close()
			sugar.Info("Store is closed")
		}),
	}

	srv, err := server.NewServer(sugar, facade, rooms, store, serverOpts...)
	if err != nil {
		sugar.Fatalf("Cannot create Server instance: %v", err)
	}

	if err := srv.Start(); err != nil {
		sugar.Fatalf("Cannot start http srv: %v", err)
	}
}
