package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mntdherm/no-schema-update-sub001/internal/config"
	"github.com/mntdherm/no-schema-update-sub001/internal/infrastructure/dynamo"
	"github.com/mntdherm/no-schema-update-sub001/internal/infrastructure/identity"
	"github.com/mntdherm/no-schema-update-sub001/internal/infrastructure/mailer"
	transporthttp "github.com/mntdherm/no-schema-update-sub001/internal/transport/http"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient := dynamo.NewClient(cfg)
	dynamo.Bootstrap(context.Background(), dynamoClient, cfg.DynamoTables)

	signer, err := identity.NewSigner(cfg)
	if err != nil {
		log.Fatalf("JWT signer not available: %v", err)
	}
	if cfg.ActionCodeSecret == "" {
		log.Fatal("ACTION_CODE_SECRET must be set")
	}

	credRepo := dynamo.NewCredentialRepo(dynamoClient, cfg.DynamoTables.Credentials)
	sessionRepo := dynamo.NewSessionRepo(dynamoClient, cfg.DynamoTables.Sessions)
	actionCodes := identity.NewActionCodes(cfg.ActionCodeSecret, cfg.ActionCodeTTL)
	provider := identity.NewProvider(credRepo, sessionRepo, signer, actionCodes, cfg.RefreshTokenDur)

	deps := &transporthttp.Deps{
		UserRepo:  dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users),
		TokenRepo: dynamo.NewTokenRepo(dynamoClient, cfg.DynamoTables.AuthTokens),
		AuditRepo: dynamo.NewAuditLogRepo(dynamoClient, cfg.DynamoTables.AuditLogs),
		Provider:  provider,
		Signer:    signer,
		Mailer:    mailer.NewMailer(cfg),
	}

	router := transporthttp.NewRouter(cfg, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (env=%s)", cfg.AppPort, cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}
