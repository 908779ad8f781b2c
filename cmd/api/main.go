package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"mitraflow/auth"
	"mitraflow/chat"
	"mitraflow/db"
	"mitraflow/ledger"
	"mitraflow/onboarding"
	"mitraflow/order"
	"mitraflow/topup"
)

func main() {
	ctx := context.Background()

	connString := os.Getenv("DATABASE_URL")
	pool, err := db.NewPool(ctx, connString)
	if err != nil {
		log.Fatalf("bootstrap database pool: %v", err)
	}
	defer pool.Close()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	addr := os.Getenv("ADDR")
	if addr == "" {
		addr = ":8080"
	}

	ledgerRepo := ledger.NewRepository(pool)
	ledgerService := ledger.NewService(pool, ledgerRepo)

	server := &Server{
		authService:       auth.NewService(auth.NewRepository(pool), jwtSecret),
		orderService:      order.NewService(pool, order.NewRepository(pool), ledgerService, ledgerService),
		topupService:      topup.NewService(pool, topup.NewRepository(pool), ledgerRepo),
		onboardingService: onboarding.NewService(pool, onboarding.NewRepository(pool), ledgerRepo),
		ledgerService:     ledgerService,
		chatService:       chat.NewService(chat.NewRepository(pool)),
	}

	log.Printf("api listening on %s", addr)
	if err := http.ListenAndServe(addr, server.routes()); err != nil {
		log.Fatalf("http server: %v", err)
	}
}
