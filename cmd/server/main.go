package main

import (
	"context"
	"log"
	"net/http"
	"os"

	webAdapter "fba-warehouse/internal/adapters/web"
	"fba-warehouse/internal/app"
	"fba-warehouse/internal/core"
	"fba-warehouse/internal/db"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	ctx := context.Background()
	pool, err := db.NewPool(ctx)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer pool.Close()

	ledger := core.NewStockLedger(pool)
	shipments := core.NewShipmentService(pool, ledger)

	svc := app.NewAppService(pool, ledger, shipments)

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	handler := webAdapter.NewHandler(svc, allowedOrigins)

	log.Printf("server starting on :%s", port)
	if err := http.ListenAndServe(":"+port, handler); err != nil {
		log.Fatalf("server: %v", err)
	}
}
