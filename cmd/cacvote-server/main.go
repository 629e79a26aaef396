package main

import (
	"context"
	"crypto/x509"
	"log"
	"os"

	"github.com/cacvote/server/internal/api"
	"github.com/cacvote/server/internal/config"
	"github.com/cacvote/server/internal/store"
)

func main() {
	log.Println("Starting cacvote replication server...")

	cfg := config.Load()

	ctx := context.Background()
	s, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("FATAL: failed to connect to database: %v", err)
	}
	defer s.Close()

	if err := s.InitSchema(ctx); err != nil {
		log.Fatalf("FATAL: schema init failed: %v", err)
	}

	trustRoots := loadTrustRoots(cfg.TrustRootPath)

	wsHub := api.NewHub()
	go wsHub.Run()

	r := api.SetupRouter(s, wsHub, trustRoots, cfg.AdminToken, cfg.ScannedLabelSkipVerify)

	log.Printf("cacvote replication server listening on :%s\n", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}

// loadTrustRoots reads a PEM file of certificates trusted as roots when
// verifying an incoming SignedObject's certificate chain.
func loadTrustRoots(path string) *x509.CertPool {
	pemBytes, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("FATAL: failed to read trust root file %q: %v", path, err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pemBytes) {
		log.Fatalf("FATAL: no valid certificates found in trust root file %q", path)
	}
	return pool
}
