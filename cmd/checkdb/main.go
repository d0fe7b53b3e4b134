package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"autolog.dev/autolog/config"
	"autolog.dev/autolog/core"
	"autolog.dev/autolog/pdf"
)

// Verifies the deployment's database: connectivity, the TTL index on the
// primary collection and the presence of the demo record.
func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg, err := config.FromEnv(ctx, nil)
	if err != nil {
		log.Fatal(err)
	}

	dm, err := core.New(ctx, cfg.MongoURI, cfg.MongoDatabase, 2)
	if err != nil {
		log.Fatal(err)
	}
	defer dm.Close(context.Background())
	fmt.Printf("[INFO] Connected to %s\n", cfg.MongoDatabase)

	failed := false
	if err := dm.Collection(cfg.MongoCollection).EnsureTTLIndex(ctx, cfg.ExpireTime); err != nil {
		fmt.Printf("[ERROR] %s: %v\n", cfg.MongoCollection, err)
		failed = true
	} else {
		fmt.Printf("[INFO] %s: index %s expires after %s\n", cfg.MongoCollection, core.TTLIndexName, cfg.ExpireTime)
	}

	exists, err := dm.Collection(cfg.MongoDemoCollection).Exists(ctx, pdf.DemoAlias)
	switch {
	case err != nil:
		fmt.Printf("[ERROR] %s: %v\n", cfg.MongoDemoCollection, err)
		failed = true
	case !exists:
		fmt.Printf("[WARN] %s: demo record %s is missing\n", cfg.MongoDemoCollection, pdf.DemoAlias)
	default:
		fmt.Printf("[INFO] %s: demo record present\n", cfg.MongoDemoCollection)
	}

	if failed {
		os.Exit(1)
	}
}
