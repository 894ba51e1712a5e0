package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	_ "embed"
	_ "github.com/mattn/go-sqlite3"

	"github.com/tigerroll/spaceweather/internal/app"
	"github.com/tigerroll/spaceweather/internal/logger"

	// Database dialects register themselves with the gorm store.
	_ "github.com/tigerroll/spaceweather/internal/store/gorm/mysql"
	_ "github.com/tigerroll/spaceweather/internal/store/gorm/postgres"
	_ "github.com/tigerroll/spaceweather/internal/store/gorm/sqlite"
)

// embeddedConfig embeds the application's YAML configuration file.
// ${VAR} references in it are expanded from the environment at startup.
//
//go:embed resources/application.yaml
var embeddedConfig []byte

// main starts the ingestion service. SIGINT and SIGTERM cancel the running
// cycle; Fx then stops the scheduler and closes the store.
func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Warnf("Received signal '%v'. Cancelling the running cycle...", sig)
		cancel()
	}()

	// Path to the .env file; ".env" when ENV_FILE_PATH is not set.
	envFilePath := os.Getenv("ENV_FILE_PATH")
	if envFilePath == "" {
		envFilePath = ".env"
	}

	app.RunApplication(ctx, envFilePath, embeddedConfig)
	os.Exit(0)
}
