package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/BearBump/VaultTrack/config"
)

func main() {
	cfg, err := config.Load(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err = RunVaultWorker(ctx, cfg, defaultWorkerFactories(), workerHTTPOpts{swaggerPath: swaggerPathFromEnv()})
	if err != nil && !errors.Is(err, context.Canceled) {
		panic(err)
	}
}
