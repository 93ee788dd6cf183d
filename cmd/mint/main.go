package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"aimint/internal/bootstrap"
	"aimint/internal/infra"
	"aimint/internal/pipeline"
)

func main() {
	var (
		nameFlag        string
		descriptionFlag string
	)
	flag.StringVar(&nameFlag, "name", "", "Token name")
	flag.StringVar(&descriptionFlag, "description", "", "Token description, also used as the image prompt")
	flag.Parse()

	_ = godotenv.Load()

	form := pipeline.Form{Name: nameFlag, Description: descriptionFlag}
	if err := form.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := infra.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := infra.NewCLILogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	services, err := bootstrap.Build(ctx, cfg, &logger)
	if err != nil {
		logger.Error().Err(err).Msg("mint: failed to initialise services")
		os.Exit(1)
	}
	defer services.Close()

	if err := services.Chain.Ready(); err != nil {
		logger.Error().Err(err).Msg("mint: cannot mint on this network")
		services.Close()
		os.Exit(1)
	}

	final, err := services.Pipeline.Run(ctx, form, func(s pipeline.State) {
		if s.Busy && s.Status != "" {
			logger.Info().Str("stage", string(s.Stage)).Msg(s.Status)
		}
	})
	if err != nil {
		logger.Error().Err(err).Msg("mint: failed")
		services.Close()
		os.Exit(1)
	}

	fmt.Printf("metadata: %s\n", final.MetadataURL)
	fmt.Printf("tx:       %s\n", final.TxHash)
	if final.TokenID != "" {
		fmt.Printf("token id: %s\n", final.TokenID)
	}
}
