// Package bootstrap wires configuration into the minting pipeline shared by
// the API server and the CLI.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"aimint/internal/chain"
	"aimint/internal/infra"
	"aimint/internal/networks"
	"aimint/internal/pipeline"
	"aimint/internal/providers/inference"
	"aimint/internal/storage"
)

// Services are the long-lived collaborators built from configuration.
// Close releases them.
type Services struct {
	Chain    *chain.Connection
	Pipeline *pipeline.Pipeline
}

// Build loads the network table, connects to the chain and assembles the
// inference, storage and mint stages. A nil logger discards output.
func Build(ctx context.Context, cfg *infra.Config, logger *infra.Logger) (*Services, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	nets, err := networks.Load(cfg.NetworksFile)
	if err != nil {
		return nil, err
	}
	value, err := chain.ParseEther(cfg.MintPriceETH)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: MINT_PRICE_ETH: %w", err)
	}

	conn, err := chain.Connect(ctx, chain.ConnectOptions{
		RPCURL:      cfg.EthRPCURL,
		PrivateKey:  cfg.MinterPrivateKey,
		Networks:    nets,
		MintValue:   value,
		MintTimeout: cfg.MintTimeout,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}
	if !conn.Supported() {
		logger.Warn().
			Str("chain_id", conn.Status().ChainID).
			Uints64("supported", nets.ChainIDs()).
			Msg("bootstrap: connected network has no contract, minting disabled")
	}

	generator := inference.NewClient(inference.Options{
		APIKey:         cfg.HuggingFaceAPIKey,
		ModelURL:       cfg.HuggingFaceModelURL,
		RequestTimeout: cfg.InferenceTimeout,
		Logger:         logger,
	})
	logger.Info().Str("model", generator.ModelURL()).Msg("bootstrap: inference model configured")

	uploader := storage.NewClient(storage.Options{
		Token:   cfg.NFTStorageAPIKey,
		BaseURL: cfg.NFTStorageBaseURL,
		Gateway: cfg.IPFSGateway,
		Logger:  logger,
	})

	return &Services{
		Chain:    conn,
		Pipeline: pipeline.New(generator, uploader, conn, logger),
	}, nil
}

// Close releases the chain connection.
func (s *Services) Close() {
	if s != nil {
		s.Chain.Close()
	}
}
