package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv             string
	Port               string
	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
	RateLimitPerMin    int
	CORSAllowedOrigins []string
	SessionTTL         time.Duration

	HuggingFaceAPIKey   string
	HuggingFaceModelURL string
	InferenceTimeout    time.Duration

	NFTStorageAPIKey  string
	NFTStorageBaseURL string
	IPFSGateway       string

	EthRPCURL        string
	MinterPrivateKey string
	NetworksFile     string
	MintPriceETH     string
	MintTimeout      time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		Port:               getEnv("PORT", "8080"),
		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MINUTE", 6),
		CORSAllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		SessionTTL:         time.Minute * time.Duration(getEnvInt("SESSION_TTL_MINUTES", 60)),

		HuggingFaceAPIKey:   strings.TrimSpace(os.Getenv("HUGGING_FACE_API_KEY")),
		HuggingFaceModelURL: getEnv("HUGGING_FACE_MODEL_URL", "https://api-inference.huggingface.co/models/stabilityai/stable-diffusion-2"),
		InferenceTimeout:    time.Second * time.Duration(getEnvInt("INFERENCE_TIMEOUT_SECONDS", 120)),

		NFTStorageAPIKey:  strings.TrimSpace(os.Getenv("NFT_STORAGE_API_KEY")),
		NFTStorageBaseURL: getEnv("NFT_STORAGE_BASE_URL", "https://api.nft.storage"),
		IPFSGateway:       getEnv("IPFS_GATEWAY", "ipfs.io"),

		EthRPCURL:        getEnv("ETH_RPC_URL", "http://127.0.0.1:8545"),
		MinterPrivateKey: strings.TrimSpace(os.Getenv("MINTER_PRIVATE_KEY")),
		NetworksFile:     strings.TrimSpace(os.Getenv("NETWORKS_FILE")),
		MintPriceETH:     getEnv("MINT_PRICE_ETH", "1"),
		MintTimeout:      time.Second * time.Duration(getEnvInt("MINT_TIMEOUT_SECONDS", 300)),
	}

	if cfg.HuggingFaceAPIKey == "" {
		return nil, fmt.Errorf("HUGGING_FACE_API_KEY is required")
	}
	if cfg.NFTStorageAPIKey == "" {
		return nil, fmt.Errorf("NFT_STORAGE_API_KEY is required")
	}
	if cfg.MinterPrivateKey == "" {
		return nil, fmt.Errorf("MINTER_PRIVATE_KEY is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && i > 0 {
			return i
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
