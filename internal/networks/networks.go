// Package networks holds the static mapping from chain id to the deployed NFT
// contract. It is loaded once at startup and never mutated afterwards.
package networks

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"aimint/internal/domain"
)

// SchemaVersion is the only document version this build understands.
const SchemaVersion = 1

//go:embed networks.json
var defaultDocument []byte

// Network is one supported chain.
type Network struct {
	ChainID     uint64
	Name        string
	NFTContract common.Address
}

// Config is the validated, immutable network table.
type Config struct {
	version  int
	networks map[uint64]Network
}

type document struct {
	Version  int                     `json:"version"`
	Networks map[string]networkEntry `json:"networks"`
}

type networkEntry struct {
	Name string `json:"name"`
	NFT  struct {
		Address string `json:"address"`
	} `json:"nft"`
}

// Default returns the table compiled into the binary.
func Default() (*Config, error) {
	return Parse(defaultDocument)
}

// Load reads the table from path, or the embedded default when path is empty.
func Load(path string) (*Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Default()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("networks: read %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes and validates a network document.
func Parse(raw []byte) (*Config, error) {
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("networks: decode: %w", err)
	}
	if doc.Version != SchemaVersion {
		return nil, fmt.Errorf("networks: unsupported version %d", doc.Version)
	}
	if len(doc.Networks) == 0 {
		return nil, fmt.Errorf("networks: no networks configured")
	}
	cfg := &Config{version: doc.Version, networks: make(map[uint64]Network, len(doc.Networks))}
	for key, entry := range doc.Networks {
		chainID, err := strconv.ParseUint(strings.TrimSpace(key), 10, 64)
		if err != nil || chainID == 0 {
			return nil, fmt.Errorf("networks: invalid chain id %q", key)
		}
		addr := strings.TrimSpace(entry.NFT.Address)
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("networks: chain %d: invalid nft address %q", chainID, addr)
		}
		contract := common.HexToAddress(addr)
		if contract == (common.Address{}) {
			return nil, fmt.Errorf("networks: chain %d: nft address is zero", chainID)
		}
		name := strings.TrimSpace(entry.Name)
		if name == "" {
			name = "chain-" + strconv.FormatUint(chainID, 10)
		}
		cfg.networks[chainID] = Network{ChainID: chainID, Name: name, NFTContract: contract}
	}
	return cfg, nil
}

// Version reports the schema version the table was loaded from.
func (c *Config) Version() int {
	return c.version
}

// Lookup returns the network for chainID or domain.ErrUnsupportedNetwork.
func (c *Config) Lookup(chainID uint64) (Network, error) {
	if c != nil {
		if n, ok := c.networks[chainID]; ok {
			return n, nil
		}
	}
	return Network{}, fmt.Errorf("%w: chain id %d", domain.ErrUnsupportedNetwork, chainID)
}

// ChainIDs lists configured chain ids in ascending order.
func (c *Config) ChainIDs() []uint64 {
	if c == nil {
		return nil
	}
	ids := make([]uint64, 0, len(c.networks))
	for id := range c.networks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
