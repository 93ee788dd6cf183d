package chain

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"aimint/internal/domain"
	"aimint/internal/networks"
)

// hardhat account #0
const testPrivateKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

type rpcLog struct {
	mu      sync.Mutex
	methods []string
}

func (l *rpcLog) add(m string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.methods = append(l.methods, m)
}

func (l *rpcLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.methods...)
}

type rpcRequest struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
}

func newRPCServer(t *testing.T, chainIDHex string, contractName string) (*httptest.Server, *rpcLog) {
	t.Helper()
	parsed, err := parseNFTABI()
	if err != nil {
		t.Fatalf("parse abi: %v", err)
	}
	nameOutput, err := parsed.Methods["name"].Outputs.Pack(contractName)
	if err != nil {
		t.Fatalf("pack name: %v", err)
	}
	calls := &rpcLog{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		calls.add(req.Method)
		var result any
		switch req.Method {
		case "eth_chainId":
			result = chainIDHex
		case "eth_call":
			result = hexutil.Encode(nameOutput)
		default:
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"jsonrpc": "2.0",
				"id":      req.ID,
				"error":   map[string]any{"code": -32601, "message": "method not found"},
			})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": result})
	}))
	t.Cleanup(srv.Close)
	return srv, calls
}

func TestConnectSupportedNetwork(t *testing.T) {
	srv, methods := newRPCServer(t, "0x7a69", "AI Generated NFT")
	nets, err := networks.Default()
	if err != nil {
		t.Fatalf("networks: %v", err)
	}
	value, _ := ParseEther("1")

	conn, err := Connect(context.Background(), ConnectOptions{
		RPCURL:     srv.URL,
		PrivateKey: testPrivateKey,
		Networks:   nets,
		MintValue:  value,
	})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()

	if err := conn.Ready(); err != nil {
		t.Fatalf("Ready: %v", err)
	}
	if !conn.Supported() {
		t.Fatalf("expected supported network")
	}
	st := conn.Status()
	if st.ChainID != "31337" || st.Network != "localhost" {
		t.Fatalf("status = %+v", st)
	}
	if st.Account != "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266" {
		t.Fatalf("account = %s", st.Account)
	}
	if st.ContractName != "AI Generated NFT" {
		t.Fatalf("contract name = %q", st.ContractName)
	}
	if st.MintValueWei != "1000000000000000000" {
		t.Fatalf("mint value = %s", st.MintValueWei)
	}
	if got := methods.list(); len(got) < 2 || got[0] != "eth_chainId" {
		t.Fatalf("rpc methods = %v", got)
	}
}

func TestConnectUnsupportedNetworkRefusesMint(t *testing.T) {
	srv, methods := newRPCServer(t, "0x1", "unused")
	nets, err := networks.Default()
	if err != nil {
		t.Fatalf("networks: %v", err)
	}

	conn, err := Connect(context.Background(), ConnectOptions{
		RPCURL:     srv.URL,
		PrivateKey: testPrivateKey,
		Networks:   nets,
	})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()

	if conn.Supported() {
		t.Fatalf("chain 1 should be unsupported")
	}
	if st := conn.Status(); st.Supported || st.ContractAddress != "" || st.ChainID != "1" || st.NetworksVersion != networks.SchemaVersion {
		t.Fatalf("status = %+v", st)
	}
	if err := conn.Ready(); !errors.Is(err, domain.ErrUnsupportedNetwork) {
		t.Fatalf("Ready err = %v, want ErrUnsupportedNetwork", err)
	}
	if _, err := conn.Mint(context.Background(), "https://ipfs.io/ipfs/abc/metadata.json"); !errors.Is(err, domain.ErrUnsupportedNetwork) {
		t.Fatalf("Mint err = %v, want ErrUnsupportedNetwork", err)
	}
	for _, m := range methods.list() {
		if m == "eth_call" || m == "eth_sendRawTransaction" {
			t.Fatalf("unexpected rpc %s on unsupported network", m)
		}
	}
}

func TestParsePrivateKey(t *testing.T) {
	if _, err := ParsePrivateKey(""); err == nil {
		t.Fatalf("expected error for empty key")
	}
	if _, err := ParsePrivateKey("0xnothex"); err == nil {
		t.Fatalf("expected error for malformed key")
	}
	if _, err := ParsePrivateKey(testPrivateKey[2:]); err != nil {
		t.Fatalf("unprefixed key: %v", err)
	}
}
