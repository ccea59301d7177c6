package chain

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/himanishpuri/LiveProof/pkg/models"
)

const testContract = "0x5FbDB2315678afecb367f032d93F642f64180aa3"

func word(n uint64) string {
	return fmt.Sprintf("%064x", n)
}

func TestSelector(t *testing.T) {
	tests := []struct {
		sig  string
		want string
	}{
		{"transfer(address,uint256)", "a9059cbb"},
		{"balanceOf(address)", "70a08231"},
	}
	for _, tt := range tests {
		if got := hex.EncodeToString(Selector(tt.sig)); got != tt.want {
			t.Errorf("Selector(%q) = %s, expected %s", tt.sig, got, tt.want)
		}
	}
}

// fakeNode answers eth_blockNumber and eth_call like a JSON-RPC node.
func fakeNode(t *testing.T, hash string, base, expires, block uint64) *httptest.Server {
	t.Helper()
	wantData := "0x" + hex.EncodeToString(Selector("currentChallenge()"))

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     uint64            `json:"id"`
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
			return
		}

		var result string
		switch req.Method {
		case "eth_blockNumber":
			result = fmt.Sprintf("0x%x", block)
		case "eth_call":
			var call map[string]string
			if err := json.Unmarshal(req.Params[0], &call); err != nil {
				t.Errorf("bad call object: %v", err)
			}
			if call["data"] != wantData {
				t.Errorf("call data = %s, expected %s", call["data"], wantData)
			}
			if !strings.EqualFold(call["to"], testContract) {
				t.Errorf("call to = %s", call["to"])
			}
			result = "0x" + strings.TrimPrefix(hash, "0x") + word(base) + word(expires)
		default:
			fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%d,"error":{"code":-32601,"message":"method not found"}}`, req.ID)
			return
		}
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%d,"result":%q}`, req.ID, result)
	}))
}

func TestClientCurrentChallenge(t *testing.T) {
	hash := "0x3f9a1c7b2e4d5f60718293a4b5c6d7e8f90a1b2c3d4e5f60718293a4b5cd6f82"
	srv := fakeNode(t, hash, 100, 150, 120)
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client())
	ctx := context.Background()

	ch, err := c.CurrentChallenge(ctx, testContract)
	if err != nil {
		t.Fatalf("CurrentChallenge failed: %v", err)
	}
	if ch.Hash != hash || ch.BaseBlock != 100 || ch.ExpiresBlock != 150 {
		t.Errorf("unexpected challenge: %+v", ch)
	}

	block, err := c.BlockNumber(ctx)
	if err != nil {
		t.Fatalf("BlockNumber failed: %v", err)
	}
	if block != 120 {
		t.Errorf("block = %d, expected 120", block)
	}
	if !ch.Contains(block) {
		t.Error("block should fall inside the window")
	}
}

func TestClientErrors(t *testing.T) {
	rpcErr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"error":{"code":3,"message":"execution reverted"}}`)
	}))
	defer rpcErr.Close()

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer down.Close()

	tests := []struct {
		name    string
		url     string
		address string
	}{
		{"rpc error", rpcErr.URL, testContract},
		{"http status", down.URL, testContract},
		{"bad address", rpcErr.URL, "0x1234"},
		{"unreachable", "http://127.0.0.1:1", testContract},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.url, nil).CurrentChallenge(context.Background(), tt.address)
			if !errors.Is(err, models.ErrChainUnavailable) {
				t.Errorf("expected ErrChainUnavailable, got %v", err)
			}
		})
	}
}

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		t.Fatalf("bad hex %q: %v", s, err)
	}
	return b
}

func TestDecodeChallenge(t *testing.T) {
	hash := strings.Repeat("ab", 32)

	if _, err := decodeChallenge(mustHex(t, hash+word(1))); err == nil {
		t.Error("expected error for short data")
	}
	overflow := hash + strings.Repeat("f", 64) + word(1)
	if _, err := decodeChallenge(mustHex(t, overflow)); err == nil {
		t.Error("expected error for uint64 overflow")
	}

	ch, err := decodeChallenge(mustHex(t, hash+word(7)+word(9)))
	if err != nil {
		t.Fatalf("decodeChallenge failed: %v", err)
	}
	if ch.Hash != "0x"+hash || ch.BaseBlock != 7 || ch.ExpiresBlock != 9 {
		t.Errorf("unexpected challenge: %+v", ch)
	}
}

func TestClientNonHexReturn(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"result":"0xzz"}`)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, srv.Client()).CurrentChallenge(context.Background(), testContract)
	if !errors.Is(err, models.ErrChainUnavailable) {
		t.Errorf("expected ErrChainUnavailable, got %v", err)
	}
}

const testFactory = "0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0"

// fakeFactory serves popToToken/tokenToPop for a fixed registry of token id -> pop.
func fakeFactory(t *testing.T, pops map[uint64]string) *httptest.Server {
	t.Helper()
	popToToken := hex.EncodeToString(Selector("popToToken(address)"))
	tokenToPop := hex.EncodeToString(Selector("tokenToPop(uint256)"))

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     uint64            `json:"id"`
			Params []json.RawMessage `json:"params"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		var call map[string]string
		json.Unmarshal(req.Params[0], &call)
		if !strings.EqualFold(call["to"], testFactory) {
			t.Errorf("call to = %s, expected the factory", call["to"])
		}

		data := strings.TrimPrefix(call["data"], "0x")
		sel, arg := data[:8], data[8:]
		var result string
		switch sel {
		case popToToken:
			result = word(0)
			for id, pop := range pops {
				if strings.EqualFold(arg[24:], strings.TrimPrefix(pop, "0x")) {
					result = word(id)
				}
			}
		case tokenToPop:
			var id uint64
			fmt.Sscanf(arg, "%x", &id)
			result = strings.Repeat("0", 64)
			if pop, ok := pops[id]; ok {
				result = strings.Repeat("0", 24) + strings.ToLower(strings.TrimPrefix(pop, "0x"))
			}
		default:
			t.Errorf("unexpected selector %s", sel)
		}
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%d,"result":"0x%s"}`, req.ID, result)
	}))
}

func TestClientIsRegisteredPop(t *testing.T) {
	other := "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
	srv := fakeFactory(t, map[uint64]string{0: other, 7: testContract})
	defer srv.Close()
	c := NewClient(srv.URL, srv.Client())

	tests := []struct {
		name string
		pop  string
		want bool
	}{
		{"registered", testContract, true},
		{"registered lowercase", strings.ToLower(testContract), true},
		{"token zero", other, true},
		{"unknown maps to token zero", "0x000000000000000000000000000000000000dEaD", false},
		{"malformed", "0x1234", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.IsRegisteredPop(context.Background(), testFactory, tt.pop)
			if err != nil {
				t.Fatalf("IsRegisteredPop failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("IsRegisteredPop(%s) = %t, expected %t", tt.pop, got, tt.want)
			}
		})
	}

	if _, err := c.IsRegisteredPop(context.Background(), "0xbad", testContract); !errors.Is(err, models.ErrChainUnavailable) {
		t.Errorf("expected ErrChainUnavailable for bad factory, got %v", err)
	}
}

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		in      string
		want    uint64
		wantErr bool
	}{
		{"0x0", 0, false},
		{"0x1b4", 436, false},
		{"1b4", 0, true},
		{"0x", 0, true},
		{"0xzz", 0, true},
	}
	for _, tt := range tests {
		got, err := parseQuantity(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parseQuantity(%q) = %d, %v", tt.in, got, err)
		}
	}
}

func TestIsZeroHash(t *testing.T) {
	if !IsZeroHash("0x" + strings.Repeat("0", 64)) {
		t.Error("zero hash not detected")
	}
	if IsZeroHash("0x" + strings.Repeat("0", 63) + "1") {
		t.Error("non-zero hash flagged")
	}
}

func TestStatic(t *testing.T) {
	s := NewStatic(models.ChainChallenge{Hash: "0xaa", BaseBlock: 10, ExpiresBlock: 20}, 15)
	ctx := context.Background()

	ch, _ := s.CurrentChallenge(ctx, testContract)
	block, _ := s.BlockNumber(ctx)
	if !ch.Contains(block) {
		t.Error("expected block inside window")
	}

	s.Advance(10)
	block, _ = s.BlockNumber(ctx)
	if ch.Contains(block) {
		t.Errorf("block %d should be past the window", block)
	}

	if ok, _ := s.IsRegisteredPop(ctx, testFactory, testContract); ok {
		t.Error("unregistered pop reported as registered")
	}
	s.RegisterPop(strings.ToLower(testContract))
	if ok, _ := s.IsRegisteredPop(ctx, testFactory, testContract); !ok {
		t.Error("registered pop not found")
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := s.BlockNumber(cancelled); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
