package chain

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/crypto/sha3"

	"github.com/himanishpuri/LiveProof/pkg/models"
)

// currentChallenge() returns (bytes32 challengeHash, uint256 baseBlock, uint256 expiresBlock).
const currentChallengeSig = "currentChallenge()"

// Factory lookups. popToToken returns 0 for unknown addresses, which is also
// a valid token id, so registration is confirmed by the round trip.
const (
	popToTokenSig = "popToToken(address)"
	tokenToPopSig = "tokenToPop(uint256)"
)

const wordSize = 32

// Selector returns the 4-byte ABI function selector for a signature.
func Selector(signature string) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(signature))
	return h.Sum(nil)[:4]
}

// Client reads the PoP contract through an Ethereum JSON-RPC endpoint.
type Client struct {
	endpoint string
	http     *http.Client
	nextID   atomic.Uint64
}

func NewClient(endpoint string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{endpoint: endpoint, http: httpClient}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (c *Client) call(ctx context.Context, method string, params []any, out any) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrChainUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", models.ErrChainUnavailable, method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: %s: %v", models.ErrChainUnavailable, method, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s: HTTP %d", models.ErrChainUnavailable, method, resp.StatusCode)
	}

	var rr rpcResponse
	if err := json.Unmarshal(raw, &rr); err != nil {
		return fmt.Errorf("%w: %s: %v", models.ErrChainUnavailable, method, err)
	}
	if rr.Error != nil {
		return fmt.Errorf("%w: %s: rpc error %d: %s", models.ErrChainUnavailable, method, rr.Error.Code, rr.Error.Message)
	}
	if err := json.Unmarshal(rr.Result, out); err != nil {
		return fmt.Errorf("%w: %s: %v", models.ErrChainUnavailable, method, err)
	}
	return nil
}

// BlockNumber returns the latest block height.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	var hexNum string
	if err := c.call(ctx, "eth_blockNumber", []any{}, &hexNum); err != nil {
		return 0, err
	}
	n, err := parseQuantity(hexNum)
	if err != nil {
		return 0, fmt.Errorf("%w: eth_blockNumber: %v", models.ErrChainUnavailable, err)
	}
	return n, nil
}

// ethCall runs a read-only call against the latest block and returns the
// raw return data.
func (c *Client) ethCall(ctx context.Context, to string, data []byte) ([]byte, error) {
	callObj := map[string]string{
		"to":   to,
		"data": "0x" + hex.EncodeToString(data),
	}
	var hexData string
	if err := c.call(ctx, "eth_call", []any{callObj, "latest"}, &hexData); err != nil {
		return nil, err
	}
	out, err := hex.DecodeString(strings.TrimPrefix(strings.TrimPrefix(hexData, "0x"), "0X"))
	if err != nil {
		return nil, fmt.Errorf("%w: eth_call: %v", models.ErrChainUnavailable, err)
	}
	return out, nil
}

// CurrentChallenge calls currentChallenge() on the contract at address.
func (c *Client) CurrentChallenge(ctx context.Context, address string) (models.ChainChallenge, error) {
	if !isAddress(address) {
		return models.ChainChallenge{}, fmt.Errorf("%w: invalid contract address %q", models.ErrChainUnavailable, address)
	}

	data, err := c.ethCall(ctx, address, Selector(currentChallengeSig))
	if err != nil {
		return models.ChainChallenge{}, err
	}

	ch, err := decodeChallenge(data)
	if err != nil {
		return models.ChainChallenge{}, fmt.Errorf("%w: currentChallenge: %v", models.ErrChainUnavailable, err)
	}
	return ch, nil
}

// IsRegisteredPop reports whether the factory at factory minted the PoP
// contract at pop: tokenToPop(popToToken(pop)) must give pop back.
func (c *Client) IsRegisteredPop(ctx context.Context, factory, pop string) (bool, error) {
	if !isAddress(factory) {
		return false, fmt.Errorf("%w: invalid factory address %q", models.ErrChainUnavailable, factory)
	}
	if !isAddress(pop) {
		return false, nil
	}

	popWord, _ := addressWord(pop)
	ret, err := c.ethCall(ctx, factory, append(Selector(popToTokenSig), popWord...))
	if err != nil {
		return false, err
	}
	if len(ret) < wordSize {
		return false, fmt.Errorf("%w: popToToken: short return data: %d bytes", models.ErrChainUnavailable, len(ret))
	}

	ret, err = c.ethCall(ctx, factory, append(Selector(tokenToPopSig), ret[:wordSize]...))
	if err != nil {
		return false, err
	}
	if len(ret) < wordSize {
		return false, fmt.Errorf("%w: tokenToPop: short return data: %d bytes", models.ErrChainUnavailable, len(ret))
	}
	return bytes.Equal(ret[wordSize-20:wordSize], popWord[wordSize-20:]), nil
}

// addressWord left-pads a 20-byte address into an ABI word.
func addressWord(address string) ([]byte, error) {
	raw, err := hex.DecodeString(address[2:])
	if err != nil {
		return nil, err
	}
	word := make([]byte, wordSize)
	copy(word[wordSize-len(raw):], raw)
	return word, nil
}

// decodeChallenge unpacks three ABI words: bytes32, uint256, uint256.
func decodeChallenge(data []byte) (models.ChainChallenge, error) {
	if len(data) < 3*wordSize {
		return models.ChainChallenge{}, fmt.Errorf("short return data: %d bytes", len(data))
	}

	base, err := wordToUint64(data[wordSize : 2*wordSize])
	if err != nil {
		return models.ChainChallenge{}, fmt.Errorf("baseBlock: %w", err)
	}
	expires, err := wordToUint64(data[2*wordSize : 3*wordSize])
	if err != nil {
		return models.ChainChallenge{}, fmt.Errorf("expiresBlock: %w", err)
	}

	return models.ChainChallenge{
		Hash:         "0x" + hex.EncodeToString(data[:wordSize]),
		BaseBlock:    base,
		ExpiresBlock: expires,
	}, nil
}

func wordToUint64(word []byte) (uint64, error) {
	n := new(big.Int).SetBytes(word)
	if !n.IsUint64() {
		return 0, fmt.Errorf("value %s overflows uint64", n)
	}
	return n.Uint64(), nil
}

func parseQuantity(s string) (uint64, error) {
	digits := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if digits == "" || len(digits) == len(s) {
		return 0, fmt.Errorf("invalid quantity %q", s)
	}
	n, ok := new(big.Int).SetString(digits, 16)
	if !ok || !n.IsUint64() {
		return 0, fmt.Errorf("invalid quantity %q", s)
	}
	return n.Uint64(), nil
}

func isAddress(s string) bool {
	if len(s) != 42 || !strings.HasPrefix(strings.ToLower(s), "0x") {
		return false
	}
	_, err := hex.DecodeString(s[2:])
	return err == nil
}

// IsZeroHash reports whether a contract returned the empty bytes32, meaning no
// challenge has been generated yet.
func IsZeroHash(hash string) bool {
	return strings.Trim(strings.TrimPrefix(strings.ToLower(hash), "0x"), "0") == ""
}
