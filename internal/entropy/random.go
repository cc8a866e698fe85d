// Package entropy provides randomness for the simulation.
//
// The simulation itself only ever draws from a seeded, snapshot-able Source
// so runs can be replayed. True randomness (random.org, falling back to
// crypto/rand) is used once, by the driver, to pick the seed of a new game.
package entropy

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const randomOrgEndpoint = "https://api.random.org/json-rpc/4/invoke"

// Client fetches seed material from random.org.
type Client struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

// NewClient creates a random.org client. Returns nil if apiKey is empty.
func NewClient(apiKey string) *Client {
	if apiKey == "" {
		return nil
	}
	return &Client{
		apiKey:   apiKey,
		endpoint: randomOrgEndpoint,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

// Enabled returns true if the client has a valid API key.
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// NewSeed returns a fresh game seed. It asks random.org when the client is
// enabled and falls back to crypto/rand on any failure.
func NewSeed(c *Client) uint64 {
	if c.Enabled() {
		seed, err := c.fetchSeed()
		if err == nil {
			return seed
		}
		slog.Debug("random.org seed failed, using crypto/rand", "error", err)
	}
	return cryptoSeed()
}

// fetchSeed combines four 16-bit draws into one 64-bit seed; random.org
// integers are capped at 1e9.
func (c *Client) fetchSeed() (uint64, error) {
	req := map[string]any{
		"jsonrpc": "2.0",
		"method":  "generateIntegers",
		"params": map[string]any{
			"apiKey": c.apiKey,
			"n":      4,
			"min":    0,
			"max":    0xFFFF,
		},
		"id": 1,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return 0, fmt.Errorf("marshal: %w", err)
	}

	resp, err := c.client.Post(c.endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read: %w", err)
	}

	var result struct {
		Result struct {
			Random struct {
				Data []uint64 `json:"data"`
			} `json:"random"`
		} `json:"result"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return 0, fmt.Errorf("parse: %w", err)
	}
	if result.Error != nil {
		return 0, fmt.Errorf("api: %s", result.Error.Message)
	}
	if len(result.Result.Random.Data) < 4 {
		return 0, fmt.Errorf("api: short response (%d values)", len(result.Result.Random.Data))
	}

	var seed uint64
	for _, v := range result.Result.Random.Data[:4] {
		seed = seed<<16 | (v & 0xFFFF)
	}
	return seed, nil
}

func cryptoSeed() uint64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// Should never happen; a fixed seed still yields a playable game.
		return 0x5eed
	}
	return binary.LittleEndian.Uint64(buf[:])
}
