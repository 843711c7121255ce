package ledger

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/protocolsim/idlarena/internal/domain"
	"github.com/protocolsim/idlarena/internal/engine"
)

// Devnet posts approved actions to a devnet gateway. Each request body is
// signed with the configured Ed25519 key; the gateway verifies the signature
// against the registered public key before accepting the transaction.
type Devnet struct {
	endpoint string
	key      ed25519.PrivateKey
	client   *http.Client
}

// DevnetConfig configures the devnet backend.
type DevnetConfig struct {
	Endpoint string
	Key      ed25519.PrivateKey
	Timeout  time.Duration
}

// NewDevnet creates a Devnet submitter.
func NewDevnet(cfg DevnetConfig) (*Devnet, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("ledger: devnet endpoint is required")
	}
	if len(cfg.Key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("ledger: devnet signing key is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Devnet{
		endpoint: cfg.Endpoint,
		key:      cfg.Key,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

// submission is the wire format for one approved action.
type submission struct {
	Agent     string        `json:"agent"`
	Action    domain.Action `json:"action"`
	Timestamp int64         `json:"timestamp"`
}

// Submit signs and posts the action. Non-2xx responses are returned as
// errors; callers treat submission failures as non-fatal.
func (d *Devnet) Submit(ctx context.Context, agent string, act domain.Action) error {
	ts := time.Now().Unix()
	body, err := json.Marshal(submission{Agent: agent, Action: act, Timestamp: ts})
	if err != nil {
		return fmt.Errorf("ledger: marshal submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint+"/actions", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("ledger: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range d.signedHeaders(http.MethodPost, "/actions", body, ts) {
		req.Header.Set(k, v)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("ledger: submit: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("ledger: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// signedHeaders builds the authentication headers for a gateway request.
// The signature covers timestamp+method+path+body so a captured request
// cannot be replayed against another route.
func (d *Devnet) signedHeaders(method, path string, body []byte, ts int64) map[string]string {
	message := strconv.FormatInt(ts, 10) + method + path + string(body)
	sig := ed25519.Sign(d.key, []byte(message))

	return map[string]string{
		"X-Arena-Key":       hex.EncodeToString(d.key.Public().(ed25519.PublicKey)),
		"X-Arena-Timestamp": strconv.FormatInt(ts, 10),
		"X-Arena-Signature": hex.EncodeToString(sig),
	}
}

// Compile-time interface checks.
var (
	_ engine.Submitter = (*Devnet)(nil)
	_ engine.Submitter = (*Simulated)(nil)
)
