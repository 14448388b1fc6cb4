package push

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/net/http2"
)

const (
	APNsProductionURL = "https://api.push.apple.com"
	APNsSandboxURL    = "https://api.sandbox.push.apple.com"

	// Apple rejects provider tokens older than an hour and throttles refreshes faster than every 20 minutes.
	apnsTokenLifetime = 50 * time.Minute
)

// Reasons after which the token will never work again.
var apnsPermanentReasons = map[string]bool{
	"BadDeviceToken":         true,
	"Unregistered":           true,
	"DeviceTokenNotForTopic": true,
}

type APNsConfig struct {
	KeyPEM  []byte // contents of the .p8 signing key
	KeyID   string
	TeamID  string
	Topic   string // app bundle id
	Sandbox bool
}

type APNsClient struct {
	httpClient *http.Client
	endpoint   string
	topic      string
	keyID      string
	teamID     string
	key        *ecdsa.PrivateKey
	now        func() time.Time

	mu       sync.Mutex
	token    string
	issuedAt time.Time
}

type APNsOption func(*APNsClient)

func WithHTTPClient(c *http.Client) APNsOption {
	return func(a *APNsClient) { a.httpClient = c }
}

func WithEndpoint(endpoint string) APNsOption {
	return func(a *APNsClient) { a.endpoint = endpoint }
}

func withClock(now func() time.Time) APNsOption {
	return func(a *APNsClient) { a.now = now }
}

func NewAPNsClient(cfg APNsConfig, opts ...APNsOption) (*APNsClient, error) {
	key, err := jwt.ParseECPrivateKeyFromPEM(cfg.KeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse apns signing key: %w", err)
	}
	if cfg.KeyID == "" || cfg.TeamID == "" || cfg.Topic == "" {
		return nil, fmt.Errorf("apns key id, team id and topic are required")
	}

	endpoint := APNsProductionURL
	if cfg.Sandbox {
		endpoint = APNsSandboxURL
	}

	c := &APNsClient{
		httpClient: &http.Client{Transport: &http2.Transport{}, Timeout: 10 * time.Second},
		endpoint:   endpoint,
		topic:      cfg.Topic,
		keyID:      cfg.KeyID,
		teamID:     cfg.TeamID,
		key:        key,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// providerToken returns the cached ES256 token, signing a new one when it is too old or force is set.
func (c *APNsClient) providerToken(force bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if !force && c.token != "" && now.Sub(c.issuedAt) < apnsTokenLifetime {
		return c.token, nil
	}

	t := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.MapClaims{
		"iss": c.teamID,
		"iat": now.Unix(),
	})
	t.Header["kid"] = c.keyID

	signed, err := t.SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("sign apns provider token: %w", err)
	}
	c.token = signed
	c.issuedAt = now
	return signed, nil
}

type apnsAlert struct {
	Title string `json:"title,omitempty"`
	Body  string `json:"body"`
}

type apnsAps struct {
	Alert apnsAlert `json:"alert"`
	Sound string    `json:"sound"`
	Badge int       `json:"badge"`
}

func buildAPNsPayload(msg Message) ([]byte, error) {
	payload := make(map[string]any, len(msg.Data)+1)
	for k, v := range msg.Data {
		payload[k] = v
	}
	payload["aps"] = apnsAps{
		Alert: apnsAlert{Title: msg.Title, Body: msg.Body},
		Sound: "default",
		Badge: 1,
	}
	return json.Marshal(payload)
}

func (c *APNsClient) Send(ctx context.Context, token string, msg Message) error {
	body, err := buildAPNsPayload(msg)
	if err != nil {
		return &ProviderError{Provider: "apns", Reason: "encode payload", Err: err}
	}

	err = c.send(ctx, token, body, false)
	var pe *ProviderError
	if asProviderError(err, &pe) && pe.Reason == "ExpiredProviderToken" {
		err = c.send(ctx, token, body, true)
	}
	return err
}

func (c *APNsClient) send(ctx context.Context, token string, body []byte, refresh bool) error {
	bearer, err := c.providerToken(refresh)
	if err != nil {
		return &ProviderError{Provider: "apns", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/3/device/"+url.PathEscape(token), bytes.NewReader(body))
	if err != nil {
		return &ProviderError{Provider: "apns", Err: err}
	}
	req.Header.Set("authorization", "bearer "+bearer)
	req.Header.Set("apns-topic", c.topic)
	req.Header.Set("apns-push-type", "alert")
	req.Header.Set("apns-priority", "10")
	req.Header.Set("apns-id", uuid.NewString())
	req.Header.Set("content-type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &ProviderError{Provider: "apns", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	var apnsResp struct {
		Reason string `json:"reason"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_ = json.Unmarshal(raw, &apnsResp)

	return &ProviderError{
		Provider:  "apns",
		Status:    resp.StatusCode,
		Reason:    apnsResp.Reason,
		Permanent: resp.StatusCode == http.StatusGone || apnsPermanentReasons[apnsResp.Reason],
	}
}
