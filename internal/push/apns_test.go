package push

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSigningKey(t *testing.T) (*ecdsa.PrivateKey, []byte) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	return key, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
}

type apnsCall struct {
	Path    string
	Proto   int
	Header  http.Header
	Payload map[string]any
}

type fakeAPNs struct {
	mu     sync.Mutex
	calls  []apnsCall
	status int
	reason string
}

func (f *fakeAPNs) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	var payload map[string]any
	_ = json.Unmarshal(body, &payload)

	f.mu.Lock()
	f.calls = append(f.calls, apnsCall{Path: r.URL.Path, Proto: r.ProtoMajor, Header: r.Header.Clone(), Payload: payload})
	status, reason := f.status, f.reason
	f.mu.Unlock()

	if status == 0 || status == http.StatusOK {
		w.WriteHeader(http.StatusOK)
		return
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"reason":"` + reason + `"}`))
}

func newTestAPNs(t *testing.T, fake *fakeAPNs, opts ...APNsOption) (*APNsClient, *ecdsa.PrivateKey) {
	srv := httptest.NewUnstartedServer(fake)
	srv.EnableHTTP2 = true
	srv.StartTLS()
	t.Cleanup(srv.Close)

	key, keyPEM := testSigningKey(t)
	opts = append([]APNsOption{WithHTTPClient(srv.Client()), WithEndpoint(srv.URL)}, opts...)
	c, err := NewAPNsClient(APNsConfig{
		KeyPEM: keyPEM,
		KeyID:  "KEY123",
		TeamID: "TEAM456",
		Topic:  "com.example.stepcraft",
	}, opts...)
	require.NoError(t, err)
	return c, key
}

func TestAPNs_SendSuccess(t *testing.T) {
	fake := &fakeAPNs{}
	c, key := newTestAPNs(t, fake)

	err := c.Send(context.Background(), "abc123", Message{
		Title: "StepCraft",
		Body:  "Walk today!",
		Data:  map[string]string{"server": "alpha"},
	})
	require.NoError(t, err)

	require.Len(t, fake.calls, 1)
	call := fake.calls[0]
	assert.Equal(t, "/3/device/abc123", call.Path)
	assert.Equal(t, 2, call.Proto)
	assert.Equal(t, "com.example.stepcraft", call.Header.Get("apns-topic"))
	assert.Equal(t, "alert", call.Header.Get("apns-push-type"))
	assert.NotEmpty(t, call.Header.Get("apns-id"))

	aps := call.Payload["aps"].(map[string]any)
	alert := aps["alert"].(map[string]any)
	assert.Equal(t, "Walk today!", alert["body"])
	assert.Equal(t, "StepCraft", alert["title"])
	assert.Equal(t, "default", aps["sound"])
	assert.Equal(t, "alpha", call.Payload["server"])

	bearer := strings.TrimPrefix(call.Header.Get("authorization"), "bearer ")
	parsed, err := jwt.Parse(bearer, func(tok *jwt.Token) (any, error) {
		return &key.PublicKey, nil
	}, jwt.WithValidMethods([]string{"ES256"}))
	require.NoError(t, err)
	assert.Equal(t, "KEY123", parsed.Header["kid"])
	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, "TEAM456", claims["iss"])
}

func TestAPNs_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		reason    string
		permanent bool
	}{
		{"gone", http.StatusGone, "Unregistered", true},
		{"bad token", http.StatusBadRequest, "BadDeviceToken", true},
		{"wrong topic", http.StatusBadRequest, "DeviceTokenNotForTopic", true},
		{"throttled", http.StatusTooManyRequests, "TooManyRequests", false},
		{"server error", http.StatusInternalServerError, "InternalServerError", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestAPNs(t, &fakeAPNs{status: tt.status, reason: tt.reason})

			err := c.Send(context.Background(), "abc", Message{Body: "hi"})
			require.Error(t, err)

			var pe *ProviderError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.status, pe.Status)
			assert.Equal(t, tt.reason, pe.Reason)
			assert.Equal(t, tt.permanent, errors.Is(err, ErrUnregistered))
		})
	}
}

func TestAPNs_ProviderTokenIsCachedThenRefreshed(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	fake := &fakeAPNs{}
	c, _ := newTestAPNs(t, fake, withClock(func() time.Time { return now }))
	ctx := context.Background()

	require.NoError(t, c.Send(ctx, "a", Message{Body: "1"}))
	now = now.Add(10 * time.Minute)
	require.NoError(t, c.Send(ctx, "a", Message{Body: "2"}))
	now = now.Add(45 * time.Minute)
	require.NoError(t, c.Send(ctx, "a", Message{Body: "3"}))

	require.Len(t, fake.calls, 3)
	first := fake.calls[0].Header.Get("authorization")
	assert.Equal(t, first, fake.calls[1].Header.Get("authorization"))
	assert.NotEqual(t, first, fake.calls[2].Header.Get("authorization"))
}

func TestAPNs_TransportErrorIsRetryable(t *testing.T) {
	c, _ := newTestAPNs(t, &fakeAPNs{}, WithEndpoint("https://127.0.0.1:1"))

	err := c.Send(context.Background(), "abc", Message{Body: "hi"})
	require.Error(t, err)
	assert.False(t, IsPermanent(err))
}

func TestNewAPNsClient_RejectsBadKey(t *testing.T) {
	_, err := NewAPNsClient(APNsConfig{KeyPEM: []byte("nope"), KeyID: "k", TeamID: "t", Topic: "x"})
	assert.Error(t, err)
}
