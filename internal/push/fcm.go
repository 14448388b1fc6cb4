package push

import (
	"context"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

const DefaultAndroidChannelID = "stepcraft_push"

// Error texts the FCM backend has used for dead tokens across API versions.
var fcmPermanentMarkers = []string{
	"registration-token-not-registered",
	"requested entity was not found",
	"unregistered",
}

type fcmMessenger interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMClient sends one message per token through Firebase Cloud Messaging.
type FCMClient struct {
	client    fcmMessenger
	channelID string
}

// NewFCMClient builds the messaging client from a service account JSON document.
func NewFCMClient(ctx context.Context, serviceAccountJSON []byte, channelID string) (*FCMClient, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsJSON(serviceAccountJSON))
	if err != nil {
		return nil, fmt.Errorf("initialize firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("get messaging client: %w", err)
	}
	return newFCMClient(client, channelID), nil
}

func newFCMClient(m fcmMessenger, channelID string) *FCMClient {
	if channelID == "" {
		channelID = DefaultAndroidChannelID
	}
	return &FCMClient{client: m, channelID: channelID}
}

func (c *FCMClient) Send(ctx context.Context, token string, msg Message) error {
	message := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data: msg.Data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ChannelID: c.channelID,
				Sound:     "default",
			},
		},
	}

	if _, err := c.client.Send(ctx, message); err != nil {
		return &ProviderError{
			Provider:  "fcm",
			Reason:    err.Error(),
			Permanent: isFCMPermanent(err),
			Err:       err,
		}
	}
	return nil
}

func isFCMPermanent(err error) bool {
	if messaging.IsUnregistered(err) || messaging.IsSenderIDMismatch(err) {
		return true
	}
	text := strings.ToLower(err.Error())
	for _, marker := range fcmPermanentMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}
