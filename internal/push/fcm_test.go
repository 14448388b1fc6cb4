package push

import (
	"context"
	"errors"
	"testing"

	"firebase.google.com/go/v4/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMessenger struct {
	sent []*messaging.Message
	err  error
}

func (f *fakeMessenger) Send(_ context.Context, m *messaging.Message) (string, error) {
	f.sent = append(f.sent, m)
	if f.err != nil {
		return "", f.err
	}
	return "projects/p/messages/1", nil
}

func TestFCM_SendBuildsAndroidMessage(t *testing.T) {
	fake := &fakeMessenger{}
	c := newFCMClient(fake, "")

	err := c.Send(context.Background(), "tok-1", Message{Title: "StepCraft", Body: "Go walk", Data: map[string]string{"k": "v"}})
	require.NoError(t, err)

	require.Len(t, fake.sent, 1)
	m := fake.sent[0]
	assert.Equal(t, "tok-1", m.Token)
	assert.Equal(t, "Go walk", m.Notification.Body)
	assert.Equal(t, "high", m.Android.Priority)
	assert.Equal(t, DefaultAndroidChannelID, m.Android.Notification.ChannelID)
	assert.Equal(t, "v", m.Data["k"])
}

func TestFCM_ErrorClassification(t *testing.T) {
	tests := []struct {
		err       error
		permanent bool
	}{
		{errors.New("Requested entity was not found."), true},
		{errors.New("registration-token-not-registered"), true},
		{errors.New("UNREGISTERED"), true},
		{errors.New("internal error"), false},
		{errors.New("quota exceeded"), false},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			c := newFCMClient(&fakeMessenger{err: tt.err}, "chan")

			err := c.Send(context.Background(), "tok", Message{Body: "x"})
			require.Error(t, err)
			assert.Equal(t, tt.permanent, IsPermanent(err))

			var pe *ProviderError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, "fcm", pe.Provider)
		})
	}
}
