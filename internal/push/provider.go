// Package push talks to the mobile push providers.
//
// Every adapter implements Sender and reports failures as *ProviderError so
// callers can tell a dead token (remove it) from a transient failure (retry later).
package push

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// ErrUnregistered matches, through errors.Is, every ProviderError that marks the token as permanently invalid.
var ErrUnregistered = errors.New("push token is no longer registered")

type Message struct {
	Title string
	Body  string
	Data  map[string]string
}

type Sender interface {
	Send(ctx context.Context, token string, msg Message) error
}

type ProviderError struct {
	Provider  string
	Status    int
	Reason    string
	Permanent bool
	Err       error
}

func (e *ProviderError) Error() string {
	switch {
	case e.Err != nil && e.Reason == "":
		return fmt.Sprintf("%s: %v", e.Provider, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("%s: status %d: %s", e.Provider, e.Status, e.Reason)
	default:
		return fmt.Sprintf("%s: %s", e.Provider, e.Reason)
	}
}

func (e *ProviderError) Unwrap() error { return e.Err }

func (e *ProviderError) Is(target error) bool {
	return target == ErrUnregistered && e.Permanent
}

// IsPermanent reports whether err means the token should be deleted.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrUnregistered)
}

// Senders maps a platform ("ios", "android") to its adapter.
type Senders map[string]Sender

func (s Senders) For(platform string) (Sender, bool) {
	sender, ok := s[platform]
	return sender, ok && sender != nil
}

// Platforms lists the platforms that have a configured adapter, sorted.
func (s Senders) Platforms() []string {
	out := make([]string, 0, len(s))
	for platform, sender := range s {
		if sender != nil {
			out = append(out, platform)
		}
	}
	sort.Strings(out)
	return out
}

func asProviderError(err error, target **ProviderError) bool {
	return err != nil && errors.As(err, target)
}
