// Package auth verifies bearer tokens of connecting clients against an
// external identity service and resolves their access type.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/droidstream/signal/pkg/config"
	"github.com/droidstream/signal/pkg/logger"
	"github.com/droidstream/signal/pkg/network"
	"github.com/goccy/go-json"
)

type AccessType string

const (
	Free AccessType = "free"
	Paid AccessType = "paid"
)

// User is the resolved identity of an admitted client.
type User struct {
	Id     string
	Access AccessType
}

var (
	ErrAuthFailed     = errors.New("invalid or expired token")
	ErrNoSubscription = errors.New("no active subscription")
)

// Authenticator authorizes a connecting client before any session exists.
type Authenticator interface {
	Authorize(ctx context.Context, token string) (User, error)
}

// New picks the authenticator for the given config: token introspection
// over HTTP when an URL is set, otherwise an admit-all dev authenticator.
func New(conf config.Auth, log *logger.Logger) Authenticator {
	if conf.IntrospectURL == "" {
		log.Warn().Msg("No auth introspection URL, admitting every client")
		return Static{Access: Paid}
	}
	return &HTTP{url: conf.IntrospectURL, client: &http.Client{Timeout: conf.Timeout}, log: log}
}

// HTTP resolves tokens through an external introspection endpoint.
type HTTP struct {
	url    string
	client *http.Client
	log    *logger.Logger
}

func (a *HTTP) Authorize(ctx context.Context, token string) (User, error) {
	if token == "" {
		return User{}, ErrAuthFailed
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, nil)
	if err != nil {
		return User{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := a.client.Do(req)
	if err != nil {
		return User{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return User{}, ErrAuthFailed
	case http.StatusPaymentRequired, http.StatusForbidden:
		return User{}, ErrNoSubscription
	default:
		return User{}, fmt.Errorf("auth service status %v", resp.StatusCode)
	}

	var body struct {
		Id     string     `json:"id"`
		Access AccessType `json:"accessType"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return User{}, err
	}
	if body.Id == "" {
		return User{}, ErrAuthFailed
	}
	if body.Access != Free && body.Access != Paid {
		body.Access = Free
	}
	return User{Id: body.Id, Access: body.Access}, nil
}

// Static admits everyone with a fixed access type (dev mode).
type Static struct {
	Access AccessType
}

func (s Static) Authorize(_ context.Context, _ string) (User, error) {
	// unique per connection, or the one-game-per-user guard locks everyone out
	return User{Id: "dev-" + network.NewUid().String(), Access: s.Access}, nil
}
