// internal/dispatch/client.go
package dispatch

import (
	"context"
	"fmt"

	"jobalert-workers/internal/common/config"

	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/token"
)

// apnsClient adapts *apns2.Client to the PushClient interface.
type apnsClient struct {
	client *apns2.Client
}

// NewAPNsClient builds a token-authenticated APNs client from config.
func NewAPNsClient(cfg config.APNsConfig) (PushClient, error) {
	authKey, err := token.AuthKeyFromFile(cfg.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("load apns auth key: %w", err)
	}

	client := apns2.NewTokenClient(&token.Token{
		AuthKey: authKey,
		KeyID:   cfg.KeyID,
		TeamID:  cfg.TeamID,
	})
	if cfg.Production {
		client = client.Production()
	} else {
		client = client.Development()
	}
	return &apnsClient{client: client}, nil
}

func (a *apnsClient) Push(ctx context.Context, n *apns2.Notification) (*apns2.Response, error) {
	return a.client.PushWithContext(ctx, n)
}
