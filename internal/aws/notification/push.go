package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi"
	"github.com/clash-vn/clasharena/internal/domains/entities"
)

type matchFoundMessage struct {
	Type  string         `json:"type"`
	Match entities.Match `json:"match"`
}

// PushMatchFound notifies a queued client, identified by its API
// Gateway websocket connection id, that its ticket matched.
func (client *Client) PushMatchFound(
	ctx context.Context,
	connectionId string,
	match entities.Match,
) error {
	data, err := json.Marshal(matchFoundMessage{
		Type:  "match_found",
		Match: match,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	_, err = client.apiGateway.PostToConnection(ctx, &apigatewaymanagementapi.PostToConnectionInput{
		ConnectionId: aws.String(connectionId),
		Data:         data,
	})
	if err != nil {
		return fmt.Errorf("failed to post to connection: %w", err)
	}
	return nil
}
