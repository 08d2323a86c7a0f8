package entities

import "time"

// Connection maps a user to their API Gateway websocket connection,
// registered by the connect/disconnect lambdas.
type Connection struct {
	UserId       string    `dynamodbav:"UserId"`
	ConnectionId string    `dynamodbav:"ConnectionId"`
	ConnectedAt  time.Time `dynamodbav:"ConnectedAt"`
}
