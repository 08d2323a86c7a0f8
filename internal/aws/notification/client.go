package notification

import "github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi"

type Client struct {
	apiGateway *apigatewaymanagementapi.Client
}

func NewClient(apiGatewayClient *apigatewaymanagementapi.Client) *Client {
	return &Client{
		apiGateway: apiGatewayClient,
	}
}
