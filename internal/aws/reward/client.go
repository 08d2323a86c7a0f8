package reward

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awslambda "github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/clash-vn/clasharena/internal/engine/battle"
)

// Client delivers settlement results to the reward/XP lambda. The
// invocation is asynchronous; leaderboard and XP side effects happen
// on the other side and never hold up match completion.
type Client struct {
	lambda       *awslambda.Client
	functionName string
}

func NewClient(lambdaClient *awslambda.Client, functionName string) *Client {
	return &Client{
		lambda:       lambdaClient,
		functionName: functionName,
	}
}

func (client *Client) MatchSettled(ctx context.Context, result battle.Result) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	_, err = client.lambda.Invoke(ctx, &awslambda.InvokeInput{
		FunctionName:   aws.String(client.functionName),
		Payload:        payload,
		InvocationType: types.InvocationTypeEvent,
	})
	if err != nil {
		return fmt.Errorf("failed to invoke reward function: %w", err)
	}
	return nil
}
