package storage

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/clash-vn/clasharena/internal/domains/entities"
)

func (client *Client) AppendGiftEvent(ctx context.Context, event entities.GiftEvent) error {
	av, err := attributevalue.MarshalMap(event)
	if err != nil {
		return fmt.Errorf("failed to marshal gift event: %w", err)
	}
	_, err = client.dynamodb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: client.cfg.GiftEventsTableName,
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("failed to put gift event: %w", err)
	}
	return nil
}

// ListGiftEventsByMatch reads all gift events attributed to one match,
// in the order they were recorded. Used to rebuild score totals.
func (client *Client) ListGiftEventsByMatch(
	ctx context.Context,
	matchId string,
) (
	[]entities.GiftEvent,
	error,
) {
	var events []entities.GiftEvent
	var lastKey map[string]types.AttributeValue
	for {
		output, err := client.dynamodb.Query(ctx, &dynamodb.QueryInput{
			TableName:              client.cfg.GiftEventsTableName,
			IndexName:              aws.String("MatchIdIndex"),
			KeyConditionExpression: aws.String("MatchId = :matchId"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":matchId": &types.AttributeValueMemberS{Value: matchId},
			},
			ExclusiveStartKey: lastKey,
			ScanIndexForward:  aws.Bool(true),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to query gift events: %w", err)
		}
		var page []entities.GiftEvent
		if err := attributevalue.UnmarshalListOfMaps(output.Items, &page); err != nil {
			return nil, err
		}
		events = append(events, page...)
		if output.LastEvaluatedKey == nil {
			return events, nil
		}
		lastKey = output.LastEvaluatedKey
	}
}
