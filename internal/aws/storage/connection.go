package storage

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/clash-vn/clasharena/internal/domains/entities"
)

var ErrConnectionNotFound = fmt.Errorf("connection not found")

func (client *Client) GetConnection(ctx context.Context, userId string) (entities.Connection, error) {
	output, err := client.dynamodb.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: client.cfg.ConnectionsTableName,
		Key: map[string]types.AttributeValue{
			"UserId": &types.AttributeValueMemberS{Value: userId},
		},
	})
	if err != nil {
		return entities.Connection{}, err
	}
	if output.Item == nil {
		return entities.Connection{}, ErrConnectionNotFound
	}
	var connection entities.Connection
	if err := attributevalue.UnmarshalMap(output.Item, &connection); err != nil {
		return entities.Connection{}, err
	}
	return connection, nil
}

func (client *Client) PutConnection(ctx context.Context, connection entities.Connection) error {
	av, err := attributevalue.MarshalMap(connection)
	if err != nil {
		return fmt.Errorf("failed to marshal connection: %w", err)
	}
	_, err = client.dynamodb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: client.cfg.ConnectionsTableName,
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("failed to put connection: %w", err)
	}
	return nil
}

func (client *Client) DeleteConnection(ctx context.Context, userId string) error {
	_, err := client.dynamodb.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: client.cfg.ConnectionsTableName,
		Key: map[string]types.AttributeValue{
			"UserId": &types.AttributeValueMemberS{Value: userId},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete connection: %w", err)
	}
	return nil
}
