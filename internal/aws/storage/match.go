package storage

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/clash-vn/clasharena/internal/domains/entities"
)

var ErrMatchNotFound = fmt.Errorf("match not found")

func (client *Client) PutActiveMatch(ctx context.Context, match entities.Match) error {
	av, err := attributevalue.MarshalMap(match)
	if err != nil {
		return fmt.Errorf("failed to marshal match: %w", err)
	}
	_, err = client.dynamodb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: client.cfg.ActiveMatchesTableName,
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("failed to put active match: %w", err)
	}
	return nil
}

func (client *Client) DeleteActiveMatch(ctx context.Context, matchId string) error {
	_, err := client.dynamodb.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: client.cfg.ActiveMatchesTableName,
		Key: map[string]types.AttributeValue{
			"MatchId": &types.AttributeValueMemberS{Value: matchId},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete active match: %w", err)
	}
	return nil
}

func (client *Client) GetActiveMatch(ctx context.Context, matchId string) (entities.Match, error) {
	output, err := client.dynamodb.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: client.cfg.ActiveMatchesTableName,
		Key: map[string]types.AttributeValue{
			"MatchId": &types.AttributeValueMemberS{Value: matchId},
		},
	})
	if err != nil {
		return entities.Match{}, err
	}
	if output.Item == nil {
		return entities.Match{}, ErrMatchNotFound
	}
	var match entities.Match
	if err := attributevalue.UnmarshalMap(output.Item, &match); err != nil {
		return entities.Match{}, err
	}
	return match, nil
}

// ListActiveMatches returns every persisted in-progress match. Used on
// server start to restore battles that outlived a restart.
func (client *Client) ListActiveMatches(ctx context.Context) ([]entities.Match, error) {
	var matches []entities.Match
	var lastKey map[string]types.AttributeValue
	for {
		output, err := client.dynamodb.Scan(ctx, &dynamodb.ScanInput{
			TableName:         client.cfg.ActiveMatchesTableName,
			ExclusiveStartKey: lastKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan active matches: %w", err)
		}
		var page []entities.Match
		if err := attributevalue.UnmarshalListOfMaps(output.Items, &page); err != nil {
			return nil, err
		}
		matches = append(matches, page...)
		if output.LastEvaluatedKey == nil {
			return matches, nil
		}
		lastKey = output.LastEvaluatedKey
	}
}

func (client *Client) ArchiveMatch(ctx context.Context, match entities.Match) error {
	av, err := attributevalue.MarshalMap(match)
	if err != nil {
		return fmt.Errorf("failed to marshal match: %w", err)
	}
	_, err = client.dynamodb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: client.cfg.MatchArchiveTableName,
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("failed to archive match: %w", err)
	}
	return nil
}

func (client *Client) GetArchivedMatch(ctx context.Context, matchId string) (entities.Match, error) {
	output, err := client.dynamodb.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: client.cfg.MatchArchiveTableName,
		Key: map[string]types.AttributeValue{
			"MatchId": &types.AttributeValueMemberS{Value: matchId},
		},
	})
	if err != nil {
		return entities.Match{}, err
	}
	if output.Item == nil {
		return entities.Match{}, ErrMatchNotFound
	}
	var match entities.Match
	if err := attributevalue.UnmarshalMap(output.Item, &match); err != nil {
		return entities.Match{}, err
	}
	return match, nil
}
