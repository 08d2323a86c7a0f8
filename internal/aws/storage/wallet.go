package storage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/clash-vn/clasharena/internal/domains/entities"
)

// platformFeesAccount is the audit row retained platform fees
// accumulate on. It is not a user wallet and is never credited back.
const platformFeesAccount = "platform#fees"

func (client *Client) GetWallet(ctx context.Context, userId string) (entities.Wallet, error) {
	output, err := client.dynamodb.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: client.cfg.WalletsTableName,
		Key: map[string]types.AttributeValue{
			"UserId": &types.AttributeValueMemberS{
				Value: userId,
			},
		},
	})
	if err != nil {
		return entities.Wallet{}, err
	}
	if output.Item == nil {
		return entities.Wallet{UserId: userId}, nil
	}
	var wallet entities.Wallet
	if err := attributevalue.UnmarshalMap(output.Item, &wallet); err != nil {
		return entities.Wallet{}, err
	}
	return wallet, nil
}

func (client *Client) CreditWallet(
	ctx context.Context,
	userId string,
	amount int64,
) (
	entities.Wallet,
	error,
) {
	output, err := client.dynamodb.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: client.cfg.WalletsTableName,
		Key: map[string]types.AttributeValue{
			"UserId": &types.AttributeValueMemberS{Value: userId},
		},
		UpdateExpression: aws.String("SET UpdatedAt = :now ADD Balance :amount"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":amount": &types.AttributeValueMemberN{Value: strconv.FormatInt(amount, 10)},
			":now":    &types.AttributeValueMemberS{Value: time.Now().Format(time.RFC3339)},
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		return entities.Wallet{}, fmt.Errorf("failed to credit wallet: %w", err)
	}
	var wallet entities.Wallet
	if err := attributevalue.UnmarshalMap(output.Attributes, &wallet); err != nil {
		return entities.Wallet{}, err
	}
	return wallet, nil
}

// ApplyTransfer moves the debit, credit and retained fee in one
// DynamoDB transaction. The balance condition on the sender backs the
// ledger's own check so a stale read can never overdraw.
func (client *Client) ApplyTransfer(
	ctx context.Context,
	senderId,
	receiverId string,
	debit,
	credit,
	fee int64,
) error {
	now := &types.AttributeValueMemberS{Value: time.Now().Format(time.RFC3339)}
	_, err := client.dynamodb.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Update: &types.Update{
					TableName: client.cfg.WalletsTableName,
					Key: map[string]types.AttributeValue{
						"UserId": &types.AttributeValueMemberS{Value: senderId},
					},
					ConditionExpression: aws.String("Balance >= :debit"),
					UpdateExpression:    aws.String("SET UpdatedAt = :now ADD Balance :negDebit, TotalSpent :debit"),
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":debit":    &types.AttributeValueMemberN{Value: strconv.FormatInt(debit, 10)},
						":negDebit": &types.AttributeValueMemberN{Value: strconv.FormatInt(-debit, 10)},
						":now":      now,
					},
				},
			},
			{
				Update: &types.Update{
					TableName: client.cfg.WalletsTableName,
					Key: map[string]types.AttributeValue{
						"UserId": &types.AttributeValueMemberS{Value: receiverId},
					},
					UpdateExpression: aws.String("SET UpdatedAt = :now ADD Balance :credit, TotalEarned :credit"),
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":credit": &types.AttributeValueMemberN{Value: strconv.FormatInt(credit, 10)},
						":now":    now,
					},
				},
			},
			{
				Update: &types.Update{
					TableName: client.cfg.WalletsTableName,
					Key: map[string]types.AttributeValue{
						"UserId": &types.AttributeValueMemberS{Value: platformFeesAccount},
					},
					UpdateExpression: aws.String("SET UpdatedAt = :now ADD Balance :fee"),
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":fee": &types.AttributeValueMemberN{Value: strconv.FormatInt(fee, 10)},
						":now": now,
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to apply transfer: %w", err)
	}
	return nil
}
