package storage

import (
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

type Client struct {
	dynamodb *dynamodb.Client
	cfg      config
}

type config struct {
	WalletsTableName       *string
	GiftEventsTableName    *string
	ActiveMatchesTableName *string
	MatchArchiveTableName  *string
	ConnectionsTableName   *string
}

func NewClient(dynamoClient *dynamodb.Client) *Client {
	return &Client{
		dynamodb: dynamoClient,
		cfg:      loadConfig(),
	}
}

func loadConfig() config {
	return config{
		WalletsTableName:       aws.String(os.Getenv("WALLETS_TABLE_NAME")),
		GiftEventsTableName:    aws.String(os.Getenv("GIFT_EVENTS_TABLE_NAME")),
		ActiveMatchesTableName: aws.String(os.Getenv("ACTIVE_MATCHES_TABLE_NAME")),
		MatchArchiveTableName:  aws.String(os.Getenv("MATCH_ARCHIVE_TABLE_NAME")),
		ConnectionsTableName:   aws.String(os.Getenv("CONNECTIONS_TABLE_NAME")),
	}
}
