package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/clash-vn/clasharena/internal/aws/storage"
	"github.com/clash-vn/clasharena/internal/domains/entities"
)

var storageClient *storage.Client

func init() {
	cfg, _ := config.LoadDefaultConfig(context.TODO())
	storageClient = storage.NewClient(dynamodb.NewFromConfig(cfg))
}

// Rebuild a score snapshot for one match by replaying its gift events.
// The event log, not the in-memory total, is the system of record.
func handler(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	matchId := event.PathParameters["id"]

	match, err := storageClient.GetActiveMatch(ctx, matchId)
	if err != nil {
		match, err = storageClient.GetArchivedMatch(ctx, matchId)
		if err != nil {
			return events.APIGatewayProxyResponse{StatusCode: http.StatusNotFound},
				fmt.Errorf("failed to get match: %w", err)
		}
	}

	giftEvents, err := storageClient.ListGiftEventsByMatch(ctx, matchId)
	if err != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError},
			fmt.Errorf("failed to list gift events: %w", err)
	}

	teamA := make(map[string]bool, len(match.TeamA))
	for _, id := range match.TeamA {
		teamA[id] = true
	}
	snapshot := entities.ScoreSnapshot{
		MatchId: matchId,
		TakenAt: time.Now(),
	}
	for _, e := range giftEvents {
		if teamA[e.ReceiverId] {
			snapshot.TeamA += e.Amount
		} else {
			snapshot.TeamB += e.Amount
		}
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError},
			fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Body:       string(data),
	}, nil
}

func main() {
	lambda.Start(handler)
}
