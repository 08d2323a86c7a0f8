package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/clash-vn/clasharena/internal/aws/storage"
	"github.com/clash-vn/clasharena/internal/engine/wallet"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"
)

var (
	webhookSecret = os.Getenv("STRIPE_WEBHOOK_SECRET")
	ledger        *wallet.Ledger
)

func init() {
	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		log.Fatalf("Failed to load AWS config: %v", err)
	}
	ledger = wallet.NewLedger(storage.NewClient(dynamodb.NewFromConfig(cfg)))
}

// Handle Stripe webhook and credit the purchased coins.
func handler(
	ctx context.Context,
	request events.APIGatewayProxyRequest,
) (
	events.APIGatewayProxyResponse,
	error,
) {
	sigHeader := request.Headers["Stripe-Signature"]
	body := []byte(request.Body)

	event, err := webhook.ConstructEvent(body, sigHeader, webhookSecret)
	if err != nil {
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusBadRequest,
		}, fmt.Errorf("failed to verify webhook signature: %w", err)
	}

	switch event.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		err := json.Unmarshal(event.Data.Raw, &session)
		if err != nil {
			log.Printf("Error parsing session data: %v", err)
			return events.APIGatewayProxyResponse{
				StatusCode: http.StatusBadRequest,
			}, fmt.Errorf("failed to parse session data: %w", err)
		}

		coins, ok := session.Metadata["coins"]
		if !ok {
			return events.APIGatewayProxyResponse{
				StatusCode: http.StatusBadRequest,
			}, fmt.Errorf("failed to get coin amount")
		}
		amount, err := strconv.ParseInt(coins, 10, 64)
		if err != nil {
			return events.APIGatewayProxyResponse{
				StatusCode: http.StatusBadRequest,
			}, fmt.Errorf("failed to parse coin amount: %w", err)
		}
		userId := session.ClientReferenceID
		_, err = ledger.Deposit(ctx, userId, amount)
		if err != nil {
			return events.APIGatewayProxyResponse{
				StatusCode: http.StatusInternalServerError,
			}, fmt.Errorf("failed to credit wallet: %w", err)
		}
	}

	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
	}, nil
}

func main() {
	lambda.Start(handler)
}
