package server

import (
	"context"
	"crypto/rsa"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awslambda "github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/clash-vn/clasharena/internal/aws/notification"
	"github.com/clash-vn/clasharena/internal/aws/reward"
	"github.com/clash-vn/clasharena/internal/aws/storage"
	"github.com/clash-vn/clasharena/internal/domains/entities"
	"github.com/clash-vn/clasharena/internal/engine/battle"
	"github.com/clash-vn/clasharena/internal/engine/gift"
	"github.com/clash-vn/clasharena/internal/engine/matchmaking"
	"github.com/clash-vn/clasharena/internal/engine/score"
	"github.com/clash-vn/clasharena/internal/engine/wallet"
	"github.com/clash-vn/clasharena/pkg/logging"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// connectionDirectory resolves the push connection the connect lambda
// registered for a user.
type connectionDirectory interface {
	GetConnection(ctx context.Context, userId string) (entities.Connection, error)
}

type matchNotifier interface {
	PushMatchFound(ctx context.Context, connectionId string, match entities.Match) error
}

type server struct {
	address  string
	upgrader websocket.Upgrader
	config   Config

	cognitoPublicKeys map[string]*rsa.PublicKey

	storageClient *storage.Client
	connections   connectionDirectory
	notifier      matchNotifier

	ledger  *wallet.Ledger
	gifts   *gift.Service
	queue   *matchmaking.Queue
	battles *battle.Manager
	hub     *hub
}

func NewServer() *server {
	cfg := NewConfig()
	awsCfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		panic(fmt.Errorf("failed to load aws config: %w", err))
	}

	storageClient := storage.NewClient(dynamodb.NewFromConfig(awsCfg))
	notifier := notification.NewClient(apigatewaymanagementapi.NewFromConfig(awsCfg))
	rewards := reward.NewClient(awslambda.NewFromConfig(awsCfg), cfg.RewardFunctionName)

	hub := newHub()
	ledger := wallet.NewLedger(storageClient)
	aggregator := score.NewAggregator(storageClient)
	battles := battle.NewManager(
		battle.Config{
			ReadyTimeout:   cfg.ReadyTimeout,
			BattleDuration: cfg.BattleDuration,
		},
		aggregator,
		storageClient,
		rewards,
		hub,
	)
	gifts := gift.NewService(ledger, storageClient, aggregator, cfg.GiftFeeRate)

	srv := &server{
		address: "0.0.0.0:" + cfg.Port,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins
			},
		},
		config:            cfg,
		cognitoPublicKeys: make(map[string]*rsa.PublicKey),
		storageClient:     storageClient,
		connections:       storageClient,
		notifier:          notifier,
		ledger:            ledger,
		gifts:             gifts,
		battles:           battles,
		hub:               hub,
	}
	srv.queue = matchmaking.NewQueue(
		matchmaking.Config{
			MaxWait:       cfg.MatchmakingMaxWait,
			SweepInterval: cfg.MatchmakingSweepInterval,
		},
		battles,
		srv.handleMatchFormed,
	)
	return srv
}

// Start method    starts the battle server
func (s *server) Start() error {
	s.loadCognitoPublicKeys()
	s.restoreActiveMatches()
	s.queue.Start()

	http.HandleFunc("POST /queue", s.handleEnqueue)
	http.HandleFunc("DELETE /queue/{ticketId}", s.handleDequeue)
	http.HandleFunc("GET /queue/{ticketId}", s.handleTicketStatus)
	http.HandleFunc("POST /matches/{matchId}/ready", s.handleMarkReady)
	http.HandleFunc("POST /matches/{matchId}/leave", s.handleLeave)
	http.HandleFunc("POST /matches/{matchId}/stop", s.handleForceStop)
	http.HandleFunc("GET /matches/{matchId}", s.handleMatchStatus)
	http.HandleFunc("POST /gifts", s.handleSendGift)
	http.HandleFunc("GET /wallet", s.handleWallet)
	http.HandleFunc("GET /live/{matchId}", s.handleLive)

	logging.Info("battle server started", zap.String("port", s.config.Port))
	return http.ListenAndServe(s.address, nil)
}

// restoreActiveMatches re-registers battles that were in progress when
// the server last stopped. Their expiry is derived again from the
// persisted start time, so restarts never extend a battle.
func (s *server) restoreActiveMatches() {
	ctx := context.Background()
	matches, err := s.storageClient.ListActiveMatches(ctx)
	if err != nil {
		logging.Error("failed to list active matches", zap.Error(err))
		return
	}
	for _, match := range matches {
		if err := s.battles.Restore(ctx, match); err != nil {
			logging.Error("failed to restore match",
				zap.String("match_id", match.Id),
				zap.Error(err),
			)
		}
	}
	if len(matches) > 0 {
		logging.Info("active matches restored", zap.Int("count", len(matches)))
	}
}

// handleMatchFormed hands a fresh match to the battle manager and
// notifies queued participants over their push connections. The queue
// invokes it while holding the bucket lock, so only the registration
// runs inline; delivery happens off the matchmaking path.
func (s *server) handleMatchFormed(match entities.Match) {
	s.battles.HandleMatch(match)
	go s.notifyMatchFound(match)
}

func (s *server) notifyMatchFound(match entities.Match) {
	ctx := context.Background()
	for _, userId := range match.Participants() {
		connection, err := s.connections.GetConnection(ctx, userId)
		if err != nil {
			continue
		}
		err = s.notifier.PushMatchFound(ctx, connection.ConnectionId, match)
		if err != nil {
			logging.Error("failed to push match found",
				zap.String("user_id", userId),
				zap.String("match_id", match.Id),
				zap.Error(err),
			)
		}
	}
}
