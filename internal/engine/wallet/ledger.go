package wallet

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/clash-vn/clasharena/internal/domains/entities"
	"github.com/clash-vn/clasharena/pkg/logging"
	"go.uber.org/zap"
)

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidFeeRate    = errors.New("invalid fee rate")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Store is the durable balance store behind the ledger. A missing
// wallet reads as a zero-balance wallet. ApplyTransfer must apply the
// debit, the credit and the retained fee as one atomic unit.
type Store interface {
	GetWallet(ctx context.Context, userId string) (entities.Wallet, error)
	CreditWallet(ctx context.Context, userId string, amount int64) (entities.Wallet, error)
	ApplyTransfer(ctx context.Context, senderId, receiverId string, debit, credit, fee int64) error
}

type Receipt struct {
	SenderId      string    `json:"senderId"`
	ReceiverId    string    `json:"receiverId"`
	Amount        int64     `json:"amount"`
	Credited      int64     `json:"credited"`
	Fee           int64     `json:"fee"`
	SenderBalance int64     `json:"senderBalance"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Ledger is the only component allowed to move balances. Transfers
// from one sender are serialized on a per-sender mutex so a balance
// check can never be passed twice by funds that cover it once;
// unrelated senders proceed in parallel.
type Ledger struct {
	store Store
	locks sync.Map // userId -> *sync.Mutex
}

func NewLedger(store Store) *Ledger {
	return &Ledger{store: store}
}

func (l *Ledger) GetBalance(ctx context.Context, userId string) (int64, error) {
	w, err := l.store.GetWallet(ctx, userId)
	if err != nil {
		return 0, fmt.Errorf("failed to get wallet: %w", err)
	}
	return w.Balance, nil
}

// Deposit credits a wallet, creating it if absent. Used by the top-up
// path; gifts never enter through here.
func (l *Ledger) Deposit(ctx context.Context, userId string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	w, err := l.store.CreditWallet(ctx, userId, amount)
	if err != nil {
		return 0, fmt.Errorf("failed to credit wallet: %w", err)
	}
	return w.Balance, nil
}

// Transfer atomically debits the sender by amount and credits the
// receiver by amount minus the platform fee. InsufficientFunds is an
// expected outcome and leaves both wallets untouched.
func (l *Ledger) Transfer(
	ctx context.Context,
	senderId,
	receiverId string,
	amount int64,
	feeRate float64,
) (Receipt, error) {
	if amount <= 0 {
		return Receipt{}, ErrInvalidAmount
	}
	// A rate outside [0,1] would credit more than the debit or compute
	// a negative credit.
	if feeRate < 0 || feeRate > 1 {
		return Receipt{}, ErrInvalidFeeRate
	}

	lock := l.senderLock(senderId)
	lock.Lock()
	defer lock.Unlock()

	sender, err := l.store.GetWallet(ctx, senderId)
	if err != nil {
		return Receipt{}, fmt.Errorf("failed to get sender wallet: %w", err)
	}
	if sender.Balance < amount {
		return Receipt{}, ErrInsufficientFunds
	}

	credited := int64(math.Round(float64(amount) * (1 - feeRate)))
	fee := amount - credited

	err = l.store.ApplyTransfer(ctx, senderId, receiverId, amount, credited, fee)
	if err != nil {
		return Receipt{}, fmt.Errorf("failed to apply transfer: %w", err)
	}
	logging.Debug("transfer applied",
		zap.String("sender_id", senderId),
		zap.String("receiver_id", receiverId),
		zap.Int64("amount", amount),
		zap.Int64("fee", fee),
	)

	return Receipt{
		SenderId:      senderId,
		ReceiverId:    receiverId,
		Amount:        amount,
		Credited:      credited,
		Fee:           fee,
		SenderBalance: sender.Balance - amount,
		CreatedAt:     time.Now(),
	}, nil
}

func (l *Ledger) senderLock(userId string) *sync.Mutex {
	v, _ := l.locks.LoadOrStore(userId, &sync.Mutex{})
	return v.(*sync.Mutex)
}
