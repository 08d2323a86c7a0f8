package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/clash-vn/clasharena/internal/engine/battle"
	"github.com/clash-vn/clasharena/internal/engine/matchmaking"
	"github.com/clash-vn/clasharena/internal/engine/wallet"
	"github.com/clash-vn/clasharena/pkg/logging"
	"go.uber.org/zap"
)

type errorResponse struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

type enqueueRequest struct {
	PartyIds []string `json:"partyIds"`
	TeamSize int      `json:"teamSize"`
	Region   string   `json:"region"`
}

type enqueueResponse struct {
	TicketId string `json:"ticketId"`
}

type ticketStatusResponse struct {
	Status  string `json:"status"`
	MatchId string `json:"matchId,omitempty"`
}

type sendGiftRequest struct {
	ReceiverId string `json:"receiverId"`
	Amount     int64  `json:"amount"`
	MatchId    string `json:"matchId,omitempty"`
	Tier       string `json:"tier,omitempty"`
}

type walletResponse struct {
	Balance int64 `json:"balance"`
}

func (s *server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	userId, err := s.auth(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrStatusInvalidRequest)
		return
	}
	if len(req.PartyIds) == 0 {
		req.PartyIds = []string{userId}
	} else if !contains(req.PartyIds, userId) {
		writeError(w, http.StatusForbidden, ErrStatusForbidden)
		return
	}

	ticketId, err := s.queue.Enqueue(req.PartyIds, req.TeamSize, req.Region)
	switch {
	case errors.Is(err, matchmaking.ErrAlreadyQueued):
		writeError(w, http.StatusConflict, ErrStatusAlreadyQueued)
		return
	case errors.Is(err, matchmaking.ErrInvalidTicket):
		writeError(w, http.StatusBadRequest, ErrStatusInvalidRequest)
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, ErrStatusInternal)
		return
	}
	writeJSON(w, http.StatusCreated, enqueueResponse{TicketId: ticketId})
}

func (s *server) handleDequeue(w http.ResponseWriter, r *http.Request) {
	if _, err := s.auth(r); err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	err := s.queue.Dequeue(r.PathValue("ticketId"))
	if errors.Is(err, matchmaking.ErrTicketNotFound) {
		writeError(w, http.StatusNotFound, ErrStatusTicketNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleTicketStatus(w http.ResponseWriter, r *http.Request) {
	if _, err := s.auth(r); err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	status, matchId, err := s.queue.Status(r.PathValue("ticketId"))
	if errors.Is(err, matchmaking.ErrTicketNotFound) {
		writeError(w, http.StatusNotFound, ErrStatusTicketNotFound)
		return
	}
	writeJSON(w, http.StatusOK, ticketStatusResponse{
		Status:  string(status),
		MatchId: matchId,
	})
}

func (s *server) handleMarkReady(w http.ResponseWriter, r *http.Request) {
	userId, err := s.auth(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	err = s.battles.MarkReady(r.PathValue("matchId"), userId)
	switch {
	case errors.Is(err, battle.ErrMatchNotFound):
		writeError(w, http.StatusNotFound, ErrStatusMatchNotFound)
	case errors.Is(err, battle.ErrNotParticipant):
		writeError(w, http.StatusForbidden, ErrStatusNotParticipant)
	case err != nil:
		writeError(w, http.StatusInternalServerError, ErrStatusInternal)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *server) handleLeave(w http.ResponseWriter, r *http.Request) {
	userId, err := s.auth(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	err = s.battles.Leave(r.PathValue("matchId"), userId)
	switch {
	case errors.Is(err, battle.ErrMatchNotFound):
		writeError(w, http.StatusNotFound, ErrStatusMatchNotFound)
	case errors.Is(err, battle.ErrNotParticipant):
		writeError(w, http.StatusForbidden, ErrStatusNotParticipant)
	case errors.Is(err, battle.ErrMatchNotCancelable):
		writeError(w, http.StatusConflict, ErrStatusInvalidRequest)
	case err != nil:
		writeError(w, http.StatusInternalServerError, ErrStatusInternal)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *server) handleForceStop(w http.ResponseWriter, r *http.Request) {
	userId, err := s.auth(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if !s.isAdmin(userId) {
		writeError(w, http.StatusForbidden, ErrStatusForbidden)
		return
	}
	matchId := r.PathValue("matchId")
	err = s.battles.ForceStop(matchId)
	switch {
	case errors.Is(err, battle.ErrMatchNotFound):
		writeError(w, http.StatusNotFound, ErrStatusMatchNotFound)
	case errors.Is(err, battle.ErrMatchNotInProgress):
		writeError(w, http.StatusConflict, ErrStatusInvalidRequest)
	case err != nil:
		writeError(w, http.StatusInternalServerError, ErrStatusInternal)
	default:
		logging.Info("match force stopped",
			zap.String("match_id", matchId),
			zap.String("admin_id", userId),
		)
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *server) handleMatchStatus(w http.ResponseWriter, r *http.Request) {
	if _, err := s.auth(r); err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	snapshot, err := s.battles.Status(r.Context(), r.PathValue("matchId"))
	if errors.Is(err, battle.ErrMatchNotFound) {
		writeError(w, http.StatusNotFound, ErrStatusMatchNotFound)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (s *server) handleSendGift(w http.ResponseWriter, r *http.Request) {
	userId, err := s.auth(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var req sendGiftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ReceiverId == "" {
		writeError(w, http.StatusBadRequest, ErrStatusInvalidRequest)
		return
	}

	// Tier only drives client-side animation; every gift scores by raw
	// amount.
	event, err := s.gifts.SendGift(r.Context(), userId, req.ReceiverId, req.Amount, req.MatchId)
	switch {
	case errors.Is(err, wallet.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, ErrStatusInvalidAmount)
		return
	case errors.Is(err, wallet.ErrInsufficientFunds):
		writeError(w, http.StatusPaymentRequired, ErrStatusInsufficientFunds)
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, ErrStatusInternal)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

func (s *server) handleWallet(w http.ResponseWriter, r *http.Request) {
	userId, err := s.auth(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	balance, err := s.ledger.GetBalance(r.Context(), userId)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrStatusInternal)
		return
	}
	writeJSON(w, http.StatusOK, walletResponse{Balance: balance})
}

// handleLive upgrades to a websocket and streams match updates until
// the client disconnects.
func (s *server) handleLive(w http.ResponseWriter, r *http.Request) {
	if _, err := s.auth(r); err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(err.Error()))
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error("failed to upgrade connection", zap.Error(err))
		return
	}
	defer conn.Close()

	matchId := r.PathValue("matchId")
	s.hub.subscribe(matchId, conn)
	defer s.hub.unsubscribe(matchId, conn)

	if snapshot, err := s.battles.Status(r.Context(), matchId); err == nil {
		conn.WriteJSON(snapshot)
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			logging.Info("connection closed",
				zap.String("remote_address", conn.RemoteAddr().String()),
				zap.Error(err),
			)
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{
		Type:  "error",
		Error: code,
	})
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
