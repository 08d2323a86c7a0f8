package server

import (
	"sync"

	"github.com/clash-vn/clasharena/internal/engine/battle"
	"github.com/clash-vn/clasharena/pkg/logging"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type matchUpdateMessage struct {
	Type   string        `json:"type"`
	Update battle.Update `json:"update"`
}

// hub fans match updates out to the websocket subscribers of each
// match. The same state is observable by polling GetMatchStatus.
type hub struct {
	mu   sync.Mutex
	subs map[string]map[*websocket.Conn]bool
}

func newHub() *hub {
	return &hub{
		subs: make(map[string]map[*websocket.Conn]bool),
	}
}

func (h *hub) subscribe(matchId string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.subs[matchId]
	if !ok {
		conns = make(map[*websocket.Conn]bool)
		h.subs[matchId] = conns
	}
	conns[conn] = true
}

func (h *hub) unsubscribe(matchId string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.subs[matchId]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.subs, matchId)
		}
	}
}

// PublishMatchUpdate implements battle.Publisher.
func (h *hub) PublishMatchUpdate(update battle.Update) {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.subs[update.MatchId]))
	for conn := range h.subs[update.MatchId] {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	msg := matchUpdateMessage{
		Type:   "match_update",
		Update: update,
	}
	for _, conn := range conns {
		if err := conn.WriteJSON(msg); err != nil {
			logging.Error("couldn't push match update",
				zap.String("match_id", update.MatchId),
				zap.Error(err),
			)
			h.unsubscribe(update.MatchId, conn)
			conn.Close()
		}
	}
}
