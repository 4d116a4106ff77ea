package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Dosada05/tournament-engine/brackets"
	"github.com/Dosada05/tournament-engine/services"
	"github.com/gorilla/websocket"
)

const clientSendBuffer = 256

type WebSocketHandler struct {
	hub        *brackets.Hub
	generation services.GenerationService
	upgrader   websocket.Upgrader
	logger     *slog.Logger
}

// NewWebSocketHandler builds the live bracket feed. checkOrigin may be nil to
// accept every origin.
func NewWebSocketHandler(hub *brackets.Hub, generation services.GenerationService, checkOrigin func(r *http.Request) bool, logger *slog.Logger) *WebSocketHandler {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &WebSocketHandler{
		hub:        hub,
		generation: generation,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		logger: logger,
	}
}

// ServeWs handles GET /ws/tournaments/{tournamentID}. The client first
// receives a snapshot of the bracket and then every event for the room.
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	view, err := h.generation.BracketView(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.Int("tournament_id", tournamentID), slog.Any("error", err))
		return
	}

	room := brackets.RoomForTournament(tournamentID)
	client := &brackets.Client{
		Hub:  h.hub,
		Conn: conn,
		Send: make(chan []byte, clientSendBuffer),
		Room: room,
	}

	snapshot, err := json.Marshal(brackets.WebSocketMessage{Type: brackets.EventBracketSnapshot, Payload: view, RoomID: room})
	if err != nil {
		h.logger.Error("failed to encode bracket snapshot", slog.Int("tournament_id", tournamentID), slog.Any("error", err))
		conn.Close()
		return
	}
	client.Send <- snapshot

	h.hub.Register <- client
	go client.WritePump()
	go client.ReadPump()

	h.logger.Debug("websocket client connected", slog.String("room", room))
}
