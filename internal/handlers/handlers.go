package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"pongarena/internal/auth"
	"pongarena/internal/netwrk"
	"pongarena/internal/server"
	"pongarena/internal/store"
)

const (
	defaultHistory = 20
	maxHistory     = 200
)

// History is the read side of the match table.
type History interface {
	Recent(ctx context.Context, limit int) ([]store.Summary, error)
}

type Handler struct {
	Server *server.Server
	// History is nil when no database is configured.
	History History
}

type queueInfo struct {
	Kind    string `json:"kind"`
	Label   string `json:"label"`
	Waiting int    `json:"waiting"`
}

func (h *Handler) PingHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}

func (h *Handler) Queues(c *gin.Context) {
	sizes, err := h.Server.Matchmaker().Sizes(c.Request.Context())
	if err != nil {
		slog.Error("Error reading queue sizes", slog.Any("error", err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "matchmaking unavailable"})
		return
	}

	title := cases.Title(language.English)
	queues := make([]queueInfo, 0, len(sizes))
	for _, kind := range h.Server.Matchmaker().Kinds() {
		queues = append(queues, queueInfo{
			Kind:    string(kind),
			Label:   title.String(strings.ToLower(string(kind))),
			Waiting: sizes[kind],
		})
	}
	c.JSON(http.StatusOK, gin.H{"queues": queues})
}

func (h *Handler) Matches(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"matches": h.Server.Matches()})
}

func (h *Handler) MatchHistory(c *gin.Context) {
	if h.History == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "match history is not enabled"})
		return
	}

	limit := defaultHistory
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive number"})
			return
		}
		limit = min(n, maxHistory)
	}

	matches, err := h.History.Recent(c.Request.Context(), limit)
	if err != nil {
		slog.Error("Error querying match history", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load match history"})
		return
	}
	if matches == nil {
		matches = []store.Summary{}
	}
	c.JSON(http.StatusOK, gin.H{"matches": matches})
}

func (h *Handler) Me(c *gin.Context) {
	session, ok := auth.FromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.JSON(http.StatusOK, session)
}

// WsHandler upgrades the request and serves the socket until it closes.
func (h *Handler) WsHandler(c *gin.Context) {
	session, ok := auth.FromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	conn, err := netwrk.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the error response.
		slog.Debug("websocket upgrade failed", slog.String("player_id", session.PlayerID), slog.Any("error", err))
		return
	}
	h.Server.ServeWS(session, conn)
}
