package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mkurev/avagate/internal/adapters/ws"
	"github.com/mkurev/avagate/internal/app"
	"github.com/mkurev/avagate/internal/config"
	"github.com/mkurev/avagate/internal/core"
	"github.com/mkurev/avagate/internal/domain"
)

func genClientToken() string {
	return uuid.NewString()
}

// ClientTokenMiddleware gives anonymous clients a stable session token
// so a reconnect lands on the same session id.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, ctl *ws.Controller, storage core.Storage, router *app.Router) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("AvagateSessions", store))
	r.Use(ClientTokenMiddleware())

	if cfg.StaticPath != "" {
		r.Static("/static", cfg.StaticPath)
		r.GET("/", func(c *gin.Context) {
			c.File(cfg.StaticPath + "/index.html")
		})
	}

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	api := r.Group("/api")

	api.GET("/ws/:session_id", func(c *gin.Context) {
		ctl.Handle(ctx, c)
	})

	api.GET("/conversations/:session_id", historyHandler(storage))
	api.POST("/conversations/:session_id/end", endHandler(router))

	return r
}

type messageView struct {
	ID        string  `json:"id"`
	Sender    string  `json:"sender"`
	Content   string  `json:"content"`
	Kind      string  `json:"message_type"`
	Intent    string  `json:"intent,omitempty"`
	Sentiment float64 `json:"sentiment"`
	Timestamp string  `json:"timestamp"`
}

func historyHandler(storage core.Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("session_id")
		limit := 50
		if q, ok := c.GetQuery("limit"); ok {
			if n, err := strconv.Atoi(q); err == nil && n > 0 {
				limit = n
			}
		}

		conv, err := storage.FindActiveConversation(c.Request.Context(), sessionID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "storage unavailable"})
			return
		}
		if conv == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
			return
		}

		msgs, err := storage.ListMessages(c.Request.Context(), conv.ID, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "storage unavailable"})
			return
		}

		views := make([]messageView, 0, len(msgs))
		for _, m := range msgs {
			views = append(views, messageView{
				ID:        m.ID,
				Sender:    string(m.Sender),
				Content:   m.Content,
				Kind:      string(m.Kind),
				Intent:    m.Intent,
				Sentiment: m.Sentiment,
				Timestamp: m.CreatedAt.UTC().Format(time.RFC3339),
			})
		}

		c.JSON(http.StatusOK, gin.H{
			"conversation_id": conv.ID,
			"session_id":      conv.SessionID,
			"avatar_id":       conv.AvatarID,
			"status":          string(conv.Status),
			"messages":        views,
		})
	}
}

func endHandler(router *app.Router) gin.HandlerFunc {
	return func(c *gin.Context) {
		sid := core.SessionID(c.Param("session_id"))
		err := router.EndConversation(c.Request.Context(), sid)
		if errors.Is(err, app.ErrNoConversation) {
			c.JSON(http.StatusNotFound, gin.H{"error": "active conversation not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not end conversation"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": string(domain.ConversationEnded)})
	}
}
