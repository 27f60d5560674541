package routes

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"knowledge-base-platform/middleware"
	"knowledge-base-platform/models"
	"knowledge-base-platform/services"
	"knowledge-base-platform/utils"
)

// SetupChatRoutes mounts the conversational endpoints: blocking send,
// SSE streaming, and session history.
func SetupChatRoutes(router *gin.Engine, svc *services.ChatService, auth gin.HandlerFunc) {
	chat := router.Group("/chat")
	chat.Use(auth, middleware.EnrichTrace())

	chat.POST("/send", func(c *gin.Context) {
		var req models.ChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		resp, err := svc.Chat(c.Request.Context(), middleware.GetUserID(c), req)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	})

	chat.POST("/stream", func(c *gin.Context) {
		var req models.ChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		flusher, _ := c.Writer.(http.Flusher)
		emit := func(ev models.StreamEvent) error {
			payload, err := json.Marshal(ev)
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", ev.Type, payload); err != nil {
				return err
			}
			if flusher != nil {
				flusher.Flush()
			}
			return nil
		}

		svc.ChatStream(c.Request.Context(), middleware.GetUserID(c), req, emit)
	})

	chat.GET("/sessions/:id", func(c *gin.Context) {
		history, err := svc.History(c.Request.Context(), middleware.GetUserID(c), c.Param("id"))
		if err != nil {
			respondServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, history)
	})
}
