package routes

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"knowledge-base-platform/middleware"
	"knowledge-base-platform/models"
	"knowledge-base-platform/services"
	"knowledge-base-platform/utils"
)

// SetupKnowledgeRoutes mounts the document lifecycle and query API.
func SetupKnowledgeRoutes(router *gin.Engine, svc *services.KnowledgeService, auth gin.HandlerFunc) {
	kb := router.Group("/knowledge")
	kb.Use(auth, middleware.EnrichTrace())

	kb.POST("/documents", func(c *gin.Context) {
		var req models.CreateDocumentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		doc, err := svc.AddDocument(c.Request.Context(), middleware.GetUserID(c), req)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		c.JSON(http.StatusCreated, doc)
	})

	kb.GET("/documents", func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

		docs, err := svc.ListDocuments(c.Request.Context(), middleware.GetUserID(c), limit, offset)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"documents": docs, "count": len(docs)})
	})

	kb.DELETE("/documents", func(c *gin.Context) {
		n, err := svc.PurgeDocuments(c.Request.Context(), middleware.GetUserID(c))
		if err != nil {
			respondServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Knowledge base purged", "deleted": n})
	})

	kb.GET("/documents/:id", func(c *gin.Context) {
		doc, err := svc.GetDocument(c.Request.Context(), c.Param("id"), middleware.GetUserID(c))
		if err != nil {
			respondServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, doc)
	})

	kb.DELETE("/documents/:id", func(c *gin.Context) {
		if err := svc.DeleteDocument(c.Request.Context(), c.Param("id"), middleware.GetUserID(c)); err != nil {
			respondServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Document deleted"})
	})

	kb.POST("/documents/:id/reprocess", func(c *gin.Context) {
		doc, err := svc.ReprocessDocument(c.Request.Context(), c.Param("id"), middleware.GetUserID(c))
		if err != nil {
			respondServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, doc)
	})

	kb.POST("/query", func(c *gin.Context) {
		var req models.QueryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		results, err := svc.Query(c.Request.Context(), middleware.GetUserID(c), req)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"results": results, "count": len(results)})
	})

	kb.POST("/rag-query", func(c *gin.Context) {
		var req models.QueryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		rc, err := svc.RAGQuery(c.Request.Context(), middleware.GetUserID(c), req)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, rc)
	})
}

// respondServiceError maps service failures onto HTTP statuses.
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrDocumentNotFound):
		utils.RespondWithNotFound(c, "Document not found")
	case services.IsCallerError(err):
		utils.RespondWithBadRequest(c, err.Error(), nil)
	case errors.Is(err, services.ErrIndexUnavailable):
		utils.RespondWithUnavailable(c, "Search index temporarily unavailable")
	case errors.Is(err, services.ErrGeneratorUnavailable):
		utils.RespondWithUnavailable(c, "Generation service temporarily unavailable")
	case errors.Is(err, services.ErrAuth):
		utils.RespondWithError(c, http.StatusBadGateway, "upstream_auth_failed",
			"Upstream AI service rejected our credentials", nil)
	default:
		utils.RespondWithInternalError(c, "Internal server error", nil)
	}
}
