package api

import (
	"context"
	"database/sql"
	"errors"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"cvtailor/internal/auth"
	"cvtailor/internal/document"
	"cvtailor/internal/models"
	"cvtailor/internal/scraper"
	"cvtailor/internal/service/rewrite"
	"cvtailor/internal/service/tailor"
	"cvtailor/internal/worker"
)

// TailorManager runs a tailoring request through the worker pool.
type TailorManager interface {
	Tailor(worker.TailorRequest) (*models.TailorSession, error)
}

const previewLimit = 500

// Handler wires HTTP routes to the tailoring services.
type Handler struct {
	tailor         *tailor.Service
	auth           *auth.Service
	manager        TailorManager
	converter      *document.Converter
	limiter        *RateLimiter
	maxUploadBytes int64
	logger         *zap.Logger
}

// NewHandler constructs a Handler instance.
func NewHandler(tailorSvc *tailor.Service, authSvc *auth.Service, manager TailorManager, converter *document.Converter, limiter *RateLimiter, maxUploadBytes int64, logger *zap.Logger) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 16 << 20
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		tailor:         tailorSvc,
		auth:           authSvc,
		manager:        manager,
		converter:      converter,
		limiter:        limiter,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	if h.limiter != nil {
		api.Use(h.limiter.Middleware())
	}
	api.POST("/tailor", h.tailorCV)
	api.GET("/sessions/:id", h.getSession)
	api.GET("/download/:id", h.download)
	api.GET("/health", h.health)
}

func (h *Handler) tailorCV(c *gin.Context) {
	if c.Request.ContentLength > h.maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)

	file, err := c.FormFile("cv_file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cv_file is required"})
		return
	}
	if file.Size > h.maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}
	filename := filepath.Base(file.Filename)
	if !strings.EqualFold(filepath.Ext(filename), ".docx") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "only .docx files are supported"})
		return
	}
	if !looksLikeDocx(file) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "only .docx files are supported"})
		return
	}

	jobURL := strings.TrimSpace(c.PostForm("job_url"))
	jobText := strings.TrimSpace(c.PostForm("job_text"))
	if jobURL == "" && jobText == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "provide job_url or job_text"})
		return
	}
	if jobText == "" && !scraper.ValidateURL(jobURL) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job_url"})
		return
	}

	sessionID := uuid.NewString()
	uploadPath := h.tailor.UploadPath(sessionID, filename)
	if err := c.SaveUploadedFile(file, uploadPath); err != nil {
		h.logger.Error("save upload", zap.String("session", sessionID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save file failed"})
		return
	}

	session, err := h.manager.Tailor(worker.TailorRequest{
		Context:          c.Request.Context(),
		SessionID:        sessionID,
		UploadPath:       uploadPath,
		OriginalFilename: filename,
		JobURL:           jobURL,
		JobText:          jobText,
	})
	if err != nil {
		h.tailor.RemoveSessionFiles(sessionID)
		switch {
		case errors.Is(err, worker.ErrDispatcherBusy):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "server is busy, please retry"})
		case errors.Is(err, scraper.ErrNoJobDescription), errors.Is(err, worker.ErrJobDescriptionTooShort):
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not extract a job description, paste it as job_text"})
		case errors.Is(err, rewrite.ErrAllModelsExhausted):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "all models are busy, please retry in a few minutes"})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}

	token, err := h.auth.IssueToken(c.Request.Context(), session.ID)
	if err != nil {
		h.logger.Error("issue download token", zap.String("session", session.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue download token failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id":      session.ID,
		"download_token":  token,
		"original_cv":     session.OriginalText,
		"modified_cv":     session.ModifiedText,
		"match_score":     session.MatchScore,
		"changes_summary": session.ChangesSummary,
		"model_used":      session.ModelUsed,
		"job_description": truncate(session.JobDescription, previewLimit),
		"expires_at":      session.ExpiresAt,
	})
}

func (h *Handler) getSession(c *gin.Context) {
	session, ok := h.lookupSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *Handler) download(c *gin.Context) {
	session, ok := h.lookupSession(c)
	if !ok {
		return
	}
	token := c.Query("token")
	if err := h.auth.ValidateToken(c.Request.Context(), token, session.ID); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired download token"})
		return
	}

	base := strings.TrimSuffix(session.OriginalFilename, filepath.Ext(session.OriginalFilename))
	pdfPath, err := h.converter.ToPDF(c.Request.Context(), session.OutputPath, filepath.Dir(session.OutputPath))
	if err != nil {
		h.logger.Warn("pdf conversion failed, serving docx",
			zap.String("session", session.ID), zap.Error(err))
		c.FileAttachment(session.OutputPath, base+"_tailored.docx")
	} else {
		c.FileAttachment(pdfPath, base+"_tailored.pdf")
	}

	// downloads are one-shot; the row delete cascades the token
	go h.cleanupSession(session.ID)
}

func (h *Handler) cleanupSession(sessionID string) {
	if err := h.tailor.DeleteSession(context.Background(), sessionID); err != nil && !errors.Is(err, sql.ErrNoRows) {
		h.logger.Warn("delete session after download", zap.String("session", sessionID), zap.Error(err))
	}
	h.tailor.RemoveSessionFiles(sessionID)
}

func (h *Handler) lookupSession(c *gin.Context) (*models.TailorSession, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return nil, false
	}
	session, err := h.tailor.GetSession(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return nil, false
		}
		h.logger.Error("get session", zap.String("session", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup session failed"})
		return nil, false
	}
	return session, true
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// looksLikeDocx sniffs the upload's first bytes; a docx is a zip archive.
func looksLikeDocx(file *multipart.FileHeader) bool {
	f, err := file.Open()
	if err != nil {
		return false
	}
	defer f.Close()
	buf := make([]byte, 512)
	n, _ := f.Read(buf)
	return http.DetectContentType(buf[:n]) == "application/zip"
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
