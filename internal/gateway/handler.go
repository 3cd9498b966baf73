package gateway

import (
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/arcanastream/reading-orchestrator/internal/auth"
	"github.com/arcanastream/reading-orchestrator/internal/domain"
	"github.com/arcanastream/reading-orchestrator/internal/orchestration"
	"github.com/arcanastream/reading-orchestrator/internal/store"
	"github.com/arcanastream/reading-orchestrator/internal/stream"
)

// Handler handles HTTP requests for the gateway layer
type Handler struct {
	service    *orchestration.Service
	store      *store.ReadingStore
	jwtManager *auth.JWTManager
	pool       *pgxpool.Pool
}

// NewHandler creates a new gateway handler
func NewHandler(service *orchestration.Service, readingStore *store.ReadingStore, jwtManager *auth.JWTManager, pool *pgxpool.Pool) *Handler {
	return &Handler{
		service:    service,
		store:      readingStore,
		jwtManager: jwtManager,
		pool:       pool,
	}
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse represents a login response
type LoginResponse struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
}

// Login godoc
// @Summary User login
// @Description Authenticate user and return JWT token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login credentials"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	var userID string
	var hashedPassword string
	err := h.pool.QueryRow(c.Request.Context(),
		`SELECT id, hashed_password FROM users WHERE email = $1`,
		req.Email,
	).Scan(&userID, &hashedPassword)

	if err != nil {
		log.Printf(`{"level":"warn","message":"User not found","email":"%s"}`, req.Email)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(req.Password)); err != nil {
		log.Printf(`{"level":"warn","message":"Invalid password","email":"%s"}`, req.Email)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	token, err := h.jwtManager.GenerateToken(c.Request.Context(), userID, req.Email, 24*time.Hour)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		Token:  token,
		UserID: userID,
	})
}

// RefreshResponse represents a token refresh response
type RefreshResponse struct {
	Token string `json:"token"`
}

// Refresh godoc
// @Summary Refresh JWT token
// @Description Exchange a valid token for a fresh one with a new expiry
// @Tags auth
// @Produce json
// @Success 200 {object} RefreshResponse
// @Failure 401 {object} map[string]string
// @Security BearerAuth
// @Router /auth/refresh [post]
func (h *Handler) Refresh(c *gin.Context) {
	const prefix = "Bearer "
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, prefix) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing bearer token"})
		return
	}

	token, err := h.jwtManager.RefreshToken(c.Request.Context(), strings.TrimPrefix(header, prefix), 24*time.Hour)
	if err != nil {
		log.Printf(`{"level":"warn","message":"Token refresh rejected","error":"%v"}`, err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
		return
	}

	c.JSON(http.StatusOK, RefreshResponse{Token: token})
}

// StreamReadingRequest represents a streaming reading request
type StreamReadingRequest struct {
	Question    string          `json:"question"`
	SpreadType  string          `json:"spread_type"`
	UserProfile *domain.Profile `json:"user_profile"`
	SourcePage  string          `json:"source_page"`
}

// StreamReading godoc
// @Summary Stream a tarot reading
// @Description Run the reading pipeline and stream progress as Server-Sent Events
// @Tags readings
// @Accept json
// @Produce text/event-stream
// @Param request body StreamReadingRequest true "Reading request"
// @Success 200 {string} string "SSE stream"
// @Failure 400 {object} map[string]string
// @Router /tarot/reading/stream [post]
func (h *Handler) StreamReading(c *gin.Context) {
	var req StreamReadingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	// Input validation happens before the first streamed byte so bad
	// requests get a plain HTTP status instead of an error event.
	if strings.TrimSpace(req.Question) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Question must not be empty"})
		return
	}

	userID := c.GetString(auth.UserIDKey)
	if userID == "" {
		userID = "anonymous"
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	emit := func(ev stream.Event) error {
		return stream.WriteSSE(c.Writer, ev)
	}

	h.service.Run(c.Request.Context(), orchestration.Request{
		Question:   req.Question,
		UserID:     userID,
		SpreadType: req.SpreadType,
		Profile:    req.UserProfile,
		SourcePage: req.SourcePage,
	}, emit)
}

// GetReading godoc
// @Summary Get a completed reading
// @Description Fetch one persisted reading by id
// @Tags readings
// @Produce json
// @Param id path string true "Reading ID"
// @Success 200 {object} orchestration.ReadingRecord
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /tarot/readings/{id} [get]
func (h *Handler) GetReading(c *gin.Context) {
	id := c.Param("id")

	rec, err := h.store.GetReading(c.Request.Context(), id)
	if err != nil {
		if err == store.ErrNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Reading not found"})
			return
		}
		log.Printf(`{"level":"error","message":"Failed to load reading","reading_id":"%s","error":"%v"}`, id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load reading"})
		return
	}

	userID := c.GetString(auth.UserIDKey)
	if rec.UserID != userID && rec.UserID != "anonymous" {
		c.JSON(http.StatusNotFound, gin.H{"error": "Reading not found"})
		return
	}

	c.JSON(http.StatusOK, rec)
}

// ListReadings godoc
// @Summary List reading history
// @Description List the authenticated user's completed readings, newest first
// @Tags readings
// @Produce json
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {array} store.ReadingSummary
// @Security BearerAuth
// @Router /tarot/readings [get]
func (h *Handler) ListReadings(c *gin.Context) {
	userID := c.GetString(auth.UserIDKey)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}

	summaries, err := h.store.ListReadings(c.Request.Context(), userID, limit, offset)
	if err != nil {
		log.Printf(`{"level":"error","message":"Failed to list readings","user_id":"%s","error":"%v"}`, userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list readings"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"readings": summaries, "count": len(summaries)})
}
