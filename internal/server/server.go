// Package server exposes the analysis service over HTTP.
package server

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/foodgenie/foodgenie/internal/application"
	"github.com/foodgenie/foodgenie/internal/domain"
)

// AnalysisService is the application surface the HTTP layer depends on.
type AnalysisService interface {
	Analyze(ctx context.Context, req application.AnalyzeRequest) (domain.Verdict, error)
	History(ctx context.Context, userID string, limit int) ([]domain.Verdict, error)
}

// Options configures the HTTP server.
type Options struct {
	// AllowOrigins lists permitted CORS origins; empty allows all.
	AllowOrigins []string

	// RequestTimeout bounds each analyze request end to end.
	RequestTimeout time.Duration
}

// Server routes HTTP requests to the analysis service.
type Server struct {
	service AnalysisService
	log     *zap.Logger
	engine  *gin.Engine
	timeout time.Duration
}

// New builds the server and its routes.
func New(service AnalysisService, log *zap.Logger, opts Options) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		service: service,
		log:     log.Named("http"),
		engine:  engine,
		timeout: opts.RequestTimeout,
	}

	engine.Use(s.accessLog())

	corsConfig := cors.DefaultConfig()
	if len(opts.AllowOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else if len(opts.AllowOrigins) == 1 && opts.AllowOrigins[0] == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = opts.AllowOrigins
	}
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	engine.Use(cors.New(corsConfig))

	engine.GET("/healthz", s.handleHealth)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := engine.Group("/api/v1")
	v1.POST("/analyze", s.handleAnalyze)
	v1.GET("/users/:id/history", s.handleHistory)

	return s
}

// Handler returns the server as an http.Handler for net/http integration.
func (s *Server) Handler() http.Handler { return s.engine }

// analyzeRequest is the analyze endpoint's JSON body. The image arrives
// base64-encoded; the barcode is decoded client-side.
type analyzeRequest struct {
	UserID  string                   `json:"user_id"`
	Image   string                   `json:"image,omitempty"`
	Barcode string                   `json:"barcode,omitempty"`
	User    domain.UserHealthProfile `json:"user_profile"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleAnalyze(c *gin.Context) {
	var body analyzeRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	var image []byte
	if body.Image != "" {
		decoded, err := base64.StdEncoding.DecodeString(body.Image)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "image must be base64-encoded"})
			return
		}
		image = decoded
	}

	if len(image) == 0 && body.Barcode == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "either image or barcode is required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.timeout)
	defer cancel()

	verdict, err := s.service.Analyze(ctx, application.AnalyzeRequest{
		UserID:  body.UserID,
		Image:   image,
		Barcode: body.Barcode,
		User:    body.User,
	})
	if err != nil {
		s.writeAnalyzeError(c, err)
		return
	}

	c.JSON(http.StatusOK, verdict)
}

// writeAnalyzeError maps engine errors onto HTTP statuses. Expected
// outcomes get specific codes; everything else is an internal error.
func (s *Server) writeAnalyzeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNoNutritionData):
		c.JSON(http.StatusUnprocessableEntity, errorResponse{
			Error: "insufficient nutrition data: neither the label nor the barcode yielded readings",
		})
	case errors.Is(err, domain.ErrRequestDeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, errorResponse{Error: "analysis timed out"})
	default:
		s.log.Error("analysis failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func (s *Server) handleHistory(c *gin.Context) {
	userID := c.Param("id")

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "limit must be a non-negative integer"})
			return
		}
		limit = parsed
	}

	verdicts, err := s.service.History(c.Request.Context(), userID, limit)
	if err != nil {
		s.log.Error("history read failed", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	if verdicts == nil {
		verdicts = []domain.Verdict{}
	}

	c.JSON(http.StatusOK, gin.H{"verdicts": verdicts})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// accessLog emits one structured line per request.
func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)))
	}
}
