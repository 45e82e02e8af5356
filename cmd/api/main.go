package main

import (
	"context"
	"errors"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"campusattend/internal/attendance"
	"campusattend/internal/auth"
	"campusattend/internal/config"
	"campusattend/internal/directory"
	"campusattend/internal/discovery"
	"campusattend/internal/geo"
	"campusattend/internal/httpmiddleware"
	"campusattend/internal/metrics"
	"campusattend/internal/queue"
	"campusattend/internal/session"
	"campusattend/internal/store"
)

func main() {
	cfg := config.Load()

	logger := newLogger(cfg.Env)
	defer logger.Sync()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, logger); err != nil {
		logger.Fatal("http server failed", zap.Error(err))
	}
}

func runHTTP(cfg config.App, logger *zap.Logger) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		logger.Warn("db not reachable", zap.Error(err))
	}
	defer func() {
		if db != nil {
			_ = db.Close()
		}
	}()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "campusattend:claims")
	}

	dir := directory.NewPG(db.Client)
	registry := session.NewService(session.NewRepository(db.Client), dir)
	classifier := attendance.NewClassifier(cfg.GeofenceRadiusM, cfg.OnTimeWindow)
	claimRepo := attendance.NewRepository(db.Client)
	ledger := attendance.NewService(claimRepo, registry, dir, classifier)
	disco := discovery.NewService(registry, claimRepo, dir, cfg.OnTimeWindow)
	ctx := context.Background()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(logger, "/healthz", "/metrics"))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db.Healthy(c.Request.Context())
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	// Token mint for the portal frontends. Portal account auth lives
	// elsewhere; this endpoint trusts its caller the way the rest of the
	// portal does.
	r.POST("/v1/auth/token", func(c *gin.Context) {
		var req struct {
			Subject string `json:"subject" binding:"required"`
			Role    string `json:"role" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		tokens, err := auth.Issue(req.Subject, req.Role, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"access_token":  tokens.AccessToken,
			"refresh_token": tokens.RefreshToken,
			"expires_at":    tokens.AccessExp.Unix(),
		})
	})

	authGroup := r.Group("/v1", auth.Bearer(cfg.JWTSigningKey, cfg.JWTIssuer))
	presenter := authGroup.Group("", auth.RequireRole(auth.RolePresenter))
	participant := authGroup.Group("", auth.RequireRole(auth.RoleParticipant))

	presenter.POST("/sessions", func(c *gin.Context) {
		var req struct {
			CourseID string     `json:"course_id" binding:"required"`
			StartsAt time.Time  `json:"starts_at" binding:"required"`
			EndsAt   time.Time  `json:"ends_at" binding:"required"`
			Anchor   *geo.Point `json:"anchor" binding:"required"`
			Room     string     `json:"room"`
			Topic    string     `json:"topic"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		claims, _ := auth.FromContext(c)

		sess, err := registry.Open(c.Request.Context(), session.OpenParams{
			CourseID:    req.CourseID,
			PresenterID: claims.Subject,
			StartsAt:    req.StartsAt,
			EndsAt:      req.EndsAt,
			Anchor:      req.Anchor,
			Room:        req.Room,
			Topic:       req.Topic,
		})
		if err != nil {
			sessionError(c, err)
			return
		}
		metrics.SessionsOpened.Inc()
		c.JSON(http.StatusCreated, gin.H{"session_id": sess.ID, "code": sess.Code})
	})

	presenter.POST("/sessions/:id/close", func(c *gin.Context) {
		claims, _ := auth.FromContext(c)
		if err := registry.Close(c.Request.Context(), c.Param("id"), claims.Subject); err != nil {
			sessionError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	presenter.GET("/sessions/:id/claims", func(c *gin.Context) {
		claims, _ := auth.FromContext(c)
		sess, err := registry.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			sessionError(c, err)
			return
		}
		if sess.PresenterID != claims.Subject {
			c.JSON(http.StatusForbidden, gin.H{"error": "not the session presenter"})
			return
		}
		records, err := ledger.ListBySession(c.Request.Context(), sess.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		stats, err := redisClient.SessionStats(c.Request.Context(), sess.ID)
		if err != nil {
			logger.Warn("session stats unavailable", zap.String("session_id", sess.ID), zap.Error(err))
			stats = nil
		}
		c.JSON(http.StatusOK, gin.H{"session": sess, "claims": records, "stats": stats})
	})

	participant.POST("/claims", func(c *gin.Context) {
		var req struct {
			SessionID       string     `json:"session_id"`
			Code            string     `json:"code"`
			Location        *geo.Point `json:"location" binding:"required"`
			ClientTimestamp time.Time  `json:"client_timestamp"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.SessionID == "" && req.Code == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "session_id or code required"})
			return
		}
		claims, _ := auth.FromContext(c)

		// The server clock classifies; the client's is audit-only.
		submittedAt := time.Now().UTC()
		if !req.ClientTimestamp.IsZero() {
			if skew := submittedAt.Sub(req.ClientTimestamp); skew > 2*time.Minute || skew < -2*time.Minute {
				logger.Info("client clock skew",
					zap.String("participant_id", claims.Subject),
					zap.Duration("skew", skew))
			}
		}

		claim, err := ledger.Submit(c.Request.Context(), attendance.SubmitInput{
			SessionID:     req.SessionID,
			Code:          req.Code,
			ParticipantID: claims.Subject,
			Location:      *req.Location,
			SubmittedAt:   submittedAt,
		})
		if err != nil {
			claimError(c, err)
			return
		}

		metrics.ClaimsAccepted.WithLabelValues(string(claim.Status)).Inc()
		if err := q.Publish(ctx, queue.Message{Type: "claim", Body: []byte(claim.ID)}); err != nil {
			logger.Warn("queue publish failed", zap.Error(err))
		}

		c.JSON(http.StatusCreated, gin.H{
			"status":              claim.Status,
			"weight":              claim.Status.Weight(),
			"distance_m":          int(math.Round(claim.DistanceM)),
			"minutes_since_start": claim.MinutesSinceStart,
		})
	})

	participant.GET("/claims", func(c *gin.Context) {
		claims, _ := auth.FromContext(c)
		to := time.Now().UTC()
		from := to.AddDate(0, 0, -30)
		if v := c.Query("from"); v != "" {
			if parsed, err := time.Parse(time.RFC3339, v); err == nil {
				from = parsed
			}
		}
		if v := c.Query("to"); v != "" {
			if parsed, err := time.Parse(time.RFC3339, v); err == nil {
				to = parsed
			}
		}
		records, err := ledger.ListByParticipant(c.Request.Context(), claims.Subject, from, to)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"claims": records})
	})

	participant.GET("/sessions/active", func(c *gin.Context) {
		claims, _ := auth.FromContext(c)
		metrics.DiscoveryPolls.Inc()
		views, err := disco.Poll(c.Request.Context(), claims.Subject, c.QueryArray("course_id"), time.Now().UTC())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"sessions": views})
	})

	// Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server forced shutdown", zap.Error(err))
	}

	logger.Info("server exited")
	return nil
}

// sessionError maps registry errors to HTTP responses for the presenter.
func sessionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrInvalidTimeRange):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, session.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, session.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, session.ErrCodeGenerationExhausted):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// claimError maps ledger errors to HTTP responses. Every rejection names its
// reason so the participant knows whether to retry, move closer, or stop.
func claimError(c *gin.Context, err error) {
	var tooFar *attendance.TooFarError
	var already *attendance.AlreadyClaimedError
	switch {
	case errors.As(err, &already):
		metrics.ClaimsRejected.WithLabelValues("already_claimed").Inc()
		c.JSON(http.StatusConflict, gin.H{"error": already.Error(), "status": already.Status})
	case errors.As(err, &tooFar):
		metrics.ClaimsRejected.WithLabelValues("too_far").Inc()
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":      tooFar.Error(),
			"distance_m": int(math.Round(tooFar.DistanceM)),
			"radius_m":   int(tooFar.RadiusM),
		})
	case errors.Is(err, attendance.ErrSessionNotFound):
		metrics.ClaimsRejected.WithLabelValues("session_not_found").Inc()
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, attendance.ErrSessionEnded):
		metrics.ClaimsRejected.WithLabelValues("session_ended").Inc()
		c.JSON(http.StatusGone, gin.H{"error": err.Error()})
	case errors.Is(err, attendance.ErrSessionClosed):
		metrics.ClaimsRejected.WithLabelValues("session_closed").Inc()
		c.JSON(http.StatusGone, gin.H{"error": err.Error()})
	case errors.Is(err, attendance.ErrNotEnrolled):
		metrics.ClaimsRejected.WithLabelValues("not_enrolled").Inc()
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, attendance.ErrAnchorUnavailable):
		metrics.ClaimsRejected.WithLabelValues("anchor_unavailable").Inc()
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "cannot verify location, try again"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func newLogger(env string) *zap.Logger {
	if env == "production" || env == "prod" {
		logger, _ := zap.NewProduction()
		return logger
	}
	logger, _ := zap.NewDevelopment()
	return logger
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		// Only add HSTS in production
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
