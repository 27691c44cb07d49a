package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"academy/internal/attendance"
	"academy/internal/auth"
	"academy/internal/checkin"
	"academy/internal/config"
	"academy/internal/httpmiddleware"
	"academy/internal/notifier"
	"academy/internal/queue"
	"academy/internal/roster"
	"academy/internal/store"
)

const dateLayout = "2006-01-02"

var (
	tokensIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkin_tokens_issued_total",
		Help: "Session tokens handed out, by mode (issue or refresh).",
	}, []string{"mode"})
	scanOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkin_scans_total",
		Help: "Scan verifications, by outcome.",
	}, []string{"outcome"})
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "academy:notifications")
	}

	rosterRepo := roster.NewRepository(db.Client)
	attendanceRepo := attendance.NewRepository(db.Client)

	policy := checkin.Policy{ValidityWindow: cfg.TokenTTL, GracePeriod: cfg.GracePeriod}
	signer := checkin.NewHMACSigner(cfg.TokenSigningKey)
	tokenStore := checkin.NewTokenStore()
	issuer := checkin.NewIssuer(tokenStore, signer, policy)
	verifier := checkin.NewVerifier(tokenStore, signer, policy, rosterRepo, attendanceRepo, notifier.NewQueuePublisher(q), cfg.AdapterTimeout)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		dbHealthy := db.Healthy(c.Request.Context())
		redisHealthy := redisClient.Healthy(c.Request.Context())
		status := http.StatusOK
		if !dbHealthy || !redisHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "db": dbHealthy, "redis": redisHealthy})
	})

	r.POST("/v1/instructors/login", func(c *gin.Context) {
		var req struct {
			InstructorID string `json:"instructor_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		inst, err := rosterRepo.FindInstructor(c.Request.Context(), req.InstructorID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
			return
		}
		if inst == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown instructor"})
			return
		}

		tokens, err := auth.Issue(inst.ID, inst.AcademyID, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}

		_ = rosterRepo.SaveRefreshToken(c.Request.Context(), inst.ID, tokens.RefreshToken, tokens.RefreshExp)

		c.JSON(http.StatusOK, gin.H{
			"access_token":  tokens.AccessToken,
			"refresh_token": tokens.RefreshToken,
			"expires_at":    tokens.AccessExp.Unix(),
		})
	})

	// Student-facing scan path. Students carry no instructor JWT; the
	// rate limiter and the token protocol itself are the gate here.
	r.POST("/v1/checkins", func(c *gin.Context) {
		var req struct {
			Token     string `json:"token" binding:"required"`
			StudentID string `json:"student_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		result, err := verifier.VerifyScan(c.Request.Context(), req.Token, req.StudentID)
		if err != nil {
			status, body := scanError(err)
			scanOutcomes.WithLabelValues(body["code"].(string)).Inc()
			if status >= http.StatusInternalServerError {
				log.Printf("scan verification fault for %s: %v", req.StudentID, err)
			} else {
				log.Printf("scan rejected for %s: %v", req.StudentID, err)
			}
			c.JSON(status, body)
			return
		}

		scanOutcomes.WithLabelValues(string(result.Status)).Inc()
		c.JSON(http.StatusOK, gin.H{
			"status":        result.Status,
			"check_in_time": result.CheckInTime,
			"student_name":  result.StudentName,
			"class_name":    result.ClassName,
		})
	})

	authGroup := r.Group("/v1", auth.InstructorAuth(cfg.JWTSigningKey, cfg.JWTIssuer))

	authGroup.POST("/classes/token", func(c *gin.Context) {
		var req struct {
			ClassID      string    `json:"class_id" binding:"required"`
			Date         string    `json:"date" binding:"required"`
			StartTime    time.Time `json:"start_time" binding:"required"`
			ForceRefresh bool      `json:"force_refresh"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if _, err := time.Parse(dateLayout, req.Date); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}

		claimsAny, _ := c.Get("claims")
		claims, _ := claimsAny.(auth.Claims)

		var token checkin.Token
		if req.ForceRefresh {
			token = issuer.Refresh(req.ClassID, req.Date, req.StartTime, claims.AcademyID)
			tokensIssued.WithLabelValues("refresh").Inc()
		} else {
			token = issuer.Issue(req.ClassID, req.Date, req.StartTime, claims.AcademyID)
			tokensIssued.WithLabelValues("issue").Inc()
		}

		c.JSON(http.StatusOK, gin.H{
			"payload":           token.Payload(),
			"expires_at":        token.ExpiresAt,
			"remaining_seconds": issuer.Validity(req.ClassID, req.Date),
		})
	})

	authGroup.GET("/classes/token/validity", func(c *gin.Context) {
		classID := c.Query("class_id")
		date := c.Query("date")
		if classID == "" || date == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "class_id and date required"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"remaining_seconds": issuer.Validity(classID, date)})
	})

	authGroup.GET("/attendance", func(c *gin.Context) {
		classID := c.Query("class_id")
		date := c.Query("date")
		if classID == "" || date == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "class_id and date required"})
			return
		}
		limit, offset := 100, 0
		if v := c.Query("limit"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				limit = parsed
			}
		}
		if v := c.Query("offset"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				offset = parsed
			}
		}
		records, err := attendanceRepo.ListByClass(c.Request.Context(), classID, date, limit, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"records": records})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// scanError maps verification failures onto HTTP responses. A duplicate
// scan is informational, not alarming: the client renders "already
// recorded" with the original time.
func scanError(err error) (int, gin.H) {
	var dup *checkin.AlreadyCheckedInError
	if errors.As(err, &dup) {
		return http.StatusConflict, gin.H{
			"code":          "already_checked_in",
			"check_in_time": dup.At,
		}
	}
	switch {
	case errors.Is(err, checkin.ErrInvalidPayload):
		return http.StatusBadRequest, gin.H{"code": "invalid_payload", "error": "scan again"}
	case errors.Is(err, checkin.ErrTamperedToken):
		return http.StatusUnauthorized, gin.H{"code": "tampered_token", "error": "scan again"}
	case errors.Is(err, checkin.ErrNoActiveToken):
		return http.StatusGone, gin.H{"code": "no_active_token", "error": "ask the instructor for a fresh code"}
	case errors.Is(err, checkin.ErrStaleToken):
		return http.StatusGone, gin.H{"code": "stale_token", "error": "ask the instructor for a fresh code"}
	case errors.Is(err, checkin.ErrUnknownStudent):
		return http.StatusNotFound, gin.H{"code": "unknown_student", "error": checkin.ErrUnknownStudent.Error()}
	case errors.Is(err, checkin.ErrUnknownClass):
		return http.StatusNotFound, gin.H{"code": "unknown_class", "error": checkin.ErrUnknownClass.Error()}
	case errors.Is(err, checkin.ErrAdapterTimeout):
		return http.StatusGatewayTimeout, gin.H{"code": "adapter_timeout", "error": "try again"}
	default:
		return http.StatusInternalServerError, gin.H{"code": "internal", "error": "internal error"}
	}
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

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
