// Package httpapi exposes the transparency log and the credential verifier
// over HTTP. Registration is the only write path and is the only rate-limited
// route.
package httpapi

import (
	"net/http"
	"time"

	"cpoe/internal/config"
	"cpoe/internal/domain"
	"cpoe/internal/infra/ratelimit"
	"cpoe/internal/usecase"

	"github.com/gin-gonic/gin"
)

type Server struct {
	cfg config.Config
	r   *gin.Engine

	log      *usecase.TransparencyLog
	verifier *usecase.Verifier
	didDoc   *domain.DIDDocument

	rateLimiter         domain.RateLimiter
	rateLimitRequests   int
	rateLimitWindow     time.Duration
	rateLimitFailClosed bool
}

type ServerDeps struct {
	Log         *usecase.TransparencyLog
	Verifier    *usecase.Verifier
	DIDDocument *domain.DIDDocument
	RateLimiter domain.RateLimiter
}

func NewServer(cfg config.Config, deps ServerDeps) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{
		cfg:      cfg,
		r:        r,
		log:      deps.Log,
		verifier: deps.Verifier,
		didDoc:   deps.DIDDocument,
	}
	s.initRateLimit(deps.RateLimiter)
	s.routes()
	return s
}

func (s *Server) initRateLimit(override domain.RateLimiter) {
	if override != nil {
		s.rateLimiter = override
	}
	if s.rateLimiter == nil && s.cfg.RateLimitRequests > 0 {
		if s.cfg.RedisAddr != "" {
			if limiter, err := ratelimit.NewRedisLimiter(s.cfg.RedisAddr, s.cfg.RedisPassword, s.cfg.RedisDB, nil); err == nil {
				s.rateLimiter = limiter
			}
		}
		if s.rateLimiter == nil {
			s.rateLimiter = ratelimit.NewMemoryLimiter(ratelimit.MemoryLimiterConfig{
				MaxKeys: s.cfg.RateLimitMaxKeys,
			})
		}
	}
	s.rateLimitRequests = s.cfg.RateLimitRequests
	s.rateLimitWindow = s.cfg.RateLimitWindow()
	s.rateLimitFailClosed = s.cfg.RateLimitFailClosed
}

func (s *Server) routes() {
	s.r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "log_id": s.log.LogID})
	})
	s.r.GET("/.well-known/did.json", s.handleDIDDocument)

	v1 := s.r.Group("/v1")
	{
		v1.POST("/register", s.handleRegister)
		v1.POST("/verify", s.handleVerify)
		v1.GET("/entries", s.handleListEntries)
		v1.GET("/entries/:entry_id/receipt", s.handleReceipt)
		v1.GET("/log/info", s.handleLogInfo)
	}

	s.r.NoRoute(func(c *gin.Context) {
		writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "route not found")
	})
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.r
}

func (s *Server) Run() error {
	return s.r.Run(s.cfg.HTTPAddr)
}
