// Command salesd exposes a tiersale engine over HTTP.
//
// Configuration comes from the environment; see Config for the
// variables. Administrative endpoints require a JWT whose address
// claim matches the sale owner.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/xraph/tiersale"
	"github.com/xraph/tiersale/audit"
	"github.com/xraph/tiersale/contribution"
	"github.com/xraph/tiersale/custody"
	"github.com/xraph/tiersale/id"
	"github.com/xraph/tiersale/participant"
	"github.com/xraph/tiersale/store"
	"github.com/xraph/tiersale/store/memory"
	"github.com/xraph/tiersale/store/postgres"
	"github.com/xraph/tiersale/store/sqlite"
	"github.com/xraph/tiersale/tier"
	"github.com/xraph/tiersale/types"
)

// Config holds all salesd settings.
type Config struct {
	Addr      string `env:"SALESD_ADDR" envDefault:":8080"`
	JWTSecret string `env:"SALESD_JWT_SECRET,required"`
	Owner     string `env:"SALESD_OWNER,required"`

	Store       string `env:"SALESD_STORE" envDefault:"memory"` // memory, sqlite, postgres
	SQLitePath  string `env:"SALESD_SQLITE_PATH" envDefault:"tiersale.db"`
	DatabaseURL string `env:"SALESD_DATABASE_URL"`

	Currency   string `env:"SALESD_CURRENCY" envDefault:"usd"`
	Tier1Limit int64  `env:"SALESD_TIER1_LIMIT,required"`
	Tier2Limit int64  `env:"SALESD_TIER2_LIMIT,required"`
	Tier3Limit int64  `env:"SALESD_TIER3_LIMIT,required"`

	Increment        int64         `env:"SALESD_INCREMENT" envDefault:"1"`
	IndividualCap    int64         `env:"SALESD_INDIVIDUAL_CAP" envDefault:"0"`
	TimelockDelay    time.Duration `env:"SALESD_TIMELOCK_DELAY" envDefault:"48h"`
	SnapshotInterval time.Duration `env:"SALESD_SNAPSHOT_INTERVAL" envDefault:"30s"`
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("salesd failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}

	schedule, err := tiersale.NewSchedule(
		types.In(cfg.Currency, cfg.Tier1Limit),
		types.In(cfg.Currency, cfg.Tier2Limit),
		types.In(cfg.Currency, cfg.Tier3Limit),
	)
	if err != nil {
		return err
	}

	opts := []tiersale.Option{
		tiersale.WithLogger(logger),
		tiersale.WithIncrement(types.In(cfg.Currency, cfg.Increment)),
		tiersale.WithTimelockDelay(cfg.TimelockDelay),
		tiersale.WithSnapshotInterval(cfg.SnapshotInterval),
		tiersale.WithPlugin(audit.New(audit.SlogRecorder(logger))),
	}
	if cfg.IndividualCap > 0 {
		opts = append(opts, tiersale.WithIndividualCap(types.In(cfg.Currency, cfg.IndividualCap)))
	}

	sale, err := tiersale.New(st, custody.NewVault(cfg.Currency), cfg.Owner, schedule, opts...)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if err := sale.Start(ctx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: setupRouter(cfg, sale, st),
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("listen failed", "error", err)
		}
	}()
	logger.Info("salesd listening", "addr", cfg.Addr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return sale.Stop()
}

func openStore(cfg Config) (store.Store, error) {
	switch strings.ToLower(cfg.Store) {
	case "memory":
		return memory.New(), nil
	case "sqlite":
		return sqlite.Open(cfg.SQLitePath)
	case "postgres":
		return postgres.Open(cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

// Claims carries the caller's address in a JWT.
type Claims struct {
	Address string `json:"address"`
	jwt.RegisteredClaims
}

// auth validates the bearer token and stores the caller's address on
// the request context.
func auth(cfg Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			return []byte(cfg.JWTSecret), nil
		})
		if err != nil || !token.Valid || claims.Address == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set("address", claims.Address)
		c.Next()
	}
}

func callerAddress(c *gin.Context) string {
	address, _ := c.Get("address")
	s, _ := address.(string)
	return s
}

func intQuery(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

type amountRequest struct {
	Amount int64 `json:"amount" binding:"required"`
}

func setupRouter(cfg Config, sale *tiersale.Sale, st store.Store) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		if err := st.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "store unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")
	api.Use(auth(cfg))
	{
		api.GET("/sale", func(c *gin.Context) {
			schedule := sale.TierSchedule()
			c.JSON(http.StatusOK, gin.H{
				"tier":         sale.Tier(),
				"collected":    sale.Total(),
				"schedule":     schedule[:],
				"increment":    sale.Increment(),
				"pending":      sale.PendingIncrement(),
				"paused":       sale.Paused(),
				"participants": sale.ParticipantCount(),
			})
		})

		api.POST("/contributions", func(c *gin.Context) {
			var req amountRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			amount := types.In(cfg.Currency, req.Amount)
			ctb, err := sale.Contribute(c.Request.Context(), callerAddress(c), amount)
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusCreated, ctb)
		})

		api.GET("/contributions", func(c *gin.Context) {
			opts := contribution.ListOpts{Participant: c.Query("participant")}
			list, err := sale.Contributions(c.Request.Context(), opts)
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"contributions": list})
		})

		api.GET("/contributions/:id", func(c *gin.Context) {
			cid, err := id.ParseContributionID(c.Param("id"))
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctb, err := sale.Contribution(c.Request.Context(), cid)
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, ctb)
		})

		api.GET("/participants", func(c *gin.Context) {
			opts := participant.ListOpts{
				Page: intQuery(c, "page", 1),
				Size: intQuery(c, "size", 50),
			}
			page, err := sale.Participants(opts)
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, page)
		})

		api.GET("/participants/:address", func(c *gin.Context) {
			rec, err := sale.Participant(c.Param("address"))
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, rec)
		})
	}

	// Owner-only surface. The engine re-checks ownership on every
	// call; the route group only supplies the caller identity.
	admin := router.Group("/admin/v1")
	admin.Use(auth(cfg))
	{
		admin.POST("/increment/propose", func(c *gin.Context) {
			var req struct {
				Amount int64 `json:"amount" binding:"required"`
				// Delay is a Go duration string; empty uses the
				// engine's default.
				Delay string `json:"delay"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var delay time.Duration
			if req.Delay != "" {
				var err error
				if delay, err = time.ParseDuration(req.Delay); err != nil {
					c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
					return
				}
			}
			prop, err := sale.ProposeIncrement(c.Request.Context(), callerAddress(c), types.In(cfg.Currency, req.Amount), delay)
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusAccepted, prop)
		})

		admin.POST("/increment/apply", func(c *gin.Context) {
			applied, err := sale.ApplyIncrement(c.Request.Context(), callerAddress(c))
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"increment": applied})
		})

		admin.PUT("/tiers/:tier/limit", func(c *gin.Context) {
			var t tier.Tier
			if err := t.UnmarshalText([]byte(c.Param("tier"))); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var req amountRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if err := sale.UpdateTierLimit(c.Request.Context(), callerAddress(c), t, types.In(cfg.Currency, req.Amount)); err != nil {
				respondError(c, err)
				return
			}
			c.Status(http.StatusNoContent)
		})

		admin.PUT("/cap", func(c *gin.Context) {
			var req amountRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if err := sale.SetIndividualCap(c.Request.Context(), callerAddress(c), types.In(cfg.Currency, req.Amount)); err != nil {
				respondError(c, err)
				return
			}
			c.Status(http.StatusNoContent)
		})

		admin.PUT("/page-size", func(c *gin.Context) {
			var req struct {
				Size int `json:"size" binding:"required"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if err := sale.SetMaxPageSize(c.Request.Context(), callerAddress(c), req.Size); err != nil {
				respondError(c, err)
				return
			}
			c.Status(http.StatusNoContent)
		})

		admin.POST("/pause", func(c *gin.Context) {
			if err := sale.Pause(callerAddress(c)); err != nil {
				respondError(c, err)
				return
			}
			c.Status(http.StatusNoContent)
		})

		admin.POST("/resume", func(c *gin.Context) {
			if err := sale.Resume(callerAddress(c)); err != nil {
				respondError(c, err)
				return
			}
			c.Status(http.StatusNoContent)
		})

		admin.POST("/reset", func(c *gin.Context) {
			if err := sale.Reset(c.Request.Context(), callerAddress(c)); err != nil {
				respondError(c, err)
				return
			}
			c.Status(http.StatusNoContent)
		})
	}

	return router
}

// respondError maps engine sentinels to HTTP statuses.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, tiersale.ErrUnauthorized):
		status = http.StatusForbidden
	case tiersale.IsNotFound(err):
		status = http.StatusNotFound
	case errors.Is(err, tiersale.ErrSaleClosed),
		errors.Is(err, tiersale.ErrSalePaused),
		errors.Is(err, tiersale.ErrTimelockNotElapsed):
		status = http.StatusConflict
	case errors.Is(err, tiersale.ErrInvalidAmount),
		errors.Is(err, tiersale.ErrIndividualCapExceeded),
		errors.Is(err, tiersale.ErrInvalidTierLimit),
		errors.Is(err, tiersale.ErrValueUnchanged),
		errors.Is(err, tiersale.ErrValueOutOfRange),
		errors.Is(err, tiersale.ErrNoPendingValue),
		errors.Is(err, tiersale.ErrPageOutOfRange),
		errors.Is(err, tiersale.ErrInvalidPageSize):
		status = http.StatusBadRequest
	case errors.Is(err, tiersale.ErrTransferFailed):
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
