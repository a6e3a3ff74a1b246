package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/loyaltree/internal/config"
	distributiondomain "github.com/smallbiznis/loyaltree/internal/distribution/domain"
	ledgerdomain "github.com/smallbiznis/loyaltree/internal/ledger/domain"
	levelcapdomain "github.com/smallbiznis/loyaltree/internal/levelcap/domain"
	memberdomain "github.com/smallbiznis/loyaltree/internal/member/domain"
	"github.com/smallbiznis/loyaltree/internal/observability"
	purchasedomain "github.com/smallbiznis/loyaltree/internal/purchase/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(registerRoutes),
	fx.Invoke(run),
)

func NewEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

type Server struct {
	engine      *gin.Engine
	cfg         config.Config
	log         *zap.Logger
	memberSvc   memberdomain.Service
	levelSvc    levelcapdomain.Service
	ledgerSvc   ledgerdomain.Service
	purchaseSvc purchasedomain.Service
	engineSvc   distributiondomain.Service
}

type ServerParams struct {
	fx.In

	Engine      *gin.Engine
	Config      config.Config
	Log         *zap.Logger
	MemberSvc   memberdomain.Service
	LevelSvc    levelcapdomain.Service
	LedgerSvc   ledgerdomain.Service
	PurchaseSvc purchasedomain.Service
	EngineSvc   distributiondomain.Service
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:      p.Engine,
		cfg:         p.Config,
		log:         p.Log.Named("http.server"),
		memberSvc:   p.MemberSvc,
		levelSvc:    p.LevelSvc,
		ledgerSvc:   p.LedgerSvc,
		purchaseSvc: p.PurchaseSvc,
		engineSvc:   p.EngineSvc,
	}
}

func registerRoutes(s *Server) {
	v1 := s.engine.Group("/v1")

	v1.POST("/members", s.RegisterMember)
	v1.GET("/members/:code", s.GetMemberSnapshot)
	v1.DELETE("/members/:code", s.RemoveMember)
	v1.GET("/members/:code/ancestors", s.GetAncestorChain)
	v1.GET("/members/:code/wallet", s.GetWallet)
	v1.GET("/members/:code/wallet/transactions", s.ListWalletTransactions)
	v1.POST("/members/:code/wallet/redeem", s.RedeemCoins)
	v1.POST("/members/:code/wallet/rebuild", s.RebuildWallet)
	v1.GET("/tree", s.GetTree)

	v1.GET("/levels", s.GetLevelOccupancy)

	v1.POST("/orders", s.CreateOrder)
	v1.GET("/orders/:id", s.GetOrder)
	v1.POST("/orders/:id/transition", s.TransitionOrder)
	v1.POST("/orders/:id/process", s.ProcessOrder)
	v1.GET("/orders/:id/receipt", s.GetReceipt)
}

// requestContext bounds every persistence call issued for a request.
func (s *Server) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), s.cfg.PersistenceTimeout)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
