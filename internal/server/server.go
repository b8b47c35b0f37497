package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/gaihekinavi/platform/internal/audit/domain"
	"github.com/gaihekinavi/platform/internal/config"
	custdomain "github.com/gaihekinavi/platform/internal/customerinvoice/domain"
	dashboarddomain "github.com/gaihekinavi/platform/internal/dashboard/domain"
	depositdomain "github.com/gaihekinavi/platform/internal/deposit/domain"
	invoicedomain "github.com/gaihekinavi/platform/internal/invoice/domain"
	orderdomain "github.com/gaihekinavi/platform/internal/order/domain"
	partnerdomain "github.com/gaihekinavi/platform/internal/partner/domain"
	referraldomain "github.com/gaihekinavi/platform/internal/referral/domain"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

type Server struct {
	engine         *gin.Engine
	cfg            config.Config
	db             *gorm.DB
	genID          *snowflake.Node
	partnerSvc     partnerdomain.Service
	orderSvc       orderdomain.Service
	depositSvc     depositdomain.Service
	referralSvc    referraldomain.Service
	invoiceSvc     invoicedomain.Service
	custInvoiceSvc custdomain.Service
	dashboardSvc   dashboarddomain.Service
	auditSvc       auditdomain.Service
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Cfg            config.Config
	DB             *gorm.DB
	GenID          *snowflake.Node
	PartnerSvc     partnerdomain.Service
	OrderSvc       orderdomain.Service
	DepositSvc     depositdomain.Service
	ReferralSvc    referraldomain.Service
	InvoiceSvc     invoicedomain.Service
	CustInvoiceSvc custdomain.Service
	DashboardSvc   dashboarddomain.Service
	AuditSvc       auditdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:         p.Gin,
		cfg:            p.Cfg,
		db:             p.DB,
		genID:          p.GenID,
		partnerSvc:     p.PartnerSvc,
		orderSvc:       p.OrderSvc,
		depositSvc:     p.DepositSvc,
		referralSvc:    p.ReferralSvc,
		invoiceSvc:     p.InvoiceSvc,
		custInvoiceSvc: p.CustInvoiceSvc,
		dashboardSvc:   p.DashboardSvc,
		auditSvc:       p.AuditSvc,
	}

	svc.registerAPIRoutes()
	return svc
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api/v1")

	api.GET("/partners", s.ListPartners)
	api.GET("/partners/:id", s.GetPartner)
	api.POST("/partners/:id/active", s.SetPartnerActive)
	api.POST("/partners/:id/fee-plan", s.AssignFeePlan)
	api.GET("/fee-plans", s.ListFeePlans)
	api.POST("/fee-plans", s.CreateFeePlan)

	api.GET("/partners/:id/deposit", s.GetDepositBalance)
	api.GET("/partners/:id/deposit/history", s.ListDepositHistory)
	api.POST("/deposit-requests", s.SubmitDepositRequest)
	api.GET("/deposit-requests", s.ListDepositRequests)
	api.POST("/deposit-requests/:id/approve", s.ApproveDepositRequest)
	api.POST("/deposit-requests/:id/reject", s.RejectDepositRequest)

	api.POST("/referrals", s.AssignReferral)
	api.GET("/referrals", s.ListReferrals)

	api.POST("/invoices/generate", s.GenerateInvoices)
	api.POST("/invoices/issue", s.IssueInvoices)
	api.GET("/invoices", s.ListInvoices)
	api.GET("/invoices/:id", s.GetInvoice)
	api.POST("/invoices/:id/paid", s.MarkInvoicePaid)
	api.POST("/invoices/:id/cancel", s.CancelInvoice)
	api.POST("/invoices/:id/status", s.OverrideInvoiceStatus)

	api.POST("/customer-invoices", s.CreateCustomerInvoice)
	api.GET("/customer-invoices", s.ListCustomerInvoices)
	api.GET("/customer-invoices/:id", s.GetCustomerInvoice)
	api.POST("/customer-invoices/:id/paid", s.MarkCustomerInvoicePaid)

	api.GET("/dashboard/overview", s.DashboardOverview)
	api.GET("/dashboard/trend", s.DashboardTrend)
	api.GET("/dashboard/partners", s.DashboardPartnerSummaries)

	api.GET("/audit-logs", s.ListAuditLogs)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
