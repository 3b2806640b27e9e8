package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/support-desk/internal/api/http/handlers"
	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/observability"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Users          *handlers.UsersHandler
	Tickets        *handlers.TicketsHandler
	Stats          *handlers.StatsHandler
	Notifications  *handlers.NotificationsHandler
	AuthMiddleware *auth.AuthMiddleware
	Policy         *auth.Policy
	Metrics        *observability.Metrics
	UploadDir      string
	RateLimit      config.RateLimitConfig
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Metrics.Registry(), promhttp.HandlerOpts{})))
	}
	if cfg.UploadDir != "" {
		app.Static("/uploads", cfg.UploadDir)
	}

	requireAuth := cfg.AuthMiddleware.Handle
	can := func(action auth.Action) fiber.Handler {
		return auth.RequirePermission(cfg.Policy, action)
	}
	// Admin-only routes check the role before the policy.
	adminOnly := auth.RequireRole(domain.RoleAdmin)

	limited := authRateLimiter(cfg.RateLimit)
	authGroup := app.Group("/auth")
	authGroup.Post("/register", limited, cfg.Auth.Register)
	authGroup.Post("/login", limited, cfg.Auth.Login)
	authGroup.Post("/password/reset/request", limited, cfg.Auth.RequestPasswordReset)
	authGroup.Post("/password/reset/confirm", limited, cfg.Auth.ConfirmPasswordReset)
	authGroup.Post("/logout", requireAuth, cfg.Auth.Logout)
	authGroup.Get("/me", requireAuth, cfg.Auth.Me)
	authGroup.Post("/password/change", requireAuth, cfg.Auth.ChangePassword)

	tickets := app.Group("/tickets", requireAuth)
	tickets.Post("", can(auth.ActionTicketCreate), cfg.Tickets.CreateTicket)
	tickets.Get("", cfg.Tickets.ListTickets)
	tickets.Get("/stats", cfg.Stats.Summary)
	tickets.Get("/my", cfg.Stats.MySummary)
	tickets.Get("/status-stats", can(auth.ActionStatsGlobal), cfg.Stats.StatusStats)
	tickets.Get("/monthly-stats", can(auth.ActionStatsGlobal), cfg.Stats.MonthlyStats)
	tickets.Get("/list-by-priority", can(auth.ActionStatsGlobal), cfg.Stats.ListByPriority)
	tickets.Get("/report", adminOnly, can(auth.ActionReportRead), cfg.Stats.Report)
	tickets.Get("/export", adminOnly, can(auth.ActionTicketExport), cfg.Stats.Export)

	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Put("/:id", cfg.Tickets.UpdateTicket)
	tickets.Delete("/:id", cfg.Tickets.DeleteTicket)
	tickets.Put("/:id/status", can(auth.ActionTicketUpdateStatus), cfg.Tickets.UpdateStatus)
	tickets.Post("/:id/close", cfg.Tickets.CloseTicket)
	tickets.Put("/:id/assign", can(auth.ActionTicketAssignSelf), cfg.Tickets.AssignTicket)
	tickets.Delete("/:id/assign", can(auth.ActionTicketAssignSelf), cfg.Tickets.UnassignTicket)
	tickets.Post("/:id/auto-assign", can(auth.ActionTicketAssignAny), cfg.Tickets.AutoAssignTicket)
	tickets.Get("/:id/comments", cfg.Tickets.ListComments)
	tickets.Post("/:id/comments", cfg.Tickets.AddComment)
	tickets.Get("/:id/attachments", cfg.Tickets.ListAttachments)
	tickets.Post("/:id/attachments", cfg.Tickets.UploadAttachment)
	tickets.Get("/:id/history", cfg.Tickets.ListHistory)

	users := app.Group("/users", requireAuth)
	users.Get("/staff", can(auth.ActionUserListStaff), cfg.Users.ListStaff)
	manage := can(auth.ActionUserManage)
	users.Get("", adminOnly, manage, cfg.Users.List)
	users.Post("", adminOnly, manage, cfg.Users.Create)
	users.Get("/:id", adminOnly, manage, cfg.Users.Get)
	users.Put("/:id", adminOnly, manage, cfg.Users.Update)
	users.Put("/:id/status", adminOnly, manage, cfg.Users.ToggleStatus)
	users.Delete("/:id", adminOnly, manage, cfg.Users.Delete)

	notifications := app.Group("/notifications", requireAuth, can(auth.ActionNotificationRead))
	notifications.Get("/my", cfg.Notifications.ListMine)
	notifications.Put("/read-all", cfg.Notifications.MarkAllRead)
	notifications.Put("/:id/read", cfg.Notifications.MarkRead)
}

func authRateLimiter(cfg config.RateLimitConfig) fiber.Handler {
	if cfg.Max <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return limiter.New(limiter.Config{
		Max:        cfg.Max,
		Expiration: cfg.Window,
		LimitReached: func(c *fiber.Ctx) error {
			return apperrors.NewDomainError("RATE_LIMITED", "too many requests", fiber.StatusTooManyRequests, nil)
		},
	})
}
