package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/mntdherm/no-schema-update-sub001/internal/application/action"
	"github.com/mntdherm/no-schema-update-sub001/internal/application/audit"
	"github.com/mntdherm/no-schema-update-sub001/internal/application/auth"
	apptoken "github.com/mntdherm/no-schema-update-sub001/internal/application/token"
	"github.com/mntdherm/no-schema-update-sub001/internal/config"
	"github.com/mntdherm/no-schema-update-sub001/internal/domain"
	"github.com/mntdherm/no-schema-update-sub001/internal/infrastructure/dynamo"
	"github.com/mntdherm/no-schema-update-sub001/internal/infrastructure/identity"
	"github.com/mntdherm/no-schema-update-sub001/internal/infrastructure/mailer"
	"github.com/mntdherm/no-schema-update-sub001/internal/transport/http/handler"
	appmiddleware "github.com/mntdherm/no-schema-update-sub001/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	UserRepo  *dynamo.UserRepo
	TokenRepo *dynamo.TokenRepo
	AuditRepo *dynamo.AuditLogRepo
	Provider  *identity.Provider
	Signer    *identity.Signer
	Mailer    mailer.Mailer
}

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authMw := appmiddleware.Auth(deps.Signer)

	// 5 requests/second, burst of 10 — applied to sensitive public endpoints.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	tokenSvc := apptoken.NewService(apptoken.ServiceDeps{
		TokenRepo: deps.TokenRepo,
		VerifyTTL: cfg.VerifyTokenTTL,
		ResetTTL:  cfg.ResetTokenTTL,
	})
	auditSvc := audit.NewService(audit.ServiceDeps{AuditRepo: deps.AuditRepo})
	authSvc := auth.NewService(auth.ServiceDeps{
		Provider:      deps.Provider,
		UserRepo:      deps.UserRepo,
		Tokens:        tokenSvc,
		Audits:        auditSvc,
		Mail:          deps.Mailer,
		ActionBaseURL: cfg.ActionBaseURL,
	})
	actionSvc := action.NewService(action.ServiceDeps{
		Tokens:   tokenSvc,
		Provider: deps.Provider,
		UserRepo: deps.UserRepo,
		Audits:   auditSvc,
	})

	healthH := handler.NewHealthHandler()
	authH := handler.NewAuthHandler(authSvc)
	passwordH := handler.NewPasswordHandler(authSvc)
	actionH := handler.NewActionHandler(actionSvc)
	auditH := handler.NewAuditHandler(auditSvc)

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check", healthH.Ping)
		r.Post("/health-check", healthH.Ping)

		r.With(sensitiveRL.Limit).Post("/auth/signup", authH.Signup)
		r.With(sensitiveRL.Limit).Post("/auth/login", authH.Login)
		r.Post("/auth/sessions/refresh", authH.Refresh)
		r.With(sensitiveRL.Limit).Post("/auth/password-reset", passwordH.RequestReset)
		r.With(sensitiveRL.Limit).Get("/auth/action", actionH.Resolve)
		r.With(sensitiveRL.Limit).Post("/auth/action/password", actionH.CompleteReset)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Post("/auth/logout", authH.Logout)
			r.Post("/auth/verification/resend", authH.ResendVerification)
			r.Post("/auth/password", passwordH.Change)

			// Admin-only routes
			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.RequireRole(domain.RoleAdmin))

				r.Get("/audit-logs/{id}", auditH.ListByUser)
			})
		})
	})

	return r
}
