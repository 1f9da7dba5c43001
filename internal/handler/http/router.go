package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/KavyaGunapati/TypeFromProject/internal/auth"
	"github.com/KavyaGunapati/TypeFromProject/internal/service"
	"github.com/KavyaGunapati/TypeFromProject/pkg/health"
	"github.com/KavyaGunapati/TypeFromProject/pkg/middleware"
)

// ServiceName labels metrics and spans emitted by the HTTP layer.
const ServiceName = "identity"

// Services groups the application services the router dispatches to.
type Services struct {
	Sessions      *service.SessionService
	Organizations *service.OrganizationService
	Memberships   *service.MembershipService
}

// NewRouter creates a chi router with all identity service routes registered.
func NewRouter(
	svcs Services,
	issuer *auth.TokenIssuer,
	healthHandler *health.Handler,
	logger *slog.Logger,
	corsConfig middleware.CORSConfig,
	authLimit middleware.RateLimitConfig,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Tracing(ServiceName))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics(ServiceName))
	r.Use(middleware.CORS(corsConfig))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	authenticate := middleware.Auth(TokenValidator(issuer))

	authHandler := NewAuthHandler(svcs.Sessions)
	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(middleware.NoStore)
		r.Use(ContentTypeJSON)

		r.Group(func(r chi.Router) {
			if authLimit.Enabled() {
				r.Use(middleware.RateLimit(authLimit, logger))
			}
			r.Post("/signup", authHandler.SignUp)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)
		})
		r.Post("/logout", authHandler.Logout)

		r.With(authenticate, middleware.RequestLogger(logger)).Get("/me", authHandler.Me)
	})

	orgHandler := NewOrganizationHandler(svcs.Organizations, svcs.Memberships, logger)
	r.Route("/api/v1/organizations", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(authenticate)
		r.Use(middleware.RequestLogger(logger))

		r.Get("/", orgHandler.List)
		r.Post("/", orgHandler.Create)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", orgHandler.Get)
			r.Put("/", orgHandler.Update)
			r.Delete("/", orgHandler.Delete)

			r.Get("/members", orgHandler.ListMembers)
			r.Post("/members", orgHandler.AssignMember)
			r.Put("/members/{userId}", orgHandler.ChangeMemberRole)
			r.Delete("/members/{userId}", orgHandler.RemoveMember)
		})
	})

	return r
}

// TokenValidator bridges the access token issuer to the bearer middleware.
func TokenValidator(issuer *auth.TokenIssuer) middleware.TokenValidator {
	return func(token string) (*middleware.Claims, error) {
		claims, err := issuer.Validate(token)
		if err != nil {
			return nil, err
		}
		return &middleware.Claims{
			UserID: claims.Subject,
			Name:   claims.Name,
			Email:  claims.Email,
			Roles:  claims.Roles,
		}, nil
	}
}
