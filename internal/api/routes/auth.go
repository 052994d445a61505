package routes

import (
	"github.com/go-chi/chi/v5"

	"Commons/internal/api/handlers/auth"
	"Commons/internal/api/middleware"
	"Commons/internal/core/users"
)

// RegisterAuthRoutes registers account endpoints on the router
func RegisterAuthRoutes(r chi.Router, service users.Service, cookies auth.TokenCookies, authMiddleware middleware.AuthMiddleware) {
	handler := auth.NewHandler(service, cookies)

	// Credential endpoints get a stricter limit than the API at large
	loginLimiter := middleware.NewRateLimiter(10.0/60.0, 10)

	r.Route("/api/auth", func(r chi.Router) {
		r.With(loginLimiter.Middleware).Post("/signup", handler.HandleSignUp)
		r.With(loginLimiter.Middleware).Post("/login", handler.HandleLogin)
		r.With(authMiddleware.RequireAuth).Post("/logout", handler.HandleLogout)
		r.With(authMiddleware.RequireAuth).Get("/me", handler.HandleMe)
	})
}
