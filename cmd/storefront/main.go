package main

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"travel-booking-storefront/internal/config"
	"travel-booking-storefront/internal/gateway"
	"travel-booking-storefront/internal/handlers"
	"travel-booking-storefront/internal/middleware"
	"travel-booking-storefront/internal/services"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"
	"github.com/shopspring/decimal"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Create session store
	sessionStore := sessions.NewCookieStore([]byte(cfg.Session.Secret))
	sessionStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   cfg.Session.MaxAge,
		HttpOnly: true,
		Secure:   cfg.Server.Env == "production",
		SameSite: http.SameSiteLaxMode,
	}

	// Backend cart gateway
	client := gateway.NewClient(gateway.Config{
		BaseURL:      cfg.Backend.BaseURL,
		Timeout:      cfg.Backend.Timeout,
		RetryBackoff: cfg.Backend.RetryBackoff,
	}, nil)

	// Per-session pricing reconcilers with the configured debounce window
	rates := services.PricingRates{
		FeeRate: decimal.NewFromFloat(cfg.Pricing.FeeRate),
		TaxRate: decimal.NewFromFloat(cfg.Pricing.TaxRate),
	}
	reconcilers := services.NewReconcilerRegistry(client, cfg.Pricing.DebounceInterval, rates)
	defer reconcilers.Stop()

	capacityValidator := services.NewCapacityValidator(client)

	cartHandler := handlers.NewCartHandler(client, sessionStore, capacityValidator, reconcilers)
	authMiddleware := middleware.NewAuthMiddleware(sessionStore)
	rateLimiter := middleware.NewMutationRateLimiter(60, time.Minute)

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.LoggingMiddleware)
	r.Use(middleware.SecureHeaders)
	r.Use(authMiddleware.LoadUser)

	r.Route("/cart", func(r chi.Router) {
		r.Use(middleware.RateLimitMutations(rateLimiter))
		r.Get("/", cartHandler.GetCart)
		r.Post("/items", cartHandler.AddItem)
		r.Patch("/items/{id}", cartHandler.UpdateItem)
		r.Delete("/items/{id}", cartHandler.RemoveItem)
		r.Post("/clear", cartHandler.ClearCart)
		r.Post("/pricing/preview", cartHandler.PricingPreview)
		r.Get("/pricing/quote", cartHandler.PricingQuote)
		r.Post("/checkout", cartHandler.Checkout)
		r.Post("/capacity", cartHandler.CheckCapacity)
		r.With(middleware.RequireAuth).Post("/merge", cartHandler.MergeCart)
	})

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Storefront server starting on http://%s", addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		log.Fatal("Server failed to start:", err)
	}
}
