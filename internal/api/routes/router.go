package routes

import (
	"net/http"

	"github.com/agrilink/marketplace-backend/internal/api/handlers"
	"github.com/agrilink/marketplace-backend/internal/api/middleware"
	"github.com/agrilink/marketplace-backend/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	bookingHandler *handlers.BookingHandler
	ratingHandler  *handlers.RatingHandler

	metrics *observability.Metrics
}

// NewRouter creates a new router
func NewRouter(
	bookingHandler *handlers.BookingHandler,
	ratingHandler *handlers.RatingHandler,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:            http.NewServeMux(),
		bookingHandler: bookingHandler,
		ratingHandler:  ratingHandler,
		metrics:        metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	// Health check endpoint
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}
	})

	// Booking endpoints
	r.mux.HandleFunc("POST /api/bookings", r.bookingHandler.CreateBooking)
	r.mux.HandleFunc("GET /api/bookings", r.bookingHandler.ListBookings)
	r.mux.HandleFunc("GET /api/bookings/{id}", r.bookingHandler.GetBooking)
	r.mux.HandleFunc("POST /api/bookings/{id}/transition", r.bookingHandler.TransitionBooking)
	r.mux.HandleFunc("POST /api/bookings/{id}/cancel", r.bookingHandler.CancelBooking)
	r.mux.HandleFunc("DELETE /api/bookings/{id}", r.bookingHandler.DeleteBooking)

	// Rating endpoints
	r.mux.HandleFunc("POST /api/ratings", r.ratingHandler.SubmitRating)
	r.mux.HandleFunc("PATCH /api/ratings/{id}", r.ratingHandler.EditRating)
	r.mux.HandleFunc("DELETE /api/ratings/{id}", r.ratingHandler.DeleteRating)

	// Dealer endpoints
	r.mux.HandleFunc("GET /api/dealers/{id}/rating-summary", r.ratingHandler.GetDealerRatingSummary)
	r.mux.HandleFunc("GET /api/dealers/{id}/ratings", r.ratingHandler.ListDealerRatings)

	// Apply middleware chain
	var handler http.Handler = r.mux
	handler = middleware.IdentityMiddleware(handler)
	if r.metrics != nil {
		handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	}
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.CORSMiddleware(handler)

	return handler
}
