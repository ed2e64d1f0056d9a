package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	custommiddleware "github.com/nkumba/library-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware библиотечной системы.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Route("/books", func(r chi.Router) {
			r.Post("/", h.RegisterBook)
			r.Get("/", h.GetBooks)
			r.Put("/{id}", h.UpdateBook)
			r.Post("/{id}/status", h.SetBookStatus)
			r.Delete("/{id}", h.RemoveBook)
		})

		r.Route("/students", func(r chi.Router) {
			r.Post("/", h.CreateStudent)
			r.Get("/", h.GetStudents)
			r.Post("/import", h.ImportStudent)
		})

		r.Route("/borrowings", func(r chi.Router) {
			r.Post("/", h.BorrowBook)
			r.Get("/", h.GetBorrows)
			r.Post("/{id}/return", h.ReturnBook)
		})

		r.Route("/fines", func(r chi.Router) {
			r.Post("/", h.CreateFine)
			r.Get("/", h.GetFines)
			r.Post("/{id}/amount", h.AdjustFine)
			r.Post("/{id}/pay", h.PayFine)
			r.Post("/{id}/waive", h.WaiveFine)
		})

		r.Route("/clearance", func(r chi.Router) {
			r.Post("/", h.SubmitClearance)
			r.Get("/", h.GetClearance)
			r.Post("/{id}/approve", h.ApproveClearance)
			r.Post("/{id}/reject", h.RejectClearance)
		})

		r.Get("/reports/summary", h.GetSummary)
	})

	r.Handle("/metrics", promhttp.Handler())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
