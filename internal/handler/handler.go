// Package handler содержит HTTP-обработчики API библиотечной системы.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/nkumba/library-system/internal/model"
	"github.com/nkumba/library-system/internal/repository"
	"github.com/nkumba/library-system/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterBook(ctx context.Context, draft service.BookDraft) (*model.Book, error)
	UpdateBook(ctx context.Context, id int64, patch service.BookDraft) (*model.Book, error)
	SetBookStatus(ctx context.Context, id int64, status model.BookStatus) (*model.Book, error)
	RemoveBook(ctx context.Context, id int64) error
	QueryBooks(ctx context.Context, f repository.BookFilter) ([]model.Book, error)

	CreateStudent(ctx context.Context, student *model.Student) (*model.Student, error)
	ImportStudent(ctx context.Context, regNumber string) (*model.Student, error)
	StudentByRegistration(ctx context.Context, regNumber string) (*model.Student, error)
	ListStudents(ctx context.Context) ([]model.Student, error)

	BorrowBook(ctx context.Context, studentID, bookID int64) (*model.BorrowRecord, error)
	ReturnBook(ctx context.Context, recordID int64) (*model.BorrowRecord, error)
	ListBorrows(ctx context.Context, studentID *int64, status *model.BorrowStatus) ([]model.BorrowRecord, error)

	CreateManualFine(ctx context.Context, studentID, amount int64, reason string, dueDate time.Time) (*model.Fine, error)
	AdjustFineAmount(ctx context.Context, id, newAmount int64) (*model.Fine, error)
	PayFine(ctx context.Context, id int64, paymentMethod string) (*model.Fine, error)
	WaiveFine(ctx context.Context, id int64) (*model.Fine, error)
	ListFines(ctx context.Context, f repository.FineFilter) ([]model.Fine, error)

	SubmitClearance(ctx context.Context, studentID int64) (*model.ClearanceRequest, error)
	ApproveClearance(ctx context.Context, id int64, reviewer string) (*model.ClearanceRequest, error)
	RejectClearance(ctx context.Context, id int64, reviewer, reason string) (*model.ClearanceRequest, error)
	ListClearance(ctx context.Context, status *model.ClearanceStatus) ([]model.ClearanceRequest, error)

	Summary(ctx context.Context) (*model.LibrarySummary, error)
}

// Handler реализует HTTP-обработчики API библиотечной системы.
type Handler struct {
	service Service
	logger  *zap.Logger
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: s,
		logger:  logger,
	}
}

// writeError переводит ошибку бизнес-логики в HTTP-статус.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var ve *service.ValidationError
	if errors.As(err, &ve) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"errors": ve.Fields})
		return
	}

	switch {
	case errors.Is(err, repository.ErrBookNotFound),
		errors.Is(err, repository.ErrStudentNotFound),
		errors.Is(err, repository.ErrBorrowNotFound),
		errors.Is(err, repository.ErrFineNotFound),
		errors.Is(err, repository.ErrClearanceNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, repository.ErrBookExists),
		errors.Is(err, repository.ErrBookUnavailable),
		errors.Is(err, repository.ErrBookOnLoan),
		errors.Is(err, repository.ErrStudentExists),
		errors.Is(err, repository.ErrAlreadyReturned),
		errors.Is(err, repository.ErrFineNotPending),
		errors.Is(err, repository.ErrClearancePending),
		errors.Is(err, repository.ErrClearanceReviewed),
		errors.Is(err, repository.ErrClearanceBlocked):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, service.ErrRegistryNotConfigured):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		h.logger.Error("internal error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response", zap.Error(err))
	}
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

func derefInt64(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}

func derefString(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

type bookRequest struct {
	Title    string `json:"title"`
	Author   string `json:"author"`
	ISBN     string `json:"isbn"`
	Category string `json:"category"`
	Location string `json:"location"`
}

type bookResponse struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Author   string `json:"author"`
	ISBN     string `json:"isbn"`
	Category string `json:"category"`
	Status   string `json:"status"`
	Location string `json:"location"`
	AddedAt  string `json:"added_at"`
}

func toBookResponse(b *model.Book) bookResponse {
	return bookResponse{
		ID:       b.ID,
		Title:    b.Title,
		Author:   b.Author,
		ISBN:     b.ISBN,
		Category: b.Category,
		Status:   string(b.Status),
		Location: b.Location,
		AddedAt:  formatTime(b.AddedAt),
	}
}

// RegisterBook регистрирует новую книгу в фонде.
func (h *Handler) RegisterBook(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	book, err := h.service.RegisterBook(r.Context(), service.BookDraft{
		Title:    req.Title,
		Author:   req.Author,
		ISBN:     req.ISBN,
		Category: req.Category,
		Location: req.Location,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, toBookResponse(book))
}

// UpdateBook изменяет данные книги.
func (h *Handler) UpdateBook(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	book, err := h.service.UpdateBook(r.Context(), id, service.BookDraft{
		Title:    req.Title,
		Author:   req.Author,
		ISBN:     req.ISBN,
		Category: req.Category,
		Location: req.Location,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toBookResponse(book))
}

type bookStatusRequest struct {
	Status string `json:"status"`
}

// SetBookStatus перезаписывает статус книги (порча, утеря, возврат в фонд).
func (h *Handler) SetBookStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req bookStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	book, err := h.service.SetBookStatus(r.Context(), id, model.BookStatus(req.Status))
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toBookResponse(book))
}

// RemoveBook удаляет книгу из фонда.
func (h *Handler) RemoveBook(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.RemoveBook(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetBooks возвращает книги, удовлетворяющие фильтрам запроса.
func (h *Handler) GetBooks(w http.ResponseWriter, r *http.Request) {
	filter := repository.BookFilter{
		Query:    r.URL.Query().Get("q"),
		Category: r.URL.Query().Get("category"),
	}
	if s := r.URL.Query().Get("status"); s != "" {
		status := model.BookStatus(s)
		filter.Status = &status
	}

	books, err := h.service.QueryBooks(r.Context(), filter)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if len(books) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]bookResponse, 0, len(books))
	for i := range books {
		resp = append(resp, toBookResponse(&books[i]))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

type studentRequest struct {
	RegistrationNumber string `json:"registration_number"`
	Name               string `json:"name"`
	Email              string `json:"email"`
	Faculty            string `json:"faculty"`
	Course             string `json:"course"`
	GraduationYear     int    `json:"graduation_year"`
}

type studentResponse struct {
	ID                 int64  `json:"id"`
	RegistrationNumber string `json:"registration_number"`
	Name               string `json:"name"`
	Email              string `json:"email"`
	Faculty            string `json:"faculty"`
	Course             string `json:"course"`
	GraduationYear     int    `json:"graduation_year"`
}

func toStudentResponse(s *model.Student) studentResponse {
	return studentResponse{
		ID:                 s.ID,
		RegistrationNumber: s.RegistrationNumber,
		Name:               s.Name,
		Email:              s.Email,
		Faculty:            s.Faculty,
		Course:             s.Course,
		GraduationYear:     s.GraduationYear,
	}
}

// CreateStudent сохраняет справочную запись о студенте.
func (h *Handler) CreateStudent(w http.ResponseWriter, r *http.Request) {
	var req studentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	student, err := h.service.CreateStudent(r.Context(), &model.Student{
		RegistrationNumber: req.RegistrationNumber,
		Name:               req.Name,
		Email:              req.Email,
		Faculty:            req.Faculty,
		Course:             req.Course,
		GraduationYear:     req.GraduationYear,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, toStudentResponse(student))
}

type importStudentRequest struct {
	RegistrationNumber string `json:"registration_number"`
}

// ImportStudent загружает данные студента из академического реестра.
func (h *Handler) ImportStudent(w http.ResponseWriter, r *http.Request) {
	var req importStudentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RegistrationNumber == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	student, err := h.service.ImportStudent(r.Context(), req.RegistrationNumber)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toStudentResponse(student))
}

// GetStudents возвращает всех студентов. Регистрационные номера содержат
// косую черту, поэтому точечный поиск выполняется через параметр запроса,
// а не сегмент пути.
func (h *Handler) GetStudents(w http.ResponseWriter, r *http.Request) {
	if regNumber := r.URL.Query().Get("registration_number"); regNumber != "" {
		student, err := h.service.StudentByRegistration(r.Context(), regNumber)
		if err != nil {
			h.writeError(w, err)
			return
		}

		h.writeJSON(w, http.StatusOK, toStudentResponse(student))
		return
	}

	students, err := h.service.ListStudents(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	if len(students) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]studentResponse, 0, len(students))
	for i := range students {
		resp = append(resp, toStudentResponse(&students[i]))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// GetSummary возвращает сводную статистику библиотеки.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, summary)
}
