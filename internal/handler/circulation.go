package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/nkumba/library-system/internal/model"
	"github.com/nkumba/library-system/internal/repository"
)

type borrowRequest struct {
	StudentID int64 `json:"student_id"`
	BookID    int64 `json:"book_id"`
}

type borrowResponse struct {
	ID         int64   `json:"id"`
	BookID     int64   `json:"book_id"`
	StudentID  int64   `json:"student_id"`
	BorrowDate string  `json:"borrow_date"`
	DueDate    string  `json:"due_date"`
	ReturnDate *string `json:"return_date,omitempty"`
	Status     string  `json:"status"`
	Fine       int64   `json:"fine"`
}

func toBorrowResponse(rec *model.BorrowRecord) borrowResponse {
	return borrowResponse{
		ID:         rec.ID,
		BookID:     rec.BookID,
		StudentID:  rec.StudentID,
		BorrowDate: formatTime(rec.BorrowDate),
		DueDate:    formatTime(rec.DueDate),
		ReturnDate: formatTimePtr(rec.ReturnDate),
		Status:     string(rec.Status),
		Fine:       derefInt64(rec.Fine),
	}
}

// BorrowBook выдаёт книгу студенту.
func (h *Handler) BorrowBook(w http.ResponseWriter, r *http.Request) {
	var req borrowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	rec, err := h.service.BorrowBook(r.Context(), req.StudentID, req.BookID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, toBorrowResponse(rec))
}

// ReturnBook фиксирует возврат книги и при просрочке начисляет штраф.
func (h *Handler) ReturnBook(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	rec, err := h.service.ReturnBook(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toBorrowResponse(rec))
}

// GetBorrows возвращает записи о выдачах с учётом фильтров запроса.
func (h *Handler) GetBorrows(w http.ResponseWriter, r *http.Request) {
	var studentID *int64
	if s := r.URL.Query().Get("student_id"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		studentID = &id
	}

	var status *model.BorrowStatus
	if s := r.URL.Query().Get("status"); s != "" {
		bs := model.BorrowStatus(s)
		status = &bs
	}

	records, err := h.service.ListBorrows(r.Context(), studentID, status)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if len(records) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]borrowResponse, 0, len(records))
	for i := range records {
		resp = append(resp, toBorrowResponse(&records[i]))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

type fineRequest struct {
	StudentID int64  `json:"student_id"`
	Amount    int64  `json:"amount"`
	Reason    string `json:"reason"`
	DueDate   string `json:"due_date,omitempty"`
}

type fineResponse struct {
	ID            int64   `json:"id"`
	StudentID     int64   `json:"student_id"`
	Amount        int64   `json:"amount"`
	Reason        string  `json:"reason"`
	Status        string  `json:"status"`
	DueDate       string  `json:"due_date"`
	CreatedAt     string  `json:"created_at"`
	PaidAt        *string `json:"paid_at,omitempty"`
	PaymentMethod string  `json:"payment_method,omitempty"`
	TransactionID string  `json:"transaction_id,omitempty"`
}

func toFineResponse(f *model.Fine) fineResponse {
	return fineResponse{
		ID:            f.ID,
		StudentID:     f.StudentID,
		Amount:        f.Amount,
		Reason:        f.Reason,
		Status:        string(f.Status),
		DueDate:       formatTime(f.DueDate),
		CreatedAt:     formatTime(f.CreatedAt),
		PaidAt:        formatTimePtr(f.PaidAt),
		PaymentMethod: derefString(f.PaymentMethod),
		TransactionID: derefString(f.TransactionID),
	}
}

// CreateFine начисляет студенту штраф вручную.
func (h *Handler) CreateFine(w http.ResponseWriter, r *http.Request) {
	var req fineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var dueDate time.Time
	if req.DueDate != "" {
		parsed, err := time.Parse(time.RFC3339, req.DueDate)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		dueDate = parsed
	}

	fine, err := h.service.CreateManualFine(r.Context(), req.StudentID, req.Amount, req.Reason, dueDate)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, toFineResponse(fine))
}

type fineAmountRequest struct {
	Amount int64 `json:"amount"`
}

// AdjustFine изменяет сумму непогашенного штрафа.
func (h *Handler) AdjustFine(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req fineAmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	fine, err := h.service.AdjustFineAmount(r.Context(), id, req.Amount)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toFineResponse(fine))
}

type payFineRequest struct {
	PaymentMethod string `json:"payment_method"`
}

// PayFine регистрирует оплату штрафа.
func (h *Handler) PayFine(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req payFineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	fine, err := h.service.PayFine(r.Context(), id, req.PaymentMethod)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toFineResponse(fine))
}

// WaiveFine списывает штраф без оплаты.
func (h *Handler) WaiveFine(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	fine, err := h.service.WaiveFine(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toFineResponse(fine))
}

// GetFines возвращает штрафы с учётом фильтров запроса.
func (h *Handler) GetFines(w http.ResponseWriter, r *http.Request) {
	var filter repository.FineFilter
	if s := r.URL.Query().Get("student_id"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		filter.StudentID = &id
	}
	if s := r.URL.Query().Get("status"); s != "" {
		fs := model.FineStatus(s)
		filter.Status = &fs
	}

	fines, err := h.service.ListFines(r.Context(), filter)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if len(fines) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]fineResponse, 0, len(fines))
	for i := range fines {
		resp = append(resp, toFineResponse(&fines[i]))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

type clearanceRequest struct {
	StudentID int64 `json:"student_id"`
}

type clearanceResponse struct {
	ID              int64   `json:"id"`
	StudentID       int64   `json:"student_id"`
	Status          string  `json:"status"`
	SubmittedAt     string  `json:"submitted_at"`
	ReviewedAt      *string `json:"reviewed_at,omitempty"`
	ReviewedBy      string  `json:"reviewed_by,omitempty"`
	RejectionReason string  `json:"rejection_reason,omitempty"`
	HasPendingBooks bool    `json:"has_pending_books"`
	HasUnpaidFines  bool    `json:"has_unpaid_fines"`
}

func toClearanceResponse(c *model.ClearanceRequest) clearanceResponse {
	return clearanceResponse{
		ID:              c.ID,
		StudentID:       c.StudentID,
		Status:          string(c.Status),
		SubmittedAt:     formatTime(c.SubmittedAt),
		ReviewedAt:      formatTimePtr(c.ReviewedAt),
		ReviewedBy:      derefString(c.ReviewedBy),
		RejectionReason: derefString(c.RejectionReason),
		HasPendingBooks: c.HasPendingBooks,
		HasUnpaidFines:  c.HasUnpaidFines,
	}
}

// SubmitClearance создаёт заявку на академическое освобождение.
func (h *Handler) SubmitClearance(w http.ResponseWriter, r *http.Request) {
	var req clearanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	c, err := h.service.SubmitClearance(r.Context(), req.StudentID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, toClearanceResponse(c))
}

type reviewRequest struct {
	Reviewer string `json:"reviewer"`
	Reason   string `json:"reason"`
}

// ApproveClearance одобряет заявку после повторной проверки задолженностей.
func (h *Handler) ApproveClearance(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	c, err := h.service.ApproveClearance(r.Context(), id, req.Reviewer)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toClearanceResponse(c))
}

// RejectClearance отклоняет заявку с обязательным указанием причины.
func (h *Handler) RejectClearance(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	c, err := h.service.RejectClearance(r.Context(), id, req.Reviewer, req.Reason)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toClearanceResponse(c))
}

// GetClearance возвращает заявки на освобождение с учётом фильтра по статусу.
func (h *Handler) GetClearance(w http.ResponseWriter, r *http.Request) {
	var status *model.ClearanceStatus
	if s := r.URL.Query().Get("status"); s != "" {
		cs := model.ClearanceStatus(s)
		status = &cs
	}

	requests, err := h.service.ListClearance(r.Context(), status)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if len(requests) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]clearanceResponse, 0, len(requests))
	for i := range requests {
		resp = append(resp, toClearanceResponse(&requests[i]))
	}

	h.writeJSON(w, http.StatusOK, resp)
}
