package service

import (
	"context"
	"strings"

	"github.com/nkumba/library-system/internal/model"
	"github.com/nkumba/library-system/internal/repository"
	"github.com/nkumba/library-system/internal/validation"
)

// BookDraft содержит данные книги, вводимые при регистрации или редактировании.
type BookDraft struct {
	Title    string
	Author   string
	ISBN     string
	Category string
	Location string
}

func validateBookDraft(d BookDraft) map[string]string {
	errs := make(map[string]string)

	if strings.TrimSpace(d.Title) == "" {
		errs["title"] = "title is required"
	}
	if strings.TrimSpace(d.Author) == "" {
		errs["author"] = "author is required"
	}
	if strings.TrimSpace(d.ISBN) == "" {
		errs["isbn"] = "ISBN is required"
	} else if !validation.IsValidISBN(d.ISBN) {
		errs["isbn"] = "invalid ISBN format"
	}
	if d.Category == "" {
		errs["category"] = "category is required"
	} else if !model.IsValidCategory(d.Category) {
		errs["category"] = "unknown category"
	}
	if strings.TrimSpace(d.Location) == "" {
		errs["location"] = "location is required"
	}

	return errs
}

// RegisterBook проверяет данные и регистрирует новую книгу в фонде.
// Новая книга всегда начинает со статуса available.
func (s *Service) RegisterBook(ctx context.Context, draft BookDraft) (*model.Book, error) {
	if errs := validateBookDraft(draft); len(errs) > 0 {
		return nil, &ValidationError{Fields: errs}
	}

	book := &model.Book{
		Title:    draft.Title,
		Author:   draft.Author,
		ISBN:     draft.ISBN,
		Category: draft.Category,
		Status:   model.BookStatusAvailable,
		Location: draft.Location,
		AddedAt:  s.now(),
	}

	id, err := s.repo.CreateBook(ctx, book)
	if err != nil {
		return nil, err
	}
	book.ID = id

	return book, nil
}

// UpdateBook применяет изменения к книге. Пустые поля черновика сохраняют
// прежние значения; итоговый результат валидируется как при регистрации.
func (s *Service) UpdateBook(ctx context.Context, id int64, patch BookDraft) (*model.Book, error) {
	book, err := s.repo.GetBook(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Title != "" {
		book.Title = patch.Title
	}
	if patch.Author != "" {
		book.Author = patch.Author
	}
	if patch.ISBN != "" {
		book.ISBN = patch.ISBN
	}
	if patch.Category != "" {
		book.Category = patch.Category
	}
	if patch.Location != "" {
		book.Location = patch.Location
	}

	merged := BookDraft{
		Title:    book.Title,
		Author:   book.Author,
		ISBN:     book.ISBN,
		Category: book.Category,
		Location: book.Location,
	}
	if errs := validateBookDraft(merged); len(errs) > 0 {
		return nil, &ValidationError{Fields: errs}
	}

	if err := s.repo.UpdateBook(ctx, book); err != nil {
		return nil, err
	}

	return book, nil
}

// SetBookStatus безусловно перезаписывает статус книги; используется для
// отметок о порче и утере.
func (s *Service) SetBookStatus(ctx context.Context, id int64, status model.BookStatus) (*model.Book, error) {
	switch status {
	case model.BookStatusAvailable, model.BookStatusBorrowed, model.BookStatusDamaged, model.BookStatusLost:
	default:
		return nil, &ValidationError{Fields: map[string]string{"status": "unknown status"}}
	}

	if err := s.repo.SetBookStatus(ctx, id, status); err != nil {
		return nil, err
	}

	return s.repo.GetBook(ctx, id)
}

// RemoveBook удаляет книгу из фонда, если по ней нет открытой выдачи.
func (s *Service) RemoveBook(ctx context.Context, id int64) error {
	return s.repo.DeleteBook(ctx, id)
}

// QueryBooks возвращает книги, удовлетворяющие фильтру, в порядке добавления.
func (s *Service) QueryBooks(ctx context.Context, f repository.BookFilter) ([]model.Book, error) {
	return s.repo.ListBooks(ctx, f)
}
