package service

import (
	"context"
	"strings"

	"github.com/nkumba/library-system/internal/model"
	"github.com/nkumba/library-system/internal/repository"
)

// CreateStudent сохраняет справочную запись о студенте.
func (s *Service) CreateStudent(ctx context.Context, student *model.Student) (*model.Student, error) {
	errs := make(map[string]string)
	if strings.TrimSpace(student.RegistrationNumber) == "" {
		errs["registration_number"] = "registration number is required"
	}
	if strings.TrimSpace(student.Name) == "" {
		errs["name"] = "name is required"
	}
	if len(errs) > 0 {
		return nil, &ValidationError{Fields: errs}
	}

	id, err := s.repo.CreateStudent(ctx, student)
	if err != nil {
		return nil, err
	}
	student.ID = id

	return student, nil
}

// ImportStudent запрашивает данные студента в академическом реестре по
// регистрационному номеру и сохраняет их, обновляя существующую запись.
func (s *Service) ImportStudent(ctx context.Context, regNumber string) (*model.Student, error) {
	if s.registryClient == nil {
		return nil, ErrRegistryNotConfigured
	}

	rec, _, err := s.registryClient.GetStudent(ctx, regNumber)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, repository.ErrStudentNotFound
	}

	student := &model.Student{
		RegistrationNumber: rec.RegistrationNumber,
		Name:               rec.Name,
		Email:              rec.Email,
		Faculty:            rec.Faculty,
		Course:             rec.Course,
		GraduationYear:     rec.GraduationYear,
	}

	id, err := s.repo.UpsertStudent(ctx, student)
	if err != nil {
		return nil, err
	}
	student.ID = id

	return student, nil
}

// StudentByRegistration возвращает студента по регистрационному номеру.
func (s *Service) StudentByRegistration(ctx context.Context, regNumber string) (*model.Student, error) {
	return s.repo.GetStudentByRegistration(ctx, regNumber)
}

// ListStudents возвращает всех студентов.
func (s *Service) ListStudents(ctx context.Context) ([]model.Student, error) {
	return s.repo.ListStudents(ctx)
}
