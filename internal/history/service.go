package history

import (
	"context"
	"errors"
)

var ErrHistoryDisabled = errors.New("booking history is not enabled")

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Page is one page of a user's booking attempts, newest first
type Page struct {
	Attempts []BookingAttempt `json:"attempts"`
	Total    int64            `json:"total"`
	Limit    int              `json:"limit"`
	Offset   int              `json:"offset"`
}

type Service interface {
	Record(ctx context.Context, attempt *BookingAttempt) error
	List(ctx context.Context, userID string, limit, offset int) (*Page, error)
}

type service struct {
	repo Repository
}

// NewService records into repo; a nil repo means history is switched off
func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) Record(ctx context.Context, attempt *BookingAttempt) error {
	if s.repo == nil {
		return nil
	}
	return s.repo.Create(ctx, attempt)
}

func (s *service) List(ctx context.Context, userID string, limit, offset int) (*Page, error) {
	if s.repo == nil {
		return nil, ErrHistoryDisabled
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}

	attempts, total, err := s.repo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return &Page{Attempts: attempts, Total: total, Limit: limit, Offset: offset}, nil
}
