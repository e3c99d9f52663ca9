package service

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/widjayanto/authguard/internal/auth/domain"
	"github.com/widjayanto/authguard/internal/auth/dto"
)

// SecurityLogService appends security-relevant events. Recording is
// best-effort: a logging failure must never roll back the action it
// documents, so errors are logged and swallowed.
type SecurityLogService struct {
	repo domain.SecurityLogRepository
}

func NewSecurityLogService(repo domain.SecurityLogRepository) *SecurityLogService {
	return &SecurityLogService{repo: repo}
}

func (s *SecurityLogService) Record(ctx context.Context, eventType domain.SecurityEventType, ipAddress, userAgent, userID, email string, metadata map[string]any) {
	entry := &domain.SecurityLog{
		ID:        uuid.NewString(),
		EventType: eventType,
		UserID:    userID,
		Email:     email,
		IPAddress: ipAddress,
		UserAgent: userAgent,
		Metadata:  metadata,
		CreatedAt: time.Now(),
	}

	if err := s.repo.Append(ctx, entry); err != nil {
		log.Printf("warn: failed to append security log event %s: %v", eventType, err)
	}
}

// Logs returns entries newest first, optionally filtered by user.
func (s *SecurityLogService) Logs(ctx context.Context, userID string, limit, offset int) ([]dto.SecurityLogOutput, error) {
	if limit <= 0 {
		limit = 50
	}

	entries, err := s.repo.List(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}

	out := make([]dto.SecurityLogOutput, 0, len(entries))
	for _, e := range entries {
		out = append(out, dto.SecurityLogOutput{
			ID:        e.ID,
			EventType: string(e.EventType),
			UserID:    e.UserID,
			Email:     e.Email,
			IPAddress: e.IPAddress,
			UserAgent: e.UserAgent,
			Metadata:  e.Metadata,
			CreatedAt: e.CreatedAt,
		})
	}
	return out, nil
}
