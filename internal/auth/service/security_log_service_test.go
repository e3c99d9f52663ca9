package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/widjayanto/authguard/internal/auth/domain"
	"github.com/widjayanto/authguard/internal/auth/service"
	"github.com/widjayanto/authguard/internal/mocks"
)

func TestSecurityLogService_Record(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockSecurityLogRepository(ctrl)
	s := service.NewSecurityLogService(repo)

	var appended *domain.SecurityLog
	repo.EXPECT().Append(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, entry *domain.SecurityLog) error {
			appended = entry
			return nil
		})

	s.Record(context.Background(), domain.EventLoginSuccess, "10.0.0.1", "go-test", "user-1", "test@example.com", map[string]any{"k": "v"})

	require.NotNil(t, appended)
	assert.NotEmpty(t, appended.ID)
	assert.Equal(t, domain.EventLoginSuccess, appended.EventType)
	assert.Equal(t, "user-1", appended.UserID)
	assert.Equal(t, "test@example.com", appended.Email)
	assert.Equal(t, map[string]any{"k": "v"}, appended.Metadata)
	assert.WithinDuration(t, time.Now(), appended.CreatedAt, time.Second)
}

func TestSecurityLogService_Record_SwallowsAppendError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockSecurityLogRepository(ctrl)
	s := service.NewSecurityLogService(repo)

	repo.EXPECT().Append(gomock.Any(), gomock.Any()).Return(errors.New("db down"))

	// Must not panic and has no error to return.
	s.Record(context.Background(), domain.EventLoginFailed, "", "", "", "test@example.com", nil)
}

func TestSecurityLogService_Logs(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockSecurityLogRepository(ctrl)
	s := service.NewSecurityLogService(repo)

	now := time.Now()
	repo.EXPECT().List(gomock.Any(), "user-1", 10, 0).Return([]domain.SecurityLog{
		{ID: "log-2", EventType: domain.EventMfaEnabled, UserID: "user-1", CreatedAt: now},
		{ID: "log-1", EventType: domain.EventLoginSuccess, UserID: "user-1", CreatedAt: now.Add(-time.Minute)},
	}, nil)

	out, err := s.Logs(context.Background(), "user-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "log-2", out[0].ID)
	assert.Equal(t, string(domain.EventMfaEnabled), out[0].EventType)
}

func TestSecurityLogService_Logs_DefaultLimit(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockSecurityLogRepository(ctrl)
	s := service.NewSecurityLogService(repo)

	repo.EXPECT().List(gomock.Any(), "", 50, 0).Return(nil, nil)

	out, err := s.Logs(context.Background(), "", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, out)
}
