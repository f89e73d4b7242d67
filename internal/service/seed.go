package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spec-kit/inspection-audit/internal/config"
	"github.com/spec-kit/inspection-audit/internal/domain"
	"github.com/spec-kit/inspection-audit/internal/repository"
	apperrors "github.com/spec-kit/inspection-audit/pkg/util/errorutil"
)

// Seed creates the configured bootstrap inspector and inspection. An
// inspector that already exists is left untouched.
func Seed(ctx context.Context, cfg config.SeedConfig, authService *AuthService, inspections repository.InspectionRepository, logger *zap.Logger) error {
	if cfg.UserEmail == "" {
		return nil
	}
	if cfg.UserPassword == "" {
		return errors.New("SEED_USER_PASSWORD is required with SEED_USER_EMAIL")
	}

	user, err := authService.CreateUser(ctx, cfg.UserName, cfg.UserEmail, cfg.UserPassword)
	var domainErr *apperrors.DomainError
	switch {
	case err == nil:
		logger.Info("seeded inspector", zap.String("user_id", user.ID), zap.String("email", user.Email))
	case errors.As(err, &domainErr) && domainErr.Code == "VALIDATION_FAILED":
		logger.Info("seed inspector already present", zap.String("email", cfg.UserEmail))
	default:
		return err
	}

	if cfg.InspectionTitle == "" {
		return nil
	}
	insp := &domain.Inspection{Title: cfg.InspectionTitle}
	if err := inspections.Create(ctx, insp); err != nil {
		return err
	}
	logger.Info("seeded inspection", zap.String("inspection_id", insp.ID), zap.String("title", insp.Title))
	return nil
}
