package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/pizza-nz/staff-ordering/internal/apperr"
	"github.com/pizza-nz/staff-ordering/internal/db"
	"github.com/pizza-nz/staff-ordering/internal/db/repository"
	"github.com/pizza-nz/staff-ordering/internal/metrics"
)

// classify turns a store or transaction failure into an *apperr.Error.
// Errors that are already classified pass through untouched; anything the
// caller cannot act on is logged and hidden behind an Unexpected error.
func classify(logger *zap.Logger, op string, err error) error {
	if err == nil {
		return nil
	}

	var appErr *apperr.Error
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound("record not found")
	case errors.Is(err, repository.ErrInsufficientStock):
		return apperr.InsufficientStock("insufficient stock")
	case errors.Is(err, repository.ErrDuplicate):
		return apperr.Conflict("record already exists", err)
	case errors.Is(err, repository.ErrReferenced):
		return apperr.InvalidRequest("record is still referenced by other records")
	case errors.Is(err, context.Canceled):
		logger.Debug("Operation canceled by caller", zap.String("operation", op), zap.Error(err))
		return apperr.Canceled(err)
	case db.IsTimeout(err):
		logger.Warn("Operation timed out", zap.String("operation", op), zap.Error(err))
		return apperr.Unavailable(err)
	}

	logger.Error("Unexpected failure", zap.String("operation", op), zap.Error(err))
	return apperr.Unexpected(err)
}

// reject classifies err and counts it against op.
func reject(logger *zap.Logger, op string, err error) error {
	classified := classify(logger, op, err)
	metrics.OrderRejections.WithLabelValues(op, apperr.KindOf(classified).String()).Inc()
	return classified
}
