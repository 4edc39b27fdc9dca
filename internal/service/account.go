package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pizza-nz/staff-ordering/internal/apperr"
	"github.com/pizza-nz/staff-ordering/internal/db/repository"
	"github.com/pizza-nz/staff-ordering/internal/metrics"
	"github.com/pizza-nz/staff-ordering/internal/models"
)

// AccountService changes account status and removes accounts while keeping
// at least one active administrator.
type AccountService struct {
	store  repository.Store
	logger *zap.Logger
}

// NewAccountService creates a new account service
func NewAccountService(store repository.Store, logger *zap.Logger) *AccountService {
	return &AccountService{
		store:  store,
		logger: logger.Named("accounts"),
	}
}

// UpdateActiveStatus activates or deactivates the target account.
func (s *AccountService) UpdateActiveStatus(ctx context.Context, actor models.Principal, targetID uuid.UUID, active bool) (*models.User, error) {
	var updated *models.User
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		target, activeAdmins, err := s.guard(ctx, tx, actor, targetID, "status")
		if err != nil {
			return err
		}
		if target.Roles.IsAdmin() {
			if target.ID == actor.ID {
				return apperr.InvalidRequest("you cannot change the status of your own account")
			}
			if target.IsActive && !active && activeAdmins <= 1 {
				return lastAdmin("status")
			}
		}

		updated, err = tx.Users().SetActive(ctx, targetID, active)
		return err
	})
	if err != nil {
		return nil, classify(s.logger, "update account status", err)
	}

	s.logger.Info("Account status changed",
		zap.String("actor_id", actor.ID.String()),
		zap.String("user_id", targetID.String()),
		zap.Bool("active", active))
	return updated, nil
}

// RemoveAccount deletes the target account. Accounts that still own orders
// cannot be removed.
func (s *AccountService) RemoveAccount(ctx context.Context, actor models.Principal, targetID uuid.UUID) (*models.RemovedUser, error) {
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		target, activeAdmins, err := s.guard(ctx, tx, actor, targetID, "remove")
		if err != nil {
			return err
		}
		if target.Roles.IsAdmin() {
			if target.ID == actor.ID {
				return apperr.InvalidRequest("you cannot delete your own account")
			}
			if target.IsActive && activeAdmins <= 1 {
				return lastAdmin("remove")
			}
		}

		err = tx.Users().Delete(ctx, targetID)
		if errors.Is(err, repository.ErrReferenced) {
			return apperr.InvalidRequest("the account has orders and cannot be deleted, deactivate it instead")
		}
		return err
	})
	if err != nil {
		return nil, classify(s.logger, "remove account", err)
	}

	s.logger.Info("Account removed",
		zap.String("actor_id", actor.ID.String()),
		zap.String("user_id", targetID.String()))
	return &models.RemovedUser{ID: targetID}, nil
}

// guard checks the actor's permission, then locks every active
// administrator row followed by the target row. Taking the administrator
// locks first, in id order, makes concurrent guarded changes queue behind
// each other and recount the administrators once they get the lock.
func (s *AccountService) guard(ctx context.Context, tx repository.Tx, actor models.Principal, targetID uuid.UUID, op string) (*models.User, int, error) {
	if !actor.Roles.IsAdmin() {
		metrics.AccountGuardRejections.WithLabelValues(op).Inc()
		return nil, 0, apperr.Forbidden("administrator role required")
	}

	admins, err := tx.Users().LockActiveAdmins(ctx)
	if err != nil {
		return nil, 0, err
	}

	target, err := tx.Users().GetByIDForUpdate(ctx, targetID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, 0, apperr.NotFound("user %s not found", targetID)
	}
	if err != nil {
		return nil, 0, err
	}
	return target, len(admins), nil
}

func lastAdmin(op string) error {
	metrics.AccountGuardRejections.WithLabelValues(op).Inc()
	return apperr.InvalidRequest("the last active administrator cannot be deactivated or deleted")
}
