package repository

import (
	"context"

	"gramorx-entitlements/internal/domain/model"
)

// ProfileRepository reads the learner's current plan.
type ProfileRepository interface {
	PlanForUser(ctx context.Context, tx Tx, userID string) (model.PlanID, error)
}
