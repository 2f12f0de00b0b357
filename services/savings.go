package services

import (
	"errors"
	"time"

	"github.com/yourusername/lancerpay/apperr"
	"github.com/yourusername/lancerpay/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MaxTotalSavingsPercentage caps the combined allocation of a user's active
// in-progress goals. Enforced at create/reactivate time; allocation trusts it.
const MaxTotalSavingsPercentage = 50

// Allocation is the delta applied to one goal by a settlement.
type Allocation struct {
	GoalID    uint    `json:"goal_id"`
	Title     string  `json:"title"`
	Amount    float64 `json:"amount"`
	NewTotal  float64 `json:"new_total"`
	Completed bool    `json:"completed"`
}

// Allocate distributes amount across goals by their percentages and returns
// the per-goal deltas plus the residual left for the main balance. Pure: it
// never mutates goals and never rejects.
func Allocate(amount float64, goals []models.SavingsGoal) ([]Allocation, float64) {
	allocations := make([]Allocation, 0, len(goals))
	residual := amount

	for _, g := range goals {
		allocated := amount * float64(g.SavingsPercentage) / 100
		newTotal := g.CurrentAmount + allocated
		allocations = append(allocations, Allocation{
			GoalID:    g.ID,
			Title:     g.Title,
			Amount:    allocated,
			NewTotal:  newTotal,
			Completed: newTotal >= g.TargetAmount,
		})
		residual -= allocated
	}

	return allocations, residual
}

type SavingsService struct {
	db *gorm.DB
}

func NewSavingsService(db *gorm.DB) *SavingsService {
	return &SavingsService{db: db}
}

// ApplySettlement runs the allocation engine against the user's active goals
// and persists the deltas. Each delta is recorded as a SavingsAllocation row
// keyed by (goal, invoice), so a re-driven fan-out step skips goals that
// already took their share instead of double-crediting them. Returns the
// allocations actually applied and the residual amount.
func (s *SavingsService) ApplySettlement(userID, invoiceID uint, amount float64) ([]Allocation, float64, error) {
	var goals []models.SavingsGoal
	err := s.db.Where("user_id = ? AND is_active = ? AND status = ?", userID, true, models.GoalStatusInProgress).
		Order("id asc").Find(&goals).Error
	if err != nil {
		return nil, amount, err
	}

	allocations, _ := Allocate(amount, goals)

	applied := make([]Allocation, 0, len(allocations))
	err = s.db.Transaction(func(tx *gorm.DB) error {
		for _, alloc := range allocations {
			record := models.SavingsAllocation{
				GoalID:    alloc.GoalID,
				InvoiceID: invoiceID,
				Amount:    alloc.Amount,
			}
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&record)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				continue // this goal already took its share of the invoice
			}

			updates := map[string]interface{}{"current_amount": alloc.NewTotal}
			if alloc.Completed {
				now := time.Now().UTC()
				updates["status"] = models.GoalStatusCompleted
				updates["is_active"] = false
				updates["completed_at"] = now
			}
			if err := tx.Model(&models.SavingsGoal{}).Where("id = ?", alloc.GoalID).Updates(updates).Error; err != nil {
				return err
			}
			applied = append(applied, alloc)
		}
		return nil
	})
	if err != nil {
		return nil, amount, err
	}

	residual := amount
	for _, alloc := range applied {
		residual -= alloc.Amount
	}
	return applied, residual, nil
}

type CreateGoalInput struct {
	Title             string
	TargetAmount      float64
	SavingsPercentage int
}

func (s *SavingsService) CreateGoal(userID uint, in CreateGoalInput) (*models.SavingsGoal, error) {
	if in.Title == "" {
		return nil, apperr.New(apperr.ValidationFailed, "title is required")
	}
	if in.TargetAmount <= 0 {
		return nil, apperr.New(apperr.ValidationFailed, "target amount must be positive")
	}
	if in.SavingsPercentage < 1 || in.SavingsPercentage > MaxTotalSavingsPercentage {
		return nil, apperr.New(apperr.ValidationFailed, "savings percentage must be between 1 and %d", MaxTotalSavingsPercentage)
	}

	if err := s.checkCeiling(s.db, userID, in.SavingsPercentage, 0); err != nil {
		return nil, err
	}

	goal := models.SavingsGoal{
		UserID:            userID,
		Title:             in.Title,
		TargetAmount:      in.TargetAmount,
		SavingsPercentage: in.SavingsPercentage,
		IsActive:          true,
		Status:            models.GoalStatusInProgress,
	}
	if err := s.db.Create(&goal).Error; err != nil {
		return nil, err
	}
	return &goal, nil
}

type UpdateGoalInput struct {
	Title             *string
	TargetAmount      *float64
	SavingsPercentage *int
	IsActive          *bool
}

// UpdateGoal edits a goal. Reactivating a paused goal, or raising its
// percentage while active, re-checks the 50% ceiling.
func (s *SavingsService) UpdateGoal(userID, goalID uint, in UpdateGoalInput) (*models.SavingsGoal, error) {
	goal, err := s.ownedGoal(userID, goalID)
	if err != nil {
		return nil, err
	}
	if goal.Status == models.GoalStatusReleased {
		return nil, apperr.InvalidStatef(string(goal.Status), "cannot update a released goal")
	}

	newPercentage := goal.SavingsPercentage
	if in.SavingsPercentage != nil {
		if *in.SavingsPercentage < 1 || *in.SavingsPercentage > MaxTotalSavingsPercentage {
			return nil, apperr.New(apperr.ValidationFailed, "savings percentage must be between 1 and %d", MaxTotalSavingsPercentage)
		}
		newPercentage = *in.SavingsPercentage
	}
	willBeActive := goal.IsActive
	if in.IsActive != nil {
		willBeActive = *in.IsActive
	}

	if willBeActive && goal.Status == models.GoalStatusInProgress {
		reactivating := !goal.IsActive
		raising := newPercentage > goal.SavingsPercentage
		if reactivating || raising {
			if err := s.checkCeiling(s.db, userID, newPercentage, goal.ID); err != nil {
				return nil, err
			}
		}
	}

	updates := map[string]interface{}{}
	if in.Title != nil {
		updates["title"] = *in.Title
	}
	if in.TargetAmount != nil {
		if *in.TargetAmount <= 0 {
			return nil, apperr.New(apperr.ValidationFailed, "target amount must be positive")
		}
		updates["target_amount"] = *in.TargetAmount
	}
	if in.SavingsPercentage != nil {
		updates["savings_percentage"] = *in.SavingsPercentage
	}
	if in.IsActive != nil {
		updates["is_active"] = *in.IsActive
	}

	if len(updates) > 0 {
		if err := s.db.Model(goal).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return goal, nil
}

// ReleaseGoal returns the goal's accumulated funds to the main balance and
// retires it. Releasing twice is rejected.
func (s *SavingsService) ReleaseGoal(userID, goalID uint) (float64, error) {
	goal, err := s.ownedGoal(userID, goalID)
	if err != nil {
		return 0, err
	}
	if goal.Status == models.GoalStatusReleased {
		return 0, apperr.InvalidStatef(string(goal.Status), "goal already released")
	}

	released := goal.CurrentAmount
	now := time.Now().UTC()
	err = s.db.Model(goal).Updates(map[string]interface{}{
		"current_amount": 0,
		"status":         models.GoalStatusReleased,
		"is_active":      false,
		"released_at":    now,
	}).Error
	if err != nil {
		return 0, err
	}
	return released, nil
}

// DeleteGoal removes a goal. A goal still holding funds must be released
// first.
func (s *SavingsService) DeleteGoal(userID, goalID uint) error {
	goal, err := s.ownedGoal(userID, goalID)
	if err != nil {
		return err
	}
	if goal.CurrentAmount > 0 && goal.Status != models.GoalStatusReleased {
		return apperr.InvalidStatef(string(goal.Status), "goal holds funds; release it before deleting")
	}
	return s.db.Delete(goal).Error
}

func (s *SavingsService) ListGoals(userID uint) ([]models.SavingsGoal, error) {
	var goals []models.SavingsGoal
	err := s.db.Where("user_id = ?", userID).Order("id asc").Find(&goals).Error
	return goals, err
}

func (s *SavingsService) ownedGoal(userID, goalID uint) (*models.SavingsGoal, error) {
	var goal models.SavingsGoal
	if err := s.db.First(&goal, goalID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.NotFound, "goal not found")
		}
		return nil, err
	}
	if goal.UserID != userID {
		return nil, apperr.New(apperr.Unauthorized, "goal belongs to another user")
	}
	return &goal, nil
}

// checkCeiling rejects any change that would push the user's active
// in-progress percentages above the ceiling. excludeID skips the goal being
// edited so its old percentage doesn't count twice.
func (s *SavingsService) checkCeiling(db *gorm.DB, userID uint, addedPercentage int, excludeID uint) error {
	var goals []models.SavingsGoal
	q := db.Where("user_id = ? AND is_active = ? AND status = ?", userID, true, models.GoalStatusInProgress)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Find(&goals).Error; err != nil {
		return err
	}

	total := addedPercentage
	for _, g := range goals {
		total += g.SavingsPercentage
	}
	if total > MaxTotalSavingsPercentage {
		return apperr.New(apperr.ValidationFailed,
			"total savings percentage would be %d%%; the maximum is %d%%", total, MaxTotalSavingsPercentage)
	}
	return nil
}
