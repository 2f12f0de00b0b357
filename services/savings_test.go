package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/yourusername/lancerpay/apperr"
	"github.com/yourusername/lancerpay/models"
)

func TestAllocate(t *testing.T) {
	t.Run("Distributes By Percentage", func(t *testing.T) {
		goals := []models.SavingsGoal{
			{ID: 1, Title: "Laptop", SavingsPercentage: 20, CurrentAmount: 50, TargetAmount: 1000},
			{ID: 2, Title: "Taxes", SavingsPercentage: 10, CurrentAmount: 0, TargetAmount: 5000},
		}

		allocations, residual := Allocate(1000, goals)

		assert.Len(t, allocations, 2)
		assert.Equal(t, 200.0, allocations[0].Amount)
		assert.Equal(t, 250.0, allocations[0].NewTotal)
		assert.Equal(t, 100.0, allocations[1].Amount)
		assert.Equal(t, 700.0, residual)
	})

	t.Run("Never Allocates More Than The Amount", func(t *testing.T) {
		// 50% is the enforced ceiling; even at the ceiling at least half
		// the amount stays in the main balance.
		goals := []models.SavingsGoal{
			{ID: 1, SavingsPercentage: 25, TargetAmount: 100000},
			{ID: 2, SavingsPercentage: 25, TargetAmount: 100000},
		}

		allocations, residual := Allocate(800, goals)

		total := 0.0
		for _, a := range allocations {
			total += a.Amount
		}
		assert.Equal(t, 400.0, total)
		assert.Equal(t, 400.0, residual)
	})

	t.Run("Marks Goal Completed At Target", func(t *testing.T) {
		goals := []models.SavingsGoal{
			{ID: 1, SavingsPercentage: 20, CurrentAmount: 900, TargetAmount: 1000},
		}

		allocations, _ := Allocate(1000, goals)

		assert.True(t, allocations[0].Completed)
		assert.Equal(t, 1100.0, allocations[0].NewTotal)
	})

	t.Run("No Goals Means Full Residual", func(t *testing.T) {
		allocations, residual := Allocate(500, nil)
		assert.Empty(t, allocations)
		assert.Equal(t, 500.0, residual)
	})
}

func TestCreateGoalCeiling(t *testing.T) {
	db := setupTestDB(t)
	svc := NewSavingsService(db)
	user := createTestUser(t, db, "saver@example.com", nil)

	_, err := svc.CreateGoal(user.ID, CreateGoalInput{Title: "A", TargetAmount: 1000, SavingsPercentage: 30})
	assert.NoError(t, err)

	_, err = svc.CreateGoal(user.ID, CreateGoalInput{Title: "B", TargetAmount: 1000, SavingsPercentage: 20})
	assert.NoError(t, err)

	t.Run("Rejects Above 50 Percent Total", func(t *testing.T) {
		_, err := svc.CreateGoal(user.ID, CreateGoalInput{Title: "C", TargetAmount: 1000, SavingsPercentage: 1})
		assert.Equal(t, apperr.ValidationFailed, apperr.KindOf(err))
	})

	t.Run("Rejects Percentage Out Of Range", func(t *testing.T) {
		_, err := svc.CreateGoal(user.ID, CreateGoalInput{Title: "D", TargetAmount: 1000, SavingsPercentage: 51})
		assert.Equal(t, apperr.ValidationFailed, apperr.KindOf(err))

		_, err = svc.CreateGoal(user.ID, CreateGoalInput{Title: "E", TargetAmount: 1000, SavingsPercentage: 0})
		assert.Equal(t, apperr.ValidationFailed, apperr.KindOf(err))
	})

	t.Run("Other Users Are Unaffected", func(t *testing.T) {
		other := createTestUser(t, db, "other@example.com", nil)
		_, err := svc.CreateGoal(other.ID, CreateGoalInput{Title: "F", TargetAmount: 1000, SavingsPercentage: 50})
		assert.NoError(t, err)
	})
}

func TestUpdateGoalCeilingOnReactivate(t *testing.T) {
	db := setupTestDB(t)
	svc := NewSavingsService(db)
	user := createTestUser(t, db, "saver@example.com", nil)

	paused, err := svc.CreateGoal(user.ID, CreateGoalInput{Title: "Paused", TargetAmount: 1000, SavingsPercentage: 30})
	assert.NoError(t, err)

	off := false
	_, err = svc.UpdateGoal(user.ID, paused.ID, UpdateGoalInput{IsActive: &off})
	assert.NoError(t, err)

	// While paused its 30% doesn't count, so another 40% fits.
	_, err = svc.CreateGoal(user.ID, CreateGoalInput{Title: "Active", TargetAmount: 1000, SavingsPercentage: 40})
	assert.NoError(t, err)

	t.Run("Reactivation Rechecks The Ceiling", func(t *testing.T) {
		on := true
		_, err := svc.UpdateGoal(user.ID, paused.ID, UpdateGoalInput{IsActive: &on})
		assert.Equal(t, apperr.ValidationFailed, apperr.KindOf(err))
	})

	t.Run("Lowering The Percentage Lets It Reactivate", func(t *testing.T) {
		on := true
		ten := 10
		updated, err := svc.UpdateGoal(user.ID, paused.ID, UpdateGoalInput{IsActive: &on, SavingsPercentage: &ten})
		assert.NoError(t, err)

		var goal models.SavingsGoal
		db.First(&goal, updated.ID)
		assert.True(t, goal.IsActive)
		assert.Equal(t, 10, goal.SavingsPercentage)
	})
}

func TestReleaseGoal(t *testing.T) {
	db := setupTestDB(t)
	svc := NewSavingsService(db)
	user := createTestUser(t, db, "saver@example.com", nil)

	goal, err := svc.CreateGoal(user.ID, CreateGoalInput{Title: "Fund", TargetAmount: 1000, SavingsPercentage: 20})
	assert.NoError(t, err)
	db.Model(goal).Update("current_amount", 350.0)

	t.Run("Returns The Held Amount", func(t *testing.T) {
		released, err := svc.ReleaseGoal(user.ID, goal.ID)
		assert.NoError(t, err)
		assert.Equal(t, 350.0, released)

		var got models.SavingsGoal
		db.First(&got, goal.ID)
		assert.Equal(t, models.GoalStatusReleased, got.Status)
		assert.Equal(t, 0.0, got.CurrentAmount)
		assert.False(t, got.IsActive)
	})

	t.Run("Second Release Is Rejected", func(t *testing.T) {
		_, err := svc.ReleaseGoal(user.ID, goal.ID)
		assert.Equal(t, apperr.InvalidState, apperr.KindOf(err))
		assert.Equal(t, string(models.GoalStatusReleased), apperr.StatusOf(err))
	})

	t.Run("Other Users Cannot Release", func(t *testing.T) {
		other := createTestUser(t, db, "other@example.com", nil)
		g, _ := svc.CreateGoal(user.ID, CreateGoalInput{Title: "Mine", TargetAmount: 100, SavingsPercentage: 5})
		_, err := svc.ReleaseGoal(other.ID, g.ID)
		assert.Equal(t, apperr.Unauthorized, apperr.KindOf(err))
	})
}

func TestDeleteGoal(t *testing.T) {
	db := setupTestDB(t)
	svc := NewSavingsService(db)
	user := createTestUser(t, db, "saver@example.com", nil)

	t.Run("Rejected While Holding Funds", func(t *testing.T) {
		goal, _ := svc.CreateGoal(user.ID, CreateGoalInput{Title: "Held", TargetAmount: 1000, SavingsPercentage: 10})
		db.Model(goal).Update("current_amount", 25.0)

		err := svc.DeleteGoal(user.ID, goal.ID)
		assert.Equal(t, apperr.InvalidState, apperr.KindOf(err))
	})

	t.Run("Allowed After Release", func(t *testing.T) {
		goal, _ := svc.CreateGoal(user.ID, CreateGoalInput{Title: "Done", TargetAmount: 1000, SavingsPercentage: 10})
		db.Model(goal).Update("current_amount", 25.0)

		_, err := svc.ReleaseGoal(user.ID, goal.ID)
		assert.NoError(t, err)
		assert.NoError(t, svc.DeleteGoal(user.ID, goal.ID))
	})

	t.Run("Allowed When Empty", func(t *testing.T) {
		goal, _ := svc.CreateGoal(user.ID, CreateGoalInput{Title: "Empty", TargetAmount: 1000, SavingsPercentage: 10})
		assert.NoError(t, svc.DeleteGoal(user.ID, goal.ID))
	})
}

func TestApplySettlement(t *testing.T) {
	db := setupTestDB(t)
	svc := NewSavingsService(db)
	user := createTestUser(t, db, "saver@example.com", nil)

	goal, err := svc.CreateGoal(user.ID, CreateGoalInput{Title: "Laptop", TargetAmount: 1000, SavingsPercentage: 20})
	assert.NoError(t, err)

	allocations, residual, err := svc.ApplySettlement(user.ID, 101, 1000)
	assert.NoError(t, err)
	assert.Len(t, allocations, 1)
	assert.Equal(t, 200.0, allocations[0].Amount)
	assert.Equal(t, 800.0, residual)

	var got models.SavingsGoal
	db.First(&got, goal.ID)
	assert.Equal(t, 200.0, got.CurrentAmount)
	assert.Equal(t, models.GoalStatusInProgress, got.Status)

	t.Run("Re-driving The Same Invoice Does Not Double-Credit", func(t *testing.T) {
		allocations, residual, err := svc.ApplySettlement(user.ID, 101, 1000)
		assert.NoError(t, err)
		assert.Empty(t, allocations)
		assert.Equal(t, 1000.0, residual)

		db.First(&got, goal.ID)
		assert.Equal(t, 200.0, got.CurrentAmount)

		var count int64
		db.Model(&models.SavingsAllocation{}).
			Where("goal_id = ? AND invoice_id = ?", goal.ID, 101).Count(&count)
		assert.Equal(t, int64(1), count)
	})

	t.Run("Completion Deactivates The Goal", func(t *testing.T) {
		// Another 4000 pushes 200+800 to the 1000 target.
		_, _, err := svc.ApplySettlement(user.ID, 102, 4000)
		assert.NoError(t, err)

		db.First(&got, goal.ID)
		assert.Equal(t, models.GoalStatusCompleted, got.Status)
		assert.False(t, got.IsActive)
		assert.Equal(t, 1000.0, got.CurrentAmount)

		// Completed goals no longer receive allocations.
		allocations, residual, err := svc.ApplySettlement(user.ID, 103, 1000)
		assert.NoError(t, err)
		assert.Empty(t, allocations)
		assert.Equal(t, 1000.0, residual)
	})
}
