package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sosbx/planidocs-exchange/pkg/database"
	"github.com/sosbx/planidocs-exchange/pkg/exchange"
	"github.com/sosbx/planidocs-exchange/pkg/models"
)

func newTestStore(t *testing.T) *Store {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// A single connection keeps every query on the same in-memory database.
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))
	return New(db)
}

func seedListing(t *testing.T, s *Store, cycleID string) models.ShiftExchangeListing {
	l, err := s.CreateListing(context.Background(), cycleID, models.ShiftExchangeListing{
		OwnerUserID: "owner",
		Date:        "2025-03-10",
		Period:      "Matin",
		ShiftType:   "NL",
		TimeSlot:    "08:00-13:00",
	})
	require.NoError(t, err)
	return l
}

func TestCreateAndGetListing(t *testing.T) {
	s := newTestStore(t)
	l := seedListing(t, s, "c1")

	assert.NotEmpty(t, l.ID)
	assert.Equal(t, models.StatusPending, l.Status)
	assert.Empty(t, l.InterestedUserIDs)
	assert.Equal(t, []models.OperationKind{models.OpKindExchange}, l.OperationKinds)

	got, err := s.GetListing(context.Background(), l.ID)
	require.NoError(t, err)
	assert.Equal(t, l, got)

	_, err = s.GetListing(context.Background(), "missing")
	assert.True(t, exchange.IsNotFound(err))
}

func TestCreateListing_Validation(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreateListing(context.Background(), "c1", models.ShiftExchangeListing{
		OwnerUserID: "owner", Date: "not-a-date", Period: "matin",
	})
	assert.True(t, exchange.IsValidation(err))

	_, err = s.CreateListing(context.Background(), "c1", models.ShiftExchangeListing{
		OwnerUserID: "owner", Date: "2025-03-10",
	})
	assert.True(t, exchange.IsValidation(err))
}

func TestToggleInterest_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	l := seedListing(t, s, "c1")
	ctx := context.Background()

	got, added, err := s.ToggleInterest(ctx, l.ID, "u1")
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, []string{"u1"}, got.InterestedUserIDs)

	got, added, err = s.ToggleInterest(ctx, l.ID, "u2")
	require.NoError(t, err)
	assert.True(t, added)
	assert.ElementsMatch(t, []string{"u1", "u2"}, got.InterestedUserIDs)

	// Toggling again withdraws.
	got, added, err = s.ToggleInterest(ctx, l.ID, "u1")
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, []string{"u2"}, got.InterestedUserIDs)

	_, _, err = s.ToggleInterest(ctx, "missing", "u1")
	assert.True(t, exchange.IsNotFound(err))
}

func TestToggleInterest_VersionAdvances(t *testing.T) {
	s := newTestStore(t)
	l := seedListing(t, s, "c1")
	ctx := context.Background()

	_, _, err := s.ToggleInterest(ctx, l.ID, "u1")
	require.NoError(t, err)
	_, _, err = s.ToggleInterest(ctx, l.ID, "u2")
	require.NoError(t, err)

	var row database.Listing
	require.NoError(t, s.DB().First(&row, "id = ?", l.ID).Error)
	// Each successful conditional write bumps the guard column.
	assert.Equal(t, 3, row.Version)
}

func TestWithdrawListing(t *testing.T) {
	s := newTestStore(t)
	l := seedListing(t, s, "c1")
	ctx := context.Background()

	err := s.WithdrawListing(ctx, l.ID, "someone-else")
	assert.True(t, exchange.IsValidation(err))

	require.NoError(t, s.WithdrawListing(ctx, l.ID, "owner"))

	_, err = s.GetListing(ctx, l.ID)
	assert.True(t, exchange.IsNotFound(err))
}

func TestTransitionListing_Terminal(t *testing.T) {
	s := newTestStore(t)
	l := seedListing(t, s, "c1")
	ctx := context.Background()

	require.NoError(t, s.TransitionListing(ctx, l.ID, models.StatusUnavailable))

	got, err := s.GetListing(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusUnavailable, got.Status)

	// Unavailable is terminal; no way back to pending or across to validated.
	assert.Error(t, s.TransitionListing(ctx, l.ID, models.StatusPending))
	assert.Error(t, s.TransitionListing(ctx, l.ID, models.StatusValidated))
}

func TestCompleteExchange(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.ReplacePlanning(ctx, "owner", map[string]models.ShiftAssignment{
		"k1": {Date: "2025-03-10", Period: "Matin", ShiftType: "NL", TimeSlot: "08:00-13:00"},
	}))
	l := seedListing(t, s, "c1")

	rec, err := s.CompleteExchange(ctx, l.ID, "taker", models.OpKindGive)
	require.NoError(t, err)
	assert.Equal(t, "owner", rec.FromUserID)
	assert.Equal(t, "taker", rec.ToUserID)
	assert.Equal(t, models.OpKindGive, rec.Kind)

	// The shift left the owner's planning and landed in the taker's.
	ownerPlanning, err := s.GetPlanning(ctx, "owner")
	require.NoError(t, err)
	assert.Empty(t, ownerPlanning)

	takerPlanning, err := s.GetPlanning(ctx, "taker")
	require.NoError(t, err)
	require.Len(t, takerPlanning, 1)
	assert.Equal(t, "NL", takerPlanning["k1"].ShiftType)

	got, err := s.GetListing(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusValidated, got.Status)

	history, err := s.History(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, rec.ID, history[0].ID)

	// A validated listing cannot be completed twice.
	_, err = s.CompleteExchange(ctx, l.ID, "other", models.OpKindGive)
	assert.True(t, exchange.IsValidation(err))
}

func TestCompleteExchange_OwnerNoLongerHoldsShift(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// The owner's planning was regenerated without the listed shift.
	l := seedListing(t, s, "c1")
	_, _, err := s.ToggleInterest(ctx, l.ID, "taker")
	require.NoError(t, err)

	_, err = s.CompleteExchange(ctx, l.ID, "taker", models.OpKindExchange)
	assert.True(t, exchange.IsNotFound(err))

	// The whole transaction rolled back: listing still pending, no audit
	// record, nothing delivered.
	got, err := s.GetListing(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)

	history, err := s.History(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, history)

	planning, err := s.GetPlanning(ctx, "taker")
	require.NoError(t, err)
	assert.Empty(t, planning)
}

// bumpVersionBeforeUpdates registers a callback that increments the listing's
// version column right before the store's own guarded update runs, so the
// conditional write always sees a stale version. maxTimes < 0 means always.
func bumpVersionBeforeUpdates(t *testing.T, s *Store, listingID string, maxTimes int) *int {
	fired := 0
	db := s.DB()
	err := db.Callback().Update().Before("gorm:update").Register("test_version_bump", func(tx *gorm.DB) {
		if tx.Statement.Table != "listings" {
			return
		}
		if maxTimes >= 0 && fired >= maxTimes {
			return
		}
		fired++
		// Run the bump on the in-flight transaction's connection: the root
		// pool is capped at one connection, which the surrounding implicit
		// transaction already holds.
		_, _ = tx.Statement.ConnPool.ExecContext(tx.Statement.Context,
			"UPDATE listings SET version = version + 1 WHERE id = ?", listingID)
	})
	require.NoError(t, err)
	return &fired
}

func TestToggleInterest_RetriesOnVersionConflict(t *testing.T) {
	s := newTestStore(t)
	l := seedListing(t, s, "c1")
	ctx := context.Background()

	// One interfering write: the first attempt misses, the retry re-reads
	// fresh state and lands.
	fired := bumpVersionBeforeUpdates(t, s, l.ID, 1)

	got, added, err := s.ToggleInterest(ctx, l.ID, "u1")
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, []string{"u1"}, got.InterestedUserIDs)
	assert.Equal(t, 1, *fired)
}

func TestToggleInterest_SurfacesRepeatedConflicts(t *testing.T) {
	s := newTestStore(t)
	l := seedListing(t, s, "c1")
	ctx := context.Background()

	// Interference on every attempt exhausts the single retry.
	fired := bumpVersionBeforeUpdates(t, s, l.ID, -1)

	_, _, err := s.ToggleInterest(ctx, l.ID, "u1")
	assert.True(t, exchange.IsWriteConflict(err))
	assert.Equal(t, 2, *fired)

	// The interested set never changed.
	got, err := s.GetListing(ctx, l.ID)
	require.NoError(t, err)
	assert.Empty(t, got.InterestedUserIDs)
}

func TestReplacePlanning_Wholesale(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.ReplacePlanning(ctx, "u1", map[string]models.ShiftAssignment{
		"a": {Date: "2025-03-10", Period: "matin"},
		"b": {Date: "2025-03-11", Period: "soir"},
	}))
	require.NoError(t, s.ReplacePlanning(ctx, "u1", map[string]models.ShiftAssignment{
		"c": {Date: "2025-03-12", Period: "am"},
	}))

	planning, err := s.GetPlanning(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, planning, 1)
	_, ok := planning["c"]
	assert.True(t, ok)
}

func TestPhaseLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// First access lazily creates a submission-phase cycle with a real
	// deadline from the default submission window.
	phase, err := s.GetPhase(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseSubmission, phase.Phase)
	assert.NotEmpty(t, phase.CycleID)
	assert.False(t, phase.SubmissionDeadline.IsZero())
	assert.True(t, phase.SubmissionDeadline.After(time.Now()))

	phase, err = s.AdvancePhase(ctx, models.PhaseDistribution)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseDistribution, phase.Phase)

	_, err = s.AdvancePhase(ctx, models.PhaseSubmission)
	assert.True(t, exchange.IsPhaseViolation(err))

	// A reset starts a new cycle back in submission.
	fresh, err := s.ResetCycle(ctx, time.Now().Add(48*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, models.PhaseSubmission, fresh.Phase)
	assert.NotEqual(t, phase.CycleID, fresh.CycleID)

	current, err := s.GetPhase(ctx)
	require.NoError(t, err)
	assert.Equal(t, fresh.CycleID, current.CycleID)
}

func TestPolicyRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Unconfigured cycles use the defaults.
	p, err := s.GetPolicy(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, DefaultPolicy(), p)

	want := models.EquityPolicy{
		TargetSatisfactionRate: 0.7,
		SmallDemandBonus:       30,
		SmallDemandThreshold:   2,
		DistributionMode:       models.ModeEquity,
		ShiftTypeValues:        map[string]float64{"NL": 90},
	}
	require.NoError(t, s.PutPolicy(ctx, "c1", want))

	got, err := s.GetPolicy(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	assert.True(t, exchange.IsValidation(s.PutPolicy(ctx, "c1", models.EquityPolicy{TargetSatisfactionRate: 1.5})))
	assert.True(t, exchange.IsValidation(s.PutPolicy(ctx, "c1", models.EquityPolicy{SmallDemandBonus: 150})))
}

func TestDemandStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.ReplacePlanning(ctx, "owner", map[string]models.ShiftAssignment{
		"k1": {Date: "2025-03-10", Period: "matin", ShiftType: "NL"},
	}))

	l1 := seedListing(t, s, "c1")
	l2, err := s.CreateListing(ctx, "c1", models.ShiftExchangeListing{
		OwnerUserID: "owner2", Date: "2025-03-11", Period: "soir", ShiftType: "CS",
	})
	require.NoError(t, err)

	_, _, err = s.ToggleInterest(ctx, l1.ID, "A")
	require.NoError(t, err)
	_, _, err = s.ToggleInterest(ctx, l2.ID, "A")
	require.NoError(t, err)
	_, _, err = s.ToggleInterest(ctx, l2.ID, "B")
	require.NoError(t, err)

	_, err = s.CompleteExchange(ctx, l1.ID, "A", models.OpKindExchange)
	require.NoError(t, err)

	stats, err := s.DemandStats(ctx, "c1")
	require.NoError(t, err)

	a := stats["A"]
	assert.Equal(t, 2, a.RequestedCount)
	assert.Equal(t, 1, a.ReceivedCount)
	assert.InDelta(t, 0.5, a.SatisfactionRate, 1e-9)
	assert.Equal(t, 1.0, a.ValueByShiftType["NL"])
	assert.Equal(t, 1.0, a.ValueByShiftType["CS"])

	b := stats["B"]
	assert.Equal(t, 1, b.RequestedCount)
	assert.Equal(t, 0, b.ReceivedCount)
	assert.Equal(t, 0.0, b.SatisfactionRate)
}
