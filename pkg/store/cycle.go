package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/sosbx/planidocs-exchange/pkg/database"
	"github.com/sosbx/planidocs-exchange/pkg/exchange"
	"github.com/sosbx/planidocs-exchange/pkg/models"
)

// GetPhase returns the current allocation cycle. If no cycle exists yet a
// fresh submission-phase cycle is created.
func (s *Store) GetPhase(ctx context.Context) (models.BagPhase, error) {
	var row database.BagPhaseRecord
	err := s.db.WithContext(ctx).Order("created_at desc").First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.ResetCycle(ctx, time.Time{})
	}
	if err != nil {
		return models.BagPhase{}, fmt.Errorf("failed to fetch current cycle: %w", err)
	}
	return phaseToModel(row), nil
}

// AdvancePhase moves the current cycle one step forward. The engine enforces
// the forward-only contract; the store only persists the accepted result.
func (s *Store) AdvancePhase(ctx context.Context, next models.Phase) (models.BagPhase, error) {
	current, err := s.GetPhase(ctx)
	if err != nil {
		return models.BagPhase{}, err
	}
	advanced, err := exchange.AdvancePhase(current, next)
	if err != nil {
		return models.BagPhase{}, err
	}
	res := s.db.WithContext(ctx).Model(&database.BagPhaseRecord{}).
		Where("cycle_id = ? AND phase = ?", current.CycleID, string(current.Phase)).
		Update("phase", string(advanced.Phase))
	if res.Error != nil {
		return models.BagPhase{}, fmt.Errorf("failed to advance phase: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.BagPhase{}, exchange.NewWriteConflict(current.CycleID)
	}
	return advanced, nil
}

// ResetCycle begins a new allocation cycle in the submission phase. A zero
// deadline gets the configured submission window.
func (s *Store) ResetCycle(ctx context.Context, deadline time.Time) (models.BagPhase, error) {
	if deadline.IsZero() {
		deadline = time.Now().UTC().Add(s.submissionWindow)
	}
	cycle := exchange.NewCycle(deadline)
	row := database.BagPhaseRecord{
		CycleID:            cycle.CycleID,
		Phase:              string(cycle.Phase),
		SubmissionDeadline: cycle.SubmissionDeadline,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return models.BagPhase{}, fmt.Errorf("failed to create cycle: %w", err)
	}
	return cycle, nil
}

// GetPolicy loads the cycle's equity policy, falling back to defaults when
// the admin never configured one.
func (s *Store) GetPolicy(ctx context.Context, cycleID string) (models.EquityPolicy, error) {
	var row database.EquityPolicyRecord
	err := s.db.WithContext(ctx).First(&row, "cycle_id = ?", cycleID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return DefaultPolicy(), nil
	}
	if err != nil {
		return models.EquityPolicy{}, fmt.Errorf("failed to fetch policy for cycle %s: %w", cycleID, err)
	}

	values := map[string]float64{}
	if row.ShiftTypeValues != "" {
		_ = json.Unmarshal([]byte(row.ShiftTypeValues), &values)
	}
	return models.EquityPolicy{
		TargetSatisfactionRate: row.TargetSatisfactionRate,
		SmallDemandBonus:       row.SmallDemandBonus,
		SmallDemandThreshold:   row.SmallDemandThreshold,
		DistributionMode:       models.DistributionMode(row.DistributionMode),
		ShiftTypeValues:        values,
	}, nil
}

// PutPolicy upserts the cycle's equity policy.
func (s *Store) PutPolicy(ctx context.Context, cycleID string, p models.EquityPolicy) error {
	if p.TargetSatisfactionRate < 0 || p.TargetSatisfactionRate > 1 {
		return exchange.NewValidationError("target_satisfaction_rate must be within [0,1]", "", "")
	}
	if p.SmallDemandBonus < 0 || p.SmallDemandBonus > 100 {
		return exchange.NewValidationError("small_demand_bonus must be within [0,100]", "", "")
	}
	values, _ := json.Marshal(p.ShiftTypeValues)

	var row database.EquityPolicyRecord
	err := s.db.WithContext(ctx).First(&row, "cycle_id = ?", cycleID).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to fetch policy for cycle %s: %w", cycleID, err)
	}

	row.CycleID = cycleID
	row.TargetSatisfactionRate = p.TargetSatisfactionRate
	row.SmallDemandBonus = p.SmallDemandBonus
	row.SmallDemandThreshold = p.SmallDemandThreshold
	row.DistributionMode = string(p.DistributionMode)
	row.ShiftTypeValues = string(values)

	if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
		return fmt.Errorf("failed to save policy for cycle %s: %w", cycleID, err)
	}
	return nil
}

// DefaultPolicy is the fairness configuration used until an admin sets one.
func DefaultPolicy() models.EquityPolicy {
	return models.EquityPolicy{
		TargetSatisfactionRate: 0.5,
		SmallDemandBonus:       20,
		SmallDemandThreshold:   3,
		DistributionMode:       models.ModeMixed,
	}
}

// DemandStats derives per-user demand and fulfillment statistics for a cycle.
// Requested counts come from interest declarations on the cycle's listings,
// received counts from the history sink. The result is a view, recomputed on
// every call, never written back.
func (s *Store) DemandStats(ctx context.Context, cycleID string) (map[string]models.UserDemandStats, error) {
	var listings []database.Listing
	if err := s.db.WithContext(ctx).Where("cycle_id = ?", cycleID).Find(&listings).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch listings for cycle %s: %w", cycleID, err)
	}
	var records []database.ExchangeRecord
	if err := s.db.WithContext(ctx).Where("cycle_id = ?", cycleID).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch history for cycle %s: %w", cycleID, err)
	}

	stats := make(map[string]models.UserDemandStats)
	bump := func(userID string) models.UserDemandStats {
		st, ok := stats[userID]
		if !ok {
			st = models.UserDemandStats{UserID: userID, ValueByShiftType: map[string]float64{}}
		}
		return st
	}

	for _, l := range listings {
		for _, userID := range decodeStrings(l.InterestedUserIDs) {
			st := bump(userID)
			st.RequestedCount++
			st.ValueByShiftType[l.ShiftType]++
			stats[userID] = st
		}
	}
	for _, r := range records {
		st := bump(r.ToUserID)
		st.ReceivedCount++
		stats[r.ToUserID] = st
	}

	for id, st := range stats {
		if st.RequestedCount > 0 {
			st.SatisfactionRate = float64(st.ReceivedCount) / float64(st.RequestedCount)
			if st.SatisfactionRate > 1 {
				st.SatisfactionRate = 1
			}
		}
		stats[id] = st
	}
	return stats, nil
}

func phaseToModel(r database.BagPhaseRecord) models.BagPhase {
	return models.BagPhase{
		CycleID:            r.CycleID,
		Phase:              models.Phase(r.Phase),
		SubmissionDeadline: r.SubmissionDeadline,
	}
}
