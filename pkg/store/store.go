package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sosbx/planidocs-exchange/pkg/database"
	"github.com/sosbx/planidocs-exchange/pkg/exchange"
	"github.com/sosbx/planidocs-exchange/pkg/models"
)

// Store wraps the database with the marketplace's persistence operations.
// Mutations on a listing go through versioned conditional writes: read the
// current row, compute the new state, write guarded by the version column.
// A write that matches zero rows means the listing changed underneath us.
type Store struct {
	db *gorm.DB

	// submissionWindow backfills the deadline of cycles created without one.
	submissionWindow time.Duration
}

// New creates a Store over an initialized gorm connection.
func New(db *gorm.DB) *Store {
	return &Store{db: db, submissionWindow: 72 * time.Hour}
}

// SetSubmissionWindow overrides the default deadline window for new cycles.
func (s *Store) SetSubmissionWindow(d time.Duration) {
	if d > 0 {
		s.submissionWindow = d
	}
}

// DB exposes the underlying connection for middleware that records usage.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// --- Planning provider ---

// GetPlanning returns the user's currently held shifts keyed by assignment key.
func (s *Store) GetPlanning(ctx context.Context, userID string) (map[string]models.ShiftAssignment, error) {
	var rows []database.PlanningAssignment
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch planning for user %s: %w", userID, err)
	}
	planning := make(map[string]models.ShiftAssignment, len(rows))
	for _, r := range rows {
		planning[r.AssignmentKey] = models.ShiftAssignment{
			Date:      r.Date,
			Period:    r.Period,
			ShiftType: r.ShiftType,
			TimeSlot:  r.TimeSlot,
		}
	}
	return planning, nil
}

// ReplacePlanning swaps a user's planning wholesale, in one transaction.
// Regenerated plannings always arrive as a complete set, never as a diff.
func (s *Store) ReplacePlanning(ctx context.Context, userID string, assignments map[string]models.ShiftAssignment) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&database.PlanningAssignment{}).Error; err != nil {
			return fmt.Errorf("failed to clear planning for user %s: %w", userID, err)
		}
		if len(assignments) == 0 {
			return nil
		}
		rows := make([]database.PlanningAssignment, 0, len(assignments))
		for key, a := range assignments {
			date, err := exchange.NormalizeDate(a.Date)
			if err != nil {
				return fmt.Errorf("planning row %s: %w", key, err)
			}
			rows = append(rows, database.PlanningAssignment{
				UserID:        userID,
				AssignmentKey: key,
				Date:          date,
				Period:        a.Period,
				ShiftType:     a.ShiftType,
				TimeSlot:      a.TimeSlot,
			})
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("failed to insert planning for user %s: %w", userID, err)
		}
		return nil
	})
}

// --- Listings ---

// CreateListing publishes a shift into the bag. The listing starts pending
// with no interested users.
func (s *Store) CreateListing(ctx context.Context, cycleID string, l models.ShiftExchangeListing) (models.ShiftExchangeListing, error) {
	date, err := exchange.NormalizeDate(l.Date)
	if err != nil {
		return models.ShiftExchangeListing{}, err
	}
	if l.Period == "" {
		return models.ShiftExchangeListing{}, exchange.NewValidationError("missing period", l.Date, "")
	}
	if len(l.OperationKinds) == 0 {
		l.OperationKinds = []models.OperationKind{models.OpKindExchange}
	}

	row := database.Listing{
		ID:                     uuid.NewString(),
		CycleID:                cycleID,
		OwnerUserID:            l.OwnerUserID,
		Date:                   date,
		Period:                 l.Period,
		ShiftType:              l.ShiftType,
		TimeSlot:               l.TimeSlot,
		Comment:                l.Comment,
		Status:                 string(models.StatusPending),
		InterestedUserIDs:      encodeStrings(nil),
		OperationKinds:         encodeKinds(l.OperationKinds),
		ProposedToReplacements: l.ProposedToReplacements,
		Version:                1,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return models.ShiftExchangeListing{}, fmt.Errorf("failed to create listing: %w", err)
	}
	return listingToModel(row), nil
}

// GetListing fetches one listing by id.
func (s *Store) GetListing(ctx context.Context, id string) (models.ShiftExchangeListing, error) {
	row, err := s.getListingRow(ctx, id)
	if err != nil {
		return models.ShiftExchangeListing{}, err
	}
	return listingToModel(row), nil
}

func (s *Store) getListingRow(ctx context.Context, id string) (database.Listing, error) {
	var row database.Listing
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return database.Listing{}, exchange.NewNotFound("listing", id)
		}
		return database.Listing{}, fmt.Errorf("failed to fetch listing %s: %w", id, err)
	}
	return row, nil
}

// ListingFilter narrows ListListings. Zero values mean "any".
type ListingFilter struct {
	CycleID string
	Status  models.ListingStatus
	Date    string
	OwnerID string
}

// ListListings returns listings matching the filter, oldest first.
func (s *Store) ListListings(ctx context.Context, f ListingFilter) ([]models.ShiftExchangeListing, error) {
	q := s.db.WithContext(ctx).Model(&database.Listing{}).Order("created_at asc")
	if f.CycleID != "" {
		q = q.Where("cycle_id = ?", f.CycleID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", string(f.Status))
	}
	if f.Date != "" {
		date, err := exchange.NormalizeDate(f.Date)
		if err != nil {
			return nil, err
		}
		q = q.Where("date = ?", date)
	}
	if f.OwnerID != "" {
		q = q.Where("owner_user_id = ?", f.OwnerID)
	}

	var rows []database.Listing
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list listings: %w", err)
	}
	out := make([]models.ShiftExchangeListing, len(rows))
	for i, r := range rows {
		out[i] = listingToModel(r)
	}
	return out, nil
}

// WithdrawListing removes an owner's own pending listing from the bag.
func (s *Store) WithdrawListing(ctx context.Context, id, ownerID string) error {
	row, err := s.getListingRow(ctx, id)
	if err != nil {
		return err
	}
	if row.OwnerUserID != ownerID {
		return exchange.NewValidationError("only the owner can withdraw a listing", row.Date, row.Period)
	}
	if row.Status != string(models.StatusPending) {
		return &exchange.ExchangeError{
			Code:      exchange.ErrCodeValidation,
			Message:   "only pending listings can be withdrawn",
			ListingID: id,
		}
	}
	res := s.db.WithContext(ctx).
		Where("id = ? AND version = ?", id, row.Version).
		Delete(&database.Listing{})
	if res.Error != nil {
		return fmt.Errorf("failed to withdraw listing %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return exchange.NewWriteConflict(id)
	}
	return nil
}

// ToggleInterest flips userID's membership in the listing's interested set.
// The write is conditional on the row version and retried once with fresh
// state; a second conflict surfaces to the caller. Cancellation before the
// write leaves the listing untouched.
func (s *Store) ToggleInterest(ctx context.Context, listingID, userID string) (models.ShiftExchangeListing, bool, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		row, err := s.getListingRow(ctx, listingID)
		if err != nil {
			return models.ShiftExchangeListing{}, false, err
		}

		interested := decodeStrings(row.InterestedUserIDs)
		next, added := toggle(interested, userID)

		res := s.db.WithContext(ctx).Model(&database.Listing{}).
			Where("id = ? AND version = ?", listingID, row.Version).
			Updates(map[string]interface{}{
				"interested_user_ids": encodeStrings(next),
				"version":             row.Version + 1,
			})
		if res.Error != nil {
			return models.ShiftExchangeListing{}, false, fmt.Errorf("failed to update interest on %s: %w", listingID, res.Error)
		}
		if res.RowsAffected > 0 {
			row.InterestedUserIDs = encodeStrings(next)
			row.Version++
			return listingToModel(row), added, nil
		}
		lastErr = exchange.NewWriteConflict(listingID)
	}
	return models.ShiftExchangeListing{}, false, lastErr
}

// TransitionListing applies a validated status change, guarded by version.
func (s *Store) TransitionListing(ctx context.Context, id string, next models.ListingStatus) error {
	row, err := s.getListingRow(ctx, id)
	if err != nil {
		return err
	}
	if err := exchange.TransitionListing(models.ListingStatus(row.Status), next); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&database.Listing{}).
		Where("id = ? AND version = ?", id, row.Version).
		Updates(map[string]interface{}{
			"status":  string(next),
			"version": row.Version + 1,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to transition listing %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return exchange.NewWriteConflict(id)
	}
	return nil
}

// MarkProposedToReplacements flags an unclaimed listing as forwarded to the
// external replacement pool. Idempotent once set.
func (s *Store) MarkProposedToReplacements(ctx context.Context, id string) (models.ShiftExchangeListing, error) {
	row, err := s.getListingRow(ctx, id)
	if err != nil {
		return models.ShiftExchangeListing{}, err
	}
	if row.ProposedToReplacements {
		return listingToModel(row), nil
	}
	res := s.db.WithContext(ctx).Model(&database.Listing{}).
		Where("id = ? AND version = ?", id, row.Version).
		Updates(map[string]interface{}{
			"proposed_to_replacements": true,
			"version":                  row.Version + 1,
		})
	if res.Error != nil {
		return models.ShiftExchangeListing{}, fmt.Errorf("failed to flag listing %s for replacements: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ShiftExchangeListing{}, exchange.NewWriteConflict(id)
	}
	row.ProposedToReplacements = true
	row.Version++
	return listingToModel(row), nil
}

// CompleteExchange finalizes an allocation in one transaction: the shift
// moves from the owner's planning to the recipient's, the listing becomes
// validated, and an audit record lands in the history sink. A failure at any
// step rolls everything back.
func (s *Store) CompleteExchange(ctx context.Context, listingID, toUserID string, kind models.OperationKind) (models.ExchangeRecord, error) {
	var record models.ExchangeRecord

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row database.Listing
		if err := tx.First(&row, "id = ?", listingID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return exchange.NewNotFound("listing", listingID)
			}
			return fmt.Errorf("failed to fetch listing %s: %w", listingID, err)
		}
		if err := exchange.TransitionListing(models.ListingStatus(row.Status), models.StatusValidated); err != nil {
			return err
		}

		res := tx.Model(&database.Listing{}).
			Where("id = ? AND version = ?", listingID, row.Version).
			Updates(map[string]interface{}{
				"status":  string(models.StatusValidated),
				"version": row.Version + 1,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to validate listing %s: %w", listingID, res.Error)
		}
		if res.RowsAffected == 0 {
			return exchange.NewWriteConflict(listingID)
		}

		// Move the held shift: the owner's planning row becomes the
		// recipient's. Planning rows keep raw period labels, so the slot is
		// located through the normalizer, not string equality.
		var held []database.PlanningAssignment
		if err := tx.Where("user_id = ? AND date = ?", row.OwnerUserID, row.Date).Find(&held).Error; err != nil {
			return fmt.Errorf("failed to fetch planning for listing %s: %w", listingID, err)
		}
		var assignmentID uint
		for _, a := range held {
			if exchange.PeriodsEquivalent(a.Period, row.Period) && a.ShiftType == row.ShiftType {
				assignmentID = a.ID
				break
			}
		}
		// A regenerated planning may no longer hold the listed shift. There
		// is nothing to transfer then, so the whole completion rolls back.
		if assignmentID == 0 {
			return exchange.NewNotFound("assignment", listingID)
		}
		move := tx.Model(&database.PlanningAssignment{}).
			Where("id = ?", assignmentID).
			Update("user_id", toUserID)
		if move.Error != nil {
			return fmt.Errorf("failed to reassign shift for listing %s: %w", listingID, move.Error)
		}
		if move.RowsAffected == 0 {
			return exchange.NewWriteConflict(listingID)
		}

		rec := database.ExchangeRecord{
			ID:          uuid.NewString(),
			CycleID:     row.CycleID,
			ListingID:   row.ID,
			Kind:        string(kind),
			FromUserID:  row.OwnerUserID,
			ToUserID:    toUserID,
			Date:        row.Date,
			Period:      row.Period,
			ShiftType:   row.ShiftType,
			TimeSlot:    row.TimeSlot,
			CompletedAt: time.Now().UTC(),
		}
		if err := tx.Create(&rec).Error; err != nil {
			return fmt.Errorf("failed to archive exchange for listing %s: %w", listingID, err)
		}
		record = recordToModel(rec)
		return nil
	})
	if err != nil {
		return models.ExchangeRecord{}, err
	}
	return record, nil
}

// History returns the cycle's completed exchange records, newest first.
func (s *Store) History(ctx context.Context, cycleID string) ([]models.ExchangeRecord, error) {
	var rows []database.ExchangeRecord
	q := s.db.WithContext(ctx).Order("completed_at desc")
	if cycleID != "" {
		q = q.Where("cycle_id = ?", cycleID)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch history: %w", err)
	}
	out := make([]models.ExchangeRecord, len(rows))
	for i, r := range rows {
		out[i] = recordToModel(r)
	}
	return out, nil
}

// --- helpers ---

func toggle(set []string, member string) ([]string, bool) {
	for i, m := range set {
		if m == member {
			return append(set[:i:i], set[i+1:]...), false
		}
	}
	return append(set, member), true
}

func encodeStrings(in []string) string {
	if in == nil {
		in = []string{}
	}
	b, _ := json.Marshal(in)
	return string(b)
}

func decodeStrings(in string) []string {
	var out []string
	if in == "" {
		return out
	}
	_ = json.Unmarshal([]byte(in), &out)
	return out
}

func encodeKinds(in []models.OperationKind) string {
	ss := make([]string, len(in))
	for i, k := range in {
		ss[i] = string(k)
	}
	return encodeStrings(ss)
}

func decodeKinds(in string) []models.OperationKind {
	ss := decodeStrings(in)
	out := make([]models.OperationKind, len(ss))
	for i, s := range ss {
		out[i] = models.OperationKind(s)
	}
	return out
}

func listingToModel(r database.Listing) models.ShiftExchangeListing {
	return models.ShiftExchangeListing{
		ID:                     r.ID,
		OwnerUserID:            r.OwnerUserID,
		Date:                   r.Date,
		Period:                 r.Period,
		ShiftType:              r.ShiftType,
		TimeSlot:               r.TimeSlot,
		Comment:                r.Comment,
		Status:                 models.ListingStatus(r.Status),
		InterestedUserIDs:      decodeStrings(r.InterestedUserIDs),
		OperationKinds:         decodeKinds(r.OperationKinds),
		ProposedToReplacements: r.ProposedToReplacements,
	}
}

func recordToModel(r database.ExchangeRecord) models.ExchangeRecord {
	return models.ExchangeRecord{
		ID:          r.ID,
		CycleID:     r.CycleID,
		ListingID:   r.ListingID,
		Kind:        models.OperationKind(r.Kind),
		FromUserID:  r.FromUserID,
		ToUserID:    r.ToUserID,
		Date:        r.Date,
		Period:      r.Period,
		ShiftType:   r.ShiftType,
		TimeSlot:    r.TimeSlot,
		CompletedAt: r.CompletedAt,
	}
}
