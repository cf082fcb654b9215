package database

import (
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sosbx/planidocs-exchange/config"
)

// Listing represents the listings table. Version backs the optimistic
// conditional writes used to serialize concurrent mutations per listing.
type Listing struct {
	ID                     string     `gorm:"primaryKey" json:"id"`
	CycleID                string     `gorm:"index;not null" json:"cycle_id"`
	OwnerUserID            string     `gorm:"index;not null" json:"owner_user_id"`
	Date                   string     `gorm:"index;not null" json:"date"`
	Period                 string     `gorm:"not null" json:"period"`
	ShiftType              string     `json:"shift_type"`
	TimeSlot               string     `json:"time_slot"`
	Comment                string     `json:"comment"`
	Status                 string     `gorm:"index;default:pending" json:"status"`
	InterestedUserIDs      string     `json:"interested_user_ids"` // JSON-encoded []string
	OperationKinds         string     `json:"operation_kinds"`     // JSON-encoded []string
	ProposedToReplacements bool       `json:"proposed_to_replacements"`
	Version                int        `gorm:"default:1" json:"version"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// PlanningAssignment represents one held shift in a user's planning. A
// planning import replaces a user's rows wholesale.
type PlanningAssignment struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        string    `gorm:"uniqueIndex:idx_user_slot;not null" json:"user_id"`
	AssignmentKey string    `gorm:"uniqueIndex:idx_user_slot;not null" json:"assignment_key"`
	Date          string    `gorm:"index;not null" json:"date"`
	Period        string    `gorm:"not null" json:"period"`
	ShiftType     string    `json:"shift_type"`
	TimeSlot      string    `json:"time_slot"`
	CreatedAt     time.Time `json:"created_at"`
}

// ExchangeRecord represents the exchange_records audit table (history sink).
type ExchangeRecord struct {
	ID          string    `gorm:"primaryKey" json:"id"`
	CycleID     string    `gorm:"index;not null" json:"cycle_id"`
	ListingID   string    `gorm:"index;not null" json:"listing_id"`
	Kind        string    `gorm:"not null" json:"kind"`
	FromUserID  string    `gorm:"index" json:"from_user_id"`
	ToUserID    string    `gorm:"index" json:"to_user_id"`
	Date        string    `json:"date"`
	Period      string    `json:"period"`
	ShiftType   string    `json:"shift_type"`
	TimeSlot    string    `json:"time_slot"`
	CompletedAt time.Time `json:"completed_at"`
}

// BagPhaseRecord represents the bag_phases table: one row per allocation cycle.
type BagPhaseRecord struct {
	CycleID            string    `gorm:"primaryKey" json:"cycle_id"`
	Phase              string    `gorm:"not null" json:"phase"`
	SubmissionDeadline time.Time `json:"submission_deadline"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// EquityPolicyRecord represents the equity_policies table. One active row is
// loaded per cycle and passed read-only into scoring calls.
type EquityPolicyRecord struct {
	ID                     uint      `gorm:"primaryKey" json:"id"`
	CycleID                string    `gorm:"uniqueIndex;not null" json:"cycle_id"`
	TargetSatisfactionRate float64   `json:"target_satisfaction_rate"`
	SmallDemandBonus       float64   `json:"small_demand_bonus"`
	SmallDemandThreshold   int       `json:"small_demand_threshold"`
	DistributionMode       string    `json:"distribution_mode"`
	ShiftTypeValues        string    `json:"shift_type_values"` // JSON-encoded map[string]float64
	UpdatedAt              time.Time `json:"updated_at"`
}

// APIKey represents the api_keys table used by planning-sync clients.
type APIKey struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	Key        string     `gorm:"unique;not null" json:"key"`
	Name       string     `gorm:"not null" json:"name"`
	KeyPreview string     `json:"key_preview"`
	RateLimit  int        `gorm:"default:10000" json:"rate_limit"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsed   *time.Time `json:"last_used"`
}

// APIUsage represents the api_usage table.
type APIUsage struct {
	ID            uint   `gorm:"primaryKey" json:"id"`
	KeyID         uint   `gorm:"uniqueIndex:idx_key_date;not null" json:"key_id"`
	Date          string `gorm:"uniqueIndex:idx_key_date;not null" json:"date"`
	RequestCount  int    `gorm:"default:0" json:"request_count"`
	TotalMatches  int    `gorm:"default:0" json:"total_matches"`
	TotalListings int    `gorm:"default:0" json:"total_listings"`
}

// MasterUser represents the master_users table (roster administrators).
type MasterUser struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"unique;not null" json:"username"`
	PasswordHash string    `gorm:"not null" json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// InitDB initializes the database connection and migrates the schema.
// DATABASE_URL overrides the configured DSN; a Postgres DSN selects Postgres,
// otherwise a local SQLite file is used.
func InitDB(cfg config.DatabaseConfig) *gorm.DB {
	var db *gorm.DB
	var err error

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = cfg.DSN
	}
	if dsn != "" {
		db, err = gorm.Open(postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true,
		}), &gorm.Config{
			PrepareStmt: false,
		})
	} else {
		dbPath := os.Getenv("DATA_PATH")
		if dbPath == "" {
			dbPath = "exchange.db"
		}
		db, err = gorm.Open(sqlite.Open(dbPath), &gorm.Config{})
	}

	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if cfg.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		if cfg.ConnMaxLifetimeMinutes > 0 {
			sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
		}
	}

	if err := Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	return db
}

// Migrate runs the schema migration for every table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Listing{},
		&PlanningAssignment{},
		&ExchangeRecord{},
		&BagPhaseRecord{},
		&EquityPolicyRecord{},
		&APIKey{},
		&APIUsage{},
		&MasterUser{},
	)
}
