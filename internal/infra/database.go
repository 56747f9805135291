package infra

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase establishes a GORM connection backed by pgx and applies the
// idempotent schema patches. AutoMigrate is not used: the partial unique index
// and CHECK constraints the session store relies on cannot be expressed in tags.
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := applySchemaPatches(db); err != nil {
		return nil, fmt.Errorf("schema patches: %w", err)
	}
	return db, nil
}

// schemaPatches are executed in order on every start. Each statement uses
// IF NOT EXISTS so re-running on an already-patched DB is a no-op.
var schemaPatches = []struct{ descr, sql string }{
	{"create branches", `
CREATE TABLE IF NOT EXISTS branches (
  id              BIGINT       PRIMARY KEY,
  restaurant_id   BIGINT       NOT NULL,
  name            VARCHAR(120) NOT NULL,
  restaurant_name VARCHAR(120) NOT NULL,
  timezone        VARCHAR(64)  NOT NULL DEFAULT 'UTC',
  currency        VARCHAR(8)   NOT NULL DEFAULT 'TRY',
  created_at      TIMESTAMPTZ  NOT NULL DEFAULT now(),
  updated_at      TIMESTAMPTZ  NOT NULL DEFAULT now()
)`},
	{"index branches.restaurant_id",
		`CREATE INDEX IF NOT EXISTS idx_branches_restaurant ON branches (restaurant_id)`},

	{"create cash_sessions", `
CREATE TABLE IF NOT EXISTS cash_sessions (
  id                   UUID          PRIMARY KEY,
  branch_id            BIGINT        NOT NULL,
  restaurant_id        BIGINT        NOT NULL,
  opened_at            TIMESTAMPTZ   NOT NULL,
  opened_by            VARCHAR(120)  NOT NULL,
  closed_at            TIMESTAMPTZ,
  closed_by            VARCHAR(120),
  opening_balance      NUMERIC(12,2) NOT NULL,
  expected_subtotal    NUMERIC(12,2) NOT NULL DEFAULT 0,
  expected_service_fee NUMERIC(12,2) NOT NULL DEFAULT 0,
  expected_total       NUMERIC(12,2) NOT NULL DEFAULT 0,
  actual_cash          NUMERIC(12,2),
  discrepancy          NUMERIC(12,2),
  notes                TEXT,
  transaction_count    INT           NOT NULL DEFAULT 0,
  order_count          INT           NOT NULL DEFAULT 0,
  revision             INT           NOT NULL DEFAULT 0,
  grade                VARCHAR(10)   NOT NULL DEFAULT '',
  branch_name          VARCHAR(120)  NOT NULL DEFAULT '',
  restaurant_name      VARCHAR(120)  NOT NULL DEFAULT '',
  currency             VARCHAR(8)    NOT NULL DEFAULT '',
  timezone             VARCHAR(64)   NOT NULL DEFAULT '',
  CONSTRAINT chk_cash_sessions_closed_after_open CHECK (closed_at IS NULL OR closed_at > opened_at),
  CONSTRAINT chk_cash_sessions_non_negative CHECK (
    opening_balance >= 0 AND expected_subtotal >= 0 AND expected_service_fee >= 0
    AND expected_total >= 0 AND (actual_cash IS NULL OR actual_cash >= 0)
    AND transaction_count >= 0 AND order_count >= 0),
  CONSTRAINT chk_cash_sessions_closed_fields CHECK (
    (closed_at IS NULL AND actual_cash IS NULL AND discrepancy IS NULL)
    OR (closed_at IS NOT NULL AND actual_cash IS NOT NULL AND discrepancy IS NOT NULL AND grade <> ''))
)`},
	// At most one open session per branch.
	{"unique open session per branch", `
CREATE UNIQUE INDEX IF NOT EXISTS uq_cash_sessions_open_branch
    ON cash_sessions (branch_id) WHERE closed_at IS NULL`},
	{"history index by branch",
		`CREATE INDEX IF NOT EXISTS idx_cash_sessions_branch_opened ON cash_sessions (branch_id, opened_at DESC, id DESC)`},
	{"history index by restaurant",
		`CREATE INDEX IF NOT EXISTS idx_cash_sessions_restaurant_opened ON cash_sessions (restaurant_id, opened_at DESC, id DESC)`},

	// sales belongs to the ordering system; it is created here only when absent so
	// a standalone deployment (and the integration tests) can run SALES_SOURCE=db.
	{"create sales", `
CREATE TABLE IF NOT EXISTS sales (
  id          UUID          PRIMARY KEY,
  branch_id   BIGINT        NOT NULL,
  order_id    UUID          NOT NULL,
  subtotal    NUMERIC(12,2) NOT NULL,
  service_fee NUMERIC(12,2) NOT NULL DEFAULT 0,
  status      VARCHAR(20)   NOT NULL,
  created_at  TIMESTAMPTZ   NOT NULL
)`},
	{"index sales by branch and time",
		`CREATE INDEX IF NOT EXISTS idx_sales_branch_created ON sales (branch_id, created_at)`},
}

func applySchemaPatches(db *gorm.DB) error {
	for _, p := range schemaPatches {
		if err := db.Exec(p.sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", p.descr, err)
		}
	}
	return nil
}

// RunMigrations applies the schema patches for integration tests and seed tools.
func RunMigrations(db *gorm.DB) error {
	return applySchemaPatches(db)
}
