package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the plans store.
var Migrations = migrate.NewGroup("plans")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_plans",
			Version: "20260101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS plans (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    price       NUMERIC(8,2) NOT NULL DEFAULT 0.00,
    currency    TEXT NOT NULL DEFAULT 'usd',
    duration    INT NOT NULL DEFAULT 30,
    metadata    JSONB NOT NULL DEFAULT '{}',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS plans`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_plans_features",
			Version: "20260101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS plans_features (
    id            TEXT PRIMARY KEY,
    plan_id       TEXT NOT NULL REFERENCES plans (id) ON DELETE CASCADE,
    name          TEXT NOT NULL DEFAULT '',
    code          TEXT NOT NULL,
    description   TEXT NOT NULL DEFAULT '',
    type          TEXT NOT NULL DEFAULT 'feature' CHECK (type IN ('feature', 'limit')),
    feature_limit BIGINT NOT NULL DEFAULT 0,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_plans_features_plan_code ON plans_features (plan_id, code);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS plans_features`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_plans_subscriptions",
			Version: "20260101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS plans_subscriptions (
    id           TEXT PRIMARY KEY,
    plan_id      TEXT NOT NULL REFERENCES plans (id),
    model_id     TEXT NOT NULL,
    model_type   TEXT NOT NULL,
    starts_on    TIMESTAMPTZ NOT NULL,
    expires_on   TIMESTAMPTZ NOT NULL,
    cancelled_on TIMESTAMPTZ,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_plans_subscriptions_model ON plans_subscriptions (model_type, model_id, starts_on);
CREATE INDEX IF NOT EXISTS idx_plans_subscriptions_expires ON plans_subscriptions (model_type, model_id, expires_on DESC);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS plans_subscriptions`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_plans_usages",
			Version: "20260101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS plans_usages (
    id              TEXT PRIMARY KEY,
    subscription_id TEXT NOT NULL REFERENCES plans_subscriptions (id) ON DELETE CASCADE,
    code            TEXT NOT NULL,
    used            BIGINT NOT NULL DEFAULT 0 CHECK (used >= 0),
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_plans_usages_subscription_code ON plans_usages (subscription_id, code);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS plans_usages`)
				return err
			},
		},
	)
}
