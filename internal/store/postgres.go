package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/p2pdesk/arb-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values and quantities are stored as NUMERIC for exact
// decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the schema if missing and validates it at startup.
// The partial unique indexes enforce the single-active-cycle and
// single-open-day-per-cycle invariants at the storage layer as well.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS holdings (
			symbol     TEXT PRIMARY KEY,
			quantity   NUMERIC NOT NULL CHECK (quantity >= 0),
			avg_price  NUMERIC NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS cycles (
			id              TEXT PRIMARY KEY,
			sequence_number INT NOT NULL UNIQUE,
			start_date      TIMESTAMPTZ NOT NULL,
			end_date        TIMESTAMPTZ,
			initial_capital NUMERIC NOT NULL,
			final_capital   NUMERIC NOT NULL DEFAULT 0,
			total_profit    NUMERIC NOT NULL DEFAULT 0,
			days_operated   INT NOT NULL DEFAULT 0,
			total_sales     INT NOT NULL DEFAULT 0,
			status          TEXT NOT NULL CHECK (status IN ('active', 'closed'))
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS cycles_single_active
			ON cycles ((1)) WHERE status = 'active'`,
		`CREATE TABLE IF NOT EXISTS days (
			id                 TEXT PRIMARY KEY,
			cycle_id           TEXT NOT NULL REFERENCES cycles(id),
			day_number         INT NOT NULL,
			asset_symbol       TEXT NOT NULL,
			capital_invested   NUMERIC NOT NULL,
			purchase_rate      NUMERIC NOT NULL,
			quantity_purchased NUMERIC NOT NULL,
			target_price       NUMERIC NOT NULL,
			breakeven_price    NUMERIC NOT NULL,
			quantity_remaining NUMERIC NOT NULL CHECK (quantity_remaining >= 0),
			sales_count        INT NOT NULL DEFAULT 0,
			net_profit         NUMERIC NOT NULL DEFAULT 0,
			status             TEXT NOT NULL CHECK (status IN ('open', 'closed')),
			opened_at          TIMESTAMPTZ NOT NULL,
			closed_at          TIMESTAMPTZ,
			UNIQUE (cycle_id, day_number)
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS days_single_open
			ON days (cycle_id) WHERE status = 'open'`,
		`CREATE TABLE IF NOT EXISTS sales (
			id             TEXT PRIMARY KEY,
			day_id         TEXT NOT NULL REFERENCES days(id),
			sell_price     NUMERIC NOT NULL,
			quantity       NUMERIC NOT NULL,
			commission_pct NUMERIC NOT NULL,
			gross_amount   NUMERIC NOT NULL,
			commission_usd NUMERIC NOT NULL,
			net_amount     NUMERIC NOT NULL,
			cost_basis     NUMERIC NOT NULL,
			gross_profit   NUMERIC NOT NULL,
			net_profit     NUMERIC NOT NULL,
			created_at     TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS sales_by_day ON sales (day_id, created_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// --- Vault holdings ---

func (s *PostgresStore) GetHolding(ctx context.Context, symbol string) (*model.Holding, error) {
	var h model.Holding
	var qty, price string

	err := s.pool.QueryRow(ctx,
		`SELECT symbol, quantity::TEXT, avg_price::TEXT, updated_at
		 FROM holdings WHERE symbol = $1`, symbol).
		Scan(&h.Symbol, &qty, &price, &h.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get holding %s: %w", symbol, err)
	}

	h.Quantity, _ = decimal.NewFromString(qty)
	h.AvgPrice, _ = decimal.NewFromString(price)
	return &h, nil
}

func (s *PostgresStore) ListHoldings(ctx context.Context) ([]model.Holding, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT symbol, quantity::TEXT, avg_price::TEXT, updated_at
		 FROM holdings ORDER BY quantity * avg_price DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holdings []model.Holding
	for rows.Next() {
		var h model.Holding
		var qty, price string
		if err := rows.Scan(&h.Symbol, &qty, &price, &h.UpdatedAt); err != nil {
			return nil, err
		}
		h.Quantity, _ = decimal.NewFromString(qty)
		h.AvgPrice, _ = decimal.NewFromString(price)
		holdings = append(holdings, h)
	}
	return holdings, rows.Err()
}

func (s *PostgresStore) PutHolding(ctx context.Context, h *model.Holding) error {
	return putHolding(ctx, s.pool, h)
}

// --- Cycles ---

const cycleColumns = `id, sequence_number, start_date, end_date,
	initial_capital::TEXT, final_capital::TEXT, total_profit::TEXT,
	days_operated, total_sales, status`

func scanCycle(row pgx.Row) (*model.Cycle, error) {
	var c model.Cycle
	var initial, final, profit string

	err := row.Scan(&c.ID, &c.SequenceNumber, &c.StartDate, &c.EndDate,
		&initial, &final, &profit,
		&c.DaysOperated, &c.TotalSales, &c.Status)
	if err != nil {
		return nil, err
	}

	c.InitialCapital, _ = decimal.NewFromString(initial)
	c.FinalCapital, _ = decimal.NewFromString(final)
	c.TotalProfit, _ = decimal.NewFromString(profit)
	return &c, nil
}

func (s *PostgresStore) CreateCycle(ctx context.Context, c *model.Cycle) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO cycles (id, sequence_number, start_date, end_date,
		                     initial_capital, final_capital, total_profit,
		                     days_operated, total_sales, status)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6::NUMERIC, $7::NUMERIC, $8, $9, $10)`,
		c.ID, c.SequenceNumber, c.StartDate, c.EndDate,
		c.InitialCapital.String(), c.FinalCapital.String(), c.TotalProfit.String(),
		c.DaysOperated, c.TotalSales, c.Status,
	)
	return err
}

func (s *PostgresStore) GetCycle(ctx context.Context, id string) (*model.Cycle, error) {
	c, err := scanCycle(s.pool.QueryRow(ctx,
		`SELECT `+cycleColumns+` FROM cycles WHERE id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cycle %s: %w", id, err)
	}
	return c, nil
}

func (s *PostgresStore) GetActiveCycle(ctx context.Context) (*model.Cycle, error) {
	c, err := scanCycle(s.pool.QueryRow(ctx,
		`SELECT `+cycleColumns+` FROM cycles WHERE status = 'active'`))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active cycle: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) GetLatestCycle(ctx context.Context) (*model.Cycle, error) {
	c, err := scanCycle(s.pool.QueryRow(ctx,
		`SELECT `+cycleColumns+` FROM cycles ORDER BY sequence_number DESC LIMIT 1`))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest cycle: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) ListCycles(ctx context.Context, limit int) ([]model.Cycle, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+cycleColumns+` FROM cycles ORDER BY sequence_number DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cycles []model.Cycle
	for rows.Next() {
		c, err := scanCycle(rows)
		if err != nil {
			return nil, err
		}
		cycles = append(cycles, *c)
	}
	return cycles, rows.Err()
}

func (s *PostgresStore) MaxCycleSequence(ctx context.Context) (int, error) {
	var max int
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(sequence_number), 0) FROM cycles`).Scan(&max)
	return max, err
}

func (s *PostgresStore) UpdateCycle(ctx context.Context, c *model.Cycle) error {
	return updateCycle(ctx, s.pool, c)
}

// execer abstracts pgxpool.Pool and pgx.Tx so the row writers can run both
// standalone and inside a transaction.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func updateCycle(ctx context.Context, db execer, c *model.Cycle) error {
	_, err := db.Exec(ctx,
		`UPDATE cycles
		 SET end_date = $2, final_capital = $3::NUMERIC, total_profit = $4::NUMERIC,
		     days_operated = $5, total_sales = $6, status = $7
		 WHERE id = $1`,
		c.ID, c.EndDate, c.FinalCapital.String(), c.TotalProfit.String(),
		c.DaysOperated, c.TotalSales, c.Status,
	)
	return err
}

func updateDay(ctx context.Context, db execer, d *model.Day) error {
	_, err := db.Exec(ctx,
		`UPDATE days
		 SET quantity_remaining = $2::NUMERIC, sales_count = $3,
		     net_profit = $4::NUMERIC, status = $5, closed_at = $6
		 WHERE id = $1`,
		d.ID, d.QuantityRemaining.String(), d.SalesCount,
		d.NetProfit.String(), d.Status, d.ClosedAt,
	)
	return err
}

func putHolding(ctx context.Context, db execer, h *model.Holding) error {
	_, err := db.Exec(ctx,
		`INSERT INTO holdings (symbol, quantity, avg_price, updated_at)
		 VALUES ($1, $2::NUMERIC, $3::NUMERIC, $4)
		 ON CONFLICT (symbol) DO UPDATE
		 SET quantity = EXCLUDED.quantity,
		     avg_price = EXCLUDED.avg_price,
		     updated_at = EXCLUDED.updated_at`,
		h.Symbol, h.Quantity.String(), h.AvgPrice.String(), h.UpdatedAt,
	)
	return err
}

// --- Days ---

const dayColumns = `id, cycle_id, day_number, asset_symbol,
	capital_invested::TEXT, purchase_rate::TEXT, quantity_purchased::TEXT,
	target_price::TEXT, breakeven_price::TEXT, quantity_remaining::TEXT,
	sales_count, net_profit::TEXT, status, opened_at, closed_at`

func scanDay(row pgx.Row) (*model.Day, error) {
	var d model.Day
	var capital, rate, purchased, target, breakeven, remaining, profit string

	err := row.Scan(&d.ID, &d.CycleID, &d.DayNumber, &d.AssetSymbol,
		&capital, &rate, &purchased, &target, &breakeven, &remaining,
		&d.SalesCount, &profit, &d.Status, &d.OpenedAt, &d.ClosedAt)
	if err != nil {
		return nil, err
	}

	d.CapitalInvested, _ = decimal.NewFromString(capital)
	d.PurchaseRate, _ = decimal.NewFromString(rate)
	d.QuantityPurchased, _ = decimal.NewFromString(purchased)
	d.TargetPrice, _ = decimal.NewFromString(target)
	d.BreakevenPrice, _ = decimal.NewFromString(breakeven)
	d.QuantityRemaining, _ = decimal.NewFromString(remaining)
	d.NetProfit, _ = decimal.NewFromString(profit)
	return &d, nil
}

func (s *PostgresStore) GetDay(ctx context.Context, id string) (*model.Day, error) {
	d, err := scanDay(s.pool.QueryRow(ctx,
		`SELECT `+dayColumns+` FROM days WHERE id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get day %s: %w", id, err)
	}
	return d, nil
}

func (s *PostgresStore) GetOpenDay(ctx context.Context, cycleID string) (*model.Day, error) {
	d, err := scanDay(s.pool.QueryRow(ctx,
		`SELECT `+dayColumns+` FROM days WHERE cycle_id = $1 AND status = 'open'`, cycleID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get open day for cycle %s: %w", cycleID, err)
	}
	return d, nil
}

func (s *PostgresStore) ListDays(ctx context.Context, cycleID string) ([]model.Day, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+dayColumns+` FROM days WHERE cycle_id = $1 ORDER BY day_number`, cycleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var days []model.Day
	for rows.Next() {
		d, err := scanDay(rows)
		if err != nil {
			return nil, err
		}
		days = append(days, *d)
	}
	return days, rows.Err()
}

func (s *PostgresStore) MaxDayNumber(ctx context.Context, cycleID string) (int, error) {
	var max int
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(day_number), 0) FROM days WHERE cycle_id = $1`, cycleID).Scan(&max)
	return max, err
}

// --- Sales ---

func (s *PostgresStore) ListSalesByDay(ctx context.Context, dayID string, limit int) ([]model.Sale, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, day_id, sell_price::TEXT, quantity::TEXT, commission_pct::TEXT,
		        gross_amount::TEXT, commission_usd::TEXT, net_amount::TEXT,
		        cost_basis::TEXT, gross_profit::TEXT, net_profit::TEXT, created_at
		 FROM sales WHERE day_id = $1 ORDER BY created_at DESC LIMIT $2`, dayID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sales []model.Sale
	for rows.Next() {
		var e model.Sale
		var price, qty, pct, gross, fee, net, cost, gprofit, nprofit string

		if err := rows.Scan(&e.ID, &e.DayID, &price, &qty, &pct,
			&gross, &fee, &net, &cost, &gprofit, &nprofit, &e.CreatedAt); err != nil {
			return nil, err
		}

		e.SellPrice, _ = decimal.NewFromString(price)
		e.Quantity, _ = decimal.NewFromString(qty)
		e.CommissionPct, _ = decimal.NewFromString(pct)
		e.GrossAmount, _ = decimal.NewFromString(gross)
		e.Commission, _ = decimal.NewFromString(fee)
		e.NetAmount, _ = decimal.NewFromString(net)
		e.CostBasis, _ = decimal.NewFromString(cost)
		e.GrossProfit, _ = decimal.NewFromString(gprofit)
		e.NetProfit, _ = decimal.NewFromString(nprofit)

		sales = append(sales, e)
	}
	return sales, rows.Err()
}

func insertSale(ctx context.Context, db execer, e *model.Sale) error {
	_, err := db.Exec(ctx,
		`INSERT INTO sales (id, day_id, sell_price, quantity, commission_pct,
		                    gross_amount, commission_usd, net_amount,
		                    cost_basis, gross_profit, net_profit, created_at)
		 VALUES ($1, $2, $3::NUMERIC, $4::NUMERIC, $5::NUMERIC, $6::NUMERIC,
		         $7::NUMERIC, $8::NUMERIC, $9::NUMERIC, $10::NUMERIC, $11::NUMERIC, $12)`,
		e.ID, e.DayID, e.SellPrice.String(), e.Quantity.String(), e.CommissionPct.String(),
		e.GrossAmount.String(), e.Commission.String(), e.NetAmount.String(),
		e.CostBasis.String(), e.GrossProfit.String(), e.NetProfit.String(),
		e.CreatedAt,
	)
	return err
}

// --- Composite operations (transactional) ---

func (s *PostgresStore) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) OpenDay(ctx context.Context, day *model.Day, holding *model.Holding) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO days (id, cycle_id, day_number, asset_symbol,
			                   capital_invested, purchase_rate, quantity_purchased,
			                   target_price, breakeven_price, quantity_remaining,
			                   sales_count, net_profit, status, opened_at, closed_at)
			 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6::NUMERIC, $7::NUMERIC,
			         $8::NUMERIC, $9::NUMERIC, $10::NUMERIC, $11, $12::NUMERIC, $13, $14, $15)`,
			day.ID, day.CycleID, day.DayNumber, day.AssetSymbol,
			day.CapitalInvested.String(), day.PurchaseRate.String(), day.QuantityPurchased.String(),
			day.TargetPrice.String(), day.BreakevenPrice.String(), day.QuantityRemaining.String(),
			day.SalesCount, day.NetProfit.String(), day.Status, day.OpenedAt, day.ClosedAt,
		)
		if err != nil {
			return err
		}
		return putHolding(ctx, tx, holding)
	})
}

func (s *PostgresStore) ApplySale(ctx context.Context, sale *model.Sale, day *model.Day, cycle *model.Cycle) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		if err := insertSale(ctx, tx, sale); err != nil {
			return err
		}
		if err := updateDay(ctx, tx, day); err != nil {
			return err
		}
		return updateCycle(ctx, tx, cycle)
	})
}

func (s *PostgresStore) CloseDay(ctx context.Context, day *model.Day, holding *model.Holding, cycle *model.Cycle) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		if err := updateDay(ctx, tx, day); err != nil {
			return err
		}
		if err := putHolding(ctx, tx, holding); err != nil {
			return err
		}
		return updateCycle(ctx, tx, cycle)
	})
}
