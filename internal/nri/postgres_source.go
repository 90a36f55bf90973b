package nri

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"regexp"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	"terrarisk/internal/types"
)

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// PostgresSource reads hazard records from a table with the DefaultColumns.
type PostgresSource struct {
	db    *sql.DB
	table string
}

func NewPostgresSource(db *sql.DB, table string) (*PostgresSource, error) {
	table = strings.TrimSpace(table)
	if !tableNameRe.MatchString(table) {
		return nil, fmt.Errorf("nri: invalid table name %q", table)
	}
	return &PostgresSource{db: db, table: table}, nil
}

func OpenPostgresSource(ctx context.Context, dsn, table string) (*PostgresSource, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	src, err := NewPostgresSource(db, table)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return src, nil
}

func (s *PostgresSource) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *PostgresSource) query() string {
	return `SELECT ` + strings.Join(DefaultColumns, ", ") + ` FROM ` + s.table + ` ORDER BY county_fips, hazard_type`
}

func (s *PostgresSource) Load(ctx context.Context, filter []string) ([]types.HazardRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("nri: postgres source is not open")
	}
	rows, err := s.db.QueryContext(ctx, s.query())
	if err != nil {
		return nil, fmt.Errorf("nri: query %s: %w", s.table, err)
	}
	defer rows.Close()

	out := make([]types.HazardRecord, 0, 64)
	for rows.Next() {
		var (
			state, county, fips, hazard sql.NullString
			loss, population, ri        sql.NullFloat64
		)
		if err := rows.Scan(&state, &county, &fips, &hazard, &loss, &population, &ri); err != nil {
			return nil, fmt.Errorf("nri: scan: %w", err)
		}
		rec := types.HazardRecord{
			CountyFIPS:         NormalizeFIPS(fips.String),
			County:             strings.TrimSpace(county.String),
			State:              strings.TrimSpace(state.String),
			HazardType:         NormalizeHazard(hazard.String),
			ExpectedAnnualLoss: math.NaN(),
			Population:         int64(population.Float64),
			ResilienceIndex:    ri.Float64,
		}
		if loss.Valid {
			rec.ExpectedAnnualLoss = loss.Float64
		}
		if matchesFilter(rec, filter) {
			out = append(out, rec)
		}
	}
	return out, rows.Err()
}
