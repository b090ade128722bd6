package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadpipe/internal/db"
	"github.com/sells-group/leadpipe/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool, mainly for tests.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool returns the underlying database pool for subsystems that need
// direct query access (bulk catalog ingestion).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS properties (
	id              TEXT PRIMARY KEY,
	apn             TEXT NOT NULL,
	county          TEXT NOT NULL,
	state           TEXT NOT NULL DEFAULT '',
	street          TEXT NOT NULL DEFAULT '',
	city            TEXT NOT NULL DEFAULT '',
	zip_code        TEXT NOT NULL DEFAULT '',
	owner_name      TEXT NOT NULL DEFAULT '',
	owner_phone     TEXT NOT NULL DEFAULT '',
	owner_email     TEXT NOT NULL DEFAULT '',
	estimated_value DOUBLE PRECISION,
	equity_percent  DOUBLE PRECISION,
	loan_balance    DOUBLE PRECISION,
	bedrooms        INTEGER,
	bathrooms       DOUBLE PRECISION,
	square_ft       INTEGER,
	year_built      INTEGER,
	flags           JSONB NOT NULL DEFAULT '{}',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (apn, county)
);

CREATE TABLE IF NOT EXISTS distress_events (
	id          TEXT PRIMARY KEY,
	property_id TEXT NOT NULL REFERENCES properties(id),
	event_type  TEXT NOT NULL,
	source      TEXT NOT NULL,
	severity    DOUBLE PRECISION NOT NULL,
	confidence  DOUBLE PRECISION NOT NULL,
	fingerprint TEXT NOT NULL UNIQUE,
	raw_payload JSONB,
	observed_at TIMESTAMPTZ NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS scoring_records (
	id               TEXT PRIMARY KEY,
	property_id      TEXT NOT NULL REFERENCES properties(id),
	motivation_score DOUBLE PRECISION NOT NULL,
	deal_score       DOUBLE PRECISION NOT NULL,
	composite        DOUBLE PRECISION NOT NULL,
	label            TEXT NOT NULL,
	factors          JSONB NOT NULL DEFAULT '[]',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS prediction_records (
	id                  TEXT PRIMARY KEY,
	property_id         TEXT NOT NULL REFERENCES properties(id),
	score               DOUBLE PRECISION NOT NULL,
	days_until_distress INTEGER NOT NULL,
	confidence          DOUBLE PRECISION NOT NULL,
	weights             JSONB NOT NULL DEFAULT '{}',
	components          JSONB NOT NULL DEFAULT '[]',
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS leads (
	id           TEXT PRIMARY KEY,
	property_id  TEXT NOT NULL REFERENCES properties(id),
	status       TEXT NOT NULL DEFAULT 'prospect',
	priority     DOUBLE PRECISION NOT NULL DEFAULT 0,
	source       TEXT NOT NULL DEFAULT '',
	tags         TEXT[] NOT NULL DEFAULT '{}',
	assigned_to  TEXT NOT NULL DEFAULT '',
	lock_version BIGINT NOT NULL DEFAULT 0,
	notes        TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS audit_log (
	id          TEXT PRIMARY KEY,
	actor       TEXT NOT NULL,
	action      TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	entity_id   TEXT NOT NULL,
	details     JSONB NOT NULL DEFAULT '{}',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_properties_key ON properties(apn, county);
CREATE INDEX IF NOT EXISTS idx_events_property ON distress_events(property_id);
CREATE INDEX IF NOT EXISTS idx_scoring_property_time ON scoring_records(property_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_prediction_property_time ON prediction_records(property_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_leads_property ON leads(property_id);
CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
CREATE UNIQUE INDEX IF NOT EXISTS idx_leads_one_active ON leads(property_id)
	WHERE status IN ('prospect', 'lead', 'negotiation');
CREATE INDEX IF NOT EXISTS idx_audit_entity ON audit_log(entity_type, entity_id);
CREATE INDEX IF NOT EXISTS idx_audit_time ON audit_log(created_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

const propertyColumns = `id, apn, county, state, street, city, zip_code,
	owner_name, owner_phone, owner_email,
	estimated_value, equity_percent, loan_balance,
	bedrooms, bathrooms, square_ft, year_built, flags, created_at, updated_at`

// UpsertProperty inserts or updates the row keyed on (apn, county). Later
// sightings only overwrite string fields when non-empty and numeric fields
// when non-null; flags merge.
func (s *PostgresStore) UpsertProperty(ctx context.Context, p *model.Property) (*model.Property, error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	flagsJSON, err := json.Marshal(orEmptyMap(p.Flags))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal flags")
	}
	now := time.Now().UTC()

	row := s.pool.QueryRow(ctx, `
		INSERT INTO properties (
			id, apn, county, state, street, city, zip_code,
			owner_name, owner_phone, owner_email,
			estimated_value, equity_percent, loan_balance,
			bedrooms, bathrooms, square_ft, year_built, flags, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$19)
		ON CONFLICT (apn, county) DO UPDATE SET
			state       = COALESCE(NULLIF(EXCLUDED.state, ''), properties.state),
			street      = COALESCE(NULLIF(EXCLUDED.street, ''), properties.street),
			city        = COALESCE(NULLIF(EXCLUDED.city, ''), properties.city),
			zip_code    = COALESCE(NULLIF(EXCLUDED.zip_code, ''), properties.zip_code),
			owner_name  = COALESCE(NULLIF(EXCLUDED.owner_name, ''), properties.owner_name),
			owner_phone = COALESCE(NULLIF(EXCLUDED.owner_phone, ''), properties.owner_phone),
			owner_email = COALESCE(NULLIF(EXCLUDED.owner_email, ''), properties.owner_email),
			estimated_value = COALESCE(EXCLUDED.estimated_value, properties.estimated_value),
			equity_percent  = COALESCE(EXCLUDED.equity_percent, properties.equity_percent),
			loan_balance    = COALESCE(EXCLUDED.loan_balance, properties.loan_balance),
			bedrooms   = COALESCE(EXCLUDED.bedrooms, properties.bedrooms),
			bathrooms  = COALESCE(EXCLUDED.bathrooms, properties.bathrooms),
			square_ft  = COALESCE(EXCLUDED.square_ft, properties.square_ft),
			year_built = COALESCE(EXCLUDED.year_built, properties.year_built),
			flags      = properties.flags || EXCLUDED.flags,
			updated_at = EXCLUDED.updated_at
		RETURNING `+propertyColumns,
		p.ID, p.APN, p.County, p.State, p.Street, p.City, p.ZipCode,
		p.OwnerName, p.OwnerPhone, p.OwnerEmail,
		p.EstimatedValue, p.EquityPercent, p.LoanBalance,
		p.Bedrooms, p.Bathrooms, p.SquareFt, p.YearBuilt, flagsJSON, now,
	)

	stored, err := scanProperty(row)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: upsert property")
	}
	return stored, nil
}

func (s *PostgresStore) GetProperty(ctx context.Context, id string) (*model.Property, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+propertyColumns+` FROM properties WHERE id = $1`, id)
	p, err := scanProperty(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(model.ErrNotFound, "postgres: property %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get property %s", id)
	}
	return p, nil
}

func (s *PostgresStore) GetPropertyByKey(ctx context.Context, apn, county string) (*model.Property, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+propertyColumns+` FROM properties WHERE apn = $1 AND county = $2`, apn, county)
	p, err := scanProperty(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(model.ErrNotFound, "postgres: property %s/%s", apn, county)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get property %s/%s", apn, county)
	}
	return p, nil
}

// UpdatePropertyFields applies an allow-listed subset of manual
// corrections. Unknown field names are skipped by the caller's validation;
// this is the second line of defense.
func (s *PostgresStore) UpdatePropertyFields(ctx context.Context, id string, fields map[string]any) error {
	setClauses := ""
	args := []any{id}
	idx := 2
	for name, col := range propertyFieldColumns {
		v, ok := fields[name]
		if !ok {
			continue
		}
		if setClauses != "" {
			setClauses += ", "
		}
		setClauses += fmt.Sprintf("%s = $%d", col, idx)
		args = append(args, v)
		idx++
	}
	if setClauses == "" {
		return nil
	}

	tag, err := s.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE properties SET %s, updated_at = now() WHERE id = $1`, setClauses), args...)
	if err != nil {
		return eris.Wrapf(err, "postgres: update property fields %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(model.ErrNotFound, "postgres: property %s", id)
	}
	return nil
}

func scanProperty(row pgx.Row) (*model.Property, error) {
	var p model.Property
	var flagsJSON []byte
	err := row.Scan(
		&p.ID, &p.APN, &p.County, &p.State, &p.Street, &p.City, &p.ZipCode,
		&p.OwnerName, &p.OwnerPhone, &p.OwnerEmail,
		&p.EstimatedValue, &p.EquityPercent, &p.LoanBalance,
		&p.Bedrooms, &p.Bathrooms, &p.SquareFt, &p.YearBuilt, &flagsJSON,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(flagsJSON) > 0 {
		if err := json.Unmarshal(flagsJSON, &p.Flags); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal flags")
		}
	}
	return &p, nil
}

// InsertEvent attempts the insert optimistically; a fingerprint collision
// is reported as deduped, not as an error.
func (s *PostgresStore) InsertEvent(ctx context.Context, e *model.DistressEvent) (bool, error) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO distress_events (
			id, property_id, event_type, source, severity, confidence,
			fingerprint, raw_payload, observed_at, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		e.ID, e.PropertyID, string(e.Type), e.Source, e.Severity, e.Confidence,
		e.Fingerprint, e.RawPayload, e.ObservedAt, e.CreatedAt,
	)
	if err != nil {
		if IsDuplicate(err) {
			return true, nil
		}
		return false, eris.Wrap(err, "postgres: insert event")
	}
	return false, nil
}

func (s *PostgresStore) ListEventsByProperty(ctx context.Context, propertyID string) ([]model.DistressEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, property_id, event_type, source, severity, confidence,
		       fingerprint, raw_payload, observed_at, created_at
		FROM distress_events WHERE property_id = $1 ORDER BY observed_at DESC`, propertyID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list events")
	}
	defer rows.Close()

	var events []model.DistressEvent
	for rows.Next() {
		var e model.DistressEvent
		var et string
		if err := rows.Scan(&e.ID, &e.PropertyID, &et, &e.Source, &e.Severity,
			&e.Confidence, &e.Fingerprint, &e.RawPayload, &e.ObservedAt, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan event")
		}
		e.Type = model.EventType(et)
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *PostgresStore) AppendScoringRecord(ctx context.Context, r *model.ScoringRecord) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	factorsJSON, err := json.Marshal(r.Factors)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal factors")
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO scoring_records (id, property_id, motivation_score, deal_score, composite, label, factors, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		r.ID, r.PropertyID, r.MotivationScore, r.DealScore, r.Composite, r.Label, factorsJSON, r.CreatedAt,
	)
	return eris.Wrap(err, "postgres: append scoring record")
}

func (s *PostgresStore) AppendPredictionRecord(ctx context.Context, r *model.PredictionRecord) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	weightsJSON, err := json.Marshal(r.Weights)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal weights")
	}
	componentsJSON, err := json.Marshal(r.Components)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal components")
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO prediction_records (id, property_id, score, days_until_distress, confidence, weights, components, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		r.ID, r.PropertyID, r.Score, r.DaysUntilDistress, r.Confidence, weightsJSON, componentsJSON, r.CreatedAt,
	)
	return eris.Wrap(err, "postgres: append prediction record")
}

func (s *PostgresStore) LatestScoringRecord(ctx context.Context, propertyID string) (*model.ScoringRecord, error) {
	var r model.ScoringRecord
	var factorsJSON []byte
	err := s.pool.QueryRow(ctx, `
		SELECT id, property_id, motivation_score, deal_score, composite, label, factors, created_at
		FROM scoring_records WHERE property_id = $1 ORDER BY created_at DESC LIMIT 1`, propertyID,
	).Scan(&r.ID, &r.PropertyID, &r.MotivationScore, &r.DealScore, &r.Composite, &r.Label, &factorsJSON, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(model.ErrNotFound, "postgres: scoring record for %s", propertyID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: latest scoring record")
	}
	if err := json.Unmarshal(factorsJSON, &r.Factors); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal factors")
	}
	return &r, nil
}

func (s *PostgresStore) LatestPredictionRecord(ctx context.Context, propertyID string) (*model.PredictionRecord, error) {
	var r model.PredictionRecord
	var weightsJSON, componentsJSON []byte
	err := s.pool.QueryRow(ctx, `
		SELECT id, property_id, score, days_until_distress, confidence, weights, components, created_at
		FROM prediction_records WHERE property_id = $1 ORDER BY created_at DESC LIMIT 1`, propertyID,
	).Scan(&r.ID, &r.PropertyID, &r.Score, &r.DaysUntilDistress, &r.Confidence, &weightsJSON, &componentsJSON, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(model.ErrNotFound, "postgres: prediction record for %s", propertyID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: latest prediction record")
	}
	if err := json.Unmarshal(weightsJSON, &r.Weights); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal weights")
	}
	if err := json.Unmarshal(componentsJSON, &r.Components); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal components")
	}
	return &r, nil
}

func (s *PostgresStore) ScoreHistory(ctx context.Context, propertyID string, limit int) ([]float64, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT composite FROM scoring_records
		WHERE property_id = $1 ORDER BY created_at DESC LIMIT $2`, propertyID, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: score history")
	}
	defer rows.Close()

	var newestFirst []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, eris.Wrap(err, "postgres: scan score")
		}
		newestFirst = append(newestFirst, v)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: score history rows")
	}

	// Oldest first for the velocity calculation.
	out := make([]float64, len(newestFirst))
	for i, v := range newestFirst {
		out[len(newestFirst)-1-i] = v
	}
	return out, nil
}

const leadColumns = `id, property_id, status, priority, source, tags, assigned_to, lock_version, notes, created_at, updated_at`

func (s *PostgresStore) CreateLead(ctx context.Context, lead *model.Lead) error {
	if lead.ID == "" {
		lead.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = now
		lead.UpdatedAt = now
	}
	tags := lead.Tags
	if tags == nil {
		tags = []string{}
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO leads (id, property_id, status, priority, source, tags, assigned_to, lock_version, notes, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		lead.ID, lead.PropertyID, string(lead.Status), lead.Priority, lead.Source,
		tags, lead.AssignedTo, lead.LockVersion, lead.Notes, lead.CreatedAt, lead.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: create lead")
}

func (s *PostgresStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(model.ErrNotFound, "postgres: lead %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get lead %s", id)
	}
	return lead, nil
}

func (s *PostgresStore) FindActiveLeadByProperty(ctx context.Context, propertyID string) (*model.Lead, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+leadColumns+` FROM leads
		WHERE property_id = $1 AND status IN ('prospect', 'lead', 'negotiation')
		LIMIT 1`, propertyID)
	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find active lead")
	}
	return lead, nil
}

// UpdateLeadCAS applies the write only if the stored lock_version still
// equals observedVersion, incrementing it. The datastore serializes
// per-row writes, so no in-process lock is needed.
func (s *PostgresStore) UpdateLeadCAS(ctx context.Context, lead *model.Lead, observedVersion int64) error {
	tags := lead.Tags
	if tags == nil {
		tags = []string{}
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE leads SET
			status = $2, priority = $3, tags = $4, assigned_to = $5, notes = $6,
			lock_version = lock_version + 1, updated_at = $7
		WHERE id = $1 AND lock_version = $8`,
		lead.ID, string(lead.Status), lead.Priority, tags, lead.AssignedTo,
		lead.Notes, time.Now().UTC(), observedVersion,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update lead %s", lead.ID)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing row from a version mismatch.
		var current int64
		err := s.pool.QueryRow(ctx, `SELECT lock_version FROM leads WHERE id = $1`, lead.ID).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return eris.Wrapf(model.ErrNotFound, "postgres: lead %s", lead.ID)
		}
		if err != nil {
			return eris.Wrapf(err, "postgres: reread lead %s", lead.ID)
		}
		return eris.Wrapf(model.ErrVersionConflict, "postgres: lead %s at version %d, observed %d",
			lead.ID, current, observedVersion)
	}
	lead.LockVersion = observedVersion + 1
	return nil
}

func (s *PostgresStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.AssignedTo != "" {
		query += fmt.Sprintf(` AND assigned_to = $%d`, argIdx)
		args = append(args, filter.AssignedTo)
		argIdx++
	}
	if filter.MinScore > 0 {
		query += fmt.Sprintf(` AND priority >= $%d`, argIdx)
		args = append(args, filter.MinScore)
		argIdx++
	}
	query += ` ORDER BY priority DESC, created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		leads = append(leads, *lead)
	}
	return leads, rows.Err()
}

func scanLead(row pgx.Row) (*model.Lead, error) {
	var l model.Lead
	var status string
	err := row.Scan(&l.ID, &l.PropertyID, &status, &l.Priority, &l.Source,
		&l.Tags, &l.AssignedTo, &l.LockVersion, &l.Notes, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	l.Status = model.LeadStatus(status)
	return &l, nil
}

func (s *PostgresStore) AppendAudit(ctx context.Context, entry model.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	detailsJSON, err := json.Marshal(orEmptyMap(entry.Details))
	if err != nil {
		return eris.Wrap(err, "postgres: marshal audit details")
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO audit_log (id, actor, action, entity_type, entity_id, details, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		entry.ID, entry.Actor, entry.Action, entry.EntityType, entry.EntityID, detailsJSON, entry.CreatedAt,
	)
	return eris.Wrap(err, "postgres: append audit")
}

func (s *PostgresStore) ListAudit(ctx context.Context, filter AuditFilter) ([]model.AuditEntry, error) {
	query := `SELECT id, actor, action, entity_type, entity_id, details, created_at FROM audit_log WHERE true`
	args := []any{}
	argIdx := 1

	if filter.EntityType != "" {
		query += fmt.Sprintf(` AND entity_type = $%d`, argIdx)
		args = append(args, filter.EntityType)
		argIdx++
	}
	if filter.EntityID != "" {
		query += fmt.Sprintf(` AND entity_id = $%d`, argIdx)
		args = append(args, filter.EntityID)
		argIdx++
	}
	if filter.Action != "" {
		query += fmt.Sprintf(` AND action = $%d`, argIdx)
		args = append(args, filter.Action)
		argIdx++
	}
	if !filter.Since.IsZero() {
		query += fmt.Sprintf(` AND created_at >= $%d`, argIdx)
		args = append(args, filter.Since)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list audit")
	}
	defer rows.Close()

	var entries []model.AuditEntry
	for rows.Next() {
		var e model.AuditEntry
		var detailsJSON []byte
		if err := rows.Scan(&e.ID, &e.Actor, &e.Action, &e.EntityType, &e.EntityID, &detailsJSON, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan audit")
		}
		if len(detailsJSON) > 0 {
			if err := json.Unmarshal(detailsJSON, &e.Details); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal audit details")
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func orEmptyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
