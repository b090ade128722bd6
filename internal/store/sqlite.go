package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/leadpipe/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite, for local runs
// and development. Array and map columns are stored as JSON text.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
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
	estimated_value REAL,
	equity_percent  REAL,
	loan_balance    REAL,
	bedrooms        INTEGER,
	bathrooms       REAL,
	square_ft       INTEGER,
	year_built      INTEGER,
	flags           TEXT NOT NULL DEFAULT '{}',
	created_at      DATETIME NOT NULL,
	updated_at      DATETIME NOT NULL,
	UNIQUE (apn, county)
);

CREATE TABLE IF NOT EXISTS distress_events (
	id          TEXT PRIMARY KEY,
	property_id TEXT NOT NULL REFERENCES properties(id),
	event_type  TEXT NOT NULL,
	source      TEXT NOT NULL,
	severity    REAL NOT NULL,
	confidence  REAL NOT NULL,
	fingerprint TEXT NOT NULL UNIQUE,
	raw_payload BLOB,
	observed_at DATETIME NOT NULL,
	created_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS scoring_records (
	id               TEXT PRIMARY KEY,
	property_id      TEXT NOT NULL REFERENCES properties(id),
	motivation_score REAL NOT NULL,
	deal_score       REAL NOT NULL,
	composite        REAL NOT NULL,
	label            TEXT NOT NULL,
	factors          TEXT NOT NULL DEFAULT '[]',
	created_at       DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS prediction_records (
	id                  TEXT PRIMARY KEY,
	property_id         TEXT NOT NULL REFERENCES properties(id),
	score               REAL NOT NULL,
	days_until_distress INTEGER NOT NULL,
	confidence          REAL NOT NULL,
	weights             TEXT NOT NULL DEFAULT '{}',
	components          TEXT NOT NULL DEFAULT '[]',
	created_at          DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS leads (
	id           TEXT PRIMARY KEY,
	property_id  TEXT NOT NULL REFERENCES properties(id),
	status       TEXT NOT NULL DEFAULT 'prospect',
	priority     REAL NOT NULL DEFAULT 0,
	source       TEXT NOT NULL DEFAULT '',
	tags         TEXT NOT NULL DEFAULT '[]',
	assigned_to  TEXT NOT NULL DEFAULT '',
	lock_version INTEGER NOT NULL DEFAULT 0,
	notes        TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL,
	updated_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_log (
	id          TEXT PRIMARY KEY,
	actor       TEXT NOT NULL,
	action      TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	entity_id   TEXT NOT NULL,
	details     TEXT NOT NULL DEFAULT '{}',
	created_at  DATETIME NOT NULL
);

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

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqlitePropertyColumns = `id, apn, county, state, street, city, zip_code,
	owner_name, owner_phone, owner_email,
	estimated_value, equity_percent, loan_balance,
	bedrooms, bathrooms, square_ft, year_built, flags, created_at, updated_at`

func (s *SQLiteStore) UpsertProperty(ctx context.Context, p *model.Property) (*model.Property, error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	flagsJSON, err := json.Marshal(orEmptyMap(p.Flags))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal flags")
	}
	now := time.Now().UTC()

	// SQLite lacks jsonb concatenation, so the flag merge uses json_patch.
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO properties (
			id, apn, county, state, street, city, zip_code,
			owner_name, owner_phone, owner_email,
			estimated_value, equity_percent, loan_balance,
			bedrooms, bathrooms, square_ft, year_built, flags, created_at, updated_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT (apn, county) DO UPDATE SET
			state       = CASE WHEN excluded.state <> '' THEN excluded.state ELSE properties.state END,
			street      = CASE WHEN excluded.street <> '' THEN excluded.street ELSE properties.street END,
			city        = CASE WHEN excluded.city <> '' THEN excluded.city ELSE properties.city END,
			zip_code    = CASE WHEN excluded.zip_code <> '' THEN excluded.zip_code ELSE properties.zip_code END,
			owner_name  = CASE WHEN excluded.owner_name <> '' THEN excluded.owner_name ELSE properties.owner_name END,
			owner_phone = CASE WHEN excluded.owner_phone <> '' THEN excluded.owner_phone ELSE properties.owner_phone END,
			owner_email = CASE WHEN excluded.owner_email <> '' THEN excluded.owner_email ELSE properties.owner_email END,
			estimated_value = COALESCE(excluded.estimated_value, properties.estimated_value),
			equity_percent  = COALESCE(excluded.equity_percent, properties.equity_percent),
			loan_balance    = COALESCE(excluded.loan_balance, properties.loan_balance),
			bedrooms   = COALESCE(excluded.bedrooms, properties.bedrooms),
			bathrooms  = COALESCE(excluded.bathrooms, properties.bathrooms),
			square_ft  = COALESCE(excluded.square_ft, properties.square_ft),
			year_built = COALESCE(excluded.year_built, properties.year_built),
			flags      = json_patch(properties.flags, excluded.flags),
			updated_at = excluded.updated_at`,
		p.ID, p.APN, p.County, p.State, p.Street, p.City, p.ZipCode,
		p.OwnerName, p.OwnerPhone, p.OwnerEmail,
		p.EstimatedValue, p.EquityPercent, p.LoanBalance,
		p.Bedrooms, p.Bathrooms, p.SquareFt, p.YearBuilt, string(flagsJSON), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: upsert property")
	}

	return s.GetPropertyByKey(ctx, p.APN, p.County)
}

func (s *SQLiteStore) GetProperty(ctx context.Context, id string) (*model.Property, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqlitePropertyColumns+` FROM properties WHERE id = ?`, id)
	p, err := scanSQLiteProperty(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(model.ErrNotFound, "sqlite: property %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get property %s", id)
	}
	return p, nil
}

func (s *SQLiteStore) GetPropertyByKey(ctx context.Context, apn, county string) (*model.Property, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqlitePropertyColumns+` FROM properties WHERE apn = ? AND county = ?`, apn, county)
	p, err := scanSQLiteProperty(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(model.ErrNotFound, "sqlite: property %s/%s", apn, county)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get property %s/%s", apn, county)
	}
	return p, nil
}

func (s *SQLiteStore) UpdatePropertyFields(ctx context.Context, id string, fields map[string]any) error {
	setClauses := ""
	var args []any
	for name, col := range propertyFieldColumns {
		v, ok := fields[name]
		if !ok {
			continue
		}
		if setClauses != "" {
			setClauses += ", "
		}
		setClauses += col + " = ?"
		args = append(args, v)
	}
	if setClauses == "" {
		return nil
	}
	args = append(args, time.Now().UTC(), id)

	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE properties SET %s, updated_at = ? WHERE id = ?`, setClauses), args...)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update property fields %s", id)
	}
	return checkSQLiteRows(res, "property", id)
}

type sqliteRow interface {
	Scan(dest ...any) error
}

func scanSQLiteProperty(row sqliteRow) (*model.Property, error) {
	var p model.Property
	var flagsJSON string
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
	if flagsJSON != "" {
		if err := json.Unmarshal([]byte(flagsJSON), &p.Flags); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal flags")
		}
	}
	return &p, nil
}

func (s *SQLiteStore) InsertEvent(ctx context.Context, e *model.DistressEvent) (bool, error) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO distress_events (
			id, property_id, event_type, source, severity, confidence,
			fingerprint, raw_payload, observed_at, created_at
		) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		e.ID, e.PropertyID, string(e.Type), e.Source, e.Severity, e.Confidence,
		e.Fingerprint, e.RawPayload, e.ObservedAt, e.CreatedAt,
	)
	if err != nil {
		if IsDuplicate(err) {
			return true, nil
		}
		return false, eris.Wrap(err, "sqlite: insert event")
	}
	return false, nil
}

func (s *SQLiteStore) ListEventsByProperty(ctx context.Context, propertyID string) ([]model.DistressEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, property_id, event_type, source, severity, confidence,
		       fingerprint, raw_payload, observed_at, created_at
		FROM distress_events WHERE property_id = ? ORDER BY observed_at DESC`, propertyID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list events")
	}
	defer rows.Close()

	var events []model.DistressEvent
	for rows.Next() {
		var e model.DistressEvent
		var et string
		if err := rows.Scan(&e.ID, &e.PropertyID, &et, &e.Source, &e.Severity,
			&e.Confidence, &e.Fingerprint, &e.RawPayload, &e.ObservedAt, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan event")
		}
		e.Type = model.EventType(et)
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *SQLiteStore) AppendScoringRecord(ctx context.Context, r *model.ScoringRecord) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	factorsJSON, err := json.Marshal(r.Factors)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal factors")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO scoring_records (id, property_id, motivation_score, deal_score, composite, label, factors, created_at)
		VALUES (?,?,?,?,?,?,?,?)`,
		r.ID, r.PropertyID, r.MotivationScore, r.DealScore, r.Composite, r.Label, string(factorsJSON), r.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: append scoring record")
}

func (s *SQLiteStore) AppendPredictionRecord(ctx context.Context, r *model.PredictionRecord) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	weightsJSON, err := json.Marshal(r.Weights)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal weights")
	}
	componentsJSON, err := json.Marshal(r.Components)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal components")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO prediction_records (id, property_id, score, days_until_distress, confidence, weights, components, created_at)
		VALUES (?,?,?,?,?,?,?,?)`,
		r.ID, r.PropertyID, r.Score, r.DaysUntilDistress, r.Confidence,
		string(weightsJSON), string(componentsJSON), r.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: append prediction record")
}

func (s *SQLiteStore) LatestScoringRecord(ctx context.Context, propertyID string) (*model.ScoringRecord, error) {
	var r model.ScoringRecord
	var factorsJSON string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, property_id, motivation_score, deal_score, composite, label, factors, created_at
		FROM scoring_records WHERE property_id = ? ORDER BY created_at DESC LIMIT 1`, propertyID,
	).Scan(&r.ID, &r.PropertyID, &r.MotivationScore, &r.DealScore, &r.Composite, &r.Label, &factorsJSON, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(model.ErrNotFound, "sqlite: scoring record for %s", propertyID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: latest scoring record")
	}
	if err := json.Unmarshal([]byte(factorsJSON), &r.Factors); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal factors")
	}
	return &r, nil
}

func (s *SQLiteStore) LatestPredictionRecord(ctx context.Context, propertyID string) (*model.PredictionRecord, error) {
	var r model.PredictionRecord
	var weightsJSON, componentsJSON string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, property_id, score, days_until_distress, confidence, weights, components, created_at
		FROM prediction_records WHERE property_id = ? ORDER BY created_at DESC LIMIT 1`, propertyID,
	).Scan(&r.ID, &r.PropertyID, &r.Score, &r.DaysUntilDistress, &r.Confidence, &weightsJSON, &componentsJSON, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(model.ErrNotFound, "sqlite: prediction record for %s", propertyID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: latest prediction record")
	}
	if err := json.Unmarshal([]byte(weightsJSON), &r.Weights); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal weights")
	}
	if err := json.Unmarshal([]byte(componentsJSON), &r.Components); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal components")
	}
	return &r, nil
}

func (s *SQLiteStore) ScoreHistory(ctx context.Context, propertyID string, limit int) ([]float64, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT composite FROM scoring_records
		WHERE property_id = ? ORDER BY created_at DESC LIMIT ?`, propertyID, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: score history")
	}
	defer rows.Close()

	var newestFirst []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan score")
		}
		newestFirst = append(newestFirst, v)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: score history rows")
	}

	out := make([]float64, len(newestFirst))
	for i, v := range newestFirst {
		out[len(newestFirst)-1-i] = v
	}
	return out, nil
}

const sqliteLeadColumns = `id, property_id, status, priority, source, tags, assigned_to, lock_version, notes, created_at, updated_at`

func (s *SQLiteStore) CreateLead(ctx context.Context, lead *model.Lead) error {
	if lead.ID == "" {
		lead.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = now
		lead.UpdatedAt = now
	}
	tagsJSON, err := json.Marshal(orEmptySlice(lead.Tags))
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal tags")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO leads (id, property_id, status, priority, source, tags, assigned_to, lock_version, notes, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		lead.ID, lead.PropertyID, string(lead.Status), lead.Priority, lead.Source,
		string(tagsJSON), lead.AssignedTo, lead.LockVersion, lead.Notes, lead.CreatedAt, lead.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: create lead")
}

func (s *SQLiteStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteLeadColumns+` FROM leads WHERE id = ?`, id)
	lead, err := scanSQLiteLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(model.ErrNotFound, "sqlite: lead %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get lead %s", id)
	}
	return lead, nil
}

func (s *SQLiteStore) FindActiveLeadByProperty(ctx context.Context, propertyID string) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+sqliteLeadColumns+` FROM leads
		WHERE property_id = ? AND status IN ('prospect', 'lead', 'negotiation')
		LIMIT 1`, propertyID)
	lead, err := scanSQLiteLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find active lead")
	}
	return lead, nil
}

func (s *SQLiteStore) UpdateLeadCAS(ctx context.Context, lead *model.Lead, observedVersion int64) error {
	tagsJSON, err := json.Marshal(orEmptySlice(lead.Tags))
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal tags")
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE leads SET
			status = ?, priority = ?, tags = ?, assigned_to = ?, notes = ?,
			lock_version = lock_version + 1, updated_at = ?
		WHERE id = ? AND lock_version = ?`,
		string(lead.Status), lead.Priority, string(tagsJSON), lead.AssignedTo,
		lead.Notes, time.Now().UTC(), lead.ID, observedVersion,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update lead %s", lead.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		var current int64
		err := s.db.QueryRowContext(ctx, `SELECT lock_version FROM leads WHERE id = ?`, lead.ID).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return eris.Wrapf(model.ErrNotFound, "sqlite: lead %s", lead.ID)
		}
		if err != nil {
			return eris.Wrapf(err, "sqlite: reread lead %s", lead.ID)
		}
		return eris.Wrapf(model.ErrVersionConflict, "sqlite: lead %s at version %d, observed %d",
			lead.ID, current, observedVersion)
	}
	lead.LockVersion = observedVersion + 1
	return nil
}

func (s *SQLiteStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := `SELECT ` + sqliteLeadColumns + ` FROM leads WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.AssignedTo != "" {
		query += ` AND assigned_to = ?`
		args = append(args, filter.AssignedTo)
	}
	if filter.MinScore > 0 {
		query += ` AND priority >= ?`
		args = append(args, filter.MinScore)
	}
	query += ` ORDER BY priority DESC, created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		lead, err := scanSQLiteLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		leads = append(leads, *lead)
	}
	return leads, rows.Err()
}

func scanSQLiteLead(row sqliteRow) (*model.Lead, error) {
	var l model.Lead
	var status, tagsJSON string
	err := row.Scan(&l.ID, &l.PropertyID, &status, &l.Priority, &l.Source,
		&tagsJSON, &l.AssignedTo, &l.LockVersion, &l.Notes, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	l.Status = model.LeadStatus(status)
	if err := json.Unmarshal([]byte(tagsJSON), &l.Tags); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal tags")
	}
	return &l, nil
}

func (s *SQLiteStore) AppendAudit(ctx context.Context, entry model.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	detailsJSON, err := json.Marshal(orEmptyMap(entry.Details))
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal audit details")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, actor, action, entity_type, entity_id, details, created_at)
		VALUES (?,?,?,?,?,?,?)`,
		entry.ID, entry.Actor, entry.Action, entry.EntityType, entry.EntityID, string(detailsJSON), entry.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: append audit")
}

func (s *SQLiteStore) ListAudit(ctx context.Context, filter AuditFilter) ([]model.AuditEntry, error) {
	query := `SELECT id, actor, action, entity_type, entity_id, details, created_at FROM audit_log WHERE 1=1`
	var args []any

	if filter.EntityType != "" {
		query += ` AND entity_type = ?`
		args = append(args, filter.EntityType)
	}
	if filter.EntityID != "" {
		query += ` AND entity_id = ?`
		args = append(args, filter.EntityID)
	}
	if filter.Action != "" {
		query += ` AND action = ?`
		args = append(args, filter.Action)
	}
	if !filter.Since.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, filter.Since)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list audit")
	}
	defer rows.Close()

	var entries []model.AuditEntry
	for rows.Next() {
		var e model.AuditEntry
		var detailsJSON string
		if err := rows.Scan(&e.ID, &e.Actor, &e.Action, &e.EntityType, &e.EntityID, &detailsJSON, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan audit")
		}
		if detailsJSON != "" {
			if err := json.Unmarshal([]byte(detailsJSON), &e.Details); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal audit details")
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func checkSQLiteRows(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(model.ErrNotFound, "sqlite: %s %s", kind, id)
	}
	return nil
}

func orEmptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
