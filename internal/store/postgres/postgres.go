// Package postgres implements store.Store on PostgreSQL via database/sql
// (pgx stdlib driver).
package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/openvcon/vconstore/internal/model"
	"github.com/openvcon/vconstore/internal/store"
	"github.com/openvcon/vconstore/internal/vcon"
)

// Postgres implements store.Store.
type Postgres struct {
	db *sql.DB
}

// Open returns a *sql.DB using the pgx stdlib driver.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, classify(err)
	}
	return db, nil
}

// New constructs a store from an existing DB connection.
func New(db *sql.DB) (store.Store, error) {
	if db == nil {
		return nil, fmt.Errorf("nil db")
	}
	return &Postgres{db: db}, nil
}

// EnsureSchema applies the embedded DDL. Statements use IF NOT EXISTS so
// repeated calls are safe.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range DDLStatements() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return classify(err)
		}
	}
	return nil
}

// classify maps driver failures onto StoreUnavailableError so callers can
// distinguish connectivity trouble from bad credentials from a down service.
// Row-level conditions (no rows, constraint violations) pass through.
func classify(err error) error {
	if err == nil || errors.Is(err, sql.ErrNoRows) || errors.Is(err, context.Canceled) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "28P01" || pgErr.Code == "28000":
			return &model.StoreUnavailableError{Reason: model.StoreFailureCredentials, Err: err}
		case strings.HasPrefix(pgErr.Code, "08"):
			return &model.StoreUnavailableError{Reason: model.StoreFailureNetwork, Err: err}
		case pgErr.Code == "57P01" || pgErr.Code == "57P03" || strings.HasPrefix(pgErr.Code, "53"):
			return &model.StoreUnavailableError{Reason: model.StoreFailureService, Err: err}
		}
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, driver.ErrBadConn) || errors.Is(err, context.DeadlineExceeded) {
		return &model.StoreUnavailableError{Reason: model.StoreFailureNetwork, Err: err}
	}
	return err
}

func (s *Postgres) HealthPing(ctx context.Context) error {
	row := s.db.QueryRowContext(ctx, "SELECT 1")
	var one int
	if err := row.Scan(&one); err != nil {
		return classify(err)
	}
	return nil
}

// Upsert rewrites the record in one transaction: children are deleted and
// reinserted from the row set, so it serves both create and full replace.
func (s *Postgres) Upsert(ctx context.Context, rs vcon.RowSet) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return classify(err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := deleteChildren(ctx, tx, rs.VCon.UUID); err != nil {
		return classify(err)
	}
	v := rs.VCon
	if _, err := tx.ExecContext(ctx, `
        INSERT INTO vcons (uuid, version, created_at, updated_at, subject,
                           extensions, must_support, redacted_uuid, appended_uuid, group_uuids)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        ON CONFLICT (uuid) DO UPDATE SET
            version=EXCLUDED.version, created_at=EXCLUDED.created_at,
            updated_at=EXCLUDED.updated_at, subject=EXCLUDED.subject,
            extensions=EXCLUDED.extensions, must_support=EXCLUDED.must_support,
            redacted_uuid=EXCLUDED.redacted_uuid, appended_uuid=EXCLUDED.appended_uuid,
            group_uuids=EXCLUDED.group_uuids
    `, v.UUID, v.Version, v.CreatedAt, v.UpdatedAt, v.Subject,
		store.JSONStrings(v.Extensions), store.JSONStrings(v.MustSupport),
		v.RedactedUUID, v.AppendedUUID, store.JSONStrings(v.GroupUUIDs)); err != nil {
		return classify(err)
	}

	for _, p := range rs.Parties {
		if err := insertParty(ctx, tx, p); err != nil {
			return classify(err)
		}
	}
	for _, d := range rs.Dialog {
		if err := insertDialog(ctx, tx, d); err != nil {
			return classify(err)
		}
	}
	for _, a := range rs.Analysis {
		if err := insertAnalysis(ctx, tx, a); err != nil {
			return classify(err)
		}
	}
	for _, a := range rs.Attachments {
		if err := insertAttachment(ctx, tx, a); err != nil {
			return classify(err)
		}
	}
	if err := tx.Commit(); err != nil {
		return classify(err)
	}
	return nil
}

func deleteChildren(ctx context.Context, tx *sql.Tx, uuid string) error {
	for _, table := range []string{"parties", "dialog", "analysis", "attachments"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE vcon_uuid=$1`, uuid); err != nil {
			return err
		}
	}
	return nil
}

func insertParty(ctx context.Context, tx *sql.Tx, p vcon.PartyRow) error {
	_, err := tx.ExecContext(ctx, `
        INSERT INTO parties (vcon_uuid, idx, tel, sip, mailto, name, did,
                             party_uuid, stir, validation, gmlpos, civicaddress, timezone)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
    `, p.VConUUID, p.Idx, p.Tel, p.SIP, p.Mailto, p.Name, p.DID,
		p.PartyUUID, p.STIR, p.Validation, p.GMLPos, p.CivicAddress, p.Timezone)
	return err
}

func insertDialog(ctx context.Context, tx *sql.Tx, d vcon.DialogRow) error {
	_, err := tx.ExecContext(ctx, `
        INSERT INTO dialog (vcon_uuid, idx, type, start_time, duration_seconds, parties,
                            originator, mediatype, filename, body, encoding, url, content_hash,
                            disposition, session_id, application, message_id,
                            transferee, transferor, transfer_target)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
    `, d.VConUUID, d.Idx, d.Type, d.Start, d.Duration, store.JSONInts(d.Parties),
		d.Originator, d.MediaType, d.Filename, d.Body, d.Encoding, d.URL, d.ContentHash,
		d.Disposition, d.SessionID, d.Application, d.MessageID,
		d.Transferee, d.Transferor, d.TransferTarget)
	return err
}

func insertAnalysis(ctx context.Context, tx *sql.Tx, a vcon.AnalysisRow) error {
	_, err := tx.ExecContext(ctx, `
        INSERT INTO analysis (vcon_uuid, idx, type, dialog_indices, mediatype, filename,
                              vendor, product, schema_ref, body, encoding, url, content_hash)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
    `, a.VConUUID, a.Idx, a.Type, store.JSONInts(a.Dialog), a.MediaType, a.Filename,
		a.Vendor, a.Product, a.Schema, a.Body, a.Encoding, a.URL, a.ContentHash)
	return err
}

func insertAttachment(ctx context.Context, tx *sql.Tx, a vcon.AttachmentRow) error {
	_, err := tx.ExecContext(ctx, `
        INSERT INTO attachments (vcon_uuid, idx, type, start_time, party, dialog,
                                 mediatype, filename, body, encoding, url, content_hash)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
    `, a.VConUUID, a.Idx, a.Type, a.Start, a.Party, a.Dialog,
		a.MediaType, a.Filename, a.Body, a.Encoding, a.URL, a.ContentHash)
	return err
}

func (s *Postgres) Get(ctx context.Context, uuid string) (vcon.RowSet, error) {
	var rs vcon.RowSet
	v := &rs.VCon
	var ext, ms, grp sql.NullString
	row := s.db.QueryRowContext(ctx, `
        SELECT uuid, version, created_at, updated_at, subject,
               extensions, must_support, redacted_uuid, appended_uuid, group_uuids
        FROM vcons WHERE uuid=$1
    `, uuid)
	if err := row.Scan(&v.UUID, &v.Version, &v.CreatedAt, &v.UpdatedAt, &v.Subject,
		&ext, &ms, &v.RedactedUUID, &v.AppendedUUID, &grp); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rs, &model.NotFoundError{UUID: uuid}
		}
		return rs, classify(err)
	}
	v.Extensions = store.DecodeStrings(ext)
	v.MustSupport = store.DecodeStrings(ms)
	v.GroupUUIDs = store.DecodeStrings(grp)

	var err error
	if rs.Parties, err = s.readParties(ctx, uuid); err != nil {
		return rs, classify(err)
	}
	if rs.Dialog, err = s.readDialog(ctx, uuid); err != nil {
		return rs, classify(err)
	}
	if rs.Analysis, err = s.readAnalysis(ctx, uuid); err != nil {
		return rs, classify(err)
	}
	if rs.Attachments, err = s.readAttachments(ctx, uuid); err != nil {
		return rs, classify(err)
	}
	return rs, nil
}

func (s *Postgres) readParties(ctx context.Context, uuid string) ([]vcon.PartyRow, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT vcon_uuid, idx, tel, sip, mailto, name, did,
               party_uuid, stir, validation, gmlpos, civicaddress, timezone
        FROM parties WHERE vcon_uuid=$1 ORDER BY idx
    `, uuid)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []vcon.PartyRow
	for rows.Next() {
		var p vcon.PartyRow
		if err := rows.Scan(&p.VConUUID, &p.Idx, &p.Tel, &p.SIP, &p.Mailto, &p.Name, &p.DID,
			&p.PartyUUID, &p.STIR, &p.Validation, &p.GMLPos, &p.CivicAddress, &p.Timezone); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Postgres) readDialog(ctx context.Context, uuid string) ([]vcon.DialogRow, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT vcon_uuid, idx, type, start_time, duration_seconds, parties,
               originator, mediatype, filename, body, encoding, url, content_hash,
               disposition, session_id, application, message_id,
               transferee, transferor, transfer_target
        FROM dialog WHERE vcon_uuid=$1 ORDER BY idx
    `, uuid)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []vcon.DialogRow
	for rows.Next() {
		var d vcon.DialogRow
		var parties sql.NullString
		if err := rows.Scan(&d.VConUUID, &d.Idx, &d.Type, &d.Start, &d.Duration, &parties,
			&d.Originator, &d.MediaType, &d.Filename, &d.Body, &d.Encoding, &d.URL, &d.ContentHash,
			&d.Disposition, &d.SessionID, &d.Application, &d.MessageID,
			&d.Transferee, &d.Transferor, &d.TransferTarget); err != nil {
			return nil, err
		}
		d.Parties = store.DecodeInts(parties)
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Postgres) readAnalysis(ctx context.Context, uuid string) ([]vcon.AnalysisRow, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT vcon_uuid, idx, type, dialog_indices, mediatype, filename,
               vendor, product, schema_ref, body, encoding, url, content_hash
        FROM analysis WHERE vcon_uuid=$1 ORDER BY idx
    `, uuid)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []vcon.AnalysisRow
	for rows.Next() {
		var a vcon.AnalysisRow
		var dialog sql.NullString
		if err := rows.Scan(&a.VConUUID, &a.Idx, &a.Type, &dialog, &a.MediaType, &a.Filename,
			&a.Vendor, &a.Product, &a.Schema, &a.Body, &a.Encoding, &a.URL, &a.ContentHash); err != nil {
			return nil, err
		}
		a.Dialog = store.DecodeInts(dialog)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Postgres) readAttachments(ctx context.Context, uuid string) ([]vcon.AttachmentRow, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT vcon_uuid, idx, type, start_time, party, dialog,
               mediatype, filename, body, encoding, url, content_hash
        FROM attachments WHERE vcon_uuid=$1 ORDER BY idx
    `, uuid)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []vcon.AttachmentRow
	for rows.Next() {
		var a vcon.AttachmentRow
		if err := rows.Scan(&a.VConUUID, &a.Idx, &a.Type, &a.Start, &a.Party, &a.Dialog,
			&a.MediaType, &a.Filename, &a.Body, &a.Encoding, &a.URL, &a.ContentHash); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Postgres) Exists(ctx context.Context, uuid string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM vcons WHERE uuid=$1`, uuid).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, classify(err)
	}
	return true, nil
}

func (s *Postgres) Delete(ctx context.Context, uuid string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return false, classify(err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := deleteChildren(ctx, tx, uuid); err != nil {
		return false, classify(err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM vcons WHERE uuid=$1`, uuid)
	if err != nil {
		return false, classify(err)
	}
	n, _ := res.RowsAffected()
	if err := tx.Commit(); err != nil {
		return false, classify(err)
	}
	return n > 0, nil
}

// nextIdx computes the next ordinal for a child table inside the write
// transaction, after verifying the parent exists.
func nextIdx(ctx context.Context, tx *sql.Tx, table, uuid string) (int, error) {
	var one int
	if err := tx.QueryRowContext(ctx, `SELECT 1 FROM vcons WHERE uuid=$1`, uuid).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, &model.NotFoundError{UUID: uuid}
		}
		return 0, err
	}
	var next int
	err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(idx)+1, 0) FROM `+table+` WHERE vcon_uuid=$1`, uuid).Scan(&next)
	return next, err
}

func touch(ctx context.Context, tx *sql.Tx, uuid string, updatedAt time.Time) error {
	_, err := tx.ExecContext(ctx, `UPDATE vcons SET updated_at=$1 WHERE uuid=$2`, updatedAt, uuid)
	return err
}

func (s *Postgres) AppendDialog(ctx context.Context, uuid string, row vcon.DialogRow, updatedAt time.Time) error {
	return s.append(ctx, uuid, "dialog", updatedAt, func(tx *sql.Tx, idx int) error {
		row.VConUUID, row.Idx = uuid, idx
		return insertDialog(ctx, tx, row)
	})
}

func (s *Postgres) AppendAnalysis(ctx context.Context, uuid string, row vcon.AnalysisRow, updatedAt time.Time) error {
	return s.append(ctx, uuid, "analysis", updatedAt, func(tx *sql.Tx, idx int) error {
		row.VConUUID, row.Idx = uuid, idx
		return insertAnalysis(ctx, tx, row)
	})
}

func (s *Postgres) AppendAttachment(ctx context.Context, uuid string, row vcon.AttachmentRow, updatedAt time.Time) error {
	return s.append(ctx, uuid, "attachments", updatedAt, func(tx *sql.Tx, idx int) error {
		row.VConUUID, row.Idx = uuid, idx
		return insertAttachment(ctx, tx, row)
	})
}

func (s *Postgres) append(ctx context.Context, uuid, table string, updatedAt time.Time, insert func(tx *sql.Tx, idx int) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return classify(err)
	}
	defer func() { _ = tx.Rollback() }()

	idx, err := nextIdx(ctx, tx, table, uuid)
	if err != nil {
		if model.IsNotFoundError(err) {
			return err
		}
		return classify(err)
	}
	if err := insert(tx, idx); err != nil {
		return classify(err)
	}
	if err := touch(ctx, tx, uuid, updatedAt); err != nil {
		return classify(err)
	}
	if err := tx.Commit(); err != nil {
		return classify(err)
	}
	return nil
}

func (s *Postgres) UpdateSubject(ctx context.Context, uuid string, subject *string, updatedAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE vcons SET subject=$1, updated_at=$2 WHERE uuid=$3`, subject, updatedAt, uuid)
	if err != nil {
		return classify(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &model.NotFoundError{UUID: uuid}
	}
	return nil
}

func (s *Postgres) ReplaceAttachments(ctx context.Context, uuid string, rows []vcon.AttachmentRow, updatedAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return classify(err)
	}
	defer func() { _ = tx.Rollback() }()

	var one int
	if err := tx.QueryRowContext(ctx, `SELECT 1 FROM vcons WHERE uuid=$1`, uuid).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &model.NotFoundError{UUID: uuid}
		}
		return classify(err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM attachments WHERE vcon_uuid=$1`, uuid); err != nil {
		return classify(err)
	}
	for i, a := range rows {
		a.VConUUID, a.Idx = uuid, i
		if err := insertAttachment(ctx, tx, a); err != nil {
			return classify(err)
		}
	}
	if err := touch(ctx, tx, uuid, updatedAt); err != nil {
		return classify(err)
	}
	if err := tx.Commit(); err != nil {
		return classify(err)
	}
	return nil
}

func (s *Postgres) Search(ctx context.Context, q model.SearchQuery) ([]string, error) {
	query := `SELECT uuid FROM vcons WHERE 1=1`
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if q.Subject != "" {
		query += ` AND subject ILIKE ` + arg("%"+q.Subject+"%")
	}
	if q.Party != "" {
		p := arg(q.Party)
		query += ` AND EXISTS (SELECT 1 FROM parties p WHERE p.vcon_uuid = vcons.uuid
            AND (p.tel=` + p + ` OR p.sip=` + p + ` OR p.mailto=` + p + ` OR p.name=` + p + ` OR p.did=` + p + `))`
	}
	if q.From != nil {
		query += ` AND created_at >= ` + arg(*q.From)
	}
	if q.Until != nil {
		query += ` AND created_at < ` + arg(*q.Until)
	}
	query += ` ORDER BY created_at DESC`
	if q.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, q.Limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer func() { _ = rows.Close() }()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, classify(err)
		}
		out = append(out, id)
	}
	return out, classify(rows.Err())
}

func (s *Postgres) ListTagBodies(ctx context.Context, limit int) ([]store.TagBody, error) {
	query := `
        SELECT DISTINCT ON (vcon_uuid) vcon_uuid, body
        FROM attachments
        WHERE type=$1 AND body IS NOT NULL
        ORDER BY vcon_uuid, idx`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, model.TagsAttachmentType)
	if err != nil {
		return nil, classify(err)
	}
	defer func() { _ = rows.Close() }()
	var out []store.TagBody
	for rows.Next() {
		var tb store.TagBody
		if err := rows.Scan(&tb.UUID, &tb.Body); err != nil {
			return nil, classify(err)
		}
		out = append(out, tb)
	}
	return out, classify(rows.Err())
}

func (s *Postgres) CorpusStats(ctx context.Context) (model.CorpusStats, error) {
	var cs model.CorpusStats
	counts := []struct {
		table string
		dst   *int64
	}{
		{"vcons", &cs.VConCount},
		{"parties", &cs.PartyRows},
		{"dialog", &cs.DialogRows},
		{"analysis", &cs.AnalysisRows},
		{"attachments", &cs.AttachmentRows},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+c.table).Scan(c.dst); err != nil {
			return cs, classify(err)
		}
	}
	err := s.db.QueryRowContext(ctx, `
        SELECT COALESCE(SUM(pg_total_relation_size(quote_ident(tablename)::regclass)), 0)
        FROM pg_tables
        WHERE tablename IN ('vcons','parties','dialog','analysis','attachments')
    `).Scan(&cs.ApproxBytes)
	if err != nil {
		return cs, classify(err)
	}
	return cs, nil
}
