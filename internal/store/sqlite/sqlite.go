// Package sqlite implements store.Store on a local SQLite file for the
// local build target. Same schema shape as the postgres driver with SQLite
// column affinities and ? placeholders.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/openvcon/vconstore/internal/model"
	"github.com/openvcon/vconstore/internal/store"
	"github.com/openvcon/vconstore/internal/vcon"
)

//go:embed schema.sql
var ddlFile string

// Sqlite implements store.Store.
type Sqlite struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database at the given path with WAL
// journal mode. ":memory:" is honored for tests.
func Open(path string) (*sql.DB, error) {
	memory := path == ":memory:"
	if !memory {
		// avoid SQLITE_CANTOPEN when the parent directory is missing
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if memory {
		// every pooled connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, &model.StoreUnavailableError{Reason: model.StoreFailureService, Err: err}
	}
	return db, nil
}

// New constructs a store from an existing connection.
func New(db *sql.DB) (store.Store, error) {
	if db == nil {
		return nil, fmt.Errorf("nil db")
	}
	return &Sqlite{db: db}, nil
}

// EnsureSchema applies the embedded DDL.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range strings.Split(ddlFile, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sqlite) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Sqlite) Upsert(ctx context.Context, rs vcon.RowSet) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := deleteChildren(ctx, tx, rs.VCon.UUID); err != nil {
		return err
	}
	v := rs.VCon
	if _, err := tx.ExecContext(ctx, `
        INSERT INTO vcons (uuid, version, created_at, updated_at, subject,
                           extensions, must_support, redacted_uuid, appended_uuid, group_uuids)
        VALUES (?,?,?,?,?,?,?,?,?,?)
        ON CONFLICT (uuid) DO UPDATE SET
            version=excluded.version, created_at=excluded.created_at,
            updated_at=excluded.updated_at, subject=excluded.subject,
            extensions=excluded.extensions, must_support=excluded.must_support,
            redacted_uuid=excluded.redacted_uuid, appended_uuid=excluded.appended_uuid,
            group_uuids=excluded.group_uuids
    `, v.UUID, v.Version, v.CreatedAt, v.UpdatedAt, v.Subject,
		store.JSONStrings(v.Extensions), store.JSONStrings(v.MustSupport),
		v.RedactedUUID, v.AppendedUUID, store.JSONStrings(v.GroupUUIDs)); err != nil {
		return err
	}

	for _, p := range rs.Parties {
		if err := insertParty(ctx, tx, p); err != nil {
			return err
		}
	}
	for _, d := range rs.Dialog {
		if err := insertDialog(ctx, tx, d); err != nil {
			return err
		}
	}
	for _, a := range rs.Analysis {
		if err := insertAnalysis(ctx, tx, a); err != nil {
			return err
		}
	}
	for _, a := range rs.Attachments {
		if err := insertAttachment(ctx, tx, a); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func deleteChildren(ctx context.Context, tx *sql.Tx, uuid string) error {
	for _, table := range []string{"parties", "dialog", "analysis", "attachments"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE vcon_uuid=?`, uuid); err != nil {
			return err
		}
	}
	return nil
}

func insertParty(ctx context.Context, tx *sql.Tx, p vcon.PartyRow) error {
	_, err := tx.ExecContext(ctx, `
        INSERT INTO parties (vcon_uuid, idx, tel, sip, mailto, name, did,
                             party_uuid, stir, validation, gmlpos, civicaddress, timezone)
        VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)
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
        VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
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
        VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)
    `, a.VConUUID, a.Idx, a.Type, store.JSONInts(a.Dialog), a.MediaType, a.Filename,
		a.Vendor, a.Product, a.Schema, a.Body, a.Encoding, a.URL, a.ContentHash)
	return err
}

func insertAttachment(ctx context.Context, tx *sql.Tx, a vcon.AttachmentRow) error {
	_, err := tx.ExecContext(ctx, `
        INSERT INTO attachments (vcon_uuid, idx, type, start_time, party, dialog,
                                 mediatype, filename, body, encoding, url, content_hash)
        VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
    `, a.VConUUID, a.Idx, a.Type, a.Start, a.Party, a.Dialog,
		a.MediaType, a.Filename, a.Body, a.Encoding, a.URL, a.ContentHash)
	return err
}

func (s *Sqlite) Get(ctx context.Context, uuid string) (vcon.RowSet, error) {
	var rs vcon.RowSet
	v := &rs.VCon
	var ext, ms, grp sql.NullString
	row := s.db.QueryRowContext(ctx, `
        SELECT uuid, version, created_at, updated_at, subject,
               extensions, must_support, redacted_uuid, appended_uuid, group_uuids
        FROM vcons WHERE uuid=?
    `, uuid)
	if err := row.Scan(&v.UUID, &v.Version, &v.CreatedAt, &v.UpdatedAt, &v.Subject,
		&ext, &ms, &v.RedactedUUID, &v.AppendedUUID, &grp); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rs, &model.NotFoundError{UUID: uuid}
		}
		return rs, err
	}
	v.Extensions = store.DecodeStrings(ext)
	v.MustSupport = store.DecodeStrings(ms)
	v.GroupUUIDs = store.DecodeStrings(grp)

	var err error
	if rs.Parties, err = s.readParties(ctx, uuid); err != nil {
		return rs, err
	}
	if rs.Dialog, err = s.readDialog(ctx, uuid); err != nil {
		return rs, err
	}
	if rs.Analysis, err = s.readAnalysis(ctx, uuid); err != nil {
		return rs, err
	}
	if rs.Attachments, err = s.readAttachments(ctx, uuid); err != nil {
		return rs, err
	}
	return rs, nil
}

func (s *Sqlite) readParties(ctx context.Context, uuid string) ([]vcon.PartyRow, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT vcon_uuid, idx, tel, sip, mailto, name, did,
               party_uuid, stir, validation, gmlpos, civicaddress, timezone
        FROM parties WHERE vcon_uuid=? ORDER BY idx
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

func (s *Sqlite) readDialog(ctx context.Context, uuid string) ([]vcon.DialogRow, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT vcon_uuid, idx, type, start_time, duration_seconds, parties,
               originator, mediatype, filename, body, encoding, url, content_hash,
               disposition, session_id, application, message_id,
               transferee, transferor, transfer_target
        FROM dialog WHERE vcon_uuid=? ORDER BY idx
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

func (s *Sqlite) readAnalysis(ctx context.Context, uuid string) ([]vcon.AnalysisRow, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT vcon_uuid, idx, type, dialog_indices, mediatype, filename,
               vendor, product, schema_ref, body, encoding, url, content_hash
        FROM analysis WHERE vcon_uuid=? ORDER BY idx
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

func (s *Sqlite) readAttachments(ctx context.Context, uuid string) ([]vcon.AttachmentRow, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT vcon_uuid, idx, type, start_time, party, dialog,
               mediatype, filename, body, encoding, url, content_hash
        FROM attachments WHERE vcon_uuid=? ORDER BY idx
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

func (s *Sqlite) Exists(ctx context.Context, uuid string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM vcons WHERE uuid=?`, uuid).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Sqlite) Delete(ctx context.Context, uuid string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := deleteChildren(ctx, tx, uuid); err != nil {
		return false, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM vcons WHERE uuid=?`, uuid)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return n > 0, nil
}

func nextIdx(ctx context.Context, tx *sql.Tx, table, uuid string) (int, error) {
	var one int
	if err := tx.QueryRowContext(ctx, `SELECT 1 FROM vcons WHERE uuid=?`, uuid).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, &model.NotFoundError{UUID: uuid}
		}
		return 0, err
	}
	var next int
	err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(idx)+1, 0) FROM `+table+` WHERE vcon_uuid=?`, uuid).Scan(&next)
	return next, err
}

func touch(ctx context.Context, tx *sql.Tx, uuid string, updatedAt time.Time) error {
	_, err := tx.ExecContext(ctx, `UPDATE vcons SET updated_at=? WHERE uuid=?`, updatedAt, uuid)
	return err
}

func (s *Sqlite) AppendDialog(ctx context.Context, uuid string, row vcon.DialogRow, updatedAt time.Time) error {
	return s.append(ctx, uuid, "dialog", updatedAt, func(tx *sql.Tx, idx int) error {
		row.VConUUID, row.Idx = uuid, idx
		return insertDialog(ctx, tx, row)
	})
}

func (s *Sqlite) AppendAnalysis(ctx context.Context, uuid string, row vcon.AnalysisRow, updatedAt time.Time) error {
	return s.append(ctx, uuid, "analysis", updatedAt, func(tx *sql.Tx, idx int) error {
		row.VConUUID, row.Idx = uuid, idx
		return insertAnalysis(ctx, tx, row)
	})
}

func (s *Sqlite) AppendAttachment(ctx context.Context, uuid string, row vcon.AttachmentRow, updatedAt time.Time) error {
	return s.append(ctx, uuid, "attachments", updatedAt, func(tx *sql.Tx, idx int) error {
		row.VConUUID, row.Idx = uuid, idx
		return insertAttachment(ctx, tx, row)
	})
}

func (s *Sqlite) append(ctx context.Context, uuid, table string, updatedAt time.Time, insert func(tx *sql.Tx, idx int) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	idx, err := nextIdx(ctx, tx, table, uuid)
	if err != nil {
		return err
	}
	if err := insert(tx, idx); err != nil {
		return err
	}
	if err := touch(ctx, tx, uuid, updatedAt); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Sqlite) UpdateSubject(ctx context.Context, uuid string, subject *string, updatedAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE vcons SET subject=?, updated_at=? WHERE uuid=?`, subject, updatedAt, uuid)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &model.NotFoundError{UUID: uuid}
	}
	return nil
}

func (s *Sqlite) ReplaceAttachments(ctx context.Context, uuid string, rows []vcon.AttachmentRow, updatedAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var one int
	if err := tx.QueryRowContext(ctx, `SELECT 1 FROM vcons WHERE uuid=?`, uuid).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &model.NotFoundError{UUID: uuid}
		}
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM attachments WHERE vcon_uuid=?`, uuid); err != nil {
		return err
	}
	for i, a := range rows {
		a.VConUUID, a.Idx = uuid, i
		if err := insertAttachment(ctx, tx, a); err != nil {
			return err
		}
	}
	if err := touch(ctx, tx, uuid, updatedAt); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Sqlite) Search(ctx context.Context, q model.SearchQuery) ([]string, error) {
	query := `SELECT uuid FROM vcons WHERE 1=1`
	var args []interface{}
	if q.Subject != "" {
		// SQLite LIKE is case-insensitive for ASCII
		query += ` AND subject LIKE ?`
		args = append(args, "%"+q.Subject+"%")
	}
	if q.Party != "" {
		query += ` AND EXISTS (SELECT 1 FROM parties p WHERE p.vcon_uuid = vcons.uuid
            AND (p.tel=? OR p.sip=? OR p.mailto=? OR p.name=? OR p.did=?))`
		args = append(args, q.Party, q.Party, q.Party, q.Party, q.Party)
	}
	if q.From != nil {
		query += ` AND created_at >= ?`
		args = append(args, *q.From)
	}
	if q.Until != nil {
		query += ` AND created_at < ?`
		args = append(args, *q.Until)
	}
	query += ` ORDER BY created_at DESC`
	if q.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, q.Limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *Sqlite) ListTagBodies(ctx context.Context, limit int) ([]store.TagBody, error) {
	query := `
        SELECT a.vcon_uuid, a.body FROM attachments a
        JOIN (SELECT vcon_uuid, MIN(idx) AS idx FROM attachments
              WHERE type=? AND body IS NOT NULL GROUP BY vcon_uuid) m
          ON a.vcon_uuid=m.vcon_uuid AND a.idx=m.idx`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, model.TagsAttachmentType)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []store.TagBody
	for rows.Next() {
		var tb store.TagBody
		if err := rows.Scan(&tb.UUID, &tb.Body); err != nil {
			return nil, err
		}
		out = append(out, tb)
	}
	return out, rows.Err()
}

func (s *Sqlite) CorpusStats(ctx context.Context) (model.CorpusStats, error) {
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
			return cs, err
		}
	}
	var pageCount, pageSize int64
	if err := s.db.QueryRowContext(ctx, `PRAGMA page_count`).Scan(&pageCount); err != nil {
		return cs, err
	}
	if err := s.db.QueryRowContext(ctx, `PRAGMA page_size`).Scan(&pageSize); err != nil {
		return cs, err
	}
	cs.ApproxBytes = pageCount * pageSize
	return cs, nil
}
