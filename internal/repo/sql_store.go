package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/LeventeLantos/whatsapp-dispatcher/internal/model"
)

// SQLStore persists recipients and message outcomes on postgres (pgx) or sqlite.
// Queries are written with ? placeholders and rebound per driver.
type SQLStore struct {
	db     *sql.DB
	driver string
	now    func() time.Time
}

func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	name, err := NormalizeDriver(driver)
	if err != nil {
		name = DriverPostgres
	}
	return &SQLStore{
		db:     db,
		driver: name,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *SQLStore) q(query string) string {
	return rebind(s.driver, query)
}

func (s *SQLStore) InsertRecipient(ctx context.Context, r model.Recipient) (int64, error) {
	status := r.Status
	if status == "" {
		status = "novo"
	}
	now := s.now()

	var id int64
	err := s.db.QueryRowContext(ctx, s.q(`
		INSERT INTO recipients (name, phone, city, address, service_type, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`), r.Name, r.Phone, r.City, r.Address, r.ServiceType, status, now, now).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// ResolveRecipients loads recipients by id, in the order the ids were given.
// Unknown ids are skipped and repeated ids yield one recipient.
func (s *SQLStore) ResolveRecipients(ctx context.Context, ids []int64) ([]model.Recipient, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	unique := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	args := make([]any, len(unique))
	for i, id := range unique {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT id, name, phone, city, address, service_type, status
		FROM recipients
		WHERE id IN (`+placeholders(len(unique))+`)
	`), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[int64]model.Recipient, len(unique))
	for rows.Next() {
		r, err := scanRecipient(rows)
		if err != nil {
			return nil, err
		}
		byID[r.ID] = r
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]model.Recipient, 0, len(byID))
	for _, id := range unique {
		if r, ok := byID[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *SQLStore) ListRecipients(ctx context.Context) ([]model.Recipient, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, phone, city, address, service_type, status
		FROM recipients
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Recipient
	for rows.Next() {
		r, err := scanRecipient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLStore) MarkRecipientContacted(ctx context.Context, recipientID int64, status string) error {
	n, err := s.UpdateRecipientStatuses(ctx, []int64{recipientID}, status, "mensagem enviada via whatsapp")
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("recipient %d not found", recipientID)
	}
	return nil
}

// UpdateRecipientStatuses sets status on every listed recipient and writes a
// history row for each one changed, in a single transaction.
func (s *SQLStore) UpdateRecipientStatuses(ctx context.Context, ids []int64, status, detail string) (int, error) {
	if status == "" {
		return 0, errors.New("status must not be empty")
	}
	if len(ids) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	now := s.now()
	updated := 0
	for _, id := range ids {
		res, err := tx.ExecContext(ctx, s.q(`
			UPDATE recipients
			SET status = ?, updated_at = ?
			WHERE id = ?
		`), status, now, id)
		if err != nil {
			return 0, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		if n == 0 {
			continue
		}
		updated++

		if _, err := tx.ExecContext(ctx, s.q(`
			INSERT INTO recipient_history (recipient_id, action, detail, created_at)
			VALUES (?, ?, ?, ?)
		`), id, "status:"+status, detail, now); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return updated, nil
}

// ListHistory returns the audit trail of one recipient, oldest first.
func (s *SQLStore) ListHistory(ctx context.Context, recipientID int64) ([]model.LeadHistory, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT recipient_id, action, detail, created_at
		FROM recipient_history
		WHERE recipient_id = ?
		ORDER BY created_at ASC, id ASC
	`), recipientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.LeadHistory
	for rows.Next() {
		var h model.LeadHistory
		if err := rows.Scan(&h.RecipientID, &h.Action, &h.Detail, &h.At); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (s *SQLStore) RecordMessage(ctx context.Context, m model.Message) error {
	created := m.CreatedAt
	if created.IsZero() {
		created = s.now()
	}
	status := m.Status
	if status == "" {
		status = model.Pending
	}

	var recipientID any
	if m.RecipientID != 0 {
		recipientID = m.RecipientID
	}

	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO messages (job_id, recipient_id, recipient_phone, content, status,
		                      attempt_count, last_error, sent_at, remote_message_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`),
		m.JobID,
		recipientID,
		m.RecipientPhone,
		m.Content,
		string(status),
		m.AttemptCount,
		nullString(m.LastError),
		nullTime(m.SentAt),
		nullString(m.RemoteMessageID),
		created,
		created,
	)
	return err
}

func (s *SQLStore) ListSent(ctx context.Context, limit, offset int) ([]model.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT id, job_id, recipient_id, recipient_phone, content, status, attempt_count,
		       last_error, sent_at, remote_message_id, created_at, updated_at
		FROM messages
		WHERE status = 'sent'
		ORDER BY sent_at DESC
		LIMIT ? OFFSET ?
	`), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Message
	for rows.Next() {
		var m model.Message
		var status string
		var recipientID sql.NullInt64
		var lastErr sql.NullString
		var sentAt sql.NullTime
		var remoteID sql.NullString

		if err := rows.Scan(
			&m.ID,
			&m.JobID,
			&recipientID,
			&m.RecipientPhone,
			&m.Content,
			&status,
			&m.AttemptCount,
			&lastErr,
			&sentAt,
			&remoteID,
			&m.CreatedAt,
			&m.UpdatedAt,
		); err != nil {
			return nil, err
		}

		m.Status = model.Status(status)
		m.RecipientID = recipientID.Int64

		if lastErr.Valid {
			s := lastErr.String
			m.LastError = &s
		}
		if sentAt.Valid {
			t := sentAt.Time
			m.SentAt = &t
		}
		if remoteID.Valid {
			s := remoteID.String
			m.RemoteMessageID = &s
		}

		out = append(out, m)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecipient(rs rowScanner) (model.Recipient, error) {
	var r model.Recipient
	err := rs.Scan(&r.ID, &r.Name, &r.Phone, &r.City, &r.Address, &r.ServiceType, &r.Status)
	return r, err
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
