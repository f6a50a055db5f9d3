package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jhoicas/facturacion-sunat/internal/domain/entity"
	"github.com/jhoicas/facturacion-sunat/internal/domain/repository"
)

var _ repository.AcknowledgmentRepository = (*AcknowledgmentRepo)(nil)

// AcknowledgmentRepo CDRs por documento (solo inserción).
type AcknowledgmentRepo struct {
	q Querier
}

// NewAcknowledgmentRepository construye el adaptador. Pasar pool o tx (Querier).
func NewAcknowledgmentRepository(q Querier) *AcknowledgmentRepo {
	return &AcknowledgmentRepo{q: q}
}

const ackColumns = `id, document_id, response_id, reference_id, sender_id, receiver_id, issued_at,
	responded_at, response_code, description, notes, outcome, raw_zip, created_at`

// Append inserta un CDR.
func (r *AcknowledgmentRepo) Append(ctx context.Context, rec *entity.AcknowledgmentRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	notes, err := toJSON(rec.Notes)
	if err != nil {
		return err
	}
	_, err = r.q.Exec(ctx, `INSERT INTO acknowledgments (`+ackColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		rec.ID, rec.DocumentID, nullIfEmpty(rec.ResponseID), nullIfEmpty(rec.ReferenceID),
		nullIfEmpty(rec.SenderID), nullIfEmpty(rec.ReceiverID), nullTime(rec.IssuedAt), nullTime(rec.RespondedAt),
		rec.ResponseCode, nullIfEmpty(rec.Description), notes, rec.Outcome, rec.RawZip, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert acknowledgment: %w", err)
	}
	return nil
}

// Latest último CDR del documento; nil, nil si no hay.
func (r *AcknowledgmentRepo) Latest(ctx context.Context, documentID string) (*entity.AcknowledgmentRecord, error) {
	row := r.q.QueryRow(ctx, `SELECT `+ackColumns+` FROM acknowledgments
		WHERE document_id = $1 ORDER BY created_at DESC LIMIT 1`, documentID)
	rec, err := scanAcknowledgment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rec, nil
}

// ListByDocument CDRs del documento en orden de llegada.
func (r *AcknowledgmentRepo) ListByDocument(ctx context.Context, documentID string) ([]*entity.AcknowledgmentRecord, error) {
	rows, err := r.q.Query(ctx, `SELECT `+ackColumns+` FROM acknowledgments
		WHERE document_id = $1 ORDER BY created_at`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list acknowledgments: %w", err)
	}
	defer rows.Close()
	var list []*entity.AcknowledgmentRecord
	for rows.Next() {
		rec, err := scanAcknowledgment(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, rec)
	}
	return list, rows.Err()
}

func scanAcknowledgment(row pgx.Row) (*entity.AcknowledgmentRecord, error) {
	var (
		rec                                   entity.AcknowledgmentRecord
		respID, refID, sender, receiver, desc *string
		issued, responded                     *time.Time
		notes                                 []byte
	)
	err := row.Scan(&rec.ID, &rec.DocumentID, &respID, &refID, &sender, &receiver, &issued,
		&responded, &rec.ResponseCode, &desc, &notes, &rec.Outcome, &rec.RawZip, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan acknowledgment: %w", err)
	}
	rec.ResponseID = derefStr(respID)
	rec.ReferenceID = derefStr(refID)
	rec.SenderID = derefStr(sender)
	rec.ReceiverID = derefStr(receiver)
	rec.Description = derefStr(desc)
	if issued != nil {
		rec.IssuedAt = *issued
	}
	if responded != nil {
		rec.RespondedAt = *responded
	}
	if err := fromJSON(notes, &rec.Notes); err != nil {
		return nil, err
	}
	return &rec, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
