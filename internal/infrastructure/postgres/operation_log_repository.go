package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/facturacion-sunat/internal/domain/entity"
	"github.com/jhoicas/facturacion-sunat/internal/domain/repository"
)

var _ repository.OperationLogRepository = (*OperationLogRepo)(nil)

// OperationLogRepo bitácora de etapas.
type OperationLogRepo struct {
	q Querier
}

// NewOperationLogRepository construye el adaptador. Pasar pool o tx (Querier).
func NewOperationLogRepository(q Querier) *OperationLogRepo {
	return &OperationLogRepo{q: q}
}

// Append inserta una entrada; nunca se actualiza ni se borra.
func (r *OperationLogRepo) Append(ctx context.Context, e *entity.OperationLogEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := r.q.Exec(ctx, `
		INSERT INTO operation_log (id, document_id, correlation_id, stage, outcome, duration_ms, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.DocumentID, e.CorrelationID, e.Stage, e.Outcome, e.Duration.Milliseconds(),
		nullIfEmpty(e.Message), e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert operation log: %w", err)
	}
	return nil
}

// ListByDocument entradas del documento en orden cronológico.
func (r *OperationLogRepo) ListByDocument(ctx context.Context, documentID string) ([]*entity.OperationLogEntry, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, document_id, correlation_id, stage, outcome, duration_ms, message, created_at
		FROM operation_log WHERE document_id = $1 ORDER BY created_at, id`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list operation log: %w", err)
	}
	defer rows.Close()
	var list []*entity.OperationLogEntry
	for rows.Next() {
		var e entity.OperationLogEntry
		var ms int64
		var msg *string
		if err := rows.Scan(&e.ID, &e.DocumentID, &e.CorrelationID, &e.Stage, &e.Outcome, &ms, &msg, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan operation log: %w", err)
		}
		e.Duration = time.Duration(ms) * time.Millisecond
		e.Message = derefStr(msg)
		list = append(list, &e)
	}
	return list, rows.Err()
}
