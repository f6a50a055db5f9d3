package repository

import (
	"context"

	"github.com/jhoicas/facturacion-sunat/internal/domain/entity"
)

// DocumentRepository define el puerto de persistencia de comprobantes.
type DocumentRepository interface {
	// Create inserta el comprobante en Draft. Devuelve domain.ErrDuplicate si la clave
	// natural (RUC, tipo, serie, número) ya existe.
	Create(ctx context.Context, doc *entity.Document) error
	// Update persiste estado, XML, hash, ticket y último resultado SUNAT.
	Update(ctx context.Context, doc *entity.Document) error
	// GetByID devuelve nil, nil si no existe.
	GetByID(ctx context.Context, id string) (*entity.Document, error)
	GetByNaturalKey(ctx context.Context, supplierRUC, typeCode, series string, number int64) (*entity.Document, error)
	// ListByStatus lista comprobantes de un emisor en un estado (ej. Submitted pendientes de consulta).
	ListByStatus(ctx context.Context, supplierRUC string, status entity.DocumentStatus, limit int) ([]*entity.Document, error)
}

// AcknowledgmentRepository CDRs recibidos; un documento puede acumular varios.
type AcknowledgmentRepository interface {
	Append(ctx context.Context, rec *entity.AcknowledgmentRecord) error
	// Latest devuelve nil, nil si el documento no tiene CDR.
	Latest(ctx context.Context, documentID string) (*entity.AcknowledgmentRecord, error)
	ListByDocument(ctx context.Context, documentID string) ([]*entity.AcknowledgmentRecord, error)
}

// OperationLogRepository bitácora de etapas, solo inserción.
type OperationLogRepository interface {
	Append(ctx context.Context, entry *entity.OperationLogEntry) error
	ListByDocument(ctx context.Context, documentID string) ([]*entity.OperationLogEntry, error)
}
