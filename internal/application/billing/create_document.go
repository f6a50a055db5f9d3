package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/facturacion-sunat/internal/application/dto"
	"github.com/jhoicas/facturacion-sunat/internal/domain"
	"github.com/jhoicas/facturacion-sunat/internal/domain/cpe"
	"github.com/jhoicas/facturacion-sunat/internal/domain/entity"
	"github.com/jhoicas/facturacion-sunat/internal/domain/repository"
	"github.com/jhoicas/facturacion-sunat/internal/domain/tax"
	infrasunat "github.com/jhoicas/facturacion-sunat/internal/infrastructure/sunat"
	"github.com/jhoicas/facturacion-sunat/pkg/sunat"
)

// CreateDocumentUseCase valida y registra un comprobante en DRAFT.
// La clave natural (RUC, tipo, serie, número) la garantiza la base de datos.
type CreateDocumentUseCase struct {
	txRunner TxRunner
	engine   *tax.Engine
	registry *infrasunat.Registry
	now      func() time.Time
}

// NewCreateDocumentUseCase construye el caso de uso. registry nil usa los cuatro tipos por defecto.
func NewCreateDocumentUseCase(txRunner TxRunner, engine *tax.Engine, registry *infrasunat.Registry) *CreateDocumentUseCase {
	if engine == nil {
		engine = tax.NewEngine(tax.DefaultICBPERAmount)
	}
	if registry == nil {
		registry = infrasunat.DefaultRegistry()
	}
	return &CreateDocumentUseCase{
		txRunner: txRunner,
		engine:   engine,
		registry: registry,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create arma el comprobante, calcula totales y lo guarda junto con su primera entrada de bitácora.
//
// Retorna:
//   - domain.ErrForbidden si el emisor no coincide con issuerRUC (RUC del token).
//   - cpe.ErrInvalidDocument (unido a los errores individuales) si la validación falla.
//   - *domain.UnsupportedDocumentTypeError si el tipo no tiene variante registrada.
//   - domain.ErrDuplicate si la clave natural ya existe.
func (uc *CreateDocumentUseCase) Create(ctx context.Context, issuerRUC string, in dto.CreateDocumentRequest) (*entity.Document, error) {
	doc := &entity.Document{
		Header:   in.Header(),
		Supplier: in.Supplier,
		Customer: in.Customer,
		Lines:    in.Lines,
		Status:   entity.StatusDraft,
	}
	applyDefaults(doc)

	if issuerRUC != "" && doc.Supplier.ID != issuerRUC {
		return nil, fmt.Errorf("%w: el emisor %s no corresponde al RUC autenticado", domain.ErrForbidden, doc.Supplier.ID)
	}
	if !uc.registry.Supports(doc.Header.TypeCode) {
		return nil, &domain.UnsupportedDocumentTypeError{TypeCode: doc.Header.TypeCode}
	}
	if err := cpe.ValidateDocument(doc); err != nil {
		return nil, err
	}

	started := uc.now()
	_, totals, err := uc.engine.ComputeAll(doc.Lines)
	if err != nil {
		return nil, err
	}
	doc.Totals = totals

	now := uc.now()
	doc.ID = uuid.New().String()
	doc.CreatedAt = now
	doc.UpdatedAt = now

	err = uc.txRunner.RunInTx(ctx, func(docs repository.DocumentRepository, logs repository.OperationLogRepository) error {
		if err := docs.Create(ctx, doc); err != nil {
			return err
		}
		return logs.Append(ctx, &entity.OperationLogEntry{
			ID:            uuid.New().String(),
			DocumentID:    doc.ID,
			CorrelationID: uuid.New().String(),
			Stage:         entity.StageCalculation,
			Outcome:       entity.StageOutcomeSuccess,
			Duration:      now.Sub(started),
			Message:       fmt.Sprintf("%s registrado en DRAFT, total %s %s", doc.NaturalKey(), totals.PayableAmount.StringFixed(2), doc.Header.Currency),
			CreatedAt:     now,
		})
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func applyDefaults(doc *entity.Document) {
	if doc.Header.Currency == "" {
		doc.Header.Currency = sunat.CurrencyPEN
	}
	if doc.Supplier.IdentityType == "" {
		doc.Supplier.IdentityType = sunat.IdentityRUC
	}
	if doc.Header.PaymentMethod == "" && doc.Header.TypeCode == sunat.DocTypeInvoice {
		doc.Header.PaymentMethod = entity.PaymentCash
		if len(doc.Header.Installments) > 0 {
			doc.Header.PaymentMethod = entity.PaymentCredit
		}
	}
}
