package billing

import (
	"context"
	"fmt"

	"github.com/jhoicas/facturacion-sunat/internal/application/dto"
	"github.com/jhoicas/facturacion-sunat/internal/domain"
	"github.com/jhoicas/facturacion-sunat/internal/domain/entity"
	"github.com/jhoicas/facturacion-sunat/internal/domain/repository"
)

// DocumentQueryUseCase lecturas del comprobante para la API: datos, XML, CDR y bitácora.
type DocumentQueryUseCase struct {
	docs repository.DocumentRepository
	acks repository.AcknowledgmentRepository
	logs repository.OperationLogRepository
}

// NewDocumentQueryUseCase construye el caso de uso.
func NewDocumentQueryUseCase(
	docs repository.DocumentRepository,
	acks repository.AcknowledgmentRepository,
	logs repository.OperationLogRepository,
) *DocumentQueryUseCase {
	return &DocumentQueryUseCase{docs: docs, acks: acks, logs: logs}
}

// Get comprobante con su último CDR.
func (uc *DocumentQueryUseCase) Get(ctx context.Context, issuerRUC, id string) (*dto.DocumentResponse, error) {
	doc, err := uc.authorized(ctx, issuerRUC, id)
	if err != nil {
		return nil, err
	}
	ack, err := uc.acks.Latest(ctx, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("obtener CDR: %w", err)
	}
	return dto.ToDocumentResponse(doc, ack), nil
}

// Status estado almacenado, sin consultar a SUNAT.
func (uc *DocumentQueryUseCase) Status(ctx context.Context, issuerRUC, id string) (*dto.StatusResponse, error) {
	doc, err := uc.authorized(ctx, issuerRUC, id)
	if err != nil {
		return nil, err
	}
	ack, err := uc.acks.Latest(ctx, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("obtener CDR: %w", err)
	}
	return dto.ToStatusResponse(doc, ack), nil
}

// List comprobantes del emisor en un estado.
func (uc *DocumentQueryUseCase) List(ctx context.Context, issuerRUC string, status entity.DocumentStatus, page dto.PageRequest) ([]*dto.DocumentResponse, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: estado %q desconocido", domain.ErrInvalidInput, status)
	}
	page.DefaultPage()
	docs, err := uc.docs.ListByStatus(ctx, issuerRUC, status, page.Limit)
	if err != nil {
		return nil, err
	}
	out := make([]*dto.DocumentResponse, 0, len(docs))
	for _, d := range docs {
		out = append(out, dto.ToDocumentResponse(d, nil))
	}
	return out, nil
}

// XML devuelve el XML firmado (o simulado) si existe; si no, el XML sin firmar.
func (uc *DocumentQueryUseCase) XML(ctx context.Context, issuerRUC, id string) ([]byte, string, error) {
	doc, err := uc.authorized(ctx, issuerRUC, id)
	if err != nil {
		return nil, "", err
	}
	body := doc.SignedXML
	if len(body) == 0 {
		body = doc.UnsignedXML
	}
	if len(body) == 0 {
		return nil, "", fmt.Errorf("%w: el comprobante en %s aún no tiene XML", domain.ErrInvalidInput, doc.Status)
	}
	return body, doc.FileBaseName() + ".xml", nil
}

// CDR devuelve el ZIP de la última constancia de recepción.
func (uc *DocumentQueryUseCase) CDR(ctx context.Context, issuerRUC, id string) ([]byte, string, error) {
	doc, err := uc.authorized(ctx, issuerRUC, id)
	if err != nil {
		return nil, "", err
	}
	ack, err := uc.acks.Latest(ctx, doc.ID)
	if err != nil {
		return nil, "", fmt.Errorf("obtener CDR: %w", err)
	}
	if ack == nil || len(ack.RawZip) == 0 {
		return nil, "", fmt.Errorf("%w: el comprobante no tiene CDR", domain.ErrNotFound)
	}
	return ack.RawZip, "R-" + doc.FileBaseName() + ".zip", nil
}

// Logs bitácora de etapas del comprobante.
func (uc *DocumentQueryUseCase) Logs(ctx context.Context, issuerRUC, id string) ([]dto.OperationLogDTO, error) {
	doc, err := uc.authorized(ctx, issuerRUC, id)
	if err != nil {
		return nil, err
	}
	entries, err := uc.logs.ListByDocument(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	return dto.ToOperationLogDTOs(entries), nil
}

// Authorize verifica existencia y pertenencia del comprobante al emisor autenticado.
func (uc *DocumentQueryUseCase) Authorize(ctx context.Context, issuerRUC, id string) error {
	_, err := uc.authorized(ctx, issuerRUC, id)
	return err
}

func (uc *DocumentQueryUseCase) authorized(ctx context.Context, issuerRUC, id string) (*entity.Document, error) {
	doc, err := uc.docs.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("obtener comprobante: %w", err)
	}
	if doc == nil {
		return nil, domain.ErrNotFound
	}
	if issuerRUC != "" && doc.Supplier.ID != issuerRUC {
		return nil, domain.ErrForbidden
	}
	return doc, nil
}
