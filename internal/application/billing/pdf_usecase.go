package billing

import (
	"context"
	"fmt"

	"github.com/jhoicas/facturacion-sunat/internal/domain"
	"github.com/jhoicas/facturacion-sunat/internal/domain/entity"
	"github.com/jhoicas/facturacion-sunat/internal/domain/repository"
)

// PDFUseCase genera la representación impresa de un comprobante.
// Solo se permite cuando el comprobante ya tiene XML firmado (o simulado) y hash.
type PDFUseCase struct {
	docs      repository.DocumentRepository
	generator DocumentPDFGenerator
}

// NewPDFUseCase construye el caso de uso inyectando sus dependencias.
func NewPDFUseCase(docs repository.DocumentRepository, generator DocumentPDFGenerator) *PDFUseCase {
	return &PDFUseCase{docs: docs, generator: generator}
}

// DownloadPDF genera el PDF con el QR y el hash del comprobante.
//
// Retorna:
//   - (pdfBytes, filename, nil)  si todo sale bien.
//   - domain.ErrNotFound         si el comprobante no existe.
//   - domain.ErrForbidden        si no pertenece al emisor del token.
//   - domain.ErrInvalidInput     si aún no tiene firma (DRAFT o PENDING_SIGNATURE).
func (uc *PDFUseCase) DownloadPDF(ctx context.Context, issuerRUC, id string) ([]byte, string, error) {
	// ── 1. Cargar comprobante ─────────────────────────────────────────────────
	doc, err := uc.docs.GetByID(ctx, id)
	if err != nil {
		return nil, "", fmt.Errorf("pdf: obtener comprobante: %w", err)
	}
	if doc == nil {
		return nil, "", domain.ErrNotFound
	}
	if issuerRUC != "" && doc.Supplier.ID != issuerRUC {
		return nil, "", domain.ErrForbidden
	}

	// ── 2. Validar que ya fue firmado ─────────────────────────────────────────
	switch {
	case doc.Status == entity.StatusDraft, doc.Status == entity.StatusPendingSignature,
		len(doc.SignedXML) == 0, doc.ContentHash == "":
		return nil, "", fmt.Errorf("%w: el comprobante está en estado %s, espere a que sea firmado antes de descargar el PDF",
			domain.ErrInvalidInput, doc.Status)
	}

	// ── 3. Generar ────────────────────────────────────────────────────────────
	pdfBytes, err := uc.generator.Generate(doc)
	if err != nil {
		return nil, "", fmt.Errorf("pdf: generar: %w", err)
	}
	return pdfBytes, doc.FileBaseName() + ".pdf", nil
}
