package sunat

import (
	"fmt"
	"sync"

	"github.com/beevik/etree"
	"github.com/jhoicas/facturacion-sunat/internal/domain"
	"github.com/jhoicas/facturacion-sunat/internal/domain/entity"
	"github.com/jhoicas/facturacion-sunat/internal/domain/tax"
	pkgsunat "github.com/jhoicas/facturacion-sunat/pkg/sunat"
	"github.com/shopspring/decimal"
)

// DocumentVariant aporta lo propio de cada tipo de comprobante; el ensamblado es común.
type DocumentVariant interface {
	TypeCode() string
	RootName() string
	Namespace() string
	LineElement() string
	QuantityElement() string
	MonetaryTotalElement() string
	// HasProfile indica si el documento declara cbc:ProfileID (tipo de operación).
	HasProfile() bool
	// WriteHeader escribe los campos del tipo que van después de cbc:IssueTime.
	WriteHeader(root *etree.Element, h entity.DocumentHeader) error
	// WriteReferences escribe motivo y comprobante afectado (notas).
	WriteReferences(root *etree.Element, h entity.DocumentHeader) error
	// WritePaymentTerms escribe la forma de pago.
	WritePaymentTerms(root *etree.Element, h entity.DocumentHeader, totals tax.DocumentTotals) error
}

// ── Registro ─────────────────────────────────────────────────────────────────

// Registry tabla de variantes por código de tipo (catálogo 01).
type Registry struct {
	mu       sync.RWMutex
	variants map[string]DocumentVariant
}

// NewRegistry construye el registro con las variantes indicadas.
func NewRegistry(variants ...DocumentVariant) *Registry {
	r := &Registry{variants: make(map[string]DocumentVariant, len(variants))}
	for _, v := range variants {
		r.Register(v)
	}
	return r
}

// DefaultRegistry factura, boleta, nota de crédito y nota de débito.
func DefaultRegistry() *Registry {
	return NewRegistry(InvoiceVariant{}, BoletaVariant{}, CreditNoteVariant{}, DebitNoteVariant{})
}

// Register agrega o reemplaza la variante de su código.
func (r *Registry) Register(v DocumentVariant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.variants[v.TypeCode()] = v
}

// Lookup devuelve la variante o *domain.UnsupportedDocumentTypeError.
func (r *Registry) Lookup(typeCode string) (DocumentVariant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.variants[typeCode]
	if !ok {
		return nil, &domain.UnsupportedDocumentTypeError{TypeCode: typeCode}
	}
	return v, nil
}

// Supports indica si hay variante registrada para el código.
func (r *Registry) Supports(typeCode string) bool {
	_, err := r.Lookup(typeCode)
	return err == nil
}

// ── Factura (01) ─────────────────────────────────────────────────────────────

// InvoiceVariant factura electrónica: forma de pago contado o crédito con cuotas.
type InvoiceVariant struct{}

func (InvoiceVariant) TypeCode() string             { return pkgsunat.DocTypeInvoice }
func (InvoiceVariant) RootName() string             { return "Invoice" }
func (InvoiceVariant) Namespace() string            { return NamespaceInvoice }
func (InvoiceVariant) LineElement() string          { return "InvoiceLine" }
func (InvoiceVariant) QuantityElement() string      { return "InvoicedQuantity" }
func (InvoiceVariant) MonetaryTotalElement() string { return "LegalMonetaryTotal" }
func (InvoiceVariant) HasProfile() bool             { return true }

func (v InvoiceVariant) WriteHeader(root *etree.Element, h entity.DocumentHeader) error {
	if h.DueDate != nil {
		cbc(root, "DueDate", h.DueDate.Format("2006-01-02"))
	}
	writeInvoiceTypeCode(root, v.TypeCode(), h)
	return nil
}

func (InvoiceVariant) WriteReferences(*etree.Element, entity.DocumentHeader) error { return nil }

func (InvoiceVariant) WritePaymentTerms(root *etree.Element, h entity.DocumentHeader, totals tax.DocumentTotals) error {
	if h.PaymentMethod != entity.PaymentCredit {
		pt := root.CreateElement("cac:PaymentTerms")
		cbc(pt, "ID", "FormaPago")
		cbc(pt, "PaymentMeansID", entity.PaymentCash)
		return nil
	}
	if len(h.Installments) == 0 {
		return fmt.Errorf("xml: pago al crédito sin cuotas")
	}
	pending := decimal.Zero
	for _, in := range h.Installments {
		pending = pending.Add(in.Amount)
	}
	if pending.GreaterThan(totals.PayableAmount) {
		return fmt.Errorf("xml: la suma de cuotas (%s) supera el importe a pagar (%s)", pending.StringFixed(2), totals.PayableAmount.StringFixed(2))
	}
	pt := root.CreateElement("cac:PaymentTerms")
	cbc(pt, "ID", "FormaPago")
	cbc(pt, "PaymentMeansID", entity.PaymentCredit)
	amount(pt, "Amount", pending, h.Currency)
	for i, in := range h.Installments {
		q := root.CreateElement("cac:PaymentTerms")
		cbc(q, "ID", "FormaPago")
		cbc(q, "PaymentMeansID", fmt.Sprintf("Cuota%03d", i+1))
		amount(q, "Amount", in.Amount, h.Currency)
		cbc(q, "PaymentDueDate", in.DueDate.Format("2006-01-02"))
	}
	return nil
}

// ── Boleta (03) ──────────────────────────────────────────────────────────────

// BoletaVariant boleta de venta: misma raíz Invoice, siempre al contado.
type BoletaVariant struct{ InvoiceVariant }

func (BoletaVariant) TypeCode() string { return pkgsunat.DocTypeBoleta }

func (v BoletaVariant) WriteHeader(root *etree.Element, h entity.DocumentHeader) error {
	writeInvoiceTypeCode(root, v.TypeCode(), h)
	return nil
}

func (BoletaVariant) WritePaymentTerms(*etree.Element, entity.DocumentHeader, tax.DocumentTotals) error {
	return nil
}

// ── Nota de crédito (07) ─────────────────────────────────────────────────────

// CreditNoteVariant nota de crédito: motivo del catálogo 09 y comprobante afectado.
type CreditNoteVariant struct{}

func (CreditNoteVariant) TypeCode() string             { return pkgsunat.DocTypeCreditNote }
func (CreditNoteVariant) RootName() string             { return "CreditNote" }
func (CreditNoteVariant) Namespace() string            { return NamespaceCreditNote }
func (CreditNoteVariant) LineElement() string          { return "CreditNoteLine" }
func (CreditNoteVariant) QuantityElement() string      { return "CreditedQuantity" }
func (CreditNoteVariant) MonetaryTotalElement() string { return "LegalMonetaryTotal" }
func (CreditNoteVariant) HasProfile() bool             { return false }

func (CreditNoteVariant) WriteHeader(*etree.Element, entity.DocumentHeader) error { return nil }

func (CreditNoteVariant) WriteReferences(root *etree.Element, h entity.DocumentHeader) error {
	return writeNoteReferences(root, h, pkgsunat.CreditNoteReasons)
}

func (CreditNoteVariant) WritePaymentTerms(*etree.Element, entity.DocumentHeader, tax.DocumentTotals) error {
	return nil
}

// ── Nota de débito (08) ──────────────────────────────────────────────────────

// DebitNoteVariant nota de débito: motivo del catálogo 10, totales en RequestedMonetaryTotal.
type DebitNoteVariant struct{}

func (DebitNoteVariant) TypeCode() string             { return pkgsunat.DocTypeDebitNote }
func (DebitNoteVariant) RootName() string             { return "DebitNote" }
func (DebitNoteVariant) Namespace() string            { return NamespaceDebitNote }
func (DebitNoteVariant) LineElement() string          { return "DebitNoteLine" }
func (DebitNoteVariant) QuantityElement() string      { return "DebitedQuantity" }
func (DebitNoteVariant) MonetaryTotalElement() string { return "RequestedMonetaryTotal" }
func (DebitNoteVariant) HasProfile() bool             { return false }

func (DebitNoteVariant) WriteHeader(*etree.Element, entity.DocumentHeader) error { return nil }

func (DebitNoteVariant) WriteReferences(root *etree.Element, h entity.DocumentHeader) error {
	return writeNoteReferences(root, h, pkgsunat.DebitNoteReasons)
}

func (DebitNoteVariant) WritePaymentTerms(*etree.Element, entity.DocumentHeader, tax.DocumentTotals) error {
	return nil
}

// ── helpers de variantes ─────────────────────────────────────────────────────

func writeInvoiceTypeCode(root *etree.Element, typeCode string, h entity.DocumentHeader) {
	el := cbc(root, "InvoiceTypeCode", typeCode)
	el.CreateAttr("listID", operationType(h))
	el.CreateAttr("listAgencyName", agencySUNAT)
	el.CreateAttr("listName", "Tipo de Documento")
	el.CreateAttr("listURI", catalogURIPrefix+"01")
}

func writeNoteReferences(root *etree.Element, h entity.DocumentHeader, reasons map[string]string) error {
	if h.Reference == nil {
		return fmt.Errorf("xml: la nota %s requiere comprobante afectado", h.DocumentID())
	}
	reason, ok := reasons[h.NoteReasonCode]
	if !ok {
		return fmt.Errorf("xml: motivo de nota %q desconocido", h.NoteReasonCode)
	}
	description := h.NoteReasonDetails
	if description == "" {
		description = reason
	}

	dr := root.CreateElement("cac:DiscrepancyResponse")
	cbc(dr, "ReferenceID", h.Reference.ID())
	cbc(dr, "ResponseCode", h.NoteReasonCode)
	cbc(dr, "Description", description)

	br := root.CreateElement("cac:BillingReference").CreateElement("cac:InvoiceDocumentReference")
	cbc(br, "ID", h.Reference.ID())
	cbc(br, "DocumentTypeCode", h.Reference.TypeCode)
	return nil
}

func operationType(h entity.DocumentHeader) string {
	if h.OperationType != "" {
		return h.OperationType
	}
	return pkgsunat.OperationDomesticSale
}
