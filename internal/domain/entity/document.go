package entity

import (
	"fmt"
	"time"

	"github.com/jhoicas/facturacion-sunat/internal/domain/tax"
	"github.com/jhoicas/facturacion-sunat/pkg/sunat"
	"github.com/shopspring/decimal"
)

// Party identidad del emisor o del adquiriente, ya resuelta por el llamador.
type Party struct {
	IdentityType string `json:"identity_type"` // catálogo 06
	ID           string `json:"id"`
	Name         string `json:"name"` // razón social / nombre
	TradeName    string `json:"trade_name,omitempty"`
	Address      string `json:"address,omitempty"`
	Ubigeo       string `json:"ubigeo,omitempty"`
	District     string `json:"district,omitempty"`
	Province     string `json:"province,omitempty"`
	Department   string `json:"department,omitempty"`
	CountryCode  string `json:"country_code,omitempty"`
	// EstablishmentCode código de establecimiento anexo (AddressTypeCode), "0000" = domicilio fiscal.
	EstablishmentCode string `json:"establishment_code,omitempty"`
}

// Installment cuota de pago al crédito.
type Installment struct {
	Amount  decimal.Decimal `json:"amount"`
	DueDate time.Time       `json:"due_date"`
}

// Formas de pago (factura).
const (
	PaymentCash   = "Contado"
	PaymentCredit = "Credito"
)

// DocumentReference comprobante afectado por una nota de crédito o débito.
type DocumentReference struct {
	TypeCode string `json:"type_code"`
	Series   string `json:"series"`
	Number   int64  `json:"number"`
}

// ID serie-número sin relleno, tal como se referencia en las notas.
func (r DocumentReference) ID() string {
	return fmt.Sprintf("%s-%d", r.Series, r.Number)
}

// DocumentHeader cabecera del comprobante.
type DocumentHeader struct {
	TypeCode      string     `json:"type_code"` // catálogo 01
	Series        string     `json:"series"`    // F001, B001, FC01...
	Number        int64      `json:"number"`
	IssueDate     time.Time  `json:"issue_date"`
	DueDate       *time.Time `json:"due_date,omitempty"`
	Currency      string     `json:"currency"`
	OperationType string     `json:"operation_type,omitempty"` // catálogo 51

	PaymentMethod string        `json:"payment_method,omitempty"` // Contado | Credito
	Installments  []Installment `json:"installments,omitempty"`

	// Notas de crédito / débito
	Reference         *DocumentReference `json:"reference,omitempty"`
	NoteReasonCode    string             `json:"note_reason_code,omitempty"` // catálogo 09 / 10
	NoteReasonDetails string             `json:"note_reason_details,omitempty"`

	Observations string `json:"observations,omitempty"`
}

// DocumentID serie-número con el número rellenado a 8 dígitos: F001-00000001.
func (h DocumentHeader) DocumentID() string {
	return fmt.Sprintf("%s-%08d", h.Series, h.Number)
}

// IsNote indica si el comprobante es nota de crédito o débito.
func (h DocumentHeader) IsNote() bool {
	return h.TypeCode == sunat.DocTypeCreditNote || h.TypeCode == sunat.DocTypeDebitNote
}

// BoletaFamily boleta o nota que la modifica. Es lo único que viaja por el canal de
// resumen con ticket (sendSummary); factura y sus notas se envían siempre con sendBill.
func (h DocumentHeader) BoletaFamily() bool {
	if h.TypeCode == sunat.DocTypeBoleta {
		return true
	}
	return h.IsNote() && h.Reference != nil && h.Reference.TypeCode == sunat.DocTypeBoleta
}

// Document comprobante electrónico con su ciclo de vida.
// La clave natural es (RUC emisor, tipo, serie, número).
type Document struct {
	ID       string
	Header   DocumentHeader
	Supplier Party
	Customer Party
	Lines    []tax.LineItem
	Totals   tax.DocumentTotals

	Status DocumentStatus

	UnsignedXML     []byte
	SignedXML       []byte
	SignatureMode   sunat.SignatureMode
	SignatureReason string
	ContentHash     string // DigestValue (firmado) o SHA-256 base64 del XML (simulado)

	Ticket                  string // envío asíncrono
	LastResponseCode        string
	LastResponseDescription string
	LastOutcome             Outcome

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NaturalKey RUC-tipo-serie-número (único por emisor).
func (d *Document) NaturalKey() string {
	return fmt.Sprintf("%s-%s-%s", d.Supplier.ID, d.Header.TypeCode, d.Header.DocumentID())
}

// FileBaseName nombre base exigido por SUNAT para XML y ZIP: {RUC}-{TIPO}-{SERIE}-{NUMERO}.
func (d *Document) FileBaseName() string {
	return d.NaturalKey()
}
