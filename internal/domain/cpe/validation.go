// Package cpe contiene las validaciones de dominio de comprobantes de pago electrónicos (SUNAT)
// y los datos derivados para su representación impresa. Usa los catálogos de pkg/sunat.
package cpe

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/jhoicas/facturacion-sunat/internal/domain"
	"github.com/jhoicas/facturacion-sunat/internal/domain/entity"
	"github.com/jhoicas/facturacion-sunat/pkg/sunat"
)

// ErrInvalidDocument agrupa errores de validación del comprobante.
var ErrInvalidDocument = errors.New("comprobante inválido para SUNAT")

var (
	seriesPattern   = regexp.MustCompile(`^[FB][A-Z0-9]{3}$`)
	currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)
)

// MaxDocumentNumber correlativo máximo (8 dígitos).
const MaxDocumentNumber = 99_999_999

// ValidateDocument valida cabecera, partes y líneas antes de crear el comprobante.
// Los errores individuales se devuelven unidos con errors.Join junto a ErrInvalidDocument.
func ValidateDocument(doc *entity.Document) error {
	if doc == nil {
		return fmt.Errorf("%w: comprobante nulo", ErrInvalidDocument)
	}
	h := doc.Header
	var errs []error

	if _, ok := sunat.DocumentTypeNames[h.TypeCode]; !ok {
		return errors.Join(ErrInvalidDocument, &domain.UnsupportedDocumentTypeError{TypeCode: h.TypeCode})
	}

	if !seriesPattern.MatchString(h.Series) {
		errs = append(errs, fmt.Errorf("serie %q inválida: se espera F/B seguido de 3 caracteres alfanuméricos", h.Series))
	} else if err := validateSeriesPrefix(h); err != nil {
		errs = append(errs, err)
	}
	if h.Number <= 0 || h.Number > MaxDocumentNumber {
		errs = append(errs, fmt.Errorf("correlativo %d fuera de rango (1..%d)", h.Number, MaxDocumentNumber))
	}
	if h.IssueDate.IsZero() {
		errs = append(errs, errors.New("fecha de emisión requerida"))
	}
	if h.DueDate != nil && h.DueDate.Before(h.IssueDate) {
		errs = append(errs, errors.New("la fecha de vencimiento no puede ser anterior a la emisión"))
	}
	if !currencyPattern.MatchString(h.Currency) {
		errs = append(errs, fmt.Errorf("moneda %q inválida (ISO 4217)", h.Currency))
	}

	// Emisor: siempre RUC válido.
	if doc.Supplier.IdentityType != sunat.IdentityRUC {
		errs = append(errs, fmt.Errorf("emisor: tipo de documento %q, se requiere RUC (6)", doc.Supplier.IdentityType))
	}
	if ok, reason := sunat.ValidateRUC(doc.Supplier.ID); !ok {
		errs = append(errs, fmt.Errorf("emisor: %s", reason))
	}
	if doc.Supplier.Name == "" {
		errs = append(errs, errors.New("emisor: razón social requerida"))
	}

	errs = append(errs, validateCustomer(doc)...)

	if h.IsNote() {
		errs = append(errs, validateNote(h)...)
	}
	if h.PaymentMethod == entity.PaymentCredit && len(h.Installments) == 0 {
		errs = append(errs, errors.New("pago al crédito requiere al menos una cuota"))
	}

	if len(doc.Lines) == 0 {
		errs = append(errs, errors.New("el comprobante debe tener al menos una línea"))
	}
	for i, l := range doc.Lines {
		if !sunat.IsValidAffectation(l.AffectationCode) {
			errs = append(errs, fmt.Errorf("línea %d: %w", i+1, &domain.InvalidAffectationError{Code: l.AffectationCode}))
		}
		if l.Description == "" {
			errs = append(errs, fmt.Errorf("línea %d: descripción requerida", i+1))
		}
		if l.Quantity.IsNegative() {
			errs = append(errs, fmt.Errorf("línea %d: cantidad negativa", i+1))
		}
		if !l.Quantity.Equal(l.Quantity.Truncate(3)) {
			errs = append(errs, fmt.Errorf("línea %d: la cantidad admite hasta 3 decimales", i+1))
		}
		if !l.UnitPrice.Equal(l.UnitPrice.Truncate(10)) {
			errs = append(errs, fmt.Errorf("línea %d: el valor unitario admite hasta 10 decimales", i+1))
		}
	}

	if len(errs) > 0 {
		return errors.Join(append([]error{ErrInvalidDocument}, errs...)...)
	}
	return nil
}

// validateSeriesPrefix factura y sus notas usan serie F; boleta y sus notas usan serie B.
func validateSeriesPrefix(h entity.DocumentHeader) error {
	want := byte('F')
	switch h.TypeCode {
	case sunat.DocTypeBoleta:
		want = 'B'
	case sunat.DocTypeCreditNote, sunat.DocTypeDebitNote:
		if h.Reference != nil && h.Reference.TypeCode == sunat.DocTypeBoleta {
			want = 'B'
		}
	}
	if h.Series[0] != want {
		return fmt.Errorf("serie %q: el tipo %s requiere serie que empiece con %c", h.Series, h.TypeCode, want)
	}
	return nil
}

func validateCustomer(doc *entity.Document) []error {
	var errs []error
	c := doc.Customer
	if !sunat.ValidIdentityTypes[c.IdentityType] {
		errs = append(errs, fmt.Errorf("adquiriente: tipo de documento %q no pertenece al catálogo 06", c.IdentityType))
	}
	if c.Name == "" {
		errs = append(errs, errors.New("adquiriente: nombre requerido"))
	}
	if c.IdentityType == sunat.IdentityRUC {
		if ok, reason := sunat.ValidateRUC(c.ID); !ok {
			errs = append(errs, fmt.Errorf("adquiriente: %s", reason))
		}
	}
	// Factura: adquiriente con RUC salvo exportación.
	if doc.Header.TypeCode == sunat.DocTypeInvoice &&
		c.IdentityType != sunat.IdentityRUC &&
		doc.Header.OperationType != sunat.OperationExport {
		errs = append(errs, errors.New("adquiriente: la factura requiere RUC (salvo exportación)"))
	}
	return errs
}

func validateNote(h entity.DocumentHeader) []error {
	var errs []error
	if h.Reference == nil {
		return append(errs, errors.New("la nota requiere el comprobante afectado"))
	}
	if h.Reference.TypeCode != sunat.DocTypeInvoice && h.Reference.TypeCode != sunat.DocTypeBoleta {
		errs = append(errs, fmt.Errorf("comprobante afectado de tipo %q no admitido", h.Reference.TypeCode))
	}
	if h.Reference.Series == "" || h.Reference.Number <= 0 {
		errs = append(errs, errors.New("serie y número del comprobante afectado requeridos"))
	}
	reasons := sunat.CreditNoteReasons
	if h.TypeCode == sunat.DocTypeDebitNote {
		reasons = sunat.DebitNoteReasons
	}
	if _, ok := reasons[h.NoteReasonCode]; !ok {
		errs = append(errs, fmt.Errorf("motivo de nota %q no pertenece al catálogo", h.NoteReasonCode))
	}
	return errs
}
