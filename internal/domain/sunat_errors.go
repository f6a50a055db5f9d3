package domain

import (
	"errors"
	"fmt"
)

// Tipos de error de la cadena de emisión. Cada tipo concreto envuelve su centinela,
// de modo que errors.Is(err, ErrPackaging) y errors.As(err, &*PackagingError) funcionan.
var (
	ErrInvalidAffectation      = errors.New("código de afectación IGV inválido")
	ErrUnsupportedDocumentType = errors.New("tipo de comprobante no soportado")
	ErrCertificate             = errors.New("certificado digital inválido")
	ErrSignature               = errors.New("firma digital fallida")
	ErrPackaging               = errors.New("empaquetado ZIP inválido")
	ErrTransport               = errors.New("falla de transporte hacia SUNAT")
	ErrRejected                = errors.New("rechazado por SUNAT")
)

// InvalidAffectationError código fuera del catálogo 07.
type InvalidAffectationError struct {
	Code string
}

func (e *InvalidAffectationError) Error() string {
	return fmt.Sprintf("%s: %q", ErrInvalidAffectation.Error(), e.Code)
}

func (e *InvalidAffectationError) Unwrap() error { return ErrInvalidAffectation }

// UnsupportedDocumentTypeError tipo de comprobante sin variante registrada.
type UnsupportedDocumentTypeError struct {
	TypeCode string
}

func (e *UnsupportedDocumentTypeError) Error() string {
	return fmt.Sprintf("%s: %q", ErrUnsupportedDocumentType.Error(), e.TypeCode)
}

func (e *UnsupportedDocumentTypeError) Unwrap() error { return ErrUnsupportedDocumentType }

// Verificaciones de certificado que pueden fallar.
const (
	CertCheckRead      = "read"
	CertCheckPassword  = "password"
	CertCheckContainer = "container"
	CertCheckKey       = "private_key"
	CertCheckValidity  = "validity"
	CertCheckKeySize   = "key_size"
	CertCheckAlgorithm = "algorithm"
)

// CertificateError describe qué verificación del certificado falló.
type CertificateError struct {
	Check string
	Msg   string
	Err   error
}

func (e *CertificateError) Error() string {
	s := fmt.Sprintf("certificado (%s): %s", e.Check, e.Msg)
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *CertificateError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrCertificate}
	}
	return []error{ErrCertificate, e.Err}
}

// SignatureError falla al producir o verificar la firma.
type SignatureError struct {
	Op  string
	Err error
}

func (e *SignatureError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("firma (%s)", e.Op)
	}
	return fmt.Sprintf("firma (%s): %v", e.Op, e.Err)
}

func (e *SignatureError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrSignature}
	}
	return []error{ErrSignature, e.Err}
}

// PackagingError el paquete no debe enviarse.
type PackagingError struct {
	Reason string
}

func (e *PackagingError) Error() string {
	return fmt.Sprintf("%s: %s", ErrPackaging.Error(), e.Reason)
}

func (e *PackagingError) Unwrap() error { return ErrPackaging }

// TransportError timeout, conexión o respuesta HTTP ilegible. El documento queda en Submitted.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("soap %s: HTTP %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("soap %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrTransport}
	}
	return []error{ErrTransport, e.Err}
}

// RejectedError rechazo confirmado por SUNAT con su código y descripción originales.
type RejectedError struct {
	Code        string
	Description string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s: [%s] %s", ErrRejected.Error(), e.Code, e.Description)
}

func (e *RejectedError) Unwrap() error { return ErrRejected }
