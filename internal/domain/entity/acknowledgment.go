package entity

import (
	"strings"
	"time"
)

// Outcome clasificación del CDR.
type Outcome string

const (
	OutcomeUnknown                  Outcome = "UNKNOWN"
	OutcomeAccepted                 Outcome = "ACCEPTED"
	OutcomeRejected                 Outcome = "REJECTED"
	OutcomeAcceptedWithObservations Outcome = "ACCEPTED_WITH_OBSERVATIONS"
)

// AcknowledgmentNote observación estructurada "CODIGO - descripción".
type AcknowledgmentNote struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// AcknowledgmentRecord constancia de recepción (CDR) normalizada.
// Un documento acumula uno por intento de envío o consulta.
type AcknowledgmentRecord struct {
	ID           string
	DocumentID   string
	ResponseID   string // cbc:ID del ApplicationResponse
	ReferenceID  string // comprobante referido (F001-1)
	SenderID     string
	ReceiverID   string
	IssuedAt     time.Time
	RespondedAt  time.Time
	ResponseCode string
	Description  string
	Notes        []AcknowledgmentNote
	Outcome      Outcome
	RawZip       []byte
	CreatedAt    time.Time
}

// Accepted true para aceptado, con o sin observaciones.
func (r *AcknowledgmentRecord) Accepted() bool {
	return r.Outcome == OutcomeAccepted || r.Outcome == OutcomeAcceptedWithObservations
}

// Rejected true si SUNAT rechazó el comprobante.
func (r *AcknowledgmentRecord) Rejected() bool {
	return r.Outcome == OutcomeRejected
}

// AcceptedWithObservations true si fue aceptado con observaciones (códigos 4xxx).
func (r *AcknowledgmentRecord) AcceptedWithObservations() bool {
	return r.Outcome == OutcomeAcceptedWithObservations
}

// ClassifyResponseCode clasifica el código de respuesta del CDR:
// "0" aceptado, prefijo 2 o 3 rechazado, prefijo 4 aceptado con observaciones, el resto desconocido.
// Un código 0 acompañado de notas 4xxx también se considera aceptado con observaciones.
func ClassifyResponseCode(code string, notes []AcknowledgmentNote) Outcome {
	code = strings.TrimSpace(code)
	if isZeroCode(code) {
		for _, n := range notes {
			if strings.HasPrefix(n.Code, "4") {
				return OutcomeAcceptedWithObservations
			}
		}
		return OutcomeAccepted
	}
	switch {
	case code == "":
		return OutcomeUnknown
	case code[0] == '2', code[0] == '3':
		return OutcomeRejected
	case code[0] == '4':
		return OutcomeAcceptedWithObservations
	}
	return OutcomeUnknown
}

// isZeroCode "0" (también "0000"): la constancia de aceptación.
func isZeroCode(code string) bool {
	if code == "" {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] != '0' {
			return false
		}
	}
	return true
}
