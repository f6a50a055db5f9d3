package entity

import (
	"fmt"
	"time"

	"github.com/jhoicas/facturacion-sunat/internal/domain"
)

// DocumentStatus estado del ciclo de vida del comprobante.
type DocumentStatus string

const (
	StatusDraft                    DocumentStatus = "DRAFT"
	StatusPendingSignature         DocumentStatus = "PENDING_SIGNATURE"
	StatusSigned                   DocumentStatus = "SIGNED"
	StatusSimulatedSigned          DocumentStatus = "SIMULATED_SIGNED"
	StatusSubmitted                DocumentStatus = "SUBMITTED"
	StatusAccepted                 DocumentStatus = "ACCEPTED"
	StatusRejected                 DocumentStatus = "REJECTED"
	StatusAcceptedWithObservations DocumentStatus = "ACCEPTED_WITH_OBSERVATIONS"
	StatusError                    DocumentStatus = "ERROR"
)

// transitions tabla de transiciones permitidas (en un solo sentido).
// Error se agrega aparte: es alcanzable desde cualquier estado no terminal.
var transitions = map[DocumentStatus][]DocumentStatus{
	StatusDraft:            {StatusPendingSignature},
	StatusPendingSignature: {StatusSigned, StatusSimulatedSigned},
	StatusSigned:           {StatusSubmitted},
	StatusSimulatedSigned:  {StatusSubmitted},
	StatusSubmitted:        {StatusAccepted, StatusRejected, StatusAcceptedWithObservations},
}

// IsTerminal indica si el estado ya no admite transiciones.
func (s DocumentStatus) IsTerminal() bool {
	switch s {
	case StatusAccepted, StatusRejected, StatusAcceptedWithObservations, StatusError:
		return true
	}
	return false
}

// IsValid indica si el estado es conocido.
func (s DocumentStatus) IsValid() bool {
	if s == StatusError {
		return true
	}
	if _, ok := transitions[s]; ok {
		return true
	}
	return s.IsTerminal()
}

// CanTransition indica si from → to está permitido.
func CanTransition(from, to DocumentStatus) bool {
	if from.IsTerminal() {
		return false
	}
	if to == StatusError {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition avanza el estado del documento o devuelve domain.ErrInvalidState.
func (d *Document) Transition(to DocumentStatus, now time.Time) error {
	if !CanTransition(d.Status, to) {
		return fmt.Errorf("%w: %s → %s", domain.ErrInvalidState, d.Status, to)
	}
	d.Status = to
	d.UpdatedAt = now
	return nil
}

// StatusForOutcome estado final que corresponde a la clasificación del CDR.
// ok=false para Unknown: el documento permanece en Submitted.
func StatusForOutcome(o Outcome) (DocumentStatus, bool) {
	switch o {
	case OutcomeAccepted:
		return StatusAccepted, true
	case OutcomeRejected:
		return StatusRejected, true
	case OutcomeAcceptedWithObservations:
		return StatusAcceptedWithObservations, true
	}
	return "", false
}
