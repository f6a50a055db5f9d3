package entity

import "time"

// Etapas de la cadena de emisión.
const (
	StageCalculation    = "calculation"
	StageBuild          = "build"
	StageSigning        = "signing"
	StagePackaging      = "packaging"
	StageSubmission     = "submission"
	StageReconciliation = "reconciliation"
	StageStatusQuery    = "status_query"
)

// Resultados de etapa.
const (
	StageOutcomeSuccess   = "success"
	StageOutcomeFailure   = "failure"
	StageOutcomeFallback  = "fallback"
	StageOutcomeAmbiguous = "ambiguous"
	StageOutcomeSkipped   = "skipped"
)

// OperationLogEntry registro de auditoría de una etapa (solo inserción).
type OperationLogEntry struct {
	ID            string
	DocumentID    string
	CorrelationID string
	Stage         string
	Outcome       string
	Duration      time.Duration
	Message       string
	CreatedAt     time.Time
}
