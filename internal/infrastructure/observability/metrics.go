// Package observability métricas Prometheus de la cadena de emisión.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "sunat"

// ─── Pipeline ───────────────────────────────────────────────────────────────

// StageDuration duración de cada etapa (calculation, build, signing...) por resultado.
var StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: namespace,
	Subsystem: "pipeline",
	Name:      "stage_duration_ms",
	Help:      "Duración de las etapas de emisión en milisegundos",
	Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000, 30000, 120000},
}, []string{"stage", "outcome"})

// DocumentsProcessed comprobantes que terminaron una ejecución del pipeline, por estado final.
var DocumentsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "pipeline",
	Name:      "documents_total",
	Help:      "Comprobantes procesados por tipo y estado final",
}, []string{"type", "status"})

// ─── Firma ──────────────────────────────────────────────────────────────────

// SignatureModes resultados de firma: SIGNED o SIMULATED.
var SignatureModes = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "signer",
	Name:      "signatures_total",
	Help:      "Intentos de firma por modo resultante",
}, []string{"mode"})

// CertCacheLookups aciertos y fallos de la caché de certificados.
var CertCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "signer",
	Name:      "cert_cache_lookups_total",
	Help:      "Búsquedas en la caché de certificados",
}, []string{"result"})

// ─── SOAP / CDR ─────────────────────────────────────────────────────────────

// SubmissionErrors errores de envío por tipo (transport, rejected, packaging).
var SubmissionErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "soap",
	Name:      "errors_total",
	Help:      "Errores del envío a SUNAT por tipo",
}, []string{"kind"})

// CDROutcomes clasificación de constancias recibidas.
var CDROutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "soap",
	Name:      "cdr_outcomes_total",
	Help:      "Constancias de recepción por resultado",
}, []string{"outcome"})

// ObserveStage registra la duración de una etapa.
func ObserveStage(stage, outcome string, d time.Duration) {
	StageDuration.WithLabelValues(stage, outcome).Observe(float64(d.Milliseconds()))
}
