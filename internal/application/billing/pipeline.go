package billing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/facturacion-sunat/internal/domain"
	"github.com/jhoicas/facturacion-sunat/internal/domain/cpe"
	"github.com/jhoicas/facturacion-sunat/internal/domain/entity"
	"github.com/jhoicas/facturacion-sunat/internal/domain/repository"
	"github.com/jhoicas/facturacion-sunat/internal/domain/tax"
	"github.com/jhoicas/facturacion-sunat/internal/infrastructure/observability"
	infrasunat "github.com/jhoicas/facturacion-sunat/internal/infrastructure/sunat"
	"github.com/jhoicas/facturacion-sunat/pkg/config"
	"github.com/jhoicas/facturacion-sunat/pkg/logger"
	pkgsunat "github.com/jhoicas/facturacion-sunat/pkg/sunat"
	"github.com/rs/zerolog"
)

// Config parámetros de la cadena de emisión.
type Config struct {
	Env          string // dev | beta | prod
	User         string // usuario SOL sin RUC
	Password     string
	CertPath     string
	CertPassword string
	Async        bool          // boletas y sus notas por sendSummary + ticket; facturas siempre por sendBill
	Timeout      time.Duration // plazo de red; ProcessAsync agrega un margen
}

// ConfigFromSUNAT toma los valores de la configuración de la aplicación.
func ConfigFromSUNAT(c config.SUNATConfig) Config {
	return Config{
		Env:          c.Env,
		User:         c.User,
		Password:     c.Password,
		CertPath:     c.CertPath,
		CertPassword: c.CertPassword,
		Async:        c.AsyncSubmission,
		Timeout:      c.Timeout(),
	}
}

// Pipeline orquesta el ciclo completo de un comprobante:
//
//	cálculo → XML UBL 2.1 → firma (o simulación) → ZIP → envío SOAP → CDR → estado
//
// Cada etapa escribe una entrada en la bitácora, con éxito o sin él.
//
// Modos de operación (Config.Env):
//   - "dev"  → Genera, firma y empaqueta; NO envía. El comprobante queda en SIGNED o SIMULATED_SIGNED.
//   - "beta" → Envía al ambiente de homologación.
//   - "prod" → Envía a producción. Un comprobante con firma simulada nunca se envía.
type Pipeline struct {
	docs      repository.DocumentRepository
	acks      repository.AcknowledgmentRepository
	logs      repository.OperationLogRepository
	engine    *tax.Engine
	builder   DocumentBuilder
	signer    pkgsunat.Signer
	submitter Submitter // nil en dev
	cfg       Config
	log       zerolog.Logger
	now       func() time.Time
	inflight  sync.WaitGroup // ejecuciones lanzadas por ProcessAsync
}

// NewPipeline construye el orquestador con todas sus dependencias.
// submitter puede ser nil: en ese caso ninguna etapa de red se ejecuta.
func NewPipeline(
	docs repository.DocumentRepository,
	acks repository.AcknowledgmentRepository,
	logs repository.OperationLogRepository,
	engine *tax.Engine,
	builder DocumentBuilder,
	signer pkgsunat.Signer,
	submitter Submitter,
	cfg Config,
	log zerolog.Logger,
) *Pipeline {
	if engine == nil {
		engine = tax.NewEngine(tax.DefaultICBPERAmount)
	}
	return &Pipeline{
		docs:      docs,
		acks:      acks,
		logs:      logs,
		engine:    engine,
		builder:   builder,
		signer:    signer,
		submitter: submitter,
		cfg:       cfg,
		log:       log.With().Str("component", "pipeline").Logger(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Result estado del comprobante tras una ejecución.
type Result struct {
	Document       *entity.Document
	Acknowledgment *entity.AcknowledgmentRecord // nil si no hubo CDR
	CorrelationID  string
	Submitted      bool // hubo envío a SUNAT en esta ejecución
}

// ProcessAsync dispara Process en una goroutine independiente, desacoplada del ciclo HTTP.
// Wait espera esas ejecuciones antes de cerrar el pool.
func (p *Pipeline) ProcessAsync(documentID string) {
	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), p.asyncTimeout())
		defer cancel()
		res, err := p.Process(ctx, documentID)
		ev := p.log.Info()
		if err != nil {
			ev = p.log.Error().Err(err)
		}
		if res != nil {
			ev = ev.Str("status", string(res.Document.Status)).Str("correlation_id", res.CorrelationID)
		}
		ev.Str("document_id", documentID).Msg("procesamiento asíncrono terminado")
	}()
}

// Wait bloquea hasta que terminen las ejecuciones de ProcessAsync en curso o venza ctx.
// Con ctx vencido devuelve ctx.Err(); las goroutines siguen con su propio plazo.
func (p *Pipeline) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DrainTimeout plazo razonable para Wait: el de una ejecución asíncrona completa.
func (p *Pipeline) DrainTimeout() time.Duration { return p.asyncTimeout() }

func (p *Pipeline) asyncTimeout() time.Duration {
	return config.ClampTimeout(p.cfg.Timeout) + 30*time.Second
}

// Process lleva un comprobante en DRAFT hasta el estado que corresponda a la respuesta de SUNAT.
// Un CDR de rechazo no es un error: el resultado queda en REJECTED.
//
// Errores:
//   - domain.ErrNotFound / domain.ErrInvalidState si el comprobante no existe o no está en DRAFT.
//   - *domain.InvalidAffectationError, *domain.UnsupportedDocumentTypeError, *domain.PackagingError,
//     *domain.RejectedError: el comprobante pasa a ERROR.
//   - *domain.TransportError, domain.ErrAmbiguousResult: el comprobante queda en SUBMITTED.
//   - domain.ErrNotSubmittable: firma simulada en producción; queda en SIMULATED_SIGNED.
func (p *Pipeline) Process(ctx context.Context, documentID string) (*Result, error) {
	doc, err := p.load(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.Status != entity.StatusDraft {
		return nil, fmt.Errorf("%w: el comprobante está en %s, se esperaba %s", domain.ErrInvalidState, doc.Status, entity.StatusDraft)
	}
	res := &Result{Document: doc, CorrelationID: uuid.New().String()}
	defer p.countDocument(doc)

	// ── 1. Cálculo ───────────────────────────────────────────────────────────
	started := p.now()
	_, totals, err := p.engine.ComputeAll(doc.Lines)
	if err != nil {
		p.record(ctx, res, entity.StageCalculation, entity.StageOutcomeFailure, started, err.Error())
		return res, p.fail(ctx, doc, err)
	}
	doc.Totals = totals
	p.record(ctx, res, entity.StageCalculation, entity.StageOutcomeSuccess, started,
		fmt.Sprintf("total %s %s", totals.PayableAmount.StringFixed(2), doc.Header.Currency))
	if err := doc.Transition(entity.StatusPendingSignature, p.now()); err != nil {
		return res, err
	}

	// ── 2. XML UBL ───────────────────────────────────────────────────────────
	started = p.now()
	unsigned, err := p.builder.Build(doc.Header, doc.Supplier, doc.Customer, doc.Lines, doc.Totals)
	if err != nil {
		p.record(ctx, res, entity.StageBuild, entity.StageOutcomeFailure, started, err.Error())
		return res, p.fail(ctx, doc, err)
	}
	doc.UnsignedXML = unsigned
	p.record(ctx, res, entity.StageBuild, entity.StageOutcomeSuccess, started, fmt.Sprintf("%d bytes", len(unsigned)))

	// ── 3. Firma ─────────────────────────────────────────────────────────────
	if err := p.sign(ctx, res); err != nil {
		return res, err
	}

	// ── 4. ZIP + envío + CDR ─────────────────────────────────────────────────
	return res, p.submit(ctx, res)
}

// Resubmit vuelve a enviar un comprobante ya firmado. Es decisión del llamador tras un
// TransportError; no hay reintentos automáticos.
func (p *Pipeline) Resubmit(ctx context.Context, documentID string) (*Result, error) {
	doc, err := p.load(ctx, documentID)
	if err != nil {
		return nil, err
	}
	switch doc.Status {
	case entity.StatusSigned, entity.StatusSimulatedSigned, entity.StatusSubmitted:
	default:
		return nil, fmt.Errorf("%w: no se puede reenviar un comprobante en %s", domain.ErrInvalidState, doc.Status)
	}
	if len(doc.SignedXML) == 0 {
		return nil, fmt.Errorf("%w: el comprobante no tiene XML firmado", domain.ErrInvalidState)
	}
	res := &Result{Document: doc, CorrelationID: uuid.New().String()}
	defer p.countDocument(doc)
	return res, p.submit(ctx, res)
}

// QueryStatus resuelve un comprobante en SUBMITTED: consulta el ticket si lo hay,
// si no pide el CDR por clave natural. Un comprobante en estado final se devuelve
// con su último CDR sin consultar a SUNAT.
func (p *Pipeline) QueryStatus(ctx context.Context, documentID string) (*Result, error) {
	doc, err := p.load(ctx, documentID)
	if err != nil {
		return nil, err
	}
	res := &Result{Document: doc, CorrelationID: uuid.New().String()}
	if doc.Status.IsTerminal() {
		ack, err := p.acks.Latest(ctx, doc.ID)
		if err != nil {
			return nil, fmt.Errorf("obtener CDR: %w", err)
		}
		res.Acknowledgment = ack
		return res, nil
	}
	if doc.Status != entity.StatusSubmitted {
		return nil, fmt.Errorf("%w: el comprobante está en %s y no fue enviado", domain.ErrInvalidState, doc.Status)
	}
	if p.offline() {
		return nil, domain.ErrOffline
	}
	if doc.Ticket != "" {
		return res, p.pollTicket(ctx, res)
	}

	started := p.now()
	st, err := p.submitter.GetStatusCdr(ctx, doc.Supplier.ID, doc.Header.TypeCode, doc.Header.Series, doc.Header.Number, p.credentials(doc))
	if err != nil {
		p.record(ctx, res, entity.StageStatusQuery, entity.StageOutcomeFailure, started, err.Error())
		return res, err
	}
	if !st.HasCDR() {
		msg := fmt.Sprintf("sin CDR: [%s] %s", st.StatusCode, st.StatusMessage)
		p.record(ctx, res, entity.StageStatusQuery, entity.StageOutcomeAmbiguous, started, msg)
		return res, fmt.Errorf("%w: %s", domain.ErrAmbiguousResult, msg)
	}
	p.record(ctx, res, entity.StageStatusQuery, entity.StageOutcomeSuccess, started, "CDR recuperado por clave natural")
	return res, p.reconcile(ctx, res, st.CDRZip)
}

// PollTicket consulta el ticket de un envío asíncrono. Devuelve domain.ErrTicketPending
// mientras SUNAT lo siga procesando.
func (p *Pipeline) PollTicket(ctx context.Context, documentID string) (*Result, error) {
	doc, err := p.load(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.Ticket == "" || doc.Status != entity.StatusSubmitted {
		return nil, fmt.Errorf("%w: el comprobante no tiene un ticket pendiente", domain.ErrInvalidState)
	}
	if p.offline() {
		return nil, domain.ErrOffline
	}
	res := &Result{Document: doc, CorrelationID: uuid.New().String()}
	return res, p.pollTicket(ctx, res)
}

// ── Etapas ────────────────────────────────────────────────────────────────────

func (p *Pipeline) sign(ctx context.Context, res *Result) error {
	doc := res.Document
	started := p.now()
	out, err := p.signer.SignWithFallback(doc.UnsignedXML, p.cfg.CertPath, p.cfg.CertPassword)
	if err != nil {
		p.record(ctx, res, entity.StageSigning, entity.StageOutcomeFailure, started, err.Error())
		return p.fail(ctx, doc, err)
	}

	doc.SignedXML = out.XML
	doc.SignatureMode = out.Mode
	doc.SignatureReason = out.Reason
	next, outcome, msg := entity.StatusSigned, entity.StageOutcomeSuccess, "firmado, RUC firmante "+out.SignerRUC
	if out.Signed() {
		doc.ContentHash = out.DigestValue
	} else {
		next, outcome, msg = entity.StatusSimulatedSigned, entity.StageOutcomeFallback, "firma simulada: "+out.Reason
		doc.ContentHash = cpe.ContentHash(out.XML)
	}
	if err := doc.Transition(next, p.now()); err != nil {
		return err
	}
	p.record(ctx, res, entity.StageSigning, outcome, started, msg)
	return p.persist(ctx, doc)
}

func (p *Pipeline) submit(ctx context.Context, res *Result) error {
	doc := res.Document
	if doc.SignatureMode == pkgsunat.SignatureModeSimulated && p.cfg.Env == config.SUNATEnvProd {
		p.record(ctx, res, entity.StageSubmission, entity.StageOutcomeSkipped, p.now(), domain.ErrNotSubmittable.Error())
		return fmt.Errorf("%w: %s", domain.ErrNotSubmittable, doc.NaturalKey())
	}

	started := p.now()
	zipBytes, err := infrasunat.Package(doc.SignedXML, doc.Supplier.ID, doc.Header.TypeCode, doc.Header.Series, doc.Header.Number)
	if err != nil {
		observability.SubmissionErrors.WithLabelValues("packaging").Inc()
		p.record(ctx, res, entity.StagePackaging, entity.StageOutcomeFailure, started, err.Error())
		return p.fail(ctx, doc, err)
	}
	p.record(ctx, res, entity.StagePackaging, entity.StageOutcomeSuccess, started, fmt.Sprintf("%d bytes", len(zipBytes)))

	if p.offline() {
		p.record(ctx, res, entity.StageSubmission, entity.StageOutcomeSkipped, p.now(), "ambiente dev: no se envía a SUNAT")
		return nil
	}

	if doc.Status != entity.StatusSubmitted {
		if err := doc.Transition(entity.StatusSubmitted, p.now()); err != nil {
			return err
		}
		if err := p.persist(ctx, doc); err != nil {
			return err
		}
	}
	res.Submitted = true
	_, zipName := infrasunat.FileNames(doc.Supplier.ID, doc.Header.TypeCode, doc.Header.Series, doc.Header.Number)
	cred := p.credentials(doc)

	started = p.now()
	if p.cfg.Async && doc.Header.BoletaFamily() {
		ticket, err := p.submitter.SendSummary(ctx, zipName, zipBytes, cred)
		if err != nil {
			return p.submissionFailed(ctx, res, started, err)
		}
		doc.Ticket = ticket
		doc.UpdatedAt = p.now()
		p.record(ctx, res, entity.StageSubmission, entity.StageOutcomeSuccess, started, "ticket "+ticket)
		return p.persist(ctx, doc)
	}

	resp, err := p.submitter.SendBill(ctx, zipName, zipBytes, cred)
	if err != nil {
		return p.submissionFailed(ctx, res, started, err)
	}
	p.record(ctx, res, entity.StageSubmission, entity.StageOutcomeSuccess, started, fmt.Sprintf("CDR recibido (%d bytes)", len(resp.CDRZip)))
	return p.reconcile(ctx, res, resp.CDRZip)
}

// submissionFailed un rechazo confirmado lleva a ERROR; cualquier otra falla deja el
// comprobante en SUBMITTED a la espera de una consulta de estado.
func (p *Pipeline) submissionFailed(ctx context.Context, res *Result, started time.Time, err error) error {
	doc := res.Document
	var rejected *domain.RejectedError
	if errors.As(err, &rejected) {
		observability.SubmissionErrors.WithLabelValues("rejected").Inc()
		doc.LastResponseCode = rejected.Code
		doc.LastResponseDescription = rejected.Description
		p.record(ctx, res, entity.StageSubmission, entity.StageOutcomeFailure, started, err.Error())
		return p.fail(ctx, doc, err)
	}
	observability.SubmissionErrors.WithLabelValues("transport").Inc()
	p.record(ctx, res, entity.StageSubmission, entity.StageOutcomeAmbiguous, started, err.Error())
	return err
}

func (p *Pipeline) pollTicket(ctx context.Context, res *Result) error {
	doc := res.Document
	started := p.now()
	st, err := p.submitter.GetStatus(ctx, doc.Ticket, p.credentials(doc))
	if err != nil {
		p.record(ctx, res, entity.StageStatusQuery, entity.StageOutcomeFailure, started, err.Error())
		return err
	}
	if st.InProcess() {
		p.record(ctx, res, entity.StageStatusQuery, entity.StageOutcomeAmbiguous, started, "ticket en proceso")
		return fmt.Errorf("%w: %s", domain.ErrTicketPending, doc.Ticket)
	}
	if !st.HasCDR() {
		msg := fmt.Sprintf("ticket %s sin CDR: [%s] %s", doc.Ticket, st.StatusCode, st.StatusMessage)
		p.record(ctx, res, entity.StageStatusQuery, entity.StageOutcomeAmbiguous, started, msg)
		return fmt.Errorf("%w: %s", domain.ErrAmbiguousResult, msg)
	}
	p.record(ctx, res, entity.StageStatusQuery, entity.StageOutcomeSuccess, started, "ticket "+doc.Ticket+" procesado")
	return p.reconcile(ctx, res, st.CDRZip)
}

// reconcile interpreta el CDR, lo guarda y mueve el comprobante al estado final.
// Un código sin clasificar deja el comprobante en SUBMITTED.
func (p *Pipeline) reconcile(ctx context.Context, res *Result, body []byte) error {
	doc := res.Document
	started := p.now()
	rec, err := infrasunat.ParseAcknowledgment(body)
	if err != nil {
		p.record(ctx, res, entity.StageReconciliation, entity.StageOutcomeAmbiguous, started, err.Error())
		return fmt.Errorf("%w: %w", domain.ErrAmbiguousResult, err)
	}
	rec.DocumentID = doc.ID
	rec.CreatedAt = p.now()
	if err := p.acks.Append(ctx, rec); err != nil {
		return fmt.Errorf("guardar CDR: %w", err)
	}
	res.Acknowledgment = rec
	observability.CDROutcomes.WithLabelValues(string(rec.Outcome)).Inc()

	doc.LastResponseCode = rec.ResponseCode
	doc.LastResponseDescription = rec.Description
	doc.LastOutcome = rec.Outcome
	msg := fmt.Sprintf("[%s] %s", rec.ResponseCode, rec.Description)

	next, ok := entity.StatusForOutcome(rec.Outcome)
	if !ok {
		doc.UpdatedAt = p.now()
		p.record(ctx, res, entity.StageReconciliation, entity.StageOutcomeAmbiguous, started, msg)
		if err := p.persist(ctx, doc); err != nil {
			return err
		}
		return fmt.Errorf("%w: código de respuesta %q", domain.ErrAmbiguousResult, rec.ResponseCode)
	}
	if err := doc.Transition(next, p.now()); err != nil {
		return err
	}
	p.record(ctx, res, entity.StageReconciliation, entity.StageOutcomeSuccess, started, msg+" → "+string(next))
	return p.persist(ctx, doc)
}

// ── helpers privados ──────────────────────────────────────────────────────────

func (p *Pipeline) load(ctx context.Context, id string) (*entity.Document, error) {
	doc, err := p.docs.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("obtener comprobante: %w", err)
	}
	if doc == nil {
		return nil, domain.ErrNotFound
	}
	return doc, nil
}

func (p *Pipeline) persist(ctx context.Context, doc *entity.Document) error {
	if err := p.docs.Update(ctx, doc); err != nil {
		return fmt.Errorf("persistir comprobante %s: %w", doc.ID, err)
	}
	return nil
}

// fail lleva el comprobante a ERROR y devuelve la causa original.
func (p *Pipeline) fail(ctx context.Context, doc *entity.Document, cause error) error {
	if err := doc.Transition(entity.StatusError, p.now()); err != nil {
		return errors.Join(cause, err)
	}
	if err := p.persist(ctx, doc); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

// record escribe la bitácora, la métrica de la etapa y el log. Una falla al escribir la
// bitácora se registra en el log y no detiene la cadena.
func (p *Pipeline) record(ctx context.Context, res *Result, stage, outcome string, started time.Time, msg string) {
	d := p.now().Sub(started)
	observability.ObserveStage(stage, outcome, d)

	entry := &entity.OperationLogEntry{
		ID:            uuid.New().String(),
		DocumentID:    res.Document.ID,
		CorrelationID: res.CorrelationID,
		Stage:         stage,
		Outcome:       outcome,
		Duration:      d,
		Message:       msg,
		CreatedAt:     p.now(),
	}
	log := logger.Document(p.log, res.Document.ID, res.CorrelationID)
	if err := p.logs.Append(ctx, entry); err != nil {
		log.Error().Err(err).Str("stage", stage).Msg("no se pudo escribir la bitácora")
	}

	ev := log.Debug()
	switch outcome {
	case entity.StageOutcomeFailure:
		ev = log.Error()
	case entity.StageOutcomeFallback, entity.StageOutcomeAmbiguous:
		ev = log.Warn()
	}
	ev.Str("stage", stage).
		Str("outcome", outcome).
		Int64("duration_ms", d.Milliseconds()).
		Msg(msg)
}

func (p *Pipeline) countDocument(doc *entity.Document) {
	observability.DocumentsProcessed.WithLabelValues(doc.Header.TypeCode, string(doc.Status)).Inc()
}

func (p *Pipeline) offline() bool {
	return p.cfg.Env == config.SUNATEnvDev || p.submitter == nil
}

func (p *Pipeline) credentials(doc *entity.Document) infrasunat.Credentials {
	return infrasunat.Credentials{RUC: doc.Supplier.ID, User: p.cfg.User, Password: p.cfg.Password}
}
