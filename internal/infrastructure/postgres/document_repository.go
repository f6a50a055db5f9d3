package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jhoicas/facturacion-sunat/internal/domain"
	"github.com/jhoicas/facturacion-sunat/internal/domain/entity"
	"github.com/jhoicas/facturacion-sunat/internal/domain/repository"
	"github.com/jhoicas/facturacion-sunat/internal/domain/tax"
	"github.com/jhoicas/facturacion-sunat/pkg/sunat"
	"github.com/shopspring/decimal"
)

var _ repository.DocumentRepository = (*DocumentRepo)(nil)

// DocumentRepo implementación de DocumentRepository (usable con pool o tx).
type DocumentRepo struct {
	q Querier
}

// NewDocumentRepository construye el adaptador. Pasar pool o tx (Querier).
func NewDocumentRepository(q Querier) *DocumentRepo {
	return &DocumentRepo{q: q}
}

const documentColumns = `
	id, supplier_ruc, type_code, series, number, issue_date, due_date, currency,
	operation_type, payment_method, installments, reference, note_reason_code,
	note_reason_details, observations, supplier, customer, totals, status,
	unsigned_xml, signed_xml, signature_mode, signature_reason, content_hash, ticket,
	last_response_code, last_response_description, last_outcome, created_at, updated_at`

// Create inserta cabecera y líneas. Con un pool (sin tx) las líneas se insertan igual,
// pero la atomicidad la da TxRunner.
func (r *DocumentRepo) Create(ctx context.Context, doc *entity.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	installments, err := toJSON(doc.Header.Installments)
	if err != nil {
		return err
	}
	var reference []byte
	if doc.Header.Reference != nil {
		if reference, err = toJSON(doc.Header.Reference); err != nil {
			return err
		}
	}
	supplier, err := toJSON(doc.Supplier)
	if err != nil {
		return err
	}
	customer, err := toJSON(doc.Customer)
	if err != nil {
		return err
	}
	totals, err := toJSON(doc.Totals)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO documents (` + documentColumns + `, grand_total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19,
		        $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31)`
	h := doc.Header
	_, err = r.q.Exec(ctx, query,
		doc.ID, doc.Supplier.ID, h.TypeCode, h.Series, h.Number, h.IssueDate, h.DueDate, h.Currency,
		nullIfEmpty(h.OperationType), nullIfEmpty(h.PaymentMethod), installments, reference,
		nullIfEmpty(h.NoteReasonCode), nullIfEmpty(h.NoteReasonDetails), nullIfEmpty(h.Observations),
		supplier, customer, totals, doc.Status,
		doc.UnsignedXML, doc.SignedXML, nullIfEmpty(string(doc.SignatureMode)), nullIfEmpty(doc.SignatureReason),
		nullIfEmpty(doc.ContentHash), nullIfEmpty(doc.Ticket),
		nullIfEmpty(doc.LastResponseCode), nullIfEmpty(doc.LastResponseDescription), nullIfEmpty(string(doc.LastOutcome)),
		doc.CreatedAt, doc.UpdatedAt, doc.Totals.GrandTotal,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("comprobante %s ya existe: %w", doc.NaturalKey(), domain.ErrDuplicate)
		}
		return fmt.Errorf("insert document: %w", err)
	}

	for i, l := range doc.Lines {
		_, err := r.q.Exec(ctx, `
			INSERT INTO document_lines (document_id, position, product_code, description, unit_code,
			                            quantity, unit_price, affectation_code, isc_rate, plastic_bag)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			doc.ID, i+1, nullIfEmpty(l.ProductCode), l.Description, l.UnitCode,
			l.Quantity, l.UnitPrice, l.AffectationCode, l.ISCRate, l.PlasticBag,
		)
		if err != nil {
			return fmt.Errorf("insert document line %d: %w", i+1, err)
		}
	}
	return nil
}

// Update persiste estado, XML, hash, ticket y último resultado. Cabecera y líneas son inmutables.
func (r *DocumentRepo) Update(ctx context.Context, doc *entity.Document) error {
	query := `
		UPDATE documents
		SET status                    = $2,
		    unsigned_xml              = COALESCE($3, unsigned_xml),
		    signed_xml                = COALESCE($4, signed_xml),
		    signature_mode            = COALESCE($5, signature_mode),
		    signature_reason          = $6,
		    content_hash              = COALESCE($7, content_hash),
		    ticket                    = COALESCE($8, ticket),
		    last_response_code        = COALESCE($9, last_response_code),
		    last_response_description = COALESCE($10, last_response_description),
		    last_outcome              = COALESCE($11, last_outcome),
		    updated_at                = $12
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query,
		doc.ID, doc.Status, doc.UnsignedXML, doc.SignedXML,
		nullIfEmpty(string(doc.SignatureMode)), nullIfEmpty(doc.SignatureReason),
		nullIfEmpty(doc.ContentHash), nullIfEmpty(doc.Ticket),
		nullIfEmpty(doc.LastResponseCode), nullIfEmpty(doc.LastResponseDescription),
		nullIfEmpty(string(doc.LastOutcome)), doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("documento %s: %w", doc.ID, domain.ErrNotFound)
	}
	return nil
}

// GetByID obtiene el comprobante completo con sus líneas.
func (r *DocumentRepo) GetByID(ctx context.Context, id string) (*entity.Document, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	row := r.q.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	return r.load(ctx, row)
}

// GetByNaturalKey busca por (RUC emisor, tipo, serie, número).
func (r *DocumentRepo) GetByNaturalKey(ctx context.Context, supplierRUC, typeCode, series string, number int64) (*entity.Document, error) {
	row := r.q.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents
		WHERE supplier_ruc = $1 AND type_code = $2 AND series = $3 AND number = $4`,
		supplierRUC, typeCode, series, number)
	return r.load(ctx, row)
}

// ListByStatus lista comprobantes de un emisor en un estado, los más antiguos primero.
func (r *DocumentRepo) ListByStatus(ctx context.Context, supplierRUC string, status entity.DocumentStatus, limit int) ([]*entity.Document, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.q.Query(ctx, `SELECT `+documentColumns+` FROM documents
		WHERE supplier_ruc = $1 AND status = $2 ORDER BY updated_at LIMIT $3`,
		supplierRUC, status, limit)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()
	var list []*entity.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, d := range list {
		if d.Lines, err = r.lines(ctx, d.ID); err != nil {
			return nil, err
		}
	}
	return list, nil
}

func (r *DocumentRepo) load(ctx context.Context, row pgx.Row) (*entity.Document, error) {
	d, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if d.Lines, err = r.lines(ctx, d.ID); err != nil {
		return nil, err
	}
	return d, nil
}

func (r *DocumentRepo) lines(ctx context.Context, documentID string) ([]tax.LineItem, error) {
	rows, err := r.q.Query(ctx, `
		SELECT product_code, description, unit_code, quantity, unit_price, affectation_code, isc_rate, plastic_bag
		FROM document_lines WHERE document_id = $1 ORDER BY position`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list document lines: %w", err)
	}
	defer rows.Close()
	var list []tax.LineItem
	for rows.Next() {
		var l tax.LineItem
		var code *string
		var isc decimal.NullDecimal
		if err := rows.Scan(&code, &l.Description, &l.UnitCode, &l.Quantity, &l.UnitPrice,
			&l.AffectationCode, &isc, &l.PlasticBag); err != nil {
			return nil, fmt.Errorf("scan document line: %w", err)
		}
		l.ProductCode = derefStr(code)
		if isc.Valid {
			v := isc.Decimal
			l.ISCRate = &v
		}
		list = append(list, l)
	}
	return list, rows.Err()
}

func scanDocument(row pgx.Row) (*entity.Document, error) {
	var (
		d                                                   entity.Document
		supplierRUC                                         string
		dueDate                                             *time.Time
		opType, payMethod, reasonCode, reasonDetails, obs   *string
		installments, reference, supplier, customer, totals []byte
		sigMode, sigReason, hash, ticket                    *string
		lastCode, lastDesc, lastOutcome                     *string
	)
	err := row.Scan(
		&d.ID, &supplierRUC, &d.Header.TypeCode, &d.Header.Series, &d.Header.Number, &d.Header.IssueDate,
		&dueDate, &d.Header.Currency, &opType, &payMethod, &installments, &reference, &reasonCode,
		&reasonDetails, &obs, &supplier, &customer, &totals, &d.Status,
		&d.UnsignedXML, &d.SignedXML, &sigMode, &sigReason, &hash, &ticket,
		&lastCode, &lastDesc, &lastOutcome, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	d.Header.DueDate = dueDate
	d.Header.OperationType = derefStr(opType)
	d.Header.PaymentMethod = derefStr(payMethod)
	d.Header.NoteReasonCode = derefStr(reasonCode)
	d.Header.NoteReasonDetails = derefStr(reasonDetails)
	d.Header.Observations = derefStr(obs)
	if err := fromJSON(installments, &d.Header.Installments); err != nil {
		return nil, err
	}
	if len(reference) > 0 && string(reference) != "null" {
		d.Header.Reference = &entity.DocumentReference{}
		if err := fromJSON(reference, d.Header.Reference); err != nil {
			return nil, err
		}
	}
	if err := fromJSON(supplier, &d.Supplier); err != nil {
		return nil, err
	}
	if err := fromJSON(customer, &d.Customer); err != nil {
		return nil, err
	}
	if err := fromJSON(totals, &d.Totals); err != nil {
		return nil, err
	}
	if d.Supplier.ID == "" {
		d.Supplier.ID = supplierRUC
	}
	d.SignatureMode = sunat.SignatureMode(derefStr(sigMode))
	d.SignatureReason = derefStr(sigReason)
	d.ContentHash = derefStr(hash)
	d.Ticket = derefStr(ticket)
	d.LastResponseCode = derefStr(lastCode)
	d.LastResponseDescription = derefStr(lastDesc)
	d.LastOutcome = entity.Outcome(derefStr(lastOutcome))
	return &d, nil
}
