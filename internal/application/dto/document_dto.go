package dto

import (
	"time"

	"github.com/jhoicas/facturacion-sunat/internal/domain/entity"
	"github.com/jhoicas/facturacion-sunat/internal/domain/tax"
	"github.com/shopspring/decimal"
)

// CreateDocumentRequest body para POST /api/documents.
// El emisor debe coincidir con el RUC del token.
type CreateDocumentRequest struct {
	TypeCode      string       `json:"type_code"`
	Series        string       `json:"series"`
	Number        int64        `json:"number"`
	IssueDate     time.Time    `json:"issue_date"`
	DueDate       *time.Time   `json:"due_date,omitempty"`
	Currency      string       `json:"currency"`
	OperationType string       `json:"operation_type,omitempty"`
	Supplier      entity.Party `json:"supplier"`
	Customer      entity.Party `json:"customer"`

	PaymentMethod string               `json:"payment_method,omitempty"`
	Installments  []entity.Installment `json:"installments,omitempty"`

	Reference         *entity.DocumentReference `json:"reference,omitempty"`
	NoteReasonCode    string                    `json:"note_reason_code,omitempty"`
	NoteReasonDetails string                    `json:"note_reason_details,omitempty"`
	Observations      string                    `json:"observations,omitempty"`

	Lines []tax.LineItem `json:"lines"`
}

// Header cabecera del comprobante a partir del request.
func (r CreateDocumentRequest) Header() entity.DocumentHeader {
	return entity.DocumentHeader{
		TypeCode:          r.TypeCode,
		Series:            r.Series,
		Number:            r.Number,
		IssueDate:         r.IssueDate,
		DueDate:           r.DueDate,
		Currency:          r.Currency,
		OperationType:     r.OperationType,
		PaymentMethod:     r.PaymentMethod,
		Installments:      r.Installments,
		Reference:         r.Reference,
		NoteReasonCode:    r.NoteReasonCode,
		NoteReasonDetails: r.NoteReasonDetails,
		Observations:      r.Observations,
	}
}

// DocumentResponse comprobante en respuestas (sin los XML).
type DocumentResponse struct {
	ID              string             `json:"id"`
	DocumentID      string             `json:"document_id"` // F001-00000001
	FileName        string             `json:"file_name"`
	TypeCode        string             `json:"type_code"`
	Series          string             `json:"series"`
	Number          int64              `json:"number"`
	IssueDate       string             `json:"issue_date"`
	Currency        string             `json:"currency"`
	SupplierRUC     string             `json:"supplier_ruc"`
	CustomerID      string             `json:"customer_id"`
	CustomerName    string             `json:"customer_name"`
	Totals          tax.DocumentTotals `json:"totals"`
	GrandTotal      decimal.Decimal    `json:"grand_total"`
	PayableAmount   decimal.Decimal    `json:"payable_amount"`
	Status          string             `json:"status"`
	SignatureMode   string             `json:"signature_mode,omitempty"`
	SignatureReason string             `json:"signature_reason,omitempty"`
	ContentHash     string             `json:"content_hash,omitempty"`
	Ticket          string             `json:"ticket,omitempty"`
	Acknowledgment  *AcknowledgmentDTO `json:"acknowledgment,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// AcknowledgmentDTO último CDR conocido.
type AcknowledgmentDTO struct {
	ResponseCode string                      `json:"response_code"`
	Description  string                      `json:"description"`
	Outcome      string                      `json:"outcome"`
	Notes        []entity.AcknowledgmentNote `json:"notes,omitempty"`
	IssuedAt     *time.Time                  `json:"issued_at,omitempty"`
	RespondedAt  *time.Time                  `json:"responded_at,omitempty"`
	ReceivedAt   time.Time                   `json:"received_at"`
}

// StatusResponse estado del comprobante para GET /api/documents/:id/status.
type StatusResponse struct {
	ID             string             `json:"id"`
	Status         string             `json:"status"`
	Ticket         string             `json:"ticket,omitempty"`
	ResponseCode   string             `json:"response_code,omitempty"`
	Description    string             `json:"description,omitempty"`
	Acknowledgment *AcknowledgmentDTO `json:"acknowledgment,omitempty"`
}

// OperationLogDTO entrada de bitácora.
type OperationLogDTO struct {
	Stage         string    `json:"stage"`
	Outcome       string    `json:"outcome"`
	DurationMs    int64     `json:"duration_ms"`
	Message       string    `json:"message,omitempty"`
	CorrelationID string    `json:"correlation_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// ValidateRUCRequest body para POST /api/ruc/validate.
type ValidateRUCRequest struct {
	RUC string `json:"ruc"`
}

// ValidateRUCResponse resultado de la validación.
type ValidateRUCResponse struct {
	RUC    string `json:"ruc"`
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// ToDocumentResponse mapea la entidad; ack puede ser nil.
func ToDocumentResponse(d *entity.Document, ack *entity.AcknowledgmentRecord) *DocumentResponse {
	return &DocumentResponse{
		ID:              d.ID,
		DocumentID:      d.Header.DocumentID(),
		FileName:        d.FileBaseName(),
		TypeCode:        d.Header.TypeCode,
		Series:          d.Header.Series,
		Number:          d.Header.Number,
		IssueDate:       d.Header.IssueDate.Format("2006-01-02"),
		Currency:        d.Header.Currency,
		SupplierRUC:     d.Supplier.ID,
		CustomerID:      d.Customer.ID,
		CustomerName:    d.Customer.Name,
		Totals:          d.Totals,
		GrandTotal:      d.Totals.GrandTotal,
		PayableAmount:   d.Totals.PayableAmount,
		Status:          string(d.Status),
		SignatureMode:   string(d.SignatureMode),
		SignatureReason: d.SignatureReason,
		ContentHash:     d.ContentHash,
		Ticket:          d.Ticket,
		Acknowledgment:  ToAcknowledgmentDTO(ack),
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

// ToStatusResponse estado resumido del comprobante.
func ToStatusResponse(d *entity.Document, ack *entity.AcknowledgmentRecord) *StatusResponse {
	return &StatusResponse{
		ID:             d.ID,
		Status:         string(d.Status),
		Ticket:         d.Ticket,
		ResponseCode:   d.LastResponseCode,
		Description:    d.LastResponseDescription,
		Acknowledgment: ToAcknowledgmentDTO(ack),
	}
}

// ToAcknowledgmentDTO nil si no hay CDR.
func ToAcknowledgmentDTO(r *entity.AcknowledgmentRecord) *AcknowledgmentDTO {
	if r == nil {
		return nil
	}
	out := &AcknowledgmentDTO{
		ResponseCode: r.ResponseCode,
		Description:  r.Description,
		Outcome:      string(r.Outcome),
		Notes:        r.Notes,
		ReceivedAt:   r.CreatedAt,
	}
	if !r.IssuedAt.IsZero() {
		t := r.IssuedAt
		out.IssuedAt = &t
	}
	if !r.RespondedAt.IsZero() {
		t := r.RespondedAt
		out.RespondedAt = &t
	}
	return out
}

// ToOperationLogDTOs mapea la bitácora.
func ToOperationLogDTOs(entries []*entity.OperationLogEntry) []OperationLogDTO {
	out := make([]OperationLogDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, OperationLogDTO{
			Stage:         e.Stage,
			Outcome:       e.Outcome,
			DurationMs:    e.Duration.Milliseconds(),
			Message:       e.Message,
			CorrelationID: e.CorrelationID,
			CreatedAt:     e.CreatedAt,
		})
	}
	return out
}
