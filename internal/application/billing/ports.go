package billing

import (
	"context"

	"github.com/jhoicas/facturacion-sunat/internal/domain/entity"
	"github.com/jhoicas/facturacion-sunat/internal/domain/repository"
	"github.com/jhoicas/facturacion-sunat/internal/domain/tax"
	infrasunat "github.com/jhoicas/facturacion-sunat/internal/infrastructure/sunat"
)

// TxRunner ejecuta una función dentro de una transacción con los repos de comprobantes y bitácora.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(
		docs repository.DocumentRepository,
		logs repository.OperationLogRepository,
	) error) error
}

// DocumentBuilder arma el XML UBL sin firmar.
type DocumentBuilder interface {
	Build(h entity.DocumentHeader, supplier, customer entity.Party, lines []tax.LineItem, totals tax.DocumentTotals) ([]byte, error)
}

// Submitter cliente de los servicios web de SUNAT. Nil en ambiente dev.
type Submitter interface {
	SendBill(ctx context.Context, fileName string, zipBytes []byte, cred infrasunat.Credentials) (*infrasunat.BillResponse, error)
	SendSummary(ctx context.Context, fileName string, zipBytes []byte, cred infrasunat.Credentials) (string, error)
	GetStatus(ctx context.Context, ticket string, cred infrasunat.Credentials) (*infrasunat.StatusResponse, error)
	GetStatusCdr(ctx context.Context, ruc, typeCode, series string, number int64, cred infrasunat.Credentials) (*infrasunat.StatusResponse, error)
}

// DocumentPDFGenerator genera la representación impresa del comprobante.
type DocumentPDFGenerator interface {
	Generate(doc *entity.Document) ([]byte, error)
}

var (
	_ DocumentBuilder = (*infrasunat.XMLBuilder)(nil)
	_ Submitter       = (*infrasunat.Client)(nil)
)
