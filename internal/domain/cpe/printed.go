package cpe

import (
	"crypto/sha256"
	"encoding/base64"
	"strconv"
	"strings"

	"github.com/jhoicas/facturacion-sunat/internal/domain/entity"
)

// ContentHash SHA-256 en base64 de un XML (usado cuando no existe DigestValue de firma).
func ContentHash(xmlBytes []byte) string {
	sum := sha256.Sum256(xmlBytes)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// QRData cadena del código QR de la representación impresa:
//
//	RUC|TIPO|SERIE|NUMERO|IGV|TOTAL|FECHA|TIPODOC|NUMDOC|HASH
func QRData(doc *entity.Document) string {
	return strings.Join([]string{
		doc.Supplier.ID,
		doc.Header.TypeCode,
		doc.Header.Series,
		strconv.FormatInt(doc.Header.Number, 10),
		doc.Totals.TotalIGV.Sub(doc.Totals.FreeIGV).StringFixed(2),
		doc.Totals.PayableAmount.StringFixed(2),
		doc.Header.IssueDate.Format("2006-01-02"),
		doc.Customer.IdentityType,
		doc.Customer.ID,
		doc.ContentHash,
	}, "|")
}
