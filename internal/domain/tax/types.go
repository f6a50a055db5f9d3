// Package tax implementa el cálculo de IGV, ISC e ICBPER por línea y los totales del comprobante.
// Funciones puras: sin I/O ni estado compartido.
package tax

import "github.com/shopspring/decimal"

// LineItem línea de entrada tal como la entrega el llamador. Inmutable.
type LineItem struct {
	ProductCode     string           `json:"product_code,omitempty"`
	Description     string           `json:"description"`
	UnitCode        string           `json:"unit_code"`
	Quantity        decimal.Decimal  `json:"quantity"`   // hasta 3 decimales
	UnitPrice       decimal.Decimal  `json:"unit_price"` // valor unitario sin impuestos, hasta 10 decimales
	AffectationCode string           `json:"affectation_code"`
	ISCRate         *decimal.Decimal `json:"isc_rate,omitempty"` // < 1: porcentaje sobre el valor; >= 1: monto fijo por unidad
	PlasticBag      bool             `json:"plastic_bag,omitempty"`
}

// LineComputation montos derivados de una línea.
// Gross = NetValue + IGV + ISC + ICBPER, cada sumando redondeado a 2 decimales antes de sumar.
type LineComputation struct {
	AffectationCode string          `json:"affectation_code"`
	Free            bool            `json:"free"`
	Quantity        decimal.Decimal `json:"quantity"`
	UnitValue       decimal.Decimal `json:"unit_value"`
	NetValue        decimal.Decimal `json:"net_value"`
	IGVBase         decimal.Decimal `json:"igv_base"`
	IGVRate         decimal.Decimal `json:"igv_rate"`
	IGV             decimal.Decimal `json:"igv"`
	ISC             decimal.Decimal `json:"isc"`
	ICBPER          decimal.Decimal `json:"icbper"`
	ICBPERUnit      decimal.Decimal `json:"icbper_unit"`
	Gross           decimal.Decimal `json:"gross"`
	// UnitPriceWithTaxes precio unitario con impuestos (catálogo 16, tipo 01 o 02).
	UnitPriceWithTaxes decimal.Decimal `json:"unit_price_with_taxes"`
}

// DocumentTotals agregados del comprobante por categoría de afectación.
// GrandTotal = suma de subtotales + suma de totales de impuestos.
// PayableAmount excluye las operaciones gratuitas y su IGV: es lo que paga el adquirente.
type DocumentTotals struct {
	TaxedSubtotal      decimal.Decimal `json:"taxed_subtotal"`
	ExemptSubtotal     decimal.Decimal `json:"exempt_subtotal"`
	UnaffectedSubtotal decimal.Decimal `json:"unaffected_subtotal"`
	ExportSubtotal     decimal.Decimal `json:"export_subtotal"`
	FreeSubtotal       decimal.Decimal `json:"free_subtotal"`
	TotalIGV           decimal.Decimal `json:"total_igv"`
	TotalISC           decimal.Decimal `json:"total_isc"`
	TotalICBPER        decimal.Decimal `json:"total_icbper"`
	GrandTotal         decimal.Decimal `json:"grand_total"`
	// FreeIGV parte de TotalIGV que proviene de líneas gratuitas (retiros gravados).
	FreeIGV decimal.Decimal `json:"free_igv"`
	// TaxedIGVBase base imponible agregada del IGV de operaciones onerosas (valor + ISC).
	TaxedIGVBase decimal.Decimal `json:"taxed_igv_base"`
	LineCount    int             `json:"line_count"`
	// PayableAmount importe total a pagar (cbc:PayableAmount, leyenda 1000, cuotas).
	PayableAmount decimal.Decimal `json:"payable_amount"`
}

// SubtotalSum suma de los cinco subtotales por categoría.
func (t DocumentTotals) SubtotalSum() decimal.Decimal {
	return t.TaxedSubtotal.Add(t.ExemptSubtotal).Add(t.UnaffectedSubtotal).Add(t.ExportSubtotal).Add(t.FreeSubtotal)
}

// TaxSum suma de los totales de impuestos.
func (t DocumentTotals) TaxSum() decimal.Decimal {
	return t.TotalIGV.Add(t.TotalISC).Add(t.TotalICBPER)
}

// ChargedTaxSum impuestos cobrados al adquirente: el IGV de retiros gratuitos no se cobra.
func (t DocumentTotals) ChargedTaxSum() decimal.Decimal {
	return t.TaxSum().Sub(t.FreeIGV)
}

// OnerousSubtotal valor de venta sin operaciones gratuitas.
func (t DocumentTotals) OnerousSubtotal() decimal.Decimal {
	return t.TaxedSubtotal.Add(t.ExemptSubtotal).Add(t.UnaffectedSubtotal).Add(t.ExportSubtotal)
}
