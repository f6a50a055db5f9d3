package tax

import (
	"fmt"

	"github.com/jhoicas/facturacion-sunat/internal/domain"
	"github.com/jhoicas/facturacion-sunat/pkg/sunat"
	"github.com/shopspring/decimal"
)

// Tasas vigentes.
var (
	DefaultIGVRate      = decimal.RequireFromString("0.18")
	DefaultICBPERAmount = decimal.RequireFromString("0.50")
)

// Engine calcula impuestos con tasas fijas. El valor cero no es utilizable: usar NewEngine.
type Engine struct {
	igvRate      decimal.Decimal
	icbperAmount decimal.Decimal
}

// NewEngine construye el motor con el monto ICBPER por bolsa indicado (cero = valor por defecto).
func NewEngine(icbperAmount decimal.Decimal) *Engine {
	if icbperAmount.IsZero() || icbperAmount.IsNegative() {
		icbperAmount = DefaultICBPERAmount
	}
	return &Engine{igvRate: DefaultIGVRate, icbperAmount: icbperAmount}
}

// NewEngineFromString igual que NewEngine pero parsea el monto (configuración).
func NewEngineFromString(icbperAmount string) (*Engine, error) {
	if icbperAmount == "" {
		return NewEngine(decimal.Zero), nil
	}
	d, err := decimal.NewFromString(icbperAmount)
	if err != nil {
		return nil, fmt.Errorf("tax: monto ICBPER inválido %q: %w", icbperAmount, err)
	}
	return NewEngine(d), nil
}

var defaultEngine = NewEngine(DefaultICBPERAmount)

// ComputeLine calcula una línea con las tasas por defecto.
func ComputeLine(item LineItem) (LineComputation, error) {
	return defaultEngine.ComputeLine(item)
}

// ComputeDocumentTotals agrega líneas ya calculadas.
func ComputeDocumentTotals(lines []LineComputation) DocumentTotals {
	return defaultEngine.ComputeDocumentTotals(lines)
}

// IGVRate tasa de IGV del motor.
func (e *Engine) IGVRate() decimal.Decimal { return e.igvRate }

// ICBPERAmount monto por bolsa del motor.
func (e *Engine) ICBPERAmount() decimal.Decimal { return e.icbperAmount }

// ComputeLine aplica las reglas por línea:
//   - valor neto = cantidad × valor unitario, redondeado a 2 decimales
//   - ISC: tasa < 1 se aplica al valor neto, tasa >= 1 es monto fijo por unidad
//   - IGV sólo para la familia gravada (10 a 16), sobre valor neto + ISC
//   - ICBPER: monto fijo por unidad, sólo si la línea lo indica
func (e *Engine) ComputeLine(item LineItem) (LineComputation, error) {
	family, free, ok := sunat.LookupAffectation(item.AffectationCode)
	if !ok {
		return LineComputation{}, &domain.InvalidAffectationError{Code: item.AffectationCode}
	}
	if item.Quantity.IsNegative() {
		return LineComputation{}, fmt.Errorf("%w: cantidad negativa %s", domain.ErrInvalidInput, item.Quantity)
	}
	if item.UnitPrice.IsNegative() {
		return LineComputation{}, fmt.Errorf("%w: valor unitario negativo %s", domain.ErrInvalidInput, item.UnitPrice)
	}

	net := item.Quantity.Mul(item.UnitPrice).Round(2)

	isc := decimal.Zero
	if item.ISCRate != nil && item.ISCRate.IsPositive() {
		if item.ISCRate.LessThan(decimal.NewFromInt(1)) {
			isc = net.Mul(*item.ISCRate).Round(2)
		} else {
			isc = item.ISCRate.Mul(item.Quantity).Round(2)
		}
	}

	lc := LineComputation{
		AffectationCode: item.AffectationCode,
		Free:            free,
		Quantity:        item.Quantity,
		UnitValue:       item.UnitPrice,
		NetValue:        net,
		ISC:             isc,
		IGVBase:         decimal.Zero,
		IGVRate:         decimal.Zero,
		IGV:             decimal.Zero,
		ICBPER:          decimal.Zero,
		ICBPERUnit:      decimal.Zero,
	}

	if family == sunat.FamilyTaxed {
		lc.IGVBase = net.Add(isc)
		lc.IGVRate = e.igvRate
		lc.IGV = lc.IGVBase.Mul(e.igvRate).Round(2)
	}

	if item.PlasticBag {
		lc.ICBPERUnit = e.icbperAmount
		lc.ICBPER = e.icbperAmount.Mul(item.Quantity).Round(2)
	}

	lc.Gross = lc.NetValue.Add(lc.IGV).Add(lc.ISC).Add(lc.ICBPER)

	if item.Quantity.IsPositive() {
		lc.UnitPriceWithTaxes = lc.Gross.Div(item.Quantity).Round(2)
	} else {
		lc.UnitPriceWithTaxes = decimal.Zero
	}
	return lc, nil
}

// ComputeDocumentTotals agrupa por categoría y suma impuestos de todas las líneas.
// Las líneas gratuitas se acumulan en FreeSubtotal sin importar su familia.
func (e *Engine) ComputeDocumentTotals(lines []LineComputation) DocumentTotals {
	t := DocumentTotals{
		TaxedSubtotal:      decimal.Zero,
		ExemptSubtotal:     decimal.Zero,
		UnaffectedSubtotal: decimal.Zero,
		ExportSubtotal:     decimal.Zero,
		FreeSubtotal:       decimal.Zero,
		TotalIGV:           decimal.Zero,
		TotalISC:           decimal.Zero,
		TotalICBPER:        decimal.Zero,
		FreeIGV:            decimal.Zero,
		TaxedIGVBase:       decimal.Zero,
		LineCount:          len(lines),
	}
	for _, l := range lines {
		family, _, _ := sunat.LookupAffectation(l.AffectationCode)
		switch {
		case l.Free:
			t.FreeSubtotal = t.FreeSubtotal.Add(l.NetValue)
			t.FreeIGV = t.FreeIGV.Add(l.IGV)
		case family == sunat.FamilyTaxed:
			t.TaxedSubtotal = t.TaxedSubtotal.Add(l.NetValue)
			t.TaxedIGVBase = t.TaxedIGVBase.Add(l.IGVBase)
		case family == sunat.FamilyExempt:
			t.ExemptSubtotal = t.ExemptSubtotal.Add(l.NetValue)
		case family == sunat.FamilyUnaffected:
			t.UnaffectedSubtotal = t.UnaffectedSubtotal.Add(l.NetValue)
		case family == sunat.FamilyExport:
			t.ExportSubtotal = t.ExportSubtotal.Add(l.NetValue)
		}
		t.TotalIGV = t.TotalIGV.Add(l.IGV)
		t.TotalISC = t.TotalISC.Add(l.ISC)
		t.TotalICBPER = t.TotalICBPER.Add(l.ICBPER)
	}
	t.GrandTotal = t.SubtotalSum().Add(t.TaxSum())
	t.PayableAmount = t.OnerousSubtotal().Add(t.ChargedTaxSum())
	return t
}

// ComputeAll calcula todas las líneas y sus totales; falla en la primera línea inválida.
func (e *Engine) ComputeAll(items []LineItem) ([]LineComputation, DocumentTotals, error) {
	lines := make([]LineComputation, 0, len(items))
	for i, it := range items {
		lc, err := e.ComputeLine(it)
		if err != nil {
			return nil, DocumentTotals{}, fmt.Errorf("línea %d: %w", i+1, err)
		}
		lines = append(lines, lc)
	}
	return lines, e.ComputeDocumentTotals(lines), nil
}
