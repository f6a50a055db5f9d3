// Package pdf implementa la representación impresa del comprobante electrónico SUNAT.
//
// Layout de la página A4:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  HEADER: Razón Social + dirección │ RUC / TIPO / SERIE-NÚM   │
//	│  ─────────────────────────────────────────────────────────  │
//	│  ADQUIRIENTE: Nombre + documento + fecha + moneda           │
//	│  (notas) Comprobante afectado + motivo                      │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TABLA: Cant | Unid | Descripción | V.Unit | Afect | Importe │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TOTALES: Gravada / Exonerada / Inafecta / IGV / TOTAL      │
//	│  SON: monto en letras                                       │
//	│  ─────────────────────────────────────────────────────────  │
//	│  FOOTER: QR + hash + leyenda                                │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"fmt"
	"strings"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/facturacion-sunat/internal/domain/cpe"
	"github.com/jhoicas/facturacion-sunat/internal/domain/entity"
	"github.com/jhoicas/facturacion-sunat/internal/domain/tax"
	"github.com/jhoicas/facturacion-sunat/pkg/sunat"
)

// ── Paleta de colores ─────────────────────────────────────────────────────────

var (
	colorPrimary = &props.Color{Red: 170, Green: 20, Blue: 30}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
	colorWhite   = &props.Color{Red: 255, Green: 255, Blue: 255}
)

// ── Generator ─────────────────────────────────────────────────────────────────

// MarotoPDFGenerator implementa billing.DocumentPDFGenerator usando Maroto v2.
type MarotoPDFGenerator struct {
	engine *tax.Engine
}

// NewMarotoPDFGenerator construye el generador. engine nil usa las tasas por defecto.
func NewMarotoPDFGenerator(engine *tax.Engine) *MarotoPDFGenerator {
	if engine == nil {
		engine = tax.NewEngine(tax.DefaultICBPERAmount)
	}
	return &MarotoPDFGenerator{engine: engine}
}

// Generate genera el PDF del comprobante firmado (o simulado) y devuelve sus bytes.
func (g *MarotoPDFGenerator) Generate(doc *entity.Document) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("pdf: comprobante nulo")
	}
	lines := make([]tax.LineComputation, 0, len(doc.Lines))
	for _, item := range doc.Lines {
		lc, err := g.engine.ComputeLine(item)
		if err != nil {
			return nil, fmt.Errorf("pdf: %w", err)
		}
		lines = append(lines, lc)
	}

	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle(documentTitle(doc.Header.TypeCode), true).
		WithAuthor(doc.Supplier.Name, true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(headerRow(doc))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(customerRow(doc))
	if doc.Header.IsNote() && doc.Header.Reference != nil {
		m.AddRows(referenceRow(doc.Header))
	}
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))

	m.AddRows(tableHeaderRow())
	for _, r := range tableDetailRows(doc.Lines, lines) {
		m.AddRows(r)
	}

	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
	m.AddRows(totalsRow(doc.Totals, doc.Header.Currency))
	m.AddRows(amountInWordsRow(doc.Totals.PayableAmount, doc.Header.Currency))

	m.AddRows(line.NewRow(3))
	m.AddRows(line.NewRow(1, props.Line{Color: colorGray, Thickness: 0.3}))
	for _, r := range footerRows(doc) {
		m.AddRows(r)
	}

	out, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar documento: %w", err)
	}
	return out.GetBytes(), nil
}

// ── Secciones ─────────────────────────────────────────────────────────────────

// headerRow: emisor (izq) y recuadro RUC / tipo / serie-número (der).
func headerRow(doc *entity.Document) core.Row {
	s := doc.Supplier
	return row.New(22).Add(
		col.New(7).Add(
			text.New(s.Name, props.Text{
				Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1,
			}),
			text.New(nonEmpty(s.TradeName, ""), props.Text{
				Size: 9, Top: 8, Color: colorGray,
			}),
			text.New(address(s), props.Text{
				Size: 8, Top: 13, Color: colorGray,
			}),
		),
		col.New(5).Add(
			text.New("R.U.C. "+s.ID, props.Text{
				Style: fontstyle.Bold, Size: 11, Align: align.Center, Top: 1,
			}),
			text.New(documentTitle(doc.Header.TypeCode), props.Text{
				Style: fontstyle.Bold, Size: 9, Align: align.Center,
				Color: colorPrimary, Top: 8,
			}),
			text.New(doc.Header.DocumentID(), props.Text{
				Style: fontstyle.Bold, Size: 11, Align: align.Center, Top: 15,
			}),
		),
	)
}

// customerRow: adquiriente, fechas y moneda.
func customerRow(doc *entity.Document) core.Row {
	h := doc.Header
	due := ""
	if h.DueDate != nil {
		due = "   |   Vencimiento: " + h.DueDate.Format("02/01/2006")
	}
	payment := ""
	if h.PaymentMethod != "" {
		payment = "   |   Forma de pago: " + h.PaymentMethod
	}
	return row.New(18).Add(
		col.New(12).Add(
			text.New("ADQUIRIENTE", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
			text.New(doc.Customer.Name, props.Text{
				Style: fontstyle.Bold, Size: 10, Top: 6,
			}),
			text.New(fmt.Sprintf("%s: %s   |   Dirección: %s",
				identityLabel(doc.Customer.IdentityType),
				nonEmpty(doc.Customer.ID, "-"),
				nonEmpty(doc.Customer.Address, "-"),
			), props.Text{Size: 8, Top: 11, Color: colorGray}),
			text.New(fmt.Sprintf("Emisión: %s%s   |   Moneda: %s%s",
				h.IssueDate.Format("02/01/2006"), due, currencyName(h.Currency), payment,
			), props.Text{Size: 8, Top: 15, Color: colorGray}),
		),
	)
}

// referenceRow: comprobante afectado y motivo de la nota.
func referenceRow(h entity.DocumentHeader) core.Row {
	reasons := sunat.CreditNoteReasons
	if h.TypeCode == sunat.DocTypeDebitNote {
		reasons = sunat.DebitNoteReasons
	}
	motivo := nonEmpty(h.NoteReasonDetails, reasons[h.NoteReasonCode])
	return row.New(10).Add(
		col.New(12).Add(
			text.New(fmt.Sprintf("Documento que modifica: %s %s",
				documentTitle(h.Reference.TypeCode), h.Reference.ID(),
			), props.Text{Size: 8, Top: 1}),
			text.New(fmt.Sprintf("Motivo (%s): %s", h.NoteReasonCode, motivo),
				props.Text{Size: 8, Top: 5, Color: colorGray}),
		),
	)
}

// tableHeaderRow: cabecera de la tabla de detalles.
func tableHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a,
			Color: colorWhite, Top: 2, Left: 1, Right: 1,
		})).WithStyle(&props.Cell{BackgroundColor: colorPrimary})
	}
	return row.New(8).Add(
		h("Cant.", 1, align.Center),
		h("Unid.", 1, align.Center),
		h("Descripción", 5, align.Left),
		h("V. Unit.", 2, align.Right),
		h("Afect.", 1, align.Center),
		h("Importe", 2, align.Right),
	)
}

// tableDetailRows: una fila por línea; el importe es el precio de venta de la línea.
func tableDetailRows(items []tax.LineItem, lines []tax.LineComputation) []core.Row {
	result := make([]core.Row, 0, len(items))
	for i, item := range items {
		lc := lines[i]
		desc := item.Description
		if lc.Free {
			desc += " (transferencia gratuita)"
		}
		result = append(result, row.New(7).Add(
			col.New(1).Add(text.New(
				item.Quantity.String(),
				props.Text{Size: 8, Align: align.Center, Top: 1},
			)),
			col.New(1).Add(text.New(
				item.UnitCode,
				props.Text{Size: 8, Align: align.Center, Top: 1},
			)),
			col.New(5).Add(text.New(
				desc,
				props.Text{Size: 8, Align: align.Left, Top: 1, Left: 1},
			)),
			col.New(2).Add(text.New(
				formatMoney(lc.UnitValue),
				props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1},
			)),
			col.New(1).Add(text.New(
				item.AffectationCode,
				props.Text{Size: 8, Align: align.Center, Top: 1},
			)),
			col.New(2).Add(text.New(
				formatMoney(lc.Gross),
				props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1},
			)),
		))
	}
	return result
}

type totalLine struct {
	label string
	value decimal.Decimal
}

// totalsRow: solo se imprimen los conceptos con importe.
func totalsRow(t tax.DocumentTotals, currency string) core.Row {
	symbol := currencySymbol(currency)
	entries := []totalLine{
		{"Op. Gravada:", t.TaxedSubtotal},
		{"Op. Exonerada:", t.ExemptSubtotal},
		{"Op. Inafecta:", t.UnaffectedSubtotal},
		{"Exportación:", t.ExportSubtotal},
		{"Op. Gratuita:", t.FreeSubtotal},
		{"ISC:", t.TotalISC},
		{"IGV (18%):", t.TotalIGV.Sub(t.FreeIGV)},
		{"ICBPER:", t.TotalICBPER},
	}

	labels := make([]core.Component, 0, len(entries)+1)
	values := make([]core.Component, 0, len(entries)+1)
	top := 0.0
	for _, e := range entries {
		if e.value.IsZero() && e.label != "IGV (18%):" {
			continue
		}
		labels = append(labels, text.New(e.label, props.Text{
			Style: fontstyle.Bold, Size: 9, Align: align.Right, Right: 2, Top: top,
		}))
		values = append(values, text.New(symbol+" "+formatMoney(e.value), props.Text{
			Size: 9, Align: align.Right, Right: 1, Top: top,
		}))
		top += 5
	}
	labels = append(labels, text.New("IMPORTE TOTAL:", props.Text{
		Style: fontstyle.Bold, Size: 10, Align: align.Right,
		Color: colorPrimary, Right: 2, Top: top + 1,
	}))
	values = append(values, text.New(symbol+" "+formatMoney(t.PayableAmount), props.Text{
		Style: fontstyle.Bold, Size: 10, Align: align.Right,
		Color: colorPrimary, Right: 1, Top: top + 1,
	}))

	return row.New(top+10).Add(
		col.New(6),
		col.New(3).Add(labels...),
		col.New(3).Add(values...),
	)
}

func amountInWordsRow(total decimal.Decimal, currency string) core.Row {
	return row.New(8).Add(col.New(12).Add(
		text.New(sunat.AmountInWords(total, currency), props.Text{
			Style: fontstyle.Bold, Size: 8, Top: 2,
		}),
	))
}

// footerRows: QR (RUC|TIPO|SERIE|NUMERO|IGV|TOTAL|FECHA|TIPODOC|NUMDOC|HASH), hash y leyenda.
func footerRows(doc *entity.Document) []core.Row {
	legend := "Representación impresa del " + strings.ToLower(documentTitle(doc.Header.TypeCode)) + "."
	if doc.SignatureMode == sunat.SignatureModeSimulated {
		legend = "DOCUMENTO SIN FIRMA DIGITAL: no tiene validez tributaria."
	}

	return []core.Row{
		row.New(45).Add(
			col.New(4).Add(code.NewQr(cpe.QRData(doc), props.Rect{
				Percent: 95,
				Center:  true,
			})),
			col.New(8).Add(
				text.New("Resumen (hash):", props.Text{
					Style: fontstyle.Bold, Size: 8, Top: 4, Left: 3,
				}),
				text.New(doc.ContentHash, props.Text{
					Size: 8, Top: 9, Left: 3, Color: colorGray,
				}),
				text.New(legend, props.Text{
					Style: fontstyle.Bold, Size: 9, Top: 18, Left: 3, Color: colorPrimary,
				}),
				text.New("Consulte su comprobante en www.sunat.gob.pe", props.Text{
					Size: 8, Top: 26, Left: 3, Color: colorGray,
				}),
			),
		),
	}
}

// ── helpers ───────────────────────────────────────────────────────────────────

func documentTitle(typeCode string) string {
	return nonEmpty(sunat.DocumentTypeNames[typeCode], "COMPROBANTE ELECTRÓNICO")
}

func identityLabel(identityType string) string {
	switch identityType {
	case sunat.IdentityRUC:
		return "RUC"
	case sunat.IdentityDNI:
		return "DNI"
	}
	return "Doc."
}

func currencyName(code string) string {
	if name, ok := sunat.CurrencyNames[code]; ok {
		return code + " (" + name + ")"
	}
	return code
}

func currencySymbol(code string) string {
	switch code {
	case sunat.CurrencyPEN:
		return "S/"
	case "USD":
		return "US$"
	}
	return code
}

func address(p entity.Party) string {
	parts := []string{}
	for _, s := range []string{p.Address, p.District, p.Province, p.Department} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " - ")
}

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}

// formatMoney dos decimales con comas de miles: 1234567.5 → "1,234,567.50".
func formatMoney(d decimal.Decimal) string {
	s := d.StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	intPart, frac, _ := strings.Cut(s, ".")

	n := len(intPart)
	buf := make([]byte, 0, n+n/3+3)
	for i, c := range []byte(intPart) {
		if i > 0 && (n-i)%3 == 0 {
			buf = append(buf, ',')
		}
		buf = append(buf, c)
	}
	out := string(buf) + "." + frac
	if neg {
		return "-" + out
	}
	return out
}
