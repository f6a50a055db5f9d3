package sunat

import (
	"fmt"
	"strconv"

	"github.com/beevik/etree"
	"github.com/jhoicas/facturacion-sunat/internal/domain/entity"
	"github.com/jhoicas/facturacion-sunat/internal/domain/tax"
	pkgsunat "github.com/jhoicas/facturacion-sunat/pkg/sunat"
	"github.com/shopspring/decimal"
)

// XMLBuilder construye el XML UBL 2.1 sin firmar de un comprobante.
// La ranura ext:ExtensionContent queda vacía para que el firmador inyecte ds:Signature.
type XMLBuilder struct {
	engine   *tax.Engine
	registry *Registry
}

// NewXMLBuilder crea el constructor. Con registry nil se usan las cuatro variantes por defecto.
func NewXMLBuilder(engine *tax.Engine, registry *Registry) *XMLBuilder {
	if engine == nil {
		engine = tax.NewEngine(decimal.Zero)
	}
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &XMLBuilder{engine: engine, registry: registry}
}

// Registry variantes que el constructor sabe emitir.
func (b *XMLBuilder) Registry() *Registry { return b.registry }

// Build genera el XML del comprobante. Los totales deben venir del mismo motor de impuestos;
// las líneas se recalculan para escribir el detalle.
func (b *XMLBuilder) Build(h entity.DocumentHeader, supplier, customer entity.Party, lines []tax.LineItem, totals tax.DocumentTotals) ([]byte, error) {
	variant, err := b.registry.Lookup(h.TypeCode)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("xml: el comprobante %s no tiene líneas", h.DocumentID())
	}
	computed := make([]tax.LineComputation, 0, len(lines))
	for i, item := range lines {
		lc, err := b.engine.ComputeLine(item)
		if err != nil {
			return nil, fmt.Errorf("xml: línea %d: %w", i+1, err)
		}
		computed = append(computed, lc)
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement(variant.RootName())
	root.CreateAttr("xmlns", variant.Namespace())
	root.CreateAttr("xmlns:cac", NamespaceCAC)
	root.CreateAttr("xmlns:cbc", NamespaceCBC)
	root.CreateAttr("xmlns:ds", NamespaceDS)
	root.CreateAttr("xmlns:ext", NamespaceEXT)

	// ext:UBLExtensions siempre primer hijo: el firmador inyecta la firma aquí.
	root.CreateElement("ext:UBLExtensions").
		CreateElement("ext:UBLExtension").
		CreateElement("ext:ExtensionContent")

	cbc(root, "UBLVersionID", UBLVersion)
	cbc(root, "CustomizationID", CustomizationID).CreateAttr("schemeAgencyName", agencySUNAT)
	if variant.HasProfile() {
		p := cbc(root, "ProfileID", operationType(h))
		p.CreateAttr("schemeName", "Tipo de Operacion")
		p.CreateAttr("schemeAgencyName", agencySUNAT)
		p.CreateAttr("schemeURI", catalogURIPrefix+"17")
	}
	cbc(root, "ID", h.DocumentID())
	cbc(root, "IssueDate", h.IssueDate.Format("2006-01-02"))
	cbc(root, "IssueTime", h.IssueDate.Format("15:04:05"))
	if err := variant.WriteHeader(root, h); err != nil {
		return nil, err
	}

	b.writeLegends(root, h, totals)
	cur := cbc(root, "DocumentCurrencyCode", h.Currency)
	cur.CreateAttr("listID", "ISO 4217 Alpha")
	cur.CreateAttr("listName", "Currency")
	cur.CreateAttr("listAgencyName", agencyUNECE)
	cbc(root, "LineCountNumeric", strconv.Itoa(len(lines)))

	if err := variant.WriteReferences(root, h); err != nil {
		return nil, err
	}

	writeSignatory(root, supplier)
	writeParty(root.CreateElement("cac:AccountingSupplierParty"), supplier, true)
	writeParty(root.CreateElement("cac:AccountingCustomerParty"), customer, false)

	if err := variant.WritePaymentTerms(root, h, totals); err != nil {
		return nil, err
	}

	b.writeTaxTotal(root, h.Currency, computed, totals)
	writeMonetaryTotal(root.CreateElement("cac:"+variant.MonetaryTotalElement()), h.Currency, totals)

	for i := range lines {
		b.writeLine(root, variant, i+1, lines[i], computed[i], h.Currency)
	}

	doc.Indent(2)
	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("xml: serializar: %w", err)
	}
	return out, nil
}

// ── Cabecera ─────────────────────────────────────────────────────────────────

func (b *XMLBuilder) writeLegends(root *etree.Element, h entity.DocumentHeader, totals tax.DocumentTotals) {
	n := cbc(root, "Note", pkgsunat.AmountInWords(totals.PayableAmount, h.Currency))
	n.CreateAttr("languageLocaleID", pkgsunat.LegendAmountInWords)
	if totals.FreeSubtotal.IsPositive() {
		f := cbc(root, "Note", pkgsunat.LegendFreeTransferText)
		f.CreateAttr("languageLocaleID", pkgsunat.LegendFreeTransfer)
	}
}

// writeSignatory bloque cac:Signature. Su cbc:ID lleva el RUC del firmante; el firmador lo corrige.
func writeSignatory(root *etree.Element, supplier entity.Party) {
	sig := root.CreateElement("cac:Signature")
	cbc(sig, "ID", supplier.ID)
	sp := sig.CreateElement("cac:SignatoryParty")
	cbc(sp.CreateElement("cac:PartyIdentification"), "ID", supplier.ID)
	cbc(sp.CreateElement("cac:PartyName"), "Name", supplier.Name)
	ext := sig.CreateElement("cac:DigitalSignatureAttachment").CreateElement("cac:ExternalReference")
	cbc(ext, "URI", "#"+pkgsunat.SignatureID)
}

func writeParty(container *etree.Element, p entity.Party, supplier bool) {
	party := container.CreateElement("cac:Party")
	id := cbc(party.CreateElement("cac:PartyIdentification"), "ID", p.ID)
	id.CreateAttr("schemeID", p.IdentityType)
	id.CreateAttr("schemeName", "Documento de Identidad")
	id.CreateAttr("schemeAgencyName", agencySUNAT)
	id.CreateAttr("schemeURI", catalogURIPrefix+"06")

	if p.TradeName != "" {
		cbc(party.CreateElement("cac:PartyName"), "Name", p.TradeName)
	}

	legal := party.CreateElement("cac:PartyLegalEntity")
	cbc(legal, "RegistrationName", p.Name)
	if supplier {
		addr := legal.CreateElement("cac:RegistrationAddress")
		if p.Ubigeo != "" {
			u := cbc(addr, "ID", p.Ubigeo)
			u.CreateAttr("schemeName", "Ubigeos")
			u.CreateAttr("schemeAgencyName", "PE:INEI")
		}
		est := p.EstablishmentCode
		if est == "" {
			est = "0000"
		}
		cbc(addr, "AddressTypeCode", est)
		if p.Province != "" {
			cbc(addr, "CityName", p.Province)
		}
		if p.Department != "" {
			cbc(addr, "CountrySubentity", p.Department)
		}
		if p.District != "" {
			cbc(addr, "District", p.District)
		}
		if p.Address != "" {
			cbc(addr.CreateElement("cac:AddressLine"), "Line", p.Address)
		}
		country := p.CountryCode
		if country == "" {
			country = "PE"
		}
		cbc(addr.CreateElement("cac:Country"), "IdentificationCode", country)
	} else if p.Address != "" {
		cbc(legal.CreateElement("cac:RegistrationAddress").CreateElement("cac:AddressLine"), "Line", p.Address)
	}
}

// ── Totales ──────────────────────────────────────────────────────────────────

func (b *XMLBuilder) writeTaxTotal(root *etree.Element, currency string, lines []tax.LineComputation, t tax.DocumentTotals) {
	tt := root.CreateElement("cac:TaxTotal")
	amount(tt, "TaxAmount", t.ChargedTaxSum(), currency)

	if t.TaxedSubtotal.IsPositive() || t.TaxedIGVBase.IsPositive() {
		writeSubtotal(tt, currency, t.TaxedIGVBase, t.TotalIGV.Sub(t.FreeIGV), pkgsunat.SchemeIGV)
	}
	if t.ExportSubtotal.IsPositive() {
		writeSubtotal(tt, currency, t.ExportSubtotal, decimal.Zero, pkgsunat.SchemeExport)
	}
	if t.ExemptSubtotal.IsPositive() {
		writeSubtotal(tt, currency, t.ExemptSubtotal, decimal.Zero, pkgsunat.SchemeExempt)
	}
	if t.UnaffectedSubtotal.IsPositive() {
		writeSubtotal(tt, currency, t.UnaffectedSubtotal, decimal.Zero, pkgsunat.SchemeUnaff)
	}
	if t.FreeSubtotal.IsPositive() {
		writeSubtotal(tt, currency, t.FreeSubtotal, t.FreeIGV, pkgsunat.SchemeFree)
	}
	if t.TotalISC.IsPositive() {
		base := decimal.Zero
		for _, l := range lines {
			if l.ISC.IsPositive() {
				base = base.Add(l.NetValue)
			}
		}
		writeSubtotal(tt, currency, base, t.TotalISC, pkgsunat.SchemeISC)
	}
	if t.TotalICBPER.IsPositive() {
		writeSubtotal(tt, currency, decimal.Zero, t.TotalICBPER, pkgsunat.SchemeICBPER)
	}
}

// writeSubtotal cac:TaxSubtotal. La base se omite para ICBPER (tributo por unidad).
func writeSubtotal(tt *etree.Element, currency string, taxable, taxAmount decimal.Decimal, scheme pkgsunat.TaxScheme) {
	st := tt.CreateElement("cac:TaxSubtotal")
	if scheme != pkgsunat.SchemeICBPER {
		amount(st, "TaxableAmount", taxable, currency)
	}
	amount(st, "TaxAmount", taxAmount, currency)
	writeScheme(st.CreateElement("cac:TaxCategory"), scheme)
}

func writeScheme(cat *etree.Element, scheme pkgsunat.TaxScheme) {
	ts := cat.CreateElement("cac:TaxScheme")
	id := cbc(ts, "ID", scheme.ID)
	id.CreateAttr("schemeName", "Codigo de tributos")
	id.CreateAttr("schemeAgencyName", agencySUNAT)
	id.CreateAttr("schemeURI", catalogURIPrefix+"05")
	cbc(ts, "Name", scheme.Name)
	cbc(ts, "TaxTypeCode", scheme.TypeCode)
}

func writeMonetaryTotal(mt *etree.Element, currency string, t tax.DocumentTotals) {
	amount(mt, "LineExtensionAmount", t.OnerousSubtotal(), currency)
	amount(mt, "TaxInclusiveAmount", t.PayableAmount, currency)
	amount(mt, "PayableAmount", t.PayableAmount, currency)
}

// ── Líneas ───────────────────────────────────────────────────────────────────

func (b *XMLBuilder) writeLine(root *etree.Element, variant DocumentVariant, n int, item tax.LineItem, lc tax.LineComputation, currency string) {
	line := root.CreateElement("cac:" + variant.LineElement())
	cbc(line, "ID", strconv.Itoa(n))
	q := cbc(line, variant.QuantityElement(), lc.Quantity.String())
	q.CreateAttr("unitCode", unitOrDefault(item.UnitCode))
	q.CreateAttr("unitCodeListID", "UN/ECE rec 20")
	q.CreateAttr("unitCodeListAgencyName", agencyUNECE)

	amount(line, "LineExtensionAmount", lc.NetValue, currency)

	alt := line.CreateElement("cac:PricingReference").CreateElement("cac:AlternativeConditionPrice")
	if lc.Free {
		amount(alt, "PriceAmount", lc.UnitValue, currency)
		priceType(alt, pkgsunat.PriceTypeReferential)
	} else {
		amount(alt, "PriceAmount", lc.UnitPriceWithTaxes, currency)
		priceType(alt, pkgsunat.PriceTypeUnitWithTaxes)
	}

	tt := line.CreateElement("cac:TaxTotal")
	amount(tt, "TaxAmount", lc.IGV.Add(lc.ISC).Add(lc.ICBPER), currency)

	if lc.ISC.IsPositive() {
		writeSubtotal(tt, currency, lc.NetValue, lc.ISC, pkgsunat.SchemeISC)
	}

	scheme, category := pkgsunat.SchemeForAffectation(lc.AffectationCode)
	base := lc.NetValue
	percent := "0"
	if pkgsunat.AppliesIGV(lc.AffectationCode) {
		base = lc.IGVBase
		percent = lc.IGVRate.Mul(decimal.NewFromInt(100)).StringFixed(2)
	}
	st := tt.CreateElement("cac:TaxSubtotal")
	amount(st, "TaxableAmount", base, currency)
	amount(st, "TaxAmount", lc.IGV, currency)
	cat := st.CreateElement("cac:TaxCategory")
	cbc(cat, "ID", category)
	cbc(cat, "Percent", percent)
	ex := cbc(cat, "TaxExemptionReasonCode", lc.AffectationCode)
	ex.CreateAttr("listAgencyName", agencySUNAT)
	ex.CreateAttr("listName", "Afectacion del IGV")
	ex.CreateAttr("listURI", catalogURIPrefix+"07")
	writeScheme(cat, scheme)

	if lc.ICBPER.IsPositive() {
		ist := tt.CreateElement("cac:TaxSubtotal")
		amount(ist, "TaxAmount", lc.ICBPER, currency)
		bu := cbc(ist, "BaseUnitMeasure", lc.Quantity.String())
		bu.CreateAttr("unitCode", pkgsunat.UnitProduct)
		icat := ist.CreateElement("cac:TaxCategory")
		amount(icat, "PerUnitAmount", lc.ICBPERUnit, currency)
		writeScheme(icat, pkgsunat.SchemeICBPER)
	}

	itm := line.CreateElement("cac:Item")
	cbc(itm, "Description", item.Description)
	if item.ProductCode != "" {
		cbc(itm.CreateElement("cac:SellersItemIdentification"), "ID", item.ProductCode)
	}

	price := decimal.Zero
	if !lc.Free {
		price = lc.UnitValue
	}
	amount(line.CreateElement("cac:Price"), "PriceAmount", price, currency)
}

// ── helpers ──────────────────────────────────────────────────────────────────

func cbc(parent *etree.Element, local, value string) *etree.Element {
	el := parent.CreateElement("cbc:" + local)
	el.SetText(value)
	return el
}

// amount monto con currencyID y dos decimales.
func amount(parent *etree.Element, local string, v decimal.Decimal, currency string) *etree.Element {
	el := cbc(parent, local, v.StringFixed(2))
	el.CreateAttr("currencyID", currency)
	return el
}

func priceType(parent *etree.Element, code string) {
	el := cbc(parent, "PriceTypeCode", code)
	el.CreateAttr("listName", "Tipo de Precio")
	el.CreateAttr("listAgencyName", agencySUNAT)
	el.CreateAttr("listURI", catalogURIPrefix+"16")
}

func unitOrDefault(u string) string {
	if u == "" {
		return pkgsunat.UnitProduct
	}
	return u
}
