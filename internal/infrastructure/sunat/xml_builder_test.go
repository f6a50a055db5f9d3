package sunat_test

import (
	"errors"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/jhoicas/facturacion-sunat/internal/domain"
	"github.com/jhoicas/facturacion-sunat/internal/domain/entity"
	"github.com/jhoicas/facturacion-sunat/internal/domain/tax"
	infrasunat "github.com/jhoicas/facturacion-sunat/internal/infrastructure/sunat"
	pkgsunat "github.com/jhoicas/facturacion-sunat/pkg/sunat"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testSupplier = entity.Party{
		IdentityType: pkgsunat.IdentityRUC,
		ID:           "20100066603",
		Name:         "EMPRESA DEMO S.A.C.",
		Address:      "AV. LOS PINOS 123",
		Ubigeo:       "150101",
		District:     "LIMA",
		Province:     "LIMA",
		Department:   "LIMA",
	}
	testCustomer = entity.Party{
		IdentityType: pkgsunat.IdentityRUC,
		ID:           "20601030013",
		Name:         "CLIENTE DEMO E.I.R.L.",
	}
)

func testHeader(typeCode, series string) entity.DocumentHeader {
	return entity.DocumentHeader{
		TypeCode:  typeCode,
		Series:    series,
		Number:    1,
		IssueDate: time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC),
		Currency:  pkgsunat.CurrencyPEN,
	}
}

func taxedLine() tax.LineItem {
	return tax.LineItem{
		ProductCode:     "P001",
		Description:     "Producto gravado",
		UnitCode:        pkgsunat.UnitProduct,
		Quantity:        decimal.NewFromInt(2),
		UnitPrice:       decimal.RequireFromString("100.00"),
		AffectationCode: pkgsunat.AffectTaxed,
	}
}

func build(t *testing.T, h entity.DocumentHeader, lines ...tax.LineItem) *etree.Element {
	t.Helper()
	engine := tax.NewEngine(decimal.Zero)
	_, totals, err := engine.ComputeAll(lines)
	require.NoError(t, err)

	out, err := infrasunat.NewXMLBuilder(engine, nil).Build(h, testSupplier, testCustomer, lines, totals)
	require.NoError(t, err)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(out))
	require.NotNil(t, doc.Root())
	return doc.Root()
}

func TestBuild_Factura(t *testing.T) {
	root := build(t, testHeader(pkgsunat.DocTypeInvoice, "F001"), taxedLine())

	assert.Equal(t, "Invoice", root.Tag)
	assert.Equal(t, infrasunat.NamespaceInvoice, root.SelectAttrValue("xmlns", ""))

	children := root.ChildElements()
	require.NotEmpty(t, children)
	assert.Equal(t, "UBLExtensions", children[0].Tag, "la ranura de extensión debe ser el primer hijo")
	content := root.FindElement("./ext:UBLExtensions/ext:UBLExtension/ext:ExtensionContent")
	require.NotNil(t, content)
	assert.Empty(t, content.ChildElements())

	assert.Equal(t, "F001-00000001", root.FindElement("./cbc:ID").Text())
	assert.Equal(t, "2024-03-15", root.FindElement("./cbc:IssueDate").Text())
	typeCode := root.FindElement("./cbc:InvoiceTypeCode")
	require.NotNil(t, typeCode)
	assert.Equal(t, "01", typeCode.Text())
	assert.Equal(t, pkgsunat.OperationDomesticSale, typeCode.SelectAttrValue("listID", ""))

	assert.Equal(t, "36.00", root.FindElement("./cac:TaxTotal/cbc:TaxAmount").Text())
	assert.Equal(t, "200.00", root.FindElement("./cac:LegalMonetaryTotal/cbc:LineExtensionAmount").Text())
	assert.Equal(t, "236.00", root.FindElement("./cac:LegalMonetaryTotal/cbc:PayableAmount").Text())

	lines := root.FindElements("./cac:InvoiceLine")
	require.Len(t, lines, 1)
	assert.Equal(t, "2", lines[0].FindElement("./cbc:InvoicedQuantity").Text())
	assert.Equal(t, "118.00", lines[0].FindElement("./cac:PricingReference/cac:AlternativeConditionPrice/cbc:PriceAmount").Text())
	assert.Equal(t, "10", lines[0].FindElement(".//cbc:TaxExemptionReasonCode").Text())
	assert.Equal(t, "18.00", lines[0].FindElement(".//cac:TaxCategory/cbc:Percent").Text())

	note := root.FindElement("./cbc:Note[@languageLocaleID='1000']")
	require.NotNil(t, note)
	assert.Contains(t, note.Text(), "DOSCIENTOS TREINTA Y SEIS")

	pt := root.FindElement("./cac:PaymentTerms/cbc:PaymentMeansID")
	require.NotNil(t, pt)
	assert.Equal(t, entity.PaymentCash, pt.Text())
}

func TestBuild_FirmanteEnBloqueSignature(t *testing.T) {
	root := build(t, testHeader(pkgsunat.DocTypeInvoice, "F001"), taxedLine())
	sig := root.FindElement("./cac:Signature")
	require.NotNil(t, sig)
	assert.Equal(t, testSupplier.ID, sig.FindElement("./cbc:ID").Text())
	assert.Equal(t, testSupplier.ID, sig.FindElement("./cac:SignatoryParty/cac:PartyIdentification/cbc:ID").Text())
	assert.Equal(t, "#"+pkgsunat.SignatureID, sig.FindElement(".//cbc:URI").Text())
}

func TestBuild_FacturaCredito(t *testing.T) {
	h := testHeader(pkgsunat.DocTypeInvoice, "F001")
	h.PaymentMethod = entity.PaymentCredit
	due := h.IssueDate.AddDate(0, 1, 0)
	h.DueDate = &due
	h.Installments = []entity.Installment{{Amount: decimal.RequireFromString("236.00"), DueDate: due}}

	root := build(t, h, taxedLine())
	terms := root.FindElements("./cac:PaymentTerms")
	require.Len(t, terms, 2)
	assert.Equal(t, entity.PaymentCredit, terms[0].FindElement("./cbc:PaymentMeansID").Text())
	assert.Equal(t, "Cuota001", terms[1].FindElement("./cbc:PaymentMeansID").Text())
	assert.Equal(t, "2024-04-15", terms[1].FindElement("./cbc:PaymentDueDate").Text())
	assert.Equal(t, "2024-04-15", root.FindElement("./cbc:DueDate").Text())
}

func TestBuild_Boleta(t *testing.T) {
	root := build(t, testHeader(pkgsunat.DocTypeBoleta, "B001"), taxedLine())
	assert.Equal(t, "Invoice", root.Tag)
	assert.Equal(t, "03", root.FindElement("./cbc:InvoiceTypeCode").Text())
	assert.Nil(t, root.FindElement("./cac:PaymentTerms"))
}

func TestBuild_NotaDeCredito(t *testing.T) {
	h := testHeader(pkgsunat.DocTypeCreditNote, "FC01")
	h.Reference = &entity.DocumentReference{TypeCode: pkgsunat.DocTypeInvoice, Series: "F001", Number: 1}
	h.NoteReasonCode = "01"

	root := build(t, h, taxedLine())
	assert.Equal(t, "CreditNote", root.Tag)
	assert.Nil(t, root.FindElement("./cbc:InvoiceTypeCode"))
	assert.Equal(t, "F001-1", root.FindElement("./cac:DiscrepancyResponse/cbc:ReferenceID").Text())
	assert.Equal(t, "01", root.FindElement("./cac:DiscrepancyResponse/cbc:ResponseCode").Text())
	assert.Equal(t, "F001-1", root.FindElement("./cac:BillingReference/cac:InvoiceDocumentReference/cbc:ID").Text())
	require.Len(t, root.FindElements("./cac:CreditNoteLine"), 1)
	assert.NotNil(t, root.FindElement("./cac:CreditNoteLine/cbc:CreditedQuantity"))
	assert.NotNil(t, root.FindElement("./cac:LegalMonetaryTotal"))
}

func TestBuild_NotaDeDebito(t *testing.T) {
	h := testHeader(pkgsunat.DocTypeDebitNote, "FD01")
	h.Reference = &entity.DocumentReference{TypeCode: pkgsunat.DocTypeInvoice, Series: "F001", Number: 7}
	h.NoteReasonCode = "01"

	root := build(t, h, taxedLine())
	assert.Equal(t, "DebitNote", root.Tag)
	assert.NotNil(t, root.FindElement("./cac:RequestedMonetaryTotal"))
	assert.Nil(t, root.FindElement("./cac:LegalMonetaryTotal"))
	assert.NotNil(t, root.FindElement("./cac:DebitNoteLine/cbc:DebitedQuantity"))
}

func TestBuild_NotaSinReferenciaFalla(t *testing.T) {
	engine := tax.NewEngine(decimal.Zero)
	lines := []tax.LineItem{taxedLine()}
	_, totals, err := engine.ComputeAll(lines)
	require.NoError(t, err)

	h := testHeader(pkgsunat.DocTypeCreditNote, "FC01")
	h.NoteReasonCode = "01"
	_, err = infrasunat.NewXMLBuilder(engine, nil).Build(h, testSupplier, testCustomer, lines, totals)
	require.Error(t, err)
}

func TestBuild_TipoNoSoportado(t *testing.T) {
	engine := tax.NewEngine(decimal.Zero)
	lines := []tax.LineItem{taxedLine()}
	_, totals, err := engine.ComputeAll(lines)
	require.NoError(t, err)

	_, err = infrasunat.NewXMLBuilder(engine, nil).Build(testHeader("09", "T001"), testSupplier, testCustomer, lines, totals)
	require.Error(t, err)

	var unsupported *domain.UnsupportedDocumentTypeError
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, "09", unsupported.TypeCode)
	assert.True(t, errors.Is(err, domain.ErrUnsupportedDocumentType))
}

func TestBuild_LineaGratuitaYBolsa(t *testing.T) {
	free := tax.LineItem{
		Description:     "Muestra gratuita",
		UnitCode:        pkgsunat.UnitProduct,
		Quantity:        decimal.NewFromInt(1),
		UnitPrice:       decimal.RequireFromString("50.00"),
		AffectationCode: pkgsunat.AffectTaxedGift,
	}
	bag := tax.LineItem{
		Description:     "Bolsa plástica",
		UnitCode:        pkgsunat.UnitBag,
		Quantity:        decimal.NewFromInt(2),
		UnitPrice:       decimal.RequireFromString("0.10"),
		AffectationCode: pkgsunat.AffectTaxed,
		PlasticBag:      true,
	}
	root := build(t, testHeader(pkgsunat.DocTypeInvoice, "F001"), taxedLine(), free, bag)

	assert.NotNil(t, root.FindElement("./cbc:Note[@languageLocaleID='1002']"))
	lines := root.FindElements("./cac:InvoiceLine")
	require.Len(t, lines, 3)

	assert.Equal(t, "02", lines[1].FindElement(".//cbc:PriceTypeCode").Text())
	assert.Equal(t, "0.00", lines[1].FindElement("./cac:Price/cbc:PriceAmount").Text())

	perUnit := lines[2].FindElement(".//cbc:PerUnitAmount")
	require.NotNil(t, perUnit)
	assert.Equal(t, "0.50", perUnit.Text())

	var schemes []string
	for _, id := range root.FindElements("./cac:TaxTotal/cac:TaxSubtotal/cac:TaxCategory/cac:TaxScheme/cbc:ID") {
		schemes = append(schemes, id.Text())
	}
	assert.Contains(t, schemes, pkgsunat.SchemeIGV.ID)
	assert.Contains(t, schemes, pkgsunat.SchemeFree.ID)
	assert.Contains(t, schemes, pkgsunat.SchemeICBPER.ID)
}

func TestBuild_LineaGratuitaNoSeCobra(t *testing.T) {
	free := tax.LineItem{
		Description:     "Premio",
		UnitCode:        pkgsunat.UnitProduct,
		Quantity:        decimal.NewFromInt(1),
		UnitPrice:       decimal.RequireFromString("50.00"),
		AffectationCode: pkgsunat.AffectTaxedGift,
	}
	root := build(t, testHeader(pkgsunat.DocTypeInvoice, "F001"), taxedLine(), free)

	value := func(path string) decimal.Decimal {
		el := root.FindElement(path)
		require.NotNil(t, el, path)
		return decimal.RequireFromString(el.Text())
	}
	lineExt := value("./cac:LegalMonetaryTotal/cbc:LineExtensionAmount")
	taxAmount := value("./cac:TaxTotal/cbc:TaxAmount")
	inclusive := value("./cac:LegalMonetaryTotal/cbc:TaxInclusiveAmount")
	payable := value("./cac:LegalMonetaryTotal/cbc:PayableAmount")

	assert.Equal(t, "200.00", lineExt.StringFixed(2))
	assert.Equal(t, "36.00", taxAmount.StringFixed(2), "el IGV del retiro gratuito no se cobra")
	assert.True(t, lineExt.Add(taxAmount).Equal(inclusive), "%s + %s != %s", lineExt, taxAmount, inclusive)
	assert.True(t, inclusive.Equal(payable))
	assert.Equal(t, "236.00", payable.StringFixed(2))

	var freeIGV string
	for _, st := range root.FindElements("./cac:TaxTotal/cac:TaxSubtotal") {
		if st.FindElement("./cac:TaxCategory/cac:TaxScheme/cbc:ID").Text() == pkgsunat.SchemeFree.ID {
			freeIGV = st.FindElement("./cbc:TaxAmount").Text()
		}
	}
	assert.Equal(t, "9.00", freeIGV, "el subtotal gratuito informa su IGV referencial")

	note := root.FindElement("./cbc:Note[@languageLocaleID='1000']")
	require.NotNil(t, note)
	assert.Contains(t, note.Text(), "DOSCIENTOS TREINTA Y SEIS")
}

func TestBuild_CuotasLimitadasAlImporteAPagar(t *testing.T) {
	free := tax.LineItem{
		Description:     "Premio",
		UnitCode:        pkgsunat.UnitProduct,
		Quantity:        decimal.NewFromInt(1),
		UnitPrice:       decimal.RequireFromString("50.00"),
		AffectationCode: pkgsunat.AffectTaxedGift,
	}
	engine := tax.NewEngine(decimal.Zero)
	lines := []tax.LineItem{taxedLine(), free}
	_, totals, err := engine.ComputeAll(lines)
	require.NoError(t, err)

	h := testHeader(pkgsunat.DocTypeInvoice, "F001")
	h.PaymentMethod = entity.PaymentCredit
	due := h.IssueDate.AddDate(0, 1, 0)
	h.DueDate = &due
	h.Installments = []entity.Installment{{Amount: decimal.RequireFromString("295.00"), DueDate: due}}

	_, err = infrasunat.NewXMLBuilder(engine, nil).Build(h, testSupplier, testCustomer, lines, totals)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "236.00")
}

func TestRegistry(t *testing.T) {
	r := infrasunat.DefaultRegistry()
	for _, code := range []string{"01", "03", "07", "08"} {
		v, err := r.Lookup(code)
		require.NoError(t, err, code)
		assert.Equal(t, code, v.TypeCode())
	}
	assert.False(t, r.Supports("20"))

	empty := infrasunat.NewRegistry()
	_, err := empty.Lookup("01")
	assert.ErrorIs(t, err, domain.ErrUnsupportedDocumentType)

	empty.Register(infrasunat.BoletaVariant{})
	assert.True(t, empty.Supports("03"))
}
