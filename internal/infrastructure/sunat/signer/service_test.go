package signer_test

import (
	"bytes"
	"crypto/x509/pkix"
	"errors"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/jhoicas/facturacion-sunat/internal/domain"
	"github.com/jhoicas/facturacion-sunat/internal/domain/entity"
	"github.com/jhoicas/facturacion-sunat/internal/domain/tax"
	infrasunat "github.com/jhoicas/facturacion-sunat/internal/infrastructure/sunat"
	"github.com/jhoicas/facturacion-sunat/internal/infrastructure/sunat/signer"
	pkgsunat "github.com/jhoicas/facturacion-sunat/pkg/sunat"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unsignedInvoice factura cuyo emisor NO coincide con el RUC del certificado de prueba.
func unsignedInvoice(t *testing.T) []byte {
	t.Helper()
	lines := []tax.LineItem{{
		ProductCode:     "P001",
		Description:     "Producto gravado",
		UnitCode:        pkgsunat.UnitProduct,
		Quantity:        decimal.NewFromInt(2),
		UnitPrice:       decimal.RequireFromString("100.00"),
		AffectationCode: pkgsunat.AffectTaxed,
	}}
	engine := tax.NewEngine(decimal.Zero)
	_, totals, err := engine.ComputeAll(lines)
	require.NoError(t, err)

	h := entity.DocumentHeader{
		TypeCode:  pkgsunat.DocTypeInvoice,
		Series:    "F001",
		Number:    1,
		IssueDate: time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC),
		Currency:  pkgsunat.CurrencyPEN,
	}
	supplier := entity.Party{IdentityType: pkgsunat.IdentityRUC, ID: "20601030013", Name: "OTRO EMISOR S.A."}
	customer := entity.Party{IdentityType: pkgsunat.IdentityDNI, ID: "12345678", Name: "CLIENTE"}
	out, err := infrasunat.NewXMLBuilder(engine, nil).Build(h, supplier, customer, lines, totals)
	require.NoError(t, err)
	return out
}

func newService(opts signer.Options, clock signer.Clock) *signer.Service {
	return signer.NewService(signer.NewCertificateCache(time.Minute, clock), opts, clock, zerolog.Nop())
}

func signatoryIDs(t *testing.T, xmlBytes []byte) (string, string) {
	t.Helper()
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(xmlBytes))
	id := doc.Root().FindElement("./cac:Signature/cbc:ID")
	party := doc.Root().FindElement("./cac:Signature/cac:SignatoryParty/cac:PartyIdentification/cbc:ID")
	require.NotNil(t, id)
	require.NotNil(t, party)
	return id.Text(), party.Text()
}

func TestSign_FirmaVerificableYCorrigeRUC(t *testing.T) {
	svc := newService(signer.Options{}, fixedClock())
	bundle, err := svc.LoadValidated(fixtureP12, fixturePassword)
	require.NoError(t, err)

	out, err := svc.Sign(unsignedInvoice(t), bundle)
	require.NoError(t, err)
	assert.Equal(t, fixtureRUC, out.SignerRUC)
	assert.NotEmpty(t, out.DigestValue)

	id, party := signatoryIDs(t, out.XML)
	assert.Equal(t, fixtureRUC, id, "el RUC firmante viene del certificado")
	assert.Equal(t, fixtureRUC, party)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(out.XML))
	sig := doc.Root().FindElement("./ext:UBLExtensions/ext:UBLExtension/ext:ExtensionContent/ds:Signature")
	require.NotNil(t, sig)
	assert.Equal(t, pkgsunat.SignatureID, sig.SelectAttrValue("Id", ""))
	assert.Equal(t, out.DigestValue, sig.FindElement(".//ds:DigestValue").Text())
	assert.NotNil(t, sig.FindElement("./ds:KeyInfo/ds:X509Data/ds:X509Certificate"))
	assert.NotNil(t, sig.FindElement("./ds:KeyInfo/ds:KeyValue/ds:RSAKeyValue/ds:Modulus"))

	cert, err := signer.VerifySignature(out.XML, nil)
	require.NoError(t, err)
	assert.Equal(t, bundle.Certificate.Raw, cert.Raw)

	_, err = signer.VerifySignature(out.XML, bundle.Certificate)
	require.NoError(t, err)
}

func TestSign_AlteracionSeDetecta(t *testing.T) {
	svc := newService(signer.Options{}, fixedClock())
	bundle, err := svc.LoadValidated(fixtureP12, fixturePassword)
	require.NoError(t, err)
	out, err := svc.Sign(unsignedInvoice(t), bundle)
	require.NoError(t, err)

	tampered := bytes.Replace(out.XML, []byte(">236.00<"), []byte(">136.00<"), 1)
	require.NotEqual(t, out.XML, tampered)

	_, err = signer.VerifySignature(tampered, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSignature)
}

func TestSign_YaFirmadoFalla(t *testing.T) {
	svc := newService(signer.Options{}, fixedClock())
	bundle, err := svc.LoadValidated(fixtureP12, fixturePassword)
	require.NoError(t, err)
	out, err := svc.Sign(unsignedInvoice(t), bundle)
	require.NoError(t, err)

	_, err = svc.Sign(out.XML, bundle)
	var serr *domain.SignatureError
	require.True(t, errors.As(err, &serr))
}

func TestSign_RUCPorDefectoConfigurado(t *testing.T) {
	bundle := rsaBundle(t, 2048, pkix.Name{CommonName: "PERSONA NATURAL"}, fixedNow.AddDate(-1, 0, 0), fixedNow.AddDate(1, 0, 0))
	require.Empty(t, bundle.TaxID)

	svc := newService(signer.Options{DefaultSignerRUC: "20555555551", DefaultSignerName: "FIRMANTE CONFIGURADO"}, fixedClock())
	out, err := svc.Sign(unsignedInvoice(t), bundle)
	require.NoError(t, err)
	assert.Equal(t, "20555555551", out.SignerRUC)

	id, party := signatoryIDs(t, out.XML)
	assert.Equal(t, "20555555551", id)
	assert.Equal(t, "20555555551", party)
	assert.Contains(t, string(out.XML), "FIRMANTE CONFIGURADO")
}

func TestSign_SinRUCUsaEmisor(t *testing.T) {
	bundle := rsaBundle(t, 2048, pkix.Name{CommonName: "PERSONA NATURAL"}, fixedNow.AddDate(-1, 0, 0), fixedNow.AddDate(1, 0, 0))
	svc := newService(signer.Options{}, fixedClock())
	out, err := svc.Sign(unsignedInvoice(t), bundle)
	require.NoError(t, err)
	assert.Equal(t, "20601030013", out.SignerRUC)
}

func TestSignWithFallback_Firmado(t *testing.T) {
	svc := newService(signer.Options{}, fixedClock())
	res, err := svc.SignWithFallback(unsignedInvoice(t), fixtureP12, fixturePassword)
	require.NoError(t, err)

	assert.True(t, res.Signed())
	assert.Equal(t, pkgsunat.SignatureModeSigned, res.Mode)
	assert.Empty(t, res.Reason)
	assert.Equal(t, []pkgsunat.AttemptState{pkgsunat.AttemptUnsigned, pkgsunat.AttemptValidating, pkgsunat.AttemptSigned}, res.Trail)
	assert.False(t, signer.IsSimulated(res.XML))
}

func TestSignWithFallback_CertificadoVencido(t *testing.T) {
	// Reloj más allá del vencimiento del certificado de prueba.
	expired := signer.ClockFunc(func() time.Time { return time.Date(2200, 1, 1, 0, 0, 0, 0, time.UTC) })
	svc := newService(signer.Options{Grace: 10 * time.Minute}, expired)

	in := unsignedInvoice(t)
	res, err := svc.SignWithFallback(in, fixtureP12, fixturePassword)
	require.NoError(t, err, "el fallback no es un error")

	assert.False(t, res.Signed())
	assert.Equal(t, pkgsunat.SignatureModeSimulated, res.Mode)
	assert.Contains(t, res.Reason, "vencido")
	assert.Equal(t, pkgsunat.AttemptSimulatedFallback, res.Trail[len(res.Trail)-1])
	assert.True(t, signer.IsSimulated(res.XML))
	assert.Contains(t, string(res.XML), signer.SimulatedMarker)
	assert.NotContains(t, string(res.XML), "<ds:Signature")
	assert.False(t, signer.IsSimulated(in))

	_, err = signer.VerifySignature(res.XML, nil)
	assert.Error(t, err)
}

func TestSignWithFallback_ContraseñaIncorrecta(t *testing.T) {
	svc := newService(signer.Options{}, fixedClock())
	res, err := svc.SignWithFallback(unsignedInvoice(t), fixtureP12, "otra")
	require.NoError(t, err)
	assert.Equal(t, pkgsunat.SignatureModeSimulated, res.Mode)
	assert.Contains(t, res.Reason, "contraseña")
}

func TestSignWithFallback_SinCertificadoConfigurado(t *testing.T) {
	svc := newService(signer.Options{}, fixedClock())
	res, err := svc.SignWithFallback(unsignedInvoice(t), "", "")
	require.NoError(t, err)
	assert.Equal(t, pkgsunat.SignatureModeSimulated, res.Mode)
}

func TestSignWithFallback_XMLInvalido(t *testing.T) {
	svc := newService(signer.Options{}, fixedClock())
	_, err := svc.SignWithFallback(nil, fixtureP12, fixturePassword)
	assert.ErrorIs(t, err, domain.ErrSignature)

	_, err = svc.SignWithFallback([]byte("<Invoice><sin cerrar>"), fixtureP12, fixturePassword)
	assert.ErrorIs(t, err, domain.ErrSignature)
}

func TestApplyRUCFix_CreaBloque(t *testing.T) {
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(`<Invoice xmlns:cac="c" xmlns:cbc="b"><cbc:ID>F001-1</cbc:ID><cac:AccountingSupplierParty/></Invoice>`))
	signer.ApplyRUCFix(doc.Root(), fixtureRUC, "EMPRESA")

	children := doc.Root().ChildElements()
	require.Len(t, children, 3)
	assert.Equal(t, "Signature", children[1].Tag, "el bloque va antes del emisor")
	assert.Equal(t, fixtureRUC, doc.Root().FindElement("./cac:Signature/cbc:ID").Text())
	assert.Equal(t, "EMPRESA", doc.Root().FindElement("./cac:Signature/cac:SignatoryParty/cac:PartyName/cbc:Name").Text())
}
