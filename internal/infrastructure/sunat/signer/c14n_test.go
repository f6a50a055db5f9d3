package signer_test

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509/pkix"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/beevik/etree"
	"github.com/jhoicas/facturacion-sunat/internal/infrastructure/sunat/signer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	nsInvoice = "urn:oasis:names:specification:ubl:schema:xsd:Invoice-2"
	nsCAC     = "urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2"
	nsCBC     = "urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2"
	nsEXT     = "urn:oasis:names:specification:ubl:schema:xsd:CommonExtensionComponents-2"
)

// Documento mínimo con todos los namespaces declarados en la raíz. El bloque cac:Signature
// ya trae el firmante configurado, así que la corrección de RUC no cambia su contenido.
const minimalInvoice = `<?xml version="1.0" encoding="UTF-8"?>
<Invoice xmlns="` + nsInvoice + `" xmlns:cac="` + nsCAC + `" xmlns:cbc="` + nsCBC + `" xmlns:ext="` + nsEXT + `">` +
	`<ext:UBLExtensions><ext:UBLExtension><ext:ExtensionContent/></ext:UBLExtension></ext:UBLExtensions>` +
	`<cbc:ID>F001-00000001</cbc:ID>` +
	`<cac:Signature><cbc:ID>20555555551</cbc:ID><cac:SignatoryParty>` +
	`<cac:PartyIdentification><cbc:ID>20555555551</cbc:ID></cac:PartyIdentification>` +
	`<cac:PartyName><cbc:Name>FIRMANTE DEMO</cbc:Name></cac:PartyName>` +
	`</cac:SignatoryParty></cac:Signature>` +
	`<cac:LegalMonetaryTotal><cbc:PayableAmount currencyID="PEN">1.00</cbc:PayableAmount></cac:LegalMonetaryTotal>` +
	`</Invoice>`

// Forma canónica exc-c14n escrita a mano: cada namespace se declara en el primer elemento
// que lo usa y el documento no lleva ds:Signature (transformación enveloped).
const minimalInvoiceCanonical = `<Invoice xmlns="` + nsInvoice + `">` +
	`<ext:UBLExtensions xmlns:ext="` + nsEXT + `"><ext:UBLExtension><ext:ExtensionContent></ext:ExtensionContent></ext:UBLExtension></ext:UBLExtensions>` +
	`<cbc:ID xmlns:cbc="` + nsCBC + `">F001-00000001</cbc:ID>` +
	`<cac:Signature xmlns:cac="` + nsCAC + `"><cbc:ID xmlns:cbc="` + nsCBC + `">20555555551</cbc:ID><cac:SignatoryParty>` +
	`<cac:PartyIdentification><cbc:ID xmlns:cbc="` + nsCBC + `">20555555551</cbc:ID></cac:PartyIdentification>` +
	`<cac:PartyName><cbc:Name xmlns:cbc="` + nsCBC + `">FIRMANTE DEMO</cbc:Name></cac:PartyName>` +
	`</cac:SignatoryParty></cac:Signature>` +
	`<cac:LegalMonetaryTotal xmlns:cac="` + nsCAC + `"><cbc:PayableAmount xmlns:cbc="` + nsCBC + `" currencyID="PEN">1.00</cbc:PayableAmount></cac:LegalMonetaryTotal>` +
	`</Invoice>`

// canonicalSignedInfoFor SignedInfo canónico tal como lo calcula un verificador exc-c14n:
// solo xmlns:ds en el elemento raíz del subconjunto.
func canonicalSignedInfoFor(digest string) string {
	return `<ds:SignedInfo xmlns:ds="http://www.w3.org/2000/09/xmldsig#">` +
		`<ds:CanonicalizationMethod Algorithm="http://www.w3.org/2001/10/xml-exc-c14n#"></ds:CanonicalizationMethod>` +
		`<ds:SignatureMethod Algorithm="http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"></ds:SignatureMethod>` +
		`<ds:Reference URI="">` +
		`<ds:Transforms>` +
		`<ds:Transform Algorithm="http://www.w3.org/2000/09/xmldsig#enveloped-signature"></ds:Transform>` +
		`<ds:Transform Algorithm="http://www.w3.org/2001/10/xml-exc-c14n#"></ds:Transform>` +
		`</ds:Transforms>` +
		`<ds:DigestMethod Algorithm="http://www.w3.org/2001/04/xmlenc#sha256"></ds:DigestMethod>` +
		`<ds:DigestValue>` + digest + `</ds:DigestValue>` +
		`</ds:Reference>` +
		`</ds:SignedInfo>`
}

func signatureParts(t *testing.T, signed []byte) (digest string, sigValue []byte, si *etree.Element) {
	t.Helper()
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(signed))
	sig := doc.Root().FindElement("./ext:UBLExtensions/ext:UBLExtension/ext:ExtensionContent/ds:Signature")
	require.NotNil(t, sig)
	si = sig.SelectElement("ds:SignedInfo")
	require.NotNil(t, si)
	digest = si.FindElement("./ds:Reference/ds:DigestValue").Text()
	raw := strings.Join(strings.Fields(sig.SelectElement("ds:SignatureValue").Text()), "")
	sigValue, err := base64.StdEncoding.DecodeString(raw)
	require.NoError(t, err)
	return digest, sigValue, si
}

func TestSign_DigestSobreFormaCanonicaExclusiva(t *testing.T) {
	bundle := rsaBundle(t, 2048, pkix.Name{CommonName: "PERSONA NATURAL"}, fixedNow.AddDate(-1, 0, 0), fixedNow.AddDate(1, 0, 0))
	svc := newService(signer.Options{DefaultSignerRUC: "20555555551", DefaultSignerName: "FIRMANTE DEMO"}, fixedClock())

	out, err := svc.Sign([]byte(minimalInvoice), bundle)
	require.NoError(t, err)

	sum := sha256.Sum256([]byte(minimalInvoiceCanonical))
	assert.Equal(t, base64.StdEncoding.EncodeToString(sum[:]), out.DigestValue)
}

func TestSign_SignedInfoVerificableSinElCanonicalizadorPropio(t *testing.T) {
	svc := newService(signer.Options{}, fixedClock())
	bundle, err := svc.LoadValidated(fixtureP12, fixturePassword)
	require.NoError(t, err)

	out, err := svc.Sign(unsignedInvoice(t), bundle)
	require.NoError(t, err)

	digest, sigValue, si := signatureParts(t, out.XML)
	assert.Equal(t, signer.AlgExcC14N, si.FindElement("./ds:CanonicalizationMethod").SelectAttrValue("Algorithm", ""))
	transforms := si.FindElements("./ds:Reference/ds:Transforms/ds:Transform")
	require.Len(t, transforms, 2)
	assert.Equal(t, signer.AlgExcC14N, transforms[1].SelectAttrValue("Algorithm", ""))

	pub, ok := bundle.Certificate.PublicKey.(*rsa.PublicKey)
	require.True(t, ok)
	hash := sha256.Sum256([]byte(canonicalSignedInfoFor(digest)))
	require.NoError(t, rsa.VerifyPKCS1v15(pub, crypto.SHA256, hash[:], sigValue),
		"SignatureValue debe corresponder al SignedInfo canónico exc-c14n")
}

func TestVerifySignature_RechazaAlgoritmoDistinto(t *testing.T) {
	svc := newService(signer.Options{}, fixedClock())
	bundle, err := svc.LoadValidated(fixtureP12, fixturePassword)
	require.NoError(t, err)
	out, err := svc.Sign(unsignedInvoice(t), bundle)
	require.NoError(t, err)

	inclusive := strings.ReplaceAll(string(out.XML), signer.AlgExcC14N, "http://www.w3.org/TR/2001/REC-xml-c14n-20010315")
	_, err = signer.VerifySignature([]byte(inclusive), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no soportado")
}
