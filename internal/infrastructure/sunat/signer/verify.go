package signer

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"github.com/jhoicas/facturacion-sunat/internal/domain"
)

// VerifySignature comprueba el DigestValue (transformación enveloped + C14N) y la firma
// RSA-SHA256 de SignedInfo. Con cert nil se usa el X509Certificate embebido.
// Devuelve el certificado con que se verificó.
func VerifySignature(signedXML []byte, cert *x509.Certificate) (*x509.Certificate, error) {
	fail := func(err error) (*x509.Certificate, error) {
		return nil, &domain.SignatureError{Op: "verify", Err: err}
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(signedXML); err != nil {
		return fail(err)
	}
	root := doc.Root()
	if root == nil {
		return fail(errors.New("documento sin raíz"))
	}
	sig := findSignature(root)
	if sig == nil {
		return fail(errors.New("sin ds:Signature"))
	}
	si := sig.SelectElement("ds:SignedInfo")
	if si == nil {
		return fail(errors.New("sin ds:SignedInfo"))
	}
	digestEl := si.FindElement("./ds:Reference/ds:DigestValue")
	sigValueEl := sig.SelectElement("ds:SignatureValue")
	if digestEl == nil || sigValueEl == nil {
		return fail(errors.New("firma incompleta"))
	}

	if cert == nil {
		certEl := sig.FindElement("./ds:KeyInfo/ds:X509Data/ds:X509Certificate")
		if certEl == nil {
			return fail(errors.New("sin certificado embebido"))
		}
		der, err := base64.StdEncoding.DecodeString(compact(certEl.Text()))
		if err != nil {
			return fail(fmt.Errorf("X509Certificate: %w", err))
		}
		if cert, err = x509.ParseCertificate(der); err != nil {
			return fail(fmt.Errorf("X509Certificate: %w", err))
		}
	}
	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return fail(errors.New("el certificado no tiene llave RSA"))
	}

	if err := checkAlgorithms(si); err != nil {
		return fail(err)
	}
	canonicalSI, err := canonicalSignedInfo(si)
	if err != nil {
		return fail(err)
	}
	sigValue, err := base64.StdEncoding.DecodeString(compact(sigValueEl.Text()))
	if err != nil {
		return fail(fmt.Errorf("SignatureValue: %w", err))
	}
	siHash := sha256.Sum256(canonicalSI)
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, siHash[:], sigValue); err != nil {
		return fail(fmt.Errorf("SignatureValue no corresponde: %w", err))
	}

	// Transformación enveloped: el documento sin ds:Signature.
	parent := sig.Parent()
	parent.RemoveChild(sig)
	unsigned, err := doc.WriteToBytes()
	if err != nil {
		return fail(err)
	}
	canonicalDoc, err := canonicalize(unsigned)
	if err != nil {
		return fail(err)
	}
	sum := sha256.Sum256(canonicalDoc)
	if base64.StdEncoding.EncodeToString(sum[:]) != compact(digestEl.Text()) {
		return fail(errors.New("DigestValue no corresponde al documento"))
	}
	return cert, nil
}

// checkAlgorithms solo se verifica lo que este paquete emite: C14N exclusiva, RSA-SHA256 y SHA-256.
func checkAlgorithms(si *etree.Element) error {
	expect := []struct{ path, alg string }{
		{"./ds:CanonicalizationMethod", AlgExcC14N},
		{"./ds:SignatureMethod", AlgRSASHA256},
		{"./ds:Reference/ds:DigestMethod", AlgSHA256},
	}
	for _, e := range expect {
		el := si.FindElement(e.path)
		if el == nil {
			return fmt.Errorf("falta %s", strings.TrimPrefix(e.path, "./"))
		}
		if got := el.SelectAttrValue("Algorithm", ""); got != e.alg {
			return fmt.Errorf("algoritmo no soportado en %s: %q", strings.TrimPrefix(e.path, "./"), got)
		}
	}
	for _, tr := range si.FindElements("./ds:Reference/ds:Transforms/ds:Transform") {
		switch alg := tr.SelectAttrValue("Algorithm", ""); alg {
		case TransformEnveloped, AlgExcC14N:
		default:
			return fmt.Errorf("transformación no soportada: %q", alg)
		}
	}
	return nil
}

func compact(s string) string {
	return strings.Join(strings.Fields(s), "")
}
