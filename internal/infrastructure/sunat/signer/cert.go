// Carga de certificado desde .p12/.pfx (PKCS#12).

package signer

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/jhoicas/facturacion-sunat/internal/domain"
	"github.com/jhoicas/facturacion-sunat/pkg/sunat"
	"golang.org/x/crypto/pkcs12"
)

// CertificateBundle certificado, llave privada y metadatos extraídos del PKCS#12.
type CertificateBundle struct {
	Certificate *x509.Certificate
	Chain       []*x509.Certificate
	PrivateKey  crypto.PrivateKey

	Path               string
	Subject            string // CN
	Organization       string
	TaxID              string // RUC embebido en el sujeto, si existe
	Issuer             string
	SerialNumber       string
	NotBefore          time.Time
	NotAfter           time.Time
	KeyAlgorithm       string
	KeySize            int
	SignatureAlgorithm string
	LoadedAt           time.Time
}

// RSAKey llave privada como RSA; ok=false para otros algoritmos.
func (b *CertificateBundle) RSAKey() (*rsa.PrivateKey, bool) {
	k, ok := b.PrivateKey.(*rsa.PrivateKey)
	return k, ok
}

// LoadCertificate lee y descifra el contenedor. Los fallos son *domain.CertificateError
// con la verificación que falló (read, password, container, private_key).
func LoadCertificate(path, password string) (*CertificateBundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &domain.CertificateError{Check: domain.CertCheckRead, Msg: "leer " + path, Err: err}
	}
	return DecodeCertificate(data, password, path)
}

// DecodeCertificate descifra un PKCS#12 ya leído. Primero intenta el formato simple
// (una llave y un certificado); si el archivo trae la cadena completa recurre a ToPEM.
func DecodeCertificate(data []byte, password, path string) (*CertificateBundle, error) {
	key, cert, err := pkcs12.Decode(data, password)
	if err == nil {
		return NewBundle(cert, key, nil, path)
	}
	if errors.Is(err, pkcs12.ErrIncorrectPassword) {
		return nil, &domain.CertificateError{Check: domain.CertCheckPassword, Msg: "contraseña incorrecta", Err: err}
	}

	blocks, perr := pkcs12.ToPEM(data, password)
	if perr != nil {
		if errors.Is(perr, pkcs12.ErrIncorrectPassword) {
			return nil, &domain.CertificateError{Check: domain.CertCheckPassword, Msg: "contraseña incorrecta", Err: perr}
		}
		return nil, &domain.CertificateError{Check: domain.CertCheckContainer, Msg: "PKCS#12 ilegible", Err: err}
	}

	var certs []*x509.Certificate
	for _, b := range blocks {
		switch b.Type {
		case "CERTIFICATE":
			c, err := x509.ParseCertificate(b.Bytes)
			if err != nil {
				return nil, &domain.CertificateError{Check: domain.CertCheckContainer, Msg: "certificado ilegible", Err: err}
			}
			certs = append(certs, c)
		case "PRIVATE KEY":
			if key != nil {
				continue
			}
			if key, err = parsePrivateKey(b); err != nil {
				return nil, &domain.CertificateError{Check: domain.CertCheckKey, Msg: "llave privada ilegible", Err: err}
			}
		}
	}
	if key == nil {
		return nil, &domain.CertificateError{Check: domain.CertCheckKey, Msg: "el contenedor no trae llave privada"}
	}
	if len(certs) == 0 {
		return nil, &domain.CertificateError{Check: domain.CertCheckContainer, Msg: "el contenedor no trae certificados"}
	}

	leaf := matchingLeaf(certs, key)
	if leaf == nil {
		return nil, &domain.CertificateError{Check: domain.CertCheckKey, Msg: "ningún certificado corresponde a la llave privada"}
	}
	var chain []*x509.Certificate
	for _, c := range certs {
		if !c.Equal(leaf) {
			chain = append(chain, c)
		}
	}
	return NewBundle(leaf, key, chain, path)
}

// NewBundle arma el bundle desde un certificado y su llave (también usado en tests).
func NewBundle(cert *x509.Certificate, key crypto.PrivateKey, chain []*x509.Certificate, path string) (*CertificateBundle, error) {
	if cert == nil {
		return nil, &domain.CertificateError{Check: domain.CertCheckContainer, Msg: "certificado nulo"}
	}
	if key == nil {
		return nil, &domain.CertificateError{Check: domain.CertCheckKey, Msg: "llave privada nula"}
	}
	b := &CertificateBundle{
		Certificate:        cert,
		Chain:              chain,
		PrivateKey:         key,
		Path:               path,
		Subject:            cert.Subject.CommonName,
		Issuer:             cert.Issuer.CommonName,
		SerialNumber:       cert.SerialNumber.Text(16),
		NotBefore:          cert.NotBefore,
		NotAfter:           cert.NotAfter,
		KeyAlgorithm:       cert.PublicKeyAlgorithm.String(),
		SignatureAlgorithm: cert.SignatureAlgorithm.String(),
		TaxID:              ExtractTaxID(cert),
		LoadedAt:           time.Now(),
	}
	if len(cert.Subject.Organization) > 0 {
		b.Organization = cert.Subject.Organization[0]
	}
	switch k := key.(type) {
	case *rsa.PrivateKey:
		b.KeySize = k.N.BitLen()
	case *ecdsa.PrivateKey:
		b.KeySize = k.Curve.Params().BitSize
	}
	return b, nil
}

var elevenDigits = regexp.MustCompile(`(?:^|\D)(\d{11})(?:\D|$)`)

// ExtractTaxID busca un RUC de 11 dígitos en el sujeto: primero serialNumber,
// luego el resto de atributos. Se prefiere uno con dígito verificador válido.
func ExtractTaxID(cert *x509.Certificate) string {
	if cert == nil {
		return ""
	}
	candidates := []string{cert.Subject.SerialNumber}
	for _, atv := range cert.Subject.Names {
		if s, ok := atv.Value.(string); ok {
			candidates = append(candidates, s)
		}
	}
	candidates = append(candidates, cert.Subject.CommonName)
	candidates = append(candidates, cert.Subject.OrganizationalUnit...)

	var first string
	for _, c := range candidates {
		for _, m := range elevenDigits.FindAllStringSubmatch(c, -1) {
			if ok, _ := sunat.ValidateRUC(m[1]); ok {
				return m[1]
			}
			if first == "" {
				first = m[1]
			}
		}
	}
	return first
}

func parsePrivateKey(b *pem.Block) (crypto.PrivateKey, error) {
	if k, err := x509.ParsePKCS1PrivateKey(b.Bytes); err == nil {
		return k, nil
	}
	if k, err := x509.ParsePKCS8PrivateKey(b.Bytes); err == nil {
		return k, nil
	}
	if k, err := x509.ParseECPrivateKey(b.Bytes); err == nil {
		return k, nil
	}
	return nil, fmt.Errorf("formato de llave no reconocido")
}

type publicKeyEqualer interface {
	Equal(crypto.PublicKey) bool
}

func matchingLeaf(certs []*x509.Certificate, key crypto.PrivateKey) *x509.Certificate {
	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil
	}
	pub, ok := signer.Public().(publicKeyEqualer)
	if !ok {
		return nil
	}
	for _, c := range certs {
		if pub.Equal(c.PublicKey) {
			return c
		}
	}
	return nil
}
