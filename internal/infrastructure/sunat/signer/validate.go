package signer

import (
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/jhoicas/facturacion-sunat/internal/domain"
)

// ValidateCertificate verifica vigencia (con tolerancia grace), algoritmo RSA,
// tamaño de llave y que la llave corresponda al certificado.
func ValidateCertificate(b *CertificateBundle, now time.Time, grace time.Duration) error {
	if b == nil || b.Certificate == nil {
		return &domain.CertificateError{Check: domain.CertCheckContainer, Msg: "bundle vacío"}
	}
	if b.PrivateKey == nil {
		return &domain.CertificateError{Check: domain.CertCheckKey, Msg: "sin llave privada"}
	}
	if now.Before(b.NotBefore.Add(-grace)) {
		return &domain.CertificateError{
			Check: domain.CertCheckValidity,
			Msg:   fmt.Sprintf("aún no vigente (desde %s)", b.NotBefore.Format(time.RFC3339)),
		}
	}
	if now.After(b.NotAfter.Add(grace)) {
		return &domain.CertificateError{
			Check: domain.CertCheckValidity,
			Msg:   fmt.Sprintf("vencido el %s", b.NotAfter.Format(time.RFC3339)),
		}
	}

	key, ok := b.RSAKey()
	if !ok {
		return &domain.CertificateError{Check: domain.CertCheckAlgorithm, Msg: "la llave debe ser RSA, es " + b.KeyAlgorithm}
	}
	if !AllowedKeySizes[key.N.BitLen()] {
		return &domain.CertificateError{
			Check: domain.CertCheckKeySize,
			Msg:   fmt.Sprintf("llave de %d bits, se acepta 2048, 3072 o 4096", key.N.BitLen()),
		}
	}
	pub, ok := b.Certificate.PublicKey.(*rsa.PublicKey)
	if !ok || !key.PublicKey.Equal(pub) {
		return &domain.CertificateError{Check: domain.CertCheckKey, Msg: "la llave privada no corresponde al certificado"}
	}
	return nil
}
