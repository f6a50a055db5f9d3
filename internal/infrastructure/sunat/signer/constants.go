// Constantes de la firma XML-DSig enveloped exigida por SUNAT.

package signer

import "time"

// Namespaces y algoritmos XMLDSig.
const (
	NamespaceDS        = "http://www.w3.org/2000/09/xmldsig#"
	AlgExcC14N         = "http://www.w3.org/2001/10/xml-exc-c14n#"
	AlgRSASHA256       = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"
	AlgSHA256          = "http://www.w3.org/2001/04/xmlenc#sha256"
	TransformEnveloped = "http://www.w3.org/2000/09/xmldsig#enveloped-signature"
)

// Marca de documento no firmado (fallback). Nunca se confunde con ds:Signature.
const (
	SimulatedNamespace = "urn:facturacion-sunat:simulated-signature"
	SimulatedElement   = "SimulatedSignature"
	SimulatedMarker    = "UNSIGNED/SIMULATED"
)

// AllowedKeySizes tamaños de llave RSA aceptados.
var AllowedKeySizes = map[int]bool{2048: true, 3072: true, 4096: true}

// Valores por defecto de la caché y la validación.
const (
	DefaultCacheTTL = 5 * time.Minute
	DefaultGrace    = 10 * time.Minute
)
