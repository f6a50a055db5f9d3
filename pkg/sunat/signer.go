// Package sunat: puerto de firma digital de comprobantes XML (XML-DSig enveloped).

package sunat

// SignatureID Id del ds:Signature; cac:Signature lo referencia como "#SignatureSP".
const SignatureID = "SignatureSP"

// SignatureMode resultado explícito de un intento de firma.
type SignatureMode string

const (
	SignatureModeSigned    SignatureMode = "SIGNED"
	SignatureModeSimulated SignatureMode = "SIMULATED"
)

// AttemptState estados de un intento de firma:
// Unsigned → Validating → Signed | SimulatedFallback.
type AttemptState string

const (
	AttemptUnsigned          AttemptState = "UNSIGNED"
	AttemptValidating        AttemptState = "VALIDATING"
	AttemptSigned            AttemptState = "SIGNED"
	AttemptSimulatedFallback AttemptState = "SIMULATED_FALLBACK"
)

// SignResult salida etiquetada de la firma. Un resultado simulado nunca se presenta como firmado.
type SignResult struct {
	XML         []byte
	Mode        SignatureMode
	Reason      string // motivo del fallback (vacío si Mode == Signed)
	DigestValue string // base64 del SHA-256 del documento canonicalizado (vacío en simulado)
	SignerRUC   string // RUC escrito en cac:Signature
	Trail       []AttemptState
}

// Signed indica si el resultado contiene una firma real.
func (r *SignResult) Signed() bool {
	return r != nil && r.Mode == SignatureModeSigned
}

// Signer firma un XML de comprobante con el certificado PKCS#12 indicado.
type Signer interface {
	// SignWithFallback devuelve siempre un resultado etiquetado ante fallas de certificado o firma;
	// el error queda reservado para entradas imposibles de procesar (XML vacío o mal formado).
	SignWithFallback(xmlBytes []byte, certPath, password string) (*SignResult, error)
}
