// Firma XML-DSig enveloped para comprobantes SUNAT.
// Inyecta <ds:Signature Id="SignatureSP"> en ext:UBLExtensions/ext:UBLExtension/ext:ExtensionContent.

package signer

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/jhoicas/facturacion-sunat/internal/domain"
	"github.com/jhoicas/facturacion-sunat/pkg/sunat"
	"github.com/rs/zerolog"
	"github.com/ucarion/c14n"
)

// Options identidad por defecto para la corrección del RUC y tolerancia de vigencia.
type Options struct {
	// DefaultSignerRUC se usa cuando el certificado no trae RUC.
	DefaultSignerRUC  string
	DefaultSignerName string
	Grace             time.Duration
}

// Service carga, valida y firma. Implementa sunat.Signer.
type Service struct {
	cache *CertificateCache
	opts  Options
	clock Clock
	log   zerolog.Logger
}

// NewService crea el servicio. cache nil crea una con TTL por defecto.
func NewService(cache *CertificateCache, opts Options, clock Clock, log zerolog.Logger) *Service {
	if clock == nil {
		clock = SystemClock
	}
	if cache == nil {
		cache = NewCertificateCache(DefaultCacheTTL, clock)
	}
	if opts.Grace < 0 {
		opts.Grace = 0
	}
	return &Service{cache: cache, opts: opts, clock: clock, log: log}
}

// Cache caché de certificados del servicio.
func (s *Service) Cache() *CertificateCache { return s.cache }

// LoadValidated obtiene el bundle (caché) y lo valida contra el reloj del servicio.
func (s *Service) LoadValidated(path, password string) (*CertificateBundle, error) {
	if path == "" {
		return nil, &domain.CertificateError{Check: domain.CertCheckRead, Msg: "ruta de certificado no configurada"}
	}
	b, err := s.cache.Get(path, password)
	if err != nil {
		return nil, err
	}
	if err := ValidateCertificate(b, s.clock.Now(), s.opts.Grace); err != nil {
		return nil, err
	}
	return b, nil
}

// SignOutput documento firmado y datos de la firma.
type SignOutput struct {
	XML         []byte
	DigestValue string
	SignerRUC   string
}

// Sign firma el XML con el bundle. Antes de firmar corrige el RUC del bloque cac:Signature
// al del certificado (o al configurado por defecto). Después verifica que ese RUC esté en
// la salida. Los fallos son *domain.SignatureError o *domain.CertificateError.
func (s *Service) Sign(xmlBytes []byte, b *CertificateBundle) (*SignOutput, error) {
	key, ok := b.RSAKey()
	if !ok {
		return nil, &domain.CertificateError{Check: domain.CertCheckAlgorithm, Msg: "se requiere llave RSA"}
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return nil, &domain.SignatureError{Op: "parse", Err: err}
	}
	root := doc.Root()
	if root == nil {
		return nil, &domain.SignatureError{Op: "parse", Err: errors.New("documento sin raíz")}
	}
	slot := extensionSlot(root)
	if slot == nil {
		return nil, &domain.SignatureError{Op: "inject", Err: errors.New("no se encontró ext:ExtensionContent")}
	}
	if findSignature(root) != nil {
		return nil, &domain.SignatureError{Op: "inject", Err: errors.New("el documento ya está firmado")}
	}

	ruc, name := s.signerIdentity(b, root)
	if ruc == "" {
		return nil, &domain.SignatureError{Op: "ruc_fix", Err: errors.New("sin RUC de firmante: el certificado no lo trae y no hay uno configurado")}
	}
	ApplyRUCFix(root, ruc, name)

	// 1) Digest del documento sin firma, C14N exclusiva.
	unsigned, err := doc.WriteToBytes()
	if err != nil {
		return nil, &domain.SignatureError{Op: "serialize", Err: err}
	}
	canonicalDoc, err := canonicalize(unsigned)
	if err != nil {
		return nil, &domain.SignatureError{Op: "c14n", Err: err}
	}
	digest := sha256.Sum256(canonicalDoc)
	digestB64 := base64.StdEncoding.EncodeToString(digest[:])

	// 2) SignedInfo y su firma RSA-SHA256.
	signature := etree.NewElement("ds:Signature")
	signature.CreateAttr("Id", sunat.SignatureID)
	if !declaresDS(root) {
		signature.CreateAttr("xmlns:ds", NamespaceDS)
	}
	signedInfo := buildSignedInfo(digestB64)
	signature.AddChild(signedInfo)

	canonicalSI, err := canonicalSignedInfo(signedInfo)
	if err != nil {
		return nil, &domain.SignatureError{Op: "c14n", Err: err}
	}
	siHash := sha256.Sum256(canonicalSI)
	sigValue, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, siHash[:])
	if err != nil {
		return nil, &domain.SignatureError{Op: "rsa", Err: err}
	}
	signature.CreateElement("ds:SignatureValue").SetText(base64.StdEncoding.EncodeToString(sigValue))
	signature.AddChild(buildKeyInfo(b))

	// 3) Inyección sin indentar: cualquier espacio nuevo alteraría el digest.
	slot.AddChild(signature)
	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, &domain.SignatureError{Op: "serialize", Err: err}
	}

	if err := checkSignerPresent(out, ruc); err != nil {
		return nil, err
	}
	return &SignOutput{XML: out, DigestValue: digestB64, SignerRUC: ruc}, nil
}

// signerIdentity RUC y nombre a escribir en cac:Signature: certificado, luego configuración,
// luego el RUC del emisor del documento.
func (s *Service) signerIdentity(b *CertificateBundle, root *etree.Element) (ruc, name string) {
	switch {
	case b.TaxID != "":
		ruc = b.TaxID
		name = firstNonEmpty(b.Organization, b.Subject)
	case s.opts.DefaultSignerRUC != "":
		ruc = s.opts.DefaultSignerRUC
		name = s.opts.DefaultSignerName
		s.log.Warn().Str("cert_subject", b.Subject).Str("signer_ruc", ruc).
			Msg("el certificado no trae RUC; se usa el firmante configurado")
	default:
		if el := root.FindElement("./cac:AccountingSupplierParty/cac:Party/cac:PartyIdentification/cbc:ID"); el != nil {
			ruc = strings.TrimSpace(el.Text())
		}
	}
	return ruc, name
}

// ApplyRUCFix escribe el RUC del firmante en cac:Signature/cbc:ID y en
// cac:SignatoryParty/cac:PartyIdentification/cbc:ID. Si el bloque no existe se crea
// antes de cac:AccountingSupplierParty. name vacío conserva el nombre actual.
func ApplyRUCFix(root *etree.Element, ruc, name string) {
	sig := root.FindElement("./cac:Signature")
	if sig == nil {
		sig = etree.NewElement("cac:Signature")
		if supplier := root.FindElement("./cac:AccountingSupplierParty"); supplier != nil {
			root.InsertChildAt(supplier.Index(), sig)
		} else {
			root.AddChild(sig)
		}
		sig.CreateElement("cbc:ID")
		sp := sig.CreateElement("cac:SignatoryParty")
		sp.CreateElement("cac:PartyIdentification").CreateElement("cbc:ID")
		sp.CreateElement("cac:PartyName").CreateElement("cbc:Name")
		sig.CreateElement("cac:DigitalSignatureAttachment").
			CreateElement("cac:ExternalReference").
			CreateElement("cbc:URI").SetText("#" + sunat.SignatureID)
	}
	ensurePath(sig, "cbc:ID").SetText(ruc)
	ensurePath(sig, "cac:SignatoryParty", "cac:PartyIdentification", "cbc:ID").SetText(ruc)
	if name != "" {
		ensurePath(sig, "cac:SignatoryParty", "cac:PartyName", "cbc:Name").SetText(name)
	}
}

func ensurePath(parent *etree.Element, tags ...string) *etree.Element {
	cur := parent
	for _, t := range tags {
		next := cur.SelectElement(t)
		if next == nil {
			next = cur.CreateElement(t)
		}
		cur = next
	}
	return cur
}

// ── Construcción de ds:Signature ──────────────────────────────────────────────

func buildSignedInfo(digestB64 string) *etree.Element {
	si := etree.NewElement("ds:SignedInfo")
	si.CreateElement("ds:CanonicalizationMethod").CreateAttr("Algorithm", AlgExcC14N)
	si.CreateElement("ds:SignatureMethod").CreateAttr("Algorithm", AlgRSASHA256)
	ref := si.CreateElement("ds:Reference")
	ref.CreateAttr("URI", "")
	tr := ref.CreateElement("ds:Transforms")
	tr.CreateElement("ds:Transform").CreateAttr("Algorithm", TransformEnveloped)
	tr.CreateElement("ds:Transform").CreateAttr("Algorithm", AlgExcC14N)
	ref.CreateElement("ds:DigestMethod").CreateAttr("Algorithm", AlgSHA256)
	ref.CreateElement("ds:DigestValue").SetText(digestB64)
	return si
}

func buildKeyInfo(b *CertificateBundle) *etree.Element {
	ki := etree.NewElement("ds:KeyInfo")
	x509Data := ki.CreateElement("ds:X509Data")
	x509Data.CreateElement("ds:X509SubjectName").SetText(b.Certificate.Subject.String())
	x509Data.CreateElement("ds:X509Certificate").SetText(base64.StdEncoding.EncodeToString(b.Certificate.Raw))
	if key, ok := b.RSAKey(); ok {
		rsaKV := ki.CreateElement("ds:KeyValue").CreateElement("ds:RSAKeyValue")
		rsaKV.CreateElement("ds:Modulus").SetText(base64.StdEncoding.EncodeToString(key.N.Bytes()))
		rsaKV.CreateElement("ds:Exponent").SetText(base64.StdEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()))
	}
	return ki
}

// ── C14N ──────────────────────────────────────────────────────────────────────

// canonicalize C14N exclusiva (xml-exc-c14n, sin comentarios) del documento sin la declaración XML.
func canonicalize(data []byte) ([]byte, error) {
	dec := xml.NewDecoder(bytes.NewReader(stripDeclaration(data)))
	dec.Entity = map[string]string{}
	return c14n.Canonicalize(dec)
}

// canonicalSignedInfo canonicaliza SignedInfo como subconjunto del documento. En C14N
// exclusiva solo se emite el namespace visiblemente usado: SignedInfo y sus hijos usan
// únicamente el prefijo ds, así que la copia aislada declara xmlns:ds y nada más.
// El namespace por defecto heredado de la raíz no debe llegar al canonicalizador: lo
// emitiría en hijos con atributos sin prefijo.
func canonicalSignedInfo(si *etree.Element) ([]byte, error) {
	cp := si.Copy()
	cp.Attr = cp.Attr[:0]
	for _, a := range si.Attr {
		if a.Space != "xmlns" && !(a.Space == "" && a.Key == "xmlns") {
			cp.Attr = append(cp.Attr, a)
		}
	}
	cp.CreateAttr("xmlns:ds", NamespaceDS)
	d := etree.NewDocument()
	d.SetRoot(cp)
	raw, err := d.WriteToBytes()
	if err != nil {
		return nil, err
	}
	return canonicalize(raw)
}

func stripDeclaration(data []byte) []byte {
	data = bytes.TrimSpace(bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF}))
	if bytes.HasPrefix(data, []byte("<?xml")) {
		if end := bytes.Index(data, []byte("?>")); end >= 0 {
			data = bytes.TrimSpace(data[end+2:])
		}
	}
	return data
}

// ── Localización ──────────────────────────────────────────────────────────────

func extensionSlot(root *etree.Element) *etree.Element {
	for _, ublExt := range root.ChildElements() {
		if ublExt.Tag != "UBLExtensions" {
			continue
		}
		for _, ext := range ublExt.ChildElements() {
			if ext.Tag != "UBLExtension" {
				continue
			}
			if ec := ext.SelectElement("ext:ExtensionContent"); ec != nil {
				return ec
			}
			for _, c := range ext.ChildElements() {
				if c.Tag == "ExtensionContent" {
					return c
				}
			}
		}
	}
	return nil
}

func findSignature(root *etree.Element) *etree.Element {
	slot := extensionSlot(root)
	if slot == nil {
		return nil
	}
	for _, c := range slot.ChildElements() {
		if c.Tag == "Signature" && c.NamespaceURI() == NamespaceDS {
			return c
		}
	}
	return nil
}

func declaresDS(root *etree.Element) bool {
	for _, a := range root.Attr {
		if a.Space == "xmlns" && a.Value == NamespaceDS && a.Key == "ds" {
			return true
		}
	}
	return false
}

// checkSignerPresent post-condición: el RUC firmante figura en cac:Signature de la salida.
func checkSignerPresent(signed []byte, ruc string) error {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(signed); err != nil {
		return &domain.SignatureError{Op: "postcheck", Err: err}
	}
	root := doc.Root()
	id := root.FindElement("./cac:Signature/cbc:ID")
	party := root.FindElement("./cac:Signature/cac:SignatoryParty/cac:PartyIdentification/cbc:ID")
	if id == nil || party == nil || strings.TrimSpace(id.Text()) != ruc || strings.TrimSpace(party.Text()) != ruc {
		return &domain.SignatureError{Op: "postcheck", Err: fmt.Errorf("el RUC firmante %s no figura en cac:Signature", ruc)}
	}
	if findSignature(root) == nil {
		return &domain.SignatureError{Op: "postcheck", Err: errors.New("ds:Signature ausente tras la inyección")}
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

var _ sunat.Signer = (*Service)(nil)
