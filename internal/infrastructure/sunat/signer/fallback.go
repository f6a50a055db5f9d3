package signer

import (
	"bytes"
	"errors"

	"github.com/beevik/etree"
	"github.com/jhoicas/facturacion-sunat/internal/domain"
	"github.com/jhoicas/facturacion-sunat/internal/infrastructure/observability"
	"github.com/jhoicas/facturacion-sunat/pkg/sunat"
)

// SignWithFallback carga, valida y firma. Ante cualquier falla de certificado o de firma
// devuelve el mismo XML con la marca UNSIGNED/SIMULATED y Mode = SIMULATED; nunca error.
// El error queda para XML vacío o ilegible, donde tampoco se puede simular.
func (s *Service) SignWithFallback(xmlBytes []byte, certPath, password string) (*sunat.SignResult, error) {
	res := &sunat.SignResult{Trail: []sunat.AttemptState{sunat.AttemptUnsigned}}
	if len(bytes.TrimSpace(xmlBytes)) == 0 {
		return nil, &domain.SignatureError{Op: "parse", Err: errors.New("XML vacío")}
	}
	if err := etree.NewDocument().ReadFromBytes(xmlBytes); err != nil {
		return nil, &domain.SignatureError{Op: "parse", Err: err}
	}

	res.Trail = append(res.Trail, sunat.AttemptValidating)
	bundle, err := s.LoadValidated(certPath, password)
	if err == nil {
		var out *SignOutput
		if out, err = s.Sign(xmlBytes, bundle); err == nil {
			res.XML = out.XML
			res.Mode = sunat.SignatureModeSigned
			res.DigestValue = out.DigestValue
			res.SignerRUC = out.SignerRUC
			res.Trail = append(res.Trail, sunat.AttemptSigned)
			observability.SignatureModes.WithLabelValues(string(res.Mode)).Inc()
			return res, nil
		}
	}

	simulated, serr := Simulate(xmlBytes, err.Error())
	if serr != nil {
		return nil, serr
	}
	s.log.Warn().Err(err).Str("cert_path", certPath).Msg("firma no disponible: se emite XML simulado")
	res.XML = simulated
	res.Mode = sunat.SignatureModeSimulated
	res.Reason = err.Error()
	res.Trail = append(res.Trail, sunat.AttemptSimulatedFallback)
	observability.SignatureModes.WithLabelValues(string(res.Mode)).Inc()
	return res, nil
}

// Simulate marca el XML como no firmado: agrega <sim:SimulatedSignature> con el motivo en
// el ExtensionContent reservado a la firma. El resto del documento no cambia.
func Simulate(xmlBytes []byte, reason string) ([]byte, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return nil, &domain.SignatureError{Op: "simulate", Err: err}
	}
	root := doc.Root()
	if root == nil {
		return nil, &domain.SignatureError{Op: "simulate", Err: errors.New("documento sin raíz")}
	}
	marker := etree.NewElement("sim:" + SimulatedElement)
	marker.CreateAttr("xmlns:sim", SimulatedNamespace)
	marker.CreateAttr("Reason", reason)
	marker.SetText(SimulatedMarker)

	if slot := extensionSlot(root); slot != nil {
		slot.AddChild(marker)
	} else {
		root.InsertChildAt(0, marker)
	}
	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, &domain.SignatureError{Op: "simulate", Err: err}
	}
	return out, nil
}

// IsSimulated detecta la marca de documento no firmado.
func IsSimulated(xmlBytes []byte) bool {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return bytes.Contains(xmlBytes, []byte(SimulatedNamespace))
	}
	for _, el := range doc.FindElements("//" + SimulatedElement) {
		if el.NamespaceURI() == SimulatedNamespace {
			return true
		}
	}
	return false
}
