package sunat

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/jhoicas/facturacion-sunat/internal/domain"
	"github.com/jhoicas/facturacion-sunat/internal/domain/entity"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// PeruTime zona horaria de SUNAT (UTC-5, sin horario de verano).
var PeruTime = time.FixedZone("PET", -5*60*60)

// ErrMalformedCDR la respuesta no contiene un CDR legible.
var ErrMalformedCDR = fmt.Errorf("%w: CDR ilegible", domain.ErrInvalidInput)

// ── Estructura ApplicationResponse (sólo nombres locales) ─────────────────────

type applicationResponse struct {
	ID           string   `xml:"ID"`
	IssueDate    string   `xml:"IssueDate"`
	IssueTime    string   `xml:"IssueTime"`
	ResponseDate string   `xml:"ResponseDate"`
	ResponseTime string   `xml:"ResponseTime"`
	Notes        []string `xml:"Note"`
	SenderID     string   `xml:"SenderParty>PartyIdentification>ID"`
	ReceiverID   string   `xml:"ReceiverParty>PartyIdentification>ID"`
	Document     struct {
		Response struct {
			ReferenceID  string `xml:"ReferenceID"`
			ResponseCode string `xml:"ResponseCode"`
			Description  string `xml:"Description"`
		} `xml:"Response"`
		Reference struct {
			ID string `xml:"ID"`
		} `xml:"DocumentReference"`
	} `xml:"DocumentResponse"`
}

// ParseAcknowledgment interpreta la respuesta de SUNAT. Acepta el ZIP del CDR, su Base64,
// el sobre SOAP completo con applicationResponse o content, o el XML ya extraído.
// El resultado queda clasificado; un código no reconocido da OutcomeUnknown, nunca aceptado.
func ParseAcknowledgment(body []byte) (*entity.AcknowledgmentRecord, error) {
	zipBytes, xmlBytes, err := locateCDR(body)
	if err != nil {
		return nil, err
	}
	if xmlBytes == nil {
		xmlBytes, err = extractResponseXML(zipBytes)
		if err != nil {
			return nil, err
		}
	}

	var ar applicationResponse
	dec := xml.NewDecoder(bytes.NewReader(xmlBytes))
	dec.CharsetReader = charsetReader
	if err := dec.Decode(&ar); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCDR, err)
	}

	rec := &entity.AcknowledgmentRecord{
		ResponseID:   strings.TrimSpace(ar.ID),
		ReferenceID:  strings.TrimSpace(ar.Document.Response.ReferenceID),
		SenderID:     strings.TrimSpace(ar.SenderID),
		ReceiverID:   strings.TrimSpace(ar.ReceiverID),
		IssuedAt:     peruTimestamp(ar.IssueDate, ar.IssueTime),
		RespondedAt:  peruTimestamp(ar.ResponseDate, ar.ResponseTime),
		ResponseCode: strings.TrimSpace(ar.Document.Response.ResponseCode),
		Description:  strings.TrimSpace(ar.Document.Response.Description),
		RawZip:       zipBytes,
	}
	if rec.ReferenceID == "" {
		rec.ReferenceID = strings.TrimSpace(ar.Document.Reference.ID)
	}
	for _, n := range ar.Notes {
		if note, ok := ParseNote(n); ok {
			rec.Notes = append(rec.Notes, note)
		}
	}
	rec.Outcome = entity.ClassifyResponseCode(rec.ResponseCode, rec.Notes)
	return rec, nil
}

// ParseNote separa "4252 - El dato ingresado..." en código y descripción.
// Sin separador la nota completa queda como descripción.
func ParseNote(s string) (entity.AcknowledgmentNote, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return entity.AcknowledgmentNote{}, false
	}
	code, desc, found := strings.Cut(s, " - ")
	if !found || !isDigits(strings.TrimSpace(code)) {
		return entity.AcknowledgmentNote{Description: s}, true
	}
	return entity.AcknowledgmentNote{Code: strings.TrimSpace(code), Description: strings.TrimSpace(desc)}, true
}

// ── Localización del CDR ──────────────────────────────────────────────────────

type cdrEnvelope struct {
	Body struct {
		SendBill struct {
			ApplicationResponse string `xml:"applicationResponse"`
		} `xml:"sendBillResponse"`
		GetStatus struct {
			Content string `xml:"status>content"`
		} `xml:"getStatusResponse"`
		GetStatusCdr struct {
			Content string `xml:"statusCdr>content"`
		} `xml:"getStatusCdrResponse"`
	} `xml:"Body"`
}

// locateCDR devuelve el ZIP del CDR o, si el cuerpo ya es el ApplicationResponse, el XML.
func locateCDR(body []byte) (zipBytes, xmlBytes []byte, err error) {
	trimmed := bytes.TrimSpace(body)
	switch {
	case len(trimmed) == 0:
		return nil, nil, fmt.Errorf("%w: respuesta vacía", ErrMalformedCDR)
	case bytes.HasPrefix(trimmed, []byte("PK")):
		return trimmed, nil, nil
	case trimmed[0] == '<':
		if isApplicationResponse(trimmed) {
			return nil, trimmed, nil
		}
		var env cdrEnvelope
		if err := xml.Unmarshal(trimmed, &env); err != nil {
			return nil, nil, fmt.Errorf("%w: sobre SOAP: %v", ErrMalformedCDR, err)
		}
		b64 := firstNonEmpty(env.Body.SendBill.ApplicationResponse, env.Body.GetStatus.Content, env.Body.GetStatusCdr.Content)
		if b64 == "" {
			return nil, nil, fmt.Errorf("%w: sobre SOAP sin CDR", ErrMalformedCDR)
		}
		return locateCDR([]byte(b64))
	default:
		decoded, err := decodeBase64(string(trimmed))
		if err != nil {
			return nil, nil, fmt.Errorf("%w: ni ZIP ni Base64: %v", ErrMalformedCDR, err)
		}
		if !bytes.HasPrefix(decoded, []byte("PK")) {
			return nil, nil, fmt.Errorf("%w: el Base64 no contiene un ZIP", ErrMalformedCDR)
		}
		return decoded, nil, nil
	}
}

// extractResponseXML lee la entrada R-*.xml del ZIP; si no existe, el primer .xml.
func extractResponseXML(zipBytes []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(zipBytes), int64(len(zipBytes)))
	if err != nil {
		return nil, fmt.Errorf("%w: zip: %v", ErrMalformedCDR, err)
	}
	var candidate *zip.File
	for _, f := range zr.File {
		name := path.Base(f.Name)
		if f.FileInfo().IsDir() || !strings.HasSuffix(strings.ToLower(name), ".xml") {
			continue
		}
		if strings.HasPrefix(strings.ToUpper(name), "R-") {
			candidate = f
			break
		}
		if candidate == nil {
			candidate = f
		}
	}
	if candidate == nil {
		return nil, fmt.Errorf("%w: el ZIP no contiene R-*.xml", ErrMalformedCDR)
	}
	rc, err := candidate.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: abrir %s: %v", ErrMalformedCDR, candidate.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: leer %s: %v", ErrMalformedCDR, candidate.Name, err)
	}
	return data, nil
}

func isApplicationResponse(b []byte) bool {
	dec := xml.NewDecoder(bytes.NewReader(b))
	dec.CharsetReader = charsetReader
	for {
		tok, err := dec.Token()
		if err != nil {
			return false
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se.Name.Local == "ApplicationResponse"
		}
	}
}

// charsetReader los CDR antiguos se declaran ISO-8859-1.
func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(charset) {
	case "iso-8859-1", "iso8859-1", "latin1":
		return transform.NewReader(input, charmap.ISO8859_1.NewDecoder()), nil
	case "windows-1252", "cp1252":
		return transform.NewReader(input, charmap.Windows1252.NewDecoder()), nil
	case "utf-8", "utf8", "":
		return input, nil
	}
	return nil, errors.New("charset no soportado: " + charset)
}

func peruTimestamp(date, clock string) time.Time {
	date = strings.TrimSpace(date)
	if date == "" {
		return time.Time{}
	}
	clock = strings.TrimSpace(clock)
	if clock != "" {
		for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02 15:04:05.000", "2006-01-02 15:04"} {
			if t, err := time.ParseInLocation(layout, date+" "+clock, PeruTime); err == nil {
				return t
			}
		}
	}
	t, err := time.ParseInLocation("2006-01-02", date, PeruTime)
	if err != nil {
		return time.Time{}
	}
	return t
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
