package sunat

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/jhoicas/facturacion-sunat/internal/domain"
	"github.com/jhoicas/facturacion-sunat/pkg/config"
)

// ── Constantes SOAP ────────────────────────────────────────────────────────────

const (
	soapNS    = "http://schemas.xmlsoap.org/soap/envelope/"
	serviceNS = "http://service.sunat.gob.pe"
	wsseNS    = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-secext-1.0.xsd"
	// Tipo de password del UsernameToken (texto plano).
	passwordText = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-username-token-profile-1.0#PasswordText"

	maxResponseSize = 1 << 20

	// StatusInProcess código de getStatus cuando el ticket aún se procesa.
	StatusInProcess = "98"
	// StatusProcessedWithErrors código de getStatus cuando el lote terminó con errores.
	StatusProcessedWithErrors = "99"
)

// ── Credenciales y endpoints ──────────────────────────────────────────────────

// Credentials usuario SOL del emisor.
type Credentials struct {
	RUC      string
	User     string // código corto de usuario SOL
	Password string
}

// Username usuario WS-Security: RUC seguido del usuario SOL.
func (c Credentials) Username() string { return c.RUC + c.User }

// Endpoints URLs del servicio de envío y del servicio de consulta de CDR.
type Endpoints struct {
	Bill    string
	Consult string
}

// EndpointsFor resuelve los endpoints del entorno; las URLs no vacías de override ganan.
func EndpointsFor(env, billOverride, consultOverride string) Endpoints {
	e := Endpoints{Bill: BillServiceBeta, Consult: ConsultServiceBeta}
	if env == config.SUNATEnvProd {
		e = Endpoints{Bill: BillServiceProd, Consult: ConsultServiceProd}
	}
	if billOverride != "" {
		e.Bill = billOverride
	}
	if consultOverride != "" {
		e.Consult = consultOverride
	}
	return e
}

// ── Cliente ───────────────────────────────────────────────────────────────────

// Client cliente SOAP de los servicios billService y billConsultService.
// No reintenta: un fallo se devuelve al llamador, que decide si reenviar.
type Client struct {
	httpClient *http.Client
	endpoints  Endpoints
}

// NewClient construye el cliente con el timeout acotado a [60s, 120s].
func NewClient(endpoints Endpoints, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: config.ClampTimeout(timeout)},
		endpoints:  endpoints,
	}
}

// NewClientWithHTTP permite inyectar el http.Client (tests, proxies).
func NewClientWithHTTP(endpoints Endpoints, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: config.DefaultSUNATTimeout}
	}
	return &Client{httpClient: hc, endpoints: endpoints}
}

// Endpoints URLs en uso.
func (c *Client) Endpoints() Endpoints { return c.endpoints }

// ── Estructuras SOAP ──────────────────────────────────────────────────────────

type soapEnvelope struct {
	XMLName  xml.Name   `xml:"soapenv:Envelope"`
	XmlnsEnv string     `xml:"xmlns:soapenv,attr"`
	XmlnsSer string     `xml:"xmlns:ser,attr"`
	XmlnsWss string     `xml:"xmlns:wsse,attr"`
	Header   soapHeader `xml:"soapenv:Header"`
	Body     soapBody   `xml:"soapenv:Body"`
}

type soapHeader struct {
	Security wsseSecurity `xml:"wsse:Security"`
}

type wsseSecurity struct {
	UsernameToken wsseUsernameToken `xml:"wsse:UsernameToken"`
}

type wsseUsernameToken struct {
	Username string       `xml:"wsse:Username"`
	Password wssePassword `xml:"wsse:Password"`
}

type wssePassword struct {
	Type  string `xml:"Type,attr"`
	Value string `xml:",chardata"`
}

type soapBody struct {
	Content interface{}
}

func (b soapBody) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Name.Local = "soapenv:Body"
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	if err := e.Encode(b.Content); err != nil {
		return err
	}
	return e.EncodeToken(start.End())
}

type sendFileBody struct {
	XMLName     xml.Name
	FileName    string `xml:"fileName"`
	ContentFile string `xml:"contentFile"` // ZIP en Base64
}

type getStatusBody struct {
	XMLName xml.Name `xml:"ser:getStatus"`
	Ticket  string   `xml:"ticket"`
}

type getStatusCdrBody struct {
	XMLName xml.Name `xml:"ser:getStatusCdr"`
	RUC     string   `xml:"rucComprobante"`
	Type    string   `xml:"tipoComprobante"`
	Series  string   `xml:"serieComprobante"`
	Number  int64    `xml:"numeroComprobante"`
}

// ── Estructuras de respuesta ──────────────────────────────────────────────────

type responseEnvelope struct {
	Body responseBody `xml:"Body"`
}

type responseBody struct {
	SendBill *struct {
		ApplicationResponse string `xml:"applicationResponse"`
	} `xml:"sendBillResponse"`
	SendSummary *struct {
		Ticket string `xml:"ticket"`
	} `xml:"sendSummaryResponse"`
	GetStatus *struct {
		Status statusPayload `xml:"status"`
	} `xml:"getStatusResponse"`
	GetStatusCdr *struct {
		StatusCdr statusPayload `xml:"statusCdr"`
	} `xml:"getStatusCdrResponse"`
	Fault *soapFault `xml:"Fault"`
}

type statusPayload struct {
	StatusCode    string `xml:"statusCode"`
	StatusMessage string `xml:"statusMessage"`
	Content       string `xml:"content"`
}

type soapFault struct {
	FaultCode   string `xml:"faultcode"`
	FaultString string `xml:"faultstring"`
	Detail      string `xml:"detail>message"`
}

// ── Resultados ────────────────────────────────────────────────────────────────

// BillResponse respuesta síncrona de sendBill: el CDR en ZIP ya decodificado.
type BillResponse struct {
	CDRZip []byte
	Raw    []byte
}

// StatusResponse respuesta de getStatus (ticket) o getStatusCdr (clave natural).
type StatusResponse struct {
	StatusCode    string
	StatusMessage string
	CDRZip        []byte // vacío mientras el ticket esté en proceso
	Raw           []byte
}

// InProcess indica que SUNAT aún procesa el ticket.
func (s *StatusResponse) InProcess() bool { return s.StatusCode == StatusInProcess }

// HasCDR indica si la respuesta trae constancia.
func (s *StatusResponse) HasCDR() bool { return len(s.CDRZip) > 0 }

// ── Operaciones ───────────────────────────────────────────────────────────────

// SendBill envío síncrono (factura, boleta, notas). Devuelve el CDR.
func (c *Client) SendBill(ctx context.Context, fileName string, zipBytes []byte, cred Credentials) (*BillResponse, error) {
	const op = "sendBill"
	body := &sendFileBody{
		XMLName:     xml.Name{Local: "ser:sendBill"},
		FileName:    fileName,
		ContentFile: base64.StdEncoding.EncodeToString(zipBytes),
	}
	raw, resp, err := c.call(ctx, op, c.endpoints.Bill, body, cred)
	if err != nil {
		return nil, err
	}
	if resp.Body.SendBill == nil || strings.TrimSpace(resp.Body.SendBill.ApplicationResponse) == "" {
		return nil, &domain.TransportError{Op: op, Err: errors.New("respuesta sin applicationResponse")}
	}
	cdr, err := decodeBase64(resp.Body.SendBill.ApplicationResponse)
	if err != nil {
		return nil, &domain.TransportError{Op: op, Err: fmt.Errorf("applicationResponse: %w", err)}
	}
	return &BillResponse{CDRZip: cdr, Raw: raw}, nil
}

// SendSummary envío asíncrono. Devuelve el ticket a consultar con GetStatus.
func (c *Client) SendSummary(ctx context.Context, fileName string, zipBytes []byte, cred Credentials) (string, error) {
	const op = "sendSummary"
	body := &sendFileBody{
		XMLName:     xml.Name{Local: "ser:sendSummary"},
		FileName:    fileName,
		ContentFile: base64.StdEncoding.EncodeToString(zipBytes),
	}
	_, resp, err := c.call(ctx, op, c.endpoints.Bill, body, cred)
	if err != nil {
		return "", err
	}
	if resp.Body.SendSummary == nil || strings.TrimSpace(resp.Body.SendSummary.Ticket) == "" {
		return "", &domain.TransportError{Op: op, Err: errors.New("respuesta sin ticket")}
	}
	return strings.TrimSpace(resp.Body.SendSummary.Ticket), nil
}

// GetStatus consulta un ticket. Código 98 = en proceso; 0 o 99 traen CDR.
func (c *Client) GetStatus(ctx context.Context, ticket string, cred Credentials) (*StatusResponse, error) {
	const op = "getStatus"
	raw, resp, err := c.call(ctx, op, c.endpoints.Bill, &getStatusBody{Ticket: ticket}, cred)
	if err != nil {
		return nil, err
	}
	if resp.Body.GetStatus == nil {
		return nil, &domain.TransportError{Op: op, Err: errors.New("respuesta sin status")}
	}
	return toStatus(op, resp.Body.GetStatus.Status, raw)
}

// GetStatusCdr vuelve a pedir el CDR de un comprobante por su clave natural.
func (c *Client) GetStatusCdr(ctx context.Context, ruc, typeCode, series string, number int64, cred Credentials) (*StatusResponse, error) {
	const op = "getStatusCdr"
	body := &getStatusCdrBody{RUC: ruc, Type: typeCode, Series: series, Number: number}
	raw, resp, err := c.call(ctx, op, c.endpoints.Consult, body, cred)
	if err != nil {
		return nil, err
	}
	if resp.Body.GetStatusCdr == nil {
		return nil, &domain.TransportError{Op: op, Err: errors.New("respuesta sin statusCdr")}
	}
	return toStatus(op, resp.Body.GetStatusCdr.StatusCdr, raw)
}

func toStatus(op string, p statusPayload, raw []byte) (*StatusResponse, error) {
	out := &StatusResponse{
		StatusCode:    strings.TrimSpace(p.StatusCode),
		StatusMessage: strings.TrimSpace(p.StatusMessage),
		Raw:           raw,
	}
	if s := strings.TrimSpace(p.Content); s != "" {
		cdr, err := decodeBase64(s)
		if err != nil {
			return nil, &domain.TransportError{Op: op, Err: fmt.Errorf("content: %w", err)}
		}
		out.CDRZip = cdr
	}
	return out, nil
}

// ── Transporte ────────────────────────────────────────────────────────────────

// call arma el sobre, hace el POST y clasifica la respuesta:
// SOAP Fault -> *domain.RejectedError; red, HTTP o cuerpo ilegible -> *domain.TransportError.
func (c *Client) call(ctx context.Context, op, url string, content interface{}, cred Credentials) ([]byte, *responseEnvelope, error) {
	envelope := soapEnvelope{
		XmlnsEnv: soapNS,
		XmlnsSer: serviceNS,
		XmlnsWss: wsseNS,
		Header: soapHeader{Security: wsseSecurity{UsernameToken: wsseUsernameToken{
			Username: cred.Username(),
			Password: wssePassword{Type: passwordText, Value: cred.Password},
		}}},
		Body: soapBody{Content: content},
	}
	payload, err := xml.Marshal(envelope)
	if err != nil {
		return nil, nil, fmt.Errorf("soap %s: serializar envelope: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(append([]byte(xml.Header), payload...)))
	if err != nil {
		return nil, nil, &domain.TransportError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", "urn:"+op)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, &domain.TransportError{Op: op, Err: fmt.Errorf("timeout o cancelación: %w", ctx.Err())}
		}
		return nil, nil, &domain.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, nil, &domain.TransportError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("leer respuesta: %w", err)}
	}

	var env responseEnvelope
	if err := xml.Unmarshal(raw, &env); err != nil {
		return raw, nil, &domain.TransportError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("respuesta SOAP ilegible: %w", err)}
	}
	// SUNAT responde los Fault con HTTP 500: se revisa antes que el código HTTP.
	if f := env.Body.Fault; f != nil {
		return raw, nil, faultToError(f)
	}
	if resp.StatusCode != http.StatusOK {
		return raw, nil, &domain.TransportError{Op: op, StatusCode: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}
	}
	return raw, &env, nil
}

var faultDigits = regexp.MustCompile(`\d+`)

// maxFaultCodeLen ancho de last_response_code y response_code en la base.
const maxFaultCodeLen = 32

// faultToError extrae el código numérico de faultcode ("soap-env:Client.0306" -> "0306").
// Si faultcode no trae dígitos se prueba con faultstring; en último caso queda el nombre
// local de faultcode ("soap-env:Server" -> "Server").
func faultToError(f *soapFault) *domain.RejectedError {
	code := strings.TrimSpace(f.FaultCode)
	if m := faultDigits.FindAllString(code, -1); len(m) > 0 {
		code = m[len(m)-1]
	} else if m := faultDigits.FindString(f.FaultString); m != "" && len(m) == len(strings.TrimSpace(f.FaultString)) {
		code = m
	} else {
		code = faultLocalName(code)
	}
	desc := strings.TrimSpace(f.FaultString)
	if d := strings.TrimSpace(f.Detail); d != "" && d != desc {
		desc = strings.TrimSpace(desc + " " + d)
	}
	return &domain.RejectedError{Code: code, Description: desc}
}

// faultLocalName "soap-env:Server" -> "Server", acotado a maxFaultCodeLen.
func faultLocalName(code string) string {
	if i := strings.LastIndexByte(code, ':'); i >= 0 {
		code = code[i+1:]
	}
	if code == "" {
		code = "Fault"
	}
	if len(code) > maxFaultCodeLen {
		code = code[:maxFaultCodeLen]
	}
	return code
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == ' ' || r == '\t' {
			return -1
		}
		return r
	}, s)
	return base64.StdEncoding.DecodeString(s)
}
