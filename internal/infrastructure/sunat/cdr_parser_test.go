package sunat_test

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"fmt"
	"testing"
	"time"

	"github.com/jhoicas/facturacion-sunat/internal/domain/entity"
	infrasunat "github.com/jhoicas/facturacion-sunat/internal/infrastructure/sunat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cdrXML(code, description string, notes ...string) string {
	var noteXML string
	for _, n := range notes {
		noteXML += "<cbc:Note>" + n + "</cbc:Note>"
	}
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<ar:ApplicationResponse xmlns:ar="urn:oasis:names:specification:ubl:schema:xsd:ApplicationResponse-2"
  xmlns:cac="urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2"
  xmlns:cbc="urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2">
  <cbc:UBLVersionID>2.0</cbc:UBLVersionID>
  <cbc:ID>202400000001</cbc:ID>
  <cbc:IssueDate>2024-03-15</cbc:IssueDate>
  <cbc:IssueTime>10:30:00</cbc:IssueTime>
  <cbc:ResponseDate>2024-03-15</cbc:ResponseDate>
  <cbc:ResponseTime>10:30:05</cbc:ResponseTime>
  %s
  <cac:SenderParty><cac:PartyIdentification><cbc:ID>20131312955</cbc:ID></cac:PartyIdentification></cac:SenderParty>
  <cac:ReceiverParty><cac:PartyIdentification><cbc:ID>6-20100066603</cbc:ID></cac:PartyIdentification></cac:ReceiverParty>
  <cac:DocumentResponse>
    <cac:Response>
      <cbc:ReferenceID>F001-1</cbc:ReferenceID>
      <cbc:ResponseCode>%s</cbc:ResponseCode>
      <cbc:Description>%s</cbc:Description>
    </cac:Response>
    <cac:DocumentReference><cbc:ID>F001-1</cbc:ID></cac:DocumentReference>
  </cac:DocumentResponse>
</ar:ApplicationResponse>`, noteXML, code, description)
}

func cdrZip(t *testing.T, xmlContent string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	_, err := zw.Create("dummy/")
	require.NoError(t, err)
	w, err := zw.Create("R-20100066603-01-F001-00000001.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(xmlContent))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestParseAcknowledgment_Aceptado(t *testing.T) {
	zipBytes := cdrZip(t, cdrXML("0", "La Factura numero F001-1, ha sido aceptada"))
	rec, err := infrasunat.ParseAcknowledgment(zipBytes)
	require.NoError(t, err)

	assert.Equal(t, entity.OutcomeAccepted, rec.Outcome)
	assert.True(t, rec.Accepted())
	assert.False(t, rec.Rejected())
	assert.Equal(t, "0", rec.ResponseCode)
	assert.Equal(t, "F001-1", rec.ReferenceID)
	assert.Equal(t, "202400000001", rec.ResponseID)
	assert.Equal(t, "20131312955", rec.SenderID)
	assert.Equal(t, "6-20100066603", rec.ReceiverID)
	assert.Equal(t, zipBytes, rec.RawZip)

	want := time.Date(2024, 3, 15, 10, 30, 5, 0, infrasunat.PeruTime)
	assert.True(t, rec.RespondedAt.Equal(want))
}

func TestParseAcknowledgment_Clasificacion(t *testing.T) {
	cases := []struct {
		code     string
		outcome  entity.Outcome
		accepted bool
		rejected bool
		obs      bool
	}{
		{"0", entity.OutcomeAccepted, true, false, false},
		{"2001", entity.OutcomeRejected, false, true, false},
		{"3105", entity.OutcomeRejected, false, true, false},
		{"4001", entity.OutcomeAcceptedWithObservations, true, false, true},
		{"1033", entity.OutcomeUnknown, false, false, false},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			rec, err := infrasunat.ParseAcknowledgment(cdrZip(t, cdrXML(tc.code, "descripción")))
			require.NoError(t, err)
			assert.Equal(t, tc.outcome, rec.Outcome)
			assert.Equal(t, tc.accepted, rec.Accepted())
			assert.Equal(t, tc.rejected, rec.Rejected())
			assert.Equal(t, tc.obs, rec.AcceptedWithObservations())
		})
	}
}

func TestParseAcknowledgment_Notas(t *testing.T) {
	xmlContent := cdrXML("0", "aceptada con observaciones",
		"4252 - El dato ingresado como atributo @listName es incorrecto",
		"4255 - El dato ingresado como atributo @listAgencyName es incorrecto")
	rec, err := infrasunat.ParseAcknowledgment(cdrZip(t, xmlContent))
	require.NoError(t, err)

	require.Len(t, rec.Notes, 2)
	assert.Equal(t, "4252", rec.Notes[0].Code)
	assert.Equal(t, "El dato ingresado como atributo @listName es incorrecto", rec.Notes[0].Description)
	assert.Equal(t, entity.OutcomeAcceptedWithObservations, rec.Outcome)
}

func TestParseAcknowledgment_Base64YSobreSOAP(t *testing.T) {
	zipBytes := cdrZip(t, cdrXML("0", "ok"))
	b64 := base64.StdEncoding.EncodeToString(zipBytes)

	rec, err := infrasunat.ParseAcknowledgment([]byte(b64))
	require.NoError(t, err)
	assert.Equal(t, entity.OutcomeAccepted, rec.Outcome)

	envelope := `<soap-env:Envelope xmlns:soap-env="http://schemas.xmlsoap.org/soap/envelope/">
  <soap-env:Body><br:sendBillResponse xmlns:br="http://service.sunat.gob.pe">
    <applicationResponse>` + b64 + `</applicationResponse>
  </br:sendBillResponse></soap-env:Body></soap-env:Envelope>`
	rec, err = infrasunat.ParseAcknowledgment([]byte(envelope))
	require.NoError(t, err)
	assert.Equal(t, "F001-1", rec.ReferenceID)
}

func TestParseAcknowledgment_ISO88591(t *testing.T) {
	// "Descripción" con ó codificada en Latin-1 (0xF3).
	latin := []byte(`<?xml version="1.0" encoding="ISO-8859-1"?>
<ApplicationResponse><DocumentResponse><Response><ResponseCode>0</ResponseCode><Description>Descripci` +
		"\xf3" + `n</Description></Response></DocumentResponse></ApplicationResponse>`)
	rec, err := infrasunat.ParseAcknowledgment(cdrZip(t, string(latin)))
	require.NoError(t, err)
	assert.Equal(t, "Descripción", rec.Description)
}

func TestParseAcknowledgment_Malformado(t *testing.T) {
	for name, body := range map[string][]byte{
		"vacío": nil,
		"texto": []byte("esto no es un CDR"),
		"zip sin xml": func() []byte {
			var buf bytes.Buffer
			zw := zip.NewWriter(&buf)
			_, _ = zw.Create("dummy/")
			_ = zw.Close()
			return buf.Bytes()
		}(),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := infrasunat.ParseAcknowledgment(body)
			require.Error(t, err)
			assert.ErrorIs(t, err, infrasunat.ErrMalformedCDR)
		})
	}
}

func TestParseNote(t *testing.T) {
	n, ok := infrasunat.ParseNote("4093 - El código de ubigeo no existe")
	require.True(t, ok)
	assert.Equal(t, "4093", n.Code)

	n, ok = infrasunat.ParseNote("observación libre")
	require.True(t, ok)
	assert.Empty(t, n.Code)
	assert.Equal(t, "observación libre", n.Description)

	_, ok = infrasunat.ParseNote("  ")
	assert.False(t, ok)
}
