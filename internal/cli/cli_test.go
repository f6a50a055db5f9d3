package cli_test

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jhoicas/facturacion-sunat/internal/cli"
	"github.com/jhoicas/facturacion-sunat/internal/infrastructure/sunat/signer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := cli.NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// ── ruc ───────────────────────────────────────────────────────────────────────

func TestRUCValidate(t *testing.T) {
	out, err := run(t, "ruc", "validate", "20100066603")
	require.NoError(t, err)
	assert.Contains(t, out, "20100066603\tOK")

	out, err = run(t, "ruc", "validate", "20100066603", "20100066604", "123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 RUC")
	assert.Contains(t, out, "20100066604\tINVÁLIDO\tdígito verificador inválido")
	assert.Contains(t, out, "123\tINVÁLIDO")
}

// ── zip + cdr ─────────────────────────────────────────────────────────────────

func TestZipPackage_NombreDesdeArchivo(t *testing.T) {
	dir := t.TempDir()
	xmlPath := filepath.Join(dir, "20100066603-01-F001-00000001.xml")
	body := "\ufeff<?xml version=\"1.0\" encoding=\"UTF-8\"?><Invoice>" + strings.Repeat("<Note>x</Note>", 60) + "</Invoice>"
	require.NoError(t, os.WriteFile(xmlPath, []byte(body), 0o644))

	out, err := run(t, "zip", "package", xmlPath, "--out", dir)
	require.NoError(t, err)
	zipPath := filepath.Join(dir, "20100066603-01-F001-00000001.zip")
	assert.Contains(t, out, zipPath)

	data, err := os.ReadFile(zipPath)
	require.NoError(t, err)
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)
	assert.Equal(t, "dummy/", zr.File[0].Name)
	assert.Equal(t, "20100066603-01-F001-00000001.xml", zr.File[1].Name)

	rc, err := zr.File[1].Open()
	require.NoError(t, err)
	defer rc.Close()
	var content bytes.Buffer
	_, err = content.ReadFrom(rc)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(content.String(), "<?xml"), "sin BOM")
}

func TestZipPackage_Errores(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "documento.xml")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("a", 600)), 0o644))

	_, err := run(t, "zip", "package", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "clave incompleta")

	short := filepath.Join(dir, "20100066603-03-B001-00000007.xml")
	require.NoError(t, os.WriteFile(short, []byte("<Invoice/>"), 0o644))
	_, err = run(t, "zip", "package", short)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mínimo")
}

const applicationResponse = `<?xml version="1.0" encoding="UTF-8"?>
<ar:ApplicationResponse xmlns:ar="urn:oasis:names:specification:ubl:schema:xsd:ApplicationResponse-2"
  xmlns:cac="urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2"
  xmlns:cbc="urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2">
  <cbc:ID>171234</cbc:ID>
  <cbc:IssueDate>2024-03-15</cbc:IssueDate>
  <cbc:IssueTime>10:30:00</cbc:IssueTime>
  <cbc:ResponseDate>2024-03-15</cbc:ResponseDate>
  <cbc:ResponseTime>10:30:05</cbc:ResponseTime>
  %NOTES%
  <cac:DocumentResponse>
    <cac:Response>
      <cbc:ReferenceID>F001-1</cbc:ReferenceID>
      <cbc:ResponseCode>%CODE%</cbc:ResponseCode>
      <cbc:Description>%DESC%</cbc:Description>
    </cac:Response>
  </cac:DocumentResponse>
</ar:ApplicationResponse>`

func writeCDR(t *testing.T, code, desc, notes string) string {
	t.Helper()
	body := strings.NewReplacer("%CODE%", code, "%DESC%", desc, "%NOTES%", notes).Replace(applicationResponse)
	path := filepath.Join(t.TempDir(), "R-20100066603-01-F001-00000001.xml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestCDRParse(t *testing.T) {
	t.Run("aceptado con observaciones", func(t *testing.T) {
		path := writeCDR(t, "0", "La Factura numero F001-1, ha sido aceptada",
			"<cbc:Note>4287 - El precio unitario de la operación que está informando difiere</cbc:Note>")
		out, err := run(t, "cdr", "parse", path)
		require.NoError(t, err)
		assert.Contains(t, out, "ACCEPTED_WITH_OBSERVATIONS")
		assert.Contains(t, out, "Referencia:  F001-1")
		assert.Contains(t, out, "Nota:        4287 - El precio unitario")
	})

	t.Run("rechazado", func(t *testing.T) {
		path := writeCDR(t, "2800", "El dato ingresado en el tipo de documento de identidad no es válido", "")
		out, err := run(t, "cdr", "parse", path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "2800")
		assert.Contains(t, out, "REJECTED")
	})

	t.Run("desde stdin", func(t *testing.T) {
		path := writeCDR(t, "0", "aceptada", "")
		data, err := os.ReadFile(path)
		require.NoError(t, err)

		cmd := cli.NewRootCommand()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetIn(bytes.NewReader(data))
		cmd.SetArgs([]string{"cdr", "parse", "-"})
		require.NoError(t, cmd.Execute())
		assert.Contains(t, out.String(), "Resultado:   ACCEPTED\n")
	})

	t.Run("ilegible", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "basura.txt")
		require.NoError(t, os.WriteFile(path, []byte("%%% no es un CDR %%%"), 0o644))
		_, err := run(t, "cdr", "parse", path)
		require.Error(t, err)
	})
}

// ── cert / xml ────────────────────────────────────────────────────────────────

func TestCertInspect_ContrasenaIncorrecta(t *testing.T) {
	_, err := run(t, "cert", "inspect", "../infrastructure/sunat/signer/testdata/certificado.p12", "--password", "incorrecta")
	require.Error(t, err)
}

func TestXMLSign_SimuladoSinCertificado(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "20100066603-01-F001-00000001.xml")
	require.NoError(t, os.WriteFile(in, []byte(`<?xml version="1.0" encoding="UTF-8"?><Invoice><ID>F001-00000001</ID></Invoice>`), 0o644))

	_, err := run(t, "xml", "sign", in, "--cert", filepath.Join(dir, "no-existe.p12"))
	require.Error(t, err, "sin --allow-simulated la falta de certificado es un error")

	out, err := run(t, "xml", "sign", in, "--cert", filepath.Join(dir, "no-existe.p12"), "--allow-simulated")
	require.NoError(t, err)
	assert.Contains(t, out, "Modo:    SIMULADO")

	signed, err := os.ReadFile(filepath.Join(dir, "20100066603-01-F001-00000001-firmado.xml"))
	require.NoError(t, err)
	assert.True(t, signer.IsSimulated(signed))

	_, err = run(t, "xml", "verify", filepath.Join(dir, "20100066603-01-F001-00000001-firmado.xml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "simulada")
}

func TestStatusQuery_RequiereParametros(t *testing.T) {
	_, err := run(t, "status", "query", "extra")
	require.Error(t, err)
}
