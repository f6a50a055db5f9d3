package sunat

import (
	"archive/zip"
	"bytes"
	"fmt"
	"time"

	"github.com/jhoicas/facturacion-sunat/internal/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// FileBaseName nombre exigido por SUNAT: {RUC}-{TIPO}-{SERIE}-{NUMERO de 8 dígitos}.
func FileBaseName(ruc, typeCode, series string, number int64) string {
	return fmt.Sprintf("%s-%s-%s-%08d", ruc, typeCode, series, number)
}

// FileNames nombres del XML interno y del ZIP a enviar.
func FileNames(ruc, typeCode, series string, number int64) (xmlName, zipName string) {
	base := FileBaseName(ruc, typeCode, series, number)
	return base + ".xml", base + ".zip"
}

// Package empaqueta el XML firmado en un ZIP en memoria con exactamente dos entradas:
// el directorio vacío "dummy/" y el XML. El BOM inicial, si existe, se elimina.
// Devuelve *domain.PackagingError si el XML está vacío o es demasiado pequeño.
func Package(signedXML []byte, ruc, typeCode, series string, number int64) ([]byte, error) {
	content := bytes.TrimPrefix(signedXML, utf8BOM)
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, &domain.PackagingError{Reason: "XML vacío"}
	}
	if len(content) < MinSignedXMLSize {
		return nil, &domain.PackagingError{
			Reason: fmt.Sprintf("XML de %d bytes, mínimo %d", len(content), MinSignedXMLSize),
		}
	}
	if ruc == "" || typeCode == "" || series == "" || number <= 0 {
		return nil, &domain.PackagingError{Reason: "nombre de archivo incompleto"}
	}
	xmlName, _ := FileNames(ruc, typeCode, series, number)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	modified := time.Now()

	if _, err := zw.CreateHeader(&zip.FileHeader{Name: DummyDirEntry, Method: zip.Store, Modified: modified}); err != nil {
		return nil, fmt.Errorf("zip: crear entrada %s: %w", DummyDirEntry, err)
	}
	fw, err := zw.CreateHeader(&zip.FileHeader{Name: xmlName, Method: zip.Deflate, Modified: modified})
	if err != nil {
		return nil, fmt.Errorf("zip: crear entrada %s: %w", xmlName, err)
	}
	if _, err := fw.Write(content); err != nil {
		return nil, fmt.Errorf("zip: escribir XML: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zip: cerrar archivo: %w", err)
	}
	return buf.Bytes(), nil
}
