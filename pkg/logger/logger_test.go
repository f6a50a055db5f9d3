package logger_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/jhoicas/facturacion-sunat/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONConCamposDeComprobante(t *testing.T) {
	var buf bytes.Buffer
	l := logger.New(logger.Config{Env: "production", Level: "debug", Service: "facturacion", Output: &buf})

	zl := logger.Document(l.Component("pipeline"), "doc-1", "corr-1")
	zl.Info().Str("stage", "signing").Msg("firmado")

	var ev map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &ev))
	assert.Equal(t, "facturacion", ev["service"])
	assert.Equal(t, "pipeline", ev["component"])
	assert.Equal(t, "doc-1", ev["document_id"])
	assert.Equal(t, "corr-1", ev["correlation_id"])
	assert.Equal(t, "info", ev["level"])
}

func TestNew_NivelDesconocidoQuedaEnInfo(t *testing.T) {
	var buf bytes.Buffer
	l := logger.New(logger.Config{Level: "verboso", Output: &buf})

	l.Debug().Msg("no sale")
	assert.Empty(t, buf.String())
	l.Info().Msg("sale")
	assert.Contains(t, buf.String(), "sale")
}
