package sunat_test

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/jhoicas/facturacion-sunat/pkg/sunat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRUC_Conocido(t *testing.T) {
	ok, reason := sunat.ValidateRUC("20100066603")
	assert.True(t, ok, reason)
}

func TestValidateRUC_Formato(t *testing.T) {
	casos := map[string]string{
		"corto":       "2010006660",
		"largo":       "201000666031",
		"con letras":  "2010006660A",
		"con guiones": "20-10006660",
		"vacío":       "",
	}
	for nombre, ruc := range casos {
		t.Run(nombre, func(t *testing.T) {
			ok, reason := sunat.ValidateRUC(ruc)
			assert.False(t, ok)
			assert.NotEmpty(t, reason)
		})
	}
}

// El RUC generado con el dígito correcto siempre valida; cambiar el último dígito siempre falla.
func TestValidateRUC_RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		first10 := fmt.Sprintf("%010d", rng.Int63n(10_000_000_000))
		d, err := sunat.ComputeRUCCheckDigit(first10)
		require.NoError(t, err)

		ruc := first10 + string(d)
		ok, reason := sunat.ValidateRUC(ruc)
		require.True(t, ok, "%s: %s", ruc, reason)

		flipped := first10 + string('0'+(d-'0'+1)%10)
		ok, _ = sunat.ValidateRUC(flipped)
		require.False(t, ok, "%s no debería validar", flipped)
	}
}

func TestComputeRUCCheckDigit_ResiduoMenorADos(t *testing.T) {
	// 1000000000: 1*5 = 5 → r=5 → 6
	d, err := sunat.ComputeRUCCheckDigit("1000000000")
	require.NoError(t, err)
	assert.Equal(t, byte('6'), d)

	// 0000000000: suma 0 → r=0 → 0
	d, err = sunat.ComputeRUCCheckDigit("0000000000")
	require.NoError(t, err)
	assert.Equal(t, byte('0'), d)

	// 0000000006: 6*2 = 12 → r=1 → 1
	d, err = sunat.ComputeRUCCheckDigit("0000000006")
	require.NoError(t, err)
	assert.Equal(t, byte('1'), d)
}

func TestComputeRUCCheckDigit_Invalido(t *testing.T) {
	_, err := sunat.ComputeRUCCheckDigit("12345")
	assert.Error(t, err)
	_, err = sunat.ComputeRUCCheckDigit("12345x7890")
	assert.Error(t, err)
}
