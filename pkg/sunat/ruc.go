package sunat

import "fmt"

// RUCLength longitud fija del RUC.
const RUCLength = 11

// pesos del módulo 11 aplicados a los 10 primeros dígitos del RUC, de izquierda a derecha.
var rucWeights = [10]int{5, 4, 3, 2, 7, 6, 5, 4, 3, 2}

// ValidateRUC valida formato (11 dígitos numéricos) y dígito verificador del RUC.
// Devuelve false y el motivo legible cuando no es válido.
func ValidateRUC(ruc string) (bool, string) {
	if len(ruc) != RUCLength {
		return false, fmt.Sprintf("el RUC debe tener %d dígitos, se recibieron %d", RUCLength, len(ruc))
	}
	for i := 0; i < len(ruc); i++ {
		if ruc[i] < '0' || ruc[i] > '9' {
			return false, "el RUC solo puede contener dígitos"
		}
	}
	expected, err := ComputeRUCCheckDigit(ruc[:10])
	if err != nil {
		return false, err.Error()
	}
	if ruc[10] != expected {
		return false, fmt.Sprintf("dígito verificador inválido: esperado %c, recibido %c", expected, ruc[10])
	}
	return true, "RUC válido"
}

// ComputeRUCCheckDigit calcula el dígito verificador para los 10 primeros dígitos.
// Residuo menor a 2 se usa tal cual; en otro caso 11 - residuo.
func ComputeRUCCheckDigit(first10 string) (byte, error) {
	if len(first10) != 10 {
		return 0, fmt.Errorf("sunat: se requieren 10 dígitos para calcular el dígito verificador, se recibieron %d", len(first10))
	}
	var sum int
	for i := 0; i < 10; i++ {
		c := first10[i]
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("sunat: carácter no numérico %q en la posición %d", c, i+1)
		}
		sum += int(c-'0') * rucWeights[i]
	}
	r := sum % 11
	if r < 2 {
		return byte('0' + r), nil
	}
	d := 11 - r
	// 11 - r con r >= 2 siempre queda en 1..9
	return byte('0' + d), nil
}
