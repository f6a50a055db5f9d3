package sunat

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	wordUnits = [30]string{
		"", "UNO", "DOS", "TRES", "CUATRO", "CINCO", "SEIS", "SIETE", "OCHO", "NUEVE",
		"DIEZ", "ONCE", "DOCE", "TRECE", "CATORCE", "QUINCE", "DIECISÉIS", "DIECISIETE", "DIECIOCHO", "DIECINUEVE",
		"VEINTE", "VEINTIUNO", "VEINTIDÓS", "VEINTITRÉS", "VEINTICUATRO", "VEINTICINCO", "VEINTISÉIS", "VEINTISIETE", "VEINTIOCHO", "VEINTINUEVE",
	}
	wordTens = [10]string{
		"", "", "", "TREINTA", "CUARENTA", "CINCUENTA", "SESENTA", "SETENTA", "OCHENTA", "NOVENTA",
	}
	wordHundreds = [10]string{
		"", "CIENTO", "DOSCIENTOS", "TRESCIENTOS", "CUATROCIENTOS", "QUINIENTOS",
		"SEISCIENTOS", "SETECIENTOS", "OCHOCIENTOS", "NOVECIENTOS",
	}
)

// AmountInWords texto de la leyenda 1000: "SON DOSCIENTOS TREINTA Y SEIS Y 00/100 SOLES".
func AmountInWords(amount decimal.Decimal, currency string) string {
	amount = amount.Abs().Round(2)
	integer := amount.Truncate(0)
	cents := amount.Sub(integer).Mul(decimal.NewFromInt(100)).Round(0).IntPart()

	name, ok := CurrencyNames[currency]
	if !ok {
		name = currency
	}
	return fmt.Sprintf("SON %s Y %02d/100 %s", IntegerToWords(integer.IntPart()), cents, name)
}

// IntegerToWords convierte un entero no negativo a su forma en letras (mayúsculas).
func IntegerToWords(n int64) string {
	if n <= 0 {
		return "CERO"
	}
	millions := n / 1_000_000
	rest := n % 1_000_000

	var parts []string
	switch {
	case millions == 1:
		parts = append(parts, "UN MILLÓN")
	case millions > 1:
		parts = append(parts, apocope(belowMillion(millions))+" MILLONES")
	}
	if rest > 0 {
		parts = append(parts, belowMillion(rest))
	}
	return strings.Join(parts, " ")
}

// belowMillion cubre 1..999999; valores mayores se tratan por grupos de mil.
func belowMillion(n int64) string {
	thousands := n / 1000
	rest := int(n % 1000)

	var parts []string
	switch {
	case thousands == 1:
		parts = append(parts, "MIL")
	case thousands > 1 && thousands < 1000:
		parts = append(parts, apocope(belowThousand(int(thousands)))+" MIL")
	case thousands >= 1000:
		parts = append(parts, apocope(belowMillion(thousands))+" MIL")
	}
	if rest > 0 {
		parts = append(parts, belowThousand(rest))
	}
	return strings.Join(parts, " ")
}

func belowThousand(n int) string {
	if n == 100 {
		return "CIEN"
	}
	var parts []string
	if h := n / 100; h > 0 {
		parts = append(parts, wordHundreds[h])
	}
	if t := belowHundred(n % 100); t != "" {
		parts = append(parts, t)
	}
	return strings.Join(parts, " ")
}

func belowHundred(n int) string {
	if n < 30 {
		return wordUnits[n]
	}
	s := wordTens[n/10]
	if u := n % 10; u > 0 {
		s += " Y " + wordUnits[u]
	}
	return s
}

// apocope "UNO" → "UN" delante de MIL / MILLONES.
func apocope(s string) string {
	switch {
	case strings.HasSuffix(s, "VEINTIUNO"):
		return strings.TrimSuffix(s, "VEINTIUNO") + "VEINTIÚN"
	case strings.HasSuffix(s, "UNO"):
		return strings.TrimSuffix(s, "UNO") + "UN"
	}
	return s
}
