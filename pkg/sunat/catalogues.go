// Package sunat contiene catálogos y validaciones alineados a la documentación
// de comprobantes de pago electrónicos UBL 2.1 de SUNAT (Perú).
package sunat

// =============================================================================
// Catálogo 01 - Tipo de documento
// =============================================================================

const (
	DocTypeInvoice    = "01" // Factura
	DocTypeBoleta     = "03" // Boleta de venta
	DocTypeCreditNote = "07" // Nota de crédito
	DocTypeDebitNote  = "08" // Nota de débito
)

// DocumentTypeNames descripción legible por tipo de comprobante.
var DocumentTypeNames = map[string]string{
	DocTypeInvoice:    "FACTURA ELECTRÓNICA",
	DocTypeBoleta:     "BOLETA DE VENTA ELECTRÓNICA",
	DocTypeCreditNote: "NOTA DE CRÉDITO ELECTRÓNICA",
	DocTypeDebitNote:  "NOTA DE DÉBITO ELECTRÓNICA",
}

// =============================================================================
// Catálogo 06 - Tipo de documento de identidad
// =============================================================================

const (
	IdentityNone     = "0" // Doc. trib. no dom. sin RUC / varios
	IdentityDNI      = "1"
	IdentityForeign  = "4" // Carnet de extranjería
	IdentityRUC      = "6"
	IdentityPassport = "7"
	IdentityDiplo    = "A" // Cédula diplomática
)

// ValidIdentityTypes tipos de documento de identidad aceptados.
var ValidIdentityTypes = map[string]bool{
	IdentityNone: true, IdentityDNI: true, IdentityForeign: true,
	IdentityRUC: true, IdentityPassport: true, IdentityDiplo: true,
}

// =============================================================================
// Catálogo 07 - Tipo de afectación del IGV
// =============================================================================

const (
	AffectTaxed          = "10" // Gravado - Operación onerosa
	AffectTaxedGift      = "11" // Gravado - Retiro por premio
	AffectTaxedDonation  = "12" // Gravado - Retiro por donación
	AffectTaxedWithdraw  = "13" // Gravado - Retiro
	AffectTaxedAdvert    = "14" // Gravado - Retiro por publicidad
	AffectTaxedBonus     = "15" // Gravado - Bonificaciones
	AffectTaxedWorkers   = "16" // Gravado - Retiro por entrega a trabajadores
	AffectExempt         = "20" // Exonerado - Operación onerosa
	AffectExemptFree     = "21" // Exonerado - Transferencia gratuita
	AffectUnaffected     = "30" // Inafecto - Operación onerosa
	AffectUnaffectedBon  = "31" // Inafecto - Retiro por bonificación
	AffectUnaffectedWd   = "32" // Inafecto - Retiro
	AffectUnaffectedMed  = "33" // Inafecto - Retiro por muestras médicas
	AffectUnaffectedConv = "34" // Inafecto - Retiro por convenio colectivo
	AffectUnaffectedPrz  = "35" // Inafecto - Retiro por premio
	AffectUnaffectedAdv  = "36" // Inafecto - Retiro por publicidad
	AffectUnaffectedFree = "37" // Inafecto - Transferencia gratuita
	AffectExport         = "40" // Exportación de bienes o servicios
)

// AffectationFamily familia tributaria de un código de afectación.
type AffectationFamily int

const (
	FamilyTaxed AffectationFamily = iota + 1
	FamilyExempt
	FamilyUnaffected
	FamilyExport
)

type affectation struct {
	family AffectationFamily
	free   bool
}

var affectations = map[string]affectation{
	AffectTaxed:          {FamilyTaxed, false},
	AffectTaxedGift:      {FamilyTaxed, true},
	AffectTaxedDonation:  {FamilyTaxed, true},
	AffectTaxedWithdraw:  {FamilyTaxed, true},
	AffectTaxedAdvert:    {FamilyTaxed, true},
	AffectTaxedBonus:     {FamilyTaxed, true},
	AffectTaxedWorkers:   {FamilyTaxed, true},
	AffectExempt:         {FamilyExempt, false},
	AffectExemptFree:     {FamilyExempt, true},
	AffectUnaffected:     {FamilyUnaffected, false},
	AffectUnaffectedBon:  {FamilyUnaffected, true},
	AffectUnaffectedWd:   {FamilyUnaffected, true},
	AffectUnaffectedMed:  {FamilyUnaffected, true},
	AffectUnaffectedConv: {FamilyUnaffected, true},
	AffectUnaffectedPrz:  {FamilyUnaffected, true},
	AffectUnaffectedAdv:  {FamilyUnaffected, true},
	AffectUnaffectedFree: {FamilyUnaffected, true},
	AffectExport:         {FamilyExport, false},
}

// LookupAffectation devuelve la familia del código y si es una transferencia gratuita.
// ok=false para códigos fuera del catálogo 07.
func LookupAffectation(code string) (family AffectationFamily, free bool, ok bool) {
	a, ok := affectations[code]
	if !ok {
		return 0, false, false
	}
	return a.family, a.free, true
}

// IsValidAffectation indica si el código pertenece al catálogo 07.
func IsValidAffectation(code string) bool {
	_, ok := affectations[code]
	return ok
}

// AppliesIGV indica si el código está en la familia gravada (10 a 16).
func AppliesIGV(code string) bool {
	a, ok := affectations[code]
	return ok && a.family == FamilyTaxed
}

// IsFreeOfCharge indica si el código corresponde a una transferencia gratuita o retiro.
func IsFreeOfCharge(code string) bool {
	a, ok := affectations[code]
	return ok && a.free
}

// =============================================================================
// Catálogo 05 - Códigos de tipos de tributos
// =============================================================================

// TaxScheme tributo tal como se declara en cac:TaxScheme.
type TaxScheme struct {
	ID       string // cbc:ID
	Name     string // cbc:Name
	TypeCode string // cbc:TaxTypeCode (UN/ECE 5153)
}

var (
	SchemeIGV    = TaxScheme{ID: "1000", Name: "IGV", TypeCode: "VAT"}
	SchemeISC    = TaxScheme{ID: "2000", Name: "ISC", TypeCode: "EXC"}
	SchemeICBPER = TaxScheme{ID: "7152", Name: "ICBPER", TypeCode: "OTH"}
	SchemeExport = TaxScheme{ID: "9995", Name: "EXP", TypeCode: "FRE"}
	SchemeFree   = TaxScheme{ID: "9996", Name: "GRA", TypeCode: "FRE"}
	SchemeExempt = TaxScheme{ID: "9997", Name: "EXO", TypeCode: "VAT"}
	SchemeUnaff  = TaxScheme{ID: "9998", Name: "INA", TypeCode: "FRE"}
)

// Categorías de impuesto (UN/ECE 5305) usadas en cac:TaxCategory/cbc:ID.
const (
	CategoryStandard  = "S"
	CategoryExempt    = "E"
	CategoryNotObject = "O"
	CategoryFree      = "Z"
	CategoryExport    = "G"
)

// SchemeForAffectation tributo y categoría que corresponden al código de afectación
// en el subtotal de impuestos de la línea.
func SchemeForAffectation(code string) (TaxScheme, string) {
	a := affectations[code]
	if a.free {
		return SchemeFree, CategoryFree
	}
	switch a.family {
	case FamilyExempt:
		return SchemeExempt, CategoryExempt
	case FamilyUnaffected:
		return SchemeUnaff, CategoryNotObject
	case FamilyExport:
		return SchemeExport, CategoryExport
	default:
		return SchemeIGV, CategoryStandard
	}
}

// =============================================================================
// Catálogo 09 / 10 - Motivos de nota de crédito y débito
// =============================================================================

// CreditNoteReasons catálogo 09.
var CreditNoteReasons = map[string]string{
	"01": "Anulación de la operación",
	"02": "Anulación por error en el RUC",
	"03": "Corrección por error en la descripción",
	"04": "Descuento global",
	"05": "Descuento por ítem",
	"06": "Devolución total",
	"07": "Devolución por ítem",
	"08": "Bonificación",
	"09": "Disminución en el valor",
	"10": "Otros conceptos",
	"11": "Ajustes de operaciones de exportación",
	"12": "Ajustes afectos al IVAP",
	"13": "Corrección del monto neto pendiente de pago y/o fechas de vencimiento",
}

// DebitNoteReasons catálogo 10.
var DebitNoteReasons = map[string]string{
	"01": "Intereses por mora",
	"02": "Aumento en el valor",
	"03": "Penalidades / otros conceptos",
	"11": "Ajustes de operaciones de exportación",
	"12": "Ajustes afectos al IVAP",
}

// =============================================================================
// Catálogo 16 - Tipo de precio de venta unitario
// =============================================================================

const (
	PriceTypeUnitWithTaxes = "01" // Precio unitario (incluye el IGV)
	PriceTypeReferential   = "02" // Valor referencial unitario en operaciones no onerosas
)

// =============================================================================
// Catálogo 51 - Tipo de operación
// =============================================================================

const (
	OperationDomesticSale = "0101" // Venta interna
	OperationExport       = "0200" // Exportación de bienes
)

// =============================================================================
// Catálogo 52 - Códigos de leyendas
// =============================================================================

const (
	LegendAmountInWords = "1000" // Monto expresado en letras
	LegendFreeTransfer  = "1002" // Transferencia gratuita
)

// LegendFreeTransferText texto fijo de la leyenda 1002.
const LegendFreeTransferText = "TRANSFERENCIA GRATUITA DE UN BIEN Y/O SERVICIO PRESTADO GRATUITAMENTE"

// =============================================================================
// Unidades de medida (UN/ECE rec 20) y monedas
// =============================================================================

const (
	UnitProduct = "NIU" // Unidad (bienes)
	UnitService = "ZZ"  // Unidad (servicios)
	UnitBag     = "BG"
	UnitKilo    = "KGM"
	UnitLitre   = "LTR"
)

const (
	CurrencyPEN = "PEN"
	CurrencyUSD = "USD"
)

// CurrencyNames nombres usados en la leyenda de monto en letras.
var CurrencyNames = map[string]string{
	CurrencyPEN: "SOLES",
	CurrencyUSD: "DÓLARES AMERICANOS",
	"EUR":       "EUROS",
}
