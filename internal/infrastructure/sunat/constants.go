// Package sunat implementa la construcción UBL 2.1, el empaquetado ZIP, el cliente SOAP
// y la lectura de CDR para comprobantes electrónicos SUNAT.
package sunat

// Namespaces UBL 2.1.
const (
	NamespaceInvoice    = "urn:oasis:names:specification:ubl:schema:xsd:Invoice-2"
	NamespaceCreditNote = "urn:oasis:names:specification:ubl:schema:xsd:CreditNote-2"
	NamespaceDebitNote  = "urn:oasis:names:specification:ubl:schema:xsd:DebitNote-2"
	NamespaceCAC        = "urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2"
	NamespaceCBC        = "urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2"
	NamespaceEXT        = "urn:oasis:names:specification:ubl:schema:xsd:CommonExtensionComponents-2"
	NamespaceDS         = "http://www.w3.org/2000/09/xmldsig#"
)

// Versiones.
const (
	UBLVersion      = "2.1"
	CustomizationID = "2.0"
)

// Atributos de catálogos SUNAT.
const (
	agencySUNAT      = "PE:SUNAT"
	catalogURIPrefix = "urn:pe:gob:sunat:cpe:see:gem:catalogos:catalogo"
	agencyUNECE      = "United Nations Economic Commission for Europe"
)

// Endpoints SOAP.
const (
	BillServiceBeta    = "https://e-beta.sunat.gob.pe/ol-ti-itcpfegem-beta/billService"
	BillServiceProd    = "https://e-factura.sunat.gob.pe/ol-ti-itcpfegem/billService"
	ConsultServiceProd = "https://e-factura.sunat.gob.pe/ol-it-wsconscpegem/billConsultService"
	// SUNAT no publica un servicio de consulta de CDR en beta; se usa el mismo endpoint de envío.
	ConsultServiceBeta = BillServiceBeta
)

// DummyDirEntry directorio vacío que el validador de SUNAT espera en el ZIP.
const DummyDirEntry = "dummy/"

// MinSignedXMLSize tamaño mínimo plausible de un XML firmado.
const MinSignedXMLSize = 500
