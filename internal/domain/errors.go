package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound        = errors.New("recurso no encontrado")
	ErrInvalidInput    = errors.New("entrada inválida")
	ErrDuplicate       = errors.New("recurso duplicado")
	ErrUnauthorized    = errors.New("no autorizado")
	ErrForbidden       = errors.New("acceso denegado")
	ErrConflict        = errors.New("conflicto con el estado actual")
	ErrInvalidState    = errors.New("transición de estado inválida")
	ErrAmbiguousResult = errors.New("resultado SUNAT ambiguo: requiere consulta de estado")
	ErrTicketPending   = errors.New("ticket SUNAT aún en proceso")
	ErrNotSubmittable  = errors.New("comprobante con firma simulada: no se envía en producción")
	ErrOffline         = errors.New("ambiente dev: sin conexión a SUNAT")
)
