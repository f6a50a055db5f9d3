package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/facturacion-sunat/internal/application/dto"
	"github.com/jhoicas/facturacion-sunat/internal/domain"
	"github.com/jhoicas/facturacion-sunat/internal/domain/cpe"
)

// RespondError traduce los errores de dominio a HTTP.
func RespondError(c *fiber.Ctx, err error) error {
	status, code := classify(err)
	return c.Status(status).JSON(dto.ErrorResponse{Code: code, Message: err.Error()})
}

func classify(err error) (int, string) {
	var (
		transport *domain.TransportError
		rejected  *domain.RejectedError
	)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrForbidden):
		return fiber.StatusForbidden, "FORBIDDEN"
	case errors.Is(err, domain.ErrDuplicate):
		return fiber.StatusConflict, "DUPLICATE"
	case errors.Is(err, cpe.ErrInvalidDocument),
		errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrInvalidAffectation),
		errors.Is(err, domain.ErrUnsupportedDocumentType):
		return fiber.StatusBadRequest, "VALIDATION"
	case errors.Is(err, domain.ErrInvalidState):
		return fiber.StatusConflict, "INVALID_STATE"
	case errors.Is(err, domain.ErrNotSubmittable):
		return fiber.StatusConflict, "NOT_SUBMITTABLE"
	case errors.Is(err, domain.ErrOffline):
		return fiber.StatusConflict, "OFFLINE"
	case errors.Is(err, domain.ErrTicketPending):
		return fiber.StatusAccepted, "TICKET_PENDING"
	case errors.Is(err, domain.ErrAmbiguousResult):
		return fiber.StatusAccepted, "PENDING_STATUS_QUERY"
	case errors.As(err, &rejected):
		return fiber.StatusUnprocessableEntity, "REJECTED"
	case errors.As(err, &transport):
		return fiber.StatusBadGateway, "SUNAT_UNAVAILABLE"
	case errors.Is(err, domain.ErrPackaging), errors.Is(err, domain.ErrSignature), errors.Is(err, domain.ErrCertificate):
		return fiber.StatusUnprocessableEntity, "SIGNING_OR_PACKAGING"
	}
	return fiber.StatusInternalServerError, "INTERNAL"
}
