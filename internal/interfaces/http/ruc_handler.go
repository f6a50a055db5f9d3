package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/facturacion-sunat/internal/application/dto"
	"github.com/jhoicas/facturacion-sunat/pkg/sunat"
)

// ValidateRUC godoc
// @Summary      Validar RUC (módulo 11)
// @Tags         ruc
// @Accept       json
// @Produce      json
// @Param        body  body      dto.ValidateRUCRequest  true  "RUC"
// @Success      200   {object}  dto.ValidateRUCResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/ruc/validate [post]
func ValidateRUC(c *fiber.Ctx) error {
	var in dto.ValidateRUCRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	ruc := strings.TrimSpace(in.RUC)
	ok, reason := sunat.ValidateRUC(ruc)
	return c.JSON(dto.ValidateRUCResponse{RUC: ruc, Valid: ok, Reason: reason})
}
