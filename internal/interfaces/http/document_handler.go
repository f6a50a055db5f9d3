package http

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/facturacion-sunat/internal/application/billing"
	"github.com/jhoicas/facturacion-sunat/internal/application/dto"
	"github.com/jhoicas/facturacion-sunat/internal/domain"
	"github.com/jhoicas/facturacion-sunat/internal/domain/entity"
)

// DocumentHandler maneja las peticiones HTTP de comprobantes electrónicos (protegido).
type DocumentHandler struct {
	create   *billing.CreateDocumentUseCase
	query    *billing.DocumentQueryUseCase
	pipeline *billing.Pipeline
	pdf      *billing.PDFUseCase
}

// NewDocumentHandler construye el handler.
func NewDocumentHandler(
	create *billing.CreateDocumentUseCase,
	query *billing.DocumentQueryUseCase,
	pipeline *billing.Pipeline,
	pdf *billing.PDFUseCase,
) *DocumentHandler {
	return &DocumentHandler{create: create, query: query, pipeline: pipeline, pdf: pdf}
}

// Create godoc
// @Summary      Registrar y emitir comprobante
// @Description  Con ?sync=true espera el resultado de SUNAT; si no, responde 202 y procesa en segundo plano.
// @Tags         documents
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        sync  query  bool                       false  "esperar el CDR"
// @Param        body  body   dto.CreateDocumentRequest  true   "comprobante"
// @Success      201   {object}  dto.DocumentResponse
// @Success      202   {object}  dto.DocumentResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Failure      422   {object}  dto.ErrorResponse
// @Failure      502   {object}  dto.ErrorResponse
// @Router       /api/documents [post]
func (h *DocumentHandler) Create(c *fiber.Ctx) error {
	issuerRUC := GetIssuerRUC(c)
	if issuerRUC == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	var in dto.CreateDocumentRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	doc, err := h.create.Create(c.Context(), issuerRUC, in)
	if err != nil {
		return RespondError(c, err)
	}

	if !c.QueryBool("sync") {
		h.pipeline.ProcessAsync(doc.ID)
		return c.Status(fiber.StatusAccepted).JSON(dto.ToDocumentResponse(doc, nil))
	}
	res, err := h.pipeline.Process(c.Context(), doc.ID)
	return h.respondResult(c, fiber.StatusCreated, res, err)
}

// GetByID godoc
// @Summary      Comprobante con su último CDR
// @Tags         documents
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "id del comprobante"
// @Success      200  {object}  dto.DocumentResponse
// @Failure      403  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/documents/{id} [get]
func (h *DocumentHandler) GetByID(c *fiber.Ctx) error {
	out, err := h.query.Get(c.Context(), GetIssuerRUC(c), c.Params("id"))
	if err != nil {
		return RespondError(c, err)
	}
	return c.JSON(out)
}

// List comprobantes del emisor por estado (?status=SUBMITTED&limit=20).
// GET /api/documents
func (h *DocumentHandler) List(c *fiber.Ctx) error {
	status := entity.DocumentStatus(strings.ToUpper(c.Query("status", string(entity.StatusSubmitted))))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	out, err := h.query.List(c.Context(), GetIssuerRUC(c), status, dto.PageRequest{Limit: limit})
	if err != nil {
		return RespondError(c, err)
	}
	return c.JSON(out)
}

// Status estado almacenado. Con ?refresh=true consulta a SUNAT (ticket o CDR por clave natural)
// antes de responder; un ticket en proceso no es un error.
// @Summary      Estado del comprobante
// @Tags         documents
// @Produce      json
// @Security     BearerAuth
// @Param        id       path   string  true   "id del comprobante"
// @Param        refresh  query  bool    false  "consultar a SUNAT"
// @Success      200  {object}  dto.StatusResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/documents/{id}/status [get]
func (h *DocumentHandler) Status(c *fiber.Ctx) error {
	issuerRUC, id := GetIssuerRUC(c), c.Params("id")
	if c.QueryBool("refresh") {
		if err := h.query.Authorize(c.Context(), issuerRUC, id); err != nil {
			return RespondError(c, err)
		}
		if _, err := h.pipeline.QueryStatus(c.Context(), id); err != nil &&
			!errors.Is(err, domain.ErrTicketPending) && !errors.Is(err, domain.ErrAmbiguousResult) {
			return RespondError(c, err)
		}
	}
	out, err := h.query.Status(c.Context(), issuerRUC, id)
	if err != nil {
		return RespondError(c, err)
	}
	return c.JSON(out)
}

// Resend godoc
// @Summary      Reenviar comprobante tras una falla de transporte
// @Tags         documents
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "id del comprobante"
// @Success      200  {object}  dto.DocumentResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Failure      502  {object}  dto.ErrorResponse
// @Router       /api/documents/{id}/resend [post]
func (h *DocumentHandler) Resend(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.query.Authorize(c.Context(), GetIssuerRUC(c), id); err != nil {
		return RespondError(c, err)
	}
	res, err := h.pipeline.Resubmit(c.Context(), id)
	return h.respondResult(c, fiber.StatusOK, res, err)
}

// XML descarga el XML firmado (o sin firmar si aún no se firmó).
// GET /api/documents/:id/xml
func (h *DocumentHandler) XML(c *fiber.Ctx) error {
	body, name, err := h.query.XML(c.Context(), GetIssuerRUC(c), c.Params("id"))
	if err != nil {
		return RespondError(c, err)
	}
	return sendFile(c, "application/xml", name, body)
}

// CDR descarga el ZIP de la constancia de recepción.
// GET /api/documents/:id/cdr
func (h *DocumentHandler) CDR(c *fiber.Ctx) error {
	body, name, err := h.query.CDR(c.Context(), GetIssuerRUC(c), c.Params("id"))
	if err != nil {
		return RespondError(c, err)
	}
	return sendFile(c, "application/zip", name, body)
}

// PDF representación impresa.
// GET /api/documents/:id/pdf
func (h *DocumentHandler) PDF(c *fiber.Ctx) error {
	body, name, err := h.pdf.DownloadPDF(c.Context(), GetIssuerRUC(c), c.Params("id"))
	if err != nil {
		return RespondError(c, err)
	}
	return sendFile(c, "application/pdf", name, body)
}

// Logs bitácora de etapas.
// GET /api/documents/:id/logs
func (h *DocumentHandler) Logs(c *fiber.Ctx) error {
	out, err := h.query.Logs(c.Context(), GetIssuerRUC(c), c.Params("id"))
	if err != nil {
		return RespondError(c, err)
	}
	return c.JSON(out)
}

// respondResult el comprobante si la cadena terminó; el error mapeado si no.
func (h *DocumentHandler) respondResult(c *fiber.Ctx, okStatus int, res *billing.Result, err error) error {
	if err != nil {
		return RespondError(c, err)
	}
	return c.Status(okStatus).JSON(dto.ToDocumentResponse(res.Document, res.Acknowledgment))
}

func sendFile(c *fiber.Ctx, contentType, name string, body []byte) error {
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+name+`"`)
	return c.Send(body)
}
