package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/jhoicas/facturacion-sunat/internal/application/billing"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pinger comprobación de la base de datos para /health (lo implementa *pgxpool.Pool).
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterDeps dependencias para el router.
type RouterDeps struct {
	CreateDocument *billing.CreateDocumentUseCase
	DocumentQuery  *billing.DocumentQueryUseCase
	Pipeline       *billing.Pipeline
	PDF            *billing.PDFUseCase
	DB             Pinger // opcional
	JWTSecret      string
	SUNATEnv       string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	// Públicas
	app.Get("/health", healthHandler(deps.DB, deps.SUNATEnv))
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")
	api.Post("/ruc/validate", ValidateRUC)

	// Rutas protegidas (requieren Bearer Token)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))
	write := RequireRole(RoleAdmin, RoleIssuer)
	read := RequireRole(RoleAdmin, RoleIssuer, RoleViewer)

	documents := protected.Group("/documents")
	h := NewDocumentHandler(deps.CreateDocument, deps.DocumentQuery, deps.Pipeline, deps.PDF)
	documents.Post("/", write, h.Create)
	documents.Get("/", read, h.List)
	documents.Get("/:id", read, h.GetByID)
	documents.Get("/:id/status", read, h.Status)
	documents.Post("/:id/resend", write, h.Resend)
	documents.Get("/:id/xml", read, h.XML)
	documents.Get("/:id/cdr", read, h.CDR)
	documents.Get("/:id/pdf", read, h.PDF)
	documents.Get("/:id/logs", read, h.Logs)
}

func healthHandler(db Pinger, env string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		body := fiber.Map{"status": "ok", "sunat_env": env}
		if db != nil {
			ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				body["status"] = "degraded"
				body["database"] = err.Error()
				return c.Status(fiber.StatusServiceUnavailable).JSON(body)
			}
			body["database"] = "ok"
		}
		return c.JSON(body)
	}
}
