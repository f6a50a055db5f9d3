package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jhoicas/facturacion-sunat/internal/application/billing"
	"github.com/jhoicas/facturacion-sunat/internal/domain/tax"
	infrapdf "github.com/jhoicas/facturacion-sunat/internal/infrastructure/pdf"
	"github.com/jhoicas/facturacion-sunat/internal/infrastructure/postgres"
	infrasunat "github.com/jhoicas/facturacion-sunat/internal/infrastructure/sunat"
	"github.com/jhoicas/facturacion-sunat/internal/infrastructure/sunat/signer"
	httpRouter "github.com/jhoicas/facturacion-sunat/internal/interfaces/http"
	"github.com/jhoicas/facturacion-sunat/pkg/config"
	"github.com/jhoicas/facturacion-sunat/pkg/logger"
)

const swaggerFile = "./docs/swagger.json"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:     cfg.App.Env,
		Level:   cfg.App.LogLevel,
		Service: cfg.App.Name,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("sunat_env", cfg.SUNAT.Env).
		Msg("iniciando aplicación")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB, log.Component("postgres"))
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool, log.Component("migrations")); err != nil {
		log.Fatal().Err(err).Msg("migraciones")
	}

	docRepo := postgres.NewDocumentRepository(pool)
	ackRepo := postgres.NewAcknowledgmentRepository(pool)
	logRepo := postgres.NewOperationLogRepository(pool)
	txRunner := postgres.NewTxRunner(pool)

	engine, err := tax.NewEngineFromString(cfg.SUNAT.ICBPERAmount)
	if err != nil {
		log.Fatal().Err(err).Msg("configuración ICBPER")
	}
	registry := infrasunat.DefaultRegistry()
	xmlBuilder := infrasunat.NewXMLBuilder(engine, registry)

	// Firma: caché de certificados con TTL; sin certificado se emite XML simulado.
	certCache := signer.NewCertificateCache(cfg.SUNAT.CacheTTL(), signer.SystemClock)
	signerSvc := signer.NewService(certCache, signer.Options{
		DefaultSignerRUC:  cfg.SUNAT.DefaultSignerRUC,
		DefaultSignerName: cfg.SUNAT.DefaultSignerName,
		Grace:             cfg.SUNAT.Grace(),
	}, signer.SystemClock, log.Component("signer"))

	// Cliente SOAP SUNAT: solo en beta y prod. En dev la cadena no sale a la red.
	var submitter billing.Submitter
	if cfg.SUNAT.Env != config.SUNATEnvDev {
		endpoints := infrasunat.EndpointsFor(cfg.SUNAT.Env, cfg.SUNAT.BillServiceURL, cfg.SUNAT.ConsultServiceURL)
		submitter = infrasunat.NewClient(endpoints, cfg.SUNAT.Timeout())
		log.Info().Str("bill_service", endpoints.Bill).Msg("cliente SOAP SUNAT configurado")
	}

	// Pipeline: cálculo → XML UBL → firma → ZIP → envío SOAP → CDR → estado
	pipeline := billing.NewPipeline(
		docRepo, ackRepo, logRepo, engine, xmlBuilder, signerSvc, submitter,
		billing.ConfigFromSUNAT(cfg.SUNAT), log.Component("pipeline"),
	)

	createDocumentUC := billing.NewCreateDocumentUseCase(txRunner, engine, registry)
	documentQueryUC := billing.NewDocumentQueryUseCase(docRepo, ackRepo, logRepo)

	// PDF: representación impresa con QR y hash
	pdfGenerator := infrapdf.NewMarotoPDFGenerator(engine)
	pdfUC := billing.NewPDFUseCase(docRepo, pdfGenerator)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: config.MaxSUNATTimeout + 10*time.Second, // ?sync=true espera a SUNAT
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI: http://localhost:<port>/docs
	if _, err := os.Stat(swaggerFile); err == nil {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/",
			FilePath: swaggerFile,
			Path:     "docs",
			Title:    "Facturación electrónica SUNAT",
		}))
	} else {
		log.Warn().Str("file", swaggerFile).Msg("sin documento OpenAPI: /docs deshabilitado")
	}

	httpRouter.Router(app, httpRouter.RouterDeps{
		CreateDocument: createDocumentUC,
		DocumentQuery:  documentQueryUC,
		Pipeline:       pipeline,
		PDF:            pdfUC,
		DB:             pool,
		JWTSecret:      cfg.JWT.Secret,
		SUNATEnv:       cfg.SUNAT.Env,
	})

	// Limpieza periódica del caché de certificados.
	purgeCtx, stopPurge := context.WithCancel(ctx)
	defer stopPurge()
	go func() {
		ticker := time.NewTicker(cfg.SUNAT.CacheTTL() + time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-purgeCtx.Done():
				return
			case <-ticker.C:
				if n := certCache.Purge(); n > 0 {
					log.Debug().Int("entries", n).Msg("caché de certificados depurado")
				}
			}
		}
	}()

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	// Envíos en segundo plano: terminan antes de cerrar el pool de la base.
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), pipeline.DrainTimeout())
	defer cancelDrain()
	if err := pipeline.Wait(drainCtx); err != nil {
		log.Warn().Err(err).Msg("quedaron comprobantes en proceso al apagar")
	}

	log.Info().Msg("aplicación detenida")
}
