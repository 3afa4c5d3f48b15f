// @title                       Materiales ERP API
// @version                     1.0
// @description                 Inventario, ventas y compras de materiales de construcción.
// @BasePath                    /
// @securityDefinitions.apikey  Bearer
// @in                          header
// @name                        Authorization
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
	"github.com/jhoicas/materiales-erp/docs"
	"github.com/jhoicas/materiales-erp/internal/application/catalog"
	"github.com/jhoicas/materiales-erp/internal/application/inventory"
	"github.com/jhoicas/materiales-erp/internal/application/orders"
	"github.com/jhoicas/materiales-erp/internal/application/ports"
	"github.com/jhoicas/materiales-erp/internal/application/purchasing"
	"github.com/jhoicas/materiales-erp/internal/domain/repository"
	"github.com/jhoicas/materiales-erp/internal/infrastructure/memory"
	"github.com/jhoicas/materiales-erp/internal/infrastructure/notify"
	"github.com/jhoicas/materiales-erp/internal/infrastructure/postgres"
	infraredis "github.com/jhoicas/materiales-erp/internal/infrastructure/redis"
	httpRouter "github.com/jhoicas/materiales-erp/internal/interfaces/http"
	"github.com/jhoicas/materiales-erp/pkg/config"
	"github.com/jhoicas/materiales-erp/pkg/logger"
)

const swaggerFile = "./docs/swagger.json"

// storage repositorios según STORAGE_DRIVER.
type storage struct {
	txRunner  inventory.TxRunner
	repos     repository.TxRepositories
	products  repository.ProductRepository
	customers repository.CustomerRepository
	suppliers repository.SupplierRepository
	sequences repository.SequenceGenerator
	close     func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("storage", cfg.Storage.Driver).
		Msg("iniciando aplicación")

	ctx := context.Background()
	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("inicializar almacenamiento")
	}
	defer store.close()

	// Redis es opcional: secuencias atómicas con INCR y notificaciones por Pub/Sub.
	notifiers := notify.Fanout{notify.NewLogNotifier(log)}
	if cfg.Redis.Enabled() {
		rdb, err := infraredis.NewClient(ctx, infraredis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a Redis")
		}
		defer rdb.Close()
		store.sequences = infraredis.NewSequenceGenerator(rdb)
		notifiers = append(notifiers, infraredis.NewPublisher(rdb, cfg.Redis.NotifyChannel))
		log.Info().Str("addr", cfg.Redis.Addr).Msg("redis habilitado")
	}
	var notifier ports.Notifier = notifiers

	locker := inventory.NewKeyedLocker(cfg.Ledger.LockTimeout, cfg.Ledger.LockRetries)
	ledger := inventory.NewLedger(store.txRunner, store.repos.Items, inventory.NewJournal(store.repos.Movements),
		locker, notifier, log)
	orderEngine := orders.NewEngine(ledger, store.repos.Orders, store.products, store.customers,
		store.sequences, notifier, log)
	purchaseEngine := purchasing.NewEngine(ledger, store.repos.Purchases, store.products, store.suppliers,
		store.sequences, notifier, log)
	catalogUC := catalog.NewUseCase(store.products, store.customers, store.suppliers)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	if _, err := os.Stat(swaggerFile); err == nil {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/",
			FilePath: swaggerFile,
			Path:     "docs",
			Title:    "Materiales ERP API",
		}))
	} else {
		log.Warn().Str("file", swaggerFile).Msg("swagger UI deshabilitado: archivo no encontrado")
	}
	app.Get("/openapi.json", func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.SendString(docs.SwaggerInfo.ReadDoc())
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name, "storage": cfg.Storage.Driver})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		Ledger:    ledger,
		Orders:    orderEngine,
		Purchases: purchaseEngine,
		Catalog:   catalogUC,
		JWTSecret: cfg.JWT.Secret,
		JWTIssuer: cfg.JWT.Issuer,
		Log:       log,
	})

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

	log.Info().Msg("aplicación detenida")
}

func openStorage(ctx context.Context, cfg *config.Config, log *logger.Logger) (*storage, error) {
	if cfg.Storage.Driver == config.StorageMemory {
		mem := memory.NewStore()
		log.Warn().Msg("almacenamiento en memoria: los datos se pierden al reiniciar")
		return &storage{
			txRunner:  mem,
			repos:     mem.Repositories(),
			products:  mem.Products(),
			customers: mem.Customers(),
			suppliers: mem.Suppliers(),
			sequences: mem,
			close:     func() {},
		}, nil
	}

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		return nil, err
	}
	if cfg.DB.Migrate {
		if err := postgres.Migrate(cfg.DB.ConnectionString(), log); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return &storage{
		txRunner:  postgres.NewTxRunner(pool),
		repos:     postgres.Repositories(pool),
		products:  postgres.NewProductRepository(pool),
		customers: postgres.NewCustomerRepository(pool),
		suppliers: postgres.NewSupplierRepository(pool),
		sequences: postgres.NewSequenceRepository(pool),
		close:     pool.Close,
	}, nil
}
