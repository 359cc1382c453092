package router

import (
	"context"
	"net/http"
	"time"

	ebaysvc "easyflip-backend/internal/application/ebay"
	emailsvc "easyflip-backend/internal/application/emails"
	gensvc "easyflip-backend/internal/application/generation"
	healthsvc "easyflip-backend/internal/application/health"
	itemsvc "easyflip-backend/internal/application/items"
	listsvc "easyflip-backend/internal/application/listings"
	photosvc "easyflip-backend/internal/application/photos"
	pricesvc "easyflip-backend/internal/application/pricing"
	subsvc "easyflip-backend/internal/application/subscribe"
	usersvc "easyflip-backend/internal/application/user"
	"easyflip-backend/internal/config"
	"easyflip-backend/internal/infrastructure/cache"
	"easyflip-backend/internal/infrastructure/database"
	ebayhandler "easyflip-backend/internal/interfaces/handlers/ebay"
	genhandler "easyflip-backend/internal/interfaces/handlers/generate"
	healthhandler "easyflip-backend/internal/interfaces/handlers/health"
	itemhandler "easyflip-backend/internal/interfaces/handlers/items"
	listhandler "easyflip-backend/internal/interfaces/handlers/listings"
	photohandler "easyflip-backend/internal/interfaces/handlers/photos"
	pricehandler "easyflip-backend/internal/interfaces/handlers/pricing"
	subhandler "easyflip-backend/internal/interfaces/handlers/subscribe"
	userhandler "easyflip-backend/internal/interfaces/handlers/user"
	"easyflip-backend/internal/middleware"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Deps are the connections and outbound clients the routes are built on.
// Tests fill them with sqlite, miniredis and stubs.
type Deps struct {
	Config   *config.Config
	DB       *gorm.DB
	Rdb      *redis.Client
	Verifier *middleware.TokenVerifier
	Storage  photosvc.StorageSigner
	Analyzer gensvc.Analyzer
	Mailer   emailsvc.Sender
	Metrics  *gensvc.Metrics
	Ebay     *ebaysvc.Client
	Cipher   *ebaysvc.Cipher
}

// CreateApp opens Postgres and Redis, builds the outbound clients from cfg
// and mounts every route. It registers Prometheus collectors on the default
// registry, so call it once per process.
func CreateApp(cfg *config.Config) (*fiber.App, *gorm.DB, *redis.Client, error) {
	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
	})
	app.Use(recover.New())

	prom := fiberprometheus.New("easyflip-api")
	prom.RegisterAt(app, "/metrics")
	app.Use(prom.Middleware)

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		var err error
		if rdb, err = cache.Open(ctx, cfg.RedisURL); err != nil {
			return nil, nil, nil, err
		}
	}

	var db *gorm.DB
	if cfg.DatabaseURL != "" {
		var err error
		if db, err = database.Open(cfg.DatabaseURL); err != nil {
			return nil, nil, nil, err
		}
		if err := database.AutoMigrate(db); err != nil {
			return nil, nil, nil, err
		}
	}

	var cipher *ebaysvc.Cipher
	if cfg.Ebay.TokenEncryptionKey != "" || cfg.Ebay.Configured() {
		var err error
		if cipher, err = ebaysvc.NewCipher(cfg.Ebay.TokenEncryptionKey); err != nil {
			return nil, nil, nil, err
		}
	}

	var mailer emailsvc.Sender
	if cfg.SendinblueAPIKey != "" {
		mailer = &emailsvc.BrevoClient{APIKey: cfg.SendinblueAPIKey, MailFrom: cfg.MailFrom}
	}

	Mount(app, Deps{
		Config:   cfg,
		DB:       db,
		Rdb:      rdb,
		Verifier: &middleware.TokenVerifier{Secret: cfg.SupabaseJWTSecret},
		Storage:  &photosvc.SupabaseStorage{BaseURL: cfg.SupabaseURL, SecretKey: cfg.SupabaseSecretKey},
		Analyzer: &gensvc.OpenAIAnalyzer{APIKey: cfg.OpenAI.APIKey, Model: cfg.OpenAI.Model, BaseURL: cfg.OpenAI.BaseURL},
		Mailer:   mailer,
		Metrics:  gensvc.NewMetrics(prometheus.DefaultRegisterer),
		Ebay:     ebaysvc.NewClient(cfg.Ebay),
		Cipher:   cipher,
	})
	return app, db, rdb, nil
}

// Mount installs the middleware chain and every route on app.
func Mount(app *fiber.App, d Deps) {
	cfg := d.Config
	app.Use(helmet.New(helmet.Config{
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
		HSTSMaxAge:         31536000,
	}))
	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: cfg.FrontendOrigins,
		AllowLocalhost: !cfg.IsProduction(),
	}))
	app.Use(middleware.HealthMarker(d.Rdb))
	app.Use(middleware.Tracing())
	app.Use(middleware.RouteLogger())

	hs := &healthsvc.Service{Rdb: d.Rdb, StartedAt: time.Now(), Endpoints: map[string]string{}}
	if d.DB != nil {
		if sqlDB, err := d.DB.DB(); err == nil {
			hs.DB = sqlDB
		}
	}
	if cfg.SupabaseURL != "" {
		hs.Endpoints["supabase"] = cfg.SupabaseURL
	}
	if d.Ebay != nil {
		hs.Endpoints["ebay"] = d.Ebay.APIBaseURL
	}
	hh := &healthhandler.Handlers{Service: hs, HealthAdminKey: cfg.HealthAdminKey}
	app.Get("/health/json", hh.JSON)
	app.Get("/health/errors", hh.Errors)
	app.Get("/health/reset", hh.Reset)

	if d.DB == nil || d.Rdb == nil {
		log.Warn().Msg("router: DATABASE_URL or REDIS_URL missing, only health routes are mounted")
		return
	}
	db, rdb := d.DB, d.Rdb
	auth := middleware.RequireAuth(d.Verifier)

	// Subscribe is public and also answers on the old Netlify function path.
	sh := &subhandler.Handlers{Service: &subsvc.Service{DB: db, Mailer: d.Mailer}}
	app.Post("/api/v1/subscribe", sh.Subscribe)
	app.Post("/.netlify/functions/subscribe", sh.Subscribe)

	uh := &userhandler.Handlers{Service: &usersvc.Service{DB: db}}
	ug := app.Group("/api/v1/users", auth)
	ug.Get("/me", uh.GetMe)
	ug.Patch("/me", uh.UpdateMe)

	photos := &photosvc.Service{DB: db, Storage: d.Storage, SupabaseURL: cfg.SupabaseURL, Bucket: cfg.PhotoBucket}
	ph := &photohandler.Handlers{Service: photos}
	pg := app.Group("/api/v1/photos", auth)
	pg.Post("/upload-url", ph.CreateUploadURL)
	pg.Post("/", ph.Register)
	pg.Get("/", ph.List)
	pg.Get("/groups", ph.Groups)
	pg.Post("/assign", ph.Assign)
	pg.Post("/unassign", ph.Unassign)
	pg.Delete("/:id", ph.Delete)

	gh := &genhandler.Handlers{Service: &gensvc.Service{
		DB:         db,
		Photos:     photos,
		Analyzer:   d.Analyzer,
		Jobs:       &gensvc.JobStore{Rdb: rdb},
		Metrics:    d.Metrics,
		JobTimeout: cfg.Generation.JobTimeout,
	}}
	gg := app.Group("/api/v1/generate", auth)
	gg.Post("/", gh.Start)
	gg.Get("/jobs/:job_id", gh.Job)

	ih := &itemhandler.Handlers{Service: &itemsvc.Service{DB: db}}
	ig := app.Group("/api/v1/items", auth)
	ig.Get("/", ih.List)
	ig.Post("/", ih.Create)
	ig.Get("/:id", ih.Get)
	ig.Patch("/:id", ih.Update)
	ig.Delete("/:id", ih.Delete)

	tokens := &ebaysvc.TokenStore{DB: db, Rdb: rdb, Cipher: d.Cipher}
	seller := &ebaysvc.Service{Client: d.Ebay, Tokens: tokens}
	eh := &ebayhandler.Handlers{
		OAuth: &ebaysvc.OAuthService{
			Client:      d.Ebay,
			Tokens:      tokens,
			Rdb:         rdb,
			FlowTimeout: cfg.Ebay.FlowTimeout,
			Configured:  cfg.Ebay.Configured() && d.Cipher != nil,
		},
		Seller: seller,
	}
	// eBay redirects the browser here without our bearer token.
	app.Get("/api/v1/ebay/oauth/callback", eh.Callback)
	eg := app.Group("/api/v1/ebay", auth)
	eg.Post("/oauth/start", eh.Start)
	eg.Get("/oauth/status", eh.Status)
	eg.Get("/connection", eh.Connection)
	eg.Delete("/connection", eh.Disconnect)
	eg.Get("/scopes", eh.Scopes)
	eg.Post("/reauth", eh.Reauth)
	eg.Get("/policies", eh.Policies)
	eg.Get("/trending", eh.Trending)

	lh := &listhandler.Handlers{Service: &listsvc.Service{DB: db, Publisher: seller}}
	lg := app.Group("/api/v1/listings", auth)
	lg.Get("/", lh.List)
	lg.Get("/:id", lh.Get)
	lg.Patch("/:id", lh.Update)
	lg.Delete("/:id", lh.Delete)
	lg.Post("/:id/publish", lh.Publish)

	prh := &pricehandler.Handlers{Service: &pricesvc.Service{DB: db, Market: seller}}
	prg := app.Group("/api/v1/pricing", auth)
	prg.Get("/recommendations", prh.Recommendations)
	prg.Post("/items/:id/recommendation", prh.Recommend)
	prg.Post("/recommendations/:id/apply", prh.Apply)
	prg.Post("/recommendations/:id/dismiss", prh.Dismiss)
	prg.Get("/performance", prh.Performance)
	prg.Put("/items/:id/performance", prh.RecordPerformance)
}

// Handler exposes the Fiber app as a net/http handler for serverless hosts.
func Handler(app *fiber.App) http.Handler {
	return adaptor.FiberApp(app)
}
