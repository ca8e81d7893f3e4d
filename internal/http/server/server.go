// Package server construye el servicio completo a partir de la configuración
// y lo sirve con apagado ordenado.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	rdb "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/usersvc/internal/audit"
	"github.com/dropDatabas3/usersvc/internal/auth"
	"github.com/dropDatabas3/usersvc/internal/bootstrap"
	"github.com/dropDatabas3/usersvc/internal/cache"
	"github.com/dropDatabas3/usersvc/internal/config"
	"github.com/dropDatabas3/usersvc/internal/directory"
	activityctrl "github.com/dropDatabas3/usersvc/internal/http/controllers/activities"
	authctrl "github.com/dropDatabas3/usersvc/internal/http/controllers/auth"
	healthctrl "github.com/dropDatabas3/usersvc/internal/http/controllers/health"
	userctrl "github.com/dropDatabas3/usersvc/internal/http/controllers/users"
	"github.com/dropDatabas3/usersvc/internal/http/router"
	jwtx "github.com/dropDatabas3/usersvc/internal/jwt"
	"github.com/dropDatabas3/usersvc/internal/metrics"
	"github.com/dropDatabas3/usersvc/internal/observability/logger"
	"github.com/dropDatabas3/usersvc/internal/rate"
	"github.com/dropDatabas3/usersvc/internal/rbac"
	"github.com/dropDatabas3/usersvc/internal/security/password"
	tokens "github.com/dropDatabas3/usersvc/internal/security/token"
	"github.com/dropDatabas3/usersvc/internal/store"
	"github.com/dropDatabas3/usersvc/internal/store/pg"
	"github.com/dropDatabas3/usersvc/internal/util"
)

// App servicio armado. Close libera store, cache y sinks.
type App struct {
	Config    *config.Config
	Handler   http.Handler
	Store     store.Store
	Cache     cache.Client
	Metrics   *metrics.Metrics
	Auth      *auth.Service
	Directory *directory.Service

	closers []func() error
}

type options struct {
	hasherParams password.Params
	store        store.Store
}

type Option func(*options)

// WithHasherParams cambia el costo de argon2id (tests, seeds).
func WithHasherParams(p password.Params) Option {
	return func(o *options) { o.hasherParams = p }
}

// WithStore usa un store ya abierto en vez de store.Open.
func WithStore(s store.Store) Option {
	return func(o *options) { o.store = s }
}

// Build arma dependencias, corre el bootstrap y devuelve el handler listo.
func Build(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	o := options{hasherParams: password.Default}
	for _, fn := range opts {
		fn(&o)
	}
	log := logger.From(ctx).With(logger.Component("server"))
	app := &App{Config: cfg}
	fail := func(err error) (*App, error) {
		_ = app.Close()
		return nil, err
	}

	// 1. Metrics
	m, err := metrics.New()
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	app.Metrics = m

	// 2. Store
	st := o.store
	if st == nil {
		st, err = store.Open(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("store: %w", err)
		}
	}
	app.Store = st
	app.closers = append(app.closers, st.Close)
	if p, ok := st.(*pg.Store); ok {
		if err := m.WatchPool(p.Pool()); err != nil {
			log.Warn("pool metrics disabled", logger.Err(err))
		}
	}

	// 3. Cache (revocación de jti)
	cc, err := cache.New(ctx, cache.Config{
		Kind:       cfg.Cache.Kind,
		Addr:       cfg.Cache.Redis.Addr,
		Password:   cfg.Cache.Redis.Password,
		DB:         cfg.Cache.Redis.DB,
		Prefix:     cfg.Cache.Redis.Prefix,
		DefaultTTL: config.Dur(cfg.Cache.Memory.DefaultTTL),
	})
	if err != nil {
		return fail(fmt.Errorf("cache: %w", err))
	}
	app.Cache = cc
	app.closers = append(app.closers, cc.Close)

	// 4. Seguridad: hasher, política, firma
	hasher := password.NewHasher(o.hasherParams)
	policy, err := buildPolicy(cfg)
	if err != nil {
		return fail(err)
	}
	secret := []byte(cfg.JWT.Secret)
	if len(secret) == 0 {
		s, err := tokens.GenerateOpaqueToken(tokens.RefreshTokenBytes)
		if err != nil {
			return fail(err)
		}
		secret = []byte(s)
		log.Warn("jwt.secret not set; using an ephemeral key, tokens will not survive a restart")
	}
	issuer, err := jwtx.NewIssuer(cfg.JWT.Issuer, cfg.JWT.KeyID, secret, config.Dur(cfg.JWT.AccessTTL))
	if err != nil {
		return fail(fmt.Errorf("jwt: %w", err))
	}

	// 5. RBAC
	guard, err := buildGuard(cfg)
	if err != nil {
		return fail(err)
	}

	// 6. Auditoría
	var sinks []audit.Sink
	if cfg.Audit.AMQP.URL != "" {
		sink := audit.NewAMQPSink(cfg.Audit.AMQP.URL, cfg.Audit.AMQP.Queue,
			audit.WithDialTimeout(config.Dur(cfg.Audit.AMQP.DialTimeout)))
		sinks = append(sinks, sink)
		log.Info("audit fan-out enabled", logger.String("amqp", util.MaskURL(cfg.Audit.AMQP.URL)), logger.String("queue", cfg.Audit.AMQP.Queue))
		app.closers = append(app.closers, sink.Close)
	}
	recorder := audit.NewRecorder(audit.Deps{
		Store:       st.Activities(),
		Sinks:       sinks,
		MaxAttempts: cfg.Audit.MaxAttempts,
		Backoff:     config.Dur(cfg.Audit.RetryBackoff),
		Budget:      config.Dur(cfg.Audit.Timeout),
		Metrics:     m,
		Logger:      logger.L(),
	})

	// 7. Servicios
	authSvc := auth.NewService(auth.Deps{
		Users:      st.Users(),
		Sessions:   st.Sessions(),
		Issuer:     issuer,
		Hasher:     hasher,
		Cache:      cc,
		Recorder:   recorder,
		Metrics:    m,
		RefreshTTL: config.Dur(cfg.JWT.RefreshTTL),
	})
	dirSvc := directory.NewService(directory.Deps{
		Users:      st.Users(),
		Activities: st.Activities(),
		Guard:      guard,
		Recorder:   recorder,
		Revoker:    authSvc,
		Hasher:     hasher,
		Policy:     policy,
		Metrics:    m,
	})
	app.Auth = authSvc
	app.Directory = dirSvc

	// 8. Bootstrap (admin raíz + semillas)
	if err := bootstrap.Run(ctx, st.Users(), hasher, cfg); err != nil {
		return fail(fmt.Errorf("bootstrap: %w", err))
	}

	// 9. HTTP
	app.Handler = router.New(router.Deps{
		Auth:       authctrl.NewControllers(authSvc, dirSvc),
		Users:      userctrl.NewControllers(dirSvc),
		Activities: activityctrl.NewActivitiesController(dirSvc),
		Health: healthctrl.NewHealthController(healthctrl.Deps{
			Service:    cfg.Service.Name,
			Version:    cfg.Service.Version,
			Components: map[string]healthctrl.Pinger{"store": st, "cache": cc},
		}),
		Validator:    authSvc,
		Metrics:      m,
		TrustProxy:   cfg.Server.TrustProxyHeaders,
		LoginLimiter: buildLimiter(cfg, cc),
	})

	log.Info("service built",
		logger.String("storage", cfg.Storage.Driver),
		logger.String("cache", cfg.Cache.Kind),
		logger.Bool("audit_amqp", cfg.Audit.AMQP.URL != ""),
	)
	return app, nil
}

// Close cierra en orden inverso al de apertura.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func buildPolicy(cfg *config.Config) (password.Policy, error) {
	pp := cfg.Security.PasswordPolicy
	p := password.Policy{
		MinLength:     pp.MinLength,
		MaxLength:     pp.MaxLength,
		RequireUpper:  pp.RequireUpper,
		RequireLower:  pp.RequireLower,
		RequireDigit:  pp.RequireDigit,
		RequireSymbol: pp.RequireSymbol,
	}
	// la lista builtin aplica siempre; el archivo solo la amplía
	bl, err := password.LoadBlacklist(cfg.Security.PasswordBlacklistPath)
	if err != nil {
		return p, fmt.Errorf("password blacklist: %w", err)
	}
	p.Blacklist = bl
	return p, nil
}

// buildGuard matriz por defecto + archivo + overrides inline (en ese orden).
func buildGuard(cfg *config.Config) (*rbac.Guard, error) {
	m := rbac.DefaultMatrix()
	if cfg.RBAC.MatrixFile != "" {
		o, err := rbac.LoadOverridesFile(cfg.RBAC.MatrixFile)
		if err != nil {
			return nil, err
		}
		if err := m.Apply(o); err != nil {
			return nil, fmt.Errorf("rbac: %s: %w", cfg.RBAC.MatrixFile, err)
		}
	}
	if len(cfg.RBAC.Rules) > 0 {
		o := rbac.Overrides{}
		for role, ops := range cfg.RBAC.Rules {
			o[role] = map[string]rbac.RuleSpec{}
			for op, r := range ops {
				o[role][op] = rbac.RuleSpec{Allow: r.Allow, Targets: r.Targets}
			}
		}
		if err := m.Apply(o); err != nil {
			return nil, fmt.Errorf("rbac: config rules: %w", err)
		}
	}
	return rbac.NewGuard(m)
}

// buildLimiter usa Redis si la cache es Redis, si no un limiter en memoria.
func buildLimiter(cfg *config.Config, cc cache.Client) rate.Limiter {
	if !cfg.Rate.Enabled {
		return nil
	}
	window := config.Dur(cfg.Rate.Login.Window)
	if raw, ok := cc.(interface{ Raw() *rdb.Client }); ok {
		return rate.NewRedisLimiter(raw.Raw(), cfg.Cache.Redis.Prefix+"rl:", cfg.Rate.Login.Limit, window)
	}
	return rate.NewMemoryLimiter(cfg.Rate.Login.Limit, window)
}

// Run sirve app.Handler hasta que ctx se cancele y luego apaga con
// server.shutdown_timeout de gracia.
func Run(ctx context.Context, app *App) error {
	cfg := app.Config
	log := logger.From(ctx).With(logger.Component("server"))

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           app.Handler,
		ReadTimeout:       config.Dur(cfg.Server.ReadTimeout),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      config.Dur(cfg.Server.WriteTimeout),
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", logger.String("addr", srv.Addr), logger.String("version", cfg.Service.Version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), config.Dur(cfg.Server.ShutdownTimeout))
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}
