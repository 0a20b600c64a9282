package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"teleicu/config"
	"teleicu/internal/auth"
	"teleicu/internal/authz"
	"teleicu/internal/camera"
	"teleicu/internal/db"
	"teleicu/internal/deviceapi"
	"teleicu/internal/devicetype"
	"teleicu/internal/events"
	"teleicu/internal/gatewaydev"
	"teleicu/internal/health"
	"teleicu/internal/labanalyzer"
	"teleicu/internal/logs"
	"teleicu/internal/middleware"
	"teleicu/internal/models"
	"teleicu/internal/registry"
	"teleicu/internal/relay"
	"teleicu/internal/repo"
	"teleicu/internal/tasks"
	"teleicu/internal/token"
	"teleicu/internal/validation"
	"teleicu/internal/vitalsobs"

	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

type App struct {
	cfg        *config.Config
	db         *gorm.DB
	Router     *mux.Router
	httpServer *http.Server

	bus       *events.Bus
	scheduler *tasks.Scheduler

	ctx    context.Context
	cancel context.CancelFunc
}

func (a *App) Initialize(cfg *config.Config) {
	a.cfg = cfg

	/* 1) Логи */
	logs.Init(logs.Options{
		Level:  a.cfg.Logging.Level,
		Format: a.cfg.Logging.Format,
		File:   a.cfg.Logging.File,
	})

	/* 2) DB — обязательна: устройства и пресеты живут в ней */
	if a.cfg.Database.Driver == "" {
		log.Fatalf("database.driver is required")
	}
	d, err := db.Open(a.cfg.Database.Driver, a.cfg.Database.DSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	a.db = d

	if err := a.db.AutoMigrate(
		&models.Device{},
		&models.PositionPreset{},
		&models.FacilityLocation{},
		&models.Encounter{},
		&models.DiagnosticReport{},
		&models.Observation{},
	); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	/* 3) Ключи и токены */
	key, err := token.LoadOrGenerateKey(a.cfg.Token.KeyFile)
	if err != nil {
		log.Fatalf("token key: %v", err)
	}
	issuer := token.NewIssuer(key, token.IssuerOptions{
		Issuer: a.cfg.Token.Issuer,
		TTL:    a.cfg.Token.TTL,
		KeyID:  a.cfg.Token.KeyID,
	})
	keys := token.NewKeyCache()

	/* 4) Хранилища и relay */
	deviceStore := repo.NewDeviceStore(a.db)
	clinicalStore := repo.NewClinicalStore(a.db)
	presetStore := repo.NewPresetStore(a.db)
	relayOpts := relay.Options{
		Timeout:    a.cfg.Relay.Timeout,
		AuthScheme: a.cfg.Relay.AuthScheme,
		Production: a.cfg.Production,
	}

	/* 5) Реестр типов: gateway первым, остальные зависят от него */
	reg := registry.New()
	if err := reg.Register(gatewaydev.Tag, gatewaydev.New(deviceStore)); err != nil {
		log.Fatalf("registry: %v", err)
	}
	for _, p := range []struct {
		tag string
		h   devicetype.Handler
	}{
		{camera.Tag, camera.New(deviceStore)},
		{labanalyzer.Tag, labanalyzer.New(deviceStore)},
		{vitalsobs.Tag, vitalsobs.New(deviceStore)},
	} {
		if err := reg.Require(gatewaydev.Tag); err != nil {
			log.Fatalf("registry: %v", err)
		}
		if err := reg.Register(p.tag, p.h); err != nil {
			log.Fatalf("registry: %v", err)
		}
	}
	reg.Seal()

	/* 6) События */
	a.bus = events.NewBus()
	labanalyzer.NewSubscriber(deviceStore, issuer, relayOpts).Register(a.bus)

	/* 7) Router + middleware */
	a.Router = mux.NewRouter().StrictSlash(true)
	a.Router.Use(
		middleware.RequestID,
		middleware.Recoverer,
		middleware.LoggerMW,
	)

	health.RegisterRoutesWithDB(a.Router, a.db) // /healthz, /readyz
	gatewaydev.RegisterRoutes(a.Router, issuer, a.cfg.Token.JWKSMaxAge)

	/* 8) API хост-платформы (аутентификация — на её стороне) */
	api := a.Router.PathPrefix("/api/v1").Subrouter()
	deviceapi.RegisterRoutes(api, deviceapi.New(reg, deviceStore))
	camera.RegisterRoutes(api,
		camera.NewActions(deviceStore, clinicalStore, authz.AllowAll{}, issuer, relayOpts),
		camera.NewPresets(deviceStore, clinicalStore, presetStore))
	labanalyzer.RegisterRoutes(api,
		labanalyzer.NewActions(deviceStore, clinicalStore, issuer, relayOpts))
	a.registerEventRoutes(api)

	/* 9) Automation: вызовы от шлюза и от middleware-сервиса */
	gwAPI := a.Router.PathPrefix("/api/v1").Subrouter()
	gwAPI.Use(auth.NewGatewayAuth(deviceStore, keys).Middleware)
	mwAPI := a.Router.PathPrefix("/api/v1").Subrouter()
	mwAPI.Use(auth.NewMiddlewareAuth(deviceStore, keys).Middleware)
	vitalsobs.RegisterRoutes(gwAPI, mwAPI,
		vitalsobs.NewAutomation(deviceStore, clinicalStore, clinicalStore))

	/* 10) Планировщик */
	a.scheduler = tasks.NewScheduler()
	if err := a.scheduler.SchedulePresetCleanup(presetStore); err != nil {
		log.Fatalf("scheduler: %v", err)
	}

	_ = a.Router.Walk(func(rt *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		path, _ := rt.GetPathTemplate()
		methods, _ := rt.GetMethods()
		if len(methods) == 0 {
			methods = []string{"ANY"}
		}
		log.Printf("route: %-6v %s", methods, path)
		return nil
	})
}

// registerEventRoutes — вход для событий хостовой EMR. Снаружи этот
// маршрут не публикуется, он для внутренней шины платформы.
func (a *App) registerEventRoutes(r *mux.Router) {
	r.HandleFunc("/events/specimen_collected", func(w http.ResponseWriter, req *http.Request) {
		var payload events.SpecimenCollectedPayload
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			e := validation.FieldErrors{}
			e.Add("body", "invalid JSON: "+err.Error())
			validation.Write(w, e)
			return
		}
		if payload.AnalyzerUUID == "" {
			e := validation.FieldErrors{}
			e.Add("analyzer", "This field is required.")
			validation.Write(w, e)
			return
		}
		a.bus.Publish(req.Context(), events.Event{
			Name:    events.SpecimenCollected,
			Payload: payload,
		})
		models.WriteJSON(w, http.StatusAccepted, map[string]any{"accepted": true})
	}).Methods(http.MethodPost)
}

func (a *App) Run() error {
	if a.Router == nil || a.cfg == nil {
		return fmt.Errorf("server not initialized")
	}

	bind := net.JoinHostPort(a.cfg.Server.Address, a.cfg.Server.HTTPPort)

	a.ctx, a.cancel = context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigs
		logs.Logger.Infof("shutdown signal: %s", s)
		a.cancel()
	}()

	a.scheduler.Start()

	// Жёсткие таймауты — это важно для production
	a.httpServer = &http.Server{
		Addr:              bind,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logs.Logger.Infof("HTTP listening on %s", bind)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logs.Logger.Fatalf("http server error: %v", err)
		}
	}()

	<-a.ctx.Done()

	a.scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.httpServer.Shutdown(ctx); err != nil {
		logs.Logger.Errorf("http shutdown: %v", err)
	}
	return nil
}
