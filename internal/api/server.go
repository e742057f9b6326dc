package api

import (
	"context"
	"os"
	"strings"

	"vanplan/internal/auth"
	"vanplan/internal/avail"
	"vanplan/internal/catalog"
	"vanplan/internal/config"
	"vanplan/internal/model"
	"vanplan/internal/plan"
	"vanplan/internal/store"
	"vanplan/internal/webhooks"
)

type Server struct {
	Store   store.Store
	Catalog catalog.Provider
	Planner *plan.Planner
	Engine  *avail.Engine
	Pub     *webhooks.Publisher
	Auth    *auth.Verifier
	Broker  EventBroker
	Cfg     config.Config
}

// NewServer wires the full service from the environment. With no
// DATABASE_URL it runs on the in-memory store; with no REDIS_URL events
// fan out in-process.
func NewServer() (*Server, error) {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return nil, err
	}

	dsn := os.Getenv("DATABASE_URL")
	var s store.Store
	if strings.TrimSpace(dsn) == "" {
		s = store.NewMemory()
	} else {
		sp, err := store.NewPostgres(dsn)
		if err != nil {
			return nil, err
		}
		// Run migrations (dev helper)
		if os.Getenv("DB_MIGRATE") != "false" {
			_ = sp.MigrateDir("db/migrations")
		}
		s = sp
	}

	var broker EventBroker
	if os.Getenv("REDIS_URL") != "" {
		if rb, err := NewRedisBroker(); err == nil {
			broker = rb
		} else {
			broker = NewBroker()
		}
	} else {
		broker = NewBroker()
	}

	cat := catalogFromEnv()
	return newServer(cfg, s, cat, broker), nil
}

// newServer finishes the wiring from explicit collaborators; tests use
// it directly with the memory store and a static catalog.
func newServer(cfg config.Config, s store.Store, cat catalog.Provider, broker EventBroker) *Server {
	planner := plan.NewPlanner(cat)
	if cfg.Planner.ExactLimit > 0 {
		planner.ExactLimit = cfg.Planner.ExactLimit
	}

	pub := webhooks.NewPublisher(s)
	engine := avail.NewEngine(s, planner, cfg.Availability, cfg.Ceiling("economy"))

	srv := &Server{
		Store:   s,
		Catalog: cat,
		Planner: planner,
		Engine:  engine,
		Pub:     pub,
		Auth:    auth.NewVerifierFromEnv(),
		Broker:  broker,
		Cfg:     cfg,
	}
	engine.Notify = srv.notify
	return srv
}

// notify fans an engine event out to stream subscribers and the webhook
// queue. Corridor events key the broker by corridor id.
func (s *Server) notify(eventType string, data any) {
	s.Pub.Emit(context.Background(), eventType, data)
	switch v := data.(type) {
	case model.Corridor:
		s.Broker.Publish(v.ID, SSEEvent{Type: eventType, Data: map[string]any{
			"corridorId": v.ID,
			"version":    v.Version,
			"bookings":   len(v.Bookings),
			"status":     string(v.Status),
		}})
	case model.AvailabilityResult:
		if v.CorridorID != "" {
			s.Broker.Publish(v.CorridorID, SSEEvent{Type: eventType, Data: map[string]any{
				"corridorId": v.CorridorID,
				"routeType":  string(v.RouteType),
				"date":       v.NextAvailableDate,
			}})
		}
	}
}

func catalogFromEnv() catalog.Provider {
	if url := os.Getenv("CATALOG_URL"); url != "" {
		return catalog.NewHTTPProvider(url)
	}
	if path := os.Getenv("CATALOG_PATH"); path != "" {
		return catalog.NewFileProvider(path)
	}
	return catalog.MustStatic("builtin-1", defaultCatalog())
}

// defaultCatalog seeds a usable item set when no catalog source is
// configured (dev and tests).
func defaultCatalog() []model.ItemDefinition {
	return []model.ItemDefinition{
		{ID: "small_box", Name: "Small box", Category: "boxes", VolumeM3: 0.05, WeightKg: 8, WorkersRequired: 1, FitsStandardVan: true},
		{ID: "large_box", Name: "Large box", Category: "boxes", VolumeM3: 0.12, WeightKg: 15, WorkersRequired: 1, FitsStandardVan: true},
		{ID: "medium_item_100kg", Name: "Medium appliance", Category: "appliances", VolumeM3: 1.0, WeightKg: 100, WorkersRequired: 2, FitsStandardVan: true},
		{ID: "sofa_3seat", Name: "Three-seat sofa", Category: "furniture", VolumeM3: 1.8, WeightKg: 60, WorkersRequired: 2, FitsStandardVan: true},
		{ID: "wardrobe_double", Name: "Double wardrobe", Category: "furniture", VolumeM3: 1.2, WeightKg: 70, WorkersRequired: 2, DismantleRequired: true, DismantleMinutes: 25, ReassemblyMinutes: 35, FitsStandardVan: true},
		{ID: "bed_double", Name: "Double bed", Category: "furniture", VolumeM3: 1.5, WeightKg: 55, WorkersRequired: 2, DismantleRequired: true, DismantleMinutes: 20, ReassemblyMinutes: 30, FitsStandardVan: true},
		{ID: "fridge_freezer", Name: "Fridge freezer", Category: "appliances", VolumeM3: 1.1, WeightKg: 85, WorkersRequired: 2, FitsStandardVan: true},
		{ID: "washing_machine", Name: "Washing machine", Category: "appliances", VolumeM3: 0.35, WeightKg: 75, WorkersRequired: 2, FitsStandardVan: true},
		{ID: "dining_table_6", Name: "Six-seat dining table", Category: "furniture", VolumeM3: 0.9, WeightKg: 45, WorkersRequired: 2, DismantleRequired: true, DismantleMinutes: 15, ReassemblyMinutes: 20, FitsStandardVan: true},
		{ID: "piano_upright", Name: "Upright piano", Category: "specialty", VolumeM3: 1.6, WeightKg: 220, WorkersRequired: 3, FitsStandardVan: true},
	}
}

// NewWebhookWorker creates a background worker for webhook deliveries.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
	return webhooks.NewWorker(s.Store)
}
