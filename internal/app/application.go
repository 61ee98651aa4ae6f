// Package app ties the domain services together and manages their
// lifecycle.
package app

import (
	"context"
	"fmt"

	"github.com/nodevault/custody-service/internal/app/domain/node"
	"github.com/nodevault/custody-service/internal/app/services/addresses"
	authsvc "github.com/nodevault/custody-service/internal/app/services/auth"
	cryptosvc "github.com/nodevault/custody-service/internal/app/services/cryptos"
	inflowsvc "github.com/nodevault/custody-service/internal/app/services/inflows"
	"github.com/nodevault/custody-service/internal/app/services/maintenance"
	nodesvc "github.com/nodevault/custody-service/internal/app/services/nodes"
	"github.com/nodevault/custody-service/internal/app/services/timelines"
	"github.com/nodevault/custody-service/internal/app/storage"
	"github.com/nodevault/custody-service/internal/app/storage/memory"
	"github.com/nodevault/custody-service/internal/app/system"
	"github.com/nodevault/custody-service/internal/mail"
	"github.com/nodevault/custody-service/pkg/logger"
)

// Options configures Application construction. Zero-value stores default to
// one shared in-memory implementation; a nil Sender logs mail instead of
// sending it.
type Options struct {
	Stores    storage.Stores
	Sender    mail.Sender
	JWTSecret string
}

// Application exposes the domain services and manages background work.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Stores storage.Stores

	Auth      *authsvc.Service
	Nodes     *nodesvc.Service
	Powers    *timelines.Service[node.PowerEntry]
	Uptimes   *timelines.Service[node.UptimeEntry]
	Rates     *timelines.Service[node.EnergyRate]
	Cryptos   *cryptosvc.Service
	Addresses *addresses.Service
	Inflows   *inflowsvc.Service
}

// New builds a fully initialised application.
func New(opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	stores := opts.Stores
	if stores.Users == nil || stores.Nodes == nil || stores.Powers == nil ||
		stores.Uptimes == nil || stores.Rates == nil || stores.Cryptos == nil ||
		stores.Addresses == nil || stores.Inflows == nil {
		mem := memory.New().Stores()
		if stores.Users == nil {
			stores.Users = mem.Users
		}
		if stores.Nodes == nil {
			stores.Nodes = mem.Nodes
		}
		if stores.Powers == nil {
			stores.Powers = mem.Powers
		}
		if stores.Uptimes == nil {
			stores.Uptimes = mem.Uptimes
		}
		if stores.Rates == nil {
			stores.Rates = mem.Rates
		}
		if stores.Cryptos == nil {
			stores.Cryptos = mem.Cryptos
		}
		if stores.Addresses == nil {
			stores.Addresses = mem.Addresses
		}
		if stores.Inflows == nil {
			stores.Inflows = mem.Inflows
		}
	}

	sender := opts.Sender
	if sender == nil {
		sender = mail.NewLogSender(log.WithField("component", "mail"))
	}
	secret := opts.JWTSecret
	if secret == "" {
		log.Warn("JWT secret not set; using insecure development secret")
		secret = "insecure-dev-secret"
	}

	manager := system.NewManager()

	application := &Application{
		manager:   manager,
		log:       log,
		Stores:    stores,
		Auth:      authsvc.New(stores.Users, sender, secret, log.WithField("service", "auth")),
		Nodes:     nodesvc.New(stores, log.WithField("service", "nodes")),
		Powers:    timelines.New(stores.Powers, stores.Nodes, log.WithField("service", "powers")),
		Uptimes:   timelines.New(stores.Uptimes, stores.Nodes, log.WithField("service", "uptimes")),
		Rates:     timelines.New(stores.Rates, stores.Nodes, log.WithField("service", "rates")),
		Cryptos:   cryptosvc.New(stores.Cryptos, log.WithField("service", "cryptos")),
		Addresses: addresses.New(stores.Addresses, stores.Cryptos, log.WithField("service", "addresses")),
		Inflows:   inflowsvc.New(stores.Inflows, stores.Addresses, log.WithField("service", "inflows")),
	}

	housekeeping := maintenance.New(stores.Users, log.WithField("service", "maintenance"))
	if err := manager.Register(housekeeping); err != nil {
		return nil, fmt.Errorf("register %s: %w", housekeeping.Name(), err)
	}

	return application, nil
}

// Attach registers an additional lifecycle-managed service. Call before
// Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
