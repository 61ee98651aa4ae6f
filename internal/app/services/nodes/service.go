// Package nodes manages server nodes and assembles their read model: the
// node's fields flattened with the power, uptime and energy-rate values in
// effect right now.
package nodes

import (
	"context"
	"time"

	"github.com/nodevault/custody-service/internal/apperr"
	"github.com/nodevault/custody-service/internal/app/domain/node"
	"github.com/nodevault/custody-service/internal/app/storage"
	"github.com/nodevault/custody-service/internal/app/timeline"
	"github.com/nodevault/custody-service/pkg/logger"
)

// Service manages server node CRUD, soft deletion and projection.
type Service struct {
	nodes   storage.NodeStore
	powers  storage.EntryStore[node.PowerEntry]
	uptimes storage.EntryStore[node.UptimeEntry]
	rates   storage.EntryStore[node.EnergyRate]
	log     *logger.Logger
	now     func() time.Time
}

// New creates the node service.
func New(stores storage.Stores, log *logger.Logger) *Service {
	return &Service{
		nodes:   stores.Nodes,
		powers:  stores.Powers,
		uptimes: stores.Uptimes,
		rates:   stores.Rates,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// CreateParams carries the node name and optional initial readings. When a
// reading is present an open-ended entry starting now is recorded with the
// node.
type CreateParams struct {
	Name               string
	Wh                 *float64
	DailyUptimeSeconds *int64
}

// Create registers a new node for the caller.
func (s *Service) Create(ctx context.Context, userID int64, params CreateParams) (node.View, error) {
	if params.Name == "" {
		return node.View{}, apperr.InvalidArgument("name is required")
	}
	created, err := s.nodes.CreateNode(ctx, node.ServerNode{UserID: userID, Name: params.Name})
	if err != nil {
		return node.View{}, err
	}

	start := s.now()
	if params.Wh != nil {
		entry := node.PowerEntry{
			ServerNodeID: created.ID,
			Wh:           *params.Wh,
			Period:       timeline.Period{EffectiveFrom: start},
		}
		if _, err := timeline.Insert(ctx, s.powers, entry); err != nil {
			return node.View{}, err
		}
	}
	if params.DailyUptimeSeconds != nil {
		entry := node.UptimeEntry{
			ServerNodeID:       created.ID,
			DailyUptimeSeconds: *params.DailyUptimeSeconds,
			Period:             timeline.Period{EffectiveFrom: start},
		}
		if _, err := timeline.Insert(ctx, s.uptimes, entry); err != nil {
			return node.View{}, err
		}
	}

	s.log.WithFields(map[string]interface{}{"id": created.ID, "userId": userID}).
		Info("server node created")
	return s.project(ctx, created)
}

// Get returns one of the caller's nodes with its current values.
func (s *Service) Get(ctx context.Context, userID, id int64) (node.View, error) {
	n, err := s.nodes.GetNode(ctx, id, userID, false)
	if err != nil {
		return node.View{}, err
	}
	return s.project(ctx, n)
}

// List returns the caller's active nodes with their current values.
func (s *Service) List(ctx context.Context, userID int64) ([]node.View, error) {
	list, err := s.nodes.ListNodes(ctx, userID, false)
	if err != nil {
		return nil, err
	}
	return s.projectAll(ctx, list)
}

// ListDeleted returns the caller's soft-deleted nodes.
func (s *Service) ListDeleted(ctx context.Context, userID int64) ([]node.View, error) {
	list, err := s.nodes.ListNodes(ctx, userID, true)
	if err != nil {
		return nil, err
	}
	return s.projectAll(ctx, list)
}

// Update renames a node.
func (s *Service) Update(ctx context.Context, userID, id int64, name string) (node.View, error) {
	if name == "" {
		return node.View{}, apperr.InvalidArgument("name is required")
	}
	n, err := s.nodes.GetNode(ctx, id, userID, false)
	if err != nil {
		return node.View{}, err
	}
	n.Name = name
	updated, err := s.nodes.UpdateNode(ctx, n)
	if err != nil {
		return node.View{}, err
	}
	return s.project(ctx, updated)
}

// Delete soft-deletes a node. Its history is retained and the node can be
// reactivated later.
func (s *Service) Delete(ctx context.Context, userID, id int64) error {
	if _, err := s.nodes.GetNode(ctx, id, userID, false); err != nil {
		return err
	}
	deletedAt := s.now()
	if err := s.nodes.SetNodeDeleted(ctx, id, &deletedAt); err != nil {
		return err
	}
	s.log.WithFields(map[string]interface{}{"id": id, "userId": userID}).
		Info("server node deleted")
	return nil
}

// Activate reverses a soft deletion.
func (s *Service) Activate(ctx context.Context, userID, id int64) (node.View, error) {
	n, err := s.nodes.GetNode(ctx, id, userID, true)
	if err != nil {
		return node.View{}, err
	}
	if !n.Deleted() {
		return node.View{}, apperr.Conflict("server node is not deleted")
	}
	if err := s.nodes.SetNodeDeleted(ctx, id, nil); err != nil {
		return node.View{}, err
	}
	n.DeletedAt = nil
	return s.project(ctx, n)
}

func (s *Service) project(ctx context.Context, n node.ServerNode) (node.View, error) {
	views, err := s.projectAll(ctx, []node.ServerNode{n})
	if err != nil {
		return node.View{}, err
	}
	return views[0], nil
}

// projectAll resolves current power and uptime plus the full energy-rate
// history for a batch of nodes in three queries.
func (s *Service) projectAll(ctx context.Context, list []node.ServerNode) ([]node.View, error) {
	ids := make([]int64, 0, len(list))
	for _, n := range list {
		ids = append(ids, n.ID)
	}
	at := s.now()

	currentPowers, err := s.powers.CurrentFor(ctx, ids, at)
	if err != nil {
		return nil, err
	}
	currentUptimes, err := s.uptimes.CurrentFor(ctx, ids, at)
	if err != nil {
		return nil, err
	}
	allRates, err := s.rates.ListFor(ctx, ids)
	if err != nil {
		return nil, err
	}

	views := make([]node.View, 0, len(list))
	for _, n := range list {
		v := node.View{ServerNode: n, EnergyRates: []node.EnergyRate{}}
		if p, ok := currentPowers[n.ID]; ok {
			wh := p.Wh
			period := p.Period
			v.Wh = &wh
			v.CurrentPowerPeriod = &period
		}
		if u, ok := currentUptimes[n.ID]; ok {
			seconds := u.DailyUptimeSeconds
			period := u.Period
			v.DailyUptimeSeconds = &seconds
			v.CurrentUptimePeriod = &period
		}
		if rates, ok := allRates[n.ID]; ok {
			v.EnergyRates = rates
		}
		views = append(views, v)
	}
	return views, nil
}
