// Package erpsync applies advisory work-order data from ERPNext onto the
// machine registry. The feed is best-effort: any failure degrades to "no
// data" and is retried on the next poll cycle.
package erpsync

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/tacogroup/prodlive/internal/domain/models"
	"github.com/tacogroup/prodlive/internal/registry"
	"github.com/tacogroup/prodlive/pkg/clients/erpnext"
)

// Broadcaster pushes a fleet snapshot to all connected viewers.
type Broadcaster interface {
	Broadcast(snapshot models.Snapshot)
}

// Service polls ERPNext and writes work_order and pipe_size onto matching
// machines. Those fields are advisory only; nothing else is touched.
type Service struct {
	client erpnext.Client
	reg    *registry.Registry
	hub    Broadcaster
	logger *zap.Logger
}

// NewService wires an ERP sync service.
func NewService(client erpnext.Client, reg *registry.Registry, hub Broadcaster, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{client: client, reg: reg, hub: hub, logger: logger}
}

// Sync fetches active work orders and applies them to the fleet. One
// broadcast is emitted when at least one machine's advisory fields changed.
// Feed failures are logged and absorbed; Sync never returns an error.
func (s *Service) Sync(ctx context.Context) {
	orders, err := s.client.FetchActiveWorkOrders(ctx)
	if err != nil {
		s.logger.Warn("erp feed unavailable", zap.Error(err))
		return
	}

	changed := false
	for _, wo := range orders {
		if wo.Location == "" || wo.MachineID == 0 {
			continue
		}
		updated, err := s.reg.SetAdvisory(wo.Location, wo.MachineID, wo.Name, wo.PipeSize)
		if err != nil {
			if !errors.Is(err, registry.ErrNotFound) {
				s.logger.Warn("failed to apply work order",
					zap.String("work_order", wo.Name), zap.Error(err))
			}
			continue
		}
		if updated {
			changed = true
		}
	}

	if changed {
		s.logger.Info("erp advisory data applied", zap.Int("work_orders", len(orders)))
		s.hub.Broadcast(s.reg.Snapshot())
	}
}
