// Package fleet implements the production fleet operations: operator
// commands, the periodic production tick, and first-run seeding.
package fleet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tacogroup/prodlive/internal/domain/models"
	"github.com/tacogroup/prodlive/internal/registry"
)

// Store persists machine records across restarts.
type Store interface {
	LoadMachines(ctx context.Context) ([]models.Machine, error)
	SaveMachine(ctx context.Context, m models.Machine) error
}

// Broadcaster pushes a fleet snapshot to all connected viewers.
type Broadcaster interface {
	Broadcast(snapshot models.Snapshot)
}

// ProductionLog records machine completions in an external log.
type ProductionLog interface {
	AppendCompletion(ctx context.Context, m models.Machine, completedAt time.Time) error
}

// ErrNotFound is returned when a command targets a machine that does not
// exist. It maps to an {ok:false} reply, never a transport error.
var ErrNotFound = registry.ErrNotFound

// Seed fleet layout. Mirrors the production sites: twelve machines per
// location with ids offset per site.
var seedLocations = []struct {
	Name    string
	StartID int
}{
	{Name: "Al-Khraj", StartID: 200},
	{Name: "Baldeya", StartID: 100},
	{Name: "Modan", StartID: 1},
}

const (
	seedMachinesPerLocation = 12
	seedTargetQty           = 100
	seedSecondsPerMeter     = 20
	seedPipeSize            = "20"
)

// Service coordinates all mutations of the machine registry. Every
// successful mutation persists the affected machines best-effort and
// triggers exactly one broadcast.
type Service struct {
	reg    *registry.Registry
	store  Store
	hub    Broadcaster
	log    ProductionLog
	logger *zap.Logger
	now    func() time.Time
}

// NewService wires the fleet service. The production log may be nil when
// the Sheets integration is not configured.
func NewService(reg *registry.Registry, store Store, hub Broadcaster, log ProductionLog, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		reg:    reg,
		store:  store,
		hub:    hub,
		log:    log,
		logger: logger,
		now:    time.Now,
	}
}

// Snapshot returns the current dashboard view of the whole fleet.
func (s *Service) Snapshot() models.Snapshot {
	return s.reg.Snapshot()
}

// Start marks the machine running. Starting an already-running machine is a
// no-op success.
func (s *Service) Start(ctx context.Context, location string, id int) error {
	if err := s.reg.SetRunning(location, id, s.now()); err != nil {
		return err
	}
	s.commit(ctx, location, id, "start")
	return nil
}

// Pause marks the machine paused regardless of its prior status.
func (s *Service) Pause(ctx context.Context, location string, id int) error {
	if err := s.reg.SetPaused(location, id); err != nil {
		return err
	}
	s.commit(ctx, location, id, "pause")
	return nil
}

// Stop marks the machine stopped regardless of its prior status.
func (s *Service) Stop(ctx context.Context, location string, id int) error {
	if err := s.reg.SetStopped(location, id); err != nil {
		return err
	}
	s.commit(ctx, location, id, "stop")
	return nil
}

// commit persists the mutated machine and fans the new snapshot out. The
// broadcast happens before the command returns, so viewers have been sent
// the updated state by the time the caller observes success.
func (s *Service) commit(ctx context.Context, location string, id int, op string) {
	s.persist(ctx, location, id)
	s.logger.Info("machine command applied",
		zap.String("op", op),
		zap.String("location", location),
		zap.Int("machine_id", id))
	s.hub.Broadcast(s.reg.Snapshot())
}

func (s *Service) persist(ctx context.Context, location string, id int) {
	m, err := s.reg.Get(location, id)
	if err != nil {
		return
	}
	if err := s.store.SaveMachine(ctx, m); err != nil {
		s.logger.Error("failed to persist machine",
			zap.String("location", location),
			zap.Int("machine_id", id),
			zap.Error(err))
	}
}

// Tick runs one production-advance cycle: every running machine is credited
// with the whole intervals elapsed since its last tick. A failure on one
// machine never aborts the cycle for the others. At most one broadcast is
// emitted per cycle, and only when something changed.
func (s *Service) Tick(ctx context.Context) {
	now := s.now()
	var changed []models.Machine

	for _, m := range s.reg.List() {
		if !m.IsRunning() || m.SecondsPerMeter <= 0 {
			continue
		}
		advanced, err := s.reg.AdvanceProduction(m.Location, m.ID, now)
		if err != nil {
			s.logger.Error("production advance failed",
				zap.String("location", m.Location),
				zap.Int("machine_id", m.ID),
				zap.Error(err))
			continue
		}
		if !advanced {
			continue
		}
		after, err := s.reg.Get(m.Location, m.ID)
		if err != nil {
			continue
		}
		changed = append(changed, after)
	}

	if len(changed) == 0 {
		return
	}

	for _, m := range changed {
		if err := s.store.SaveMachine(ctx, m); err != nil {
			s.logger.Error("failed to persist machine",
				zap.String("location", m.Location),
				zap.Int("machine_id", m.ID),
				zap.Error(err))
		}
		if m.Status == models.StatusCompleted {
			s.logger.Info("machine completed target",
				zap.String("location", m.Location),
				zap.Int("machine_id", m.ID),
				zap.Int("produced", m.ProducedQty))
			s.logCompletion(ctx, m, now)
		}
	}

	s.hub.Broadcast(s.reg.Snapshot())
}

func (s *Service) logCompletion(ctx context.Context, m models.Machine, completedAt time.Time) {
	if s.log == nil {
		return
	}
	if err := s.log.AppendCompletion(ctx, m, completedAt); err != nil {
		s.logger.Warn("failed to append completion to production log",
			zap.String("location", m.Location),
			zap.Int("machine_id", m.ID),
			zap.Error(err))
	}
}

// Bootstrap rehydrates the registry from the store, then seeds the default
// fleet when the store held nothing. The emptiness check is the only
// idempotency guard; an existing fleet is taken as-is.
func (s *Service) Bootstrap(ctx context.Context) error {
	stored, err := s.store.LoadMachines(ctx)
	if err != nil {
		return fmt.Errorf("load machines: %w", err)
	}

	for _, m := range stored {
		if err := s.reg.Put(m); err != nil {
			s.logger.Warn("skipping stored machine", zap.Error(err))
		}
	}

	if s.reg.Count() > 0 {
		s.logger.Info("registry rehydrated", zap.Int("machines", s.reg.Count()))
		return nil
	}

	for _, loc := range seedLocations {
		for i := 0; i < seedMachinesPerLocation; i++ {
			m := models.Machine{
				ID:              loc.StartID + i,
				Location:        loc.Name,
				Name:            fmt.Sprintf("Machine %d", i+1),
				Status:          models.StatusFree,
				TargetQty:       seedTargetQty,
				SecondsPerMeter: seedSecondsPerMeter,
				PipeSize:        seedPipeSize,
			}
			if err := s.reg.Put(m); err != nil {
				return fmt.Errorf("seed machine %s/%d: %w", m.Location, m.ID, err)
			}
			if err := s.store.SaveMachine(ctx, m); err != nil {
				s.logger.Error("failed to persist seeded machine",
					zap.String("location", m.Location),
					zap.Int("machine_id", m.ID),
					zap.Error(err))
			}
		}
	}

	s.logger.Info("seeded default fleet", zap.Int("machines", s.reg.Count()))
	return nil
}

// IsNotFound reports whether err denotes a missing command target.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
