package fleet

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tacogroup/prodlive/internal/domain/models"
	"github.com/tacogroup/prodlive/internal/registry"
)

// --- fakes ---

type fakeStore struct {
	stored []models.Machine
	saves  []models.Machine
	err    error
}

func (f *fakeStore) LoadMachines(context.Context) ([]models.Machine, error) {
	return f.stored, f.err
}

func (f *fakeStore) SaveMachine(_ context.Context, m models.Machine) error {
	f.saves = append(f.saves, m)
	return f.err
}

type fakeHub struct {
	snapshots []models.Snapshot
}

func (f *fakeHub) Broadcast(snapshot models.Snapshot) {
	f.snapshots = append(f.snapshots, snapshot)
}

type fakeLog struct {
	completions []models.Machine
	err         error
}

func (f *fakeLog) AppendCompletion(_ context.Context, m models.Machine, _ time.Time) error {
	f.completions = append(f.completions, m)
	return f.err
}

// --- helpers ---

func newTestService(t *testing.T, machines ...models.Machine) (*Service, *registry.Registry, *fakeStore, *fakeHub) {
	t.Helper()
	reg := registry.New()
	for _, m := range machines {
		if err := reg.Put(m); err != nil {
			t.Fatal(err)
		}
	}
	store := &fakeStore{}
	hub := &fakeHub{}
	svc := NewService(reg, store, hub, nil, nil)
	return svc, reg, store, hub
}

func runningMachine(location string, id, target, spm int) models.Machine {
	return models.Machine{
		ID:              id,
		Location:        location,
		Name:            "Machine 1",
		Status:          models.StatusRunning,
		TargetQty:       target,
		SecondsPerMeter: spm,
	}
}

func freeMachine(location string, id int) models.Machine {
	m := runningMachine(location, id, 100, 20)
	m.Status = models.StatusFree
	return m
}

// --- command surface ---

func TestStart_BroadcastsNewStatusOnce(t *testing.T) {
	svc, reg, store, hub := newTestService(t, freeMachine("Modan", 1), freeMachine("Modan", 2))

	if err := svc.Start(context.Background(), "Modan", 1); err != nil {
		t.Fatal(err)
	}

	if len(hub.snapshots) != 1 {
		t.Fatalf("got %d broadcasts, want 1", len(hub.snapshots))
	}
	views := hub.snapshots[0]["Modan"]
	if len(views) != 2 {
		t.Fatalf("got %d machines in snapshot, want 2", len(views))
	}
	if views[0].Status != models.StatusRunning {
		t.Errorf("snapshot shows status=%s, want running", views[0].Status)
	}
	if views[1].Status != models.StatusFree {
		t.Errorf("untouched machine shows status=%s, want free", views[1].Status)
	}

	if len(store.saves) != 1 {
		t.Errorf("got %d saves, want 1", len(store.saves))
	}

	m, _ := reg.Get("Modan", 1)
	if m.LastTickTime == nil {
		t.Error("start did not stamp last_tick_time")
	}
}

func TestStart_AlreadyRunningStillSucceeds(t *testing.T) {
	svc, reg, _, hub := newTestService(t, runningMachine("Modan", 1, 100, 20))

	before, _ := reg.Get("Modan", 1)
	if err := svc.Start(context.Background(), "Modan", 1); err != nil {
		t.Fatal(err)
	}
	after, _ := reg.Get("Modan", 1)

	if after.Status != before.Status || after.ProducedQty != before.ProducedQty {
		t.Error("idempotent start changed machine state")
	}
	if len(hub.snapshots) != 1 {
		t.Errorf("got %d broadcasts, want 1", len(hub.snapshots))
	}
}

func TestPause_UnknownMachine(t *testing.T) {
	svc, reg, store, hub := newTestService(t, freeMachine("Modan", 1))

	err := svc.Pause(context.Background(), "X", 9999)
	if !IsNotFound(err) {
		t.Fatalf("got %v, want not-found", err)
	}

	if len(hub.snapshots) != 0 {
		t.Errorf("not-found command broadcast %d snapshots", len(hub.snapshots))
	}
	if len(store.saves) != 0 {
		t.Errorf("not-found command persisted %d machines", len(store.saves))
	}
	m, _ := reg.Get("Modan", 1)
	if m.Status != models.StatusFree {
		t.Errorf("unrelated machine changed to %s", m.Status)
	}
}

func TestStop_PersistFailureStillBroadcasts(t *testing.T) {
	svc, _, store, hub := newTestService(t, runningMachine("Modan", 1, 100, 20))
	store.err = errors.New("mongo down")

	if err := svc.Stop(context.Background(), "Modan", 1); err != nil {
		t.Fatalf("persist failure leaked to the caller: %v", err)
	}
	if len(hub.snapshots) != 1 {
		t.Errorf("got %d broadcasts, want 1", len(hub.snapshots))
	}
}

// --- tick engine ---

func TestTick_ProgressToCompletion(t *testing.T) {
	svc, reg, _, hub := newTestService(t, freeMachine("Modan", 1))

	clock := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }

	target := runningMachine("Modan", 2, 5, 2)
	if err := reg.Put(target); err != nil {
		t.Fatal(err)
	}
	if err := reg.SetRunning("Modan", 2, clock); err != nil {
		t.Fatal(err)
	}

	// Ten seconds of one-second cycles at 2 s/m reaches the target of 5.
	for i := 0; i < 10; i++ {
		clock = clock.Add(time.Second)
		svc.Tick(context.Background())
	}

	got, _ := reg.Get("Modan", 2)
	if got.ProducedQty != 5 {
		t.Errorf("got produced=%d, want 5", got.ProducedQty)
	}
	if got.Status != models.StatusCompleted {
		t.Errorf("got status=%s, want completed", got.Status)
	}

	// One broadcast per changed cycle: meters land every other second.
	if len(hub.snapshots) != 5 {
		t.Errorf("got %d broadcasts, want 5", len(hub.snapshots))
	}
}

func TestTick_NoChangesNoBroadcast(t *testing.T) {
	svc, _, store, hub := newTestService(t, freeMachine("Modan", 1))

	svc.Tick(context.Background())

	if len(hub.snapshots) != 0 {
		t.Errorf("idle tick broadcast %d snapshots", len(hub.snapshots))
	}
	if len(store.saves) != 0 {
		t.Errorf("idle tick persisted %d machines", len(store.saves))
	}
}

func TestTick_FailureIsolatedToOneMachine(t *testing.T) {
	corrupt := runningMachine("Modan", 1, 5, 1)
	corrupt.ProducedQty = 7 // beyond target, trips the invariant check
	healthy := runningMachine("Modan", 2, 100, 1)

	svc, reg, _, hub := newTestService(t, corrupt, healthy)

	clock := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }
	for _, id := range []int{1, 2} {
		if err := reg.SetRunning("Modan", id, clock); err != nil {
			t.Fatal(err)
		}
	}

	clock = clock.Add(3 * time.Second)
	svc.Tick(context.Background())

	got, _ := reg.Get("Modan", 2)
	if got.ProducedQty != 3 {
		t.Errorf("healthy machine got produced=%d, want 3", got.ProducedQty)
	}
	if len(hub.snapshots) != 1 {
		t.Errorf("got %d broadcasts, want 1", len(hub.snapshots))
	}
}

func TestTick_LogsCompletion(t *testing.T) {
	reg := registry.New()
	m := runningMachine("Modan", 1, 2, 1)
	m.WorkOrder = "WO-001"
	if err := reg.Put(m); err != nil {
		t.Fatal(err)
	}

	log := &fakeLog{}
	svc := NewService(reg, &fakeStore{}, &fakeHub{}, log, nil)

	clock := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }
	if err := reg.SetRunning("Modan", 1, clock); err != nil {
		t.Fatal(err)
	}

	clock = clock.Add(5 * time.Second)
	svc.Tick(context.Background())

	if len(log.completions) != 1 {
		t.Fatalf("got %d completion rows, want 1", len(log.completions))
	}
	if log.completions[0].WorkOrder != "WO-001" {
		t.Errorf("completion row lost work order: %q", log.completions[0].WorkOrder)
	}
}

// --- bootstrap ---

func TestBootstrap_SeedsEmptyStore(t *testing.T) {
	svc, reg, store, _ := newTestService(t)

	if err := svc.Bootstrap(context.Background()); err != nil {
		t.Fatal(err)
	}

	if got := reg.Count(); got != 36 {
		t.Fatalf("got %d machines, want 36", got)
	}
	if len(store.saves) != 36 {
		t.Errorf("got %d persisted seeds, want 36", len(store.saves))
	}

	m, err := reg.Get("Baldeya", 100)
	if err != nil {
		t.Fatal(err)
	}
	if m.Name != "Machine 1" || m.Status != models.StatusFree || m.TargetQty != 100 {
		t.Errorf("unexpected seed record: %+v", m)
	}
	if m.SecondsPerMeter != 20 || m.PipeSize != "20" {
		t.Errorf("unexpected seed rate: %+v", m)
	}
}

func TestBootstrap_SkipsSeedingWhenStoreHasData(t *testing.T) {
	stored := freeMachine("Modan", 1)
	stored.ProducedQty = 42

	svc, reg, store, _ := newTestService(t)
	store.stored = []models.Machine{stored}

	if err := svc.Bootstrap(context.Background()); err != nil {
		t.Fatal(err)
	}

	if got := reg.Count(); got != 1 {
		t.Fatalf("got %d machines, want 1 (no seeding)", got)
	}
	m, _ := reg.Get("Modan", 1)
	if m.ProducedQty != 42 {
		t.Errorf("rehydrated machine lost progress: produced=%d", m.ProducedQty)
	}
	if len(store.saves) != 0 {
		t.Errorf("rehydration persisted %d machines", len(store.saves))
	}
}

func TestBootstrap_StoreFailureIsFatal(t *testing.T) {
	svc, _, store, _ := newTestService(t)
	store.err = errors.New("mongo down")

	if err := svc.Bootstrap(context.Background()); err == nil {
		t.Error("expected bootstrap to fail when the store is unreachable")
	}
}
