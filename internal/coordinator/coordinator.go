// Package coordinator polls the cloud service for a site's zones and
// devices and maintains the snapshot every consumer reads.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/joshp123/kumo2mqtt/internal/kumo"
)

const maxConcurrentFetches = 4

var ErrSyncInProgress = errors.New("sync already in progress")

// Snapshot is the canonical cached cloud state for one site. Its maps and
// slices are replaced wholesale on update, never mutated in place, so
// callers may hold what the accessors hand out.
type Snapshot struct {
	Zones    []kumo.Zone
	Devices  map[string]kumo.DeviceDetail
	Profiles map[string][]kumo.DeviceProfile
}

// Cloud is the client surface the coordinator drives.
type Cloud interface {
	Zones(ctx context.Context, siteID string) ([]kumo.Zone, error)
	DeviceDetails(ctx context.Context, serial string) (kumo.DeviceDetail, error)
	DeviceProfiles(ctx context.Context, serial string) ([]kumo.DeviceProfile, error)
	RefreshToken(ctx context.Context) error
	SendCommand(ctx context.Context, serial string, cmd kumo.Command) error
}

// Coordinator serializes full-sync cycles for one site. At most one cycle
// is in flight at a time; a tick landing mid-cycle is skipped.
type Coordinator struct {
	cloud       Cloud
	siteID      string
	interval    time.Duration
	settleDelay time.Duration
	log         *zap.Logger

	inFlight atomic.Bool

	mu       sync.RWMutex
	snap     Snapshot
	synced   bool
	lastSync time.Time
	lastErr  error

	listenerMu sync.Mutex
	listeners  []func()
}

// Options configures a Coordinator. Zero values select the defaults: a
// one minute poll interval and a one second post-command settle delay.
type Options struct {
	SiteID      string
	Interval    time.Duration
	SettleDelay time.Duration
	Logger      *zap.Logger
}

func New(cloud Cloud, opts Options) *Coordinator {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = time.Second
	}
	return &Coordinator{
		cloud:       cloud,
		siteID:      opts.SiteID,
		interval:    opts.Interval,
		settleDelay: opts.SettleDelay,
		log:         opts.Logger,
	}
}

type syncPhase int

const (
	phaseFetching syncPhase = iota
	phaseRefreshingToken
	phaseDone
	phaseFailed
)

// Refresh runs one full sync cycle: zones first, then every device's
// detail and profile records concurrently. On an auth failure the token is
// refreshed and the whole cycle retried once. The snapshot is replaced
// only when every fetch succeeded.
func (c *Coordinator) Refresh(ctx context.Context) error {
	if !c.inFlight.CompareAndSwap(false, true) {
		return ErrSyncInProgress
	}
	defer c.inFlight.Store(false)

	var (
		snap      Snapshot
		err       error
		authTried bool
	)

	phase := phaseFetching
	for phase != phaseDone && phase != phaseFailed {
		switch phase {
		case phaseFetching:
			snap, err = c.fetchAll(ctx)
			switch {
			case err == nil:
				phase = phaseDone
			case kumo.IsAuthError(err) && !authTried:
				phase = phaseRefreshingToken
			default:
				phase = phaseFailed
			}
		case phaseRefreshingToken:
			authTried = true
			c.log.Info("auth failure during sync, refreshing token")
			if refreshErr := c.cloud.RefreshToken(ctx); refreshErr != nil {
				err = refreshErr
				phase = phaseFailed
			} else {
				phase = phaseFetching
			}
		}
	}

	if phase == phaseFailed {
		c.recordFailure(err)
		return err
	}

	c.install(snap)
	if authTried {
		syncCycles.WithLabelValues("auth_retry_success").Inc()
	} else {
		syncCycles.WithLabelValues("success").Inc()
	}
	return nil
}

func (c *Coordinator) fetchAll(ctx context.Context) (Snapshot, error) {
	zones, err := c.cloud.Zones(ctx, c.siteID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("fetch zones: %w", err)
	}

	snap := Snapshot{
		Zones:    zones,
		Devices:  make(map[string]kumo.DeviceDetail),
		Profiles: make(map[string][]kumo.DeviceProfile),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)
	var mu sync.Mutex

	for _, zone := range zones {
		if zone.Adapter == nil || zone.Adapter.DeviceSerial == "" {
			continue
		}
		serial := zone.Adapter.DeviceSerial

		g.Go(func() error {
			detail, err := c.cloud.DeviceDetails(gctx, serial)
			if err != nil {
				return fmt.Errorf("device %s: %w", serial, err)
			}
			mu.Lock()
			snap.Devices[serial] = detail
			mu.Unlock()
			return nil
		})
		g.Go(func() error {
			profiles, err := c.cloud.DeviceProfiles(gctx, serial)
			if err != nil {
				return fmt.Errorf("profile %s: %w", serial, err)
			}
			mu.Lock()
			snap.Profiles[serial] = profiles
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func (c *Coordinator) install(snap Snapshot) {
	c.mu.Lock()
	c.snap = snap
	c.synced = true
	c.lastSync = time.Now()
	c.lastErr = nil
	c.mu.Unlock()

	lastSyncTimestamp.SetToCurrentTime()
	lastSyncSuccess.Set(1)
	c.log.Debug("sync complete",
		zap.Int("zones", len(snap.Zones)),
		zap.Int("devices", len(snap.Devices)))
	c.notify()
}

func (c *Coordinator) recordFailure(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()

	result := "conn_failed"
	if kumo.IsAuthError(err) {
		result = "auth_failed"
	}
	syncCycles.WithLabelValues(result).Inc()
	lastSyncSuccess.Set(0)
	c.log.Warn("sync failed", zap.Error(err))
	c.notify()
}

// RefreshDevice re-fetches one device and patches it into the snapshot:
// the detail record wholesale, plus the matching zone adapter's live
// fields where the fresh record carries them. Failures are logged and
// swallowed; the next full sync reconciles.
func (c *Coordinator) RefreshDevice(ctx context.Context, serial string) {
	detail, err := c.cloud.DeviceDetails(ctx, serial)
	if err != nil {
		targetedRefresh.WithLabelValues("error").Inc()
		c.log.Warn("targeted refresh failed", zap.String("serial", serial), zap.Error(err))
		return
	}

	c.mu.Lock()
	devices := maps.Clone(c.snap.Devices)
	if devices == nil {
		devices = make(map[string]kumo.DeviceDetail, 1)
	}
	devices[serial] = detail
	c.snap.Devices = devices
	c.snap.Zones = patchZones(c.snap.Zones, serial, detail)
	c.mu.Unlock()

	targetedRefresh.WithLabelValues("success").Inc()
	c.log.Debug("refreshed device", zap.String("serial", serial))
	c.notify()
}

// patchZones returns a copy of zones with the matching adapter's fields
// overwritten by those present in the fresh detail record. Absent fields
// keep their last adapter value.
func patchZones(zones []kumo.Zone, serial string, detail kumo.DeviceDetail) []kumo.Zone {
	out := slices.Clone(zones)
	for i := range out {
		adapter := out[i].Adapter
		if adapter == nil || adapter.DeviceSerial != serial {
			continue
		}
		patched := *adapter
		if detail.RoomTemp != nil {
			patched.RoomTemp = detail.RoomTemp
		}
		if detail.OperationMode != nil {
			patched.OperationMode = detail.OperationMode
		}
		if detail.Power != nil {
			patched.Power = detail.Power
		}
		if detail.FanSpeed != nil {
			patched.FanSpeed = detail.FanSpeed
		}
		if detail.AirDirection != nil {
			patched.AirDirection = detail.AirDirection
		}
		if detail.SpCool != nil {
			patched.SpCool = detail.SpCool
		}
		if detail.SpHeat != nil {
			patched.SpHeat = detail.SpHeat
		}
		if detail.Humidity != nil {
			patched.Humidity = detail.Humidity
		}
		out[i].Adapter = &patched
	}
	return out
}

// Run performs an initial sync and then polls on the configured interval
// until the context ends.
func (c *Coordinator) Run(ctx context.Context) {
	_ = c.Refresh(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Refresh(ctx); errors.Is(err, ErrSyncInProgress) {
				c.log.Debug("previous sync still running, skipping tick")
			}
		}
	}
}

// OnUpdate registers a callback invoked after every completed cycle or
// targeted refresh, failed cycles included (availability may have changed).
func (c *Coordinator) OnUpdate(fn func()) {
	c.listenerMu.Lock()
	defer c.listenerMu.Unlock()
	c.listeners = append(c.listeners, fn)
}

func (c *Coordinator) notify() {
	c.listenerMu.Lock()
	listeners := slices.Clone(c.listeners)
	c.listenerMu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

func (c *Coordinator) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

func (c *Coordinator) Zones() []kumo.Zone {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap.Zones
}

func (c *Coordinator) DeviceData(serial string) (kumo.DeviceDetail, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	detail, ok := c.snap.Devices[serial]
	return detail, ok
}

func (c *Coordinator) ProfileData(serial string) []kumo.DeviceProfile {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap.Profiles[serial]
}

func (c *Coordinator) zone(zoneID string) kumo.Zone {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, z := range c.snap.Zones {
		if z.ID == zoneID {
			return z
		}
	}
	return kumo.Zone{}
}

// Synced reports whether at least one full sync has completed.
func (c *Coordinator) Synced() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.synced
}

// LastSyncSuccess reports whether the most recent cycle succeeded. It is
// true before the first cycle has run.
func (c *Coordinator) LastSyncSuccess() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr == nil
}

func (c *Coordinator) LastSync() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastSync
}

func (c *Coordinator) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}
