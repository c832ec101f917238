package sfu

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HMasataka/logging"
	"github.com/bep/debounce"
	"github.com/samber/lo"
)

const (
	// bweRampUpDuration is the grace period after the first media packet
	// during which the estimate is still warming up and is not applied.
	bweRampUpDuration = 10 * time.Second

	// updateDebounceInterval coalesces bursts of membership changes into a
	// single allocation cycle.
	updateDebounceInterval = 250 * time.Millisecond
)

/*
Coordinatorは1つの宛先participantに束縛された転送コアです。
帯域推定値とUIの意図(selected/pinned/last-N)から各ソースの品質レイヤを決定し、
SourceControllerのtarget/optimalインデックスを通じてパケットフィルタを駆動します。
データプレーンはRoutingTable経由でパケットを受理・書き換えし、割り当てサイクルは
外部トリガで非同期に実行されます。
*/
type Coordinator struct {
	destinationID string
	conference    ConferenceContext
	estimator     BandwidthEstimator
	transport     Transport
	factory       ControllerFactory
	cfg           AllocationConfig

	routing *RoutingTable
	filter  *AdmissionFilter

	mu           sync.Mutex
	lastBWE      int64
	headroom     uint64
	forwardedIDs map[string]struct{}

	firstMediaMS atomic.Int64
	active       atomic.Pointer[[]SourceController]

	dispatcher *changeDispatcher
	qualityLog *QualityLog

	trigger func(f func())
	now     func() time.Time
}

type CoordinatorParams struct {
	DestinationID string
	Conference    ConferenceContext
	Estimator     BandwidthEstimator
	Transport     Transport
	Notifier      ChangeNotifier
	Factory       ControllerFactory
	Config        AllocationConfig
}

func NewCoordinator(params CoordinatorParams) *Coordinator {
	routing := NewRoutingTable()

	c := &Coordinator{
		destinationID: params.DestinationID,
		conference:    params.Conference,
		estimator:     params.Estimator,
		transport:     params.Transport,
		factory:       params.Factory,
		cfg:           params.Config,
		routing:       routing,
		filter:        NewAdmissionFilter(routing),
		lastBWE:       -1,
		forwardedIDs:  make(map[string]struct{}),
		dispatcher:    newChangeDispatcher(params.Notifier),
		qualityLog:    NewQualityLog(defaultQualityLogLimit),
		trigger:       debounce.New(updateDebounceInterval),
		now:           time.Now,
	}

	c.firstMediaMS.Store(-1)
	empty := make([]SourceController, 0)
	c.active.Store(&empty)

	return c
}

func (c *Coordinator) DestinationID() string {
	return c.destinationID
}

// Filter returns the packet-admission filter backed by the routing table.
func (c *Coordinator) Filter() *AdmissionFilter {
	return c.filter
}

func (c *Coordinator) Routing() *RoutingTable {
	return c.routing
}

func (c *Coordinator) QualityLog() *QualityLog {
	return c.qualityLog
}

// ActiveControllers returns the controller list published by the latest
// cycle, for the pacer and prober to consume.
func (c *Coordinator) ActiveControllers() []SourceController {
	return *c.active.Load()
}

// Headroom is the bandwidth left unallocated by the latest cycle.
func (c *Coordinator) Headroom() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.headroom
}

// LastBandwidthEstimate is the estimate the coordinator last reacted to,
// -1 before the first one.
func (c *Coordinator) LastBandwidthEstimate() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.lastBWE
}

// FirstMediaMS is the wall clock of the first transformed media packet in
// unix milliseconds, -1 until media has flowed.
func (c *Coordinator) FirstMediaMS() int64 {
	return c.firstMediaMS.Load()
}

// markFirstMedia records the first-media timestamp once.
func (c *Coordinator) markFirstMedia() {
	c.firstMediaMS.CompareAndSwap(-1, c.now().UnixMilli())
}

// EndpointsChanged schedules an allocation cycle after a membership or UI
// intent change. Bursts are coalesced.
func (c *Coordinator) EndpointsChanged() {
	c.trigger(func() {
		c.Update(context.Background(), nil, -1)
	})
}

// Update runs one allocation cycle.
//
// A non-negative bweBps is gated on the relative-change threshold first; a
// negative one means "no new estimate" and never gates. When endpoints is
// nil the conference is asked for the current dominant-speaker order,
// otherwise a defensive copy is taken because prioritization consumes its
// input.
func (c *Coordinator) Update(ctx context.Context, endpoints []Endpoint, bweBps int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if bweBps >= 0 {
		threshold := c.lastBWE * int64(c.cfg.BWEChangeThresholdPct) / 100

		diff := c.lastBWE - bweBps
		if diff < 0 {
			diff = -diff
		}

		if diff < threshold {
			return
		}

		c.lastBWE = bweBps
	}

	if endpoints == nil {
		endpoints = c.conference.EndpointsByDominantSpeaker()
	} else {
		endpoints = slices.Clone(endpoints)
	}

	conferenceIDs := lo.Map(endpoints, func(ep Endpoint, _ int) string {
		return ep.ID()
	})

	bandwidth := c.effectiveBandwidth(bweBps)

	allocations := prioritize(endpoints, c.destinationID, c.cfg)
	if len(allocations) == 0 {
		c.suspendAll()
		return
	}

	c.headroom = allocate(bandwidth, allocations)

	nowMS := c.now().UnixMilli()
	active := make([]SourceController, 0, len(allocations))
	newForwarded := make(map[string]struct{}, len(allocations))
	var entering []string

	for _, a := range allocations {
		if a.track == nil || len(a.track.encodings) == 0 {
			continue
		}

		ctrl := c.routing.GetOrInsert(a.track, func() SourceController {
			if c.factory == nil {
				return nil
			}

			return c.factory(c, a.track)
		})
		if ctrl == nil {
			continue
		}

		targetIdx, targetBPS := a.targetLayer()
		optimalIdx, optimalBPS := a.optimalLayer()

		ctrl.SetTargetIndex(targetIdx)
		ctrl.SetOptimalIndex(optimalIdx)

		active = append(active, ctrl)

		if targetIdx > -1 {
			if _, ok := newForwarded[a.endpointID]; !ok {
				newForwarded[a.endpointID] = struct{}{}

				if _, was := c.forwardedIDs[a.endpointID]; !was {
					entering = append(entering, a.endpointID)
				}
			}
		}

		c.recordQuality(nowMS, ctrl, a, targetIdx, targetBPS, optimalIdx, optimalBPS)
	}

	c.active.Store(&active)

	if !maps.Equal(newForwarded, c.forwardedIDs) {
		forwarded := lo.Keys(newForwarded)
		slices.Sort(forwarded)

		c.dispatcher.dispatch(forwarded, entering, conferenceIDs)
	}

	c.forwardedIDs = newForwarded

	if logging.HasLoggingContext(ctx) {
		slog.InfoContext(ctx, "allocation cycle finished",
			slog.String("destination", c.destinationID),
			slog.Int("sources", len(allocations)),
			slog.Int("forwarded", len(newForwarded)),
			slog.Uint64("headroom", c.headroom),
		)
	}
}

// effectiveBandwidth resolves the cap for one cycle. The estimate applies
// only when it exists, is trusted, the ramp-up grace has elapsed and the
// transport can recover losses; otherwise the cap is unbounded.
func (c *Coordinator) effectiveBandwidth(bweBps int64) uint64 {
	var available bool
	if c.estimator != nil {
		var estimate uint64
		estimate, available = c.estimator.LatestEstimate()

		if bweBps < 0 && available {
			bweBps = int64(estimate)
		}
	}

	if !available || !c.cfg.TrustBWE || bweBps < 0 {
		return unboundedBandwidth
	}

	firstMedia := c.firstMediaMS.Load()
	if firstMedia == -1 || c.now().UnixMilli()-firstMedia < bweRampUpDuration.Milliseconds() {
		return unboundedBandwidth
	}

	if c.transport == nil || !c.transport.SupportsRetransmission() {
		return unboundedBandwidth
	}

	return uint64(bweBps)
}

// suspendAll drives every known controller to idle. Runs when the
// destination has expired or the conference is empty.
func (c *Coordinator) suspendAll() {
	for _, ctrl := range c.routing.Controllers() {
		ctrl.SetTargetIndex(-1)
		ctrl.SetOptimalIndex(-1)
	}

	empty := make([]SourceController, 0)
	c.active.Store(&empty)
}

func (c *Coordinator) recordQuality(nowMS int64, ctrl SourceController, a *SourceAllocation, targetIdx int, targetBPS uint64, optimalIdx int, optimalBPS uint64) {
	record := QualityRecord{
		TimestampMS:  nowMS,
		StreamHash:   hashID(c.destinationID),
		SourceHash:   hashID(a.track.ID()),
		CurrentIndex: ctrl.CurrentIndex(),
		TargetIndex:  targetIdx,
		OptimalIndex: optimalIdx,
		TargetBPS:    targetBPS,
		OptimalBPS:   optimalBPS,
	}

	slog.Debug(record.String())

	if c.cfg.EnableQualityLog {
		c.qualityLog.Append(record)
	}
}

// closeControllers tears down every known controller. A close failure never
// blocks the teardown of the rest.
func (c *Coordinator) closeControllers() {
	for _, ctrl := range c.routing.Controllers() {
		if err := ctrl.Close(); err != nil {
			slog.Warn("source controller close error", slog.String("error", err.Error()))
		}
	}
}

// Close drains pending change events and tears down the controllers.
func (c *Coordinator) Close() error {
	c.dispatcher.close()
	c.closeControllers()

	return nil
}
