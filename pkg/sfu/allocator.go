package sfu

import (
	"math"

	"github.com/samber/lo"
)

// unboundedBandwidth is the cap used when the estimate is absent or not
// trusted: forward everything the policy allows.
const unboundedBandwidth uint64 = math.MaxUint64

type rankedEndpoint struct {
	endpoint    Endpoint
	selected    bool
	fitsInLastN bool
}

// prioritize orders the conference into three bands for the destination:
// selected endpoints first, then pinned endpoints, then the rest, each band
// in dominant-speaker order. One SourceAllocation is produced per video
// track of each ranked endpoint.
//
// 引数のendpointsはバンド1/2で消費されるため破壊されます。呼び出し側は
// 必ずコピーを渡してください。
//
// A nil result signals that the destination is missing or expired and the
// cycle must be aborted.
func prioritize(endpoints []Endpoint, destinationID string, cfg AllocationConfig) []*SourceAllocation {
	var destination Endpoint

	for _, ep := range endpoints {
		if ep.ID() == destinationID {
			destination = ep
			break
		}
	}

	if destination == nil || destination.IsExpired() {
		return nil
	}

	adjustedLastN := destination.LastN()
	if adjustedLastN < 0 {
		adjustedLastN = len(endpoints) - 1
	} else {
		adjustedLastN = min(adjustedLastN, len(endpoints)-1)
	}

	selectedIDs := destination.SelectedEndpointIDs()
	pinnedIDs := destination.PinnedEndpointIDs()

	ranked := make([]rankedEndpoint, 0, len(endpoints))

	// band 1: on-stage endpoints, consumed from the working list
	for i := 0; i < len(endpoints) && len(ranked) < adjustedLastN; {
		ep := endpoints[i]
		if ep.ID() == destinationID || ep.IsExpired() || !lo.Contains(selectedIDs, ep.ID()) {
			i++
			continue
		}

		ranked = append(ranked, rankedEndpoint{endpoint: ep, selected: true, fitsInLastN: true})
		endpoints = append(endpoints[:i], endpoints[i+1:]...)
	}

	// band 2: pinned endpoints not already ranked as selected
	for i := 0; i < len(endpoints) && len(ranked) < adjustedLastN; {
		ep := endpoints[i]
		if ep.ID() == destinationID || ep.IsExpired() || !lo.Contains(pinnedIDs, ep.ID()) {
			i++
			continue
		}

		ranked = append(ranked, rankedEndpoint{endpoint: ep, fitsInLastN: true})
		endpoints = append(endpoints[:i], endpoints[i+1:]...)
	}

	// band 3: everyone else, fitting only while slots remain
	for _, ep := range endpoints {
		if ep.ID() == destinationID || ep.IsExpired() {
			continue
		}

		ranked = append(ranked, rankedEndpoint{endpoint: ep, fitsInLastN: len(ranked) < adjustedLastN})
	}

	allocations := make([]*SourceAllocation, 0, len(ranked))
	for _, r := range ranked {
		for _, track := range r.endpoint.VideoTracks() {
			allocations = append(allocations, newSourceAllocation(r.endpoint, track, r.selected, r.fitsInLastN, cfg))
		}
	}

	return allocations
}

// allocate distributes the bandwidth cap over the prioritized allocations.
//
// Each pass lends every source its own current rate back before asking it to
// improve, so an earlier source can climb using bandwidth a later source has
// not claimed yet. A pass stops early at the first source stuck below its
// preferred index, and the loop ends at a fixed point of the remaining cap.
// If a pass ever forwards fewer sources than the one before it, the previous
// state is restored and the loop ends: a stable participant set is worth
// more than a marginally better bitrate.
//
// The return value is the unallocated headroom.
func allocate(bandwidth uint64, allocations []*SourceAllocation) uint64 {
	oldState := make([]int, len(allocations))
	newState := make([]int, len(allocations))
	for i, a := range allocations {
		newState[i] = a.ratesIdx
	}

	for {
		oldBandwidth := bandwidth
		copy(oldState, newState)

		for i, a := range allocations {
			if !a.fitsInLastN {
				break
			}

			remaining := saturateAdd(bandwidth, a.currentBitrate())
			a.improve(remaining)
			bandwidth = remaining - a.currentBitrate()

			newState[i] = a.ratesIdx

			if a.ratesIdx < a.preferredIdx {
				break
			}
		}

		if forwardedCount(oldState) > forwardedCount(newState) {
			restoreState(allocations, oldState)
			break
		}

		if oldBandwidth == bandwidth {
			break
		}
	}

	return bandwidth
}

func forwardedCount(state []int) int {
	count := 0
	for _, idx := range state {
		if idx > -1 {
			count++
		}
	}

	return count
}

func restoreState(allocations []*SourceAllocation, state []int) {
	for i, a := range allocations {
		a.ratesIdx = state[i]
	}
}

func saturateAdd(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}

	return a + b
}
