package sfu

// SourceAllocation is the allocator's working record for one video source of
// one endpoint: the ranked candidate rates and the index chosen so far.
type SourceAllocation struct {
	endpointID     string
	fitsInLastN    bool
	selected       bool
	targetSSRC     int64
	maxFrameHeight int
	track          *VideoTrack

	rates        []RateSnapshot
	preferredIdx int
	ratesIdx     int
}

// newSourceAllocation builds the candidate rate list for one track.
//
// 選択中(on-stage)のソースは preferred height 未満の全レイヤに加えて、
// それ以上の高さではフルフレームレートのレイヤのみを候補にします。
// サムネイルは thumbnail height 以下のレイヤのみを候補にします。
func newSourceAllocation(ep Endpoint, track *VideoTrack, selected, fitsInLastN bool, cfg AllocationConfig) *SourceAllocation {
	a := &SourceAllocation{
		endpointID:     ep.ID(),
		fitsInLastN:    fitsInLastN,
		selected:       selected,
		targetSSRC:     -1,
		maxFrameHeight: ep.MaxFrameHeight(),
		track:          track,
		ratesIdx:       -1,
	}

	if !fitsInLastN || track == nil || len(track.encodings) == 0 {
		return a
	}

	a.targetSSRC = track.PrimarySSRC()

	for i := range track.encodings {
		enc := &track.encodings[i]

		if enc.Height > a.maxFrameHeight {
			continue
		}

		if selected {
			if enc.Height < cfg.OnstagePreferredHeight || enc.FrameRate >= cfg.OnstagePreferredFrameRate {
				a.rates = append(a.rates, RateSnapshot{BPS: enc.Bitrate, Encoding: enc})

				if enc.Height <= cfg.OnstagePreferredHeight {
					a.preferredIdx = len(a.rates) - 1
				}
			}
		} else if enc.Height <= cfg.ThumbnailMaxHeight {
			a.rates = append(a.rates, RateSnapshot{BPS: enc.Bitrate, Encoding: enc})
		}
	}

	return a
}

// improve advances the chosen rate index, given the bandwidth still
// unclaimed plus this source's own current rate. The index moves by at most
// one step, except for the boost of a selected source described below.
//
// A selected source that is not yet forwarded jumps straight to the highest
// affordable index at or below its preferred index. Note the comparison
// asymmetry with the incremental step below: the jump admits a rate exactly
// equal to the budget, the incremental step does not.
func (a *SourceAllocation) improve(remaining uint64) {
	if len(a.rates) == 0 {
		return
	}

	if a.ratesIdx == -1 && a.selected {
		for i := 1; i < len(a.rates); i++ {
			if i > a.preferredIdx || a.rates[i].BPS > remaining {
				break
			}
			a.ratesIdx = i
		}

		return
	}

	if next := a.ratesIdx + 1; next < len(a.rates) && a.rates[next].BPS < remaining {
		a.ratesIdx = next
	}
}

// currentBitrate is the rate of the chosen index, zero when not forwarding.
func (a *SourceAllocation) currentBitrate() uint64 {
	if a.ratesIdx == -1 {
		return 0
	}

	return a.rates[a.ratesIdx].BPS
}

// targetLayer returns the encoding index and rate chosen by the allocator,
// (-1, 0) when the source is not forwarded.
func (a *SourceAllocation) targetLayer() (int, uint64) {
	if a.ratesIdx == -1 {
		return -1, 0
	}

	snapshot := a.rates[a.ratesIdx]

	return snapshot.Encoding.Index, snapshot.BPS
}

// optimalLayer returns the highest candidate encoding index and rate,
// (-1, 0) when there are no candidates.
func (a *SourceAllocation) optimalLayer() (int, uint64) {
	if len(a.rates) == 0 {
		return -1, 0
	}

	snapshot := a.rates[len(a.rates)-1]

	return snapshot.Encoding.Index, snapshot.BPS
}

func (a *SourceAllocation) EndpointID() string {
	return a.endpointID
}

func (a *SourceAllocation) FitsInLastN() bool {
	return a.fitsInLastN
}

func (a *SourceAllocation) Selected() bool {
	return a.selected
}

func (a *SourceAllocation) TargetSSRC() int64 {
	return a.targetSSRC
}

func (a *SourceAllocation) Track() *VideoTrack {
	return a.track
}

func (a *SourceAllocation) Rates() []RateSnapshot {
	return a.rates
}

func (a *SourceAllocation) PreferredIndex() int {
	return a.preferredIdx
}

func (a *SourceAllocation) RatesIndex() int {
	return a.ratesIdx
}
