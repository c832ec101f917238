package sfu

import "sync"

/*
RoutingTableはSSRCからSourceControllerを引くためのデータプレーン用テーブルです。
読み取りはロックフリーで、書き込みはトラック単位のSSRC群をまとめて登録するため
専用ロックで直列化されます。エントリは一度登録されると削除されません。
*/
type RoutingTable struct {
	controllers sync.Map // uint32 -> SourceController

	writeMu sync.Mutex
}

func NewRoutingTable() *RoutingTable {
	return &RoutingTable{}
}

// Lookup resolves an SSRC to its controller. Safe for concurrent use from
// the data plane.
func (t *RoutingTable) Lookup(ssrc uint32) (SourceController, bool) {
	value, ok := t.controllers.Load(ssrc)
	if !ok {
		return nil, false
	}

	return value.(SourceController), true
}

// GetOrInsert returns the controller owning the track's base SSRC, creating
// it with create and registering every primary and retransmission SSRC of
// the track when absent. Insertion is idempotent.
func (t *RoutingTable) GetOrInsert(track *VideoTrack, create func() SourceController) SourceController {
	if track == nil || len(track.encodings) == 0 {
		return nil
	}

	key := uint32(track.encodings[0].SSRC)

	if ctrl, ok := t.Lookup(key); ok {
		return ctrl
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if ctrl, ok := t.Lookup(key); ok {
		return ctrl
	}

	ctrl := create()
	if ctrl == nil {
		return nil
	}

	for _, ssrc := range track.SSRCs() {
		t.controllers.LoadOrStore(ssrc, ctrl)
	}

	return ctrl
}

// Controllers returns every distinct controller registered in the table.
func (t *RoutingTable) Controllers() []SourceController {
	seen := make(map[SourceController]struct{})
	var controllers []SourceController

	t.controllers.Range(func(_, value any) bool {
		ctrl := value.(SourceController)
		if _, ok := seen[ctrl]; !ok {
			seen[ctrl] = struct{}{}
			controllers = append(controllers, ctrl)
		}

		return true
	})

	return controllers
}

// AdmissionFilter decides per packet whether a data packet may enter the
// forwarding path. Sources without a routing entry are dropped.
type AdmissionFilter struct {
	routing *RoutingTable
}

func NewAdmissionFilter(routing *RoutingTable) *AdmissionFilter {
	return &AdmissionFilter{routing: routing}
}

// Accept parses the packet's SSRC and delegates to the owning controller's
// own filter. Unknown sources and malformed packets are rejected.
func (f *AdmissionFilter) Accept(packet []byte) bool {
	ssrc, err := packetSSRC(packet)
	if err != nil {
		return false
	}

	ctrl, ok := f.routing.Lookup(ssrc)
	if !ok {
		return false
	}

	return ctrl.Accept(packet)
}
