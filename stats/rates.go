package stats

import "github.com/frobware/go-xdpstats"

// Rates returns the packet rate and bit rate between prev and cur
// over period seconds. A counter that went backwards contributes
// zero. A non-positive period yields zero rates.
func Rates(prev, cur xdpstats.Record, period float64) (pps, bps float64) {
	if period <= 0 {
		return 0, 0
	}
	packets := delta(cur.Packets, prev.Packets)
	bytes := delta(cur.Bytes, prev.Bytes)
	return float64(packets) / period, float64(bytes) * 8 / period
}

func delta(cur, prev uint64) uint64 {
	if cur < prev {
		return 0
	}
	return cur - prev
}
