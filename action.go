// Package xdpstats holds the domain types shared by the XDP loader and
// the statistics reporter: outcome codes, counter records, snapshots,
// the expected stats map shape, attach modes and the error taxonomy.
package xdpstats

import "fmt"

// Action is an XDP verdict. The kernel program uses it as the key into
// the stats map.
type Action uint32

const (
	ActionAborted Action = iota
	ActionDrop
	ActionPass
	ActionTX
	ActionRedirect
)

// ActionMax is the number of outcome codes, and therefore the number
// of entries the stats map must have.
const ActionMax = 5

// Actions returns every outcome code in key order.
func Actions() []Action {
	return []Action{ActionAborted, ActionDrop, ActionPass, ActionTX, ActionRedirect}
}

// String returns the XDP_* label for the action.
func (a Action) String() string {
	switch a {
	case ActionAborted:
		return "XDP_ABORTED"
	case ActionDrop:
		return "XDP_DROP"
	case ActionPass:
		return "XDP_PASS"
	case ActionTX:
		return "XDP_TX"
	case ActionRedirect:
		return "XDP_REDIRECT"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint32(a))
	}
}
