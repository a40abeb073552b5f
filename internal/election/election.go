// Package election implements the cluster's deterministic master-selection
// rule (spec §4.4): the server whose endpoint string compares lexically
// least, among itself and all currently-live peer server entries, is the
// master. It is deliberately a pure function of the membership view — no
// messages, quorum, or voting — so it can be unit tested in isolation from
// any networking.
package election

import "sort"

// Master returns the lexically smallest endpoint among self and peers. It
// is a pure function: given the same membership view, every server that
// calls it reaches the same answer, which is the whole point of the rule
// (spec §8: "the master is a pure function of the membership view").
func Master(self string, peers []string) string {
	master := self
	for _, peer := range peers {
		if peer < master {
			master = peer
		}
	}
	return master
}

// IsMaster reports whether self is the master given the current peer set.
func IsMaster(self string, peers []string) bool {
	return Master(self, peers) == self
}

// SortedView returns self and peers combined and sorted lexically, purely
// as a debugging/observability aid (e.g. to log the membership view a
// master decision was computed from).
func SortedView(self string, peers []string) []string {
	view := make([]string, 0, len(peers)+1)
	view = append(view, self)
	view = append(view, peers...)
	sort.Strings(view)
	return view
}
