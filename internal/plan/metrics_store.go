package plan

import "sync"

type statsKey struct {
	Scope     string // corridor id or "adhoc"
	PlanDate  string
	Algorithm string
}

var (
	statsMu    sync.Mutex
	statsStore = map[statsKey]SearchStats{}
)

// RecordSearch keeps the latest sequencer statistics per scope/date so
// the admin plan-metrics endpoint can expose search behavior.
func RecordSearch(scope, planDate string, s SearchStats) {
	statsMu.Lock()
	statsStore[statsKey{Scope: scope, PlanDate: planDate, Algorithm: s.Algorithm}] = s
	statsMu.Unlock()
}

// SearchStatsFor returns recorded stats for a scope/date by algorithm.
func SearchStatsFor(scope, planDate string) map[string]SearchStats {
	statsMu.Lock()
	defer statsMu.Unlock()
	out := map[string]SearchStats{}
	for k, v := range statsStore {
		if k.Scope == scope && k.PlanDate == planDate {
			out[k.Algorithm] = v
		}
	}
	return out
}
