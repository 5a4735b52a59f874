package shipping

import (
	"strconv"
	"strings"

	"github.com/vitorrgg/app-freteclick/internal/appdata"
)

// zipInRange reports whether zip falls within r, bounds inclusive. An empty
// destination or a missing range always passes.
func zipInRange(zip string, r *appdata.ZipRange) bool {
	if zip == "" || r == nil {
		return true
	}
	if r.Min != "" && compareZip(zip, string(r.Min)) < 0 {
		return false
	}
	if r.Max != "" && compareZip(zip, string(r.Max)) > 0 {
		return false
	}
	return true
}

// compareZip compares numerically when both sides are integers and falls back
// to lexical order otherwise.
func compareZip(a, b string) int {
	x, errA := strconv.ParseUint(a, 10, 64)
	y, errB := strconv.ParseUint(b, 10, 64)
	if errA == nil && errB == nil {
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a, b)
}

// matchService reports whether a rule or label entry targets the named
// service. The first non-empty selector field decides; an entry with none
// matches every service.
func matchService(sel appdata.ServiceSelector, name string) bool {
	for _, field := range []string{sel.ServiceName, sel.ServiceCode} {
		if field != "" {
			return strings.ToUpper(strings.TrimSpace(field)) == strings.ToUpper(name)
		}
	}
	return true
}
