package exchange

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sosbx/planidocs-exchange/pkg/models"
)

// IndexedAssignment is one index entry pointing back at a held shift.
type IndexedAssignment struct {
	Key             string // key of the assignment in the source planning map
	Assignment      models.ShiftAssignment
	RawPeriod       string
	CanonicalPeriod models.Period
}

// AssignmentIndex maps (date, period) to the shifts a user holds at that slot.
//
// Two maps are built in one pass: one keyed by the canonical period and one
// keyed by the raw period label when the two spellings differ. Legacy
// plannings stored non-canonical labels; querying both sides avoids silent
// match failures without rescanning the whole index.
type AssignmentIndex struct {
	canonical map[string][]IndexedAssignment
	raw       map[string][]IndexedAssignment
	entries   []IndexedAssignment // insertion order, for fallback scans and tie-breaks
}

func slotKey(date string, period string) string {
	return date + "|" + period
}

// BuildIndex indexes a user's planning for slot lookups. Assignment keys are
// visited in sorted order so entry order, and therefore matcher tie-breaking,
// is deterministic across calls.
func BuildIndex(assignments map[string]models.ShiftAssignment) *AssignmentIndex {
	idx := &AssignmentIndex{
		canonical: make(map[string][]IndexedAssignment, len(assignments)),
		raw:       make(map[string][]IndexedAssignment),
		entries:   make([]IndexedAssignment, 0, len(assignments)),
	}

	keys := make([]string, 0, len(assignments))
	for k := range assignments {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		a := assignments[k]
		date, err := NormalizeDate(a.Date)
		if err != nil {
			// Unparseable planning rows cannot be slotted; skip them.
			continue
		}
		entry := IndexedAssignment{
			Key:             k,
			Assignment:      a,
			RawPeriod:       a.Period,
			CanonicalPeriod: NormalizePeriod(a.Period),
		}
		idx.entries = append(idx.entries, entry)

		ck := slotKey(date, string(entry.CanonicalPeriod))
		idx.canonical[ck] = append(idx.canonical[ck], entry)

		rawFolded := foldPeriod(a.Period)
		if rawFolded != string(entry.CanonicalPeriod) {
			rk := slotKey(date, rawFolded)
			idx.raw[rk] = append(idx.raw[rk], entry)
		}
	}
	return idx
}

// Lookup returns the candidates held at (date, period), querying the
// canonical index with the normalized period and the raw index with the
// literal label. Multiple hits legitimately occur when the two indices
// overlap; callers dedupe by assignment key.
func (idx *AssignmentIndex) Lookup(date, period string) []IndexedAssignment {
	normDate, err := NormalizeDate(date)
	if err != nil {
		return nil
	}
	var out []IndexedAssignment
	out = append(out, idx.canonical[slotKey(normDate, string(NormalizePeriod(period)))]...)
	out = append(out, idx.raw[slotKey(normDate, foldPeriod(period))]...)
	return out
}

// All returns every indexed assignment in insertion order.
func (idx *AssignmentIndex) All() []IndexedAssignment {
	return idx.entries
}

// Len returns the number of indexed assignments.
func (idx *AssignmentIndex) Len() int {
	return len(idx.entries)
}

// dateLayouts are the formats accepted for planning and listing dates.
var dateLayouts = []string{"2006-01-02", "02/01/2006", "2006/01/02"}

// NormalizeDate canonicalizes a calendar day to YYYY-MM-DD. RFC3339
// timestamps are accepted by truncating to their date part.
func NormalizeDate(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", NewValidationError("empty date", raw, "")
	}
	if len(s) > 10 && (s[10] == 'T' || s[10] == ' ') {
		s = s[:10]
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	return "", NewValidationError(fmt.Sprintf("unparseable date %q", raw), raw, "")
}
