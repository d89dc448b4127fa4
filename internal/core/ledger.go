package core

import (
	"time"

	"mindscribe.app/journal-assistant/internal/store"
)

const dayFormat = "2006-01-02"

// Ledger tracks per-user inference cost through the usage collection of the
// canonical store. Session counters cover one process lifetime; daily
// counters roll over at the calendar-day boundary, exactly once, on the
// first write or report after the rollover; total counters only grow.
type Ledger struct {
	store *store.FileStore
	now   func() time.Time
}

// NewLedger resets all session counters, since a new process is a new
// session.
func NewLedger(st *store.FileStore) (*Ledger, error) {
	err := st.UpdateAllUsage(func(rec *store.UsageRecord) {
		rec.SessionCount = 0
	})
	if err != nil {
		return nil, err
	}
	return &Ledger{store: st, now: time.Now}, nil
}

// Record adds the call's token cost to the user's session, daily and total
// counters in one store write.
func (l *Ledger) Record(userID string, usage TokenUsage) error {
	total := usage.Total()
	if total == 0 {
		return nil
	}
	today := l.now().Format(dayFormat)
	return l.store.UpdateUsage(userID, func(rec *store.UsageRecord) error {
		if rec.DailyResetDate != today {
			rec.DailyCount = 0
			rec.DailyResetDate = today
		}
		rec.SessionCount += total
		rec.DailyCount += total
		rec.TotalCount += total
		return nil
	})
}

// Report returns the user's counters after applying any pending daily
// rollover, matching what the next Record would see.
func (l *Ledger) Report(userID string) (store.UsageRecord, error) {
	today := l.now().Format(dayFormat)
	var out store.UsageRecord
	err := l.store.UpdateUsage(userID, func(rec *store.UsageRecord) error {
		if rec.DailyResetDate != today {
			rec.DailyCount = 0
			rec.DailyResetDate = today
		}
		out = *rec
		return nil
	})
	return out, err
}
