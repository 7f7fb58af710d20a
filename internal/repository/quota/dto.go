package quota

import (
	"encoding/json"
	"time"

	domquota "github.com/kailas-cloud/quotad/internal/domain/quota"
)

// recordRow is the JSON-serializable representation of a quota record.
// Field names match the document shape already present in storage.
type recordRow struct {
	DailyUsed  int             `json:"dailyQuota"`
	LastAccess int64           `json:"lastAccess"` // unix millis
	BonusUnits int             `json:"bonusQuota"`
	Feedback   map[string]bool `json:"feedbackSubmitted"`
}

// recordToJSON converts a domain Record to its stored form.
func recordToJSON(rec domquota.Record) ([]byte, error) {
	row := recordRow{
		DailyUsed:  rec.DailyUsed(),
		LastAccess: rec.LastAccess().UnixMilli(),
		BonusUnits: rec.BonusUnits(),
		Feedback:   rec.FeedbackSubmitted(),
	}
	return json.Marshal(row)
}

// recordFromJSON hydrates a domain Record from stored bytes. A document that
// does not parse, or that is missing required fields, counts as absent: the
// service must stay available for garbled records, so ok=false tells the
// caller to synthesize a zeroed record instead of failing.
func recordFromJSON(data []byte) (domquota.Record, bool) {
	var row recordRow
	if err := json.Unmarshal(data, &row); err != nil {
		return domquota.Record{}, false
	}
	if row.LastAccess <= 0 || row.DailyUsed < 0 || row.BonusUnits < 0 {
		return domquota.Record{}, false
	}
	rec := domquota.Reconstruct(
		row.DailyUsed,
		time.UnixMilli(row.LastAccess),
		row.BonusUnits,
		row.Feedback,
	)
	return rec, true
}
