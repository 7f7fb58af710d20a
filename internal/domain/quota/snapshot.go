package quota

// Snapshot is the read model returned by every quota operation.
type Snapshot struct {
	DailyRemaining    int
	BonusRemaining    int
	FeedbackSubmitted map[string]bool
}
