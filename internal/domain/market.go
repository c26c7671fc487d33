package domain

// MarketDescriptor describes one prediction market (condition) and its
// tradable outcome tokens. Descriptors are immutable within a refresh
// generation; the metadata index replaces them wholesale on each refresh.
type MarketDescriptor struct {
	ConditionID string
	EventTitle  string
	Question    string
	Outcomes    []string // parallel to AssetIDs
	AssetIDs    []string
	Image       string
}

// AssetOutcome maps one tradable asset ID back to its outcome label and
// owning market.
type AssetOutcome struct {
	OutcomeLabel string
	ConditionID  string
}
