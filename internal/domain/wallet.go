package domain

import "time"

// ActivityLevel buckets a wallet by its on-chain transaction count.
type ActivityLevel string

const (
	ActivityLow    ActivityLevel = "LOW"
	ActivityMedium ActivityLevel = "MEDIUM"
	ActivityHigh   ActivityLevel = "HIGH"
)

// Well-known trader labels derived from aggregate position data.
const (
	LabelSmartWhale = "Smart Whale"
	LabelWhale      = "Whale"
	LabelSmartMoney = "Smart Money"
	LabelDegen      = "Degen"
)

// WalletProfile holds aggregate trader statistics keyed by lower-cased
// wallet address. MaxTradeValue is a running maximum and never decreases.
type WalletProfile struct {
	Address       string
	Label         string
	TotalPnl      float64
	WinRate       float64 // fraction of positions with positive percent PnL
	IsWhale       bool
	IsFresh       bool
	TxCount       int64
	MaxTradeValue float64
	ActivityLevel ActivityLevel
	LastUpdated   time.Time
}

// Position is a single aggregate position record from the exchange's data
// API, used to derive trader profile statistics.
type Position struct {
	ConditionID  string
	Outcome      string
	Size         float64
	AvgPrice     float64
	CurrentValue float64
	CashPnl      float64
	PercentPnl   float64
}
