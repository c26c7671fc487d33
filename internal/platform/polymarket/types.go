package polymarket

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/whalewatch/engine/internal/domain"
)

// FlexFloat unmarshals from a JSON number or a numeric string. Polymarket
// APIs are inconsistent about which they send.
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("parse float %q: %w", s, err)
	}
	*f = FlexFloat(n)
	return nil
}

// FlexTime unmarshals a timestamp sent as unix seconds or milliseconds, as
// number or string. Zero means the field was absent.
type FlexTime struct {
	time.Time
}

func (t *FlexTime) UnmarshalJSON(data []byte) error {
	var f FlexFloat
	if err := f.UnmarshalJSON(data); err != nil {
		return err
	}
	if f == 0 {
		t.Time = time.Time{}
		return nil
	}
	// Values this large can only be milliseconds.
	if f > 1e12 {
		t.Time = time.UnixMilli(int64(f))
	} else {
		t.Time = time.Unix(int64(f), 0)
	}
	return nil
}

// FlexTimeOf wraps a time.Time, mostly useful when building fixtures.
func FlexTimeOf(t time.Time) FlexTime {
	return FlexTime{Time: t}
}

// stringList unmarshals either a JSON array of strings or a JSON string
// containing an encoded array, which is how Gamma serializes outcomes and
// token IDs.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	var direct []string
	if err := json.Unmarshal(data, &direct); err == nil {
		*l = direct
		return nil
	}
	var encoded string
	if err := json.Unmarshal(data, &encoded); err != nil {
		return err
	}
	if strings.TrimSpace(encoded) == "" {
		*l = nil
		return nil
	}
	var nested []string
	if err := json.Unmarshal([]byte(encoded), &nested); err != nil {
		return fmt.Errorf("parse encoded list %q: %w", encoded, err)
	}
	*l = nested
	return nil
}

// --------------------------------------------------------------------------
// Gamma API DTOs
// --------------------------------------------------------------------------

// APIMarket represents one market entry from the Gamma bulk listing.
type APIMarket struct {
	ConditionID  string     `json:"conditionId"`
	Question     string     `json:"question"`
	Outcomes     stringList `json:"outcomes"`
	ClobTokenIDs stringList `json:"clobTokenIds"`
	Image        string     `json:"image"`
	Events       []struct {
		Title string `json:"title"`
	} `json:"events"`
}

// ToDescriptor converts a Gamma market entry to the domain descriptor.
// Structural validation (outcome/token parallelism) is left to the index.
func (m *APIMarket) ToDescriptor() domain.MarketDescriptor {
	d := domain.MarketDescriptor{
		ConditionID: m.ConditionID,
		Question:    m.Question,
		Outcomes:    m.Outcomes,
		AssetIDs:    m.ClobTokenIDs,
		Image:       m.Image,
	}
	if len(m.Events) > 0 {
		d.EventTitle = m.Events[0].Title
	}
	return d
}

// --------------------------------------------------------------------------
// Data API DTOs
// --------------------------------------------------------------------------

// APITradeRecord is one historical trade from the Data API trade log.
type APITradeRecord struct {
	Price           FlexFloat `json:"price"`
	Size            FlexFloat `json:"size"`
	MatchTime       FlexTime  `json:"match_time"`
	MakerAddress    string    `json:"maker_address"`
	Owner           string    `json:"owner"`
	TransactionHash string    `json:"transaction_hash"`
}

// APIPosition is one aggregate position from the Data API.
type APIPosition struct {
	ConditionID  string    `json:"conditionId"`
	Outcome      string    `json:"outcome"`
	Size         FlexFloat `json:"size"`
	AvgPrice     FlexFloat `json:"avgPrice"`
	CurrentValue FlexFloat `json:"currentValue"`
	CashPnl      FlexFloat `json:"cashPnl"`
	PercentPnl   FlexFloat `json:"percentPnl"`
}

// ToDomain converts an APIPosition to the domain type.
func (p *APIPosition) ToDomain() domain.Position {
	return domain.Position{
		ConditionID:  p.ConditionID,
		Outcome:      p.Outcome,
		Size:         float64(p.Size),
		AvgPrice:     float64(p.AvgPrice),
		CurrentValue: float64(p.CurrentValue),
		CashPnl:      float64(p.CashPnl),
		PercentPnl:   float64(p.PercentPnl),
	}
}

// --------------------------------------------------------------------------
// CLOB API DTOs
// --------------------------------------------------------------------------

// APIBookLevel is one price level in a CLOB order book response.
type APIBookLevel struct {
	Price FlexFloat `json:"price"`
	Size  FlexFloat `json:"size"`
}

// APIBook is the CLOB order book response for one asset.
type APIBook struct {
	Asks []APIBookLevel `json:"asks"`
	Bids []APIBookLevel `json:"bids"`
}

// ToDomain converts an APIBook to the domain order book.
func (b *APIBook) ToDomain(assetID string) domain.OrderBook {
	book := domain.OrderBook{AssetID: assetID}
	for _, lvl := range b.Asks {
		book.Asks = append(book.Asks, domain.PriceLevel{Price: float64(lvl.Price), Size: float64(lvl.Size)})
	}
	for _, lvl := range b.Bids {
		book.Bids = append(book.Bids, domain.PriceLevel{Price: float64(lvl.Price), Size: float64(lvl.Size)})
	}
	return book
}

// --------------------------------------------------------------------------
// WebSocket DTOs
// --------------------------------------------------------------------------

// WSSubscription is the subscription message for the market channel.
type WSSubscription struct {
	Type     string   `json:"type"`
	AssetIDs []string `json:"assets_ids"`
	Channel  string   `json:"channel"`
}

// WSTradeMessage is one inbound trade event from the market channel.
type WSTradeMessage struct {
	EventType       string    `json:"event_type"`
	AssetID         string    `json:"asset_id"`
	Price           FlexFloat `json:"price"`
	Size            FlexFloat `json:"size"`
	Side            string    `json:"side"`
	Type            string    `json:"type"` // "buy" or other
	TransactionHash string    `json:"transaction_hash"`
	Timestamp       FlexTime  `json:"timestamp"`

	// Wallet fields occasionally embedded directly in the message.
	User   string `json:"user"`
	Maker  string `json:"maker"`
	Taker  string `json:"taker"`
	Wallet string `json:"wallet"`
}

// ToRawTrade converts a WS trade message to the domain representation.
// Missing timestamps default to now; the side falls back to the "type"
// field when "side" is absent.
func (m *WSTradeMessage) ToRawTrade() domain.RawTrade {
	side := domain.SideSell
	s := strings.ToLower(m.Side)
	if s == "" {
		s = strings.ToLower(m.Type)
	}
	if s == "buy" {
		side = domain.SideBuy
	}

	ts := m.Timestamp.Time
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	maker := m.Maker
	if maker == "" {
		maker = m.Wallet
	}

	return domain.RawTrade{
		AssetID:         m.AssetID,
		Price:           float64(m.Price),
		Size:            float64(m.Size),
		Side:            side,
		TransactionHash: m.TransactionHash,
		Timestamp:       ts,
		User:            m.User,
		Maker:           maker,
		Taker:           m.Taker,
	}
}

// unwrapData strips an optional {"data": [...]} envelope, returning the
// inner array either way. Gamma and the Data API switch between the two
// shapes depending on endpoint and version.
func unwrapData(body []byte) []byte {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		return body
	}
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Data) > 0 {
		return envelope.Data
	}
	return body
}

// checkHTTPStatus converts a non-2xx response into an error.
func checkHTTPStatus(status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	if status == 429 {
		return fmt.Errorf("HTTP 429: %w", domain.ErrRateLimited)
	}
	msg := string(body)
	if len(msg) > 256 {
		msg = msg[:256]
	}
	return fmt.Errorf("HTTP %d: %s", status, msg)
}
