package polymarket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whalewatch/engine/internal/domain"
)

func TestFlexFloatAcceptsNumberAndString(t *testing.T) {
	var v struct {
		A FlexFloat `json:"a"`
		B FlexFloat `json:"b"`
		C FlexFloat `json:"c"`
	}
	err := json.Unmarshal([]byte(`{"a": 0.42, "b": "123.5", "c": ""}`), &v)
	require.NoError(t, err)
	assert.InDelta(t, 0.42, float64(v.A), 1e-9)
	assert.InDelta(t, 123.5, float64(v.B), 1e-9)
	assert.Zero(t, float64(v.C))
}

func TestFlexTimeSecondsAndMillis(t *testing.T) {
	var v struct {
		Sec    FlexTime `json:"sec"`
		Millis FlexTime `json:"millis"`
		Absent FlexTime `json:"absent"`
	}
	err := json.Unmarshal([]byte(`{"sec": 1700000000, "millis": "1700000000123", "absent": 0}`), &v)
	require.NoError(t, err)
	assert.Equal(t, time.Unix(1700000000, 0), v.Sec.Time)
	assert.Equal(t, time.UnixMilli(1700000000123), v.Millis.Time)
	assert.True(t, v.Absent.IsZero())
}

func TestStringListAcceptsEncodedForm(t *testing.T) {
	var m APIMarket
	raw := `{
		"conditionId": "0xabc",
		"question": "Will it rain?",
		"outcomes": "[\"Yes\", \"No\"]",
		"clobTokenIds": ["t1", "t2"],
		"events": [{"title": "Weather"}]
	}`
	require.NoError(t, json.Unmarshal([]byte(raw), &m))

	d := m.ToDescriptor()
	assert.Equal(t, "0xabc", d.ConditionID)
	assert.Equal(t, []string{"Yes", "No"}, []string(d.Outcomes))
	assert.Equal(t, []string{"t1", "t2"}, []string(d.AssetIDs))
	assert.Equal(t, "Weather", d.EventTitle)
}

func TestUnwrapData(t *testing.T) {
	bare := []byte(`[{"x":1}]`)
	assert.Equal(t, bare, unwrapData(bare))

	wrapped := []byte(`{"data": [{"x":1}]}`)
	assert.JSONEq(t, `[{"x":1}]`, string(unwrapData(wrapped)))
}

func TestWSTradeMessageToRawTrade(t *testing.T) {
	raw := `{
		"event_type": "trade",
		"asset_id": "a1",
		"price": "0.62",
		"size": "15000",
		"side": "BUY",
		"transaction_hash": "0xDEAD",
		"timestamp": 1700000000,
		"taker": "0xTaker"
	}`
	var msg WSTradeMessage
	require.NoError(t, json.Unmarshal([]byte(raw), &msg))

	trade := msg.ToRawTrade()
	assert.Equal(t, domain.SideBuy, trade.Side)
	assert.InDelta(t, 9300, trade.Value(), 1e-6)
	assert.Equal(t, time.Unix(1700000000, 0), trade.Timestamp)
	assert.Equal(t, "0xTaker", trade.Taker)
}

func TestWSTradeMessageDefaults(t *testing.T) {
	var msg WSTradeMessage
	require.NoError(t, json.Unmarshal([]byte(`{"asset_id":"a1","price":0.5,"size":10,"type":"buy","wallet":"0xW"}`), &msg))

	trade := msg.ToRawTrade()
	assert.Equal(t, domain.SideBuy, trade.Side, "side falls back to the type field")
	assert.Equal(t, "0xW", trade.Maker, "maker falls back to the wallet field")
	assert.False(t, trade.Timestamp.IsZero(), "missing timestamp defaults to now")
}

func TestCheckHTTPStatusRateLimited(t *testing.T) {
	err := checkHTTPStatus(429, []byte("slow down"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRateLimited)

	assert.NoError(t, checkHTTPStatus(200, nil))
}
