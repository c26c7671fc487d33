package onchain

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addrTopic(hexAddr string) common.Hash {
	return common.BytesToHash(common.LeftPadBytes(common.HexToAddress(hexAddr).Bytes(), 32))
}

func packedData(t *testing.T, values ...*big.Int) []byte {
	t.Helper()
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	data, err := orderFilledData.Pack(args...)
	require.NoError(t, err)
	return data
}

func TestDecodeOrderFilledStructured(t *testing.T) {
	log := &ethtypes.Log{
		Topics: []common.Hash{
			orderFilledSig,
			common.HexToHash("0x01"), // orderHash
			addrTopic("0xAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAa"),
			addrTopic("0xBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBb"),
		},
		Data: packedData(t,
			big.NewInt(1), big.NewInt(2),
			big.NewInt(5000000), big.NewInt(3100000), big.NewInt(0),
		),
		BlockNumber: 52000001,
		Index:       7,
	}

	fill, ok := decodeOrderFilled(log)
	require.True(t, ok)
	assert.Equal(t, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", fill.Maker)
	assert.Equal(t, "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", fill.Taker)
	assert.Equal(t, int64(52000001), fill.BlockNumber)
	assert.Equal(t, int64(7), fill.LogIndex)
	assert.Equal(t, int64(5000000), fill.MakerAmountFilled.Int64())
}

func TestDecodeOrderFilledTopicSliceFallback(t *testing.T) {
	// Damaged topic list: the orderHash topic is missing but the two
	// address topics survive at the tail.
	log := &ethtypes.Log{
		Topics: []common.Hash{
			orderFilledSig,
			addrTopic("0xAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAa"),
			addrTopic("0xBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBb"),
		},
	}

	fill, ok := decodeOrderFilled(log)
	require.True(t, ok)
	assert.Equal(t, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", fill.Maker)
	assert.Equal(t, "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", fill.Taker)
}

func TestDecodeOrderFilledRejectsOtherEvents(t *testing.T) {
	log := &ethtypes.Log{
		Topics: []common.Hash{common.HexToHash("0xdead")},
	}
	_, ok := decodeOrderFilled(log)
	assert.False(t, ok)

	// Right signature but no address topics at all.
	_, ok = decodeOrderFilled(&ethtypes.Log{Topics: []common.Hash{orderFilledSig}})
	assert.False(t, ok)
}
