// Package onchain resolves Polymarket trades against the Polygon chain by
// decoding CTF Exchange OrderFilled logs out of transaction receipts.
package onchain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/whalewatch/engine/internal/domain"
)

// orderFilledSig is the OrderFilled event signature topic emitted by the
// CTF Exchange contract on every fill.
var orderFilledSig = ethcrypto.Keccak256Hash(
	[]byte("OrderFilled(bytes32,address,address,uint256,uint256,uint256,uint256,uint256)"),
)

// orderFilledData describes the event's non-indexed payload: makerAssetId,
// takerAssetId, makerAmountFilled, takerAmountFilled, fee.
var orderFilledData abi.Arguments

func init() {
	uint256Type, err := abi.NewType("uint256", "", nil)
	if err != nil {
		panic(fmt.Sprintf("onchain: build uint256 type: %v", err))
	}
	orderFilledData = abi.Arguments{
		{Name: "makerAssetId", Type: uint256Type},
		{Name: "takerAssetId", Type: uint256Type},
		{Name: "makerAmountFilled", Type: uint256Type},
		{Name: "takerAmountFilled", Type: uint256Type},
		{Name: "fee", Type: uint256Type},
	}
}

// OrderFill is one decoded OrderFilled event.
type OrderFill struct {
	Maker             string
	Taker             string
	MakerAmountFilled *big.Int
	TakerAmountFilled *big.Int
	BlockNumber       int64
	LogIndex          int64
}

// Client wraps a Polygon JSON-RPC connection for trade resolution and
// wallet history lookups.
type Client struct {
	eth *ethclient.Client
}

// Dial connects to a Polygon JSON-RPC endpoint.
func Dial(ctx context.Context, rpcURL string) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("onchain: dial %s: %w", rpcURL, err)
	}
	return &Client{eth: eth}, nil
}

// Close releases the RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}

// ResolveTrade fetches the receipt for a transaction hash and extracts the
// wallet addresses from its OrderFilled logs. When a transaction carries
// multiple fills, the first fill wins; addresses are returned lower-cased.
func (c *Client) ResolveTrade(ctx context.Context, txHash string) (domain.WalletResolution, error) {
	receipt, err := c.eth.TransactionReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		return domain.WalletResolution{}, fmt.Errorf("onchain: receipt %s: %w", txHash, err)
	}

	for _, log := range receipt.Logs {
		fill, ok := decodeOrderFilled(log)
		if !ok {
			continue
		}
		blockNumber, logIndex := fill.BlockNumber, fill.LogIndex
		return domain.WalletResolution{
			Taker:       fill.Taker,
			Maker:       fill.Maker,
			BlockNumber: &blockNumber,
			LogIndex:    &logIndex,
		}, nil
	}

	return domain.WalletResolution{}, fmt.Errorf("onchain: tx %s: %w", txHash, domain.ErrNoMatch)
}

// TransactionCount returns the wallet's outgoing transaction count at the
// latest block, used as a freshness proxy.
func (c *Client) TransactionCount(ctx context.Context, address string) (int64, error) {
	nonce, err := c.eth.NonceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return 0, fmt.Errorf("onchain: nonce for %s: %w", address, err)
	}
	return int64(nonce), nil
}

// decodeOrderFilled extracts addresses from one log. The structured path
// requires the full four-topic layout; logs that carry the right signature
// with a damaged topic list fall back to slicing the address bytes out of
// whatever topics are present.
func decodeOrderFilled(log *ethtypes.Log) (OrderFill, bool) {
	if len(log.Topics) == 0 || log.Topics[0] != orderFilledSig {
		return OrderFill{}, false
	}

	fill := OrderFill{
		BlockNumber: int64(log.BlockNumber),
		LogIndex:    int64(log.Index),
	}

	if len(log.Topics) >= 4 {
		// topics: [signature, orderHash, maker, taker]
		fill.Maker = topicAddress(log.Topics[2])
		fill.Taker = topicAddress(log.Topics[3])
	} else if len(log.Topics) >= 3 {
		// Truncated topic list: take the last two topics as addresses.
		fill.Maker = topicAddress(log.Topics[len(log.Topics)-2])
		fill.Taker = topicAddress(log.Topics[len(log.Topics)-1])
	} else {
		return OrderFill{}, false
	}

	if values, err := orderFilledData.Unpack(log.Data); err == nil && len(values) == 5 {
		if v, ok := values[2].(*big.Int); ok {
			fill.MakerAmountFilled = v
		}
		if v, ok := values[3].(*big.Int); ok {
			fill.TakerAmountFilled = v
		}
	}

	return fill, true
}

// topicAddress slices the 20 address bytes out of a 32-byte topic.
func topicAddress(topic common.Hash) string {
	return strings.ToLower(common.BytesToAddress(topic.Bytes()[12:]).Hex())
}
