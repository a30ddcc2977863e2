package settlement

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/dexlab-io/matchbook/internal/domain"
)

// settlementABI is the executeTrade fragment of the settlement contract.
// It takes the whole batch as one tuple so the contract can verify each
// leg's signature against its order id.
const settlementABI = `[{"inputs":[{"components":[
{"components":[{"name":"user","type":"address"},{"name":"size","type":"uint256"},{"name":"orderId","type":"string"},{"name":"signature","type":"bytes"}],"name":"asks","type":"tuple[]"},
{"components":[{"name":"user","type":"address"},{"name":"size","type":"uint256"},{"name":"orderId","type":"string"},{"name":"signature","type":"bytes"}],"name":"bids","type":"tuple[]"},
{"name":"totalSize","type":"uint256"},
{"name":"unitPrice","type":"uint256"},
{"name":"baseToken","type":"address"},
{"name":"quoteToken","type":"address"},
{"name":"tokenId","type":"uint256"},
{"name":"baseTokenType","type":"uint256"},
{"name":"quoteTokenType","type":"uint256"}
],"name":"trade","type":"tuple"}],"name":"executeTrade","outputs":[],"stateMutability":"nonpayable","type":"function"}]`

// Client submits matched batches to the settlement contract. Simulate
// must be called before Submit; a batch the contract would revert on is
// never broadcast.
type Client interface {
	Simulate(ctx context.Context, batch *domain.TradeBatch) error
	Submit(ctx context.Context, batch *domain.TradeBatch) (txHash string, err error)
}

// DisabledClient accepts every batch without touching a chain. Used
// when the settlement contract is not configured; trade rows are still
// recorded, with an empty transaction hash.
type DisabledClient struct{}

func (DisabledClient) Simulate(context.Context, *domain.TradeBatch) error { return nil }

func (DisabledClient) Submit(context.Context, *domain.TradeBatch) (string, error) {
	return "", nil
}

// ChainClient is the go-ethereum backed Client.
type ChainClient struct {
	eth        *ethclient.Client
	contract   common.Address
	privateKey *ecdsa.PrivateKey
	from       common.Address
	chainID    *big.Int
	abi        abi.ABI
}

// NewChainClient dials the RPC endpoint and prepares the signing key.
// The private key is hex, with or without 0x prefix.
func NewChainClient(rpcURL, contractAddr, privateKeyHex string) (*ChainClient, error) {
	eth, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}

	chainID, err := eth.ChainID(context.Background())
	if err != nil {
		return nil, fmt.Errorf("query chain id: %w", err)
	}

	key, err := parsePrivateKey(privateKeyHex)
	if err != nil {
		return nil, err
	}

	parsed, err := abi.JSON(strings.NewReader(settlementABI))
	if err != nil {
		return nil, fmt.Errorf("parse settlement abi: %w", err)
	}

	return &ChainClient{
		eth:        eth,
		contract:   common.HexToAddress(contractAddr),
		privateKey: key,
		from:       crypto.PubkeyToAddress(key.PublicKey),
		chainID:    chainID,
		abi:        parsed,
	}, nil
}

func parsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	key, err := crypto.ToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return key, nil
}

// tradeLegArg mirrors the leg tuple in settlementABI.
type tradeLegArg struct {
	User      common.Address
	Size      *big.Int
	OrderId   string
	Signature []byte
}

// tradeArg mirrors the batch tuple in settlementABI.
type tradeArg struct {
	Asks           []tradeLegArg
	Bids           []tradeLegArg
	TotalSize      *big.Int
	UnitPrice      *big.Int
	BaseToken      common.Address
	QuoteToken     common.Address
	TokenId        *big.Int
	BaseTokenType  *big.Int
	QuoteTokenType *big.Int
}

func (c *ChainClient) packBatch(batch *domain.TradeBatch) ([]byte, error) {
	arg := tradeArg{
		Asks:           make([]tradeLegArg, 0, len(batch.Asks)),
		Bids:           make([]tradeLegArg, 0, len(batch.Bids)),
		TotalSize:      batch.TotalSize.BigInt(),
		UnitPrice:      batch.UnitPrice.BigInt(),
		BaseToken:      common.HexToAddress(batch.Pair.BaseToken),
		QuoteToken:     common.HexToAddress(batch.Pair.QuoteToken),
		TokenId:        big.NewInt(0),
		BaseTokenType:  big.NewInt(batch.Pair.BaseTokenType),
		QuoteTokenType: big.NewInt(batch.Pair.QuoteTokenType),
	}
	if batch.Pair.TokenID != nil {
		arg.TokenId = big.NewInt(*batch.Pair.TokenID)
	}

	for _, leg := range batch.Asks {
		packed, err := packLeg(leg)
		if err != nil {
			return nil, err
		}
		arg.Asks = append(arg.Asks, packed)
	}
	for _, leg := range batch.Bids {
		packed, err := packLeg(leg)
		if err != nil {
			return nil, err
		}
		arg.Bids = append(arg.Bids, packed)
	}

	data, err := c.abi.Pack("executeTrade", arg)
	if err != nil {
		return nil, fmt.Errorf("pack executeTrade: %w", err)
	}
	return data, nil
}

func packLeg(leg domain.TradeLeg) (tradeLegArg, error) {
	sig, err := decodeHex(leg.Signature)
	if err != nil {
		return tradeLegArg{}, fmt.Errorf("leg %s signature: %w", leg.OrderID, err)
	}
	return tradeLegArg{
		User:      common.HexToAddress(leg.User),
		Size:      leg.Size.BigInt(),
		OrderId:   leg.OrderID,
		Signature: sig,
	}, nil
}

func decodeHex(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(s, "0x"))
}

// Simulate runs executeTrade as an eth_call from the operator account.
// A revert surfaces here as an error without spending gas.
func (c *ChainClient) Simulate(ctx context.Context, batch *domain.TradeBatch) error {
	data, err := c.packBatch(batch)
	if err != nil {
		return err
	}
	_, err = c.eth.CallContract(ctx, ethereum.CallMsg{
		From: c.from,
		To:   &c.contract,
		Data: data,
	}, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrSettlementRejected, err)
	}
	return nil
}

// Submit signs and broadcasts the executeTrade transaction, returning
// its hash. Confirmation is not awaited.
func (c *ChainClient) Submit(ctx context.Context, batch *domain.TradeBatch) (string, error) {
	data, err := c.packBatch(batch)
	if err != nil {
		return "", err
	}

	nonce, err := c.eth.PendingNonceAt(ctx, c.from)
	if err != nil {
		return "", fmt.Errorf("%w: nonce: %v", domain.ErrSettlementSubmissionFailed, err)
	}
	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: gas price: %v", domain.ErrSettlementSubmissionFailed, err)
	}
	gasLimit, err := c.eth.EstimateGas(ctx, ethereum.CallMsg{
		From: c.from,
		To:   &c.contract,
		Data: data,
	})
	if err != nil {
		return "", fmt.Errorf("%w: estimate gas: %v", domain.ErrSettlementSubmissionFailed, err)
	}

	tx := ethtypes.NewTransaction(nonce, c.contract, big.NewInt(0), gasLimit, gasPrice, data)
	signed, err := ethtypes.SignTx(tx, ethtypes.NewEIP155Signer(c.chainID), c.privateKey)
	if err != nil {
		return "", fmt.Errorf("%w: sign: %v", domain.ErrSettlementSubmissionFailed, err)
	}
	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("%w: send: %v", domain.ErrSettlementSubmissionFailed, err)
	}
	return signed.Hash().Hex(), nil
}
