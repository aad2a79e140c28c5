package adapter

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	apperrors "github.com/portfolio-risk/internal/errors"
	"github.com/portfolio-risk/internal/logging"
	"github.com/portfolio-risk/internal/metrics"
	"github.com/portfolio-risk/internal/models"
	"github.com/portfolio-risk/internal/types"
)

const rpcProviderName = "rpc"

var weiPerEther = new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))

// nativeNames are display names for each chain's gas token
var nativeNames = map[types.ChainID]string{
	types.ChainEthereum: "Ether",
	types.ChainPolygon:  "Polygon Ecosystem Token",
	types.ChainBSC:      "BNB",
}

type evmChain struct {
	mu       sync.Mutex
	id       types.ChainID
	provider DataProvider
	client   *ethclient.Client
}

// EVMHoldingsResolver reports native-token balances on EVM chains through
// JSON-RPC, failing over to the secondary endpoint on transport errors.
type EVMHoldingsResolver struct {
	chains  map[types.ChainID]*evmChain
	metrics *metrics.Registry
}

// NewEVMHoldingsResolver creates a resolver for the chains that have a provider
func NewEVMHoldingsResolver(providers map[types.ChainID]DataProvider, m *metrics.Registry) *EVMHoldingsResolver {
	chains := make(map[types.ChainID]*evmChain, len(providers))
	for id, p := range providers {
		if !id.IsEVM() || p == nil {
			continue
		}
		chains[id] = &evmChain{id: id, provider: p}
	}
	return &EVMHoldingsResolver{chains: chains, metrics: m}
}

// ResolveHoldings returns the wallet's native balance as a single holding,
// or no holdings when the balance is zero.
func (r *EVMHoldingsResolver) ResolveHoldings(ctx context.Context, wallet string, chain types.ChainID) ([]models.RawHolding, error) {
	if err := ValidateAddress(wallet, chain); err != nil {
		return nil, err
	}

	c, ok := r.chains[chain]
	if !ok {
		return nil, apperrors.NewChainNotConfiguredError(chain,
			NewAdapterError(chain, "ResolveHoldings", ErrChainNotConfigured, nil))
	}

	wei, err := c.balanceAt(ctx, common.HexToAddress(wallet), true)
	if err != nil {
		r.metrics.RecordProviderRequest(rpcProviderName, "balance", "error")
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.NewProviderTimeoutError(rpcProviderName)
		}
		return nil, apperrors.NewProviderError(rpcProviderName,
			NewAdapterError(chain, "ResolveHoldings", err, map[string]interface{}{"address": wallet}))
	}
	r.metrics.RecordProviderRequest(rpcProviderName, "balance", "success")

	if wei.Sign() == 0 {
		return []models.RawHolding{}, nil
	}

	amount, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), weiPerEther).Float64()
	return []models.RawHolding{{
		Symbol: chain.NativeSymbol(),
		Name:   nativeNames[chain],
		Amount: amount,
	}}, nil
}

// balanceAt queries the current endpoint, failing over once when allowed
func (c *evmChain) balanceAt(ctx context.Context, addr common.Address, allowFailover bool) (*big.Int, error) {
	client, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	balance, err := client.BalanceAt(ctx, addr, nil)
	if err == nil {
		c.provider.RecordSuccess(time.Since(start))
		return balance, nil
	}

	c.provider.RecordFailure(err)
	if allowFailover && shouldFailover(err) && ctx.Err() == nil {
		if failErr := c.provider.Failover(); failErr == nil {
			logging.FromContext(ctx).WithFields(map[string]interface{}{
				"chain": string(c.id),
			}).WithError(err).Warn("RPC request failed, switching endpoint")
			c.reset()
			return c.balanceAt(ctx, addr, false)
		}
	}
	return nil, err
}

func (c *evmChain) dial(ctx context.Context) (*ethclient.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		return c.client, nil
	}

	rpcURL, err := c.provider.GetCurrentURL()
	if err != nil {
		return nil, err
	}
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, NewAdapterError(c.id, "dial", err, map[string]interface{}{"rpcURL": rpcURL})
	}
	c.client = client
	return client, nil
}

func (c *evmChain) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		c.client.Close()
		c.client = nil
	}
}

// Health returns the endpoint health of every configured chain
func (r *EVMHoldingsResolver) Health() map[types.ChainID]*ProviderHealth {
	out := make(map[types.ChainID]*ProviderHealth, len(r.chains))
	for id, c := range r.chains {
		out[id] = c.provider.GetHealth()
	}
	return out
}

// Close closes every RPC connection
func (r *EVMHoldingsResolver) Close() {
	for _, c := range r.chains {
		c.reset()
	}
}

// shouldFailover determines if an error warrants switching endpoints
func shouldFailover(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	for _, marker := range []string{
		"rate limit", "too many requests", "429",
		"timeout", "deadline exceeded",
		"connection refused", "connection reset", "no such host",
		"502", "503", "bad gateway", "service unavailable",
	} {
		if strings.Contains(errStr, marker) {
			return true
		}
	}
	return false
}
