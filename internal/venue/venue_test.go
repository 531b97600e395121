package venue

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/btcarb/internal/crypto"
	"github.com/alanyoungcy/btcarb/internal/domain"
)

const testKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testOpp() domain.Opportunity {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return domain.Opportunity{
		QuoteA: domain.Quote{MarketID: "pm-1", Outcome: "Yes", Asset: "1234567890", Odds: d("0.60"),
			Source: domain.VenuePolymarket, Timestamp: ts},
		QuoteB: domain.Quote{MarketID: "ln-1", Outcome: "Yes", Odds: d("0.68"),
			Source: domain.VenueLightning, Timestamp: ts},
		ImpliedProfit: d("0.1333"),
		Confidence:    1,
		DetectedAt:    ts,
	}
}

func TestUnits(t *testing.T) {
	assert.Equal(t, "1", SatsToBTC(100_000_000).String())
	assert.Equal(t, "0.00000001", SatsToBTC(1).String())
	assert.Equal(t, int64(150_000_000), BTCToSats(d("1.5")))
	assert.Equal(t, int64(0), BTCToSats(d("0.000000001")))

	assert.Equal(t, int64(1), EstimateLNFee(0))
	assert.Equal(t, int64(1), EstimateLNFee(999_999))
	assert.Equal(t, int64(5), EstimateLNFee(1_000_000))
	assert.Equal(t, int64(50), EstimateLNFee(10_500_000))

	sats, ok := StakeSats(d("680"), d("68000"))
	require.True(t, ok)
	assert.Equal(t, int64(1_000_000), sats)
	_, ok = StakeSats(d("680"), decimal.Zero)
	assert.False(t, ok)
}

func TestLightningLeg_StakeUnits(t *testing.T) {
	tests := []struct {
		name     string
		price    string
		wantSats bool
	}{
		{"no price", "0", false},
		{"with price", "68000", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, nil))
			leg := NewLightningLeg(LightningConfig{Endpoint: "https://lnd:8080", BTCUSDPrice: d(tt.price)}, logger)

			res := leg.ExecuteLeg(context.Background(), testOpp(), d("1000"))
			assert.Equal(t, domain.TradePending, res.Status)

			var entry map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
			assert.Equal(t, "680", entry["stake"])
			if tt.wantSats {
				assert.EqualValues(t, 1_000_000, entry["stake_sats"])
				assert.EqualValues(t, 5, entry["fee_sats"])
				assert.Equal(t, "0.01000005", entry["total_btc"])
			} else {
				assert.NotContains(t, entry, "stake_sats")
				assert.NotContains(t, entry, "total_btc")
			}
		})
	}
}

func TestPolymarketLeg_Unconfigured(t *testing.T) {
	leg := NewPolymarketLeg(nil, d("0.01"), testLogger())
	assert.False(t, leg.IsConfigured())

	res := leg.ExecuteLeg(context.Background(), testOpp(), d("10"))
	assert.Equal(t, domain.TradeFailed, res.Status)
	require.NotNil(t, res.Error)
	assert.Equal(t, "Polymarket wallet not configured", *res.Error)
}

func TestPolymarketLeg_SignsOrder(t *testing.T) {
	signer, err := crypto.NewSigner(testKey, 137)
	require.NoError(t, err)
	leg := NewPolymarketLeg(signer, d("0.01"), testLogger())
	require.True(t, leg.IsConfigured())

	res := leg.ExecuteLeg(context.Background(), testOpp(), d("10"))
	assert.Equal(t, domain.TradePending, res.Status)
	assert.Equal(t, domain.VenuePolymarket, res.Venue)
	require.NotNil(t, res.TxID)
	assert.Len(t, *res.TxID, 66)
	require.NotNil(t, res.Error)
	assert.Equal(t, clobPendingMessage, *res.Error)
}

func TestPolymarketLeg_MissingToken(t *testing.T) {
	signer, err := crypto.NewSigner(testKey, 137)
	require.NoError(t, err)
	leg := NewPolymarketLeg(signer, d("0.01"), testLogger())

	opp := testOpp()
	opp.QuoteA.Asset = ""
	res := leg.ExecuteLeg(context.Background(), opp, d("10"))
	assert.Equal(t, domain.TradeFailed, res.Status)
	assert.Nil(t, res.TxID)
}

func TestPolymarketLeg_LimitPrice(t *testing.T) {
	leg := NewPolymarketLeg(nil, d("0.01"), testLogger())
	assert.Equal(t, "0.606", leg.LimitPrice(d("0.60")).String())
	assert.Equal(t, "0.99", leg.LimitPrice(d("0.985")).String())
}

func TestNewBTCLeg(t *testing.T) {
	tests := []struct {
		name       string
		cfg        BitcoinConfig
		venue      domain.Venue
		configured bool
	}{
		{"lightning unconfigured", BitcoinConfig{Protocol: "lightning"}, domain.VenueLightning, false},
		{"lightning", BitcoinConfig{Protocol: "Lightning", Lightning: LightningConfig{Endpoint: "https://lnd:8080"}}, domain.VenueLightning, true},
		{"ordinals needs both fields", BitcoinConfig{Protocol: "ordinals", Ordinals: OrdinalsConfig{WalletAddress: "bc1q"}}, domain.VenueOrdinals, false},
		{"ordinals", BitcoinConfig{Protocol: "ordinals", Ordinals: OrdinalsConfig{WalletAddress: "bc1q", APIEndpoint: "https://ord"}}, domain.VenueOrdinals, true},
		{"stacks", BitcoinConfig{Protocol: "stacks", Stacks: StacksConfig{APIKey: "k"}}, domain.VenueStacks, true},
		{"rsk without key", BitcoinConfig{Protocol: "rsk", RSK: EVMSidechainConfig{RPCURL: "https://rsk"}}, domain.VenueRSK, false},
		{"rsk", BitcoinConfig{Protocol: "rsk", RSK: EVMSidechainConfig{RPCURL: "https://rsk", PrivateKey: testKey}}, domain.VenueRSK, true},
		{"liquid", BitcoinConfig{Protocol: "liquid", Liquid: EVMSidechainConfig{RPCURL: "https://liquid"}}, domain.VenueLiquid, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			leg, err := NewBTCLeg(tt.cfg, testLogger())
			require.NoError(t, err)
			assert.Equal(t, tt.venue, leg.Venue())
			assert.Equal(t, tt.configured, leg.IsConfigured())

			res := leg.ExecuteLeg(context.Background(), testOpp(), d("1000"))
			assert.Equal(t, tt.venue, res.Venue)
			assert.Nil(t, res.TxID)
			require.NotNil(t, res.Error)
			if tt.configured {
				assert.Equal(t, domain.TradePending, res.Status)
				assert.Equal(t, btcPendingMessage, *res.Error)
			} else {
				assert.Equal(t, domain.TradeFailed, res.Status)
				assert.Equal(t, "BTC "+string(tt.venue)+" wallet not configured", *res.Error)
			}
		})
	}
}

func TestNewBTCLeg_Errors(t *testing.T) {
	_, err := NewBTCLeg(BitcoinConfig{Protocol: "dogecoin"}, testLogger())
	assert.ErrorContains(t, err, "unknown bitcoin protocol")

	_, err = NewBTCLeg(BitcoinConfig{Protocol: "rsk", RSK: EVMSidechainConfig{PrivateKey: "zz"}}, testLogger())
	assert.Error(t, err)
}

func TestRSKLeg_Address(t *testing.T) {
	leg, err := NewRSKLeg(EVMSidechainConfig{RPCURL: "https://rsk", PrivateKey: "0x" + testKey}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", leg.Address().Hex())
}
