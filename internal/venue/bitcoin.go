package venue

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/btcarb/internal/domain"
)

const btcPendingMessage = "BTC trade execution requires configuration"

// Leg is a venue-specific leg executor.
type Leg interface {
	Venue() domain.Venue
	IsConfigured() bool
	ExecuteLeg(ctx context.Context, opp domain.Opportunity, size decimal.Decimal) domain.LegResult
}

// LightningConfig locates an LND node and the Predyx market API.
type LightningConfig struct {
	Endpoint     string
	MacaroonPath string
	CertPath     string
	PredyxAPIKey string
	BTCUSDPrice  decimal.Decimal
}

// OrdinalsConfig holds the ordinals wallet and indexer endpoint.
type OrdinalsConfig struct {
	WalletAddress string
	APIEndpoint   string
}

// StacksConfig holds Stacks API credentials.
type StacksConfig struct {
	APIKey  string
	Network string
}

// EVMSidechainConfig is shared by RSK and Liquid.
type EVMSidechainConfig struct {
	RPCURL     string
	PrivateKey string
}

// BitcoinConfig selects the BTC venue and carries every protocol's settings.
type BitcoinConfig struct {
	Protocol  string
	Lightning LightningConfig
	Ordinals  OrdinalsConfig
	Stacks    StacksConfig
	RSK       EVMSidechainConfig
	Liquid    EVMSidechainConfig
}

// NewBTCLeg returns the leg executor for cfg.Protocol.
func NewBTCLeg(cfg BitcoinConfig, logger *slog.Logger) (Leg, error) {
	switch domain.Venue(strings.ToLower(cfg.Protocol)) {
	case domain.VenueLightning:
		return NewLightningLeg(cfg.Lightning, logger), nil
	case domain.VenueOrdinals:
		return NewOrdinalsLeg(cfg.Ordinals, logger), nil
	case domain.VenueStacks:
		return NewStacksLeg(cfg.Stacks, logger), nil
	case domain.VenueRSK:
		leg, err := NewRSKLeg(cfg.RSK, logger)
		if err != nil {
			return nil, err
		}
		return leg, nil
	case domain.VenueLiquid:
		return NewLiquidLeg(cfg.Liquid, logger), nil
	default:
		return nil, fmt.Errorf("venue: unknown bitcoin protocol %q", cfg.Protocol)
	}
}

// pendingBTC is the result every configured BTC leg reports until it can
// settle on-venue.
func pendingBTC(v domain.Venue) domain.LegResult {
	msg := btcPendingMessage
	return domain.LegResult{Venue: v, Status: domain.TradePending, Error: &msg}
}

func notConfigured(v domain.Venue) domain.LegResult {
	return domain.FailedLeg(v, v.DisplayName()+" wallet not configured")
}

// LightningLeg pays into a Lightning-settled market.
type LightningLeg struct {
	cfg    LightningConfig
	logger *slog.Logger
}

func NewLightningLeg(cfg LightningConfig, logger *slog.Logger) *LightningLeg {
	return &LightningLeg{cfg: cfg, logger: logger.With(slog.String("component", "lightning_leg"))}
}

func (l *LightningLeg) Venue() domain.Venue { return domain.VenueLightning }

func (l *LightningLeg) IsConfigured() bool { return l.cfg.Endpoint != "" }

// ExecuteLeg sizes the stake (size times odds, in the position's unit) and,
// when a BTC price is configured, converts it to satoshis and estimates the
// routing fee before reporting pending.
func (l *LightningLeg) ExecuteLeg(ctx context.Context, opp domain.Opportunity, size decimal.Decimal) domain.LegResult {
	if !l.IsConfigured() {
		return notConfigured(domain.VenueLightning)
	}
	stake := size.Mul(opp.QuoteB.Odds)
	attrs := []any{
		slog.String("market_id", opp.QuoteB.MarketID),
		slog.String("stake", stake.String()),
	}
	if sats, ok := StakeSats(stake, l.cfg.BTCUSDPrice); ok {
		fee := EstimateLNFee(sats)
		attrs = append(attrs,
			slog.Int64("stake_sats", sats),
			slog.Int64("fee_sats", fee),
			slog.String("total_btc", SatsToBTC(sats+fee).String()),
		)
	}
	l.logger.InfoContext(ctx, "lightning leg prepared", attrs...)
	return pendingBTC(domain.VenueLightning)
}

// OrdinalsLeg inscribes against an ordinals market.
type OrdinalsLeg struct {
	cfg    OrdinalsConfig
	logger *slog.Logger
}

func NewOrdinalsLeg(cfg OrdinalsConfig, logger *slog.Logger) *OrdinalsLeg {
	return &OrdinalsLeg{cfg: cfg, logger: logger.With(slog.String("component", "ordinals_leg"))}
}

func (l *OrdinalsLeg) Venue() domain.Venue { return domain.VenueOrdinals }

func (l *OrdinalsLeg) IsConfigured() bool {
	return l.cfg.WalletAddress != "" && l.cfg.APIEndpoint != ""
}

func (l *OrdinalsLeg) ExecuteLeg(ctx context.Context, opp domain.Opportunity, size decimal.Decimal) domain.LegResult {
	if !l.IsConfigured() {
		return notConfigured(domain.VenueOrdinals)
	}
	l.logger.InfoContext(ctx, "ordinals leg prepared",
		slog.String("market_id", opp.QuoteB.MarketID),
		slog.String("wallet", l.cfg.WalletAddress),
		slog.String("size", size.String()),
	)
	return pendingBTC(domain.VenueOrdinals)
}

// StacksLeg calls a Stacks prediction-market contract.
type StacksLeg struct {
	cfg    StacksConfig
	logger *slog.Logger
}

func NewStacksLeg(cfg StacksConfig, logger *slog.Logger) *StacksLeg {
	return &StacksLeg{cfg: cfg, logger: logger.With(slog.String("component", "stacks_leg"))}
}

func (l *StacksLeg) Venue() domain.Venue { return domain.VenueStacks }

func (l *StacksLeg) IsConfigured() bool { return l.cfg.APIKey != "" }

func (l *StacksLeg) ExecuteLeg(ctx context.Context, opp domain.Opportunity, size decimal.Decimal) domain.LegResult {
	if !l.IsConfigured() {
		return notConfigured(domain.VenueStacks)
	}
	l.logger.InfoContext(ctx, "stacks leg prepared",
		slog.String("market_id", opp.QuoteB.MarketID),
		slog.String("network", l.cfg.Network),
		slog.String("size", size.String()),
	)
	return pendingBTC(domain.VenueStacks)
}

// RSKLeg trades on an RSK-hosted market from the address derived from its key.
type RSKLeg struct {
	cfg     EVMSidechainConfig
	address common.Address
	logger  *slog.Logger
}

// NewRSKLeg validates the configured key, if any.
func NewRSKLeg(cfg EVMSidechainConfig, logger *slog.Logger) (*RSKLeg, error) {
	l := &RSKLeg{cfg: cfg, logger: logger.With(slog.String("component", "rsk_leg"))}
	if cfg.PrivateKey != "" {
		key, err := ethcrypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("venue: rsk private key: %w", err)
		}
		l.address = ethcrypto.PubkeyToAddress(key.PublicKey)
	}
	return l, nil
}

func (l *RSKLeg) Venue() domain.Venue { return domain.VenueRSK }

func (l *RSKLeg) IsConfigured() bool {
	return l.cfg.RPCURL != "" && l.address != (common.Address{})
}

// Address returns the RSK account, zero when unconfigured.
func (l *RSKLeg) Address() common.Address { return l.address }

func (l *RSKLeg) ExecuteLeg(ctx context.Context, opp domain.Opportunity, size decimal.Decimal) domain.LegResult {
	if !l.IsConfigured() {
		return notConfigured(domain.VenueRSK)
	}
	l.logger.InfoContext(ctx, "rsk leg prepared",
		slog.String("market_id", opp.QuoteB.MarketID),
		slog.String("from", l.address.Hex()),
		slog.String("size", size.String()),
	)
	return pendingBTC(domain.VenueRSK)
}

// LiquidLeg trades a Liquid-issued outcome asset.
type LiquidLeg struct {
	cfg    EVMSidechainConfig
	logger *slog.Logger
}

func NewLiquidLeg(cfg EVMSidechainConfig, logger *slog.Logger) *LiquidLeg {
	return &LiquidLeg{cfg: cfg, logger: logger.With(slog.String("component", "liquid_leg"))}
}

func (l *LiquidLeg) Venue() domain.Venue { return domain.VenueLiquid }

func (l *LiquidLeg) IsConfigured() bool { return l.cfg.RPCURL != "" }

func (l *LiquidLeg) ExecuteLeg(ctx context.Context, opp domain.Opportunity, size decimal.Decimal) domain.LegResult {
	if !l.IsConfigured() {
		return notConfigured(domain.VenueLiquid)
	}
	l.logger.InfoContext(ctx, "liquid leg prepared",
		slog.String("market_id", opp.QuoteB.MarketID),
		slog.String("size", size.String()),
	)
	return pendingBTC(domain.VenueLiquid)
}
