// Package venue implements one leg executor per trading venue. Each leg
// reports whether it has the credentials it needs and turns an opportunity
// into a LegResult without returning errors.
package venue

import (
	"context"
	"crypto/rand"
	"log/slog"
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/btcarb/internal/crypto"
	"github.com/alanyoungcy/btcarb/internal/domain"
)

const (
	clobPendingMessage = "order submission requires CLOB integration"
	zeroAddress        = "0x0000000000000000000000000000000000000000"
	usdcDecimals       = 6
)

var maxOutcomePrice = decimal.RequireFromString("0.99")

// PolymarketLeg signs a limit buy for the Polymarket side of an opportunity.
// Without a signer it is unconfigured.
type PolymarketLeg struct {
	signer      *crypto.Signer
	maxSlippage decimal.Decimal
	orderTTL    time.Duration
	now         func() time.Time
	logger      *slog.Logger
}

// NewPolymarketLeg creates a PolymarketLeg. signer may be nil.
func NewPolymarketLeg(signer *crypto.Signer, maxSlippage decimal.Decimal, logger *slog.Logger) *PolymarketLeg {
	return &PolymarketLeg{
		signer:      signer,
		maxSlippage: maxSlippage,
		orderTTL:    5 * time.Minute,
		now:         time.Now,
		logger:      logger.With(slog.String("component", "polymarket_leg")),
	}
}

func (l *PolymarketLeg) Venue() domain.Venue { return domain.VenuePolymarket }

func (l *PolymarketLeg) IsConfigured() bool { return l.signer != nil }

// LimitPrice returns the worst price the leg accepts for a quoted price.
func (l *PolymarketLeg) LimitPrice(odds decimal.Decimal) decimal.Decimal {
	limit := odds.Mul(decimal.NewFromInt(1).Add(l.maxSlippage))
	if limit.GreaterThan(maxOutcomePrice) {
		return maxOutcomePrice
	}
	return limit
}

// ExecuteLeg builds and signs the order. The signed order hash is the leg's
// transaction id; submission stays pending.
func (l *PolymarketLeg) ExecuteLeg(ctx context.Context, opp domain.Opportunity, size decimal.Decimal) domain.LegResult {
	if l.signer == nil {
		return domain.FailedLeg(domain.VenuePolymarket, "Polymarket wallet not configured")
	}
	q := opp.QuoteA
	if q.Asset == "" {
		return domain.FailedLeg(domain.VenuePolymarket, "no CLOB token id for market "+q.MarketID)
	}

	limit := l.LimitPrice(q.Odds)
	maker := l.signer.Address().Hex()
	order := crypto.Order{
		Salt:        randomSalt(),
		Maker:       maker,
		Signer:      maker,
		Taker:       zeroAddress,
		TokenID:     q.Asset,
		MakerAmount: size.Mul(limit).Shift(usdcDecimals).Truncate(0).String(),
		TakerAmount: size.Shift(usdcDecimals).Truncate(0).String(),
		Expiration:  decimal.NewFromInt(l.now().Add(l.orderTTL).Unix()).String(),
		Nonce:       "0",
		FeeRateBps:  "0",
		Side:        crypto.SideBuy,
	}

	signed, err := l.signer.SignOrder(order)
	if err != nil {
		l.logger.WarnContext(ctx, "order signing failed",
			slog.String("market_id", q.MarketID),
			slog.String("error", err.Error()),
		)
		return domain.FailedLeg(domain.VenuePolymarket, err.Error())
	}

	l.logger.InfoContext(ctx, "order signed",
		slog.String("market_id", q.MarketID),
		slog.String("token_id", q.Asset),
		slog.String("limit_price", limit.String()),
		slog.String("size", size.String()),
		slog.String("order_hash", signed.Hash),
	)

	msg := clobPendingMessage
	return domain.LegResult{
		Venue:  domain.VenuePolymarket,
		TxID:   &signed.Hash,
		Status: domain.TradePending,
		Error:  &msg,
	}
}

func randomSalt() string {
	n, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
	if err != nil {
		return decimal.NewFromInt(time.Now().UnixNano()).String()
	}
	return n.String()
}
