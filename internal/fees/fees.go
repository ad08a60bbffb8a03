package fees

import "hobbydork/internal/models"

// Blind-bid auction listing fees in cents, keyed by seller tier. The Bronze
// fee is deliberately prohibitive; Bronze sellers are also blocked by an
// explicit tier check before fee computation (see auction.Service).
const (
	GoldAuctionFeeCents   int64 = 299
	SilverAuctionFeeCents int64 = 499
	BronzeAuctionFeeCents int64 = 99999
)

// ForTier maps a seller tier to its flat blind-bid listing fee in cents.
func ForTier(tier models.SellerTier) int64 {
	switch tier {
	case models.TierGold:
		return GoldAuctionFeeCents
	case models.TierSilver:
		return SilverAuctionFeeCents
	default:
		return BronzeAuctionFeeCents
	}
}

// Payable reports whether a tier is allowed to create blind-bid auctions.
func Payable(tier models.SellerTier) bool {
	return tier == models.TierGold || tier == models.TierSilver
}
