package auction

import (
	"fmt"
	"math"
	"time"

	"hobbydork/internal/apperr"
	"hobbydork/internal/auth"
	"hobbydork/internal/config"
	"hobbydork/internal/fees"
	"hobbydork/internal/logger"
	"hobbydork/internal/models"
	"hobbydork/internal/utils"

	"github.com/stripe/stripe-go/v82"
)

type DBLayer interface {
	CreateAuction(auction models.BlindBidAuction) error
	GetAuctionByID(id string) (*models.BlindBidAuction, error)
	GetAuctionsBySeller(sellerUID string) ([]models.BlindBidAuction, error)
	GetOpenAuctionsPastDeadline(now time.Time) ([]models.BlindBidAuction, error)
	UpdateAuction(auction models.BlindBidAuction) error
	CreateBid(bid models.Bid) error
	GetBidByID(id string) (*models.Bid, error)
	GetBidsByAuction(auctionID string) ([]models.Bid, error)
	GetHighestAuthorizedBid(auctionID string) (*models.Bid, error)
	UpdateBidStatus(bidID string, status models.BidStatus) error
	DeleteBidsForAuction(auctionID string) (int, error)
}

type UserDirectory interface {
	GetUserByID(uid string) (*models.User, error)
}

type StripeGateway interface {
	CreatePaymentIntent(amountCents int64, metadata map[string]string) (*stripe.PaymentIntent, error)
	CreateManualCaptureIntent(amountCents int64, metadata map[string]string) (*stripe.PaymentIntent, error)
	CapturePaymentIntent(paymentIntentID string) error
	CancelPaymentIntent(paymentIntentID string) error
}

type DeadlineStore interface {
	ArmDeadline(auctionID string, ttl time.Duration) (bool, error)
	DeadlineArmed(auctionID string) (bool, error)
	ClearDeadline(auctionID string) error
}

type Notifier interface {
	AuctionLive(auction *models.BlindBidAuction)
}

type AuctionService struct {
	DB       DBLayer
	Users    UserDirectory
	Stripe   StripeGateway
	Deadline DeadlineStore
	Notify   Notifier
	Log      *logger.Logger
	Cfg      config.AuctionConfig
}

func NewAuctionService(db DBLayer, users UserDirectory, gateway StripeGateway,
	deadline DeadlineStore, notify Notifier, log *logger.Logger, cfg config.AuctionConfig) *AuctionService {
	return &AuctionService{
		DB:       db,
		Users:    users,
		Stripe:   gateway,
		Deadline: deadline,
		Notify:   notify,
		Log:      log,
		Cfg:      cfg,
	}
}

// CreateAuction provisions a blind-bid auction in PENDING_PAYMENT and
// returns the listing fee payment intent secret. The auction only opens
// once the webhook confirms the fee.
func (s *AuctionService) CreateAuction(caller auth.Identity, req models.CreateAuctionRequest) (*models.CreateAuctionResponse, error) {
	if caller.UserID == "" {
		return nil, apperr.New(apperr.Unauthenticated, "sign in to create auctions")
	}
	if !caller.EmailVerified {
		return nil, apperr.New(apperr.FailedPrecondition, "verify your email before creating auctions")
	}
	if req.Title == "" {
		return nil, apperr.New(apperr.InvalidArgument, "auction title is required")
	}

	user, err := s.Users.GetUserByID(caller.UserID)
	if err != nil {
		return nil, apperr.Wrap(apperr.NotFound, "user record not found", err)
	}
	if !user.IsSeller {
		return nil, apperr.New(apperr.PermissionDenied, "only sellers can create auctions")
	}

	tier := user.SellerTier
	if tier == "" {
		tier = models.TierBronze
	}
	if !fees.Payable(tier) {
		return nil, apperr.Newf(apperr.FailedPrecondition,
			"tier %s cannot list blind-bid auctions; upgrade to SILVER or GOLD", tier)
	}
	feeCents := fees.ForTier(tier)

	auctionID := utils.GenerateID("auction")

	pi, err := s.Stripe.CreatePaymentIntent(feeCents, map[string]string{
		models.MetaAuctionID: auctionID,
		models.MetaSellerUID: caller.UserID,
		models.MetaType:      models.IntentTypeBlindBidderListing,
		"seller_tier":        string(tier),
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to create listing fee payment", err)
	}

	now := time.Now()
	auction := models.BlindBidAuction{
		AuctionID:             auctionID,
		SellerUID:             caller.UserID,
		Title:                 req.Title,
		Description:           req.Description,
		ImageURL:              req.ImageURL,
		Status:                models.AuctionPendingPayment,
		FlatFeePaid:           false,
		StripePaymentIntentID: pi.ID,
		SellerTier:            tier,
		AuctionFeeCents:       feeCents,
		CreatedAt:             now,
		// Provisional deadline; reset when the fee confirms.
		EndsAt: now.Add(s.Cfg.Duration),
	}
	if err := s.DB.CreateAuction(auction); err != nil {
		// Orphaned intents expire on their own; still try to release now.
		if cancelErr := s.Stripe.CancelPaymentIntent(pi.ID); cancelErr != nil {
			s.Log.Error("AUCTION", fmt.Sprintf("Failed to cancel intent %s after insert failure: %v", pi.ID, cancelErr))
		}
		return nil, apperr.Wrap(apperr.Internal, "failed to persist auction", err)
	}

	s.Log.LogAuction("CREATE", auctionID,
		fmt.Sprintf("seller %s, tier %s, fee %d cents, awaiting payment", caller.UserID, tier, feeCents))

	return &models.CreateAuctionResponse{
		AuctionID:                 auctionID,
		PaymentIntentClientSecret: pi.ClientSecret,
	}, nil
}

// SubmitBid authorizes the bidder's card for the bid amount without
// capturing it. The hold is captured only if the bid wins at close.
func (s *AuctionService) SubmitBid(caller auth.Identity, auctionID string, req models.SubmitBidRequest) (*models.SubmitBidResponse, error) {
	if caller.UserID == "" {
		return nil, apperr.New(apperr.Unauthenticated, "sign in to bid")
	}
	if !caller.EmailVerified {
		return nil, apperr.New(apperr.FailedPrecondition, "verify your email before bidding")
	}
	if req.Amount <= 0 {
		return nil, apperr.New(apperr.InvalidArgument, "bid amount must be greater than zero")
	}

	auction, err := s.DB.GetAuctionByID(auctionID)
	if err != nil {
		return nil, apperr.Wrap(apperr.NotFound, fmt.Sprintf("auction %s not found", auctionID), err)
	}
	if auction.Status != models.AuctionOpen {
		return nil, apperr.Newf(apperr.FailedPrecondition, "auction is %s, not open for bids", auction.Status)
	}
	if auction.SellerUID == caller.UserID {
		return nil, apperr.New(apperr.PermissionDenied, "sellers cannot bid on their own auction")
	}

	bidID := utils.GenerateID("bid")
	amountCents := int64(math.Round(req.Amount * 100))

	pi, err := s.Stripe.CreateManualCaptureIntent(amountCents, map[string]string{
		models.MetaAuctionID: auctionID,
		models.MetaBidderUID: caller.UserID,
		models.MetaType:      models.IntentTypeBlindBidderBid,
		"bid_id":             bidID,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to authorize bid payment", err)
	}

	bid := models.Bid{
		BidID:                 bidID,
		AuctionID:             auctionID,
		BidderUID:             caller.UserID,
		Amount:                req.Amount,
		Status:                models.BidAuthorized,
		StripePaymentIntentID: pi.ID,
		CreatedAt:             time.Now(),
	}
	if err := s.DB.CreateBid(bid); err != nil {
		if cancelErr := s.Stripe.CancelPaymentIntent(pi.ID); cancelErr != nil {
			s.Log.Error("AUCTION", fmt.Sprintf("Failed to cancel intent %s after bid insert failure: %v", pi.ID, cancelErr))
		}
		return nil, apperr.Wrap(apperr.Internal, "failed to persist bid", err)
	}

	s.Log.LogAuction("BID", auctionID, fmt.Sprintf("bid %s by %s authorized", bidID, caller.UserID))

	return &models.SubmitBidResponse{
		BidID:                     bidID,
		PaymentIntentClientSecret: pi.ClientSecret,
	}, nil
}

// SetAuctionImage updates the auction image; owner only.
func (s *AuctionService) SetAuctionImage(caller auth.Identity, auctionID, imageURL string) error {
	if caller.UserID == "" {
		return apperr.New(apperr.Unauthenticated, "sign in to update auctions")
	}
	if imageURL == "" {
		return apperr.New(apperr.InvalidArgument, "image_url is required")
	}

	auction, err := s.DB.GetAuctionByID(auctionID)
	if err != nil {
		return apperr.Wrap(apperr.NotFound, fmt.Sprintf("auction %s not found", auctionID), err)
	}
	if auction.SellerUID != caller.UserID {
		return apperr.New(apperr.PermissionDenied, "only the seller can update this auction")
	}

	auction.ImageURL = imageURL
	if err := s.DB.UpdateAuction(*auction); err != nil {
		return apperr.Wrap(apperr.Internal, "failed to update auction image", err)
	}

	s.Log.LogAuction("IMAGE", auctionID, "image updated")
	return nil
}

// AdminRerunAuction reopens a closed auction with a fresh deadline. ClearBids
// also removes the previous round's bids, in batches.
func (s *AuctionService) AdminRerunAuction(caller auth.Identity, auctionID string, req models.RerunAuctionRequest) error {
	if caller.UserID == "" {
		return apperr.New(apperr.Unauthenticated, "sign in first")
	}
	if !caller.Admin {
		s.Log.LogSecurity("ADMIN_RERUN", fmt.Sprintf("non-admin %s attempted rerun of %s", caller.UserID, auctionID))
		return apperr.New(apperr.PermissionDenied, "admin only")
	}

	auction, err := s.DB.GetAuctionByID(auctionID)
	if err != nil {
		return apperr.Wrap(apperr.NotFound, fmt.Sprintf("auction %s not found", auctionID), err)
	}
	if auction.Status != models.AuctionClosed {
		return apperr.Newf(apperr.FailedPrecondition, "only closed auctions can be rerun, auction is %s", auction.Status)
	}

	newEndsAt := req.NewEndsAt
	if newEndsAt.IsZero() {
		newEndsAt = time.Now().Add(s.Cfg.Duration)
	}
	if newEndsAt.Before(time.Now()) {
		return apperr.New(apperr.InvalidArgument, "new_ends_at must be in the future")
	}

	if req.ClearBids {
		deleted, err := s.DB.DeleteBidsForAuction(auctionID)
		if err != nil {
			return apperr.Wrap(apperr.Internal, "failed to clear bids", err)
		}
		s.Log.LogAuction("RERUN", auctionID, fmt.Sprintf("cleared %d previous bid(s)", deleted))
	}

	auction.Status = models.AuctionOpen
	auction.WinnerBidID = ""
	auction.WinnerUID = ""
	auction.EndsAt = newEndsAt
	auction.ClosedAt = time.Time{}
	if err := s.DB.UpdateAuction(*auction); err != nil {
		return apperr.Wrap(apperr.Internal, "failed to reopen auction", err)
	}

	if err := s.Deadline.ClearDeadline(auctionID); err != nil {
		s.Log.Warn("AUCTION", fmt.Sprintf("Failed to clear stale deadline for %s: %v", auctionID, err))
	}
	if _, err := s.Deadline.ArmDeadline(auctionID, time.Until(newEndsAt)); err != nil {
		s.Log.Error("AUCTION", fmt.Sprintf("Failed to arm deadline for rerun %s: %v", auctionID, err))
	}

	s.Log.LogAuction("RERUN", auctionID, fmt.Sprintf("reopened by %s until %s", caller.UserID, newEndsAt.Format(time.RFC3339)))
	return nil
}

// MarkFeePaid flips a pending auction to OPEN once the webhook confirms the
// listing fee. Idempotent: a webhook retry on an open auction is a no-op.
func (s *AuctionService) MarkFeePaid(auctionID string) (*models.BlindBidAuction, error) {
	auction, err := s.DB.GetAuctionByID(auctionID)
	if err != nil {
		return nil, apperr.Wrap(apperr.NotFound, fmt.Sprintf("auction %s not found", auctionID), err)
	}
	if auction.Status == models.AuctionOpen {
		s.Log.LogAuction("FEE", auctionID, "already open, skipping")
		s.rearmLostDeadline(auction)
		return auction, nil
	}
	if auction.Status != models.AuctionPendingPayment {
		return nil, apperr.Newf(apperr.FailedPrecondition, "auction is %s, cannot mark fee paid", auction.Status)
	}

	auction.FlatFeePaid = true
	auction.Status = models.AuctionOpen
	auction.EndsAt = time.Now().Add(s.Cfg.Duration)
	if err := s.DB.UpdateAuction(*auction); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to open auction", err)
	}

	if _, err := s.Deadline.ArmDeadline(auctionID, s.Cfg.Duration); err != nil {
		s.Log.Error("AUCTION", fmt.Sprintf("Failed to arm deadline for %s: %v", auctionID, err))
	}

	s.Notify.AuctionLive(auction)
	s.Log.LogAuction("FEE", auctionID, fmt.Sprintf("fee confirmed, open until %s", auction.EndsAt.Format(time.RFC3339)))
	return auction, nil
}

// rearmLostDeadline re-arms the Redis deadline for an auction that is OPEN
// with a future end time but has no deadline key, which happens when Redis
// lost the key between opening and expiry. Best effort.
func (s *AuctionService) rearmLostDeadline(auction *models.BlindBidAuction) {
	ttl := time.Until(auction.EndsAt)
	if ttl <= 0 {
		return
	}
	armed, err := s.Deadline.DeadlineArmed(auction.AuctionID)
	if err != nil {
		s.Log.Error("AUCTION", fmt.Sprintf("Failed to check deadline for %s: %v", auction.AuctionID, err))
		return
	}
	if armed {
		return
	}
	if _, err := s.Deadline.ArmDeadline(auction.AuctionID, ttl); err != nil {
		s.Log.Error("AUCTION", fmt.Sprintf("Failed to re-arm deadline for %s: %v", auction.AuctionID, err))
		return
	}
	s.Log.LogAuction("DEADLINE", auction.AuctionID, "re-armed lost deadline")
}

// CloseAuction settles an open auction: the highest authorized bid wins and
// its hold is captured; every other hold is released. A winner whose capture
// fails is released and the next highest bid takes its place.
func (s *AuctionService) CloseAuction(auctionID string) error {
	auction, err := s.DB.GetAuctionByID(auctionID)
	if err != nil {
		return apperr.Wrap(apperr.NotFound, fmt.Sprintf("auction %s not found", auctionID), err)
	}
	if auction.Status != models.AuctionOpen {
		s.Log.LogAuction("CLOSE", auctionID, fmt.Sprintf("status %s, nothing to close", auction.Status))
		return nil
	}

	var winner *models.Bid
	for {
		candidate, err := s.DB.GetHighestAuthorizedBid(auctionID)
		if err != nil {
			// Abort and leave the auction OPEN: a failed bid query must not
			// close it winnerless and release a capturable hold. The startup
			// sweep retries the close.
			return apperr.Wrap(apperr.Internal, "failed to load bids for settlement", err)
		}
		if candidate == nil {
			// No authorized bids left; close without a winner.
			break
		}
		if err := s.Stripe.CapturePaymentIntent(candidate.StripePaymentIntentID); err != nil {
			s.Log.Error("AUCTION", fmt.Sprintf("Capture failed for bid %s, releasing: %v", candidate.BidID, err))
			if updErr := s.DB.UpdateBidStatus(candidate.BidID, models.BidReleased); updErr != nil {
				return apperr.Wrap(apperr.Internal, "failed to release uncapturable bid", updErr)
			}
			continue
		}
		if err := s.DB.UpdateBidStatus(candidate.BidID, models.BidCaptured); err != nil {
			return apperr.Wrap(apperr.Internal, "failed to mark winning bid captured", err)
		}
		winner = candidate
		break
	}

	// Release every remaining hold.
	bids, err := s.DB.GetBidsByAuction(auctionID)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "failed to load bids for release", err)
	}
	for _, bid := range bids {
		if bid.Status != models.BidAuthorized {
			continue
		}
		if err := s.Stripe.CancelPaymentIntent(bid.StripePaymentIntentID); err != nil {
			s.Log.Error("AUCTION", fmt.Sprintf("Failed to release hold for bid %s: %v", bid.BidID, err))
			continue
		}
		if err := s.DB.UpdateBidStatus(bid.BidID, models.BidReleased); err != nil {
			s.Log.Error("AUCTION", fmt.Sprintf("Failed to mark bid %s released: %v", bid.BidID, err))
		}
	}

	auction.Status = models.AuctionClosed
	auction.ClosedAt = time.Now()
	if winner != nil {
		auction.WinnerBidID = winner.BidID
		auction.WinnerUID = winner.BidderUID
	}
	if err := s.DB.UpdateAuction(*auction); err != nil {
		return apperr.Wrap(apperr.Internal, "failed to close auction", err)
	}

	if winner != nil {
		s.Log.LogAuction("CLOSE", auctionID, fmt.Sprintf("winner %s with bid %s", winner.BidderUID, winner.BidID))
	} else {
		s.Log.LogAuction("CLOSE", auctionID, "closed with no winner")
	}
	return nil
}

func (s *AuctionService) GetAuction(id string) (*models.BlindBidAuction, error) {
	auction, err := s.DB.GetAuctionByID(id)
	if err != nil {
		return nil, apperr.Wrap(apperr.NotFound, fmt.Sprintf("auction %s not found", id), err)
	}
	return auction, nil
}

// ListSellerAuctions returns the caller's own auctions, newest first.
func (s *AuctionService) ListSellerAuctions(caller auth.Identity) ([]models.BlindBidAuction, error) {
	if caller.UserID == "" {
		return nil, apperr.New(apperr.Unauthenticated, "sign in first")
	}
	auctions, err := s.DB.GetAuctionsBySeller(caller.UserID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to load auctions", err)
	}
	return auctions, nil
}

// GetBid returns a single bid to its bidder, the auction's seller once the
// auction is closed, or an admin. Open-auction bids stay blind to the seller.
func (s *AuctionService) GetBid(caller auth.Identity, auctionID, bidID string) (*models.Bid, error) {
	if caller.UserID == "" {
		return nil, apperr.New(apperr.Unauthenticated, "sign in first")
	}

	auction, err := s.DB.GetAuctionByID(auctionID)
	if err != nil {
		return nil, apperr.Wrap(apperr.NotFound, fmt.Sprintf("auction %s not found", auctionID), err)
	}
	bid, err := s.DB.GetBidByID(bidID)
	if err != nil || bid.AuctionID != auctionID {
		return nil, apperr.New(apperr.NotFound, fmt.Sprintf("bid %s not found", bidID))
	}

	switch {
	case caller.Admin:
	case caller.UserID == bid.BidderUID:
	case caller.UserID == auction.SellerUID && auction.Status == models.AuctionClosed:
	default:
		s.Log.LogSecurity("BID_ACCESS", fmt.Sprintf("user %s denied access to bid %s", caller.UserID, bidID))
		return nil, apperr.New(apperr.PermissionDenied, "you cannot view this bid")
	}

	return bid, nil
}

// CloseExpiredAuctions sweeps open auctions whose deadline already passed.
// Run at startup: a restart loses armed Redis keys, so any deadline that
// expired while the service was down would otherwise never fire.
func (s *AuctionService) CloseExpiredAuctions() (int, error) {
	expired, err := s.DB.GetOpenAuctionsPastDeadline(time.Now())
	if err != nil {
		return 0, apperr.Wrap(apperr.Internal, "failed to list expired auctions", err)
	}

	closed := 0
	for _, a := range expired {
		if err := s.CloseAuction(a.AuctionID); err != nil {
			s.Log.Error("AUCTION", fmt.Sprintf("Catch-up close failed for %s: %v", a.AuctionID, err))
			continue
		}
		closed++
	}

	if closed > 0 {
		s.Log.LogAuction("SWEEP", "startup", fmt.Sprintf("closed %d overdue auction(s)", closed))
	}
	return closed, nil
}
