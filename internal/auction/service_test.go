package auction_test

import (
	"errors"
	"sort"
	"testing"
	"time"

	"hobbydork/internal/apperr"
	"hobbydork/internal/auction"
	"hobbydork/internal/auth"
	"hobbydork/internal/config"
	"hobbydork/internal/fees"
	"hobbydork/internal/logger"
	"hobbydork/internal/models"

	"github.com/stripe/stripe-go/v82"
)

// Mock implementations for testing

type MockAuctionDB struct {
	auctions     map[string]*models.BlindBidAuction
	bids         map[string]*models.Bid
	shouldFailOn string
	errorMsg     string
}

func NewMockAuctionDB() *MockAuctionDB {
	return &MockAuctionDB{
		auctions: make(map[string]*models.BlindBidAuction),
		bids:     make(map[string]*models.Bid),
	}
}

func (m *MockAuctionDB) CreateAuction(a models.BlindBidAuction) error {
	if m.shouldFailOn == "CreateAuction" {
		return errors.New(m.errorMsg)
	}
	m.auctions[a.AuctionID] = &a
	return nil
}

func (m *MockAuctionDB) GetAuctionByID(id string) (*models.BlindBidAuction, error) {
	if m.shouldFailOn == "GetAuctionByID" {
		return nil, errors.New(m.errorMsg)
	}
	a, exists := m.auctions[id]
	if !exists {
		return nil, errors.New("auction not found")
	}
	return a, nil
}

func (m *MockAuctionDB) GetAuctionsBySeller(sellerUID string) ([]models.BlindBidAuction, error) {
	var out []models.BlindBidAuction
	for _, a := range m.auctions {
		if a.SellerUID == sellerUID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *MockAuctionDB) GetOpenAuctionsPastDeadline(now time.Time) ([]models.BlindBidAuction, error) {
	var out []models.BlindBidAuction
	for _, a := range m.auctions {
		if a.Status == models.AuctionOpen && !a.EndsAt.After(now) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *MockAuctionDB) UpdateAuction(a models.BlindBidAuction) error {
	if m.shouldFailOn == "UpdateAuction" {
		return errors.New(m.errorMsg)
	}
	if _, exists := m.auctions[a.AuctionID]; !exists {
		return errors.New("auction not found")
	}
	m.auctions[a.AuctionID] = &a
	return nil
}

func (m *MockAuctionDB) CreateBid(b models.Bid) error {
	if m.shouldFailOn == "CreateBid" {
		return errors.New(m.errorMsg)
	}
	m.bids[b.BidID] = &b
	return nil
}

func (m *MockAuctionDB) GetBidByID(id string) (*models.Bid, error) {
	b, exists := m.bids[id]
	if !exists {
		return nil, errors.New("bid not found")
	}
	bid := *b
	return &bid, nil
}

func (m *MockAuctionDB) GetBidsByAuction(auctionID string) ([]models.Bid, error) {
	var out []models.Bid
	for _, b := range m.bids {
		if b.AuctionID == auctionID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (m *MockAuctionDB) GetHighestAuthorizedBid(auctionID string) (*models.Bid, error) {
	if m.shouldFailOn == "GetHighestAuthorizedBid" {
		return nil, errors.New(m.errorMsg)
	}
	var candidates []*models.Bid
	for _, b := range m.bids {
		if b.AuctionID == auctionID && b.Status == models.BidAuthorized {
			candidates = append(candidates, b)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Amount != candidates[j].Amount {
			return candidates[i].Amount > candidates[j].Amount
		}
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})
	top := *candidates[0]
	return &top, nil
}

func (m *MockAuctionDB) UpdateBidStatus(bidID string, status models.BidStatus) error {
	b, exists := m.bids[bidID]
	if !exists {
		return errors.New("bid not found")
	}
	b.Status = status
	return nil
}

func (m *MockAuctionDB) DeleteBidsForAuction(auctionID string) (int, error) {
	if m.shouldFailOn == "DeleteBidsForAuction" {
		return 0, errors.New(m.errorMsg)
	}
	deleted := 0
	for id, b := range m.bids {
		if b.AuctionID == auctionID {
			delete(m.bids, id)
			deleted++
		}
	}
	return deleted, nil
}

type MockUserDirectory struct {
	users map[string]*models.User
}

func (m *MockUserDirectory) GetUserByID(uid string) (*models.User, error) {
	u, exists := m.users[uid]
	if !exists {
		return nil, errors.New("user not found")
	}
	return u, nil
}

type MockStripeGateway struct {
	intents        []int64
	captured       []string
	cancelled      []string
	failCaptureFor map[string]bool
	shouldFailOn   string
	errorMsg       string
	counter        int
}

func NewMockStripeGateway() *MockStripeGateway {
	return &MockStripeGateway{failCaptureFor: make(map[string]bool)}
}

func (m *MockStripeGateway) newIntent(amountCents int64) *stripe.PaymentIntent {
	m.counter++
	m.intents = append(m.intents, amountCents)
	return &stripe.PaymentIntent{
		ID:           "pi_" + string(rune('a'+m.counter-1)),
		ClientSecret: "cs_test",
		Amount:       amountCents,
	}
}

func (m *MockStripeGateway) CreatePaymentIntent(amountCents int64, metadata map[string]string) (*stripe.PaymentIntent, error) {
	if m.shouldFailOn == "CreatePaymentIntent" {
		return nil, errors.New(m.errorMsg)
	}
	return m.newIntent(amountCents), nil
}

func (m *MockStripeGateway) CreateManualCaptureIntent(amountCents int64, metadata map[string]string) (*stripe.PaymentIntent, error) {
	if m.shouldFailOn == "CreateManualCaptureIntent" {
		return nil, errors.New(m.errorMsg)
	}
	return m.newIntent(amountCents), nil
}

func (m *MockStripeGateway) CapturePaymentIntent(paymentIntentID string) error {
	if m.failCaptureFor[paymentIntentID] {
		return errors.New("card declined at capture")
	}
	m.captured = append(m.captured, paymentIntentID)
	return nil
}

func (m *MockStripeGateway) CancelPaymentIntent(paymentIntentID string) error {
	m.cancelled = append(m.cancelled, paymentIntentID)
	return nil
}

type MockDeadlineStore struct {
	armed   map[string]time.Duration
	cleared []string
}

func NewMockDeadlineStore() *MockDeadlineStore {
	return &MockDeadlineStore{armed: make(map[string]time.Duration)}
}

func (m *MockDeadlineStore) ArmDeadline(auctionID string, ttl time.Duration) (bool, error) {
	if _, exists := m.armed[auctionID]; exists {
		return false, nil
	}
	m.armed[auctionID] = ttl
	return true, nil
}

func (m *MockDeadlineStore) DeadlineArmed(auctionID string) (bool, error) {
	_, exists := m.armed[auctionID]
	return exists, nil
}

func (m *MockDeadlineStore) ClearDeadline(auctionID string) error {
	delete(m.armed, auctionID)
	m.cleared = append(m.cleared, auctionID)
	return nil
}

type MockAuctionNotifier struct {
	liveAuctions []string
}

func (m *MockAuctionNotifier) AuctionLive(a *models.BlindBidAuction) {
	m.liveAuctions = append(m.liveAuctions, a.AuctionID)
}

func setupAuctionService() (*auction.AuctionService, *MockAuctionDB, *MockStripeGateway, *MockDeadlineStore, *MockAuctionNotifier) {
	db := NewMockAuctionDB()
	users := &MockUserDirectory{users: map[string]*models.User{
		"seller-gold":   {UserID: "seller-gold", IsSeller: true, SellerTier: models.TierGold},
		"seller-silver": {UserID: "seller-silver", IsSeller: true, SellerTier: models.TierSilver},
		"seller-bronze": {UserID: "seller-bronze", IsSeller: true, SellerTier: models.TierBronze},
		"buyer-1":       {UserID: "buyer-1"},
	}}
	gateway := NewMockStripeGateway()
	deadline := NewMockDeadlineStore()
	notifier := &MockAuctionNotifier{}
	cfg := config.AuctionConfig{Duration: 24 * time.Hour, BidDeleteBatchSize: 100, SpotlightWindow: 7 * 24 * time.Hour}
	svc := auction.NewAuctionService(db, users, gateway, deadline, notifier, logger.NewLogger(), cfg)
	return svc, db, gateway, deadline, notifier
}

func seedAuction(db *MockAuctionDB, status models.AuctionStatus) *models.BlindBidAuction {
	a := models.BlindBidAuction{
		AuctionID:  "auction-1",
		SellerUID:  "seller-gold",
		Title:      "Sealed booster box",
		Status:     status,
		SellerTier: models.TierGold,
		CreatedAt:  time.Now(),
		EndsAt:     time.Now().Add(24 * time.Hour),
	}
	db.CreateAuction(a)
	return db.auctions["auction-1"]
}

func seedBid(db *MockAuctionDB, bidID, bidderUID string, amount float64, status models.BidStatus, intentID string) {
	db.bids[bidID] = &models.Bid{
		BidID:                 bidID,
		AuctionID:             "auction-1",
		BidderUID:             bidderUID,
		Amount:                amount,
		Status:                status,
		StripePaymentIntentID: intentID,
		CreatedAt:             time.Now(),
	}
}

func TestCreateAuctionChargesTierFee(t *testing.T) {
	svc, db, gateway, _, _ := setupAuctionService()

	resp, err := svc.CreateAuction(auth.Identity{UserID: "seller-silver", EmailVerified: true}, models.CreateAuctionRequest{Title: "Graded rookie card"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if resp.PaymentIntentClientSecret == "" {
		t.Error("Expected a client secret for the fee payment")
	}

	if len(gateway.intents) != 1 || gateway.intents[0] != fees.SilverAuctionFeeCents {
		t.Errorf("Expected a %d cent intent, got %v", fees.SilverAuctionFeeCents, gateway.intents)
	}

	a, err := db.GetAuctionByID(resp.AuctionID)
	if err != nil {
		t.Fatalf("Expected auction to be persisted: %v", err)
	}
	if a.Status != models.AuctionPendingPayment {
		t.Errorf("Expected PENDING_PAYMENT, got %s", a.Status)
	}
	if a.FlatFeePaid {
		t.Error("Fee must not be marked paid before the webhook confirms it")
	}
	if a.AuctionFeeCents != fees.SilverAuctionFeeCents {
		t.Errorf("Expected fee %d, got %d", fees.SilverAuctionFeeCents, a.AuctionFeeCents)
	}
}

func TestCreateAuctionBlocksBronzeSellers(t *testing.T) {
	svc, _, gateway, _, _ := setupAuctionService()

	_, err := svc.CreateAuction(auth.Identity{UserID: "seller-bronze", EmailVerified: true}, models.CreateAuctionRequest{Title: "Vintage lot"})
	if apperr.CodeOf(err) != apperr.FailedPrecondition {
		t.Errorf("Expected failed-precondition for bronze seller, got %v", err)
	}
	if len(gateway.intents) != 0 {
		t.Error("No payment intent should be created for a blocked tier")
	}
}

func TestCreateAuctionRequiresSeller(t *testing.T) {
	svc, _, _, _, _ := setupAuctionService()

	_, err := svc.CreateAuction(auth.Identity{UserID: "buyer-1", EmailVerified: true}, models.CreateAuctionRequest{Title: "Not a seller"})
	if apperr.CodeOf(err) != apperr.PermissionDenied {
		t.Errorf("Expected permission-denied, got %v", err)
	}
}

func TestCreateAuctionRequiresVerifiedEmail(t *testing.T) {
	svc, _, gateway, _, _ := setupAuctionService()

	_, err := svc.CreateAuction(auth.Identity{UserID: "seller-gold"}, models.CreateAuctionRequest{Title: "Unverified"})
	if apperr.CodeOf(err) != apperr.FailedPrecondition {
		t.Errorf("Expected failed-precondition for unverified email, got %v", err)
	}
	if len(gateway.intents) != 0 {
		t.Error("No payment intent should be created without a verified email")
	}
}

func TestCreateAuctionCancelsIntentOnInsertFailure(t *testing.T) {
	svc, db, gateway, _, _ := setupAuctionService()
	db.shouldFailOn = "CreateAuction"
	db.errorMsg = "db down"

	_, err := svc.CreateAuction(auth.Identity{UserID: "seller-gold", EmailVerified: true}, models.CreateAuctionRequest{Title: "Doomed"})
	if apperr.CodeOf(err) != apperr.Internal {
		t.Errorf("Expected internal error, got %v", err)
	}
	if len(gateway.cancelled) != 1 {
		t.Errorf("Expected the orphaned intent to be cancelled, got %v", gateway.cancelled)
	}
}

func TestSubmitBidAuthorizesHold(t *testing.T) {
	svc, db, gateway, _, _ := setupAuctionService()
	seedAuction(db, models.AuctionOpen)

	resp, err := svc.SubmitBid(auth.Identity{UserID: "buyer-1", EmailVerified: true}, "auction-1", models.SubmitBidRequest{Amount: 125.50})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(gateway.intents) != 1 || gateway.intents[0] != 12550 {
		t.Errorf("Expected a 12550 cent manual-capture hold, got %v", gateway.intents)
	}

	bid, exists := db.bids[resp.BidID]
	if !exists {
		t.Fatal("Expected bid to be persisted")
	}
	if bid.Status != models.BidAuthorized {
		t.Errorf("Expected AUTHORIZED, got %s", bid.Status)
	}
}

func TestSubmitBidOnlyOnOpenAuctions(t *testing.T) {
	svc, db, _, _, _ := setupAuctionService()
	seedAuction(db, models.AuctionPendingPayment)

	_, err := svc.SubmitBid(auth.Identity{UserID: "buyer-1", EmailVerified: true}, "auction-1", models.SubmitBidRequest{Amount: 50})
	if apperr.CodeOf(err) != apperr.FailedPrecondition {
		t.Errorf("Expected failed-precondition, got %v", err)
	}
}

func TestSubmitBidRejectsOwnAuction(t *testing.T) {
	svc, db, _, _, _ := setupAuctionService()
	seedAuction(db, models.AuctionOpen)

	_, err := svc.SubmitBid(auth.Identity{UserID: "seller-gold", EmailVerified: true}, "auction-1", models.SubmitBidRequest{Amount: 50})
	if apperr.CodeOf(err) != apperr.PermissionDenied {
		t.Errorf("Expected permission-denied, got %v", err)
	}
}

func TestSubmitBidRequiresVerifiedEmail(t *testing.T) {
	svc, db, gateway, _, _ := setupAuctionService()
	seedAuction(db, models.AuctionOpen)

	_, err := svc.SubmitBid(auth.Identity{UserID: "buyer-1"}, "auction-1", models.SubmitBidRequest{Amount: 50})
	if apperr.CodeOf(err) != apperr.FailedPrecondition {
		t.Errorf("Expected failed-precondition for unverified email, got %v", err)
	}
	if len(gateway.intents) != 0 {
		t.Error("No hold should be authorized without a verified email")
	}
}

func TestSubmitBidRejectsNonPositiveAmount(t *testing.T) {
	svc, db, _, _, _ := setupAuctionService()
	seedAuction(db, models.AuctionOpen)

	_, err := svc.SubmitBid(auth.Identity{UserID: "buyer-1", EmailVerified: true}, "auction-1", models.SubmitBidRequest{Amount: 0})
	if apperr.CodeOf(err) != apperr.InvalidArgument {
		t.Errorf("Expected invalid-argument, got %v", err)
	}
}

func TestMarkFeePaidOpensAuction(t *testing.T) {
	svc, db, _, deadline, notifier := setupAuctionService()
	seedAuction(db, models.AuctionPendingPayment)

	a, err := svc.MarkFeePaid("auction-1")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if a.Status != models.AuctionOpen || !a.FlatFeePaid {
		t.Errorf("Expected OPEN with fee paid, got %s paid=%v", a.Status, a.FlatFeePaid)
	}
	if _, armed := deadline.armed["auction-1"]; !armed {
		t.Error("Expected the close deadline to be armed")
	}
	if len(notifier.liveAuctions) != 1 {
		t.Errorf("Expected an auction-live notification, got %v", notifier.liveAuctions)
	}
}

func TestMarkFeePaidIsIdempotent(t *testing.T) {
	svc, db, _, _, notifier := setupAuctionService()
	a := seedAuction(db, models.AuctionOpen)
	a.FlatFeePaid = true

	// Webhook retry on an already open auction is a no-op
	got, err := svc.MarkFeePaid("auction-1")
	if err != nil {
		t.Fatalf("Expected no error on retry, got %v", err)
	}
	if got.Status != models.AuctionOpen {
		t.Errorf("Expected OPEN, got %s", got.Status)
	}
	if len(notifier.liveAuctions) != 0 {
		t.Error("Expected no duplicate notification on retry")
	}
}

func TestMarkFeePaidRearmsLostDeadline(t *testing.T) {
	svc, db, _, deadline, notifier := setupAuctionService()
	a := seedAuction(db, models.AuctionOpen)
	a.FlatFeePaid = true

	// Open auction with a future end time but no deadline key in Redis.
	got, err := svc.MarkFeePaid("auction-1")
	if err != nil {
		t.Fatalf("Expected no error on retry, got %v", err)
	}
	if got.Status != models.AuctionOpen {
		t.Errorf("Expected OPEN, got %s", got.Status)
	}
	ttl, armed := deadline.armed["auction-1"]
	if !armed {
		t.Fatal("Expected the lost deadline to be re-armed")
	}
	if ttl <= 0 || ttl > 24*time.Hour {
		t.Errorf("Expected a ttl matching the remaining auction time, got %v", ttl)
	}
	if len(notifier.liveAuctions) != 0 {
		t.Error("Expected no duplicate notification on retry")
	}

	// A second retry finds the deadline armed and leaves it alone.
	before := deadline.armed["auction-1"]
	if _, err := svc.MarkFeePaid("auction-1"); err != nil {
		t.Fatalf("Expected no error on second retry, got %v", err)
	}
	if deadline.armed["auction-1"] != before {
		t.Error("Expected the armed deadline to be untouched")
	}
}

func TestMarkFeePaidRejectsClosedAuction(t *testing.T) {
	svc, db, _, _, _ := setupAuctionService()
	seedAuction(db, models.AuctionClosed)

	_, err := svc.MarkFeePaid("auction-1")
	if apperr.CodeOf(err) != apperr.FailedPrecondition {
		t.Errorf("Expected failed-precondition, got %v", err)
	}
}

func TestCloseAuctionCapturesWinnerReleasesRest(t *testing.T) {
	svc, db, gateway, _, _ := setupAuctionService()
	seedAuction(db, models.AuctionOpen)
	seedBid(db, "bid-low", "buyer-1", 50, models.BidAuthorized, "pi_low")
	seedBid(db, "bid-high", "buyer-2", 120, models.BidAuthorized, "pi_high")
	seedBid(db, "bid-mid", "buyer-3", 80, models.BidAuthorized, "pi_mid")

	if err := svc.CloseAuction("auction-1"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	a, _ := db.GetAuctionByID("auction-1")
	if a.Status != models.AuctionClosed {
		t.Errorf("Expected CLOSED, got %s", a.Status)
	}
	if a.WinnerBidID != "bid-high" || a.WinnerUID != "buyer-2" {
		t.Errorf("Expected bid-high to win, got %s/%s", a.WinnerBidID, a.WinnerUID)
	}

	if len(gateway.captured) != 1 || gateway.captured[0] != "pi_high" {
		t.Errorf("Expected only the winning hold captured, got %v", gateway.captured)
	}
	if len(gateway.cancelled) != 2 {
		t.Errorf("Expected 2 losing holds released, got %v", gateway.cancelled)
	}

	if db.bids["bid-high"].Status != models.BidCaptured {
		t.Errorf("Expected winner CAPTURED, got %s", db.bids["bid-high"].Status)
	}
	if db.bids["bid-low"].Status != models.BidReleased || db.bids["bid-mid"].Status != models.BidReleased {
		t.Error("Expected losing bids RELEASED")
	}
}

func TestCloseAuctionFallsBackWhenCaptureFails(t *testing.T) {
	svc, db, gateway, _, _ := setupAuctionService()
	seedAuction(db, models.AuctionOpen)
	seedBid(db, "bid-high", "buyer-2", 120, models.BidAuthorized, "pi_high")
	seedBid(db, "bid-mid", "buyer-3", 80, models.BidAuthorized, "pi_mid")
	gateway.failCaptureFor["pi_high"] = true

	if err := svc.CloseAuction("auction-1"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	a, _ := db.GetAuctionByID("auction-1")
	if a.WinnerBidID != "bid-mid" {
		t.Errorf("Expected next highest bid to win after capture failure, got %s", a.WinnerBidID)
	}
	if db.bids["bid-high"].Status != models.BidReleased {
		t.Errorf("Expected uncapturable bid RELEASED, got %s", db.bids["bid-high"].Status)
	}
	if db.bids["bid-mid"].Status != models.BidCaptured {
		t.Errorf("Expected fallback winner CAPTURED, got %s", db.bids["bid-mid"].Status)
	}
}

func TestCloseAuctionAbortsOnBidQueryFailure(t *testing.T) {
	svc, db, gateway, _, _ := setupAuctionService()
	seedAuction(db, models.AuctionOpen)
	seedBid(db, "bid-1", "buyer-1", 60, models.BidAuthorized, "pi_1")
	db.shouldFailOn = "GetHighestAuthorizedBid"
	db.errorMsg = "query timeout"

	err := svc.CloseAuction("auction-1")
	if apperr.CodeOf(err) != apperr.Internal {
		t.Fatalf("Expected internal error, got %v", err)
	}

	// The auction stays OPEN for a retry and the hold is untouched
	a, _ := db.GetAuctionByID("auction-1")
	if a.Status != models.AuctionOpen {
		t.Errorf("Expected auction to stay OPEN, got %s", a.Status)
	}
	if len(gateway.captured) != 0 || len(gateway.cancelled) != 0 {
		t.Errorf("Expected no holds touched, got captured=%v cancelled=%v", gateway.captured, gateway.cancelled)
	}
	if db.bids["bid-1"].Status != models.BidAuthorized {
		t.Errorf("Expected bid to stay AUTHORIZED, got %s", db.bids["bid-1"].Status)
	}
}

func TestCloseAuctionWithoutBids(t *testing.T) {
	svc, db, _, _, _ := setupAuctionService()
	seedAuction(db, models.AuctionOpen)

	if err := svc.CloseAuction("auction-1"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	a, _ := db.GetAuctionByID("auction-1")
	if a.Status != models.AuctionClosed || a.WinnerBidID != "" {
		t.Errorf("Expected CLOSED with no winner, got %s winner=%q", a.Status, a.WinnerBidID)
	}
}

func TestCloseAuctionIgnoresNonOpen(t *testing.T) {
	svc, db, gateway, _, _ := setupAuctionService()
	seedAuction(db, models.AuctionClosed)
	seedBid(db, "bid-1", "buyer-1", 50, models.BidAuthorized, "pi_1")

	if err := svc.CloseAuction("auction-1"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(gateway.captured) != 0 || len(gateway.cancelled) != 0 {
		t.Error("A non-open auction must not touch payment holds")
	}
}

func TestAdminRerunRequiresAdmin(t *testing.T) {
	svc, db, _, _, _ := setupAuctionService()
	seedAuction(db, models.AuctionClosed)

	err := svc.AdminRerunAuction(auth.Identity{UserID: "seller-gold", EmailVerified: true}, "auction-1", models.RerunAuctionRequest{})
	if apperr.CodeOf(err) != apperr.PermissionDenied {
		t.Errorf("Expected permission-denied for non-admin, got %v", err)
	}
}

func TestAdminRerunReopensClosedAuction(t *testing.T) {
	svc, db, _, deadline, _ := setupAuctionService()
	a := seedAuction(db, models.AuctionClosed)
	a.WinnerBidID = "bid-old"
	a.WinnerUID = "buyer-old"
	seedBid(db, "bid-old", "buyer-old", 40, models.BidCaptured, "pi_old")

	err := svc.AdminRerunAuction(auth.Identity{UserID: "admin-1", Admin: true}, "auction-1",
		models.RerunAuctionRequest{ClearBids: true})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	got, _ := db.GetAuctionByID("auction-1")
	if got.Status != models.AuctionOpen {
		t.Errorf("Expected OPEN, got %s", got.Status)
	}
	if got.WinnerBidID != "" || got.WinnerUID != "" {
		t.Error("Expected winner fields reset")
	}
	if len(db.bids) != 0 {
		t.Errorf("Expected previous bids cleared, got %d", len(db.bids))
	}
	if _, armed := deadline.armed["auction-1"]; !armed {
		t.Error("Expected a fresh deadline armed")
	}
}

func TestAdminRerunOnlyClosedAuctions(t *testing.T) {
	svc, db, _, _, _ := setupAuctionService()
	seedAuction(db, models.AuctionOpen)

	err := svc.AdminRerunAuction(auth.Identity{UserID: "admin-1", Admin: true}, "auction-1", models.RerunAuctionRequest{})
	if apperr.CodeOf(err) != apperr.FailedPrecondition {
		t.Errorf("Expected failed-precondition, got %v", err)
	}
}

func TestAdminRerunRejectsPastDeadline(t *testing.T) {
	svc, db, _, _, _ := setupAuctionService()
	seedAuction(db, models.AuctionClosed)

	err := svc.AdminRerunAuction(auth.Identity{UserID: "admin-1", Admin: true}, "auction-1",
		models.RerunAuctionRequest{NewEndsAt: time.Now().Add(-time.Hour)})
	if apperr.CodeOf(err) != apperr.InvalidArgument {
		t.Errorf("Expected invalid-argument, got %v", err)
	}
}

func TestListSellerAuctionsOnlyOwn(t *testing.T) {
	svc, db, _, _, _ := setupAuctionService()
	seedAuction(db, models.AuctionOpen)
	db.CreateAuction(models.BlindBidAuction{AuctionID: "auction-2", SellerUID: "seller-silver", Status: models.AuctionOpen})

	auctions, err := svc.ListSellerAuctions(auth.Identity{UserID: "seller-gold", EmailVerified: true})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(auctions) != 1 || auctions[0].AuctionID != "auction-1" {
		t.Errorf("Expected only the caller's auction, got %v", auctions)
	}

	if _, err := svc.ListSellerAuctions(auth.Identity{}); apperr.CodeOf(err) != apperr.Unauthenticated {
		t.Errorf("Expected unauthenticated, got %v", err)
	}
}

func TestGetBidVisibility(t *testing.T) {
	svc, db, _, _, _ := setupAuctionService()
	seedAuction(db, models.AuctionOpen)
	seedBid(db, "bid-1", "buyer-1", 50, models.BidAuthorized, "pi_1")

	// The bidder sees their own bid
	bid, err := svc.GetBid(auth.Identity{UserID: "buyer-1", EmailVerified: true}, "auction-1", "bid-1")
	if err != nil {
		t.Fatalf("Expected bidder access, got %v", err)
	}
	if bid.Amount != 50 {
		t.Errorf("Expected amount 50, got %v", bid.Amount)
	}

	// The seller stays blind while the auction is open
	_, err = svc.GetBid(auth.Identity{UserID: "seller-gold", EmailVerified: true}, "auction-1", "bid-1")
	if apperr.CodeOf(err) != apperr.PermissionDenied {
		t.Errorf("Expected permission-denied for seller on open auction, got %v", err)
	}

	// Closed auction opens the seller's view
	db.auctions["auction-1"].Status = models.AuctionClosed
	if _, err := svc.GetBid(auth.Identity{UserID: "seller-gold", EmailVerified: true}, "auction-1", "bid-1"); err != nil {
		t.Errorf("Expected seller access after close, got %v", err)
	}

	// A bid id from a different auction is not found
	_, err = svc.GetBid(auth.Identity{UserID: "buyer-1", EmailVerified: true}, "auction-other", "bid-1")
	if apperr.CodeOf(err) != apperr.NotFound {
		t.Errorf("Expected not-found, got %v", err)
	}
}

func TestCloseExpiredAuctionsSweep(t *testing.T) {
	svc, db, gateway, _, _ := setupAuctionService()
	a := seedAuction(db, models.AuctionOpen)
	a.EndsAt = time.Now().Add(-time.Minute)
	db.CreateAuction(models.BlindBidAuction{
		AuctionID: "auction-live",
		SellerUID: "seller-silver",
		Status:    models.AuctionOpen,
		EndsAt:    time.Now().Add(time.Hour),
	})
	seedBid(db, "bid-1", "buyer-1", 60, models.BidAuthorized, "pi_1")

	closed, err := svc.CloseExpiredAuctions()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if closed != 1 {
		t.Errorf("Expected 1 auction closed, got %d", closed)
	}

	got, _ := db.GetAuctionByID("auction-1")
	if got.Status != models.AuctionClosed || got.WinnerBidID != "bid-1" {
		t.Errorf("Expected overdue auction settled, got %s winner=%q", got.Status, got.WinnerBidID)
	}
	if len(gateway.captured) != 1 || gateway.captured[0] != "pi_1" {
		t.Errorf("Expected the winning hold captured, got %v", gateway.captured)
	}

	live, _ := db.GetAuctionByID("auction-live")
	if live.Status != models.AuctionOpen {
		t.Errorf("Expected the live auction untouched, got %s", live.Status)
	}
}

func TestSetAuctionImageOwnerOnly(t *testing.T) {
	svc, db, _, _, _ := setupAuctionService()
	seedAuction(db, models.AuctionOpen)

	err := svc.SetAuctionImage(auth.Identity{UserID: "buyer-1", EmailVerified: true}, "auction-1", "https://img.example/box.jpg")
	if apperr.CodeOf(err) != apperr.PermissionDenied {
		t.Errorf("Expected permission-denied, got %v", err)
	}

	if err := svc.SetAuctionImage(auth.Identity{UserID: "seller-gold", EmailVerified: true}, "auction-1", "https://img.example/box.jpg"); err != nil {
		t.Fatalf("Expected owner to set image, got %v", err)
	}
	a, _ := db.GetAuctionByID("auction-1")
	if a.ImageURL != "https://img.example/box.jpg" {
		t.Errorf("Expected image URL to be saved, got %q", a.ImageURL)
	}
}
