package services

import (
	"errors"
	"fmt"
	"os"

	"hobbydork/internal/logger"
	"hobbydork/internal/models"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

var (
	ErrStripeAPIError         = errors.New("stripe API error")
	ErrStripeClientInitFailed = errors.New("failed to initialize Stripe client")
)

// StripeService handles integration with the Stripe payment gateway
type StripeService struct {
	client *client.API
	log    *logger.Logger
}

// NewStripeService creates a new instance of StripeService
func NewStripeService(log *logger.Logger) (*StripeService, error) {
	stripeKey := os.Getenv("STRIPE_SECRET_KEY")
	if stripeKey == "" {
		log.Error("STRIPE", "STRIPE_SECRET_KEY environment variable not set")
		return nil, ErrStripeClientInitFailed
	}

	sc := client.New(stripeKey, nil)
	if sc == nil {
		log.Error("STRIPE", "Failed to initialize Stripe client")
		return nil, ErrStripeClientInitFailed
	}

	log.Info("STRIPE", "Stripe client initialized successfully")
	return &StripeService{
		client: sc,
		log:    log,
	}, nil
}

// ---------------- PAYMENT INTENTS ----------------

// CreatePaymentIntent creates an auto-capture payment intent. Used for the
// auction listing fee: the client confirms it with the returned secret and
// the webhook flips the auction open on success.
func (s *StripeService) CreatePaymentIntent(amountCents int64, metadata map[string]string) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountCents),
		Currency: stripe.String(string(stripe.CurrencyUSD)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Metadata: metadata,
	}

	pi, err := s.client.PaymentIntents.New(params)
	if err != nil {
		s.log.Error("STRIPE", fmt.Sprintf("Failed to create payment intent: %v", err))
		return nil, fmt.Errorf("%w: %v", ErrStripeAPIError, err)
	}

	s.log.Info("STRIPE", fmt.Sprintf("Payment intent created: %s (%d cents)", pi.ID, amountCents))
	return pi, nil
}

// CreateManualCaptureIntent authorizes a charge without capturing it. Blind
// bids ride on this: the hold is captured only if the bid wins.
func (s *StripeService) CreateManualCaptureIntent(amountCents int64, metadata map[string]string) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(amountCents),
		Currency:      stripe.String(string(stripe.CurrencyUSD)),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Metadata: metadata,
	}

	pi, err := s.client.PaymentIntents.New(params)
	if err != nil {
		s.log.Error("STRIPE", fmt.Sprintf("Failed to create manual-capture intent: %v", err))
		return nil, fmt.Errorf("%w: %v", ErrStripeAPIError, err)
	}

	s.log.Info("STRIPE", fmt.Sprintf("Manual-capture intent created: %s (%d cents)", pi.ID, amountCents))
	return pi, nil
}

// CapturePaymentIntent captures a previously authorized intent.
func (s *StripeService) CapturePaymentIntent(paymentIntentID string) error {
	_, err := s.client.PaymentIntents.Capture(paymentIntentID, &stripe.PaymentIntentCaptureParams{})
	if err != nil {
		s.log.Error("STRIPE", fmt.Sprintf("Failed to capture intent %s: %v", paymentIntentID, err))
		return fmt.Errorf("%w: %v", ErrStripeAPIError, err)
	}
	s.log.Info("STRIPE", fmt.Sprintf("Captured payment intent %s", paymentIntentID))
	return nil
}

// CancelPaymentIntent releases an uncaptured authorization.
func (s *StripeService) CancelPaymentIntent(paymentIntentID string) error {
	_, err := s.client.PaymentIntents.Cancel(paymentIntentID, &stripe.PaymentIntentCancelParams{})
	if err != nil {
		s.log.Error("STRIPE", fmt.Sprintf("Failed to cancel intent %s: %v", paymentIntentID, err))
		return fmt.Errorf("%w: %v", ErrStripeAPIError, err)
	}
	s.log.Info("STRIPE", fmt.Sprintf("Cancelled payment intent %s", paymentIntentID))
	return nil
}

// ---------------- CHECKOUT SESSIONS ----------------

// CreateOrderCheckoutSession builds a hosted checkout page for a fixed-price
// order. The order ID travels in the payment intent metadata so the webhook
// can mark the order paid.
func (s *StripeService) CreateOrderCheckoutSession(req models.CheckoutSessionRequest, buyerUID string) (*stripe.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(string(stripe.CurrencyUSD)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.ListingTitle),
					},
					UnitAmount: stripe.Int64(req.AmountCents),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(req.AppBaseURL + "/orders/" + req.OrderID + "?checkout=success"),
		CancelURL:  stripe.String(req.AppBaseURL + "/orders/" + req.OrderID + "?checkout=cancelled"),
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{
				models.MetaOrderID:  req.OrderID,
				models.MetaBuyerUID: buyerUID,
			},
		},
	}

	session, err := s.client.CheckoutSessions.New(params)
	if err != nil {
		s.log.Error("STRIPE", fmt.Sprintf("Failed to create checkout session for order %s: %v", req.OrderID, err))
		return nil, fmt.Errorf("%w: %v", ErrStripeAPIError, err)
	}

	s.log.Info("STRIPE", fmt.Sprintf("Checkout session %s created for order %s", session.ID, req.OrderID))
	return session, nil
}

// CreateAuctionFeeCheckoutSession builds a hosted checkout page for the
// auction listing fee, as an alternative to the embedded payment intent flow.
func (s *StripeService) CreateAuctionFeeCheckoutSession(req models.AuctionFeeCheckoutRequest, sellerUID string) (*stripe.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(string(stripe.CurrencyUSD)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String("Auction listing fee: " + req.AuctionTitle),
					},
					UnitAmount: stripe.Int64(req.AmountCents),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(req.AppBaseURL + "/auctions/" + req.AuctionID + "?fee=paid"),
		CancelURL:  stripe.String(req.AppBaseURL + "/auctions/" + req.AuctionID + "?fee=cancelled"),
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{
				models.MetaAuctionID: req.AuctionID,
				models.MetaSellerUID: sellerUID,
				models.MetaType:      models.IntentTypeBlindBidderListing,
			},
		},
	}

	session, err := s.client.CheckoutSessions.New(params)
	if err != nil {
		s.log.Error("STRIPE", fmt.Sprintf("Failed to create fee checkout session for auction %s: %v", req.AuctionID, err))
		return nil, fmt.Errorf("%w: %v", ErrStripeAPIError, err)
	}

	s.log.Info("STRIPE", fmt.Sprintf("Fee checkout session %s created for auction %s", session.ID, req.AuctionID))
	return session, nil
}

// ---------------- CONNECT ACCOUNTS ----------------

// CreateExpressAccount provisions a new Stripe Connect express account for a
// seller.
func (s *StripeService) CreateExpressAccount(email string) (*stripe.Account, error) {
	params := &stripe.AccountParams{
		Type:  stripe.String(string(stripe.AccountTypeExpress)),
		Email: stripe.String(email),
		Capabilities: &stripe.AccountCapabilitiesParams{
			Transfers: &stripe.AccountCapabilitiesTransfersParams{
				Requested: stripe.Bool(true),
			},
		},
	}

	account, err := s.client.Accounts.New(params)
	if err != nil {
		s.log.Error("STRIPE", fmt.Sprintf("Failed to create express account: %v", err))
		return nil, fmt.Errorf("%w: %v", ErrStripeAPIError, err)
	}

	s.log.Info("STRIPE", fmt.Sprintf("Express account created: %s", account.ID))
	return account, nil
}

// CreateAccountLink returns the hosted onboarding URL for a Connect account.
func (s *StripeService) CreateAccountLink(accountID, appBaseURL string) (string, error) {
	params := &stripe.AccountLinkParams{
		Account:    stripe.String(accountID),
		RefreshURL: stripe.String(appBaseURL + "/seller/onboarding?refresh=1"),
		ReturnURL:  stripe.String(appBaseURL + "/seller/onboarding?complete=1"),
		Type:       stripe.String("account_onboarding"),
	}

	link, err := s.client.AccountLinks.New(params)
	if err != nil {
		s.log.Error("STRIPE", fmt.Sprintf("Failed to create account link for %s: %v", accountID, err))
		return "", fmt.Errorf("%w: %v", ErrStripeAPIError, err)
	}
	return link.URL, nil
}

// GetAccountInfo fetches onboarding status plus an express dashboard login
// link for a Connect account.
func (s *StripeService) GetAccountInfo(accountID string) (*models.StripeAccountInfo, error) {
	account, err := s.client.Accounts.GetByID(accountID, nil)
	if err != nil {
		s.log.Error("STRIPE", fmt.Sprintf("Failed to fetch account %s: %v", accountID, err))
		return nil, fmt.Errorf("%w: %v", ErrStripeAPIError, err)
	}

	info := &models.StripeAccountInfo{
		Email:            account.Email,
		DetailsSubmitted: account.DetailsSubmitted,
		ChargesEnabled:   account.ChargesEnabled,
	}

	// Dashboard links only exist for accounts that finished onboarding.
	if account.DetailsSubmitted {
		loginLink, err := s.client.LoginLinks.New(&stripe.LoginLinkParams{
			Account: stripe.String(accountID),
		})
		if err != nil {
			s.log.Warn("STRIPE", fmt.Sprintf("Failed to create login link for %s: %v", accountID, err))
		} else {
			info.DashboardURL = loginLink.URL
		}
	}

	return info, nil
}

// GetPayouts returns the balance and recent payouts for a Connect account.
func (s *StripeService) GetPayouts(accountID string) (*models.StripePayoutsResponse, error) {
	balanceParams := &stripe.BalanceParams{}
	balanceParams.SetStripeAccount(accountID)

	balance, err := s.client.Balance.Get(balanceParams)
	if err != nil {
		s.log.Error("STRIPE", fmt.Sprintf("Failed to fetch balance for %s: %v", accountID, err))
		return nil, fmt.Errorf("%w: %v", ErrStripeAPIError, err)
	}

	resp := &models.StripePayoutsResponse{}
	for _, available := range balance.Available {
		resp.Balance.AvailableCents += available.Amount
	}
	for _, pending := range balance.Pending {
		resp.Balance.PendingCents += pending.Amount
	}

	payoutParams := &stripe.PayoutListParams{}
	payoutParams.SetStripeAccount(accountID)
	payoutParams.Limit = stripe.Int64(20)

	iter := s.client.Payouts.List(payoutParams)
	for iter.Next() {
		p := iter.Payout()
		resp.Payouts = append(resp.Payouts, models.StripePayout{
			PayoutID:    p.ID,
			AmountCents: p.Amount,
			Currency:    string(p.Currency),
			Status:      string(p.Status),
			ArrivalDate: p.ArrivalDate,
		})
	}
	if err := iter.Err(); err != nil {
		s.log.Error("STRIPE", fmt.Sprintf("Failed to list payouts for %s: %v", accountID, err))
		return nil, fmt.Errorf("%w: %v", ErrStripeAPIError, err)
	}

	return resp, nil
}
