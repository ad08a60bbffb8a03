package seller

import (
	"fmt"
	"time"

	"hobbydork/internal/apperr"
	"hobbydork/internal/auth"
	"hobbydork/internal/logger"
	"hobbydork/internal/models"
	"hobbydork/internal/utils"

	"github.com/stripe/stripe-go/v82"
)

type DBLayer interface {
	GetUserByID(uid string) (*models.User, error)
	UpdateUser(user models.User) error
	SetTierWithAudit(uid string, newTier models.SellerTier, changedBy, reason string) error
	GetStoreByID(storeID string) (*models.Store, error)
	GetStoreByOwner(ownerUID string) (*models.Store, error)
	CreateStore(store models.Store) error
	GetApplicationByID(id string) (*models.SellerApplication, error)
	CreateApplication(app models.SellerApplication) error
	DecideApplication(applicationID string, approved bool, decidedBy string) error
}

type StripeGateway interface {
	CreateExpressAccount(email string) (*stripe.Account, error)
	CreateAccountLink(accountID, appBaseURL string) (string, error)
	GetAccountInfo(accountID string) (*models.StripeAccountInfo, error)
	GetPayouts(accountID string) (*models.StripePayoutsResponse, error)
}

type SellerService struct {
	DB     DBLayer
	Stripe StripeGateway
	Log    *logger.Logger
}

func NewSellerService(db DBLayer, gateway StripeGateway, log *logger.Logger) *SellerService {
	return &SellerService{DB: db, Stripe: gateway, Log: log}
}

// CreateStripeOnboarding starts (or resumes) Connect onboarding for a seller.
// An existing account ID is reused so repeat calls never orphan accounts.
func (s *SellerService) CreateStripeOnboarding(caller auth.Identity, appBaseURL string) (*models.OnboardingResponse, error) {
	if caller.UserID == "" {
		return nil, apperr.New(apperr.Unauthenticated, "sign in to start onboarding")
	}
	if !caller.EmailVerified {
		return nil, apperr.New(apperr.FailedPrecondition, "verify your email before onboarding")
	}

	user, err := s.DB.GetUserByID(caller.UserID)
	if err != nil {
		return nil, apperr.Wrap(apperr.NotFound, "user record not found", err)
	}

	accountID := user.StripeAccountID
	if accountID == "" {
		account, err := s.Stripe.CreateExpressAccount(user.Email)
		if err != nil {
			return nil, apperr.Wrap(apperr.Internal, "failed to create Stripe account", err)
		}
		accountID = account.ID

		user.StripeAccountID = accountID
		if err := s.DB.UpdateUser(*user); err != nil {
			return nil, apperr.Wrap(apperr.Internal, "failed to save Stripe account id", err)
		}
		s.Log.Info("SELLER", fmt.Sprintf("Created Stripe account %s for user %s", accountID, caller.UserID))
	} else {
		s.Log.Info("SELLER", fmt.Sprintf("Reusing Stripe account %s for user %s", accountID, caller.UserID))
	}

	url, err := s.Stripe.CreateAccountLink(accountID, appBaseURL)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to create onboarding link", err)
	}

	return &models.OnboardingResponse{URL: url}, nil
}

// FinalizeSeller promotes an onboarded user to an active seller with a
// storefront. The store ID is the slug of the display name; finalize fails
// until Stripe reports details_submitted.
func (s *SellerService) FinalizeSeller(caller auth.Identity, storeName string) (*models.FinalizeSellerResponse, error) {
	if caller.UserID == "" {
		return nil, apperr.New(apperr.Unauthenticated, "sign in to finalize onboarding")
	}

	user, err := s.DB.GetUserByID(caller.UserID)
	if err != nil {
		return nil, apperr.Wrap(apperr.NotFound, "user record not found", err)
	}
	if user.StripeAccountID == "" {
		return nil, apperr.New(apperr.FailedPrecondition, "start Stripe onboarding first")
	}

	info, err := s.Stripe.GetAccountInfo(user.StripeAccountID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to check Stripe account", err)
	}
	if !info.DetailsSubmitted {
		return nil, apperr.New(apperr.FailedPrecondition, "Stripe onboarding is not complete")
	}

	if storeName == "" {
		storeName = user.DisplayName
	}
	storeID := utils.Slugify(storeName)
	if storeID == "" {
		return nil, apperr.New(apperr.InvalidArgument, "store name produces an empty slug")
	}

	// Create-if-absent: finalize retries after a partial failure reuse the
	// existing store instead of erroring.
	if existing, err := s.DB.GetStoreByOwner(caller.UserID); err == nil {
		s.Log.Info("SELLER", fmt.Sprintf("User %s already has store %s", caller.UserID, existing.StoreID))
		return &models.FinalizeSellerResponse{OK: true, StoreID: existing.StoreID}, nil
	}

	if _, err := s.DB.GetStoreByID(storeID); err == nil {
		return nil, apperr.Newf(apperr.FailedPrecondition, "store name %q is taken", storeName)
	}

	store := models.Store{
		StoreID:     storeID,
		OwnerUID:    caller.UserID,
		DisplayName: storeName,
		CreatedAt:   time.Now(),
	}
	if err := s.DB.CreateStore(store); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to create store", err)
	}

	user.IsSeller = true
	user.SellerStatus = models.SellerActive
	if user.SellerTier == "" {
		user.SellerTier = models.TierBronze
	}
	if err := s.DB.UpdateUser(*user); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to activate seller", err)
	}

	s.Log.Info("SELLER", fmt.Sprintf("User %s finalized as seller with store %s", caller.UserID, storeID))
	return &models.FinalizeSellerResponse{OK: true, StoreID: storeID}, nil
}

// GetAccountStatus returns Connect onboarding state; owner or admin only.
func (s *SellerService) GetAccountStatus(caller auth.Identity, accountID string) (*models.StripeAccountInfo, error) {
	if err := s.authorizeAccountAccess(caller, accountID); err != nil {
		return nil, err
	}
	info, err := s.Stripe.GetAccountInfo(accountID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to fetch account info", err)
	}
	return info, nil
}

// GetPayouts returns balance and payout history; owner or admin only.
func (s *SellerService) GetPayouts(caller auth.Identity, accountID string) (*models.StripePayoutsResponse, error) {
	if err := s.authorizeAccountAccess(caller, accountID); err != nil {
		return nil, err
	}
	payouts, err := s.Stripe.GetPayouts(accountID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to fetch payouts", err)
	}
	return payouts, nil
}

func (s *SellerService) authorizeAccountAccess(caller auth.Identity, accountID string) error {
	if caller.UserID == "" {
		return apperr.New(apperr.Unauthenticated, "sign in first")
	}
	if caller.Admin {
		return nil
	}
	user, err := s.DB.GetUserByID(caller.UserID)
	if err != nil {
		return apperr.Wrap(apperr.NotFound, "user record not found", err)
	}
	if user.StripeAccountID != accountID {
		s.Log.LogSecurity("ACCOUNT_ACCESS", fmt.Sprintf("user %s tried to read account %s", caller.UserID, accountID))
		return apperr.New(apperr.PermissionDenied, "not your Stripe account")
	}
	return nil
}

// AdminSetTier changes a seller's tier; the audit row is written in the
// same transaction.
func (s *SellerService) AdminSetTier(caller auth.Identity, uid string, newTier models.SellerTier, reason string) error {
	if caller.UserID == "" {
		return apperr.New(apperr.Unauthenticated, "sign in first")
	}
	if !caller.Admin {
		return apperr.New(apperr.PermissionDenied, "admin only")
	}
	switch newTier {
	case models.TierBronze, models.TierSilver, models.TierGold:
	default:
		return apperr.Newf(apperr.InvalidArgument, "unknown tier %q", newTier)
	}

	if err := s.DB.SetTierWithAudit(uid, newTier, caller.UserID, reason); err != nil {
		return apperr.Wrap(apperr.Internal, "failed to change tier", err)
	}

	s.Log.Info("SELLER", fmt.Sprintf("Tier of %s set to %s by %s", uid, newTier, caller.UserID))
	return nil
}

// ApplyAsSeller files a seller application for the caller.
func (s *SellerService) ApplyAsSeller(caller auth.Identity) (*models.SellerApplication, error) {
	if caller.UserID == "" {
		return nil, apperr.New(apperr.Unauthenticated, "sign in to apply")
	}

	user, err := s.DB.GetUserByID(caller.UserID)
	if err != nil {
		return nil, apperr.Wrap(apperr.NotFound, "user record not found", err)
	}
	if user.IsSeller {
		return nil, apperr.New(apperr.FailedPrecondition, "you are already a seller")
	}

	app := models.SellerApplication{
		ApplicationID: utils.GenerateID("sellerapp"),
		UserID:        caller.UserID,
		Status:        models.ApplicationPending,
		CreatedAt:     time.Now(),
	}
	if err := s.DB.CreateApplication(app); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to file application", err)
	}

	s.Log.Info("SELLER", fmt.Sprintf("Seller application %s filed by %s", app.ApplicationID, caller.UserID))
	return &app, nil
}

// DecideApplication approves or rejects a pending seller application.
func (s *SellerService) DecideApplication(caller auth.Identity, applicationID string, approve bool) error {
	if caller.UserID == "" {
		return apperr.New(apperr.Unauthenticated, "sign in first")
	}
	if !caller.Admin {
		return apperr.New(apperr.PermissionDenied, "admin only")
	}

	app, err := s.DB.GetApplicationByID(applicationID)
	if err != nil {
		return apperr.Wrap(apperr.NotFound, fmt.Sprintf("application %s not found", applicationID), err)
	}
	if app.Status != models.ApplicationPending {
		return apperr.Newf(apperr.FailedPrecondition, "application already %s", app.Status)
	}

	if err := s.DB.DecideApplication(applicationID, approve, caller.UserID); err != nil {
		return apperr.Wrap(apperr.Internal, "failed to decide application", err)
	}

	verdict := "rejected"
	if approve {
		verdict = "approved"
	}
	s.Log.Info("SELLER", fmt.Sprintf("Application %s %s by %s", applicationID, verdict, caller.UserID))
	return nil
}
