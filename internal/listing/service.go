package listing

import (
	"fmt"
	"time"

	"hobbydork/internal/apperr"
	"hobbydork/internal/auth"
	"hobbydork/internal/logger"
	"hobbydork/internal/models"
	"hobbydork/internal/utils"
)

type DBLayer interface {
	GetListingByID(id string) (*models.Listing, error)
	CreateListing(listing models.Listing) error
	UpdateListingStatus(id string, status models.ListingStatus) error
	GetListingsByStore(storeID string) ([]models.Listing, error)
}

type OrderStore interface {
	CreateOrder(order models.Order) error
}

type ListingService struct {
	DB     DBLayer
	Orders OrderStore
	Log    *logger.Logger
}

func NewListingService(db DBLayer, orders OrderStore, log *logger.Logger) *ListingService {
	return &ListingService{DB: db, Orders: orders, Log: log}
}

func (s *ListingService) GetListing(id string) (*models.Listing, error) {
	listing, err := s.DB.GetListingByID(id)
	if err != nil {
		return nil, apperr.Wrap(apperr.NotFound, fmt.Sprintf("listing %s not found", id), err)
	}
	return listing, nil
}

// StartOrder opens a PENDING_PAYMENT order for a listing. The amount comes
// from the listing row, never the client, so a tampered request cannot
// discount itself.
func (s *ListingService) StartOrder(caller auth.Identity, listingID string) (*models.Order, error) {
	if caller.UserID == "" {
		return nil, apperr.New(apperr.Unauthenticated, "sign in to buy")
	}

	listing, err := s.DB.GetListingByID(listingID)
	if err != nil {
		return nil, apperr.Wrap(apperr.NotFound, fmt.Sprintf("listing %s not found", listingID), err)
	}
	if listing.Status != models.ListingActive {
		return nil, apperr.Newf(apperr.FailedPrecondition, "listing is %s", listing.Status)
	}
	if listing.SellerUID == caller.UserID {
		return nil, apperr.New(apperr.PermissionDenied, "you cannot buy your own listing")
	}

	order := models.Order{
		OrderID:     utils.GenerateID("order"),
		BuyerUID:    caller.UserID,
		SellerUID:   listing.SellerUID,
		ListingID:   listing.ListingID,
		Status:      models.OrderPendingPayment,
		AmountCents: listing.PriceCents,
		CreatedAt:   time.Now(),
	}
	if err := s.Orders.CreateOrder(order); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to create order", err)
	}

	s.Log.LogOrder("CREATE", order.OrderID, fmt.Sprintf("buyer %s, listing %s, %d cents", caller.UserID, listingID, order.AmountCents))
	return &order, nil
}

// MarkSold flips a listing to SOLD once its order is paid.
func (s *ListingService) MarkSold(listingID string) error {
	if listingID == "" {
		return nil
	}
	if err := s.DB.UpdateListingStatus(listingID, models.ListingSold); err != nil {
		return apperr.Wrap(apperr.Internal, "failed to mark listing sold", err)
	}
	return nil
}
