package services_test

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/agrilink/marketplace-backend/internal/domain/entities"
	"github.com/agrilink/marketplace-backend/internal/domain/repositories"
)

// Mocks shared by the service tests.

type MockBookingRepository struct {
	mock.Mock
}

func (m *MockBookingRepository) Create(ctx context.Context, booking *entities.Booking, entry entities.StatusHistoryEntry) error {
	args := m.Called(ctx, booking, entry)
	return args.Error(0)
}

func (m *MockBookingRepository) GetByID(ctx context.Context, id string) (*entities.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Booking), args.Error(1)
}

func (m *MockBookingRepository) FindSlotHolder(ctx context.Context, sellerID string, date time.Time, slotLabel string) (*entities.Booking, error) {
	args := m.Called(ctx, sellerID, date, slotLabel)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Booking), args.Error(1)
}

func (m *MockBookingRepository) UpdateStatus(ctx context.Context, id string, from, to entities.BookingStatus, update repositories.StatusUpdate) (bool, error) {
	args := m.Called(ctx, id, from, to, update)
	return args.Bool(0), args.Error(1)
}

func (m *MockBookingRepository) GetHistory(ctx context.Context, bookingID string) ([]entities.StatusHistoryEntry, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.StatusHistoryEntry), args.Error(1)
}

func (m *MockBookingRepository) ListByBuyer(ctx context.Context, buyerID string, filter repositories.BookingFilter) ([]*entities.Booking, error) {
	args := m.Called(ctx, buyerID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Booking), args.Error(1)
}

func (m *MockBookingRepository) ListBySeller(ctx context.Context, sellerID string, filter repositories.BookingFilter) ([]*entities.Booking, error) {
	args := m.Called(ctx, sellerID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Booking), args.Error(1)
}

func (m *MockBookingRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockRatingRepository struct {
	mock.Mock
}

func (m *MockRatingRepository) Create(ctx context.Context, rating *entities.Rating) error {
	args := m.Called(ctx, rating)
	return args.Error(0)
}

func (m *MockRatingRepository) GetByID(ctx context.Context, id string) (*entities.Rating, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Rating), args.Error(1)
}

func (m *MockRatingRepository) GetByBookingID(ctx context.Context, bookingID string) (*entities.Rating, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Rating), args.Error(1)
}

func (m *MockRatingRepository) CountSellerFingerprints(ctx context.Context, sellerID, fingerprint, excludeID string) (int, error) {
	args := m.Called(ctx, sellerID, fingerprint, excludeID)
	return args.Int(0), args.Error(1)
}

func (m *MockRatingRepository) CountBySubmitterSince(ctx context.Context, submitterNetID string, since time.Time) (int, error) {
	args := m.Called(ctx, submitterNetID, since)
	return args.Int(0), args.Error(1)
}

func (m *MockRatingRepository) ListBySeller(ctx context.Context, sellerID string, includeFlagged bool) ([]*entities.Rating, error) {
	args := m.Called(ctx, sellerID, includeFlagged)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Rating), args.Error(1)
}

func (m *MockRatingRepository) UpdateReview(ctx context.Context, id, review, fingerprint string, isFlagged bool, flagReason entities.FlagReason) error {
	args := m.Called(ctx, id, review, fingerprint, isFlagged, flagReason)
	return args.Error(0)
}

func (m *MockRatingRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, event *entities.NotificationEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type MockCacheProvider struct {
	mock.Mock
}

func (m *MockCacheProvider) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockCacheProvider) Set(ctx context.Context, key string, value []byte, expirationSeconds int) error {
	args := m.Called(ctx, key, value, expirationSeconds)
	return args.Error(0)
}

func (m *MockCacheProvider) SetNX(ctx context.Context, key string, value []byte, expirationSeconds int) (bool, error) {
	args := m.Called(ctx, key, value, expirationSeconds)
	return args.Bool(0), args.Error(1)
}

func (m *MockCacheProvider) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockCacheProvider) Exists(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}
