package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrilink/marketplace-backend/internal/adapters/database"
	"github.com/agrilink/marketplace-backend/internal/domain/entities"
	"github.com/agrilink/marketplace-backend/internal/domain/repositories"
	"github.com/agrilink/marketplace-backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/agrilink/marketplace-backend/pkg/errors"
)

var bookingCols = []string{
	"id", "reference_code", "buyer_id", "seller_id", "item",
	"quantity", "unit_price", "total_price", "slot_date", "slot_label",
	"status", "cancel_reason", "cancelled_by", "cancelled_at", "completed_at",
	"created_at", "updated_at",
}

func newBookingAdapter(t *testing.T) (repositories.BookingRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return database.NewBookingAdapter(postgres.NewClientFromDB(db)), mock
}

func sampleBooking() *entities.Booking {
	now := time.Now().UTC()
	return &entities.Booking{
		ID:            "bk-1",
		ReferenceCode: "BK-TEST0001",
		BuyerID:       "buyer-1",
		SellerID:      "seller-1",
		Item:          "Yellow Maize (50kg bags)",
		Quantity:      20,
		UnitPrice:     38500,
		TotalPrice:    770000,
		SlotDate:      time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC),
		SlotLabel:     entities.SlotMorning,
		Status:        entities.BookingStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func sampleEntry() entities.StatusHistoryEntry {
	return entities.StatusHistoryEntry{
		ID:        "h-1",
		BookingID: "bk-1",
		Status:    entities.BookingStatusPending,
		ActorID:   "buyer-1",
		ActorRole: entities.PartyBuyer,
		CreatedAt: time.Now().UTC(),
	}
}

func TestBookingAdapter_Create(t *testing.T) {
	t.Run("inserts booking and history in one transaction", func(t *testing.T) {
		adapter, mock := newBookingAdapter(t)

		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO "bookings"`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO "booking_status_history"`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := adapter.Create(context.Background(), sampleBooking(), sampleEntry())

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("maps slot claim violation to conflict", func(t *testing.T) {
		adapter, mock := newBookingAdapter(t)

		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO "bookings"`).WillReturnError(&pq.Error{
			Code:       "23505",
			Constraint: database.SlotClaimConstraint,
		})
		mock.ExpectRollback()

		err := adapter.Create(context.Background(), sampleBooking(), sampleEntry())

		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("other driver errors stay internal", func(t *testing.T) {
		adapter, mock := newBookingAdapter(t)

		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO "bookings"`).WillReturnError(&pq.Error{Code: "53300"})
		mock.ExpectRollback()

		err := adapter.Create(context.Background(), sampleBooking(), sampleEntry())

		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInternal))
	})
}

func TestBookingAdapter_GetByID(t *testing.T) {
	t.Run("missing booking is not found", func(t *testing.T) {
		adapter, mock := newBookingAdapter(t)

		mock.ExpectQuery(`SELECT .+ FROM "bookings"`).WillReturnRows(sqlmock.NewRows(bookingCols))

		_, err := adapter.GetByID(context.Background(), "missing")

		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
	})

	t.Run("scans nullable columns", func(t *testing.T) {
		adapter, mock := newBookingAdapter(t)

		now := time.Now().UTC()
		mock.ExpectQuery(`SELECT .+ FROM "bookings"`).WillReturnRows(
			sqlmock.NewRows(bookingCols).AddRow(
				"bk-1", "BK-TEST0001", "buyer-1", "seller-1", "Yellow Maize (50kg bags)",
				20.0, 38500.0, 770000.0, now, "morning",
				"cancelled", "truck broke down", "buyer-1", now, nil,
				now, now,
			))

		booking, err := adapter.GetByID(context.Background(), "bk-1")

		assert.NoError(t, err)
		assert.Equal(t, entities.BookingStatusCancelled, booking.Status)
		assert.Equal(t, "truck broke down", booking.CancelReason)
		assert.NotNil(t, booking.CancelledAt)
		assert.Nil(t, booking.CompletedAt)
	})
}

func TestBookingAdapter_FindSlotHolder(t *testing.T) {
	t.Run("free slot returns nil without error", func(t *testing.T) {
		adapter, mock := newBookingAdapter(t)

		mock.ExpectQuery(`SELECT .+ FROM "bookings"`).WillReturnRows(sqlmock.NewRows(bookingCols))

		holder, err := adapter.FindSlotHolder(context.Background(), "seller-1",
			time.Date(2026, 9, 14, 10, 30, 0, 0, time.UTC), entities.SlotMorning)

		assert.NoError(t, err)
		assert.Nil(t, holder)
	})

	t.Run("occupied slot returns the holder", func(t *testing.T) {
		adapter, mock := newBookingAdapter(t)

		now := time.Now().UTC()
		mock.ExpectQuery(`SELECT .+ FROM "bookings"`).WillReturnRows(
			sqlmock.NewRows(bookingCols).AddRow(
				"bk-1", "BK-TEST0001", "buyer-1", "seller-1", "Yellow Maize (50kg bags)",
				20.0, 38500.0, 770000.0, now, "morning",
				"pending", nil, nil, nil, nil,
				now, now,
			))

		holder, err := adapter.FindSlotHolder(context.Background(), "seller-1", now, entities.SlotMorning)

		assert.NoError(t, err)
		assert.Equal(t, "BK-TEST0001", holder.ReferenceCode)
	})
}

func TestBookingAdapter_UpdateStatus(t *testing.T) {
	update := repositories.StatusUpdate{Entry: sampleEntry()}

	t.Run("matching precondition flips status and appends history", func(t *testing.T) {
		adapter, mock := newBookingAdapter(t)

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "bookings"`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO "booking_status_history"`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		applied, err := adapter.UpdateStatus(context.Background(), "bk-1",
			entities.BookingStatusPending, entities.BookingStatusConfirmed, update)

		assert.NoError(t, err)
		assert.True(t, applied)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stale precondition matches no row and appends nothing", func(t *testing.T) {
		adapter, mock := newBookingAdapter(t)

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "bookings"`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		applied, err := adapter.UpdateStatus(context.Background(), "bk-1",
			entities.BookingStatusPending, entities.BookingStatusConfirmed, update)

		assert.NoError(t, err)
		assert.False(t, applied)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBookingAdapter_Delete(t *testing.T) {
	t.Run("removes history then booking", func(t *testing.T) {
		adapter, mock := newBookingAdapter(t)

		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM "booking_status_history"`).WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectExec(`DELETE FROM "bookings"`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		assert.NoError(t, adapter.Delete(context.Background(), "bk-1"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing booking is not found", func(t *testing.T) {
		adapter, mock := newBookingAdapter(t)

		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM "booking_status_history"`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`DELETE FROM "bookings"`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := adapter.Delete(context.Background(), "missing")

		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
	})

	t.Run("rated booking is invalid state, not internal", func(t *testing.T) {
		adapter, mock := newBookingAdapter(t)

		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM "booking_status_history"`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`DELETE FROM "bookings"`).WillReturnError(&pq.Error{
			Code:       "23503",
			Constraint: database.RatingBookingFKConstraint,
		})
		mock.ExpectRollback()

		err := adapter.Delete(context.Background(), "bk-rated")

		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvalidState))
		assert.Contains(t, err.Error(), "rating")
	})

	t.Run("other foreign key failures stay internal", func(t *testing.T) {
		adapter, mock := newBookingAdapter(t)

		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM "booking_status_history"`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`DELETE FROM "bookings"`).WillReturnError(&pq.Error{
			Code:       "23503",
			Constraint: "some_other_fkey",
		})
		mock.ExpectRollback()

		err := adapter.Delete(context.Background(), "bk-1")

		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInternal))
	})
}
