package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/agrilink/marketplace-backend/internal/adapters/database"
	"github.com/agrilink/marketplace-backend/internal/domain/entities"
	"github.com/agrilink/marketplace-backend/internal/domain/repositories"
	"github.com/agrilink/marketplace-backend/internal/infrastructure/clients/postgres"
	"github.com/agrilink/marketplace-backend/pkg/config"
)

const migrationFile = "migrations/001_init.sql"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer pgClient.Close()

	ctx := context.Background()
	db := pgClient.DB()

	schema, err := os.ReadFile(migrationFile)
	if err != nil {
		log.Fatalf("Failed to read %s: %v", migrationFile, err)
	}
	if _, err := db.ExecContext(ctx, string(schema)); err != nil {
		log.Fatalf("Failed to apply schema: %v", err)
	}

	if os.Getenv("RESET_DB") == "true" {
		log.Println("RESET_DB=true detected, truncating tables before seeding")
		_, err := db.ExecContext(ctx, `
			TRUNCATE TABLE
				ratings,
				booking_status_history,
				bookings
			RESTART IDENTITY CASCADE
		`)
		if err != nil {
			log.Fatalf("Failed to reset tables: %v", err)
		}
	}

	bookingRepo := database.NewBookingAdapter(pgClient)
	ratingRepo := database.NewRatingAdapter(pgClient)

	buyers := []string{"buyer-amaka", "buyer-tunde", "buyer-chidi"}
	sellers := []string{"dealer-greenfield", "dealer-rivervalley"}

	type seedBooking struct {
		buyer     string
		seller    string
		item      string
		quantity  float64
		unitPrice float64
		dayOffset int
		slot      string
		status    entities.BookingStatus
		review    string
		stars     int
	}

	plan := []seedBooking{
		{buyers[0], sellers[0], "Yellow Maize (50kg bags)", 20, 38500, 2, entities.SlotMorning, entities.BookingStatusPending, "", 0},
		{buyers[1], sellers[0], "Soybeans (50kg bags)", 12, 52000, 3, entities.SlotAfternoon, entities.BookingStatusConfirmed, "", 0},
		{buyers[2], sellers[0], "Paddy Rice (tonnes)", 3, 410000, -5, entities.SlotMorning, entities.BookingStatusCompleted,
			"Grain was clean and well dried, loading was quick.", 5},
		{buyers[0], sellers[0], "Sorghum (50kg bags)", 15, 29000, -9, entities.SlotEvening, entities.BookingStatusCompleted,
			"Decent quality but we waited over an hour at the gate.", 3},
		{buyers[1], sellers[1], "Day-old Broiler Chicks", 500, 950, 1, entities.SlotMorning, entities.BookingStatusConfirmed, "", 0},
		{buyers[2], sellers[1], "Catfish Fingerlings", 2000, 120, -3, entities.SlotAfternoon, entities.BookingStatusCompleted,
			"Healthy stock, exactly the count we paid for.", 4},
		{buyers[0], sellers[1], "Layer Feed (25kg bags)", 40, 17500, -1, entities.SlotMorning, entities.BookingStatusCancelled, "", 0},
	}

	for i, sb := range plan {
		booking := &entities.Booking{
			ID:            uuid.New().String(),
			ReferenceCode: "BK-" + uuid.New().String()[:8],
			BuyerID:       sb.buyer,
			SellerID:      sb.seller,
			Item:          sb.item,
			Quantity:      sb.quantity,
			UnitPrice:     sb.unitPrice,
			SlotDate:      time.Now().AddDate(0, 0, sb.dayOffset).Truncate(24 * time.Hour),
			SlotLabel:     sb.slot,
			Status:        entities.BookingStatusPending,
			CreatedAt:     time.Now(),
			UpdatedAt:     time.Now(),
		}
		booking.RecomputeTotal()

		entry := entities.StatusHistoryEntry{
			ID:        uuid.New().String(),
			BookingID: booking.ID,
			Status:    entities.BookingStatusPending,
			ActorID:   sb.buyer,
			ActorRole: entities.PartyBuyer,
			Note:      "booking created",
			CreatedAt: time.Now(),
		}
		if err := bookingRepo.Create(ctx, booking, entry); err != nil {
			log.Printf("Failed to create booking %s: %v", booking.ReferenceCode, err)
			continue
		}

		if err := advanceTo(ctx, bookingRepo, booking, sb.status); err != nil {
			log.Printf("Failed to advance booking %s to %s: %v", booking.ReferenceCode, sb.status, err)
			continue
		}

		if sb.stars > 0 {
			rating := &entities.Rating{
				ID:             uuid.New().String(),
				BookingID:      booking.ID,
				SellerID:       booking.SellerID,
				BuyerID:        booking.BuyerID,
				Stars:          sb.stars,
				Review:         sb.review,
				Fingerprint:    entities.ReviewFingerprint(sb.review),
				FlagReason:     entities.FlagReasonNone,
				SubmitterNetID: fmt.Sprintf("203.0.113.%d", i+10),
				CreatedAt:      time.Now(),
				UpdatedAt:      time.Now(),
			}
			if err := ratingRepo.Create(ctx, rating); err != nil {
				log.Printf("Failed to create rating for %s: %v", booking.ReferenceCode, err)
			}
		}
	}

	log.Println("Seeding completed successfully")
}

// advanceTo walks the booking along the status machine one edge at a time so
// the seeded history reads like a real lifecycle.
func advanceTo(ctx context.Context, repo repositories.BookingRepository, booking *entities.Booking, target entities.BookingStatus) error {
	paths := map[entities.BookingStatus][]entities.BookingStatus{
		entities.BookingStatusPending:    {},
		entities.BookingStatusConfirmed:  {entities.BookingStatusConfirmed},
		entities.BookingStatusRejected:   {entities.BookingStatusRejected},
		entities.BookingStatusCancelled:  {entities.BookingStatusCancelled},
		entities.BookingStatusInProgress: {entities.BookingStatusConfirmed, entities.BookingStatusInProgress},
		entities.BookingStatusCompleted:  {entities.BookingStatusConfirmed, entities.BookingStatusCompleted},
	}

	current := booking.Status
	for _, next := range paths[target] {
		update := repositories.StatusUpdate{
			Entry: entities.StatusHistoryEntry{
				ID:        uuid.New().String(),
				BookingID: booking.ID,
				Status:    next,
				ActorID:   booking.SellerID,
				ActorRole: entities.PartySeller,
				CreatedAt: time.Now(),
			},
		}
		switch next {
		case entities.BookingStatusCancelled:
			now := time.Now()
			update.CancelReason = "buyer requested cancellation"
			update.CancelledBy = booking.BuyerID
			update.CancelledAt = &now
			update.Entry.ActorID = booking.BuyerID
			update.Entry.ActorRole = entities.PartyBuyer
			update.Entry.Note = update.CancelReason
		case entities.BookingStatusCompleted:
			now := time.Now()
			update.CompletedAt = &now
		}

		applied, err := repo.UpdateStatus(ctx, booking.ID, current, next, update)
		if err != nil {
			return err
		}
		if !applied {
			log.Printf("Status update %s -> %s matched no row for %s", current, next, booking.ReferenceCode)
			return nil
		}
		current = next
	}
	booking.Status = current
	return nil
}
