package entities

// DealerRatingAggregate is the derived per-seller rating summary. It is never
// authoritative: it must always be reproducible by recomputing from the live
// set of non-flagged ratings for the seller, and every recompute fully
// replaces the previous value.
type DealerRatingAggregate struct {
	SellerID     string      `json:"seller_id"`
	Average      float64     `json:"average"`
	TotalCount   int         `json:"total_count"`
	Distribution map[int]int `json:"distribution"`
}

// EmptyDealerRatingAggregate returns the aggregate for a seller with no
// non-flagged ratings.
func EmptyDealerRatingAggregate(sellerID string) *DealerRatingAggregate {
	return &DealerRatingAggregate{
		SellerID:     sellerID,
		Average:      0,
		TotalCount:   0,
		Distribution: map[int]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0},
	}
}
