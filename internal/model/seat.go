package model

// SeatAvailability is one row of the seat inventory snapshot for an
// event.  Available is derived from the absence of an active ticket and
// is advisory once it leaves the durable store.
type SeatAvailability struct {
	SeatID     string `json:"seat_id"`
	Section    string `json:"section"`
	Row        int    `json:"row"`
	Number     int    `json:"number"`
	SeatType   string `json:"seat_type"`
	PriceCents int64  `json:"price_cents"`
	Available  bool   `json:"available"`
}
