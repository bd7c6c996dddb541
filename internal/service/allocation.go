package service

import (
	"github.com/google/uuid"

	"go-warehouse-fulfillment/internal/model"
)

// allocate walks FIFO candidates and takes as much as each location can give
// until quantity is covered. taken holds units already promised per location
// by earlier lines of the same order and is not modified.
// It returns the plan and the uncovered remainder.
func allocate(candidates []model.FifoCandidate, quantity int, taken map[uuid.UUID]int) ([]model.LocationSuggestion, int) {
	remaining := quantity
	var plan []model.LocationSuggestion
	for _, c := range candidates {
		if remaining == 0 {
			break
		}
		available := c.Quantity - taken[c.LocationID]
		if available <= 0 {
			continue
		}
		slice := min(available, remaining)
		plan = append(plan, model.LocationSuggestion{
			LocationID:        c.LocationID,
			LocationCode:      c.LocationCode,
			QuantityAllocated: slice,
			LocationAvailable: available,
		})
		remaining -= slice
	}
	return plan, remaining
}
