package catalog

import "roombook/internal/models"

// Seed returns the demo resources served while no catalog has been provisioned.
// Each call returns fresh values.
func Seed() []*models.Resource {
	return []*models.Resource{
		{
			ID:             "huddle-room",
			Name:           "Huddle Room",
			Capacity:       4,
			BaseHourlyRate: 35,
			Amenities:      []string{"tv", "whiteboard"},
		},
		{
			ID:             "conf-a",
			Name:           "Conference Room A",
			Capacity:       8,
			BaseHourlyRate: 50,
			Amenities:      []string{"projector", "whiteboard", "video-conferencing"},
		},
		{
			ID:             "board-room",
			Name:           "Board Room",
			Capacity:       12,
			BaseHourlyRate: 75,
			Amenities:      []string{"projector", "video-conferencing", "catering"},
		},
		{
			ID:             "training-hall",
			Name:           "Training Hall",
			Capacity:       20,
			BaseHourlyRate: 100,
			Amenities:      []string{"projector", "sound-system", "stage"},
		},
	}
}
