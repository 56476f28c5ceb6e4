package store

import (
	"context"
	"fmt"
	"log/slog"
)

var demoResidents = []Resident{
	{FullName: "Margaret Thompson", RoomNumber: "101", FamilyPhone: "5551234567"},
	{FullName: "Harold Jenkins", RoomNumber: "104", FamilyPhone: "5552345678"},
	{FullName: "Dorothy Williams", RoomNumber: "112", FamilyPhone: "5553456789", DietaryNotes: "Diabetic"},
	{FullName: "Walter Brooks", RoomNumber: "118"},
	{FullName: "Evelyn Garcia", RoomNumber: "203", FamilyPhone: "5554567890"},
}

// SeedDemoResidents inserts a small demo roster when no residents exist.
// It returns the number of residents inserted.
func SeedDemoResidents(ctx context.Context, s Store) (int, error) {
	existing, err := s.ListActiveResidents(ctx)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return 0, nil
	}

	for _, r := range demoResidents {
		r.IsActive = true
		if err := s.CreateResident(ctx, &r); err != nil {
			return 0, fmt.Errorf("seeding %s: %w", r.FullName, err)
		}
	}

	slog.Info("seeded demo residents", "count", len(demoResidents))
	return len(demoResidents), nil
}
