// Seeds the local sqlite cache with bookings from a yaml fixture so
// the portal can be exercised without a live backend.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/AshishSahani0/saarthi-portal/internal/models"
	"github.com/AshishSahani0/saarthi-portal/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type seedBooking struct {
	ID               string `yaml:"id"`
	StudentID        string `yaml:"student_id"`
	StudentName      string `yaml:"student_name"`
	PsychologistID   string `yaml:"psychologist_id"`
	PsychologistName string `yaml:"psychologist_name"`
	InstituteID      string `yaml:"institute_id"`
	Date             string `yaml:"date"`
	TimeSlot         string `yaml:"time_slot"`
	Status           string `yaml:"status"`
	MeetingMode      string `yaml:"meeting_mode"`
}

type seedFile struct {
	Bookings []seedBooking `yaml:"bookings"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		seedPath = flag.String("seed", "configs/seed_bookings.yaml", "path to seed yaml")
		dbPath   = flag.String("db", "./data/portal.db", "path to sqlite cache")
	)
	flag.Parse()

	data, err := os.ReadFile(*seedPath)
	if err != nil {
		return fmt.Errorf("read seed: %w", err)
	}
	var seed seedFile
	if err = yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("parse seed: %w", err)
	}
	if len(seed.Bookings) == 0 {
		return fmt.Errorf("no bookings in yaml")
	}

	localStore, err := store.New(*dbPath)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer localStore.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	now := time.Now()
	bookings := make([]models.Booking, 0, len(seed.Bookings))
	for _, sb := range seed.Bookings {
		date, err := time.Parse("2006-01-02", sb.Date)
		if err != nil {
			return fmt.Errorf("booking %q: bad date %q", sb.ID, sb.Date)
		}
		id := sb.ID
		if id == "" {
			id = uuid.NewString()
		}
		status := sb.Status
		if status == "" {
			status = models.StatusPending
		}
		bookings = append(bookings, models.Booking{
			ID:               id,
			StudentID:        sb.StudentID,
			StudentName:      sb.StudentName,
			PsychologistID:   sb.PsychologistID,
			PsychologistName: sb.PsychologistName,
			InstituteID:      sb.InstituteID,
			Date:             date,
			TimeSlot:         sb.TimeSlot,
			Status:           status,
			MeetingMode:      sb.MeetingMode,
			CreatedAt:        now,
			UpdatedAt:        now,
		})
	}

	if err := localStore.SaveBookings(ctx, bookings); err != nil {
		return fmt.Errorf("save bookings: %w", err)
	}

	logger.Info().Int("count", len(bookings)).Str("db", *dbPath).Msg("seeded bookings")
	return nil
}
