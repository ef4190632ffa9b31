package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore is the Postgres-backed Store. Menu and attendees live in
// serialized JSON columns so a party row keeps the same document shape as
// the file store and both arrays are replaced atomically on write.
type GormStore struct {
	db *gorm.DB
}

type neighborRecord struct {
	ID        string `gorm:"primaryKey"`
	Name      string `gorm:"not null"`
	Address   string `gorm:"not null"`
	Email     string
	Phone     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (neighborRecord) TableName() string { return "neighbors" }

type partyRecord struct {
	ID          string `gorm:"primaryKey"`
	Name        string `gorm:"not null"`
	Description string
	Date        time.Time `gorm:"not null"`
	Place       string
	Comments    string
	Menu        []MenuItem `gorm:"serializer:json"`
	Attendees   []Attendee `gorm:"serializer:json"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (partyRecord) TableName() string { return "parties" }

func (r neighborRecord) toNeighbor() Neighbor {
	return Neighbor{ID: r.ID, Name: r.Name, Address: r.Address, Email: r.Email, Phone: r.Phone}
}

func (r partyRecord) toParty() Party {
	return Party{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Date:        r.Date,
		Place:       r.Place,
		Comments:    r.Comments,
		Menu:        r.Menu,
		Attendees:   r.Attendees,
	}
}

func (r *partyRecord) applyParty(p Party) {
	r.Name = p.Name
	r.Description = p.Description
	r.Date = p.Date
	r.Place = p.Place
	r.Comments = p.Comments
	r.Menu = p.Menu
	r.Attendees = p.Attendees
}

// NewGormStore connects using the teacher-style DB_* env variables and
// migrates both tables.
func NewGormStore() (*GormStore, error) {
	host := os.Getenv("DB_HOST")
	user := os.Getenv("DB_USER")
	pass := os.Getenv("DB_PASS")
	name := os.Getenv("DB_NAME")
	port := os.Getenv("DB_PORT")

	if host == "" || user == "" || pass == "" || name == "" || port == "" {
		return nil, fmt.Errorf("DATABASE ENV MISSING — check .env file")
	}

	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		host, user, pass, name, port,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := db.AutoMigrate(&neighborRecord{}, &partyRecord{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &GormStore{db: db}, nil
}

// -----------------------------
// Neighbors
// -----------------------------

func (s *GormStore) Neighbors(ctx context.Context) ([]Neighbor, error) {
	var records []neighborRecord
	if err := s.db.WithContext(ctx).Order("created_at asc").Find(&records).Error; err != nil {
		return nil, err
	}
	neighbors := make([]Neighbor, 0, len(records))
	for _, r := range records {
		neighbors = append(neighbors, r.toNeighbor())
	}
	return neighbors, nil
}

func (s *GormStore) Neighbor(ctx context.Context, id string) (Neighbor, error) {
	var rec neighborRecord
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Neighbor{}, ErrNeighborNotFound
		}
		return Neighbor{}, err
	}
	return rec.toNeighbor(), nil
}

func (s *GormStore) CreateNeighbor(ctx context.Context, n Neighbor) (Neighbor, error) {
	rec := neighborRecord{
		ID:      uuid.NewString(),
		Name:    n.Name,
		Address: n.Address,
		Email:   n.Email,
		Phone:   n.Phone,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return Neighbor{}, err
	}
	return rec.toNeighbor(), nil
}

func (s *GormStore) UpdateNeighbor(ctx context.Context, id string, patch NeighborPatch) (Neighbor, error) {
	var out Neighbor
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec neighborRecord
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&rec, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNeighborNotFound
			}
			return err
		}
		if patch.Name != nil {
			rec.Name = *patch.Name
		}
		if patch.Address != nil {
			rec.Address = *patch.Address
		}
		if patch.Email != nil {
			rec.Email = *patch.Email
		}
		if patch.Phone != nil {
			rec.Phone = *patch.Phone
		}
		if err := tx.Save(&rec).Error; err != nil {
			return err
		}
		out = rec.toNeighbor()
		return nil
	})
	if err != nil {
		return Neighbor{}, err
	}
	return out, nil
}

func (s *GormStore) DeleteNeighbor(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&neighborRecord{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNeighborNotFound
	}
	return nil
}

// -----------------------------
// Parties
// -----------------------------

func (s *GormStore) Parties(ctx context.Context) ([]Party, error) {
	var records []partyRecord
	if err := s.db.WithContext(ctx).Order("date asc").Find(&records).Error; err != nil {
		return nil, err
	}
	parties := make([]Party, 0, len(records))
	for _, r := range records {
		parties = append(parties, r.toParty())
	}
	return parties, nil
}

func (s *GormStore) Party(ctx context.Context, id string) (Party, error) {
	var rec partyRecord
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Party{}, ErrPartyNotFound
		}
		return Party{}, err
	}
	return rec.toParty(), nil
}

func (s *GormStore) CreateParty(ctx context.Context, p Party) (Party, error) {
	rec := partyRecord{ID: uuid.NewString()}
	rec.applyParty(p)
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return Party{}, err
	}
	return rec.toParty(), nil
}

// UpdateParty locks the row for the duration of the transaction so a
// concurrent claim on the same dish waits here and then fails its
// precondition re-check instead of silently overwriting the winner.
func (s *GormStore) UpdateParty(ctx context.Context, id string, mutate func(*Party) error) (Party, error) {
	var out Party
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec partyRecord
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&rec, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPartyNotFound
			}
			return err
		}
		p := rec.toParty()
		if err := mutate(&p); err != nil {
			return err
		}
		p.ID = id
		rec.applyParty(p)
		if err := tx.Save(&rec).Error; err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return Party{}, err
	}
	return out, nil
}

func (s *GormStore) DeleteParty(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&partyRecord{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrPartyNotFound
	}
	return nil
}
