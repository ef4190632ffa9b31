package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// FileStore keeps each collection as a pretty-printed JSON array
// (neighbors.json, parties.json) under a data directory. A missing or
// empty file reads as an empty collection. One mutex per collection
// serializes every read-modify-write cycle, so party updates cannot race
// each other.
type FileStore struct {
	dir string

	neighborsMu sync.Mutex
	partiesMu   sync.Mutex
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) neighborsPath() string { return filepath.Join(s.dir, "neighbors.json") }
func (s *FileStore) partiesPath() string   { return filepath.Join(s.dir, "parties.json") }

func readCollection[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var records []T
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return records, nil
}

func writeCollection[T any](path string, records []T) error {
	if records == nil {
		records = []T{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// -----------------------------
// Neighbors
// -----------------------------

func (s *FileStore) Neighbors(ctx context.Context) ([]Neighbor, error) {
	s.neighborsMu.Lock()
	defer s.neighborsMu.Unlock()
	return readCollection[Neighbor](s.neighborsPath())
}

func (s *FileStore) Neighbor(ctx context.Context, id string) (Neighbor, error) {
	s.neighborsMu.Lock()
	defer s.neighborsMu.Unlock()
	neighbors, err := readCollection[Neighbor](s.neighborsPath())
	if err != nil {
		return Neighbor{}, err
	}
	for _, n := range neighbors {
		if n.ID == id {
			return n, nil
		}
	}
	return Neighbor{}, ErrNeighborNotFound
}

func (s *FileStore) CreateNeighbor(ctx context.Context, n Neighbor) (Neighbor, error) {
	s.neighborsMu.Lock()
	defer s.neighborsMu.Unlock()
	neighbors, err := readCollection[Neighbor](s.neighborsPath())
	if err != nil {
		return Neighbor{}, err
	}
	n.ID = uuid.NewString()
	neighbors = append(neighbors, n)
	if err := writeCollection(s.neighborsPath(), neighbors); err != nil {
		return Neighbor{}, err
	}
	return n, nil
}

func (s *FileStore) UpdateNeighbor(ctx context.Context, id string, patch NeighborPatch) (Neighbor, error) {
	s.neighborsMu.Lock()
	defer s.neighborsMu.Unlock()
	neighbors, err := readCollection[Neighbor](s.neighborsPath())
	if err != nil {
		return Neighbor{}, err
	}
	for i, n := range neighbors {
		if n.ID != id {
			continue
		}
		if patch.Name != nil {
			n.Name = *patch.Name
		}
		if patch.Address != nil {
			n.Address = *patch.Address
		}
		if patch.Email != nil {
			n.Email = *patch.Email
		}
		if patch.Phone != nil {
			n.Phone = *patch.Phone
		}
		neighbors[i] = n
		if err := writeCollection(s.neighborsPath(), neighbors); err != nil {
			return Neighbor{}, err
		}
		return n, nil
	}
	return Neighbor{}, ErrNeighborNotFound
}

func (s *FileStore) DeleteNeighbor(ctx context.Context, id string) error {
	s.neighborsMu.Lock()
	defer s.neighborsMu.Unlock()
	neighbors, err := readCollection[Neighbor](s.neighborsPath())
	if err != nil {
		return err
	}
	kept := neighbors[:0]
	for _, n := range neighbors {
		if n.ID != id {
			kept = append(kept, n)
		}
	}
	if len(kept) == len(neighbors) {
		return ErrNeighborNotFound
	}
	return writeCollection(s.neighborsPath(), kept)
}

// -----------------------------
// Parties
// -----------------------------

func (s *FileStore) Parties(ctx context.Context) ([]Party, error) {
	s.partiesMu.Lock()
	defer s.partiesMu.Unlock()
	return readCollection[Party](s.partiesPath())
}

func (s *FileStore) Party(ctx context.Context, id string) (Party, error) {
	s.partiesMu.Lock()
	defer s.partiesMu.Unlock()
	parties, err := readCollection[Party](s.partiesPath())
	if err != nil {
		return Party{}, err
	}
	for _, p := range parties {
		if p.ID == id {
			return p, nil
		}
	}
	return Party{}, ErrPartyNotFound
}

func (s *FileStore) CreateParty(ctx context.Context, p Party) (Party, error) {
	s.partiesMu.Lock()
	defer s.partiesMu.Unlock()
	parties, err := readCollection[Party](s.partiesPath())
	if err != nil {
		return Party{}, err
	}
	p.ID = uuid.NewString()
	parties = append(parties, p)
	if err := writeCollection(s.partiesPath(), parties); err != nil {
		return Party{}, err
	}
	return p, nil
}

func (s *FileStore) UpdateParty(ctx context.Context, id string, mutate func(*Party) error) (Party, error) {
	s.partiesMu.Lock()
	defer s.partiesMu.Unlock()
	parties, err := readCollection[Party](s.partiesPath())
	if err != nil {
		return Party{}, err
	}
	for i := range parties {
		if parties[i].ID != id {
			continue
		}
		p := parties[i]
		if err := mutate(&p); err != nil {
			return Party{}, err
		}
		p.ID = id
		parties[i] = p
		if err := writeCollection(s.partiesPath(), parties); err != nil {
			return Party{}, err
		}
		return p, nil
	}
	return Party{}, ErrPartyNotFound
}

func (s *FileStore) DeleteParty(ctx context.Context, id string) error {
	s.partiesMu.Lock()
	defer s.partiesMu.Unlock()
	parties, err := readCollection[Party](s.partiesPath())
	if err != nil {
		return err
	}
	kept := parties[:0]
	for _, p := range parties {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	if len(kept) == len(parties) {
		return ErrPartyNotFound
	}
	return writeCollection(s.partiesPath(), kept)
}
