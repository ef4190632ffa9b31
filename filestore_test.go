package main

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestFileStore_MissingFilesReadEmpty(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	neighbors, err := s.Neighbors(ctx)
	require.NoError(t, err)
	assert.Empty(t, neighbors)

	parties, err := s.Parties(ctx)
	require.NoError(t, err)
	assert.Empty(t, parties)
}

func TestFileStore_EmptyFileReadsEmpty(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(s.dir, "neighbors.json"), []byte("  \n"), 0o644))

	neighbors, err := s.Neighbors(context.Background())
	require.NoError(t, err)
	assert.Empty(t, neighbors)
}

func TestFileStore_NeighborCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.CreateNeighbor(ctx, Neighbor{Name: "Alice Martin", Address: "3 rue Haute", Email: "alice@example.com"})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	got, err := s.Neighbor(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)

	// Partial merge: only the patched fields change.
	updated, err := s.UpdateNeighbor(ctx, created.ID, NeighborPatch{Phone: strptr("0601020304")})
	require.NoError(t, err)
	assert.Equal(t, "Alice Martin", updated.Name)
	assert.Equal(t, "alice@example.com", updated.Email)
	assert.Equal(t, "0601020304", updated.Phone)

	require.NoError(t, s.DeleteNeighbor(ctx, created.ID))

	_, err = s.Neighbor(ctx, created.ID)
	assert.ErrorIs(t, err, ErrNeighborNotFound)
	assert.ErrorIs(t, s.DeleteNeighbor(ctx, created.ID), ErrNeighborNotFound)
	_, err = s.UpdateNeighbor(ctx, created.ID, NeighborPatch{})
	assert.ErrorIs(t, err, ErrNeighborNotFound)
}

func TestFileStore_PartyDateRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	date := time.Date(2026, 7, 14, 19, 30, 0, 0, time.UTC)
	created, err := s.CreateParty(ctx, Party{Name: "Fête", Date: date, Place: "la cour"})
	require.NoError(t, err)

	got, err := s.Party(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, got.Date.Equal(date), "expected %v, got %v", date, got.Date)

	// The persisted representation is an ISO-8601 string.
	data, err := os.ReadFile(filepath.Join(s.dir, "parties.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "2026-07-14T19:30:00Z")
}

func TestFileStore_UpdatePartyMutate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.CreateParty(ctx, Party{
		Name:      "Fête",
		Date:      time.Now().UTC(),
		Menu:      []MenuItem{{Name: "Salade"}},
		Attendees: []Attendee{{NeighborID: "n1", Status: StatusAttending}},
	})
	require.NoError(t, err)

	updated, err := s.UpdateParty(ctx, created.ID, func(p *Party) error {
		next, err := AssignMenuItem(*p, "Salade", "n1")
		if err != nil {
			return err
		}
		*p = next
		return nil
	})
	require.NoError(t, err)
	require.NotNil(t, updated.Menu[0].BroughtBy)
	assert.Equal(t, "n1", *updated.Menu[0].BroughtBy)

	// Persisted, not just returned.
	got, err := s.Party(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Menu[0].BroughtBy)
	assert.Equal(t, "n1", *got.Menu[0].BroughtBy)
}

func TestFileStore_UpdatePartyNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.UpdateParty(context.Background(), "missing", func(p *Party) error { return nil })
	assert.ErrorIs(t, err, ErrPartyNotFound)
}

func TestFileStore_UpdatePartyMutateErrorAbortsWrite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.CreateParty(ctx, Party{
		Name: "Fête",
		Date: time.Now().UTC(),
		Menu: []MenuItem{{Name: "Salade"}},
	})
	require.NoError(t, err)

	_, err = s.UpdateParty(ctx, created.ID, func(p *Party) error {
		_, claimErr := AssignMenuItem(*p, "Salade", "ghost")
		return claimErr
	})
	assert.ErrorIs(t, err, ErrNotAttending)

	got, err := s.Party(ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Menu[0].BroughtBy)
}

func TestFileStore_ConcurrentClaimsSingleWinner(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.CreateParty(ctx, Party{
		Name: "Fête",
		Date: time.Now().UTC(),
		Menu: []MenuItem{{Name: "Salade"}},
		Attendees: []Attendee{
			{NeighborID: "n1", Status: StatusAttending},
			{NeighborID: "n2", Status: StatusAttending},
		},
	})
	require.NoError(t, err)

	claim := func(neighborID string) error {
		_, err := s.UpdateParty(ctx, created.ID, func(p *Party) error {
			next, err := AssignMenuItem(*p, "Salade", neighborID)
			if err != nil {
				return err
			}
			*p = next
			return nil
		})
		return err
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, neighborID := range []string{"n1", "n2"} {
		wg.Add(1)
		go func(i int, neighborID string) {
			defer wg.Done()
			errs[i] = claim(neighborID)
		}(i, neighborID)
	}
	wg.Wait()

	// Exactly one claim wins, the other fails its re-check.
	if errs[0] == nil {
		assert.ErrorIs(t, errs[1], ErrMenuItemTaken)
	} else {
		assert.ErrorIs(t, errs[0], ErrMenuItemTaken)
		assert.NoError(t, errs[1])
	}

	got, err := s.Party(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Menu[0].BroughtBy)
	assert.Contains(t, []string{"n1", "n2"}, *got.Menu[0].BroughtBy)
}
