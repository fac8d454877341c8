package server

import (
	"testing"

	"github.com/google/uuid"
)

func TestRegistryKeepsJoinOrder(t *testing.T) {
	r := NewRegistry()
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for _, id := range ids {
		r.Add(&Session{ID: id})
	}
	if !r.Remove(ids[1]) {
		t.Fatalf("remove existing session failed")
	}
	if r.Remove(ids[1]) {
		t.Fatalf("second remove reported success")
	}

	got := r.Sessions()
	if len(got) != 2 || got[0].ID != ids[0] || got[1].ID != ids[2] {
		t.Fatalf("sessions out of order after remove")
	}
}

func TestRegistryIDsNeverReused(t *testing.T) {
	r := NewRegistry()
	seen := map[uint8]bool{}
	for i := 1; i <= MaxPlayerID; i++ {
		id, ok := r.NextID()
		if !ok {
			t.Fatalf("exhausted early at %d", i)
		}
		if id == 0 || seen[id] {
			t.Fatalf("id %d reused or zero", id)
		}
		seen[id] = true
	}
	if _, ok := r.NextID(); ok {
		t.Fatalf("id issued past %d", MaxPlayerID)
	}
}
