package duckdb

import (
	"errors"
	"testing"
	"time"

	"github.com/CodeFleck/sensorvision-sub002/internal/model"
)

func TestCreatePlaylistDefaults(t *testing.T) {
	store := newTestStore(t)

	p, err := store.CreatePlaylist("Lobby Rotation", "", true, "")
	if err != nil {
		t.Fatalf("CreatePlaylist: %v", err)
	}
	if p.TransitionEffect != model.TransitionFade {
		t.Errorf("transition = %q, want %q", p.TransitionEffect, model.TransitionFade)
	}
	if !p.LoopEnabled {
		t.Error("loop should be enabled")
	}
	if p.ShareToken != "" {
		t.Errorf("new playlist has share token %q, want none", p.ShareToken)
	}
}

func TestPlaylistItems(t *testing.T) {
	store := newTestStore(t)
	d1 := createTestDashboard(t, store, "Assembly")
	d2 := createTestDashboard(t, store, "Warehouse")
	p, err := store.CreatePlaylist("Lobby Rotation", "", true, model.TransitionSlide)
	if err != nil {
		t.Fatalf("CreatePlaylist: %v", err)
	}

	first, err := store.AddPlaylistItem(p.ID, d1.ID, 0)
	if err != nil {
		t.Fatalf("AddPlaylistItem: %v", err)
	}
	if first.Position != 0 {
		t.Errorf("first item position = %d, want 0", first.Position)
	}
	if first.DurationSeconds != model.DefaultItemDurationSeconds {
		t.Errorf("default duration = %d, want %d", first.DurationSeconds, model.DefaultItemDurationSeconds)
	}
	if first.DashboardName != "Assembly" {
		t.Errorf("first item dashboard name = %q, want Assembly", first.DashboardName)
	}

	second, err := store.AddPlaylistItem(p.ID, d2.ID, 10)
	if err != nil {
		t.Fatalf("AddPlaylistItem: %v", err)
	}
	if second.Position != 1 || second.DurationSeconds != 10 {
		t.Errorf("second item = pos %d dur %d, want pos 1 dur 10", second.Position, second.DurationSeconds)
	}

	if _, err := store.AddPlaylistItem(p.ID, 9999, 10); !errors.Is(err, ErrNotFound) {
		t.Errorf("AddPlaylistItem unknown dashboard: err = %v, want ErrNotFound", err)
	}
	if _, err := store.AddPlaylistItem(9999, d1.ID, 10); !errors.Is(err, ErrNotFound) {
		t.Errorf("AddPlaylistItem unknown playlist: err = %v, want ErrNotFound", err)
	}

	item, err := store.UpdatePlaylistItem(p.ID, second.ID, 45)
	if err != nil {
		t.Fatalf("UpdatePlaylistItem: %v", err)
	}
	if item.DurationSeconds != 45 {
		t.Errorf("updated duration = %d, want 45", item.DurationSeconds)
	}

	// Removing the first item closes the position gap.
	if err := store.RemovePlaylistItem(p.ID, first.ID); err != nil {
		t.Fatalf("RemovePlaylistItem: %v", err)
	}
	loaded, err := store.PlaylistByID(p.ID)
	if err != nil {
		t.Fatalf("PlaylistByID: %v", err)
	}
	if len(loaded.Items) != 1 {
		t.Fatalf("item count after remove = %d, want 1", len(loaded.Items))
	}
	if loaded.Items[0].Position != 0 || loaded.Items[0].DashboardID != d2.ID {
		t.Errorf("remaining item = pos %d dashboard %d, want pos 0 dashboard %d",
			loaded.Items[0].Position, loaded.Items[0].DashboardID, d2.ID)
	}

	if err := store.RemovePlaylistItem(p.ID, first.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("RemovePlaylistItem again: err = %v, want ErrNotFound", err)
	}
}

func TestReorderPlaylistItems(t *testing.T) {
	store := newTestStore(t)
	p, err := store.CreatePlaylist("Lobby Rotation", "", true, "")
	if err != nil {
		t.Fatalf("CreatePlaylist: %v", err)
	}

	var itemIDs []int64
	for _, name := range []string{"A", "B", "C"} {
		d := createTestDashboard(t, store, name)
		item, err := store.AddPlaylistItem(p.ID, d.ID, 10)
		if err != nil {
			t.Fatalf("AddPlaylistItem(%s): %v", name, err)
		}
		itemIDs = append(itemIDs, item.ID)
	}

	reordered := []int64{itemIDs[2], itemIDs[0], itemIDs[1]}
	if err := store.ReorderPlaylistItems(p.ID, reordered); err != nil {
		t.Fatalf("ReorderPlaylistItems: %v", err)
	}

	loaded, err := store.PlaylistByID(p.ID)
	if err != nil {
		t.Fatalf("PlaylistByID: %v", err)
	}
	expected := []string{"C", "A", "B"}
	for i, want := range expected {
		if loaded.Items[i].DashboardName != want {
			t.Errorf("items[%d] = %q, want %q", i, loaded.Items[i].DashboardName, want)
		}
		if loaded.Items[i].Position != i {
			t.Errorf("items[%d].Position = %d, want %d", i, loaded.Items[i].Position, i)
		}
	}

	// The id list must match the playlist exactly.
	if err := store.ReorderPlaylistItems(p.ID, itemIDs[:2]); err == nil {
		t.Error("ReorderPlaylistItems should reject a short id list")
	}
	if err := store.ReorderPlaylistItems(p.ID, []int64{itemIDs[0], itemIDs[1], 9999}); err == nil {
		t.Error("ReorderPlaylistItems should reject a foreign id")
	}
	if err := store.ReorderPlaylistItems(p.ID, []int64{itemIDs[0], itemIDs[0], itemIDs[1]}); err == nil {
		t.Error("ReorderPlaylistItems should reject a duplicated id")
	}
}

func TestSharePlaylist(t *testing.T) {
	store := newTestStore(t)
	d := createTestDashboard(t, store, "Assembly")
	p, err := store.CreatePlaylist("Lobby Rotation", "", true, "")
	if err != nil {
		t.Fatalf("CreatePlaylist: %v", err)
	}
	if _, err := store.AddPlaylistItem(p.ID, d.ID, 10); err != nil {
		t.Fatalf("AddPlaylistItem: %v", err)
	}

	if err := store.SharePlaylist(p.ID, "tok-live", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("SharePlaylist: %v", err)
	}
	shared, err := store.PlaylistByShareToken("tok-live")
	if err != nil {
		t.Fatalf("PlaylistByShareToken: %v", err)
	}
	if shared.ID != p.ID || len(shared.Items) != 1 {
		t.Errorf("shared playlist = id %d with %d items, want id %d with 1 item",
			shared.ID, len(shared.Items), p.ID)
	}

	if _, err := store.PlaylistByShareToken(""); !errors.Is(err, ErrNotFound) {
		t.Errorf("empty token: err = %v, want ErrNotFound", err)
	}
	if _, err := store.PlaylistByShareToken("tok-unknown"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown token: err = %v, want ErrNotFound", err)
	}

	// Expired links are distinguishable from unknown ones.
	expired, err := store.CreatePlaylist("Old Rotation", "", true, "")
	if err != nil {
		t.Fatalf("CreatePlaylist: %v", err)
	}
	if err := store.SharePlaylist(expired.ID, "tok-old", time.Now().Add(-time.Hour)); err != nil {
		t.Fatalf("SharePlaylist: %v", err)
	}
	if _, err := store.PlaylistByShareToken("tok-old"); !errors.Is(err, ErrShareExpired) {
		t.Errorf("expired token: err = %v, want ErrShareExpired", err)
	}

	if err := store.RevokeShare(p.ID); err != nil {
		t.Fatalf("RevokeShare: %v", err)
	}
	if _, err := store.PlaylistByShareToken("tok-live"); !errors.Is(err, ErrNotFound) {
		t.Errorf("revoked token: err = %v, want ErrNotFound", err)
	}

	if err := store.SharePlaylist(9999, "x", time.Now()); !errors.Is(err, ErrNotFound) {
		t.Errorf("SharePlaylist(9999): err = %v, want ErrNotFound", err)
	}
}

func TestTrashPlaylistRestore(t *testing.T) {
	store := newTestStore(t)
	d1 := createTestDashboard(t, store, "Assembly")
	d2 := createTestDashboard(t, store, "Warehouse")
	p, err := store.CreatePlaylist("Lobby Rotation", "evening set", false, model.TransitionNone)
	if err != nil {
		t.Fatalf("CreatePlaylist: %v", err)
	}
	if _, err := store.AddPlaylistItem(p.ID, d1.ID, 10); err != nil {
		t.Fatalf("AddPlaylistItem: %v", err)
	}
	if _, err := store.AddPlaylistItem(p.ID, d2.ID, 20); err != nil {
		t.Fatalf("AddPlaylistItem: %v", err)
	}

	if err := store.TrashPlaylist(p.ID, time.Hour); err != nil {
		t.Fatalf("TrashPlaylist: %v", err)
	}
	if _, err := store.PlaylistByID(p.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("PlaylistByID after trash: err = %v, want ErrNotFound", err)
	}

	entries, err := store.ListTrash(EntityPlaylist)
	if err != nil {
		t.Fatalf("ListTrash: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("ListTrash returned %d entries, want 1", len(entries))
	}

	if err := store.RestoreTrash(entries[0].ID); err != nil {
		t.Fatalf("RestoreTrash: %v", err)
	}

	restored, err := store.PlaylistByID(p.ID)
	if err != nil {
		t.Fatalf("PlaylistByID after restore: %v", err)
	}
	if restored.Name != "Lobby Rotation" || restored.LoopEnabled || restored.TransitionEffect != model.TransitionNone {
		t.Errorf("restored playlist = %+v, want original settings", restored)
	}
	if len(restored.Items) != 2 {
		t.Fatalf("restored item count = %d, want 2", len(restored.Items))
	}
	if restored.Items[0].DashboardID != d1.ID || restored.Items[1].DashboardID != d2.ID {
		t.Errorf("restored items point at dashboards [%d, %d], want [%d, %d]",
			restored.Items[0].DashboardID, restored.Items[1].DashboardID, d1.ID, d2.ID)
	}
}

func TestPlaylistItemWithDeletedDashboard(t *testing.T) {
	store := newTestStore(t)
	d := createTestDashboard(t, store, "Assembly")
	p, err := store.CreatePlaylist("Lobby Rotation", "", true, "")
	if err != nil {
		t.Fatalf("CreatePlaylist: %v", err)
	}
	if _, err := store.AddPlaylistItem(p.ID, d.ID, 10); err != nil {
		t.Fatalf("AddPlaylistItem: %v", err)
	}

	// Deleting the dashboard leaves the item in place.
	if err := store.TrashDashboard(d.ID, 0); err != nil {
		t.Fatalf("TrashDashboard: %v", err)
	}

	loaded, err := store.PlaylistByID(p.ID)
	if err != nil {
		t.Fatalf("PlaylistByID: %v", err)
	}
	if len(loaded.Items) != 1 {
		t.Fatalf("item count = %d, want 1", len(loaded.Items))
	}
	if loaded.Items[0].DashboardName != "" {
		t.Errorf("dangling item dashboard name = %q, want empty", loaded.Items[0].DashboardName)
	}
}
