package cache

import (
	"testing"
	"time"

	"github.com/aura-id/verifier-go/pkg/events"
	"github.com/aura-id/verifier-go/pkg/models"
	"github.com/aura-id/verifier-go/pkg/registry"
)

func TestCacheSync_SyncUpdatesRevocationStatus(t *testing.T) {
	c, _ := New(NewMemoryAdapter(), Config{}, nil)
	entry := freshEntry("vc1")
	entry.Metadata.ExpiresAt = time.Now().Unix() + 1000
	entry.RevocationStatus.MerkleRoot = "root1"
	_ = c.Set("vc1", entry)

	client := registry.NewStaticClient()
	client.RegisterCredential(&models.VerifiableCredential{VCID: "vc1"}, registry.VCStatusResult{
		Status:  models.VCStatusRevoked,
		Revoked: true,
	})
	client.RegisterRevocationList(&models.RevocationList{MerkleRoot: "root1", Bitmap: []byte{0x01}, UpdatedAt: 42})

	sink := &events.RecordingSink{}
	sync := NewCacheSync(c, client, sink)

	result := sync.Sync()
	if !result.Success {
		t.Fatalf("expected sync success, errors: %v", result.Errors)
	}
	if result.SyncedItems != 1 {
		t.Errorf("got SyncedItems %d", result.SyncedItems)
	}

	got, ok, _ := c.Get("vc1")
	if !ok {
		t.Fatal("expected entry to remain cached after sync")
	}
	if !got.RevocationStatus.IsRevoked {
		t.Error("expected revocation status to be refreshed to revoked")
	}

	stats, _ := c.GetStats()
	if stats.LastSyncTime == 0 {
		t.Error("expected lastSyncTime to be recorded")
	}

	foundSyncEvent := false
	for _, ev := range sink.Events {
		if ev.Name == events.Sync {
			foundSyncEvent = true
		}
	}
	if !foundSyncEvent {
		t.Error("expected a sync event to be emitted")
	}
}

func TestCacheSync_PerItemFailureDoesNotPoisonOthers(t *testing.T) {
	c, _ := New(NewMemoryAdapter(), Config{}, nil)
	now := time.Now().Unix() + 1000

	ok1 := freshEntry("vc_ok")
	ok1.Metadata.ExpiresAt = now
	_ = c.Set("vc_ok", ok1)

	missing := freshEntry("vc_missing")
	missing.Metadata.ExpiresAt = now
	_ = c.Set("vc_missing", missing)

	client := registry.NewStaticClient()
	client.RegisterCredential(&models.VerifiableCredential{VCID: "vc_ok"}, registry.VCStatusResult{Status: models.VCStatusActive})

	sync := NewCacheSync(c, client, nil)
	result := sync.Sync()

	if result.Success {
		t.Error("expected overall success=false when one item fails")
	}
	if result.SyncedItems != 1 {
		t.Errorf("got SyncedItems %d, want 1", result.SyncedItems)
	}
	if len(result.Errors) != 1 {
		t.Errorf("got %d errors, want 1", len(result.Errors))
	}
	if !c.Has("vc_ok") {
		t.Error("expected the successfully synced entry to remain cached")
	}
}

func TestCacheSync_StartStopAutoSync(t *testing.T) {
	c, _ := New(NewMemoryAdapter(), Config{}, nil)
	client := registry.NewStaticClient()
	sync := NewCacheSync(c, client, nil)

	sync.StartAutoSync(10*time.Millisecond, AutoSyncOptions{})
	time.Sleep(35 * time.Millisecond)
	sync.StopAutoSync()

	stats, _ := c.GetStats()
	if stats.LastSyncTime == 0 {
		t.Error("expected at least one scheduled sync to have run")
	}
}

func TestCacheSync_SyncOnStartupRunsImmediately(t *testing.T) {
	c, _ := New(NewMemoryAdapter(), Config{}, nil)
	client := registry.NewStaticClient()
	sync := NewCacheSync(c, client, nil)

	sync.StartAutoSync(time.Hour, AutoSyncOptions{SyncOnStartup: true})
	defer sync.StopAutoSync()

	stats, _ := c.GetStats()
	if stats.LastSyncTime == 0 {
		t.Error("expected syncOnStartup to have run a sync immediately")
	}
}
