package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/query-routing-service/internal/config"
	"github.com/spec-kit/query-routing-service/internal/domain"
	"github.com/spec-kit/query-routing-service/internal/events"
	"github.com/spec-kit/query-routing-service/internal/observability"
	"github.com/spec-kit/query-routing-service/internal/repository"
)

func newEscalatorFixture(parents map[string]*domain.Institute) (*fakeQueryStore, *captureDispatcher, *observability.Metrics, *Escalator) {
	store := newFakeQueryStore()
	dispatcher := &captureDispatcher{}
	metrics := observability.NewMetrics()
	esc := NewEscalator(store, &fakeInstituteStore{parents: parents}, dispatcher, zap.NewNop(), metrics, config.SchedulerConfig{})
	return store, dispatcher, metrics, esc
}

func TestEscalatorRunOnce(t *testing.T) {
	week := 7 * 24 * time.Hour
	parents := map[string]*domain.Institute{
		"reg-b": {ID: "apex-x", Title: "National Center", RoleID: "role-apex"},
	}

	t.Run("routes idle queries one level up", func(t *testing.T) {
		store, dispatcher, metrics, esc := newEscalatorFixture(parents)
		store.add(openQuery("q-1", "reg-b", time.Now().Add(-week)))

		esc.RunOnce(context.Background())

		moved := store.get("q-1")
		if moved.RespondingInstituteID == nil || *moved.RespondingInstituteID != "apex-x" {
			t.Fatalf("responding institute = %v, want apex-x", moved.RespondingInstituteID)
		}
		if moved.RespondingRoleID == nil || *moved.RespondingRoleID != "role-apex" {
			t.Fatalf("responding role = %v, want role-apex", moved.RespondingRoleID)
		}
		if moved.LastEscalatedAt == nil {
			t.Fatal("last escalated marker not stamped")
		}
		if store.snapshots["q-1"] != 1 {
			t.Fatalf("snapshots = %d, want 1", store.snapshots["q-1"])
		}

		escalated := dispatcher.byType(events.EventQueryEscalated)
		if len(escalated) != 1 {
			t.Fatalf("escalated events = %d, want 1", len(escalated))
		}
		payload := escalated[0].Payload.(events.QueryEscalatedPayload)
		if payload.FromInstituteID == nil || *payload.FromInstituteID != "reg-b" || payload.ToInstituteID != "apex-x" {
			t.Fatalf("payload = %+v", payload)
		}
		if metrics.JobRuns(escalatorJob) != 1 {
			t.Fatalf("job runs = %d, want 1", metrics.JobRuns(escalatorJob))
		}
	})

	t.Run("fresh queries are left alone", func(t *testing.T) {
		store, dispatcher, _, esc := newEscalatorFixture(parents)
		store.add(openQuery("q-1", "reg-b", time.Now().Add(-time.Hour)))

		esc.RunOnce(context.Background())

		if store.snapshots["q-1"] != 0 {
			t.Fatalf("fresh query mutated, snapshots = %d", store.snapshots["q-1"])
		}
		if len(dispatcher.byType(events.EventQueryEscalated)) != 0 {
			t.Fatal("unexpected escalation event")
		}
	})

	t.Run("a query escalates at most once per idle window", func(t *testing.T) {
		store, dispatcher, _, esc := newEscalatorFixture(map[string]*domain.Institute{
			"reg-b":  {ID: "apex-x", RoleID: "role-apex"},
			"apex-x": {ID: "beyond", RoleID: "role-beyond"},
		})
		q := openQuery("q-1", "reg-b", time.Now().Add(-week))
		store.add(q)

		esc.RunOnce(context.Background())
		esc.RunOnce(context.Background())

		if n := len(dispatcher.byType(events.EventQueryEscalated)); n != 1 {
			t.Fatalf("escalated events = %d, want 1", n)
		}
	})

	t.Run("apex queries are skipped without failing", func(t *testing.T) {
		store, dispatcher, _, esc := newEscalatorFixture(parents)
		store.add(openQuery("q-1", "apex-x", time.Now().Add(-week)))

		esc.RunOnce(context.Background())

		if store.snapshots["q-1"] != 0 {
			t.Fatal("apex query was mutated")
		}
		if len(dispatcher.byType(events.EventQueryEscalated)) != 0 {
			t.Fatal("unexpected escalation event")
		}
	})

	t.Run("one failing query does not abort the batch", func(t *testing.T) {
		store, dispatcher, _, esc := newEscalatorFixture(map[string]*domain.Institute{
			"reg-b": {ID: "apex-x", RoleID: "role-apex"},
			"reg-c": {ID: "apex-x", RoleID: "role-apex"},
		})
		store.add(openQuery("q-1", "reg-b", time.Now().Add(-week)))
		store.add(openQuery("q-2", "reg-c", time.Now().Add(-week)))
		store.failErr["q-1"] = errors.New("connection reset")

		esc.RunOnce(context.Background())

		if store.snapshots["q-2"] != 1 {
			t.Fatalf("q-2 snapshots = %d, want 1", store.snapshots["q-2"])
		}
		if n := len(dispatcher.byType(events.EventQueryEscalated)); n != 1 {
			t.Fatalf("escalated events = %d, want 1", n)
		}
	})

	t.Run("queries answered mid-pass are skipped", func(t *testing.T) {
		store, dispatcher, _, esc := newEscalatorFixture(parents)
		q := openQuery("q-1", "reg-b", time.Now().Add(-week))
		store.add(q)
		// Simulate a concurrent answer landing after selection.
		store.failErr["q-1"] = repository.ErrQueryCompleted

		esc.RunOnce(context.Background())

		if len(dispatcher.byType(events.EventQueryEscalated)) != 0 {
			t.Fatal("unexpected escalation event for completed query")
		}
	})
}
