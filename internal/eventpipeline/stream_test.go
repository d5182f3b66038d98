package eventpipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"pokercore/internal/engine"
)

func TestStream_PublishDeliversToAllRegisteredGroups(t *testing.T) {
	s := NewStream(time.Minute)
	materializerCh := s.Group("materializer")
	analyticsCh := s.Group("analytics")

	row := Row{HandID: "hand-1", EventID: "evt-1", Seq: 1, Type: engine.EventHandStarted, Ts: time.Unix(1, 0)}
	s.Publish(row)

	select {
	case got := <-materializerCh:
		assert.Equal(t, row.EventID, got.EventID)
	default:
		t.Fatal("expected row delivered to materializer group")
	}

	select {
	case got := <-analyticsCh:
		assert.Equal(t, row.EventID, got.EventID)
	default:
		t.Fatal("expected row delivered to analytics group")
	}
}

func TestStream_GroupRegisteredAfterPublishMissesIt(t *testing.T) {
	s := NewStream(time.Minute)
	s.Publish(Row{HandID: "hand-1", EventID: "evt-1", Seq: 1, Type: engine.EventHandStarted})

	late := s.Group("latecomer")
	select {
	case <-late:
		t.Fatal("a group created after Publish must not receive the already-published row")
	default:
	}
}

func TestStream_AckPreventsRedelivery(t *testing.T) {
	s := NewStream(10 * time.Millisecond)
	ch := s.Group("materializer")

	row := Row{HandID: "hand-1", EventID: "evt-1", Seq: 1, Type: engine.EventHandStarted}
	s.Publish(row)
	<-ch

	s.Ack("materializer", row.EventID)
	s.ReapExpiredClaims(time.Now().Add(time.Hour))

	select {
	case <-ch:
		t.Fatal("an acked row must not be redelivered")
	default:
	}
}

func TestStream_ReapExpiredClaimsRedeliversUnacked(t *testing.T) {
	s := NewStream(10 * time.Millisecond)
	ch := s.Group("materializer")

	row := Row{HandID: "hand-1", EventID: "evt-1", Seq: 1, Type: engine.EventHandStarted}
	start := time.Now()
	s.Publish(row)
	<-ch // consume but never Ack

	s.ReapExpiredClaims(start.Add(time.Hour))

	select {
	case got := <-ch:
		assert.Equal(t, row.EventID, got.EventID)
	default:
		t.Fatal("expected the unacked row to be redelivered after its claim expired")
	}
}

func TestStream_ReapExpiredClaimsIgnoresClaimsStillWithinTimeout(t *testing.T) {
	s := NewStream(time.Hour)
	ch := s.Group("materializer")

	row := Row{HandID: "hand-1", EventID: "evt-1", Seq: 1, Type: engine.EventHandStarted}
	start := time.Now()
	s.Publish(row)
	<-ch

	s.ReapExpiredClaims(start.Add(time.Second))

	select {
	case <-ch:
		t.Fatal("a claim still within its timeout must not be redelivered")
	default:
	}
}

func TestStream_IndependentGroupsTrackSeparateClaims(t *testing.T) {
	s := NewStream(time.Minute)
	a := s.Group("a")
	b := s.Group("b")

	row := Row{HandID: "hand-1", EventID: "evt-1", Seq: 1, Type: engine.EventHandStarted}
	s.Publish(row)
	<-a
	<-b

	s.Ack("a", row.EventID)
	s.ReapExpiredClaims(time.Now().Add(time.Hour))

	select {
	case <-a:
		t.Fatal("group a acked its claim and must not be redelivered")
	default:
	}
	select {
	case got := <-b:
		assert.Equal(t, row.EventID, got.EventID)
	default:
		t.Fatal("group b never acked and must be redelivered")
	}
}
