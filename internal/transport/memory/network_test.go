package memory

import (
	"context"
	"testing"

	"github.com/kickboxer/quorumkv/internal/action"
	"github.com/kickboxer/quorumkv/internal/paxos"
	"github.com/kickboxer/quorumkv/internal/store"
)

// stubPeer is a minimal paxos.PeerClient for exercising the Network
// registry without a full Acceptor/Learner pair.
type stubPeer struct {
	prepareOK bool
}

func (s *stubPeer) Prepare(context.Context, paxos.ProposalNumber, int, action.Action) (bool, *paxos.PrevAccepted, paxos.ProposalNumber, error) {
	return s.prepareOK, nil, paxos.ProposalNumber{}, nil
}
func (s *stubPeer) Accept(context.Context, paxos.ProposalNumber, int, action.Action) (bool, paxos.ProposalNumber, error) {
	return true, paxos.ProposalNumber{}, nil
}
func (s *stubPeer) Commit(context.Context, int, action.Action) (string, error) {
	return string(store.OK), nil
}

func TestClientReachesRegisteredPeer(t *testing.T) {
	net := NewNetwork()
	net.Register("b", &stubPeer{prepareOK: true})

	c := NewClient(net, "a", "b")
	ok, _, _, err := c.Prepare(context.Background(), paxos.ProposalNumber{Counter: 1, NodeID: "a"}, 1, action.Insert)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected ok=true from registered peer")
	}
}

func TestClientUnreachableWhenUnregistered(t *testing.T) {
	net := NewNetwork()
	c := NewClient(net, "a", "b")

	_, _, _, err := c.Prepare(context.Background(), paxos.ProposalNumber{Counter: 1, NodeID: "a"}, 1, action.Insert)
	if err != ErrUnreachable {
		t.Fatalf("err = %v, want ErrUnreachable", err)
	}
}

func TestPartitionCutsOneDirection(t *testing.T) {
	net := NewNetwork()
	net.Register("b", &stubPeer{prepareOK: true})
	net.Partition("a", "b")

	fromA := NewClient(net, "a", "b")
	if _, _, _, err := fromA.Prepare(context.Background(), paxos.ProposalNumber{}, 1, action.Insert); err != ErrUnreachable {
		t.Fatalf("a->b err = %v, want ErrUnreachable", err)
	}

	fromC := NewClient(net, "c", "b")
	if _, _, _, err := fromC.Prepare(context.Background(), paxos.ProposalNumber{}, 1, action.Insert); err != nil {
		t.Fatalf("c->b unexpected error: %v", err)
	}
}

func TestHealRestoresLink(t *testing.T) {
	net := NewNetwork()
	net.Register("b", &stubPeer{prepareOK: true})
	net.Partition("a", "b")
	net.Heal("a", "b")

	c := NewClient(net, "a", "b")
	if _, _, _, err := c.Prepare(context.Background(), paxos.ProposalNumber{}, 1, action.Insert); err != nil {
		t.Fatalf("unexpected error after Heal: %v", err)
	}
}

func TestUnregisterMakesPeerUnreachable(t *testing.T) {
	net := NewNetwork()
	net.Register("b", &stubPeer{prepareOK: true})
	net.Unregister("b")

	c := NewClient(net, "a", "b")
	if _, _, _, err := c.Prepare(context.Background(), paxos.ProposalNumber{}, 1, action.Insert); err != ErrUnreachable {
		t.Fatalf("err = %v, want ErrUnreachable", err)
	}
}

func TestLateRegistrationIsVisibleImmediately(t *testing.T) {
	net := NewNetwork()
	c := NewClient(net, "a", "b")
	if _, _, _, err := c.Prepare(context.Background(), paxos.ProposalNumber{}, 1, action.Insert); err != ErrUnreachable {
		t.Fatalf("err before registration = %v, want ErrUnreachable", err)
	}

	net.Register("b", &stubPeer{prepareOK: true})
	ok, _, _, err := c.Prepare(context.Background(), paxos.ProposalNumber{}, 1, action.Insert)
	if err != nil || !ok {
		t.Fatalf("after registration: ok=%v err=%v, want true, nil", ok, err)
	}
}
