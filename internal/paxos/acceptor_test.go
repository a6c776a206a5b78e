package paxos

import (
	"flag"
	"testing"

	"gopkg.in/check.v1"

	"github.com/kickboxer/quorumkv/internal/action"
	"github.com/kickboxer/quorumkv/internal/store"
)

var _test_loglevel = flag.String("test.loglevel", "", "the loglevel to run tests with")

func Test(t *testing.T) {
	check.TestingT(t)
}

type AcceptorTest struct {
	store    *store.Memory
	acceptor *Acceptor
}

var _ = check.Suite(&AcceptorTest{})

func (s *AcceptorTest) SetUpTest(c *check.C) {
	s.store = store.NewMemory()
	s.acceptor = NewAcceptor(s.store, nil)
	s.acceptor.Start()
}

func (s *AcceptorTest) TearDownTest(c *check.C) {
	s.acceptor.Stop()
}

func n(counter uint64) ProposalNumber {
	return ProposalNumber{Counter: counter, NodeID: "a"}
}

func (s *AcceptorTest) TestPrepareGrantsAndRaisesHighestSeen(c *check.C) {
	ok, prev := s.acceptor.Prepare(n(5), 7, action.Insert)
	c.Assert(ok, check.Equals, true)
	c.Assert(prev, check.IsNil)
	c.Check(s.acceptor.HighestSeen(), check.Equals, n(5))
}

func (s *AcceptorTest) TestPrepareRejectsLowerNumber(c *check.C) {
	ok, _ := s.acceptor.Prepare(n(10), 7, action.Insert)
	c.Assert(ok, check.Equals, true)

	ok, _ = s.acceptor.Prepare(n(3), 7, action.Insert)
	c.Assert(ok, check.Equals, false)
	c.Check(s.acceptor.HighestSeen(), check.Equals, n(10))
}

func (s *AcceptorTest) TestPrepareAtEqualNumberIsNotRejected(c *check.C) {
	ok, _ := s.acceptor.Prepare(n(5), 7, action.Insert)
	c.Assert(ok, check.Equals, true)

	// A second prepare carrying the same id is treated as equal, not
	// smaller, so the strict "id < highestSeen" check passes.
	ok, _ = s.acceptor.Prepare(n(5), 7, action.Insert)
	c.Assert(ok, check.Equals, true)
}

func (s *AcceptorTest) TestPrepareRejectsInvalidAction(c *check.C) {
	s.store.Insert(7)
	// INSERT on an already-present key fails Validate.
	ok, _ := s.acceptor.Prepare(n(1), 7, action.Insert)
	c.Assert(ok, check.Equals, false)
}

func (s *AcceptorTest) TestAcceptRequiresPriorPrepare(c *check.C) {
	ok := s.acceptor.Accept(n(1), 7, action.Insert)
	c.Assert(ok, check.Equals, false)
}

func (s *AcceptorTest) TestAcceptGrantedAfterPrepare(c *check.C) {
	ok, _ := s.acceptor.Prepare(n(5), 7, action.Insert)
	c.Assert(ok, check.Equals, true)

	ok = s.acceptor.Accept(n(5), 7, action.Insert)
	c.Assert(ok, check.Equals, true)
}

func (s *AcceptorTest) TestAcceptRejectsBelowHighestSeen(c *check.C) {
	s.acceptor.Prepare(n(5), 7, action.Insert)
	s.acceptor.Accept(n(5), 7, action.Insert)
	// the accepted insert is committed, so a REMOVE on 7 now validates
	s.store.Insert(7)

	// a later prepare raises highestSeen past the first accepted id
	s.acceptor.Prepare(n(9), 7, action.Remove)

	ok := s.acceptor.Accept(n(5), 7, action.Insert)
	c.Assert(ok, check.Equals, false)
}

func (s *AcceptorTest) TestPrepareReturnsHighestPreviouslyAccepted(c *check.C) {
	s.acceptor.Prepare(n(5), 7, action.Insert)
	s.acceptor.Accept(n(5), 7, action.Insert)
	// the accepted insert is committed, so a REMOVE on 7 now validates
	s.store.Insert(7)

	ok, prev := s.acceptor.Prepare(n(9), 7, action.Remove)
	c.Assert(ok, check.Equals, true)
	c.Assert(prev, check.NotNil)
	c.Check(prev.ID, check.Equals, n(5))
	c.Check(prev.Key, check.Equals, 7)
	c.Check(prev.Action, check.Equals, action.Insert)
}

func (s *AcceptorTest) TestNotRunningRejectsEverything(c *check.C) {
	s.acceptor.Stop()
	ok, _ := s.acceptor.Prepare(n(1), 7, action.Read)
	c.Assert(ok, check.Equals, false)
	ok = s.acceptor.Accept(n(1), 7, action.Read)
	c.Assert(ok, check.Equals, false)
	s.acceptor.Start()
}
