package core

import "testing"

func TestDAOProposalPassesAndExecutesAfterTimelock(t *testing.T) {
	proposer := newTestIssuer(t)
	voterA := newTestIssuer(t)
	voterB := newTestIssuer(t)
	s := NewState()

	create := mustEnvelope(t, proposer, "dao.proposal.create", map[string]string{"id": "P1"}, 0, 1, "", "")
	heads, err := Apply(s, create)
	if err != nil {
		t.Fatalf("create proposal: %v", err)
	}
	head := heads[0].NewHead

	start := mustEnvelope(t, proposer, "dao.proposal.start_voting", map[string]interface{}{
		"id": "P1", "votingStart": int64(10), "votingEnd": int64(20),
	}, 1, 2, "", head)
	heads, err = Apply(s, start)
	if err != nil {
		t.Fatalf("start voting: %v", err)
	}
	head = heads[0].NewHead

	voteA := mustEnvelope(t, voterA, "dao.proposal.vote", map[string]interface{}{
		"id": "P1", "power": "100", "support": true,
	}, 12, 1, "", head)
	heads, err = Apply(s, voteA)
	if err != nil {
		t.Fatalf("vote A: %v", err)
	}
	head = heads[0].NewHead

	voteB := mustEnvelope(t, voterB, "dao.proposal.vote", map[string]interface{}{
		"id": "P1", "power": "40", "support": false,
	}, 13, 1, "", head)
	heads, err = Apply(s, voteB)
	if err != nil {
		t.Fatalf("vote B: %v", err)
	}
	head = heads[0].NewHead

	tooEarly := mustEnvelope(t, proposer, "dao.proposal.close_voting", map[string]string{"id": "P1"}, 15, 3, "", head)
	if _, err := Apply(s, tooEarly); err == nil {
		t.Fatal("expected close_voting before votingEnd to fail")
	}

	closeVoting := mustEnvelope(t, proposer, "dao.proposal.close_voting", map[string]string{"id": "P1"}, 21, 3, "", head)
	heads, err = Apply(s, closeVoting)
	if err != nil {
		t.Fatalf("close voting: %v", err)
	}
	head = heads[0].NewHead

	prop, ok := s.Proposal("P1")
	if !ok || prop.Status != ProposalPassed {
		t.Fatalf("expected passed (100 for vs 40 against), got %+v ok=%v", prop, ok)
	}

	queue := mustEnvelope(t, proposer, "dao.proposal.queue", map[string]interface{}{
		"id": "P1", "timelockUntil": int64(100),
	}, 22, 4, "", head)
	heads, err = Apply(s, queue)
	if err != nil {
		t.Fatalf("queue: %v", err)
	}
	head = heads[0].NewHead

	early := mustEnvelope(t, proposer, "dao.proposal.execute", map[string]string{"id": "P1"}, 50, 5, "", head)
	if _, err := Apply(s, early); err == nil {
		t.Fatal("expected execute before timelock elapses to fail")
	}

	execute := mustEnvelope(t, proposer, "dao.proposal.execute", map[string]string{"id": "P1"}, 101, 5, "", head)
	if _, err := Apply(s, execute); err != nil {
		t.Fatalf("execute: %v", err)
	}

	prop, _ = s.Proposal("P1")
	if prop.Status != ProposalExecuted {
		t.Fatalf("expected executed, got %s", prop.Status)
	}
}

func TestDAOVoteOutsideWindowRejected(t *testing.T) {
	proposer := newTestIssuer(t)
	voter := newTestIssuer(t)
	s := NewState()

	create := mustEnvelope(t, proposer, "dao.proposal.create", map[string]string{"id": "P2"}, 0, 1, "", "")
	heads, err := Apply(s, create)
	if err != nil {
		t.Fatalf("create proposal: %v", err)
	}
	head := heads[0].NewHead

	start := mustEnvelope(t, proposer, "dao.proposal.start_voting", map[string]interface{}{
		"id": "P2", "votingStart": int64(10), "votingEnd": int64(20),
	}, 1, 2, "", head)
	heads, err = Apply(s, start)
	if err != nil {
		t.Fatalf("start voting: %v", err)
	}
	head = heads[0].NewHead

	tooLate := mustEnvelope(t, voter, "dao.proposal.vote", map[string]interface{}{
		"id": "P2", "power": "10", "support": true,
	}, 25, 1, "", head)
	if _, err := Apply(s, tooLate); err == nil {
		t.Fatal("expected vote after votingEnd to fail")
	}
}
