package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
	"github.com/mmynk/splitledger/internal/storage/memory"
)

func TestCompleteSettlementPolicy(t *testing.T) {
	tests := []struct {
		name      string
		allow     bool
		from, to  string
		amount    int64
		wantErr   error
		wantAfter []edge
	}{
		{name: "partial payment", from: "B", to: "A", amount: 20, wantAfter: []edge{{"B", "A", 14}, {"C", "A", 33}}},
		{name: "exact payment", from: "B", to: "A", amount: 34, wantAfter: []edge{{"C", "A", 33}}},
		{name: "overpayment rejected", from: "B", to: "A", amount: 35, wantErr: ErrSettlementExceedsBalance},
		{name: "payment against the debt rejected", from: "A", to: "B", amount: 1, wantErr: ErrSettlementExceedsBalance},
		{name: "no debt between pair", from: "B", to: "C", amount: 1, wantErr: ErrSettlementExceedsBalance},
		{name: "overpayment allowed flips", allow: true, from: "B", to: "A", amount: 40, wantAfter: []edge{{"A", "B", 6}, {"C", "A", 33}}},
		{name: "self settlement", from: "B", to: "B", amount: 1, wantErr: ErrSelfSettlement},
		{name: "unknown payee", from: "B", to: "Z", amount: 1, wantErr: ErrUnknownParticipant},
		{name: "negative amount", from: "B", to: "A", amount: -1, wantErr: ErrInvalidAmount},
	}

	forEachStore(t, func(t *testing.T, store storage.Store) {
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				ctx := context.Background()
				s := newService(t, store, WithAllowOverpayment(tt.allow))
				g := newGroup(t, s, "A", "B", "C")
				mustRecord(t, s, g, "A", 100, models.EqualSplit("A", "B", "C"))

				_, err := s.CompleteSettlement(ctx, g, tt.from, tt.to, usd(tt.amount))
				if tt.wantErr != nil {
					if !errors.Is(err, tt.wantErr) {
						t.Fatalf("CompleteSettlement() error = %v, want %v", err, tt.wantErr)
					}
					assertBalances(t, s, g, []edge{{"B", "A", 34}, {"C", "A", 33}})
					settlements, err := s.ListSettlements(ctx, g)
					if err != nil {
						t.Fatalf("ListSettlements failed: %v", err)
					}
					if len(settlements) != 0 {
						t.Errorf("rejected settlement was stored: %+v", settlements[0])
					}
					return
				}
				if err != nil {
					t.Fatalf("CompleteSettlement failed: %v", err)
				}
				assertBalances(t, s, g, tt.wantAfter)
				assertConsistent(t, s, g)
			})
		}
	})
}

func TestSettlementLifecycle(t *testing.T) {
	forEachStore(t, func(t *testing.T, store storage.Store) {
		ctx := context.Background()
		s := newService(t, store)
		g := newGroup(t, s, "A", "B", "C")
		mustRecord(t, s, g, "A", 100, models.EqualSplit("A", "B", "C"))

		pendingID, err := s.ProposeSettlement(ctx, g, "B", "A", usd(34), "venmo")
		if err != nil {
			t.Fatalf("ProposeSettlement failed: %v", err)
		}
		// A proposal does not touch balances.
		assertBalances(t, s, g, []edge{{"B", "A", 34}, {"C", "A", 33}})
		assertConsistent(t, s, g)

		if err := s.AcceptSettlement(ctx, pendingID); err != nil {
			t.Fatalf("AcceptSettlement failed: %v", err)
		}
		assertBalances(t, s, g, []edge{{"C", "A", 33}})
		assertConsistent(t, s, g)

		if err := s.AcceptSettlement(ctx, pendingID); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("second AcceptSettlement() error = %v, want ErrInvalidTransition", err)
		}
		if err := s.CancelSettlement(ctx, pendingID); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("CancelSettlement() of completed error = %v, want ErrInvalidTransition", err)
		}

		cancelID, err := s.ProposeSettlement(ctx, g, "C", "A", usd(33), "")
		if err != nil {
			t.Fatalf("ProposeSettlement failed: %v", err)
		}
		if err := s.CancelSettlement(ctx, cancelID); err != nil {
			t.Fatalf("CancelSettlement failed: %v", err)
		}
		if err := s.AcceptSettlement(ctx, cancelID); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("AcceptSettlement() of cancelled error = %v, want ErrInvalidTransition", err)
		}
		assertBalances(t, s, g, []edge{{"C", "A", 33}})

		settlements, err := s.ListSettlements(ctx, g)
		if err != nil {
			t.Fatalf("ListSettlements failed: %v", err)
		}
		status := make(map[string]models.SettlementStatus)
		for _, st := range settlements {
			status[st.ID] = st.Status
			if st.Status == models.SettlementCompleted && st.CompletedAt == nil {
				t.Errorf("completed settlement %s has no CompletedAt", st.ID)
			}
		}
		if status[pendingID] != models.SettlementCompleted {
			t.Errorf("status(%s) = %s, want completed", pendingID, status[pendingID])
		}
		if status[cancelID] != models.SettlementCancelled {
			t.Errorf("status(%s) = %s, want cancelled", cancelID, status[cancelID])
		}

		if err := s.AcceptSettlement(ctx, "stl_missing"); !errors.Is(err, ErrSettlementNotFound) {
			t.Errorf("AcceptSettlement() of unknown error = %v, want ErrSettlementNotFound", err)
		}
	})
}

func TestAcceptSettlementRechecksBalance(t *testing.T) {
	forEachStore(t, func(t *testing.T, store storage.Store) {
		ctx := context.Background()
		s := newService(t, store)
		g := newGroup(t, s, "A", "B", "C")
		mustRecord(t, s, g, "A", 100, models.EqualSplit("A", "B", "C"))

		first, err := s.ProposeSettlement(ctx, g, "B", "A", usd(34), "")
		if err != nil {
			t.Fatalf("ProposeSettlement failed: %v", err)
		}
		second, err := s.ProposeSettlement(ctx, g, "B", "A", usd(34), "")
		if err != nil {
			t.Fatalf("ProposeSettlement failed: %v", err)
		}

		if err := s.AcceptSettlement(ctx, first); err != nil {
			t.Fatalf("AcceptSettlement failed: %v", err)
		}
		// The debt is already paid off.
		if err := s.AcceptSettlement(ctx, second); !errors.Is(err, ErrSettlementExceedsBalance) {
			t.Errorf("AcceptSettlement() error = %v, want ErrSettlementExceedsBalance", err)
		}
		assertConsistent(t, s, g)
	})
}

func TestRemoveMember(t *testing.T) {
	forEachStore(t, func(t *testing.T, store storage.Store) {
		ctx := context.Background()
		s := newService(t, store)
		g := newGroup(t, s, "A", "B", "C")
		mustRecord(t, s, g, "A", 100, models.EqualSplit("A", "B"))

		if err := s.RemoveMember(ctx, g, "B"); !errors.Is(err, ErrParticipantHasBalance) {
			t.Errorf("RemoveMember(B) error = %v, want ErrParticipantHasBalance", err)
		}
		if err := s.RemoveMember(ctx, g, "C"); err != nil {
			t.Fatalf("RemoveMember(C) failed: %v", err)
		}
		if err := s.RemoveMember(ctx, g, "C"); !errors.Is(err, ErrUnknownParticipant) {
			t.Errorf("second RemoveMember(C) error = %v, want ErrUnknownParticipant", err)
		}
		if err := s.AddMembers(ctx, g, "D", "A"); err != nil {
			t.Fatalf("AddMembers failed: %v", err)
		}

		group, err := s.GetGroup(ctx, g)
		if err != nil {
			t.Fatalf("GetGroup failed: %v", err)
		}
		want := []string{"A", "B", "D"}
		if len(group.Members) != len(want) {
			t.Fatalf("members = %v, want %v", group.Members, want)
		}
		for i := range want {
			if group.Members[i] != want[i] {
				t.Errorf("members = %v, want %v", group.Members, want)
				break
			}
		}

		if _, err := s.RecordExpense(ctx, g, "A", usd(10), models.EqualSplit("A", "C")); !errors.Is(err, ErrUnknownParticipant) {
			t.Errorf("RecordExpense() with removed member error = %v, want ErrUnknownParticipant", err)
		}
	})
}

func TestRemoveMemberWithHistory(t *testing.T) {
	forEachStore(t, func(t *testing.T, store storage.Store) {
		ctx := context.Background()
		s := newService(t, store)
		g := newGroup(t, s, "A", "B", "C")
		expenseID := mustRecord(t, s, g, "A", 100, models.EqualSplit("A", "B"))

		// B pays off the debt, leaving no balance rows at all.
		if _, err := s.CompleteSettlement(ctx, g, "B", "A", usd(50)); err != nil {
			t.Fatalf("CompleteSettlement failed: %v", err)
		}
		assertBalances(t, s, g, nil)

		// Deleting the expense would make A owe B, so B must stay.
		if err := s.RemoveMember(ctx, g, "B"); !errors.Is(err, ErrParticipantHasBalance) {
			t.Fatalf("RemoveMember(B) error = %v, want ErrParticipantHasBalance", err)
		}
		if err := s.DeleteExpense(ctx, expenseID); err != nil {
			t.Fatalf("DeleteExpense failed: %v", err)
		}
		assertBalances(t, s, g, []edge{{"A", "B", 50}})

		suggestions, err := s.SuggestSettlements(ctx, g)
		if err != nil {
			t.Fatalf("SuggestSettlements failed: %v", err)
		}
		if len(suggestions) != 1 || suggestions[0].FromID != "A" || suggestions[0].ToID != "B" {
			t.Fatalf("suggestions = %+v, want A pays B", suggestions)
		}
		if _, err := s.CompleteSettlement(ctx, g, "A", "B", suggestions[0].Amount); err != nil {
			t.Fatalf("CompleteSettlement(A->B) failed: %v", err)
		}
		if net, err := s.GetUserNetPosition(ctx, g, "B"); err != nil || net.Amount != 0 {
			t.Errorf("net(B) = %v, %v, want 0", net, err)
		}
		assertConsistent(t, s, g)

		// A pending settlement blocks removal until it is cancelled.
		pendingID, err := s.ProposeSettlement(ctx, g, "C", "A", usd(10), "")
		if err != nil {
			t.Fatalf("ProposeSettlement failed: %v", err)
		}
		if err := s.RemoveMember(ctx, g, "C"); !errors.Is(err, ErrParticipantHasBalance) {
			t.Fatalf("RemoveMember(C) error = %v, want ErrParticipantHasBalance", err)
		}
		if err := s.CancelSettlement(ctx, pendingID); err != nil {
			t.Fatalf("CancelSettlement failed: %v", err)
		}
		if err := s.RemoveMember(ctx, g, "C"); err != nil {
			t.Errorf("RemoveMember(C) after cancel failed: %v", err)
		}
	})
}

func TestCompleteCrossPairSuggestion(t *testing.T) {
	ctx := context.Background()
	for _, allow := range []bool{false, true} {
		s := newService(t, memory.New(), WithAllowOverpayment(allow))
		g := newGroup(t, s, "A", "B", "C")
		mustRecord(t, s, g, "B", 20, models.EqualSplit("A", "B"))
		mustRecord(t, s, g, "C", 20, models.EqualSplit("B", "C"))

		// A owes B and B owes C, so the only suggestion is A pays C.
		suggestions, err := s.SuggestSettlements(ctx, g)
		if err != nil {
			t.Fatalf("SuggestSettlements failed: %v", err)
		}
		if len(suggestions) != 1 || suggestions[0].FromID != "A" || suggestions[0].ToID != "C" || suggestions[0].Amount != usd(10) {
			t.Fatalf("suggestions = %+v, want A pays C 10", suggestions)
		}

		_, err = s.CompleteSettlement(ctx, g, "A", "C", usd(10))
		if !allow {
			if !errors.Is(err, ErrSettlementExceedsBalance) {
				t.Errorf("CompleteSettlement() without overpayment error = %v, want ErrSettlementExceedsBalance", err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("CompleteSettlement() with overpayment failed: %v", err)
		}
		positions, err := s.GetNetPositions(ctx, g)
		if err != nil {
			t.Fatalf("GetNetPositions failed: %v", err)
		}
		for _, p := range positions {
			if p.Amount.Amount != 0 {
				t.Errorf("net(%s) = %d, want 0", p.UserID, p.Amount.Amount)
			}
		}
		assertConsistent(t, s, g)
	}
}
