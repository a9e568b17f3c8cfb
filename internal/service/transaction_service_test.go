package service

import (
	"context"
	"errors"
	"testing"

	"github.com/alphadeck/papertrade/internal/domain"
)

func newTransactionFixture(t *testing.T, coins float64) (*TransactionService, *fakeUserStore, *fakeTransactionStore, domain.User) {
	t.Helper()
	users := newFakeUserStore()
	txs := newFakeTransactionStore()
	svc := NewTransactionService(txs, users, discardLogger())
	u := seedUser(t, users, coins)
	return svc, users, txs, u
}

func TestRequestValidation(t *testing.T) {
	ctx := context.Background()
	svc, _, _, u := newTransactionFixture(t, 100)

	if _, err := svc.Request(ctx, u.ID, "transfer", 10); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("bad type: err = %v, want ErrValidation", err)
	}
	if _, err := svc.Request(ctx, u.ID, domain.TransactionTypeDeposit, 0); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("zero amount: err = %v, want ErrValidation", err)
	}
}

func TestRequestDoesNotMoveBalance(t *testing.T) {
	ctx := context.Background()
	svc, users, _, u := newTransactionFixture(t, 100)

	tx, err := svc.Request(ctx, u.ID, domain.TransactionTypeDeposit, 500)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if tx.Status != domain.TransactionStatusPending {
		t.Errorf("status = %q, want pending", tx.Status)
	}

	after, _ := users.GetByID(ctx, u.ID)
	if after.Coins != 100 {
		t.Errorf("balance = %v before approval, want 100", after.Coins)
	}
}

func TestApproveDepositCreditsBalance(t *testing.T) {
	ctx := context.Background()
	svc, users, _, u := newTransactionFixture(t, 100)

	tx, err := svc.Request(ctx, u.ID, domain.TransactionTypeDeposit, 500)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}

	resolved, err := svc.Approve(ctx, tx.ID)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if resolved.Status != domain.TransactionStatusApproved {
		t.Errorf("status = %q, want approved", resolved.Status)
	}

	after, _ := users.GetByID(ctx, u.ID)
	if after.Coins != 600 {
		t.Errorf("balance = %v, want 600", after.Coins)
	}
}

func TestApproveWithdrawInsufficientFunds(t *testing.T) {
	ctx := context.Background()
	svc, users, txs, u := newTransactionFixture(t, 100)

	tx, err := svc.Request(ctx, u.ID, domain.TransactionTypeWithdraw, 500)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}

	if _, err := svc.Approve(ctx, tx.ID); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}

	// Request stays pending and the balance is untouched.
	stored, _ := txs.GetByID(ctx, tx.ID)
	if stored.Status != domain.TransactionStatusPending {
		t.Errorf("status = %q after failed approval, want pending", stored.Status)
	}
	after, _ := users.GetByID(ctx, u.ID)
	if after.Coins != 100 {
		t.Errorf("balance = %v, want 100", after.Coins)
	}
}

func TestRejectLeavesBalance(t *testing.T) {
	ctx := context.Background()
	svc, users, _, u := newTransactionFixture(t, 100)

	tx, err := svc.Request(ctx, u.ID, domain.TransactionTypeDeposit, 500)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}

	resolved, err := svc.Reject(ctx, tx.ID)
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if resolved.Status != domain.TransactionStatusRejected {
		t.Errorf("status = %q, want rejected", resolved.Status)
	}

	after, _ := users.GetByID(ctx, u.ID)
	if after.Coins != 100 {
		t.Errorf("balance = %v, want 100", after.Coins)
	}
}

func TestDoubleResolveFails(t *testing.T) {
	ctx := context.Background()
	svc, users, _, u := newTransactionFixture(t, 100)

	tx, err := svc.Request(ctx, u.ID, domain.TransactionTypeDeposit, 500)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if _, err := svc.Approve(ctx, tx.ID); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	if _, err := svc.Approve(ctx, tx.ID); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Errorf("second approve: err = %v, want ErrAlreadyExists", err)
	}
	if _, err := svc.Reject(ctx, tx.ID); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Errorf("reject after approve: err = %v, want ErrAlreadyExists", err)
	}

	// The delta applied exactly once.
	after, _ := users.GetByID(ctx, u.ID)
	if after.Coins != 600 {
		t.Errorf("balance = %v, want 600", after.Coins)
	}
}
