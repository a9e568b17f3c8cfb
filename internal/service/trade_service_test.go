package service

import (
	"context"
	"errors"
	"testing"

	"github.com/alphadeck/papertrade/internal/domain"
)

func seedUser(t *testing.T, users *fakeUserStore, coins float64) domain.User {
	t.Helper()
	u, err := users.Create(context.Background(), domain.User{
		Username: "trader",
		Role:     domain.RoleUser,
		Coins:    coins,
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func TestBuyDebitsBalance(t *testing.T) {
	ctx := context.Background()
	users := newFakeUserStore()
	trades := &fakeTradeStore{}
	svc := NewTradeService(trades, users, discardLogger())
	u := seedUser(t, users, 1000)

	trade, err := svc.Execute(ctx, TradeRequest{
		UserID:     u.ID,
		Instrument: "NSE:INFY",
		Action:     domain.TradeActionBuy,
		Quantity:   3,
		Price:      150,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if trade.TradeID == "" {
		t.Error("trade id not assigned")
	}
	if trade.Status != domain.TradeStatusCompleted {
		t.Errorf("status = %q, want completed", trade.Status)
	}

	after, _ := users.GetByID(ctx, u.ID)
	if after.Coins != 550 {
		t.Errorf("balance = %v, want 550", after.Coins)
	}
	if len(trades.trades) != 1 {
		t.Fatalf("recorded %d trades, want 1", len(trades.trades))
	}
}

func TestBuyInsufficientFunds(t *testing.T) {
	ctx := context.Background()
	users := newFakeUserStore()
	svc := NewTradeService(&fakeTradeStore{}, users, discardLogger())
	u := seedUser(t, users, 100)

	_, err := svc.Execute(ctx, TradeRequest{
		UserID:     u.ID,
		Instrument: "NSE:INFY",
		Action:     domain.TradeActionBuy,
		Quantity:   10,
		Price:      50,
	})
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Errorf("err = %v, want ErrInsufficientFunds", err)
	}

	after, _ := users.GetByID(ctx, u.ID)
	if after.Coins != 100 {
		t.Errorf("balance moved to %v on a rejected buy", after.Coins)
	}
}

func TestSellRequiresHolding(t *testing.T) {
	ctx := context.Background()
	users := newFakeUserStore()
	trades := &fakeTradeStore{}
	svc := NewTradeService(trades, users, discardLogger())
	u := seedUser(t, users, 1000)

	// Nothing held yet.
	_, err := svc.Execute(ctx, TradeRequest{
		UserID:     u.ID,
		Instrument: "NSE:INFY",
		Action:     domain.TradeActionSell,
		Quantity:   1,
		Price:      150,
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("sell with no holding: err = %v, want ErrValidation", err)
	}

	// Buy 5, then selling 6 still fails but selling 5 succeeds.
	if _, err := svc.Execute(ctx, TradeRequest{
		UserID: u.ID, Instrument: "NSE:INFY", Action: domain.TradeActionBuy, Quantity: 5, Price: 100,
	}); err != nil {
		t.Fatalf("buy: %v", err)
	}

	if _, err := svc.Execute(ctx, TradeRequest{
		UserID: u.ID, Instrument: "NSE:INFY", Action: domain.TradeActionSell, Quantity: 6, Price: 100,
	}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("oversell: err = %v, want ErrValidation", err)
	}

	if _, err := svc.Execute(ctx, TradeRequest{
		UserID: u.ID, Instrument: "NSE:INFY", Action: domain.TradeActionSell, Quantity: 5, Price: 120,
	}); err != nil {
		t.Fatalf("sell: %v", err)
	}

	after, _ := users.GetByID(ctx, u.ID)
	// 1000 - 500 (buy) + 600 (sell) = 1100
	if after.Coins != 1100 {
		t.Errorf("balance = %v, want 1100", after.Coins)
	}
}

func TestExecuteValidation(t *testing.T) {
	ctx := context.Background()
	users := newFakeUserStore()
	svc := NewTradeService(&fakeTradeStore{}, users, discardLogger())
	u := seedUser(t, users, 1000)

	cases := []struct {
		name string
		req  TradeRequest
	}{
		{"bad instrument", TradeRequest{UserID: u.ID, Instrument: "INFY", Action: domain.TradeActionBuy, Quantity: 1, Price: 10}},
		{"bad action", TradeRequest{UserID: u.ID, Instrument: "NSE:INFY", Action: "hold", Quantity: 1, Price: 10}},
		{"zero quantity", TradeRequest{UserID: u.ID, Instrument: "NSE:INFY", Action: domain.TradeActionBuy, Quantity: 0, Price: 10}},
		{"negative price", TradeRequest{UserID: u.ID, Instrument: "NSE:INFY", Action: domain.TradeActionBuy, Quantity: 1, Price: -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Execute(ctx, tc.req); !errors.Is(err, domain.ErrValidation) {
				t.Errorf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestInsertFailureRevertsBalance(t *testing.T) {
	ctx := context.Background()
	users := newFakeUserStore()
	trades := &fakeTradeStore{insertErr: errStoreDown}
	svc := NewTradeService(trades, users, discardLogger())
	u := seedUser(t, users, 1000)

	_, err := svc.Execute(ctx, TradeRequest{
		UserID:     u.ID,
		Instrument: "NSE:INFY",
		Action:     domain.TradeActionBuy,
		Quantity:   2,
		Price:      100,
	})
	if err == nil {
		t.Fatal("expected insert failure")
	}

	after, _ := users.GetByID(ctx, u.ID)
	if after.Coins != 1000 {
		t.Errorf("balance = %v after failed insert, want 1000", after.Coins)
	}
}
