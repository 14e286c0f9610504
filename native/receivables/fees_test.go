package receivables

import (
	"errors"
	"math/big"
	"testing"
)

func TestQuoteFeeFlooring(t *testing.T) {
	cases := []struct {
		name      string
		amount    int64
		fee       uint64
		feeScalar uint64
		wantFee   int64
	}{
		{name: "sub-unit fee floors to zero", amount: 100, fee: 2, feeScalar: 1000, wantFee: 0},
		{name: "two percent", amount: 100, fee: 2, feeScalar: 100, wantFee: 2},
		{name: "floors fractional cut", amount: 99, fee: 2, feeScalar: 100, wantFee: 1},
		{name: "fifty percent", amount: 7, fee: 1, feeScalar: 2, wantFee: 3},
		{name: "zero numerator", amount: 500, fee: 0, feeScalar: 100, wantFee: 0},
		{name: "full amount", amount: 500, fee: 100, feeScalar: 100, wantFee: 500},
		{name: "amount of one", amount: 1, fee: 2, feeScalar: 100, wantFee: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			quote, err := QuoteFee(big.NewInt(tc.amount), tc.fee, tc.feeScalar)
			if err != nil {
				t.Fatalf("quote: %v", err)
			}
			if quote.Fee.Int64() != tc.wantFee {
				t.Fatalf("expected fee %d, got %s", tc.wantFee, quote.Fee)
			}
			sum := new(big.Int).Add(quote.Fee, quote.Payout)
			if sum.Int64() != tc.amount {
				t.Fatalf("fee %s + payout %s != amount %d", quote.Fee, quote.Payout, tc.amount)
			}
		})
	}
}

func TestQuoteFeeLargeAmounts(t *testing.T) {
	amount, ok := new(big.Int).SetString("340282366920938463463374607431768211455", 10)
	if !ok {
		t.Fatalf("parse amount")
	}
	quote, err := QuoteFee(amount, 25, 10_000)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	sum := new(big.Int).Add(quote.Fee, quote.Payout)
	if sum.Cmp(amount) != 0 {
		t.Fatalf("conservation violated: fee %s + payout %s != %s", quote.Fee, quote.Payout, amount)
	}
	if quote.Fee.Sign() <= 0 || quote.Fee.Cmp(amount) >= 0 {
		t.Fatalf("fee out of range: %s", quote.Fee)
	}
}

func TestQuoteFeeRejectsBadInputs(t *testing.T) {
	if _, err := QuoteFee(nil, 2, 100); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for nil, got %v", err)
	}
	if _, err := QuoteFee(big.NewInt(0), 2, 100); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for zero, got %v", err)
	}
	if _, err := QuoteFee(big.NewInt(-10), 2, 100); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for negative, got %v", err)
	}
	if _, err := QuoteFee(big.NewInt(100), 2, 0); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter for zero scalar, got %v", err)
	}
	if _, err := QuoteFee(big.NewInt(100), 101, 100); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter for fee above face amount, got %v", err)
	}
}

func TestQuoteFeeDoesNotMutateInput(t *testing.T) {
	amount := big.NewInt(100)
	if _, err := QuoteFee(amount, 2, 100); err != nil {
		t.Fatalf("quote: %v", err)
	}
	if amount.Int64() != 100 {
		t.Fatalf("input mutated to %s", amount)
	}
}
