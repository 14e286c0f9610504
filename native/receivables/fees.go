package receivables

import (
	"fmt"
	"math/big"
)

// FeeQuote summarises the protocol's cut of a redeemed contract and the net
// payout owed to the claim holder. Fee + Payout always equals the quoted
// amount exactly; the fee rounds down on integer division, so no value is
// created or destroyed.
type FeeQuote struct {
	Fee    *big.Int
	Payout *big.Int
}

// QuoteFee computes the protocol fee for a face amount under the given fee
// parameters: fee = amount * feeNumerator / feeScalar, floored.
func QuoteFee(amount *big.Int, feeNumerator, feeScalar uint64) (FeeQuote, error) {
	if amount == nil || amount.Sign() <= 0 {
		return FeeQuote{}, fmt.Errorf("%w: quote amount must be positive", ErrInvalidAmount)
	}
	if feeScalar == 0 {
		return FeeQuote{}, fmt.Errorf("%w: fee scalar must be non-zero", ErrInvalidParameter)
	}
	fee := new(big.Int).Mul(amount, new(big.Int).SetUint64(feeNumerator))
	fee.Div(fee, new(big.Int).SetUint64(feeScalar))
	if fee.Cmp(amount) > 0 {
		return FeeQuote{}, fmt.Errorf("%w: fee exceeds face amount", ErrInvalidParameter)
	}
	payout := new(big.Int).Sub(amount, fee)
	return FeeQuote{Fee: fee, Payout: payout}, nil
}
