package enums

import "slices"

// PaymentMethod is how a buyer settles an order. Only WALLET moves money
// through the ledger; COD is settled outside the platform.
type PaymentMethod string

const (
	PaymentMethodWallet PaymentMethod = "WALLET"
	PaymentMethodCOD    PaymentMethod = "COD"
)

var paymentMethods = []PaymentMethod{PaymentMethodWallet, PaymentMethodCOD}

func (p PaymentMethod) String() string { return string(p) }

func (p PaymentMethod) IsValid() bool { return slices.Contains(paymentMethods, p) }

func (p PaymentMethod) MovesMoney() bool { return p == PaymentMethodWallet }

func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	return parse("payment method", raw, paymentMethods)
}

// TopUpMethod is recorded in the description of wallet top-ups.
type TopUpMethod string

const (
	TopUpMethodUPI        TopUpMethod = "UPI"
	TopUpMethodCard       TopUpMethod = "CARD"
	TopUpMethodNetBanking TopUpMethod = "NET_BANKING"
)

var topUpMethods = []TopUpMethod{TopUpMethodUPI, TopUpMethodCard, TopUpMethodNetBanking}

func (m TopUpMethod) IsValid() bool { return slices.Contains(topUpMethods, m) }

// ParseTopUpMethod treats blank input as UPI.
func ParseTopUpMethod(raw string) (TopUpMethod, error) {
	if raw == "" {
		return TopUpMethodUPI, nil
	}
	return parse("top-up method", raw, topUpMethods)
}
