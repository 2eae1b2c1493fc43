package enums

import "slices"

// WalletEntryType is the direction of a ledger row.
type WalletEntryType string

const (
	WalletEntryCredit WalletEntryType = "CREDIT"
	WalletEntryDebit  WalletEntryType = "DEBIT"
)

var walletEntryTypes = []WalletEntryType{WalletEntryCredit, WalletEntryDebit}

func (t WalletEntryType) IsValid() bool { return slices.Contains(walletEntryTypes, t) }

func ParseWalletEntryType(raw string) (WalletEntryType, error) {
	return parse("wallet entry type", raw, walletEntryTypes)
}

// WalletTransactionType is the business reason for a ledger row.
type WalletTransactionType string

const (
	WalletTxOrderPayment WalletTransactionType = "ORDER_PAYMENT"
	WalletTxTopUp        WalletTransactionType = "TOPUP"
	WalletTxRefund       WalletTransactionType = "REFUND"
	WalletTxSettlement   WalletTransactionType = "SETTLEMENT"
)

var walletTransactionTypes = []WalletTransactionType{
	WalletTxOrderPayment,
	WalletTxTopUp,
	WalletTxRefund,
	WalletTxSettlement,
}

func (t WalletTransactionType) IsValid() bool {
	return slices.Contains(walletTransactionTypes, t)
}

func ParseWalletTransactionType(raw string) (WalletTransactionType, error) {
	return parse("wallet transaction type", raw, walletTransactionTypes)
}
