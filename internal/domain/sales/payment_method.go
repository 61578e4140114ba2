package sales

// PaymentMethod represents how the client pays for a sale
type PaymentMethod string

const (
	PaymentMethodCash        PaymentMethod = "CASH"
	PaymentMethodPix         PaymentMethod = "PIX"
	PaymentMethodDebitCard   PaymentMethod = "DEBIT_CARD"
	PaymentMethodBankSlip    PaymentMethod = "BANK_SLIP"
	PaymentMethodCreditCard  PaymentMethod = "CREDIT_CARD"
	PaymentMethodInstallment PaymentMethod = "INSTALLMENT"
)

// IsValid checks if the method is a valid PaymentMethod
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodPix, PaymentMethodDebitCard, PaymentMethodBankSlip,
		PaymentMethodCreditCard, PaymentMethodInstallment:
		return true
	}
	return false
}

// String returns the string representation of PaymentMethod
func (m PaymentMethod) String() string {
	return string(m)
}

// IsInstallment reports whether commissions use the installment rate column.
// Credit card sales are paid to the agency in installments.
func (m PaymentMethod) IsInstallment() bool {
	return m == PaymentMethodCreditCard || m == PaymentMethodInstallment
}

// AllPaymentMethods returns every supported payment method
func AllPaymentMethods() []PaymentMethod {
	return []PaymentMethod{
		PaymentMethodCash,
		PaymentMethodPix,
		PaymentMethodDebitCard,
		PaymentMethodBankSlip,
		PaymentMethodCreditCard,
		PaymentMethodInstallment,
	}
}
