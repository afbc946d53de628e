package models

// Settlement represents a payment between group members that would clear debts.
// Settlements are suggestions; recording one is done with an ordinary transaction
// where the debtor pays and the creditor is the only split participant.
type Settlement struct {
	// FromUserID is the user who should pay (debtor settling up).
	FromUserID string

	// ToUserID is the user who should receive payment (creditor being paid).
	ToUserID string

	// Amount is the payment amount in minor currency units.
	Amount int64
}
