// Package models defines the core domain models for splitledger.
//
// # Models
//
//   - Transaction: an immutable expense record (who paid, who owes what)
//   - Split: one participant's owed share of a transaction
//   - BalanceEntry: the running "A owes B" amount for one pair of users in a group
//   - Settlement: a suggested payment that would clear debts
//   - Group, User: read-only views of the external directory
//
// # Design Principles
//
// 1. **Integer money**: every amount is int64 minor currency units (cents), never float
// 2. **Canonical pairs**: a balance is stored once per unordered pair, keyed with UserA < UserB
// 3. **IDs, not pointers**: relationships are expressed as ID strings
// 4. **Derived balances**: BalanceEntry rows are always re-derivable from the non-deleted transactions
package models
