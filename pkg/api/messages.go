// Package api defines the wire messages of the splitledger.v1.LedgerService RPC service.
//
// Messages are plain structs encoded as JSON (see Codec). Request messages carry
// validation tags checked by the server before anything reaches the ledger.
package api

// Split is one participant's owed share of a transaction, in minor units.
type Split struct {
	UserID string `json:"user_id"`
	Amount int64  `json:"amount"`
}

// Share is a caller-supplied split value: minor units for exact splits,
// basis points (1/100 of a percent) for percentage splits.
type Share struct {
	UserID string `json:"user_id" validate:"required"`
	Value  int64  `json:"value" validate:"gte=0"`
}

// Item is one line of an itemized bill.
type Item struct {
	Description string   `json:"description,omitempty" validate:"max=256"`
	Amount      int64    `json:"amount" validate:"gt=0"`
	AssignedTo  []string `json:"assigned_to" validate:"required,min=1,dive,required"`
}

// Transaction is a recorded expense.
type Transaction struct {
	ID          string  `json:"id"`
	GroupID     string  `json:"group_id"`
	Amount      int64   `json:"amount"`
	PayerID     string  `json:"payer_id"`
	CreatorID   string  `json:"creator_id"`
	SplitKind   string  `json:"split_kind"`
	Splits      []Split `json:"splits"`
	Description string  `json:"description,omitempty"`
	CreatedAt   int64   `json:"created_at"`
	DeletedAt   int64   `json:"deleted_at,omitempty"`
	Seq         int64   `json:"seq"`
}

// BalanceEntry reads "UserA owes UserB Amount"; negative means UserB owes UserA.
type BalanceEntry struct {
	UserA  string `json:"user_a"`
	UserB  string `json:"user_b"`
	Amount int64  `json:"amount"`
}

// Settlement is a suggested payment from FromUserID to ToUserID.
type Settlement struct {
	FromUserID string `json:"from_user_id"`
	ToUserID   string `json:"to_user_id"`
	Amount     int64  `json:"amount"`
}

// Mismatch is a pair whose stored balance differs from its replayed log.
type Mismatch struct {
	UserA   string `json:"user_a"`
	UserB   string `json:"user_b"`
	Stored  int64  `json:"stored"`
	Derived int64  `json:"derived"`
}

type CreateTransactionRequest struct {
	// ID is optional; pass the same ID when retrying a create.
	ID           string   `json:"id,omitempty" validate:"omitempty,max=64"`
	GroupID      string   `json:"group_id" validate:"required"`
	PayerID      string   `json:"payer_id" validate:"required"`
	Amount       int64    `json:"amount" validate:"gt=0"`
	SplitKind    string   `json:"split_kind" validate:"required,oneof=equal exact percentage itemized"`
	Participants []string `json:"participants,omitempty" validate:"required_if=SplitKind equal,dive,required"`
	Shares       []Share  `json:"shares,omitempty" validate:"required_if=SplitKind exact,required_if=SplitKind percentage,dive"`
	Items        []Item   `json:"items,omitempty" validate:"required_if=SplitKind itemized,dive"`
	Description  string   `json:"description,omitempty" validate:"max=512"`
}

type CreateTransactionResponse struct {
	Transaction *Transaction `json:"transaction"`
}

type DeleteTransactionRequest struct {
	ID string `json:"id" validate:"required"`
}

type DeleteTransactionResponse struct {
	Transaction *Transaction `json:"transaction"`
}

type GetTransactionRequest struct {
	ID string `json:"id" validate:"required"`
}

type GetTransactionResponse struct {
	Transaction *Transaction `json:"transaction"`
}

type ListTransactionsRequest struct {
	GroupID        string `json:"group_id" validate:"required"`
	IncludeDeleted bool   `json:"include_deleted,omitempty"`
}

type ListTransactionsResponse struct {
	Transactions []*Transaction `json:"transactions"`
}

type GetGroupBalancesRequest struct {
	GroupID string `json:"group_id" validate:"required"`
}

type GetGroupBalancesResponse struct {
	GroupID  string          `json:"group_id"`
	Balances []*BalanceEntry `json:"balances"`
}

type GetUserNetPositionRequest struct {
	GroupID string `json:"group_id" validate:"required"`
	UserID  string `json:"user_id" validate:"required"`
}

type GetUserNetPositionResponse struct {
	GroupID  string `json:"group_id"`
	UserID   string `json:"user_id"`
	Position int64  `json:"position"`
}

type SuggestSettlementsRequest struct {
	GroupID string `json:"group_id" validate:"required"`
}

type SuggestSettlementsResponse struct {
	Settlements []*Settlement `json:"settlements"`
}

type VerifyGroupRequest struct {
	GroupID string `json:"group_id" validate:"required"`
}

type VerifyGroupResponse struct {
	GroupID      string      `json:"group_id"`
	OK           bool        `json:"ok"`
	Transactions int         `json:"transactions"`
	Entries      int         `json:"entries"`
	NetSum       int64       `json:"net_sum"`
	Mismatches   []*Mismatch `json:"mismatches,omitempty"`
}
