package service

import (
	"context"
	"errors"
	"log/slog"

	"connectrpc.com/connect"
	"github.com/go-playground/validator/v10"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/ledger"
	"github.com/mmynk/splitledger/internal/middleware"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/pkg/api"
	"github.com/mmynk/splitledger/pkg/api/apiconnect"
)

// LedgerService implements the Connect LedgerService on top of a ledger.Engine.
type LedgerService struct {
	engine   *ledger.Engine
	validate *validator.Validate
	logger   *slog.Logger
}

var _ apiconnect.LedgerServiceHandler = (*LedgerService)(nil)

// NewLedgerService creates a new LedgerService backed by the given engine.
func NewLedgerService(engine *ledger.Engine, logger *slog.Logger) *LedgerService {
	if logger == nil {
		logger = slog.Default()
	}
	return &LedgerService{
		engine:   engine,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

// CreateTransaction computes splits and records a new transaction.
// The authenticated caller, if any, is recorded as the creator.
func (s *LedgerService) CreateTransaction(ctx context.Context, req *connect.Request[api.CreateTransactionRequest]) (*connect.Response[api.CreateTransactionResponse], error) {
	msg := req.Msg
	s.logger.Info("CreateTransaction request received",
		"group_id", msg.GroupID,
		"payer_id", msg.PayerID,
		"amount", msg.Amount,
		"split_kind", msg.SplitKind,
	)

	if err := s.validate.StructCtx(ctx, msg); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	creator := middleware.GetUserID(ctx)
	if creator == "" {
		creator = msg.PayerID
	}

	txn, err := s.engine.CreateTransaction(ctx, ledger.CreateRequest{
		ID:          msg.ID,
		GroupID:     msg.GroupID,
		PayerID:     msg.PayerID,
		CreatorID:   creator,
		Amount:      msg.Amount,
		Split:       splitSpecFromAPI(msg),
		Description: msg.Description,
	})
	if err != nil {
		return nil, connectError(err)
	}

	return connect.NewResponse(&api.CreateTransactionResponse{Transaction: TransactionToAPI(txn)}), nil
}

// DeleteTransaction reverses and tombstones a transaction.
func (s *LedgerService) DeleteTransaction(ctx context.Context, req *connect.Request[api.DeleteTransactionRequest]) (*connect.Response[api.DeleteTransactionResponse], error) {
	s.logger.Info("DeleteTransaction request received", "txn_id", req.Msg.ID)

	if err := s.validate.StructCtx(ctx, req.Msg); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	txn, err := s.engine.DeleteTransaction(ctx, req.Msg.ID)
	if err != nil {
		return nil, connectError(err)
	}

	return connect.NewResponse(&api.DeleteTransactionResponse{Transaction: TransactionToAPI(txn)}), nil
}

// GetTransaction returns a transaction, including tombstoned ones.
func (s *LedgerService) GetTransaction(ctx context.Context, req *connect.Request[api.GetTransactionRequest]) (*connect.Response[api.GetTransactionResponse], error) {
	if err := s.validate.StructCtx(ctx, req.Msg); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	txn, err := s.engine.GetTransaction(ctx, req.Msg.ID)
	if err != nil {
		return nil, connectError(err)
	}

	return connect.NewResponse(&api.GetTransactionResponse{Transaction: TransactionToAPI(txn)}), nil
}

// ListTransactions returns a group's log in creation order.
func (s *LedgerService) ListTransactions(ctx context.Context, req *connect.Request[api.ListTransactionsRequest]) (*connect.Response[api.ListTransactionsResponse], error) {
	if err := s.validate.StructCtx(ctx, req.Msg); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	txns, err := s.engine.ListTransactions(ctx, req.Msg.GroupID, req.Msg.IncludeDeleted)
	if err != nil {
		return nil, connectError(err)
	}

	out := make([]*api.Transaction, len(txns))
	for i, txn := range txns {
		out[i] = TransactionToAPI(txn)
	}
	return connect.NewResponse(&api.ListTransactionsResponse{Transactions: out}), nil
}

// GetGroupBalances returns every non-zero pairwise balance of a group.
func (s *LedgerService) GetGroupBalances(ctx context.Context, req *connect.Request[api.GetGroupBalancesRequest]) (*connect.Response[api.GetGroupBalancesResponse], error) {
	if err := s.validate.StructCtx(ctx, req.Msg); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	entries, err := s.engine.GetGroupBalances(ctx, req.Msg.GroupID)
	if err != nil {
		return nil, connectError(err)
	}

	out := make([]*api.BalanceEntry, len(entries))
	for i, e := range entries {
		out[i] = &api.BalanceEntry{UserA: e.UserA, UserB: e.UserB, Amount: e.Amount}
	}
	return connect.NewResponse(&api.GetGroupBalancesResponse{GroupID: req.Msg.GroupID, Balances: out}), nil
}

// GetUserNetPosition returns how much a user is owed (positive) or owes (negative) in a group.
func (s *LedgerService) GetUserNetPosition(ctx context.Context, req *connect.Request[api.GetUserNetPositionRequest]) (*connect.Response[api.GetUserNetPositionResponse], error) {
	if err := s.validate.StructCtx(ctx, req.Msg); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	pos, err := s.engine.GetUserNetPosition(ctx, req.Msg.GroupID, req.Msg.UserID)
	if err != nil {
		return nil, connectError(err)
	}

	return connect.NewResponse(&api.GetUserNetPositionResponse{
		GroupID:  req.Msg.GroupID,
		UserID:   req.Msg.UserID,
		Position: pos,
	}), nil
}

// SuggestSettlements returns payments that would clear the group's debts.
func (s *LedgerService) SuggestSettlements(ctx context.Context, req *connect.Request[api.SuggestSettlementsRequest]) (*connect.Response[api.SuggestSettlementsResponse], error) {
	if err := s.validate.StructCtx(ctx, req.Msg); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	settlements, err := s.engine.SuggestSettlements(ctx, req.Msg.GroupID)
	if err != nil {
		return nil, connectError(err)
	}

	out := make([]*api.Settlement, len(settlements))
	for i, st := range settlements {
		out[i] = &api.Settlement{FromUserID: st.FromUserID, ToUserID: st.ToUserID, Amount: st.Amount}
	}
	return connect.NewResponse(&api.SuggestSettlementsResponse{Settlements: out}), nil
}

// VerifyGroup compares stored balances against a replay of the group's log.
func (s *LedgerService) VerifyGroup(ctx context.Context, req *connect.Request[api.VerifyGroupRequest]) (*connect.Response[api.VerifyGroupResponse], error) {
	if err := s.validate.StructCtx(ctx, req.Msg); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	report, err := s.engine.Verify(ctx, req.Msg.GroupID)
	if err != nil {
		return nil, connectError(err)
	}
	if !report.OK() {
		s.logger.Warn("VerifyGroup found drift",
			"group_id", report.GroupID,
			"mismatches", len(report.Mismatches),
			"net_sum", report.NetSum,
		)
	}

	resp := &api.VerifyGroupResponse{
		GroupID:      report.GroupID,
		OK:           report.OK(),
		Transactions: report.Transactions,
		Entries:      report.Entries,
		NetSum:       report.NetSum,
	}
	for _, m := range report.Mismatches {
		resp.Mismatches = append(resp.Mismatches, &api.Mismatch{
			UserA:   m.UserA,
			UserB:   m.UserB,
			Stored:  m.Stored,
			Derived: m.Derived,
		})
	}
	return connect.NewResponse(resp), nil
}

// connectError maps ledger errors to Connect codes.
func connectError(err error) error {
	switch {
	case errors.Is(err, ledger.ErrInvalidSplit), errors.Is(err, ledger.ErrUnknownParticipant):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, ledger.ErrGroupNotFound), errors.Is(err, ledger.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, ledger.ErrAlreadyExists):
		return connect.NewError(connect.CodeAlreadyExists, err)
	case errors.Is(err, ledger.ErrConcurrencyConflict):
		return connect.NewError(connect.CodeAborted, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}

func splitSpecFromAPI(msg *api.CreateTransactionRequest) calculator.SplitSpec {
	spec := calculator.SplitSpec{
		Kind:         models.SplitKind(msg.SplitKind),
		Participants: msg.Participants,
	}
	for _, sh := range msg.Shares {
		spec.Shares = append(spec.Shares, calculator.Share{UserID: sh.UserID, Value: sh.Value})
	}
	for _, it := range msg.Items {
		spec.Items = append(spec.Items, calculator.Item{
			Description: it.Description,
			Amount:      it.Amount,
			AssignedTo:  it.AssignedTo,
		})
	}
	return spec
}

// TransactionToAPI converts a stored transaction to its wire form.
func TransactionToAPI(txn *models.Transaction) *api.Transaction {
	splits := make([]api.Split, len(txn.Splits))
	for i, s := range txn.Splits {
		splits[i] = api.Split{UserID: s.UserID, Amount: s.Amount}
	}
	return &api.Transaction{
		ID:          txn.ID,
		GroupID:     txn.GroupID,
		Amount:      txn.Amount,
		PayerID:     txn.PayerID,
		CreatorID:   txn.CreatorID,
		SplitKind:   string(txn.Kind),
		Splits:      splits,
		Description: txn.Description,
		CreatedAt:   txn.CreatedAt,
		DeletedAt:   txn.DeletedAt,
		Seq:         txn.Seq,
	}
}
