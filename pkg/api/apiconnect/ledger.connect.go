// Package apiconnect wires the splitledger.v1.LedgerService messages to Connect
// handlers and clients, the way protoc-gen-connect-go lays out generated code.
package apiconnect

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/splitledger/pkg/api"
)

// LedgerServiceName is the fully-qualified name of the LedgerService service.
const LedgerServiceName = "splitledger.v1.LedgerService"

// Procedure paths, suitable for `connect.Request.Spec().Procedure` comparisons.
const (
	LedgerServiceCreateTransactionProcedure  = "/splitledger.v1.LedgerService/CreateTransaction"
	LedgerServiceDeleteTransactionProcedure  = "/splitledger.v1.LedgerService/DeleteTransaction"
	LedgerServiceGetTransactionProcedure     = "/splitledger.v1.LedgerService/GetTransaction"
	LedgerServiceListTransactionsProcedure   = "/splitledger.v1.LedgerService/ListTransactions"
	LedgerServiceGetGroupBalancesProcedure   = "/splitledger.v1.LedgerService/GetGroupBalances"
	LedgerServiceGetUserNetPositionProcedure = "/splitledger.v1.LedgerService/GetUserNetPosition"
	LedgerServiceSuggestSettlementsProcedure = "/splitledger.v1.LedgerService/SuggestSettlements"
	LedgerServiceVerifyGroupProcedure        = "/splitledger.v1.LedgerService/VerifyGroup"
)

// LedgerServiceClient is a client for the splitledger.v1.LedgerService service.
type LedgerServiceClient interface {
	CreateTransaction(context.Context, *connect.Request[api.CreateTransactionRequest]) (*connect.Response[api.CreateTransactionResponse], error)
	DeleteTransaction(context.Context, *connect.Request[api.DeleteTransactionRequest]) (*connect.Response[api.DeleteTransactionResponse], error)
	GetTransaction(context.Context, *connect.Request[api.GetTransactionRequest]) (*connect.Response[api.GetTransactionResponse], error)
	ListTransactions(context.Context, *connect.Request[api.ListTransactionsRequest]) (*connect.Response[api.ListTransactionsResponse], error)
	GetGroupBalances(context.Context, *connect.Request[api.GetGroupBalancesRequest]) (*connect.Response[api.GetGroupBalancesResponse], error)
	GetUserNetPosition(context.Context, *connect.Request[api.GetUserNetPositionRequest]) (*connect.Response[api.GetUserNetPositionResponse], error)
	SuggestSettlements(context.Context, *connect.Request[api.SuggestSettlementsRequest]) (*connect.Response[api.SuggestSettlementsResponse], error)
	VerifyGroup(context.Context, *connect.Request[api.VerifyGroupRequest]) (*connect.Response[api.VerifyGroupResponse], error)
}

// NewLedgerServiceClient constructs a client for the splitledger.v1.LedgerService service.
// Messages are always encoded with api.Codec.
func NewLedgerServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) LedgerServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(api.Codec{})}, opts...)
	return &ledgerServiceClient{
		createTransaction: connect.NewClient[api.CreateTransactionRequest, api.CreateTransactionResponse](
			httpClient, baseURL+LedgerServiceCreateTransactionProcedure, opts...),
		deleteTransaction: connect.NewClient[api.DeleteTransactionRequest, api.DeleteTransactionResponse](
			httpClient, baseURL+LedgerServiceDeleteTransactionProcedure, opts...),
		getTransaction: connect.NewClient[api.GetTransactionRequest, api.GetTransactionResponse](
			httpClient, baseURL+LedgerServiceGetTransactionProcedure, opts...),
		listTransactions: connect.NewClient[api.ListTransactionsRequest, api.ListTransactionsResponse](
			httpClient, baseURL+LedgerServiceListTransactionsProcedure, opts...),
		getGroupBalances: connect.NewClient[api.GetGroupBalancesRequest, api.GetGroupBalancesResponse](
			httpClient, baseURL+LedgerServiceGetGroupBalancesProcedure, opts...),
		getUserNetPosition: connect.NewClient[api.GetUserNetPositionRequest, api.GetUserNetPositionResponse](
			httpClient, baseURL+LedgerServiceGetUserNetPositionProcedure, opts...),
		suggestSettlements: connect.NewClient[api.SuggestSettlementsRequest, api.SuggestSettlementsResponse](
			httpClient, baseURL+LedgerServiceSuggestSettlementsProcedure, opts...),
		verifyGroup: connect.NewClient[api.VerifyGroupRequest, api.VerifyGroupResponse](
			httpClient, baseURL+LedgerServiceVerifyGroupProcedure, opts...),
	}
}

type ledgerServiceClient struct {
	createTransaction  *connect.Client[api.CreateTransactionRequest, api.CreateTransactionResponse]
	deleteTransaction  *connect.Client[api.DeleteTransactionRequest, api.DeleteTransactionResponse]
	getTransaction     *connect.Client[api.GetTransactionRequest, api.GetTransactionResponse]
	listTransactions   *connect.Client[api.ListTransactionsRequest, api.ListTransactionsResponse]
	getGroupBalances   *connect.Client[api.GetGroupBalancesRequest, api.GetGroupBalancesResponse]
	getUserNetPosition *connect.Client[api.GetUserNetPositionRequest, api.GetUserNetPositionResponse]
	suggestSettlements *connect.Client[api.SuggestSettlementsRequest, api.SuggestSettlementsResponse]
	verifyGroup        *connect.Client[api.VerifyGroupRequest, api.VerifyGroupResponse]
}

func (c *ledgerServiceClient) CreateTransaction(ctx context.Context, req *connect.Request[api.CreateTransactionRequest]) (*connect.Response[api.CreateTransactionResponse], error) {
	return c.createTransaction.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) DeleteTransaction(ctx context.Context, req *connect.Request[api.DeleteTransactionRequest]) (*connect.Response[api.DeleteTransactionResponse], error) {
	return c.deleteTransaction.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) GetTransaction(ctx context.Context, req *connect.Request[api.GetTransactionRequest]) (*connect.Response[api.GetTransactionResponse], error) {
	return c.getTransaction.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) ListTransactions(ctx context.Context, req *connect.Request[api.ListTransactionsRequest]) (*connect.Response[api.ListTransactionsResponse], error) {
	return c.listTransactions.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) GetGroupBalances(ctx context.Context, req *connect.Request[api.GetGroupBalancesRequest]) (*connect.Response[api.GetGroupBalancesResponse], error) {
	return c.getGroupBalances.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) GetUserNetPosition(ctx context.Context, req *connect.Request[api.GetUserNetPositionRequest]) (*connect.Response[api.GetUserNetPositionResponse], error) {
	return c.getUserNetPosition.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) SuggestSettlements(ctx context.Context, req *connect.Request[api.SuggestSettlementsRequest]) (*connect.Response[api.SuggestSettlementsResponse], error) {
	return c.suggestSettlements.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) VerifyGroup(ctx context.Context, req *connect.Request[api.VerifyGroupRequest]) (*connect.Response[api.VerifyGroupResponse], error) {
	return c.verifyGroup.CallUnary(ctx, req)
}

// LedgerServiceHandler is an implementation of the splitledger.v1.LedgerService service.
type LedgerServiceHandler interface {
	CreateTransaction(context.Context, *connect.Request[api.CreateTransactionRequest]) (*connect.Response[api.CreateTransactionResponse], error)
	DeleteTransaction(context.Context, *connect.Request[api.DeleteTransactionRequest]) (*connect.Response[api.DeleteTransactionResponse], error)
	GetTransaction(context.Context, *connect.Request[api.GetTransactionRequest]) (*connect.Response[api.GetTransactionResponse], error)
	ListTransactions(context.Context, *connect.Request[api.ListTransactionsRequest]) (*connect.Response[api.ListTransactionsResponse], error)
	GetGroupBalances(context.Context, *connect.Request[api.GetGroupBalancesRequest]) (*connect.Response[api.GetGroupBalancesResponse], error)
	GetUserNetPosition(context.Context, *connect.Request[api.GetUserNetPositionRequest]) (*connect.Response[api.GetUserNetPositionResponse], error)
	SuggestSettlements(context.Context, *connect.Request[api.SuggestSettlementsRequest]) (*connect.Response[api.SuggestSettlementsResponse], error)
	VerifyGroup(context.Context, *connect.Request[api.VerifyGroupRequest]) (*connect.Response[api.VerifyGroupResponse], error)
}

// NewLedgerServiceHandler builds an HTTP handler from the service implementation.
// It returns the path on which to mount the handler and the handler itself.
func NewLedgerServiceHandler(svc LedgerServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(api.Codec{})}, opts...)
	readOpts := append([]connect.HandlerOption{connect.WithIdempotency(connect.IdempotencyNoSideEffects)}, opts...)

	createTransaction := connect.NewUnaryHandler(LedgerServiceCreateTransactionProcedure, svc.CreateTransaction, opts...)
	deleteTransaction := connect.NewUnaryHandler(LedgerServiceDeleteTransactionProcedure, svc.DeleteTransaction, opts...)
	getTransaction := connect.NewUnaryHandler(LedgerServiceGetTransactionProcedure, svc.GetTransaction, readOpts...)
	listTransactions := connect.NewUnaryHandler(LedgerServiceListTransactionsProcedure, svc.ListTransactions, readOpts...)
	getGroupBalances := connect.NewUnaryHandler(LedgerServiceGetGroupBalancesProcedure, svc.GetGroupBalances, readOpts...)
	getUserNetPosition := connect.NewUnaryHandler(LedgerServiceGetUserNetPositionProcedure, svc.GetUserNetPosition, readOpts...)
	suggestSettlements := connect.NewUnaryHandler(LedgerServiceSuggestSettlementsProcedure, svc.SuggestSettlements, readOpts...)
	verifyGroup := connect.NewUnaryHandler(LedgerServiceVerifyGroupProcedure, svc.VerifyGroup, readOpts...)

	return "/splitledger.v1.LedgerService/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case LedgerServiceCreateTransactionProcedure:
			createTransaction.ServeHTTP(w, r)
		case LedgerServiceDeleteTransactionProcedure:
			deleteTransaction.ServeHTTP(w, r)
		case LedgerServiceGetTransactionProcedure:
			getTransaction.ServeHTTP(w, r)
		case LedgerServiceListTransactionsProcedure:
			listTransactions.ServeHTTP(w, r)
		case LedgerServiceGetGroupBalancesProcedure:
			getGroupBalances.ServeHTTP(w, r)
		case LedgerServiceGetUserNetPositionProcedure:
			getUserNetPosition.ServeHTTP(w, r)
		case LedgerServiceSuggestSettlementsProcedure:
			suggestSettlements.ServeHTTP(w, r)
		case LedgerServiceVerifyGroupProcedure:
			verifyGroup.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}
