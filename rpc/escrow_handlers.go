package rpc

import (
	"context"
	"errors"
	"math/big"
	"time"

	"nftescrow/crypto"
	"nftescrow/eventlog"
	"nftescrow/native/escrow"
	"nftescrow/observability/metrics"
)

type createTradeParams struct {
	ID     string     `json:"id"`
	PartyA string     `json:"partyA"`
	PartyB string     `json:"partyB"`
	FromA  []itemJSON `json:"fromA"`
	FromB  []itemJSON `json:"fromB"`
}

type depositParams struct {
	ID         string    `json:"id"`
	Collection string    `json:"collection"`
	TokenIDs   []tokenID `json:"tokenIds"`
}

type depositAllParams struct {
	ID           string     `json:"id"`
	Counterparty string     `json:"counterparty"`
	Have         []itemJSON `json:"have"`
	Want         []itemJSON `json:"want"`
}

type tradeIDParams struct {
	ID string `json:"id"`
}

type requiredItemsParams struct {
	ID    string `json:"id"`
	Party string `json:"party"`
}

type identityParams struct {
	Identity string `json:"identity"`
}

type listEventsParams struct {
	TradeID string `json:"tradeId,omitempty"`
	Type    string `json:"type,omitempty"`
	Party   string `json:"party,omitempty"`
	After   int64  `json:"after,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

type tradeIDsResult struct {
	Identity string   `json:"identity"`
	TradeIDs []string `json:"tradeIds"`
}

type vaultResult struct {
	Vault         string `json:"vault"`
	DepositPolicy string `json:"depositPolicy"`
	CancelPolicy  string `json:"cancelPolicy"`
}

var errJournalDisabled = errors.New("event journal not configured")

func (s *Server) handleCreateTrade(ctx context.Context, req *RPCRequest) (interface{}, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	var params createTradeParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	partyA, err := parseAccount("partyA", params.PartyA)
	if err != nil {
		return nil, invalidParams("%v", err)
	}
	partyB, err := parseAccount("partyB", params.PartyB)
	if err != nil {
		return nil, invalidParams("%v", err)
	}
	fromA, err := parseItems("fromA", params.FromA)
	if err != nil {
		return nil, invalidParams("%v", err)
	}
	fromB, err := parseItems("fromB", params.FromB)
	if err != nil {
		return nil, invalidParams("%v", err)
	}
	trade, err := s.node.Escrow().CreateTrade(ctx, caller, params.ID, partyA, partyB, fromA, fromB)
	if err != nil {
		return nil, err
	}
	s.recordCreated(trade)
	return formatTrade(trade), nil
}

func (s *Server) handleDeposit(ctx context.Context, req *RPCRequest) (interface{}, error) {
	return s.handleItemsCall(ctx, req, s.node.Escrow().Deposit)
}

func (s *Server) handleWithdraw(ctx context.Context, req *RPCRequest) (interface{}, error) {
	return s.handleItemsCall(ctx, req, s.node.Escrow().Withdraw)
}

type itemsCall func(ctx context.Context, caller [20]byte, id string, collection [20]byte, tokenIDs []*big.Int) (*escrow.Trade, error)

func (s *Server) handleItemsCall(ctx context.Context, req *RPCRequest, fn itemsCall) (interface{}, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	var params depositParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	collection, err := parseCollection(params.Collection)
	if err != nil {
		return nil, invalidParams("collection: %v", err)
	}
	ids, err := tokenIDValues(params.TokenIDs)
	if err != nil {
		return nil, invalidParams("%v", err)
	}
	trade, err := fn(ctx, caller, params.ID, collection, ids)
	if err != nil {
		return nil, err
	}
	s.recordClosed(trade)
	return formatTrade(trade), nil
}

func (s *Server) handleDepositAll(ctx context.Context, req *RPCRequest) (interface{}, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	var params depositAllParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	counterparty, err := parseAccount("counterparty", params.Counterparty)
	if err != nil {
		return nil, invalidParams("%v", err)
	}
	have, err := parseItems("have", params.Have)
	if err != nil {
		return nil, invalidParams("%v", err)
	}
	want, err := parseItems("want", params.Want)
	if err != nil {
		return nil, invalidParams("%v", err)
	}
	trade, err := s.node.Escrow().DepositAll(ctx, caller, params.ID, counterparty, have, want)
	if err != nil {
		return nil, err
	}
	if trade.Owner == caller && !trade.BLocked {
		s.recordCreated(trade)
	}
	s.recordClosed(trade)
	return formatTrade(trade), nil
}

func (s *Server) handleLock(ctx context.Context, req *RPCRequest) (interface{}, error) {
	return s.handleTradeCall(ctx, req, s.node.Escrow().Lock)
}

func (s *Server) handleCancelTradeOffer(ctx context.Context, req *RPCRequest) (interface{}, error) {
	return s.handleTradeCall(ctx, req, s.node.Escrow().CancelTradeOffer)
}

func (s *Server) handleTradeCall(ctx context.Context, req *RPCRequest, fn func(context.Context, [20]byte, string) (*escrow.Trade, error)) (interface{}, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	var params tradeIDParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	trade, err := fn(ctx, caller, params.ID)
	if err != nil {
		return nil, err
	}
	s.recordClosed(trade)
	return formatTrade(trade), nil
}

func (s *Server) handleGetTrade(ctx context.Context, req *RPCRequest) (interface{}, error) {
	var params tradeIDParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	trade, err := s.node.Escrow().GetTrade(ctx, params.ID)
	if err != nil {
		return nil, err
	}
	return formatTrade(trade), nil
}

func (s *Server) handleGetRequiredItems(ctx context.Context, req *RPCRequest) (interface{}, error) {
	var params requiredItemsParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	var party [20]byte
	if params.Party != "" {
		parsed, err := parseAccount("party", params.Party)
		if err != nil {
			return nil, invalidParams("%v", err)
		}
		party = parsed
	} else if caller, ok := callerFrom(ctx); ok {
		party = caller
	} else {
		return nil, invalidParams("party required")
	}
	items, err := s.node.Escrow().GetRequiredItems(ctx, params.ID, party)
	if err != nil {
		return nil, err
	}
	return formatItems(items), nil
}

func (s *Server) handleGetTradeIDsOf(ctx context.Context, req *RPCRequest) (interface{}, error) {
	var params identityParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	identity, err := parseAccount("identity", params.Identity)
	if err != nil {
		return nil, invalidParams("%v", err)
	}
	ids, err := s.node.Escrow().GetTradeIDsOf(ctx, identity)
	if err != nil {
		return nil, err
	}
	return tradeIDsResult{Identity: crypto.FormatAccount(identity), TradeIDs: ids}, nil
}

func (s *Server) handleGetTradesOf(ctx context.Context, req *RPCRequest) (interface{}, error) {
	var params identityParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	identity, err := parseAccount("identity", params.Identity)
	if err != nil {
		return nil, invalidParams("%v", err)
	}
	trades, err := s.node.TradesOf(ctx, identity)
	if err != nil {
		return nil, err
	}
	out := make([]tradeJSON, 0, len(trades))
	for _, t := range trades {
		out = append(out, formatTrade(t))
	}
	return out, nil
}

func (s *Server) handleListEvents(ctx context.Context, req *RPCRequest) (interface{}, error) {
	if s.journal == nil {
		return nil, errJournalDisabled
	}
	var params listEventsParams
	if len(req.Params) > 0 {
		if err := decodeParams(req, &params); err != nil {
			return nil, err
		}
	}
	if params.Party != "" {
		if _, err := parseAccount("party", params.Party); err != nil {
			return nil, invalidParams("%v", err)
		}
	}
	if params.After < 0 || params.Limit < 0 {
		return nil, invalidParams("after and limit must not be negative")
	}
	records, err := s.journal.List(ctx, eventlog.Filter{
		TradeID: params.TradeID,
		Type:    params.Type,
		Party:   params.Party,
		After:   params.After,
		Limit:   params.Limit,
	})
	if err != nil {
		return nil, err
	}
	out := make([]eventJSON, 0, len(records))
	for _, rec := range records {
		out = append(out, formatRecord(rec))
	}
	return out, nil
}

func (s *Server) handleVault(context.Context, *RPCRequest) (interface{}, error) {
	engine := s.node.Escrow()
	return vaultResult{
		Vault:         crypto.FormatAccount(engine.Vault()),
		DepositPolicy: string(engine.DepositPolicy()),
		CancelPolicy:  string(engine.CancelPolicy()),
	}, nil
}

func (s *Server) recordCreated(trade *escrow.Trade) {
	metrics.Trades().RecordCreated(string(s.node.Escrow().DepositPolicy()), len(trade.RequiredFromA), len(trade.RequiredFromB))
}

// recordClosed counts trades closed by the call that returned them. Calls on
// an already closed trade fail, so a closed result always closed here.
func (s *Server) recordClosed(trade *escrow.Trade) {
	if trade == nil || !trade.Closed {
		return
	}
	lifetime := time.Duration(trade.ClosedAt-trade.CreatedAt) * time.Second
	metrics.Trades().RecordClosed(trade.Status.String(), lifetime)
}
