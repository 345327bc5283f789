package rpc

import (
	"context"

	"nftescrow/crypto"
)

type tokenParams struct {
	Collection string  `json:"collection"`
	TokenID    tokenID `json:"tokenId"`
}

type approveParams struct {
	Collection string  `json:"collection"`
	TokenID    tokenID `json:"tokenId"`
	Operator   string  `json:"operator"`
}

type approvalForAllParams struct {
	Collection string `json:"collection"`
	Operator   string `json:"operator"`
	Approved   bool   `json:"approved"`
}

type isApprovedParams struct {
	Owner      string  `json:"owner"`
	Operator   string  `json:"operator"`
	Collection string  `json:"collection"`
	TokenID    tokenID `json:"tokenId"`
}

type transferParams struct {
	Collection string  `json:"collection"`
	TokenID    tokenID `json:"tokenId"`
	From       string  `json:"from"`
	To         string  `json:"to"`
}

type collectionParams struct {
	Collection string `json:"collection"`
}

type collectionResult struct {
	Address   string `json:"address"`
	Symbol    string `json:"symbol"`
	Name      string `json:"name"`
	Creator   string `json:"creator"`
	CreatedAt uint64 `json:"createdAt"`
}

type holderParams struct {
	Holder string `json:"holder"`
}

type approvalResult struct {
	Approved bool `json:"approved"`
}

func (s *Server) handleOwnerOf(_ context.Context, req *RPCRequest) (interface{}, error) {
	var params tokenParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	collection, err := parseCollection(params.Collection)
	if err != nil {
		return nil, invalidParams("collection: %v", err)
	}
	if params.TokenID.value == nil {
		return nil, invalidParams("tokenId required")
	}
	tok, err := s.node.RegistryToken(collection, params.TokenID.value)
	if err != nil {
		return nil, err
	}
	return formatToken(tok), nil
}

func (s *Server) handleApprove(ctx context.Context, req *RPCRequest) (interface{}, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	var params approveParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	collection, err := parseCollection(params.Collection)
	if err != nil {
		return nil, invalidParams("collection: %v", err)
	}
	if params.TokenID.value == nil {
		return nil, invalidParams("tokenId required")
	}
	operator, err := s.parseOperator(params.Operator)
	if err != nil {
		return nil, err
	}
	if err := s.node.RegistryApprove(caller, collection, params.TokenID.value, operator); err != nil {
		return nil, err
	}
	tok, err := s.node.RegistryToken(collection, params.TokenID.value)
	if err != nil {
		return nil, err
	}
	return formatToken(tok), nil
}

func (s *Server) handleSetApprovalForAll(ctx context.Context, req *RPCRequest) (interface{}, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	var params approvalForAllParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	collection, err := parseCollection(params.Collection)
	if err != nil {
		return nil, invalidParams("collection: %v", err)
	}
	operator, err := s.parseOperator(params.Operator)
	if err != nil {
		return nil, err
	}
	if err := s.node.RegistrySetApprovalForAll(caller, collection, operator, params.Approved); err != nil {
		return nil, err
	}
	return approvalResult{Approved: params.Approved}, nil
}

func (s *Server) handleIsApproved(_ context.Context, req *RPCRequest) (interface{}, error) {
	var params isApprovedParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	owner, err := parseAccount("owner", params.Owner)
	if err != nil {
		return nil, invalidParams("%v", err)
	}
	operator, err := s.parseOperator(params.Operator)
	if err != nil {
		return nil, err
	}
	collection, err := parseCollection(params.Collection)
	if err != nil {
		return nil, invalidParams("collection: %v", err)
	}
	if params.TokenID.value == nil {
		return nil, invalidParams("tokenId required")
	}
	ok, err := s.node.RegistryIsApproved(owner, operator, collection, params.TokenID.value)
	if err != nil {
		return nil, err
	}
	return approvalResult{Approved: ok}, nil
}

func (s *Server) handleTokensOf(_ context.Context, req *RPCRequest) (interface{}, error) {
	var params holderParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	holder, err := parseAccount("holder", params.Holder)
	if err != nil {
		return nil, invalidParams("%v", err)
	}
	refs, err := s.node.RegistryTokensOf(holder)
	if err != nil {
		return nil, err
	}
	out := make([]itemResult, 0, len(refs))
	for _, ref := range refs {
		out = append(out, itemResult{Collection: crypto.FormatCollection(ref.Collection), TokenID: ref.TokenID.String()})
	}
	return out, nil
}

// handleTransfer moves a token with the caller acting as operator. An empty
// from means the caller's own token.
func (s *Server) handleTransfer(ctx context.Context, req *RPCRequest) (interface{}, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	var params transferParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	collection, err := parseCollection(params.Collection)
	if err != nil {
		return nil, invalidParams("collection: %v", err)
	}
	if params.TokenID.value == nil {
		return nil, invalidParams("tokenId required")
	}
	from := caller
	if params.From != "" {
		if from, err = parseAccount("from", params.From); err != nil {
			return nil, invalidParams("%v", err)
		}
	}
	to, err := parseAccount("to", params.To)
	if err != nil {
		return nil, invalidParams("%v", err)
	}
	if err := s.node.RegistryTransfer(caller, from, to, collection, params.TokenID.value); err != nil {
		return nil, err
	}
	tok, err := s.node.RegistryToken(collection, params.TokenID.value)
	if err != nil {
		return nil, err
	}
	return formatToken(tok), nil
}

func (s *Server) handleGetCollection(_ context.Context, req *RPCRequest) (interface{}, error) {
	var params collectionParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	addr, err := parseCollection(params.Collection)
	if err != nil {
		return nil, invalidParams("collection: %v", err)
	}
	col, err := s.node.RegistryCollection(addr)
	if err != nil {
		return nil, err
	}
	return collectionResult{
		Address:   crypto.FormatCollection(col.Address),
		Symbol:    col.Symbol,
		Name:      col.Name,
		Creator:   crypto.FormatAccount(col.Creator),
		CreatedAt: col.CreatedAt,
	}, nil
}

// parseOperator accepts an account address or the literal "escrow" for the
// custody vault.
func (s *Server) parseOperator(value string) ([20]byte, error) {
	if value == "escrow" {
		return s.node.EscrowVault(), nil
	}
	operator, err := parseAccount("operator", value)
	if err != nil {
		return [20]byte{}, invalidParams("%v", err)
	}
	return operator, nil
}
