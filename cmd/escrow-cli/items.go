package main

import (
	"fmt"
	"math/big"
	"strings"
)

type itemParam struct {
	Collection string `json:"collection"`
	TokenID    string `json:"tokenId"`
}

// parseItemList reads a comma separated list of COLLECTION:ID pairs. The
// collection may be a registry symbol or a bech32 collection address.
func parseItemList(flagName, raw string) ([]itemParam, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return []itemParam{}, nil
	}
	parts := strings.Split(trimmed, ",")
	out := make([]itemParam, 0, len(parts))
	for _, part := range parts {
		entry := strings.TrimSpace(part)
		idx := strings.LastIndex(entry, ":")
		if idx <= 0 || idx == len(entry)-1 {
			return nil, fmt.Errorf("--%s entry %q must be COLLECTION:TOKEN_ID", flagName, entry)
		}
		id, err := parseTokenID(entry[idx+1:])
		if err != nil {
			return nil, fmt.Errorf("--%s entry %q: %w", flagName, entry, err)
		}
		out = append(out, itemParam{Collection: strings.TrimSpace(entry[:idx]), TokenID: id})
	}
	return out, nil
}

// parseTokenIDs reads a comma separated list of decimal token ids.
func parseTokenIDs(raw string) ([]string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("--tokens is required")
	}
	parts := strings.Split(trimmed, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		id, err := parseTokenID(part)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

func parseTokenID(raw string) (string, error) {
	value, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok || value.Sign() < 0 {
		return "", fmt.Errorf("invalid token id %q", strings.TrimSpace(raw))
	}
	return value.String(), nil
}
