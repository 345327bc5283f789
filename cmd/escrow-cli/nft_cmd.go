package main

import (
	"fmt"
	"io"
	"strings"
)

func runNFTCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, nftUsage())
		return 1
	}
	switch args[0] {
	case "owner":
		return runNFTOwner(args[1:], stdout, stderr)
	case "approve":
		return runNFTApprove(args[1:], stdout, stderr)
	case "approve-all":
		return runNFTApproveAll(args[1:], stdout, stderr)
	case "is-approved":
		return runNFTIsApproved(args[1:], stdout, stderr)
	case "tokens":
		return runNFTTokens(args[1:], stdout, stderr)
	case "transfer":
		return runNFTTransfer(args[1:], stdout, stderr)
	case "collection":
		return runNFTCollection(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown nft subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, nftUsage())
		return 1
	}
}

func nftUsage() string {
	return strings.TrimSpace(`Usage:
  escrow-cli nft <command> [flags]

Commands:
  owner        Show the token record and current holder
  approve      Approve an operator for a single token
  approve-all  Grant or revoke an operator for a whole collection
  is-approved  Check whether an operator may move a token
  tokens       List the tokens held by an identity
  transfer     Move a token as its owner or an approved operator
  collection   Show a registered collection

Operators may be given as bech32 addresses or as "escrow" for the vault.
`)
}

func runNFTOwner(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("nft owner", stderr, nftUsage())
	var collection, token string
	fs.StringVar(&collection, "collection", "", "collection symbol or nftc1... address")
	fs.StringVar(&token, "token", "", "token id")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	params, code := tokenRefParams(collection, token, stderr)
	if code != 0 {
		return code
	}
	return invoke("registry_ownerOf", params, false, stdout, stderr)
}

func runNFTApprove(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("nft approve", stderr, nftUsage())
	var collection, token, operator string
	fs.StringVar(&collection, "collection", "", "collection symbol or nftc1... address")
	fs.StringVar(&token, "token", "", "token id")
	fs.StringVar(&operator, "operator", "escrow", "operator address or \"escrow\"")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	params, code := tokenRefParams(collection, token, stderr)
	if code != 0 {
		return code
	}
	params["operator"] = strings.TrimSpace(operator)
	return invoke("registry_approve", params, true, stdout, stderr)
}

func runNFTApproveAll(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("nft approve-all", stderr, nftUsage())
	var collection, operator string
	var revoke bool
	fs.StringVar(&collection, "collection", "", "collection symbol or nftc1... address")
	fs.StringVar(&operator, "operator", "escrow", "operator address or \"escrow\"")
	fs.BoolVar(&revoke, "revoke", false, "remove the approval instead of granting it")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if strings.TrimSpace(collection) == "" {
		return printError(stderr, "--collection is required")
	}
	if strings.TrimSpace(operator) == "" {
		return printError(stderr, "--operator is required")
	}
	params := map[string]interface{}{
		"collection": strings.TrimSpace(collection),
		"operator":   strings.TrimSpace(operator),
		"approved":   !revoke,
	}
	return invoke("registry_setApprovalForAll", params, true, stdout, stderr)
}

func runNFTIsApproved(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("nft is-approved", stderr, nftUsage())
	var collection, token, owner, operator string
	fs.StringVar(&collection, "collection", "", "collection symbol or nftc1... address")
	fs.StringVar(&token, "token", "", "token id")
	fs.StringVar(&owner, "owner", "", "expected owner address")
	fs.StringVar(&operator, "operator", "escrow", "operator address or \"escrow\"")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if strings.TrimSpace(owner) == "" {
		return printError(stderr, "--owner is required")
	}
	params, code := tokenRefParams(collection, token, stderr)
	if code != 0 {
		return code
	}
	params["owner"] = strings.TrimSpace(owner)
	params["operator"] = strings.TrimSpace(operator)
	return invoke("registry_isApproved", params, false, stdout, stderr)
}

func runNFTTokens(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("nft tokens", stderr, nftUsage())
	var holder string
	fs.StringVar(&holder, "holder", "", "holder bech32 address")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if strings.TrimSpace(holder) == "" {
		return printError(stderr, "--holder is required")
	}
	return invoke("registry_tokensOf", map[string]interface{}{"holder": strings.TrimSpace(holder)}, false, stdout, stderr)
}

func runNFTTransfer(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("nft transfer", stderr, nftUsage())
	var collection, token, from, to string
	fs.StringVar(&collection, "collection", "", "collection symbol or nftc1... address")
	fs.StringVar(&token, "token", "", "token id")
	fs.StringVar(&from, "from", "", "current holder (defaults to the caller)")
	fs.StringVar(&to, "to", "", "recipient bech32 address")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if strings.TrimSpace(to) == "" {
		return printError(stderr, "--to is required")
	}
	params, code := tokenRefParams(collection, token, stderr)
	if code != 0 {
		return code
	}
	params["to"] = strings.TrimSpace(to)
	if strings.TrimSpace(from) != "" {
		params["from"] = strings.TrimSpace(from)
	}
	return invoke("registry_transfer", params, true, stdout, stderr)
}

func runNFTCollection(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("nft collection", stderr, nftUsage())
	var collection string
	fs.StringVar(&collection, "collection", "", "collection symbol or nftc1... address")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if strings.TrimSpace(collection) == "" {
		return printError(stderr, "--collection is required")
	}
	return invoke("registry_getCollection", map[string]interface{}{"collection": strings.TrimSpace(collection)}, false, stdout, stderr)
}

func tokenRefParams(collection, token string, stderr io.Writer) (map[string]interface{}, int) {
	if strings.TrimSpace(collection) == "" {
		return nil, printError(stderr, "--collection is required")
	}
	if strings.TrimSpace(token) == "" {
		return nil, printError(stderr, "--token is required")
	}
	id, err := parseTokenID(token)
	if err != nil {
		return nil, printError(stderr, err.Error())
	}
	return map[string]interface{}{
		"collection": strings.TrimSpace(collection),
		"tokenId":    id,
	}, 0
}
