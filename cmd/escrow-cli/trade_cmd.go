package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
)

var newTradeID = uuid.NewString

func runTradeCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, tradeUsage())
		return 1
	}
	switch args[0] {
	case "create":
		return runTradeCreate(args[1:], stdout, stderr)
	case "deposit":
		return runTradeItems("escrow_deposit", "trade deposit", args[1:], stdout, stderr)
	case "withdraw":
		return runTradeItems("escrow_withdraw", "trade withdraw", args[1:], stdout, stderr)
	case "deposit-all":
		return runTradeDepositAll(args[1:], stdout, stderr)
	case "lock":
		return runTradeByID("escrow_lock", "trade lock", true, args[1:], stdout, stderr)
	case "cancel":
		return runTradeByID("escrow_cancelTradeOffer", "trade cancel", true, args[1:], stdout, stderr)
	case "get":
		return runTradeByID("escrow_getTrade", "trade get", false, args[1:], stdout, stderr)
	case "required":
		return runTradeRequired(args[1:], stdout, stderr)
	case "list":
		return runTradeList(args[1:], stdout, stderr)
	case "events":
		return runTradeEvents(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown trade subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, tradeUsage())
		return 1
	}
}

func tradeUsage() string {
	return strings.TrimSpace(`Usage:
  escrow-cli trade <command> [flags]

Commands:
  create       Record a trade offer between two parties
  deposit      Move tokens from the caller into escrow
  withdraw     Return deposited tokens to the caller
  deposit-all  Create and fully fund a trade in one call (atomic policy)
  lock         Declare the caller's side complete (locking policy)
  cancel       Cancel an open trade and refund deposits
  get          Show a trade
  required     Show the items a party still owes
  list         List trade ids involving an identity (--full for records)
  events       Query the event journal

Items are written as COLLECTION:TOKEN_ID, comma separated, where COLLECTION
is a registry symbol or an nftc1... address.
`)
}

func runTradeCreate(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("trade create", stderr, tradeUsage())
	var id, partyA, partyB, fromA, fromB string
	fs.StringVar(&id, "id", "", "trade identifier (generated when omitted)")
	fs.StringVar(&partyA, "a", "", "party A bech32 address")
	fs.StringVar(&partyB, "b", "", "party B bech32 address")
	fs.StringVar(&fromA, "from-a", "", "items party A must deposit")
	fs.StringVar(&fromB, "from-b", "", "items party B must deposit")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if strings.TrimSpace(partyA) == "" {
		return printError(stderr, "--a is required")
	}
	if strings.TrimSpace(partyB) == "" {
		return printError(stderr, "--b is required")
	}
	itemsA, err := parseItemList("from-a", fromA)
	if err != nil {
		return printError(stderr, err.Error())
	}
	itemsB, err := parseItemList("from-b", fromB)
	if err != nil {
		return printError(stderr, err.Error())
	}
	if len(itemsA) == 0 && len(itemsB) == 0 {
		return printError(stderr, "at least one of --from-a or --from-b is required")
	}
	if strings.TrimSpace(id) == "" {
		id = newTradeID()
		fmt.Fprintf(stderr, "trade id: %s\n", id)
	}
	params := map[string]interface{}{
		"id":     strings.TrimSpace(id),
		"partyA": strings.TrimSpace(partyA),
		"partyB": strings.TrimSpace(partyB),
		"fromA":  itemsA,
		"fromB":  itemsB,
	}
	return invoke("escrow_createTrade", params, true, stdout, stderr)
}

func runTradeItems(method, name string, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet(name, stderr, tradeUsage())
	var id, collection, tokens string
	fs.StringVar(&id, "id", "", "trade identifier")
	fs.StringVar(&collection, "collection", "", "collection symbol or nftc1... address")
	fs.StringVar(&tokens, "tokens", "", "comma separated token ids")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if strings.TrimSpace(id) == "" {
		return printError(stderr, "--id is required")
	}
	if strings.TrimSpace(collection) == "" {
		return printError(stderr, "--collection is required")
	}
	ids, err := parseTokenIDs(tokens)
	if err != nil {
		return printError(stderr, err.Error())
	}
	params := map[string]interface{}{
		"id":         strings.TrimSpace(id),
		"collection": strings.TrimSpace(collection),
		"tokenIds":   ids,
	}
	return invoke(method, params, true, stdout, stderr)
}

func runTradeDepositAll(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("trade deposit-all", stderr, tradeUsage())
	var id, counterparty, have, want string
	fs.StringVar(&id, "id", "", "trade identifier (generated when omitted)")
	fs.StringVar(&counterparty, "counterparty", "", "other party bech32 address")
	fs.StringVar(&have, "have", "", "items the caller deposits")
	fs.StringVar(&want, "want", "", "items the counterparty must deposit")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if strings.TrimSpace(counterparty) == "" {
		return printError(stderr, "--counterparty is required")
	}
	haveItems, err := parseItemList("have", have)
	if err != nil {
		return printError(stderr, err.Error())
	}
	wantItems, err := parseItemList("want", want)
	if err != nil {
		return printError(stderr, err.Error())
	}
	if strings.TrimSpace(id) == "" {
		id = newTradeID()
		fmt.Fprintf(stderr, "trade id: %s\n", id)
	}
	params := map[string]interface{}{
		"id":           strings.TrimSpace(id),
		"counterparty": strings.TrimSpace(counterparty),
		"have":         haveItems,
		"want":         wantItems,
	}
	return invoke("escrow_depositAll", params, true, stdout, stderr)
}

func runTradeByID(method, name string, requireAuth bool, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet(name, stderr, tradeUsage())
	var id string
	fs.StringVar(&id, "id", "", "trade identifier")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if strings.TrimSpace(id) == "" {
		return printError(stderr, "--id is required")
	}
	return invoke(method, map[string]interface{}{"id": strings.TrimSpace(id)}, requireAuth, stdout, stderr)
}

func runTradeRequired(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("trade required", stderr, tradeUsage())
	var id, party string
	fs.StringVar(&id, "id", "", "trade identifier")
	fs.StringVar(&party, "party", "", "party address (defaults to the token subject)")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if strings.TrimSpace(id) == "" {
		return printError(stderr, "--id is required")
	}
	params := map[string]interface{}{"id": strings.TrimSpace(id)}
	if strings.TrimSpace(party) != "" {
		params["party"] = strings.TrimSpace(party)
	}
	return invoke("escrow_getRequiredItems", params, strings.TrimSpace(party) == "", stdout, stderr)
}

func runTradeList(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("trade list", stderr, tradeUsage())
	var identity string
	var full bool
	fs.StringVar(&identity, "identity", "", "identity bech32 address")
	fs.BoolVar(&full, "full", false, "print whole trade records instead of ids")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if strings.TrimSpace(identity) == "" {
		return printError(stderr, "--identity is required")
	}
	method := "escrow_getTradeIdsOf"
	if full {
		method = "escrow_getTradesOf"
	}
	return invoke(method, map[string]interface{}{"identity": strings.TrimSpace(identity)}, false, stdout, stderr)
}

func runTradeEvents(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("trade events", stderr, tradeUsage())
	var (
		tradeID   string
		eventType string
		party     string
		after     int64
		limit     int
	)
	fs.StringVar(&tradeID, "trade", "", "only events of this trade")
	fs.StringVar(&eventType, "type", "", "only events of this type, e.g. escrow.trade.settled")
	fs.StringVar(&party, "party", "", "only events involving this party")
	fs.Int64Var(&after, "after", 0, "only events with a sequence above this value")
	fs.IntVar(&limit, "limit", 0, "maximum number of events")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if after < 0 {
		return printError(stderr, "--after must be non-negative")
	}
	if limit < 0 {
		return printError(stderr, "--limit must be non-negative")
	}
	params := map[string]interface{}{}
	if v := strings.TrimSpace(tradeID); v != "" {
		params["tradeId"] = v
	}
	if v := strings.TrimSpace(eventType); v != "" {
		params["type"] = v
	}
	if v := strings.TrimSpace(party); v != "" {
		params["party"] = v
	}
	if after > 0 {
		params["after"] = after
	}
	if limit > 0 {
		params["limit"] = limit
	}
	return invoke("escrow_listEvents", params, false, stdout, stderr)
}

func runVault(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("vault", stderr, "Usage:\n  escrow-cli vault")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	return invoke("escrow_vault", nil, false, stdout, stderr)
}
