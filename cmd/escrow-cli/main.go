package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

var (
	rpcEndpoint  = defaultRPCEndpoint()
	rpcAuthToken = os.Getenv("ESCROW_RPC_TOKEN")
	rpcCall      = callRPC
	httpClient   = &http.Client{Timeout: 30 * time.Second}
)

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	args, err := applyGlobalFlags(args)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if len(args) == 0 {
		fmt.Fprintln(stderr, usage())
		return 1
	}
	switch args[0] {
	case "trade":
		return runTradeCommand(args[1:], stdout, stderr)
	case "nft":
		return runNFTCommand(args[1:], stdout, stderr)
	case "vault":
		return runVault(args[1:], stdout, stderr)
	case "keygen":
		return runKeygen(args[1:], stdout, stderr)
	case "token":
		return runIssueToken(args[1:], stdout, stderr)
	case "help", "-h", "--help":
		fmt.Fprintln(stdout, usage())
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		fmt.Fprintln(stderr, usage())
		return 1
	}
}

func usage() string {
	return strings.TrimSpace(`Usage:
  escrow-cli [--rpc URL] <command> [flags]

Commands:
  trade   Create, fund, lock, withdraw and cancel trades
  nft     Query ownership and manage registry approvals
  vault   Show the escrow custody address and active policies
  keygen  Create or open an identity keystore
  token   Issue a bearer token for a keystore identity

Environment:
  ESCROW_RPC_URL         default RPC endpoint
  ESCROW_RPC_TOKEN       bearer token sent with every request
  ESCROW_KEYSTORE_PASS   keystore passphrase (prompted when unset)
  ESCROW_RPC_JWT_SECRET  shared secret used by "token"
`)
}

func defaultRPCEndpoint() string {
	if v := strings.TrimSpace(os.Getenv("ESCROW_RPC_URL")); v != "" {
		return v
	}
	return "http://127.0.0.1:8645"
}

func applyGlobalFlags(args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--rpc" {
			if i+1 >= len(args) {
				return nil, fmt.Errorf("missing value for --rpc")
			}
			rpcEndpoint = args[i+1]
			i++
			continue
		}
		if strings.HasPrefix(arg, "--rpc=") {
			rpcEndpoint = strings.TrimPrefix(arg, "--rpc=")
			continue
		}
		out = append(out, arg)
	}
	return out, nil
}

func newFlagSet(name string, stderr io.Writer, help string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, help)
		fs.PrintDefaults()
	}
	return fs
}

// parseFlags parses args and rejects trailing positional arguments.
func parseFlags(fs *flag.FlagSet, args []string, stderr io.Writer) bool {
	if err := fs.Parse(args); err != nil {
		return false
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(stderr, "Error: unexpected positional arguments")
		return false
	}
	return true
}

func printError(w io.Writer, msg string) int {
	fmt.Fprintf(w, "Error: %s\n", msg)
	return 1
}

// invoke performs the call and prints either the result or the error.
func invoke(method string, params interface{}, requireAuth bool, stdout, stderr io.Writer) int {
	result, rpcErr, err := rpcCall(method, params, requireAuth)
	if err != nil {
		fmt.Fprintf(stderr, "RPC call failed: %v\n", err)
		return 1
	}
	if rpcErr != nil {
		fmt.Fprintf(stderr, "RPC error %d: %s\n", rpcErr.Code, rpcErr.Message)
		if len(rpcErr.Data) > 0 && string(rpcErr.Data) != "null" {
			fmt.Fprintf(stderr, "  %s\n", rpcErr.Data)
		}
		return 1
	}
	writeResult(stdout, result)
	return 0
}

func writeResult(w io.Writer, result json.RawMessage) {
	if len(result) == 0 {
		fmt.Fprintln(w, "null")
		return
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, result, "", "  "); err != nil {
		w.Write(result)
		fmt.Fprintln(w)
		return
	}
	pretty.WriteByte('\n')
	w.Write(pretty.Bytes())
}

func callRPC(method string, params interface{}, requireAuth bool) (json.RawMessage, *rpcError, error) {
	payload := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
	}
	if params != nil {
		payload["params"] = []interface{}{params}
	} else {
		payload["params"] = []interface{}{}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	req, err := http.NewRequest(http.MethodPost, rpcEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	token := strings.TrimSpace(rpcAuthToken)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	} else if requireAuth {
		return nil, nil, fmt.Errorf("%s requires ESCROW_RPC_TOKEN to be set", method)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("POST %s: %w", rpcEndpoint, err)
	}
	defer resp.Body.Close()

	var rpcResp struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, nil, fmt.Errorf("failed to decode RPC response (HTTP %d): %w", resp.StatusCode, err)
	}
	return rpcResp.Result, rpcResp.Error, nil
}
