package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"nftescrow/cmd/internal/passphrase"
	"nftescrow/crypto"
	"nftescrow/rpc"
)

const (
	keystorePassEnv = "ESCROW_KEYSTORE_PASS"
	jwtSecretEnv    = "ESCROW_RPC_JWT_SECRET"
)

var keystorePassphrase = func() (string, error) {
	return passphrase.NewSource(keystorePassEnv, "identity keystore").Get()
}

func runKeygen(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("keygen", stderr, "Usage:\n  escrow-cli keygen --keystore PATH")
	var path string
	fs.StringVar(&path, "keystore", "identity.json", "keystore file to open or create")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	key, created, err := openKeystore(path)
	if err != nil {
		return printError(stderr, err.Error())
	}
	addr := crypto.FormatAccount(key.PubKey().Address().Array())
	if created {
		fmt.Fprintf(stdout, "created %s\n", strings.TrimSpace(path))
	}
	fmt.Fprintln(stdout, addr)
	return 0
}

func runIssueToken(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("token", stderr, "Usage:\n  escrow-cli token --keystore PATH [--ttl 1h]")
	var (
		path     string
		subject  string
		issuer   string
		audience string
		ttl      time.Duration
	)
	fs.StringVar(&path, "keystore", "identity.json", "keystore holding the token subject")
	fs.StringVar(&subject, "subject", "", "bech32 subject; skips the keystore when set")
	fs.StringVar(&issuer, "issuer", "nftescrow", "token issuer claim")
	fs.StringVar(&audience, "audience", "escrowd", "token audience claim")
	fs.DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	secret := strings.TrimSpace(os.Getenv(jwtSecretEnv))
	if secret == "" {
		return printError(stderr, jwtSecretEnv+" must be set")
	}
	if ttl <= 0 {
		return printError(stderr, "--ttl must be positive")
	}

	var identity [20]byte
	if strings.TrimSpace(subject) != "" {
		parsed, err := crypto.ParseAddress(crypto.AccountPrefix, subject)
		if err != nil {
			return printError(stderr, err.Error())
		}
		identity = parsed
	} else {
		key, _, err := openKeystore(path)
		if err != nil {
			return printError(stderr, err.Error())
		}
		identity = key.PubKey().Address().Array()
	}

	token, err := rpc.IssueToken(secret, identity, issuer, audience, ttl)
	if err != nil {
		return printError(stderr, err.Error())
	}
	fmt.Fprintln(stdout, token)
	return 0
}

func openKeystore(path string) (*crypto.PrivateKey, bool, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, false, fmt.Errorf("--keystore is required")
	}
	pass, err := keystorePassphrase()
	if err != nil {
		return nil, false, err
	}
	key, created, err := crypto.LoadOrCreateKeystore(path, pass)
	if err != nil {
		return nil, false, fmt.Errorf("open keystore %s: %w", path, err)
	}
	return key, created, nil
}
