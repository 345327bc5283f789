package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/crypto"
)

// AddressPrefix defines the human-readable part used when rendering addresses.
type AddressPrefix string

const (
	// AccountPrefix marks identities that own assets and sign requests.
	AccountPrefix AddressPrefix = "nft"
	// CollectionPrefix marks asset collection contracts in the registry.
	CollectionPrefix AddressPrefix = "nftc"
)

var errAddressLength = errors.New("crypto: address must be 20 bytes long")

// Address represents a 20-byte identity with a specific prefix.
type Address struct {
	prefix AddressPrefix
	bytes  []byte
}

// NewAddress validates the byte length and wraps the supplied bytes.
func NewAddress(prefix AddressPrefix, b []byte) (Address, error) {
	if len(b) != 20 {
		return Address{}, errAddressLength
	}
	return Address{prefix: prefix, bytes: append([]byte(nil), b...)}, nil
}

// MustNewAddress is NewAddress for callers holding a fixed [20]byte.
func MustNewAddress(prefix AddressPrefix, b []byte) Address {
	addr, err := NewAddress(prefix, b)
	if err != nil {
		panic(err)
	}
	return addr
}

func (a Address) String() string {
	conv, err := bech32.ConvertBits(a.bytes, 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(string(a.prefix), conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

func (a Address) Bytes() []byte {
	return a.bytes
}

// Array returns the address as a fixed-size array.
func (a Address) Array() [20]byte {
	var out [20]byte
	copy(out[:], a.bytes)
	return out
}

// Prefix returns the human-readable prefix associated with the address.
func (a Address) Prefix() AddressPrefix {
	return a.prefix
}

func DecodeAddress(addrStr string) (Address, error) {
	prefix, decoded, err := bech32.Decode(strings.TrimSpace(addrStr))
	if err != nil {
		return Address{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("error converting bits: %w", err)
	}
	return NewAddress(AddressPrefix(prefix), conv)
}

// ParseAddress decodes a bech32 string and requires the expected prefix.
func ParseAddress(expected AddressPrefix, value string) ([20]byte, error) {
	var out [20]byte
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return out, fmt.Errorf("address required")
	}
	addr, err := DecodeAddress(trimmed)
	if err != nil {
		return out, err
	}
	if addr.Prefix() != expected {
		return out, fmt.Errorf("address %q must use %s prefix", trimmed, expected)
	}
	return addr.Array(), nil
}

// FormatAccount renders a raw identity using the account prefix.
func FormatAccount(b [20]byte) string {
	return MustNewAddress(AccountPrefix, b[:]).String()
}

// FormatCollection renders a raw collection address using the collection prefix.
func FormatCollection(b [20]byte) string {
	return MustNewAddress(CollectionPrefix, b[:]).String()
}

// ModuleAddress derives the deterministic custody address of a native module.
func ModuleAddress(module string) [20]byte {
	var out [20]byte
	digest := crypto.Keccak256([]byte("module:" + module))
	copy(out[:], digest[12:])
	return out
}

// --- Key Management ---

type PrivateKey struct {
	*ecdsa.PrivateKey
}

type PublicKey struct {
	*ecdsa.PublicKey
}

func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := ecdsa.GenerateKey(crypto.S256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// Bytes returns the byte representation of the private key.
func (k *PrivateKey) Bytes() []byte {
	return crypto.FromECDSA(k.PrivateKey)
}

func (k *PrivateKey) PubKey() *PublicKey {
	return &PublicKey{&k.PrivateKey.PublicKey}
}

func (k *PublicKey) Address() Address {
	addrBytes := crypto.PubkeyToAddress(*k.PublicKey).Bytes()
	return MustNewAddress(AccountPrefix, addrBytes)
}

func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	key, err := crypto.ToECDSA(b)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}
