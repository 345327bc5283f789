package escrow

import (
	"errors"
	"math/big"
	"strings"
	"testing"

	nativecommon "nftescrow/native/common"
)

func TestComputeTermsHashIgnoresBundleOrder(t *testing.T) {
	a, b := newTestAddress(1), newTestAddress(2)
	h1 := ComputeTermsHash(a, b, []Item{testItem(1), testItem(2)}, []Item{testItem(3)})
	h2 := ComputeTermsHash(a, b, []Item{testItem(2), testItem(1)}, []Item{testItem(3)})
	if h1 != h2 {
		t.Fatalf("digest depends on order")
	}
	if h1 == ComputeTermsHash(b, a, []Item{testItem(1), testItem(2)}, []Item{testItem(3)}) {
		t.Fatalf("digest ignores party roles")
	}
	if h1 == ComputeTermsHash(a, b, []Item{testItem(1)}, []Item{testItem(2), testItem(3)}) {
		t.Fatalf("digest ignores bundle boundaries")
	}
}

func TestNewItemRange(t *testing.T) {
	if _, err := NewItem(testCollection, big.NewInt(-1)); !errors.Is(err, ErrInvalidItem) {
		t.Fatalf("negative id accepted: %v", err)
	}
	huge := new(big.Int).Lsh(big.NewInt(1), 256)
	if _, err := NewItem(testCollection, huge); !errors.Is(err, ErrInvalidItem) {
		t.Fatalf("oversized id accepted: %v", err)
	}
	if _, err := NewItem([20]byte{}, big.NewInt(1)); !errors.Is(err, ErrInvalidItem) {
		t.Fatalf("zero collection accepted: %v", err)
	}
	limit := new(big.Int).Sub(huge, big.NewInt(1))
	if _, err := NewItem(testCollection, limit); err != nil {
		t.Fatalf("max id rejected: %v", err)
	}
}

func TestNormalizeTradeID(t *testing.T) {
	if id, err := NormalizeTradeID("  abc "); err != nil || id != "abc" {
		t.Fatalf("unexpected %q %v", id, err)
	}
	if _, err := NormalizeTradeID(strings.Repeat("x", MaxTradeIDLength+1)); !errors.Is(err, ErrInvalidTradeID) {
		t.Fatalf("long id accepted")
	}
	if _, err := NormalizeTradeID("a\x00b"); !errors.Is(err, ErrInvalidTradeID) {
		t.Fatalf("control characters accepted")
	}
}

func TestSameItemSet(t *testing.T) {
	if !sameItemSet([]Item{testItem(1), testItem(2)}, []Item{testItem(2), testItem(1)}) {
		t.Fatalf("expected equal sets")
	}
	if sameItemSet([]Item{testItem(1), testItem(2)}, []Item{testItem(1), testItem(3)}) {
		t.Fatalf("cardinality alone must not match")
	}
}

func TestKind(t *testing.T) {
	cases := map[error]ErrorKind{
		nil:                          KindNone,
		ErrDuplicateTrade:            KindInput,
		ErrOnlyOwnerCanCancel:        KindAuthorization,
		ErrSettlementFailed:          KindRegistry,
		ErrAlreadyClosed:             KindState,
		nativecommon.ErrModulePaused: KindState,
		errors.New("boom"):           KindInternal,
	}
	for err, want := range cases {
		if got := Kind(err); got != want {
			t.Fatalf("Kind(%v) = %q, want %q", err, got, want)
		}
	}
}

func TestParsePolicies(t *testing.T) {
	if p, err := ParseDepositPolicy(" Atomic "); err != nil || p != PolicyAtomic {
		t.Fatalf("ParseDepositPolicy: %v %v", p, err)
	}
	if _, err := ParseDepositPolicy("greedy"); err == nil {
		t.Fatalf("unknown policy accepted")
	}
	if p, err := ParseCancelPolicy(""); err != nil || p != CancelByEitherParty {
		t.Fatalf("ParseCancelPolicy default: %v %v", p, err)
	}
	if _, err := NewEngine(Config{CancelPolicy: "nobody"}); err == nil {
		t.Fatalf("NewEngine accepted bad cancel policy")
	}
}
