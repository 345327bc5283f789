package escrow

// requireParty resolves the caller's side and fails closed for anyone else.
func requireParty(t *Trade, caller [20]byte) (Side, error) {
	side := t.SideOf(caller)
	if side == SideNone {
		return SideNone, ErrUnauthorizedCaller
	}
	return side, nil
}

// authorizeCancel applies the configured cancellation policy.
func authorizeCancel(t *Trade, caller [20]byte, policy CancelPolicy) (Side, error) {
	side, err := requireParty(t, caller)
	if err != nil {
		return SideNone, err
	}
	if policy == CancelByOwner && caller != t.Owner {
		return SideNone, ErrOnlyOwnerCanCancel
	}
	return side, nil
}
