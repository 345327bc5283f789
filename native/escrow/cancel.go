package escrow

// cancel refunds every deposited item to its depositor regardless of which
// side asked, then closes the trade.
func (c *call) cancel(caller [20]byte, id string, policy CancelPolicy) (*Trade, error) {
	t, err := c.loadTrade(id)
	if err != nil {
		return nil, err
	}
	side, err := authorizeCancel(t, caller, policy)
	if err != nil {
		return nil, err
	}
	if t.Closed {
		return nil, ErrAlreadyClosed
	}
	if err := c.release(t.PartyA, t.DepositedByA, ErrRegistryTransfer); err != nil {
		return nil, err
	}
	if err := c.release(t.PartyB, t.DepositedByB, ErrRegistryTransfer); err != nil {
		return nil, err
	}
	switch side {
	case SideA:
		t.ACancelled = true
	case SideB:
		t.BCancelled = true
	}
	t.Closed = true
	t.Status = TradeCancelled
	t.ClosedAt = c.now
	if err := c.storeTrade(t); err != nil {
		return nil, err
	}
	c.emit(NewTradeCancelledEvent(t, caller, side))
	return t, nil
}
