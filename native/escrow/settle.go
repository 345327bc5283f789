package escrow

// settle swaps both deposited bundles and closes the trade. A failed transfer
// fails the whole call and the enclosing transaction is discarded.
func (c *call) settle(t *Trade) error {
	if t.Closed {
		return ErrAlreadyClosed
	}
	if !t.FullyDeposited() {
		return ErrNotFullyDeposited
	}
	if err := c.release(t.PartyB, t.DepositedByA, ErrSettlementFailed); err != nil {
		return err
	}
	if err := c.release(t.PartyA, t.DepositedByB, ErrSettlementFailed); err != nil {
		return err
	}
	t.Closed = true
	t.Status = TradeSettled
	t.ClosedAt = c.now
	if err := c.storeTrade(t); err != nil {
		return err
	}
	c.emit(NewTradeSettledEvent(t))
	return nil
}
