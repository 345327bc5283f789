package escrow

import "fmt"

// takeCustody moves items from owner into the vault. Every ownership and
// approval check runs before the first transfer.
func (c *call) takeCustody(owner [20]byte, items []Item) error {
	for _, it := range items {
		current, err := c.registry.OwnerOf(c.ctx, it)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrItemNotOwned, it, err)
		}
		if current != owner {
			return fmt.Errorf("%w: %s", ErrItemNotOwned, it)
		}
		approved, err := c.registry.IsApproved(c.ctx, owner, c.vault, it)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrItemNotApprovedForEscrow, it, err)
		}
		if !approved {
			return fmt.Errorf("%w: %s", ErrItemNotApprovedForEscrow, it)
		}
	}
	for _, it := range items {
		if err := c.registry.Transfer(c.ctx, c.vault, owner, c.vault, it); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrRegistryTransfer, it, err)
		}
	}
	return nil
}

// release moves items out of the vault to the recipient. Failures are wrapped
// with the supplied sentinel.
func (c *call) release(to [20]byte, items []Item, sentinel error) error {
	for _, it := range items {
		if err := c.registry.Transfer(c.ctx, c.vault, c.vault, to, it); err != nil {
			return fmt.Errorf("%w: %s: %v", sentinel, it, err)
		}
	}
	return nil
}
