package events

import (
	"math/big"
	"strconv"
)

func formatTokenID(id *big.Int) string {
	if id == nil {
		return "0"
	}
	return id.String()
}

func boolString(v bool) string { return strconv.FormatBool(v) }
