package display

import (
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

var (
	weiPerEth  = decimal.New(1, 18)
	weiPerGwei = decimal.New(1, 9)
	hundred    = decimal.NewFromInt(100)
)

// FormatNumber adds thousand separators for readability: 15234567 -> "15,234,567".
func FormatNumber(n uint64) string {
	s := strconv.FormatUint(n, 10)
	if len(s) <= 3 {
		return s
	}
	var out []byte
	for i, c := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, c)
	}
	return string(out)
}

// FormatWei renders a wei amount as ETH with up to 6 decimal places.
func FormatWei(wei *big.Int) string {
	if wei == nil {
		return "-"
	}
	eth := decimal.NewFromBigInt(wei, 0).Div(weiPerEth)
	return eth.Round(6).String() + " ETH"
}

// FormatGwei renders a wei amount as gwei with up to 2 decimal places.
func FormatGwei(wei *big.Int) string {
	if wei == nil {
		return "-"
	}
	return FormatGweiDecimal(decimal.NewFromBigInt(wei, 0))
}

// FormatGweiDecimal renders a decimal wei amount as gwei.
func FormatGweiDecimal(wei decimal.Decimal) string {
	if wei.IsZero() {
		return "-"
	}
	return wei.Div(weiPerGwei).Round(2).String() + " gwei"
}

// FormatTimestamp renders a Unix timestamp with its age.
func FormatTimestamp(ts uint64) string {
	t := time.Unix(int64(ts), 0).UTC()
	age := time.Since(t).Round(time.Second)
	return fmt.Sprintf("%s (%s ago)", t.Format("2006-01-02 15:04:05 MST"), age)
}

// ShortHash abbreviates a 0x hash for table cells: 0x1234...abcd.
func ShortHash(h string) string {
	if len(h) <= 14 {
		return h
	}
	return h[:10] + "..." + h[len(h)-4:]
}
