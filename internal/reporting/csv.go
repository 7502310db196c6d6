package reporting

import (
	"fmt"
	"strings"
	"time"

	"acdm-platform/internal/domain"
)

// RenderRoundsCSV renders round rows as CSV string. Coin amounts are in ether.
func RenderRoundsCSV(rows []RoundRow) string {
	var sb strings.Builder

	// Header
	sb.WriteString("seq,number,kind,start_time,price_eth,supply,sold,burned,eth_traded,orders,fills,volume_eth\n")

	// Rows
	for _, r := range rows {
		sb.WriteString(fmt.Sprintf("%d,%d,%s,%s,%s,%s,%s,%s,%s,%d,%d,%s\n",
			r.Seq,
			r.Number,
			r.Kind,
			r.StartTime.UTC().Format(time.RFC3339),
			domain.FormatEther(r.Price),
			r.Supply,
			r.Sold,
			r.Burned,
			domain.FormatEther(r.EthTraded),
			r.Orders,
			r.Fills,
			domain.FormatEther(r.Volume),
		))
	}

	return sb.String()
}

// RenderFillsCSV renders fills as CSV string. Coin amounts are in ether.
func RenderFillsCSV(fills []*domain.Fill) string {
	var sb strings.Builder

	sb.WriteString("fill_id,kind,round,order_id,buyer,seller,amount,price_eth,cost_eth,")
	sb.WriteString("level1,level1_fee_eth,level2,level2_fee_eth,net_eth,refund_eth,timestamp\n")

	for _, f := range fills {
		sb.WriteString(fmt.Sprintf("%s,%s,%d,%d,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%d\n",
			f.FillID,
			f.Kind,
			f.Round,
			f.OrderID,
			f.Buyer,
			f.Seller,
			f.Amount,
			domain.FormatEther(f.Price),
			domain.FormatEther(f.Cost),
			f.Level1,
			domain.FormatEther(f.Level1Fee),
			f.Level2,
			domain.FormatEther(f.Level2Fee),
			domain.FormatEther(f.Net),
			domain.FormatEther(f.Refund),
			f.Timestamp.UnixMilli(),
		))
	}

	return sb.String()
}
