package reporting

import (
	"fmt"
	"strings"
	"time"

	"acdm-platform/internal/domain"
)

// RenderMarkdown renders report as Markdown string. Coin amounts are shown in ether.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder
	s := r.Summary

	// Header
	sb.WriteString("# ACDM Platform Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Sale rounds: %d | Trade rounds: %d\n\n", s.SaleRounds, s.TradeRounds))

	// Summary
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Referrals | %d |\n", s.Referrals))
	sb.WriteString(fmt.Sprintf("| Orders | %d |\n", s.Orders))
	sb.WriteString(fmt.Sprintf("| Purchases | %d |\n", s.Purchases))
	sb.WriteString(fmt.Sprintf("| Redemptions | %d |\n", s.Redemptions))
	sb.WriteString(fmt.Sprintf("| Tokens Sold | %s |\n", s.TokensSold))
	sb.WriteString(fmt.Sprintf("| Tokens Burned | %s |\n", s.TokensBurned))
	sb.WriteString(fmt.Sprintf("| Sale Volume (ETH) | %s |\n", domain.FormatEther(s.SaleVolume)))
	sb.WriteString(fmt.Sprintf("| Trade Volume (ETH) | %s |\n", domain.FormatEther(s.TradeVolume)))
	sb.WriteString(fmt.Sprintf("| Level 1 Fees (ETH) | %s |\n", domain.FormatEther(s.Level1Fees)))
	sb.WriteString(fmt.Sprintf("| Level 2 Fees (ETH) | %s |\n", domain.FormatEther(s.Level2Fees)))
	if !s.DateRange[0].IsZero() {
		sb.WriteString(fmt.Sprintf("| First Round | %s |\n", s.DateRange[0].Format(time.RFC3339)))
		sb.WriteString(fmt.Sprintf("| Last Round | %s |\n", s.DateRange[1].Format(time.RFC3339)))
	}
	sb.WriteString("\n")

	// Rounds
	sb.WriteString("## Rounds\n\n")
	if len(r.Rounds) > 0 {
		sb.WriteString("| Seq | Cycle | Kind | Start | Price (ETH) | Supply | Sold | Burned | Traded (ETH) | Orders | Fills |\n")
		sb.WriteString("|-----|-------|------|-------|-------------|--------|------|--------|--------------|--------|-------|\n")
		for _, row := range r.Rounds {
			if row.Kind == domain.RoundSale {
				sb.WriteString(fmt.Sprintf("| %d | %d | sale | %s | %s | %s | %s | %s | - | - | %d |\n",
					row.Seq, row.Number, row.StartTime.Format(time.RFC3339), domain.FormatEther(row.Price),
					row.Supply, row.Sold, row.Burned, row.Fills))
				continue
			}
			sb.WriteString(fmt.Sprintf("| %d | %d | trade | %s | %s | - | - | - | %s | %d | %d |\n",
				row.Seq, row.Number, row.StartTime.Format(time.RFC3339), domain.FormatEther(row.Price),
				domain.FormatEther(row.EthTraded), row.Orders, row.Fills))
		}
	} else {
		sb.WriteString("No rounds recorded.\n")
	}
	sb.WriteString("\n")

	// Referral earnings
	sb.WriteString("## Referral Earnings\n\n")
	if len(r.Earners) > 0 {
		sb.WriteString("| Referrer | Level 1 (ETH) | Level 2 (ETH) | Total (ETH) |\n")
		sb.WriteString("|----------|---------------|---------------|-------------|\n")
		for _, e := range r.Earners {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
				e.Address, domain.FormatEther(e.Level1), domain.FormatEther(e.Level2), domain.FormatEther(e.Total)))
		}
	} else {
		sb.WriteString("No referral fees paid.\n")
	}
	sb.WriteString("\n")

	// Integrity
	sb.WriteString("## Integrity\n\n")
	if len(r.IntegrityErrors) > 0 {
		for _, e := range r.IntegrityErrors {
			sb.WriteString(fmt.Sprintf("- %s\n", e))
		}
	} else {
		sb.WriteString("Stored rounds agree with recorded fills.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}
