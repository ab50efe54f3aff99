package engine

import (
	"fmt"
	"strconv"
)

// Terminal and shared response texts.
const (
	MsgInternalError = "END Internal error. Please try again."
	MsgGoodbye       = "END Thank you for using Bitcoin Lightning!"

	msgRates = "END Current rate: 1 KES ≈ 6.67 sats\n150 KES = 1,000 sats"

	msgCommandHelp = "END USSD Commands:\n" +
		"• Send: '1*phone*amount'\n" +
		"• Buy BTC: '4*amount_kes'\n" +
		"• Rates: 'rates?'\n" +
		"• Help: 'help'"

	promptSendPhone     = "CON Send BTC\nEnter recipient phone number:"
	promptReceiveAmount = "CON Receive BTC\nEnter amount in sats:"
	promptInvoicePhone  = "CON Send Invoice\nEnter recipient phone number:"
	promptTopupAmount   = "CON Buy BTC with M-Pesa\n" +
		"Enter KES amount (Min: 10 KES):\n\n" +
		"(Ask 'rates?' or say 'back')"
	promptWithdrawAmount = "CON Withdraw to M-Pesa\nEnter amount in KES:"
	promptAirtimeAmount  = "CON Buy Airtime\nEnter amount in KES (10-1000):"

	menuText = "Bitcoin Lightning\n" +
		"1. Send BTC\n" +
		"2. Receive BTC\n" +
		"3. Send Invoice\n" +
		"4. Buy BTC (M-Pesa)\n" +
		"5. Withdraw M-Pesa\n" +
		"6. Buy Airtime\n" +
		"7. History\n" +
		"0. Exit"
)

// comma renders n with thousand separators, e.g. 1234567 -> "1,234,567".
func comma(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := false
	if s[0] == '-' {
		neg = true
		s = s[1:]
	}
	var out []byte
	for i, c := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, c)
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}

func topupConfirmPrompt(kes, sats int64) string {
	return fmt.Sprintf("CON Top up %d KES (%s sats)?\n\n1. Yes, send M-Pesa request\n2. Cancel", kes, comma(sats))
}
