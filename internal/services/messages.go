package services

import (
	"fmt"
	"html"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var rupiahPrinter = message.NewPrinter(language.Indonesian)

// formatRupiah renders an amount the way the storefront shows prices,
// e.g. "Rp 1.500.000".
func formatRupiah(amount int64) string {
	return rupiahPrinter.Sprintf("Rp %d", amount)
}

// buildOrderCreatedCaption is the Telegram caption attached to the payment
// proof forwarded to the back-office channel.
func buildOrderCreatedCaption(order Order) string {
	var b strings.Builder
	b.WriteString("🔔 ORDER BARU\n")
	fmt.Fprintf(&b, "ID: %s\n", shortOrderID(order.ID))
	fmt.Fprintf(&b, "User: %s\n", html.EscapeString(order.UserName))
	fmt.Fprintf(&b, "Total: %s", formatRupiah(order.TotalAmount))
	return b.String()
}

// buildAccountDeliveryMessage composes the HTML message carrying the item
// list, total, and delivered account credentials. This is the only rendering
// of raw credentials outside the order document.
func buildAccountDeliveryMessage(order Order) string {
	var b strings.Builder
	b.WriteString("✅ PESANAN DIVERIFIKASI\n")
	fmt.Fprintf(&b, "ID: %s\n", shortOrderID(order.ID))
	fmt.Fprintf(&b, "User: %s\n\n", html.EscapeString(order.UserName))

	b.WriteString("<b>Rincian:</b>\n")
	for _, item := range order.Items {
		fmt.Fprintf(&b, "- %s x %d = %s\n",
			html.EscapeString(item.ProductName),
			item.Quantity,
			formatRupiah(item.UnitPrice*int64(item.Quantity)),
		)
	}
	fmt.Fprintf(&b, "<b>Total: %s</b>\n", formatRupiah(order.TotalAmount))

	if order.Account != nil {
		b.WriteString("\n<b>Akun untuk customer:</b>\n")
		fmt.Fprintf(&b, "Email: <code>%s</code>\n", html.EscapeString(order.Account.Email))
		fmt.Fprintf(&b, "Password: <code>%s</code>", html.EscapeString(order.Account.Password))
	}
	return b.String()
}
