package notify

import (
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Template names, also stored in the message log
const (
	TemplateOrderInterest       = "order_interest"
	TemplatePaymentConfirmation = "payment_confirmation"
	TemplatePaymentReminder     = "payment_reminder"
	TemplateBookingExpired      = "booking_expired"
	TemplateCODConfirmation     = "cod_confirmation"
	TemplateDispatchUpdate      = "dispatch_update"
)

// Message log kinds
const (
	KindTemplate     = "template"
	KindReminder     = "reminder"
	KindNotification = "notification"
)

// Message is a rendered notification ready to send
type Message struct {
	Template string
	Kind     string
	Text     string
}

var printer = message.NewPrinter(language.English)

// Rupees renders an amount rounded to whole rupees with thousands separators, e.g. ₹1,250
func Rupees(amount decimal.Decimal) string {
	return printer.Sprintf("₹%d", amount.RoundBank(0).IntPart())
}

func OrderInterest(customerName, sareeCode string, price decimal.Decimal, paymentLink string, holdMinutes int) Message {
	text := fmt.Sprintf(`👋 Hi %s!

Thank you for your interest in our live! 💖

🎀 Saree Code: %s
💰 Price: %s
📦 Status: Available

TO BOOK THIS SAREE:
Pay within %d minutes to confirm your order.

💳 Payment Link: %s

⏰ Hurry! This saree is reserved for you for %d minutes only.

Need help? Reply here anytime!`, customerName, sareeCode, Rupees(price), holdMinutes, paymentLink, holdMinutes)
	return Message{Template: TemplateOrderInterest, Kind: KindTemplate, Text: text}
}

func PaymentConfirmation(orderID, sareeCode string, amount decimal.Decimal) Message {
	text := fmt.Sprintf(`✅ Payment Confirmed!

Thank you for your order! 🎉

📦 Order ID: %s
🎀 Saree: %s
💰 Amount Paid: %s

Please share your delivery address:

1. Full Name
2. Complete Address
3. Pin Code
4. Mobile Number

We'll dispatch your saree within 24 hours! 🚚`, orderID, sareeCode, Rupees(amount))
	return Message{Template: TemplatePaymentConfirmation, Kind: KindTemplate, Text: text}
}

func PaymentReminder(sareeCode string, minutesLeft int, paymentLink string) Message {
	text := fmt.Sprintf(`⏰ REMINDER!

Your booking for %s expires in %d minutes!

Complete payment now to confirm your order:
%s`, sareeCode, minutesLeft, paymentLink)
	return Message{Template: TemplatePaymentReminder, Kind: KindReminder, Text: text}
}

func BookingExpired(sareeCode string) Message {
	text := fmt.Sprintf(`❌ Booking Expired

Your booking for %s has expired.
The saree is now available for others.

Want to book again?
Reply 'BOOK %s' or watch our next live! 🎥`, sareeCode, sareeCode)
	return Message{Template: TemplateBookingExpired, Kind: KindNotification, Text: text}
}

// CODConfirmation quotes the order amount plus the cash-on-delivery charge
func CODConfirmation(orderID, sareeCode string, amount, codCharge decimal.Decimal) Message {
	text := fmt.Sprintf(`✅ COD Order Confirmed!

📦 Order ID: %s
🎀 Saree: %s
💰 Amount: %s + %s COD charges

Please share your delivery address:

1. Full Name
2. Complete Address
3. Pin Code
4. Mobile Number

Total Amount to Pay on Delivery: %s`, orderID, sareeCode, Rupees(amount), Rupees(codCharge), Rupees(amount.Add(codCharge)))
	return Message{Template: TemplateCODConfirmation, Kind: KindTemplate, Text: text}
}

func DispatchUpdate(orderID, trackingID string) Message {
	text := fmt.Sprintf(`📦 Order Dispatched!

🎉 Great news! Your order has been shipped.

📦 Order ID: %s
🚚 Tracking ID: %s

Expected Delivery: 3-5 business days

Thank you for shopping with us! 💖`, orderID, trackingID)
	return Message{Template: TemplateDispatchUpdate, Kind: KindNotification, Text: text}
}
