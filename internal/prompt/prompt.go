package prompt

import (
	"fmt"
	"strings"

	"negotiation-platform/internal/classify"
)

// Build produces the instruction script handed to the voice agent before a
// call is placed.
//
// Contract:
// - Pure function of its inputs, no clock or randomness, so scripts can be
//   snapshot-tested.
// - Every category closes by demanding a confirmation code; result extraction
//   depends on that.
// - Unknown categories fall back to the general template.

// CustomerInfo carries the customer identity fields the script references.
type CustomerInfo struct {
	FullName          string
	PhoneNumber       string
	Email             string
	AppointmentTime   string
	AppointmentAction string
}

func Build(category classify.Category, userMessage, referenceNumber string, customer CustomerInfo) string {
	var b strings.Builder
	b.WriteString(preamble(category, userMessage, referenceNumber, customer))
	b.WriteString("\n\n")
	b.WriteString(instructions(category, referenceNumber, customer))
	return b.String()
}

func preamble(category classify.Category, userMessage, referenceNumber string, customer CustomerInfo) string {
	return fmt.Sprintf(`You are a professional AI assistant calling customer service on behalf of a customer. You have the following information:
- Customer Name: %s
- Customer Phone: %s
- Customer Request: %q
- Order/Reference Number: %q
- Request Type: %s

You are calling to resolve this issue. Be polite, professional, and persistent.`,
		orFallback(customer.FullName, "Not provided"),
		orFallback(customer.PhoneNumber, "Not provided"),
		userMessage,
		orFallback(referenceNumber, "Not provided - customer has screenshot"),
		category,
	)
}

func instructions(category classify.Category, referenceNumber string, customer CustomerInfo) string {
	ref := orFallback(referenceNumber, "the attached screenshot")

	switch category {
	case classify.CategoryRefund:
		return fmt.Sprintf(`SPECIFIC INSTRUCTIONS FOR REFUND REQUESTS:
1. Start by saying: "Hello, I'm calling about a refund request for order %s."
2. Explain the customer's situation and why they need a refund.
3. If offered a partial refund, politely insist on the full amount with valid reasoning.
4. Always ask for a confirmation code or reference number at the end.
5. End with: "Thank you for your help. Could I get a confirmation code for this refund?"

REMEMBER: Be firm but respectful. The customer deserves a fair resolution.`, ref)

	case classify.CategoryReturn:
		return fmt.Sprintf(`SPECIFIC INSTRUCTIONS FOR RETURN REQUESTS:
1. Start by saying: "Hello, I'm calling about a return request for order %s."
2. Explain what the customer wants to return and why.
3. Ask about the return process, timeline, and any restocking fees.
4. Get a confirmation code or return authorization number.
5. End with: "Thank you. Could I get a return authorization number or confirmation code?"

REMEMBER: Ensure the customer understands the return process completely.`, ref)

	case classify.CategoryBookAppointment:
		return fmt.Sprintf(`SPECIFIC INSTRUCTIONS FOR BOOKING APPOINTMENTS:
1. Start by saying: "Hello, I'm calling to book an appointment for %s."
2. Provide preferred time: %s.
3. Confirm all appointment details (date, time, location, any preparation needed).
4. Ask about appointment confirmation methods (email, SMS).
5. Get the appointment confirmation number and any reference details.
6. End with: "Thank you. Could I get an appointment confirmation number and details?"

REMEMBER: Ensure all appointment details are confirmed and the customer gets proper confirmation.`,
			orFallback(customer.FullName, "a customer"),
			orFallback(customer.AppointmentTime, "Not specified - ask for available times"))

	case classify.CategoryCancelAppointment:
		return fmt.Sprintf(`SPECIFIC INSTRUCTIONS FOR APPOINTMENT CANCELLATIONS:
1. Start by saying: "Hello, I'm calling to cancel an appointment for %s."
2. Provide appointment details: %s.
3. Confirm the cancellation policy and any fees.
4. Ask about rescheduling options if appropriate.
5. Get confirmation of the cancellation.
6. End with: "Thank you. Could I get a cancellation confirmation number?"

REMEMBER: Be clear about cancellation policies and any associated fees.`,
			orFallback(customer.FullName, "a customer"),
			orFallback(customer.AppointmentTime, "Will provide details when asked"))

	case classify.CategorySubscription:
		return fmt.Sprintf(`SPECIFIC INSTRUCTIONS FOR SUBSCRIPTION CANCELLATIONS:
1. Start by saying: "Hello, I'm calling about my %s."
2. State clearly that the customer wants to cancel the subscription.
3. Explain the customer's reasons if asked; decline retention offers unless they match the request.
4. Dispute any incorrect charges before finalizing the cancellation.
5. Be persistent but respectful in seeking fair resolution.
6. Get confirmation of any changes made to the account.
7. End with: "Thank you. Could I get a confirmation code for these changes?"

REMEMBER: It may take time. Be patient but persistent.`,
			orFallback(referenceNumber, "account"))

	default:
		return fmt.Sprintf(`GENERAL INSTRUCTIONS:
1. Start by saying: "Hello, I'm calling about %s."
2. Clearly explain the customer's request.
3. Work with the representative to resolve the issue.
4. Be persistent but always professional and polite.
5. Always ask for a confirmation code or reference number.
6. End with: "Thank you for your help. Could I get a confirmation code for this?"

REMEMBER: Your goal is to get the best possible outcome for the customer.`, ref)
	}
}

func orFallback(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
