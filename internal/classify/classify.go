package classify

import "strings"

// Category is the negotiation request type derived from the user's message.
// It is assigned once at submission and drives prompt selection and
// validation rules downstream.
type Category string

const (
	CategoryRefund            Category = "refund"
	CategoryReturn            Category = "return"
	CategoryBookAppointment   Category = "book-appointment"
	CategoryCancelAppointment Category = "cancel-appointment"
	CategorySubscription      Category = "subscription"
	CategoryGeneral           Category = "general"
)

// Classify selects a category from a free-text user message.
//
// First match wins. The appointment rules must run before the generic
// "cancel" rule: "cancel my appointment" contains "cancel" and would
// otherwise land in subscription.
func Classify(message string) Category {
	m := strings.ToLower(message)

	appointment := strings.Contains(m, "appointment") || strings.Contains(m, "booking")

	switch {
	case strings.Contains(m, "book") && appointment:
		return CategoryBookAppointment
	case strings.Contains(m, "cancel") && appointment:
		return CategoryCancelAppointment
	case strings.Contains(m, "refund") || strings.Contains(m, "money back"):
		return CategoryRefund
	case strings.Contains(m, "return") || strings.Contains(m, "send back"):
		return CategoryReturn
	case strings.Contains(m, "cancel") || strings.Contains(m, "subscription") || strings.Contains(m, "rate"):
		return CategorySubscription
	default:
		return CategoryGeneral
	}
}

// RequiresOrderReference reports whether the category describes an
// order-bound transaction. Submissions in these categories must carry an
// order number or an attachment.
func RequiresOrderReference(c Category) bool {
	return c == CategoryRefund || c == CategoryReturn
}
