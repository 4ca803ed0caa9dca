package onboarding

import (
	"fmt"

	"github.com/ClareAI/astra-voice-tools/internal/domain"
)

func paymentLinkMessage(record *domain.ClientRecord) string {
	business := record.BusinessName
	if business == "" {
		business = "Your Business"
	}
	return fmt.Sprintf(`Hi %s! Thanks for choosing our AI assistant service.

Your payment link: %s

Amount: $%s
Business: %s

Complete payment to activate your 24/7 AI phone system!

Questions? Reply to this message.`, record.ClientName, record.PaymentLink, record.Amount, business)
}

func activationMessage(record *domain.ClientRecord) string {
	return fmt.Sprintf(`🎉 Your AI assistant is now LIVE!

Business: %s
Your AI Phone: %s

Your customers can now call this number 24/7 and speak with your professional AI assistant!

Test it yourself by calling from a different phone.

Questions? Reply to this message.

Welcome to the future of customer service!`, record.DisplayBusinessName(), record.AssignedPhoneNumber)
}
