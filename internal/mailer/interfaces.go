package mailer

// Service sends transactional storefront email. The gateway only sends
// one kind today: the post-registration welcome.
type Service interface {
	SendWelcomeEmail(toEmail, toName string) error
}
