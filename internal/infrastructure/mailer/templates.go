package mailer

import (
	"fmt"
	"net/url"
)

// ActionLink builds the action URL embedded in emails. The page behind it
// resolves the mode and code and drives the rest of the flow.
func ActionLink(baseURL, mode, code string) string {
	return fmt.Sprintf("%s/auth/action?mode=%s&oobCode=%s",
		baseURL, url.QueryEscape(mode), url.QueryEscape(code))
}

// VerificationEmail renders the verify-your-email message.
func VerificationEmail(link string) (subject, html string) {
	subject = "Verify your email address"
	html = fmt.Sprintf(`<div style="font-family:sans-serif;max-width:600px;margin:0 auto">
<h2>Confirm your email</h2>
<p>Thanks for signing up. Click the button below to verify your email address.</p>
<p><a href="%s" style="display:inline-block;padding:12px 24px;background:#1a73e8;color:#fff;text-decoration:none;border-radius:4px">Verify email</a></p>
<p>If the button does not work, copy this link into your browser:</p>
<p><a href="%s">%s</a></p>
<p>If you did not create an account, you can ignore this message.</p>
</div>`, link, link, link)
	return subject, html
}

// PasswordResetEmail renders the reset-your-password message.
func PasswordResetEmail(link string) (subject, html string) {
	subject = "Reset your password"
	html = fmt.Sprintf(`<div style="font-family:sans-serif;max-width:600px;margin:0 auto">
<h2>Password reset requested</h2>
<p>We received a request to reset your password. Click the button below to choose a new one. The link expires in one hour.</p>
<p><a href="%s" style="display:inline-block;padding:12px 24px;background:#1a73e8;color:#fff;text-decoration:none;border-radius:4px">Reset password</a></p>
<p>If the button does not work, copy this link into your browser:</p>
<p><a href="%s">%s</a></p>
<p>If you did not request a reset, you can ignore this message and your password will stay the same.</p>
</div>`, link, link, link)
	return subject, html
}

// PasswordChangedEmail renders the your-password-was-changed notice.
func PasswordChangedEmail() (subject, html string) {
	subject = "Your password was changed"
	html = `<div style="font-family:sans-serif;max-width:600px;margin:0 auto">
<h2>Password changed</h2>
<p>The password for your account was just changed. If this was you, no action is needed.</p>
<p>If you did not change your password, reset it immediately and contact support.</p>
</div>`
	return subject, html
}
