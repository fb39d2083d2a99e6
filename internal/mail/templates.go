package mail

import "fmt"

// ResetCodeEmail 渲染找回密码邮件。
func ResetCodeEmail(code string) (subject, body string) {
	subject = "Your password reset code"
	body = fmt.Sprintf(`<div style="font-family:sans-serif;max-width:480px">
<h2>Password reset</h2>
<p>Use the code below to reset your password. It expires in 1 hour.</p>
<p style="font-size:28px;letter-spacing:6px;font-weight:bold">%s</p>
<p>If you did not request this, you can ignore this email.</p>
</div>`, code)
	return subject, body
}

// NewTemplateEmail 渲染新模板上线的公告邮件。
func NewTemplateEmail(templateName, featureDescription string) (subject, body string) {
	subject = fmt.Sprintf("New CV template available: %s", templateName)
	body = fmt.Sprintf(`<div style="font-family:sans-serif;max-width:480px">
<h2>%s is here</h2>
<p>%s</p>
<p>Open the editor and give it a try.</p>
</div>`, templateName, featureDescription)
	return subject, body
}
