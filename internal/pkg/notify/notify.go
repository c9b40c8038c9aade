package notify

// Sender 定义认证流程的邮件通知接口。
//
// 发送为同步单次尝试，不保证送达；失败只返回 error，由调用方决定是否向用户暴露。
type Sender interface {
	// SendVerificationLink 发送邮箱验证链接。
	SendVerificationLink(toEmail string, token string) error
	// SendPasswordResetLink 发送密码重置链接。
	SendPasswordResetLink(toEmail string, token string) error
}
