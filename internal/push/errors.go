// push/errors.go
package push

import "errors"

// 定义公共错误变量
var (
	ErrUserNotFound   = errors.New("user not found")
	ErrEmptyUserID    = errors.New("user id cannot be empty")
	ErrEmptyToken     = errors.New("token cannot be empty")
	ErrChannelNotSet  = errors.New("push channel not configured")
	ErrRegistryAccess = errors.New("token registry access failed")
)

// 带上下文的错误包装
func WrapError(err error, msg string) error {
	return errors.Join(errors.New(msg), err)
}
