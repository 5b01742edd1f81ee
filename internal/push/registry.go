package push

import "context"

// TokenRegistry 设备 token 注册表
// 每个用户对应一个 token 集合,是本服务唯一的共享可变状态。
// 所有变更必须是针对存储集合的原子增删操作,
// 禁止"读出整个集合、内存修改、整体写回"的实现方式。
type TokenRegistry interface {
	// AddToken 幂等地注册一个 token;重复注册是空操作。
	// 用户记录不存在时返回 ErrUserNotFound,不会隐式建档。
	AddToken(ctx context.Context, userID, token string) error

	// RemoveTokens 从用户集合中移除给定的 token,不存在的成员静默忽略。
	// 入参为空时不产生任何写操作。返回实际移除的数量。
	RemoveTokens(ctx context.Context, userID string, tokens []string) (int, error)

	// ListTokens 返回用户当前的 token 集合;用户没有 token 时返回空集而非错误。
	ListTokens(ctx context.Context, userID string) ([]string, error)

	// ClearTokens 清空用户的全部 token,用于重新认证场景。
	// 尽力而为:底层键不存在时同样上报成功,后续的 AddToken 会重建集合。
	ClearTokens(ctx context.Context, userID string) error
}

// UserResolver 用户档案解析
// 由 MySQL 用户账户存储实现,用于 UserNotFound 判定
type UserResolver interface {
	Exists(ctx context.Context, userID string) (bool, error)
}
