package contract

import (
	"path"
	"strings"
)

// SourceID: 源集合的逻辑标识（通常为路径或表名），仅用于日志与进度展示。
type SourceID string

// NormalizeSourceID 规范化路径，统一为跨平台稳定的 SourceID。
// 规则：
// - 使用正斜杠分隔符
// - 清理多余分隔符与路径片段（.、..）
// - 保留相对/绝对语义，不做隐式绝对化
func NormalizeSourceID(p string) SourceID {
	s := strings.ReplaceAll(p, "\\", "/")
	return SourceID(path.Clean(s))
}
