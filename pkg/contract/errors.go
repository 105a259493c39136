package contract

import "errors"

// 最小错误分类。记录级的“拒收”不是错误，不在此列。
var (
	// ErrInvalidInput: 入参非法（越界区间、未纳入的条目、非法配置值）。
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvariantViolation: 领域不变量违例（通用哨兵）。
	ErrInvariantViolation = errors.New("invariant violation")
	// ErrTokenizerInit: 分词器初始化失败（致命，终止运行）。
	ErrTokenizerInit = errors.New("tokenizer init failed")
	// ErrSourceUnavailable: 源集合无法打开或读取（致命，终止运行）。
	ErrSourceUnavailable = errors.New("source unavailable")
)
