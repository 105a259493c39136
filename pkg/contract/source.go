package contract

import "context"

// Source: 源数据集合抽象（按整数下标做连续区间选择）。
// 约束：
//  1. Len 返回集合总条数，运行期不变；
//  2. Select 返回 [from, to) 的有序记录，长度必须为 to-from；
//  3. 越界或 from > to 返回 ErrInvalidInput；
//  4. 编排层仅从单个生产者协程调用 Select，实现无需内部并发。
type Source interface {
	Len(ctx context.Context) (int, error)
	Select(ctx context.Context, from, to int) ([]Record, error)
}

// CheckRange 校验 [from, to) 是否落在 [0, n) 内。
func CheckRange(from, to, n int) error {
	if from < 0 || to < from || to > n {
		return ErrInvalidInput
	}
	return nil
}
