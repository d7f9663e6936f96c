package trafficlight

import (
	"github.com/tsinghua-fib-lab/mp-signal-lab/entity"
)

// FixedCycle 固定顺序信控策略
// 功能：不看交通状态，每个决策时刻按N→E→S→W的顺序切换到下一个转向，作为对照基线
// 说明：有状态，每次运行需新建
type FixedCycle struct {
	next entity.Movement // 下一次放行的转向
}

// NewFixedCycle 创建固定顺序策略
// 参数：first-第一次决策放行的转向
func NewFixedCycle(first entity.Movement) *FixedCycle {
	return &FixedCycle{next: first}
}

func (p *FixedCycle) Name() string {
	return "fixed_cycle"
}

// Decide 返回当前轮到的转向，得分恒为0
func (p *FixedCycle) Decide(_ entity.Observation) (entity.Decision, error) {
	m := p.next
	p.next = (p.next + 1) % entity.NumMovements
	return entity.Decision{Movement: m}, nil
}
