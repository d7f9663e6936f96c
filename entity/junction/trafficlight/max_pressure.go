// 提供Max Pressure信号灯控制算法
// 每个决策时刻计算所有转向的pressure，选取pressure最大的转向放行
// 参考：Varaiya, Max pressure control of a network of signalized intersections (2013)
package trafficlight

import (
	"flag"
	"fmt"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/mp-signal-lab/entity"
	"github.com/tsinghua-fib-lab/mp-signal-lab/utils"
	"github.com/tsinghua-fib-lab/mp-signal-lab/utils/container"
)

const (
	// 饱和流率：1400辆/小时
	DefaultSaturationFlow = 1400. / 3600.
)

var (
	logPressure = flag.Bool("tl.mp_log_pressure", false, "最大压力法是否在debug日志中输出每个转向的pressure")
)

// Pressure 一个转向的压力
type Pressure struct {
	Movement entity.Movement
	Value    float64
	// 排序用的精确整数键：(转向数-1)×进口道排队 − 其余转向出口道排队之和
	// Value = 饱和流率 × rank / (转向数-1)，两者单调一致，浮点舍入不影响平局判定
	rank int
}

// MaxPressure 最大压力信控策略
// 功能：纯函数式策略，不访问仿真器，不保存状态
type MaxPressure struct {
	saturationFlow float64 // 饱和流率（辆/秒）
}

// NewMaxPressure 创建最大压力策略
// 参数：saturationFlow-饱和流率（辆/秒），<=0时使用默认值
func NewMaxPressure(saturationFlow float64) *MaxPressure {
	if saturationFlow <= 0 {
		saturationFlow = DefaultSaturationFlow
	}
	return &MaxPressure{saturationFlow: saturationFlow}
}

func (p *MaxPressure) Name() string {
	return "max_pressure"
}

// Pressures 计算所有转向的压力
// 功能：对每个转向m，下游平均排队为其余3个转向出口道排队的均值，
// pressure(m) = 饱和流率 × (进口道排队(m) − 下游平均排队(m))
// 返回：按N、E、S、W顺序的压力，输入缺少任一转向时返回ErrIncompleteTopology
func (p *MaxPressure) Pressures(obs entity.Observation) ([]Pressure, error) {
	queues, missing := utils.Find(obs.Queues, entity.Movements[:])
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: no approach queue for %v", entity.ErrIncompleteTopology, missing)
	}
	if _, missing := utils.Find(obs.Downstream, entity.Movements[:]); len(missing) > 0 {
		return nil, fmt.Errorf("%w: no exit queue for %v", entity.ErrIncompleteTopology, missing)
	}
	return lo.Map(entity.Movements[:], func(m entity.Movement, i int) Pressure {
		others := lo.Without(entity.Movements[:], m)
		downstream := lo.Sum(lo.Map(others, func(o entity.Movement, _ int) int {
			return obs.Downstream[o]
		}))
		rank := len(others)*queues[i] - downstream
		return Pressure{
			Movement: m,
			Value:    p.saturationFlow * float64(rank) / float64(len(others)),
			rank:     rank,
		}
	}), nil
}

// Decide 选出压力最大的转向
// 说明：多个转向压力相同时，按N、E、S、W顺序取第一个
func (p *MaxPressure) Decide(obs entity.Observation) (entity.Decision, error) {
	pressures, err := p.Pressures(obs)
	if err != nil {
		return entity.Decision{}, err
	}
	if *logPressure {
		log.Debugf("pressures: %+v", pressures)
	}
	pressureHeap := container.NewPriorityQueue[Pressure]()
	for _, pr := range pressures {
		// 小顶堆，压力越大越靠前；整数键在float64中精确表示
		pressureHeap.Push(pr, -float64(pr.rank))
	}
	pressureHeap.Heapify()
	best, _ := pressureHeap.HeapPop()
	return entity.Decision{Movement: best.Movement, Score: best.Value}, nil
}
