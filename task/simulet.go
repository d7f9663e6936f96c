package task

import (
	"flag"
	"fmt"

	"github.com/tsinghua-fib-lab/mp-signal-lab/clock"
	"github.com/tsinghua-fib-lab/mp-signal-lab/entity"
	"github.com/tsinghua-fib-lab/mp-signal-lab/entity/junction"
)

var (
	heartBeatInterval = flag.Int("log.heartbeat_interval", 100, "心跳日志间隔步数")
)

// loop 一次运行的控制循环
// 功能：推进仿真时间，在决策周期与采样周期两个节拍上分别执行信控决策与状态记录
// 说明：单线程，每步阻塞在一次仿真器调用上；记录只属于本次运行
type loop struct {
	sim        entity.ISimulator
	aggregator *junction.Aggregator
	policy     entity.IPolicy
	clock      *clock.Clock
	monitor    *junction.Monitor // 可为nil
	junctionID string

	records []entity.Record
}

// run 运行到仿真器报告的结束时间
// 返回：按时间顺序的记录；任一步失败则整次运行作废，不返回任何记录
// 算法说明：
// 1. 推进一步并同步时钟
// 2. 时间为决策周期整倍数时：采样排队长度 -> 策略 -> 编码并写入仿真器，标记本步为决策步（预热期间同样执行）
// 3. 时间为采样周期整倍数且预热结束时：采样密度与当前相位，追加一条记录
func (l *loop) run() ([]entity.Record, error) {
	start, err := l.sim.Time()
	if err != nil {
		return nil, fmt.Errorf("get simulation time: %w", err)
	}
	end, err := l.sim.EndTime()
	if err != nil {
		return nil, fmt.Errorf("get simulation end time: %w", err)
	}
	l.clock.Init(start, end)
	if l.monitor != nil {
		l.monitor.Reset()
	}
	l.records = make([]entity.Record, 0)

	for l.clock.Running() {
		if err := l.prepare(); err != nil {
			return nil, err
		}
		if err := l.update(); err != nil {
			return nil, fmt.Errorf("at %v: %w", l.clock.T(), err)
		}
	}
	return l.records, nil
}

// prepare 推进一步并同步时钟
func (l *loop) prepare() error {
	if err := l.sim.Step(); err != nil {
		return fmt.Errorf("advance step after %v: %w", l.clock.T(), err)
	}
	t, err := l.sim.Time()
	if err != nil {
		return fmt.Errorf("get simulation time: %w", err)
	}
	l.clock.Sync(t)

	if *heartBeatInterval > 0 && l.clock.Step()%int64(*heartBeatInterval) == 0 {
		hour, minute, second := l.clock.GetHourMinuteSecond()
		log.Infof(
			"STEP: %d(%d:%d:%.2f) records: %d",
			l.clock.Step(),
			hour, minute, second,
			len(l.records),
		)
	}
	return nil
}

// update 按两个节拍执行决策与采样
func (l *loop) update() error {
	change := false
	if l.clock.DecisionDue() {
		if err := l.decide(); err != nil {
			return err
		}
		change = true
	}
	if l.clock.SampleDue() {
		r, err := l.aggregator.Record(l.clock.T(), change)
		if err != nil {
			return fmt.Errorf("sample: %w", err)
		}
		l.records = append(l.records, r)
	}
	return nil
}

// decide 计算并写入一次信控决策
func (l *loop) decide() error {
	obs, err := l.aggregator.Observe()
	if err != nil {
		return fmt.Errorf("observe queues: %w", err)
	}
	d, err := l.policy.Decide(obs)
	if err != nil {
		return fmt.Errorf("%s decide: %w", l.policy.Name(), err)
	}
	state, err := junction.Apply(l.sim, l.junctionID, d.Movement)
	if err != nil {
		return err
	}
	if l.monitor != nil {
		l.monitor.Decided(d.Movement, l.clock.NextDecision())
	}
	log.Debugf("%s: %s selects %v (score %.3f) -> %s", l.clock, l.policy.Name(), d.Movement, d.Score, state)
	return nil
}
