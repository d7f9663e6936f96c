package junction

import (
	"fmt"

	"github.com/tsinghua-fib-lab/mp-signal-lab/entity"
)

// Aggregator 路口状态采样器
// 功能：从仿真器查询各link的车辆数与排队数以及当前相位，生成归一化的状态快照
type Aggregator struct {
	sim        entity.ISimulator
	topology   *Topology
	junctionID string
}

// NewAggregator 创建状态采样器
// 参数：sim-仿真器会话，topology-路口拓扑，junctionID-受控路口ID
func NewAggregator(sim entity.ISimulator, topology *Topology, junctionID string) *Aggregator {
	return &Aggregator{sim: sim, topology: topology, junctionID: junctionID}
}

// Subscribe 订阅全部8条link的车辆数
func (a *Aggregator) Subscribe() error {
	for _, id := range a.topology.Links() {
		if err := a.sim.SubscribeLinkCounts(id); err != nil {
			return fmt.Errorf("subscribe link %s: %w", id, err)
		}
	}
	log.Debugf("junction %s: subscribed %d links", a.junctionID, 2*entity.NumMovements)
	return nil
}

// SampleDensities 采样全部link的车辆密度
// 功能：查询8条link的车辆数并除以link长度
// 返回：link->密度，任一link无数据时返回ErrMissingLinkData
func (a *Aggregator) SampleDensities() (entity.DensityState, error) {
	res := make(entity.DensityState, 2*entity.NumMovements)
	for _, id := range a.topology.Links() {
		n, err := a.count(id, a.sim.LinkVehicleCount)
		if err != nil {
			return nil, err
		}
		length, _ := a.topology.Length(id)
		res[id] = float64(n) / length
	}
	return res, nil
}

// SampleQueues 采样给定link的停车车辆数
// 返回：link->排队长度，任一link无数据时返回ErrMissingLinkData
func (a *Aggregator) SampleQueues(links []entity.LinkID) (entity.QueueState, error) {
	res := make(entity.QueueState, len(links))
	for _, id := range links {
		n, err := a.count(id, a.sim.LinkHaltingCount)
		if err != nil {
			return nil, err
		}
		res[id] = n
	}
	return res, nil
}

// Observe 采样进口道与出口道排队长度，生成策略输入
func (a *Aggregator) Observe() (entity.Observation, error) {
	approach, err := a.SampleQueues(a.topology.ApproachLinks())
	if err != nil {
		return entity.Observation{}, err
	}
	exit, err := a.SampleQueues(a.topology.ExitLinks())
	if err != nil {
		return entity.Observation{}, err
	}
	return entity.Observation{
		Queues:     ByMovement(a.topology, approach, entity.Incoming),
		Downstream: ByMovement(a.topology, exit, entity.Outgoing),
	}, nil
}

// CurrentPhase 读取仿真器信号灯状态并解析当前激活的转向
func (a *Aggregator) CurrentPhase() (entity.Movement, error) {
	state, err := a.sim.SignalState(a.junctionID)
	if err != nil {
		return 0, fmt.Errorf("get signal state of junction %s: %w", a.junctionID, err)
	}
	return ParsePhase(state)
}

// Record 生成一条采样记录
// 参数：t-时间戳，change-本步是否做了决策
func (a *Aggregator) Record(t float64, change bool) (entity.Record, error) {
	densities, err := a.SampleDensities()
	if err != nil {
		return entity.Record{}, err
	}
	active, err := a.CurrentPhase()
	if err != nil {
		return entity.Record{}, err
	}
	r := entity.Record{Timestamp: t, Change: change, Active: active}
	for _, m := range entity.Movements {
		r.Density[m] = entity.LinkDensity{
			In:  densities[a.topology.Approach(m)],
			Out: densities[a.topology.Exit(m)],
		}
	}
	return r, nil
}

// count 查询单条link的计数，负值视为无数据
func (a *Aggregator) count(id entity.LinkID, query func(entity.LinkID) (int, error)) (int, error) {
	n, err := query(id)
	if err != nil {
		return 0, fmt.Errorf("query link %s: %w", id, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: link %s reported %d", entity.ErrMissingLinkData, id, n)
	}
	return n, nil
}
