package junction

import (
	"fmt"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/mp-signal-lab/entity"
	"github.com/tsinghua-fib-lab/mp-signal-lab/utils/config"
)

// 每个转向在信号灯状态字符串中占用的车道灯数
const LanesPerMovement = 3

// link 拓扑中的一条link
type link struct {
	id       entity.LinkID
	movement entity.Movement
	dir      entity.Direction
	length   float64 // 米
}

// Topology 路口静态拓扑
// 功能：记录每个转向的进口道、出口道及其长度，用于密度归一化与压力计算
// 说明：转向固定为N、E、S、W，link ID与长度可替换
type Topology struct {
	approach [entity.NumMovements]link
	exit     [entity.NumMovements]link
	byID     map[entity.LinkID]link
}

// NewTopology 根据配置创建拓扑
// 参数：links-每个转向的link配置
// 返回：拓扑，缺少转向或长度非法时返回ErrIncompleteTopology
func NewTopology(links []config.MovementLinks) (*Topology, error) {
	t := &Topology{byID: make(map[entity.LinkID]link, 2*entity.NumMovements)}
	seen := make(map[entity.Movement]bool, entity.NumMovements)
	for _, l := range links {
		m, err := entity.ParseMovement(l.Movement)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", entity.ErrIncompleteTopology, err)
		}
		if l.ApproachLength <= 0 || l.ExitLength <= 0 {
			return nil, fmt.Errorf("%w: movement %v has non-positive link length", entity.ErrIncompleteTopology, m)
		}
		seen[m] = true
		t.approach[m] = link{id: entity.LinkID(l.Approach), movement: m, dir: entity.Incoming, length: l.ApproachLength}
		t.exit[m] = link{id: entity.LinkID(l.Exit), movement: m, dir: entity.Outgoing, length: l.ExitLength}
		t.byID[t.approach[m].id] = t.approach[m]
		t.byID[t.exit[m].id] = t.exit[m]
	}
	for _, m := range entity.Movements {
		if !seen[m] {
			return nil, fmt.Errorf("%w: movement %v is not configured", entity.ErrIncompleteTopology, m)
		}
	}
	if len(t.byID) != 2*entity.NumMovements {
		return nil, fmt.Errorf("%w: link ids are not unique", entity.ErrIncompleteTopology)
	}
	return t, nil
}

// Approach 转向m的进口道ID
func (t *Topology) Approach(m entity.Movement) entity.LinkID {
	return t.approach[m].id
}

// Exit 转向m的出口道ID
func (t *Topology) Exit(m entity.Movement) entity.LinkID {
	return t.exit[m].id
}

// ApproachLinks 按N、E、S、W顺序的进口道
func (t *Topology) ApproachLinks() []entity.LinkID {
	return lo.Map(t.approach[:], func(l link, _ int) entity.LinkID { return l.id })
}

// ExitLinks 按N、E、S、W顺序的出口道
func (t *Topology) ExitLinks() []entity.LinkID {
	return lo.Map(t.exit[:], func(l link, _ int) entity.LinkID { return l.id })
}

// Links 全部8条link，先进口道后出口道
func (t *Topology) Links() []entity.LinkID {
	return append(t.ApproachLinks(), t.ExitLinks()...)
}

// Length link长度
func (t *Topology) Length(id entity.LinkID) (float64, bool) {
	l, ok := t.byID[id]
	return l.length, ok
}

// Header 数据集列名
// 顺序：timestamp, change, 8条link, N_TL, E_TL, S_TL, W_TL
func (t *Topology) Header() []string {
	header := []string{"timestamp", "change"}
	for _, id := range t.Links() {
		header = append(header, string(id))
	}
	for _, m := range entity.Movements {
		header = append(header, m.String()+"_TL")
	}
	return header
}

// ByMovement 将以link为键的状态转为以所属转向为键
// 参数：state-link状态，dir-取进口道或出口道
// 返回：转向->数值，state中缺少的转向不出现在结果中
func ByMovement[V any](t *Topology, state map[entity.LinkID]V, dir entity.Direction) map[entity.Movement]V {
	res := make(map[entity.Movement]V, entity.NumMovements)
	for _, m := range entity.Movements {
		id := t.Approach(m)
		if dir == entity.Outgoing {
			id = t.Exit(m)
		}
		if v, ok := state[id]; ok {
			res[m] = v
		}
	}
	return res
}
