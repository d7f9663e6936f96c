package entity

import (
	"errors"
	"fmt"
)

var (
	// 仿真器没有某条已订阅/查询link的数据（例如尚未建立订阅）
	ErrMissingLinkData = errors.New("missing link data")
	// 信号灯状态字符串格式错误或不存在绿灯
	ErrInvalidSignalState = errors.New("invalid signal state")
	// 调用策略时缺少某个转向/link的输入，属于配置错误
	ErrIncompleteTopology = errors.New("incomplete topology")
	// 无法写出数据集
	ErrPersistenceFailure = errors.New("persistence failure")
)

// Movement 路口转向（进口方向），每个转向由一个信号相位控制
type Movement int

const (
	North Movement = iota
	East
	South
	West

	NumMovements = 4
)

// Movements 规范顺序，遍历与平局裁决都使用此顺序
var Movements = [NumMovements]Movement{North, East, South, West}

var movementNames = [NumMovements]string{"N", "E", "S", "W"}

func (m Movement) String() string {
	if !m.Valid() {
		return fmt.Sprintf("Movement(%d)", int(m))
	}
	return movementNames[m]
}

func (m Movement) Valid() bool {
	return m >= 0 && m < NumMovements
}

// ParseMovement 将"N"/"E"/"S"/"W"解析为Movement
func ParseMovement(s string) (Movement, error) {
	for i, name := range movementNames {
		if name == s {
			return Movement(i), nil
		}
	}
	return 0, fmt.Errorf("unknown movement %q", s)
}

// Direction link相对路口的方向
type Direction byte

const (
	Incoming Direction = 'I' // 进口道
	Outgoing Direction = 'O' // 出口道
)

// LinkID link标识，默认形式为{Movement}{Direction}，如NI、WO
type LinkID string

// MakeLinkID 按默认命名规则生成link ID
func MakeLinkID(m Movement, d Direction) LinkID {
	return LinkID(m.String() + string(d))
}

// QueueState link -> 停车（排队）车辆数，每次决策时从仿真器采样，不持久化
type QueueState map[LinkID]int

// DensityState link -> 车辆密度（辆/米），按采样周期采样
type DensityState map[LinkID]float64

// LinkDensity 一个转向的进口道与出口道密度
type LinkDensity struct {
	In  float64
	Out float64
}

// Record 一条采样记录
// 功能：记录某一采样时刻的时间戳、是否发生决策、8条link的密度与当前激活的转向
type Record struct {
	Timestamp float64
	Change    bool
	Density   [NumMovements]LinkDensity // 下标为Movement
	Active    Movement
}

// ChangeFlag 以0/1形式返回决策标志
func (r Record) ChangeFlag() int {
	if r.Change {
		return 1
	}
	return 0
}

// OneHot 当前激活转向的独热编码，顺序为N、E、S、W
func (r Record) OneHot() [NumMovements]int {
	var v [NumMovements]int
	v[r.Active] = 1
	return v
}

// Run 一次仿真运行的标识
type Run struct {
	Experiment string // 实验ID
	Seed       int64  // 仿真随机种子
}
