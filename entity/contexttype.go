package entity

// 依赖倒置，表达控制循环对外部仿真器、策略与持久化的接口需求

// 仿真器会话
// 一个会话对应一次带种子的独立仿真，生命周期由Start/Close显式管理
type ISimulator interface {
	SubscribeLinkCounts(link LinkID) error         // 订阅link车辆数，采样前每条link调用一次
	LinkVehicleCount(link LinkID) (int, error)     // link上一步车辆数（来自订阅）
	LinkHaltingCount(link LinkID) (int, error)     // link上一步停车车辆数
	SignalState(junctionID string) (string, error) // 信号灯状态字符串
	SetSignalState(junctionID, state string) error // 设置信号灯状态字符串
	Step() error                                   // 推进一个仿真步
	Time() (float64, error)                        // 当前仿真时间（秒）
	EndTime() (float64, error)                     // 仿真结束时间（秒）
	Close() error                                  // 结束会话
}

// 仿真器会话工厂
type ISimulatorFactory interface {
	Start(configPath string, seed int64) (ISimulator, error)
}

// Observation 策略在一次决策时可见的路口状态
type Observation struct {
	Queues     map[Movement]int // 进口道排队长度
	Downstream map[Movement]int // 出口道排队长度，键为该出口道所属转向
}

// Decision 策略输出
type Decision struct {
	Movement Movement
	Score    float64
}

// 信控策略
type IPolicy interface {
	Name() string
	Decide(obs Observation) (Decision, error)
}

// 数据集持久化
type ISink interface {
	// 保存一次运行的全部记录，返回数据集名
	Save(run Run, records []Record) (string, error)
	Close() error
}
