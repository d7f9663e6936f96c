package junction

import (
	"sync"

	"git.fiblab.net/general/common/v2/mathutil"
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	mapv2connect "git.fiblab.net/sim/protos/v2/go/city/map/v2/mapv2connect"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/mp-signal-lab/clock"
	"github.com/tsinghua-fib-lab/mp-signal-lab/entity"
)

// Monitor 受控路口的信控状态快照
// 功能：记录控制循环最近一次决策的结果，供RPC查询
// 说明：控制循环写、RPC协程读，读写均加锁
type Monitor struct {
	mapv2connect.UnimplementedTrafficLightServiceHandler

	rpcID int32        // RPC中的路口编号
	clock *clock.Clock // 仿真时钟，用于计算相位剩余时间

	mtx          sync.RWMutex
	decided      bool            // 是否已做过决策
	active       entity.Movement // 当前激活的转向
	nextDecision float64         // 下一次决策时刻
	decisions    int64           // 本次运行的决策次数
}

// NewMonitor 创建路口监视器
// 参数：rpcID-路口编号，clock-仿真时钟
func NewMonitor(rpcID int32, clock *clock.Clock) *Monitor {
	return &Monitor{rpcID: rpcID, clock: clock}
}

// Reset 新的运行开始时清空状态
func (m *Monitor) Reset() {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.decided = false
	m.decisions = 0
}

// Decided 记录一次决策
// 参数：active-选中的转向，next-下一次决策时刻
func (m *Monitor) Decided(active entity.Movement, next float64) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.decided = true
	m.active = active
	m.nextDecision = next
	m.decisions++
}

// Decisions 本次运行的决策次数
func (m *Monitor) Decisions() int64 {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	return m.decisions
}

// trafficLight 将当前状态转换为TrafficLight程序
// 功能：每个转向一个相位，相位时长为决策周期
// 返回：程序、当前相位下标、当前相位剩余时间；尚未决策时返回nil
func (m *Monitor) trafficLight() (*mapv2.TrafficLight, int32, float64) {
	now := m.clock.T()
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	if !m.decided {
		return nil, -1, mathutil.INF
	}
	phases := lo.Map(entity.Movements[:], func(mv entity.Movement, _ int) *mapv2.Phase {
		return &mapv2.Phase{
			Duration: m.clock.CONTROL_INTERVAL,
			States:   lightStates(Encode(mv)),
		}
	})
	remaining := max(m.nextDecision-now, 0)
	return &mapv2.TrafficLight{JunctionId: m.rpcID, Phases: phases}, int32(m.active), remaining
}

// lightStates 将状态字符串转换为逐车道灯色
func lightStates(state string) []mapv2.LightState {
	return lo.Map([]byte(state), func(c byte, _ int) mapv2.LightState {
		switch c {
		case 'G', 'g':
			return mapv2.LightState_LIGHT_STATE_GREEN
		case 'y', 'Y':
			return mapv2.LightState_LIGHT_STATE_YELLOW
		default:
			return mapv2.LightState_LIGHT_STATE_RED
		}
	})
}
