package junction

import (
	"context"
	"errors"
	"net/http"

	"connectrpc.com/connect"
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	mapv2connect "git.fiblab.net/sim/protos/v2/go/city/map/v2/mapv2connect"
	"git.fiblab.net/sim/syncer/v3"
)

var (
	ErrPolicyControlled = errors.New("traffic light is controlled by the signal policy")
)

// Register 将路口监视器注册到sidecar
// 功能：提供只读的信号灯查询接口，写接口一律拒绝
func (m *Monitor) Register(sidecar *syncer.Sidecar) {
	sidecar.Register(
		mapv2connect.TrafficLightServiceName,
		func(opts ...connect.HandlerOption) (pattern string, handler http.Handler) {
			return mapv2connect.NewTrafficLightServiceHandler(m, opts...)
		},
		syncer.WithNoLock(),
	)
}

// GetTrafficLight RPC接口：获取受控路口的信号灯状态
// 功能：返回以转向为相位的程序、当前相位与到下一次决策的剩余时间
// 说明：尚未做出决策时返回空响应
func (m *Monitor) GetTrafficLight(
	ctx context.Context, in *connect.Request[mapv2.GetTrafficLightRequest],
) (*connect.Response[mapv2.GetTrafficLightResponse], error) {
	if in.Msg.JunctionId != m.rpcID {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("junction id does not exist"))
	}
	tl, phaseIndex, remaining := m.trafficLight()
	if tl == nil {
		return connect.NewResponse(&mapv2.GetTrafficLightResponse{}), nil
	}
	return connect.NewResponse(&mapv2.GetTrafficLightResponse{
		TrafficLight:  tl,
		PhaseIndex:    phaseIndex,
		TimeRemaining: remaining,
	}), nil
}

// SetTrafficLight 相位由策略决定，不接受外部程序
func (m *Monitor) SetTrafficLight(
	ctx context.Context, in *connect.Request[mapv2.SetTrafficLightRequest],
) (*connect.Response[mapv2.SetTrafficLightResponse], error) {
	return nil, connect.NewError(connect.CodeFailedPrecondition, ErrPolicyControlled)
}

// SetTrafficLightPhase 相位由策略决定，不接受外部设置
func (m *Monitor) SetTrafficLightPhase(
	ctx context.Context, in *connect.Request[mapv2.SetTrafficLightPhaseRequest],
) (*connect.Response[mapv2.SetTrafficLightPhaseResponse], error) {
	return nil, connect.NewError(connect.CodeFailedPrecondition, ErrPolicyControlled)
}

// SetTrafficLightStatus 策略无法被关闭
func (m *Monitor) SetTrafficLightStatus(
	ctx context.Context, in *connect.Request[mapv2.SetTrafficLightStatusRequest],
) (*connect.Response[mapv2.SetTrafficLightStatusResponse], error) {
	return nil, connect.NewError(connect.CodeFailedPrecondition, ErrPolicyControlled)
}
