// 进程内的仿真器替身，供控制循环与采样相关测试使用
// 每步按种子生成各link的车辆数与排队数，行为可复现
package simtest

import (
	"fmt"
	"sync"

	"github.com/tsinghua-fib-lab/mp-signal-lab/entity"
	"github.com/tsinghua-fib-lab/mp-signal-lab/utils/randengine"
)

// SetCall 一次SetSignalState调用
type SetCall struct {
	T     float64
	State string
}

// Fake 仿真器替身
type Fake struct {
	JunctionID string
	Dt         float64 // 每步时长
	T          float64 // 当前时间
	End        float64 // 结束时间
	Arrival    float64 // 每条link每步的期望车辆数，0表示不自动生成
	Seed       int64

	State     string                 // 当前信号灯状态
	Vehicles  map[entity.LinkID]int  // 车辆数
	Halting   map[entity.LinkID]int  // 停车数
	Missing   map[entity.LinkID]bool // 不返回数据的link
	FailStep  float64                // >0时推进到该时刻返回错误
	SetCalls  []SetCall
	Steps     int
	Closed    bool
	links     []entity.LinkID
	subscribe map[entity.LinkID]bool
	rng       *randengine.Engine
}

// New 创建仿真器替身
// 参数：links-路口全部link，seed-随机种子
func New(links []entity.LinkID, seed int64) *Fake {
	f := &Fake{
		JunctionID: "J0",
		Dt:         1,
		End:        60,
		Seed:       seed,
		State:      "GGGrrrrrrrrr",
		Vehicles:   make(map[entity.LinkID]int),
		Halting:    make(map[entity.LinkID]int),
		Missing:    make(map[entity.LinkID]bool),
		links:      links,
		subscribe:  make(map[entity.LinkID]bool),
		rng:        randengine.New(uint64(seed)),
	}
	for _, l := range links {
		f.Vehicles[l] = 0
		f.Halting[l] = 0
	}
	return f
}

// Subscribed link是否已订阅
func (f *Fake) Subscribed(link entity.LinkID) bool {
	return f.subscribe[link]
}

func (f *Fake) SubscribeLinkCounts(link entity.LinkID) error {
	if _, ok := f.Vehicles[link]; !ok {
		return fmt.Errorf("%w: unknown link %s", entity.ErrMissingLinkData, link)
	}
	f.subscribe[link] = true
	return nil
}

func (f *Fake) LinkVehicleCount(link entity.LinkID) (int, error) {
	if !f.subscribe[link] {
		return 0, fmt.Errorf("%w: link %s is not subscribed", entity.ErrMissingLinkData, link)
	}
	return f.lookup(f.Vehicles, link)
}

func (f *Fake) LinkHaltingCount(link entity.LinkID) (int, error) {
	return f.lookup(f.Halting, link)
}

func (f *Fake) lookup(data map[entity.LinkID]int, link entity.LinkID) (int, error) {
	n, ok := data[link]
	if !ok || f.Missing[link] {
		return 0, fmt.Errorf("%w: no data for link %s", entity.ErrMissingLinkData, link)
	}
	return n, nil
}

func (f *Fake) SignalState(junctionID string) (string, error) {
	if junctionID != f.JunctionID {
		return "", fmt.Errorf("unknown junction %s", junctionID)
	}
	return f.State, nil
}

func (f *Fake) SetSignalState(junctionID, state string) error {
	if junctionID != f.JunctionID {
		return fmt.Errorf("unknown junction %s", junctionID)
	}
	f.State = state
	f.SetCalls = append(f.SetCalls, SetCall{T: f.T, State: state})
	return nil
}

// Step 推进一步，Arrival>0时重新生成车辆数（停车数不超过车辆数）
func (f *Fake) Step() error {
	f.T += f.Dt
	f.Steps++
	if f.FailStep > 0 && f.T >= f.FailStep {
		return fmt.Errorf("simulation crashed at %v", f.T)
	}
	if f.Arrival > 0 {
		for _, l := range f.links {
			n := f.rng.Poisson(f.Arrival)
			f.Vehicles[l] = n
			f.Halting[l] = min(n, f.rng.Poisson(f.Arrival/2))
		}
	}
	return nil
}

func (f *Fake) Time() (float64, error) {
	return f.T, nil
}

func (f *Fake) EndTime() (float64, error) {
	return f.End, nil
}

func (f *Fake) Close() error {
	f.Closed = true
	return nil
}

// Factory 仿真器替身工厂
type Factory struct {
	// Configure 可选，对新建的替身做额外设置
	Configure func(f *Fake)

	links []entity.LinkID
	mtx   sync.Mutex
	fakes map[int64]*Fake
	fail  map[int64]error
}

// NewFactory 创建替身工厂
func NewFactory(links []entity.LinkID) *Factory {
	return &Factory{
		links: links,
		fakes: make(map[int64]*Fake),
		fail:  make(map[int64]error),
	}
}

// FailStart 令指定种子的Start返回错误
func (fa *Factory) FailStart(seed int64, err error) {
	fa.mtx.Lock()
	defer fa.mtx.Unlock()
	fa.fail[seed] = err
}

func (fa *Factory) Start(configPath string, seed int64) (entity.ISimulator, error) {
	fa.mtx.Lock()
	defer fa.mtx.Unlock()
	if err, ok := fa.fail[seed]; ok {
		return nil, err
	}
	f := New(fa.links, seed)
	if fa.Configure != nil {
		fa.Configure(f)
	}
	fa.fakes[seed] = f
	return f, nil
}

// Get 返回指定种子创建的替身
func (fa *Factory) Get(seed int64) *Fake {
	fa.mtx.Lock()
	defer fa.mtx.Unlock()
	return fa.fakes[seed]
}
