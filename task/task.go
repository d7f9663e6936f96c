package task

import (
	"errors"
	"fmt"
	"sync/atomic"

	"git.fiblab.net/general/common/v2/parallel"
	"git.fiblab.net/sim/syncer/v3"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/mp-signal-lab/clock"
	"github.com/tsinghua-fib-lab/mp-signal-lab/entity"
	"github.com/tsinghua-fib-lab/mp-signal-lab/entity/junction"
	"github.com/tsinghua-fib-lab/mp-signal-lab/entity/junction/trafficlight"
	"github.com/tsinghua-fib-lab/mp-signal-lab/utils/config"
)

const (
	SelfName = "mp-signal-lab" // 本程序在sidecar中注册的名字
)

// runResult 一次运行的结果
type runResult struct {
	seed int64
	name string // 数据集名
	err  error
}

// Context 一次实验的上下文
// 功能：持有实验配置、拓扑、仿真器工厂与输出，按种子逐次（或分批并行）执行仿真-记录-保存
// 说明：不使用全局状态，每次运行新建仿真器会话、策略与记录
type Context struct {
	// 实验ID
	experiment string
	// 关闭指令
	closed atomic.Bool

	runtimeConfig *config.RuntimeConfig
	topology      *junction.Topology
	factory       entity.ISimulatorFactory
	sink          entity.ISink

	// 顺序执行时共享的时钟与路口监视器，供RPC查询进度
	clock   *clock.Clock
	monitor *junction.Monitor

	// 状态RPC的sidecar(optional)
	sidecar        *syncer.Sidecar
	sidecarCloseCh chan struct{}
}

// NewContext 创建实验上下文
// 参数：
//   - rc: 运行时配置
//   - topology: 路口拓扑
//   - factory: 仿真器会话工厂
//   - sink: 数据集输出
//   - sidecar: 状态RPC的sidecar，为nil时不提供RPC
//
// 说明：并行执行时各运行使用各自的时钟，不注册状态RPC
func NewContext(
	rc *config.RuntimeConfig,
	topology *junction.Topology,
	factory entity.ISimulatorFactory,
	sink entity.ISink,
	sidecar *syncer.Sidecar,
) *Context {
	ctx := &Context{
		experiment:     uuid.NewString(),
		runtimeConfig:  rc,
		topology:       topology,
		factory:        factory,
		sink:           sink,
		sidecarCloseCh: make(chan struct{}),
	}
	ctx.clock = clock.New(rc.C, rc.WarmUp)
	ctx.monitor = junction.NewMonitor(rc.All.Junction.RpcID, ctx.clock)

	if sidecar != nil {
		if rc.All.Experiment.Parallel > 1 {
			log.Warnf("status rpc is disabled when running %d seeds in parallel", rc.All.Experiment.Parallel)
		} else {
			ctx.sidecar = sidecar
			ctx.clock.Register(sidecar)
			ctx.monitor.Register(sidecar)
			go func() {
				if err := sidecar.Serve(); err != nil {
					log.Errorf("failed to serve: %v", err)
				}
				ctx.sidecarCloseCh <- struct{}{}
			}()
		}
	}
	return ctx
}

// Experiment 实验ID
func (ctx *Context) Experiment() string {
	return ctx.experiment
}

// Seeds 本次实验的全部种子
func (ctx *Context) Seeds() []int64 {
	e := ctx.runtimeConfig.All.Experiment
	return lo.Times(e.Seeds, func(i int) int64 { return e.SeedStart + int64(i) })
}

// Run 执行全部运行
// 返回：所有失败运行的错误（errors.Join），全部成功时为nil
// 说明：continue_on_error为false时，第一次失败后不再开始新的运行
func (ctx *Context) Run() error {
	seeds := ctx.Seeds()
	batch := max(ctx.runtimeConfig.All.Experiment.Parallel, 1)
	log.Infof("experiment %s: %d runs, policy %s, batch %d", ctx.experiment, len(seeds), ctx.runtimeConfig.C.Policy, batch)

	var errs []error
	saved := 0
	for _, chunk := range lo.Chunk(seeds, batch) {
		if ctx.closed.Load() {
			break
		}
		var results []runResult
		if batch == 1 {
			results = []runResult{ctx.runOnce(chunk[0], ctx.clock, ctx.monitor)}
		} else {
			results = parallel.GoMap(chunk, func(seed int64) runResult {
				return ctx.runOnce(seed, clock.New(ctx.runtimeConfig.C, ctx.runtimeConfig.WarmUp), nil)
			})
		}
		for _, r := range results {
			if r.err != nil {
				log.Errorf("run with seed %d failed: %v", r.seed, r.err)
				errs = append(errs, fmt.Errorf("seed %d: %w", r.seed, r.err))
				continue
			}
			saved++
			log.Infof("run with seed %d saved as %s", r.seed, r.name)
		}
		if len(errs) > 0 && !ctx.runtimeConfig.ContinueOnError {
			break
		}
	}
	log.Infof("experiment %s complete: %d/%d runs saved", ctx.experiment, saved, len(seeds))
	return errors.Join(errs...)
}

// runOnce 执行一次运行：启动仿真 -> 订阅 -> 控制循环 -> 保存 -> 结束仿真
// 说明：控制循环失败时不保存任何记录；仿真会话总会被关闭
func (ctx *Context) runOnce(seed int64, clk *clock.Clock, monitor *junction.Monitor) (res runResult) {
	res.seed = seed
	rc := ctx.runtimeConfig
	sim, err := ctx.factory.Start(rc.All.Simulator.Config, seed)
	if err != nil {
		res.err = fmt.Errorf("start simulation: %w", err)
		return
	}
	defer func() {
		if err := sim.Close(); err != nil {
			log.Warnf("close simulation with seed %d: %v", seed, err)
		}
	}()

	aggregator := junction.NewAggregator(sim, ctx.topology, rc.All.Junction.ID)
	if err := aggregator.Subscribe(); err != nil {
		res.err = err
		return
	}
	policy, err := trafficlight.New(rc.C)
	if err != nil {
		res.err = err
		return
	}
	l := &loop{
		sim:        sim,
		aggregator: aggregator,
		policy:     policy,
		clock:      clk,
		monitor:    monitor,
		junctionID: rc.All.Junction.ID,
	}
	records, err := l.run()
	if err != nil {
		res.err = err
		return
	}
	res.name, res.err = ctx.sink.Save(entity.Run{Experiment: ctx.experiment, Seed: seed}, records)
	return
}

// Close 停止开始新的运行并关闭sidecar
func (ctx *Context) Close() {
	if ctx.closed.Swap(true) {
		return
	}
	if ctx.sidecar != nil {
		ctx.sidecar.Close()
		// wait for graceful stop
		<-ctx.sidecarCloseCh
	}
}
