package config

// Simulator 仿真器桥接进程的连接配置
type Simulator struct {
	Socket     string  `yaml:"socket"`                // 桥接进程的unix socket路径
	Config     string  `yaml:"config"`                // 仿真器配置文件路径（如sumocfg）
	TimeoutSec float64 `yaml:"timeout_sec,omitempty"` // 单次请求超时（秒），0表示不设超时
}

// Junction 受控路口
type Junction struct {
	ID    string `yaml:"id"`               // 仿真器中的路口ID
	RpcID int32  `yaml:"rpc_id,omitempty"` // 状态RPC中使用的路口编号
}

// MovementLinks 一个转向的进口道与出口道
type MovementLinks struct {
	Movement       string  `yaml:"movement"`        // N/E/S/W
	Approach       string  `yaml:"approach"`        // 进口道ID
	ApproachLength float64 `yaml:"approach_length"` // 进口道长度（米）
	Exit           string  `yaml:"exit"`            // 出口道ID
	ExitLength     float64 `yaml:"exit_length"`     // 出口道长度（米）
}

// Control 控制循环配置
// 功能：定义决策周期、采样周期、预热时长与策略
type Control struct {
	Policy          string   `yaml:"policy,omitempty"`          // max_pressure（默认）或fixed_cycle
	SaturationFlow  float64  `yaml:"saturation_flow,omitempty"` // 饱和流率（辆/秒）
	SampleInterval  float64  `yaml:"sample_interval"`           // 采样周期（秒）
	ControlInterval float64  `yaml:"control_interval"`          // 决策周期（秒）
	WarmUp          *float64 `yaml:"warm_up,omitempty"`         // 预热时长（秒），之前的采样丢弃
}

// Experiment 实验配置
type Experiment struct {
	Seeds           int   `yaml:"seeds"`                       // 运行次数
	SeedStart       int64 `yaml:"seed_start,omitempty"`        // 第一个种子
	Parallel        int   `yaml:"parallel,omitempty"`          // 并行运行数，<=1表示顺序执行
	ContinueOnError *bool `yaml:"continue_on_error,omitempty"` // 某次运行失败后是否继续，默认继续
}

// Mongo 记录写入MongoDB的配置
type Mongo struct {
	URI string `yaml:"uri"`
	DB  string `yaml:"db"`
	Col string `yaml:"col"`
}

// Kafka 记录推送到Kafka的配置
type Kafka struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// Output 输出配置
type Output struct {
	Dir    string `yaml:"dir"`              // CSV输出目录
	Naming string `yaml:"naming,omitempty"` // sequential（默认）或seed
	Mongo  *Mongo `yaml:"mongo,omitempty"`  // 可选
	Kafka  *Kafka `yaml:"kafka,omitempty"`  // 可选
}

// Config YAML配置文件的根结构
type Config struct {
	Simulator  Simulator       `yaml:"simulator"`
	Junction   Junction        `yaml:"junction"`
	Topology   []MovementLinks `yaml:"topology,omitempty"`
	Control    Control         `yaml:"control"`
	Experiment Experiment      `yaml:"experiment"`
	Output     Output          `yaml:"output"`
}
