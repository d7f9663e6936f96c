package main

import (
	"encoding/base64"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"git.fiblab.net/sim/syncer/v3"
	easy "git.fiblab.net/utils/logrus-easy-formatter"
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/mp-signal-lab/entity"
	"github.com/tsinghua-fib-lab/mp-signal-lab/entity/junction"
	"github.com/tsinghua-fib-lab/mp-signal-lab/simulator"
	"github.com/tsinghua-fib-lab/mp-signal-lab/task"
	"github.com/tsinghua-fib-lab/mp-signal-lab/utils/config"
	"github.com/tsinghua-fib-lab/mp-signal-lab/utils/output"
)

var (
	// syncer地址，如果设置为空则为独立部署模式
	syncerAddr = flag.String("syncer", "", "syncer address (empty means standalone mode), e.g. http://localhost:53001")
	// 状态RPC监听地址，设置为空则不提供RPC
	grpcAddr = flag.String("listen", "", "status rpc listening address (empty means disabled), e.g. :51102")
	// 配置文件路径
	configPath = flag.String("config", "", "config file path")
	// 配置文件Base64编码后的数据
	configData = flag.String("config-data", "", "config file base64 encoded data")

	// log
	logLevels = map[string]logrus.Level{
		"trace":    logrus.TraceLevel,
		"debug":    logrus.DebugLevel,
		"info":     logrus.InfoLevel,
		"warn":     logrus.WarnLevel,
		"error":    logrus.ErrorLevel,
		"critical": logrus.FatalLevel,
		"off":      logrus.PanicLevel,
	}
	logLevel = flag.String("log.level", "info", "日志级别（可选项：trace debug info warn error critical off）")

	log = logrus.WithField("module", "main")
)

func main() {
	flag.Parse()
	logrus.SetFormatter(&easy.Formatter{
		TimestampFormat: "2006-01-02 15:04:05.0000",
		LogFormat:       "[%module%] [%time%] [%lvl%] %msg%\n",
	})
	// log: 运行时才修改
	if level, ok := logLevels[*logLevel]; ok {
		logrus.SetLevel(level)
	} else {
		log.Panicf("log.level must be one of %v", logLevels)
	}
	// 获取配置
	var file []byte
	var err error
	if *configPath != "" {
		file, err = os.ReadFile(*configPath)
		if err != nil {
			log.Panicf("config file load err: %v", err)
		}
	} else if *configData != "" {
		file, err = base64.StdEncoding.DecodeString(*configData)
		if err != nil {
			log.Panicf("config data load err: %v", err)
		}
	} else {
		log.Panic("config file or config data must be specified")
	}
	c, err := config.Load(file)
	if err != nil {
		log.Panicf("config file load err: %v", err)
	}
	rc, err := config.NewRuntimeConfig(c)
	if err != nil {
		log.Panicf("config check err: %v", err)
	}
	log.Infof("config: %s", rc.Summary())

	topology, err := junction.NewTopology(rc.All.Topology)
	if err != nil {
		log.Panicf("topology err: %v", err)
	}

	// 输出：CSV总是启用，MongoDB与Kafka可选
	header := topology.Header()
	sinks := []entity.ISink{output.NewCSVSink(rc.All.Output.Dir, rc.All.Output.Naming, header)}
	if m := rc.All.Output.Mongo; m != nil {
		sinks = append(sinks, output.NewMongoSink(*m, header))
	}
	if k := rc.All.Output.Kafka; k != nil {
		sinks = append(sinks, output.NewKafkaSink(*k))
	}
	sink := output.Multi(sinks...)
	defer func() {
		if err := sink.Close(); err != nil {
			log.Warnf("close output err: %v", err)
		}
	}()

	var sidecar *syncer.Sidecar
	if *grpcAddr != "" {
		sidecar = syncer.NewSidecar(task.SelfName, *grpcAddr, *syncerAddr)
	}
	t := task.NewContext(rc, topology, simulator.NewFactory(rc.All.Simulator), sink, sidecar)
	defer t.Close()

	// 收到中断信号后不再开始新的运行，当前运行结束后退出
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-signalCh
		log.Warnf("received %v, stop after current runs", s)
		t.Close()
	}()

	if err := t.Run(); err != nil {
		log.Errorf("experiment %s finished with failures: %v", t.Experiment(), err)
		t.Close()
		sink.Close()
		os.Exit(1)
	}
}
