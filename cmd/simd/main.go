package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/MakeNowJust/heredoc/v2"
	flags "github.com/jessevdk/go-flags"
	"github.com/massn/envordot"
	"github.com/oklog/run"

	"github.com/oqtopus-team/localsim/backend"
	"github.com/oqtopus-team/localsim/batch"
	"github.com/oqtopus-team/localsim/core"
	"github.com/oqtopus-team/localsim/estimation"
	"github.com/oqtopus-team/localsim/log"
	"github.com/oqtopus-team/localsim/noise"
	"github.com/oqtopus-team/localsim/sampling"
	"github.com/oqtopus-team/localsim/scheduler"
	"github.com/oqtopus-team/localsim/writer"

	"go.uber.org/dig"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	rotate "github.com/lestrrat-go/file-rotatelogs"
)

var versionByBuildFlag string
var parser *flags.Parser
var simd *Simd

func init() {
	if err := envordot.Load(false, ".env"); err != nil {
		fmt.Printf("Not found \".env\" file. Use only environment variables. Reason:%s\n", err.Error())
	} else {
		fmt.Println("Found \".env\" file. Environment variables are preferred, " +
			"but non-conflicting variables are those in the \".env\" file.")
	}
	simd = &Simd{}
	setParser(simd)
}

type Simd struct {
	DIContainerParameters *DIContainerParameters
	Conf                  *core.Conf
}

type DIContainerParameters struct {
	Scheduler string `long:"scheduler" description:"scheduler-type" default:"fifo" env:"LOCALSIM_SCHEDULER_TYPE"`
	Writer    string `long:"writer" description:"result-writer-type" default:"file" env:"LOCALSIM_WRITER_TYPE"`
}

func setParser(simd *Simd) {
	parser = flags.NewParser(simd, flags.Default)
	parser.ShortDescription = "local quantum circuit simulator"
	parser.LongDescription = heredoc.Doc(`
		simd runs quantum circuit experiments on a local simulator.
		Experiments are read from a batch file configured in the
		run-group settings; results are written one JSON document per
		experiment.`)
	parser.AddCommand("run", "start simulator", "start serving batched experiments", newRunCmd())
}

func parse() {
	if _, err := parser.Parse(); err != nil {
		code := 1
		if fe, ok := err.(*flags.Error); ok {
			if fe.Type == flags.ErrHelp {
				code = 0
			}
		}
		if code == 1 {
			fmt.Printf("failed to parse flags, because %s\n", err)
		}
		os.Exit(code)
	}
}

func (e *Simd) provideDIContainer() (c *dig.Container, err error) {
	c = dig.New()
	err = nil
	err = c.Provide(func() *core.Conf { return e.Conf })
	if err != nil {
		return &dig.Container{}, err
	}
	err = c.Provide(func() core.BackendFactory { return &backend.Factory{} })
	if err != nil {
		return &dig.Container{}, err
	}
	err = c.Provide(func() (core.Scheduler, error) {
		switch e.DIContainerParameters.Scheduler {
		case "fifo":
			return &scheduler.FIFOScheduler{}, nil
		default:
			return &scheduler.FIFOScheduler{}, fmt.Errorf("%s is an unknown scheduler", e.DIContainerParameters.Scheduler)
		}
	})
	if err != nil {
		return &dig.Container{}, err
	}
	err = c.Provide(func() (core.ResultWriter, error) {
		switch e.DIContainerParameters.Writer {
		case "file":
			return &writer.FileWriter{}, nil
		case "stdout":
			return &writer.StdoutWriter{}, nil
		default:
			return &writer.FileWriter{}, fmt.Errorf("%s is an unknown result writer", e.DIContainerParameters.Writer)
		}
	})
	if err != nil {
		return &dig.Container{}, err
	}
	err = c.Provide(func() *core.MemoryStore { return &core.MemoryStore{} })
	if err != nil {
		return &dig.Container{}, err
	}
	err = c.Provide(func() (*noise.Model, error) {
		if e.Conf.NoiseModelPath == "" {
			return &noise.Model{}, nil
		}
		return noise.LoadModel(e.Conf.NoiseModelPath)
	})
	if err != nil {
		return &dig.Container{}, err
	}
	return
}

func (e *Simd) startCore(conf *core.Conf) error {
	_, err := core.NewExperimentManager(
		&sampling.SamplingExperiment{},
		&estimation.EstimationExperiment{},
	)
	if err != nil {
		return err
	}
	err = core.GetSystemComponents().StartContainer()
	if err != nil {
		return err
	}
	core.SetInfo(conf)
	return nil
}

func zapLogger(conf *core.Conf) (*zap.Logger, error) {
	var encoder zapcore.Encoder
	if conf.DevMode {
		encoder = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	} else {
		c := zap.NewProductionEncoderConfig()
		c.EncodeTime = zapcore.ISO8601TimeEncoder
		c.TimeKey = "timestamp"
		encoder = zapcore.NewJSONEncoder(c)
	}
	var level zap.AtomicLevel
	switch conf.LogLevel {
	case "debug":
		level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "warn":
		level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	cores := []zapcore.Core{}
	if conf.EnableFileLog {
		rotater, err := makeRotator(conf.LogDir, conf.LogRotationMaxDays)
		if err != nil {
			return &zap.Logger{}, err
		}
		syncer := zapcore.AddSync(rotater)
		rotateCore := zapcore.NewCore(
			encoder,
			syncer,
			level)
		cores = append(cores, rotateCore)
	}
	if !conf.DisableStdoutLog {
		debugCore := zapcore.NewCore(
			encoder,
			zapcore.Lock(os.Stdout),
			level)
		cores = append(cores, debugCore)
	}
	core := zapcore.NewTee(cores...)
	return zap.New(core, zap.AddCaller()), nil
}

func makeRotator(dirPath string, rotationMaxDays int) (*rotate.RotateLogs, error) {
	info, err := os.Stat(dirPath)
	if err != nil {
		return &rotate.RotateLogs{}, fmt.Errorf("directory:%s is not found", dirPath)
	}
	if info.Mode().Perm()&(1<<uint(7)) == 0 {
		return &rotate.RotateLogs{}, fmt.Errorf("%s is not a writable directory", dirPath)
	}
	rotator, err := rotate.New(
		filepath.Join(dirPath, "localsim-%Y-%m-%d.log"),
		rotate.WithMaxAge(time.Duration(rotationMaxDays)*24*time.Hour),
		rotate.WithRotationTime(time.Hour))
	if err != nil {
		return &rotate.RotateLogs{}, err
	}
	return rotator, nil
}

func main() {
	parse()
}

type runCmd struct{}

func newRunCmd() *runCmd {
	return &runCmd{}
}

func (c *runCmd) Execute(args []string) error {
	logger := setZap(simd.Conf)
	defer logger.Sync()

	core.ResetSetting()
	registerSetting()
	if err := core.ParseSettingFromPath(simd.Conf.SettingPath); err != nil {
		zap.L().Error(fmt.Sprintf("failed to parse settings/reason:%s", err))
		return err
	}

	s := setupSystemComponents(simd.Conf)
	defer s.TearDown()

	im := &core.ImplMaps{
		PeriodicTaskImplMap: core.PeriodicTaskImplMap{
			log.VersionLogTaskName: &log.VersionLogTaskImpl{},
			log.MetricsLogTaskName: &log.MetricsLogTaskImpl{},
		},
		ExperimentServerImplMap: core.ExperimentServerImplMap{
			batch.BatchServerName: &batch.ServerImpl{},
		},
	}
	rc, err := core.NewRunContextWithSettingPath(simd.Conf.SettingPath, im)
	if err != nil {
		zap.L().Error(fmt.Sprintf("failed to setup run context/reason:%s", err.Error()))
		return err
	}

	if err := simd.startCore(simd.Conf); err != nil {
		zap.L().Error(fmt.Sprintf("failed to start core/reason:%s", err.Error()))
		return err
	}

	zap.L().Debug("Setting up run-group")
	if err := c.setupRunGroup(rc); err != nil {
		zap.L().Error(fmt.Sprintf("Failed to setup run group. Reason:%s", err))
		return err
	}

	if err := rc.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "execution error:%v\n", err)
		os.Exit(1)
	}

	return nil
}

func (c *runCmd) setupRunGroup(rc *core.RunContext) error {
	rc.Add(
		run.SignalHandler(
			rc.Context,
			os.Interrupt))
	core.SetRunContext(rc)
	return nil
}

func setZap(conf *core.Conf) *zap.Logger {
	logger, err := zapLogger(conf)
	if err != nil {
		fmt.Printf("Failed to setup logger. Reason:%s\n", err)
		panic(err)
	}
	zap.ReplaceGlobals(logger)
	zap.L().Info("Starting logger")
	zap.L().Info(fmt.Sprintf("DevMode is %t", conf.DevMode))
	return logger
}

func setupSystemComponents(conf *core.Conf) *core.SystemComponents {
	core.SetVersion(conf, versionByBuildFlag)
	zap.L().Debug(fmt.Sprintf("Providing DI Container with parameters %+v", simd.DIContainerParameters))

	container, err := simd.provideDIContainer()
	if err != nil {
		zap.L().Error(fmt.Sprintf("Failed to setting up DI-Container. Reason:%s", err.Error()))
		panic(err)
	}
	zap.L().Debug("Setting up System Components")
	s := core.NewSystemComponents(container)
	if err := s.Setup(conf); err != nil {
		zap.L().Error(fmt.Sprintf("Failed to setting up Container. Reason:%s", err.Error()))
		panic(err)
	}
	return s
}

func registerSetting() {
	core.RegisterSetting(estimation.ESTIMATION_SETTING_KEY, estimation.NewEstimationSetting())
}
