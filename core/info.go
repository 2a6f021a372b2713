package core

type NonSecretConf struct {
	DevMode            bool
	DisableStdoutLog   bool
	EnableFileLog      bool
	LogDir             string
	LogLevel           string
	LogRotationMaxDays int
	MaxQubits          int
	MaxShots           int
	Threads            int
	DefaultBackend     string
	QueueMaxSize       int
	NoiseModelPath     string
	ResultDir          string
}

type Info struct {
	Conf *NonSecretConf
}

var CurrentInfo *Info

func SetInfo(c *Conf) {
	conf := &NonSecretConf{
		DevMode:            c.DevMode,
		DisableStdoutLog:   c.DisableStdoutLog,
		EnableFileLog:      c.EnableFileLog,
		LogDir:             c.LogDir,
		LogLevel:           c.LogLevel,
		LogRotationMaxDays: c.LogRotationMaxDays,
		MaxQubits:          c.MaxQubits,
		MaxShots:           c.MaxShots,
		Threads:            c.Threads,
		DefaultBackend:     c.DefaultBackend,
		QueueMaxSize:       c.QueueMaxSize,
		NoiseModelPath:     c.NoiseModelPath,
		ResultDir:          c.ResultDir,
	}

	CurrentInfo = &Info{
		Conf: conf,
	}
}
