package core

type Conf struct {
	Version            string `long:"version" description:"version of the simulator" env:"LOCALSIM_VERSION"`
	DevMode            bool   `long:"dev-mode" description:"run in dev mode" env:"LOCALSIM_DEV_MODE"`
	DisableStdoutLog   bool   `long:"disable-stdout-log" description:"do not log in standard output" env:"LOCALSIM_DISABLE_STDOUT_LOG"`
	EnableFileLog      bool   `long:"enable-file-log" description:"enable log in file" env:"LOCALSIM_ENABLE_FILE_LOG"`
	LogDir             string `long:"log-dir" description:"rotating log file dir" default:"./shares/logs" env:"LOCALSIM_LOG_DIR"`
	LogLevel           string `long:"log-level" description:"log level" default:"info" choice:"debug" choice:"info" choice:"warn" choice:"error" env:"LOCALSIM_LOG_LEVEL"`
	LogRotationMaxDays int    `long:"log-rotation-max-days" description:"max days of log rotation" default:"7" env:"LOCALSIM_LOG_ROTATION_MAX_DAYS"`
	MaxQubits          int    `long:"max-qubits" description:"largest dense-representation qubit count" default:"25" env:"LOCALSIM_MAX_QUBITS"`
	MaxShots           int    `long:"max-shots" description:"largest accepted shot count" default:"1000000" env:"LOCALSIM_MAX_SHOTS"`
	Threads            int    `long:"threads" description:"hardware threads for gate and shot parallelism. 0 means GOMAXPROCS" default:"0" env:"LOCALSIM_THREADS"`
	DefaultBackend     string `long:"default-backend" description:"backend used when an experiment does not name one" default:"statevector" choice:"statevector" choice:"density_matrix" choice:"stabilizer" choice:"unitary" env:"LOCALSIM_DEFAULT_BACKEND"`
	QueueMaxSize       int    `long:"queue-max-size" description:"queue max size" default:"100" env:"LOCALSIM_QUEUE_MAX_SIZE"`
	NoiseModelPath     string `long:"noise-model-path" description:"noise model file path. empty means ideal execution" env:"LOCALSIM_NOISE_MODEL_PATH"`
	ResultDir          string `long:"result-dir" description:"directory for result documents" default:"./shares/results" env:"LOCALSIM_RESULT_DIR"`
	SettingPath        string `long:"setting-path" description:"setting file path" default:"./setting/setting.toml" env:"LOCALSIM_SETTING_PATH"`
}
