package cfg

type Cfg struct {
	// Storage configuration
	DataDir string

	// Application configuration
	FeedsDir          string
	Port              string
	WorkerCount       int
	SchedulerInterval int
	APIAccessKey      string
	TagNamespace      string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
