package cfg

type Cfg struct {
	// Storage
	DBPath    string
	CachePath string

	// Extraction
	MaxItems       int
	MaxUploadBytes int64
	Storefront     string
	VendorMarkers  []string
	SearchURL      string

	// Application configuration
	VendorsDir        string
	Port              string
	WorkerCount       int
	SchedulerInterval int
	APIAccessKey      string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
