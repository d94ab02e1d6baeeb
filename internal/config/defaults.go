package config

const (
	defaultStateDir              = "~/.local/share/eventsync"
	defaultLogDir                = "~/.local/share/eventsync/logs"
	defaultDatasetManager        = ManagerDatalad
	defaultDataladBinary         = "datalad"
	defaultSaveMessage           = "Copy `events.tsv` files to BIDS"
	defaultCommandTimeoutSeconds = 600
	defaultMemberPattern         = "*sub-{subject}_ses-{session}_*sv"
	defaultEventsPattern         = "*_events.tsv"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

const (
	// ManagerDatalad persists changes through the datalad CLI.
	ManagerDatalad = "datalad"
	// ManagerPlain treats the dataset as an ordinary directory tree.
	ManagerPlain = "plain"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Dataset: Dataset{
			Manager:        defaultDatasetManager,
			DataladBinary:  defaultDataladBinary,
			SaveMessage:    defaultSaveMessage,
			CommandTimeout: defaultCommandTimeoutSeconds,
		},
		Matching: Matching{
			SessionZeroStrip: true,
		},
		Archive: Archive{
			MemberPattern: defaultMemberPattern,
			EventsPattern: defaultEventsPattern,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
