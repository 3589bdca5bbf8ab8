package durations

import "time"

const (
	// TaskPollInterval is the fallback wakeup of the task engine. The
	// engine normally wakes up on task table change events; the tick
	// guarantees progress when notifications are lost.
	TaskPollInterval = time.Minute * 1

	// TaskCancelWindow is the minimum remaining time before execute_at
	// during which a pending task may still be canceled.
	TaskCancelWindow = time.Minute * 5

	HelmPodCreateRetrySleep = time.Millisecond * 500
	HelmPodScheduleTimeout  = time.Second * 60
	HelmPodRunTimeout       = time.Minute * 10

	NotifyListenRetrySleep = time.Second * 3
	WatcherRestartSleep    = time.Second * 5

	// ResourceStaleAfter is how long after a successful watch start
	// unobserved mirrored resources are kept before garbage collection.
	ResourceStaleAfter = time.Minute * 1

	StatusProbeTimeout = time.Second * 10

	// DeploymentTokenLifetime is the lifetime of minted deployment access
	// tokens; the creds refresher runs at half this interval.
	DeploymentTokenLifetime = time.Hour * 24
)
