// Package simulate drives a running trustmatch server with synthetic
// subjects and activity, then checks the fraud alerts it raised.
package simulate

import "time"

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL      string        // Base URL of the service
	Subjects     int           // Number of well-behaved subjects
	Spammers     int           // Subjects that hammer one job with referrals
	Bursters     int           // New accounts that send a burst of referrals
	Duplicates   int           // Activity events replayed to exercise dedupe
	Workers      int           // Number of concurrent submitters
	Timeout      time.Duration // HTTP request timeout
	DrainTimeout time.Duration // How long to wait for the queue to empty
	Seed         uint64        // Seed for the population generator
	OutputFile   string        // Optional JSON dump of the generated activity
	Verbose      bool          // Log every mismatch
}

// Stats holds run statistics.
type Stats struct {
	SubjectsSeeded    int
	EventsGenerated   int
	EventsAccepted    int
	EventsDuplicate   int
	EventsRetried     int
	EventsFailed      int
	AlertsExpected    int
	AlertsFound       int
	UnexpectedAlerts  int
	HighTrustSubjects int
	LowTrustSubjects  int
	StartTime         time.Time
	EndTime           time.Time
	Duration          time.Duration
}

// Runner configuration constants.
const (
	defaultDrainTimeout = 30 * time.Second
	drainPollInterval   = 100 * time.Millisecond
	maxSubmitAttempts   = 5
	retryBackoff        = 50 * time.Millisecond
	percentage          = 100
)
