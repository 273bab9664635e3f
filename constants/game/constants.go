package game_constants

import "time"

// Answer options a question offers.
var ValidAnswers = []string{"A", "B", "C"}

// Fraud scoring defaults
const (
	FRAUD_THRESHOLD         = 0.8
	WEIGHT_ANSWER_TOO_FAST  = 0.3
	WEIGHT_SESSION_MISMATCH = 0.8
	WEIGHT_DEVICE_MISMATCH  = 0.8
	WEIGHT_UNKNOWN_SIGNAL   = 0.2
	MIN_ANSWER_LATENCY      = 500 * time.Millisecond
	MAX_FRAUD_SCORE         = 1.0
	FRAUD_SCORE_DECIMALS    = 1e4
)

// Sweeper thresholds
const (
	// Extra time past a question deadline before an in-progress participant is abandoned.
	ABANDON_GRACE = 30 * time.Second
	// How long a participant may sit on the paywall or in not_started before being abandoned.
	IDLE_LIMIT = 15 * time.Minute
	// Outbox events relayed per sweep.
	OUTBOX_BATCH = 100
)

// Failure reasons stored on participants.
const (
	REASON_WRONG_ANSWER   = "wrong_answer"
	REASON_TIMEOUT        = "timeout"
	REASON_FRAUD          = "fraud"
	REASON_FORBIDDEN      = "forbidden"
	REASON_PAYMENT_FAILED = "payment_failed"
	REASON_REFUNDED       = "refunded"
	REASON_IDLE           = "idle"
	REASON_ROUND_CANCELED = "round_cancelled"
)

// Retry backoff for admission after lost races and transient store failures.
const (
	ADMIT_BACKOFF_BASE = 50 * time.Millisecond
	ADMIT_BACKOFF_MAX  = 2 * time.Second
)

// Redis event history per game.
const (
	EVENT_HISTORY_LEN = 200
	EVENT_HISTORY_TTL = 24 * time.Hour
)

// Per-dependency timeout of the /ping health check.
const HEALTH_CHECK_TIMEOUT = 2 * time.Second
