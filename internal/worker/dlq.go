package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// DLQPrefix namespaces the list where a queue's exhausted jobs are parked.
// A parked Z-report loses nothing: the snapshot is rebuilt from the session row
// on the next GET /v1/sessions/:id/zreport.
const DLQPrefix = "dlq:"

// DeadLetter is one parked job. SessionID is set when the payload names a
// session, so an operator can find the affected report without decoding Payload.
type DeadLetter struct {
	Queue     string          `json:"queue"`
	JobType   string          `json:"job_type"`
	SessionID *uuid.UUID      `json:"session_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	Reason    string          `json:"reason"`
	Attempts  int             `json:"attempts"`
	FailedAt  time.Time       `json:"failed_at"`
}

func newDeadLetter(queue string, job Job, reason string) DeadLetter {
	dl := DeadLetter{
		Queue:    queue,
		JobType:  job.Type,
		Payload:  job.Payload,
		Reason:   reason,
		Attempts: job.Attempts,
		FailedAt: time.Now().UTC(),
	}
	if job.Type == JobTypeZReport {
		var zj ZReportJob
		if json.Unmarshal(job.Payload, &zj) == nil && zj.SessionID != uuid.Nil {
			dl.SessionID = &zj.SessionID
		}
	}
	return dl
}

// park pushes a dead letter. Failures are logged: the job is gone either way.
func park(ctx context.Context, rdb *redis.Client, dl DeadLetter) {
	evt := log.Warn().
		Str("queue", dl.Queue).
		Str("job_type", dl.JobType).
		Str("reason", dl.Reason).
		Int("attempts", dl.Attempts)
	if dl.SessionID != nil {
		evt = evt.Str("session_id", dl.SessionID.String())
	}

	data, err := json.Marshal(dl)
	if err != nil {
		log.Error().Err(err).Str("queue", dl.Queue).Msg("dead letter not encodable")
		return
	}
	if err := rdb.LPush(ctx, DLQPrefix+dl.Queue, data).Err(); err != nil {
		log.Error().Err(err).Str("queue", dl.Queue).Msg("dead letter not stored")
		return
	}
	evt.Msg("job parked in dead letter queue")
}

// DLQLength returns the number of parked entries; surfaced by the health endpoint.
func DLQLength(ctx context.Context, rdb *redis.Client, queue string) (int64, error) {
	return rdb.LLen(ctx, DLQPrefix+queue).Result()
}
