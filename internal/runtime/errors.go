package runtime

import "fmt"

// Names of the supervised tasks.
const (
	TaskWebServer      = "web_server"
	TaskPolicyConsumer = "policy_consumer"
	TaskEventProducer  = "event_producer"
)

// UnprocessableEventError wraps payloads that failed decoding or validation.
// The poison queue middleware forwards the messages it is returned for.
type UnprocessableEventError struct {
	eventMessage string
	err          error
}

// NewUnprocessableEventError keeps a lossy text copy of payload for logs.
func NewUnprocessableEventError(payload string, err error) *UnprocessableEventError {
	return &UnprocessableEventError{eventMessage: payload, err: err}
}

func (e *UnprocessableEventError) Error() string {
	return "unprocessable event: " + e.eventMessage + " error: " + e.err.Error()
}

func (e *UnprocessableEventError) Unwrap() error {
	return e.err
}

// TaskExit reports that a supervised task stopped. Err is nil when the task
// returned without an error, which is still fatal for the bridge.
type TaskExit struct {
	Task string
	Err  error
}

func (e *TaskExit) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("acs: task %s exited", e.Task)
	}
	return fmt.Sprintf("acs: task %s exited: %v", e.Task, e.Err)
}

func (e *TaskExit) Unwrap() error {
	return e.Err
}
