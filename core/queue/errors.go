package queue

import "errors"

var (
	ErrRepositoryNil     = errors.New("queue repository is nil")
	ErrPayloadNil        = errors.New("task payload is nil")
	ErrInvalidPriority   = errors.New("task priority must be between 0 and 100")
	ErrNoTaskToClaim     = errors.New("no task available to claim")
	ErrNoHandlers        = errors.New("no task handlers registered")
	ErrHandlerNotFound   = errors.New("no handler registered for task")
	ErrTaskNotFound      = errors.New("task not found")
	ErrTaskNotProcessing = errors.New("task is not in processing state")
	ErrTaskExists        = errors.New("task already exists")
	ErrWorkerNotRunning  = errors.New("worker is not running")
	ErrHealthcheckFailed = errors.New("queue healthcheck failed")
)
