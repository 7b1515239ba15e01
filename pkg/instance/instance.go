package instance

import "github.com/angelmondragon/stockhold-backend/pkg/env"

// EnvWorkerID names the variable that identifies a worker replica in logs.
const EnvWorkerID = "STOCKHOLD_WORKER_ID"

// GetID returns the worker instance identifier or a default value.
func GetID() string {
	return env.Get(EnvWorkerID, "worker-0")
}
