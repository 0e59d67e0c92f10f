package amqp

import (
	"encoding/json"
	"time"
)

// Routing keys on the direct exchange besides the evaluation queue.
const (
	RoutingKeyUnlocked       = "achievement.unlocked"
	RoutingKeyTelemetryError = "telemetry.error"
)

// EvaluationRequest asks the worker to run an achievement pass for one user.
// It carries no data; the worker loads a fresh snapshot.
type EvaluationRequest struct {
	UserID    string    `json:"user_id"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

func NewEvaluationRequest(userID, reason string) *EvaluationRequest {
	return &EvaluationRequest{
		UserID:    userID,
		Reason:    reason,
		Timestamp: time.Now(),
	}
}

// UnlockedEvent announces achievements recorded for a user.
type UnlockedEvent struct {
	UserID         string    `json:"user_id"`
	AchievementIDs []string  `json:"achievement_ids"`
	Timestamp      time.Time `json:"timestamp"`
}

// WriteErrorEvent is the telemetry form of a failed background write.
type WriteErrorEvent struct {
	Path      string    `json:"path"`
	Operation string    `json:"operation"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

func encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func decode[T any](data []byte) (*T, error) {
	var msg T
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func EvaluationRequestFromJSON(data []byte) (*EvaluationRequest, error) {
	return decode[EvaluationRequest](data)
}

func UnlockedEventFromJSON(data []byte) (*UnlockedEvent, error) {
	return decode[UnlockedEvent](data)
}
