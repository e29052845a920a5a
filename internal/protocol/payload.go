package protocol

import (
	"encoding/json"
	"fmt"
)

// InitialInfo is the data payload of an initial_info frame, sent by an
// agent right after authentication.
type InitialInfo struct {
	ActualHost string `json:"actualHost"`
}

// SystemInfo is the data payload of a system_info_response frame.
type SystemInfo struct {
	Hostname           string  `json:"hostname"`
	OS                 string  `json:"osType"`
	Platform           string  `json:"platform"`
	CPUModel           string  `json:"cpuModel"`
	CPUCores           int     `json:"cpuCores"`
	CPUUsagePercent    float64 `json:"cpuUsagePercent"`
	TotalMemoryBytes   uint64  `json:"totalMemoryBytes"`
	UsedMemoryBytes    uint64  `json:"usedMemoryBytes"`
	MemoryUsagePercent float64 `json:"memoryUsagePercent"`
	UptimeSeconds      uint64  `json:"uptimeSeconds"`
}

// HistoryReport is the data payload of cpu_history_response and
// memory_history_response frames. Samples are ordered oldest first.
type HistoryReport struct {
	Samples         []float64 `json:"samples"`
	IntervalMs      int64     `json:"intervalMs"`
	DurationSeconds int64     `json:"durationSeconds"`
}

// NewResponse builds a response frame for the given report kind carrying
// the marshaled payload.
func NewResponse(kind, requestID string, payload any) (Frame, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	return Frame{Type: ResponseType(kind), RequestID: requestID, Data: data}, nil
}
