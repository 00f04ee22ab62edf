package pipeline

import "strings"

// vehicleKeywords decide whether a question is about vehicle data at all.
var vehicleKeywords = []string{
	"speed", "mobile_speed", "average", "max", "min", "mean", "median",
	"vehicle", "data", "telemetry", "trip", "signal", "sensor",
	"acceleration", "brake", "throttle", "rpm", "fuel", "temperature",
}

// IsVehicleQuery is a case-insensitive substring test against the keyword list.
func IsVehicleQuery(message string) bool {
	lower := strings.ToLower(message)
	for _, kw := range vehicleKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
