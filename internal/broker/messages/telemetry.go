package messages

import "time"

// TelemetryReading — входящее сообщение от датчиков (topic telemetry.readings).
type TelemetryReading struct {
	ShipmentID uint64 `json:"shipment_id"`
	SensorID   uint64 `json:"sensor_id"`

	Temperature float64  `json:"temperature"`
	Humidity    *float64 `json:"humidity,omitempty"`

	Location   *string   `json:"location,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// TemperatureAlert — исходящее уведомление об экскурсии (topic temperature.alert).
// Доставка получателям (email/SMS/дашборд) — забота внешнего сервиса.
type TemperatureAlert struct {
	ShipmentID  uint64 `json:"shipment_id"`
	TrackNumber string `json:"track_number,omitempty"`

	Temperature float64  `json:"temperature"`
	BandMin     *float64 `json:"band_min,omitempty"`
	BandMax     *float64 `json:"band_max,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}
