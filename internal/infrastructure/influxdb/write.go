package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteParameterReading writes a single parameter reading to InfluxDB.
//
// This is the primary method for recording instrument telemetry.
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - instrument: Full dotted instrument path (e.g., "psu.ch2")
//   - parameter: The parameter name (e.g., "voltage")
//   - unit: Physical unit tag (e.g., "V"); empty is allowed
//   - value: The numeric value to record
//
// Example:
//
//	client.WriteParameterReading("psu.ch2", "voltage", "V", 3.3)
//	client.WriteParameterReading("dmm", "resistance", "Ohm", 997.2)
func (c *Client) WriteParameterReading(instrument, parameter, unit string, value float64) {
	if !c.IsConnected() {
		return
	}

	tags := map[string]string{
		"instrument": instrument,
		"parameter":  parameter,
	}
	if unit != "" {
		tags["unit"] = unit
	}

	point := write.NewPoint(
		"parameter_readings",
		tags,
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteSweepPoint writes one step of a parameter sweep with its step index.
//
// Tagging the sweep run ID keeps all points of one sweep queryable as a
// unit without a join.
//
// Parameters:
//   - sweepID: Identifier shared by all points of one sweep run
//   - instrument: Full dotted instrument path
//   - parameter: The swept parameter name
//   - step: Zero-based step index within the sweep
//   - value: The setpoint applied at this step
func (c *Client) WriteSweepPoint(sweepID, instrument, parameter string, step int, value float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"sweeps",
		map[string]string{
			"sweep_id":   sweepID,
			"instrument": instrument,
			"parameter":  parameter,
		},
		map[string]interface{}{
			"step":  step,
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
//
// Example:
//
//	client.WritePoint("system_stats",
//	    map[string]string{"host": "lab-01"},
//	    map[string]interface{}{"cpu_percent": 45.2, "memory_mb": 512})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., a cached reading).
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Key-value pairs for indexing
//   - fields: Key-value pairs for the data
//   - timestamp: The exact time for this data point
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
