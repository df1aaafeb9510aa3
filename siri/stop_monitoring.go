package siri

import (
	"encoding/json"
	"fmt"

	"github.com/theoremus-urban-solutions/stop-arrivals/arrivals"
	"github.com/theoremus-urban-solutions/stop-arrivals/utils"
)

// envelope matches the three accepted layouts: the full Siri document, a bare
// StopMonitoringDelivery (list or object) and a bare MonitoredStopVisit list.
type envelope struct {
	Siri                   *ServiceDeliveryWrapper `json:"Siri"`
	StopMonitoringDelivery json.RawMessage         `json:"StopMonitoringDelivery"`
	MonitoredStopVisit     []MonitoredStopVisit    `json:"MonitoredStopVisit"`
}

// DecodeStopMonitoring extracts every MonitoredStopVisit from a StopMonitoring payload.
func DecodeStopMonitoring(data []byte) ([]MonitoredStopVisit, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode stop monitoring: %w", err)
	}

	var deliveries []StopMonitoringDelivery
	switch {
	case env.Siri != nil:
		deliveries = env.Siri.ServiceDelivery.StopMonitoringDelivery
	case len(env.StopMonitoringDelivery) > 0 && env.StopMonitoringDelivery[0] == '[':
		if err := json.Unmarshal(env.StopMonitoringDelivery, &deliveries); err != nil {
			return nil, fmt.Errorf("decode stop monitoring deliveries: %w", err)
		}
	case len(env.StopMonitoringDelivery) > 0 && env.StopMonitoringDelivery[0] == '{':
		var single StopMonitoringDelivery
		if err := json.Unmarshal(env.StopMonitoringDelivery, &single); err != nil {
			return nil, fmt.Errorf("decode stop monitoring delivery: %w", err)
		}
		deliveries = []StopMonitoringDelivery{single}
	}

	var visits []MonitoredStopVisit
	for _, d := range deliveries {
		visits = append(visits, d.MonitoredStopVisit...)
	}
	if len(visits) == 0 {
		visits = env.MonitoredStopVisit
	}
	return visits, nil
}

// Arrival converts a visit into a realtime arrival row.
func (v MonitoredStopVisit) Arrival() arrivals.RealtimeArrival {
	j := v.MonitoredVehicleJourney
	c := j.MonitoredCall
	r := arrivals.RealtimeArrival{
		ID:                  v.ItemIdentifier,
		LineLabel:           j.PublishedLineName,
		AimedArrivalAt:      utils.ParseInstantPtr(c.AimedArrivalTime),
		ExpectedArrivalAt:   utils.ParseInstantPtr(c.ExpectedArrivalTime),
		ActualArrivalAt:     utils.ParseInstantPtr(c.ActualArrivalTime),
		AimedDepartureAt:    utils.ParseInstantPtr(c.AimedDepartureTime),
		ExpectedDepartureAt: utils.ParseInstantPtr(c.ExpectedDepartureTime),
		ActualDepartureAt:   utils.ParseInstantPtr(c.ActualDepartureTime),
		RecordedAt:          utils.ParseInstantPtr(v.RecordedAtTime),
	}
	if r.LineLabel == "" {
		r.LineLabel = j.LineRef
	}
	if j.FramedVehicleJourneyRef != nil {
		r.JourneyRef = j.FramedVehicleJourneyRef.DatedVehicleJourneyRef
	}
	if r.RecordedAt == nil {
		r.RecordedAt = utils.ParseInstantPtr(j.RecordedAtTime)
	}
	return r
}
