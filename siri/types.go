package siri

// Response is the top-level SIRI document.
type Response struct {
	Siri *ServiceDeliveryWrapper `json:"Siri,omitempty"`
}

// ServiceDeliveryWrapper wraps the ServiceDelivery element.
type ServiceDeliveryWrapper struct {
	ServiceDelivery ServiceDelivery `json:"ServiceDelivery"`
}

// ServiceDelivery carries the StopMonitoring deliveries.
type ServiceDelivery struct {
	ResponseTimestamp      string                   `json:"ResponseTimestamp,omitempty"`
	ProducerRef            string                   `json:"ProducerRef,omitempty"`
	StopMonitoringDelivery []StopMonitoringDelivery `json:"StopMonitoringDelivery"`
}

// StopMonitoringDelivery is one delivery for a monitoring point.
type StopMonitoringDelivery struct {
	ResponseTimestamp  string               `json:"ResponseTimestamp,omitempty"`
	MonitoredStopVisit []MonitoredStopVisit `json:"MonitoredStopVisit"`
}

// MonitoredStopVisit is a single vehicle's visit to the monitored stop.
type MonitoredStopVisit struct {
	RecordedAtTime          string                  `json:"RecordedAtTime,omitempty"`
	ItemIdentifier          string                  `json:"ItemIdentifier,omitempty"`
	MonitoringRef           string                  `json:"MonitoringRef,omitempty"`
	MonitoredVehicleJourney MonitoredVehicleJourney `json:"MonitoredVehicleJourney"`
}

// MonitoredVehicleJourney describes the journey serving the visit.
type MonitoredVehicleJourney struct {
	LineRef                 string                   `json:"LineRef,omitempty"`
	PublishedLineName       string                   `json:"PublishedLineName,omitempty"`
	OperatorRef             string                   `json:"OperatorRef,omitempty"`
	DestinationName         string                   `json:"DestinationName,omitempty"`
	FramedVehicleJourneyRef *FramedVehicleJourneyRef `json:"FramedVehicleJourneyRef,omitempty"`
	VehicleRef              string                   `json:"VehicleRef,omitempty"`
	RecordedAtTime          string                   `json:"RecordedAtTime,omitempty"`
	MonitoredCall           MonitoredCall            `json:"MonitoredCall"`
}

// FramedVehicleJourneyRef uniquely identifies a vehicle journey.
type FramedVehicleJourneyRef struct {
	DataFrameRef           string `json:"DataFrameRef"`
	DatedVehicleJourneyRef string `json:"DatedVehicleJourneyRef"`
}

// MonitoredCall holds the call times at the monitored stop.
type MonitoredCall struct {
	StopPointRef          string `json:"StopPointRef,omitempty"`
	Order                 int    `json:"Order,omitempty"`
	AimedArrivalTime      string `json:"AimedArrivalTime,omitempty"`
	ExpectedArrivalTime   string `json:"ExpectedArrivalTime,omitempty"`
	ActualArrivalTime     string `json:"ActualArrivalTime,omitempty"`
	AimedDepartureTime    string `json:"AimedDepartureTime,omitempty"`
	ExpectedDepartureTime string `json:"ExpectedDepartureTime,omitempty"`
	ActualDepartureTime   string `json:"ActualDepartureTime,omitempty"`
}
