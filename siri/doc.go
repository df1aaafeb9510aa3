// Package siri defines the SIRI (Service Interface for Real-time Information)
// StopMonitoring types consumed from upstream realtime feeds.
//
// Upstreams wrap MonitoredStopVisit lists in a few different envelopes;
// DecodeStopMonitoring accepts all of them and returns a flat visit list.
package siri
