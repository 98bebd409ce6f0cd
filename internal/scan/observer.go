package scan

import "time"

// Observer receives scan telemetry. *observability.Metrics satisfies it.
type Observer interface {
	ObserveEvaluation(modelID string, passed, invalidated bool)
	ObserveRisk(score int, level string)
	ObserveMoon(score int, label string)
	ObserveScan(d time.Duration)
	AlertEmitted()
}

type nopObserver struct{}

func (nopObserver) ObserveEvaluation(string, bool, bool) {}
func (nopObserver) ObserveRisk(int, string)              {}
func (nopObserver) ObserveMoon(int, string)              {}
func (nopObserver) ObserveScan(time.Duration)            {}
func (nopObserver) AlertEmitted()                        {}

func observerOrNop(o Observer) Observer {
	if o == nil {
		return nopObserver{}
	}
	return o
}
