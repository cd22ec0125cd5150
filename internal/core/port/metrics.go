package port

// AuthMetrics records outcomes of the authentication flows.
type AuthMetrics interface {
	ObserveLogin(result string)
	ObserveTwoFactor(flow, result string)
	ObserveRefresh(result string)
}

// NoopAuthMetrics discards all observations.
type NoopAuthMetrics struct{}

func (NoopAuthMetrics) ObserveLogin(string)             {}
func (NoopAuthMetrics) ObserveTwoFactor(string, string) {}
func (NoopAuthMetrics) ObserveRefresh(string)           {}
