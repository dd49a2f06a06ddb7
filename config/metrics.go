package config

// MetricsConfig selects the metrics sinks. Prometheus and Influx can be
// enabled independently; both active records fan out to each.
type MetricsConfig struct {
	PrometheusEnabled bool   `json:"prometheus_enabled"`
	PrometheusAddr    string `json:"prometheus_addr"`

	InfluxURL    string `json:"influx_url"`
	InfluxToken  string `json:"influx_token"`
	InfluxOrg    string `json:"influx_org"`
	InfluxBucket string `json:"influx_bucket"`
}

// SetDefaults fills zero fields with sane values.
func (c *MetricsConfig) SetDefaults() {
	if c.PrometheusAddr == "" {
		c.PrometheusAddr = ":9464"
	}
}

// InfluxEnabled reports whether an Influx endpoint is configured.
func (c MetricsConfig) InfluxEnabled() bool { return c.InfluxURL != "" }
