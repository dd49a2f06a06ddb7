package config

// AMQPConfig configures the order event consumer. An empty URL disables
// consuming; dispatch then runs on API triggers only.
type AMQPConfig struct {
	URL         string `json:"url"`
	ConsumerTag string `json:"consumer_tag"`
	Prefetch    int    `json:"prefetch"`
}

// SetDefaults fills zero fields with sane values.
func (c *AMQPConfig) SetDefaults() {
	if c.ConsumerTag == "" {
		c.ConsumerTag = "dispatch"
	}
	if c.Prefetch <= 0 {
		c.Prefetch = 1
	}
}
