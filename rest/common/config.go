package common

import (
	"fmt"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// REST server configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds all configuration parameters of the jstore server.
type ServerConfig struct {
	// Storage
	HomeDir         string
	RecoveryWorkers int

	// HTTP api settings
	Endpoint      string
	TimeoutSecond int64
	// MaxBodyBytes caps the size of request bodies (documents, schemas, configs)
	MaxBodyBytes int64

	// Logging configuration
	LogLevel string
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// REST settings
	addSection("REST Server")
	addField("Endpoint", c.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Max Body Size", fmt.Sprintf("%d bytes", c.MaxBodyBytes))

	// Storage
	addSection("Storage")
	addField("Home Directory", c.HomeDir)
	addField("Recovery Workers", strconv.Itoa(c.RecoveryWorkers))

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}

// --------------------------------------------------------------------------
// REST client configuration struct
// --------------------------------------------------------------------------

// ClientConfig controls how the client talks to a jstore server.
type ClientConfig struct {
	// Endpoints are used round-robin, a request failing on the transport
	// level is retried on the next one
	Endpoints     []string
	TimeoutSecond int64
	RetryCount    int
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// General Client Settings
	addSection("Client Configuration")
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Retry Count", strconv.Itoa(c.RetryCount))

	// Endpoints
	addSection("Endpoints")
	for i, endpoint := range c.Endpoints {
		addField(strconv.Itoa(i), endpoint)
	}

	return sb.String()
}
