package transport

import (
	newtransport "github.com/jdalberg/acs/transport"
)

// Capabilities is an alias for the transport Capabilities.
type Capabilities = newtransport.Capabilities

// GetCapabilities returns the capabilities for a transport by name.
func GetCapabilities(transportName string) Capabilities {
	return newtransport.GetCapabilities(transportName)
}
