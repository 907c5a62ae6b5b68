package ports

import "github.com/testangel/testangel-sdk/domain/entities"

// ConfigParser parses raw bytes into a HostConfig.
type ConfigParser interface {
	// Parse unmarshals the bytes into a HostConfig struct.
	Parse(data []byte) (*entities.HostConfig, error)
}
