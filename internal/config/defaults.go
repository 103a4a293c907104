// Package config provides configuration loading and defaults for habitboard.
package config

import "time"

// DefaultHubURL is the default Home Assistant base URL.
const DefaultHubURL = "http://homeassistant.local:8123"

// DefaultHubTimeout is the default per-request timeout for hub commands.
const DefaultHubTimeout = 15 * time.Second

// DefaultConfigDir is the default location for habitboard configuration.
const DefaultConfigDir = "~/.config/habitboard"

// DefaultDBName is the filename for the SQLite device database.
const DefaultDBName = "habitboard.db"

// DefaultImagesDir is the default directory for rendered dashboard images.
const DefaultImagesDir = "~/.config/habitboard/images"

// DefaultWeekStart is the default first day of the tracking week.
const DefaultWeekStart = "sunday"

// DefaultCacheDuration is how long a computed snapshot is served before the
// next read triggers a refresh.
const DefaultCacheDuration = 5 * time.Minute

// DefaultRefreshInterval is how often TRMNL devices are told to poll,
// in seconds.
const DefaultRefreshInterval = 900

// DefaultServerHost is the default HTTP listen host.
const DefaultServerHost = "0.0.0.0"

// DefaultServerPort is the default HTTP listen port.
const DefaultServerPort = 8000

// DefaultLogLevel is the default log level name.
const DefaultLogLevel = "info"

// DefaultConfigFile is the filename for the YAML config.
const DefaultConfigFile = "config.yaml"
