package player

import (
	"errors"
	"fmt"
)

// ErrUnknownDriver is returned by Open for an unrecognised driver name.
var ErrUnknownDriver = errors.New("unknown backend driver")

// Drivers names the accepted values for the backend.driver setting.
var Drivers = []string{"dbus", "playerctl", "mpd"}

// DriverOptions carries driver-specific settings.
type DriverOptions struct {
	MPDAddress  string
	MPDPassword string
}

// Open returns the Bus for the named driver.
func Open(driver string, opts DriverOptions) (Bus, error) {
	switch driver {
	case "dbus", "":
		return NewDBusBus()
	case "playerctl":
		return NewPlayerctlBus(), nil
	case "mpd":
		return NewMPDBus(opts.MPDAddress, opts.MPDPassword), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}
