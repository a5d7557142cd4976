package tracking

import "github.com/mileusna/useragent"

const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceOther   = "other"

	unknown = "Unknown"
)

// Device is the parsed view of a user agent.
type Device struct {
	Type    string `json:"type"`
	Browser string `json:"browser"`
	OS      string `json:"os"`
}

func ParseDevice(ua string) Device {
	parsed := useragent.Parse(ua)

	d := Device{
		Type:    deviceType(parsed),
		Browser: parsed.Name,
		OS:      parsed.OS,
	}
	if d.Browser == "" {
		d.Browser = unknown
	}
	if d.OS == "" {
		d.OS = unknown
	}
	return d
}

// deviceType prefers the parser's own classification and falls back to
// the OS family.
func deviceType(ua useragent.UserAgent) string {
	switch {
	case ua.Bot:
		return DeviceOther
	case ua.Tablet:
		return DeviceTablet
	case ua.Mobile:
		return DeviceMobile
	}

	switch ua.OS {
	case useragent.IOS, useragent.Android:
		return DeviceMobile
	case "iPadOS":
		return DeviceTablet
	}
	return DeviceDesktop
}
