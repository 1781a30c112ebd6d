package chrome

import (
	"context"
	"fmt"
	"sort"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/device"
)

const desktopUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/116.0.0.0 Safari/537.36"

// Devices are viewport presets. Capture and replay of one session have to run on
// the same preset: recorded coordinates are viewport-relative.
var Devices = map[string]device.Info{
	"iPhone 12 Pro": {
		Name:      "iPhone 12 Pro",
		UserAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 14_7_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.1.2 Mobile/15E148 Safari/604.1",
		Width:     390,
		Height:    844,
		Scale:     1.0,
		Mobile:    true,
		Touch:     true,
	},
	"iPad Pro": {
		Name:      "iPad Pro",
		UserAgent: "Mozilla/5.0 (iPad; CPU OS 13_3 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) CriOS/87.0.4280.77 Mobile/15E148 Safari/604.1",
		Width:     1024,
		Height:    1366,
		Scale:     1.0,
		Mobile:    true,
		Touch:     true,
	},
	"Desktop 1280x800": {
		Name:      "Desktop 1280x800",
		UserAgent: desktopUserAgent,
		Width:     1280,
		Height:    800,
		Scale:     1.0,
	},
	"Desktop 1920x1080": {
		Name:      "Desktop 1920x1080",
		UserAgent: desktopUserAgent,
		Width:     1920,
		Height:    1080,
		Scale:     1.0,
	},
}

// LookupDevice returns the preset for name. An empty name means no emulation.
func LookupDevice(name string) (device.Info, bool, error) {
	if name == "" {
		return device.Info{}, false, nil
	}
	dev, ok := Devices[name]
	if !ok {
		return device.Info{}, false, fmt.Errorf("unknown device %q (available: %v)", name, DeviceNames())
	}
	return dev, true, nil
}

func DeviceNames() []string {
	names := make([]string, 0, len(Devices))
	for name := range Devices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Emulate applies the named preset to the page bound to ctx.
func Emulate(ctx context.Context, name string) error {
	dev, ok, err := LookupDevice(name)
	if err != nil || !ok {
		return err
	}
	return chromedp.Run(ctx, chromedp.Emulate(dev))
}
