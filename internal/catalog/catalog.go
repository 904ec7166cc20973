// Package catalog holds the immutable list of virtual devices and the
// stream configurations each one supports.
//
// The process-wide catalog is returned by Default and is built on first
// use; it never changes afterwards. Custom catalogs for tests or embedding
// hosts are built with New.
package catalog

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/smazurov/ffpipe/internal/media"
)

var (
	ErrDeviceNotFound  = errors.New("device not found")
	ErrNoCapabilities  = errors.New("no capabilities available")
	ErrCapabilityIndex = errors.New("capability index out of range")
)

// Capability is one stream configuration a device can produce.
type Capability struct {
	Width       int               `json:"width"`
	Height      int               `json:"height"`
	MaxFPS      int               `json:"max_fps"`
	Interlaced  bool              `json:"interlaced"`
	PixelFormat media.PixelFormat `json:"pixel_format"`
}

// VideoConfig returns the capability as a stream config.
func (c Capability) VideoConfig() media.VideoConfig {
	return media.VideoConfig{
		Width:       c.Width,
		Height:      c.Height,
		FPS:         c.MaxFPS,
		PixelFormat: c.PixelFormat,
		Interlaced:  c.Interlaced,
	}
}

func (c Capability) String() string {
	return fmt.Sprintf("%dx%d@%d %s", c.Width, c.Height, c.MaxFPS, c.PixelFormat)
}

// CapabilityFromConfig converts a stream config to a capability request.
func CapabilityFromConfig(cfg media.VideoConfig) Capability {
	return Capability{
		Width:       cfg.Width,
		Height:      cfg.Height,
		MaxFPS:      cfg.FPS,
		Interlaced:  cfg.Interlaced,
		PixelFormat: cfg.PixelFormat,
	}
}

// Device is a virtual video capture device.
type Device struct {
	Name         string       `json:"name"`
	ID           string       `json:"id"`
	ProductID    string       `json:"product_id"`
	Orientation  int          `json:"orientation"`
	Capabilities []Capability `json:"capabilities"`
}

// AudioDevice is a virtual audio endpoint with a fixed format.
type AudioDevice struct {
	Name      string            `json:"name"`
	GUID      string            `json:"guid"`
	Direction media.Direction   `json:"direction"`
	Config    media.AudioConfig `json:"config"`
}

// Catalog is an immutable device list. All methods are safe for
// concurrent use.
type Catalog struct {
	devices []Device
	audio   []AudioDevice
}

// New builds a catalog from copies of the given devices.
func New(devices []Device, audio []AudioDevice) *Catalog {
	c := &Catalog{
		devices: make([]Device, len(devices)),
		audio:   slices.Clone(audio),
	}
	for i, d := range devices {
		d.Capabilities = slices.Clone(d.Capabilities)
		c.devices[i] = d
	}
	return c
}

// Default device identity.
const (
	DefaultDeviceName      = "ffmpeg-0"
	DefaultDeviceID        = "F3E977DB27F1"
	DefaultProductID       = "A0A0860E9BDC"
	DefaultRecordingDevice = "ffmpeg-record"
	DefaultPlayoutDevice   = "ffmpeg-playout"
)

var defaultCatalog = sync.OnceValue(func() *Catalog {
	return New(
		[]Device{{
			Name:      DefaultDeviceName,
			ID:        DefaultDeviceID,
			ProductID: DefaultProductID,
			Capabilities: []Capability{
				{Width: 640, Height: 480, MaxFPS: 30, PixelFormat: media.PixelFormatI420},
				{Width: 640, Height: 480, MaxFPS: 30, PixelFormat: media.PixelFormatRGB24},
			},
		}},
		[]AudioDevice{
			{Name: DefaultRecordingDevice, GUID: DefaultRecordingDevice, Direction: media.Record, Config: media.DefaultAudioConfig},
			{Name: DefaultPlayoutDevice, GUID: DefaultPlayoutDevice, Direction: media.Playout, Config: media.DefaultAudioConfig},
		},
	)
})

// Default returns the process-wide catalog. It is built on the first call
// and shared by every caller afterwards.
func Default() *Catalog {
	return defaultCatalog()
}

// Devices returns copies of all video devices.
func (c *Catalog) Devices() []Device {
	out := make([]Device, len(c.devices))
	for i, d := range c.devices {
		d.Capabilities = slices.Clone(d.Capabilities)
		out[i] = d
	}
	return out
}

// NumberOfDevices returns the number of video devices.
func (c *Catalog) NumberOfDevices() int {
	return len(c.devices)
}

// Device returns the video device at index.
func (c *Catalog) Device(index int) (Device, error) {
	if index < 0 || index >= len(c.devices) {
		return Device{}, fmt.Errorf("%w: index %d", ErrDeviceNotFound, index)
	}
	d := c.devices[index]
	d.Capabilities = slices.Clone(d.Capabilities)
	return d, nil
}

// AudioDevices returns the audio endpoints for a direction.
func (c *Catalog) AudioDevices(dir media.Direction) []AudioDevice {
	var out []AudioDevice
	for _, d := range c.audio {
		if d.Direction == dir {
			out = append(out, d)
		}
	}
	return out
}

// AudioDevice returns the audio endpoint at index for a direction.
func (c *Catalog) AudioDevice(dir media.Direction, index int) (AudioDevice, error) {
	devices := c.AudioDevices(dir)
	if index < 0 || index >= len(devices) {
		return AudioDevice{}, fmt.Errorf("%w: %s index %d", ErrDeviceNotFound, dir, index)
	}
	return devices[index], nil
}

func (c *Catalog) lookup(id string) (*Device, error) {
	for i := range c.devices {
		if c.devices[i].ID == id {
			return &c.devices[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrDeviceNotFound, id)
}

// ListCapabilities returns the capabilities of a device.
func (c *Catalog) ListCapabilities(id string) ([]Capability, error) {
	d, err := c.lookup(id)
	if err != nil {
		return nil, err
	}
	return slices.Clone(d.Capabilities), nil
}

// NumberOfCapabilities returns how many capabilities a device has.
func (c *Catalog) NumberOfCapabilities(id string) (int, error) {
	d, err := c.lookup(id)
	if err != nil {
		return 0, err
	}
	return len(d.Capabilities), nil
}

// GetCapability returns one capability of a device by index.
func (c *Catalog) GetCapability(id string, index int) (Capability, error) {
	d, err := c.lookup(id)
	if err != nil {
		return Capability{}, err
	}
	if index < 0 || index >= len(d.Capabilities) {
		return Capability{}, fmt.Errorf("%w: %d of %d", ErrCapabilityIndex, index, len(d.Capabilities))
	}
	return d.Capabilities[index], nil
}

// Orientation returns the device rotation in degrees.
func (c *Catalog) Orientation(id string) (int, error) {
	d, err := c.lookup(id)
	if err != nil {
		return 0, err
	}
	return d.Orientation, nil
}
