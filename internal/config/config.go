package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LayerID selects one of the configured tile layers.
type LayerID string

const (
	LayerStandard  LayerID = "standard"
	LayerTopo      LayerID = "topo"
	LayerSatellite LayerID = "satellite"
)

// Layer describes an XYZ tile provider. URL is a template containing {z},
// {x} and {y} placeholders in whatever order the provider expects, so both
// {z}/{x}/{y} and {z}/{y}/{x} providers are expressed the same way.
type Layer struct {
	ID    LayerID `yaml:"id"`
	Label string  `yaml:"label"`
	URL   string  `yaml:"url"`
}

// Config carries everything the client core needs at startup.
type Config struct {
	HTTPAddr string
	LogLevel string

	BackendBaseURL string
	ElevationURL   string

	PrefsPath string

	ElevationTimeout time.Duration
	DebounceDelay    time.Duration
	MoveThresholdDeg float64
	PreviewZoomCap   int
	NoticeTTL        time.Duration
	DefaultCenterLat float64
	DefaultCenterLng float64
	DefaultZoom      int
	PerfBusCapacity  int

	Layers []Layer
}

// DefaultLayers are the three stock providers the map ships with.
func DefaultLayers() []Layer {
	return []Layer{
		{ID: LayerStandard, Label: "Standard", URL: "https://tile.openstreetmap.org/{z}/{x}/{y}.png"},
		{ID: LayerTopo, Label: "Topographic", URL: "https://tile.opentopomap.org/{z}/{x}/{y}.png"},
		{ID: LayerSatellite, Label: "Satellite", URL: "https://server.arcgisonline.com/ArcGIS/rest/services/World_Imagery/MapServer/tile/{z}/{y}/{x}"},
	}
}

// Load reads configuration from the environment, with an optional .env file
// and an optional YAML layers file referenced by PARAHUB_LAYERS_FILE.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		HTTPAddr:         envOr("HTTP_ADDR", ":8090"),
		LogLevel:         envOr("LOG_LEVEL", "info"),
		BackendBaseURL:   envOr("PARAHUB_API_URL", "http://localhost:8080/api"),
		ElevationURL:     envOr("PARAHUB_ELEVATION_URL", "https://api.open-elevation.com/api/v1/lookup"),
		PrefsPath:        envOr("PARAHUB_PREFS_PATH", "parahub-client.db"),
		ElevationTimeout: envDurationOr("PARAHUB_ELEVATION_TIMEOUT", 10*time.Second),
		DebounceDelay:    envDurationOr("PARAHUB_DEBOUNCE_DELAY", 100*time.Millisecond),
		MoveThresholdDeg: envFloatOr("PARAHUB_MOVE_THRESHOLD_DEG", 1e-4),
		PreviewZoomCap:   envIntOr("PARAHUB_PREVIEW_ZOOM_CAP", 10),
		NoticeTTL:        envDurationOr("PARAHUB_NOTICE_TTL", 3*time.Second),
		DefaultCenterLat: envFloatOr("PARAHUB_CENTER_LAT", 55.75),
		DefaultCenterLng: envFloatOr("PARAHUB_CENTER_LNG", 37.61),
		DefaultZoom:      envIntOr("PARAHUB_ZOOM", 5),
		PerfBusCapacity:  envIntOr("PARAHUB_PERF_CAPACITY", 100),
		Layers:           DefaultLayers(),
	}

	if path := os.Getenv("PARAHUB_LAYERS_FILE"); path != "" {
		layers, err := loadLayersFile(path)
		if err != nil {
			return nil, fmt.Errorf("load layers file: %w", err)
		}
		cfg.Layers = layers
	}

	return cfg, nil
}

func loadLayersFile(path string) ([]Layer, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Layers []Layer `yaml:"layers"`
	}
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	if len(doc.Layers) == 0 {
		return nil, fmt.Errorf("no layers defined in %s", path)
	}
	for _, l := range doc.Layers {
		if l.ID == "" || l.URL == "" {
			return nil, fmt.Errorf("layer missing id or url in %s", path)
		}
	}
	return doc.Layers, nil
}

func envOr(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloatOr(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
