// Package config loads pdfgrid settings from TOML files.
package config

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"

	"github.com/pboffice01/PDFGeneral/builder"
	"github.com/pboffice01/PDFGeneral/pdferr"
)

// Config is the full settings file.
type Config struct {
	Render Render `toml:"render"`
	Stamp  Stamp  `toml:"stamp"`
	Log    Log    `toml:"log"`
}

// Render configures grid rendering.
type Render struct {
	PageSize    string  `toml:"page_size"`
	Landscape   bool    `toml:"landscape"`
	Margin      float64 `toml:"margin"`
	FontPath    string  `toml:"font_path"`
	FontSize    float64 `toml:"font_size"`
	BorderWidth float64 `toml:"border_width"`
	Compression int     `toml:"compression"`
	XRefStreams bool    `toml:"xref_streams"`
	Title       string  `toml:"title"`
	Author      string  `toml:"author"`
}

// Stamp configures page overlays.
type Stamp struct {
	FillOpacity   float64 `toml:"fill_opacity"`
	StrokeOpacity float64 `toml:"stroke_opacity"`
	Rotation      int     `toml:"rotation"`
	Scale         float64 `toml:"scale"`
	Image         string  `toml:"image"`
	CaptionFont   string  `toml:"caption_font"`
	CaptionSize   float64 `toml:"caption_size"`
	// Reconstruct rebuilds sources whose cross-reference data is damaged.
	Reconstruct bool `toml:"reconstruct"`
}

// Log configures the CLI logger.
type Log struct {
	Level string `toml:"level"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Render: Render{
			PageSize:    "A4",
			Margin:      36,
			FontSize:    10,
			BorderWidth: 0.5,
			Compression: 6,
		},
		Stamp: Stamp{
			FillOpacity:   0.5,
			StrokeOpacity: 0.5,
			Scale:         100,
			CaptionSize:   12,
			Reconstruct:   true,
		},
		Log: Log{Level: "info"},
	}
}

// Load reads path over the defaults. An empty path, or a missing file when
// optional is set, yields the defaults.
func Load(path string, optional bool) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return Config{}, pdferr.Wrap(pdferr.InvalidInput, err, "load config %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, pdferr.New(pdferr.InvalidInput, "unknown config keys: %s", strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks ranges and names.
func (c Config) Validate() error {
	if _, ok := builder.PaperSizeByName(c.Render.PageSize); !ok {
		return pdferr.New(pdferr.InvalidInput, "unknown page size %q", c.Render.PageSize)
	}
	if c.Render.Margin < 0 {
		return pdferr.New(pdferr.InvalidInput, "negative margin %v", c.Render.Margin)
	}
	if c.Render.FontSize <= 0 {
		return pdferr.New(pdferr.InvalidInput, "font size must be positive, got %v", c.Render.FontSize)
	}
	if c.Render.BorderWidth < 0 {
		return pdferr.New(pdferr.InvalidInput, "negative border width %v", c.Render.BorderWidth)
	}
	if c.Render.Compression < 0 || c.Render.Compression > 9 {
		return pdferr.New(pdferr.InvalidInput, "compression level %d outside 0..9", c.Render.Compression)
	}
	if c.Stamp.FillOpacity < 0 || c.Stamp.FillOpacity > 1 {
		return pdferr.New(pdferr.InvalidInput, "fill opacity %v outside [0,1]", c.Stamp.FillOpacity)
	}
	if c.Stamp.StrokeOpacity < 0 || c.Stamp.StrokeOpacity > 1 {
		return pdferr.New(pdferr.InvalidInput, "stroke opacity %v outside [0,1]", c.Stamp.StrokeOpacity)
	}
	if c.Stamp.Scale <= 0 {
		return pdferr.New(pdferr.InvalidInput, "scale must be positive, got %v", c.Stamp.Scale)
	}
	if c.Stamp.CaptionSize <= 0 {
		return pdferr.New(pdferr.InvalidInput, "caption size must be positive, got %v", c.Stamp.CaptionSize)
	}
	if _, err := c.Log.level(); err != nil {
		return err
	}
	return nil
}

// PaperSize resolves the configured page size and orientation.
func (r Render) PaperSize() builder.PaperSize {
	size, ok := builder.PaperSizeByName(r.PageSize)
	if !ok {
		size = builder.A4
	}
	if r.Landscape {
		size = size.Landscape()
	}
	return size
}

// LogLevel returns the configured level, or info when it does not parse.
func (c Config) LogLevel() log.Level {
	level, err := c.Log.level()
	if err != nil {
		return log.InfoLevel
	}
	return level
}

func (l Log) level() (log.Level, error) {
	if l.Level == "" {
		return log.InfoLevel, nil
	}
	level, err := log.ParseLevel(l.Level)
	if err != nil {
		return log.InfoLevel, pdferr.Wrap(pdferr.InvalidInput, err, "log level")
	}
	return level, nil
}
