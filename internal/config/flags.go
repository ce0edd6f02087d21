package config

import (
	"github.com/spf13/pflag"
)

// Flag names shared by the commands that build a profiler.
const (
	FlagMode          = "mode"
	FlagConnectionURL = "connection-url"
	FlagPath          = "path"
	FlagAPIURL        = "api-url"
	FlagAPIKey        = "api-key"
	FlagCodec         = "codec"
	FlagApp           = "app"
	FlagLabel         = "label"
	FlagDivider       = "divider"
	FlagTotalDivider  = "total-divider"
	FlagBackend       = "backend"
	FlagInterval      = "sampling-interval"
	FlagDepth         = "sampling-depth"
	FlagLogLevel      = "log-level"
	FlagLogFile       = "log-file"
)

// RegisterFlags adds the configuration flags to fs. Their defaults only
// document the built-in values; ApplyFlags copies the flags the user set.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()

	fs.String(FlagMode, d.Storage.Mode, "Storage mode (db, files, api)")
	fs.String(FlagConnectionURL, d.Storage.ConnectionURL, "DuckDB connection URL (duckdb://path, empty for in-memory)")
	fs.String(FlagPath, d.Storage.Path, "Root directory of profile files in files mode")
	fs.String(FlagAPIURL, d.Storage.APIURL, "Collection API URL in api mode")
	fs.String(FlagAPIKey, d.Storage.APIKey, "Collection API key in api mode")
	fs.String(FlagCodec, d.Storage.Codec, "Payload codec (json, zstd)")
	fs.String(FlagApp, d.Profiler.App, "Application name stored with profiles")
	fs.String(FlagLabel, d.Profiler.Label, "Label stored with profiles")
	fs.Int(FlagDivider, d.Profiler.Divider, "Profile one of N executions under the label")
	fs.Int(FlagTotalDivider, d.Profiler.TotalDivider, "Profile one of N remaining executions under the All label")
	fs.String(FlagBackend, d.Profiler.Backend, "Profiling backend (auto, cpu, tracer, block, sampler)")
	fs.Duration(FlagInterval, d.Sampling.Interval, "Sampler period")
	fs.Int(FlagDepth, d.Sampling.Depth, "Maximum frames kept per sample")
	fs.String(FlagLogLevel, d.Log.Level, "Log level (trace, debug, info, warn, error)")
	fs.String(FlagLogFile, d.Log.File, "Also append JSON logs to this file")
}

// ApplyFlags overrides cfg with the flags explicitly set on fs. Flags that
// were not registered are ignored.
func (c *Config) ApplyFlags(fs *pflag.FlagSet) error {
	stringFlags := map[string]*string{
		FlagMode:          &c.Storage.Mode,
		FlagConnectionURL: &c.Storage.ConnectionURL,
		FlagPath:          &c.Storage.Path,
		FlagAPIURL:        &c.Storage.APIURL,
		FlagAPIKey:        &c.Storage.APIKey,
		FlagCodec:         &c.Storage.Codec,
		FlagApp:           &c.Profiler.App,
		FlagLabel:         &c.Profiler.Label,
		FlagBackend:       &c.Profiler.Backend,
		FlagLogLevel:      &c.Log.Level,
		FlagLogFile:       &c.Log.File,
	}
	for name, dst := range stringFlags {
		if !changed(fs, name) {
			continue
		}
		v, err := fs.GetString(name)
		if err != nil {
			return err
		}
		*dst = v
	}

	intFlags := map[string]*int{
		FlagDivider:      &c.Profiler.Divider,
		FlagTotalDivider: &c.Profiler.TotalDivider,
		FlagDepth:        &c.Sampling.Depth,
	}
	for name, dst := range intFlags {
		if !changed(fs, name) {
			continue
		}
		v, err := fs.GetInt(name)
		if err != nil {
			return err
		}
		*dst = v
	}

	if changed(fs, FlagInterval) {
		v, err := fs.GetDuration(FlagInterval)
		if err != nil {
			return err
		}
		c.Sampling.Interval = v
	}

	return nil
}

func changed(fs *pflag.FlagSet, name string) bool {
	f := fs.Lookup(name)
	return f != nil && f.Changed
}
