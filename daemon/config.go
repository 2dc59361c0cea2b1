//
// Copyright 2015 Gregory Trubetskoy. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package daemon

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/mconn/mconn/fetch"
)

type Config struct { // Needs to be exported for TOML to work
	PidPath             string             `toml:"pid-file"`
	LogPath             string             `toml:"log-file"`
	LogCycle            duration           `toml:"log-cycle-interval"`
	HttpListenSpec      string             `toml:"http-listen-spec"`
	RuntimeStatInterval duration           `toml:"runtime-stat-interval"`
	Backend             string             `toml:"backend"`
	DbConnectString     string             `toml:"db-connect-string"`
	DbTablePrefix       string             `toml:"db-table-prefix"`
	MaxFetchRate        float64            `toml:"max-fetch-rate"`
	DefaultRegion       string             `toml:"default-region"`
	Regions             []ConfigRegionSpec `toml:"region"`
}

// Needs to be exported for TOML
type ConfigRegionSpec struct {
	Name string `toml:"name"`
	Url  string `toml:"url"`
}

type duration struct{ time.Duration }

func (d *duration) UnmarshalText(text []byte) (err error) {
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

var Cfg *Config

var readConfig = func(cfgPath string) (*Config, error) {
	cfg := &Config{}
	_, err := toml.DecodeFile(cfgPath, cfg)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func ReadConfig(cfgPath string) error {
	var err error
	if Cfg, err = readConfig(cfgPath); err != nil {
		log.Printf("Error reading config file %s: %v", cfgPath, err)
	}
	return err
}

func (c *Config) processConfigPidFile(wd string) error {
	if c.PidPath == "" {
		return fmt.Errorf("pid-file setting empty")
	}
	if !filepath.IsAbs(c.PidPath) {
		if wd == "" {
			return fmt.Errorf("pid-file must be absolute path if working directory cannot be determined")
		}
		c.PidPath = filepath.Join(wd, c.PidPath)
	}
	pidDir, _ := filepath.Split(c.PidPath)
	if err := os.MkdirAll(pidDir, 0755); err != nil {
		return fmt.Errorf("Unable to create directory: '%s' (%v).", pidDir, err)
	}
	return nil
}

func (c *Config) processConfigLogFile(wd string) error {
	if os.Getenv("MCONN_LOG") != "" {
		c.LogPath = os.Getenv("MCONN_LOG")
	}
	if c.LogPath == "" {
		return fmt.Errorf("log-file setting empty")
	}
	if !filepath.IsAbs(c.LogPath) {
		if wd == "" {
			return fmt.Errorf("log-file must be absolute path if working directory cannot be determined")
		}
		c.LogPath = filepath.Join(wd, c.LogPath)
	}
	logDir, _ := filepath.Split(c.LogPath)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("Unable to create directory: '%s' (%v).", logDir, err)
	}

	log.Printf("Logs will be written to '%s'.", c.LogPath)
	return nil
}

func (c *Config) processConfigLogCycleInterval() error {
	if c.LogCycle.Duration == 0 {
		return fmt.Errorf("log-cycle-interval setting empty")
	}
	log.Printf("Will cycle logs every %v (log-cycle-interval).", c.LogCycle.Duration)

	logDir, _ := filepath.Split(c.LogPath)
	log.Printf("All further status messages will be written to log file(s) in '%s'.", logDir)
	logFileCycler(c.LogPath, c.LogCycle.Duration)
	log.Print("Server starting.")

	return nil
}

func (c *Config) processRuntimeStatInterval() error {
	if c.RuntimeStatInterval.Duration == 0 {
		c.RuntimeStatInterval.Duration = 5 * time.Minute
		log.Printf("runtime-stat-interval unspecified, defaulting to %v", c.RuntimeStatInterval.Duration)
	}
	return nil
}

func (c *Config) processBackend() error {
	switch c.Backend {
	case "":
		log.Printf("backend unspecified, defaulting to 'memory'")
		c.Backend = "memory"
	case "memory", "http":
		// nothing to check yet
	case "postgres":
		if os.Getenv("MCONN_DB_CONNECT") != "" {
			c.DbConnectString = os.Getenv("MCONN_DB_CONNECT")
		}
		if c.DbConnectString == "" {
			return fmt.Errorf("db-connect-string empty")
		}
	default:
		return fmt.Errorf("invalid backend: %q (valid backends: memory, http, postgres)", c.Backend)
	}
	log.Printf("Metric backend is %q.", c.Backend)
	return nil
}

func (c *Config) processMaxFetchRate() error {
	if c.MaxFetchRate == 0 {
		c.MaxFetchRate = 50
		log.Printf("max-fetch-rate unspecified, defaulting to %v/s", c.MaxFetchRate)
	} else if c.MaxFetchRate < 0 {
		return fmt.Errorf("max-fetch-rate must be positive, got %v", c.MaxFetchRate)
	}
	return nil
}

func (c *Config) processRegions() error {
	if len(c.Regions) == 0 {
		if c.Backend == "http" {
			return fmt.Errorf("backend 'http' requires at least one [[region]] block")
		}
		c.Regions = []ConfigRegionSpec{{Name: "local"}}
		log.Printf("No [[region]] blocks, single region 'local'.")
	}
	seen := make(map[string]bool)
	for _, r := range c.Regions {
		if r.Name == "" {
			return fmt.Errorf("region name empty")
		}
		if seen[r.Name] {
			return fmt.Errorf("duplicate region: %q", r.Name)
		}
		seen[r.Name] = true
		if c.Backend == "http" && r.Url == "" {
			return fmt.Errorf("region %q: url required for backend 'http'", r.Name)
		}
	}
	if c.DefaultRegion == "" {
		c.DefaultRegion = c.Regions[0].Name
		log.Printf("default-region unspecified, using %q.", c.DefaultRegion)
	} else if !seen[c.DefaultRegion] {
		return fmt.Errorf("default-region %q has no [[region]] block", c.DefaultRegion)
	}
	return nil
}

type configer interface {
	processConfigPidFile(string) error
	processConfigLogFile(string) error
	processConfigLogCycleInterval() error
	processRuntimeStatInterval() error
	processBackend() error
	processMaxFetchRate() error
	processRegions() error
}

var processConfig = func(c configer, wd string) error {

	if err := c.processConfigPidFile(wd); err != nil {
		return err
	}
	if err := c.processConfigLogFile(wd); err != nil {
		return err
	}
	if err := c.processConfigLogCycleInterval(); err != nil {
		return err
	}
	if err := c.processRuntimeStatInterval(); err != nil {
		return err
	}
	if err := c.processBackend(); err != nil {
		return err
	}
	if err := c.processMaxFetchRate(); err != nil {
		return err
	}
	if err := c.processRegions(); err != nil {
		return err
	}
	return nil
}

// regionMap builds one Fetcher per configured region. The postgres
// and memory backends are a single store shared by every region;
// http gets one client per region URL.
func (c *Config) regionMap() (fetch.RegionMap, error) {
	rm := make(fetch.RegionMap, len(c.Regions))

	switch c.Backend {
	case "postgres":
		db, err := fetch.InitDb(c.DbConnectString, c.DbTablePrefix)
		if err != nil {
			return nil, err
		}
		log.Printf("Initialized DB connection.")
		for _, r := range c.Regions {
			rm[r.Name] = db
		}
	case "http":
		for _, r := range c.Regions {
			rm[r.Name] = fetch.NewHTTPFetcher(r.Url, c.MaxFetchRate)
		}
	default:
		mem := fetch.NewMemFetcher()
		for _, r := range c.Regions {
			rm[r.Name] = mem
		}
	}
	return rm, nil
}
