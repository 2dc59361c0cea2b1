//
// Copyright 2016 Gregory Trubetskoy. All Rights Reserved.
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

// Mconn is a daemon hosting stateless metric connectors: HTTP
// endpoints that fetch raw time series from a metric backend and
// return derived series (moving averages, time shifts, histograms
// and more) for a monitoring console.
package main

import (
	"flag"
	"fmt"

	"github.com/mconn/mconn/daemon"
)

const Version = "0.1.0"

var (
	buildTime, gitRevision string
)

func parseFlags() (textCfgPath string, version bool) {

	// Parse the flags, if any
	flag.StringVar(&textCfgPath, "c", "./etc/mconn.conf", "path to config file")
	flag.BoolVar(&version, "version", false, "Print version and exit")
	flag.Parse()

	return
}

func printVersion() {
	fmt.Printf("Mconn version: %v\n", Version)
	if buildTime != "" {
		fmt.Printf("Build time: %v\n", buildTime)
	}
	if gitRevision != "" {
		fmt.Printf("Git revision: %v\n", gitRevision)
	}
}

func main() {

	textCfgPath, version := parseFlags()

	if version {
		printVersion()
		return
	}

	daemon.Init(textCfgPath)
	daemon.Finish()
}
