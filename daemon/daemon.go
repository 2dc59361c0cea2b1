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

// Package daemon ties the pieces into a running server: config,
// logging, the region map, the connector registry and the HTTP
// listener, plus pid file and signal handling.
package daemon

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"sync/atomic"
	"syscall"

	"github.com/mconn/mconn/connector"
)

var (
	serviceMgr *serviceManager
	logFile    *os.File
	cycleLogCh = make(chan int)
	quit       int32
)

// The quit flag is read by the log cycler and the runtime reporter
// goroutines while the signal handler writes it, so it is atomic.
func setQuitting() {
	atomic.StoreInt32(&quit, 1)
}

func quitting() bool {
	return atomic.LoadInt32(&quit) != 0
}

func savePid(pidPath string) {
	f, err := os.Create(pidPath)
	if err != nil {
		log.Fatalf("Unable to create pid file '%s': (%v)", pidPath, err)
	}
	fmt.Fprintf(f, "%d\n", os.Getpid())
	f.Close()
	log.Printf("Pid saved in %s.", pidPath)
}

func Init(cfgPath string) { // not to be confused with init()

	runtime.GOMAXPROCS(runtime.NumCPU())

	log.Printf("Mconn starting.")

	// This creates the Cfg variable
	if err := ReadConfig(cfgPath); err != nil {
		log.Fatal("Exiting.")
	}

	wd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}

	if err := processConfig(configer(Cfg), wd); err != nil { // This validates the config
		log.Fatalf("Error in config file %s: %v", cfgPath, err)
	}

	savePid(Cfg.PidPath)

	regions, err := Cfg.regionMap()
	if err != nil {
		log.Fatalf("Error setting up the metric backend: %v", err)
	}
	reg := connector.NewRegistry(regions, Cfg.DefaultRegion)
	log.Printf("Connectors registered: %v", reg.Names())

	go reportRuntime(Cfg.RuntimeStatInterval.Duration)

	serviceMgr = newServiceManager(reg, Cfg)
	if err := serviceMgr.run(); err != nil {
		log.Printf("Could not run the service manager: %v", err)
		return
	}

	// Wait for a SIGINT or SIGTERM.
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	s := <-ch
	log.Printf("Got signal: %v", s)
	setQuitting()
	log.Printf("Waiting for all TCP connections to finish...")
	serviceMgr.closeListeners()
	log.Printf("TCP connections finished.")
}

func Finish() {
	setQuitting()
	log.Printf("main: Waiting for all other goroutines to finish...")
	log.Println("main: All goroutines finished, exiting.")

	// Close log
	log.SetOutput(os.Stderr)
	if logFile != nil {
		logFile.Close()
	}

	if Cfg != nil {
		os.Remove(Cfg.PidPath)
	}
}
