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

package daemon

import (
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/mconn/mconn/connector"
	h "github.com/mconn/mconn/http"
)

type service interface {
	Start() error
	Stop()
}

type serviceManager struct {
	services map[string]service
}

func newServiceManager(reg *connector.Registry, cfg *Config) *serviceManager {
	return &serviceManager{
		services: map[string]service{
			"www": &wwwServer{reg: reg, listenSpec: cfg.HttpListenSpec},
		},
	}
}

func processListenSpec(listenSpec string) string {
	if os.Getenv("MCONN_BIND") != "" {
		return strings.Replace(listenSpec, "0.0.0.0", os.Getenv("MCONN_BIND"), 1)
	}
	return listenSpec
}

func (r *serviceManager) run() error {
	for _, service := range r.services {
		if err := service.Start(); err != nil {
			return err
		}
	}
	return nil
}

func (r *serviceManager) closeListeners() {
	for _, service := range r.services {
		service.Stop()
	}
}

func httpServer(addr string, l net.Listener, reg *connector.Registry) {

	mux := http.NewServeMux()
	mux.HandleFunc("/connector/", h.ConnectorHandler(reg))
	mux.HandleFunc("/ping", h.PingHandler())

	server := &http.Server{
		Addr:           addr,
		Handler:        mux,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxHeaderBytes: 1 << 16}
	server.Serve(l)
}

type wwwServer struct {
	reg        *connector.Registry
	listener   net.Listener
	listenSpec string
	stop       int32
}

func (g *wwwServer) Stop() {
	if g.stopped() {
		return
	}
	if g.listener != nil {
		log.Printf("Closing listener %s\n", g.listenSpec)
		g.listener.Close()
	}
	atomic.StoreInt32(&(g.stop), 1)
}

func (g *wwwServer) stopped() bool {
	return atomic.LoadInt32(&(g.stop)) != 0
}

func (g *wwwServer) Start() error {
	if g.listenSpec == "" {
		log.Printf("Not starting HTTP server because http-listen-spec is blank.")
		return nil
	}

	gl, err := net.Listen("tcp", processListenSpec(g.listenSpec))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error starting HTTP protocol: %v\n", err)
		return fmt.Errorf("Error starting HTTP protocol: %v", err)
	}
	g.listener = gl

	log.Printf("HTTP protocol Listening on %s\n", processListenSpec(g.listenSpec))

	go httpServer(g.listenSpec, g.listener, g.reg)

	return nil
}
