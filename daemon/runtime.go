//
// Copyright 2017 Gregory Trubetskoy. All Rights Reserved.
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
	"log"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/cpu"
)

// Some rudimentary runtime stats logged periodically so that a
// misbehaving deployment can be diagnosed from the log alone.

func runtimeMemory() uint64 {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return mem.Alloc
}

func runtimeCpuPercent() float64 {
	ps, _ := cpu.Percent(0, false)
	if len(ps) > 0 {
		return ps[0]
	}
	return 0
}

func reportRuntime(interval time.Duration) {
	for {
		time.Sleep(interval)
		if quitting() {
			return
		}
		log.Printf("runtime: cpu %.1f%% mem alloc %d goroutines %d",
			runtimeCpuPercent(), runtimeMemory(), runtime.NumGoroutine())
	}
}
