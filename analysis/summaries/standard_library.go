// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package summaries

import "github.com/Yanhaoxi/lotus-zju-sub001/analysis/config"

// stdPackages maps the names of standard library packages to the specifications of the functions of the package.
// This also serves as the reference list of standard packages.
// Each of the maps in stdPackages map the function string (function.String()) to its specification.
var stdPackages = map[string]map[string]config.FunctionSpec{
	"archive":     noSpecs,
	"bufio":       noSpecs,
	"builtin":     noSpecs,
	"bytes":       noSpecs,
	"cmp":         noSpecs,
	"compress":    noSpecs,
	"container":   noSpecs,
	"context":     noSpecs,
	"crypto":      noSpecs,
	"database":    noSpecs,
	"debug":       noSpecs,
	"embed":       noSpecs,
	"encoding":    noSpecs,
	"errors":      noSpecs,
	"expvar":      noSpecs,
	"flag":        noSpecs,
	"fmt":         SpecsFmt,
	"go":          noSpecs,
	"hash":        noSpecs,
	"html":        noSpecs,
	"image":       noSpecs,
	"index":       noSpecs,
	"io":          noSpecs,
	"log":         SpecsLog,
	"maps":        noSpecs,
	"math":        noSpecs,
	"mime":        noSpecs,
	"net":         noSpecs,
	"os":          SpecsOs,
	"path":        noSpecs,
	"plugin":      noSpecs,
	"reflect":     noSpecs,
	"regexp":      noSpecs,
	"runtime":     SpecsRuntime,
	"slices":      noSpecs,
	"sort":        noSpecs,
	"strconv":     noSpecs,
	"strings":     noSpecs,
	"sync":        SpecsSync,
	"sync/atomic": SpecsSyncAtomic,
	"syscall":     SpecsSyscall,
	"testing":     noSpecs,
	"text":        noSpecs,
	"time":        noSpecs,
	"unicode":     noSpecs,
	"unsafe":      noSpecs,
}

var noSpecs = map[string]config.FunctionSpec{}

var ignore = config.FunctionSpec{Ignore: true}

var exit = config.FunctionSpec{Exit: true}

// store is *dst = src
func store(dst, src string) config.CopySpec {
	return config.CopySpec{Dst: "*" + dst, Src: src}
}

// SpecsSyncAtomic models the atomic pointer operations: the pointed location is read and written like a normal
// location.
var SpecsSyncAtomic = map[string]config.FunctionSpec{
	"sync/atomic.LoadPointer":           {Returns: "*arg0"},
	"sync/atomic.StorePointer":          {Copies: []config.CopySpec{store("arg0", "arg1")}},
	"sync/atomic.SwapPointer":           {Copies: []config.CopySpec{store("arg0", "arg1")}, Returns: "*arg0"},
	"sync/atomic.CompareAndSwapPointer": {Copies: []config.CopySpec{store("arg0", "arg2")}},
	"(*sync/atomic.Value).Load":         {Returns: "*arg0"},
	"(*sync/atomic.Value).Store":        {Copies: []config.CopySpec{store("arg0", "arg1")}},
	"(*sync/atomic.Value).Swap":         {Copies: []config.CopySpec{store("arg0", "arg1")}, Returns: "*arg0"},
	"(*sync/atomic.Value).CompareAndSwap": {
		Copies: []config.CopySpec{store("arg0", "arg2")},
	},
	// generic atomic pointers are matched without their type arguments
	"(*sync/atomic.Pointer).Load":           {Returns: "*arg0"},
	"(*sync/atomic.Pointer).Store":          {Copies: []config.CopySpec{store("arg0", "arg1")}},
	"(*sync/atomic.Pointer).Swap":           {Copies: []config.CopySpec{store("arg0", "arg1")}, Returns: "*arg0"},
	"(*sync/atomic.Pointer).CompareAndSwap": {Copies: []config.CopySpec{store("arg0", "arg2")}},
}

// SpecsSync models the containers of package sync as a single location receiving everything stored in them
var SpecsSync = map[string]config.FunctionSpec{
	"(*sync.Pool).Put":          {Copies: []config.CopySpec{store("arg0", "arg1")}},
	"(*sync.Pool).Get":          {Returns: "*arg0"},
	"(*sync.Map).Store":         {Copies: []config.CopySpec{store("arg0", "arg1"), store("arg0", "arg2")}},
	"(*sync.Map).Load":          {Returns: "*arg0"},
	"(*sync.Map).LoadAndDelete": {Returns: "*arg0"},
	"(*sync.Map).Delete":        ignore,
	"(*sync.Map).LoadOrStore": {
		Copies:  []config.CopySpec{store("arg0", "arg1"), store("arg0", "arg2")},
		Returns: "*arg0",
	},
	"(*sync.Map).Swap": {
		Copies:  []config.CopySpec{store("arg0", "arg1"), store("arg0", "arg2")},
		Returns: "*arg0",
	},
	"(*sync.Mutex).Lock":      ignore,
	"(*sync.Mutex).Unlock":    ignore,
	"(*sync.RWMutex).Lock":    ignore,
	"(*sync.RWMutex).Unlock":  ignore,
	"(*sync.RWMutex).RLock":   ignore,
	"(*sync.RWMutex).RUnlock": ignore,
	"(*sync.WaitGroup).Add":   ignore,
	"(*sync.WaitGroup).Done":  ignore,
	"(*sync.WaitGroup).Wait":  ignore,
}

// SpecsRuntime ignores the scheduler and memory management functions
var SpecsRuntime = map[string]config.FunctionSpec{
	"runtime.KeepAlive":    ignore,
	"runtime.GC":           ignore,
	"runtime.Gosched":      ignore,
	"runtime.SetFinalizer": ignore,
	"runtime.NumGoroutine": ignore,
	"runtime.Goexit":       exit,
}

var SpecsOs = map[string]config.FunctionSpec{
	"os.Exit": exit,
}

var SpecsSyscall = map[string]config.FunctionSpec{
	"syscall.Exit": exit,
}

var SpecsLog = map[string]config.FunctionSpec{
	"log.Fatal":   exit,
	"log.Fatalf":  exit,
	"log.Fatalln": exit,
}

// SpecsFmt ignores the printing functions that return strings or nothing. The functions writing to an io.Writer
// are analyzed, since they call its Write method.
var SpecsFmt = map[string]config.FunctionSpec{
	"fmt.Print":    ignore,
	"fmt.Printf":   ignore,
	"fmt.Println":  ignore,
	"fmt.Sprint":   ignore,
	"fmt.Sprintf":  ignore,
	"fmt.Sprintln": ignore,
}
