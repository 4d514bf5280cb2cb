package monitoring

import (
	"bytes"
	"net/http"
	"os"
	"runtime/pprof"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"
	"go.uber.org/zap"

	"github.com/sarchlab/tlmbus/sim/timing"
)

// RegisterEngine enables the engine control endpoints.
func (s *Server) RegisterEngine(e timing.Engine) {
	s.engine = e
}

// RegisterComponent makes a component inspectable under its name.
func (s *Server) RegisterComponent(name string, c any) {
	s.componentsLock.Lock()
	defer s.componentsLock.Unlock()

	s.components[name] = c
}

func (s *Server) routeInspection() {
	s.router.HandleFunc("/api/now", s.now).Methods(http.MethodGet)
	s.router.HandleFunc("/api/pause", s.pause).Methods(http.MethodPost)
	s.router.HandleFunc("/api/continue", s.resume).Methods(http.MethodPost)
	s.router.HandleFunc("/api/components", s.listComponents).
		Methods(http.MethodGet)
	s.router.HandleFunc("/api/component/{name}", s.componentDetails).
		Methods(http.MethodGet)
	s.router.HandleFunc("/api/resource", s.resources).Methods(http.MethodGet)
	s.router.HandleFunc("/api/profile", s.cpuProfile).Methods(http.MethodGet)
}

func (s *Server) engineOr404(w http.ResponseWriter, r *http.Request) bool {
	if s.engine == nil {
		http.NotFound(w, r)
		return false
	}

	return true
}

func (s *Server) now(w http.ResponseWriter, r *http.Request) {
	if !s.engineOr404(w, r) {
		return
	}

	s.writeJSON(w, map[string]float64{"now": s.engine.Now()})
}

func (s *Server) pause(w http.ResponseWriter, r *http.Request) {
	if !s.engineOr404(w, r) {
		return
	}

	s.engine.Pause()
	s.logger.Info("engine paused", zap.Float64("now", s.engine.Now()))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) resume(w http.ResponseWriter, r *http.Request) {
	if !s.engineOr404(w, r) {
		return
	}

	s.engine.Continue()
	s.logger.Info("engine continued")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listComponents(w http.ResponseWriter, _ *http.Request) {
	s.componentsLock.Lock()
	names := make([]string, 0, len(s.components))
	for n := range s.components {
		names = append(names, n)
	}
	s.componentsLock.Unlock()

	sort.Strings(names)
	s.writeJSON(w, names)
}

// componentDetails serializes one level of a component. The field query
// parameter, a dot separated path, selects a nested field instead.
func (s *Server) componentDetails(w http.ResponseWriter, r *http.Request) {
	s.componentsLock.Lock()
	c, ok := s.components[mux.Vars(r)["name"]]
	s.componentsLock.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(c)
	serializer.SetMaxDepth(1)

	if field := r.URL.Query().Get("field"); field != "" {
		err := serializer.SetEntryPoint(strings.Split(field, "."))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")

	if err := serializer.Serialize(w); err != nil {
		s.logger.Warn("serializing component", zap.Error(err))
	}
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (s *Server) resources(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	cpu, err := proc.CPUPercent()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	mem, err := proc.MemoryInfo()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, resourceRsp{CPUPercent: cpu, MemorySize: mem.RSS})
}

// cpuProfile samples the process for ?seconds= (default 1) and returns the
// parsed profile.
func (s *Server) cpuProfile(w http.ResponseWriter, r *http.Request) {
	d := time.Second
	if v := r.URL.Query().Get("seconds"); v != "" {
		sec, err := strconv.ParseFloat(v, 64)
		if err != nil || sec <= 0 {
			http.Error(w, "bad seconds", http.StatusBadRequest)
			return
		}

		d = time.Duration(sec * float64(time.Second))
	}

	buf := bytes.NewBuffer(nil)
	if err := pprof.StartCPUProfile(buf); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	time.Sleep(d)
	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, prof)
}
