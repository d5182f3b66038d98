// Package health exposes a resource-derived /healthz endpoint per service,
// backed by the teacher's previously unwired prometheus/procfs dependency.
// This is deliberately not a metrics/tracing surface — just enough to let
// an orchestrator decide whether to restart a stuck process.
package health

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/procfs"
)

// Report is one point-in-time resource snapshot for this process.
type Report struct {
	Service       string  `json:"service"`
	PID           int     `json:"pid"`
	UptimeSeconds float64 `json:"uptimeSeconds"`
	RSSBytes      int64   `json:"rssBytes"`
	OpenFDs       int64   `json:"openFds"`
	Threads       int64   `json:"threads"`
	Healthy       bool    `json:"healthy"`
}

// Reporter samples /proc for the current process.
type Reporter struct {
	service   string
	startedAt time.Time
	fs        procfs.FS
}

func NewReporter(service string) (*Reporter, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return nil, err
	}
	return &Reporter{service: service, startedAt: time.Now(), fs: fs}, nil
}

func (r *Reporter) sample() Report {
	rep := Report{Service: r.service, PID: os.Getpid(), UptimeSeconds: time.Since(r.startedAt).Seconds(), Healthy: true}

	proc, err := r.fs.Proc(os.Getpid())
	if err != nil {
		rep.Healthy = false
		return rep
	}
	if stat, err := proc.Stat(); err == nil {
		rep.RSSBytes = int64(stat.ResidentMemory())
		rep.Threads = int64(stat.NumThreads)
	}
	if fds, err := proc.FileDescriptorsLen(); err == nil {
		rep.OpenFDs = int64(fds)
	}
	return rep
}

// Handler serves a JSON Report for every GET, per-service /healthz.
func (r *Reporter) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		rep := r.sample()
		w.Header().Set("Content-Type", "application/json")
		if !rep.Healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(rep)
	}
}
