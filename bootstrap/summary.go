package bootstrap

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/kbukum/serverkit/container"
)

// ServiceStatus holds the state of one service after startup.
type ServiceStatus struct {
	Name  string
	State container.State
	Error string
}

// Summary describes a completed startup.
type Summary struct {
	serverName string
	version    string
	bootID     string
	strategy   string
	startTime  time.Time
	duration   time.Duration
	services   []ServiceStatus
}

// NewSummary creates a new startup summary.
func NewSummary(serverName, version string) *Summary {
	return &Summary{
		serverName: serverName,
		version:    version,
	}
}

// Record captures the state of a started container.
func (s *Summary) Record(c *container.Container, cfg *Configuration) {
	s.bootID = c.ID()
	s.strategy = cfg.PersistenceStrategy()
	s.startTime = cfg.StartTime()
	s.duration = time.Since(cfg.StartTime())

	failures := c.Failures()
	states := c.States()
	s.services = make([]ServiceStatus, 0, len(states))
	for name, state := range states {
		st := ServiceStatus{Name: name, State: state}
		if err, ok := failures[name]; ok {
			st.Error = err.Error()
		}
		s.services = append(s.services, st)
	}
	sort.Slice(s.services, func(i, j int) bool { return s.services[i].Name < s.services[j].Name })
}

// Services returns the recorded service states, sorted by name.
func (s *Summary) Services() []ServiceStatus { return s.services }

// Failed returns the number of services that failed to start.
func (s *Summary) Failed() int {
	n := 0
	for _, svc := range s.services {
		if svc.State == container.StateFailed {
			n++
		}
	}
	return n
}

// Duration returns the time from boot start to stability.
func (s *Summary) Duration() time.Duration { return s.duration }

// Display writes the summary as a tree.
func (s *Summary) Display(w io.Writer) {
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "🚀 %s v%s started in %.2fs\n", s.serverName, s.version, s.duration.Seconds())
	fmt.Fprintf(w, "   boot %s, persistence %s\n\n", s.bootID, s.strategy)

	if len(s.services) == 0 {
		fmt.Fprintf(w, "   └── No services installed\n\n")
		return
	}

	fmt.Fprintf(w, "📦 Services\n")
	for i, svc := range s.services {
		prefix := "├──"
		if i == len(s.services)-1 {
			prefix = "└──"
		}
		line := fmt.Sprintf("   %s %s %s (%s)", prefix, stateIcon(svc.State), svc.Name, svc.State)
		if svc.Error != "" {
			line += ": " + svc.Error
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintf(w, "\n")

	total := len(s.services)
	failed := s.Failed()
	if failed == 0 {
		fmt.Fprintf(w, "✅ All services up (%d/%d)\n", total, total)
	} else {
		fmt.Fprintf(w, "⚠️  Some services failed (%d/%d up)\n", total-failed, total)
	}
	fmt.Fprintf(w, "\n")
}

func stateIcon(state container.State) string {
	switch state {
	case container.StateUp:
		return "✅"
	case container.StateFailed:
		return "❌"
	case container.StateStarting:
		return "⏳"
	default:
		return "⏸️"
	}
}
