// Package holder records which process holds a run lock so a lock left
// behind by a crashed process can be recognised and taken over.
package holder

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Holder identifies the process that acquired a lock.
type Holder struct {
	PID   int
	Host  string
	Since time.Time
}

// Current describes this process.
func Current(now time.Time) Holder {
	host, _ := os.Hostname()
	return Holder{PID: os.Getpid(), Host: host, Since: now.UTC()}
}

// Line renders the holder as a single lock file line.
func (h Holder) Line() string {
	host := h.Host
	if host == "" {
		host = "-"
	}
	return fmt.Sprintf("%d %s %s\n", h.PID, host, h.Since.UTC().Format(time.RFC3339))
}

// Parse reads a line written by Line. The older "<pid> <time>" form is
// accepted with an unknown host.
func Parse(line string) (Holder, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 || len(fields) > 3 {
		return Holder{}, fmt.Errorf("malformed lock line %q", strings.TrimSpace(line))
	}
	pid, err := strconv.Atoi(fields[0])
	if err != nil {
		return Holder{}, fmt.Errorf("malformed lock pid %q", fields[0])
	}
	h := Holder{PID: pid}
	stamp := fields[len(fields)-1]
	if len(fields) == 3 && fields[1] != "-" {
		h.Host = fields[1]
	}
	if t, err := time.Parse(time.RFC3339, stamp); err == nil {
		h.Since = t
	}
	return h, nil
}

// Gone reports whether the holder ran on this host and that process no
// longer exists. A holder on another or unknown host is never gone.
func (h Holder) Gone(alive func(pid int) bool) bool {
	if h.PID <= 0 || h.Host == "" {
		return false
	}
	host, err := os.Hostname()
	if err != nil || host != h.Host {
		return false
	}
	return !alive(h.PID)
}

func (h Holder) String() string {
	host := h.Host
	if host == "" {
		host = "unknown host"
	}
	s := fmt.Sprintf("pid %d on %s", h.PID, host)
	if !h.Since.IsZero() {
		s += " since " + h.Since.UTC().Format(time.RFC3339)
	}
	return s
}
