package evio

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// Load is the resource usage of one loop thread.
type Load struct {
	UserTime            time.Duration
	SystemTime          time.Duration
	MaxRSS              int64 // kilobytes, process-wide on Linux
	MinorFaults         int64
	MajorFaults         int64
	VoluntarySwitches   int64
	InvoluntarySwitches int64
}

func (ld Load) Add(o Load) Load {
	ld.UserTime += o.UserTime
	ld.SystemTime += o.SystemTime
	if o.MaxRSS > ld.MaxRSS {
		ld.MaxRSS = o.MaxRSS
	}
	ld.MinorFaults += o.MinorFaults
	ld.MajorFaults += o.MajorFaults
	ld.VoluntarySwitches += o.VoluntarySwitches
	ld.InvoluntarySwitches += o.InvoluntarySwitches
	return ld
}

// sampleLoad must run on the loop's locked thread.
func sampleLoad() (Load, error) {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_THREAD, &ru); err != nil {
		return Load{}, fmt.Errorf("getrusage: %w", err)
	}
	return Load{
		UserTime:            time.Duration(ru.Utime.Nano()),
		SystemTime:          time.Duration(ru.Stime.Nano()),
		MaxRSS:              int64(ru.Maxrss),
		MinorFaults:         int64(ru.Minflt),
		MajorFaults:         int64(ru.Majflt),
		VoluntarySwitches:   int64(ru.Nvcsw),
		InvoluntarySwitches: int64(ru.Nivcsw),
	}, nil
}
