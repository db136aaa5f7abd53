package sysfs

import (
	"kernix/defs"
	"kernix/klog"
	"kernix/stat"
)

// NewKmsg builds /sys/kmsg (SPEC_FULL.md supplemental feature, §1: "a
// bounded circbuf.Circbuf_t ... backs an in-memory tail so /sys/kmsg can
// replay the last N kernel log lines"). Unlike the other /sys entries,
// reading kmsg drains the tail buffer rather than reformatting a fixed
// snapshot, so offsets are not meaningful here (spec.md §4.11): each read
// simply returns whatever has accumulated since the last read.
func NewKmsg(l *klog.Logger) *Entry {
	return &Entry{
		Mode: stat.IFREG | 0444,
		Read: func(off int, dst []uint8) (int, defs.Err_t) {
			return l.Tail(dst), 0
		},
	}
}
