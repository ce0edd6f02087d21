package profile

import (
	"time"

	"github.com/coral-mesh/liveprof/pkg/profiledata"
)

// entryRow is one call graph entry as printed by the commands.
type entryRow struct {
	Key      string `header:"CALL" json:"key"`
	Count    int64  `header:"COUNT" json:"ct"`
	WallTime string `header:"WALL" json:"-"`
	WallUS   int64  `json:"wt"`
	CPUTime  int64  `header:"CPU (us)" json:"cpu,omitempty"`
	Memory   int64  `header:"MEM (B)" json:"mu,omitempty"`
}

func rowsOf(data profiledata.Data, top int) []entryRow {
	entries := data.Top(top)
	rows := make([]entryRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, entryRow{
			Key:      e.Key,
			Count:    e.Count,
			WallTime: (time.Duration(e.WallTime) * time.Microsecond).String(),
			WallUS:   e.WallTime,
			CPUTime:  e.CPUTime,
			Memory:   e.Memory,
		})
	}
	return rows
}
