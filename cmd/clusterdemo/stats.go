package main

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/Carmen-Shannon/oxy-cluster/engine/cluster"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer"
	"github.com/olekukonko/tablewriter"
)

func displayRunStats(w io.Writer, stats cluster.Stats, dev renderer.DeviceStats, overflows uint64, elapsed time.Duration) {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Counter", "Value"})

	fps := 0.0
	if elapsed > 0 {
		fps = float64(stats.Frames) / elapsed.Seconds()
	}
	table.Append([]string{"Frames", fmt.Sprintf("%d", stats.Frames)})
	table.Append([]string{"Frame rate", fmt.Sprintf("%.1f fps", fps)})
	table.Append([]string{"AABB rebuilds", fmt.Sprintf("%d", stats.AABBRebuilds)})
	table.Append([]string{"AABB skips", fmt.Sprintf("%d", stats.AABBSkips)})
	table.Append([]string{"Cull dispatches", fmt.Sprintf("%d", stats.CullDispatches)})
	table.Append([]string{"Stage errors", fmt.Sprintf("%d", stats.Errors)})
	table.Append([]string{"Last light indices", fmt.Sprintf("%d", stats.LastIndexCount)})
	table.Append([]string{"Last dropped lights", fmt.Sprintf("%d in %d clusters", stats.LastDroppedLights, stats.LastOverflowClusters)})
	table.Append([]string{"Total dropped lights", fmt.Sprintf("%d", stats.TotalDroppedLights)})
	table.Append([]string{"Overflow events", fmt.Sprintf("%d", overflows)})
	table.Append([]string{" ", " "})
	table.Append([]string{"Submissions", fmt.Sprintf("%d", dev.Submissions)})
	table.Append([]string{"Dispatches", fmt.Sprintf("%d (%d workgroups)", dev.Dispatches, dev.Workgroups)})
	table.Append([]string{"Barriers", fmt.Sprintf("%d (%d ownership transfers)", dev.Barriers, dev.OwnershipTransfers)})
	table.Append([]string{"Uploaded", fmtBytes(dev.BytesWritten)})
	table.Append([]string{"Read back", fmtBytes(dev.BytesRead)})
	table.SetFooter([]string{"Elapsed", elapsed.Round(time.Millisecond).String()})

	table.Render()
	fmt.Fprintf(w, "pipeline statistics\n%s", buf.String())
}

// displaySliceOccupancy prints light index usage per depth slice of one frame.
func displaySliceOccupancy(w io.Writer, snap *cluster.Snapshot) {
	g := snap.Grid
	perSlice := g.SliceCountX * g.SliceCountY

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Slice", "Indices", "Max/cluster", "Full clusters", "Dropped"})
	var totalIndices, totalDropped uint64
	for z := uint32(0); z < g.SliceCountZ; z++ {
		var indices, dropped uint64
		var busiest, full uint32
		for i := z * perSlice; i < (z+1)*perSlice; i++ {
			count := snap.Cells[i].Count
			indices += uint64(count)
			busiest = max(busiest, count)
			if count == g.MaxLightsPerCluster {
				full++
			}
			if int(i) < len(snap.Dropped) {
				dropped += uint64(snap.Dropped[i])
			}
		}
		totalIndices += indices
		totalDropped += dropped
		table.Append([]string{
			fmt.Sprintf("%d", z),
			fmt.Sprintf("%d", indices),
			fmt.Sprintf("%d", busiest),
			fmt.Sprintf("%d", full),
			fmt.Sprintf("%d", dropped),
		})
	}
	table.SetFooter([]string{"Total", fmt.Sprintf("%d", totalIndices), "", "", fmt.Sprintf("%d", totalDropped)})

	table.Render()
	fmt.Fprintf(w, "light occupancy per depth slice\n%s", buf.String())
}

func fmtBytes(n uint64) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("%.2f GiB", float64(n)/(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.2f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.2f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
