// Package survey aggregates access-point scans into per-channel statistics
// and a channel recommendation for access-point placement.
package survey

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/rjboer/esp8266/at"
)

// ChannelStats summarizes the access points seen on one channel.
type ChannelStats struct {
	Channel    int     `json:"channel"`
	Count      int     `json:"count"`
	MeanRSSI   float64 `json:"meanRssi"`
	StddevRSSI float64 `json:"stddevRssi"`
}

// Report is the aggregate of one scan.
type Report struct {
	Total     int                       `json:"total"`
	Channels  []ChannelStats            `json:"channels"`
	Strongest map[string]at.AccessPoint `json:"strongest"`
}

// Summarize folds a scan into per-channel statistics, sorted by channel,
// and the strongest sighting of each SSID.
func Summarize(aps []at.AccessPoint) Report {
	byChannel := make(map[int][]float64)
	strongest := make(map[string]at.AccessPoint)
	for _, ap := range aps {
		byChannel[ap.Channel] = append(byChannel[ap.Channel], float64(ap.RSSI))
		if best, ok := strongest[ap.SSID]; !ok || ap.RSSI > best.RSSI {
			strongest[ap.SSID] = ap
		}
	}

	channels := make([]ChannelStats, 0, len(byChannel))
	for ch, rssi := range byChannel {
		cs := ChannelStats{
			Channel:  ch,
			Count:    len(rssi),
			MeanRSSI: stat.Mean(rssi, nil),
		}
		if len(rssi) > 1 {
			cs.StddevRSSI = stat.StdDev(rssi, nil)
		}
		channels = append(channels, cs)
	}
	sort.Slice(channels, func(i, j int) bool { return channels[i].Channel < channels[j].Channel })

	return Report{
		Total:     len(aps),
		Channels:  channels,
		Strongest: strongest,
	}
}

// preferredChannels are the non-overlapping 2.4 GHz channels.
var preferredChannels = []int{1, 6, 11}

// RecommendChannel picks the least-crowded of the non-overlapping channels,
// counting any occupant within four channels as interference. Ties resolve
// to the lower channel.
func RecommendChannel(aps []at.AccessPoint) int {
	best, bestLoad := preferredChannels[0], -1
	for _, ch := range preferredChannels {
		load := 0
		for _, ap := range aps {
			if d := ap.Channel - ch; d >= -4 && d <= 4 {
				load++
			}
		}
		if bestLoad < 0 || load < bestLoad {
			best, bestLoad = ch, load
		}
	}
	return best
}
