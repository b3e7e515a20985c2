package web

import (
	"fmt"
	"html/template"
	"io"
	"log"
	"time"

	"github.com/krt1k/blueproximity-v2/internal/proximity"
	"github.com/krt1k/blueproximity-v2/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"deviceState": func(dev proximity.DeviceStatus) string {
		if !dev.Observed {
			return "UNKNOWN"
		}
		if dev.Present {
			return "PRESENT"
		}
		return "AWAY"
	},
	"lastSeen": func(t time.Time) string {
		if t.IsZero() {
			return "never"
		}
		return t.UTC().Format(time.RFC3339)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Proximity Lock</title>
<style>
body { font-family: monospace; max-width: 640px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.present { color: green; font-weight: bold; }
.away { color: #c00; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Proximity Lock{{if .Version}} <small>{{.Version}}</small>{{end}}</h1>

<table>
<tr><th>Device</th><th>State</th><th>RSSI</th><th>Last seen</th></tr>
{{range $d := .Devices}}
<tr>
<td>{{$d.Name}} <small>{{$d.Address}}</small></td>
{{$state := deviceState $d}}
<td class="{{if eq $state "PRESENT"}}present{{else if eq $state "AWAY"}}away{{else}}unknown{{end}}">{{$state}}</td>
<td>{{if $d.LastSeen.IsZero}}&mdash;{{else}}{{$d.RSSI}} dBm{{end}}</td>
<td>{{lastSeen $d.LastSeen}}</td>
</tr>
{{end}}
</table>

<table>
<tr><th>Screen locked by daemon</th><td>{{if .LockedByUs}}yes{{else}}no{{end}}</td></tr>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}} ({{.Config.Broker}})</td></tr>
<tr><th>Events</th><td>present={{.Counts.DevicePresent}} away={{.Counts.DeviceAway}} locks={{.Counts.Locks}} unlocks={{.Counts.Unlocks}}</td></tr>
<tr><th>Thresholds</th><td>lock &lt; {{.Config.LockThreshold}} dBm, unlock &gt; {{.Config.UnlockThreshold}} dBm</td></tr>
<tr><th>Timeouts</th><td>lock {{.Config.LockTimeoutMs}} ms, unlock {{.Config.UnlockTimeoutMs}} ms</td></tr>
<tr><th>Scan interval</th><td>{{.Config.ScanIntervalMs}} ms ({{.Config.Source}})</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	if err := indexTmpl.Execute(w, snap); err != nil {
		log.Printf("web: render status page: %v", err)
	}
}
