package metricspush

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/golang/snappy"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/prometheus/prompb"
)

// RemoteWritePusher posts counters and gauges to a Prometheus remote_write
// receiver. Histograms and summaries are skipped.
type RemoteWritePusher struct {
	endpoint       string
	authToken      string
	externalLabels map[string]string
	client         *http.Client
	now            func() time.Time
}

func NewRemoteWritePusher(endpoint, authToken string, externalLabels map[string]string) *RemoteWritePusher {
	return &RemoteWritePusher{
		endpoint:       endpoint,
		authToken:      strings.TrimSpace(authToken),
		externalLabels: externalLabels,
		client:         &http.Client{Timeout: pushTimeout},
		now:            time.Now,
	}
}

func (p *RemoteWritePusher) Push(ctx context.Context, gatherer prometheus.Gatherer) error {
	families, err := gatherer.Gather()
	if err != nil {
		return fmt.Errorf("gather: %w", err)
	}
	series := toTimeSeries(families, p.externalLabels, p.now().UnixMilli())
	if len(series) == 0 {
		return nil
	}

	raw, err := (&prompb.WriteRequest{Timeseries: series}).Marshal()
	if err != nil {
		return fmt.Errorf("encode write request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(snappy.Encode(nil, raw)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-protobuf")
	req.Header.Set("Content-Encoding", "snappy")
	req.Header.Set("X-Prometheus-Remote-Write-Version", "0.1.0")
	if p.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+p.authToken)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("remote write rejected: %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}
	return nil
}

// toTimeSeries flattens counter and gauge families into one sample per
// series. Labels are sorted by name, which the receiver requires.
func toTimeSeries(families []*dto.MetricFamily, external map[string]string, tsMillis int64) []prompb.TimeSeries {
	var out []prompb.TimeSeries
	for _, family := range families {
		for _, m := range family.GetMetric() {
			var value float64
			switch {
			case family.GetType() == dto.MetricType_COUNTER && m.GetCounter() != nil:
				value = m.GetCounter().GetValue()
			case family.GetType() == dto.MetricType_GAUGE && m.GetGauge() != nil:
				value = m.GetGauge().GetValue()
			default:
				continue
			}

			labels := []prompb.Label{{Name: "__name__", Value: family.GetName()}}
			seen := map[string]bool{}
			for _, lp := range m.GetLabel() {
				labels = append(labels, prompb.Label{Name: lp.GetName(), Value: lp.GetValue()})
				seen[lp.GetName()] = true
			}
			for name, v := range external {
				if v != "" && !seen[name] {
					labels = append(labels, prompb.Label{Name: name, Value: v})
				}
			}
			sort.Slice(labels, func(i, j int) bool { return labels[i].Name < labels[j].Name })

			out = append(out, prompb.TimeSeries{
				Labels:  labels,
				Samples: []prompb.Sample{{Value: value, Timestamp: tsMillis}},
			})
		}
	}
	return out
}
