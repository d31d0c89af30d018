package metricspush

import (
	"context"
	"net/http"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// PushgatewayPusher replaces the job's metric group on every push (HTTP PUT).
type PushgatewayPusher struct {
	endpoint string
	job      string
	grouping [][2]string
	client   *http.Client
}

func NewPushgatewayPusher(endpoint, job string, grouping map[string]string) *PushgatewayPusher {
	p := &PushgatewayPusher{
		endpoint: endpoint,
		job:      job,
		client:   &http.Client{Timeout: pushTimeout},
	}
	for name, value := range grouping {
		if name != "" && value != "" {
			p.grouping = append(p.grouping, [2]string{name, value})
		}
	}
	sort.Slice(p.grouping, func(i, j int) bool { return p.grouping[i][0] < p.grouping[j][0] })
	return p
}

func (p *PushgatewayPusher) Push(ctx context.Context, gatherer prometheus.Gatherer) error {
	pusher := push.New(p.endpoint, p.job).Gatherer(gatherer).Client(p.client)
	for _, kv := range p.grouping {
		pusher = pusher.Grouping(kv[0], kv[1])
	}
	return pusher.PushContext(ctx)
}
