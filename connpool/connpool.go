// Package connpool implements C5: a per-server bounded pool of reusable
// TCP client connections with lazy creation and a max-count cap. Separate
// pools are kept for the object-server fleet and the kv-server fleet since
// a client's object handle and kv handle are hashed against independent
// server counts.
package connpool

import (
	"context"
	"net"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/semaphore"

	"github.com/SpaceCafe/julea/cmn/cos"
	"github.com/SpaceCafe/julea/cmn/nlog"
)

// Pool owns the object-server and kv-server connection fleets.
type Pool struct {
	Object *kindPool
	KV     *kindPool
}

// Init dials nothing eagerly (connections are created lazily on first Pop);
// it only records the server address lists and the per-server cap.
func Init(objectServers, kvServers []string, maxConnections int) *Pool {
	return &Pool{
		Object: newKindPool("object", objectServers, maxConnections),
		KV:     newKindPool("kv", kvServers, maxConnections),
	}
}

// Fini closes every idle connection; connections currently checked out are
// the caller's responsibility to Push back (broken or not) before calling.
func (p *Pool) Fini() {
	p.Object.closeIdle()
	p.KV.closeIdle()
}

// kindPool is the per-store-kind implementation shared by Object and KV.
type kindPool struct {
	kind           string
	addrs          []string
	maxConnections int

	mu      sync.Mutex
	idle    [][]net.Conn
	created []int
	sems    []*semaphore.Weighted

	gaugeIdle    *prometheus.GaugeVec
	gaugeCheckedOut *prometheus.GaugeVec
}

func newKindPool(kind string, addrs []string, maxConnections int) *kindPool {
	n := len(addrs)
	p := &kindPool{
		kind:           kind,
		addrs:          addrs,
		maxConnections: maxConnections,
		idle:           make([][]net.Conn, n),
		created:        make([]int, n),
		sems:           make([]*semaphore.Weighted, n),
		gaugeIdle: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "julea", Subsystem: "connpool", Name: "idle",
			Help: "idle connections currently held in the pool",
		}, []string{"kind", "server"}),
		gaugeCheckedOut: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "julea", Subsystem: "connpool", Name: "checked_out",
			Help: "connections currently checked out of the pool",
		}, []string{"kind", "server"}),
	}
	for i := range p.sems {
		p.sems[i] = semaphore.NewWeighted(int64(maxConnections))
	}
	return p
}

// Collectors returns the pool's prometheus collectors for registration by
// whatever process embeds the client (ambient observability, not a full
// tracing pipeline — see SPEC_FULL.md).
func (p *kindPool) Collectors() []prometheus.Collector {
	return []prometheus.Collector{p.gaugeIdle, p.gaugeCheckedOut}
}

// Pop returns an idle connection for server index, or — if the created
// count is still under max and none are idle — dials a new one. Otherwise
// it blocks (FIFO per server, via the semaphore's internal waiter queue)
// until a connection is returned.
func (p *kindPool) Pop(ctx context.Context, index int) (net.Conn, error) {
	if index < 0 || index >= len(p.addrs) {
		return nil, errors.Errorf("connpool: server index %d out of range [0,%d)", index, len(p.addrs))
	}
	if err := p.sems[index].Acquire(ctx, 1); err != nil {
		return nil, err
	}
	server := labelFor(index)

	p.mu.Lock()
	if n := len(p.idle[index]); n > 0 {
		c := p.idle[index][n-1]
		p.idle[index] = p.idle[index][:n-1]
		p.mu.Unlock()
		p.gaugeIdle.WithLabelValues(p.kind, server).Dec()
		p.gaugeCheckedOut.WithLabelValues(p.kind, server).Inc()
		return c, nil
	}
	p.created[index]++
	p.mu.Unlock()

	conn, err := net.Dial("tcp", p.addrs[index])
	if err != nil {
		p.mu.Lock()
		p.created[index]--
		p.mu.Unlock()
		p.sems[index].Release(1)
		return nil, errors.Wrapf(err, "connpool: dial %s", p.addrs[index])
	}
	p.gaugeCheckedOut.WithLabelValues(p.kind, server).Inc()
	return conn, nil
}

// Push returns a connection to the pool. A broken connection is closed and
// discarded (its slot in the created-count is freed, allowing a fresh dial
// on a future Pop) rather than returned to idle.
func (p *kindPool) Push(index int, conn net.Conn, broken bool) {
	server := labelFor(index)
	p.gaugeCheckedOut.WithLabelValues(p.kind, server).Dec()
	defer p.sems[index].Release(1)

	if broken {
		if err := conn.Close(); err != nil && !cos.IsErrConnectionReset(err) {
			nlog.Warningf("connpool: close broken conn to %s: %v", p.addrs[index], err)
		}
		p.mu.Lock()
		p.created[index]--
		p.mu.Unlock()
		return
	}
	p.mu.Lock()
	p.idle[index] = append(p.idle[index], conn)
	p.mu.Unlock()
	p.gaugeIdle.WithLabelValues(p.kind, server).Inc()
}

func (p *kindPool) closeIdle() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, conns := range p.idle {
		for _, c := range conns {
			_ = c.Close()
		}
		p.idle[i] = nil
		p.created[i] = 0
	}
}

func labelFor(index int) string {
	return "#" + strconv.Itoa(index)
}
