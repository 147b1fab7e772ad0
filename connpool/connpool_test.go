package connpool_test

import (
	"context"
	"net"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/SpaceCafe/julea/connpool"
)

// startEchoServer accepts connections on an ephemeral port and holds them
// open until the test process exits; good enough for exercising Pop/Push.
func startEchoServer() string {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	Expect(err).NotTo(HaveOccurred())
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				buf := make([]byte, 4096)
				for {
					if _, err := c.Read(buf); err != nil {
						return
					}
				}
			}(conn)
		}
	}()
	return ln.Addr().String()
}

var _ = Describe("Pool", func() {
	It("rejects an out-of-range server index", func() {
		p := connpool.Init([]string{startEchoServer()}, nil, 2)
		defer p.Fini()

		_, err := p.Object.Pop(context.Background(), 5)
		Expect(err).To(HaveOccurred())
	})

	It("dials lazily and reuses idle connections", func() {
		addr := startEchoServer()
		p := connpool.Init([]string{addr}, nil, 2)
		defer p.Fini()

		conn, err := p.Object.Pop(context.Background(), 0)
		Expect(err).NotTo(HaveOccurred())
		p.Object.Push(0, conn, false)

		conn2, err := p.Object.Pop(context.Background(), 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(conn2).To(Equal(conn), "expected the idle connection to be reused")
		p.Object.Push(0, conn2, false)
	})

	It("discards a connection returned as broken instead of reusing it", func() {
		addr := startEchoServer()
		p := connpool.Init([]string{addr}, nil, 2)
		defer p.Fini()

		conn, err := p.Object.Pop(context.Background(), 0)
		Expect(err).NotTo(HaveOccurred())
		p.Object.Push(0, conn, true)

		conn2, err := p.Object.Pop(context.Background(), 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(conn2).NotTo(Equal(conn))
		p.Object.Push(0, conn2, false)
	})

	It("blocks a Pop beyond max_connections until one is returned", func() {
		addr := startEchoServer()
		p := connpool.Init([]string{addr}, nil, 1)
		defer p.Fini()

		conn, err := p.Object.Pop(context.Background(), 0)
		Expect(err).NotTo(HaveOccurred())

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err = p.Object.Pop(ctx, 0)
		Expect(err).To(HaveOccurred(), "pool is at capacity, Pop should have blocked until timeout")

		p.Object.Push(0, conn, false)
	})
})
