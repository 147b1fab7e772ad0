package distribution_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/SpaceCafe/julea/distribution"
)

var _ = Describe("Distribution", func() {
	Context("single-server variant", func() {
		It("emits exactly one stride covering the whole range", func() {
			d := distribution.New(distribution.SingleServer, 3)
			Expect(d.Set("server", 1)).To(Succeed())
			d.Reset(1024, 0)

			s, ok := d.Distribute()
			Expect(ok).To(BeTrue())
			Expect(s).To(Equal(distribution.Stride{ServerIndex: 1, Length: 1024, Offset: 0, BlockID: 0}))

			_, ok = d.Distribute()
			Expect(ok).To(BeFalse())
		})
	})

	Context("round-robin variant", func() {
		It("splits a 2.5 MiB range across 3 servers with 1 MiB blocks into three strides", func() {
			d := distribution.New(distribution.RoundRobin, 3)
			Expect(d.Set("block-size", 1<<20)).To(Succeed())
			d.Reset(5*(1<<20)/2, 0)

			var strides []distribution.Stride
			for {
				s, ok := d.Distribute()
				if !ok {
					break
				}
				strides = append(strides, s)
			}

			Expect(strides).To(HaveLen(3))
			Expect(strides[0]).To(Equal(distribution.Stride{ServerIndex: 0, Length: 1 << 20, Offset: 0, BlockID: 0}))
			Expect(strides[1]).To(Equal(distribution.Stride{ServerIndex: 1, Length: 1 << 20, Offset: 1 << 20, BlockID: 1}))
			Expect(strides[2]).To(Equal(distribution.Stride{ServerIndex: 2, Length: 1 << 19, Offset: 2 << 20, BlockID: 2}))
		})

		It("never exceeds the global stripe cap even if asked to", func() {
			d := distribution.New(distribution.RoundRobin, 2)
			Expect(d.Set("block-size", 64<<20)).To(Succeed())
			d.Reset(distribution.StripeCap+1, 0)

			s, _ := d.Distribute()
			Expect(s.Length).To(Equal(distribution.StripeCap))
		})

		It("rejects a start-index outside the server range", func() {
			d := distribution.New(distribution.RoundRobin, 2)
			Expect(d.Set("start-index", 2)).To(HaveOccurred())
		})
	})

	Context("weighted variant", func() {
		It("visits servers proportionally to their configured weight", func() {
			d := distribution.New(distribution.Weighted, 2)
			Expect(d.Set2("weight", 0, 2)).To(Succeed())
			Expect(d.Set2("weight", 1, 1)).To(Succeed())
			Expect(d.Set("block-size", 1<<10)).To(Succeed())
			d.Reset(3<<10, 0)

			var servers []int
			for {
				s, ok := d.Distribute()
				if !ok {
					break
				}
				servers = append(servers, s.ServerIndex)
			}
			Expect(servers).To(Equal([]int{0, 0, 1}))
		})
	})

	Context("JSON round-trip", func() {
		It("preserves a weighted distribution's configuration", func() {
			d := distribution.New(distribution.Weighted, 3)
			Expect(d.Set2("weight", 0, 5)).To(Succeed())

			raw, err := d.MarshalJSON()
			Expect(err).NotTo(HaveOccurred())

			got, err := distribution.ParseJSON(raw)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).NotTo(BeNil())

			again, err := got.MarshalJSON()
			Expect(err).NotTo(HaveOccurred())
			Expect(again).To(MatchJSON(raw))
		})
	})
})
