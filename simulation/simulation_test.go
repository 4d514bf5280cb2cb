package simulation

import (
	"database/sql"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/sarchlab/tlmbus/config"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Simulation", func() {
	var c config.Config

	BeforeEach(func() {
		c = config.Default()
		c.Traffic.Count = 40
	})

	run := func(c config.Config) Summary {
		s, err := MakeBuilder().WithConfig(c).Build()
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(s.Terminate)

		Expect(s.Run()).To(Succeed())

		return s.Summary()
	}

	It("should complete random traffic without violations", func() {
		sum := run(c)

		Expect(sum.Issued).To(Equal(40))
		Expect(sum.Completed).To(Equal(40))
		Expect(sum.Violations).To(BeEmpty())
		Expect(sum.EndTime).To(BeNumerically(">", 0))
		Expect(sum.Steps).To(HaveKey("BegReq"))

		var n uint64
		for _, l := range sum.Latency {
			n += l.Count
			Expect(l.Max).To(BeNumerically(">=", l.Average))
		}
		Expect(n).To(Equal(uint64(40)))
	})

	It("should reorder responses", func() {
		c.Ordering.Policy = config.PolicyReorder
		c.Ordering.MinLatency = 2
		c.Ordering.MaxLatency = 20
		c.Ordering.Window = 2
		c.Ordering.PrioritizeQoS = true
		c.Ordering.WeightByAge = true
		c.Traffic.MaxQoS = 3
		c.Target.DataInterleaving = true

		sum := run(c)

		Expect(sum.Completed).To(Equal(40))
		Expect(sum.Violations).To(BeEmpty())
	})

	It("should limit the bandwidth", func() {
		c.Ordering.Policy = config.PolicyRateLimited
		c.Ordering.Bandwidth.Read = 0.25
		c.Ordering.Bandwidth.Write = 0.5

		sum := run(c)

		Expect(sum.Completed).To(Equal(40))
		Expect(sum.Violations).To(BeEmpty())
	})

	It("should run a credit based family", func() {
		c.Family = "CHI-REQ"
		c.Target.Credits = 2
		c.Target.StrictIncomeOrder = true
		c.Initiator.IDSerialization = true
		c.Initiator.Delays.Cycles = map[string]int{"EndResp": 1}
		c.Target.Delays.Jitter = 2

		sum := run(c)

		Expect(sum.Completed).To(Equal(40))
		Expect(sum.Violations).To(BeEmpty())
		Expect(sum.Steps).To(HaveKey("Ack"))
	})

	It("should respect the outstanding limit", func() {
		c.Initiator.Outstanding.Reads = 2
		c.Initiator.Outstanding.Writes = 1
		c.Traffic.Interval = 0

		sum := run(c)

		Expect(sum.Completed).To(Equal(40))
		Expect(sum.PeakReads).To(BeNumerically("<=", 2))
		Expect(sum.PeakWrites).To(BeNumerically("<=", 1))
	})

	It("should replay a recorded run", func() {
		path := filepath.Join(GinkgoT().TempDir(), "replay.csv")
		Expect(os.WriteFile(path, []byte(
			"kind,address,id,start_cycle,latency\n"+
				"READ,0x40,1,0,2\n"+
				"WRITE,0x1000,3,120,5\n"), 0o600)).To(Succeed())

		c.Ordering.Policy = config.PolicyReplay
		c.Ordering.ReplayFile = path
		c.Traffic.FromReplay = true

		sum := run(c)

		Expect(sum.Issued).To(Equal(2))
		Expect(sum.Completed).To(Equal(2))
		Expect(sum.ReplayAnomalies).To(BeZero())
		Expect(sum.EndTime).To(BeNumerically(">", 120e-9))
	})

	It("should record transactions", func() {
		path := filepath.Join(GinkgoT().TempDir(), "run")
		c.Record = path

		s, err := MakeBuilder().WithConfig(c).Build()
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Run()).To(Succeed())
		Expect(s.Terminate()).To(Succeed())

		db, err := sql.Open("sqlite3", path+".sqlite3")
		Expect(err).NotTo(HaveOccurred())
		defer db.Close()

		var count int
		Expect(db.QueryRow(
			"SELECT COUNT(*) FROM transactions WHERE Engine='Initiator';",
		).Scan(&count)).To(Succeed())
		Expect(count).To(Equal(40))
	})

	It("should serve metrics", func() {
		c.Metrics.Addr = "127.0.0.1:0"

		s, err := MakeBuilder().WithConfig(c).Build()
		Expect(err).NotTo(HaveOccurred())
		defer s.Terminate()

		Expect(s.Run()).To(Succeed())

		w, err := http.Get("http://" + s.Server().Addr() + "/metrics")
		Expect(err).NotTo(HaveOccurred())
		defer w.Body.Close()
		Expect(w.StatusCode).To(Equal(http.StatusOK))

		rsp, err := http.Get("http://" + s.Server().Addr() + "/api/components")
		Expect(err).NotTo(HaveOccurred())
		defer rsp.Body.Close()
		body, err := io.ReadAll(rsp.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(body).To(MatchJSON(`["Initiator","Target","Traffic"]`))
	})

	It("should reject an invalid configuration", func() {
		c.Ordering.Policy = "random"

		_, err := MakeBuilder().WithConfig(c).Build()
		Expect(err).To(HaveOccurred())
	})
})
