package apiserver_test

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"time"

	api "github.com/micheleDibi/StyleForge-sub000/api/v1alpha1"
	apiserver "github.com/micheleDibi/StyleForge-sub000/internal/api_server"
	"github.com/micheleDibi/StyleForge-sub000/internal/view"
	"github.com/micheleDibi/StyleForge-sub000/pkg/requestid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type staticSource struct {
	snapshot view.Snapshot
}

func (s staticSource) Snapshot() view.Snapshot {
	return s.snapshot
}

func get(url string) (int, string) {
	resp, err := http.Get(url)
	Expect(err).To(BeNil())
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	Expect(err).To(BeNil())
	return resp.StatusCode, string(body)
}

var _ = Describe("status server", func() {
	var (
		srv    *httptest.Server
		source staticSource
	)

	BeforeEach(func() {
		remaining := 18
		source = staticSource{snapshot: view.Snapshot{
			JobID:                     "job-1",
			Family:                    api.JobFamilyTraining,
			State:                     view.StatePolling,
			Status:                    &api.JobStatus{JobId: "job-1", Status: api.StatusTraining, Progress: 50},
			EstimatedSecondsRemaining: &remaining,
			EstimatedRemaining:        "~18s",
		}}
		srv = httptest.NewServer(apiserver.NewStatusRouter(source))
	})

	AfterEach(func() {
		srv.Close()
	})

	It("serves the snapshot as json", func() {
		code, body := get(srv.URL + "/status")
		Expect(code).To(Equal(http.StatusOK))

		var got map[string]interface{}
		Expect(json.Unmarshal([]byte(body), &got)).To(Succeed())
		Expect(got["job_id"]).To(Equal("job-1"))
		Expect(got["state"]).To(Equal("polling"))
		Expect(got["estimated_seconds_remaining"]).To(BeNumerically("==", 18))
		Expect(got["status"]).To(HaveKeyWithValue("progress", BeNumerically("==", 50)))
	})

	It("counts served requests in /metrics", func() {
		code, _ := get(srv.URL + "/status")
		Expect(code).To(Equal(http.StatusOK))

		code, body := get(srv.URL + "/metrics")
		Expect(code).To(Equal(http.StatusOK))
		Expect(body).To(ContainSubstring(`styleforge_requests_total{code="200",method="GET",path="/status",server="status_server"} 1`))
	})

	It("echoes the request id", func() {
		req, err := http.NewRequest(http.MethodGet, srv.URL+"/status", nil)
		Expect(err).To(BeNil())
		req.Header.Set(requestid.Header, "req-7")

		resp, err := http.DefaultClient.Do(req)
		Expect(err).To(BeNil())
		defer resp.Body.Close()
		Expect(resp.Header.Get(requestid.Header)).To(Equal("req-7"))
	})

	It("returns 404 for unknown routes", func() {
		code, _ := get(srv.URL + "/jobs")
		Expect(code).To(Equal(http.StatusNotFound))
	})

	It("stops when its context is cancelled", func() {
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).To(BeNil())
		s := apiserver.NewStatusServer(listener, source)

		ctx, cancel := context.WithCancel(context.TODO())
		result := make(chan error, 1)
		go func() {
			result <- s.Run(ctx)
		}()

		Eventually(func() int {
			resp, err := http.Get("http://" + s.Addr().String() + "/status")
			if err != nil {
				return 0
			}
			defer resp.Body.Close()
			return resp.StatusCode
		}).Should(Equal(http.StatusOK))

		cancel()
		Eventually(result, 5*time.Second).Should(Receive(BeNil()))
	})
})
