package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestAPI(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "API Suite")
}

type fixedStatus Status

func (f fixedStatus) Status() Status { return Status(f) }

var _ = Describe("Handler", func() {
	It("should return the agent status", func() {
		h := NewHandler(fixedStatus{
			Channels:     map[string]bool{"fswatch": true, "procmon": true},
			Watches:      12,
			SnapshotSize: 240,
			PollInterval: "100ms",
		})
		rec := httptest.NewRecorder()
		h.StatusHandler(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(MatchJSON(`{
			"channels": {"fswatch": true, "procmon": true},
			"watches": 12,
			"snapshot_size": 240,
			"poll_interval": "100ms"
		}`))
	})

	It("should reject other methods", func() {
		h := NewHandler(fixedStatus{})
		rec := httptest.NewRecorder()
		h.StatusHandler(rec, httptest.NewRequest(http.MethodPost, "/api/status", nil))
		Expect(rec.Code).To(Equal(http.StatusMethodNotAllowed))
	})

	It("should report degraded health while a channel is down", func() {
		h := NewHandler(fixedStatus{Channels: map[string]bool{"fswatch": true, "procmon": false}})
		rec := httptest.NewRecorder()
		h.HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		Expect(rec.Code).To(Equal(http.StatusServiceUnavailable))
		var body map[string]string
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		Expect(body["status"]).To(Equal("degraded"))
	})

	It("should report ok when every channel is up", func() {
		h := NewHandler(fixedStatus{Channels: map[string]bool{"fswatch": true}})
		rec := httptest.NewRecorder()
		h.HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		Expect(rec.Code).To(Equal(http.StatusOK))
	})
})
