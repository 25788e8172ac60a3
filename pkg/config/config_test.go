// Copyright 2025 CompliK Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"errors"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	. "github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

func TestConfig(t *testing.T) {
	gomega.RegisterFailHandler(Fail)
	RunSpecs(t, "Config Suite")
}

var _ = Describe("Default", func() {
	It("should match the historical command-line defaults", func() {
		cfg := Default()
		gomega.Expect(cfg.Collector.Host).To(gomega.Equal("127.0.0.1"))
		gomega.Expect(cfg.Collector.Port).To(gomega.Equal(uint16(8023)))
		gomega.Expect(cfg.Watcher.Roots).To(gomega.Equal([]string{"/tmp"}))
		gomega.Expect(cfg.Watcher.Timeout).To(gomega.Equal(120 * time.Second))
		gomega.Expect(cfg.Monitor.PollInterval).To(gomega.Equal(100 * time.Millisecond))
		gomega.Expect(cfg.Users.Path).To(gomega.Equal("/etc/passwd"))
	})

	It("should pass validation", func() {
		gomega.Expect(Validate(Default())).To(gomega.Succeed())
	})
})

var _ = Describe("ParseRoots", func() {
	It("should split on semicolons and drop empty items", func() {
		gomega.Expect(ParseRoots("/tmp;/var/www; ;/srv;")).To(gomega.Equal([]string{"/tmp", "/var/www", "/srv"}))
	})

	It("should return an empty list for an empty string", func() {
		gomega.Expect(ParseRoots("")).To(gomega.BeEmpty())
	})
})

var _ = Describe("Validate", func() {
	It("should report every invalid field at once", func() {
		cfg := Default()
		cfg.Collector.Port = 0
		cfg.Watcher.Roots = nil
		cfg.Monitor.PollInterval = 0

		err := Validate(cfg)
		gomega.Expect(err).To(gomega.HaveOccurred())

		var merr *multierror.Error
		gomega.Expect(errors.As(err, &merr)).To(gomega.BeTrue())
		gomega.Expect(merr.Errors).To(gomega.HaveLen(3))

		fields := make([]string, 0, len(merr.Errors))
		for _, e := range merr.Errors {
			var verr *ValidationError
			gomega.Expect(errors.As(e, &verr)).To(gomega.BeTrue())
			fields = append(fields, verr.Field)
		}
		gomega.Expect(fields).To(gomega.ConsistOf("collector.port", "watcher.roots", "monitor.poll_interval"))
	})

	It("should reject relative watch roots", func() {
		cfg := Default()
		cfg.Watcher.Roots = []string{"tmp"}
		gomega.Expect(Validate(cfg)).To(gomega.MatchError(gomega.ContainSubstring("absolute")))
	})

	It("should require a burst when a reconnect rate is set", func() {
		cfg := Default()
		cfg.Collector.Reconnect.Rate = 2
		gomega.Expect(Validate(cfg)).To(gomega.MatchError(gomega.ContainSubstring("collector.reconnect.burst")))

		cfg.Collector.Reconnect.Burst = 1
		gomega.Expect(Validate(cfg)).To(gomega.Succeed())
	})

	It("should reject a negative write timeout", func() {
		cfg := Default()
		cfg.Collector.WriteTimeout = -time.Second
		gomega.Expect(Validate(cfg)).To(gomega.MatchError(gomega.ContainSubstring("collector.write_timeout")))
	})

	It("should reject unknown log levels", func() {
		cfg := Default()
		cfg.Logging.Level = "chatty"
		gomega.Expect(Validate(cfg)).To(gomega.MatchError(gomega.ContainSubstring("logging.level")))
	})
})

var _ = Describe("EnvLoader", func() {
	var (
		loader *EnvLoader
		env    map[string]string
	)

	BeforeEach(func() {
		env = map[string]string{}
		loader = NewEnvLoader("")
		loader.lookup = func(key string) (string, bool) {
			v, ok := env[key]
			return v, ok
		}
	})

	It("should derive variable names from field paths", func() {
		gomega.Expect(loader.getEnvKey("collector.host")).To(gomega.Equal("ROUNDWORM_COLLECTOR_HOST"))
		gomega.Expect(loader.getEnvKey("monitor.poll_interval")).To(gomega.Equal("ROUNDWORM_MONITOR_POLL_INTERVAL"))
	})

	It("should override typed fields", func() {
		env["ROUNDWORM_COLLECTOR_HOST"] = "10.0.0.5"
		env["ROUNDWORM_COLLECTOR_PORT"] = "9000"
		env["ROUNDWORM_MONITOR_POLL_INTERVAL"] = "250ms"
		env["ROUNDWORM_WATCHER_ROOTS"] = "/var/www;/tmp"
		env["ROUNDWORM_METRICS_ENABLED"] = "yes"
		env["ROUNDWORM_COLLECTOR_RECONNECT_RATE"] = "0.5"
		env["ROUNDWORM_COLLECTOR_WRITE_TIMEOUT"] = "2s"

		cfg := Default()
		gomega.Expect(loader.LoadFromEnv(cfg)).To(gomega.Succeed())
		gomega.Expect(cfg.Collector.Host).To(gomega.Equal("10.0.0.5"))
		gomega.Expect(cfg.Collector.Port).To(gomega.Equal(uint16(9000)))
		gomega.Expect(cfg.Monitor.PollInterval).To(gomega.Equal(250 * time.Millisecond))
		gomega.Expect(cfg.Watcher.Roots).To(gomega.Equal([]string{"/var/www", "/tmp"}))
		gomega.Expect(cfg.Metrics.Enabled).To(gomega.BeTrue())
		gomega.Expect(cfg.Collector.Reconnect.Rate).To(gomega.Equal(0.5))
		gomega.Expect(cfg.Collector.WriteTimeout).To(gomega.Equal(2 * time.Second))
	})

	It("should honour custom mappings", func() {
		env["AWD_HOST"] = "192.168.1.1"
		loader.AddMapping("collector.host", "AWD_HOST")

		cfg := Default()
		gomega.Expect(loader.LoadFromEnv(cfg)).To(gomega.Succeed())
		gomega.Expect(cfg.Collector.Host).To(gomega.Equal("192.168.1.1"))
	})

	It("should fail on values that cannot be converted", func() {
		env["ROUNDWORM_COLLECTOR_PORT"] = "99999"
		gomega.Expect(loader.LoadFromEnv(Default())).To(gomega.MatchError(gomega.ContainSubstring("collector.port")))
	})

	It("should leave fields untouched when nothing is set", func() {
		cfg := Default()
		gomega.Expect(loader.LoadFromEnv(cfg)).To(gomega.Succeed())
		gomega.Expect(cfg).To(gomega.Equal(Default()))
	})
})
