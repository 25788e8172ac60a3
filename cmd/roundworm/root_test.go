package main

import (
	"testing"
	"time"

	pkgconfig "github.com/DasSecurity-HatLab/roundworm/pkg/config"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestRoundworm(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "RoundWorm Command Suite")
}

var _ = Describe("Root command", func() {
	It("should apply the short flags", func() {
		opts := &options{}
		cmd := newRootCommand(opts)
		Expect(cmd.ParseFlags([]string{
			"-s", "10.0.0.5", "-p", "9000", "-w", "/var/www;/home/ctf", "-i", "250", "-d",
		})).To(Succeed())

		cfg := pkgconfig.Default()
		overrides(cmd, opts)(cfg)

		Expect(cfg.Collector.Host).To(Equal("10.0.0.5"))
		Expect(cfg.Collector.Port).To(Equal(uint16(9000)))
		Expect(cfg.Watcher.Roots).To(Equal([]string{"/var/www", "/home/ctf"}))
		Expect(cfg.Monitor.PollInterval).To(Equal(250 * time.Millisecond))
		Expect(cfg.Logging.Syslog).To(BeTrue())
	})

	It("should leave unset flags to the configuration", func() {
		opts := &options{}
		cmd := newRootCommand(opts)
		Expect(cmd.ParseFlags([]string{"-p", "9000"})).To(Succeed())

		cfg := pkgconfig.Default()
		overrides(cmd, opts)(cfg)

		Expect(cfg.Collector.Host).To(Equal("127.0.0.1"))
		Expect(cfg.Collector.Port).To(Equal(uint16(9000)))
		Expect(cfg.Watcher.Roots).To(Equal([]string{"/tmp"}))
		Expect(cfg.Monitor.PollInterval).To(Equal(100 * time.Millisecond))
	})

	It("should reject positional arguments", func() {
		cmd := newRootCommand(&options{})
		cmd.SetArgs([]string{"extra"})
		Expect(cmd.Execute()).To(HaveOccurred())
	})
})
