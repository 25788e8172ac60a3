package agent

import (
	"bufio"
	"context"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/DasSecurity-HatLab/roundworm/pkg/config"
	"github.com/DasSecurity-HatLab/roundworm/pkg/models"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/net/nettest"
)

func TestAgent(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Agent Suite")
}

func acceptLines(ln net.Listener) <-chan string {
	lines := make(chan string, 256)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				scanner := bufio.NewScanner(c)
				for scanner.Scan() {
					lines <- scanner.Text()
				}
			}(conn)
		}
	}()
	return lines
}

func drain(lines <-chan string) []string {
	var out []string
	for {
		select {
		case l := <-lines:
			out = append(out, l)
		default:
			return out
		}
	}
}

var _ = Describe("Agent", func() {
	var (
		ln    net.Listener
		lines <-chan string
		cfg   *models.Config
		root  string
	)

	BeforeEach(func() {
		var err error
		ln, err = nettest.NewLocalListener("tcp")
		Expect(err).NotTo(HaveOccurred())
		lines = acceptLines(ln)
		DeferCleanup(func() { _ = ln.Close() })

		host, port, err := net.SplitHostPort(ln.Addr().String())
		Expect(err).NotTo(HaveOccurred())
		p, err := strconv.Atoi(port)
		Expect(err).NotTo(HaveOccurred())

		dir := GinkgoT().TempDir()
		root = filepath.Join(dir, "watch")
		procRoot := filepath.Join(dir, "proc")
		Expect(os.MkdirAll(root, 0o755)).To(Succeed())
		Expect(os.MkdirAll(filepath.Join(procRoot, "1"), 0o755)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(procRoot, "1", "status"),
			[]byte("Name:\tinit\nPPid:\t0\nUid:\t0\t0\t0\t0\n"), 0o644)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(procRoot, "1", "cmdline"), []byte("/sbin/init\x00"), 0o644)).To(Succeed())
		passwd := filepath.Join(dir, "passwd")
		Expect(os.WriteFile(passwd, []byte("root:x:0:0:root:/root:/bin/sh\n"), 0o644)).To(Succeed())

		cfg = config.Default()
		cfg.Collector.Host = host
		cfg.Collector.Port = uint16(p)
		cfg.Collector.DialTimeout = time.Second
		cfg.Watcher.Roots = []string{root}
		cfg.Watcher.Timeout = 50 * time.Millisecond
		cfg.Monitor.ProcPath = procRoot
		cfg.Monitor.PollInterval = 10 * time.Millisecond
		cfg.Users.Path = passwd
		cfg.Metrics.Enabled = false
		cfg.API.Enabled = false
	})

	It("should fail when the user directory is missing", func() {
		cfg.Users.Path = filepath.Join(root, "nope")
		_, err := New(cfg)
		Expect(err).To(MatchError(ContainSubstring("user directory")))
	})

	It("should fail when the collector is unreachable", func() {
		Expect(ln.Close()).To(Succeed())
		_, err := New(cfg)
		Expect(err).To(MatchError(ContainSubstring("failed to connect to collector")))
	})

	It("should fail when a watch root is missing", func() {
		cfg.Watcher.Roots = []string{filepath.Join(root, "missing")}
		_, err := New(cfg)
		Expect(err).To(MatchError(ContainSubstring("filesystem watcher")))
	})

	It("should stream file and process records until cancelled", func() {
		a, err := New(cfg)
		Expect(err).NotTo(HaveOccurred())
		defer a.Close()

		status := a.Status()
		Expect(status.Channels).To(Equal(map[string]bool{FileChannel: true, ProcessChannel: true}))
		Expect(status.Watches).To(Equal(1))

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- a.Run(ctx) }()

		var seen []string
		Eventually(func() []string {
			seen = append(seen, drain(lines)...)
			return seen
		}, 5*time.Second).Should(ContainElement(And(
			ContainSubstring(`"type":"new_process"`),
			ContainSubstring(`"username":"root"`),
			ContainSubstring(`"cmd":"/sbin/init"`),
		)))

		Expect(os.WriteFile(filepath.Join(root, "flag"), []byte("hello1234\n"), 0o644)).To(Succeed())
		Eventually(func() []string {
			seen = append(seen, drain(lines)...)
			return seen
		}, 5*time.Second).Should(ContainElement(And(
			ContainSubstring(`"type":"file"`),
			ContainSubstring(`"content":"aGVsbG8xMjM0Cg=="`),
		)))

		cancel()
		Eventually(done, 5*time.Second).Should(Receive(BeNil()))
	})

	It("should apply a new poll interval and log level", func() {
		a, err := New(cfg)
		Expect(err).NotTo(HaveOccurred())
		defer a.Close()

		updated := *cfg
		updated.Monitor.PollInterval = 250 * time.Millisecond
		updated.Logging.Level = "debug"
		a.UpdateConfig(&updated)

		Expect(a.Status().PollInterval).To(Equal("250ms"))
		DeferCleanup(func() { a.UpdateConfig(cfg) })
	})
})
